// Package csv 将带表头的 CSV 数据集解码为点序列。
package csv

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"ribbonify/pkg/contract"
	"ribbonify/plugins/decoder/internal/pointset"
)

type Options struct {
	// Delimiter: 单字符分隔符，默认 ","。
	Delimiter string `json:"delimiter,omitempty"`
	// Comment: 注释行前缀字符，默认无。
	Comment string `json:"comment,omitempty"`
	// Extensions: 接收的扩展名，默认 [".csv", ".txt"]。
	Extensions []string `json:"extensions,omitempty"`
	// Sort: 来源无序时按 (group, sort) 稳定排序。
	Sort bool `json:"sort,omitempty"`
}

// Decoder: 列名大小写不敏感；UTF-8/UTF-16 BOM 自动识别并剥离。
type Decoder struct {
	comma   rune
	comment rune
	exts    pointset.ExtFilter
	sort    bool
}

var _ contract.Decoder = (*Decoder)(nil)

func single(name, s string) (rune, error) {
	r, n := utf8.DecodeRuneInString(s)
	if n != len(s) || r == '"' || r == '\n' || r == '\r' || r == utf8.RuneError {
		return 0, fmt.Errorf("%w: invalid csv %s %q", contract.ErrConfiguration, name, s)
	}
	return r, nil
}

func New(opts *Options) (*Decoder, error) {
	if opts == nil {
		opts = &Options{}
	}
	d := &Decoder{comma: ',', exts: pointset.NewExtFilter(opts.Extensions, []string{".csv", ".txt"}), sort: opts.Sort}
	if opts.Delimiter != "" {
		r, err := single("delimiter", opts.Delimiter)
		if err != nil {
			return nil, err
		}
		d.comma = r
	}
	if opts.Comment != "" {
		r, err := single("comment", opts.Comment)
		if err != nil {
			return nil, err
		}
		d.comment = r
	}
	return d, nil
}

type columns struct {
	id, group, sort, primary, secondary, x, y int
}

func mapColumns(header []string, f contract.Fields) (columns, error) {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	var missing []string
	lookup := func(name string, required bool) int {
		if name == "" {
			if required {
				missing = append(missing, "(unset)")
			}
			return -1
		}
		i, ok := idx[strings.ToLower(name)]
		if !ok {
			missing = append(missing, name)
			return -1
		}
		return i
	}
	c := columns{
		id:        lookup(f.ID, false),
		group:     lookup(f.Group, false),
		sort:      lookup(f.Sort, false),
		primary:   lookup(f.Primary, true),
		secondary: lookup(f.Secondary, false),
		x:         lookup(f.X, true),
		y:         lookup(f.Y, true),
	}
	if len(missing) > 0 {
		return c, fmt.Errorf("%w: missing column(s) %s", contract.ErrConfiguration, strings.Join(missing, ", "))
	}
	return c, nil
}

// Decode 读取全部记录。未配置 id 列时以 1 起的行序号作为点 ID；未配置 sort 列时以行序号排序。
func (d *Decoder) Decode(ctx context.Context, id contract.DatasetID, r io.Reader, fields contract.Fields) ([]contract.Point, error) {
	if !d.exts.Accept(id) {
		return nil, nil
	}
	cr := csv.NewReader(transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder())))
	cr.Comma = d.comma
	cr.Comment = d.comment
	cr.ReuseRecord = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, contract.ErrEmptyDataset
	}
	if err != nil {
		return nil, fmt.Errorf("%w: header: %v", contract.ErrRecordInvalid, err)
	}
	cols, err := mapColumns(header, fields)
	if err != nil {
		return nil, err
	}

	var out []contract.Point
	for ord := int64(1); ; ord++ {
		if ord%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &contract.PointError{PointID: ord, Err: fmt.Errorf("%w: %v", contract.ErrRecordInvalid, err)}
		}
		p, err := cols.point(row, ord, fields)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if len(out) == 0 {
		return nil, contract.ErrEmptyDataset
	}
	if d.sort {
		pointset.SortByGroup(out)
	}
	return out, nil
}

func (c columns) point(row []string, ord int64, f contract.Fields) (contract.Point, error) {
	p := contract.Point{ID: ord, Sort: contract.SortKey(strconv.FormatInt(ord, 10))}
	num := func(i int, name string, dst *float64) error {
		v, err := pointset.Float(row[i])
		if err != nil {
			return pointset.Invalid(ord, name, row[i], err)
		}
		*dst = v
		return nil
	}
	if c.id >= 0 {
		v, err := strconv.ParseInt(strings.TrimSpace(row[c.id]), 10, 64)
		if err != nil {
			return p, pointset.Invalid(ord, f.ID, row[c.id], err)
		}
		p.ID = v
	}
	if c.group >= 0 {
		p.Group = contract.GroupKey(strings.TrimSpace(row[c.group]))
	}
	if c.sort >= 0 {
		p.Sort = contract.SortKey(strings.TrimSpace(row[c.sort]))
	}
	if err := num(c.primary, f.Primary, &p.Primary); err != nil {
		return p, err
	}
	if c.secondary >= 0 {
		if err := num(c.secondary, f.Secondary, &p.Secondary); err != nil {
			return p, err
		}
	}
	if err := num(c.x, f.X, &p.X); err != nil {
		return p, err
	}
	if err := num(c.y, f.Y, &p.Y); err != nil {
		return p, err
	}
	return p, nil
}
