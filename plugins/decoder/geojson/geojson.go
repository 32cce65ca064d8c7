// Package geojson 将 Point 要素集合解码为点序列；字段取自要素属性。
package geojson

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"ribbonify/pkg/contract"
	"ribbonify/plugins/decoder/internal/pointset"
)

type Options struct {
	// Extensions: 接收的扩展名，默认 [".geojson", ".json"]。
	Extensions []string `json:"extensions,omitempty"`
	// Sort: 来源无序时按 (group, sort) 稳定排序。
	Sort bool `json:"sort,omitempty"`
}

type Decoder struct {
	exts pointset.ExtFilter
	sort bool
}

var _ contract.Decoder = (*Decoder)(nil)

func New(opts *Options) (*Decoder, error) {
	if opts == nil {
		opts = &Options{}
	}
	return &Decoder{exts: pointset.NewExtFilter(opts.Extensions, []string{".geojson", ".json"}), sort: opts.Sort}, nil
}

// Decode 读取整个 FeatureCollection。点 ID 依次取：id 属性（严格整数）、整数要素 id、1 起的要素序号。
func (d *Decoder) Decode(ctx context.Context, id contract.DatasetID, r io.Reader, fields contract.Fields) ([]contract.Point, error) {
	if !d.exts.Accept(id) {
		return nil, nil
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", contract.ErrRecordInvalid, err)
	}
	if len(fc.Features) == 0 {
		return nil, contract.ErrEmptyDataset
	}
	out := make([]contract.Point, 0, len(fc.Features))
	for i, f := range fc.Features {
		ord := int64(i + 1)
		p, err := point(f, ord, fields)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if d.sort {
		pointset.SortByGroup(out)
	}
	return out, nil
}

var errMissing = errors.New("missing property")

func text(v any) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", false
	case string:
		return t, true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(t), true
	default:
		return fmt.Sprint(t), true
	}
}

func number(v any) (float64, error) {
	switch t := v.(type) {
	case nil:
		return 0, errMissing
	case float64:
		return t, nil
	case string:
		return pointset.Float(t)
	default:
		return 0, fmt.Errorf("unsupported type %T", v)
	}
}

func point(f *geojson.Feature, ord int64, fields contract.Fields) (contract.Point, error) {
	pt, ok := f.Geometry.(orb.Point)
	if !ok {
		return contract.Point{}, &contract.PointError{PointID: ord,
			Err: fmt.Errorf("%w: feature geometry is %T, want Point", contract.ErrRecordInvalid, f.Geometry)}
	}
	p := contract.Point{ID: ord, Sort: contract.SortKey(strconv.FormatInt(ord, 10)), X: pt[0], Y: pt[1]}

	if fields.ID != "" {
		// 显式配置的 id 属性必须是整数
		s, ok := text(f.Properties[fields.ID])
		if !ok {
			return p, pointset.Invalid(ord, fields.ID, "", errMissing)
		}
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return p, pointset.Invalid(ord, fields.ID, s, err)
		}
		p.ID = v
	} else if s, ok := text(f.ID); ok {
		// RFC 7946 允许字符串 id；非整数时保留序号
		if v, err := strconv.ParseInt(s, 10, 64); err == nil {
			p.ID = v
		}
	}
	if fields.Group != "" {
		s, _ := text(f.Properties[fields.Group])
		p.Group = contract.GroupKey(s)
	}
	if fields.Sort != "" {
		s, ok := text(f.Properties[fields.Sort])
		if !ok {
			return p, pointset.Invalid(p.ID, fields.Sort, "", errMissing)
		}
		p.Sort = contract.SortKey(s)
	}
	v, err := number(f.Properties[fields.Primary])
	if err != nil {
		return p, pointset.Invalid(p.ID, fields.Primary, fmt.Sprint(f.Properties[fields.Primary]), err)
	}
	p.Primary = v
	if fields.Secondary != "" {
		v, err := number(f.Properties[fields.Secondary])
		if err != nil {
			return p, pointset.Invalid(p.ID, fields.Secondary, fmt.Sprint(f.Properties[fields.Secondary]), err)
		}
		p.Secondary = v
	}
	return p, nil
}
