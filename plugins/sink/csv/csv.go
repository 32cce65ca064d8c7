// Package csv 将条带分段写为 CSV：每段一行，附 WKT 多边形列。
package csv

import (
	"context"
	"encoding/csv"
	"fmt"
	"unicode/utf8"

	"github.com/paulmach/orb/encoding/wkt"

	"ribbonify/pkg/contract"
	"ribbonify/plugins/sink/internal/fsout"
	"ribbonify/plugins/sink/internal/record"
)

// Options: 文件输出选项 + CSV 方言。
type Options struct {
	fsout.Options
	// Delimiter: 单字符分隔符，默认 ","。
	Delimiter string `json:"delimiter,omitempty"`
	// Classed: 是否输出 PRIMARY_CLASSED_FROM/TO 列（分级模式下由装配层置为 true）。
	Classed bool `json:"classed,omitempty"`
	// GeometryColumn: WKT 列名，默认 "WKT"。
	GeometryColumn string `json:"geometry_column,omitempty"`
}

type Sink struct {
	dir     *fsout.Dir
	comma   rune
	classed bool
	geomCol string
}

var _ contract.Sink = (*Sink)(nil)

func New(opts *Options) (*Sink, error) {
	if opts == nil {
		opts = &Options{}
	}
	d, err := fsout.New(opts.Options)
	if err != nil {
		return nil, err
	}
	comma := ','
	if opts.Delimiter != "" {
		r, n := utf8.DecodeRuneInString(opts.Delimiter)
		if n != len(opts.Delimiter) || r == '"' || r == '\n' || r == '\r' {
			return nil, fmt.Errorf("%w: invalid csv delimiter %q", contract.ErrConfiguration, opts.Delimiter)
		}
		comma = r
	}
	gc := opts.GeometryColumn
	if gc == "" {
		gc = "WKT"
	}
	return &Sink{dir: d, comma: comma, classed: opts.Classed, geomCol: gc}, nil
}

func (s *Sink) Open(ctx context.Context, id contract.ArtifactID) (contract.SegmentWriter, error) {
	f, err := s.dir.Create(ctx, id, ".csv")
	if err != nil {
		return nil, err
	}
	cw := csv.NewWriter(f)
	cw.Comma = s.comma
	if err := cw.Write(append(record.Columns(s.classed), s.geomCol)); err != nil {
		_ = f.Abort()
		return nil, err
	}
	return &writer{f: f, cw: cw, classed: s.classed}, nil
}

type writer struct {
	f       *fsout.File
	cw      *csv.Writer
	classed bool
}

func (w *writer) Append(ctx context.Context, seg contract.Segment) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	row := append(record.Strings(seg, w.classed), wkt.MarshalString(record.Polygon(seg)))
	if err := w.cw.Write(row); err != nil {
		return fmt.Errorf("%w: point %d: %v", contract.ErrSinkWrite, seg.PointID, err)
	}
	return nil
}

func (w *writer) Close() error {
	w.cw.Flush()
	if err := w.cw.Error(); err != nil {
		_ = w.f.Abort()
		return err
	}
	return w.f.Commit()
}

// Abort 丢弃未提交的输出。
func (w *writer) Abort() error { return w.f.Abort() }
