// Package geojson 将条带分段流式写为 GeoJSON FeatureCollection（每段一个 Polygon Feature）。
package geojson

import (
	"context"
	"fmt"
	"io"

	"github.com/paulmach/orb/geojson"

	"ribbonify/pkg/contract"
	"ribbonify/plugins/sink/internal/fsout"
	"ribbonify/plugins/sink/internal/record"
)

// Options: 文件输出选项 + 扩展名。
type Options struct {
	fsout.Options
	// Ext: 输出扩展名，默认 ".geojson"。
	Ext string `json:"ext,omitempty"`
}

// Sink: GeoJSON 输出。
type Sink struct {
	dir *fsout.Dir
	ext string
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
	ext := opts.Ext
	if ext == "" {
		ext = ".geojson"
	}
	return &Sink{dir: d, ext: ext}, nil
}

// Open 创建数据集对应的输出文件并写入集合头。
func (s *Sink) Open(ctx context.Context, id contract.ArtifactID) (contract.SegmentWriter, error) {
	f, err := s.dir.Create(ctx, id, s.ext)
	if err != nil {
		return nil, err
	}
	if _, err := f.WriteString(`{"type":"FeatureCollection","features":[`); err != nil {
		_ = f.Abort()
		return nil, err
	}
	return &writer{f: f, out: f}, nil
}

type writer struct {
	f   *fsout.File
	out io.Writer // 默认即 f
	n   int
	err error // 首次写失败后置位：集合已残缺，之后一律失败
}

func (w *writer) Append(ctx context.Context, seg contract.Segment) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if w.err != nil {
		return w.err
	}
	feat := geojson.NewFeature(record.Polygon(seg))
	feat.ID = seg.PointID
	feat.Properties = geojson.Properties(record.Properties(seg))
	b, err := feat.MarshalJSON()
	if err != nil {
		// 未写出任何字节，集合仍然完整
		return fmt.Errorf("%w: point %d: %v", contract.ErrSinkWrite, seg.PointID, err)
	}
	if w.n > 0 {
		b = append([]byte{','}, b...)
	}
	if _, err := w.out.Write(b); err != nil {
		w.err = fmt.Errorf("%w: feature collection truncated at point %d: %v", contract.ErrSinkWrite, seg.PointID, err)
		return w.err
	}
	w.n++
	return nil
}

func (w *writer) Close() error {
	if w.err != nil {
		_ = w.f.Abort()
		return w.err
	}
	if _, err := w.out.Write([]byte("]}\n")); err != nil {
		_ = w.f.Abort()
		return err
	}
	return w.f.Commit()
}

// Abort 丢弃未提交的输出。
func (w *writer) Abort() error { return w.f.Abort() }
