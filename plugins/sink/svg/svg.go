// Package svg 渲染条带预览图（SVG）。数据集内的所有环在 Close 时一次性绘制。
package svg

import (
	"context"
	"fmt"
	"math"

	"github.com/aclements/go-moremath/scale"
	svgo "github.com/ajstarks/svgo"
	"github.com/paulmach/orb"

	"ribbonify/pkg/contract"
	"ribbonify/plugins/sink/internal/fsout"
)

type Options struct {
	fsout.Options
	// Size: 画布边长（像素），默认 1024。
	Size int `json:"size,omitempty"`
	// Margin: 内边距（像素），默认 16。
	Margin int `json:"margin,omitempty"`
	// Stroke: 描边颜色，默认 "#333"；"none" 关闭描边。
	Stroke string `json:"stroke,omitempty"`
}

type Sink struct {
	dir    *fsout.Dir
	size   int
	margin int
	stroke string
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
	s := &Sink{dir: d, size: 1024, margin: 16, stroke: "#333"}
	if opts.Size > 0 {
		s.size = opts.Size
	}
	if opts.Margin > 0 {
		s.margin = opts.Margin
	}
	if opts.Stroke != "" {
		s.stroke = opts.Stroke
	}
	if 2*s.margin >= s.size {
		return nil, fmt.Errorf("%w: margin %d too large for size %d", contract.ErrConfiguration, s.margin, s.size)
	}
	return s, nil
}

func (s *Sink) Open(ctx context.Context, id contract.ArtifactID) (contract.SegmentWriter, error) {
	f, err := s.dir.Create(ctx, id, ".svg")
	if err != nil {
		return nil, err
	}
	return &writer{s: s, f: f, id: id}, nil
}

type shape struct {
	ring []orb.Point
	sec  float64
}

// writer 仅为预览保留环；几何本身不做任何修改。
type writer struct {
	s      *Sink
	f      *fsout.File
	id     contract.ArtifactID
	shapes []shape
	bound  orb.Bound
}

func (w *writer) Append(ctx context.Context, seg contract.Segment) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b := orb.MultiPoint(seg.Ring).Bound()
	if len(w.shapes) == 0 {
		w.bound = b
	} else {
		w.bound = w.bound.Union(b)
	}
	w.shapes = append(w.shapes, shape{ring: seg.Ring, sec: (seg.SecondaryFrom + seg.SecondaryTo) / 2})
	return nil
}

// 浅蓝 → 深蓝
var lo, hi = [3]float64{222, 235, 247}, [3]float64{8, 81, 156}

func shade(t float64) string {
	c := [3]int{}
	for i := range c {
		c[i] = int(math.Round(lo[i] + (hi[i]-lo[i])*t))
	}
	return fmt.Sprintf("rgb(%d,%d,%d)", c[0], c[1], c[2])
}

func (w *writer) Close() error {
	size, m := w.s.size, w.s.margin
	canvas := svgo.New(w.f)
	canvas.Start(size, size)
	canvas.Title(string(w.id))
	if len(w.shapes) > 0 {
		// 等比映射：取宽高中较大者作为公共跨度，y 轴翻转
		span := math.Max(w.bound.Max[0]-w.bound.Min[0], w.bound.Max[1]-w.bound.Min[1])
		if span == 0 {
			span = 1
		}
		xs := scale.Linear{Min: w.bound.Min[0], Max: w.bound.Min[0] + span}
		ys := scale.Linear{Min: w.bound.Min[1], Max: w.bound.Min[1] + span}
		px := float64(size - 2*m)

		secLo, secHi := math.Inf(1), math.Inf(-1)
		for _, sh := range w.shapes {
			secLo, secHi = math.Min(secLo, sh.sec), math.Max(secHi, sh.sec)
		}
		fill := scale.Linear{Min: secLo, Max: secHi, Clamp: true}

		for _, sh := range w.shapes {
			x := make([]int, len(sh.ring))
			y := make([]int, len(sh.ring))
			for i, p := range sh.ring {
				x[i] = m + int(math.Round(xs.Map(p[0])*px))
				y[i] = size - m - int(math.Round(ys.Map(p[1])*px))
			}
			canvas.Polygon(x, y, fmt.Sprintf("fill:%s;stroke:%s;stroke-width:0.5", shade(fill.Map(sh.sec)), w.s.stroke))
		}
	}
	canvas.End()
	return w.f.Commit()
}

// Abort 丢弃未提交的输出。
func (w *writer) Abort() error { return w.f.Abort() }
