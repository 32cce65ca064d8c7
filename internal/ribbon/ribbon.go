// Package ribbon 是条带构造的核心：按轨迹驱动状态机，逐段生成封口/四边形多边形。
//
// 每条轨迹 n 个点生成 n-1 个多边形（每个轨迹段一个）：
//   - 首段 0→1：封口（taper 三角形 / butt 四边形）；
//   - 中间段 i→i+1（0<i<n-2）：四边形，尾边用 bearing(i-1→i)，前边用 bearing(i→i+1)；
//     i-1 与 i 重合时尾边退回 bearing(i-2→i)，仍不可用则取前边方位角；
//   - 末段 (n-2)→(n-1)：终端封口，基边沿用 bearing(n-3→n-2)；
//   - 最后一个点不单独成形。
//
// 顶点 k 处的偏移边总是使用 k 自身的半宽；相邻多边形共享的边使用同一方位角，条带无缝。
package ribbon

import (
	"errors"
	"fmt"

	"github.com/paulmach/orb"

	"ribbonify/internal/geometry"
	"ribbonify/internal/segment"
	"ribbonify/pkg/contract"
)

// ErrNoSegment: 该位置不产生多边形（最后一个点或退化轨迹）。
var ErrNoSegment = errors.New("no segment at this position")

// Assembler: 一次运行的构造参数（只读，可被多个 goroutine 共享）。
type Assembler struct {
	width contract.WidthMapper
	proj  contract.Projector
	cap   contract.CapStyle
}

// New 校验封口样式并返回 Assembler。
func New(width contract.WidthMapper, proj contract.Projector, cap contract.CapStyle) (*Assembler, error) {
	if width == nil || proj == nil {
		return nil, fmt.Errorf("%w: width mapper and projector are required", contract.ErrConfiguration)
	}
	switch cap {
	case contract.CapButt, contract.CapTaper:
	default:
		return nil, fmt.Errorf("%w: unknown cap style %q", contract.ErrConfiguration, cap)
	}
	return &Assembler{width: width, proj: proj, cap: cap}, nil
}

// Step 构造窗口当前点对应的一个多边形。
// 错误均以 *contract.PointError 返回，携带当前点 ID。
func (a *Assembler) Step(w segment.Window) (contract.Segment, error) {
	cur := w.Current()
	fail := func(err error) (contract.Segment, error) {
		return contract.Segment{}, &contract.PointError{PointID: cur.ID, Group: cur.Group, Err: err}
	}
	next, ok := w.Next()
	pos := w.Position()
	if !ok || pos == contract.PositionLast || pos == contract.PositionDegenerate {
		return fail(ErrNoSegment)
	}

	lead, err := geometry.Bearing(cur.Coord(), next.Coord())
	if err != nil {
		return fail(err)
	}
	hCur := a.width.HalfWidth(cur.Primary)
	hNext := a.width.HalfWidth(next.Primary)

	var ring []orb.Point
	switch pos {
	case contract.PositionFirst:
		nl, nr := geometry.Offsets(next.Coord(), lead, hNext, a.proj)
		if a.cap == contract.CapTaper {
			ring = []orb.Point{cur.Coord(), nl, nr}
		} else {
			cl, cr := geometry.Offsets(cur.Coord(), lead, hCur, a.proj)
			ring = []orb.Point{cl, nl, nr, cr}
		}
	case contract.PositionInterior, contract.PositionPenultimate:
		trail, err := trailing(w, lead)
		if err != nil {
			return fail(err)
		}
		cl, cr := geometry.Offsets(cur.Coord(), trail, hCur, a.proj)
		if pos == contract.PositionPenultimate && a.cap == contract.CapTaper {
			ring = []orb.Point{cl, next.Coord(), cr}
		} else {
			nl, nr := geometry.Offsets(next.Coord(), lead, hNext, a.proj)
			ring = []orb.Point{cl, nl, nr, cr}
		}
	}
	if err := geometry.CheckRing(ring); err != nil {
		return fail(err)
	}

	seg := contract.Segment{
		PointID:       cur.ID,
		Group:         cur.Group,
		Sort:          cur.Sort,
		Position:      pos,
		Cap:           a.cap,
		PrimaryFrom:   cur.Primary,
		PrimaryTo:     next.Primary,
		SecondaryFrom: cur.Secondary,
		SecondaryTo:   next.Secondary,
		Bearing:       lead,
		Ring:          ring,
	}
	if cf, ok := a.width.Classify(cur.Primary); ok {
		ct, _ := a.width.Classify(next.Primary)
		seg.HasClass, seg.ClassedFrom, seg.ClassedTo = true, cf, ct
	}
	return seg, nil
}

// trailing 返回当前点尾边的方位角。前一点与当前点重合时依次退回 prev-prev→cur 与 lead，
// 使单个重复顶点只影响它自己的那一段。
func trailing(w segment.Window, lead float64) (float64, error) {
	cur := w.Current()
	prev, _ := w.Prev()
	b, err := geometry.Bearing(prev.Coord(), cur.Coord())
	if !errors.Is(err, geometry.ErrZeroLength) {
		return b, err
	}
	if pp, ok := w.PrevPrev(); ok {
		if b, err := geometry.Bearing(pp.Coord(), cur.Coord()); err == nil {
			return b, nil
		}
	}
	return lead, nil
}
