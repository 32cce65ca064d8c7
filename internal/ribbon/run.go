package ribbon

import (
	"context"
	"fmt"

	"ribbonify/internal/segment"
	"ribbonify/pkg/contract"
)

// State: 单条轨迹的构造状态。
type State int

const (
	StateAwaitFirst State = iota
	StateContinuation
	StateTerminate
	StateDone
	StateSkipped
)

func (s State) String() string {
	switch s {
	case StateAwaitFirst:
		return "await_first"
	case StateContinuation:
		return "continuation"
	case StateTerminate:
		return "terminate"
	case StateDone:
		return "done"
	default:
		return "skipped"
	}
}

// Run: 一条轨迹的状态机实例；每条轨迹独立，组边界即重置。
type Run struct {
	asm   *Assembler
	track segment.Track
	i     int
	state State
}

// Start 为轨迹创建新的状态机。点数 < 3 的轨迹直接进入 Skipped。
func (a *Assembler) Start(t segment.Track) *Run {
	r := &Run{asm: a, track: t}
	if t.Degenerate() {
		r.state = StateSkipped
	}
	return r
}

func (r *Run) State() State { return r.state }

// Next 前进一步。ok=false 表示轨迹已结束（或被跳过）。
// 单个多边形失败不改变状态推进：下一次调用继续处理后续点。
func (r *Run) Next() (seg contract.Segment, ok bool, err error) {
	switch r.state {
	case StateDone, StateSkipped:
		return contract.Segment{}, false, nil
	}
	w := segment.At(r.track, r.i)
	seg, err = r.asm.Step(w)
	r.i++
	switch {
	case r.i >= r.track.Len()-1:
		r.state = StateDone
	case r.i == r.track.Len()-2:
		r.state = StateTerminate
	default:
		r.state = StateContinuation
	}
	return seg, true, err
}

// Stats: 单条轨迹的构造统计。
type Stats struct {
	Group   contract.GroupKey
	Points  int
	Emitted int
	Failed  int
	Skipped bool
}

// Build 驱动整条轨迹。每个多边形（或其错误）交给 emit，由调用方决定记录后继续还是中止：
// emit 返回非 nil 时 Build 立即返回该错误。点数 < 3 返回 ErrDegenerateGroup。
func (a *Assembler) Build(ctx context.Context, t segment.Track, emit func(seg contract.Segment, err error) error) (Stats, error) {
	st := Stats{Group: t.Group, Points: t.Len()}
	r := a.Start(t)
	if r.State() == StateSkipped {
		st.Skipped = true
		return st, fmt.Errorf("%w: group %q has %d point(s)", contract.ErrDegenerateGroup, t.Group, t.Len())
	}
	for {
		if err := ctx.Err(); err != nil {
			return st, err
		}
		seg, ok, err := r.Next()
		if !ok {
			return st, nil
		}
		if err != nil {
			st.Failed++
		} else {
			st.Emitted++
		}
		if e := emit(seg, err); e != nil {
			return st, e
		}
	}
}
