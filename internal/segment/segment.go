// Package segment 将已排序的点序列切分为轨迹，并提供显式的索引窗口。
package segment

import (
	"fmt"

	"ribbonify/pkg/contract"
)

// Track: 同一 GroupKey 的连续点（输入切片的子切片，不复制）。
type Track struct {
	Group  contract.GroupKey
	Points []contract.Point
}

// Len 返回点数。
func (t Track) Len() int { return len(t.Points) }

// Degenerate 点数不足 3 时无法构造封口。
func (t Track) Degenerate() bool { return len(t.Points) < 3 }

// Split 按组键切分为连续轨迹。
// 约束：组键不得在其他组之后再次出现；组内排序键不得递减。违反时返回 ErrOrderInvalid。
func Split(points []contract.Point) ([]Track, error) {
	if len(points) == 0 {
		return nil, nil
	}
	var tracks []Track
	seen := make(map[contract.GroupKey]struct{})
	start := 0
	for i := 1; i <= len(points); i++ {
		if i < len(points) && points[i].Group == points[start].Group {
			if points[i].Sort.Compare(points[i-1].Sort) < 0 {
				return nil, &contract.PointError{PointID: points[i].ID, Group: points[i].Group,
					Err: fmt.Errorf("%w: sort key %q after %q", contract.ErrOrderInvalid, points[i].Sort, points[i-1].Sort)}
			}
			continue
		}
		g := points[start].Group
		if _, dup := seen[g]; dup {
			return nil, &contract.PointError{PointID: points[start].ID, Group: g,
				Err: fmt.Errorf("%w: group reappears", contract.ErrOrderInvalid)}
		}
		seen[g] = struct{}{}
		tracks = append(tracks, Track{Group: g, Points: points[start:i:i]})
		start = i
	}
	return tracks, nil
}

// Classify 依据索引与轨迹长度判定点的位置。
func Classify(i, n int) contract.Position {
	switch {
	case n < 3:
		return contract.PositionDegenerate
	case i == 0:
		return contract.PositionFirst
	case i == n-1:
		return contract.PositionLast
	case i == n-2:
		return contract.PositionPenultimate
	default:
		return contract.PositionInterior
	}
}

// Window: 轨迹上以 i 为中心的有界窗口（prev-prev .. next）。
type Window struct {
	track []contract.Point
	i     int
}

// At 返回轨迹 t 在索引 i 处的窗口；越界时 panic（调用方负责索引合法）。
func At(t Track, i int) Window {
	if i < 0 || i >= len(t.Points) {
		panic(fmt.Sprintf("segment: index %d out of range [0,%d)", i, len(t.Points)))
	}
	return Window{track: t.Points, i: i}
}

func (w Window) Index() int                  { return w.i }
func (w Window) Len() int                    { return len(w.track) }
func (w Window) Current() contract.Point     { return w.track[w.i] }
func (w Window) Position() contract.Position { return Classify(w.i, len(w.track)) }

func (w Window) at(k int) (contract.Point, bool) {
	if k < 0 || k >= len(w.track) {
		return contract.Point{}, false
	}
	return w.track[k], true
}

func (w Window) Prev() (contract.Point, bool)     { return w.at(w.i - 1) }
func (w Window) Next() (contract.Point, bool)     { return w.at(w.i + 1) }
func (w Window) PrevPrev() (contract.Point, bool) { return w.at(w.i - 2) }
