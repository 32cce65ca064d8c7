// Package width 实现属性值到条带宽度的映射（分级 stepped 与线性 linear）。
//
// 主属性取值全部相同（区间为 0）时两种模式都拒绝构造并返回 ErrDegenerateRange：
// 分级表要求上界严格递增，因此不会把所有值静默归入第 1 类。
//
// 两种映射都依赖一次显式的汇总预扫描（Summary），构造后不可变。
package width

import (
	"fmt"
	"math"

	"github.com/aclements/go-moremath/stats"

	"ribbonify/pkg/contract"
)

// Summary: 主属性的汇总统计（预扫描结果，只读）。
type Summary struct {
	Min   float64
	Max   float64
	Count int
}

// Range 返回 Max-Min。
func (s Summary) Range() float64 { return s.Max - s.Min }

// Summarize 对整个数据集的主属性做一次预扫描。
// 空输入返回 ErrEmptyDataset；出现 NaN/Inf 视为配置问题（无法建立映射）。
func Summarize(points []contract.Point) (Summary, error) {
	if len(points) == 0 {
		return Summary{}, contract.ErrEmptyDataset
	}
	xs := make([]float64, len(points))
	for i, p := range points {
		if math.IsNaN(p.Primary) || math.IsInf(p.Primary, 0) {
			return Summary{}, &contract.PointError{PointID: p.ID, Group: p.Group,
				Err: fmt.Errorf("%w: non-finite primary value", contract.ErrConfiguration)}
		}
		xs[i] = p.Primary
	}
	lo, hi := stats.Bounds(xs)
	return Summary{Min: lo, Max: hi, Count: len(xs)}, nil
}

// Rounding: 线性模式的宽度取整方式。
type Rounding string

const (
	RoundHalfEven Rounding = "half_even"
	RoundHalfAway Rounding = "half_away"
	RoundNone     Rounding = "none"
)

func (r Rounding) apply(v float64) float64 {
	switch r {
	case RoundHalfAway:
		return math.Round(v)
	case RoundNone:
		return v
	default:
		return math.RoundToEven(v)
	}
}

// Params: 映射参数（来自配置）。
type Params struct {
	Classes  int      // 仅 stepped 使用
	MinWidth float64  // 全宽
	MaxWidth float64  // 全宽
	Rounding Rounding // 仅 linear 使用；空值等价 half_even
}

func (p Params) validateWidths() error {
	if math.IsNaN(p.MinWidth) || math.IsNaN(p.MaxWidth) || math.IsInf(p.MinWidth, 0) || math.IsInf(p.MaxWidth, 0) {
		return fmt.Errorf("%w: width bounds must be finite", contract.ErrConfiguration)
	}
	if p.MinWidth < 0 || p.MaxWidth < 0 {
		return fmt.Errorf("%w: negative width (min=%g max=%g)", contract.ErrConfiguration, p.MinWidth, p.MaxWidth)
	}
	if p.MaxWidth < p.MinWidth {
		return fmt.Errorf("%w: max_width %g < min_width %g", contract.ErrConfiguration, p.MaxWidth, p.MinWidth)
	}
	switch p.Rounding {
	case "", RoundHalfEven, RoundHalfAway, RoundNone:
	default:
		return fmt.Errorf("%w: unknown rounding %q", contract.ErrConfiguration, p.Rounding)
	}
	return nil
}
