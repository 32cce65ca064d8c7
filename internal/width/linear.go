package width

import (
	"fmt"

	"github.com/aclements/go-moremath/scale"

	"ribbonify/pkg/contract"
)

// Linear: 线性映射 round((max_w-min_w)·t + min_w) / 2，t 为值在 [min,max] 内的归一化位置。
type Linear struct {
	sc       scale.Linear
	minW     float64
	maxW     float64
	rounding Rounding
}

var _ contract.WidthMapper = (*Linear)(nil)

func NewLinear(s Summary, p Params) (*Linear, error) {
	if err := p.validateWidths(); err != nil {
		return nil, err
	}
	if s.Count == 0 {
		return nil, contract.ErrEmptyDataset
	}
	if s.Range() == 0 {
		return nil, fmt.Errorf("%w (value %g)", contract.ErrDegenerateRange, s.Min)
	}
	r := p.Rounding
	if r == "" {
		r = RoundHalfEven
	}
	return &Linear{sc: scale.Linear{Min: s.Min, Max: s.Max}, minW: p.MinWidth, maxW: p.MaxWidth, rounding: r}, nil
}

// Width 返回全宽（已取整）。
func (m *Linear) Width(v float64) float64 {
	t := m.sc.Map(v)
	return m.rounding.apply((m.maxW-m.minW)*t + m.minW)
}

func (m *Linear) HalfWidth(v float64) float64 { return m.Width(v) / 2 }

// Classify: 线性模式无类。
func (m *Linear) Classify(float64) (int, bool) { return 0, false }
