package width

import (
	"fmt"

	"ribbonify/pkg/contract"
)

// Class: 分级表中的一行。
type Class struct {
	Index int     // 1..N
	Upper float64 // 上界（含）
	Width float64 // 全宽
}

// Stepped: 分级映射。类 i 的上界为 min + i·(range/N)，宽度为 min_w + i·((max_w-min_w)/N)。
// 偏移量取宽度的一半。
type Stepped struct {
	classes []Class
}

var _ contract.WidthMapper = (*Stepped)(nil)

// NewStepped 根据汇总与参数构造分级表。
func NewStepped(s Summary, p Params) (*Stepped, error) {
	if p.Classes <= 0 {
		return nil, fmt.Errorf("%w: classes must be > 0, got %d", contract.ErrConfiguration, p.Classes)
	}
	if err := p.validateWidths(); err != nil {
		return nil, err
	}
	if s.Count == 0 {
		return nil, contract.ErrEmptyDataset
	}
	if s.Range() == 0 {
		return nil, fmt.Errorf("%w (value %g)", contract.ErrDegenerateRange, s.Min)
	}
	n := p.Classes
	step := s.Range() / float64(n)
	wstep := (p.MaxWidth - p.MinWidth) / float64(n)
	cs := make([]Class, n)
	for i := 1; i <= n; i++ {
		cs[i-1] = Class{Index: i, Upper: s.Min + float64(i)*step, Width: p.MinWidth + float64(i)*wstep}
	}
	return &Stepped{classes: cs}, nil
}

// Classes 返回分级表副本（用于日志报告）。
func (m *Stepped) Classes() []Class {
	out := make([]Class, len(m.classes))
	copy(out, m.classes)
	return out
}

// Classify 按序扫描，返回首个上界 >= v 的类；超出末类上界的值落入第 N 类。
func (m *Stepped) Classify(v float64) (int, bool) {
	for _, c := range m.classes {
		if v <= c.Upper {
			return c.Index, true
		}
	}
	return len(m.classes), true
}

// ClassWidth 返回类号对应的全宽；越界类号夹到 [1, N]。
func (m *Stepped) ClassWidth(class int) float64 {
	if class < 1 {
		class = 1
	}
	if class > len(m.classes) {
		class = len(m.classes)
	}
	return m.classes[class-1].Width
}

func (m *Stepped) HalfWidth(v float64) float64 {
	c, _ := m.Classify(v)
	return m.ClassWidth(c) / 2
}
