// Package pointset 汇集解码器共享的小工具：扩展名过滤、字段解析与排序。
package pointset

import (
	"cmp"
	"fmt"
	"math"
	"path"
	"slices"
	"strconv"
	"strings"

	"ribbonify/pkg/contract"
)

// ExtFilter: 小写扩展名集合；空集合接受一切。
type ExtFilter map[string]struct{}

// NewExtFilter 规范化扩展名（补齐前导点、转小写）；exts 为空时使用 defaults。
func NewExtFilter(exts, defaults []string) ExtFilter {
	if len(exts) == 0 {
		exts = defaults
	}
	f := make(ExtFilter, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		f[e] = struct{}{}
	}
	return f
}

// Accept: STDIN 总是接受；其余按扩展名匹配。
func (f ExtFilter) Accept(id contract.DatasetID) bool {
	if len(f) == 0 || id == "stdin" {
		return true
	}
	_, ok := f[strings.ToLower(path.Ext(string(id)))]
	return ok
}

// Float 解析数值字段；空串与非有限值视为非法。
func Float(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("non-finite value %q", s)
	}
	return v, nil
}

// Invalid 构造记录级错误（携带行号/要素序号）。
func Invalid(ordinal int64, field, raw string, err error) error {
	return &contract.PointError{PointID: ordinal,
		Err: fmt.Errorf("%w: field %q value %q: %v", contract.ErrRecordInvalid, field, raw, err)}
}

// SortByGroup 稳定排序：组键字典序，组内按 SortKey.Compare。
func SortByGroup(ps []contract.Point) {
	slices.SortStableFunc(ps, func(a, b contract.Point) int {
		if c := cmp.Compare(a.Group, b.Group); c != 0 {
			return c
		}
		return a.Sort.Compare(b.Sort)
	})
}
