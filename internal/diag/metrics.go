package diag

import (
	"sort"
	"strings"
	"sync"
)

// 进程内指标：
// - op_total{comp,stage,result}
// - error_total{comp,code}
// - op_duration_ms{comp,stage}（累计毫秒）
var (
	metricsMu sync.Mutex
	opTotal   = map[string]int64{}
	errTotal  = map[string]int64{}
	durTotal  = map[string]int64{}
)

func key(parts ...string) string { return strings.Join(parts, "|") }

// IncOp 累加操作计数（result=success|error|skipped）。
func IncOp(comp, stage, result string) {
	metricsMu.Lock()
	opTotal[key(comp, stage, result)]++
	metricsMu.Unlock()
}

// IncError 按分类累加错误计数。
func IncError(comp, code string) {
	metricsMu.Lock()
	errTotal[key(comp, code)]++
	metricsMu.Unlock()
}

// ObserveDuration 记录阶段耗时（毫秒）。
func ObserveDuration(comp, stage string, durMS int64) {
	metricsMu.Lock()
	durTotal[key(comp, stage)] += durMS
	metricsMu.Unlock()
}

// Sample 为一条指标读数。
type Sample struct {
	Name   string
	Labels []string
	Value  int64
}

// Snapshot 返回当前全部指标，按名称与标签排序。
func Snapshot() []Sample {
	metricsMu.Lock()
	defer metricsMu.Unlock()
	var out []Sample
	add := func(name string, m map[string]int64) {
		for k, v := range m {
			out = append(out, Sample{Name: name, Labels: strings.Split(k, "|"), Value: v})
		}
	}
	add("op_total", opTotal)
	add("error_total", errTotal)
	add("op_duration_ms", durTotal)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return key(out[i].Labels...) < key(out[j].Labels...)
	})
	return out
}

// Value 读取单个计数；不存在时为 0。
func Value(name string, labels ...string) int64 {
	metricsMu.Lock()
	defer metricsMu.Unlock()
	switch name {
	case "op_total":
		return opTotal[key(labels...)]
	case "error_total":
		return errTotal[key(labels...)]
	case "op_duration_ms":
		return durTotal[key(labels...)]
	}
	return 0
}

// ResetMetrics 清空全部计数（测试使用）。
func ResetMetrics() {
	metricsMu.Lock()
	opTotal = map[string]int64{}
	errTotal = map[string]int64{}
	durTotal = map[string]int64{}
	metricsMu.Unlock()
}
