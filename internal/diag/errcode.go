package diag

import (
	"context"
	"errors"
	"io/fs"
	"time"

	"ribbonify/pkg/contract"
)

// Code 是最小错误分类代码。
// 仅用于日志/指标汇总，与退出码解耦。
type Code string

const (
	CodeUnknown    Code = "unknown"
	CodeConfig     Code = "config"
	CodeDegenerate Code = "degenerate"
	CodeGeometry   Code = "geometry"
	CodeSink       Code = "sink"
	CodeOrder      Code = "order"
	CodeInput      Code = "input"
	CodeIO         Code = "io"
	CodeCancel     Code = "cancel"
)

// Classify 将错误归为最小分类。
// 仅依赖哨兵错误与标准库错误类型，不做字符串匹配。
func Classify(err error) Code {
	if err == nil {
		return CodeUnknown
	}
	// 取消/超时优先
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return CodeCancel
	}
	switch {
	case errors.Is(err, contract.ErrConfiguration):
		return CodeConfig
	case errors.Is(err, contract.ErrDegenerateGroup), errors.Is(err, contract.ErrEmptyDataset):
		return CodeDegenerate
	case errors.Is(err, contract.ErrGeometry):
		return CodeGeometry
	case errors.Is(err, contract.ErrSinkWrite):
		return CodeSink
	case errors.Is(err, contract.ErrOrderInvalid):
		return CodeOrder
	case errors.Is(err, contract.ErrRecordInvalid):
		return CodeInput
	case errors.Is(err, contract.ErrPathInvalid):
		return CodeIO
	}
	var perr *fs.PathError
	if errors.As(err, &perr) {
		return CodeIO
	}
	return CodeUnknown
}

// Recoverable 报告该错误是否只影响单个多边形/轨迹/记录，运行可继续。
func Recoverable(err error) bool {
	switch Classify(err) {
	case CodeDegenerate, CodeGeometry, CodeSink:
		return true
	default:
		return false
	}
}

// NowUTC 返回 RFC3339 UTC 时间字符串（用于结构化日志字段 ts）。
func NowUTC() string { return time.Now().UTC().Format(time.RFC3339) }
