package diag

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// 级别定义
type Level int

const (
	Debug Level = iota
	Info
	Warn
	Error
)

func (l Level) String() string {
	switch l {
	case Debug:
		return "debug"
	case Info:
		return "info"
	case Warn:
		return "warn"
	case Error:
		return "error"
	default:
		return "info"
	}
}

// DefaultLogDir 为默认日志目录（相对当前工作目录）。
const DefaultLogDir = "logs"

// Logger 为最小结构化日志器：单行 JSON 写入轮转文件；sink 为空时退回 stderr。
type Logger struct {
	corrID string
	level  Level
	sink   *RotatingFile
	out    io.Writer
	mu     sync.Mutex
}

// NewLogger 通过配置的 level 初始化，日志写入 logs/，10 MiB 轮转。
func NewLogger(corrID, level string) *Logger {
	return NewLoggerDir(corrID, level, DefaultLogDir)
}

// NewLoggerDir 同 NewLogger，但允许指定日志目录。
func NewLoggerDir(corrID, level, dir string) *Logger {
	lvl := ParseLevel(strings.TrimSpace(level))
	sink := NewRotatingFile(dir, 10*1024*1024)
	return &Logger{corrID: corrID, level: lvl, sink: sink, out: os.Stderr}
}

// NewWriterLogger 直接写入 w（测试与 --status 场景使用）。
func NewWriterLogger(corrID, level string, w io.Writer) *Logger {
	if w == nil {
		w = os.Stderr
	}
	return &Logger{corrID: corrID, level: ParseLevel(level), out: w}
}

// Nop 返回丢弃所有事件的日志器。
func Nop() *Logger { return NewWriterLogger("", "error", io.Discard) }

// ParseLevel 解析级别字符串，未知值按 info 处理。
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return Debug
	case "warn":
		return Warn
	case "error":
		return Error
	default:
		return Info
	}
}

// Enabled 报告给定级别是否会被输出。
func (l *Logger) Enabled(lv Level) bool { return l != nil && lv >= l.level }

// Close 关闭底层日志文件。
func (l *Logger) Close() error {
	if l == nil || l.sink == nil {
		return nil
	}
	return l.sink.Close()
}

// Event 为标准事件结构。
type Event struct {
	Level   string            `json:"level"`
	TS      string            `json:"ts"`
	CorrID  string            `json:"corr_id"`
	Comp    string            `json:"comp"`
	Stage   string            `json:"stage"` // start|finish|warn|error
	Code    string            `json:"code,omitempty"`
	DurMS   int64             `json:"dur_ms,omitempty"`
	Count   int64             `json:"count,omitempty"`
	Dataset string            `json:"dataset,omitempty"`
	Group   string            `json:"group,omitempty"`
	PointID *int64            `json:"point_id,omitempty"`
	Msg     string            `json:"msg"`
	KV      map[string]string `json:"kv,omitempty"`
}

// Ref 定位一条事件涉及的数据：数据集、轨迹与源点。
type Ref struct {
	Dataset string
	Group   string
	PointID *int64
}

// At 构造带源点的 Ref。
func At(dataset, group string, pointID int64) Ref {
	return Ref{Dataset: dataset, Group: group, PointID: &pointID}
}

func (r Ref) apply(ev *Event) {
	ev.Dataset = r.Dataset
	ev.Group = r.Group
	ev.PointID = r.PointID
}

// log 以最小开销写出事件，遵循级别。
func (l *Logger) log(lv Level, ev Event) {
	if l == nil || lv < l.level {
		return
	}
	ev.Level = lv.String()
	ev.TS = NowUTC()
	ev.CorrID = l.corrID
	b, _ := json.Marshal(ev)
	l.mu.Lock()
	defer l.mu.Unlock()
	out := l.out
	if out == nil {
		out = os.Stderr
	}
	if l.sink == nil {
		_, _ = out.Write(append(b, '\n'))
		return
	}
	if err := l.sink.WriteLine(b); err != nil {
		fmt.Fprintf(os.Stderr, "logger sink error: %v\n", err)
		_, _ = os.Stderr.Write(append(b, '\n'))
	}
}

// Start 记录 start 事件；返回计时器用于 Finish。
func (l *Logger) Start(comp, msg string) *Timer {
	l.log(Info, Event{Comp: comp, Stage: "start", Msg: msg})
	return &Timer{l: l, comp: comp, t0: time.Now()}
}

// StartWith 记录带定位信息的 start。
func (l *Logger) StartWith(comp, msg string, ref Ref) *Timer {
	ev := Event{Comp: comp, Stage: "start", Msg: msg}
	ref.apply(&ev)
	l.log(Info, ev)
	return &Timer{l: l, comp: comp, ref: ref, t0: time.Now()}
}

// StartWithKV 记录带定位信息与键值的 start。
func (l *Logger) StartWithKV(comp, msg string, ref Ref, kv map[string]string) *Timer {
	ev := Event{Comp: comp, Stage: "start", Msg: msg, KV: kv}
	ref.apply(&ev)
	l.log(Info, ev)
	return &Timer{l: l, comp: comp, ref: ref, t0: time.Now()}
}

// Warn 记录可恢复问题（跳过的轨迹、失败的多边形、被拒绝的记录）。
func (l *Logger) Warn(comp, code, msg string) {
	l.log(Warn, Event{Comp: comp, Stage: "warn", Code: code, Msg: msg})
}

// WarnWith 同 Warn，附带定位信息。
func (l *Logger) WarnWith(comp, code, msg string, ref Ref) {
	ev := Event{Comp: comp, Stage: "warn", Code: code, Msg: msg}
	ref.apply(&ev)
	l.log(Warn, ev)
}

// Error 记录 error 事件。
func (l *Logger) Error(comp, code, msg string, durSince *time.Time) {
	l.ErrorWithKV(comp, code, msg, durSince, Ref{}, nil)
}

// ErrorWith 支持定位信息。
func (l *Logger) ErrorWith(comp, code, msg string, durSince *time.Time, ref Ref) {
	l.ErrorWithKV(comp, code, msg, durSince, ref, nil)
}

// ErrorWithKV 支持附带键值对（例如表名、文件路径）。
func (l *Logger) ErrorWithKV(comp, code, msg string, durSince *time.Time, ref Ref, kv map[string]string) {
	var dur int64
	if durSince != nil {
		dur = time.Since(*durSince).Milliseconds()
	}
	ev := Event{Comp: comp, Stage: "error", Code: code, DurMS: dur, Msg: msg, KV: kv}
	ref.apply(&ev)
	l.log(Error, ev)
}

// Timer 用于 start→finish 计时。
type Timer struct {
	l    *Logger
	comp string
	ref  Ref
	t0   time.Time
}

// Finish 记录 finish；可选 count。
func (t *Timer) Finish(msg string, count int64) {
	if t == nil || t.l == nil {
		return
	}
	ev := Event{Comp: t.comp, Stage: "finish", DurMS: time.Since(t.t0).Milliseconds(), Count: count, Msg: msg}
	t.ref.apply(&ev)
	t.l.log(Info, ev)
	ObserveDuration(t.comp, "finish", ev.DurMS)
}

// DebugStart 输出调试级别的 start 类事件（仅在 level=debug 时生效）。
func (l *Logger) DebugStart(comp, msg string, ref Ref, kv map[string]string) {
	ev := Event{Comp: comp, Stage: "start", Msg: msg, KV: kv}
	ref.apply(&ev)
	l.log(Debug, ev)
}
