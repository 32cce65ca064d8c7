package diag

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
)

// Terminal: 终端信息提示（非日志）。
// - 输出到提供的 io.Writer（默认 stderr）。
// - TTY: 单行 \r 覆盖；非 TTY: 关键节点分行打印。
// - 并发安全；写失败后进入禁用态为 no-op。
type Terminal struct {
	w       io.Writer
	enabled bool
	isTTY   bool

	concurrency  int
	sink         string
	datasetsDone int
	segments     int64
	runStart     time.Time

	// 当前数据集
	curDataset  string
	tracksTotal int
	tracksDone  int
	errCount    int

	lastLen   int
	lastFlush time.Time

	mu sync.Mutex
}

var (
	termMu sync.RWMutex
	term   *Terminal
)

// SetTerminal 设置全局终端指针（nil 可清除）。
func SetTerminal(t *Terminal) { termMu.Lock(); term = t; termMu.Unlock() }

// GetTerminal 返回全局终端（可能为 nil）。
func GetTerminal() *Terminal { termMu.RLock(); defer termMu.RUnlock(); return term }

// NewTerminal 构造终端提示器。enabled=false 时总是 no-op。
func NewTerminal(w io.Writer, enabled bool) *Terminal {
	if w == nil {
		w = os.Stderr
	}
	t := &Terminal{w: w, enabled: enabled}
	// CI 环境视为非 TTY
	if os.Getenv("CI") == "" {
		if f, ok := w.(*os.File); ok {
			fd := f.Fd()
			t.isTTY = isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
		}
	}
	return t
}

// RunStart 记录运行上下文（并发、输出端）。
func (t *Terminal) RunStart(concurrency int, sink string) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.enabled {
		return
	}
	t.concurrency = concurrency
	t.sink = sink
	t.datasetsDone = 0
	t.segments = 0
	t.runStart = time.Now()
	t.println(fmt.Sprintf("[run] 并发=%d | sink=%s", concurrency, safe(sink)))
}

// DatasetStart 标记当前数据集与轨迹数。
func (t *Terminal) DatasetStart(id string, tracks int) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.enabled {
		return
	}
	t.curDataset = shortenBase(id, 48)
	t.tracksTotal = tracks
	t.tracksDone = 0
	t.errCount = 0
	if !t.isTTY {
		t.println(fmt.Sprintf("[dataset] %s | 轨迹=%d", t.curDataset, tracks))
	}
}

// DatasetProgress 周期性进度（≥100ms 节流，仅 TTY）。
func (t *Terminal) DatasetProgress(done, total, errs int) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.enabled || !t.isTTY {
		return
	}
	t.tracksDone = done
	t.tracksTotal = total
	t.errCount = errs
	now := time.Now()
	if now.Sub(t.lastFlush) < 100*time.Millisecond {
		return
	}
	t.lastFlush = now
	t.printInline(fmt.Sprintf("[dataset] %s | 进度 %d/%d | 告警 %d | 并发 %d | 用时 %s",
		t.curDataset, t.tracksDone, t.tracksTotal, t.errCount, t.concurrency, formatSince(t.runStart)))
}

// DatasetFinish 完成当前数据集（立即刷新并换行）。
func (t *Terminal) DatasetFinish(ok bool, segments int64, dur time.Duration) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.enabled {
		return
	}
	t.datasetsDone++
	t.segments += segments
	status := "done"
	if !ok {
		status = "fail"
	}
	if t.isTTY && t.lastLen > 0 {
		t.printInline("")
	}
	t.println(fmt.Sprintf("[%s] %s | 多边形 %d | 总用时 %s",
		status, t.curDataset, segments, formatDur(dur)))
}

// RunFinish 结束总览。
func (t *Terminal) RunFinish(ok bool, dur time.Duration) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.enabled {
		return
	}
	tag := "ok"
	if !ok {
		tag = "fail"
	}
	t.println(fmt.Sprintf("[%s] 全部完成 | 数据集 %d | 多边形 %d | 总用时 %s",
		tag, t.datasetsDone, t.segments, formatDur(dur)))
}

func (t *Terminal) println(s string) {
	if t == nil || !t.enabled {
		return
	}
	if _, err := io.WriteString(t.w, s+"\n"); err != nil {
		t.enabled = false
	}
	t.lastLen = 0
}

func (t *Terminal) printInline(s string) {
	if t == nil || !t.enabled {
		return
	}
	// 新行比旧行短时以空格覆盖残留
	pad := 0
	if l := visLen(s); t.lastLen > l {
		pad = t.lastLen - l
	}
	var b strings.Builder
	b.WriteByte('\r')
	b.WriteString(s)
	if pad > 0 {
		b.WriteString(strings.Repeat(" ", pad))
	}
	if _, err := io.WriteString(t.w, b.String()); err != nil {
		t.enabled = false
		return
	}
	t.lastLen = visLen(s)
}

// shortenBase 取基名并按可见宽度截断（尾部省略号）。
func shortenBase(s string, max int) string {
	if max <= 0 {
		return ""
	}
	base := filepath.Base(strings.TrimSpace(s))
	if base == "" {
		return ""
	}
	if visLen(base) <= max {
		return base
	}
	cut := max - 1
	if cut < 1 {
		cut = 1
	}
	rs := []rune(base)
	if len(rs) <= cut {
		return string(rs)
	}
	return string(rs[:cut]) + "…"
}

func visLen(s string) int { return len([]rune(s)) }

func safe(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", " ")
	return s
}

func formatSince(t0 time.Time) string { return formatDur(time.Since(t0)) }

func formatDur(d time.Duration) string {
	if d < time.Second {
		ms := d.Milliseconds()
		if ms <= 0 {
			ms = 0
		}
		return fmt.Sprintf("%dms", ms)
	}
	s := float64(d.Milliseconds()) / 1000.0
	return fmt.Sprintf("%.1fs", s)
}
