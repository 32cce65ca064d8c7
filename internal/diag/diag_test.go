package diag

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"ribbonify/pkg/contract"
)

// UT-DIAG-01: 日志轮转写入
func TestRotatingFile(t *testing.T) {
	dir := t.TempDir()
	w := NewRotatingFile(dir, 30)
	if err := w.WriteLine([]byte("first line that is very long")); err != nil {
		t.Fatalf("写入失败: %v", err)
	}
	if err := w.WriteLine([]byte("second")); err != nil {
		t.Fatalf("第二次写入失败: %v", err)
	}
	files, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("读取目录失败: %v", err)
	}
	if len(files) < 2 {
		t.Fatalf("应存在轮转文件, got %d", len(files))
	}
	if w.rotations() != 1 {
		t.Fatalf("rotations = %d", w.rotations())
	}
	_ = w.Close()
}

func TestRotatingFileRotateFiles(t *testing.T) {
	dir := t.TempDir()
	w := NewRotatingFile(dir, 10)
	defer w.Close()
	for i := 0; i < 5; i++ {
		if err := w.WriteLine([]byte("xxxxxxxxxxxxxxxxxx")); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	ents, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	hasCurrent, hasRotated := false, false
	for _, e := range ents {
		if e.Name() == "ribbonify-current.txt" {
			hasCurrent = true
		}
		if strings.HasPrefix(e.Name(), "ribbonify-") && strings.HasSuffix(e.Name(), ".txt") && !strings.Contains(e.Name(), "current") {
			hasRotated = true
		}
	}
	if !hasCurrent || !hasRotated {
		t.Fatalf("expect both current and rotated files, got current=%v rotated=%v", hasCurrent, hasRotated)
	}
}

// 超长单行写入空文件时不轮转
func TestRotatingFileOversizedLine(t *testing.T) {
	dir := t.TempDir()
	w := NewRotatingFile(dir, 4)
	defer w.Close()
	if err := w.WriteLine([]byte("0123456789")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if w.rotations() != 0 {
		t.Fatalf("empty file should not rotate")
	}
}

func TestRotatingFileDefaultsAndRotateNoOpen(t *testing.T) {
	dir := t.TempDir()
	w := NewRotatingFile(dir, 0)
	defer w.Close()
	if err := w.WriteLine([]byte("a")); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = w.f.Close()
	w.f = nil
	if err := w.rotate(); err != nil {
		t.Fatalf("rotate: %v", err)
	}
}

// UT-DIAG-02: 指标计数
func TestMetrics(t *testing.T) {
	ResetMetrics()
	IncOp("ribbon", "segment", "success")
	IncOp("ribbon", "segment", "success")
	IncError("ribbon", string(CodeGeometry))
	ObserveDuration("pipeline", "dataset", 7)
	ObserveDuration("pipeline", "dataset", 3)

	if v := Value("op_total", "ribbon", "segment", "success"); v != 2 {
		t.Fatalf("op_total = %d", v)
	}
	if v := Value("error_total", "ribbon", "geometry"); v != 1 {
		t.Fatalf("error_total = %d", v)
	}
	if v := Value("op_duration_ms", "pipeline", "dataset"); v != 10 {
		t.Fatalf("op_duration_ms = %d", v)
	}
	if Value("nope") != 0 {
		t.Fatalf("unknown metric should be 0")
	}
	snap := Snapshot()
	if len(snap) != 3 {
		t.Fatalf("snapshot len = %d", len(snap))
	}
	if snap[0].Name != "error_total" || snap[2].Name != "op_total" {
		t.Fatalf("snapshot order: %+v", snap)
	}
	ResetMetrics()
	if len(Snapshot()) != 0 {
		t.Fatalf("reset failed")
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		want Code
	}{
		{nil, CodeUnknown},
		{context.Canceled, CodeCancel},
		{fmt.Errorf("wrap: %w", context.DeadlineExceeded), CodeCancel},
		{contract.ErrDegenerateRange, CodeConfig},
		{contract.ErrConfiguration, CodeConfig},
		{contract.ErrDegenerateGroup, CodeDegenerate},
		{contract.ErrEmptyDataset, CodeDegenerate},
		{&contract.PointError{PointID: 3, Err: contract.ErrGeometry}, CodeGeometry},
		{contract.ErrSinkWrite, CodeSink},
		{contract.ErrOrderInvalid, CodeOrder},
		{contract.ErrRecordInvalid, CodeInput},
		{contract.ErrPathInvalid, CodeIO},
		{&fs.PathError{Op: "open", Path: "/", Err: errors.New("x")}, CodeIO},
		{errors.New("other"), CodeUnknown},
	}
	for _, c := range cases {
		if got := Classify(c.err); got != c.want {
			t.Fatalf("Classify(%v) = %s, want %s", c.err, got, c.want)
		}
	}
}

func TestRecoverable(t *testing.T) {
	if !Recoverable(contract.ErrGeometry) || !Recoverable(contract.ErrSinkWrite) || !Recoverable(contract.ErrDegenerateGroup) {
		t.Fatalf("per-item errors should be recoverable")
	}
	if Recoverable(contract.ErrConfiguration) || Recoverable(context.Canceled) {
		t.Fatalf("config/cancel must abort")
	}
}

func decodeEvents(t *testing.T, b []byte) []Event {
	t.Helper()
	var out []Event
	for _, line := range bytes.Split(bytes.TrimSpace(b), []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		var ev Event
		if err := json.Unmarshal(line, &ev); err != nil {
			t.Fatalf("bad event %q: %v", line, err)
		}
		out = append(out, ev)
	}
	return out
}

func TestLoggerEvents(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriterLogger("corr", "debug", &buf)
	timer := l.StartWith("pipeline", "dataset", Ref{Dataset: "a.csv"})
	timer.Finish("ok", 4)
	l.WarnWith("ribbon", string(CodeGeometry), "skip polygon", At("a.csv", "A", 7))
	l.ErrorWithKV("sink", string(CodeSink), "insert failed", nil, Ref{}, map[string]string{"table": "t"})
	l.DebugStart("width", "classes", Ref{Dataset: "a.csv"}, map[string]string{"n": "5"})

	evs := decodeEvents(t, buf.Bytes())
	if len(evs) != 5 {
		t.Fatalf("events = %d", len(evs))
	}
	if evs[0].Stage != "start" || evs[0].Dataset != "a.csv" || evs[0].CorrID != "corr" {
		t.Fatalf("start event: %+v", evs[0])
	}
	if evs[1].Stage != "finish" || evs[1].Count != 4 || evs[1].Dataset != "a.csv" {
		t.Fatalf("finish event: %+v", evs[1])
	}
	if evs[2].Level != "warn" || evs[2].PointID == nil || *evs[2].PointID != 7 || evs[2].Group != "A" {
		t.Fatalf("warn event: %+v", evs[2])
	}
	if evs[3].Level != "error" || evs[3].KV["table"] != "t" {
		t.Fatalf("error event: %+v", evs[3])
	}
	if evs[4].Level != "debug" || evs[4].KV["n"] != "5" {
		t.Fatalf("debug event: %+v", evs[4])
	}
}

func TestLoggerLevelsAndFilter(t *testing.T) {
	if Warn.String() != "warn" {
		t.Fatalf("warn string")
	}
	var unknown Level = 12345
	if unknown.String() != "info" {
		t.Fatalf("default string")
	}
	if ParseLevel(" DEBUG ") != Debug || ParseLevel("x") != Info {
		t.Fatalf("parse level")
	}
	var buf bytes.Buffer
	l := NewWriterLogger("c", "warn", &buf)
	l.DebugStart("comp", "msg", Ref{}, nil)
	l.Start("comp", "msg").Finish("done", 0)
	if buf.Len() != 0 {
		t.Fatalf("info/debug should be filtered at warn: %q", buf.String())
	}
	start := time.Now().Add(-10 * time.Millisecond)
	l.Error("comp", "code", "msg", &start)
	if !l.Enabled(Error) || l.Enabled(Info) {
		t.Fatalf("enabled mismatch")
	}
	evs := decodeEvents(t, buf.Bytes())
	if len(evs) != 1 || evs[0].DurMS < 10 {
		t.Fatalf("error event: %+v", evs)
	}
	var tnil *Timer
	tnil.Finish("x", 0)
	(&Timer{}).Finish("x", 0)
	var lnil *Logger
	lnil.Warn("c", "x", "y")
}

func TestLoggerWithSink(t *testing.T) {
	dir := t.TempDir()
	l := NewLoggerDir("corr", "info", dir)
	l.Start("comp", "msg").Finish("ok", 1)
	l.Warn("comp", "geometry", "msg")
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	b, err := os.ReadFile(filepath.Join(dir, "ribbonify-current.txt"))
	if err != nil {
		t.Fatalf("log file not found: %v", err)
	}
	if n := len(decodeEvents(t, b)); n != 3 {
		t.Fatalf("events in file = %d", n)
	}
}

func TestNowUTC(t *testing.T) {
	if _, err := time.Parse(time.RFC3339, NowUTC()); err != nil {
		t.Fatalf("NowUTC: %v", err)
	}
}

// UT-DIAG-03: 终端（非 TTY）关键节点输出
func TestTerminalNonTTYFlow(t *testing.T) {
	var sb strings.Builder
	term := NewTerminal(&sb, true)
	if term.isTTY {
		t.Fatalf("expect non-tty")
	}
	term.RunStart(4, "geojson")
	term.DatasetStart("data/tracks.csv", 12)
	term.DatasetProgress(6, 12, 0)
	term.DatasetFinish(true, 40, 5100*time.Millisecond)
	term.RunFinish(true, 41300*time.Millisecond)

	out := sb.String()
	if strings.Contains(out, "\r") {
		t.Fatalf("non-tty should not contain carriage returns: %q", out)
	}
	for _, want := range []string{
		"[run] 并发=4 | sink=geojson",
		"[dataset] tracks.csv | 轨迹=12",
		"[done] tracks.csv | 多边形 40 | 总用时 5.1s",
		"[ok] 全部完成 | 数据集 1 | 多边形 40 | 总用时 41.3s",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in %q", want, out)
		}
	}
}

// UT-DIAG-04: 终端（TTY）进度节流与清尾
func TestTerminalTTYProgressThrottleAndClear(t *testing.T) {
	var sb strings.Builder
	term := NewTerminal(&sb, true)
	term.isTTY = true
	term.RunStart(2, "csv")
	term.DatasetStart("/a/b/c/longfilename.csv", 3)

	term.DatasetProgress(1, 3, 0)
	first := sb.String()
	if !strings.Contains(first, "\r[") {
		t.Fatalf("first progress should be inline with CR: %q", first)
	}
	term.DatasetProgress(2, 3, 1)
	if sb.String() != first {
		t.Fatalf("second progress should be throttled")
	}
	time.Sleep(120 * time.Millisecond)
	term.DatasetProgress(2, 3, 1)
	if len(sb.String()) <= len(first) {
		t.Fatalf("third progress should append output")
	}
	term.DatasetFinish(false, 0, 2200*time.Millisecond)
	final := sb.String()
	idx := strings.LastIndex(final, "[fail]")
	if idx < 0 {
		t.Fatalf("finish should include fail line: %q", final)
	}
	seg := final[:idx]
	cr := strings.LastIndex(seg, "\r")
	if cr < 0 || !strings.Contains(seg[cr+1:], " ") {
		t.Fatalf("clear tail should write spaces after CR: %q", seg)
	}
}

// UT-DIAG-05: 写失败降级为禁用态
type flakyWriter struct{ fail bool }

func (w *flakyWriter) Write(p []byte) (int, error) {
	if w.fail {
		w.fail = false
		return 0, fmt.Errorf("boom")
	}
	return len(p), nil
}

func TestTerminalDisableOnWriteError(t *testing.T) {
	fw := &flakyWriter{fail: true}
	term := NewTerminal(fw, true)
	term.RunStart(1, "x")
	if term.enabled {
		t.Fatalf("terminal should be disabled after write error")
	}
	term.DatasetStart("a", 0)
	term.DatasetProgress(0, 0, 0)
	term.DatasetFinish(true, 0, 0)
	term.RunFinish(true, 0)
}

func TestTerminalInlineWriteError(t *testing.T) {
	term := NewTerminal(&flakyWriter{fail: true}, true)
	term.isTTY = true
	term.DatasetStart("f.csv", 2)
	term.DatasetProgress(1, 2, 0)
	if term.enabled {
		t.Fatalf("terminal should be disabled after inline error")
	}
}

func TestNewTerminalCIEnv(t *testing.T) {
	t.Setenv("CI", "true")
	term := NewTerminal(os.Stderr, true)
	if term.isTTY {
		t.Fatalf("CI env should force non-tty")
	}
}

func TestTerminalNilReceiverNoop(t *testing.T) {
	var tn *Terminal
	tn.RunStart(1, "x")
	tn.DatasetStart("a", 1)
	tn.DatasetProgress(0, 0, 0)
	tn.DatasetFinish(true, 0, 0)
	tn.RunFinish(true, 0)
}

// UT-DIAG-06: 工具函数
func TestHelpers(t *testing.T) {
	if got := shortenBase("/x/y/这是一个很长的文件名用于截断测试abcdefghijk.csv", 10); visLen(got) != 10 || !strings.HasSuffix(got, "…") {
		t.Fatalf("shortenBase = %q", got)
	}
	if shortenBase("x", 0) != "" {
		t.Fatalf("shortenBase max<=0 should be empty")
	}
	if safe("a\nb\rc") != "a b c" {
		t.Fatalf("safe replace failed")
	}
	if formatDur(0) != "0ms" || formatDur(1500*time.Millisecond) != "1.5s" {
		t.Fatalf("formatDur")
	}
	SetTerminal(nil)
	if GetTerminal() != nil {
		t.Fatalf("expected nil terminal")
	}
	SetTerminal(NewTerminal(os.Stderr, false))
	if GetTerminal() == nil {
		t.Fatalf("expected non-nil terminal")
	}
	SetTerminal(nil)
}
