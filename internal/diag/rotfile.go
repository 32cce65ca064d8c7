package diag

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// LogPrefix 为日志文件名前缀。
const LogPrefix = "ribbonify"

// RotatingFile 将日志行写入指定目录，并按文件大小轮转。
// - 当前文件固定名：ribbonify-current.txt
// - 轮转：size+len(line) 超过 maxBytes 时，当前文件改名为 ribbonify-<UTC 时间戳>.txt，再新建 current。
type RotatingFile struct {
	dir      string
	maxBytes int64
	mu       sync.Mutex
	f        *os.File
	curSize  int64
	rotated  int
}

func NewRotatingFile(dir string, maxBytes int64) *RotatingFile {
	if maxBytes <= 0 {
		maxBytes = 10 * 1024 * 1024
	}
	return &RotatingFile{dir: dir, maxBytes: maxBytes}
}

// CurrentPath 返回当前日志文件路径。
func (w *RotatingFile) CurrentPath() string {
	return filepath.Join(w.dir, LogPrefix+"-current.txt")
}

// rotations 返回本进程内发生的轮转次数。
func (w *RotatingFile) rotations() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.rotated
}

func (w *RotatingFile) WriteLine(b []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	lineLen := int64(len(b) + 1)
	if err := w.ensureOpen(); err != nil {
		return err
	}
	// 空文件不轮转，避免超长单行导致无限轮转
	if w.curSize > 0 && w.curSize+lineLen > w.maxBytes {
		if err := w.rotate(); err != nil {
			return err
		}
	}
	n, err := w.f.Write(append(b, '\n'))
	if err != nil {
		return err
	}
	w.curSize += int64(n)
	return nil
}

func (w *RotatingFile) ensureOpen() error {
	if w.f != nil {
		return nil
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(w.CurrentPath(), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	w.f = f
	if st, err := f.Stat(); err == nil {
		w.curSize = st.Size()
	} else {
		w.curSize = 0
	}
	return nil
}

func (w *RotatingFile) rotate() error {
	if w.f == nil {
		return w.ensureOpen()
	}
	oldPath := w.f.Name()
	_ = w.f.Close()
	w.f = nil
	// 纳秒精度时间戳，避免同秒覆盖
	ts := time.Now().UTC().Format("20060102-150405.000000000")
	rotated := filepath.Join(filepath.Dir(oldPath), fmt.Sprintf("%s-%s.txt", LogPrefix, ts))
	if err := os.Rename(oldPath, rotated); err != nil {
		return fmt.Errorf("rename rotated file: %w", err)
	}
	w.rotated++
	return w.ensureOpen()
}

// Close 关闭当前打开的文件句柄
func (w *RotatingFile) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.f != nil {
		err := w.f.Close()
		w.f = nil
		return err
	}
	return nil
}
