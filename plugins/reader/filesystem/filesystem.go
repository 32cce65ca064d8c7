package filesystem

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"ribbonify/pkg/contract"
)

// Options 为 FileSystem Reader 的可选配置。
type Options struct {
	// BufSize 为读缓冲区大小（字节）。默认 64KiB。
	BufSize int `json:"buf_size"`
	// ExcludeDirNames: 在扫描目录时跳过这些目录名（基名完全匹配，大小写不敏感）。
	// 仅影响目录递归，不影响单文件 root。
	ExcludeDirNames []string `json:"exclude_dir_names"`
	// Extensions: 目录递归时仅接收这些扩展名（如 ".csv"、".geojson"），为空不过滤。
	// 显式给出的单文件 root 不受限制。
	Extensions []string `json:"extensions"`
}

// FileSystem 实现基于文件系统与 STDIN 的 Reader。每个常规文件即一个数据集。
type FileSystem struct {
	bufSize    int
	excludeDir map[string]struct{}
	exts       map[string]struct{}
}

func lowerSet(xs []string, norm func(string) string) map[string]struct{} {
	m := make(map[string]struct{}, len(xs))
	for _, x := range xs {
		x = strings.TrimSpace(x)
		if x == "" {
			continue
		}
		m[norm(strings.ToLower(x))] = struct{}{}
	}
	return m
}

// New 创建 FileSystem Reader。
func New(opts *Options) *FileSystem {
	const defaultBuf = 64 * 1024
	if opts == nil {
		opts = &Options{}
	}
	b := defaultBuf
	if opts.BufSize > 0 {
		b = opts.BufSize
	}
	return &FileSystem{
		bufSize:    b,
		excludeDir: lowerSet(opts.ExcludeDirNames, func(s string) string { return strings.Trim(s, `/\`) }),
		exts: lowerSet(opts.Extensions, func(s string) string {
			if !strings.HasPrefix(s, ".") {
				return "." + s
			}
			return s
		}),
	}
}

// Iterate 遍历 roots，按稳定顺序对每个常规文件调用 yield。
// roots 为空或仅包含 "-" 时读取 STDIN（DatasetID 为 "stdin"）。
func (r *FileSystem) Iterate(ctx context.Context, roots []string, yield func(id contract.DatasetID, rc io.ReadCloser) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(roots) == 0 || (len(roots) == 1 && roots[0] == "-") {
		return yield(contract.DatasetID("stdin"), newBufferedCloser(os.Stdin, r.bufSize))
	}
	for _, s := range roots {
		if s == "-" {
			return errors.New("stdin '-' cannot be mixed with other roots")
		}
	}
	for _, root := range roots {
		if err := r.iterateOne(ctx, root, yield); err != nil {
			return err
		}
	}
	return nil
}

func (r *FileSystem) iterateOne(ctx context.Context, root string, yield func(contract.DatasetID, io.ReadCloser) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	info, err := os.Lstat(root)
	if err != nil {
		return err
	}
	// 符号链接仅跟随到常规文件；目录链接忽略
	if info.Mode()&os.ModeSymlink != 0 {
		t, err := os.Stat(root)
		if err != nil {
			return err
		}
		if !t.Mode().IsRegular() {
			return nil
		}
		return r.open(root, yield)
	}
	if info.IsDir() {
		return r.walkDir(ctx, root, yield)
	}
	if !info.Mode().IsRegular() {
		return nil
	}
	return r.open(root, yield)
}

func (r *FileSystem) walkDir(ctx context.Context, dir string, yield func(contract.DatasetID, io.ReadCloser) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	// 稳定顺序：字典序；先目录后文件
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !e.IsDir() {
			continue
		}
		if _, skip := r.excludeDir[strings.ToLower(e.Name())]; skip {
			continue
		}
		if err := r.walkDir(ctx, filepath.Join(dir, e.Name()), yield); err != nil {
			return err
		}
	}
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if e.IsDir() || !r.accept(e.Name()) {
			continue
		}
		p := filepath.Join(dir, e.Name())
		if e.Type()&os.ModeSymlink != 0 {
			t, err := os.Stat(p)
			if err != nil {
				return err
			}
			if !t.Mode().IsRegular() {
				continue
			}
		} else if !e.Type().IsRegular() {
			// 设备、FIFO 等
			continue
		}
		if err := r.open(p, yield); err != nil {
			return err
		}
	}
	return nil
}

func (r *FileSystem) accept(name string) bool {
	if len(r.exts) == 0 {
		return true
	}
	_, ok := r.exts[strings.ToLower(filepath.Ext(name))]
	return ok
}

func (r *FileSystem) open(p string, yield func(contract.DatasetID, io.ReadCloser) error) error {
	f, err := os.Open(p)
	if err != nil {
		return err
	}
	brc := newBufferedCloser(f, r.bufSize)
	if err := yield(contract.NormalizeDatasetID(p), brc); err != nil {
		_ = brc.Close()
		return err
	}
	return nil
}

// bufferedCloser 将 bufio.Reader 与底层 Closer 组合为 ReadCloser。
type bufferedCloser struct {
	*bufio.Reader
	c io.Closer
}

func newBufferedCloser(c io.ReadCloser, bufSize int) *bufferedCloser {
	if bufSize <= 0 {
		bufSize = 64 * 1024
	}
	return &bufferedCloser{Reader: bufio.NewReaderSize(c, bufSize), c: c}
}

func (b *bufferedCloser) Close() error { return b.c.Close() }
