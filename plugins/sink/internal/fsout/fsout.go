// Package fsout 为文件类 Sink 提供输出路径映射与原子落盘。
package fsout

import (
	"bufio"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"ribbonify/pkg/contract"
)

// Options: 文件输出的公共选项（嵌入各 Sink 的 Options）。
type Options struct {
	// OutputDir: 输出根目录（必需）。
	OutputDir string `json:"output_dir"`
	// Atomic: 同目录临时文件 + rename。nil 时默认 true；显式 false 直接覆盖写。
	Atomic *bool `json:"atomic,omitempty"`
	// Flat: 仅保留文件名，不保留目录层级。nil 时默认 true。
	Flat *bool `json:"flat,omitempty"`
	// PermFile/PermDir: 为 0 表示使用默认 0644/0755。
	PermFile os.FileMode `json:"perm_file,omitempty"`
	PermDir  os.FileMode `json:"perm_dir,omitempty"`
	// BufSize: 写缓冲区大小；<=0 使用 64KiB。
	BufSize int `json:"buf_size,omitempty"`
}

// Dir: 已校验的输出根目录。
type Dir struct {
	root    string
	atomic  bool
	flat    bool
	permF   os.FileMode
	permD   os.FileMode
	bufSize int
}

// New 校验选项并返回 Dir。OutputDir 缺失返回 ErrConfiguration。
func New(opts Options) (*Dir, error) {
	if strings.TrimSpace(opts.OutputDir) == "" {
		return nil, errors.Join(contract.ErrConfiguration, errors.New("output_dir is required"))
	}
	d := &Dir{root: opts.OutputDir, atomic: true, flat: true, permF: 0o644, permD: 0o755, bufSize: 64 * 1024}
	if opts.Atomic != nil {
		d.atomic = *opts.Atomic
	}
	if opts.Flat != nil {
		d.flat = *opts.Flat
	}
	if opts.PermFile != 0 {
		d.permF = opts.PermFile
	}
	if opts.PermDir != 0 {
		d.permD = opts.PermDir
	}
	if opts.BufSize > 0 {
		d.bufSize = opts.BufSize
	}
	return d, nil
}

// Root 返回输出根目录。
func (d *Dir) Root() string { return d.root }

// MapPath: 将工件标识映射为 root 下的目标路径，并把扩展名替换为 ext（如 ".geojson"）。
// Clean + Join + 越界校验。
func (d *Dir) MapPath(id contract.ArtifactID, ext string) (string, error) {
	rel := filepath.Clean(filepath.FromSlash(string(id)))
	if d.flat {
		rel = filepath.Base(rel)
		if rel == "." || rel == ".." || rel == "" || rel == string(filepath.Separator) {
			return "", contract.ErrPathInvalid
		}
		return filepath.Join(d.root, withExt(rel, ext)), nil
	}
	// 非扁平：禁止绝对路径、父级逃逸、Windows 卷名
	if rel == "." || rel == "" {
		return "", contract.ErrPathInvalid
	}
	if filepath.IsAbs(rel) || filepath.VolumeName(rel) != "" {
		return "", contract.ErrPathInvalid
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", contract.ErrPathInvalid
	}
	return filepath.Join(d.root, withExt(rel, ext)), nil
}

func withExt(p, ext string) string {
	if ext == "" {
		return p
	}
	return strings.TrimSuffix(p, filepath.Ext(p)) + ext
}

// File: 正在写出的单个工件。写入经缓冲；Commit 落盘，Abort 丢弃。
type File struct {
	*bufio.Writer
	f      *os.File
	tmp    string
	dest   string
	atomic bool
	done   bool
}

// Create 为工件创建输出文件。原子模式下先写同目录临时文件，Commit 时替换目标。
func (d *Dir) Create(ctx context.Context, id contract.ArtifactID, ext string) (*File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dest, err := d.MapPath(id, ext)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(dest), d.permD); err != nil {
		return nil, err
	}
	if !d.atomic {
		f, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, d.permF)
		if err != nil {
			return nil, err
		}
		return &File{Writer: bufio.NewWriterSize(f, d.bufSize), f: f, dest: dest}, nil
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".tmp-*")
	if err != nil {
		return nil, err
	}
	// 目标权限：尽量与期望一致
	_ = os.Chmod(tmp.Name(), d.permF)
	return &File{Writer: bufio.NewWriterSize(tmp, d.bufSize), f: tmp, tmp: tmp.Name(), dest: dest, atomic: true}, nil
}

// Path 返回最终目标路径。
func (f *File) Path() string { return f.dest }

// Commit: flush → fsync → close → rename（原子模式）。失败时清理临时文件。
func (f *File) Commit() error {
	if f.done {
		return nil
	}
	f.done = true
	if err := f.Flush(); err != nil {
		return f.fail(err)
	}
	if err := f.f.Sync(); err != nil {
		return f.fail(err)
	}
	if err := f.f.Close(); err != nil {
		if f.atomic {
			_ = os.Remove(f.tmp)
		}
		return err
	}
	if !f.atomic {
		return nil
	}
	if err := os.Rename(f.tmp, f.dest); err != nil {
		_ = os.Remove(f.tmp)
		return err
	}
	// 最佳努力：同步父目录，提升崩溃安全性
	_ = syncDir(filepath.Dir(f.dest))
	return nil
}

// Abort 丢弃未提交的输出；原子模式下目标文件保持不变。
func (f *File) Abort() error {
	if f.done {
		return nil
	}
	f.done = true
	return f.fail(nil)
}

func (f *File) fail(err error) error {
	_ = f.f.Close()
	if f.atomic {
		_ = os.Remove(f.tmp)
	}
	return err
}
