//go:build !windows

package fsout

import "os"

// syncDir fsync 父目录以持久化 rename 元数据。
func syncDir(dir string) error {
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
