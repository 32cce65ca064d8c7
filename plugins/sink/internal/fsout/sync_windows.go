//go:build windows

package fsout

// syncDir: Windows 上目录无法 fsync，os.Rename 已使用 MoveFileEx(REPLACE_EXISTING)。
func syncDir(string) error { return nil }
