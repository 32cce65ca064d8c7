package filesystem

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ribbonify/pkg/contract"
)

const header = "line,seq,count,x,y\n"

// collect 返回被访问数据集的基名（按访问顺序）。
func collect(t *testing.T, r *FileSystem, roots ...string) ([]string, error) {
	t.Helper()
	var ids []string
	err := r.Iterate(context.Background(), roots, func(id contract.DatasetID, rc io.ReadCloser) error {
		ids = append(ids, filepath.Base(string(id)))
		return rc.Close()
	})
	return ids, err
}

func writeFiles(t *testing.T, root string, names ...string) {
	t.Helper()
	for _, n := range names {
		p := filepath.Join(root, filepath.FromSlash(n))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(header), 0o644))
	}
}

func TestIterateSingleFile(t *testing.T) {
	fp := filepath.Join(t.TempDir(), "route.csv")
	require.NoError(t, os.WriteFile(fp, []byte(header+"A,1,3,0,0\n"), 0o644))

	var got string
	err := New(nil).Iterate(context.Background(), []string{fp}, func(id contract.DatasetID, rc io.ReadCloser) error {
		defer rc.Close()
		assert.Equal(t, contract.NormalizeDatasetID(fp), id)
		b, err := io.ReadAll(rc)
		got = string(b)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, header+"A,1,3,0,0\n", got)
}

// 子目录先于同级文件，各自按字典序
func TestWalkOrder(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "b.csv", "a.csv", "2024/jan.csv", "2023/dec.csv")
	ids, err := collect(t, New(nil), root)
	require.NoError(t, err)
	assert.Equal(t, []string{"dec.csv", "jan.csv", "a.csv", "b.csv"}, ids)
}

func TestExcludeDir(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "keep.csv", "Archive/old.csv", "raw/skip.csv")
	ids, err := collect(t, New(&Options{ExcludeDirNames: []string{"archive", "/raw/"}}), root)
	require.NoError(t, err)
	assert.Equal(t, []string{"keep.csv"}, ids)
}

func TestExtensionFilter(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "a.CSV", "b.geojson", "notes.txt")
	r := New(&Options{Extensions: []string{"csv", ".geojson"}})

	ids, err := collect(t, r, root)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.CSV", "b.geojson"}, ids)

	// 显式给出的文件不受过滤
	ids, err = collect(t, r, filepath.Join(root, "notes.txt"))
	require.NoError(t, err)
	assert.Equal(t, []string{"notes.txt"}, ids)
}

func TestIterateDashMix(t *testing.T) {
	_, err := collect(t, New(nil), "-", "tracks")
	assert.Error(t, err)
}

func TestIterateStdin(t *testing.T) {
	for name, roots := range map[string][]string{"nil": nil, "dash": {"-"}} {
		t.Run(name, func(t *testing.T) {
			old := os.Stdin
			pr, pw, err := os.Pipe()
			require.NoError(t, err)
			os.Stdin = pr
			defer func() { os.Stdin = old }()
			go func() {
				pw.Write([]byte(header))
				pw.Close()
			}()

			var data string
			err = New(nil).Iterate(context.Background(), roots, func(id contract.DatasetID, rc io.ReadCloser) error {
				defer rc.Close()
				assert.Equal(t, contract.DatasetID("stdin"), id)
				b, err := io.ReadAll(rc)
				data = string(b)
				return err
			})
			require.NoError(t, err)
			assert.Equal(t, header, data)
		})
	}
}

func TestIterateCtxCancel(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "a.csv")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := New(nil).Iterate(ctx, []string{root}, func(contract.DatasetID, io.ReadCloser) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestYieldErrorStops(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "1.csv", "2.csv")
	stop := errors.New("stop")
	n := 0
	err := New(nil).Iterate(context.Background(), []string{root}, func(contract.DatasetID, io.ReadCloser) error {
		n++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, n)
}

func TestBufferedCloserDefault(t *testing.T) {
	bc := newBufferedCloser(io.NopCloser(strings.NewReader("")), 0)
	require.NotNil(t, bc.Reader)
	assert.Equal(t, 64*1024, bc.Size())
	assert.NoError(t, bc.Close())
}
