package geojson

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ribbonify/pkg/contract"
	"ribbonify/plugins/sink/internal/fsout"
)

func seg(id int64) contract.Segment {
	return contract.Segment{
		PointID: id, Group: "A", Position: contract.PositionFirst, Cap: contract.CapTaper,
		PrimaryFrom: 1, PrimaryTo: 2, SecondaryFrom: 5, SecondaryTo: 6,
		Ring: []orb.Point{{0, 0}, {-1, 10}, {1, 10}},
	}
}

func TestWriteFeatureCollection(t *testing.T) {
	dir := t.TempDir()
	s, err := New(&Options{Options: fsout.Options{OutputDir: dir}})
	require.NoError(t, err)
	w, err := s.Open(context.Background(), "data/tracks.csv")
	require.NoError(t, err)
	require.NoError(t, w.Append(context.Background(), seg(1)))
	require.NoError(t, w.Append(context.Background(), seg(2)))
	require.NoError(t, w.Close())

	b, err := os.ReadFile(filepath.Join(dir, "tracks.geojson"))
	require.NoError(t, err)
	fc, err := geojson.UnmarshalFeatureCollection(b)
	require.NoError(t, err)
	require.Len(t, fc.Features, 2)
	f := fc.Features[0]
	poly, ok := f.Geometry.(orb.Polygon)
	require.True(t, ok)
	require.Len(t, poly[0], 4)
	assert.True(t, poly[0].Closed())
	assert.Equal(t, orb.CCW, poly[0].Orientation())
	assert.Equal(t, 1.0, f.Properties.MustFloat64("POINT_FID"))
	assert.Equal(t, "first", f.Properties.MustString("POSITION"))
	assert.Equal(t, 6.0, f.Properties.MustFloat64("SECONDARY_VALUE_TO"))
	_, hasClass := f.Properties["PRIMARY_CLASSED_FROM"]
	assert.False(t, hasClass)
}

func TestEmptyCollection(t *testing.T) {
	dir := t.TempDir()
	s, err := New(&Options{Options: fsout.Options{OutputDir: dir}, Ext: ".json"})
	require.NoError(t, err)
	w, err := s.Open(context.Background(), "stdin")
	require.NoError(t, err)
	require.NoError(t, w.Close())
	b, err := os.ReadFile(filepath.Join(dir, "stdin.json"))
	require.NoError(t, err)
	fc, err := geojson.UnmarshalFeatureCollection(b)
	require.NoError(t, err)
	assert.Empty(t, fc.Features)
}

func TestAppendCanceled(t *testing.T) {
	s, err := New(&Options{Options: fsout.Options{OutputDir: t.TempDir()}})
	require.NoError(t, err)
	w, err := s.Open(context.Background(), "a.csv")
	require.NoError(t, err)
	defer w.Close()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, w.Append(ctx, seg(1)), context.Canceled)
}

func TestNewRequiresOutputDir(t *testing.T) {
	_, err := New(nil)
	require.ErrorIs(t, err, contract.ErrConfiguration)
}

// flaky 前 ok 次写入成功，之后全部失败。
type flaky struct {
	ok, calls int
}

func (f *flaky) Write(p []byte) (int, error) {
	f.calls++
	if f.calls > f.ok {
		return 0, errors.New("disk full")
	}
	return len(p), nil
}

func TestWriteFailureIsSticky(t *testing.T) {
	dir := t.TempDir()
	s, err := New(&Options{Options: fsout.Options{OutputDir: dir}})
	require.NoError(t, err)
	sw, err := s.Open(context.Background(), "a.csv")
	require.NoError(t, err)
	w := sw.(*writer)
	w.out = &flaky{ok: 1}

	require.NoError(t, w.Append(context.Background(), seg(1)))
	require.ErrorIs(t, w.Append(context.Background(), seg(2)), contract.ErrSinkWrite)
	// 后续记录不得在残缺的集合后继续追加
	require.ErrorIs(t, w.Append(context.Background(), seg(3)), contract.ErrSinkWrite)
	assert.Equal(t, 1, w.n)
	assert.Equal(t, 2, w.out.(*flaky).calls)

	require.Error(t, w.Close())
	_, statErr := os.Stat(filepath.Join(dir, "a.geojson"))
	assert.True(t, os.IsNotExist(statErr), "truncated collection must not be committed")
}
