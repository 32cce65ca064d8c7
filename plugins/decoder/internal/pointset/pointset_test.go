package pointset

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ribbonify/pkg/contract"
)

func TestExtFilter(t *testing.T) {
	f := NewExtFilter(nil, []string{"csv", ".TXT"})
	assert.True(t, f.Accept("a/b.CSV"))
	assert.True(t, f.Accept("x.txt"))
	assert.True(t, f.Accept("stdin"))
	assert.False(t, f.Accept("x.geojson"))
	assert.True(t, NewExtFilter(nil, nil).Accept("anything.bin"))
}

func TestFloat(t *testing.T) {
	v, err := Float(" 1.25 ")
	require.NoError(t, err)
	assert.Equal(t, 1.25, v)
	for _, bad := range []string{"", "abc", "NaN", "Inf", "-inf"} {
		_, err := Float(bad)
		assert.Error(t, err, bad)
	}
	err = Invalid(3, "x", "abc", errors.New("bad"))
	require.ErrorIs(t, err, contract.ErrRecordInvalid)
}

func TestSortByGroup(t *testing.T) {
	ps := []contract.Point{
		{ID: 1, Group: "B", Sort: "2"},
		{ID: 2, Group: "A", Sort: "10"},
		{ID: 3, Group: "B", Sort: "1"},
		{ID: 4, Group: "A", Sort: "9"},
		{ID: 5, Group: "A", Sort: "9"},
	}
	SortByGroup(ps)
	var ids []int64
	for _, p := range ps {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []int64{4, 5, 2, 3, 1}, ids)
}
