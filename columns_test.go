package camelshdf5

import (
	"path/filepath"
	"testing"

	"github.com/scigolib/hdf5"
	"github.com/stretchr/testify/require"
)

func TestCoerceFloat(t *testing.T) {
	cases := []struct {
		in   any
		want float64
	}{
		{3.5, 3.5},
		{float32(2), 2},
		{int(7), 7},
		{int64(-4), -4},
		{uint64(9), 9},
		{true, 1},
		{false, 0},
	}
	for _, tc := range cases {
		got, ok := coerceFloat(tc.in)
		require.True(t, ok, "input %v", tc.in)
		require.Equal(t, tc.want, got)
	}

	_, ok := coerceFloat("not a number")
	require.False(t, ok)
	_, ok = coerceFloat(nil)
	require.False(t, ok)
}

func TestCoerceFloatRow(t *testing.T) {
	row, ok := coerceFloatRow([]any{1.0, 2, true})
	require.True(t, ok)
	require.Equal(t, []float64{1, 2, 1}, row)

	row, ok = coerceFloatRow([]float64{4, 5})
	require.True(t, ok)
	require.Equal(t, []float64{4, 5}, row)

	_, ok = coerceFloatRow([]any{1.0, "x"})
	require.False(t, ok)
	_, ok = coerceFloatRow("scalar")
	require.False(t, ok)
}

func TestCoerceString(t *testing.T) {
	s, ok := coerceString("plain")
	require.True(t, ok)
	require.Equal(t, "plain", s)

	s, ok = coerceString(map[string]any{"x": 1.5, "unit": "mm"})
	require.True(t, ok)
	require.JSONEq(t, `{"x":1.5,"unit":"mm"}`, s)

	_, ok = coerceString(42)
	require.False(t, ok)
}

func TestClassifyValue(t *testing.T) {
	require.Equal(t, kindFloat, classifyValue(1.0))
	require.Equal(t, kindFloat, classifyValue(true))
	require.Equal(t, kindFloatArray, classifyValue([]any{1.0, 2.0}))
	require.Equal(t, kindString, classifyValue("text"))
	require.Equal(t, kindString, classifyValue(map[string]any{"a": 1.0}))
	require.Equal(t, kindUnknown, classifyValue(struct{}{}))
}

func TestColumnEmptyPage(t *testing.T) {
	c := newColumn("/entry_1/data/ch", ChannelKey{}, 0)
	err := c.append(nil, []any{})
	require.ErrorIs(t, err, ErrEmptyData)
}

func TestColumnDeclaredLengthExceeded(t *testing.T) {
	c := newColumn("/entry_1/data/ch", ChannelKey{MaxLen: 2}, 0)
	err := c.append(nil, []any{1.0, 2.0, 3.0})
	require.ErrorIs(t, err, ErrLengthMismatch)
}

func TestColumnArrayWidthMismatch(t *testing.T) {
	c := newColumn("/entry_1/data/ch", ChannelKey{}, 0)
	err := c.append(nil, []any{[]any{1.0, 2.0}, []any{3.0}})
	require.Error(t, err)
	require.Contains(t, err.Error(), "width")
}

func TestColumnStringBufferedUntilFinish(t *testing.T) {
	// String appends never touch the file until finish materialises them.
	c := newColumn("/entry_1/data/ch", ChannelKey{}, 0)
	require.NoError(t, c.append(nil, []any{"a", "bb"}))
	require.NoError(t, c.append(nil, []any{"ccc"}))
	require.Nil(t, c.ds)
	require.Equal(t, uint64(3), c.rows)
}

func TestColumnNumericAppendRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "column.h5")
	fw, err := hdf5.CreateForWrite(path, hdf5.CreateTruncate)
	require.NoError(t, err)

	c := newColumn("/data", ChannelKey{Units: "K", MaxLen: 10, Prec: 2, Shape: []int{1}}, 0)
	require.NoError(t, c.append(fw, []any{1.0, 2.0}))
	require.NoError(t, c.append(fw, []any{3.0}))
	require.NoError(t, c.finish(fw))
	require.NoError(t, fw.Close())

	f, err := hdf5.Open(path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	var ds *hdf5.Dataset
	f.Walk(func(p string, obj hdf5.Object) {
		if p == "/data" {
			ds = obj.(*hdf5.Dataset)
		}
	})
	require.NotNil(t, ds)

	vals, err := ds.Read()
	require.NoError(t, err)
	require.Equal(t, []float64{1, 2, 3}, vals)

	attrs, err := ds.Attributes()
	require.NoError(t, err)
	names := make([]string, 0, len(attrs))
	for _, a := range attrs {
		names = append(names, a.Name)
	}
	require.Contains(t, names, "units")
	require.Contains(t, names, "max_length")
	require.Contains(t, names, "precision")
	require.Contains(t, names, "shape")
}

func TestColumnCompressedFinishRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gzip.h5")
	fw, err := hdf5.CreateForWrite(path, hdf5.CreateTruncate)
	require.NoError(t, err)

	c := newColumn("/counts", ChannelKey{}, 6)
	require.NoError(t, c.append(fw, []any{1.0, 2.0}))
	require.NoError(t, c.append(fw, []any{3.0}))
	require.Nil(t, c.ds, "compressed column must stay buffered until finish")
	require.NoError(t, c.finish(fw))
	require.NoError(t, fw.Close())

	f, err := hdf5.Open(path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	var ds *hdf5.Dataset
	f.Walk(func(p string, obj hdf5.Object) {
		if p == "/counts" {
			ds = obj.(*hdf5.Dataset)
		}
	})
	require.NotNil(t, ds)

	vals, err := ds.Read()
	require.NoError(t, err)
	require.Equal(t, []float64{1, 2, 3}, vals)
}

func TestColumnStringFinishRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "strings.h5")
	fw, err := hdf5.CreateForWrite(path, hdf5.CreateTruncate)
	require.NoError(t, err)

	c := newColumn("/labels", ChannelKey{}, 0)
	require.NoError(t, c.append(fw, []any{"short", "a longer label"}))
	require.NoError(t, c.finish(fw))
	require.NoError(t, fw.Close())

	f, err := hdf5.Open(path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	var ds *hdf5.Dataset
	f.Walk(func(p string, obj hdf5.Object) {
		if p == "/labels" {
			ds = obj.(*hdf5.Dataset)
		}
	})
	require.NotNil(t, ds)

	vals, err := ds.ReadStrings()
	require.NoError(t, err)
	require.Equal(t, []string{"short", "a longer label"}, vals)
}
