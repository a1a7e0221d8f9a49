package camelshdf5

import (
	"path/filepath"
	"testing"

	"github.com/scigolib/hdf5"
	"github.com/stretchr/testify/require"
)

func writeTree(t *testing.T, data map[string]any) (*hdf5.File, map[string]hdf5.Object) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "meta.h5")

	fw, err := hdf5.CreateForWrite(path, hdf5.CreateTruncate)
	require.NoError(t, err)
	_, err = fw.CreateGroup("/meta")
	require.NoError(t, err)
	require.NoError(t, writeMetadataTree(fw, "/meta", data))
	require.NoError(t, fw.Close())

	return openObjects(t, path)
}

func TestMetadataTreeScalars(t *testing.T) {
	_, objs := writeTree(t, map[string]any{
		"name":    "Jane Doe",
		"age":     42.0,
		"active":  true,
		"skipped": nil,
	})

	require.Equal(t, "Jane Doe", readString(t, objs, "/meta/name"))

	age, err := dataset(t, objs, "/meta/age").Read()
	require.NoError(t, err)
	require.Equal(t, []float64{42}, age)

	active, err := dataset(t, objs, "/meta/active").Read()
	require.NoError(t, err)
	require.Equal(t, []float64{1}, active)

	_, hasSkipped := objs["/meta/skipped"]
	require.False(t, hasSkipped, "nil values must be skipped")
}

func TestMetadataTreeNestedMaps(t *testing.T) {
	_, objs := writeTree(t, map[string]any{
		"affiliation": map[string]any{
			"institute": "Example Lab",
			"address":   map[string]any{"city": "Erlangen"},
		},
	})

	_, hasGroup := objs["/meta/affiliation/"]
	require.True(t, hasGroup)
	require.Equal(t, "Example Lab", readString(t, objs, "/meta/affiliation/institute"))
	require.Equal(t, "Erlangen", readString(t, objs, "/meta/affiliation/address/city"))
}

func TestMetadataLists(t *testing.T) {
	_, objs := writeTree(t, map[string]any{
		"tags":   []any{"cryo", "sweep"},
		"points": []any{1.0, 2.0, 3.0},
		"steps": []any{
			map[string]any{"kind": "ramp"},
			map[string]any{"kind": "hold"},
		},
		"mixed": []any{1.0, map[string]any{"a": 2.0}},
	})

	tags, err := dataset(t, objs, "/meta/tags").ReadStrings()
	require.NoError(t, err)
	require.Equal(t, []string{"cryo", "sweep"}, tags)

	points, err := dataset(t, objs, "/meta/points").Read()
	require.NoError(t, err)
	require.Equal(t, []float64{1, 2, 3}, points)

	_, hasStep0 := objs["/meta/steps_0/"]
	require.True(t, hasStep0)
	require.Equal(t, "ramp", readString(t, objs, "/meta/steps_0/kind"))
	require.Equal(t, "hold", readString(t, objs, "/meta/steps_1/kind"))

	mixed := readString(t, objs, "/meta/mixed")
	require.JSONEq(t, `[1,{"a":2}]`, mixed)
}

func TestMetadataKeysSanitized(t *testing.T) {
	_, objs := writeTree(t, map[string]any{
		"strange.key/name": "value",
	})
	require.Equal(t, "value", readString(t, objs, "/meta/strange_key_name"))
}

func TestNXGroupClassAttribute(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nx.h5")
	fw, err := hdf5.CreateForWrite(path, hdf5.CreateTruncate)
	require.NoError(t, err)
	_, err = createNXGroup(fw, "/entry_1", "NXentry")
	require.NoError(t, err)
	require.NoError(t, fw.Close())

	_, objs := openObjects(t, path)
	g, ok := objs["/entry_1/"].(*hdf5.Group)
	require.True(t, ok)
	attrs, err := g.Attributes()
	require.NoError(t, err)
	require.Len(t, attrs, 1)
	require.Equal(t, "NX_class", attrs[0].Name)
}
