package camelshdf5

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/scigolib/hdf5"
)

// createNXGroup creates a group and stamps its NeXus class attribute.
func createNXGroup(fw *hdf5.FileWriter, path, nxClass string) (*hdf5.GroupWriter, error) {
	g, err := fw.CreateGroup(path)
	if err != nil {
		return nil, wrapErr("create group "+path, err)
	}
	if nxClass != "" {
		if err := g.WriteAttribute("NX_class", nxClass); err != nil {
			return nil, wrapErr("write NX_class on "+path, err)
		}
	}
	return g, nil
}

// writeMetadataTree recursively writes a metadata map below groupPath.
// Nested maps become groups, scalars and flat lists become datasets,
// lists of maps become numbered subgroups, nils are skipped. Keys are
// sanitised before use as path segments.
func writeMetadataTree(fw *hdf5.FileWriter, groupPath string, data map[string]any) error {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, rawKey := range keys {
		val := data[rawKey]
		if val == nil {
			continue
		}
		key := sanitizeSegment(rawKey)
		if key == "" {
			continue
		}
		path := groupPath + "/" + key

		switch v := val.(type) {
		case map[string]any:
			if _, err := fw.CreateGroup(path); err != nil {
				return wrapErr("create group "+path, err)
			}
			if err := writeMetadataTree(fw, path, v); err != nil {
				return err
			}
		case []any:
			if err := writeMetadataList(fw, path, v); err != nil {
				return err
			}
		default:
			if err := writeScalarValue(fw, path, v); err != nil {
				return err
			}
		}
	}
	return nil
}

// writeMetadataList writes a list value. Lists of maps become numbered
// subgroups; lists containing a string are stored as strings; numeric
// lists as a float dataset; anything else falls back to one JSON string.
func writeMetadataList(fw *hdf5.FileWriter, path string, list []any) error {
	if len(list) == 0 {
		return nil
	}

	allMaps := true
	anyString := false
	allNumeric := true
	for _, item := range list {
		if _, ok := item.(map[string]any); !ok {
			allMaps = false
		}
		if _, ok := item.(string); ok {
			anyString = true
		}
		if _, ok := coerceFloat(item); !ok {
			allNumeric = false
		}
	}

	switch {
	case allMaps:
		for i, item := range list {
			sub := fmt.Sprintf("%s_%d", path, i)
			if _, err := fw.CreateGroup(sub); err != nil {
				return wrapErr("create group "+sub, err)
			}
			if err := writeMetadataTree(fw, sub, item.(map[string]any)); err != nil {
				return err
			}
		}
		return nil
	case anyString:
		strs := make([]string, len(list))
		for i, item := range list {
			strs[i] = fmt.Sprint(item)
		}
		return writeStringSlice(fw, path, strs)
	case allNumeric:
		vals := make([]float64, len(list))
		for i, item := range list {
			vals[i], _ = coerceFloat(item)
		}
		return writeFloatSlice(fw, path, vals)
	default:
		b, err := json.Marshal(list)
		if err != nil {
			return wrapErr("encode list "+path, err)
		}
		return writeStringValue(fw, path, string(b))
	}
}

// writeScalarValue writes one scalar metadata value as a 1-element dataset.
func writeScalarValue(fw *hdf5.FileWriter, path string, v any) error {
	if s, ok := v.(string); ok {
		return writeStringValue(fw, path, s)
	}
	if f, ok := coerceFloat(v); ok {
		return writeFloatSlice(fw, path, []float64{f})
	}
	// Unknown shapes are kept readable rather than dropped.
	b, err := json.Marshal(v)
	if err != nil {
		return wrapErr("encode value "+path, err)
	}
	return writeStringValue(fw, path, string(b))
}

func writeStringValue(fw *hdf5.FileWriter, path, s string) error {
	return writeStringSlice(fw, path, []string{s})
}

func writeStringSlice(fw *hdf5.FileWriter, path string, strs []string) error {
	size := uint32(1)
	for _, s := range strs {
		if l := uint32(len(s)) + 1; l > size {
			size = l
		}
	}
	ds, err := fw.CreateDataset(path, hdf5.String, []uint64{uint64(len(strs))},
		hdf5.WithStringSize(size))
	if err != nil {
		return wrapErr("create dataset "+path, err)
	}
	if err := ds.Write(strs); err != nil {
		return wrapErr("write dataset "+path, err)
	}
	return nil
}

func writeFloatSlice(fw *hdf5.FileWriter, path string, vals []float64) error {
	ds, err := fw.CreateDataset(path, hdf5.Float64, []uint64{uint64(len(vals))})
	if err != nil {
		return wrapErr("create dataset "+path, err)
	}
	if err := ds.Write(vals); err != nil {
		return wrapErr("write dataset "+path, err)
	}
	return nil
}
