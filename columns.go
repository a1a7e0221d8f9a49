package camelshdf5

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/scigolib/hdf5"
)

// columnKind classifies the storable form of a channel's values.
type columnKind int

const (
	kindUnknown columnKind = iota
	kindFloat              // scalar numbers, one float64 per row
	kindFloatArray         // fixed-width numeric rows
	kindString             // strings and coerced named tuples
)

// column accumulates one channel's values across event pages and keeps
// the backing dataset in sync.
//
// Numeric columns are written as chunked datasets with an unlimited first
// dimension: each append resizes the dataset and rewrites the accumulated
// buffer, which is the binding's resize round-trip idiom. String columns
// are buffered until the run stops, because fixed-size string datasets
// need the final maximum length at creation time. Compressed numeric
// columns are buffered the same way: the gzip filter needs chunk
// dimensions matching the final extent, so the dataset is created in one
// piece when the run stops.
type column struct {
	path  string // absolute dataset path
	key   ChannelKey
	gzip  int // gzip level for chunked datasets, 0 = off
	kind  columnKind
	width uint64 // elements per row for kindFloatArray
	rows  uint64

	floats []float64
	strs   []string

	ds *hdf5.DatasetWriter
}

func newColumn(path string, key ChannelKey, gzip int) *column {
	return &column{path: path, key: key, gzip: gzip}
}

// append coerces and stores one page's values for this column.
// An empty slice is reported as ErrEmptyData; exceeding the channel's
// declared length is ErrLengthMismatch.
func (c *column) append(fw *hdf5.FileWriter, values []any) error {
	if len(values) == 0 {
		return fmt.Errorf("%w: %s", ErrEmptyData, c.path)
	}
	if c.key.MaxLen > 0 && c.rows+uint64(len(values)) > c.key.MaxLen {
		return fmt.Errorf("%w: %s holds %d rows, declared max %d, got %d more",
			ErrLengthMismatch, c.path, c.rows, c.key.MaxLen, len(values))
	}

	if c.kind == kindUnknown {
		c.kind = classifyValue(values[0])
	}

	switch c.kind {
	case kindFloat:
		for _, v := range values {
			f, ok := coerceFloat(v)
			if !ok {
				return fmt.Errorf("column %s: expected number, got %T", c.path, v)
			}
			c.floats = append(c.floats, f)
		}
	case kindFloatArray:
		for _, v := range values {
			row, ok := coerceFloatRow(v)
			if !ok {
				return fmt.Errorf("column %s: expected numeric array, got %T", c.path, v)
			}
			if c.width == 0 {
				c.width = uint64(len(row))
			}
			if uint64(len(row)) != c.width {
				return fmt.Errorf("column %s: row width %d does not match %d",
					c.path, len(row), c.width)
			}
			c.floats = append(c.floats, row...)
		}
	case kindString:
		for _, v := range values {
			s, ok := coerceString(v)
			if !ok {
				return fmt.Errorf("column %s: value %T is not storable", c.path, v)
			}
			c.strs = append(c.strs, s)
		}
	default:
		return fmt.Errorf("column %s: value %T is not storable", c.path, values[0])
	}

	c.rows += uint64(len(values))

	if c.kind == kindString || c.gzip > 0 {
		return nil // materialised by finish()
	}
	return c.sync(fw)
}

// sync grows the numeric dataset to the accumulated row count and
// rewrites the buffer.
func (c *column) sync(fw *hdf5.FileWriter) error {
	dims := []uint64{c.rows}
	if c.kind == kindFloatArray {
		dims = []uint64{c.rows, c.width}
	}

	if c.ds == nil {
		chunk := []uint64{1}
		maxDims := []uint64{hdf5.Unlimited}
		if c.kind == kindFloatArray {
			chunk = []uint64{1, c.width}
			maxDims = []uint64{hdf5.Unlimited, c.width}
		}
		ds, err := fw.CreateDataset(c.path, hdf5.Float64, dims,
			hdf5.WithChunkDims(chunk),
			hdf5.WithMaxDims(maxDims))
		if err != nil {
			return wrapErr("create dataset "+c.path, err)
		}
		c.ds = ds
		if err := c.writeKeyAttributes(); err != nil {
			return err
		}
	} else if err := c.ds.Resize(dims); err != nil {
		return wrapErr("resize dataset "+c.path, err)
	}

	if err := c.ds.Write(c.floats); err != nil {
		return wrapErr("write dataset "+c.path, err)
	}
	return nil
}

// finish materialises buffered columns: strings, and compressed numeric
// columns whose chunk dimensions must match the final extent. Uncompressed
// numeric columns are already on disk. Called once when the run stops.
func (c *column) finish(fw *hdf5.FileWriter) error {
	if c.kind != kindString {
		return c.finishCompressed(fw)
	}
	if len(c.strs) == 0 {
		return nil
	}
	size := uint32(1)
	for _, s := range c.strs {
		if l := uint32(len(s)) + 1; l > size {
			size = l
		}
	}
	ds, err := fw.CreateDataset(c.path, hdf5.String, []uint64{uint64(len(c.strs))},
		hdf5.WithStringSize(size))
	if err != nil {
		return wrapErr("create string dataset "+c.path, err)
	}
	c.ds = ds
	if err := c.writeKeyAttributes(); err != nil {
		return err
	}
	if err := ds.Write(c.strs); err != nil {
		return wrapErr("write string dataset "+c.path, err)
	}
	return nil
}

// finishCompressed writes a buffered gzip column in one piece, with chunk
// dimensions equal to the dataset extent as the filter requires.
func (c *column) finishCompressed(fw *hdf5.FileWriter) error {
	if c.gzip == 0 || c.ds != nil || len(c.floats) == 0 {
		return nil
	}
	dims := []uint64{c.rows}
	if c.kind == kindFloatArray {
		dims = []uint64{c.rows, c.width}
	}
	ds, err := fw.CreateDataset(c.path, hdf5.Float64, dims,
		hdf5.WithChunkDims(dims),
		hdf5.WithGZIPCompression(c.gzip))
	if err != nil {
		return wrapErr("create compressed dataset "+c.path, err)
	}
	c.ds = ds
	if err := c.writeKeyAttributes(); err != nil {
		return err
	}
	if err := ds.Write(c.floats); err != nil {
		return wrapErr("write compressed dataset "+c.path, err)
	}
	return nil
}

// writeKeyAttributes stamps the channel's descriptor metadata onto the
// dataset.
func (c *column) writeKeyAttributes() error {
	attrs := map[string]string{
		"units":       c.key.Units,
		"source":      c.key.Source,
		"dtype":       c.key.Dtype,
		"object_name": c.key.Device,
	}
	if len(c.key.Shape) > 0 {
		b, err := json.Marshal(c.key.Shape)
		if err != nil {
			return wrapErr("encode shape of "+c.path, err)
		}
		attrs["shape"] = string(b)
	}
	if c.key.Prec != 0 {
		attrs["precision"] = strconv.FormatFloat(c.key.Prec, 'g', -1, 64)
	}
	if c.key.MaxLen > 0 {
		attrs["max_length"] = strconv.FormatUint(c.key.MaxLen, 10)
	}
	for name, val := range attrs {
		if val == "" {
			continue
		}
		if err := c.ds.WriteAttribute(name, val); err != nil {
			return wrapErr("write attribute "+name+" on "+c.path, err)
		}
	}
	return nil
}

// classifyValue picks the storable form for a channel from its first
// value. Named tuples (maps) and strings share the string form.
func classifyValue(v any) columnKind {
	if _, ok := coerceFloat(v); ok {
		return kindFloat
	}
	if _, ok := coerceFloatRow(v); ok {
		return kindFloatArray
	}
	if _, ok := coerceString(v); ok {
		return kindString
	}
	return kindUnknown
}

// coerceFloat converts scalar numeric values to float64. JSON numbers
// always decode to float64; the other cases cover typed Go callers.
func coerceFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

// coerceFloatRow converts an array-valued sample to a numeric row.
func coerceFloatRow(v any) ([]float64, bool) {
	switch row := v.(type) {
	case []float64:
		return row, true
	case []any:
		out := make([]float64, len(row))
		for i, e := range row {
			f, ok := coerceFloat(e)
			if !ok {
				return nil, false
			}
			out[i] = f
		}
		return out, true
	default:
		return nil, false
	}
}

// coerceString converts strings as-is and named-tuple-shaped values
// (maps, as produced by device and variable-signal abstractions) to their
// JSON rendering, so both remain readable dataset entries.
func coerceString(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case map[string]any:
		b, err := json.Marshal(s)
		if err != nil {
			return "", false
		}
		return string(b), true
	default:
		return "", false
	}
}
