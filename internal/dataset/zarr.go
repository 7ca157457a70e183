package dataset

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
)

const zarrFormat = 2

// zarrArray is the Zarr v2 .zarray metadata.
type zarrArray struct {
	Chunks     []int  `json:"chunks"`
	Compressor any    `json:"compressor"`
	DType      string `json:"dtype"`
	FillValue  string `json:"fill_value"`
	Filters    any    `json:"filters"`
	Order      string `json:"order"`
	Shape      []int  `json:"shape"`
	ZarrFormat int    `json:"zarr_format"`
}

// WriteZarr stores the dataset as an uncompressed, single-chunk Zarr v2
// group with consolidated metadata. Every array is written as little-endian
// float64.
func (d *Dataset) WriteZarr(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	meta := map[string]any{}
	group := map[string]int{"zarr_format": zarrFormat}
	if err := writeJSON(filepath.Join(dir, ".zgroup"), group); err != nil {
		return err
	}
	meta[".zgroup"] = group
	attrs := jsonAttrs(d.Attrs)
	if err := writeJSON(filepath.Join(dir, ".zattrs"), attrs); err != nil {
		return err
	}
	meta[".zattrs"] = attrs

	for _, vars := range [][]*Variable{d.coords, d.dataVars} {
		for _, v := range vars {
			arr, varAttrs, err := writeZarrArray(dir, v)
			if err != nil {
				return fmt.Errorf("zarr array %q: %w", v.Name, err)
			}
			meta[v.Name+"/.zarray"] = arr
			meta[v.Name+"/.zattrs"] = varAttrs
		}
	}
	return writeJSON(filepath.Join(dir, ".zmetadata"), map[string]any{
		"metadata":                 meta,
		"zarr_consolidated_format": 1,
	})
}

func writeZarrArray(dir string, v *Variable) (*zarrArray, map[string]any, error) {
	varDir := filepath.Join(dir, v.Name)
	if err := os.MkdirAll(varDir, 0o755); err != nil {
		return nil, nil, err
	}
	arr := &zarrArray{
		Chunks:     append([]int{}, v.Shape...),
		DType:      "<f8",
		FillValue:  "NaN",
		Order:      "C",
		Shape:      append([]int{}, v.Shape...),
		ZarrFormat: zarrFormat,
	}
	for i, c := range arr.Chunks {
		if c == 0 {
			arr.Chunks[i] = 1
		}
	}
	if err := writeJSON(filepath.Join(varDir, ".zarray"), arr); err != nil {
		return nil, nil, err
	}
	attrs := jsonAttrs(v.Attrs)
	attrs["_ARRAY_DIMENSIONS"] = append([]string{}, v.Dims...)
	if err := writeJSON(filepath.Join(varDir, ".zattrs"), attrs); err != nil {
		return nil, nil, err
	}
	if v.Size() == 0 {
		return arr, attrs, nil
	}
	buf := make([]byte, 8*len(v.Data))
	for i, x := range v.Data {
		binary.LittleEndian.PutUint64(buf[8*i:], math.Float64bits(x))
	}
	return arr, attrs, os.WriteFile(filepath.Join(varDir, chunkKey(len(v.Shape))), buf, 0o644)
}

func chunkKey(ndim int) string {
	if ndim == 0 {
		return "0"
	}
	return strings.TrimSuffix(strings.Repeat("0.", ndim), ".")
}

// jsonAttrs drops attribute values JSON cannot represent.
func jsonAttrs(attrs map[string]any) map[string]any {
	out := make(map[string]any, len(attrs))
	for k, a := range attrs {
		if f, ok := a.(float64); ok && (math.IsNaN(f) || math.IsInf(f, 0)) {
			continue
		}
		if f, ok := a.(float32); ok && (math.IsNaN(float64(f)) || math.IsInf(float64(f), 0)) {
			continue
		}
		if _, err := json.Marshal(a); err != nil {
			continue
		}
		out[k] = a
	}
	return out
}

func writeJSON(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}
