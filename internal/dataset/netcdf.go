package dataset

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"
)

// ReadNetCDF reads every numeric variable of a NetCDF (CDF or HDF5) file.
// One-dimensional variables named after their dimension become coordinates,
// as does every variable listed in extraCoords. Packed values are unpacked
// and fill values replaced by NaN.
func ReadNetCDF(filePath string, extraCoords ...string) (*Dataset, error) {
	nc, err := netcdf.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("cannot open %s: %w", filePath, err)
	}
	defer nc.Close()

	isExtra := map[string]bool{}
	for _, name := range extraCoords {
		isExtra[name] = true
	}

	ds := New()
	ds.Attrs = attrMap(nc.Attributes())
	for _, name := range nc.ListVariables() {
		vg, err := nc.GetVarGetter(name)
		if err != nil {
			return nil, fmt.Errorf("%s: variable %q: %w", filePath, name, err)
		}
		v, err := readVar(name, vg)
		if err != nil {
			var unsupported unsupportedTypeError
			if errors.As(err, &unsupported) {
				continue
			}
			return nil, fmt.Errorf("%s: %w", filePath, err)
		}
		if isExtra[name] || (len(v.Dims) == 1 && v.Dims[0] == name) {
			ds.AddCoord(v)
		} else {
			ds.AddDataVar(v)
		}
	}
	return ds, nil
}

func readVar(name string, vg api.VarGetter) (*Variable, error) {
	values, err := vg.Values()
	if err != nil {
		return nil, fmt.Errorf("variable %q: %w", name, err)
	}
	data, shape, err := flatten(values)
	if err != nil {
		return nil, fmt.Errorf("variable %q: %w", name, err)
	}
	dims := vg.Dimensions()
	if len(dims) != len(shape) {
		// Empty dimensions flatten to fewer levels than declared.
		if len(data) != 0 {
			return nil, fmt.Errorf("variable %q: dims %v do not match shape %v", name, dims, shape)
		}
		shape = make([]int, len(dims))
	}
	v := &Variable{
		Name:  name,
		Dims:  append([]string(nil), dims...),
		Shape: shape,
		DType: vg.GoType(),
		Data:  data,
		Attrs: attrMap(vg.Attributes()),
	}
	unpack(v)
	return v, nil
}

// unpack applies the CF packing conventions.
func unpack(v *Variable) {
	fill, hasFill := attrFloat(v.Attrs, "_FillValue")
	missing, hasMissing := attrFloat(v.Attrs, "missing_value")
	scale, hasScale := attrFloat(v.Attrs, "scale_factor")
	offset, hasOffset := attrFloat(v.Attrs, "add_offset")
	if !hasFill && !hasMissing && !hasScale && !hasOffset {
		return
	}
	if !hasScale {
		scale = 1
	}
	filled := false
	for i, x := range v.Data {
		if (hasFill && x == fill) || (hasMissing && x == missing) {
			v.Data[i] = math.NaN()
			filled = true
			continue
		}
		v.Data[i] = x*scale + offset
	}
	for _, k := range []string{"_FillValue", "missing_value", "scale_factor", "add_offset"} {
		delete(v.Attrs, k)
	}
	// Integer types cannot hold NaN.
	if hasScale || hasOffset || (filled && !strings.HasPrefix(v.DType, "float")) {
		v.DType = "float64"
	}
}

func attrMap(am api.AttributeMap) map[string]any {
	m := map[string]any{}
	if am == nil {
		return m
	}
	for _, k := range am.Keys() {
		if val, ok := am.Get(k); ok {
			m[k] = val
		}
	}
	return m
}

// attrFloat reads a numeric attribute that may be stored as a scalar or a
// one-element slice.
func attrFloat(attrs map[string]any, key string) (float64, bool) {
	val, ok := attrs[key]
	if !ok {
		return 0, false
	}
	data, _, err := flatten(val)
	if err != nil || len(data) == 0 {
		return 0, false
	}
	return data[0], true
}

type unsupportedTypeError struct{ kind reflect.Kind }

func (e unsupportedTypeError) Error() string {
	return fmt.Sprintf("unsupported value type %s", e.kind)
}

// flatten converts a scalar or a (nested) slice of numbers into row-major
// float64 data and its shape.
func flatten(values any) ([]float64, []int, error) {
	rv := reflect.ValueOf(values)
	var shape []int
	for t := rv; t.Kind() == reflect.Slice; {
		shape = append(shape, t.Len())
		if t.Len() == 0 {
			break
		}
		t = t.Index(0)
	}
	data := make([]float64, 0, size(shape))
	var walk func(v reflect.Value) error
	walk = func(v reflect.Value) error {
		switch v.Kind() {
		case reflect.Slice:
			for i := 0; i < v.Len(); i++ {
				if err := walk(v.Index(i)); err != nil {
					return err
				}
			}
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			data = append(data, float64(v.Int()))
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			data = append(data, float64(v.Uint()))
		case reflect.Float32, reflect.Float64:
			data = append(data, v.Float())
		default:
			return unsupportedTypeError{v.Kind()}
		}
		return nil
	}
	if err := walk(rv); err != nil {
		return nil, nil, err
	}
	if size(shape) != len(data) {
		return nil, nil, fmt.Errorf("ragged array with shape %v and %d values", shape, len(data))
	}
	return data, shape, nil
}
