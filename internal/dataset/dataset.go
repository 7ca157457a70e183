// Package dataset holds the labeled, gridded array model returned by the
// store: named dimensions, coordinate variables, data variables and global
// attributes.
package dataset

import (
	"fmt"
	"sort"
)

// Variable is an n-dimensional array with named dimensions. Values are kept
// as float64 in row-major order regardless of the on-disk type, which is
// recorded in DType.
type Variable struct {
	Name  string
	Dims  []string
	Shape []int
	DType string
	Data  []float64
	Attrs map[string]any
}

// NewVariable creates a variable and checks that data matches the shape.
func NewVariable(name string, dims []string, shape []int, dtype string, data []float64) (*Variable, error) {
	if len(dims) != len(shape) {
		return nil, fmt.Errorf("variable %q: %d dims but %d shape entries", name, len(dims), len(shape))
	}
	if n := size(shape); n != len(data) {
		return nil, fmt.Errorf("variable %q: shape %v needs %d values, got %d", name, shape, n, len(data))
	}
	return &Variable{
		Name:  name,
		Dims:  dims,
		Shape: shape,
		DType: dtype,
		Data:  data,
		Attrs: map[string]any{},
	}, nil
}

// Coord1D creates a one-dimensional coordinate variable named after its
// dimension.
func Coord1D(name, dtype string, values []float64) *Variable {
	return &Variable{
		Name:  name,
		Dims:  []string{name},
		Shape: []int{len(values)},
		DType: dtype,
		Data:  values,
		Attrs: map[string]any{},
	}
}

// Len returns the number of elements along the first dimension, or 1 for a
// scalar.
func (v *Variable) Len() int {
	if len(v.Shape) == 0 {
		return 1
	}
	return v.Shape[0]
}

// Size returns the total number of elements.
func (v *Variable) Size() int {
	return size(v.Shape)
}

// Axis returns the position of dim in v.Dims or -1.
func (v *Variable) Axis(dim string) int {
	for i, d := range v.Dims {
		if d == dim {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy of v.
func (v *Variable) Clone() *Variable {
	c := &Variable{
		Name:  v.Name,
		Dims:  append([]string(nil), v.Dims...),
		Shape: append([]int(nil), v.Shape...),
		DType: v.DType,
		Data:  append([]float64(nil), v.Data...),
		Attrs: make(map[string]any, len(v.Attrs)),
	}
	for k, a := range v.Attrs {
		c.Attrs[k] = a
	}
	return c
}

func size(shape []int) int {
	n := 1
	for _, s := range shape {
		n *= s
	}
	return n
}

// Dataset is a collection of coordinate and data variables sharing named
// dimensions.
type Dataset struct {
	coords   []*Variable
	dataVars []*Variable
	Attrs    map[string]any
}

// New returns an empty dataset.
func New() *Dataset {
	return &Dataset{Attrs: map[string]any{}}
}

// AddCoord adds or replaces a coordinate variable.
func (d *Dataset) AddCoord(v *Variable) {
	d.coords = put(d.coords, v)
}

// AddDataVar adds or replaces a data variable.
func (d *Dataset) AddDataVar(v *Variable) {
	d.dataVars = put(d.dataVars, v)
}

func put(vars []*Variable, v *Variable) []*Variable {
	for i, old := range vars {
		if old.Name == v.Name {
			vars[i] = v
			return vars
		}
	}
	return append(vars, v)
}

// Coords returns the coordinate variables in insertion order.
func (d *Dataset) Coords() []*Variable { return d.coords }

// DataVars returns the data variables in insertion order.
func (d *Dataset) DataVars() []*Variable { return d.dataVars }

// Coord looks up a coordinate variable.
func (d *Dataset) Coord(name string) (*Variable, bool) {
	return find(d.coords, name)
}

// DataVar looks up a data variable.
func (d *Dataset) DataVar(name string) (*Variable, bool) {
	return find(d.dataVars, name)
}

// Variable looks up a coordinate or data variable.
func (d *Dataset) Variable(name string) (*Variable, bool) {
	if v, ok := d.Coord(name); ok {
		return v, true
	}
	return d.DataVar(name)
}

func find(vars []*Variable, name string) (*Variable, bool) {
	for _, v := range vars {
		if v.Name == name {
			return v, true
		}
	}
	return nil, false
}

// CoordNames returns the sorted coordinate names.
func (d *Dataset) CoordNames() []string { return names(d.coords) }

// DataVarNames returns the sorted data variable names.
func (d *Dataset) DataVarNames() []string { return names(d.dataVars) }

func names(vars []*Variable) []string {
	ns := make([]string, len(vars))
	for i, v := range vars {
		ns[i] = v.Name
	}
	sort.Strings(ns)
	return ns
}

// Dims returns the size of every dimension used by any variable.
func (d *Dataset) Dims() map[string]int {
	dims := map[string]int{}
	for _, vars := range [][]*Variable{d.coords, d.dataVars} {
		for _, v := range vars {
			for i, dim := range v.Dims {
				dims[dim] = v.Shape[i]
			}
		}
	}
	return dims
}

// Validate checks that every variable agrees on the size of shared
// dimensions and that data lengths match shapes.
func (d *Dataset) Validate() error {
	dims := map[string]int{}
	for _, vars := range [][]*Variable{d.coords, d.dataVars} {
		for _, v := range vars {
			if len(v.Dims) != len(v.Shape) {
				return fmt.Errorf("variable %q: dims %v do not match shape %v", v.Name, v.Dims, v.Shape)
			}
			if v.Size() != len(v.Data) {
				return fmt.Errorf("variable %q: shape %v does not match %d values", v.Name, v.Shape, len(v.Data))
			}
			for i, dim := range v.Dims {
				if n, ok := dims[dim]; ok && n != v.Shape[i] {
					return fmt.Errorf("variable %q: dimension %q has size %d, expected %d", v.Name, dim, v.Shape[i], n)
				}
				dims[dim] = v.Shape[i]
			}
		}
	}
	return nil
}

// Rename renames a variable and every dimension of the same name.
func (d *Dataset) Rename(oldName, newName string) {
	if oldName == newName {
		return
	}
	for _, vars := range [][]*Variable{d.coords, d.dataVars} {
		for _, v := range vars {
			if v.Name == oldName {
				v.Name = newName
			}
			for i, dim := range v.Dims {
				if dim == oldName {
					v.Dims[i] = newName
				}
			}
		}
	}
}

// RenameDataVar renames only a data variable.
func (d *Dataset) RenameDataVar(oldName, newName string) {
	if v, ok := d.DataVar(oldName); ok {
		v.Name = newName
	}
}

// KeepDataVars drops every data variable for which keep returns false.
func (d *Dataset) KeepDataVars(keep func(name string) bool) {
	kept := d.dataVars[:0]
	for _, v := range d.dataVars {
		if keep(v.Name) {
			kept = append(kept, v)
		}
	}
	d.dataVars = kept
}

// DropCoord removes a coordinate variable.
func (d *Dataset) DropCoord(name string) {
	kept := d.coords[:0]
	for _, v := range d.coords {
		if v.Name != name {
			kept = append(kept, v)
		}
	}
	d.coords = kept
}

// PromoteToCoord moves a data variable to the coordinates.
func (d *Dataset) PromoteToCoord(name string) {
	v, ok := d.DataVar(name)
	if !ok {
		return
	}
	d.KeepDataVars(func(n string) bool { return n != name })
	d.AddCoord(v)
}

// Bounds returns the extent of the lon and lat coordinates.
func (d *Dataset) Bounds() (west, south, east, north float64, err error) {
	lon, ok := d.Coord("lon")
	if !ok || lon.Size() == 0 {
		return 0, 0, 0, 0, fmt.Errorf("dataset has no lon coordinate")
	}
	lat, ok := d.Coord("lat")
	if !ok || lat.Size() == 0 {
		return 0, 0, 0, 0, fmt.Errorf("dataset has no lat coordinate")
	}
	west, east = minMax(lon.Data)
	south, north = minMax(lat.Data)
	return west, south, east, north, nil
}

func minMax(xs []float64) (lo, hi float64) {
	lo, hi = xs[0], xs[0]
	for _, x := range xs[1:] {
		if x < lo {
			lo = x
		}
		if x > hi {
			hi = x
		}
	}
	return lo, hi
}
