package dataset

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// GridAxis returns the multiples of res covering [lo, hi], snapped outward.
// Descending axes run from hi to lo.
func GridAxis(lo, hi, res float64, descending bool) []float64 {
	const eps = 1e-9
	first := math.Floor(lo/res + eps)
	last := math.Ceil(hi/res - eps)
	n := int(last-first) + 1
	if n < 1 {
		n = 1
	}
	axis := make([]float64, n)
	for i := range axis {
		k := first + float64(i)
		if descending {
			k = last - float64(i)
		}
		axis[i] = round9(k * res)
	}
	return axis
}

func round9(x float64) float64 {
	return math.Round(x*1e9) / 1e9
}

// Regrid maps every variable with lat and lon dimensions onto the given
// axes by nearest-neighbour lookup. Target cells farther than one source
// cell from any source coordinate are NaN. Longitudes are compared modulo
// 360.
func (d *Dataset) Regrid(lat, lon []float64) (*Dataset, error) {
	srcLat, ok := d.Coord("lat")
	if !ok {
		return nil, fmt.Errorf("dataset has no lat coordinate")
	}
	srcLon, ok := d.Coord("lon")
	if !ok {
		return nil, fmt.Errorf("dataset has no lon coordinate")
	}
	latIdx := nearest(srcLat.Data, lat, false)
	lonIdx := nearest(srcLon.Data, lon, true)

	out := New()
	for k, a := range d.Attrs {
		out.Attrs[k] = a
	}
	for _, v := range d.coords {
		switch v.Name {
		case "lat":
			c := Coord1D("lat", v.DType, lat)
			c.Attrs = copyAttrs(v.Attrs)
			out.AddCoord(c)
		case "lon":
			c := Coord1D("lon", v.DType, lon)
			c.Attrs = copyAttrs(v.Attrs)
			out.AddCoord(c)
		default:
			out.AddCoord(regridVar(v, latIdx, lonIdx))
		}
	}
	for _, v := range d.dataVars {
		out.AddDataVar(regridVar(v, latIdx, lonIdx))
	}
	return out, nil
}

func regridVar(v *Variable, latIdx, lonIdx []int) *Variable {
	r := v
	if ax := v.Axis("lat"); ax >= 0 {
		r = take(r, ax, latIdx)
	}
	if ax := v.Axis("lon"); ax >= 0 {
		r = take(r, ax, lonIdx)
	}
	if r == v {
		return v.Clone()
	}
	return r
}

func copyAttrs(attrs map[string]any) map[string]any {
	c := make(map[string]any, len(attrs))
	for k, a := range attrs {
		c[k] = a
	}
	return c
}

// nearest returns, for every target value, the index of the closest source
// value or -1 when the distance exceeds the source spacing.
func nearest(src, target []float64, periodic bool) []int {
	tol := math.Inf(1)
	if len(src) > 1 {
		tol = math.Abs(src[1] - src[0])
	}
	idx := make([]int, len(target))
	for i, t := range target {
		best, bestDist := -1, math.Inf(1)
		for j, s := range src {
			dist := math.Abs(s - t)
			if periodic {
				dist = math.Mod(dist, 360)
				dist = math.Min(dist, 360-dist)
			}
			if dist < bestDist {
				best, bestDist = j, dist
			}
		}
		if bestDist > tol+1e-9 {
			best = -1
		}
		idx[i] = best
	}
	return idx
}

// take selects indices along axis; negative indices yield NaN.
func take(v *Variable, axis int, indices []int) *Variable {
	outer := size(v.Shape[:axis])
	inner := size(v.Shape[axis+1:])
	n := v.Shape[axis]
	data := make([]float64, 0, outer*len(indices)*inner)
	for o := 0; o < outer; o++ {
		for _, j := range indices {
			if j < 0 {
				for k := 0; k < inner; k++ {
					data = append(data, math.NaN())
				}
				continue
			}
			start := (o*n + j) * inner
			data = append(data, v.Data[start:start+inner]...)
		}
	}
	r := &Variable{
		Name:  v.Name,
		Dims:  append([]string(nil), v.Dims...),
		Shape: append([]int(nil), v.Shape...),
		DType: v.DType,
		Data:  data,
		Attrs: copyAttrs(v.Attrs),
	}
	r.Shape[axis] = len(indices)
	return r
}

// Isel selects indices along dim in every variable that has it.
func (d *Dataset) Isel(dim string, indices []int) *Dataset {
	out := New()
	out.Attrs = copyAttrs(d.Attrs)
	for _, v := range d.coords {
		out.AddCoord(iselVar(v, dim, indices))
	}
	for _, v := range d.dataVars {
		out.AddDataVar(iselVar(v, dim, indices))
	}
	return out
}

func iselVar(v *Variable, dim string, indices []int) *Variable {
	if ax := v.Axis(dim); ax >= 0 {
		return take(v, ax, indices)
	}
	return v.Clone()
}

// SelectTimes keeps the time steps for which keep returns true, in
// ascending time order.
func (d *Dataset) SelectTimes(keep func(t time.Time) bool) (*Dataset, error) {
	ts, err := d.Times()
	if err != nil {
		return nil, err
	}
	var indices []int
	for i, t := range ts {
		if keep(t) {
			indices = append(indices, i)
		}
	}
	sort.SliceStable(indices, func(a, b int) bool {
		return ts[indices[a]].Before(ts[indices[b]])
	})
	return d.Isel("time", indices), nil
}
