package datasets

import (
	"time"

	"github.com/rtm0/cdsstore/internal/dataset"
)

// LatLonAxes returns the output axes for the requested area: grid multiples
// of res snapped outward, latitude descending.
func (p *Params) LatLonAxes(res float64) (lat, lon []float64) {
	west, south, east, north := p.Area()
	lat = within(dataset.GridAxis(south, north, res, true), 90)
	lon = within(dataset.GridAxis(west, east, res, false), 180)
	return lat, lon
}

// within drops axis values beyond ±limit that outward snapping can add at
// coarse resolutions.
func within(axis []float64, limit float64) []float64 {
	kept := axis[:0]
	for _, x := range axis {
		if x >= -limit && x <= limit {
			kept = append(kept, x)
		}
	}
	return kept
}

// LatCoord returns a CF latitude coordinate.
func LatCoord(values []float64) *dataset.Variable {
	v := dataset.Coord1D("lat", "float64", values)
	v.Attrs["units"] = "degrees_north"
	v.Attrs["standard_name"] = "latitude"
	v.Attrs["long_name"] = "latitude"
	return v
}

// LonCoord returns a CF longitude coordinate.
func LonCoord(values []float64) *dataset.Variable {
	v := dataset.Coord1D("lon", "float64", values)
	v.Attrs["units"] = "degrees_east"
	v.Attrs["standard_name"] = "longitude"
	v.Attrs["long_name"] = "longitude"
	return v
}

// EmptyGrid returns a dataset with time, lat and lon coordinates and no
// data variables.
func EmptyGrid(ticks []time.Time, lat, lon []float64) *dataset.Dataset {
	ds := dataset.New()
	ds.AddCoord(dataset.TimeCoord(ticks))
	ds.AddCoord(LatCoord(lat))
	ds.AddCoord(LonCoord(lon))
	return ds
}

// NormalizeLatLon renames latitude and longitude to lat and lon, and maps
// the data onto the requested grid.
func NormalizeLatLon(ds *dataset.Dataset, p *Params, res float64) (*dataset.Dataset, error) {
	ds.Rename("latitude", "lat")
	ds.Rename("longitude", "lon")
	lat, lon := p.LatLonAxes(res)
	out, err := ds.Regrid(lat, lon)
	if err != nil {
		return nil, err
	}
	if v, ok := out.Coord("lat"); ok {
		out.AddCoord(LatCoord(v.Data))
	}
	if v, ok := out.Coord("lon"); ok {
		out.AddCoord(LonCoord(v.Data))
	}
	return out, nil
}

// Coverage returns the first and last time of the dataset.
func Coverage(ds *dataset.Dataset) (first, last time.Time, ok bool) {
	ts, err := ds.Times()
	if err != nil || len(ts) == 0 {
		return first, last, false
	}
	first, last = ts[0], ts[0]
	for _, t := range ts[1:] {
		if t.Before(first) {
			first = t
		}
		if t.After(last) {
			last = t
		}
	}
	return first, last, true
}

// GridDescriptors returns the descriptors of the time, lat and lon
// coordinates.
func GridDescriptors() map[string]dataset.VariableDescriptor {
	return map[string]dataset.VariableDescriptor{
		"time": {Name: "time", DType: "int64", Dims: []string{"time"}, Attrs: map[string]any{"standard_name": "time"}},
		"lat":  {Name: "lat", DType: "float64", Dims: []string{"lat"}, Attrs: map[string]any{"units": "degrees_north"}},
		"lon":  {Name: "lon", DType: "float64", Dims: []string{"lon"}, Attrs: map[string]any{"units": "degrees_east"}},
	}
}
