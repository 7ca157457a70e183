package cdstest

import (
	"archive/tar"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/batchatco/go-native-netcdf/netcdf/cdf"
	"github.com/batchatco/go-native-netcdf/netcdf/util"
)

// Var is a variable written by WriteNetCDF. Values is a (nested) slice
// matching Dims.
type Var struct {
	Name   string
	Dims   []string
	Values any
	Attrs  map[string]any
}

// WriteNetCDF writes a classic NetCDF file.
func WriteNetCDF(path string, attrs map[string]any, vars ...Var) error {
	cw, err := cdf.OpenWriter(path)
	if err != nil {
		return err
	}
	global, err := orderedMap(attrs)
	if err != nil {
		return err
	}
	if err := cw.AddGlobalAttrs(global); err != nil {
		return err
	}
	for _, v := range vars {
		am, err := orderedMap(v.Attrs)
		if err != nil {
			return err
		}
		err = cw.AddVar(v.Name, api.Variable{
			Values:     v.Values,
			Dimensions: v.Dims,
			Attributes: am,
		})
		if err != nil {
			return err
		}
	}
	return cw.Close()
}

func orderedMap(m map[string]any) (*util.OrderedMap, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if m == nil {
		m = map[string]any{}
	}
	return util.NewOrderedMap(keys, m)
}

// WriteTarGz packs files into a gzipped tar archive under their base names.
func WriteTarGz(path string, files ...string) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer out.Close()
	gz := gzip.NewWriter(out)
	tw := tar.NewWriter(gz)
	for _, f := range files {
		if err := addFile(tw, f); err != nil {
			return err
		}
	}
	if err := tw.Close(); err != nil {
		return err
	}
	if err := gz.Close(); err != nil {
		return err
	}
	return out.Close()
}

func addFile(tw *tar.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return err
	}
	hdr := &tar.Header{
		Name:     filepath.Base(path),
		Mode:     0o644,
		Size:     st.Size(),
		ModTime:  st.ModTime(),
		Typeflag: tar.TypeReg,
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	_, err = io.Copy(tw, f)
	return err
}

// Grid returns the values lo, lo+step, ... up to hi.
func Grid(lo, hi, step float64) []float64 {
	var xs []float64
	for i := 0; ; i++ {
		x := lo + float64(i)*step
		if x > hi+step/2 {
			return xs
		}
		xs = append(xs, x)
	}
}

// ERA5File writes an ERA5-style file: int16 variables packed with
// scale_factor and add_offset on (time, latitude, longitude), hourly times
// since 1900 and descending latitudes.
func ERA5File(path string, names []string, times []time.Time, lat, lon []float64) error {
	ref := time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC)
	hours := make([]int32, len(times))
	for i, t := range times {
		hours[i] = int32(t.Sub(ref) / time.Hour)
	}
	vars := []Var{
		{Name: "longitude", Dims: []string{"longitude"}, Values: float32s(lon),
			Attrs: map[string]any{"units": "degrees_east", "long_name": "longitude"}},
		{Name: "latitude", Dims: []string{"latitude"}, Values: float32s(lat),
			Attrs: map[string]any{"units": "degrees_north", "long_name": "latitude"}},
		{Name: "time", Dims: []string{"time"}, Values: hours,
			Attrs: map[string]any{"units": "hours since 1900-01-01 00:00:00.0", "long_name": "time", "calendar": "gregorian"}},
	}
	for k, name := range names {
		values := make([][][]int16, len(times))
		for i := range values {
			values[i] = make([][]int16, len(lat))
			for j := range values[i] {
				values[i][j] = make([]int16, len(lon))
				for l := range values[i][j] {
					values[i][j][l] = int16(100*k + 10*i + j + l)
				}
			}
		}
		vars = append(vars, Var{
			Name:   name,
			Dims:   []string{"time", "latitude", "longitude"},
			Values: values,
			Attrs: map[string]any{
				"scale_factor": 0.5,
				"add_offset":   250.0,
				"_FillValue":   int16(-32767),
				"units":        "K",
			},
		})
	}
	return WriteNetCDF(path, map[string]any{"Conventions": "CF-1.6"}, vars...)
}

// SoilMoistureFile writes one daily soil moisture file with a float32 sm
// variable on (time, lat, lon) and times in days since 1970.
func SoilMoistureFile(path string, t time.Time, lat, lon []float64) error {
	sm := [][][]float32{make([][]float32, len(lat))}
	for j := range lat {
		sm[0][j] = make([]float32, len(lon))
		for l := range lon {
			sm[0][j][l] = 0.25
		}
	}
	sm[0][0][0] = -9999
	days := []float64{float64(t.Unix()) / 86400}
	return WriteNetCDF(path, map[string]any{"title": "C3S Surface Soil Moisture"},
		Var{Name: "lat", Dims: []string{"lat"}, Values: float32s(lat),
			Attrs: map[string]any{"units": "degrees_north"}},
		Var{Name: "lon", Dims: []string{"lon"}, Values: float32s(lon),
			Attrs: map[string]any{"units": "degrees_east"}},
		Var{Name: "time", Dims: []string{"time"}, Values: days,
			Attrs: map[string]any{"units": "days since 1970-01-01 00:00:00 UTC"}},
		Var{Name: "sm", Dims: []string{"time", "lat", "lon"}, Values: sm,
			Attrs: map[string]any{"units": "m3 m-3", "_FillValue": float32(-9999)}},
		Var{Name: "flag", Dims: []string{"time", "lat", "lon"}, Values: sm,
			Attrs: map[string]any{"long_name": "Flag"}},
	)
}

// SeaIceFile writes one monthly sea ice thickness file on an n×n cutout of
// the EASE2 grid.
func SeaIceFile(path string, month time.Time, n int) error {
	xc := make([]float64, n)
	yc := make([]float64, n)
	for i := range xc {
		xc[i] = -5387.5 + 25*float64(i)
		yc[i] = 5387.5 - 25*float64(i)
	}
	field := func(v float32) [][][]float32 {
		out := [][][]float32{make([][]float32, n)}
		for j := range out[0] {
			out[0][j] = make([]float32, n)
			for i := range out[0][j] {
				out[0][j][i] = v
			}
		}
		return out
	}
	flags := [][][]int16{make([][]int16, n)}
	for j := range flags[0] {
		flags[0][j] = make([]int16, n)
	}
	mid := month.AddDate(0, 0, 14)
	secs := func(t time.Time) float64 { return float64(t.Sub(time.Date(1978, 10, 1, 0, 0, 0, 0, time.UTC)) / time.Second) }
	units := "seconds since 1978-10-01 00:00:00"
	return WriteNetCDF(path, map[string]any{"title": "Sea ice thickness"},
		Var{Name: "time", Dims: []string{"time"}, Values: []float64{secs(mid)},
			Attrs: map[string]any{"units": units}},
		Var{Name: "time_bnds", Dims: []string{"time", "nv"},
			Values: [][]float64{{secs(month), secs(month.AddDate(0, 1, 0))}},
			Attrs:  map[string]any{"units": units}},
		Var{Name: "xc", Dims: []string{"xc"}, Values: xc, Attrs: map[string]any{"units": "km"}},
		Var{Name: "yc", Dims: []string{"yc"}, Values: yc, Attrs: map[string]any{"units": "km"}},
		Var{Name: "sea_ice_thickness", Dims: []string{"time", "yc", "xc"}, Values: field(1.5),
			Attrs: map[string]any{"units": "m"}},
		Var{Name: "uncertainty", Dims: []string{"time", "yc", "xc"}, Values: field(0.1),
			Attrs: map[string]any{"units": "m"}},
		Var{Name: "quality_flag", Dims: []string{"time", "yc", "xc"}, Values: flags},
		Var{Name: "status_flag", Dims: []string{"time", "yc", "xc"}, Values: flags},
	)
}

func float32s(xs []float64) []float32 {
	out := make([]float32, len(xs))
	for i, x := range xs {
		out[i] = float32(x)
	}
	return out
}
