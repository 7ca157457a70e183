package datasets

import (
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rtm0/cdsstore/internal/cdstest"
	"github.com/rtm0/cdsstore/internal/dataset"
)

func TestParams_LatLonAxes(t *testing.T) {
	tests := []struct {
		name         string
		bbox         []float64
		res          float64
		nLat, nLon   int
		north, south float64
	}{
		{"global", nil, 0.25, 721, 1441, 90, -90},
		{"europe", []float64{-45, 0, 45, 60}, 0.25, 241, 361, 60, 0},
		{"snapped", []float64{10.1, -14, 12.9, -4}, 0.25, 41, 13, -4, -14},
		{"coarse global", nil, 7, 25, 51, 84, -84},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			lat, lon := (&Params{BBox: test.bbox}).LatLonAxes(test.res)
			assert.Len(t, lat, test.nLat)
			assert.Len(t, lon, test.nLon)
			assert.Equal(t, test.north, lat[0])
			assert.Equal(t, test.south, lat[len(lat)-1])
		})
	}
}

func TestEmptyGrid(t *testing.T) {
	ticks := []time.Time{date(2015, 1, 1, 0), date(2015, 2, 1, 0)}
	ds := EmptyGrid(ticks, []float64{1, 0}, []float64{0, 1, 2})

	require.NoError(t, ds.Validate())
	assert.Empty(t, ds.DataVars())
	assert.Equal(t, map[string]int{"time": 2, "lat": 2, "lon": 3}, ds.Dims())
	first, last, ok := Coverage(ds)
	require.True(t, ok)
	assert.Equal(t, ticks[0], first)
	assert.Equal(t, ticks[1], last)
}

func TestNormalizeLatLon(t *testing.T) {
	path := filepath.Join(t.TempDir(), "era5.nc")
	lat := []float64{1, 0.75, 0.5, 0.25, 0}
	lon := []float64{-0.5, -0.25, 0, 0.25, 0.5}
	require.NoError(t, cdstest.ERA5File(path, []string{"t2m"}, []time.Time{date(2015, 1, 1, 0)}, lat, lon))
	ds, err := dataset.ReadNetCDF(path)
	require.NoError(t, err)

	p := &Params{BBox: []float64{0, 0, 1, 0.5}}
	out, err := NormalizeLatLon(ds, p, 0.25)
	require.NoError(t, err)
	require.NoError(t, out.Validate())

	assert.Equal(t, []string{"lat", "lon", "time"}, out.CoordNames())
	latC, _ := out.Coord("lat")
	assert.Equal(t, []float64{0.5, 0.25, 0}, latC.Data)
	assert.Equal(t, "degrees_north", latC.Attrs["units"])
	lonC, _ := out.Coord("lon")
	assert.Equal(t, []float64{0, 0.25, 0.5, 0.75, 1}, lonC.Data)

	v, _ := out.DataVar("t2m")
	assert.Equal(t, []int{1, 3, 5}, v.Shape)
	assert.Equal(t, []string{"time", "lat", "lon"}, v.Dims)
	// lat 0.5 is source row 2, lon 0 is source column 2
	assert.Equal(t, 250+0.5*4, v.Data[0])
	assert.Equal(t, 250+0.5*6, v.Data[2])
	// lon 0.75 is one cell east of the source edge, lon 1 is beyond it
	assert.False(t, math.IsNaN(v.Data[3]))
	assert.True(t, math.IsNaN(v.Data[4]))
}
