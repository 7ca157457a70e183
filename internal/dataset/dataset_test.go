package dataset

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDataset(t *testing.T) *Dataset {
	t.Helper()
	ds := New()
	ds.AddCoord(TimeCoord([]time.Time{
		time.Date(2015, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2015, 2, 1, 0, 0, 0, 0, time.UTC),
	}))
	ds.AddCoord(Coord1D("lat", "float64", []float64{1, 0}))
	ds.AddCoord(Coord1D("lon", "float64", []float64{0, 1, 2}))
	v, err := NewVariable("t2m", []string{"time", "lat", "lon"}, []int{2, 2, 3}, "float32",
		[]float64{0, 1, 2, 3, 4, 5, 10, 11, 12, 13, 14, 15})
	require.NoError(t, err)
	ds.AddDataVar(v)
	return ds
}

func TestNewVariable_ShapeMismatch(t *testing.T) {
	_, err := NewVariable("x", []string{"a", "b"}, []int{2, 2}, "float64", []float64{1, 2, 3})
	require.Error(t, err)
	_, err = NewVariable("x", []string{"a"}, []int{2, 2}, "float64", []float64{1, 2, 3, 4})
	require.Error(t, err)
}

func TestDataset_AddReplacesByName(t *testing.T) {
	ds := testDataset(t)
	ds.AddDataVar(&Variable{Name: "t2m", Dims: []string{"time"}, Shape: []int{2}, Data: []float64{7, 8}})

	require.Len(t, ds.DataVars(), 1)
	v, ok := ds.DataVar("t2m")
	require.True(t, ok)
	assert.Equal(t, []float64{7, 8}, v.Data)
}

func TestDataset_Dims(t *testing.T) {
	ds := testDataset(t)
	assert.Equal(t, map[string]int{"time": 2, "lat": 2, "lon": 3}, ds.Dims())
	assert.Equal(t, []string{"lat", "lon", "time"}, ds.CoordNames())
	assert.Equal(t, []string{"t2m"}, ds.DataVarNames())
}

func TestDataset_Validate(t *testing.T) {
	ds := testDataset(t)
	require.NoError(t, ds.Validate())

	ds.AddCoord(Coord1D("lon", "float64", []float64{0, 1}))
	err := ds.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `dimension "lon"`)
}

func TestDataset_Rename(t *testing.T) {
	ds := New()
	ds.AddCoord(Coord1D("latitude", "float64", []float64{1, 0}))
	v, err := NewVariable("sm", []string{"latitude"}, []int{2}, "float32", []float64{3, 4})
	require.NoError(t, err)
	ds.AddDataVar(v)

	ds.Rename("latitude", "lat")

	lat, ok := ds.Coord("lat")
	require.True(t, ok)
	assert.Equal(t, []string{"lat"}, lat.Dims)
	sm, _ := ds.DataVar("sm")
	assert.Equal(t, []string{"lat"}, sm.Dims)
}

func TestDataset_KeepDropPromote(t *testing.T) {
	ds := testDataset(t)
	ds.AddDataVar(&Variable{Name: "expver", Dims: []string{"time"}, Shape: []int{2}, Data: []float64{1, 1}})

	ds.PromoteToCoord("expver")
	assert.Equal(t, []string{"t2m"}, ds.DataVarNames())
	assert.Contains(t, ds.CoordNames(), "expver")

	ds.DropCoord("expver")
	assert.NotContains(t, ds.CoordNames(), "expver")

	ds.KeepDataVars(func(string) bool { return false })
	assert.Empty(t, ds.DataVars())
}

func TestDataset_Bounds(t *testing.T) {
	west, south, east, north, err := testDataset(t).Bounds()
	require.NoError(t, err)
	assert.Equal(t, [4]float64{0, 0, 2, 1}, [4]float64{west, south, east, north})

	_, _, _, _, err = New().Bounds()
	assert.Error(t, err)
}

func TestConcat(t *testing.T) {
	a, b := testDataset(t), testDataset(t)
	for _, v := range b.Coords() {
		if v.Name == "time" {
			v.Data = []float64{v.Data[0] + 86400*59, v.Data[1] + 86400*59}
		}
	}

	ds, err := Concat("time", a, b)
	require.NoError(t, err)
	require.NoError(t, ds.Validate())
	assert.Equal(t, 4, ds.Dims()["time"])
	lat, _ := ds.Coord("lat")
	assert.Equal(t, []float64{1, 0}, lat.Data)
	ts, err := ds.Times()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2015, 4, 1, 0, 0, 0, 0, time.UTC), ts[3])
}

func TestConcat_MissingVariable(t *testing.T) {
	a, b := testDataset(t), testDataset(t)
	b.KeepDataVars(func(string) bool { return false })
	_, err := Concat("time", a, b)
	assert.Error(t, err)
}

func TestGridAxis(t *testing.T) {
	tests := []struct {
		name       string
		lo, hi     float64
		res        float64
		descending bool
		n          int
		first      float64
		last       float64
	}{
		{"global lon", -180, 180, 0.25, false, 1441, -180, 180},
		{"global lat", -90, 90, 0.25, true, 721, 90, -90},
		{"lon [-45, 45]", -45, 45, 0.25, false, 361, -45, 45},
		{"snapped outward", 10.1, 12.9, 0.25, false, 13, 10, 13},
		{"land grid", 0, 1, 0.1, false, 11, 0, 1},
		{"single point", 5, 5, 1, true, 1, 5, 5},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			axis := GridAxis(test.lo, test.hi, test.res, test.descending)
			require.Len(t, axis, test.n)
			assert.Equal(t, test.first, axis[0])
			assert.Equal(t, test.last, axis[len(axis)-1])
		})
	}
}

func TestRegrid(t *testing.T) {
	ds := testDataset(t)

	out, err := ds.Regrid([]float64{2, 1, 0}, []float64{359, 0, 1, 5})
	require.NoError(t, err)
	require.NoError(t, out.Validate())

	v, _ := out.DataVar("t2m")
	assert.Equal(t, []int{2, 3, 4}, v.Shape)
	// lat 2 is one cell away from lat 1; lon 359 wraps to lon 0 neighbours;
	// lon 5 is out of reach.
	assert.Equal(t, []float64{0, 0, 1}, v.Data[0:3])
	assert.True(t, math.IsNaN(v.Data[3]))
	assert.Equal(t, []float64{3, 3, 4}, v.Data[8:11])
	lon, _ := out.Coord("lon")
	assert.Equal(t, []float64{359, 0, 1, 5}, lon.Data)
}

func TestSelectTimes(t *testing.T) {
	ds := testDataset(t)
	out, err := ds.SelectTimes(func(ts time.Time) bool { return ts.Month() == time.February })
	require.NoError(t, err)

	ts, err := out.Times()
	require.NoError(t, err)
	require.Len(t, ts, 1)
	v, _ := out.DataVar("t2m")
	assert.Equal(t, []float64{10, 11, 12, 13, 14, 15}, v.Data)
}
