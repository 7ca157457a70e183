package soilmoisture

import (
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rtm0/cdsstore/internal/cdstest"
	"github.com/rtm0/cdsstore/internal/datasets"
	"github.com/rtm0/cdsstore/internal/schema"
)

const (
	dailyID   = "satellite-soil-moisture:volumetric:daily"
	dekadID   = "satellite-soil-moisture:volumetric:10-day"
	monthlyID = "satellite-soil-moisture:saturation:monthly"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func openParams(t *testing.T, h *Handler, dataID string, m map[string]any) *datasets.Params {
	t.Helper()
	s := h.OpenParamsSchema(dataID)
	require.NoError(t, s.Validate(m))
	p, err := datasets.DecodeParams(s.ApplyDefaults(m))
	require.NoError(t, err)
	return p
}

func TestAggregation_Ticks(t *testing.T) {
	dekad := aggregations[1]
	ticks := dekad.Ticks(date(1981, 6, 14), date(1982, 2, 13))
	require.Len(t, ticks, 26)
	assert.Equal(t, date(1981, 6, 1), ticks[0])
	assert.Equal(t, date(1981, 6, 21), ticks[2])
	assert.Equal(t, date(1982, 2, 11), ticks[25])

	start, end := dekad.Coverage(ticks)
	assert.Equal(t, "1981-05-31T12:00:00Z", start.Format(datasets.CoverageLayout))
	assert.Equal(t, "1982-02-20T12:00:00Z", end.Format(datasets.CoverageLayout))

	monthly := aggregations[2]
	ticks = monthly.Ticks(date(2015, 1, 1), date(2015, 2, 28))
	assert.Equal(t, []time.Time{date(2015, 1, 1), date(2015, 2, 1)}, ticks)

	daily := aggregations[0]
	assert.Len(t, daily.Ticks(date(2016, 2, 27), date(2016, 3, 1)), 4)
	start, end = daily.Coverage(nil)
	assert.True(t, start.IsZero())
	assert.True(t, end.IsZero())
}

func TestHandler_DataIDs(t *testing.T) {
	h := NewHandler()
	ids := h.DataIDs()
	assert.Len(t, ids, 6)
	assert.Contains(t, ids, dekadID)
	assert.Equal(t, "Soil moisture (saturation, monthly)", h.Title(monthlyID))
	assert.Empty(t, h.Title("satellite-soil-moisture:volumetric:weekly"))
	assert.Empty(t, h.Title("satellite-soil-moisture"))
	assert.Nil(t, h.OpenParamsSchema("satellite-soil-moisture:root-zone:daily"))
}

func TestHandler_OpenParamsSchema(t *testing.T) {
	h := NewHandler()
	s := h.OpenParamsSchema(monthlyID)
	assert.Equal(t, []string{"time_range"}, s.Required)
	assert.Equal(t, []any{"surface_soil_moisture"}, s.Properties["variable_names"].Default)
	assert.Equal(t, "active", s.Properties["type_of_sensor"].Default)
	assert.Equal(t, "1M", s.Properties["time_period"].Default)

	assert.Error(t, s.Validate(map[string]any{
		"time_range":     []any{"2015-01-01", "2015-02-01"},
		"type_of_sensor": "passive",
	}))
	assert.Error(t, s.Validate(map[string]any{
		"time_range":  []any{"2015-01-01", "2015-02-01"},
		"spatial_res": 0.5,
	}))
	assert.Error(t, s.Validate(map[string]any{
		"variable_names": []any{"volumetric_surface_soil_moisture"},
		"time_range":     []any{"2015-01-01", "2015-02-01"},
	}))
}

func TestHandler_Request(t *testing.T) {
	h := NewHandler()
	p := openParams(t, h, dekadID, map[string]any{
		"time_range":     []any{"1981-06-14", "1982-02-13"},
		"type_of_sensor": "passive",
	})

	req, err := h.Request(dekadID, p)
	require.NoError(t, err)
	assert.Equal(t, "satellite-soil-moisture", req.Dataset)
	assert.Equal(t, map[string]any{
		"variable":         "volumetric_surface_soil_moisture",
		"type_of_sensor":   "passive",
		"time_aggregation": "10_day_average",
		"year":             []string{"1981", "1982"},
		"month":            []string{"01", "02", "06", "07", "08", "09", "10", "11", "12"},
		"day":              []string{"01", "11", "21"},
		"type_of_record":   "cdr",
		"version":          "v201912.0.0",
		"format":           "tgz",
	}, req.Params)
}

func TestHandler_Describe(t *testing.T) {
	h := NewHandler()
	d, err := h.Describe(dekadID, nil)
	require.NoError(t, err)
	assert.Equal(t, "1978-11-01", *d.TimeRange[0])
	assert.Equal(t, "10D", d.TimePeriod)
	assert.Equal(t, []string{"sm"}, d.DataVarNames())
	assert.Nil(t, d.Dims)

	p := openParams(t, h, dekadID, map[string]any{
		"time_range": []any{"1981-06-14", "1982-02-13"},
		"bbox":       []any{10.1, -14, 12.9, -4},
	})
	d, err = h.Describe(dekadID, p)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"time": 26, "lat": 41, "lon": 13}, d.Dims)
	assert.Equal(t, [4]float64{10, -14, 13, -4}, d.BBox)

	p = openParams(t, h, dekadID, map[string]any{
		"time_range": []any{"1981-06-14", "1982-02-13"},
		"bbox":       []any{-45, 0, 45, 60},
	})
	d, err = h.Describe(dekadID, p)
	require.NoError(t, err)
	assert.Equal(t, 361, d.Dims["lon"])

	p = openParams(t, h, dekadID, map[string]any{
		"variable_names": []any{},
		"time_range":     []any{"1981-06-14", "1982-02-13"},
	})
	d, err = h.Describe(dekadID, p)
	require.NoError(t, err)
	assert.Empty(t, d.DataVars)

	p.TimeRange = []*string{p.TimeRange[1], p.TimeRange[0]}
	_, err = h.Describe(dekadID, p)
	assert.ErrorIs(t, err, schema.ErrInvalid)
}

func TestHandler_Empty(t *testing.T) {
	h := NewHandler()
	p := openParams(t, h, monthlyID, map[string]any{
		"variable_names": []any{},
		"time_range":     []any{"2015-01-01", "2015-02-28"},
	})

	ds, err := h.Empty(monthlyID, p)
	require.NoError(t, err)
	require.NoError(t, ds.Validate())
	assert.Equal(t, map[string]int{"time": 2, "lat": 721, "lon": 1441}, ds.Dims())
	assert.Equal(t, "2014-12-31T12:00:00Z", ds.Attrs["time_coverage_start"])
	assert.Equal(t, "2015-02-28T12:00:00Z", ds.Attrs["time_coverage_end"])
}

func TestHandler_Read(t *testing.T) {
	h := NewHandler()
	p := openParams(t, h, dailyID, map[string]any{
		"time_range": []any{"2015-01-01", "2015-01-02"},
		"bbox":       []any{0, 0, 0.25, 0.25},
	})

	src, tmp := t.TempDir(), t.TempDir()
	var files []string
	for _, d := range []time.Time{date(2015, 1, 1), date(2015, 1, 2), date(2015, 1, 3)} {
		path := filepath.Join(src, "C3S-SOILMOISTURE-"+d.Format("20060102")+".nc")
		require.NoError(t, cdstest.SoilMoistureFile(path, d, []float64{0.25, 0}, []float64{0, 0.25}))
		files = append(files, path)
	}
	result := filepath.Join(src, "result")
	require.NoError(t, cdstest.WriteTarGz(result, files...))

	ds, err := h.Read(dailyID, p, result, tmp)
	require.NoError(t, err)
	require.NoError(t, ds.Validate())

	assert.Equal(t, []string{"sm"}, ds.DataVarNames())
	assert.Equal(t, map[string]int{"time": 2, "lat": 2, "lon": 2}, ds.Dims())
	assert.Equal(t, "2014-12-31T12:00:00Z", ds.Attrs["time_coverage_start"])
	assert.Equal(t, "2015-01-02T12:00:00Z", ds.Attrs["time_coverage_end"])

	v, _ := ds.DataVar("sm")
	assert.True(t, math.IsNaN(v.Data[0]))
	assert.InDelta(t, 0.25, v.Data[1], 1e-6)
}

func TestHandler_ReadMissingVariable(t *testing.T) {
	h := NewHandler()
	p := openParams(t, h, dailyID, map[string]any{
		"time_range": []any{"2015-01-01", "2015-01-01"},
	})
	dir := t.TempDir()
	result := filepath.Join(dir, "result")
	require.NoError(t, cdstest.WriteNetCDF(result, nil, cdstest.Var{
		Name: "time", Dims: []string{"time"}, Values: []float64{0},
		Attrs: map[string]any{"units": "days since 2015-01-01"},
	}))

	_, err := h.Read(dailyID, p, result, dir)
	assert.Error(t, err)
}
