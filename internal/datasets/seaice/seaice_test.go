package seaice

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rtm0/cdsstore/internal/cdstest"
	"github.com/rtm0/cdsstore/internal/datasets"
)

const (
	envisatID = "satellite-sea-ice-thickness:envisat"
	cryosatID = "satellite-sea-ice-thickness:cryosat-2"
)

func openParams(t *testing.T, h *Handler, dataID string, m map[string]any) *datasets.Params {
	t.Helper()
	s := h.OpenParamsSchema(dataID)
	require.NoError(t, s.Validate(m))
	p, err := datasets.DecodeParams(s.ApplyDefaults(m))
	require.NoError(t, err)
	return p
}

func expectedSchema(minDate, maxDate string, records ...any) map[string]any {
	date := func() map[string]any {
		m := map[string]any{"type": "string", "format": "date", "minDate": minDate}
		if maxDate != "" {
			m["maxDate"] = maxDate
		}
		return m
	}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"time_range": map[string]any{
				"type":  "array",
				"items": []any{date(), date()},
			},
			"variable_names": map[string]any{
				"type":    "array",
				"default": []any{"all"},
				"items": map[string]any{
					"type":      "string",
					"default":   "all",
					"enum":      []any{"all"},
					"minLength": 0.0,
				},
				"uniqueItems": true,
			},
			"type_of_record": map[string]any{
				"type":        "string",
				"default":     "cdr",
				"title":       "Type of record",
				"description": recordDescription,
				"enum":        records,
			},
			"version": map[string]any{
				"type":    "string",
				"default": "2.0",
				"enum":    []any{"2.0", "1.0"},
				"title":   "Data version",
			},
		},
		"additionalProperties": false,
		"required":             []any{"time_range"},
	}
}

func TestHandler_OpenParamsSchema(t *testing.T) {
	h := NewHandler()
	tests := []struct {
		dataID string
		want   map[string]any
	}{
		{envisatID, expectedSchema("2002-10-01", "2010-10-31", "cdr")},
		{cryosatID, expectedSchema("2010-11-01", "", "cdr", "icdr")},
	}
	for _, test := range tests {
		t.Run(test.dataID, func(t *testing.T) {
			got := h.OpenParamsSchema(test.dataID).ToMap()
			if diff := cmp.Diff(test.want, got); diff != "" {
				t.Errorf("schema mismatch (-want +got):\n%s", diff)
			}
		})
	}

	s := h.OpenParamsSchema(envisatID)
	assert.Error(t, s.Validate(map[string]any{"time_range": []any{"2011-01-01", "2011-02-01"}}))
	assert.Error(t, s.Validate(map[string]any{
		"time_range":     []any{"2005-01-01", "2005-02-01"},
		"type_of_record": "icdr",
	}))
	assert.Error(t, s.Validate(map[string]any{}))
}

func TestHandler_DataIDs(t *testing.T) {
	h := NewHandler()
	assert.ElementsMatch(t, []string{envisatID, cryosatID}, h.DataIDs())
	assert.Equal(t, "Sea ice thickness (Envisat)", h.Title(envisatID))
	assert.Equal(t, "Sea ice thickness (CryoSat-2)", h.Title(cryosatID))
	assert.Empty(t, h.Title("satellite-sea-ice-thickness:sentinel-3"))
}

func TestHandler_Describe(t *testing.T) {
	h := NewHandler()
	tests := []struct {
		dataID     string
		start, end string
	}{
		{envisatID, "2002-10-01", "2010-10-31"},
		{cryosatID, "2010-11-01", ""},
	}
	for _, test := range tests {
		t.Run(test.dataID, func(t *testing.T) {
			d, err := h.Describe(test.dataID, nil)
			require.NoError(t, err)
			assert.Equal(t, test.dataID, d.DataID)
			assert.Equal(t, "EPSG:6931", d.CRS)
			assert.Equal(t, [4]float64{-180, 16.6239, 180, 90}, d.BBox)
			assert.Equal(t, 25.0, d.SpatialRes)
			assert.Equal(t, test.start, *d.TimeRange[0])
			if test.end == "" {
				assert.Nil(t, d.TimeRange[1])
			} else {
				assert.Equal(t, test.end, *d.TimeRange[1])
			}
			assert.ElementsMatch(t,
				[]string{"sea_ice_thickness", "quality_flag", "status_flag", "uncertainty"},
				d.DataVarNames())
			assert.ElementsMatch(t,
				[]string{"time", "time_bnds", "xc", "yc", "Lambert_Azimuthal_Grid"},
				d.CoordNames())
		})
	}

	p := openParams(t, h, envisatID, map[string]any{"time_range": []any{"2005-03-01", "2005-04-30"}})
	d, err := h.Describe(envisatID, p)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"time": 2, "nv": 2, "yc": 432, "xc": 432}, d.Dims)
	assert.Len(t, d.DataVars, 4)

	p = openParams(t, h, envisatID, map[string]any{
		"time_range":     []any{"2005-03-01", "2005-04-30"},
		"variable_names": []any{},
	})
	d, err = h.Describe(envisatID, p)
	require.NoError(t, err)
	assert.Empty(t, d.DataVars)
	ds, err := h.Empty(envisatID, p)
	require.NoError(t, err)
	assert.ElementsMatch(t, d.DataVarNames(), ds.DataVarNames())
	assert.ElementsMatch(t, d.CoordNames(), ds.CoordNames())
}

func TestHandler_Request(t *testing.T) {
	h := NewHandler()
	p := openParams(t, h, cryosatID, map[string]any{
		"time_range":     []any{"2016-11-15", "2017-02-01"},
		"type_of_record": "icdr",
	})

	req, err := h.Request(cryosatID, p)
	require.NoError(t, err)
	assert.Equal(t, "satellite-sea-ice-thickness", req.Dataset)
	assert.Equal(t, map[string]any{
		"satellite": "cryosat_2",
		"cdr_type":  "icdr",
		"variable":  "all",
		"year":      []string{"2016", "2017"},
		"month":     []string{"01", "02", "11", "12"},
		"version":   "2_0",
		"format":    "tgz",
	}, req.Params)
}

func TestHandler_OpenEndedRange(t *testing.T) {
	h := NewHandler()
	p := openParams(t, h, envisatID, map[string]any{"time_range": []any{"2010-08-01"}})
	d, err := h.Describe(envisatID, p)
	require.NoError(t, err)
	// the envisat record ends in October 2010
	assert.Equal(t, 3, d.Dims["time"])
}

func TestHandler_Empty(t *testing.T) {
	h := NewHandler()
	p := openParams(t, h, envisatID, map[string]any{
		"time_range":     []any{"2005-03-01", "2005-04-30"},
		"variable_names": []any{},
	})

	ds, err := h.Empty(envisatID, p)
	require.NoError(t, err)
	require.NoError(t, ds.Validate())
	assert.Empty(t, ds.DataVars())
	assert.ElementsMatch(t, []string{"time", "time_bnds", "xc", "yc", gridName}, ds.CoordNames())
	assert.Equal(t, map[string]int{"time": 2, "nv": 2, "yc": 432, "xc": 432}, ds.Dims())
	assert.Equal(t, "2005-03-01T00:00:00", ds.Attrs["time_coverage_start"])
	assert.Equal(t, "2005-04-30T23:59:59.999999", ds.Attrs["time_coverage_end"])

	yc, _ := ds.Coord("yc")
	assert.Equal(t, 5387.5, yc.Data[0])
	assert.Equal(t, -5387.5, yc.Data[431])
	bnds, _ := ds.Coord("time_bnds")
	assert.Equal(t, float64(time.Date(2005, 4, 1, 0, 0, 0, 0, time.UTC).Unix()), bnds.Data[1])
}

func TestHandler_Read(t *testing.T) {
	h := NewHandler()
	p := openParams(t, h, envisatID, map[string]any{"time_range": []any{"2005-03-01", "2005-04-30"}})

	src, tmp := t.TempDir(), t.TempDir()
	var files []string
	for m := time.March; m <= time.May; m++ {
		month := time.Date(2005, m, 1, 0, 0, 0, 0, time.UTC)
		path := filepath.Join(src, "ice_thickness_nh_ease2-250_cdr-v2p0_"+month.Format("200601")+".nc")
		require.NoError(t, cdstest.SeaIceFile(path, month, 4))
		files = append(files, path)
	}
	result := filepath.Join(src, "result")
	require.NoError(t, cdstest.WriteTarGz(result, files...))

	ds, err := h.Read(envisatID, p, result, tmp)
	require.NoError(t, err)
	require.NoError(t, ds.Validate())

	assert.ElementsMatch(t,
		[]string{"sea_ice_thickness", "quality_flag", "status_flag", "uncertainty"},
		ds.DataVarNames())
	assert.ElementsMatch(t, []string{"time", "time_bnds", "xc", "yc", gridName}, ds.CoordNames())
	assert.Equal(t, 2, ds.Dims()["time"])
	assert.Equal(t, "2005-03-01T00:00:00", ds.Attrs["time_coverage_start"])
	assert.Equal(t, "2005-04-30T23:59:59.999999", ds.Attrs["time_coverage_end"])

	grid, ok := ds.Coord(gridName)
	require.True(t, ok)
	assert.Equal(t, "lambert_azimuthal_equal_area", grid.Attrs["grid_mapping_name"])
}
