// Package seaice serves the satellite sea ice thickness products on the
// EASE2 northern hemisphere grid.
package seaice

import (
	"fmt"
	"strings"
	"time"

	"github.com/rtm0/cdsstore/internal/dataset"
	"github.com/rtm0/cdsstore/internal/datasets"
	"github.com/rtm0/cdsstore/internal/schema"
)

const (
	apiName  = "satellite-sea-ice-thickness"
	idPrefix = apiName + ":"

	gridName = "Lambert_Azimuthal_Grid"
	// EASE2 25 km grid, cell centres in km.
	gridSize = 432
	gridRes  = 25.0
	gridEdge = 5387.5
)

const recordDescription = "This dataset combines a Climate Data Record (CDR), " +
	"which has sufficient length, consistency, and " +
	"continuity to be used to assess climate " +
	"variability and change, and an Interim Climate " +
	"Data Record (ICDR), which provides regular " +
	"temporal extensions to the CDR and where " +
	"consistency with the CDR is expected but not " +
	"extensively checked. The ICDR is based on " +
	"observations from CryoSat-2 only (from April 2015 " +
	"onward)."

type satellite struct {
	name    string
	request string
	title   string
	start   string
	end     string
	records []string
}

var satellites = []*satellite{
	{
		name:    "envisat",
		request: "envisat",
		title:   "Envisat",
		start:   "2002-10-01",
		end:     "2010-10-31",
		records: []string{"cdr"},
	},
	{
		name:    "cryosat-2",
		request: "cryosat_2",
		title:   "CryoSat-2",
		start:   "2010-11-01",
		records: []string{"cdr", "icdr"},
	},
}

type variable struct {
	name     string
	dtype    string
	units    string
	longName string
}

var variables = []variable{
	{name: "sea_ice_thickness", dtype: "float32", units: "m", longName: "Sea Ice Thickness"},
	{name: "quality_flag", dtype: "int8", longName: "Sea Ice Thickness Quality Flag"},
	{name: "status_flag", dtype: "int8", longName: "Status Flag"},
	{name: "uncertainty", dtype: "float32", units: "m", longName: "Sea Ice Thickness Uncertainty"},
}

// Handler serves the sea ice thickness products.
type Handler struct{}

// NewHandler returns the sea ice handler.
func NewHandler() *Handler {
	return &Handler{}
}

func (h *Handler) satellite(dataID string) (*satellite, error) {
	for _, s := range satellites {
		if idPrefix+s.name == dataID {
			return s, nil
		}
	}
	return nil, fmt.Errorf("seaice: unknown data id %q", dataID)
}

// DataIDs implements datasets.Handler.
func (h *Handler) DataIDs() []string {
	ids := make([]string, len(satellites))
	for i, s := range satellites {
		ids[i] = idPrefix + s.name
	}
	return ids
}

// Title implements datasets.Handler.
func (h *Handler) Title(dataID string) string {
	s, err := h.satellite(dataID)
	if err != nil {
		return ""
	}
	return "Sea ice thickness (" + s.title + ")"
}

// OpenParamsSchema implements datasets.Handler.
func (h *Handler) OpenParamsSchema(dataID string) *schema.Schema {
	s, err := h.satellite(dataID)
	if err != nil {
		return nil
	}
	date := func() *schema.Schema {
		return &schema.Schema{Type: "string", Format: "date", MinDate: s.start, MaxDate: s.end}
	}
	names := &schema.Schema{
		Type:    "string",
		Default: "all",
		Enum:    []any{"all"},
		// CDS only serves all variables at once.
		MinLength: schema.Int(0),
	}
	return schema.Object(map[string]*schema.Schema{
		"time_range": {Type: "array", Items: []*schema.Schema{date(), date()}},
		"variable_names": {
			Type:        "array",
			Default:     []any{"all"},
			Items:       names,
			UniqueItems: true,
		},
		"type_of_record": {
			Type:        "string",
			Default:     "cdr",
			Title:       "Type of record",
			Description: recordDescription,
			Enum:        schema.Strings(s.records...),
		},
		"version": schema.String().
			WithDefault("2.0").
			WithEnum("2.0", "1.0").
			WithTitle("Data version"),
	}, "time_range")
}

// Describe implements datasets.Handler.
func (h *Handler) Describe(dataID string, params *datasets.Params) (*dataset.Descriptor, error) {
	s, err := h.satellite(dataID)
	if err != nil {
		return nil, err
	}
	start := s.start
	d := &dataset.Descriptor{
		DataID:     dataID,
		CRS:        "EPSG:6931",
		BBox:       [4]float64{-180, 16.6239, 180, 90},
		SpatialRes: gridRes,
		TimeRange:  [2]*string{&start, nil},
		TimePeriod: "1M",
		Coords: map[string]dataset.VariableDescriptor{
			"time":      {Name: "time", DType: "int64", Dims: []string{"time"}},
			"time_bnds": {Name: "time_bnds", DType: "int64", Dims: []string{"time", "nv"}},
			"xc":        {Name: "xc", DType: "float64", Dims: []string{"xc"}, Attrs: map[string]any{"units": "km"}},
			"yc":        {Name: "yc", DType: "float64", Dims: []string{"yc"}, Attrs: map[string]any{"units": "km"}},
			gridName:    {Name: gridName, DType: "int32", Dims: []string{}},
		},
		DataVars: map[string]dataset.VariableDescriptor{},
	}
	if s.end != "" {
		end := s.end
		d.TimeRange[1] = &end
	}
	for _, v := range variables {
		// "all" is the only selectable name, so any selection means every
		// variable.
		if params != nil && len(params.VariableNames) == 0 {
			break
		}
		attrs := map[string]any{"long_name": v.longName}
		if v.units != "" {
			attrs["units"] = v.units
		}
		d.DataVars[v.name] = dataset.VariableDescriptor{
			Name:  v.name,
			DType: v.dtype,
			Dims:  []string{"time", "yc", "xc"},
			Attrs: attrs,
		}
	}
	if params != nil {
		ticks, err := h.ticks(s, params)
		if err != nil {
			return nil, err
		}
		d.Dims = map[string]int{"time": len(ticks), "nv": 2, "yc": gridSize, "xc": gridSize}
	}
	return d, nil
}

// ticks returns the first of every month touched by the time range.
func (h *Handler) ticks(s *satellite, params *datasets.Params) ([]time.Time, error) {
	defaultEnd := datasets.MonthStart(datasets.Now().UTC())
	if s.end != "" {
		defaultEnd, _ = datasets.ParseTime(s.end)
	}
	start, end, err := params.TimeBounds(defaultEnd)
	if err != nil {
		return nil, err
	}
	return datasets.Months(start, end), nil
}

// Request implements datasets.Handler.
func (h *Handler) Request(dataID string, params *datasets.Params) (*datasets.Request, error) {
	s, err := h.satellite(dataID)
	if err != nil {
		return nil, err
	}
	ticks, err := h.ticks(s, params)
	if err != nil {
		return nil, err
	}
	sel := datasets.TickSelection(ticks)
	return &datasets.Request{
		Dataset: apiName,
		Params: map[string]any{
			"satellite": s.request,
			"cdr_type":  params.TypeOfRecord,
			"variable":  "all",
			"year":      datasets.Padded(sel.Years, 4),
			"month":     datasets.Padded(sel.Months, 2),
			"version":   strings.ReplaceAll(params.Version, ".", "_"),
			"format":    "tgz",
		},
	}, nil
}

// Read implements datasets.Handler.
func (h *Handler) Read(dataID string, params *datasets.Params, resultPath, tempDir string) (*dataset.Dataset, error) {
	s, err := h.satellite(dataID)
	if err != nil {
		return nil, err
	}
	ticks, err := h.ticks(s, params)
	if err != nil {
		return nil, err
	}
	ds, err := datasets.OpenResult(resultPath, tempDir, "time_bnds", gridName)
	if err != nil {
		return nil, err
	}
	want := map[string]bool{}
	for _, v := range variables {
		if _, ok := ds.DataVar(v.name); !ok {
			return nil, fmt.Errorf("seaice: response lacks variable %q", v.name)
		}
		want[v.name] = true
	}
	ds.KeepDataVars(func(name string) bool { return want[name] })

	months := map[time.Time]bool{}
	for _, t := range ticks {
		months[t] = true
	}
	ds, err = ds.SelectTimes(func(t time.Time) bool {
		return months[datasets.MonthStart(t)]
	})
	if err != nil {
		return nil, err
	}
	if _, ok := ds.Coord(gridName); !ok {
		ds.AddCoord(gridMapping())
	}
	setAttrs(ds, s, ticks)
	return ds, nil
}

// Empty implements datasets.Handler.
func (h *Handler) Empty(dataID string, params *datasets.Params) (*dataset.Dataset, error) {
	s, err := h.satellite(dataID)
	if err != nil {
		return nil, err
	}
	ticks, err := h.ticks(s, params)
	if err != nil {
		return nil, err
	}
	ds := dataset.New()
	ds.AddCoord(dataset.TimeCoord(ticks))
	bounds, err := timeBounds(ticks)
	if err != nil {
		return nil, err
	}
	ds.AddCoord(bounds)
	xc, yc := gridAxes()
	ds.AddCoord(xc)
	ds.AddCoord(yc)
	ds.AddCoord(gridMapping())
	setAttrs(ds, s, ticks)
	return ds, nil
}

// gridAxes returns the EASE2 cell centre coordinates, yc descending.
func gridAxes() (xc, yc *dataset.Variable) {
	xs := make([]float64, gridSize)
	ys := make([]float64, gridSize)
	for i := range xs {
		xs[i] = -gridEdge + float64(i)*gridRes
		ys[i] = gridEdge - float64(i)*gridRes
	}
	xc = dataset.Coord1D("xc", "float64", xs)
	xc.Attrs["units"] = "km"
	xc.Attrs["standard_name"] = "projection_x_coordinate"
	yc = dataset.Coord1D("yc", "float64", ys)
	yc.Attrs["units"] = "km"
	yc.Attrs["standard_name"] = "projection_y_coordinate"
	return xc, yc
}

// timeBounds returns the [month start, next month start) bounds of ticks.
func timeBounds(ticks []time.Time) (*dataset.Variable, error) {
	data := make([]float64, 0, 2*len(ticks))
	for _, t := range ticks {
		data = append(data, float64(t.Unix()), float64(t.AddDate(0, 1, 0).Unix()))
	}
	v, err := dataset.NewVariable("time_bnds", []string{"time", "nv"}, []int{len(ticks), 2}, "int64", data)
	if err != nil {
		return nil, err
	}
	v.Attrs["units"] = dataset.EpochUnits
	return v, nil
}

func gridMapping() *dataset.Variable {
	v := &dataset.Variable{
		Name:  gridName,
		Dims:  []string{},
		Shape: []int{},
		DType: "int32",
		Data:  []float64{0},
		Attrs: map[string]any{
			"grid_mapping_name":              "lambert_azimuthal_equal_area",
			"longitude_of_projection_origin": 0.0,
			"latitude_of_projection_origin":  90.0,
			"false_easting":                  0.0,
			"false_northing":                 0.0,
			"semi_major_axis":                6378137.0,
			"inverse_flattening":             298.257223563,
			"proj4_string":                   "+proj=laea +lon_0=0 +datum=WGS84 +ellps=WGS84 +lat_0=90.0",
		},
	}
	return v
}

// setAttrs sets the coverage to the months of ticks, ending one microsecond
// before the month after the last tick.
func setAttrs(ds *dataset.Dataset, s *satellite, ticks []time.Time) {
	ds.Attrs["title"] = "Sea ice thickness (" + s.title + ")"
	ds.Attrs["source"] = "Copernicus Climate Data Store: " + apiName
	if len(ticks) == 0 {
		return
	}
	start := ticks[0]
	end := ticks[len(ticks)-1].AddDate(0, 1, 0).Add(-time.Microsecond)
	datasets.SetCoverage(ds.Attrs, start.Format(datasets.CoverageLayoutLocal), end.Format(datasets.CoverageLayoutLocal))
}
