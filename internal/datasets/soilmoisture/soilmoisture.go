// Package soilmoisture serves the satellite soil moisture products.
package soilmoisture

import (
	"fmt"
	"strings"
	"time"

	"github.com/rtm0/cdsstore/internal/dataset"
	"github.com/rtm0/cdsstore/internal/datasets"
	"github.com/rtm0/cdsstore/internal/schema"
)

const (
	apiName  = "satellite-soil-moisture"
	idPrefix = apiName + ":"
	res      = 0.25
	// Every tick stands for a period that starts half a day before it.
	halfDay = 12 * time.Hour
)

type variable struct {
	request  string
	name     string
	units    string
	longName string
}

type kind struct {
	name     string
	variable variable
	sensors  []string
	start    string
}

var kinds = []kind{
	{
		name: "volumetric",
		variable: variable{
			request:  "volumetric_surface_soil_moisture",
			name:     "sm",
			units:    "m3 m-3",
			longName: "Volumetric Soil Moisture",
		},
		sensors: []string{"combined_passive_and_active", "passive"},
		start:   "1978-11-01",
	},
	{
		name: "saturation",
		variable: variable{
			request:  "surface_soil_moisture",
			name:     "sm",
			units:    "percent of saturation",
			longName: "Percent of Saturation Soil Moisture",
		},
		sensors: []string{"active"},
		start:   "1991-08-05",
	},
}

// Aggregation is the temporal aggregation of a product.
type Aggregation struct {
	name        string
	period      string
	aggregation string
	title       string
	// requestUnit truncates a range start to the unit CDS selects by.
	requestUnit func(time.Time) time.Time
	next        func(time.Time) time.Time
	days        []int
}

var aggregations = []*Aggregation{
	{
		name:        "daily",
		period:      "1D",
		aggregation: "day_average",
		title:       "daily",
		requestUnit: datasets.DayStart,
		next:        func(t time.Time) time.Time { return t.AddDate(0, 0, 1) },
	},
	{
		name:        "10-day",
		period:      "10D",
		aggregation: "10_day_average",
		title:       "10-day",
		requestUnit: datasets.MonthStart,
		next:        nextDekad,
		days:        []int{1, 11, 21},
	},
	{
		name:        "monthly",
		period:      "1M",
		aggregation: "month_average",
		title:       "monthly",
		requestUnit: datasets.MonthStart,
		next:        func(t time.Time) time.Time { return t.AddDate(0, 1, 0) },
		days:        []int{1},
	},
}

func nextDekad(t time.Time) time.Time {
	if t.Day() >= 21 {
		return datasets.MonthStart(t).AddDate(0, 1, 0)
	}
	return t.AddDate(0, 0, 10)
}

// Ticks returns the ticks from the request unit containing start to the
// last tick not after end.
func (a *Aggregation) Ticks(start, end time.Time) []time.Time {
	var ticks []time.Time
	for t := a.first(a.requestUnit(start)); !t.After(end); t = a.next(t) {
		ticks = append(ticks, t)
	}
	return ticks
}

// first returns the first tick at or after t.
func (a *Aggregation) first(t time.Time) time.Time {
	t = datasets.DayStart(t)
	if a.days == nil {
		return t
	}
	for {
		for _, d := range a.days {
			if t.Day() == d {
				return t
			}
		}
		t = t.AddDate(0, 0, 1)
	}
}

// Coverage returns the span of the ticks: half a day before the first tick
// to half a day before the tick following the last one.
func (a *Aggregation) Coverage(ticks []time.Time) (start, end time.Time) {
	if len(ticks) == 0 {
		return start, end
	}
	return ticks[0].Add(-halfDay), a.next(ticks[len(ticks)-1]).Add(-halfDay)
}

// Handler serves the soil moisture products.
type Handler struct{}

// NewHandler returns the soil moisture handler.
func NewHandler() *Handler {
	return &Handler{}
}

func (h *Handler) parse(dataID string) (*kind, *Aggregation, error) {
	parts := strings.Split(strings.TrimPrefix(dataID, idPrefix), ":")
	if !strings.HasPrefix(dataID, idPrefix) || len(parts) != 2 {
		return nil, nil, fmt.Errorf("soilmoisture: unknown data id %q", dataID)
	}
	var k *kind
	for i := range kinds {
		if kinds[i].name == parts[0] {
			k = &kinds[i]
		}
	}
	var agg *Aggregation
	for _, a := range aggregations {
		if a.name == parts[1] {
			agg = a
		}
	}
	if k == nil || agg == nil {
		return nil, nil, fmt.Errorf("soilmoisture: unknown data id %q", dataID)
	}
	return k, agg, nil
}

// DataIDs implements datasets.Handler.
func (h *Handler) DataIDs() []string {
	var ids []string
	for _, k := range kinds {
		for _, a := range aggregations {
			ids = append(ids, idPrefix+k.name+":"+a.name)
		}
	}
	return ids
}

// Title implements datasets.Handler.
func (h *Handler) Title(dataID string) string {
	k, a, err := h.parse(dataID)
	if err != nil {
		return ""
	}
	return fmt.Sprintf("Soil moisture (%s, %s)", k.name, a.title)
}

// OpenParamsSchema implements datasets.Handler.
func (h *Handler) OpenParamsSchema(dataID string) *schema.Schema {
	k, a, err := h.parse(dataID)
	if err != nil {
		return nil
	}
	names := []string{k.variable.request}
	return schema.Object(map[string]*schema.Schema{
		"variable_names": datasets.VariableNamesSchema(names, names),
		"bbox":           datasets.BBoxSchema(),
		"spatial_res":    datasets.SpatialResSchema(res, res, res),
		"time_range":     datasets.TimeRangeSchema(true),
		"time_period":    datasets.TimePeriodSchema(a.period),
		"type_of_sensor": schema.String().
			WithEnum(schema.Strings(k.sensors...)...).
			WithDefault(k.sensors[0]).
			WithTitle("Type of sensor"),
		"type_of_record": schema.String().
			WithEnum("cdr", "icdr").
			WithDefault("cdr").
			WithTitle("Type of record"),
		"version": schema.String().
			WithEnum("v201912.0.0", "v201812.0.1", "v201812.0.0").
			WithDefault("v201912.0.0").
			WithTitle("Data version"),
	}, "time_range")
}

// Describe implements datasets.Handler.
func (h *Handler) Describe(dataID string, params *datasets.Params) (*dataset.Descriptor, error) {
	k, a, err := h.parse(dataID)
	if err != nil {
		return nil, err
	}
	start := k.start
	d := &dataset.Descriptor{
		DataID:     dataID,
		CRS:        "WGS84",
		BBox:       [4]float64{-180, -90, 180, 90},
		SpatialRes: res,
		TimeRange:  [2]*string{&start, nil},
		TimePeriod: a.period,
		Coords:     datasets.GridDescriptors(),
		DataVars:   map[string]dataset.VariableDescriptor{},
	}
	if params == nil || params.Has(k.variable.request) {
		d.DataVars[k.variable.name] = dataset.VariableDescriptor{
			Name:  k.variable.name,
			DType: "float32",
			Dims:  []string{"time", "lat", "lon"},
			Attrs: map[string]any{"units": k.variable.units, "long_name": k.variable.longName},
		}
	}
	if params != nil {
		ticks, err := h.ticks(a, params)
		if err != nil {
			return nil, err
		}
		lat, lon := params.LatLonAxes(res)
		d.Dims = map[string]int{"time": len(ticks), "lat": len(lat), "lon": len(lon)}
		d.BBox = [4]float64{lon[0], lat[len(lat)-1], lon[len(lon)-1], lat[0]}
	}
	return d, nil
}

func (h *Handler) ticks(a *Aggregation, params *datasets.Params) ([]time.Time, error) {
	start, end, err := params.TimeBounds(datasets.DayStart(datasets.Now().UTC()))
	if err != nil {
		return nil, err
	}
	ticks := a.Ticks(start, end)
	if len(ticks) == 0 {
		return nil, schema.NewValidationError("time_range: no %s data between %s and %s",
			a.name, start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	return ticks, nil
}

// Request implements datasets.Handler.
func (h *Handler) Request(dataID string, params *datasets.Params) (*datasets.Request, error) {
	k, a, err := h.parse(dataID)
	if err != nil {
		return nil, err
	}
	ticks, err := h.ticks(a, params)
	if err != nil {
		return nil, err
	}
	sel := datasets.TickSelection(ticks)
	return &datasets.Request{
		Dataset: apiName,
		Params: map[string]any{
			"variable":         k.variable.request,
			"type_of_sensor":   params.TypeOfSensor,
			"time_aggregation": a.aggregation,
			"year":             datasets.Padded(sel.Years, 4),
			"month":            datasets.Padded(sel.Months, 2),
			"day":              datasets.Padded(sel.Days, 2),
			"type_of_record":   params.TypeOfRecord,
			"version":          params.Version,
			"format":           "tgz",
		},
	}, nil
}

// Read implements datasets.Handler.
func (h *Handler) Read(dataID string, params *datasets.Params, resultPath, tempDir string) (*dataset.Dataset, error) {
	k, a, err := h.parse(dataID)
	if err != nil {
		return nil, err
	}
	ticks, err := h.ticks(a, params)
	if err != nil {
		return nil, err
	}
	ds, err := datasets.OpenResult(resultPath, tempDir)
	if err != nil {
		return nil, err
	}
	if _, ok := ds.DataVar(k.variable.name); !ok {
		return nil, fmt.Errorf("soilmoisture: response lacks variable %q", k.variable.name)
	}
	ds.KeepDataVars(func(name string) bool { return name == k.variable.name })

	wanted := map[time.Time]bool{}
	for _, t := range ticks {
		wanted[t] = true
	}
	ds, err = ds.SelectTimes(func(t time.Time) bool {
		return wanted[datasets.DayStart(t)]
	})
	if err != nil {
		return nil, err
	}
	ds, err = datasets.NormalizeLatLon(ds, params, res)
	if err != nil {
		return nil, err
	}
	h.setAttrs(ds, k, a, ticks)
	return ds, nil
}

// Empty implements datasets.Handler.
func (h *Handler) Empty(dataID string, params *datasets.Params) (*dataset.Dataset, error) {
	k, a, err := h.parse(dataID)
	if err != nil {
		return nil, err
	}
	ticks, err := h.ticks(a, params)
	if err != nil {
		return nil, err
	}
	lat, lon := params.LatLonAxes(res)
	ds := datasets.EmptyGrid(ticks, lat, lon)
	h.setAttrs(ds, k, a, ticks)
	return ds, nil
}

func (h *Handler) setAttrs(ds *dataset.Dataset, k *kind, a *Aggregation, ticks []time.Time) {
	ds.Attrs["title"] = fmt.Sprintf("C3S surface soil moisture (%s, %s)", k.name, a.title)
	ds.Attrs["source"] = "Copernicus Climate Data Store: " + apiName
	start, end := a.Coverage(ticks)
	datasets.SetCoverage(ds.Attrs, start.Format(datasets.CoverageLayout), end.Format(datasets.CoverageLayout))
}
