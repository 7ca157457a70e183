// Package era5 serves the ERA5 and ERA5-Land reanalysis products.
package era5

import (
	"fmt"
	"sort"
	"time"

	"github.com/rtm0/cdsstore/internal/dataset"
	"github.com/rtm0/cdsstore/internal/datasets"
	"github.com/rtm0/cdsstore/internal/schema"
)

type product struct {
	dataID      string
	apiName     string
	productType string
	title       string
	land        bool
	monthly     bool
	byHour      bool
	res         float64
	start       string
}

func (p *product) period() string {
	if p.monthly {
		return "1M"
	}
	return "1H"
}

var products = []*product{
	{
		dataID:      "reanalysis-era5-single-levels:reanalysis",
		apiName:     "reanalysis-era5-single-levels",
		productType: "reanalysis",
		title:       "ERA5 hourly data on single levels",
		res:         0.25,
		start:       "1940-01-01",
	},
	{
		dataID:      "reanalysis-era5-single-levels-monthly-means:monthly_averaged_reanalysis",
		apiName:     "reanalysis-era5-single-levels-monthly-means",
		productType: "monthly_averaged_reanalysis",
		title:       "ERA5 monthly averaged data on single levels",
		monthly:     true,
		res:         0.25,
		start:       "1940-01-01",
	},
	{
		dataID:      "reanalysis-era5-single-levels-monthly-means:monthly_averaged_reanalysis_by_hour_of_day",
		apiName:     "reanalysis-era5-single-levels-monthly-means",
		productType: "monthly_averaged_reanalysis_by_hour_of_day",
		title:       "ERA5 monthly averaged data on single levels by hour of day",
		monthly:     true,
		byHour:      true,
		res:         0.25,
		start:       "1940-01-01",
	},
	{
		dataID:  "reanalysis-era5-land",
		apiName: "reanalysis-era5-land",
		title:   "ERA5-Land hourly data",
		land:    true,
		res:     0.1,
		start:   "1950-01-01",
	},
	{
		dataID:      "reanalysis-era5-land-monthly-means:monthly_averaged_reanalysis",
		apiName:     "reanalysis-era5-land-monthly-means",
		productType: "monthly_averaged_reanalysis",
		title:       "ERA5-Land monthly averaged data",
		land:        true,
		monthly:     true,
		res:         0.1,
		start:       "1950-01-01",
	},
	{
		dataID:      "reanalysis-era5-land-monthly-means:monthly_averaged_reanalysis_by_hour_of_day",
		apiName:     "reanalysis-era5-land-monthly-means",
		productType: "monthly_averaged_reanalysis_by_hour_of_day",
		title:       "ERA5-Land monthly averaged data by hour of day",
		land:        true,
		monthly:     true,
		byHour:      true,
		res:         0.1,
		start:       "1950-01-01",
	},
}

// Handler serves the ERA5 products.
type Handler struct{}

// NewHandler returns the ERA5 handler.
func NewHandler() *Handler {
	return &Handler{}
}

func (h *Handler) product(dataID string) (*product, error) {
	for _, p := range products {
		if p.dataID == dataID {
			return p, nil
		}
	}
	return nil, fmt.Errorf("era5: unknown data id %q", dataID)
}

// DataIDs implements datasets.Handler.
func (h *Handler) DataIDs() []string {
	ids := make([]string, len(products))
	for i, p := range products {
		ids[i] = p.dataID
	}
	return ids
}

// Title implements datasets.Handler.
func (h *Handler) Title(dataID string) string {
	p, err := h.product(dataID)
	if err != nil {
		return ""
	}
	return p.title
}

// OpenParamsSchema implements datasets.Handler.
func (h *Handler) OpenParamsSchema(dataID string) *schema.Schema {
	p, err := h.product(dataID)
	if err != nil {
		return nil
	}
	var names []string
	for _, v := range Variables(p.land) {
		names = append(names, v.Request)
	}
	props := map[string]*schema.Schema{
		"variable_names": datasets.VariableNamesSchema(names, nil),
		"bbox":           datasets.BBoxSchema(),
		"spatial_res":    datasets.SpatialResSchema(p.res, 10, p.res),
		"time_range":     datasets.TimeRangeSchema(true),
		"time_period":    datasets.TimePeriodSchema(p.period()),
	}
	if p.byHour {
		hours := schema.Array(schema.Integer(0, 23))
		hours.UniqueItems = true
		hours.Title = "Hours of day"
		props["hours"] = hours
	}
	return schema.Object(props, "variable_names", "time_range")
}

// Describe implements datasets.Handler.
func (h *Handler) Describe(dataID string, params *datasets.Params) (*dataset.Descriptor, error) {
	p, err := h.product(dataID)
	if err != nil {
		return nil, err
	}
	start := p.start
	d := &dataset.Descriptor{
		DataID:     dataID,
		CRS:        "WGS84",
		BBox:       [4]float64{-180, -90, 180, 90},
		SpatialRes: p.res,
		TimeRange:  [2]*string{&start, nil},
		TimePeriod: p.period(),
		Coords:     datasets.GridDescriptors(),
		DataVars:   map[string]dataset.VariableDescriptor{},
	}
	for _, v := range Variables(p.land) {
		if params != nil && !params.Has(v.Request) {
			continue
		}
		d.DataVars[v.Name] = dataset.VariableDescriptor{
			Name:  v.Name,
			DType: "float64",
			Dims:  []string{"time", "lat", "lon"},
			Attrs: map[string]any{"units": v.Units, "long_name": v.LongName},
		}
	}
	if params != nil {
		lat, lon := params.LatLonAxes(h.res(p, params))
		ticks, err := h.ticks(p, params)
		if err != nil {
			return nil, err
		}
		d.Dims = map[string]int{"time": len(ticks), "lat": len(lat), "lon": len(lon)}
		d.BBox = [4]float64{lon[0], lat[len(lat)-1], lon[len(lon)-1], lat[0]}
		d.SpatialRes = h.res(p, params)
	}
	return d, nil
}

func (h *Handler) res(p *product, params *datasets.Params) float64 {
	if params.SpatialRes > 0 {
		return params.SpatialRes
	}
	return p.res
}

func (h *Handler) selection(p *product, params *datasets.Params) (datasets.Selection, error) {
	start, end, err := params.TimeBounds(h.defaultEnd(p))
	if err != nil {
		return datasets.Selection{}, err
	}
	sel := datasets.Touched(start, end)
	if p.monthly {
		sel.Days = nil
		sel.Hours = []int{0}
		if p.byHour {
			sel.Hours = allHours()
			if len(params.Hours) > 0 {
				sel.Hours = append([]int(nil), params.Hours...)
				sort.Ints(sel.Hours)
			}
		}
	}
	return sel, nil
}

// defaultEnd is the latest time an open-ended range reaches: ERA5 lags
// real time by about five days, the monthly means by one month.
func (h *Handler) defaultEnd(p *product) time.Time {
	now := datasets.Now().UTC()
	if p.monthly {
		return datasets.MonthStart(now).AddDate(0, -1, 0)
	}
	return datasets.DayStart(now).AddDate(0, 0, -5)
}

func allHours() []int {
	hours := make([]int, 24)
	for i := range hours {
		hours[i] = i
	}
	return hours
}

func (h *Handler) ticks(p *product, params *datasets.Params) ([]time.Time, error) {
	sel, err := h.selection(p, params)
	if err != nil {
		return nil, err
	}
	return sel.Ticks(!p.monthly, !p.monthly || p.byHour), nil
}

// Request implements datasets.Handler.
func (h *Handler) Request(dataID string, params *datasets.Params) (*datasets.Request, error) {
	p, err := h.product(dataID)
	if err != nil {
		return nil, err
	}
	sel, err := h.selection(p, params)
	if err != nil {
		return nil, err
	}
	res := h.res(p, params)
	lat, lon := params.LatLonAxes(res)
	req := map[string]any{
		"variable": append([]string(nil), params.VariableNames...),
		"year":     datasets.Padded(sel.Years, 4),
		"month":    datasets.Padded(sel.Months, 2),
		"time":     datasets.HourStrings(sel.Hours),
		// CDS expects north, west, south, east.
		"area":   []float64{lat[0], lon[0], lat[len(lat)-1], lon[len(lon)-1]},
		"grid":   []float64{res, res},
		"format": "netcdf",
	}
	if !p.monthly {
		req["day"] = datasets.Padded(sel.Days, 2)
	}
	if p.productType != "" {
		req["product_type"] = p.productType
	}
	return &datasets.Request{Dataset: p.apiName, Params: req}, nil
}

// Read implements datasets.Handler.
func (h *Handler) Read(dataID string, params *datasets.Params, resultPath, tempDir string) (*dataset.Dataset, error) {
	p, err := h.product(dataID)
	if err != nil {
		return nil, err
	}
	ds, err := datasets.OpenResult(resultPath, tempDir)
	if err != nil {
		return nil, err
	}
	ds.DropCoord("expver")
	want := map[string]bool{}
	for _, name := range params.VariableNames {
		v, ok := Lookup(p.land, name)
		if !ok {
			return nil, fmt.Errorf("era5: no variable %q in %s", name, dataID)
		}
		if _, ok := ds.DataVar(v.Name); !ok {
			return nil, fmt.Errorf("era5: response lacks variable %q (%s)", v.Name, name)
		}
		want[v.Name] = true
	}
	ds.KeepDataVars(func(name string) bool { return want[name] })
	ds, err = datasets.NormalizeLatLon(ds, params, h.res(p, params))
	if err != nil {
		return nil, err
	}
	h.setAttrs(ds, p)
	return ds, nil
}

// Empty implements datasets.Handler.
func (h *Handler) Empty(dataID string, params *datasets.Params) (*dataset.Dataset, error) {
	p, err := h.product(dataID)
	if err != nil {
		return nil, err
	}
	ticks, err := h.ticks(p, params)
	if err != nil {
		return nil, err
	}
	lat, lon := params.LatLonAxes(h.res(p, params))
	ds := datasets.EmptyGrid(ticks, lat, lon)
	h.setAttrs(ds, p)
	return ds, nil
}

func (h *Handler) setAttrs(ds *dataset.Dataset, p *product) {
	ds.Attrs["title"] = p.title
	ds.Attrs["source"] = "Copernicus Climate Data Store: " + p.apiName
	if first, last, ok := datasets.Coverage(ds); ok {
		datasets.SetCoverage(ds.Attrs, first.Format(datasets.CoverageLayout), last.Format(datasets.CoverageLayout))
	}
}
