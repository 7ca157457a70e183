package datasets

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/relvacode/iso8601"

	"github.com/rtm0/cdsstore/internal/schema"
)

// Now returns the current time. Open-ended time ranges end here.
var Now = time.Now

// Params are validated open parameters.
type Params struct {
	VariableNames []string  `json:"variable_names"`
	BBox          []float64 `json:"bbox"`
	SpatialRes    float64   `json:"spatial_res"`
	TimeRange     []*string `json:"time_range"`
	TimePeriod    string    `json:"time_period"`
	Hours         []int     `json:"hours"`
	TypeOfSensor  string    `json:"type_of_sensor"`
	TypeOfRecord  string    `json:"type_of_record"`
	Version       string    `json:"version"`
}

// DecodeParams converts validated parameters into Params.
func DecodeParams(m map[string]any) (*Params, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("cannot encode params: %w", err)
	}
	p := &Params{}
	if err := json.Unmarshal(b, p); err != nil {
		return nil, schema.NewValidationError("%v", err)
	}
	return p, nil
}

// TimeBounds parses the time range. A missing or null end defaults to
// defaultEnd.
func (p *Params) TimeBounds(defaultEnd time.Time) (start, end time.Time, err error) {
	if len(p.TimeRange) == 0 || p.TimeRange[0] == nil {
		return start, end, schema.NewValidationError("time_range: start is required")
	}
	start, err = ParseTime(*p.TimeRange[0])
	if err != nil {
		return start, end, schema.NewValidationError("time_range: %v", err)
	}
	end = defaultEnd
	if len(p.TimeRange) > 1 && p.TimeRange[1] != nil {
		end, err = ParseTime(*p.TimeRange[1])
		if err != nil {
			return start, end, schema.NewValidationError("time_range: %v", err)
		}
	}
	if end.Before(start) {
		return start, end, schema.NewValidationError("time_range: end %s is before start %s",
			end.Format(time.RFC3339), start.Format(time.RFC3339))
	}
	return start, end, nil
}

// ParseTime parses an ISO 8601 date or date-time. A space may separate date
// and time; times without zone are UTC.
func ParseTime(s string) (time.Time, error) {
	s = strings.Replace(strings.TrimSpace(s), " ", "T", 1)
	if len(s) == len(time.DateOnly) {
		return time.Parse(time.DateOnly, s)
	}
	t, err := iso8601.ParseString(s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// Has reports whether name is in p.VariableNames.
func (p *Params) Has(name string) bool {
	for _, n := range p.VariableNames {
		if n == name {
			return true
		}
	}
	return false
}

// Area returns the bbox as west, south, east, north, or the globe.
func (p *Params) Area() (west, south, east, north float64) {
	if len(p.BBox) != 4 {
		return -180, -90, 180, 90
	}
	return p.BBox[0], p.BBox[1], p.BBox[2], p.BBox[3]
}
