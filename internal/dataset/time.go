package dataset

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/relvacode/iso8601"
)

// EpochUnits are the CF units of time coordinates created by this package.
const EpochUnits = "seconds since 1970-01-01 00:00:00"

// TimeCoord creates a time coordinate holding ts as seconds since the Unix
// epoch.
func TimeCoord(ts []time.Time) *Variable {
	data := make([]float64, len(ts))
	for i, t := range ts {
		data[i] = float64(t.Unix())
	}
	v := Coord1D("time", "int64", data)
	v.Attrs["units"] = EpochUnits
	v.Attrs["calendar"] = "proleptic_gregorian"
	v.Attrs["standard_name"] = "time"
	return v
}

// Times decodes the "time" coordinate.
func (d *Dataset) Times() ([]time.Time, error) {
	v, ok := d.Coord("time")
	if !ok {
		return nil, fmt.Errorf("dataset has no time coordinate")
	}
	return DecodeTimes(v)
}

// DecodeTimes converts the values of a CF time variable ("<unit> since
// <reference>") into UTC times.
func DecodeTimes(v *Variable) ([]time.Time, error) {
	units, _ := v.Attrs["units"].(string)
	step, ref, err := ParseTimeUnits(units)
	if err != nil {
		return nil, fmt.Errorf("variable %q: %w", v.Name, err)
	}
	ts := make([]time.Time, len(v.Data))
	for i, x := range v.Data {
		ns := math.Round(x * float64(step))
		ts[i] = ref.Add(time.Duration(ns)).UTC()
	}
	return ts, nil
}

// EncodeTimes rewrites the values of a time variable to EpochUnits.
func EncodeTimes(v *Variable, ts []time.Time) {
	v.Data = make([]float64, len(ts))
	for i, t := range ts {
		v.Data[i] = float64(t.Unix())
	}
	v.Shape = []int{len(ts)}
	v.DType = "int64"
	v.Attrs["units"] = EpochUnits
}

// ParseTimeUnits parses CF time units such as "hours since 1900-01-01
// 00:00:00.0" into a step duration and a reference time.
func ParseTimeUnits(units string) (time.Duration, time.Time, error) {
	unit, since, ok := strings.Cut(strings.TrimSpace(units), " since ")
	if !ok {
		return 0, time.Time{}, fmt.Errorf("unsupported time units %q", units)
	}
	var step time.Duration
	switch strings.ToLower(strings.TrimSpace(unit)) {
	case "seconds", "second", "secs", "s":
		step = time.Second
	case "minutes", "minute", "mins":
		step = time.Minute
	case "hours", "hour", "hrs", "h":
		step = time.Hour
	case "days", "day", "d":
		step = 24 * time.Hour
	default:
		return 0, time.Time{}, fmt.Errorf("unsupported time unit %q", unit)
	}
	ref, err := parseReference(since)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("time units %q: %w", units, err)
	}
	return step, ref, nil
}

func parseReference(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "UTC")
	s = strings.TrimSpace(s)
	s = strings.Replace(s, " ", "T", 1)
	if len(s) == len("2006-01-02") {
		return time.Parse(time.DateOnly, s)
	}
	t, err := iso8601.ParseString(s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
