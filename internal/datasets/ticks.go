package datasets

import (
	"fmt"
	"sort"
	"time"
)

// Coverage formats.
const (
	CoverageLayout      = "2006-01-02T15:04:05Z"
	CoverageLayoutLocal = "2006-01-02T15:04:05.999999"
)

// Selection is the date selection of a CDS request form. CDS serves the
// cartesian product of the selected values.
type Selection struct {
	Years  []int
	Months []int
	Days   []int
	Hours  []int
}

// Touched returns the years, months, days of month and hours of day touched
// by [start, end].
func Touched(start, end time.Time) Selection {
	var sel Selection
	for y := start.Year(); y <= end.Year(); y++ {
		sel.Years = append(sel.Years, y)
	}
	sel.Months = collect(MonthStart(start), end, 12, func(t time.Time) (int, time.Time) {
		return int(t.Month()), t.AddDate(0, 1, 0)
	})
	sel.Days = collect(DayStart(start), end, 31, func(t time.Time) (int, time.Time) {
		return t.Day(), t.AddDate(0, 0, 1)
	})
	sel.Hours = collect(start.Truncate(time.Hour), end, 24, func(t time.Time) (int, time.Time) {
		return t.Hour(), t.Add(time.Hour)
	})
	return sel
}

// collect walks from t to end and gathers distinct values, stopping once
// limit values were seen.
func collect(t, end time.Time, limit int, next func(time.Time) (int, time.Time)) []int {
	seen := map[int]bool{}
	for !t.After(end) && len(seen) < limit {
		var v int
		v, t = next(t)
		seen[v] = true
	}
	out := make([]int, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Ints(out)
	return out
}

// Ticks expands the selection into valid, ascending times. Without days
// every tick falls on the first of the month; without hours at midnight.
func (s Selection) Ticks(days, hours bool) []time.Time {
	ds, hs := s.Days, s.Hours
	if !days {
		ds = []int{1}
	}
	if !hours {
		hs = []int{0}
	}
	var ticks []time.Time
	for _, y := range s.Years {
		for _, m := range s.Months {
			for _, d := range ds {
				for _, h := range hs {
					t := time.Date(y, time.Month(m), d, h, 0, 0, 0, time.UTC)
					if t.Day() != d {
						continue
					}
					ticks = append(ticks, t)
				}
			}
		}
	}
	return ticks
}

// TickSelection returns the years, months and days occurring in ticks.
func TickSelection(ticks []time.Time) Selection {
	years, months, days := map[int]bool{}, map[int]bool{}, map[int]bool{}
	for _, t := range ticks {
		years[t.Year()] = true
		months[int(t.Month())] = true
		days[t.Day()] = true
	}
	return Selection{Years: keys(years), Months: keys(months), Days: keys(days)}
}

func keys(m map[int]bool) []int {
	out := make([]int, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}

// MonthStart truncates t to the first of its month.
func MonthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// DayStart truncates t to midnight.
func DayStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Months returns the first of every month from start's month to end's
// month.
func Months(start, end time.Time) []time.Time {
	var ticks []time.Time
	for t := MonthStart(start); !t.After(end); t = t.AddDate(0, 1, 0) {
		ticks = append(ticks, t)
	}
	return ticks
}

// Padded formats integers with leading zeros.
func Padded(xs []int, width int) []string {
	out := make([]string, len(xs))
	for i, x := range xs {
		out[i] = fmt.Sprintf("%0*d", width, x)
	}
	return out
}

// HourStrings formats hours of day as "HH:00".
func HourStrings(hours []int) []string {
	out := make([]string, len(hours))
	for i, h := range hours {
		out[i] = fmt.Sprintf("%02d:00", h)
	}
	return out
}

// SetCoverage sets the time coverage attributes.
func SetCoverage(attrs map[string]any, start, end string) {
	attrs["time_coverage_start"] = start
	attrs["time_coverage_end"] = end
}
