package dataset

import (
	"fmt"
	"time"
)

// Scanner retrieves metric values from a dataset one timestamp at a time.
type Scanner struct {
	la      []float64
	lo      []float64
	ts      []int64
	metrics []*Variable
	pos     int
	recs    []Record
}

// NewScanner creates a scanner over the data variables with (time, lat, lon)
// dimensions. If names is empty, all such variables are scanned.
func NewScanner(ds *Dataset, names ...string) (*Scanner, error) {
	s := &Scanner{}
	la, ok := ds.Coord("lat")
	if !ok {
		return nil, fmt.Errorf("dataset has no lat coordinate")
	}
	lo, ok := ds.Coord("lon")
	if !ok {
		return nil, fmt.Errorf("dataset has no lon coordinate")
	}
	s.la, s.lo = la.Data, lo.Data
	times, err := ds.Times()
	if err != nil {
		return nil, err
	}
	s.ts = make([]int64, len(times))
	for i, t := range times {
		s.ts[i] = t.UnixMilli()
	}
	all := len(names) == 0
	if all {
		names = ds.DataVarNames()
	}
	for _, name := range names {
		v, ok := ds.DataVar(name)
		if !ok {
			return nil, fmt.Errorf("dataset has no data variable %q", name)
		}
		if len(v.Dims) != 3 || v.Dims[0] != "time" || v.Dims[1] != "lat" || v.Dims[2] != "lon" {
			if all {
				continue
			}
			return nil, fmt.Errorf("variable %q has dims %v, want [time lat lon]", name, v.Dims)
		}
		s.metrics = append(s.metrics, v)
	}
	if len(s.metrics) == 0 {
		return nil, fmt.Errorf("dataset has no (time, lat, lon) variables")
	}
	return s, nil
}

// Metrics returns the names of the scanned variables.
func (s *Scanner) Metrics() []string {
	names := make([]string, len(s.metrics))
	for i, v := range s.metrics {
		names[i] = v.Name
	}
	return names
}

// Summary returns the summary information about the dataset suitable for
// logging.
func (s *Scanner) Summary() []any {
	var first, last string
	if len(s.ts) > 0 {
		first = time.UnixMilli(s.ts[0]).UTC().Format(time.RFC3339)
		last = time.UnixMilli(s.ts[len(s.ts)-1]).UTC().Format(time.RFC3339)
	}
	return []any{
		"dims", []string{"ts", "la", "lo"},
		"metrics", s.Metrics(),
		"tsCnt", len(s.ts),
		"laCnt", len(s.la),
		"loCnt", len(s.lo),
		"first", first,
		"last", last,
		"totalRecCnt", s.TotalRecCount(),
	}
}

// TotalRecCount returns the total number of records within the dataset.
func (s *Scanner) TotalRecCount() int {
	return len(s.ts) * len(s.la) * len(s.lo)
}

// Scan reads all records for the next timestamp.
func (s *Scanner) Scan() bool {
	if s.pos >= len(s.ts) {
		return false
	}
	plane := len(s.la) * len(s.lo)
	offset := s.pos * plane
	s.recs = make([]Record, plane)
	k := 0
	for _, la := range s.la {
		for _, lo := range s.lo {
			r := &s.recs[k]
			r.Timestamp = s.ts[s.pos]
			r.Latitude = la
			r.Longitude = lo
			r.Values = make([]float64, len(s.metrics))
			for m, v := range s.metrics {
				r.Values[m] = v.Data[offset+k]
			}
			k++
		}
	}
	s.pos++
	return true
}

// Records returns the records that have been read by the last Scan() operation.
// The function transfers ownership of records to the caller and the subsequent
// calls to this function without prior invocation of Scan() will return nil.
func (s *Scanner) Records() []Record {
	recs := s.recs
	s.recs = nil
	return recs
}
