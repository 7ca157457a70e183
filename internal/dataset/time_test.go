package dataset

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimeUnits(t *testing.T) {
	tests := []struct {
		units string
		step  time.Duration
		ref   time.Time
	}{
		{"hours since 1900-01-01 00:00:00.0", time.Hour, time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"days since 1970-01-01 00:00:00 UTC", 24 * time.Hour, time.Unix(0, 0).UTC()},
		{"seconds since 1978-10-01", time.Second, time.Date(1978, 10, 1, 0, 0, 0, 0, time.UTC)},
		{"minutes since 2000-01-01T12:00:00Z", time.Minute, time.Date(2000, 1, 1, 12, 0, 0, 0, time.UTC)},
	}
	for _, test := range tests {
		t.Run(test.units, func(t *testing.T) {
			step, ref, err := ParseTimeUnits(test.units)
			require.NoError(t, err)
			assert.Equal(t, test.step, step)
			assert.True(t, test.ref.Equal(ref), "got %s", ref)
		})
	}
}

func TestParseTimeUnits_Invalid(t *testing.T) {
	for _, units := range []string{"", "hours", "fortnights since 2000-01-01", "days since yesterday"} {
		_, _, err := ParseTimeUnits(units)
		assert.Error(t, err, units)
	}
}

func TestDecodeTimes(t *testing.T) {
	v := Coord1D("time", "int32", []float64{1016832, 1016856})
	v.Attrs["units"] = "hours since 1900-01-01 00:00:00.0"

	ts, err := DecodeTimes(v)
	require.NoError(t, err)
	assert.Equal(t, []time.Time{
		time.Date(2016, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2016, 1, 2, 0, 0, 0, 0, time.UTC),
	}, ts)
}

func TestEncodeTimes(t *testing.T) {
	v := Coord1D("time", "int32", []float64{0})
	v.Attrs["units"] = "hours since 1900-01-01"
	ts := []time.Time{time.Date(2015, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2015, 1, 1, 1, 0, 0, 0, time.UTC)}

	EncodeTimes(v, ts)

	assert.Equal(t, EpochUnits, v.Attrs["units"])
	assert.Equal(t, []int{2}, v.Shape)
	got, err := DecodeTimes(v)
	require.NoError(t, err)
	assert.Equal(t, ts, got)
}
