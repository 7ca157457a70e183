package datasets

import (
	"github.com/rtm0/cdsstore/internal/schema"
)

// BBoxSchema is the schema of a [west, south, east, north] bounding box.
func BBoxSchema() *schema.Schema {
	s := schema.Tuple(
		schema.Number(-180, 180),
		schema.Number(-90, 90),
		schema.Number(-180, 180),
		schema.Number(-90, 90),
	)
	s.Default = []any{-180.0, -90.0, 180.0, 90.0}
	s.Title = "Bounding box (west, south, east, north)"
	return s
}

// SpatialResSchema is the schema of the output resolution in degrees.
func SpatialResSchema(lo, hi, def float64) *schema.Schema {
	return schema.Number(lo, hi).WithDefault(def).WithTitle("Spatial resolution (degrees)")
}

// TimeRangeSchema is the schema of a [start, end] time range. The end may be
// null when openEnd is set.
func TimeRangeSchema(openEnd bool) *schema.Schema {
	end := schema.String()
	if openEnd {
		end = schema.NullableString()
	}
	return schema.Tuple(schema.String(), end).WithTitle("Time range")
}

// TimePeriodSchema is the schema of the fixed sampling period of a product.
func TimePeriodSchema(period string) *schema.Schema {
	return schema.String().WithEnum(period).WithDefault(period).WithTitle("Time period")
}

// VariableNamesSchema is the schema of a variable selection restricted to
// names, defaulting to defaults.
func VariableNamesSchema(names []string, defaults []string) *schema.Schema {
	s := schema.Array(schema.String().WithEnum(schema.Strings(names...)...))
	s.UniqueItems = true
	s.Title = "Variable names"
	if defaults != nil {
		s.Default = schema.Strings(defaults...)
	}
	return s
}
