package dataset

// Record is a collection of readings taken at a given geo location at a given
// time.
type Record struct {
	// Dimensions
	Timestamp int64
	Latitude  float64
	Longitude float64

	// Values holds one reading per scanned variable, in the order of
	// Scanner.Metrics. Missing readings are NaN.
	Values []float64
}
