// Package detect turns a stream of downward distance readings into at most
// one pothole event. It holds the reading filter, the baseline calibration,
// and the hysteresis state machine that opens and closes an event. Nothing in
// this package blocks, sleeps, or performs I/O; the caller owns cadence and
// timeouts.
package detect

import (
	"math"

	"gonum.org/v1/gonum/floats/scalar"
)

// Filter rejects raw samples outside the sensor's plausible range. Bounds are
// exclusive.
type Filter struct {
	MinCM float64 `json:"min_cm"`
	MaxCM float64 `json:"max_cm"`
}

// DefaultFilter returns the 2-200 cm window of a typical ultrasonic ranger.
func DefaultFilter() Filter {
	return Filter{MinCM: 2, MaxCM: 200}
}

// Validate returns raw rounded to two decimals and true when it lies strictly
// inside the filter range. Anything else, NaN included, is an invalid reading.
func (f Filter) Validate(raw float64) (float64, bool) {
	if math.IsNaN(raw) || !(raw > f.MinCM && raw < f.MaxCM) {
		return 0, false
	}
	return scalar.Round(raw, 2), true
}

// Validate checks raw against DefaultFilter.
func Validate(raw float64) (float64, bool) {
	return DefaultFilter().Validate(raw)
}
