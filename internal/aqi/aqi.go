// Package aqi converts particulate matter concentrations into Air Quality
// Index values using piecewise-linear breakpoint tables.
package aqi

import (
	"errors"
	"math"
)

// ErrInvalidTable is returned when a breakpoint table has fewer than two entries.
var ErrInvalidTable = errors.New("breakpoint table needs at least two entries")

// Pollutant identifies a particulate matter size fraction.
type Pollutant string

const (
	PollutantPM25 Pollutant = "PM25"
	PollutantPM10 Pollutant = "PM10"
)

// Result holds the index values computed for one pair of readings.
// A nil field means the corresponding input was absent.
type Result struct {
	PM25 *int `json:"aqi_pm25"`
	PM10 *int `json:"aqi_pm10"`
	AQI  *int `json:"aqi"`

	// Dominant names the pollutant whose index was surfaced as AQI.
	// Empty when nothing was computed.
	Dominant Pollutant `json:"dominant,omitempty"`
}

// Compute returns the PM2.5, PM10 and combined AQI for the given
// concentrations in µg/m³. Either reading may be nil.
//
// The combined AQI is the PM2.5 index when it is strictly greater than the
// PM10 index, otherwise the PM10 index; ties surface PM10.
func Compute(pm25, pm10 *float64) Result {
	var r Result
	r.PM25 = interpolate(pm25, pm25Breakpoints[:])
	r.PM10 = interpolate(pm10, pm10Breakpoints[:])

	switch {
	case r.PM25 == nil && r.PM10 == nil:
	case r.PM25 == nil:
		r.AQI, r.Dominant = intPtr(*r.PM10), PollutantPM10
	case r.PM10 == nil:
		r.AQI, r.Dominant = intPtr(*r.PM25), PollutantPM25
	case *r.PM25 > *r.PM10:
		r.AQI, r.Dominant = intPtr(*r.PM25), PollutantPM25
	default:
		r.AQI, r.Dominant = intPtr(*r.PM10), PollutantPM10
	}
	return r
}

// Interpolate maps a concentration onto table. Values beyond the last
// breakpoint are extrapolated along the final segment; negative values use
// the first segment and are not rejected.
func Interpolate(value float64, t Table) (int, error) {
	if len(t) < 2 {
		return 0, ErrInvalidTable
	}
	return *interpolate(&value, t), nil
}

func interpolate(value *float64, t []Breakpoint) *int {
	if value == nil {
		return nil
	}

	i := segment(t, *value)
	base, next := t[i], t[i+1]
	dx := next.Concentration - base.Concentration
	dy := next.Index - base.Index
	f := *value - base.Concentration

	// Round half up, not half to even.
	v := int(math.Floor(base.Index + f*dy/dx + 0.5))
	return &v
}

func intPtr(v int) *int {
	return &v
}
