package aqi

// Breakpoint anchors one end of a linear segment: a concentration in µg/m³
// and the index value it maps to.
type Breakpoint struct {
	Concentration float64
	Index         float64
}

// Table is an ordered breakpoint table. Entries increase strictly in both
// coordinates and the first entry is (0, 0).
type Table []Breakpoint

// Breakpoint tables are fixed arrays so callers cannot mutate them; Table
// returns a slice over a copy.
var (
	pm25Breakpoints = [...]Breakpoint{
		{0, 0},
		{15.5, 51},
		{40.5, 101},
		{65.5, 151},
		{150.5, 201},
		{250.5, 301},
		{350.5, 401},
	}

	pm10Breakpoints = [...]Breakpoint{
		{0, 0},
		{55, 51},
		{155, 101},
		{255, 151},
		{355, 201},
		{425, 301},
		{505, 401},
	}
)

// TableFor returns a copy of the breakpoint table used for the pollutant.
// It returns nil for pollutants without a table.
func TableFor(p Pollutant) Table {
	switch p {
	case PollutantPM25:
		t := pm25Breakpoints
		return t[:]
	case PollutantPM10:
		t := pm10Breakpoints
		return t[:]
	default:
		return nil
	}
}

// segment returns the index of the segment used for value: the largest i in
// [0, len-2] with t[i].Concentration <= value, or 0 when value lies below
// every breakpoint. Values past the last breakpoint reuse the final segment.
func segment(t []Breakpoint, value float64) int {
	for i := len(t) - 2; i > 0; i-- {
		if t[i].Concentration <= value {
			return i
		}
	}
	return 0
}
