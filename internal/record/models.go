// Package record turns decoded uplinks into time-series points: numeric
// values, string tags and an optional timestamp.
package record

import (
	"fmt"
	"strconv"
)

// Measurement names.
const (
	MeasurementAirQuality = "airquality"
	MeasurementRF         = "rf"
)

// Tag names shared by both measurements.
const (
	TagDevEUI          = "devEUI"
	TagDevID           = "devID"
	TagDisplayKey      = "displayKey"
	TagNodeType        = "nodeType"
	TagPlatformType    = "platformType"
	TagRadioType       = "radioType"
	TagApplicationName = "applicationName"
)

// Point is a single time-series record.
type Point struct {
	// ID uniquely identifies the point for idempotent writes downstream.
	ID          string            `json:"id"`
	Measurement string            `json:"measurement"`
	Values      map[string]any    `json:"values"`
	Tags        map[string]string `json:"tags"`

	// Time is nanoseconds since the Unix epoch. Nil lets the store use the
	// insertion time.
	Time *int64 `json:"time,omitempty"`
}

// Schema selects which payload fields become values and which become tags.
type Schema struct {
	ValueKeys []string `yaml:"value_keys" json:"valueKeys"`
	TagKeys   []string `yaml:"tag_keys" json:"tagKeys"`
}

// DefaultSchema returns the schema used for PMS7003 air quality nodes.
func DefaultSchema() Schema {
	return Schema{
		ValueKeys: []string{
			"vBat", "vBus", "vSys", "boot", "tempC", "TVOC", "tDewC",
			"tHeatIndexC", "rh", "pm", "dust", "aqi", "aqi_partial",
		},
	}
}

func newPoint(id, measurement string) Point {
	return Point{
		ID:          id,
		Measurement: measurement,
		Values:      make(map[string]any),
		Tags:        make(map[string]string),
	}
}

// setTag stores v unless it is empty; stores reject empty tag values.
func (p *Point) setTag(k, v string) {
	if v == "" {
		return
	}
	p.Tags[k] = v
}

func tagString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}
