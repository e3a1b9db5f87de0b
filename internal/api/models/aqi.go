package models

// AQIRequest is the body of POST /v1/aqi. Absent or null concentrations
// yield no partial index. The response body is aqi.Result.
type AQIRequest struct {
	PM25 *float64 `json:"pm2_5"`
	PM10 *float64 `json:"pm10"`
}
