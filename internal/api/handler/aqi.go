package handler

import (
	"math"
	"net/http"
	"strconv"

	"github.com/airsense/airsense/internal/api/models"
	"github.com/airsense/airsense/internal/api/response"
	"github.com/airsense/airsense/internal/aqi"
)

// Query parameter and body field names.
const (
	paramPM25 = "pm2_5"
	paramPM10 = "pm10"
)

// AQIHandler exposes the AQI calculator.
type AQIHandler struct {
	maxBodyBytes int64
}

// NewAQIHandler creates an AQIHandler.
func NewAQIHandler() *AQIHandler {
	return &AQIHandler{maxBodyBytes: 4 << 10}
}

// GetAQI handles GET /v1/aqi?pm2_5=&pm10=. Missing parameters are treated as
// absent readings.
func (h *AQIHandler) GetAQI(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var fieldErrors []models.FieldError

	parse := func(name string) *float64 {
		raw := q.Get(name)
		if raw == "" {
			return nil
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			fieldErrors = append(fieldErrors, models.FieldError{
				Field:   name,
				Message: "must be a finite number",
				Code:    models.CodeNotNumeric,
			})
			return nil
		}
		return &v
	}

	pm25 := parse(paramPM25)
	pm10 := parse(paramPM10)
	if len(fieldErrors) > 0 {
		response.BadRequest(w, r, "invalid concentration", fieldErrors)
		return
	}

	response.JSON(w, r, http.StatusOK, aqi.Compute(pm25, pm10))
}

// PostAQI handles POST /v1/aqi.
func (h *AQIHandler) PostAQI(w http.ResponseWriter, r *http.Request) {
	var req models.AQIRequest
	if !decodeJSON(w, r, h.maxBodyBytes, &req) {
		return
	}
	response.JSON(w, r, http.StatusOK, aqi.Compute(req.PM25, req.PM10))
}
