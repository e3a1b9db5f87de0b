package handler_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airsense/airsense/internal/api/handler"
)

func postAQI(body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/v1/aqi", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.NewAQIHandler().PostAQI(rec, req)
	return rec
}

func TestPostAQI_DecodeErrors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
		detail string
	}{
		{"empty body", "", http.StatusBadRequest, "request body is empty"},
		{"syntax", `{"pm2_5":`, http.StatusBadRequest, "request body is not valid JSON"},
		{"wrong type", `{"pm2_5": "high"}`, http.StatusBadRequest, "request body has the wrong shape"},
		{"trailing value", `{"pm2_5": 1}{"pm10": 2}`, http.StatusBadRequest, "request body must contain a single JSON value"},
		{"too large", `{"pm2_5": 1, "note": "` + strings.Repeat("a", 8<<10) + `"}`, http.StatusRequestEntityTooLarge, "request body too large"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postAQI(tt.body)

			assert.Equal(t, tt.status, rec.Code)
			var problem map[string]interface{}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
			assert.Equal(t, tt.detail, problem["detail"])
		})
	}
}

func TestPostAQI_WrongTypeReportsField(t *testing.T) {
	rec := postAQI(`{"pm10": true}`)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var problem struct {
		Errors []struct {
			Field string `json:"field"`
			Code  string `json:"code"`
		} `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	require.Len(t, problem.Errors, 1)
	assert.Equal(t, "pm10", problem.Errors[0].Field)
}

func TestPostAQI_TrailingWhitespaceAccepted(t *testing.T) {
	rec := postAQI("{\"pm2_5\": 12}\n")

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGetAQI_NonFinite(t *testing.T) {
	for _, raw := range []string{"NaN", "Inf", "-Inf"} {
		t.Run(raw, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/v1/aqi?pm10="+raw, nil)
			rec := httptest.NewRecorder()
			handler.NewAQIHandler().GetAQI(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestGetAQI_NoParams(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/v1/aqi", nil)
	rec := httptest.NewRecorder()
	handler.NewAQIHandler().GetAQI(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Nil(t, body["aqi"])
}
