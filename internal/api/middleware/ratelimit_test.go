package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/airsense/airsense/internal/api/middleware"
)

func serve(h http.Handler, remoteAddr, authz string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/v1/aqi", http.NoBody)
	req.RemoteAddr = remoteAddr
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRateLimitByIP(t *testing.T) {
	cfg := middleware.RateLimitConfig{RequestLimit: 2, WindowLength: time.Minute}
	handler := middleware.RateLimitByIP(cfg)(okHandler())

	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusOK, serve(handler, "192.168.1.1:1234", "").Code)
	}

	rec := serve(handler, "192.168.1.1:1234", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "too-many-requests")

	assert.Equal(t, http.StatusOK, serve(handler, "192.168.1.2:1234", "").Code)
}

func TestRateLimitByClient_KeysOnClientID(t *testing.T) {
	svc := newTokenService(t)
	cfg := middleware.RateLimitConfig{RequestLimit: 2, WindowLength: time.Minute}
	handler := middleware.Auth(svc, "")(middleware.RateLimitByClient(cfg)(okHandler()))
	bearer := "Bearer " + issue(t, svc)

	// Same client from two addresses shares one budget.
	assert.Equal(t, http.StatusOK, serve(handler, "10.0.0.1:1", bearer).Code)
	assert.Equal(t, http.StatusOK, serve(handler, "10.0.0.2:1", bearer).Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(handler, "10.0.0.3:1", bearer).Code)
}

func TestRateLimitByClient_FallsBackToIP(t *testing.T) {
	cfg := middleware.RateLimitConfig{RequestLimit: 1, WindowLength: time.Minute}
	handler := middleware.RateLimitByClient(cfg)(okHandler())

	assert.Equal(t, http.StatusOK, serve(handler, "10.0.0.1:1", "").Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(handler, "10.0.0.1:1", "").Code)
	assert.Equal(t, http.StatusOK, serve(handler, "10.0.0.2:1", "").Code)
}

func TestDefaultRateLimitConfigs(t *testing.T) {
	assert.Equal(t, 120, middleware.PublicRateLimit.RequestLimit)
	assert.Equal(t, time.Minute, middleware.PublicRateLimit.WindowLength)
	assert.Equal(t, 600, middleware.IngestRateLimit.RequestLimit)
	assert.Equal(t, time.Minute, middleware.IngestRateLimit.WindowLength)
}
