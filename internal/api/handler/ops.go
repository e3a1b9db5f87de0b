// Package handler implements the AirSense HTTP endpoints.
package handler

import (
	"net/http"
	"time"

	"github.com/airsense/airsense/internal/api/models"
	"github.com/airsense/airsense/internal/api/response"
	"github.com/airsense/airsense/internal/pipeline"
	"github.com/airsense/airsense/internal/resilience"
)

// SinkHealth reports the state of a downstream sink.
type SinkHealth interface {
	Health() resilience.Health
}

// OpsHandler serves the operational endpoints.
type OpsHandler struct {
	version   string
	buildTime string
	pipeline  *pipeline.Pipeline
	sinks     []SinkHealth
}

// NewOpsHandler creates an OpsHandler.
func NewOpsHandler(version, buildTime string, p *pipeline.Pipeline, sinks ...SinkHealth) *OpsHandler {
	return &OpsHandler{
		version:   version,
		buildTime: buildTime,
		pipeline:  p,
		sinks:     sinks,
	}
}

// HealthCheck handles GET /v1/ops/health, the liveness probe.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
		Details: map[string]interface{}{
			"version":   h.version,
			"buildTime": h.buildTime,
		},
	})
}

// ReadinessCheck handles GET /v1/ops/ready. It fails while any sink's
// circuit breaker is open.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	overall, sinks := h.sinkStatuses()

	details := make(map[string]interface{}, len(sinks))
	for _, s := range sinks {
		details[s.Name] = s.State
	}

	status := http.StatusOK
	if overall == models.HealthStatusFail {
		status = http.StatusServiceUnavailable
	}
	response.JSON(w, r, status, models.Health{
		Status:  overall,
		Time:    models.Timestamp(time.Now()),
		Details: details,
	})
}

// SystemStatus handles GET /v1/ops/status.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	overall, sinks := h.sinkStatuses()
	schema := h.pipeline.Schema()

	response.JSON(w, r, http.StatusOK, models.SystemStatus{
		Status:   overall,
		Time:     models.Timestamp(time.Now()),
		Pipeline: h.pipeline.StatsSnapshot(),
		Schema: models.SchemaInfo{
			ValueKeys: schema.ValueKeys,
			TagKeys:   schema.TagKeys,
		},
		Sinks: sinks,
	})
}

// sinkStatuses maps breaker states to health: closed is OK, half-open is
// degraded and open fails.
func (h *OpsHandler) sinkStatuses() (models.HealthStatus, []models.SinkStatus) {
	overall := models.HealthStatusOK
	out := make([]models.SinkStatus, 0, len(h.sinks))

	for _, s := range h.sinks {
		health := s.Health()
		st := models.SinkStatus{
			Name:          health.Name,
			State:         health.State,
			LastSuccessAt: models.TimestampPtr(health.LastSuccessAt),
			LastFailureAt: models.TimestampPtr(health.LastFailureAt),
		}
		if health.LastError != "" {
			msg := health.LastError
			st.Message = &msg
		}

		switch {
		case health.Healthy():
			st.Status = models.HealthStatusOK
		case health.State == resilience.StateHalfOpen:
			st.Status = models.HealthStatusDegraded
			if overall == models.HealthStatusOK {
				overall = models.HealthStatusDegraded
			}
		default:
			st.Status = models.HealthStatusFail
			overall = models.HealthStatusFail
		}
		out = append(out, st)
	}
	return overall, out
}
