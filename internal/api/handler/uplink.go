package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/airsense/airsense/internal/api/models"
	"github.com/airsense/airsense/internal/api/response"
	"github.com/airsense/airsense/internal/pipeline"
	"github.com/airsense/airsense/internal/publish"
	"github.com/airsense/airsense/internal/record"
	"github.com/airsense/airsense/internal/resilience"
	"github.com/airsense/airsense/internal/uplink"
)

// UplinkHandler prepares uplinks submitted over HTTP.
type UplinkHandler struct {
	pipeline      *pipeline.Pipeline
	publisher     publish.Publisher
	maxBodyBytes  int64
	maxBatchBytes int64
}

// NewUplinkHandler creates an UplinkHandler. With a nil publisher the
// prepared points are only returned to the caller.
func NewUplinkHandler(p *pipeline.Pipeline, pub publish.Publisher) *UplinkHandler {
	return &UplinkHandler{
		pipeline:      p,
		publisher:     pub,
		maxBodyBytes:  DefaultMaxBodyBytes,
		maxBatchBytes: DefaultMaxBatchBytes,
	}
}

// Prepare handles POST /v1/uplinks:prepare.
func (h *UplinkHandler) Prepare(w http.ResponseWriter, r *http.Request) {
	var u uplink.Uplink
	if !decodeJSON(w, r, h.maxBodyBytes, &u) {
		return
	}

	res, err := h.pipeline.Process(r.Context(), u)
	if err != nil {
		if errors.Is(err, uplink.ErrInvalidUplink) {
			response.BadRequest(w, r, err.Error(), nil)
			return
		}
		response.InternalError(w, r, "processing failed")
		return
	}

	published, err := h.publish(r, res.Points)
	if err != nil {
		writePublishError(w, r, err)
		return
	}

	response.JSON(w, r, http.StatusOK, models.PrepareResponse{Result: res, Published: published})
}

// Batch handles POST /v1/uplinks:batch. Invalid uplinks are reported per
// item; the points of the valid ones are published together.
func (h *UplinkHandler) Batch(w http.ResponseWriter, r *http.Request) {
	var uplinks []uplink.Uplink
	if !decodeJSON(w, r, h.maxBatchBytes, &uplinks) {
		return
	}
	if len(uplinks) == 0 {
		response.BadRequest(w, r, "batch is empty", nil)
		return
	}
	if len(uplinks) > models.MaxBatchSize {
		response.BadRequest(w, r, fmt.Sprintf("batch exceeds %d uplinks", models.MaxBatchSize), nil)
		return
	}

	result := h.pipeline.ProcessBatch(r.Context(), uplinks)

	var points []record.Point
	for _, item := range result.Items {
		if item.Result != nil {
			points = append(points, item.Result.Points...)
		}
	}

	resp := models.BatchResponse{BatchResult: result}
	published, err := h.publish(r, points)
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Int("points", len(points)).Msg("batch publish failed")
		resp.PublishError = err.Error()
	}
	resp.Published = published

	response.JSON(w, r, http.StatusOK, resp)
}

func (h *UplinkHandler) publish(r *http.Request, points []record.Point) (bool, error) {
	if h.publisher == nil || len(points) == 0 {
		return false, nil
	}
	if err := h.publisher.Publish(r.Context(), points); err != nil {
		return false, err
	}
	return true, nil
}

func writePublishError(w http.ResponseWriter, r *http.Request, err error) {
	zerolog.Ctx(r.Context()).Error().Err(err).Msg("publish failed")
	if errors.Is(err, resilience.ErrCircuitOpen) {
		response.ServiceUnavailable(w, r, "record sink is unavailable")
		return
	}
	response.BadGateway(w, r, "record sink rejected the points")
}
