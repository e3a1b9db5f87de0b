// Package pipeline enriches decoded uplinks with AQI values and prepares the
// time-series points written downstream.
package pipeline

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/airsense/airsense/internal/aqi"
	"github.com/airsense/airsense/internal/record"
	"github.com/airsense/airsense/internal/uplink"
)

// Payload keys the pipeline writes AQI results under.
const (
	KeyAQI         = "aqi"
	KeyAQIPartial  = "aqi_partial"
	KeyPartialPM25 = "pm2_5"
	KeyPartialPM10 = "pm10"
)

// Config holds configuration for the pipeline.
type Config struct {
	Schema   record.Schema
	Defaults uplink.Local
	Logger   zerolog.Logger

	// Metrics is optional.
	Metrics *Metrics

	// Batch controls ProcessBatch. Zero values select defaults.
	Batch BatchConfig
}

// Result is the outcome of processing one uplink.
type Result struct {
	DevID  string         `json:"devId"`
	AQI    aqi.Result     `json:"aqi"`
	Points []record.Point `json:"points"`
}

// Pipeline processes uplinks. It is safe for concurrent use.
type Pipeline struct {
	builder atomic.Pointer[record.Builder]
	logger  zerolog.Logger
	metrics *Metrics
	tracer  trace.Tracer
	batch   BatchConfig
	stats   *Stats
}

// New creates a pipeline.
func New(cfg Config) *Pipeline {
	p := &Pipeline{
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
		tracer:  otel.Tracer(instrumentationName),
		batch:   cfg.Batch.withDefaults(),
		stats:   &Stats{},
	}
	p.builder.Store(record.NewBuilder(cfg.Schema, cfg.Defaults))
	return p
}

// SetSchema swaps the record schema and node defaults. Uplinks already being
// processed finish with the previous ones.
func (p *Pipeline) SetSchema(schema record.Schema, defaults uplink.Local) {
	p.builder.Store(record.NewBuilder(schema, defaults))
	p.logger.Info().
		Strs("value_keys", schema.ValueKeys).
		Strs("tag_keys", schema.TagKeys).
		Msg("pipeline schema updated")
}

// Schema returns the schema currently applied.
func (p *Pipeline) Schema() record.Schema {
	return p.builder.Load().Schema()
}

// Process validates u, computes its AQI and builds its points. The air
// quality point is always produced; the RF point is skipped with a warning
// when the radio metadata is unusable. Process fails with the context error
// when ctx is done before the points are built.
func (p *Pipeline) Process(ctx context.Context, u uplink.Uplink) (*Result, error) {
	start := time.Now()
	ctx, span := p.tracer.Start(ctx, "pipeline.Process",
		trace.WithAttributes(
			attribute.String("device.id", u.DevID),
			attribute.Int64("uplink.counter", int64(u.Counter)),
		),
	)
	defer span.End()

	res, err := p.process(ctx, u)
	p.metrics.recordUplink(ctx, time.Since(start), err)
	p.stats.record(err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if res.AQI.AQI != nil {
		span.SetAttributes(attribute.Int("aqi", *res.AQI.AQI))
	}
	return res, nil
}

func (p *Pipeline) process(ctx context.Context, u uplink.Uplink) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := u.Validate(); err != nil {
		return nil, err
	}

	result := aqi.Compute(u.PM())
	p.metrics.recordAQI(ctx, result)
	u.Payload = enrich(u.Payload, result)

	b := p.builder.Load()
	points := []record.Point{b.AirQuality(&u)}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if len(u.Metadata.Gateways) > 0 {
		rf, err := b.RF(&u)
		if err != nil {
			p.logger.Warn().
				Err(err).
				Str("dev_id", u.DevID).
				Msg("skipping rf point")
		} else {
			points = append(points, rf)
		}
	}

	p.logger.Debug().
		Str("dev_id", u.DevID).
		Uint32("counter", u.Counter).
		Int("points", len(points)).
		Msg("uplink processed")

	return &Result{
		DevID:  u.DevID,
		AQI:    result,
		Points: points,
	}, nil
}

// enrich returns a copy of payload with the AQI fields added. The input map
// is not modified. Nothing is added when no index was computed.
func enrich(payload map[string]any, r aqi.Result) map[string]any {
	out := make(map[string]any, len(payload)+2)
	for k, v := range payload {
		out[k] = v
	}
	if r.AQI == nil {
		return out
	}

	partial := make(map[string]any, 2)
	if r.PM25 != nil {
		partial[KeyPartialPM25] = *r.PM25
	}
	if r.PM10 != nil {
		partial[KeyPartialPM10] = *r.PM10
	}
	out[KeyAQI] = *r.AQI
	out[KeyAQIPartial] = partial
	return out
}
