package pipeline

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/airsense/airsense/internal/aqi"
)

const instrumentationName = "github.com/airsense/airsense/internal/pipeline"

// Metrics holds the OpenTelemetry instruments for uplink processing.
type Metrics struct {
	uplinksTotal    metric.Int64Counter
	failuresTotal   metric.Int64Counter
	aqiTotal        metric.Int64Counter
	aqiValue        metric.Int64Histogram
	processDuration metric.Float64Histogram
}

// NewMetrics creates pipeline metrics on the global meter provider.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(instrumentationName)

	uplinksTotal, err := meter.Int64Counter(
		"pipeline.uplinks.total",
		metric.WithDescription("Number of uplinks processed"),
		metric.WithUnit("{uplink}"),
	)
	if err != nil {
		return nil, err
	}

	failuresTotal, err := meter.Int64Counter(
		"pipeline.failures.total",
		metric.WithDescription("Number of uplinks that could not be processed"),
		metric.WithUnit("{uplink}"),
	)
	if err != nil {
		return nil, err
	}

	aqiTotal, err := meter.Int64Counter(
		"pipeline.aqi.computed",
		metric.WithDescription("Number of AQI computations, by dominant pollutant"),
		metric.WithUnit("{computation}"),
	)
	if err != nil {
		return nil, err
	}

	aqiValue, err := meter.Int64Histogram(
		"pipeline.aqi.value",
		metric.WithDescription("Distribution of combined AQI values"),
		metric.WithExplicitBucketBoundaries(50, 100, 150, 200, 300, 400, 500),
	)
	if err != nil {
		return nil, err
	}

	processDuration, err := meter.Float64Histogram(
		"pipeline.process.duration",
		metric.WithDescription("Duration of uplink processing in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		uplinksTotal:    uplinksTotal,
		failuresTotal:   failuresTotal,
		aqiTotal:        aqiTotal,
		aqiValue:        aqiValue,
		processDuration: processDuration,
	}, nil
}

func (m *Metrics) recordUplink(ctx context.Context, duration time.Duration, err error) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{attribute.Bool("error", err != nil)}
	m.uplinksTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.processDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	if err != nil {
		m.failuresTotal.Add(ctx, 1)
	}
}

func (m *Metrics) recordAQI(ctx context.Context, r aqi.Result) {
	if m == nil || r.AQI == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("aqi.dominant", string(r.Dominant)))
	m.aqiTotal.Add(ctx, 1, attrs)
	m.aqiValue.Record(ctx, int64(*r.AQI), attrs)
}
