package worker_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airsense/airsense/internal/pipeline"
	"github.com/airsense/airsense/internal/publish"
	"github.com/airsense/airsense/internal/record"
	"github.com/airsense/airsense/internal/worker"
)

const uplinkJSON = `{
	"_msgid": "8a4c3f2e.1b2d",
	"app_id": "aq-net",
	"dev_id": "device-01",
	"hardware_serial": "0002CC0100000347",
	"counter": 12,
	"port": 1,
	"payload_fields": {
		"vBat": 3.61,
		"pm": {"1.0": 4, "2.5": 12, "10": 60}
	},
	"metadata": {
		"time": "2019-07-20T10:00:00.25Z",
		"frequency": 903.9,
		"data_rate": "SF9BW125",
		"coding_rate": "4/5",
		"gateways": [{"gtw_id": "eui-gw", "channel": 1, "rssi": -60, "snr": 8}]
	}
}`

func newHandler(pub publish.Publisher) *worker.Handler {
	p := pipeline.New(pipeline.Config{Logger: zerolog.Nop()})
	return worker.NewHandler(p, pub, zerolog.Nop())
}

func TestHandler_PublishesPoints(t *testing.T) {
	mem := publish.NewMemory()
	h := newHandler(mem)

	outcome := h.Handle(context.Background(), []byte(uplinkJSON))
	assert.Equal(t, worker.Ack, outcome)

	points := mem.Points()
	require.Len(t, points, 2)
	assert.Equal(t, record.MeasurementAirQuality, points[0].Measurement)
	assert.Equal(t, 54, points[0].Values["aqi"])
	assert.Equal(t, record.MeasurementRF, points[1].Measurement)

	stats := h.Stats()
	assert.Equal(t, int64(1), stats.Acked)
	assert.Equal(t, int64(0), stats.Dropped)
	assert.Empty(t, stats.LastError)
}

func TestHandler_MalformedJSONIsAcked(t *testing.T) {
	mem := publish.NewMemory()
	h := newHandler(mem)

	outcome := h.Handle(context.Background(), []byte(`{"dev_id":`))
	assert.Equal(t, worker.Ack, outcome)
	assert.Empty(t, mem.Points())

	stats := h.Stats()
	assert.Equal(t, int64(1), stats.Dropped)
	assert.Contains(t, stats.LastError, "poison message")
}

func TestHandler_InvalidUplinkIsAcked(t *testing.T) {
	mem := publish.NewMemory()
	h := newHandler(mem)

	outcome := h.Handle(context.Background(), []byte(`{"dev_id": "device-01"}`))
	assert.Equal(t, worker.Ack, outcome)
	assert.Empty(t, mem.Points())
	assert.Equal(t, int64(1), h.Stats().Dropped)
}

func TestHandler_PublishFailureIsNacked(t *testing.T) {
	mem := publish.NewMemory()
	mem.Err = errors.New("topic unavailable")
	h := newHandler(mem)

	outcome := h.Handle(context.Background(), []byte(uplinkJSON))
	assert.Equal(t, worker.Nack, outcome)

	stats := h.Stats()
	assert.Equal(t, int64(1), stats.Nacked)
	assert.Equal(t, int64(0), stats.Dropped)
	assert.Contains(t, stats.LastError, "topic unavailable")
}

func TestHandler_NilPublisher(t *testing.T) {
	h := newHandler(nil)
	assert.Equal(t, worker.Ack, h.Handle(context.Background(), []byte(uplinkJSON)))
}

func TestOutcome_String(t *testing.T) {
	assert.Equal(t, "ack", worker.Ack.String())
	assert.Equal(t, "nack", worker.Nack.String())
}

func TestDefaultConfig(t *testing.T) {
	cfg := worker.DefaultConfig()

	assert.Equal(t, 10, cfg.MaxOutstandingMessages)
	assert.Equal(t, 10*time.Minute, cfg.MaxExtension)
	assert.Equal(t, 30*time.Second, cfg.HandleTimeout)
}

func TestConfig_Validate(t *testing.T) {
	assert.ErrorIs(t, worker.Config{}.Validate(), worker.ErrNoSubscription)
	assert.NoError(t, worker.Config{Subscription: "uplinks-decoded"}.Validate())
}

func TestNewConsumer_RequiresSubscription(t *testing.T) {
	_, err := worker.NewConsumer(context.Background(), worker.Config{}, nil, newHandler(nil), zerolog.Nop())
	assert.ErrorIs(t, err, worker.ErrNoSubscription)
}
