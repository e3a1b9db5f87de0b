package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/airsense/airsense/internal/pipeline"
	"github.com/airsense/airsense/internal/publish"
	"github.com/airsense/airsense/internal/uplink"
)

// Outcome tells the transport what to do with a message.
type Outcome int

const (
	// Ack removes the message from the subscription.
	Ack Outcome = iota
	// Nack asks for redelivery.
	Nack
)

func (o Outcome) String() string {
	if o == Ack {
		return "ack"
	}
	return "nack"
}

// ErrPoison marks messages that can never be processed.
var ErrPoison = errors.New("poison message")

// Handler turns one uplink message into published points.
type Handler struct {
	pipeline  *pipeline.Pipeline
	publisher publish.Publisher
	logger    zerolog.Logger
	stats     *Stats
}

// NewHandler creates a handler. A nil publisher discards points.
func NewHandler(p *pipeline.Pipeline, pub publish.Publisher, logger zerolog.Logger) *Handler {
	if pub == nil {
		pub = publish.Nop{}
	}
	return &Handler{
		pipeline:  p,
		publisher: pub,
		logger:    logger,
		stats:     &Stats{},
	}
}

// Handle processes one message body. Messages that cannot be decoded or fail
// validation are acked so they are not redelivered forever; publish failures
// are nacked.
func (h *Handler) Handle(ctx context.Context, data []byte) Outcome {
	logger := h.loggerFrom(ctx)
	err := h.handle(ctx, data)
	switch {
	case err == nil:
		h.stats.record(Ack, nil)
		return Ack
	case errors.Is(err, ErrPoison):
		logger.Error().Err(err).Msg("dropping message")
		h.stats.record(Ack, err)
		return Ack
	default:
		logger.Error().Err(err).Msg("message failed, requesting redelivery")
		h.stats.record(Nack, err)
		return Nack
	}
}

func (h *Handler) handle(ctx context.Context, data []byte) error {
	var u uplink.Uplink
	if err := json.Unmarshal(data, &u); err != nil {
		return fmt.Errorf("%w: decoding uplink: %v", ErrPoison, err)
	}

	res, err := h.pipeline.Process(ctx, u)
	if err != nil {
		if errors.Is(err, uplink.ErrInvalidUplink) {
			return fmt.Errorf("%w: %w", ErrPoison, err)
		}
		return err
	}

	if err := h.publisher.Publish(ctx, res.Points); err != nil {
		return fmt.Errorf("publishing points for %s: %w", res.DevID, err)
	}
	return nil
}

// loggerFrom prefers the per-message logger attached by the consumer.
func (h *Handler) loggerFrom(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &h.logger
}

// Stats returns a copy of the handler counters.
func (h *Handler) Stats() Stats {
	return h.stats.snapshot()
}

// Stats tracks message outcomes for the health endpoint.
type Stats struct {
	mu sync.RWMutex

	Acked         int64     `json:"acked"`
	Nacked        int64     `json:"nacked"`
	Dropped       int64     `json:"dropped"`
	LastMessageAt time.Time `json:"lastMessageAt"`
	LastError     string    `json:"lastError,omitempty"`
}

func (s *Stats) record(o Outcome, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.LastMessageAt = time.Now()
	if o == Ack {
		s.Acked++
	} else {
		s.Nacked++
	}
	if err != nil {
		if o == Ack {
			s.Dropped++
		}
		s.LastError = err.Error()
	}
}

func (s *Stats) snapshot() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Stats{
		Acked:         s.Acked,
		Nacked:        s.Nacked,
		Dropped:       s.Dropped,
		LastMessageAt: s.LastMessageAt,
		LastError:     s.LastError,
	}
}
