package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"

	"github.com/airsense/airsense/internal/record"
)

// Message attribute names.
const (
	AttrMeasurement = "measurement"
	AttrDevID       = "devID"
	AttrPointID     = "pointID"
)

// PubSubConfig holds configuration for the Pub/Sub publisher.
type PubSubConfig struct {
	ProjectID string
	Topic     string
	Logger    zerolog.Logger

	// Client is reused when set and is not closed by Close.
	Client *pubsub.Client
}

// PubSub publishes each point as one JSON message.
type PubSub struct {
	client    *pubsub.Client
	ownClient bool
	publisher *pubsub.Publisher
	topic     string
	logger    zerolog.Logger

	mu     sync.RWMutex
	closed bool
}

// NewPubSub creates a Pub/Sub publisher.
func NewPubSub(ctx context.Context, cfg PubSubConfig) (*PubSub, error) {
	client := cfg.Client
	own := false
	if client == nil {
		var err error
		client, err = pubsub.NewClient(ctx, cfg.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("creating pubsub client: %w", err)
		}
		own = true
	}

	publisher := client.Publisher(cfg.Topic)
	publisher.PublishSettings.DelayThreshold = 50 * time.Millisecond
	publisher.PublishSettings.CountThreshold = 100

	return &PubSub{
		client:    client,
		ownClient: own,
		publisher: publisher,
		topic:     cfg.Topic,
		logger:    cfg.Logger,
	}, nil
}

// Publish implements Publisher.
func (p *PubSub) Publish(ctx context.Context, points []record.Point) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}

	results := make([]*pubsub.PublishResult, 0, len(points))
	for i := range points {
		msg, err := Encode(points[i])
		if err != nil {
			return err
		}
		results = append(results, p.publisher.Publish(ctx, msg))
	}

	for i, res := range results {
		id, err := res.Get(ctx)
		if err != nil {
			return fmt.Errorf("publishing point %s: %w", points[i].ID, err)
		}
		p.logger.Debug().
			Str("topic", p.topic).
			Str("server_id", id).
			Str("measurement", points[i].Measurement).
			Msg("point published")
	}
	return nil
}

// Close flushes pending messages and releases the client if it was created
// by NewPubSub.
func (p *PubSub) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	p.publisher.Stop()
	if p.ownClient {
		return p.client.Close()
	}
	return nil
}

// Encode converts a point into a Pub/Sub message.
func Encode(pt record.Point) (*pubsub.Message, error) {
	data, err := json.Marshal(pt)
	if err != nil {
		return nil, fmt.Errorf("encoding point: %w", err)
	}
	attrs := map[string]string{
		AttrMeasurement: pt.Measurement,
		AttrPointID:     pt.ID,
	}
	if dev := pt.Tags[record.TagDevID]; dev != "" {
		attrs[AttrDevID] = dev
	}
	return &pubsub.Message{Data: data, Attributes: attrs}, nil
}
