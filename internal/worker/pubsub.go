package worker

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"
)

// Consumer receives uplink messages from a Pub/Sub subscription.
type Consumer struct {
	client     *pubsub.Client
	ownClient  bool
	subscriber *pubsub.Subscriber
	handler    *Handler
	config     Config
	logger     zerolog.Logger
}

// NewConsumer creates a Pub/Sub consumer. The client is created for
// cfg.ProjectID unless one is passed; a passed client is not closed by Close.
func NewConsumer(ctx context.Context, cfg Config, client *pubsub.Client, handler *Handler, logger zerolog.Logger) (*Consumer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	own := false
	if client == nil {
		var err error
		client, err = pubsub.NewClient(ctx, cfg.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("creating pubsub client: %w", err)
		}
		own = true
	}

	subscriber := client.Subscriber(cfg.Subscription)
	subscriber.ReceiveSettings.MaxOutstandingMessages = cfg.MaxOutstandingMessages
	subscriber.ReceiveSettings.MaxExtension = cfg.MaxExtension

	return &Consumer{
		client:     client,
		ownClient:  own,
		subscriber: subscriber,
		handler:    handler,
		config:     cfg,
		logger:     logger,
	}, nil
}

// Start receives messages until ctx is cancelled.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info().
		Str("subscription", c.config.Subscription).
		Int("max_outstanding", c.config.MaxOutstandingMessages).
		Msg("starting uplink consumer")

	return c.subscriber.Receive(ctx, c.receive)
}

// Close closes the Pub/Sub client if the consumer created it.
func (c *Consumer) Close() error {
	if !c.ownClient {
		return nil
	}
	return c.client.Close()
}

func (c *Consumer) receive(ctx context.Context, msg *pubsub.Message) {
	start := time.Now()
	logger := c.logger.With().
		Str("message_id", msg.ID).
		Str("publish_time", msg.PublishTime.Format(time.RFC3339)).
		Logger()

	ctx, cancel := context.WithTimeout(logger.WithContext(ctx), c.config.HandleTimeout)
	defer cancel()

	outcome := c.handler.Handle(ctx, msg.Data)
	if outcome == Ack {
		msg.Ack()
	} else {
		msg.Nack()
	}

	logger.Debug().
		Str("outcome", outcome.String()).
		Dur("duration", time.Since(start)).
		Msg("message handled")
}
