// Package worker consumes decoded uplinks from Pub/Sub, prepares their
// points and forwards them to the publisher.
package worker

import (
	"errors"
	"time"
)

// ErrNoSubscription is returned when no subscription is configured.
var ErrNoSubscription = errors.New("worker: subscription is required")

// Config holds configuration for the uplink consumer.
type Config struct {
	// ProjectID is the Google Cloud project of the subscription.
	ProjectID string

	// Subscription is the decoded-uplink subscription name or ID.
	Subscription string

	// MaxOutstandingMessages bounds in-flight messages.
	// Default: 10
	MaxOutstandingMessages int

	// MaxExtension bounds ack deadline extension per message.
	// Default: 10 minutes
	MaxExtension time.Duration

	// HandleTimeout bounds the processing of one message.
	// Default: 30 seconds
	HandleTimeout time.Duration
}

// DefaultConfig returns the default consumer configuration.
func DefaultConfig() Config {
	return Config{
		MaxOutstandingMessages: 10,
		MaxExtension:           10 * time.Minute,
		HandleTimeout:          30 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxOutstandingMessages <= 0 {
		c.MaxOutstandingMessages = d.MaxOutstandingMessages
	}
	if c.MaxExtension <= 0 {
		c.MaxExtension = d.MaxExtension
	}
	if c.HandleTimeout <= 0 {
		c.HandleTimeout = d.HandleTimeout
	}
	return c
}

// Validate checks that the consumer can be started.
func (c Config) Validate() error {
	if c.Subscription == "" {
		return ErrNoSubscription
	}
	return nil
}
