// Package publish delivers prepared points to the downstream writer.
package publish

import (
	"context"
	"errors"

	"github.com/airsense/airsense/internal/record"
)

// ErrClosed is returned by publishers after Close.
var ErrClosed = errors.New("publisher closed")

// Publisher delivers points downstream. Publish returns once every point has
// been accepted or the first failure is known.
type Publisher interface {
	Publish(ctx context.Context, points []record.Point) error
}

// Nop discards every point. It is used when no topic is configured.
type Nop struct{}

// Publish implements Publisher.
func (Nop) Publish(context.Context, []record.Point) error { return nil }
