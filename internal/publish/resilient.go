package publish

import (
	"context"
	"errors"

	"github.com/airsense/airsense/internal/record"
	"github.com/airsense/airsense/internal/resilience"
)

// Resilient retries a Publisher with backoff behind a circuit breaker.
type Resilient struct {
	next     Publisher
	executor *resilience.Executor
}

// NewResilient wraps next with the given executor.
func NewResilient(next Publisher, executor *resilience.Executor) *Resilient {
	return &Resilient{next: next, executor: executor}
}

// Publish implements Publisher. ErrClosed and context errors from next are
// not retried.
func (r *Resilient) Publish(ctx context.Context, points []record.Point) error {
	if len(points) == 0 {
		return nil
	}
	return r.executor.Do(ctx, func(ctx context.Context) error {
		err := r.next.Publish(ctx, points)
		if errors.Is(err, ErrClosed) || errors.Is(err, context.Canceled) {
			return resilience.Permanent(err)
		}
		return err
	})
}

// Health reports the state of the underlying circuit breaker.
func (r *Resilient) Health() resilience.Health {
	return r.executor.Health()
}
