package publish

import (
	"context"
	"sync"

	"github.com/airsense/airsense/internal/record"
)

// Memory keeps published points in memory. It backs dry runs and tests.
type Memory struct {
	mu     sync.Mutex
	points []record.Point

	// Err, when set, is returned by Publish instead of storing points.
	Err error
}

// NewMemory creates an empty in-memory publisher.
func NewMemory() *Memory {
	return &Memory{}
}

// Publish implements Publisher.
func (m *Memory) Publish(ctx context.Context, points []record.Point) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.points = append(m.points, points...)
	return nil
}

// Points returns a copy of everything published so far.
func (m *Memory) Points() []record.Point {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]record.Point, len(m.points))
	copy(out, m.points)
	return out
}

// Reset drops stored points.
func (m *Memory) Reset() {
	m.mu.Lock()
	m.points = nil
	m.mu.Unlock()
}
