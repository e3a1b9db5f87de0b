package pipeline

import (
	"sync"
	"time"
)

// Stats tracks processing counters for health reporting.
type Stats struct {
	mu sync.RWMutex

	Processed       int64
	Failed          int64
	LastProcessedAt time.Time
	LastError       string
}

func (s *Stats) record(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.LastProcessedAt = time.Now()
	if err != nil {
		s.Failed++
		s.LastError = err.Error()
		return
	}
	s.Processed++
}

// Stats returns a copy of the current counters.
func (p *Pipeline) Stats() Stats {
	p.stats.mu.RLock()
	defer p.stats.mu.RUnlock()

	return Stats{
		Processed:       p.stats.Processed,
		Failed:          p.stats.Failed,
		LastProcessedAt: p.stats.LastProcessedAt,
		LastError:       p.stats.LastError,
	}
}

// StatsSnapshot returns the current counters as a map.
func (p *Pipeline) StatsSnapshot() map[string]interface{} {
	s := p.Stats()
	return map[string]interface{}{
		"processed":         s.Processed,
		"failed":            s.Failed,
		"last_processed_at": s.LastProcessedAt,
		"last_error":        s.LastError,
	}
}
