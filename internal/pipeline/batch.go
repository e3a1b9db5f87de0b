package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/airsense/airsense/internal/uplink"
)

// BatchConfig holds configuration for batch processing.
type BatchConfig struct {
	// Concurrency is the number of uplinks processed in parallel.
	// Default: 4
	Concurrency int `yaml:"concurrency"`

	// Timeout bounds the processing of each uplink.
	// Default: 5 seconds
	Timeout time.Duration `yaml:"timeout"`
}

// DefaultBatchConfig returns the default batch configuration.
func DefaultBatchConfig() BatchConfig {
	return BatchConfig{
		Concurrency: 4,
		Timeout:     5 * time.Second,
	}
}

func (c BatchConfig) withDefaults() BatchConfig {
	d := DefaultBatchConfig()
	if c.Concurrency <= 0 {
		c.Concurrency = d.Concurrency
	}
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	return c
}

// BatchItem is the outcome for one uplink of a batch.
type BatchItem struct {
	Index  int     `json:"index"`
	Result *Result `json:"result,omitempty"`
	Error  string  `json:"error,omitempty"`
}

// BatchResult contains the result of a batch run. Items are in input order.
type BatchResult struct {
	StartTime  time.Time     `json:"startTime"`
	EndTime    time.Time     `json:"endTime"`
	Duration   time.Duration `json:"duration"`
	Total      int           `json:"total"`
	Successful int           `json:"successful"`
	Failed     int           `json:"failed"`
	Items      []BatchItem   `json:"items"`
}

// ProcessBatch processes uplinks on a bounded worker pool. Uplinks not yet
// started when ctx is cancelled are reported as failed.
func (p *Pipeline) ProcessBatch(ctx context.Context, uplinks []uplink.Uplink) *BatchResult {
	startTime := time.Now()
	result := &BatchResult{
		StartTime: startTime,
		Total:     len(uplinks),
		Items:     make([]BatchItem, len(uplinks)),
	}

	p.logger.Debug().
		Int("total", result.Total).
		Int("concurrency", p.batch.Concurrency).
		Msg("starting batch")

	jobs := make(chan int, len(uplinks))
	for i := range uplinks {
		result.Items[i] = BatchItem{Index: i, Error: context.Canceled.Error()}
		jobs <- i
	}
	close(jobs)

	// Each worker writes only the items it dequeued, so no locking is needed.
	var wg sync.WaitGroup
	for w := 0; w < p.batch.Concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				if ctx.Err() != nil {
					return
				}
				result.Items[i] = p.processItem(ctx, i, uplinks[i])
			}
		}()
	}
	wg.Wait()

	for _, item := range result.Items {
		if item.Error == "" {
			result.Successful++
		} else {
			result.Failed++
		}
	}

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(startTime)

	p.logger.Info().
		Dur("duration", result.Duration).
		Int("successful", result.Successful).
		Int("failed", result.Failed).
		Msg("batch completed")

	return result
}

func (p *Pipeline) processItem(ctx context.Context, i int, u uplink.Uplink) BatchItem {
	itemCtx, cancel := context.WithTimeout(ctx, p.batch.Timeout)
	defer cancel()

	res, err := p.Process(itemCtx, u)
	if err != nil {
		return BatchItem{Index: i, Error: err.Error()}
	}
	return BatchItem{Index: i, Result: res}
}
