package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

// ErrCircuitOpen is returned while the circuit breaker rejects calls.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// Breaker states as reported by Health.
var (
	StateClosed   = gobreaker.StateClosed.String()
	StateHalfOpen = gobreaker.StateHalfOpen.String()
	StateOpen     = gobreaker.StateOpen.String()
)

// Config holds configuration for an Executor.
type Config struct {
	// Name identifies the protected sink.
	Name string

	// Timeout bounds each attempt.
	// Default: 10 seconds
	Timeout time.Duration

	// MaxRetries is the number of retries after the first attempt.
	// Default: 3
	MaxRetries uint64

	// InitialInterval is the first retry delay.
	// Default: 100ms
	InitialInterval time.Duration

	// MaxInterval caps the retry delay.
	// Default: 5 seconds
	MaxInterval time.Duration

	// CircuitBreaker defaults to DefaultCircuitBreakerConfig(Name).
	CircuitBreaker *CircuitBreakerConfig
}

// DefaultConfig returns the default executor configuration.
func DefaultConfig(name string) Config {
	cb := DefaultCircuitBreakerConfig(name)
	return Config{
		Name:            name,
		Timeout:         10 * time.Second,
		MaxRetries:      3,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     5 * time.Second,
		CircuitBreaker:  &cb,
	}
}

// Health is a point-in-time view of a protected sink.
type Health struct {
	Name          string           `json:"name"`
	State         string           `json:"state"`
	Counts        gobreaker.Counts `json:"counts"`
	LastSuccessAt *time.Time       `json:"lastSuccessAt,omitempty"`
	LastFailureAt *time.Time       `json:"lastFailureAt,omitempty"`
	LastError     string           `json:"lastError,omitempty"`
}

// Healthy reports whether the breaker is closed.
func (h Health) Healthy() bool {
	return h.State == StateClosed
}

// Executor runs operations with per-attempt timeouts, exponential backoff
// retries and a circuit breaker. It is safe for concurrent use.
type Executor struct {
	cb     *gobreaker.CircuitBreaker[struct{}]
	config Config
	logger zerolog.Logger

	mu            sync.RWMutex
	lastSuccessAt *time.Time
	lastFailureAt *time.Time
	lastError     string
}

// NewExecutor creates an executor.
func NewExecutor(cfg Config, logger zerolog.Logger) *Executor {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.InitialInterval == 0 {
		cfg.InitialInterval = 100 * time.Millisecond
	}
	if cfg.MaxInterval == 0 {
		cfg.MaxInterval = 5 * time.Second
	}

	cbConfig := DefaultCircuitBreakerConfig(cfg.Name)
	if cfg.CircuitBreaker != nil {
		cbConfig = *cfg.CircuitBreaker
		if cbConfig.Name == "" {
			cbConfig.Name = cfg.Name
		}
	}

	return &Executor{
		cb:     newCircuitBreaker[struct{}](cbConfig, logger),
		config: cfg,
		logger: logger,
	}
}

// Permanent marks err as not worth retrying. It still counts as a failure
// for the circuit breaker.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Do runs op until it succeeds, returns a Permanent error, the retries are
// exhausted or ctx is done. ErrCircuitOpen is returned without calling op
// while the breaker is open.
func (e *Executor) Do(ctx context.Context, op func(ctx context.Context) error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = e.config.InitialInterval
	bo.MaxInterval = e.config.MaxInterval
	bo.MaxElapsedTime = 0

	policy := backoff.WithContext(backoff.WithMaxRetries(bo, e.config.MaxRetries), ctx)

	attempt := 0
	operation := func() error {
		attempt++
		_, err := e.cb.Execute(func() (struct{}, error) {
			attemptCtx, cancel := context.WithTimeout(ctx, e.config.Timeout)
			defer cancel()
			return struct{}{}, op(attemptCtx)
		})
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return backoff.Permanent(ErrCircuitOpen)
		}
		if err != nil {
			e.logger.Debug().
				Err(err).
				Str("sink", e.config.Name).
				Int("attempt", attempt).
				Msg("attempt failed")
		}
		return err
	}

	err := backoff.Retry(operation, policy)
	e.record(err)
	return err
}

func (e *Executor) record(err error) {
	now := time.Now()
	e.mu.Lock()
	defer e.mu.Unlock()
	if err != nil {
		e.lastFailureAt = &now
		e.lastError = err.Error()
		return
	}
	e.lastSuccessAt = &now
}

// Health returns the current breaker state and call history.
func (e *Executor) Health() Health {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return Health{
		Name:          e.config.Name,
		State:         e.cb.State().String(),
		Counts:        e.cb.Counts(),
		LastSuccessAt: e.lastSuccessAt,
		LastFailureAt: e.lastFailureAt,
		LastError:     e.lastError,
	}
}
