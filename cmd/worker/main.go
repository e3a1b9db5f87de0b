// Package main provides the entrypoint for the AirSense worker, which
// consumes decoded uplinks from Pub/Sub and publishes their prepared points.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/airsense/airsense/internal/api/handler"
	"github.com/airsense/airsense/internal/api/middleware"
	"github.com/airsense/airsense/internal/api/response"
	"github.com/airsense/airsense/internal/config"
	"github.com/airsense/airsense/internal/pipeline"
	"github.com/airsense/airsense/internal/publish"
	"github.com/airsense/airsense/internal/resilience"
	"github.com/airsense/airsense/internal/telemetry"
	"github.com/airsense/airsense/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "airsense-worker"

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting AirSense worker")

	// The worker exposes health endpoints for Cloud Run.
	port := getEnv("APP_PORT", "8080")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, err := telemetry.Init(ctx, telemetry.ConfigFromEnv(serviceName, Version))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	pipelineMetrics, err := pipeline.NewMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize pipeline metrics")
	}

	cfg := config.Default()
	cfgPath := os.Getenv("AIRSENSE_CONFIG")
	if cfgPath != "" {
		if cfg, err = config.Load(cfgPath); err != nil {
			log.Fatal().Err(err).Msg("failed to load config")
		}
	}
	p := pipeline.New(pipeline.Config{
		Schema:   cfg.Schema,
		Defaults: cfg.Defaults,
		Logger:   log,
		Metrics:  pipelineMetrics,
		Batch:    cfg.Batch,
	})
	if cfgPath != "" {
		go func() {
			err := config.Watch(ctx, cfgPath, log, func(c *config.Config) {
				p.SetSchema(c.Schema, c.Defaults)
			})
			if err != nil {
				log.Error().Err(err).Str("path", cfgPath).Msg("config watch stopped")
			}
		}()
	}

	projectID := os.Getenv("PUBSUB_PROJECT_ID")
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create pubsub client")
	}
	defer func() {
		if err := client.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close pubsub client")
		}
	}()

	var (
		publisher publish.Publisher = publish.Nop{}
		sinks     []handler.SinkHealth
	)
	if topic := os.Getenv("PUBSUB_TOPIC"); topic != "" {
		ps, err := publish.NewPubSub(ctx, publish.PubSubConfig{
			Topic:  topic,
			Logger: log,
			Client: client,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create pubsub publisher")
		}
		defer func() {
			if err := ps.Close(); err != nil {
				log.Error().Err(err).Msg("failed to close pubsub publisher")
			}
		}()

		resilient := publish.NewResilient(ps, resilience.NewExecutor(resilience.DefaultConfig("pubsub"), log))
		publisher = resilient
		sinks = append(sinks, resilient)
	} else {
		log.Warn().Msg("PUBSUB_TOPIC not set - prepared points are discarded")
	}

	workerCfg := worker.DefaultConfig()
	workerCfg.ProjectID = projectID
	workerCfg.Subscription = os.Getenv("PUBSUB_SUBSCRIPTION")
	if raw := os.Getenv("WORKER_MAX_OUTSTANDING"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			workerCfg.MaxOutstandingMessages = n
		}
	}

	h := worker.NewHandler(p, publisher, log)
	consumer, err := worker.NewConsumer(ctx, workerCfg, client, h, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create consumer")
	}
	defer consumer.Close() //nolint:errcheck // the shared client is closed above

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      newHealthRouter(log, p, h, sinks),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("health server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("health server error")
		}
	}()

	// Receive blocks until ctx is cancelled or the subscription fails.
	if err := consumer.Start(ctx); err != nil {
		log.Error().Err(err).Msg("consumer stopped")
	}
	stop()

	log.Info().Msg("shutting down worker")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server forced to shutdown")
	}

	log.Info().Msg("worker stopped")
}

func newHealthRouter(log zerolog.Logger, p *pipeline.Pipeline, h *worker.Handler, sinks []handler.SinkHealth) http.Handler {
	ops := handler.NewOpsHandler(Version, BuildTime, p, sinks...)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(log))
	r.Use(middleware.Recovery(log))
	r.Use(middleware.ContentTypeJSON)

	r.Get("/v1/ops/health", ops.HealthCheck)
	r.Get("/v1/ops/ready", ops.ReadinessCheck)
	r.Get("/v1/ops/status", ops.SystemStatus)
	r.Get("/v1/ops/consumer", func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, r, http.StatusOK, h.Stats())
	})
	return r
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
