// Package main provides the entrypoint for the AirSense API server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/airsense/airsense/internal/api"
	"github.com/airsense/airsense/internal/api/handler"
	"github.com/airsense/airsense/internal/api/middleware"
	"github.com/airsense/airsense/internal/auth"
	"github.com/airsense/airsense/internal/config"
	"github.com/airsense/airsense/internal/pipeline"
	"github.com/airsense/airsense/internal/publish"
	"github.com/airsense/airsense/internal/resilience"
	"github.com/airsense/airsense/internal/telemetry"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "airsense-api"

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting AirSense API")

	port := getEnv("APP_PORT", "8080")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	telemetryCfg := telemetry.ConfigFromEnv(serviceName, Version)
	tp, err := telemetry.Init(ctx, telemetryCfg)
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
	if telemetryCfg.Enabled {
		log.Info().
			Str("otlp_endpoint", telemetryCfg.OTLPEndpoint).
			Msg("OpenTelemetry initialized")
	}

	httpMetrics, err := middleware.NewMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize http metrics")
	}
	pipelineMetrics, err := pipeline.NewMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize pipeline metrics")
	}

	cfg, cfgPath := loadConfig(log)
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

	signingKey := os.Getenv("JWT_SIGNING_KEY")
	if signingKey == "" {
		signingKey = "local-dev-signing-key-change-in-production"
		log.Warn().Msg("using default JWT signing key - not secure for production")
	}
	tokens, err := auth.NewTokenService(auth.Config{
		SigningKey: signingKey,
		Issuer:     getEnv("JWT_ISSUER", "https://api.airsense.example"),
		Audience:   getEnv("JWT_AUDIENCE", "airsense-api"),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize token service")
	}

	var (
		publisher publish.Publisher
		sinks     []handler.SinkHealth
	)
	if topic := os.Getenv("PUBSUB_TOPIC"); topic != "" {
		ps, err := publish.NewPubSub(ctx, publish.PubSubConfig{
			ProjectID: os.Getenv("PUBSUB_PROJECT_ID"),
			Topic:     topic,
			Logger:    log,
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
		log.Info().Str("topic", topic).Msg("publishing prepared points")
	} else {
		log.Warn().Msg("PUBSUB_TOPIC not set - prepared points are only returned to callers")
	}

	router := api.NewRouter(api.RouterConfig{
		Version:     Version,
		BuildTime:   BuildTime,
		Logger:      log,
		ServiceName: serviceName,
		Metrics:     httpMetrics,
		Tokens:      tokens,
		Pipeline:    p,
		Publisher:   publisher,
		Sinks:       sinks,
		RequireTLS:  os.Getenv("REQUIRE_TLS") == "true",
	})

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server error")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

// loadConfig reads AIRSENSE_CONFIG when set. It returns the path to watch,
// which is empty when the built-in defaults are used.
func loadConfig(log zerolog.Logger) (*config.Config, string) {
	path := os.Getenv("AIRSENSE_CONFIG")
	if path == "" {
		log.Info().Msg("AIRSENSE_CONFIG not set - using default schema")
		return config.Default(), ""
	}

	cfg, err := config.Load(path)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	log.Info().
		Str("path", path).
		Strs("value_keys", cfg.Schema.ValueKeys).
		Strs("tag_keys", cfg.Schema.TagKeys).
		Msg("config loaded")
	return cfg, path
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
