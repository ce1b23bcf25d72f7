package main

import (
	"context"
	stdlog "log"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/benidevo/matchcore/internal/ai"
	"github.com/benidevo/matchcore/internal/common/logger"
	"github.com/benidevo/matchcore/internal/matchcore/cache"
	"github.com/benidevo/matchcore/internal/matchcore/config"
	"github.com/benidevo/matchcore/internal/matchcore/core"
	"github.com/benidevo/matchcore/internal/matchcore/features"
	"github.com/benidevo/matchcore/internal/matchcore/resilience"
)

func main() {
	cfg := config.Load()
	logger.Initialize(false, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var shared cache.Cache
	if cfg.Cache.BackendPath != "" {
		backend, err := cache.NewBadgerCache(cfg.Cache.BackendPath, 64)
		if err != nil {
			log.Warn().Err(err).Msg("shared cache unavailable, running with local tier only")
		} else {
			shared = backend
		}
	}

	var embedder features.Embedder
	if cfg.Embeddings.Enabled {
		breaker := resilience.NewCircuitBreaker("embeddings",
			cfg.Circuit["embeddings"].Threshold,
			cfg.Circuit["embeddings"].Timeout,
			cfg.Circuit["embeddings"].SuccessesNeeded)
		gemini, err := ai.NewGeminiEmbedder(ctx, ai.EmbeddingsConfig{
			APIKey: cfg.Embeddings.APIKey,
			Model:  cfg.Embeddings.Model,
		}, breaker, resilience.RetryPolicy(cfg.Retry["default"]))
		if err != nil {
			log.Warn().Err(err).Msg("embeddings unavailable, semantic features disabled")
		} else {
			embedder = gemini
		}
	}

	c, err := core.New(cfg, core.Options{
		Embedder:    embedder,
		SharedCache: shared,
	})
	if err != nil {
		stdlog.Fatalf("Failed to build matchcore: %v", err)
	}

	c.Start(ctx)
	log.Info().Msg("matchcore started")

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Worker.ShutdownGrace+5*time.Second)
	defer cancel()
	c.Stop(shutdownCtx)
}
