package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/dock108/reelplan/pkg/assembly"
	"github.com/dock108/reelplan/pkg/cache"
	"github.com/dock108/reelplan/pkg/config"
	"github.com/dock108/reelplan/pkg/db"
	"github.com/dock108/reelplan/pkg/interpret"
	"github.com/dock108/reelplan/pkg/scoring"
	"github.com/dock108/reelplan/pkg/search"
	"github.com/dock108/reelplan/pkg/server"
	"github.com/dock108/reelplan/pkg/service"
)

func main() {
	// Initialize logger
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("Starting playlist planning service")

	// Load configuration
	cfg, err := config.NewConfig()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize store
	store, err := db.NewStore(ctx, logger, cfg.DatabaseURL, cfg.DatabaseName)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	if err := store.Ping(ctx); err != nil {
		logger.Fatal("Failed to ping database", zap.Error(err))
	}
	if err := store.EnsureIndexes(ctx); err != nil {
		logger.Fatal("Failed to ensure indexes", zap.Error(err))
	}

	// Initialize hot cache (optional)
	hot := cache.NewNoop()
	if cfg.RedisURL != "" {
		rdb, err := cache.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			logger.Warn("Failed to connect to redis, continuing without hot cache", zap.Error(err))
		} else {
			hot = cache.NewRedisCache(rdb, logger)
			logger.Info("Hot cache enabled")
		}
	}

	// Initialize collaborator clients
	provider := search.NewClient(cfg.SearchAPIURL, cfg.SearchAPIKey, logger)
	interpreter := interpret.NewHTTPInterpreter(cfg.InterpreterURL, logger)
	guardrail := interpret.NewHTTPGuardrail(cfg.GuardrailURL, logger)

	// Initialize scoring and assembly
	weights := scoring.Weights{
		Relevance:  cfg.WeightRelevance,
		Reputation: cfg.WeightReputation,
		Popularity: cfg.WeightPopularity,
		Freshness:  cfg.WeightFreshness,
	}
	reputation := scoring.NewReputationTable(cfg.OfficialChannels, cfg.MediaChannels, cfg.FlaggedChannels)
	scorer := scoring.NewScorer(weights, reputation, logger)
	assembler := assembly.NewAssembler(assembly.Options{
		TolerancePct: cfg.DurationTolerancePct,
		MaxItems:     cfg.MaxPlaylistItems,
	}, logger)

	// Initialize the plan coordinator
	planner := service.NewPlanner(store, hot, provider, scorer, assembler, service.Config{
		DurationStepMinutes: cfg.DurationStepMinutes,
		MaxParallelSearches: cfg.MaxParallelSearches,
		SearchAttempts:      cfg.SearchAttempts,
		BuildTimeout:        time.Duration(cfg.BuildTimeoutSeconds) * time.Second,
	}, logger)

	// Serve
	e := server.New(planner, interpreter, guardrail, logger).Echo()
	go func() {
		if err := e.Start(cfg.BindAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()
	logger.Info("Listening", zap.String("addr", cfg.BindAddr))

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Error shutting down HTTP server", zap.Error(err))
	}
	if err := store.Close(shutdownCtx); err != nil {
		logger.Warn("Error closing database connection", zap.Error(err))
	}

	logger.Info("Service stopped")
}
