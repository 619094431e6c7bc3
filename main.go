package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"coinone-trading-bot/config"
	"coinone-trading-bot/internal/api"
	"coinone-trading-bot/internal/cache"
	"coinone-trading-bot/internal/coinone"
	"coinone-trading-bot/internal/database"
	"coinone-trading-bot/internal/logging"
)

func main() {
	godotenv.Load()

	cfg, err := config.Load("config.json")
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logging.New(cfg.Logging.Level, cfg.Logging.Output, cfg.Logging.JSONFormat)
	logger.Info().
		Str("pair", cfg.Market.TargetCurrency+"/"+cfg.Market.QuoteCurrency).
		Str("interval", cfg.Market.PrimaryInterval).
		Msg("Starting Coinone trading engine")

	client := coinone.NewClient(cfg.Coinone.BaseURL, logger)

	var candleCache *cache.CandleCache
	if cfg.Redis.Enabled {
		candleCache, err = cache.NewCandleCache(cfg.Redis, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("Cache disabled")
		}
	}

	var repo *database.Repository
	if cfg.Database.Enabled {
		db, err := database.NewDB(cfg.Database, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("Database connection failed")
		}
		defer db.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := db.RunMigrations(ctx); err != nil {
			cancel()
			logger.Fatal().Err(err).Msg("Database migrations failed")
		}
		cancel()
		repo = database.NewRepository(db)
	}

	// Live ticker stream keeps the latest price available to handlers and
	// operators watching the logs.
	stream := coinone.NewTickerStream(cfg.Coinone.WSURL, logger)
	stream.OnTicker(func(t *coinone.Ticker) {
		logger.Debug().
			Str("target", cfg.Market.TargetCurrency).
			Float64("last", t.Last).
			Msg("Ticker update")
	})
	if err := stream.Start(cfg.Market.QuoteCurrency, cfg.Market.TargetCurrency); err != nil {
		logger.Warn().Err(err).Msg("Ticker stream unavailable")
	} else {
		defer stream.Stop()
	}

	server := api.NewServer(cfg.Server, client, candleCache, repo, logger)
	server.UseAnalysisConfigs(cfg.Classifier, cfg.BandWalk, cfg.Strategy)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("Shutting down")
	case err := <-errCh:
		if err != nil {
			logger.Error().Err(err).Msg("Server stopped")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("Graceful shutdown failed")
	}

	if candleCache != nil {
		candleCache.Close()
	}
	logger.Info().Msg("Stopped")
}
