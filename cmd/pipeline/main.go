package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"

	httpadapter "github.com/GOKUL-2024-HASH/Green-Pulse-v2/internal/adapter/http"
	kafkaadapter "github.com/GOKUL-2024-HASH/Green-Pulse-v2/internal/adapter/kafka"
	"github.com/GOKUL-2024-HASH/Green-Pulse-v2/internal/adapter/waqi"
	"github.com/GOKUL-2024-HASH/Green-Pulse-v2/internal/adapter/weather"
	"github.com/GOKUL-2024-HASH/Green-Pulse-v2/internal/classify"
	"github.com/GOKUL-2024-HASH/Green-Pulse-v2/internal/config"
	"github.com/GOKUL-2024-HASH/Green-Pulse-v2/internal/ledger"
	"github.com/GOKUL-2024-HASH/Green-Pulse-v2/internal/observability"
	"github.com/GOKUL-2024-HASH/Green-Pulse-v2/internal/pipeline"
	"github.com/GOKUL-2024-HASH/Green-Pulse-v2/internal/rules"
	"github.com/GOKUL-2024-HASH/Green-Pulse-v2/internal/window"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()

	// The regulatory limits table is a hard startup requirement.
	limitsTable, err := rules.Load(cfg.LimitsPath)
	if err != nil {
		logger.Error("cannot start without regulatory limits table", "path", cfg.LimitsPath, "error", err)
		os.Exit(1)
	}
	logger.Info("regulatory limits loaded", "path", cfg.LimitsPath, "version", limitsTable.Version())

	zones, err := classify.LoadZones(cfg.ZonesPath)
	if err != nil {
		logger.Warn("zones table unavailable, using default factors", "path", cfg.ZonesPath, "error", err)
		zones = classify.DefaultZones()
	}

	var store ledger.Store
	if cfg.LedgerPath != "" {
		store = ledger.NewFileStore(cfg.LedgerPath)
		logger.Info("ledger file store", "path", cfg.LedgerPath)
	} else {
		store = ledger.NewMemStore()
		logger.Warn("LEDGER_PATH not set, using in-memory ledger store")
	}

	// Verify chain integrity before accepting new appends.
	verification, err := ledger.NewVerifier(store, logger).VerifyChain(context.Background())
	if err != nil {
		logger.Error("ledger verification failed", "error", err)
		os.Exit(1)
	}
	if !verification.IsValid {
		logger.Error("audit ledger chain is not intact, refusing to start",
			"cause", verification.Cause,
			"broken_at_sequence", verification.BrokenAtSequence,
			"detail", verification.ErrorMessage,
		)
		os.Exit(1)
	}
	logger.Info("audit ledger verified", "entries", verification.TotalEntries)

	ledgerWriter := ledger.NewWriter(store, clock, logger)

	var weatherFetcher pipeline.WeatherFetcher
	if cfg.WeatherEnabled {
		weatherFetcher = weather.NewClient(cfg.WeatherKey, cfg.WeatherTimeout, logger)
		logger.Info("weather connector enabled", "timeout", cfg.WeatherTimeout)
	} else {
		logger.Info("weather connector disabled")
	}

	ingest := waqi.NewClient(cfg.WAQIToken, cfg.WAQITimeout, logger)
	sink := kafkaadapter.NewWriter(cfg, logger)

	classifier := classify.New(limitsTable, zones, logger)
	processor := pipeline.NewProcessor(classifier, sink, ledgerWriter, clock, logger, metrics)

	engine := window.NewEngine(clock)
	streamer := pipeline.NewStreamer(engine, processor, cfg.Stations, clock, logger)

	history := window.NewHistory()
	poller := pipeline.NewPoller(cfg.Stations, ingest, weatherFetcher, streamer, history, processor, cfg.PollInterval, clock, logger, metrics)

	srv := httpadapter.NewServer(cfg.HTTPAddr, processor, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	go func() {
		if err := streamer.Run(ctx); err != nil {
			logger.Error("streaming pipeline error", "error", err)
		}
	}()

	go func() {
		if err := poller.Run(ctx); err != nil {
			logger.Error("polling pipeline error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if err := sink.Close(); err != nil {
		logger.Error("kafka writer close error", "error", err)
	}

	logger.Info("shutdown complete")
}
