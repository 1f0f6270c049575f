package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bloomsocial/indexer"
	"bloomsocial/observability/logging"
	telemetry "bloomsocial/observability/otel"
)

func main() {
	configFile := flag.String("config", "", "Path to the indexer YAML configuration")
	exportFormat := flag.String("export", "", "Write a payout export (csv|jsonl|parquet) to the export directory and exit")
	exportFrom := flag.Int64("from", 0, "Export claims at or after this unix time")
	exportTo := flag.Int64("to", 0, "Export claims before this unix time (0 = no bound)")
	flag.Parse()

	cfg, err := indexer.LoadConfig(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, logCloser := logging.SetupWithOptions("bloom-indexer", cfg.Environment, logging.Options{
		Level: cfg.Log.Level,
		File:  cfg.Log.File,
	})
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *exportFormat != "" {
		err = runExport(ctx, cfg, logger, *exportFormat, *exportFrom, *exportTo)
	} else {
		err = run(ctx, cfg, logger)
	}
	if err != nil {
		logger.Error("bloom-indexer stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *indexer.Config, logger *slog.Logger) error {
	if cfg.Telemetry.Endpoint != "" {
		shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
			ServiceName: "bloom-indexer",
			Environment: cfg.Environment,
			Endpoint:    cfg.Telemetry.Endpoint,
			Insecure:    cfg.Telemetry.Insecure,
			Traces:      true,
			Metrics:     true,
			SampleRatio: cfg.Telemetry.SampleRatio,
		})
		if err != nil {
			return fmt.Errorf("initialise telemetry: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdownTelemetry(shutdownCtx)
		}()
	}

	db, err := indexer.OpenDatabase(cfg.Database, logger)
	if err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	var cache *indexer.ProfileCache
	if cfg.Redis.Address != "" {
		client, err := indexer.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer client.Close()
		cache = indexer.NewProfileCache(client, cfg.Redis.TTL)
		logger.Info("profile cache enabled", slog.String("redis", cfg.Redis.Address))
	}

	projector := indexer.NewProjector(db, logger)
	if cache != nil {
		projector.SetCache(cache)
	}
	subscriber := indexer.NewSubscriber(cfg.NodeURL, projector, cfg.Reconnect, logger)
	server := indexer.NewServer(indexer.NewQueries(db, cache, logger), logger)

	errCh := make(chan error, 2)
	go func() { errCh <- subscriber.Run(ctx) }()
	go func() { errCh <- server.Start(cfg.ListenAddress) }()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("api shutdown", slog.Any("error", err))
	}
	return nil
}

func runExport(ctx context.Context, cfg *indexer.Config, logger *slog.Logger, format string, from, to int64) error {
	db, err := indexer.OpenDatabase(cfg.Database, logger)
	if err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}
	export, err := indexer.NewQueries(db, nil, logger).ExportPayouts(ctx, format, from, to)
	if err != nil {
		return err
	}
	name := fmt.Sprintf("payouts-%s", time.Now().UTC().Format("20060102T150405Z"))
	path, err := export.Save(cfg.ExportDir, name)
	if err != nil {
		return err
	}
	logger.Info("payout export written",
		slog.String("path", path),
		slog.Int("rows", export.Rows),
		slog.String("sha256", export.Checksum))
	return nil
}
