package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"bloomsocial/config"
	"bloomsocial/core"
	"bloomsocial/gateway/middleware"
	nativecommon "bloomsocial/native/common"
	"bloomsocial/observability/logging"
	telemetry "bloomsocial/observability/otel"
	"bloomsocial/rpc"
	"bloomsocial/storage"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	verifyOnly := flag.Bool("verify", false, "Verify the event log digest chain and exit")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	env := cfg.Environment
	if override := strings.TrimSpace(os.Getenv("BLOOM_ENV")); override != "" {
		env = override
	}
	logger, logCloser := logging.SetupWithOptions("bloomd", env, logging.Options{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	defer logCloser.Close()

	if err := run(cfg, env, logger, *verifyOnly); err != nil {
		logger.Error("bloomd stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, env string, logger *slog.Logger, verifyOnly bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Telemetry.Traces || cfg.Telemetry.Metrics {
		shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
			ServiceName: "bloomd",
			Environment: env,
			Endpoint:    cfg.Telemetry.Endpoint,
			Insecure:    cfg.Telemetry.Insecure,
			Headers:     telemetry.ParseHeaders(cfg.Telemetry.Headers),
			Metrics:     cfg.Telemetry.Metrics,
			Traces:      cfg.Telemetry.Traces,
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

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	opts, err := ledgerOptions(cfg, logger)
	if err != nil {
		return err
	}
	ledger, err := core.NewLedger(db, opts)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer ledger.Close()

	if err := ledger.VerifyEvents(); err != nil {
		return fmt.Errorf("event log verification: %w", err)
	}
	if verifyOnly {
		head, err := ledger.EventHead()
		if err != nil {
			return err
		}
		logger.Info("event log verified", slog.Uint64("head", head))
		return nil
	}
	if err := applyGenesis(cfg, ledger, logger); err != nil {
		return err
	}

	server := rpc.NewServer(ledger, serverConfig(cfg), logger)
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(cfg.RPCAddress)
	}()
	logger.Info("bloomd started",
		slog.String("rpc", cfg.RPCAddress),
		slog.String("custody", cfg.Custody().Hex()),
		slog.String("fee_recipient", cfg.FeeRecipient().Hex()),
		logging.MaskField("auth_secret", cfg.AuthSecret()))

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("rpc server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("rpc shutdown", slog.Any("error", err))
	}
	return nil
}

func ledgerOptions(cfg *config.Config, logger *slog.Logger) (core.Options, error) {
	faucet, err := cfg.FaucetAmountWei()
	if err != nil {
		return core.Options{}, fmt.Errorf("faucet amount: %w", err)
	}
	return core.Options{
		Custody:              cfg.Custody(),
		ProtocolFeeRecipient: cfg.FeeRecipient(),
		StrictUnfollow:       cfg.StrictUnfollow,
		FaucetAmount:         faucet,
		FaucetCooldown:       cfg.FaucetCooldown(),
		Pauses:               nativecommon.NewPauseSet(cfg.PausedModules...),
		Logger:               logger,
	}, nil
}

func applyGenesis(cfg *config.Config, ledger *core.Ledger, logger *slog.Logger) error {
	spec, err := cfg.GenesisSpec()
	if err != nil {
		return fmt.Errorf("load genesis: %w", err)
	}
	if spec == nil {
		return nil
	}
	head, err := ledger.EventHead()
	if err != nil {
		return err
	}
	if head > 0 {
		logger.Debug("genesis skipped, ledger already initialised", slog.Uint64("head", head))
		return nil
	}
	if err := ledger.InitGenesis(spec); err != nil {
		return fmt.Errorf("apply genesis: %w", err)
	}
	logger.Info("genesis applied", slog.Int("allocations", len(spec.Allocations())))
	return nil
}

func serverConfig(cfg *config.Config) rpc.ServerConfig {
	return rpc.ServerConfig{
		ReadHeaderTimeout: cfg.ReadHeaderTimeout(),
		ReadTimeout:       cfg.ReadTimeout(),
		WriteTimeout:      cfg.WriteTimeout(),
		IdleTimeout:       cfg.IdleTimeout(),
		RateLimit: middleware.RateLimit{
			RatePerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:         cfg.RateLimit.Burst,
		},
		CORS: middleware.CORSConfig{AllowedOrigins: cfg.CORS.AllowedOrigins},
		Auth: middleware.AuthConfig{
			Enabled:    !cfg.Auth.Disabled,
			HMACSecret: cfg.AuthSecret(),
			Issuer:     cfg.Auth.Issuer,
			Audience:   cfg.Auth.Audience,
			TokenTTL:   time.Duration(cfg.Auth.TokenTTL) * time.Second,
		},
		LogRequests: true,
	}
}
