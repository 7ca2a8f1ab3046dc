// Package main runs a ledger node: the custody programs behind an HTTP API,
// a websocket stream of committed transactions and Prometheus metrics.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"solana-custody-lab/internal/api"
	"solana-custody-lab/internal/config"
	"solana-custody-lab/internal/ledger"
	"solana-custody-lab/internal/logging"
	"solana-custody-lab/internal/programs/amm"
	"solana-custody-lab/internal/programs/escrow"
	"solana-custody-lab/internal/programs/marketplace"
	"solana-custody-lab/internal/programs/staking"
	"solana-custody-lab/internal/programs/vault"
)

const shutdownTimeout = 30 * time.Second

func main() {
	configPath := flag.String("config", os.Getenv("CUSTODY_CONFIG"), "Path to YAML config file")
	httpAddr := flag.String("http-addr", "", "HTTP listen address (overrides config)")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage regardless of config")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if *httpAddr != "" {
		cfg.HTTP.Addr = *httpAddr
	}
	if *useMemory {
		cfg.Storage.Backend = config.BackendMemory
		cfg.Storage.ClickhouseDSN = ""
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	stores, err := openStores(ctx, cfg.Storage, logger)
	if err != nil {
		return fmt.Errorf("open stores: %w", err)
	}
	defer stores.close()

	l := ledger.New(ledger.Options{
		Accounts:     stores.accounts,
		Events:       stores.events,
		AirdropLimit: cfg.Ledger.AirdropLimit,
		Logger:       logger,
	})
	if err := l.Restore(ctx); err != nil {
		return fmt.Errorf("restore ledger: %w", err)
	}

	server := api.New(l, stores.events, api.Programs{
		Escrow:      escrow.New(l, logger),
		AMM:         amm.New(l, logger),
		Vault:       vault.New(l, logger),
		Staking:     staking.New(l, logger),
		Marketplace: marketplace.New(l, logger),
	}, api.Options{
		RPS:   cfg.HTTP.RateLimit.RPS,
		Burst: cfg.HTTP.RateLimit.Burst,
	}, logger)

	httpServer := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting HTTP server",
			zap.String("addr", cfg.HTTP.Addr),
			zap.String("storage", cfg.Storage.Backend),
			zap.Bool("clickhouse", cfg.Storage.ClickhouseDSN != ""),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("received signal, initiating graceful shutdown")
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	// A second signal forces exit.
	cancel()
	go func() {
		force := make(chan os.Signal, 1)
		signal.Notify(force, syscall.SIGINT, syscall.SIGTERM)
		<-force
		logger.Warn("received second signal, forcing immediate shutdown")
		os.Exit(1)
	}()

	server.Close()
	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return nil
}
