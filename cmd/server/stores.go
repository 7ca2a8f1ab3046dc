package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"solana-custody-lab/internal/config"
	"solana-custody-lab/internal/storage"
	chstore "solana-custody-lab/internal/storage/clickhouse"
	"solana-custody-lab/internal/storage/memory"
	"solana-custody-lab/internal/storage/migrations"
	pgstore "solana-custody-lab/internal/storage/postgres"
)

// stores holds the persistence backends of the ledger.
type stores struct {
	accounts storage.AccountStore
	events   storage.TxEventStore
	close    func()
}

// openStores connects the configured backends and applies their migrations.
// Accounts live in PostgreSQL for the postgres backend and in memory otherwise.
// The transaction log goes to ClickHouse when a DSN is set, else to memory.
func openStores(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (*stores, error) {
	var closers []func()
	s := &stores{}
	s.close = func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	switch cfg.Backend {
	case config.BackendPostgres:
		pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		closers = append(closers, pool.Close)
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			s.close()
			return nil, fmt.Errorf("postgres migrations: %w", err)
		}
		s.accounts = pgstore.NewAccountStore(pool)
		logger.Info("accounts stored in postgres")
	default:
		s.accounts = memory.NewAccountStore()
	}

	if cfg.ClickhouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickhouseDSN)
		if err != nil {
			s.close()
			return nil, fmt.Errorf("clickhouse migrations: %w", err)
		}
		closers = append(closers, func() { conn.Close() })
		s.events = chstore.NewTxEventStore(conn)
		logger.Info("transaction log stored in clickhouse")
	} else {
		s.events = memory.NewTxEventStore()
	}

	return s, nil
}
