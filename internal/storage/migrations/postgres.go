package migrations

import (
	"context"
	"fmt"
	"strings"

	"solana-custody-lab/internal/storage/postgres"
)

// RunPostgresMigrations applies the embedded SQL files in lexical order.
// Every file is idempotent, so this runs on each server start.
func RunPostgresMigrations(ctx context.Context, pool *postgres.Pool) error {
	files, err := sqlFiles(PostgresFS, "postgres")
	if err != nil {
		return err
	}

	for _, f := range files {
		if strings.TrimSpace(f.body) == "" {
			continue
		}
		if _, err := pool.Exec(ctx, f.body); err != nil {
			return fmt.Errorf("apply migration %s: %w", f.name, err)
		}
	}
	return nil
}
