package postgres

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/jackc/pgx/v5"

	"solana-custody-lab/internal/domain"
	"solana-custody-lab/internal/observability"
	"solana-custody-lab/internal/storage"
)

// AccountStore implements storage.AccountStore using PostgreSQL.
type AccountStore struct {
	pool *Pool
}

// NewAccountStore creates a new AccountStore.
func NewAccountStore(pool *Pool) *AccountStore {
	return &AccountStore{pool: pool}
}

// Compile-time interface check.
var _ storage.AccountStore = (*AccountStore)(nil)

// Apply upserts and deletes accounts in one database transaction.
func (s *AccountStore) Apply(ctx context.Context, upserts []*domain.AccountRecord, deletes []string) (err error) {
	if len(upserts) == 0 && len(deletes) == 0 {
		return nil
	}
	for _, r := range upserts {
		if r == nil || r.Address == "" || r.Owner == "" {
			return storage.ErrInvalidInput
		}
		if r.Lamports > math.MaxInt64 || r.Slot > math.MaxInt64 {
			return fmt.Errorf("%w: account %s exceeds bigint range", storage.ErrInvalidInput, r.Address)
		}
	}

	start := time.Now()
	defer func() {
		observability.RecordDBQuery("postgres", "apply_accounts", time.Since(start).Seconds(), err)
	}()

	return s.pool.inTx(ctx, func(tx pgx.Tx) error {
		const upsert = `
			INSERT INTO accounts (address, owner, lamports, kind, data, slot)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (address) DO UPDATE SET
				owner = EXCLUDED.owner,
				lamports = EXCLUDED.lamports,
				kind = EXCLUDED.kind,
				data = EXCLUDED.data,
				slot = EXCLUDED.slot
		`
		for _, r := range upserts {
			var data any
			if r.Data != nil {
				data = r.Data
			}
			_, err := tx.Exec(ctx, upsert, r.Address, r.Owner, int64(r.Lamports), r.Kind, data, int64(r.Slot))
			if err != nil {
				return fmt.Errorf("upsert account %s: %w", r.Address, err)
			}
		}

		for _, addr := range deletes {
			if _, err := tx.Exec(ctx, `DELETE FROM accounts WHERE address = $1`, addr); err != nil {
				return fmt.Errorf("delete account %s: %w", addr, err)
			}
		}
		return nil
	})
}

// Get retrieves an account by address.
func (s *AccountStore) Get(ctx context.Context, address string) (*domain.AccountRecord, error) {
	query := `
		SELECT address, owner, lamports, kind, data, slot
		FROM accounts
		WHERE address = $1
	`

	rows, err := s.pool.Query(ctx, query, address)
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	defer rows.Close()

	records, err := scanAccounts(rows)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, storage.ErrNotFound
	}
	return records[0], nil
}

// GetByOwner retrieves all accounts owned by owner, ordered by address ASC.
func (s *AccountStore) GetByOwner(ctx context.Context, owner string) ([]*domain.AccountRecord, error) {
	query := `
		SELECT address, owner, lamports, kind, data, slot
		FROM accounts
		WHERE owner = $1
		ORDER BY address ASC
	`

	rows, err := s.pool.Query(ctx, query, owner)
	if err != nil {
		return nil, fmt.Errorf("get accounts by owner: %w", err)
	}
	defer rows.Close()

	return scanAccounts(rows)
}

// LoadAll retrieves every account, ordered by address ASC.
func (s *AccountStore) LoadAll(ctx context.Context) ([]*domain.AccountRecord, error) {
	query := `
		SELECT address, owner, lamports, kind, data, slot
		FROM accounts
		ORDER BY address ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("load accounts: %w", err)
	}
	defer rows.Close()

	return scanAccounts(rows)
}

// scanAccounts scans multiple rows into a slice of AccountRecord.
func scanAccounts(rows pgx.Rows) ([]*domain.AccountRecord, error) {
	var records []*domain.AccountRecord

	for rows.Next() {
		var r domain.AccountRecord
		var lamports, slot int64

		err := rows.Scan(
			&r.Address,
			&r.Owner,
			&lamports,
			&r.Kind,
			&r.Data,
			&slot,
		)
		if err != nil {
			return nil, fmt.Errorf("scan account row: %w", err)
		}
		r.Lamports = uint64(lamports)
		r.Slot = uint64(slot)

		records = append(records, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate account rows: %w", err)
	}

	return records, nil
}
