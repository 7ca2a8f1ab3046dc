package storage

import (
	"context"

	"solana-custody-lab/internal/domain"
)

// AccountStore provides access to accounts storage.
type AccountStore interface {
	// Apply upserts and deletes accounts in one atomic unit. Either every change
	// is persisted or none is.
	Apply(ctx context.Context, upserts []*domain.AccountRecord, deletes []string) error

	// Get retrieves an account by address. Returns ErrNotFound if not exists.
	Get(ctx context.Context, address string) (*domain.AccountRecord, error)

	// GetByOwner retrieves all accounts owned by a program, ordered by address ASC.
	GetByOwner(ctx context.Context, owner string) ([]*domain.AccountRecord, error)

	// LoadAll retrieves every account, ordered by address ASC.
	LoadAll(ctx context.Context) ([]*domain.AccountRecord, error)
}

// TxEventStore provides access to tx_events storage.
type TxEventStore interface {
	// Insert adds a new event. Returns ErrDuplicateKey if signature exists.
	Insert(ctx context.Context, e *domain.TxEvent) error

	// GetBySignature retrieves an event by its signature. Returns ErrNotFound if not exists.
	GetBySignature(ctx context.Context, signature string) (*domain.TxEvent, error)

	// GetByProgram retrieves events for a program within slots [start, end] (inclusive),
	// ordered by slot ASC.
	GetByProgram(ctx context.Context, program string, start, end uint64) ([]*domain.TxEvent, error)

	// LastSequence returns the highest recorded sequence, or 0 for an empty log.
	LastSequence(ctx context.Context) (uint64, error)
}
