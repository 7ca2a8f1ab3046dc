package memory

import (
	"context"
	"sort"
	"sync"

	"solana-custody-lab/internal/domain"
	"solana-custody-lab/internal/storage"
)

// AccountStore is an in-memory implementation of storage.AccountStore.
type AccountStore struct {
	mu   sync.RWMutex
	data map[string]*domain.AccountRecord // keyed by address
}

// NewAccountStore creates a new in-memory account store.
func NewAccountStore() *AccountStore {
	return &AccountStore{
		data: make(map[string]*domain.AccountRecord),
	}
}

func copyRecord(r *domain.AccountRecord) *domain.AccountRecord {
	c := *r
	if r.Data != nil {
		c.Data = append([]byte(nil), r.Data...)
	}
	return &c
}

// Apply upserts and deletes accounts atomically. The whole batch is validated
// before anything is written.
func (s *AccountStore) Apply(_ context.Context, upserts []*domain.AccountRecord, deletes []string) error {
	for _, r := range upserts {
		if r == nil || r.Address == "" || r.Owner == "" {
			return storage.ErrInvalidInput
		}
	}
	for _, addr := range deletes {
		if addr == "" {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range upserts {
		s.data[r.Address] = copyRecord(r)
	}
	for _, addr := range deletes {
		delete(s.data, addr)
	}
	return nil
}

// Get retrieves an account by address.
func (s *AccountStore) Get(_ context.Context, address string) (*domain.AccountRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.data[address]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return copyRecord(r), nil
}

// GetByOwner retrieves all accounts owned by owner, ordered by address ASC.
func (s *AccountStore) GetByOwner(_ context.Context, owner string) ([]*domain.AccountRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.AccountRecord
	for _, r := range s.data {
		if r.Owner == owner {
			result = append(result, copyRecord(r))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Address < result[j].Address
	})
	return result, nil
}

// LoadAll retrieves every account, ordered by address ASC.
func (s *AccountStore) LoadAll(_ context.Context) ([]*domain.AccountRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.AccountRecord, 0, len(s.data))
	for _, r := range s.data {
		result = append(result, copyRecord(r))
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Address < result[j].Address
	})
	return result, nil
}

var _ storage.AccountStore = (*AccountStore)(nil)
