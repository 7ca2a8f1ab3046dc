package memory

import (
	"context"
	"sort"
	"sync"

	"solana-custody-lab/internal/domain"
	"solana-custody-lab/internal/storage"
)

// TxEventStore is an in-memory implementation of storage.TxEventStore.
type TxEventStore struct {
	mu      sync.RWMutex
	data    map[string]*domain.TxEvent // keyed by signature
	lastSeq uint64
}

// NewTxEventStore creates a new in-memory tx event store.
func NewTxEventStore() *TxEventStore {
	return &TxEventStore{
		data: make(map[string]*domain.TxEvent),
	}
}

func copyEvent(e *domain.TxEvent) *domain.TxEvent {
	c := *e
	c.Signers = append([]string(nil), e.Signers...)
	c.Effects = append([]domain.Effect(nil), e.Effects...)
	return &c
}

// Insert adds a new event. Returns ErrDuplicateKey if the signature exists.
func (s *TxEventStore) Insert(_ context.Context, e *domain.TxEvent) error {
	if e == nil || e.Signature == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[e.Signature]; exists {
		return storage.ErrDuplicateKey
	}
	s.data[e.Signature] = copyEvent(e)
	s.lastSeq = max(s.lastSeq, e.Sequence)
	return nil
}

// LastSequence returns the highest sequence inserted so far.
func (s *TxEventStore) LastSequence(_ context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastSeq, nil
}

// GetBySignature retrieves an event by signature.
func (s *TxEventStore) GetBySignature(_ context.Context, signature string) (*domain.TxEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.data[signature]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return copyEvent(e), nil
}

// GetByProgram retrieves events for a program within [start, end] slots (inclusive),
// ordered by slot ASC then signature.
func (s *TxEventStore) GetByProgram(_ context.Context, program string, start, end uint64) ([]*domain.TxEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.TxEvent
	for _, e := range s.data {
		if e.Program == program && e.Slot >= start && e.Slot <= end {
			result = append(result, copyEvent(e))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Slot != result[j].Slot {
			return result[i].Slot < result[j].Slot
		}
		return result[i].Signature < result[j].Signature
	})
	return result, nil
}

var _ storage.TxEventStore = (*TxEventStore)(nil)
