package ledger

import (
	"sync"

	"solana-custody-lab/internal/pda"
	"solana-custody-lab/internal/protocol"
)

// accountLocks tracks writable accounts held by in-flight instructions.
// Acquisition never blocks: a conflict is reported to the caller to retry.
type accountLocks struct {
	mu   sync.Mutex
	held map[pda.Address]struct{}
}

func newAccountLocks() *accountLocks {
	return &accountLocks{held: make(map[pda.Address]struct{})}
}

func (l *accountLocks) acquire(keys []pda.Address) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, k := range keys {
		if _, busy := l.held[k]; busy {
			return protocol.Errorf(protocol.ErrAccountInUse, "account %s", k)
		}
	}
	for _, k := range keys {
		l.held[k] = struct{}{}
	}
	return nil
}

func (l *accountLocks) release(keys []pda.Address) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, k := range keys {
		delete(l.held, k)
	}
}
