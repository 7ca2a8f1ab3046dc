// Package ledger is the account arena every program runs against.
//
// Instructions execute as indivisible units: a Tx stages reads and writes in a
// copy-on-write overlay, the overlay is validated, persisted and committed in
// one pass, or discarded entirely on the first error.
package ledger

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"solana-custody-lab/internal/domain"
	"solana-custody-lab/internal/pda"
	"solana-custody-lab/internal/protocol"
	"solana-custody-lab/internal/storage"
)

// Options configures a Ledger.
type Options struct {
	// Clock supplies timestamps. Defaults to SystemClock.
	Clock Clock
	// Accounts persists committed accounts. Nil keeps state in memory only.
	Accounts storage.AccountStore
	// Events records every submitted instruction. Nil disables the audit log.
	Events storage.TxEventStore
	// AirdropLimit caps a single airdrop in lamports. Zero means unlimited.
	AirdropLimit uint64
	// Logger defaults to a no-op logger.
	Logger *zap.Logger
}

// Ledger holds committed accounts and executes instructions against them.
type Ledger struct {
	mu       sync.RWMutex
	accounts map[pda.Address]*Account
	slot     uint64

	locks    *accountLocks
	sequence atomic.Uint64

	clock        Clock
	store        storage.AccountStore
	events       storage.TxEventStore
	airdropLimit uint64
	logger       *zap.Logger

	subsMu sync.RWMutex
	subs   map[int]chan domain.TxEvent
	nextID int
}

// New creates an empty ledger.
func New(opts Options) *Ledger {
	if opts.Clock == nil {
		opts.Clock = SystemClock{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Ledger{
		accounts:     make(map[pda.Address]*Account),
		locks:        newAccountLocks(),
		clock:        opts.Clock,
		store:        opts.Accounts,
		events:       opts.Events,
		airdropLimit: opts.AirdropLimit,
		logger:       opts.Logger.Named("ledger"),
		subs:         make(map[int]chan domain.TxEvent),
	}
}

// Restore loads every persisted account into memory and resumes the
// instruction sequence from the event log. It must be called before the ledger
// serves instructions.
func (l *Ledger) Restore(ctx context.Context) error {
	if l.events != nil {
		seq, err := l.events.LastSequence(ctx)
		if err != nil {
			return fmt.Errorf("load last sequence: %w", err)
		}
		l.sequence.Store(seq)
	}
	if l.store == nil {
		return nil
	}

	records, err := l.store.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("load accounts: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	for _, rec := range records {
		acct, err := DecodeAccount(rec)
		if err != nil {
			return err
		}
		l.accounts[acct.Key] = acct
		if rec.Slot > l.slot {
			l.slot = rec.Slot
		}
	}

	l.logger.Info("restored accounts", zap.Int("count", len(records)), zap.Uint64("slot", l.slot))
	return nil
}

// Account returns a copy of the committed account at key.
func (l *Ledger) Account(key pda.Address) (*Account, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	a, ok := l.accounts[key]
	if !ok {
		return nil, false
	}
	return a.clone(), true
}

// Balance returns the committed lamports at key, zero if absent.
func (l *Ledger) Balance(key pda.Address) uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if a, ok := l.accounts[key]; ok {
		return a.Lamports
	}
	return 0
}

// AccountsByOwner returns copies of every committed account owned by owner,
// ordered by address.
func (l *Ledger) AccountsByOwner(owner pda.Address) []*Account {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []*Account
	for _, a := range l.accounts {
		if a.Owner == owner {
			out = append(out, a.clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Key.Compare(out[j].Key) < 0
	})
	return out
}

// Slot returns the slot of the last committed instruction.
func (l *Ledger) Slot() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.slot
}

// Now returns the ledger clock.
func (l *Ledger) Now() int64 {
	return l.clock.Now()
}

// Airdrop credits newly created lamports to key.
func (l *Ledger) Airdrop(ctx context.Context, key pda.Address, lamports uint64) (*Receipt, error) {
	if lamports == 0 {
		return nil, protocol.Errorf(protocol.ErrInvalidAmount, "airdrop of zero lamports")
	}
	if l.airdropLimit > 0 && lamports > l.airdropLimit {
		return nil, protocol.Errorf(protocol.ErrInvalidParameter, "airdrop %d exceeds limit %d", lamports, l.airdropLimit)
	}

	ix := Instruction{
		Program:  SystemProgramID,
		Name:     "airdrop",
		Writable: []pda.Address{key},
	}
	return l.Execute(ctx, ix, func(tx *Tx) error {
		return tx.mintLamports(key, lamports)
	})
}

// Subscribe registers a listener for committed events. The returned cancel
// function must be called to release the channel. Slow listeners miss events.
func (l *Ledger) Subscribe(buffer int) (<-chan domain.TxEvent, func()) {
	ch := make(chan domain.TxEvent, buffer)

	l.subsMu.Lock()
	id := l.nextID
	l.nextID++
	l.subs[id] = ch
	l.subsMu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			l.subsMu.Lock()
			delete(l.subs, id)
			l.subsMu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

func (l *Ledger) publish(e domain.TxEvent) {
	l.subsMu.RLock()
	defer l.subsMu.RUnlock()

	for id, ch := range l.subs {
		select {
		case ch <- e:
		default:
			l.logger.Warn("dropping event for slow subscriber", zap.Int("subscriber", id), zap.String("signature", e.Signature))
		}
	}
}
