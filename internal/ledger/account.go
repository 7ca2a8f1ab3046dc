package ledger

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"solana-custody-lab/internal/domain"
	"solana-custody-lab/internal/pda"
	"solana-custody-lab/internal/protocol"
)

// SystemProgramID owns plain wallets and native vaults.
var SystemProgramID = pda.Zero

// State is the typed data held by a program-owned account.
type State interface {
	// Kind is the registered type tag used for persistence.
	Kind() string
	// Size is the serialized length in bytes; it determines rent.
	Size() int
	// Clone returns a deep copy.
	Clone() State
}

// Account is one entry in the ledger arena, keyed by address.
type Account struct {
	Key      pda.Address
	Owner    pda.Address
	Lamports uint64
	State    State // nil for system accounts
}

func (a *Account) clone() *Account {
	if a == nil {
		return nil
	}
	c := *a
	if a.State != nil {
		c.State = a.State.Clone()
	}
	return &c
}

// IsSystem reports whether the account is a plain system account.
func (a *Account) IsSystem() bool {
	return a.Owner == SystemProgramID && a.State == nil
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]func() State)
	programs   = make(map[pda.Address]string)
)

// RegisterState registers a state kind so accounts holding it can be persisted
// and restored. It panics on duplicate kinds.
func RegisterState(kind string, factory func() State) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[kind]; exists {
		panic(fmt.Sprintf("ledger: state kind %q registered twice", kind))
	}
	registry[kind] = factory
}

// RegisterProgram names a program id for logs and metrics.
func RegisterProgram(id pda.Address, name string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	programs[id] = name
}

// ProgramName returns the registered name of id, or its base58 form.
func ProgramName(id pda.Address) string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	if name, ok := programs[id]; ok {
		return name
	}
	if id == SystemProgramID {
		return "system"
	}
	return id.String()
}

// Kinds returns every registered state kind, sorted.
func Kinds() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	out := make([]string, 0, len(registry))
	for k := range registry {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// EncodeAccount converts an account into its persisted record.
func EncodeAccount(a *Account, slot uint64) (*domain.AccountRecord, error) {
	rec := &domain.AccountRecord{
		Address:  a.Key.String(),
		Owner:    a.Owner.String(),
		Lamports: a.Lamports,
		Slot:     slot,
	}
	if a.State != nil {
		data, err := json.Marshal(a.State)
		if err != nil {
			return nil, fmt.Errorf("encode %s state of %s: %w", a.State.Kind(), a.Key, err)
		}
		rec.Kind = a.State.Kind()
		rec.Data = data
	}
	return rec, nil
}

// DecodeAccount restores an account from its persisted record.
func DecodeAccount(rec *domain.AccountRecord) (*Account, error) {
	key, err := pda.ParseAddress(rec.Address)
	if err != nil {
		return nil, err
	}
	owner, err := pda.ParseAddress(rec.Owner)
	if err != nil {
		return nil, err
	}

	a := &Account{Key: key, Owner: owner, Lamports: rec.Lamports}
	if rec.IsSystem() {
		return a, nil
	}

	registryMu.RLock()
	factory, ok := registry[rec.Kind]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("decode %s: unregistered state kind %q", rec.Address, rec.Kind)
	}

	st := factory()
	if err := json.Unmarshal(rec.Data, st); err != nil {
		return nil, fmt.Errorf("decode %s state of %s: %w", rec.Kind, rec.Address, err)
	}
	a.State = st
	return a, nil
}

// Load fetches key from tx and asserts its state type and owner, the way a program
// deserializes an account it expects to own.
func Load[T State](tx *Tx, key pda.Address, owner pda.Address) (T, *Account, error) {
	var zero T

	acct, ok := tx.Get(key)
	if !ok {
		return zero, nil, protocol.Errorf(protocol.ErrRecordNotFound, "account %s", key)
	}
	if acct.Owner != owner {
		return zero, nil, protocol.Errorf(protocol.ErrIllegalOwner, "account %s owned by %s, want %s", key, acct.Owner, owner)
	}
	st, ok := acct.State.(T)
	if !ok {
		return zero, nil, protocol.Errorf(protocol.ErrInvalidAccountData, "account %s holds %T", key, acct.State)
	}
	return st, acct, nil
}
