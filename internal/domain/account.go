package domain

// AccountRecord is the persisted form of a ledger account.
// Corresponds to the accounts table.
type AccountRecord struct {
	Address  string // base58, primary key
	Owner    string // owning program (base58)
	Lamports uint64 // native balance
	Kind     string // registered state kind, empty for system accounts
	Data     []byte // JSON-encoded state, nil for system accounts
	Slot     uint64 // slot of the last write
}

// IsSystem reports whether the record carries no program state.
func (r *AccountRecord) IsSystem() bool {
	return r.Kind == ""
}
