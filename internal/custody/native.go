package custody

import (
	"solana-custody-lab/internal/ledger"
	"solana-custody-lab/internal/pda"
)

// NativeVault is a system account at a derived address. It holds lamports and
// no data, and is reaped by the ledger once emptied.
type NativeVault struct {
	Key pda.Derived
}

// Address returns the vault address.
func (v NativeVault) Address() pda.Address {
	return v.Key.Address
}

// Balance returns the staged lamports held by v.
func (v NativeVault) Balance(tx *ledger.Tx) uint64 {
	if a, ok := tx.Get(v.Key.Address); ok {
		return a.Lamports
	}
	return 0
}

// Deposit moves lamports from a signing wallet into v.
func (v NativeVault) Deposit(tx *ledger.Tx, from pda.Address, lamports uint64) error {
	return tx.Transfer(from, v.Key.Address, lamports)
}

// Withdraw moves lamports out of v, signing as the vault.
func (v NativeVault) Withdraw(tx *ledger.Tx, to pda.Address, lamports uint64) error {
	if err := tx.SignAs(v.Key); err != nil {
		return err
	}
	return tx.Transfer(v.Key.Address, to, lamports)
}

// Drain withdraws the full balance of v and returns the amount moved.
func (v NativeVault) Drain(tx *ledger.Tx, to pda.Address) (uint64, error) {
	amount := v.Balance(tx)
	if amount == 0 {
		return 0, nil
	}
	return amount, v.Withdraw(tx, to, amount)
}
