// Package custody holds assets under program-derived authority. Nobody holds a
// private key for a custody account; only the program that derived its
// authority can move what it holds.
package custody

import (
	"solana-custody-lab/internal/ledger"
	"solana-custody-lab/internal/pda"
	"solana-custody-lab/internal/token"
)

// TokenVault is a token account whose owner is a derived address.
type TokenVault struct {
	Address   pda.Address
	Mint      pda.Address
	Authority pda.Derived
}

// AssociatedVault describes the associated token account of authority for mint.
func AssociatedVault(authority pda.Derived, mint pda.Address) TokenVault {
	return TokenVault{
		Address:   token.AssociatedAddress(authority.Address, mint),
		Mint:      mint,
		Authority: authority,
	}
}

// OpenAssociated creates the associated vault of authority for mint, paid by payer.
func OpenAssociated(tx *ledger.Tx, payer pda.Address, authority pda.Derived, mint pda.Address) (TokenVault, error) {
	v := AssociatedVault(authority, mint)
	if _, err := token.CreateAssociated(tx, payer, authority.Address, mint); err != nil {
		return TokenVault{}, err
	}
	return v, nil
}

// OpenDerived creates a vault at the derived address key, held by authority.
// key must be derived by the executing program.
func OpenDerived(tx *ledger.Tx, payer pda.Address, key, authority pda.Derived, mint pda.Address) (TokenVault, error) {
	if err := tx.SignAs(key); err != nil {
		return TokenVault{}, err
	}
	if err := token.InitializeAccount(tx, payer, key.Address, mint, authority.Address); err != nil {
		return TokenVault{}, err
	}
	return TokenVault{Address: key.Address, Mint: mint, Authority: authority}, nil
}

// Balance returns the staged token balance of v.
func (v TokenVault) Balance(tx *ledger.Tx) (uint64, error) {
	a, err := token.LoadAccount(tx, v.Address)
	if err != nil {
		return 0, err
	}
	return a.Amount, nil
}

// Deposit moves amount from a token account held by owner into v.
func (v TokenVault) Deposit(tx *ledger.Tx, from, owner pda.Address, amount uint64) error {
	return token.Transfer(tx, from, v.Address, owner, amount)
}

// Release moves amount out of v to the token account to, signing as the vault
// authority.
func (v TokenVault) Release(tx *ledger.Tx, to pda.Address, amount uint64) error {
	if err := tx.SignAs(v.Authority); err != nil {
		return err
	}
	return token.Transfer(tx, v.Address, to, v.Authority.Address, amount)
}

// Drain releases the full balance of v to to and returns the amount moved.
func (v TokenVault) Drain(tx *ledger.Tx, to pda.Address) (uint64, error) {
	amount, err := v.Balance(tx)
	if err != nil {
		return 0, err
	}
	if err := v.Release(tx, to, amount); err != nil {
		return 0, err
	}
	return amount, nil
}

// Close reclaims the empty vault, returning its rent to dest.
func (v TokenVault) Close(tx *ledger.Tx, dest pda.Address) error {
	if err := tx.SignAs(v.Authority); err != nil {
		return err
	}
	return token.CloseAccount(tx, v.Address, dest, v.Authority.Address)
}

// DrainAndClose releases everything to to and reclaims the vault to dest.
func (v TokenVault) DrainAndClose(tx *ledger.Tx, to, dest pda.Address) (uint64, error) {
	amount, err := v.Drain(tx, to)
	if err != nil {
		return 0, err
	}
	return amount, v.Close(tx, dest)
}
