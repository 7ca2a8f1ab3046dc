package token

import (
	"solana-custody-lab/internal/ledger"
	"solana-custody-lab/internal/pda"
	"solana-custody-lab/internal/protocol"
)

// AssociatedDerivation returns the canonical token account of owner for mint.
func AssociatedDerivation(owner, mint pda.Address) pda.Derived {
	return pda.MustFind(AssociatedProgramID, owner.Bytes(), ProgramID.Bytes(), mint.Bytes())
}

// AssociatedAddress returns the address of the canonical token account of owner for mint.
func AssociatedAddress(owner, mint pda.Address) pda.Address {
	return AssociatedDerivation(owner, mint).Address
}

// CreateAssociated allocates the associated token account of owner for mint.
// It fails with ErrAccountExists if the account is already there.
func CreateAssociated(tx *ledger.Tx, payer, owner, mint pda.Address) (pda.Address, error) {
	d := AssociatedDerivation(owner, mint)
	if err := tx.CPI(AssociatedProgramID).SignAs(d); err != nil {
		return pda.Zero, err
	}
	if err := InitializeAccount(tx, payer, d.Address, mint, owner); err != nil {
		return pda.Zero, err
	}
	return d.Address, nil
}

// EnsureAssociated returns the associated token account of owner for mint,
// creating it when absent.
func EnsureAssociated(tx *ledger.Tx, payer, owner, mint pda.Address) (pda.Address, error) {
	addr := AssociatedAddress(owner, mint)
	if !tx.HasState(addr) {
		return CreateAssociated(tx, payer, owner, mint)
	}

	a, err := LoadAccount(tx, addr)
	if err != nil {
		return pda.Zero, err
	}
	if a.Mint != mint || a.Owner != owner {
		return pda.Zero, protocol.Errorf(protocol.ErrInvalidAccountData, "associated account %s does not match owner %s and mint %s", addr, owner, mint)
	}
	return addr, nil
}
