package token

import (
	"solana-custody-lab/internal/domain"
	"solana-custody-lab/internal/ledger"
	"solana-custody-lab/internal/pda"
	"solana-custody-lab/internal/protocol"
)

// CreateMint allocates a mint at key, funded by payer. key must sign, as a keypair
// or through the calling program's SignAs.
func CreateMint(tx *ledger.Tx, payer, key, authority pda.Address, decimals uint8) error {
	return tx.CPI(ProgramID).CreateAccount(payer, key, ProgramID, &Mint{
		Decimals:      decimals,
		MintAuthority: authority,
	})
}

// InitializeAccount allocates a token account for mint at key, held by owner.
func InitializeAccount(tx *ledger.Tx, payer, key, mint, owner pda.Address) error {
	t := tx.CPI(ProgramID)
	if _, _, err := ledger.Load[*Mint](t, mint, ProgramID); err != nil {
		return err
	}
	return t.CreateAccount(payer, key, ProgramID, &Account{Mint: mint, Owner: owner})
}

// LoadMint returns the mint at key.
func LoadMint(tx *ledger.Tx, key pda.Address) (*Mint, error) {
	m, _, err := ledger.Load[*Mint](tx, key, ProgramID)
	return m, err
}

// LoadAccount returns the token account at key.
func LoadAccount(tx *ledger.Tx, key pda.Address) (*Account, error) {
	a, _, err := ledger.Load[*Account](tx, key, ProgramID)
	return a, err
}

// Transfer moves amount of tokens. authority must own the source and sign.
func Transfer(tx *ledger.Tx, from, to, authority pda.Address, amount uint64) error {
	t := tx.CPI(ProgramID)
	if err := t.RequireSigner(authority); err != nil {
		return err
	}

	src, srcAcct, err := ledger.Load[*Account](t, from, ProgramID)
	if err != nil {
		return err
	}
	if src.Owner != authority {
		return protocol.Errorf(protocol.ErrOwnerMismatch, "%s is held by %s, not %s", from, src.Owner, authority)
	}
	dst, dstAcct, err := ledger.Load[*Account](t, to, ProgramID)
	if err != nil {
		return err
	}
	if src.Mint != dst.Mint {
		return protocol.Errorf(protocol.ErrMintMismatch, "%s holds %s, %s holds %s", from, src.Mint, to, dst.Mint)
	}
	if src.Amount < amount {
		return protocol.Errorf(protocol.ErrInsufficientFunds, "%s holds %d, need %d", from, src.Amount, amount)
	}

	if from != to {
		src.Amount -= amount
		if dst.Amount, err = protocol.CheckedAdd(dst.Amount, amount); err != nil {
			return err
		}
		if err := t.Put(srcAcct); err != nil {
			return err
		}
		if err := t.Put(dstAcct); err != nil {
			return err
		}
	}

	t.Emit(domain.Effect{Type: domain.EffectTokenTransfer, From: from.String(), To: to.String(), Mint: src.Mint.String(), Amount: amount})
	return nil
}

// MintTo creates amount of new supply into to. authority must be the mint
// authority and sign.
func MintTo(tx *ledger.Tx, mint, to, authority pda.Address, amount uint64) error {
	t := tx.CPI(ProgramID)
	if err := t.RequireSigner(authority); err != nil {
		return err
	}

	m, mintAcct, err := ledger.Load[*Mint](t, mint, ProgramID)
	if err != nil {
		return err
	}
	if m.MintAuthority.IsZero() || m.MintAuthority != authority {
		return protocol.Errorf(protocol.ErrUnauthorized, "%s is not the mint authority of %s", authority, mint)
	}
	dst, dstAcct, err := ledger.Load[*Account](t, to, ProgramID)
	if err != nil {
		return err
	}
	if dst.Mint != mint {
		return protocol.Errorf(protocol.ErrMintMismatch, "%s holds %s, not %s", to, dst.Mint, mint)
	}

	if m.Supply, err = protocol.CheckedAdd(m.Supply, amount); err != nil {
		return err
	}
	if dst.Amount, err = protocol.CheckedAdd(dst.Amount, amount); err != nil {
		return err
	}
	if err := t.Put(mintAcct); err != nil {
		return err
	}
	if err := t.Put(dstAcct); err != nil {
		return err
	}

	t.Emit(domain.Effect{Type: domain.EffectMintTo, To: to.String(), Mint: mint.String(), Amount: amount})
	return nil
}

// Burn destroys amount of tokens held in account. authority must own it and sign.
func Burn(tx *ledger.Tx, account, mint, authority pda.Address, amount uint64) error {
	t := tx.CPI(ProgramID)
	if err := t.RequireSigner(authority); err != nil {
		return err
	}

	src, srcAcct, err := ledger.Load[*Account](t, account, ProgramID)
	if err != nil {
		return err
	}
	if src.Owner != authority {
		return protocol.Errorf(protocol.ErrOwnerMismatch, "%s is held by %s, not %s", account, src.Owner, authority)
	}
	if src.Mint != mint {
		return protocol.Errorf(protocol.ErrMintMismatch, "%s holds %s, not %s", account, src.Mint, mint)
	}
	m, mintAcct, err := ledger.Load[*Mint](t, mint, ProgramID)
	if err != nil {
		return err
	}
	if src.Amount < amount {
		return protocol.Errorf(protocol.ErrInsufficientFunds, "%s holds %d, need %d", account, src.Amount, amount)
	}

	src.Amount -= amount
	if m.Supply, err = protocol.CheckedSub(m.Supply, amount); err != nil {
		return err
	}
	if err := t.Put(srcAcct); err != nil {
		return err
	}
	if err := t.Put(mintAcct); err != nil {
		return err
	}

	t.Emit(domain.Effect{Type: domain.EffectBurn, From: account.String(), Mint: mint.String(), Amount: amount})
	return nil
}

// CloseAccount reclaims an empty token account, sending its rent to dest.
func CloseAccount(tx *ledger.Tx, account, dest, authority pda.Address) error {
	t := tx.CPI(ProgramID)
	if err := t.RequireSigner(authority); err != nil {
		return err
	}

	a, _, err := ledger.Load[*Account](t, account, ProgramID)
	if err != nil {
		return err
	}
	if a.Owner != authority {
		return protocol.Errorf(protocol.ErrOwnerMismatch, "%s is held by %s, not %s", account, a.Owner, authority)
	}
	if a.Amount != 0 {
		return protocol.Errorf(protocol.ErrNonZeroBalance, "%s holds %d", account, a.Amount)
	}
	return t.CloseAccount(account, dest)
}
