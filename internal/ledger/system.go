package ledger

import (
	"solana-custody-lab/internal/domain"
	"solana-custody-lab/internal/pda"
	"solana-custody-lab/internal/protocol"
)

// Transfer moves native lamports. The source must be a signing system account.
func (t *Tx) Transfer(from, to pda.Address, lamports uint64) error {
	if err := t.RequireSigner(from); err != nil {
		return err
	}
	if err := t.requireWritable(from); err != nil {
		return err
	}

	src := t.s.load(from)
	if src.cur == nil {
		return protocol.Errorf(protocol.ErrInsufficientFunds, "account %s does not exist", from)
	}
	if !src.cur.IsSystem() {
		return protocol.Errorf(protocol.ErrIllegalOwner, "transfer source %s carries data", from)
	}
	if src.cur.Lamports < lamports {
		return protocol.Errorf(protocol.ErrInsufficientFunds, "account %s holds %d lamports, need %d", from, src.cur.Lamports, lamports)
	}

	src.cur.Lamports -= lamports
	src.dirty = true
	if err := t.credit(to, lamports); err != nil {
		return err
	}

	t.Emit(domain.Effect{Type: domain.EffectLamportTransfer, From: from.String(), To: to.String(), Amount: lamports})
	return nil
}

// CreateAccount allocates key with st, owned by owner and funded by payer to its
// rent-exempt minimum. key must sign, either as a keypair or through SignAs.
func (t *Tx) CreateAccount(payer, key, owner pda.Address, st State) error {
	if err := t.RequireSigner(key); err != nil {
		return err
	}
	if err := t.requireWritable(key); err != nil {
		return err
	}

	e := t.s.load(key)
	var have uint64
	if e.cur != nil {
		if !e.cur.IsSystem() {
			return protocol.Errorf(protocol.ErrAccountExists, "%s", key)
		}
		have = e.cur.Lamports
	}

	rent := MinimumBalance(st.Size())
	if have < rent {
		if err := t.Transfer(payer, key, rent-have); err != nil {
			return err
		}
	}

	e.cur = &Account{Key: key, Owner: owner, Lamports: max(have, rent), State: st.Clone()}
	e.dirty = true

	t.Emit(domain.Effect{Type: domain.EffectCreateAccount, From: payer.String(), To: key.String(), Amount: rent})
	return nil
}

// CloseAccount removes key from the arena and sends its lamports to dest. Only
// the owning program may close an account.
func (t *Tx) CloseAccount(key, dest pda.Address) error {
	if err := t.requireWritable(key); err != nil {
		return err
	}

	e := t.s.load(key)
	if e.cur == nil {
		return protocol.Errorf(protocol.ErrRecordNotFound, "account %s", key)
	}
	if e.cur.Owner != t.program {
		return protocol.Errorf(protocol.ErrIllegalOwner, "program %s cannot close %s owned by %s", ProgramName(t.program), key, ProgramName(e.cur.Owner))
	}

	lamports := e.cur.Lamports
	e.cur = nil
	e.dirty = true
	if err := t.credit(dest, lamports); err != nil {
		return err
	}

	t.Emit(domain.Effect{Type: domain.EffectCloseAccount, From: key.String(), To: dest.String(), Amount: lamports})
	return nil
}
