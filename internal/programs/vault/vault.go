package vault

import (
	"context"

	"go.uber.org/zap"

	"solana-custody-lab/internal/custody"
	"solana-custody-lab/internal/ledger"
	"solana-custody-lab/internal/pda"
	"solana-custody-lab/internal/protocol"
)

// Program executes vault instructions against a ledger.
type Program struct {
	ledger *ledger.Ledger
	logger *zap.Logger
}

// New creates a vault program bound to l.
func New(l *ledger.Ledger, logger *zap.Logger) *Program {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Program{ledger: l, logger: logger.Named("vault")}
}

// Initialize creates the vault state of the owner. The native vault itself
// comes into existence with the first deposit.
func (p *Program) Initialize(ctx context.Context, acc Accounts) (*ledger.Receipt, error) {
	ix := ledger.Instruction{
		Program:  ProgramID,
		Name:     "initialize",
		Signers:  []pda.Address{acc.Owner},
		Writable: []pda.Address{acc.Owner, acc.State},
	}

	r, err := p.ledger.Execute(ctx, ix, func(tx *ledger.Tx) error {
		st := &State{Owner: acc.Owner}
		sd, err := custody.ExpectRecord(ProgramID, acc.State, st)
		if err != nil {
			return err
		}
		vd, err := custody.ExpectRecord(ProgramID, acc.Vault, vaultSeeds{acc.Owner})
		if err != nil {
			return err
		}
		if tx.HasState(sd.Address) {
			return protocol.Errorf(protocol.ErrDuplicateSeed, "vault of %s exists", acc.Owner)
		}

		st.StateBump, st.VaultBump = sd.Bump, vd.Bump
		if err := tx.SignAs(sd); err != nil {
			return err
		}
		return tx.CreateAccount(acc.Owner, sd.Address, ProgramID, st)
	})
	if err != nil {
		return nil, err
	}

	p.logger.Info("vault initialized", zap.String("owner", acc.Owner.String()))
	return r, nil
}

// Deposit moves amount lamports from the owner into the vault. The vault must
// end at or above the rent-exempt minimum.
func (p *Program) Deposit(ctx context.Context, acc Accounts, amount uint64) (*ledger.Receipt, error) {
	return p.execute(ctx, "deposit", acc, func(tx *ledger.Tx, v custody.NativeVault) error {
		if amount == 0 {
			return protocol.Errorf(protocol.ErrInvalidAmount, "deposit of zero")
		}
		return v.Deposit(tx, acc.Owner, amount)
	})
}

// Withdraw moves amount lamports from the vault to the owner. The vault must stay
// empty or at or above the rent-exempt minimum.
func (p *Program) Withdraw(ctx context.Context, acc Accounts, amount uint64) (*ledger.Receipt, error) {
	return p.execute(ctx, "withdraw", acc, func(tx *ledger.Tx, v custody.NativeVault) error {
		if amount == 0 {
			return protocol.Errorf(protocol.ErrInvalidAmount, "withdraw of zero")
		}
		if bal := v.Balance(tx); amount > bal {
			return protocol.Errorf(protocol.ErrInsufficientFunds, "vault holds %d, asked %d", bal, amount)
		}
		return v.Withdraw(tx, acc.Owner, amount)
	})
}

// Close returns the vault balance to the owner and reclaims the vault state.
func (p *Program) Close(ctx context.Context, acc Accounts) (*ledger.Receipt, error) {
	r, err := p.execute(ctx, "close", acc, func(tx *ledger.Tx, v custody.NativeVault) error {
		if _, err := v.Drain(tx, acc.Owner); err != nil {
			return err
		}
		return tx.CloseAccount(acc.State, acc.Owner)
	})
	if err != nil {
		return nil, err
	}

	p.logger.Info("vault closed", zap.String("owner", acc.Owner.String()))
	return r, nil
}

// Balance returns the committed vault balance of acc.
func (p *Program) Balance(acc Accounts) uint64 {
	return p.ledger.Balance(acc.Vault)
}

// execute loads and verifies the owner's vault state before running fn.
func (p *Program) execute(ctx context.Context, name string, acc Accounts, fn func(tx *ledger.Tx, v custody.NativeVault) error) (*ledger.Receipt, error) {
	ix := ledger.Instruction{
		Program:  ProgramID,
		Name:     name,
		Signers:  []pda.Address{acc.Owner},
		Writable: []pda.Address{acc.Owner, acc.State, acc.Vault},
	}

	return p.ledger.Execute(ctx, ix, func(tx *ledger.Tx) error {
		if err := tx.RequireSigner(acc.Owner); err != nil {
			return err
		}
		st, _, err := ledger.Load[*State](tx, acc.State, ProgramID)
		if err != nil {
			return err
		}
		if _, err := custody.Authority(ProgramID, acc.State, st, st.StateBump); err != nil {
			return err
		}
		if st.Owner != acc.Owner {
			return protocol.Errorf(protocol.ErrUnauthorized, "vault belongs to %s", st.Owner)
		}
		key, err := custody.Authority(ProgramID, acc.Vault, vaultSeeds{st.Owner}, st.VaultBump)
		if err != nil {
			return err
		}
		return fn(tx, custody.NativeVault{Key: key})
	})
}
