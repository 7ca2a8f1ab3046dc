package escrow

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"solana-custody-lab/internal/custody"
	"solana-custody-lab/internal/ledger"
	"solana-custody-lab/internal/pda"
	"solana-custody-lab/internal/protocol"
	"solana-custody-lab/internal/token"
)

// Program executes escrow instructions against a ledger.
type Program struct {
	ledger *ledger.Ledger
	logger *zap.Logger
}

// New creates an escrow program bound to l.
func New(l *ledger.Ledger, logger *zap.Logger) *Program {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Program{ledger: l, logger: logger.Named("escrow")}
}

// Make opens an escrow: deposit units of mint A move from the maker into a
// vault owned by the escrow record, which asks receive units of mint B.
func (p *Program) Make(ctx context.Context, acc Accounts, seed, deposit, receive uint64) (*ledger.Receipt, error) {
	ix := ledger.Instruction{
		Program:  ProgramID,
		Name:     "make",
		Signers:  []pda.Address{acc.Maker},
		Writable: []pda.Address{acc.Maker, acc.MakerATAA, acc.Escrow, acc.Vault},
	}

	r, err := p.ledger.Execute(ctx, ix, func(tx *ledger.Tx) error {
		if deposit == 0 || receive == 0 {
			return protocol.Errorf(protocol.ErrInvalidAmount, "deposit %d, receive %d", deposit, receive)
		}

		rec := &Escrow{
			Seed:    seed,
			Maker:   acc.Maker,
			MintA:   acc.MintA,
			MintB:   acc.MintB,
			Receive: receive,
		}
		d, err := custody.ExpectRecord(ProgramID, acc.Escrow, rec)
		if err != nil {
			return err
		}
		rec.Bump = d.Bump
		vault := custody.AssociatedVault(d, acc.MintA)
		if err := custody.ExpectAddress("vault", vault.Address, acc.Vault); err != nil {
			return err
		}

		if _, err := token.LoadMint(tx, acc.MintA); err != nil {
			return err
		}
		if _, err := token.LoadMint(tx, acc.MintB); err != nil {
			return err
		}
		if tx.HasState(d.Address) {
			return protocol.Errorf(protocol.ErrDuplicateSeed, "escrow %d of %s is open", seed, acc.Maker)
		}

		if err := tx.SignAs(d); err != nil {
			return err
		}
		if err := tx.CreateAccount(acc.Maker, d.Address, ProgramID, rec); err != nil {
			return err
		}
		if _, err := custody.OpenAssociated(tx, acc.Maker, d, acc.MintA); err != nil {
			if errors.Is(err, protocol.ErrAccountExists) {
				return protocol.Errorf(protocol.ErrDuplicateSeed, "vault %s exists", vault.Address)
			}
			return err
		}
		return vault.Deposit(tx, acc.MakerATAA, acc.Maker, deposit)
	})
	if err != nil {
		return nil, err
	}

	p.logger.Info("escrow opened",
		zap.String("escrow", acc.Escrow.String()),
		zap.String("maker", acc.Maker.String()),
		zap.Uint64("deposit", deposit),
		zap.Uint64("receive", receive),
	)
	return r, nil
}

// Take settles an escrow: the taker pays the requested mint B amount to the
// maker and receives the whole vault. The vault and record are closed and their
// rent returns to the maker.
func (p *Program) Take(ctx context.Context, acc Accounts) (*ledger.Receipt, error) {
	ix := ledger.Instruction{
		Program: ProgramID,
		Name:    "take",
		Signers: []pda.Address{acc.Taker},
		Writable: []pda.Address{
			acc.Taker, acc.Maker, acc.Escrow, acc.Vault,
			acc.TakerATAA, acc.TakerATAB, acc.MakerATAB,
		},
	}

	r, err := p.ledger.Execute(ctx, ix, func(tx *ledger.Tx) error {
		rec, vault, err := p.load(tx, acc)
		if err != nil {
			return err
		}
		if rec.MintB != acc.MintB {
			return protocol.Errorf(protocol.ErrMintMismatch, "escrow asks %s, got %s", rec.MintB, acc.MintB)
		}

		makerATAB, err := token.EnsureAssociated(tx, acc.Taker, rec.Maker, rec.MintB)
		if err != nil {
			return err
		}
		if err := custody.ExpectAddress("maker_ata_b", makerATAB, acc.MakerATAB); err != nil {
			return err
		}
		if err := token.Transfer(tx, acc.TakerATAB, makerATAB, acc.Taker, rec.Receive); err != nil {
			return err
		}

		takerATAA, err := token.EnsureAssociated(tx, acc.Taker, acc.Taker, rec.MintA)
		if err != nil {
			return err
		}
		if err := custody.ExpectAddress("taker_ata_a", takerATAA, acc.TakerATAA); err != nil {
			return err
		}
		if _, err := vault.DrainAndClose(tx, takerATAA, rec.Maker); err != nil {
			return err
		}
		return tx.CloseAccount(acc.Escrow, rec.Maker)
	})
	if err != nil {
		return nil, err
	}

	p.logger.Info("escrow taken", zap.String("escrow", acc.Escrow.String()), zap.String("taker", acc.Taker.String()))
	return r, nil
}

// Refund cancels an escrow, returning the vault to the maker. Only the maker may
// refund.
func (p *Program) Refund(ctx context.Context, caller pda.Address, acc Accounts) (*ledger.Receipt, error) {
	ix := ledger.Instruction{
		Program:  ProgramID,
		Name:     "refund",
		Signers:  []pda.Address{caller},
		Writable: []pda.Address{caller, acc.Maker, acc.Escrow, acc.Vault, acc.MakerATAA},
	}

	r, err := p.ledger.Execute(ctx, ix, func(tx *ledger.Tx) error {
		rec, vault, err := p.load(tx, acc)
		if err != nil {
			return err
		}
		if caller != rec.Maker {
			return protocol.Errorf(protocol.ErrUnauthorized, "%s is not the maker of %s", caller, acc.Escrow)
		}
		if err := tx.RequireSigner(caller); err != nil {
			return err
		}

		makerATAA, err := token.EnsureAssociated(tx, rec.Maker, rec.Maker, rec.MintA)
		if err != nil {
			return err
		}
		if err := custody.ExpectAddress("maker_ata_a", makerATAA, acc.MakerATAA); err != nil {
			return err
		}
		if _, err := vault.DrainAndClose(tx, makerATAA, rec.Maker); err != nil {
			return err
		}
		return tx.CloseAccount(acc.Escrow, rec.Maker)
	})
	if err != nil {
		return nil, err
	}

	p.logger.Info("escrow refunded", zap.String("escrow", acc.Escrow.String()))
	return r, nil
}

// load fetches the escrow record and its vault, verifying both addresses and
// the presented maker and mint A.
func (p *Program) load(tx *ledger.Tx, acc Accounts) (*Escrow, custody.TokenVault, error) {
	rec, _, err := ledger.Load[*Escrow](tx, acc.Escrow, ProgramID)
	if err != nil {
		return nil, custody.TokenVault{}, err
	}
	d, err := custody.Authority(ProgramID, acc.Escrow, rec, rec.Bump)
	if err != nil {
		return nil, custody.TokenVault{}, err
	}
	if err := custody.ExpectAddress("maker", rec.Maker, acc.Maker); err != nil {
		return nil, custody.TokenVault{}, err
	}
	if rec.MintA != acc.MintA {
		return nil, custody.TokenVault{}, protocol.Errorf(protocol.ErrMintMismatch, "escrow holds %s, got %s", rec.MintA, acc.MintA)
	}

	vault := custody.AssociatedVault(d, rec.MintA)
	if err := custody.ExpectAddress("vault", vault.Address, acc.Vault); err != nil {
		return nil, custody.TokenVault{}, err
	}
	return rec, vault, nil
}

// Lookup returns the open escrow at address, if any.
func (p *Program) Lookup(address pda.Address) (*Escrow, bool) {
	acct, ok := p.ledger.Account(address)
	if !ok || acct.Owner != ProgramID {
		return nil, false
	}
	rec, ok := acct.State.(*Escrow)
	return rec, ok
}
