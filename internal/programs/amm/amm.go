package amm

import (
	"context"

	"go.uber.org/zap"

	"solana-custody-lab/internal/custody"
	"solana-custody-lab/internal/ledger"
	"solana-custody-lab/internal/observability"
	"solana-custody-lab/internal/pda"
	"solana-custody-lab/internal/protocol"
	"solana-custody-lab/internal/token"
)

// Program executes AMM instructions against a ledger.
type Program struct {
	ledger *ledger.Ledger
	logger *zap.Logger
}

// New creates an AMM program bound to l.
func New(l *ledger.Ledger, logger *zap.Logger) *Program {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Program{ledger: l, logger: logger.Named("amm")}
}

// Pool is a committed snapshot of a pool.
type Pool struct {
	Config   Config
	ReserveX uint64
	ReserveY uint64
	Supply   uint64
}

// pool is the staged view of a pool inside an instruction.
type pool struct {
	cfg      *Config
	auth     pda.Derived
	vaultX   custody.TokenVault
	vaultY   custody.TokenVault
	reserveX uint64
	reserveY uint64
	supply   uint64
}

// Initialize creates a pool for mintX/mintY with a fee in basis points. authority,
// when non-nil, may later lock the pool.
func (p *Program) Initialize(ctx context.Context, acc Accounts, seed uint64, fee uint16, authority *pda.Address) (*ledger.Receipt, error) {
	ix := ledger.Instruction{
		Program:  ProgramID,
		Name:     "initialize",
		Signers:  []pda.Address{acc.User},
		Writable: []pda.Address{acc.User, acc.Config, acc.MintLP, acc.VaultX, acc.VaultY},
	}

	r, err := p.ledger.Execute(ctx, ix, func(tx *ledger.Tx) error {
		if fee > MaxFeeBps {
			return protocol.Errorf(protocol.ErrInvalidParameter, "fee %d bps exceeds %d", fee, MaxFeeBps)
		}
		if acc.MintX == acc.MintY {
			return protocol.Errorf(protocol.ErrInvalidParameter, "pool mints must differ")
		}
		if _, err := token.LoadMint(tx, acc.MintX); err != nil {
			return err
		}
		if _, err := token.LoadMint(tx, acc.MintY); err != nil {
			return err
		}

		cfg := &Config{Seed: seed, MintX: acc.MintX, MintY: acc.MintY, Fee: fee}
		if authority != nil {
			cfg.Authority = *authority
		}
		d, err := custody.ExpectRecord(ProgramID, acc.Config, cfg)
		if err != nil {
			return err
		}
		lp, err := custody.Expect(ProgramID, acc.MintLP, []byte("lp"), d.Address.Bytes())
		if err != nil {
			return err
		}
		cfg.ConfigBump, cfg.LPBump = d.Bump, lp.Bump

		if tx.HasState(d.Address) {
			return protocol.Errorf(protocol.ErrDuplicateSeed, "pool %d exists", seed)
		}
		if err := custody.ExpectAddress("vault_x", custody.AssociatedVault(d, acc.MintX).Address, acc.VaultX); err != nil {
			return err
		}
		if err := custody.ExpectAddress("vault_y", custody.AssociatedVault(d, acc.MintY).Address, acc.VaultY); err != nil {
			return err
		}

		if err := tx.SignAs(d); err != nil {
			return err
		}
		if err := tx.CreateAccount(acc.User, d.Address, ProgramID, cfg); err != nil {
			return err
		}
		if err := tx.SignAs(lp); err != nil {
			return err
		}
		if err := token.CreateMint(tx, acc.User, lp.Address, d.Address, LPDecimals); err != nil {
			return err
		}
		if _, err := custody.OpenAssociated(tx, acc.User, d, acc.MintX); err != nil {
			return err
		}
		_, err = custody.OpenAssociated(tx, acc.User, d, acc.MintY)
		return err
	})
	if err != nil {
		return nil, err
	}

	p.logger.Info("pool initialized",
		zap.String("config", acc.Config.String()),
		zap.Uint64("seed", seed),
		zap.Uint16("fee_bps", fee),
	)
	return r, nil
}

// Deposit adds liquidity and mints amount LP tokens to the user. The first
// deposit sets the price with maxX and maxY and mints isqrt(maxX*maxY); later
// deposits pay the pro-rata reserves, rounded up, and fail with
// ErrSlippageExceeded when those exceed maxX or maxY.
func (p *Program) Deposit(ctx context.Context, acc Accounts, amount, maxX, maxY uint64) (*ledger.Receipt, error) {
	ix := ledger.Instruction{
		Program:  ProgramID,
		Name:     "deposit",
		Signers:  []pda.Address{acc.User},
		Writable: []pda.Address{acc.User, acc.UserX, acc.UserY, acc.UserLP, acc.VaultX, acc.VaultY, acc.MintLP},
	}

	var minted uint64
	r, err := p.ledger.Execute(ctx, ix, func(tx *ledger.Tx) error {
		pl, err := p.load(tx, acc)
		if err != nil {
			return err
		}
		if maxX == 0 || maxY == 0 {
			return protocol.Errorf(protocol.ErrInvalidAmount, "max_x %d, max_y %d", maxX, maxY)
		}

		var x, y uint64
		if pl.supply == 0 {
			x, y = maxX, maxY
			if minted, err = InitialLiquidity(x, y); err != nil {
				return err
			}
		} else {
			if amount == 0 {
				return protocol.Errorf(protocol.ErrInvalidAmount, "deposit of zero LP")
			}
			if x, y, err = DepositAmounts(pl.reserveX, pl.reserveY, pl.supply, amount); err != nil {
				return err
			}
			if x > maxX || y > maxY {
				return protocol.Errorf(protocol.ErrSlippageExceeded, "need x %d (max %d), y %d (max %d)", x, maxX, y, maxY)
			}
			minted = amount
		}
		if minted == 0 {
			return protocol.Errorf(protocol.ErrInvalidAmount, "deposit mints no liquidity")
		}

		if err := pl.vaultX.Deposit(tx, acc.UserX, acc.User, x); err != nil {
			return err
		}
		if err := pl.vaultY.Deposit(tx, acc.UserY, acc.User, y); err != nil {
			return err
		}
		userLP, err := token.EnsureAssociated(tx, acc.User, acc.User, acc.MintLP)
		if err != nil {
			return err
		}
		if err := custody.ExpectAddress("user_lp", userLP, acc.UserLP); err != nil {
			return err
		}
		if err := tx.SignAs(pl.auth); err != nil {
			return err
		}
		return token.MintTo(tx, acc.MintLP, userLP, pl.auth.Address, minted)
	})
	if err != nil {
		return nil, err
	}

	p.logger.Debug("liquidity deposited", zap.String("config", acc.Config.String()), zap.Uint64("lp", minted))
	return r, nil
}

// Withdraw burns amount LP tokens and returns the pro-rata reserves, rounded
// down. It fails with ErrSlippageExceeded when either falls below minX or minY.
func (p *Program) Withdraw(ctx context.Context, acc Accounts, amount, minX, minY uint64) (*ledger.Receipt, error) {
	ix := ledger.Instruction{
		Program:  ProgramID,
		Name:     "withdraw",
		Signers:  []pda.Address{acc.User},
		Writable: []pda.Address{acc.User, acc.UserX, acc.UserY, acc.UserLP, acc.VaultX, acc.VaultY, acc.MintLP},
	}

	r, err := p.ledger.Execute(ctx, ix, func(tx *ledger.Tx) error {
		pl, err := p.load(tx, acc)
		if err != nil {
			return err
		}
		if amount == 0 {
			return protocol.Errorf(protocol.ErrInvalidAmount, "withdraw of zero LP")
		}

		x, y, err := WithdrawAmounts(pl.reserveX, pl.reserveY, pl.supply, amount)
		if err != nil {
			return err
		}
		if x < minX || y < minY {
			return protocol.Errorf(protocol.ErrSlippageExceeded, "got x %d (min %d), y %d (min %d)", x, minX, y, minY)
		}

		if err := token.Burn(tx, acc.UserLP, acc.MintLP, acc.User, amount); err != nil {
			return err
		}
		if err := p.payOut(tx, acc, pl.vaultX, acc.UserX, acc.MintX, x); err != nil {
			return err
		}
		return p.payOut(tx, acc, pl.vaultY, acc.UserY, acc.MintY, y)
	})
	if err != nil {
		return nil, err
	}

	p.logger.Debug("liquidity withdrawn", zap.String("config", acc.Config.String()), zap.Uint64("lp", amount))
	return r, nil
}

// Swap trades amountIn of mint X for mint Y when xToY is set, or the reverse.
// It fails with ErrSlippageExceeded when the output is below minOut.
func (p *Program) Swap(ctx context.Context, acc Accounts, xToY bool, amountIn, minOut uint64) (*ledger.Receipt, error) {
	ix := ledger.Instruction{
		Program:  ProgramID,
		Name:     "swap",
		Signers:  []pda.Address{acc.User},
		Writable: []pda.Address{acc.User, acc.UserX, acc.UserY, acc.VaultX, acc.VaultY},
	}

	direction := "y_to_x"
	if xToY {
		direction = "x_to_y"
	}

	var out uint64
	r, err := p.ledger.Execute(ctx, ix, func(tx *ledger.Tx) error {
		pl, err := p.load(tx, acc)
		if err != nil {
			return err
		}
		if amountIn == 0 {
			return protocol.Errorf(protocol.ErrInvalidAmount, "swap of zero")
		}

		inVault, outVault := pl.vaultX, pl.vaultY
		userIn, userOut, mintOut := acc.UserX, acc.UserY, acc.MintY
		reserveIn, reserveOut := pl.reserveX, pl.reserveY
		if !xToY {
			inVault, outVault = pl.vaultY, pl.vaultX
			userIn, userOut, mintOut = acc.UserY, acc.UserX, acc.MintX
			reserveIn, reserveOut = pl.reserveY, pl.reserveX
		}

		if out, err = SwapOut(reserveIn, reserveOut, amountIn, pl.cfg.Fee); err != nil {
			return err
		}
		if out == 0 {
			return protocol.Errorf(protocol.ErrInvalidAmount, "swap of %d yields nothing", amountIn)
		}
		if out < minOut {
			return protocol.Errorf(protocol.ErrSlippageExceeded, "output %d below minimum %d", out, minOut)
		}

		if err := inVault.Deposit(tx, userIn, acc.User, amountIn); err != nil {
			return err
		}
		return p.payOut(tx, acc, outVault, userOut, mintOut, out)
	})
	if err != nil {
		return nil, err
	}

	observability.RecordSwap(direction, amountIn)
	p.logger.Debug("swap",
		zap.String("config", acc.Config.String()),
		zap.String("direction", direction),
		zap.Uint64("amount_in", amountIn),
		zap.Uint64("amount_out", out),
	)
	return r, nil
}

// Lock stops deposits, withdrawals and swaps. Only the pool authority may lock.
func (p *Program) Lock(ctx context.Context, caller pda.Address, acc Accounts) (*ledger.Receipt, error) {
	return p.setLocked(ctx, caller, acc, true)
}

// Unlock reopens a locked pool.
func (p *Program) Unlock(ctx context.Context, caller pda.Address, acc Accounts) (*ledger.Receipt, error) {
	return p.setLocked(ctx, caller, acc, false)
}

func (p *Program) setLocked(ctx context.Context, caller pda.Address, acc Accounts, locked bool) (*ledger.Receipt, error) {
	name := "unlock"
	if locked {
		name = "lock"
	}
	ix := ledger.Instruction{
		Program:  ProgramID,
		Name:     name,
		Signers:  []pda.Address{caller},
		Writable: []pda.Address{acc.Config},
	}

	return p.ledger.Execute(ctx, ix, func(tx *ledger.Tx) error {
		cfg, cfgAcct, err := ledger.Load[*Config](tx, acc.Config, ProgramID)
		if err != nil {
			return err
		}
		if _, err := custody.Authority(ProgramID, acc.Config, cfg, cfg.ConfigBump); err != nil {
			return err
		}
		if cfg.Authority.IsZero() || cfg.Authority != caller {
			return protocol.Errorf(protocol.ErrUnauthorized, "%s cannot %s pool %s", caller, name, acc.Config)
		}
		if err := tx.RequireSigner(caller); err != nil {
			return err
		}
		cfg.Locked = locked
		return tx.Put(cfgAcct)
	})
}

// payOut releases amount from vault to the user's token account for mint,
// creating it when needed.
func (p *Program) payOut(tx *ledger.Tx, acc Accounts, vault custody.TokenVault, claimed, mint pda.Address, amount uint64) error {
	dest, err := token.EnsureAssociated(tx, acc.User, acc.User, mint)
	if err != nil {
		return err
	}
	if err := custody.ExpectAddress("user_token", dest, claimed); err != nil {
		return err
	}
	return vault.Release(tx, dest, amount)
}

// load verifies the pool accounts and reads reserves and LP supply.
func (p *Program) load(tx *ledger.Tx, acc Accounts) (*pool, error) {
	cfg, _, err := ledger.Load[*Config](tx, acc.Config, ProgramID)
	if err != nil {
		return nil, err
	}
	auth, err := custody.Authority(ProgramID, acc.Config, cfg, cfg.ConfigBump)
	if err != nil {
		return nil, err
	}
	if cfg.Locked {
		return nil, protocol.Errorf(protocol.ErrPoolLocked, "pool %s", acc.Config)
	}
	if cfg.MintX != acc.MintX || cfg.MintY != acc.MintY {
		return nil, protocol.Errorf(protocol.ErrMintMismatch, "pool trades %s/%s", cfg.MintX, cfg.MintY)
	}
	if err := custody.ExpectAddress("mint_lp", LPMintAddress(acc.Config).Address, acc.MintLP); err != nil {
		return nil, err
	}

	pl := &pool{
		cfg:    cfg,
		auth:   auth,
		vaultX: custody.AssociatedVault(auth, cfg.MintX),
		vaultY: custody.AssociatedVault(auth, cfg.MintY),
	}
	if err := custody.ExpectAddress("vault_x", pl.vaultX.Address, acc.VaultX); err != nil {
		return nil, err
	}
	if err := custody.ExpectAddress("vault_y", pl.vaultY.Address, acc.VaultY); err != nil {
		return nil, err
	}

	if pl.reserveX, err = pl.vaultX.Balance(tx); err != nil {
		return nil, err
	}
	if pl.reserveY, err = pl.vaultY.Balance(tx); err != nil {
		return nil, err
	}
	mint, err := token.LoadMint(tx, acc.MintLP)
	if err != nil {
		return nil, err
	}
	pl.supply = mint.Supply
	return pl, nil
}

// Pool returns a committed snapshot of the pool at config.
func (p *Program) Pool(config pda.Address) (Pool, error) {
	acct, ok := p.ledger.Account(config)
	if !ok || acct.Owner != ProgramID {
		return Pool{}, protocol.Errorf(protocol.ErrRecordNotFound, "pool %s", config)
	}
	cfg, ok := acct.State.(*Config)
	if !ok {
		return Pool{}, protocol.Errorf(protocol.ErrInvalidAccountData, "pool %s", config)
	}

	auth := pda.Derived{Address: config}
	out := Pool{Config: *cfg}
	var err error
	if out.ReserveX, err = p.tokenAmount(custody.AssociatedVault(auth, cfg.MintX).Address); err != nil {
		return Pool{}, err
	}
	if out.ReserveY, err = p.tokenAmount(custody.AssociatedVault(auth, cfg.MintY).Address); err != nil {
		return Pool{}, err
	}

	lp, ok := p.ledger.Account(LPMintAddress(config).Address)
	if !ok {
		return Pool{}, protocol.Errorf(protocol.ErrRecordNotFound, "lp mint of %s", config)
	}
	mint, ok := lp.State.(*token.Mint)
	if !ok {
		return Pool{}, protocol.Errorf(protocol.ErrInvalidAccountData, "lp mint of %s", config)
	}
	out.Supply = mint.Supply
	return out, nil
}

func (p *Program) tokenAmount(key pda.Address) (uint64, error) {
	acct, ok := p.ledger.Account(key)
	if !ok {
		return 0, protocol.Errorf(protocol.ErrRecordNotFound, "token account %s", key)
	}
	ta, ok := acct.State.(*token.Account)
	if !ok {
		return 0, protocol.Errorf(protocol.ErrInvalidAccountData, "token account %s", key)
	}
	return ta.Amount, nil
}
