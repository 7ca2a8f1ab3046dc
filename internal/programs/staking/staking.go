package staking

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

// Program executes staking instructions against a ledger.
type Program struct {
	ledger *ledger.Ledger
	logger *zap.Logger
}

// New creates a staking program bound to l.
func New(l *ledger.Ledger, logger *zap.Logger) *Program {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Program{ledger: l, logger: logger.Named("staking")}
}

// InitializeConfig creates the program config and reward mint. The signer
// becomes the admin. It can run once.
func (p *Program) InitializeConfig(ctx context.Context, admin pda.Address, acc Accounts, pointsPerStake uint64, maxStake uint8, freezePeriod int64) (*ledger.Receipt, error) {
	ix := ledger.Instruction{
		Program:  ProgramID,
		Name:     "initialize_config",
		Signers:  []pda.Address{admin},
		Writable: []pda.Address{admin, acc.Config, acc.RewardsMint},
	}

	r, err := p.ledger.Execute(ctx, ix, func(tx *ledger.Tx) error {
		if pointsPerStake == 0 || maxStake == 0 || freezePeriod < 0 {
			return protocol.Errorf(protocol.ErrInvalidParameter, "points %d, max stake %d, freeze %d", pointsPerStake, maxStake, freezePeriod)
		}

		cfg := &Config{
			Admin:          admin,
			PointsPerStake: pointsPerStake,
			MaxStake:       maxStake,
			FreezePeriod:   freezePeriod,
		}
		d, err := custody.ExpectRecord(ProgramID, acc.Config, cfg)
		if err != nil {
			return err
		}
		rewards, err := custody.Expect(ProgramID, acc.RewardsMint, []byte("rewards"), d.Address.Bytes())
		if err != nil {
			return err
		}
		if tx.HasState(d.Address) {
			return protocol.Errorf(protocol.ErrDuplicateSeed, "staking config exists")
		}
		cfg.Bump, cfg.RewardsBump = d.Bump, rewards.Bump

		if err := tx.SignAs(d); err != nil {
			return err
		}
		if err := tx.CreateAccount(admin, d.Address, ProgramID, cfg); err != nil {
			return err
		}
		if err := tx.SignAs(rewards); err != nil {
			return err
		}
		return token.CreateMint(tx, admin, rewards.Address, d.Address, RewardDecimals)
	})
	if err != nil {
		return nil, err
	}

	p.logger.Info("staking config initialized",
		zap.String("admin", admin.String()),
		zap.Uint64("points_per_stake", pointsPerStake),
		zap.Uint8("max_stake", maxStake),
		zap.Int64("freeze_period", freezePeriod),
	)
	return r, nil
}

// InitializeUser creates the staker account of acc.User.
func (p *Program) InitializeUser(ctx context.Context, acc Accounts) (*ledger.Receipt, error) {
	ix := ledger.Instruction{
		Program:  ProgramID,
		Name:     "initialize_user",
		Signers:  []pda.Address{acc.User},
		Writable: []pda.Address{acc.User, acc.UserAccount},
	}

	return p.ledger.Execute(ctx, ix, func(tx *ledger.Tx) error {
		u := &UserAccount{Owner: acc.User}
		d, err := custody.ExpectRecord(ProgramID, acc.UserAccount, u)
		if err != nil {
			return err
		}
		if tx.HasState(d.Address) {
			return protocol.Errorf(protocol.ErrDuplicateSeed, "staker %s exists", acc.User)
		}
		u.Bump = d.Bump

		if err := tx.SignAs(d); err != nil {
			return err
		}
		return tx.CreateAccount(acc.User, d.Address, ProgramID, u)
	})
}

// Stake moves one NFT into the program vault for its mint and awards points.
func (p *Program) Stake(ctx context.Context, acc Accounts) (*ledger.Receipt, error) {
	ix := ledger.Instruction{
		Program:  ProgramID,
		Name:     "stake",
		Signers:  []pda.Address{acc.User},
		Writable: []pda.Address{acc.User, acc.UserAccount, acc.UserNFT, acc.Vault, acc.StakeRecord},
	}

	r, err := p.ledger.Execute(ctx, ix, func(tx *ledger.Tx) error {
		cfg, auth, err := p.loadConfig(tx, acc)
		if err != nil {
			return err
		}
		u, userAcct, err := p.loadUser(tx, acc)
		if err != nil {
			return err
		}

		m, err := token.LoadMint(tx, acc.Mint)
		if err != nil {
			return err
		}
		if !m.IsNFT() {
			return protocol.Errorf(protocol.ErrInvalidParameter, "%s is not a one-of-one asset", acc.Mint)
		}
		if u.AmountStaked >= cfg.MaxStake {
			return protocol.Errorf(protocol.ErrStakeLimitExceeded, "%s has %d of %d staked", acc.User, u.AmountStaked, cfg.MaxStake)
		}

		rec := &StakeRecord{Owner: acc.User, Mint: acc.Mint, StakedAt: tx.Now()}
		d, err := custody.ExpectRecord(ProgramID, acc.StakeRecord, rec)
		if err != nil {
			return err
		}
		if tx.HasState(d.Address) {
			return protocol.Errorf(protocol.ErrDuplicateSeed, "%s already staked by %s", acc.Mint, acc.User)
		}
		rec.Bump = d.Bump

		vault, err := p.vault(tx, acc, auth, acc.Mint, true)
		if err != nil {
			return err
		}
		if err := vault.Deposit(tx, acc.UserNFT, acc.User, 1); err != nil {
			return err
		}

		if err := tx.SignAs(d); err != nil {
			return err
		}
		if err := tx.CreateAccount(acc.User, d.Address, ProgramID, rec); err != nil {
			return err
		}

		if u.Points, err = protocol.CheckedAdd(u.Points, cfg.PointsPerStake); err != nil {
			return err
		}
		u.AmountStaked++
		return tx.Put(userAcct)
	})
	if err != nil {
		return nil, err
	}

	observability.AddActiveStakes(1)
	p.logger.Info("staked", zap.String("user", acc.User.String()), zap.String("mint", acc.Mint.String()))
	return r, nil
}

// Unstake returns a staked NFT once its freeze period has elapsed.
func (p *Program) Unstake(ctx context.Context, acc Accounts) (*ledger.Receipt, error) {
	ix := ledger.Instruction{
		Program:  ProgramID,
		Name:     "unstake",
		Signers:  []pda.Address{acc.User},
		Writable: []pda.Address{acc.User, acc.UserAccount, acc.UserNFT, acc.Vault, acc.StakeRecord},
	}

	r, err := p.ledger.Execute(ctx, ix, func(tx *ledger.Tx) error {
		cfg, auth, err := p.loadConfig(tx, acc)
		if err != nil {
			return err
		}
		u, userAcct, err := p.loadUser(tx, acc)
		if err != nil {
			return err
		}
		if u.AmountStaked == 0 {
			return protocol.Errorf(protocol.ErrNothingToUnstake, "%s", acc.User)
		}

		rec, _, err := ledger.Load[*StakeRecord](tx, acc.StakeRecord, ProgramID)
		if err != nil {
			return err
		}
		if _, err := custody.Authority(ProgramID, acc.StakeRecord, rec, rec.Bump); err != nil {
			return err
		}
		if rec.Owner != acc.User {
			return protocol.Errorf(protocol.ErrUnauthorized, "stake belongs to %s", rec.Owner)
		}
		if elapsed := tx.Now() - rec.StakedAt; elapsed < cfg.FreezePeriod {
			return protocol.Errorf(protocol.ErrNotFrozen, "staked %ds ago, freeze period %ds", elapsed, cfg.FreezePeriod)
		}

		vault, err := p.vault(tx, acc, auth, rec.Mint, false)
		if err != nil {
			return err
		}
		dest, err := token.EnsureAssociated(tx, acc.User, acc.User, rec.Mint)
		if err != nil {
			return err
		}
		if err := custody.ExpectAddress("user_nft", dest, acc.UserNFT); err != nil {
			return err
		}
		if err := vault.Release(tx, dest, 1); err != nil {
			return err
		}

		u.AmountStaked--
		if err := tx.Put(userAcct); err != nil {
			return err
		}
		return tx.CloseAccount(acc.StakeRecord, acc.User)
	})
	if err != nil {
		return nil, err
	}

	observability.AddActiveStakes(-1)
	p.logger.Info("unstaked", zap.String("user", acc.User.String()), zap.String("mint", acc.Mint.String()))
	return r, nil
}

// ClaimRewards mints the user's points as reward tokens and resets them.
func (p *Program) ClaimRewards(ctx context.Context, acc Accounts) (*ledger.Receipt, error) {
	ix := ledger.Instruction{
		Program:  ProgramID,
		Name:     "claim",
		Signers:  []pda.Address{acc.User},
		Writable: []pda.Address{acc.User, acc.UserAccount, acc.RewardsMint, acc.UserRewards},
	}

	var points uint64
	r, err := p.ledger.Execute(ctx, ix, func(tx *ledger.Tx) error {
		_, auth, err := p.loadConfig(tx, acc)
		if err != nil {
			return err
		}
		u, userAcct, err := p.loadUser(tx, acc)
		if err != nil {
			return err
		}
		if u.Points == 0 {
			return protocol.Errorf(protocol.ErrNothingToClaim, "%s", acc.User)
		}
		if err := custody.ExpectAddress("rewards_mint", RewardsMintAddress().Address, acc.RewardsMint); err != nil {
			return err
		}

		ata, err := token.EnsureAssociated(tx, acc.User, acc.User, acc.RewardsMint)
		if err != nil {
			return err
		}
		if err := custody.ExpectAddress("user_rewards", ata, acc.UserRewards); err != nil {
			return err
		}
		if err := tx.SignAs(auth); err != nil {
			return err
		}
		if err := token.MintTo(tx, acc.RewardsMint, ata, auth.Address, u.Points); err != nil {
			return err
		}

		points = u.Points
		u.Points = 0
		return tx.Put(userAcct)
	})
	if err != nil {
		return nil, err
	}

	p.logger.Info("rewards claimed", zap.String("user", acc.User.String()), zap.Uint64("points", points))
	return r, nil
}

// User returns the committed staker account of acc.User.
func (p *Program) User(acc Accounts) (*UserAccount, bool) {
	a, ok := p.ledger.Account(acc.UserAccount)
	if !ok || a.Owner != ProgramID {
		return nil, false
	}
	u, ok := a.State.(*UserAccount)
	return u, ok
}

func (p *Program) loadConfig(tx *ledger.Tx, acc Accounts) (*Config, pda.Derived, error) {
	cfg, _, err := ledger.Load[*Config](tx, acc.Config, ProgramID)
	if err != nil {
		return nil, pda.Derived{}, err
	}
	auth, err := custody.Authority(ProgramID, acc.Config, cfg, cfg.Bump)
	if err != nil {
		return nil, pda.Derived{}, err
	}
	return cfg, auth, nil
}

func (p *Program) loadUser(tx *ledger.Tx, acc Accounts) (*UserAccount, *ledger.Account, error) {
	u, a, err := ledger.Load[*UserAccount](tx, acc.UserAccount, ProgramID)
	if err != nil {
		return nil, nil, err
	}
	if _, err := custody.Authority(ProgramID, acc.UserAccount, u, u.Bump); err != nil {
		return nil, nil, err
	}
	if u.Owner != acc.User {
		return nil, nil, protocol.Errorf(protocol.ErrUnauthorized, "staker account belongs to %s", u.Owner)
	}
	return u, a, nil
}

// vault returns the per-mint vault, opening it on first use when create is set.
func (p *Program) vault(tx *ledger.Tx, acc Accounts, auth pda.Derived, mint pda.Address, create bool) (custody.TokenVault, error) {
	key, err := custody.Expect(ProgramID, acc.Vault, []byte("vault"), mint.Bytes())
	if err != nil {
		return custody.TokenVault{}, err
	}
	if create && !tx.HasState(key.Address) {
		return custody.OpenDerived(tx, acc.User, key, auth, mint)
	}
	return custody.TokenVault{Address: key.Address, Mint: mint, Authority: auth}, nil
}
