// Package staking implements time-locked custody of NFTs. Each stake earns a
// fixed number of points, redeemable for a reward token minted by the program.
package staking

import (
	"solana-custody-lab/internal/ledger"
	"solana-custody-lab/internal/pda"
	"solana-custody-lab/internal/token"
)

// ProgramID is the staking program address.
var ProgramID = pda.MustParseAddress("4SQsPr5ciucW1s8QNkDKPKLyVjR3smH2nEZbezwc2QGG")

// State kinds and sizes.
const (
	KindConfig = "staking.config"
	KindUser   = "staking.user"
	KindStake  = "staking.stake"

	ConfigSize = 8 + 32 + 8 + 1 + 8 + 1 + 1
	UserSize   = 8 + 32 + 8 + 1 + 1
	StakeSize  = 8 + 32 + 32 + 8 + 1

	// RewardDecimals is the precision of the reward mint.
	RewardDecimals = 6
)

// Config holds the program parameters. There is one per program.
type Config struct {
	Admin          pda.Address `json:"admin"`
	PointsPerStake uint64      `json:"points_per_stake"`
	MaxStake       uint8       `json:"max_stake"`
	// FreezePeriod is the minimum stake duration in seconds.
	FreezePeriod int64 `json:"freeze_period"`
	RewardsBump  uint8 `json:"rewards_bump"`
	Bump         uint8 `json:"bump"`
}

func (c *Config) Kind() string { return KindConfig }
func (c *Config) Size() int    { return ConfigSize }

func (c *Config) Clone() ledger.State {
	cp := *c
	return &cp
}

func (c *Config) Namespace() string { return "config" }
func (c *Config) Seeds() [][]byte   { return nil }

// UserAccount tracks one staker.
type UserAccount struct {
	Owner        pda.Address `json:"owner"`
	Points       uint64      `json:"points"`
	AmountStaked uint8       `json:"amount_staked"`
	Bump         uint8       `json:"bump"`
}

func (u *UserAccount) Kind() string { return KindUser }
func (u *UserAccount) Size() int    { return UserSize }

func (u *UserAccount) Clone() ledger.State {
	c := *u
	return &c
}

func (u *UserAccount) Namespace() string { return "user" }
func (u *UserAccount) Seeds() [][]byte   { return [][]byte{u.Owner.Bytes()} }

// StakeRecord tracks one staked asset.
type StakeRecord struct {
	Owner    pda.Address `json:"owner"`
	Mint     pda.Address `json:"mint"`
	StakedAt int64       `json:"staked_at"`
	Bump     uint8       `json:"bump"`
}

func (s *StakeRecord) Kind() string { return KindStake }
func (s *StakeRecord) Size() int    { return StakeSize }

func (s *StakeRecord) Clone() ledger.State {
	c := *s
	return &c
}

func (s *StakeRecord) Namespace() string { return "stake" }
func (s *StakeRecord) Seeds() [][]byte   { return [][]byte{s.Owner.Bytes(), s.Mint.Bytes()} }

// Accounts lists every address a staking instruction touches. Mint, UserNFT,
// Vault and StakeRecord are zero for instructions that do not name an asset.
type Accounts struct {
	User        pda.Address
	Config      pda.Address
	RewardsMint pda.Address
	UserAccount pda.Address
	UserRewards pda.Address

	Mint        pda.Address
	UserNFT     pda.Address
	Vault       pda.Address
	StakeRecord pda.Address
}

// ConfigAddress derives the program config.
func ConfigAddress() pda.Derived {
	return pda.MustFind(ProgramID, []byte("config"))
}

// RewardsMintAddress derives the reward mint.
func RewardsMintAddress() pda.Derived {
	return pda.MustFind(ProgramID, []byte("rewards"), ConfigAddress().Address.Bytes())
}

// VaultAddress derives the vault that holds staked units of mint.
func VaultAddress(mint pda.Address) pda.Derived {
	return pda.MustFind(ProgramID, []byte("vault"), mint.Bytes())
}

// Derive fills Accounts for user and, when non-zero, the asset mint.
func Derive(user, mint pda.Address) Accounts {
	rewards := RewardsMintAddress().Address
	acc := Accounts{
		User:        user,
		Config:      ConfigAddress().Address,
		RewardsMint: rewards,
		UserAccount: pda.MustFind(ProgramID, []byte("user"), user.Bytes()).Address,
		UserRewards: token.AssociatedAddress(user, rewards),
	}
	if !mint.IsZero() {
		acc.Mint = mint
		acc.UserNFT = token.AssociatedAddress(user, mint)
		acc.Vault = VaultAddress(mint).Address
		acc.StakeRecord = pda.MustFind(ProgramID, []byte("stake"), user.Bytes(), mint.Bytes()).Address
	}
	return acc
}

func init() {
	ledger.RegisterState(KindConfig, func() ledger.State { return &Config{} })
	ledger.RegisterState(KindUser, func() ledger.State { return &UserAccount{} })
	ledger.RegisterState(KindStake, func() ledger.State { return &StakeRecord{} })
	ledger.RegisterProgram(ProgramID, "staking")
}
