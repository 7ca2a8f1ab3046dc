// Package amm implements a constant-product pool over two mints. Liquidity
// providers hold an LP mint whose supply tracks their share of the reserves.
package amm

import (
	"solana-custody-lab/internal/custody"
	"solana-custody-lab/internal/ledger"
	"solana-custody-lab/internal/pda"
	"solana-custody-lab/internal/token"
)

// ProgramID is the AMM program address.
var ProgramID = pda.MustParseAddress("HipdndkurB314vSXu8szhhHCfBPmRhmcXZUXGYE93W34")

const (
	// KindConfig is the persisted kind of Config.
	KindConfig = "amm.config"
	// ConfigSize is the serialized length of Config.
	ConfigSize = 8 + 8 + 33 + 32 + 32 + 2 + 1 + 1 + 1
	// LPDecimals is the precision of every LP mint.
	LPDecimals = 6
)

// Config is one pool.
type Config struct {
	Seed uint64 `json:"seed"`
	// Authority may lock and unlock the pool. Zero means the pool is immutable.
	Authority  pda.Address `json:"authority"`
	MintX      pda.Address `json:"mint_x"`
	MintY      pda.Address `json:"mint_y"`
	Fee        uint16      `json:"fee"`
	Locked     bool        `json:"locked"`
	ConfigBump uint8       `json:"config_bump"`
	LPBump     uint8       `json:"lp_bump"`
}

func (c *Config) Kind() string { return KindConfig }
func (c *Config) Size() int    { return ConfigSize }

func (c *Config) Clone() ledger.State {
	cp := *c
	return &cp
}

func (c *Config) Namespace() string { return "config" }
func (c *Config) Seeds() [][]byte   { return [][]byte{pda.U64Seed(c.Seed)} }

// Accounts lists every address a pool instruction touches.
type Accounts struct {
	User   pda.Address
	MintX  pda.Address
	MintY  pda.Address
	Config pda.Address
	MintLP pda.Address
	VaultX pda.Address
	VaultY pda.Address
	UserX  pda.Address
	UserY  pda.Address
	UserLP pda.Address
}

// ConfigAddress derives the pool config for seed.
func ConfigAddress(seed uint64) pda.Derived {
	return pda.MustFind(ProgramID, []byte("config"), pda.U64Seed(seed))
}

// LPMintAddress derives the LP mint of config.
func LPMintAddress(config pda.Address) pda.Derived {
	return pda.MustFind(ProgramID, []byte("lp"), config.Bytes())
}

// Derive fills Accounts for user from the published seed rules.
func Derive(user, mintX, mintY pda.Address, seed uint64) Accounts {
	cfg := ConfigAddress(seed)
	lp := LPMintAddress(cfg.Address)
	return Accounts{
		User:   user,
		MintX:  mintX,
		MintY:  mintY,
		Config: cfg.Address,
		MintLP: lp.Address,
		VaultX: custody.AssociatedVault(cfg, mintX).Address,
		VaultY: custody.AssociatedVault(cfg, mintY).Address,
		UserX:  token.AssociatedAddress(user, mintX),
		UserY:  token.AssociatedAddress(user, mintY),
		UserLP: token.AssociatedAddress(user, lp.Address),
	}
}

func init() {
	ledger.RegisterState(KindConfig, func() ledger.State { return &Config{} })
	ledger.RegisterProgram(ProgramID, "amm")
}
