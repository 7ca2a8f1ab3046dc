// Package token implements the token program the custody protocols move assets
// with: mints, token accounts, associated token accounts and NFT metadata.
package token

import (
	"solana-custody-lab/internal/ledger"
	"solana-custody-lab/internal/pda"
)

// Program ids.
var (
	ProgramID           = pda.MustParseAddress("TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA")
	AssociatedProgramID = pda.MustParseAddress("ATokenGPvbdGVxr1b2hvZbsiqW5xWH25efTNsLJA8knL")
	MetadataProgramID   = pda.MustParseAddress("metaqbxxUerdq28cj1RbAWkYQm3ybzjb6a8bt518x1s")
)

// Serialized sizes, used for rent.
const (
	MintSize     = 82
	AccountSize  = 165
	MetadataSize = 679
)

// State kinds.
const (
	KindMint     = "token.mint"
	KindAccount  = "token.account"
	KindMetadata = "token.metadata"
)

// Mint is the identity and supply of one asset type.
type Mint struct {
	Decimals uint8  `json:"decimals"`
	Supply   uint64 `json:"supply"`
	// MintAuthority may mint new supply. Zero means supply is fixed.
	MintAuthority pda.Address `json:"mint_authority"`
}

func (m *Mint) Kind() string { return KindMint }
func (m *Mint) Size() int    { return MintSize }

func (m *Mint) Clone() ledger.State {
	c := *m
	return &c
}

// IsNFT reports whether the mint is a one-of-one asset.
func (m *Mint) IsNFT() bool {
	return m.Decimals == 0 && m.Supply == 1
}

// Account holds a balance of one mint on behalf of Owner.
type Account struct {
	Mint   pda.Address `json:"mint"`
	Owner  pda.Address `json:"owner"`
	Amount uint64      `json:"amount"`
}

func (a *Account) Kind() string { return KindAccount }
func (a *Account) Size() int    { return AccountSize }

func (a *Account) Clone() ledger.State {
	c := *a
	return &c
}

// Collection links an asset to its collection mint.
type Collection struct {
	Key      pda.Address `json:"key"`
	Verified bool        `json:"verified"`
}

// Metadata describes an asset. It lives at MetadataAddress(mint).
type Metadata struct {
	Mint            pda.Address `json:"mint"`
	UpdateAuthority pda.Address `json:"update_authority"`
	Name            string      `json:"name"`
	Symbol          string      `json:"symbol"`
	URI             string      `json:"uri"`
	Collection      *Collection `json:"collection,omitempty"`
}

func (m *Metadata) Kind() string { return KindMetadata }
func (m *Metadata) Size() int    { return MetadataSize }

func (m *Metadata) Clone() ledger.State {
	c := *m
	if m.Collection != nil {
		col := *m.Collection
		c.Collection = &col
	}
	return &c
}

// InVerifiedCollection reports whether the asset is a verified member of collection.
func (m *Metadata) InVerifiedCollection(collection pda.Address) bool {
	return m.Collection != nil && m.Collection.Verified && m.Collection.Key == collection
}

func init() {
	ledger.RegisterState(KindMint, func() ledger.State { return &Mint{} })
	ledger.RegisterState(KindAccount, func() ledger.State { return &Account{} })
	ledger.RegisterState(KindMetadata, func() ledger.State { return &Metadata{} })

	ledger.RegisterProgram(ProgramID, "token")
	ledger.RegisterProgram(AssociatedProgramID, "associated-token")
	ledger.RegisterProgram(MetadataProgramID, "metadata")
}
