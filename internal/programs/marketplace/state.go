// Package marketplace implements fixed-price sales of NFTs from verified
// collections. Listed assets sit in a vault owned by the listing; a purchase
// pays the seller, skims a fee into the treasury and hands over the asset in
// one instruction.
package marketplace

import (
	"solana-custody-lab/internal/custody"
	"solana-custody-lab/internal/ledger"
	"solana-custody-lab/internal/pda"
	"solana-custody-lab/internal/token"
)

// ProgramID is the marketplace program address.
var ProgramID = pda.MustParseAddress("7wFXuR1Sp8ZkBuEbS7UqCcwnjYfNAeiX8dPwDEXLntLA")

// State kinds and sizes.
const (
	KindMarketplace = "marketplace.marketplace"
	KindListing     = "marketplace.listing"

	MarketplaceSize = 8 + 32 + 2 + 1 + 1
	ListingSize     = 8 + 32 + 32 + 32 + 8 + 1

	// MaxFeeBps is the largest accepted fee, 100%.
	MaxFeeBps = 10_000
)

// Marketplace holds the fee and admin. There is one per program.
type Marketplace struct {
	Admin        pda.Address `json:"admin"`
	Fee          uint16      `json:"fee"`
	Bump         uint8       `json:"bump"`
	TreasuryBump uint8       `json:"treasury_bump"`
}

func (m *Marketplace) Kind() string { return KindMarketplace }
func (m *Marketplace) Size() int    { return MarketplaceSize }

func (m *Marketplace) Clone() ledger.State {
	c := *m
	return &c
}

func (m *Marketplace) Namespace() string { return "marketplace" }
func (m *Marketplace) Seeds() [][]byte   { return nil }

// Listing offers one NFT at Price lamports.
type Listing struct {
	Marketplace pda.Address `json:"marketplace"`
	Seller      pda.Address `json:"seller"`
	Mint        pda.Address `json:"mint"`
	Price       uint64      `json:"price"`
	Bump        uint8       `json:"bump"`
}

func (l *Listing) Kind() string { return KindListing }
func (l *Listing) Size() int    { return ListingSize }

func (l *Listing) Clone() ledger.State {
	c := *l
	return &c
}

func (l *Listing) Namespace() string { return "listing" }

func (l *Listing) Seeds() [][]byte {
	return [][]byte{l.Marketplace.Bytes(), l.Seller.Bytes(), l.Mint.Bytes()}
}

// treasurySeeds derives the native fee account of a marketplace.
type treasurySeeds struct{ marketplace pda.Address }

func (t treasurySeeds) Namespace() string { return "treasury" }
func (t treasurySeeds) Seeds() [][]byte   { return [][]byte{t.marketplace.Bytes()} }

// Accounts lists every address a marketplace instruction touches. Buyer and
// BuyerATA are zero outside purchase.
type Accounts struct {
	Marketplace pda.Address
	Treasury    pda.Address

	Seller     pda.Address
	Buyer      pda.Address
	Mint       pda.Address
	Collection pda.Address

	Listing   pda.Address
	Vault     pda.Address
	SellerATA pda.Address
	BuyerATA  pda.Address
}

// MarketplaceAddress derives the marketplace config.
func MarketplaceAddress() pda.Derived {
	return pda.MustFind(ProgramID, []byte("marketplace"))
}

// TreasuryAddress derives the treasury of marketplace.
func TreasuryAddress(marketplace pda.Address) pda.Derived {
	return pda.MustFind(ProgramID, []byte("treasury"), marketplace.Bytes())
}

// ListingAddress derives the listing of mint by seller.
func ListingAddress(marketplace, seller, mint pda.Address) pda.Derived {
	return pda.MustFind(ProgramID, []byte("listing"), marketplace.Bytes(), seller.Bytes(), mint.Bytes())
}

// Derive fills Accounts from the published seed rules. buyer may be zero.
func Derive(seller, buyer, mint, collection pda.Address) Accounts {
	mp := MarketplaceAddress()
	listing := ListingAddress(mp.Address, seller, mint)
	acc := Accounts{
		Marketplace: mp.Address,
		Treasury:    TreasuryAddress(mp.Address).Address,
		Seller:      seller,
		Buyer:       buyer,
		Mint:        mint,
		Collection:  collection,
		Listing:     listing.Address,
		Vault:       custody.AssociatedVault(listing, mint).Address,
		SellerATA:   token.AssociatedAddress(seller, mint),
	}
	if !buyer.IsZero() {
		acc.BuyerATA = token.AssociatedAddress(buyer, mint)
	}
	return acc
}

func init() {
	ledger.RegisterState(KindMarketplace, func() ledger.State { return &Marketplace{} })
	ledger.RegisterState(KindListing, func() ledger.State { return &Listing{} })
	ledger.RegisterProgram(ProgramID, "marketplace")
}
