package marketplace

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"solana-custody-lab/internal/custody"
	"solana-custody-lab/internal/ledger"
	"solana-custody-lab/internal/observability"
	"solana-custody-lab/internal/pda"
	"solana-custody-lab/internal/protocol"
	"solana-custody-lab/internal/token"
)

// Program executes marketplace instructions against a ledger.
type Program struct {
	ledger *ledger.Ledger
	logger *zap.Logger
}

// New creates a marketplace program bound to l.
func New(l *ledger.Ledger, logger *zap.Logger) *Program {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Program{ledger: l, logger: logger.Named("marketplace")}
}

// Initialize creates the marketplace and its treasury. The signer becomes the
// admin. The treasury is funded to the system minimum so fee credits of any
// size keep it valid.
func (p *Program) Initialize(ctx context.Context, admin pda.Address, acc Accounts, fee uint16) (*ledger.Receipt, error) {
	ix := ledger.Instruction{
		Program:  ProgramID,
		Name:     "initialize",
		Signers:  []pda.Address{admin},
		Writable: []pda.Address{admin, acc.Marketplace, acc.Treasury},
	}

	r, err := p.ledger.Execute(ctx, ix, func(tx *ledger.Tx) error {
		if fee > MaxFeeBps {
			return protocol.Errorf(protocol.ErrInvalidParameter, "fee %d bps exceeds %d", fee, MaxFeeBps)
		}

		mp := &Marketplace{Admin: admin, Fee: fee}
		d, err := custody.ExpectRecord(ProgramID, acc.Marketplace, mp)
		if err != nil {
			return err
		}
		td, err := custody.ExpectRecord(ProgramID, acc.Treasury, treasurySeeds{d.Address})
		if err != nil {
			return err
		}
		if tx.HasState(d.Address) {
			return protocol.Errorf(protocol.ErrDuplicateSeed, "marketplace exists")
		}
		mp.Bump, mp.TreasuryBump = d.Bump, td.Bump

		if err := tx.SignAs(d); err != nil {
			return err
		}
		if err := tx.CreateAccount(admin, d.Address, ProgramID, mp); err != nil {
			return err
		}

		treasury := custody.NativeVault{Key: td}
		if have, want := treasury.Balance(tx), ledger.MinimumBalance(0); have < want {
			return treasury.Deposit(tx, admin, want-have)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	p.logger.Info("marketplace initialized", zap.String("admin", admin.String()), zap.Uint16("fee_bps", fee))
	return r, nil
}

// SetFee changes the marketplace fee. Only the admin may call it.
func (p *Program) SetFee(ctx context.Context, caller pda.Address, acc Accounts, fee uint16) (*ledger.Receipt, error) {
	ix := ledger.Instruction{
		Program:  ProgramID,
		Name:     "set_fee",
		Signers:  []pda.Address{caller},
		Writable: []pda.Address{acc.Marketplace},
	}

	return p.ledger.Execute(ctx, ix, func(tx *ledger.Tx) error {
		mp, mpAcct, _, err := p.loadMarketplace(tx, acc)
		if err != nil {
			return err
		}
		if caller != mp.Admin {
			return protocol.Errorf(protocol.ErrUnauthorized, "%s is not the marketplace admin", caller)
		}
		if err := tx.RequireSigner(caller); err != nil {
			return err
		}
		if fee > MaxFeeBps {
			return protocol.Errorf(protocol.ErrInvalidParameter, "fee %d bps exceeds %d", fee, MaxFeeBps)
		}
		mp.Fee = fee
		return tx.Put(mpAcct)
	})
}

// List moves the seller's NFT into a listing vault at price lamports. The asset
// must be a verified member of acc.Collection.
func (p *Program) List(ctx context.Context, acc Accounts, price uint64) (*ledger.Receipt, error) {
	ix := ledger.Instruction{
		Program:  ProgramID,
		Name:     "list",
		Signers:  []pda.Address{acc.Seller},
		Writable: []pda.Address{acc.Seller, acc.SellerATA, acc.Listing, acc.Vault},
	}

	r, err := p.ledger.Execute(ctx, ix, func(tx *ledger.Tx) error {
		if price == 0 {
			return protocol.Errorf(protocol.ErrInvalidPrice, "listing at zero")
		}
		if _, _, _, err := p.loadMarketplace(tx, acc); err != nil {
			return err
		}

		m, err := token.LoadMint(tx, acc.Mint)
		if err != nil {
			return err
		}
		if !m.IsNFT() {
			return protocol.Errorf(protocol.ErrInvalidParameter, "%s is not a one-of-one asset", acc.Mint)
		}
		md, err := token.LoadMetadata(tx, acc.Mint)
		if err != nil {
			if errors.Is(err, protocol.ErrRecordNotFound) {
				return protocol.Errorf(protocol.ErrUnverifiedCollection, "%s has no metadata", acc.Mint)
			}
			return err
		}
		if !md.InVerifiedCollection(acc.Collection) {
			return protocol.Errorf(protocol.ErrUnverifiedCollection, "%s is not a verified member of %s", acc.Mint, acc.Collection)
		}

		rec := &Listing{
			Marketplace: acc.Marketplace,
			Seller:      acc.Seller,
			Mint:        acc.Mint,
			Price:       price,
		}
		d, err := custody.ExpectRecord(ProgramID, acc.Listing, rec)
		if err != nil {
			return err
		}
		if tx.HasState(d.Address) {
			return protocol.Errorf(protocol.ErrDuplicateSeed, "%s is already listed by %s", acc.Mint, acc.Seller)
		}
		rec.Bump = d.Bump
		vault := custody.AssociatedVault(d, acc.Mint)
		if err := custody.ExpectAddress("vault", vault.Address, acc.Vault); err != nil {
			return err
		}

		if err := tx.SignAs(d); err != nil {
			return err
		}
		if err := tx.CreateAccount(acc.Seller, d.Address, ProgramID, rec); err != nil {
			return err
		}
		if _, err := custody.OpenAssociated(tx, acc.Seller, d, acc.Mint); err != nil {
			return err
		}
		return vault.Deposit(tx, acc.SellerATA, acc.Seller, 1)
	})
	if err != nil {
		return nil, err
	}

	observability.AddActiveListings(1)
	p.logger.Info("listed",
		zap.String("listing", acc.Listing.String()),
		zap.String("mint", acc.Mint.String()),
		zap.Uint64("price", price),
	)
	return r, nil
}

// Delist returns the NFT to the seller and closes the listing. Only the seller
// may delist.
func (p *Program) Delist(ctx context.Context, caller pda.Address, acc Accounts) (*ledger.Receipt, error) {
	ix := ledger.Instruction{
		Program:  ProgramID,
		Name:     "delist",
		Signers:  []pda.Address{caller},
		Writable: []pda.Address{caller, acc.Seller, acc.SellerATA, acc.Listing, acc.Vault},
	}

	r, err := p.ledger.Execute(ctx, ix, func(tx *ledger.Tx) error {
		rec, vault, err := p.loadListing(tx, acc)
		if err != nil {
			return err
		}
		if caller != rec.Seller {
			return protocol.Errorf(protocol.ErrUnauthorized, "%s is not the seller of %s", caller, acc.Listing)
		}
		if err := tx.RequireSigner(caller); err != nil {
			return err
		}

		sellerATA, err := token.EnsureAssociated(tx, rec.Seller, rec.Seller, rec.Mint)
		if err != nil {
			return err
		}
		if err := custody.ExpectAddress("seller_ata", sellerATA, acc.SellerATA); err != nil {
			return err
		}
		if _, err := vault.DrainAndClose(tx, sellerATA, rec.Seller); err != nil {
			return err
		}
		return tx.CloseAccount(acc.Listing, rec.Seller)
	})
	if err != nil {
		return nil, err
	}

	observability.AddActiveListings(-1)
	p.logger.Info("delisted", zap.String("listing", acc.Listing.String()))
	return r, nil
}

// Purchase pays the listing price from the buyer: the fee goes to the
// treasury, the rest to the seller, and the NFT to the buyer. The listing and
// its vault are closed with their rent returned to the seller.
func (p *Program) Purchase(ctx context.Context, acc Accounts) (*ledger.Receipt, error) {
	ix := ledger.Instruction{
		Program:  ProgramID,
		Name:     "purchase",
		Signers:  []pda.Address{acc.Buyer},
		Writable: []pda.Address{acc.Buyer, acc.Seller, acc.Treasury, acc.BuyerATA, acc.Listing, acc.Vault},
	}

	var fee uint64
	r, err := p.ledger.Execute(ctx, ix, func(tx *ledger.Tx) error {
		mp, _, treasury, err := p.loadMarketplace(tx, acc)
		if err != nil {
			return err
		}
		rec, vault, err := p.loadListing(tx, acc)
		if err != nil {
			return err
		}

		var balance uint64
		if buyer, ok := tx.Get(acc.Buyer); ok {
			balance = buyer.Lamports
		}
		if balance < rec.Price {
			return protocol.Errorf(protocol.ErrInsufficientFunds, "buyer holds %d lamports, price %d", balance, rec.Price)
		}

		split, err := SplitPrice(rec.Price, mp.Fee)
		if err != nil {
			return err
		}
		fee = split.Fee
		if split.Seller > 0 {
			if err := tx.Transfer(acc.Buyer, rec.Seller, split.Seller); err != nil {
				return err
			}
		}
		if split.Fee > 0 {
			if err := treasury.Deposit(tx, acc.Buyer, split.Fee); err != nil {
				return err
			}
		}

		buyerATA, err := token.EnsureAssociated(tx, acc.Buyer, acc.Buyer, rec.Mint)
		if err != nil {
			return err
		}
		if err := custody.ExpectAddress("buyer_ata", buyerATA, acc.BuyerATA); err != nil {
			return err
		}
		if _, err := vault.DrainAndClose(tx, buyerATA, rec.Seller); err != nil {
			return err
		}
		return tx.CloseAccount(acc.Listing, rec.Seller)
	})
	if err != nil {
		return nil, err
	}

	observability.AddActiveListings(-1)
	observability.RecordFee("marketplace", fee)
	p.logger.Info("purchased",
		zap.String("listing", acc.Listing.String()),
		zap.String("buyer", acc.Buyer.String()),
		zap.Uint64("fee", fee),
	)
	return r, nil
}

// Split is the division of a sale price.
type Split struct {
	Seller uint64
	Fee    uint64
}

// SplitPrice divides price into the treasury fee, floor(price*feeBps/10000),
// and the seller's remainder. The two always sum to price.
func SplitPrice(price uint64, feeBps uint16) (Split, error) {
	if feeBps > MaxFeeBps {
		return Split{}, protocol.Errorf(protocol.ErrInvalidParameter, "fee %d bps", feeBps)
	}
	fee, err := protocol.MulDiv(price, uint64(feeBps), MaxFeeBps)
	if err != nil {
		return Split{}, err
	}
	seller, err := protocol.CheckedSub(price, fee)
	if err != nil {
		return Split{}, err
	}
	return Split{Seller: seller, Fee: fee}, nil
}

// Listing returns the open listing at address, if any.
func (p *Program) Listing(address pda.Address) (*Listing, bool) {
	acct, ok := p.ledger.Account(address)
	if !ok || acct.Owner != ProgramID {
		return nil, false
	}
	rec, ok := acct.State.(*Listing)
	return rec, ok
}

// Marketplace returns the committed marketplace config, if initialized.
func (p *Program) Marketplace() (*Marketplace, bool) {
	acct, ok := p.ledger.Account(MarketplaceAddress().Address)
	if !ok || acct.Owner != ProgramID {
		return nil, false
	}
	mp, ok := acct.State.(*Marketplace)
	return mp, ok
}

func (p *Program) loadMarketplace(tx *ledger.Tx, acc Accounts) (*Marketplace, *ledger.Account, custody.NativeVault, error) {
	mp, a, err := ledger.Load[*Marketplace](tx, acc.Marketplace, ProgramID)
	if err != nil {
		return nil, nil, custody.NativeVault{}, err
	}
	if _, err := custody.Authority(ProgramID, acc.Marketplace, mp, mp.Bump); err != nil {
		return nil, nil, custody.NativeVault{}, err
	}
	td, err := custody.Authority(ProgramID, acc.Treasury, treasurySeeds{acc.Marketplace}, mp.TreasuryBump)
	if err != nil {
		return nil, nil, custody.NativeVault{}, err
	}
	return mp, a, custody.NativeVault{Key: td}, nil
}

// loadListing fetches the listing and its vault, verifying both addresses and
// the presented seller and mint.
func (p *Program) loadListing(tx *ledger.Tx, acc Accounts) (*Listing, custody.TokenVault, error) {
	rec, _, err := ledger.Load[*Listing](tx, acc.Listing, ProgramID)
	if err != nil {
		return nil, custody.TokenVault{}, err
	}
	d, err := custody.Authority(ProgramID, acc.Listing, rec, rec.Bump)
	if err != nil {
		return nil, custody.TokenVault{}, err
	}
	if err := custody.ExpectAddress("marketplace", rec.Marketplace, acc.Marketplace); err != nil {
		return nil, custody.TokenVault{}, err
	}
	if err := custody.ExpectAddress("seller", rec.Seller, acc.Seller); err != nil {
		return nil, custody.TokenVault{}, err
	}
	if rec.Mint != acc.Mint {
		return nil, custody.TokenVault{}, protocol.Errorf(protocol.ErrMintMismatch, "listing holds %s, got %s", rec.Mint, acc.Mint)
	}

	vault := custody.AssociatedVault(d, rec.Mint)
	if err := custody.ExpectAddress("vault", vault.Address, acc.Vault); err != nil {
		return nil, custody.TokenVault{}, err
	}
	return rec, vault, nil
}
