package token

import (
	"solana-custody-lab/internal/ledger"
	"solana-custody-lab/internal/pda"
	"solana-custody-lab/internal/protocol"
)

// MetadataDerivation returns the metadata account derivation of mint.
func MetadataDerivation(mint pda.Address) pda.Derived {
	return pda.MustFind(MetadataProgramID, []byte("metadata"), MetadataProgramID.Bytes(), mint.Bytes())
}

// MetadataAddress returns the metadata account of mint.
func MetadataAddress(mint pda.Address) pda.Address {
	return MetadataDerivation(mint).Address
}

// MetadataArgs describes a new metadata account.
type MetadataArgs struct {
	Name            string
	Symbol          string
	URI             string
	UpdateAuthority pda.Address
	// Collection, when set, records an unverified membership claim.
	Collection *pda.Address
}

// CreateMetadata allocates metadata for mint. The mint authority must sign.
func CreateMetadata(tx *ledger.Tx, payer, mint, mintAuthority pda.Address, args MetadataArgs) error {
	if err := tx.RequireSigner(mintAuthority); err != nil {
		return err
	}
	m, err := LoadMint(tx, mint)
	if err != nil {
		return err
	}
	if m.MintAuthority != mintAuthority {
		return protocol.Errorf(protocol.ErrUnauthorized, "%s is not the mint authority of %s", mintAuthority, mint)
	}

	t := tx.CPI(MetadataProgramID)
	d := MetadataDerivation(mint)
	if err := t.SignAs(d); err != nil {
		return err
	}

	md := &Metadata{
		Mint:            mint,
		UpdateAuthority: args.UpdateAuthority,
		Name:            args.Name,
		Symbol:          args.Symbol,
		URI:             args.URI,
	}
	if args.Collection != nil {
		md.Collection = &Collection{Key: *args.Collection}
	}
	return t.CreateAccount(payer, d.Address, MetadataProgramID, md)
}

// LoadMetadata returns the metadata of mint.
func LoadMetadata(tx *ledger.Tx, mint pda.Address) (*Metadata, error) {
	md, _, err := ledger.Load[*Metadata](tx, MetadataAddress(mint), MetadataProgramID)
	return md, err
}

// VerifyCollection marks the asset at mint as a verified member of collection.
// The update authority of the collection's metadata must sign.
func VerifyCollection(tx *ledger.Tx, mint, collection, collectionAuthority pda.Address) error {
	t := tx.CPI(MetadataProgramID)
	if err := t.RequireSigner(collectionAuthority); err != nil {
		return err
	}

	md, acct, err := ledger.Load[*Metadata](t, MetadataAddress(mint), MetadataProgramID)
	if err != nil {
		return err
	}
	if md.Collection == nil || md.Collection.Key != collection {
		return protocol.Errorf(protocol.ErrUnverifiedCollection, "%s does not claim collection %s", mint, collection)
	}

	col, _, err := ledger.Load[*Metadata](t, MetadataAddress(collection), MetadataProgramID)
	if err != nil {
		return err
	}
	if col.UpdateAuthority != collectionAuthority {
		return protocol.Errorf(protocol.ErrUnauthorized, "%s is not the update authority of collection %s", collectionAuthority, collection)
	}

	md.Collection.Verified = true
	return t.Put(acct)
}
