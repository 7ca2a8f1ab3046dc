// Package ledgertest provides fixtures for tests that run programs against a ledger.
package ledgertest

import (
	"context"
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"solana-custody-lab/internal/ledger"
	"solana-custody-lab/internal/pda"
	"solana-custody-lab/internal/token"
)

// StartTime is the initial manual clock reading.
const StartTime int64 = 1_700_000_000

// DefaultFunding is the lamport balance of a new wallet.
const DefaultFunding uint64 = 100 * ledger.LamportsPerSOL

// Env is a fresh ledger with a manual clock.
type Env struct {
	Ctx    context.Context
	Ledger *ledger.Ledger
	Clock  *ledger.ManualClock
}

// New returns an empty ledger whose clock starts at StartTime.
func New(t testing.TB) *Env {
	t.Helper()
	clock := ledger.NewManualClock(StartTime)
	return &Env{
		Ctx:    context.Background(),
		Ledger: ledger.New(ledger.Options{Clock: clock, Logger: zaptest.NewLogger(t)}),
		Clock:  clock,
	}
}

// NewKey returns a fresh on-curve address with no account behind it.
func NewKey(t testing.TB) pda.Address {
	t.Helper()
	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	addr, err := pda.AddressFromBytes(pub)
	require.NoError(t, err)
	return addr
}

// Wallet returns a new key funded with DefaultFunding lamports.
func (e *Env) Wallet(t testing.TB) pda.Address {
	t.Helper()
	key := NewKey(t)
	_, err := e.Ledger.Airdrop(e.Ctx, key, DefaultFunding)
	require.NoError(t, err)
	return key
}

// Run executes fn as one instruction of program and fails the test on error.
func (e *Env) Run(t testing.TB, program pda.Address, name string, signers, writable []pda.Address, fn func(tx *ledger.Tx) error) *ledger.Receipt {
	t.Helper()
	r, err := e.Ledger.Execute(e.Ctx, ledger.Instruction{
		Program:  program,
		Name:     name,
		Signers:  signers,
		Writable: writable,
	}, fn)
	require.NoError(t, err)
	return r
}

// Fund sends lamports to key from a fresh wallet, as any outsider could.
func (e *Env) Fund(t testing.TB, key pda.Address, lamports uint64) {
	t.Helper()
	from := e.Wallet(t)
	e.Run(t, ledger.SystemProgramID, "transfer", []pda.Address{from}, []pda.Address{from, key}, func(tx *ledger.Tx) error {
		return tx.Transfer(from, key, lamports)
	})
}

// View runs fn against a read-only instruction, for inspecting state.
func (e *Env) View(t testing.TB, fn func(tx *ledger.Tx) error) {
	t.Helper()
	_, err := e.Ledger.Execute(e.Ctx, ledger.Instruction{Program: ledger.SystemProgramID, Name: "view"}, fn)
	require.NoError(t, err)
}

// CreateMint creates a keypair mint owned by authority and returns its address.
func (e *Env) CreateMint(t testing.TB, authority pda.Address, decimals uint8) pda.Address {
	t.Helper()
	mint := NewKey(t)
	e.Run(t, token.ProgramID, "create_mint", []pda.Address{authority, mint}, []pda.Address{authority, mint}, func(tx *ledger.Tx) error {
		return token.CreateMint(tx, authority, mint, authority, decimals)
	})
	return mint
}

// MintTo mints amount of mint into the associated account of owner, creating it
// if needed, and returns the account address.
func (e *Env) MintTo(t testing.TB, mint, authority, owner pda.Address, amount uint64) pda.Address {
	t.Helper()
	ata := token.AssociatedAddress(owner, mint)
	e.Run(t, token.ProgramID, "mint_to", []pda.Address{authority}, []pda.Address{authority, mint, ata}, func(tx *ledger.Tx) error {
		if _, err := token.EnsureAssociated(tx, authority, owner, mint); err != nil {
			return err
		}
		return token.MintTo(tx, mint, ata, authority, amount)
	})
	return ata
}

// TokenBalance returns the amount held by the associated account of owner for
// mint, zero if it does not exist.
func (e *Env) TokenBalance(t testing.TB, owner, mint pda.Address) uint64 {
	t.Helper()
	return e.TokenAccountBalance(t, token.AssociatedAddress(owner, mint))
}

// TokenAccountBalance returns the amount held by the token account at key, zero
// if it does not exist.
func (e *Env) TokenAccountBalance(t testing.TB, key pda.Address) uint64 {
	t.Helper()
	acct, ok := e.Ledger.Account(key)
	if !ok {
		return 0
	}
	ta, ok := acct.State.(*token.Account)
	require.True(t, ok, "account %s is not a token account", key)
	return ta.Amount
}

// Exists reports whether an account is committed at key.
func (e *Env) Exists(key pda.Address) bool {
	_, ok := e.Ledger.Account(key)
	return ok
}

// CreateCollection creates a collection NFT whose metadata update authority is
// authority. It returns the collection mint.
func (e *Env) CreateCollection(t testing.TB, authority pda.Address) pda.Address {
	t.Helper()
	return e.createNFT(t, authority, authority, nil, false)
}

// CreateNFT mints a one-of-one asset to owner. When collection is non-nil the
// asset claims membership, verified if verify is set.
func (e *Env) CreateNFT(t testing.TB, authority, owner pda.Address, collection *pda.Address, verify bool) pda.Address {
	t.Helper()
	return e.createNFT(t, authority, owner, collection, verify)
}

func (e *Env) createNFT(t testing.TB, authority, owner pda.Address, collection *pda.Address, verify bool) pda.Address {
	t.Helper()
	mint := e.CreateMint(t, authority, 0)
	e.MintTo(t, mint, authority, owner, 1)

	md := token.MetadataAddress(mint)
	e.Run(t, token.MetadataProgramID, "create_metadata", []pda.Address{authority}, []pda.Address{authority, md}, func(tx *ledger.Tx) error {
		return token.CreateMetadata(tx, authority, mint, authority, token.MetadataArgs{
			Name:            "Asset",
			Symbol:          "AST",
			URI:             "https://example.invalid/" + mint.String(),
			UpdateAuthority: authority,
			Collection:      collection,
		})
	})

	if collection != nil && verify {
		e.Run(t, token.MetadataProgramID, "verify_collection", []pda.Address{authority}, []pda.Address{md}, func(tx *ledger.Tx) error {
			return token.VerifyCollection(tx, mint, *collection, authority)
		})
	}
	return mint
}
