// Package escrow implements a two-party conditional swap. A maker locks an
// amount of mint A in a vault; a taker pays the requested amount of mint B and
// receives the vault in one instruction, or the maker takes it back.
package escrow

import (
	"solana-custody-lab/internal/custody"
	"solana-custody-lab/internal/ledger"
	"solana-custody-lab/internal/pda"
	"solana-custody-lab/internal/token"
)

// ProgramID is the escrow program address.
var ProgramID = pda.MustParseAddress("ABagojQQU4h1roF1U2ZC2vqvMVrWcBx2gCq1Gy95KEvJ")

const (
	// KindEscrow is the persisted kind of Escrow.
	KindEscrow = "escrow.escrow"
	// EscrowSize is the serialized length of Escrow.
	EscrowSize = 8 + 8 + 32 + 32 + 32 + 8 + 1
)

// Escrow is an open offer: Maker gives the vault balance of MintA for Receive
// units of MintB.
type Escrow struct {
	Seed    uint64      `json:"seed"`
	Maker   pda.Address `json:"maker"`
	MintA   pda.Address `json:"mint_a"`
	MintB   pda.Address `json:"mint_b"`
	Receive uint64      `json:"receive"`
	Bump    uint8       `json:"bump"`
}

func (e *Escrow) Kind() string { return KindEscrow }
func (e *Escrow) Size() int    { return EscrowSize }

func (e *Escrow) Clone() ledger.State {
	c := *e
	return &c
}

func (e *Escrow) Namespace() string { return "escrow" }

func (e *Escrow) Seeds() [][]byte {
	return [][]byte{e.Maker.Bytes(), pda.U64Seed(e.Seed)}
}

// Accounts lists every address an escrow instruction touches.
type Accounts struct {
	Maker  pda.Address
	Taker  pda.Address
	MintA  pda.Address
	MintB  pda.Address
	Escrow pda.Address
	Vault  pda.Address

	MakerATAA pda.Address
	MakerATAB pda.Address
	TakerATAA pda.Address
	TakerATAB pda.Address
}

// Address derives the escrow record of maker for seed.
func Address(maker pda.Address, seed uint64) pda.Derived {
	return pda.MustFind(ProgramID, []byte("escrow"), maker.Bytes(), pda.U64Seed(seed))
}

// Derive fills Accounts from the published seed rules. taker may be zero for make
// and refund.
func Derive(maker, taker, mintA, mintB pda.Address, seed uint64) Accounts {
	esc := Address(maker, seed)
	return Accounts{
		Maker:     maker,
		Taker:     taker,
		MintA:     mintA,
		MintB:     mintB,
		Escrow:    esc.Address,
		Vault:     custody.AssociatedVault(esc, mintA).Address,
		MakerATAA: token.AssociatedAddress(maker, mintA),
		MakerATAB: token.AssociatedAddress(maker, mintB),
		TakerATAA: token.AssociatedAddress(taker, mintA),
		TakerATAB: token.AssociatedAddress(taker, mintB),
	}
}

func init() {
	ledger.RegisterState(KindEscrow, func() ledger.State { return &Escrow{} })
	ledger.RegisterProgram(ProgramID, "escrow")
}
