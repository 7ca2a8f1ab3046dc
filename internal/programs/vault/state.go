// Package vault implements single-owner custody of native lamports.
package vault

import (
	"solana-custody-lab/internal/ledger"
	"solana-custody-lab/internal/pda"
)

// ProgramID is the vault program address.
var ProgramID = pda.MustParseAddress("G5m8rLBcLLmbV1Jrt78p7FmDD2GhiNSDBQ1Tqzn8Lq5i")

const (
	// KindState is the persisted kind of State.
	KindState = "vault.state"
	// StateSize is the serialized length of State.
	StateSize = 8 + 32 + 1 + 1
)

// State records the bumps of an owner's vault.
type State struct {
	Owner     pda.Address `json:"owner"`
	VaultBump uint8       `json:"vault_bump"`
	StateBump uint8       `json:"state_bump"`
}

func (s *State) Kind() string { return KindState }
func (s *State) Size() int    { return StateSize }

func (s *State) Clone() ledger.State {
	c := *s
	return &c
}

func (s *State) Namespace() string { return "state" }
func (s *State) Seeds() [][]byte   { return [][]byte{s.Owner.Bytes()} }

// vaultSeeds derives the native vault of an owner.
type vaultSeeds struct{ owner pda.Address }

func (v vaultSeeds) Namespace() string { return "vault" }
func (v vaultSeeds) Seeds() [][]byte   { return [][]byte{v.owner.Bytes()} }

// Accounts lists every address a vault instruction touches.
type Accounts struct {
	Owner pda.Address
	State pda.Address
	Vault pda.Address
}

// Derive fills Accounts for owner from the published seed rules.
func Derive(owner pda.Address) Accounts {
	return Accounts{
		Owner: owner,
		State: pda.MustFind(ProgramID, []byte("state"), owner.Bytes()).Address,
		Vault: pda.MustFind(ProgramID, []byte("vault"), owner.Bytes()).Address,
	}
}

func init() {
	ledger.RegisterState(KindState, func() ledger.State { return &State{} })
	ledger.RegisterProgram(ProgramID, "vault")
}
