package custody

import (
	"solana-custody-lab/internal/pda"
	"solana-custody-lab/internal/protocol"
)

// Expect derives seeds under program and rejects claimed unless it is the
// canonical address.
func Expect(program, claimed pda.Address, seeds ...[]byte) (pda.Derived, error) {
	d, err := pda.Expect(program, claimed, seeds...)
	if err != nil {
		return pda.Derived{}, protocol.Errorf(protocol.ErrAddressMismatch, "%v", err)
	}
	return d, nil
}

// ExpectRecord derives the canonical address of rec and rejects claimed unless
// they match.
func ExpectRecord(program, claimed pda.Address, rec pda.Derivable) (pda.Derived, error) {
	return Expect(program, claimed, pda.SeedsOf(rec)...)
}

// Authority rebuilds the signing derivation of a stored record from its own
// fields and bump, rejecting claimed if it is not that address.
func Authority(program, claimed pda.Address, rec pda.Derivable, bump uint8) (pda.Derived, error) {
	if err := pda.Verify(program, rec, bump, claimed); err != nil {
		return pda.Derived{}, protocol.Errorf(protocol.ErrAddressMismatch, "%v", err)
	}
	return pda.Derived{
		Address: claimed,
		Program: program,
		Bump:    bump,
		Seeds:   pda.SeedsOf(rec),
	}, nil
}

// ExpectAddress rejects got unless it equals want.
func ExpectAddress(role string, want, got pda.Address) error {
	if want != got {
		return protocol.Errorf(protocol.ErrAddressMismatch, "%s: expected %s, got %s", role, want, got)
	}
	return nil
}
