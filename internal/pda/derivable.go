package pda

import (
	"errors"
	"fmt"
)

// ErrAddressMismatch is returned when a presented address does not equal the
// derivation for its claimed role.
var ErrAddressMismatch = errors.New("address does not match derivation")

// Derivable is implemented by records whose address is derived from their own fields.
type Derivable interface {
	// Namespace is the leading seed tag, e.g. "escrow".
	Namespace() string
	// Seeds returns the remaining seeds in order.
	Seeds() [][]byte
}

// SeedsOf returns the full seed list of d, namespace first.
func SeedsOf(d Derivable) [][]byte {
	rest := d.Seeds()
	out := make([][]byte, 0, len(rest)+1)
	out = append(out, []byte(d.Namespace()))
	return append(out, rest...)
}

// Find derives the canonical address of d under programID.
func Find(programID Address, d Derivable) (Derived, error) {
	return FindProgramAddress(programID, SeedsOf(d)...)
}

// Verify recomputes the address of d with the stored bump and compares it to claimed.
func Verify(programID Address, d Derivable, bump uint8, claimed Address) error {
	seeds := append(SeedsOf(d), []byte{bump})
	got, err := CreateProgramAddress(seeds, programID)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrAddressMismatch, d.Namespace(), err)
	}
	if got != claimed {
		return fmt.Errorf("%w: %s: expected %s, got %s", ErrAddressMismatch, d.Namespace(), got, claimed)
	}
	return nil
}

// Expect derives seeds under programID and checks claimed against the result.
func Expect(programID Address, claimed Address, seeds ...[]byte) (Derived, error) {
	d, err := FindProgramAddress(programID, seeds...)
	if err != nil {
		return Derived{}, err
	}
	if d.Address != claimed {
		name := "account"
		if len(seeds) > 0 {
			name = string(seeds[0])
		}
		return Derived{}, fmt.Errorf("%w: %s: expected %s, got %s", ErrAddressMismatch, name, d.Address, claimed)
	}
	return d, nil
}
