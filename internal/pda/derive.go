package pda

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
)

const (
	// MaxSeeds is the maximum number of seeds, bump included.
	MaxSeeds = 16
	// MaxSeedLength is the maximum length of a single seed.
	MaxSeedLength = 32

	marker = "ProgramDerivedAddress"
)

var (
	// ErrOnCurve is returned when a seed set hashes to a valid curve point.
	ErrOnCurve = errors.New("derived address lies on the ed25519 curve")
	// ErrNoViableBump is returned when no bump in 255..1 yields an off-curve address.
	ErrNoViableBump = errors.New("unable to find a viable bump seed")
	// ErrInvalidSeeds is returned when seed count or length limits are exceeded.
	ErrInvalidSeeds = errors.New("invalid seeds")
)

// Derived is a program-derived address together with the seeds and bump that
// produced it. It carries everything a program needs to sign as the address.
type Derived struct {
	Address Address
	Program Address
	Bump    uint8
	Seeds   [][]byte
}

// SignerSeeds returns the seeds with the bump appended.
func (d Derived) SignerSeeds() [][]byte {
	out := make([][]byte, 0, len(d.Seeds)+1)
	out = append(out, d.Seeds...)
	return append(out, []byte{d.Bump})
}

// CreateProgramAddress hashes seeds|programID|marker and rejects on-curve results.
func CreateProgramAddress(seeds [][]byte, programID Address) (Address, error) {
	var a Address
	if len(seeds) > MaxSeeds {
		return a, fmt.Errorf("%w: %d seeds, max %d", ErrInvalidSeeds, len(seeds), MaxSeeds)
	}

	h := sha256.New()
	for i, seed := range seeds {
		if len(seed) > MaxSeedLength {
			return a, fmt.Errorf("%w: seed %d is %d bytes, max %d", ErrInvalidSeeds, i, len(seed), MaxSeedLength)
		}
		h.Write(seed)
	}
	h.Write(programID[:])
	h.Write([]byte(marker))
	copy(a[:], h.Sum(nil))

	if IsOnCurve(a[:]) {
		return Address{}, ErrOnCurve
	}
	return a, nil
}

// FindProgramAddress searches bumps from 255 down to 1 and returns the first
// off-curve address. The same inputs always return the same result.
func FindProgramAddress(programID Address, seeds ...[]byte) (Derived, error) {
	if len(seeds) > MaxSeeds-1 {
		return Derived{}, fmt.Errorf("%w: %d seeds, max %d", ErrInvalidSeeds, len(seeds), MaxSeeds-1)
	}

	withBump := make([][]byte, len(seeds)+1)
	copy(withBump, seeds)

	for bump := 255; bump > 0; bump-- {
		withBump[len(seeds)] = []byte{byte(bump)}
		addr, err := CreateProgramAddress(withBump, programID)
		if errors.Is(err, ErrOnCurve) {
			continue
		}
		if err != nil {
			return Derived{}, err
		}
		return Derived{
			Address: addr,
			Program: programID,
			Bump:    uint8(bump),
			Seeds:   copySeeds(seeds),
		}, nil
	}

	return Derived{}, ErrNoViableBump
}

// MustFind is FindProgramAddress for seed sets known to be well-formed.
func MustFind(programID Address, seeds ...[]byte) Derived {
	d, err := FindProgramAddress(programID, seeds...)
	if err != nil {
		panic(err)
	}
	return d
}

// IsOnCurve reports whether b decodes to a point on the ed25519 curve.
func IsOnCurve(b []byte) bool {
	if len(b) != AddressLength {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(b)
	return err == nil
}

// U64Seed encodes v little-endian, the layout programs use for numeric seeds.
func U64Seed(v uint64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, v)
	return b
}

func copySeeds(seeds [][]byte) [][]byte {
	out := make([][]byte, len(seeds))
	for i, s := range seeds {
		out[i] = append([]byte(nil), s...)
	}
	return out
}
