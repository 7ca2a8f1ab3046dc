package pda

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var loaderID = MustParseAddress("BPFLoaderUpgradeab1e11111111111111111111111")

func TestCreateProgramAddress_KnownVectors(t *testing.T) {
	tests := []struct {
		name  string
		seeds [][]byte
		want  string
	}{
		{
			name:  "empty seed with bump 1",
			seeds: [][]byte{{}, {1}},
			want:  "BwqrghZA2htAcqq8dzP1WDAhTXYTYWj7CHxF5j7TDBAe",
		},
		{
			name:  "unicode seed with bump 0",
			seeds: [][]byte{[]byte("☉"), {0}},
			want:  "13yWmRpaTR4r5nAktwLqMpRNr28tnVUZw26rTvPSSB19",
		},
		{
			name:  "two word seeds",
			seeds: [][]byte{[]byte("Talking"), []byte("Squirrels")},
			want:  "2fnQrngrQT4SeLcdToJAD96phoEjNL2man2kfRLCASVk",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CreateProgramAddress(tt.seeds, loaderID)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
			assert.False(t, IsOnCurve(got[:]))
		})
	}
}

func TestCreateProgramAddress_SeedLimits(t *testing.T) {
	long := make([]byte, MaxSeedLength+1)
	_, err := CreateProgramAddress([][]byte{long}, loaderID)
	assert.ErrorIs(t, err, ErrInvalidSeeds)

	many := make([][]byte, MaxSeeds+1)
	_, err = CreateProgramAddress(many, loaderID)
	assert.ErrorIs(t, err, ErrInvalidSeeds)
}

func TestFindProgramAddress_Determinism(t *testing.T) {
	owner := MustParseAddress("G5m8rLBcLLmbV1Jrt78p7FmDD2GhiNSDBQ1Tqzn8Lq5i")

	first, err := FindProgramAddress(loaderID, []byte("vault"), owner.Bytes())
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		again, err := FindProgramAddress(loaderID, []byte("vault"), owner.Bytes())
		require.NoError(t, err)
		assert.Equal(t, first.Address, again.Address)
		assert.Equal(t, first.Bump, again.Bump)
	}

	// The stored bump recreates the same address.
	recreated, err := CreateProgramAddress(first.SignerSeeds(), loaderID)
	require.NoError(t, err)
	assert.Equal(t, first.Address, recreated)
}

func TestFindProgramAddress_DifferentInputs(t *testing.T) {
	base := MustFind(loaderID, []byte("escrow"), U64Seed(1))

	diffSeed := MustFind(loaderID, []byte("escrow"), U64Seed(2))
	assert.NotEqual(t, base.Address, diffSeed.Address, "different nonce should derive a different address")

	diffTag := MustFind(loaderID, []byte("vault"), U64Seed(1))
	assert.NotEqual(t, base.Address, diffTag.Address, "different namespace should derive a different address")

	otherProgram := MustParseAddress("4SQsPr5ciucW1s8QNkDKPKLyVjR3smH2nEZbezwc2QGG")
	diffProgram := MustFind(otherProgram, []byte("escrow"), U64Seed(1))
	assert.NotEqual(t, base.Address, diffProgram.Address, "different program should derive a different address")
}

func TestU64Seed_LittleEndian(t *testing.T) {
	assert.Equal(t, []byte{42, 0, 0, 0, 0, 0, 0, 0}, U64Seed(42))
	assert.Equal(t, []byte{0, 1, 0, 0, 0, 0, 0, 0}, U64Seed(256))
}
