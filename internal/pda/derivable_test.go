package pda

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testRecord struct {
	owner Address
	nonce uint64
}

func (r testRecord) Namespace() string { return "record" }
func (r testRecord) Seeds() [][]byte   { return [][]byte{r.owner.Bytes(), U64Seed(r.nonce)} }

func TestVerify(t *testing.T) {
	rec := testRecord{owner: MustParseAddress("broQPt5f3vtMniWxwJLeHK5X56pGgor4Qmpd9jMVLYT"), nonce: 7}

	d, err := Find(loaderID, rec)
	require.NoError(t, err)

	assert.NoError(t, Verify(loaderID, rec, d.Bump, d.Address))

	other := testRecord{owner: rec.owner, nonce: 8}
	err = Verify(loaderID, other, d.Bump, d.Address)
	assert.ErrorIs(t, err, ErrAddressMismatch)
}

func TestExpect(t *testing.T) {
	owner := MustParseAddress("broQPt5f3vtMniWxwJLeHK5X56pGgor4Qmpd9jMVLYT")
	d := MustFind(loaderID, []byte("state"), owner.Bytes())

	got, err := Expect(loaderID, d.Address, []byte("state"), owner.Bytes())
	require.NoError(t, err)
	assert.Equal(t, d.Bump, got.Bump)

	_, err = Expect(loaderID, owner, []byte("state"), owner.Bytes())
	assert.ErrorIs(t, err, ErrAddressMismatch)
}

func TestAddress_TextRoundTrip(t *testing.T) {
	a := MustParseAddress("ABagojQQU4h1roF1U2ZC2vqvMVrWcBx2gCq1Gy95KEvJ")

	text, err := a.MarshalText()
	require.NoError(t, err)

	var b Address
	require.NoError(t, b.UnmarshalText(text))
	assert.Equal(t, a, b)

	_, err = ParseAddress("not-base58-0OIl")
	assert.Error(t, err)
	_, err = ParseAddress("1111")
	assert.Error(t, err, "short addresses must be rejected")
}
