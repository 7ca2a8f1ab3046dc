package amm_test

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"solana-custody-lab/internal/ledger"
	"solana-custody-lab/internal/ledger/ledgertest"
	"solana-custody-lab/internal/pda"
	"solana-custody-lab/internal/programs/amm"
	"solana-custody-lab/internal/protocol"
)

const seed = 7

type fixture struct {
	env              *ledgertest.Env
	program          *amm.Program
	admin            pda.Address
	provider, trader pda.Address
	mintX, mintY     pda.Address
}

func setup(t *testing.T) *fixture {
	t.Helper()
	env := ledgertest.New(t)
	issuer := env.Wallet(t)
	f := &fixture{
		env:      env,
		program:  amm.New(env.Ledger, zaptest.NewLogger(t)),
		admin:    env.Wallet(t),
		provider: env.Wallet(t),
		trader:   env.Wallet(t),
		mintX:    env.CreateMint(t, issuer, 6),
		mintY:    env.CreateMint(t, issuer, 6),
	}
	env.MintTo(t, f.mintX, issuer, f.provider, 10_000_000)
	env.MintTo(t, f.mintY, issuer, f.provider, 10_000_000)
	env.MintTo(t, f.mintX, issuer, f.trader, 1_000_000)
	env.MintTo(t, f.mintY, issuer, f.trader, 1_000_000)
	return f
}

func (f *fixture) acc(user pda.Address) amm.Accounts {
	return amm.Derive(user, f.mintX, f.mintY, seed)
}

// seedPool creates a pool and seeds it with 1_000_000 of each mint.
func (f *fixture) seedPool(t *testing.T, fee uint16) {
	t.Helper()
	_, err := f.program.Initialize(f.env.Ctx, f.acc(f.admin), seed, fee, &f.admin)
	require.NoError(t, err)
	_, err = f.program.Deposit(f.env.Ctx, f.acc(f.provider), 0, 1_000_000, 1_000_000)
	require.NoError(t, err)
}

func (f *fixture) k(t *testing.T) *uint256.Int {
	t.Helper()
	pool, err := f.program.Pool(f.acc(f.admin).Config)
	require.NoError(t, err)
	return new(uint256.Int).Mul(uint256.NewInt(pool.ReserveX), uint256.NewInt(pool.ReserveY))
}

func TestInitialize(t *testing.T) {
	f := setup(t)
	acc := f.acc(f.admin)

	_, err := f.program.Initialize(f.env.Ctx, acc, seed, 30, nil)
	require.NoError(t, err)

	pool, err := f.program.Pool(acc.Config)
	require.NoError(t, err)
	assert.Equal(t, uint16(30), pool.Config.Fee)
	assert.True(t, pool.Config.Authority.IsZero())
	assert.Zero(t, pool.Supply)
	assert.Zero(t, pool.ReserveX)
	assert.True(t, f.env.Exists(acc.MintLP))

	_, err = f.program.Initialize(f.env.Ctx, acc, seed, 30, nil)
	assert.ErrorIs(t, err, protocol.ErrDuplicateSeed)
}

func TestInitialize_Validation(t *testing.T) {
	f := setup(t)

	_, err := f.program.Initialize(f.env.Ctx, f.acc(f.admin), seed, 10_001, nil)
	assert.ErrorIs(t, err, protocol.ErrInvalidParameter)

	same := amm.Derive(f.admin, f.mintX, f.mintX, seed)
	_, err = f.program.Initialize(f.env.Ctx, same, seed, 30, nil)
	assert.ErrorIs(t, err, protocol.ErrInvalidParameter)

	wrong := f.acc(f.admin)
	wrong.Config = amm.ConfigAddress(seed + 1).Address
	_, err = f.program.Initialize(f.env.Ctx, wrong, seed, 30, nil)
	assert.ErrorIs(t, err, protocol.ErrAddressMismatch)
}

func TestFirstDeposit_MintsGeometricMean(t *testing.T) {
	f := setup(t)
	_, err := f.program.Initialize(f.env.Ctx, f.acc(f.admin), seed, 30, nil)
	require.NoError(t, err)

	acc := f.acc(f.provider)
	_, err = f.program.Deposit(f.env.Ctx, acc, 0, 4_000_000, 1_000_000)
	require.NoError(t, err)

	assert.Equal(t, uint64(2_000_000), f.env.TokenAccountBalance(t, acc.UserLP))
	pool, err := f.program.Pool(acc.Config)
	require.NoError(t, err)
	assert.Equal(t, uint64(4_000_000), pool.ReserveX)
	assert.Equal(t, uint64(1_000_000), pool.ReserveY)
	assert.Equal(t, uint64(2_000_000), pool.Supply)
}

func TestSwap_ReferenceScenario(t *testing.T) {
	f := setup(t)
	f.seedPool(t, 30)
	before := f.k(t)

	_, err := f.program.Swap(f.env.Ctx, f.acc(f.trader), true, 100_000, 90_000)
	require.NoError(t, err)

	assert.Equal(t, uint64(900_000), f.env.TokenBalance(t, f.trader, f.mintX))
	assert.Equal(t, uint64(1_090_662), f.env.TokenBalance(t, f.trader, f.mintY))

	pool, err := f.program.Pool(f.acc(f.admin).Config)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_100_000), pool.ReserveX)
	assert.Equal(t, uint64(909_338), pool.ReserveY)
	assert.False(t, f.k(t).Lt(before))
}

func TestSwap_SequenceKeepsProduct(t *testing.T) {
	for _, fee := range []uint16{0, 30, 500} {
		f := setup(t)
		f.seedPool(t, fee)
		start := f.k(t)

		steps := []struct {
			xToY bool
			in   uint64
		}{
			{true, 50_000}, {false, 12_345}, {true, 7}, {false, 200_000}, {true, 999},
		}
		prev := start
		for _, s := range steps {
			_, err := f.program.Swap(f.env.Ctx, f.acc(f.trader), s.xToY, s.in, 0)
			require.NoError(t, err)
			cur := f.k(t)
			assert.False(t, cur.Lt(prev), "fee %d: k decreased", fee)
			prev = cur
		}
		if fee > 0 {
			assert.True(t, prev.Gt(start), "fee %d: fees should grow k", fee)
		}
	}
}

func TestSwap_Slippage(t *testing.T) {
	f := setup(t)
	f.seedPool(t, 30)

	_, err := f.program.Swap(f.env.Ctx, f.acc(f.trader), true, 100_000, 90_663)
	assert.ErrorIs(t, err, protocol.ErrSlippageExceeded)
	kind, _ := protocol.KindOf(err)
	assert.Equal(t, protocol.KindFunds, kind)
	assert.Equal(t, uint64(1_000_000), f.env.TokenBalance(t, f.trader, f.mintX))
	assert.Equal(t, uint64(1_000_000), f.env.TokenBalance(t, f.trader, f.mintY))

	_, err = f.program.Swap(f.env.Ctx, f.acc(f.trader), true, 0, 0)
	assert.ErrorIs(t, err, protocol.ErrInvalidAmount)
}

func TestDepositWithdraw_RoundTrip(t *testing.T) {
	f := setup(t)
	f.seedPool(t, 30)
	_, err := f.program.Swap(f.env.Ctx, f.acc(f.trader), true, 100_000, 0)
	require.NoError(t, err)

	acc := f.acc(f.trader)
	x0 := f.env.TokenBalance(t, f.trader, f.mintX)
	y0 := f.env.TokenBalance(t, f.trader, f.mintY)

	_, err = f.program.Deposit(f.env.Ctx, acc, 1_000, 1_100, 910)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_000), f.env.TokenAccountBalance(t, acc.UserLP))
	assert.Equal(t, x0-1_100, f.env.TokenBalance(t, f.trader, f.mintX))
	assert.Equal(t, y0-910, f.env.TokenBalance(t, f.trader, f.mintY))

	_, err = f.program.Withdraw(f.env.Ctx, acc, 1_000, 0, 0)
	require.NoError(t, err)

	x1 := f.env.TokenBalance(t, f.trader, f.mintX)
	y1 := f.env.TokenBalance(t, f.trader, f.mintY)
	assert.LessOrEqual(t, x0-x1, uint64(1))
	assert.LessOrEqual(t, y0-y1, uint64(1))
	assert.Zero(t, f.env.TokenAccountBalance(t, acc.UserLP))
}

func TestDeposit_Slippage(t *testing.T) {
	f := setup(t)
	f.seedPool(t, 30)
	_, err := f.program.Swap(f.env.Ctx, f.acc(f.trader), true, 100_000, 0)
	require.NoError(t, err)

	// The pro-rata y for 1_000 LP is 909.338, rounded up to 910.
	_, err = f.program.Deposit(f.env.Ctx, f.acc(f.trader), 1_000, 1_100, 909)
	assert.ErrorIs(t, err, protocol.ErrSlippageExceeded)
	assert.False(t, f.env.Exists(f.acc(f.trader).UserLP))
}

func TestWithdraw_Slippage(t *testing.T) {
	f := setup(t)
	f.seedPool(t, 30)
	acc := f.acc(f.provider)

	_, err := f.program.Withdraw(f.env.Ctx, acc, 500_000, 500_001, 0)
	assert.ErrorIs(t, err, protocol.ErrSlippageExceeded)
	assert.Equal(t, uint64(1_000_000), f.env.TokenAccountBalance(t, acc.UserLP))

	_, err = f.program.Withdraw(f.env.Ctx, acc, 500_000, 500_000, 500_000)
	require.NoError(t, err)
	assert.Equal(t, uint64(500_000), f.env.TokenAccountBalance(t, acc.UserLP))
	assert.Equal(t, uint64(9_500_000), f.env.TokenBalance(t, f.provider, f.mintX))
}

func TestWithdraw_MoreThanHeld(t *testing.T) {
	f := setup(t)
	f.seedPool(t, 30)

	_, err := f.program.Deposit(f.env.Ctx, f.acc(f.trader), 10, 100, 100)
	require.NoError(t, err)
	_, err = f.program.Withdraw(f.env.Ctx, f.acc(f.trader), 11, 0, 0)
	assert.ErrorIs(t, err, protocol.ErrInsufficientFunds)
}

func TestLock(t *testing.T) {
	f := setup(t)
	f.seedPool(t, 30)
	acc := f.acc(f.trader)

	_, err := f.program.Lock(f.env.Ctx, f.trader, acc)
	assert.ErrorIs(t, err, protocol.ErrUnauthorized)

	_, err = f.program.Lock(f.env.Ctx, f.admin, acc)
	require.NoError(t, err)

	_, err = f.program.Swap(f.env.Ctx, acc, true, 1_000, 0)
	assert.ErrorIs(t, err, protocol.ErrPoolLocked)
	_, err = f.program.Deposit(f.env.Ctx, acc, 10, 100, 100)
	assert.ErrorIs(t, err, protocol.ErrPoolLocked)
	_, err = f.program.Withdraw(f.env.Ctx, f.acc(f.provider), 10, 0, 0)
	assert.ErrorIs(t, err, protocol.ErrPoolLocked)

	_, err = f.program.Unlock(f.env.Ctx, f.admin, acc)
	require.NoError(t, err)
	_, err = f.program.Swap(f.env.Ctx, acc, true, 1_000, 0)
	assert.NoError(t, err)
}

func TestLock_ImmutablePool(t *testing.T) {
	f := setup(t)
	_, err := f.program.Initialize(f.env.Ctx, f.acc(f.admin), seed, 30, nil)
	require.NoError(t, err)

	_, err = f.program.Lock(f.env.Ctx, f.admin, f.acc(f.admin))
	assert.ErrorIs(t, err, protocol.ErrUnauthorized)
}

func TestInitializeDeposit_PrefundedAddresses(t *testing.T) {
	f := setup(t)
	acc := f.acc(f.provider)
	for _, key := range []pda.Address{acc.Config, acc.MintLP, acc.VaultX, acc.VaultY, acc.UserLP} {
		f.env.Fund(t, key, ledger.MinimumBalance(0))
	}

	_, err := f.program.Initialize(f.env.Ctx, acc, seed, 30, nil)
	require.NoError(t, err)
	_, err = f.program.Deposit(f.env.Ctx, acc, 0, 1_000_000, 1_000_000)
	require.NoError(t, err)

	pool, err := f.program.Pool(acc.Config)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_000_000), pool.Supply)
	assert.Equal(t, uint64(1_000_000), f.env.TokenAccountBalance(t, acc.UserLP))
}
