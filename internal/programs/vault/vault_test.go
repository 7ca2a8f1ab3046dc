package vault_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"solana-custody-lab/internal/ledger"
	"solana-custody-lab/internal/ledger/ledgertest"
	"solana-custody-lab/internal/programs/vault"
	"solana-custody-lab/internal/protocol"
)

func setup(t *testing.T) (*ledgertest.Env, *vault.Program, vault.Accounts) {
	t.Helper()
	env := ledgertest.New(t)
	p := vault.New(env.Ledger, zaptest.NewLogger(t))
	acc := vault.Derive(env.Wallet(t))
	_, err := p.Initialize(env.Ctx, acc)
	require.NoError(t, err)
	return env, p, acc
}

func TestLifecycle(t *testing.T) {
	env, p, acc := setup(t)
	ctx := env.Ctx
	stateRent := ledger.MinimumBalance(vault.StateSize)
	assert.Equal(t, ledgertest.DefaultFunding-stateRent, env.Ledger.Balance(acc.Owner))
	assert.False(t, env.Exists(acc.Vault))

	_, err := p.Deposit(ctx, acc, 2*ledger.LamportsPerSOL)
	require.NoError(t, err)
	assert.Equal(t, 2*ledger.LamportsPerSOL, p.Balance(acc))

	_, err = p.Withdraw(ctx, acc, ledger.LamportsPerSOL/2)
	require.NoError(t, err)
	assert.Equal(t, 3*ledger.LamportsPerSOL/2, p.Balance(acc))

	_, err = p.Close(ctx, acc)
	require.NoError(t, err)
	assert.False(t, env.Exists(acc.State))
	assert.False(t, env.Exists(acc.Vault))
	assert.Equal(t, ledgertest.DefaultFunding, env.Ledger.Balance(acc.Owner))

	_, err = p.Deposit(ctx, acc, ledger.LamportsPerSOL)
	assert.ErrorIs(t, err, protocol.ErrRecordNotFound)
	_, err = p.Withdraw(ctx, acc, 1)
	assert.ErrorIs(t, err, protocol.ErrRecordNotFound)
	_, err = p.Close(ctx, acc)
	assert.ErrorIs(t, err, protocol.ErrRecordNotFound)
}

func TestInitialize_Twice(t *testing.T) {
	env, p, acc := setup(t)
	_, err := p.Initialize(env.Ctx, acc)
	assert.ErrorIs(t, err, protocol.ErrDuplicateSeed)
}

func TestDeposit_Validation(t *testing.T) {
	env, p, acc := setup(t)

	_, err := p.Deposit(env.Ctx, acc, 0)
	assert.ErrorIs(t, err, protocol.ErrInvalidAmount)

	_, err = p.Deposit(env.Ctx, acc, ledger.MinimumBalance(0)-1)
	assert.ErrorIs(t, err, protocol.ErrInsufficientFundsForRent)
	assert.Zero(t, p.Balance(acc))

	_, err = p.Deposit(env.Ctx, acc, 200*ledger.LamportsPerSOL)
	assert.ErrorIs(t, err, protocol.ErrInsufficientFunds)
}

func TestWithdraw_Reserve(t *testing.T) {
	env, p, acc := setup(t)
	ctx := env.Ctx
	_, err := p.Deposit(ctx, acc, ledger.LamportsPerSOL)
	require.NoError(t, err)

	tests := []struct {
		name   string
		amount uint64
		want   error
	}{
		{"more than held", ledger.LamportsPerSOL + 1, protocol.ErrInsufficientFunds},
		{"leaves dust", ledger.LamportsPerSOL - 1, protocol.ErrInsufficientFundsForRent},
		{"zero", 0, protocol.ErrInvalidAmount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Withdraw(ctx, acc, tt.amount)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, ledger.LamportsPerSOL, p.Balance(acc))
		})
	}

	_, err = p.Withdraw(ctx, acc, ledger.LamportsPerSOL)
	require.NoError(t, err)
	assert.False(t, env.Exists(acc.Vault))
}

func TestOnlyOwner(t *testing.T) {
	env, p, acc := setup(t)
	_, err := p.Deposit(env.Ctx, acc, ledger.LamportsPerSOL)
	require.NoError(t, err)

	stolen := acc
	stolen.Owner = env.Wallet(t)
	_, err = p.Withdraw(env.Ctx, stolen, ledger.LamportsPerSOL)
	assert.ErrorIs(t, err, protocol.ErrUnauthorized)

	_, err = p.Close(env.Ctx, stolen)
	assert.ErrorIs(t, err, protocol.ErrUnauthorized)
	assert.Equal(t, ledger.LamportsPerSOL, p.Balance(acc))
}

func TestInitialize_PrefundedAddresses(t *testing.T) {
	env := ledgertest.New(t)
	p := vault.New(env.Ledger, zaptest.NewLogger(t))
	acc := vault.Derive(env.Wallet(t))
	dust := ledger.MinimumBalance(0)
	env.Fund(t, acc.State, dust)
	env.Fund(t, acc.Vault, dust)

	_, err := p.Initialize(env.Ctx, acc)
	require.NoError(t, err)
	_, err = p.Deposit(env.Ctx, acc, ledger.LamportsPerSOL)
	require.NoError(t, err)
	assert.Equal(t, ledger.LamportsPerSOL+dust, p.Balance(acc))

	// Close hands the owner everything the outsider sent as well.
	_, err = p.Close(env.Ctx, acc)
	require.NoError(t, err)
	assert.Equal(t, ledgertest.DefaultFunding+2*dust, env.Ledger.Balance(acc.Owner))
}
