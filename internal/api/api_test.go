package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"solana-custody-lab/internal/domain"
	"solana-custody-lab/internal/ledger"
	"solana-custody-lab/internal/ledger/ledgertest"
	"solana-custody-lab/internal/pda"
	"solana-custody-lab/internal/programs/amm"
	"solana-custody-lab/internal/programs/escrow"
	"solana-custody-lab/internal/programs/marketplace"
	"solana-custody-lab/internal/programs/staking"
	"solana-custody-lab/internal/programs/vault"
	"solana-custody-lab/internal/protocol"
	"solana-custody-lab/internal/storage"
	"solana-custody-lab/internal/storage/memory"
)

type harness struct {
	env *ledgertest.Env
	srv *httptest.Server
}

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()
	logger := zaptest.NewLogger(t)
	clock := ledger.NewManualClock(ledgertest.StartTime)
	events := memory.NewTxEventStore()
	l := ledger.New(ledger.Options{Clock: clock, Events: events, Logger: logger})

	s := New(l, events, Programs{
		Escrow:      escrow.New(l, logger),
		AMM:         amm.New(l, logger),
		Vault:       vault.New(l, logger),
		Staking:     staking.New(l, logger),
		Marketplace: marketplace.New(l, logger),
	}, opts, logger)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		s.Close()
		srv.Close()
	})

	return &harness{
		env: &ledgertest.Env{Ctx: context.Background(), Ledger: l, Clock: clock},
		srv: srv,
	}
}

func (h *harness) do(t *testing.T, method, path string, body any) (int, []byte) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, h.srv.URL+path, rd)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

func (h *harness) post(t *testing.T, path string, body any) (int, []byte) {
	t.Helper()
	return h.do(t, http.MethodPost, path, body)
}

func (h *harness) get(t *testing.T, path string) (int, []byte) {
	t.Helper()
	return h.do(t, http.MethodGet, path, nil)
}

func decodeError(t *testing.T, data []byte) ErrorResponse {
	t.Helper()
	var e ErrorResponse
	require.NoError(t, json.Unmarshal(data, &e))
	return e
}

func decodeReceipt(t *testing.T, data []byte) ReceiptResponse {
	t.Helper()
	var r ReceiptResponse
	require.NoError(t, json.Unmarshal(data, &r))
	return r
}

func TestHealth(t *testing.T) {
	h := newHarness(t, Options{})

	status, body := h.get(t, "/health")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), `"status":"ok"`)
}

func TestAirdropAndAccounts(t *testing.T) {
	h := newHarness(t, Options{})
	key := ledgertest.NewKey(t)

	status, body := h.post(t, "/v1/airdrop", map[string]any{
		"address":  key.String(),
		"lamports": ledger.LamportsPerSOL,
	})
	require.Equal(t, http.StatusOK, status, string(body))
	receipt := decodeReceipt(t, body)
	assert.NotEmpty(t, receipt.Signature)

	status, body = h.get(t, "/v1/accounts/"+key.String())
	require.Equal(t, http.StatusOK, status, string(body))
	var acct AccountResponse
	require.NoError(t, json.Unmarshal(body, &acct))
	assert.Equal(t, uint64(ledger.LamportsPerSOL), acct.Lamports)
	assert.Equal(t, "system", acct.Program)

	status, body = h.get(t, "/v1/accounts?owner="+ledger.SystemProgramID.String())
	require.Equal(t, http.StatusOK, status)
	var list []AccountResponse
	require.NoError(t, json.Unmarshal(body, &list))
	assert.Len(t, list, 1)

	status, body = h.get(t, "/v1/transactions/"+receipt.Signature)
	require.Equal(t, http.StatusOK, status)
	var e domain.TxEvent
	require.NoError(t, json.Unmarshal(body, &e))
	assert.Equal(t, domain.TxStatusCommitted, e.Status)
	assert.Equal(t, "airdrop", e.Instruction)
}

func TestRequestErrors(t *testing.T) {
	h := newHarness(t, Options{})
	key := ledgertest.NewKey(t).String()

	tests := []struct {
		name       string
		method     string
		path       string
		body       any
		wantStatus int
		wantCode   string
	}{
		{"missing address", http.MethodPost, "/v1/airdrop", map[string]any{"lamports": 5}, http.StatusBadRequest, "InvalidRequest"},
		{"unknown field", http.MethodPost, "/v1/airdrop", map[string]any{"address": key, "lamports": 5, "memo": "x"}, http.StatusBadRequest, "InvalidRequest"},
		{"bad address", http.MethodPost, "/v1/airdrop", map[string]any{"address": "not-base58!", "lamports": 5}, http.StatusBadRequest, "InvalidRequest"},
		{"zero airdrop", http.MethodPost, "/v1/airdrop", map[string]any{"address": key, "lamports": 0}, http.StatusBadRequest, "InvalidAmount"},
		{"below rent minimum", http.MethodPost, "/v1/airdrop", map[string]any{"address": key, "lamports": 1}, http.StatusUnprocessableEntity, "InsufficientFundsForRent"},
		{"unknown account", http.MethodGet, "/v1/accounts/" + key, nil, http.StatusNotFound, "NotFound"},
		{"owner missing", http.MethodGet, "/v1/accounts", nil, http.StatusBadRequest, "InvalidRequest"},
		{"unknown transaction", http.MethodGet, "/v1/transactions/nope", nil, http.StatusNotFound, "NotFound"},
		{"unknown pool", http.MethodGet, "/v1/amm/pools/9", nil, http.StatusNotFound, "RecordNotFound"},
		{"take without escrow", http.MethodPost, "/v1/escrow/take", map[string]any{"maker": key, "taker": key, "seed": 1}, http.StatusNotFound, "RecordNotFound"},
		{"unknown route", http.MethodGet, "/v1/nothing", nil, http.StatusNotFound, "NotFound"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := h.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.wantStatus, status, string(body))
			assert.Equal(t, tt.wantCode, decodeError(t, body).Code)
		})
	}
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		err        error
		wantStatus int
		retryable  bool
	}{
		{protocol.Errorf(protocol.ErrUnauthorized, "x"), http.StatusForbidden, false},
		{protocol.Errorf(protocol.ErrRecordNotFound, "x"), http.StatusNotFound, false},
		{protocol.Errorf(protocol.ErrNotFrozen, "x"), http.StatusConflict, false},
		{protocol.Errorf(protocol.ErrInsufficientFunds, "x"), http.StatusUnprocessableEntity, false},
		{protocol.Errorf(protocol.ErrArithmetic, "x"), http.StatusUnprocessableEntity, false},
		{protocol.Errorf(protocol.ErrInvalidPrice, "x"), http.StatusBadRequest, false},
		{fmt.Errorf("escrow.take: %w", protocol.ErrAccountInUse), http.StatusConflict, true},
		{storage.ErrNotFound, http.StatusNotFound, false},
		{errRateLimited, http.StatusTooManyRequests, true},
		{errors.New("disk on fire"), http.StatusInternalServerError, false},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			status, resp := statusOf(tt.err)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.retryable, resp.Retryable)
		})
	}
}

// wallet airdrops a fresh key over the API.
func (h *harness) wallet(t *testing.T) pda.Address {
	t.Helper()
	key := ledgertest.NewKey(t)
	status, body := h.post(t, "/v1/airdrop", map[string]any{"address": key, "lamports": ledgertest.DefaultFunding})
	require.Equal(t, http.StatusOK, status, string(body))
	return key
}

func (h *harness) createMint(t *testing.T, authority pda.Address, decimals uint8) pda.Address {
	t.Helper()
	status, body := h.post(t, "/v1/token/create-mint", map[string]any{"authority": authority, "decimals": decimals})
	require.Equal(t, http.StatusOK, status, string(body))
	var resp struct {
		Accounts struct {
			Mint pda.Address `json:"mint"`
		} `json:"accounts"`
	}
	require.NoError(t, json.Unmarshal(body, &resp))
	require.False(t, resp.Accounts.Mint.IsZero())
	return resp.Accounts.Mint
}

func (h *harness) mintTo(t *testing.T, mint, authority, owner pda.Address, amount uint64) {
	t.Helper()
	status, body := h.post(t, "/v1/token/mint-to", map[string]any{
		"mint": mint, "authority": authority, "owner": owner, "amount": amount,
	})
	require.Equal(t, http.StatusOK, status, string(body))
}

// createNFT mints a one-of-one asset with metadata to owner. A non-nil
// collection is claimed and verified.
func (h *harness) createNFT(t *testing.T, authority, owner pda.Address, collection *pda.Address) pda.Address {
	t.Helper()
	mint := h.createMint(t, authority, 0)
	h.mintTo(t, mint, authority, owner, 1)

	req := map[string]any{"mint": mint, "authority": authority, "name": "Asset", "symbol": "AST"}
	if collection != nil {
		req["collection"] = *collection
	}
	status, body := h.post(t, "/v1/token/create-metadata", req)
	require.Equal(t, http.StatusOK, status, string(body))

	if collection != nil {
		status, body = h.post(t, "/v1/token/verify-collection", map[string]any{
			"mint": mint, "collection": *collection, "authority": authority,
		})
		require.Equal(t, http.StatusOK, status, string(body))
	}
	return mint
}

func (h *harness) tokenBalance(t *testing.T, owner, mint pda.Address) uint64 {
	t.Helper()
	status, body := h.get(t, fmt.Sprintf("/v1/token/%s/balances/%s", mint, owner))
	require.Equal(t, http.StatusOK, status, string(body))
	var resp TokenBalanceResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	return resp.Amount
}

func (h *harness) lamports(t *testing.T, key pda.Address) uint64 {
	t.Helper()
	status, body := h.get(t, "/v1/accounts/"+key.String())
	require.Equal(t, http.StatusOK, status, string(body))
	var acct AccountResponse
	require.NoError(t, json.Unmarshal(body, &acct))
	return acct.Lamports
}

func TestTokenOverHTTP(t *testing.T) {
	h := newHarness(t, Options{})
	issuer, holder := h.wallet(t), h.wallet(t)

	mint := h.createMint(t, issuer, 6)
	assert.Zero(t, h.tokenBalance(t, holder, mint))
	h.mintTo(t, mint, issuer, holder, 700)
	h.mintTo(t, mint, issuer, holder, 300)
	assert.Equal(t, uint64(1_000), h.tokenBalance(t, holder, mint))

	// Only the mint authority can mint.
	status, body := h.post(t, "/v1/token/mint-to", map[string]any{
		"mint": mint, "authority": holder, "owner": holder, "amount": 1,
	})
	assert.Equal(t, http.StatusForbidden, status, string(body))

	status, body = h.post(t, "/v1/token/mint-to", map[string]any{
		"mint": mint, "authority": issuer, "owner": holder, "amount": 0,
	})
	assert.Equal(t, http.StatusBadRequest, status, string(body))

	collection := h.createNFT(t, issuer, issuer, nil)
	item := h.createNFT(t, issuer, holder, &collection)
	assert.Equal(t, uint64(1), h.tokenBalance(t, holder, item))

	// Only the collection update authority can verify.
	status, body = h.post(t, "/v1/token/verify-collection", map[string]any{
		"mint": item, "collection": collection, "authority": holder,
	})
	assert.Equal(t, http.StatusForbidden, status, string(body))

	status, body = h.post(t, "/v1/token/create-metadata", map[string]any{
		"mint": item, "authority": issuer, "name": strings.Repeat("x", 33),
	})
	assert.Equal(t, http.StatusBadRequest, status, string(body))
}

func TestEscrowOverHTTP(t *testing.T) {
	h := newHarness(t, Options{})
	issuer, maker, taker := h.wallet(t), h.wallet(t), h.wallet(t)
	mintA := h.createMint(t, issuer, 6)
	mintB := h.createMint(t, issuer, 6)
	h.mintTo(t, mintA, issuer, maker, 1_000)
	h.mintTo(t, mintB, issuer, taker, 10)

	status, body := h.post(t, "/v1/escrow/make", map[string]any{
		"maker": maker, "mint_a": mintA, "mint_b": mintB,
		"seed": 42, "deposit": 1_000, "receive": 50,
	})
	require.Equal(t, http.StatusOK, status, string(body))
	assert.Zero(t, h.tokenBalance(t, maker, mintA))

	status, body = h.get(t, fmt.Sprintf("/v1/escrow/%s/42", maker))
	require.Equal(t, http.StatusOK, status, string(body))

	status, body = h.post(t, "/v1/escrow/take", map[string]any{"maker": maker, "taker": taker, "seed": 42})
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "InsufficientFunds", decodeError(t, body).Code)

	status, body = h.post(t, "/v1/escrow/refund", map[string]any{"maker": maker, "seed": 42, "caller": taker})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "Unauthorized", decodeError(t, body).Code)

	status, body = h.post(t, "/v1/escrow/refund", map[string]any{"maker": maker, "seed": 42})
	require.Equal(t, http.StatusOK, status, string(body))
	assert.Equal(t, uint64(1_000), h.tokenBalance(t, maker, mintA))

	status, _ = h.post(t, "/v1/escrow/refund", map[string]any{"maker": maker, "seed": 42})
	assert.Equal(t, http.StatusNotFound, status)

	// A second offer is taken once the taker holds enough.
	h.mintTo(t, mintB, issuer, taker, 40)
	status, body = h.post(t, "/v1/escrow/make", map[string]any{
		"maker": maker, "mint_a": mintA, "mint_b": mintB,
		"seed": 43, "deposit": 600, "receive": 50,
	})
	require.Equal(t, http.StatusOK, status, string(body))

	status, body = h.post(t, "/v1/escrow/take", map[string]any{"maker": maker, "taker": taker, "seed": 43})
	require.Equal(t, http.StatusOK, status, string(body))
	assert.Equal(t, uint64(400), h.tokenBalance(t, maker, mintA))
	assert.Equal(t, uint64(50), h.tokenBalance(t, maker, mintB))
	assert.Equal(t, uint64(600), h.tokenBalance(t, taker, mintA))
	assert.Zero(t, h.tokenBalance(t, taker, mintB))

	status, _ = h.get(t, fmt.Sprintf("/v1/escrow/%s/43", maker))
	assert.Equal(t, http.StatusNotFound, status)
}

func TestStakingOverHTTP(t *testing.T) {
	h := newHarness(t, Options{})
	admin, issuer, user := h.wallet(t), h.wallet(t), h.wallet(t)

	status, body := h.post(t, "/v1/staking/initialize-config", map[string]any{
		"admin": admin, "points_per_stake": 10, "max_stake": 2, "freeze_period": 3600,
	})
	require.Equal(t, http.StatusOK, status, string(body))
	status, body = h.post(t, "/v1/staking/initialize-user", map[string]any{"user": user})
	require.Equal(t, http.StatusOK, status, string(body))

	mint := h.createNFT(t, issuer, user, nil)
	status, body = h.post(t, "/v1/staking/stake", map[string]any{"user": user, "mint": mint})
	require.Equal(t, http.StatusOK, status, string(body))
	assert.Zero(t, h.tokenBalance(t, user, mint))

	status, body = h.post(t, "/v1/staking/unstake", map[string]any{"user": user, "mint": mint})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "NotFrozen", decodeError(t, body).Code)

	h.env.Clock.Advance(3600)
	status, body = h.post(t, "/v1/staking/unstake", map[string]any{"user": user, "mint": mint})
	require.Equal(t, http.StatusOK, status, string(body))
	assert.Equal(t, uint64(1), h.tokenBalance(t, user, mint))

	status, body = h.post(t, "/v1/staking/claim", map[string]any{"user": user})
	require.Equal(t, http.StatusOK, status, string(body))
	assert.Equal(t, uint64(10), h.tokenBalance(t, user, staking.RewardsMintAddress().Address))

	status, body = h.get(t, "/v1/staking/users/"+user.String())
	require.Equal(t, http.StatusOK, status, string(body))
	var got struct {
		User staking.UserAccount `json:"user"`
	}
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Zero(t, got.User.Points)
	assert.Zero(t, got.User.AmountStaked)

	status, _ = h.post(t, "/v1/staking/stake", map[string]any{"user": user})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestMarketplaceOverHTTP(t *testing.T) {
	h := newHarness(t, Options{})
	admin, creator, seller, buyer := h.wallet(t), h.wallet(t), h.wallet(t), h.wallet(t)
	const price = 2 * ledger.LamportsPerSOL

	status, body := h.post(t, "/v1/marketplace/initialize", map[string]any{"admin": admin, "fee": 250})
	require.Equal(t, http.StatusOK, status, string(body))

	collection := h.createNFT(t, creator, creator, nil)
	mint := h.createNFT(t, creator, seller, &collection)

	// Unverified members are refused.
	stray := h.createMint(t, creator, 0)
	h.mintTo(t, stray, creator, seller, 1)
	status, body = h.post(t, "/v1/token/create-metadata", map[string]any{
		"mint": stray, "authority": creator, "name": "Stray", "collection": collection,
	})
	require.Equal(t, http.StatusOK, status, string(body))
	status, body = h.post(t, "/v1/marketplace/list", map[string]any{
		"seller": seller, "mint": stray, "collection": collection, "price": price,
	})
	assert.Equal(t, "UnverifiedCollection", decodeError(t, body).Code, "status %d", status)

	sellerBefore := h.lamports(t, seller)
	status, body = h.post(t, "/v1/marketplace/list", map[string]any{
		"seller": seller, "mint": mint, "collection": collection, "price": price,
	})
	require.Equal(t, http.StatusOK, status, string(body))
	var listed struct {
		Accounts marketplace.Accounts `json:"accounts"`
	}
	require.NoError(t, json.Unmarshal(body, &listed))
	listing := listed.Accounts.Listing

	status, body = h.get(t, "/v1/marketplace/listings/"+listing.String())
	require.Equal(t, http.StatusOK, status, string(body))
	var rec marketplace.Listing
	require.NoError(t, json.Unmarshal(body, &rec))
	assert.Equal(t, seller, rec.Seller)
	assert.Equal(t, uint64(price), rec.Price)
	assert.Zero(t, h.tokenBalance(t, seller, mint))

	status, body = h.post(t, "/v1/marketplace/delist", map[string]any{"seller": seller, "mint": mint, "caller": buyer})
	assert.Equal(t, http.StatusForbidden, status, string(body))

	status, body = h.post(t, "/v1/marketplace/purchase", map[string]any{"buyer": buyer, "seller": seller, "mint": mint})
	require.Equal(t, http.StatusOK, status, string(body))

	split, err := marketplace.SplitPrice(price, 250)
	require.NoError(t, err)
	assert.Equal(t, sellerBefore+split.Seller, h.lamports(t, seller))
	assert.Equal(t, uint64(1), h.tokenBalance(t, buyer, mint))

	status, _ = h.get(t, "/v1/marketplace/listings/"+listing.String())
	assert.Equal(t, http.StatusNotFound, status)
}

func TestAMMOverHTTP(t *testing.T) {
	h := newHarness(t, Options{})
	env := h.env
	issuer, provider, trader := env.Wallet(t), env.Wallet(t), env.Wallet(t)
	mintX := env.CreateMint(t, issuer, 6)
	mintY := env.CreateMint(t, issuer, 6)
	env.MintTo(t, mintX, issuer, provider, 1_000_000)
	env.MintTo(t, mintY, issuer, provider, 1_000_000)
	env.MintTo(t, mintX, issuer, trader, 100_000)

	status, body := h.post(t, "/v1/amm/initialize", map[string]any{
		"user": provider, "mint_x": mintX, "mint_y": mintY, "seed": 3, "fee": 30,
	})
	require.Equal(t, http.StatusOK, status, string(body))

	status, body = h.post(t, "/v1/amm/deposit", map[string]any{
		"user": provider, "seed": 3, "x": 1_000_000, "y": 1_000_000,
	})
	require.Equal(t, http.StatusOK, status, string(body))

	swap := map[string]any{"user": trader, "seed": 3, "x_to_y": true, "amount_in": 100_000, "min_out": 90_663}
	status, body = h.post(t, "/v1/amm/swap", swap)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "SlippageExceeded", decodeError(t, body).Code)

	swap["min_out"] = 90_662
	status, body = h.post(t, "/v1/amm/swap", swap)
	require.Equal(t, http.StatusOK, status, string(body))

	status, body = h.get(t, "/v1/amm/pools/3")
	require.Equal(t, http.StatusOK, status)
	var pool PoolResponse
	require.NoError(t, json.Unmarshal(body, &pool))
	assert.Equal(t, uint64(1_100_000), pool.ReserveX)
	assert.Equal(t, uint64(1_000_000-90_662), pool.ReserveY)
	assert.Equal(t, uint64(1_000_000), pool.Supply)

	// The pool was created without an authority.
	status, body = h.post(t, "/v1/amm/lock", map[string]any{"caller": provider, "seed": 3})
	assert.Equal(t, http.StatusForbidden, status, string(body))
}

func TestVaultOverHTTP(t *testing.T) {
	h := newHarness(t, Options{})
	owner := h.env.Wallet(t)

	for _, step := range []struct {
		path   string
		amount uint64
	}{
		{"/v1/vault/initialize", 0},
		{"/v1/vault/deposit", 5 * ledger.LamportsPerSOL},
		{"/v1/vault/withdraw", 2 * ledger.LamportsPerSOL},
	} {
		status, body := h.post(t, step.path, map[string]any{"owner": owner, "amount": step.amount})
		require.Equal(t, http.StatusOK, status, "%s: %s", step.path, body)
	}

	status, body := h.get(t, "/v1/vault/"+owner.String())
	require.Equal(t, http.StatusOK, status)
	var got struct {
		Balance uint64 `json:"balance"`
	}
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, uint64(3*ledger.LamportsPerSOL), got.Balance)

	status, _ = h.post(t, "/v1/vault/close", map[string]any{"owner": owner})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, ledgertest.DefaultFunding, h.env.Ledger.Balance(owner))
}

func TestRateLimit(t *testing.T) {
	h := newHarness(t, Options{RPS: 0.001, Burst: 2})
	path := "/v1/accounts?owner=" + pda.Zero.String()

	for range 2 {
		status, _ := h.get(t, path)
		assert.Equal(t, http.StatusOK, status)
	}
	status, body := h.get(t, path)
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.True(t, decodeError(t, body).Retryable)

	status, _ = h.get(t, "/health")
	assert.Equal(t, http.StatusOK, status)
}

func TestRequestID(t *testing.T) {
	h := newHarness(t, Options{})

	resp, err := h.srv.Client().Get(h.srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	generated := resp.Header.Get(RequestIDHeader)
	assert.Len(t, generated, 36)

	const id = "0b8f3c2e-8a43-4f7d-9d55-3f1f0f1d2a11"
	req, err := http.NewRequest(http.MethodGet, h.srv.URL+"/health", nil)
	require.NoError(t, err)
	req.Header.Set(RequestIDHeader, id)
	resp, err = h.srv.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, id, resp.Header.Get(RequestIDHeader))
}

func dialStream(t *testing.T, h *harness, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(h.srv.URL, "http") + "/v1/stream" + query
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) domain.TxEvent {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var e domain.TxEvent
	require.NoError(t, conn.ReadJSON(&e))
	return e
}

func TestStream(t *testing.T) {
	h := newHarness(t, Options{})
	conn := dialStream(t, h, "")

	key := h.env.Wallet(t)
	e := readEvent(t, conn)
	assert.Equal(t, "airdrop", e.Instruction)
	assert.Equal(t, []domain.Effect{{
		Type:   domain.EffectLamportTransfer,
		To:     key.String(),
		Amount: ledgertest.DefaultFunding,
	}}, e.Effects)
}

func TestStream_ProgramFilter(t *testing.T) {
	h := newHarness(t, Options{})
	conn := dialStream(t, h, "?program="+vault.ProgramID.String())

	owner := h.env.Wallet(t)
	status, body := h.post(t, "/v1/vault/initialize", map[string]any{"owner": owner})
	require.Equal(t, http.StatusOK, status, string(body))

	e := readEvent(t, conn)
	assert.Equal(t, vault.ProgramID.String(), e.Program)
	assert.Equal(t, "initialize", e.Instruction)
}
