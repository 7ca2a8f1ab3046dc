// Package api exposes the ledger and its programs over HTTP.
//
// Request bodies name the signing wallets and the instruction arguments. The
// server derives every program account from the published seed rules, acting
// as the client would.
package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"solana-custody-lab/internal/ledger"
	"solana-custody-lab/internal/observability"
	"solana-custody-lab/internal/programs/amm"
	"solana-custody-lab/internal/programs/escrow"
	"solana-custody-lab/internal/programs/marketplace"
	"solana-custody-lab/internal/programs/staking"
	"solana-custody-lab/internal/programs/vault"
	"solana-custody-lab/internal/storage"
)

// Programs are the program clients served by the API.
type Programs struct {
	Escrow      *escrow.Program
	AMM         *amm.Program
	Vault       *vault.Program
	Staking     *staking.Program
	Marketplace *marketplace.Program
}

// Options tunes the server.
type Options struct {
	// RPS is the sustained request rate across all clients. Zero disables limiting.
	RPS float64
	// Burst is the limiter bucket size.
	Burst int
	// StreamBuffer is the per-subscriber event buffer. Defaults to 256.
	StreamBuffer int
}

// Server routes HTTP requests to the ledger and programs.
type Server struct {
	ledger   *ledger.Ledger
	events   storage.TxEventStore
	programs Programs

	validate *validator.Validate
	limiter  *rate.Limiter
	upgrader websocket.Upgrader
	buffer   int
	logger   *zap.Logger
	router   *mux.Router

	closing   chan struct{}
	closeOnce sync.Once
}

// New builds a server. events may be nil, in which case transaction lookups
// return not found.
func New(l *ledger.Ledger, events storage.TxEventStore, programs Programs, opts Options, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.StreamBuffer <= 0 {
		opts.StreamBuffer = 256
	}

	s := &Server{
		ledger:   l,
		events:   events,
		programs: programs,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		buffer:  opts.StreamBuffer,
		logger:  logger.Named("api"),
		closing: make(chan struct{}),
	}
	if opts.RPS > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(opts.RPS), burst)
	}
	s.router = s.routes()
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close ends every open stream. Call it before shutting the HTTP server down,
// since hijacked websocket connections are not tracked by net/http.
func (s *Server) Close() {
	s.closeOnce.Do(func() { close(s.closing) })
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.requestID, s.instrument)

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", observability.Handler()).Methods(http.MethodGet)

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.Use(s.rateLimit)

	v1.HandleFunc("/airdrop", s.handleAirdrop).Methods(http.MethodPost)
	v1.HandleFunc("/accounts", s.handleAccountsByOwner).Methods(http.MethodGet)
	v1.HandleFunc("/accounts/{address}", s.handleAccount).Methods(http.MethodGet)
	v1.HandleFunc("/transactions/{signature}", s.handleTransaction).Methods(http.MethodGet)
	v1.HandleFunc("/stream", s.handleStream).Methods(http.MethodGet)

	v1.HandleFunc("/token/create-mint", s.handleTokenCreateMint).Methods(http.MethodPost)
	v1.HandleFunc("/token/mint-to", s.handleTokenMintTo).Methods(http.MethodPost)
	v1.HandleFunc("/token/create-metadata", s.handleTokenCreateMetadata).Methods(http.MethodPost)
	v1.HandleFunc("/token/verify-collection", s.handleTokenVerifyCollection).Methods(http.MethodPost)
	v1.HandleFunc("/token/{mint}/balances/{owner}", s.handleTokenBalance).Methods(http.MethodGet)

	v1.HandleFunc("/escrow/make", s.handleEscrowMake).Methods(http.MethodPost)
	v1.HandleFunc("/escrow/take", s.handleEscrowTake).Methods(http.MethodPost)
	v1.HandleFunc("/escrow/refund", s.handleEscrowRefund).Methods(http.MethodPost)
	v1.HandleFunc("/escrow/{maker}/{seed:[0-9]+}", s.handleEscrowGet).Methods(http.MethodGet)

	v1.HandleFunc("/amm/initialize", s.handleAMMInitialize).Methods(http.MethodPost)
	v1.HandleFunc("/amm/deposit", s.handleAMMDeposit).Methods(http.MethodPost)
	v1.HandleFunc("/amm/withdraw", s.handleAMMWithdraw).Methods(http.MethodPost)
	v1.HandleFunc("/amm/swap", s.handleAMMSwap).Methods(http.MethodPost)
	v1.HandleFunc("/amm/lock", s.handleAMMLock(true)).Methods(http.MethodPost)
	v1.HandleFunc("/amm/unlock", s.handleAMMLock(false)).Methods(http.MethodPost)
	v1.HandleFunc("/amm/pools/{seed:[0-9]+}", s.handleAMMPool).Methods(http.MethodGet)

	v1.HandleFunc("/vault/initialize", s.handleVaultInitialize).Methods(http.MethodPost)
	v1.HandleFunc("/vault/deposit", s.handleVaultDeposit).Methods(http.MethodPost)
	v1.HandleFunc("/vault/withdraw", s.handleVaultWithdraw).Methods(http.MethodPost)
	v1.HandleFunc("/vault/close", s.handleVaultClose).Methods(http.MethodPost)
	v1.HandleFunc("/vault/{owner}", s.handleVaultGet).Methods(http.MethodGet)

	v1.HandleFunc("/staking/initialize-config", s.handleStakingInitializeConfig).Methods(http.MethodPost)
	v1.HandleFunc("/staking/initialize-user", s.handleStakingInitializeUser).Methods(http.MethodPost)
	v1.HandleFunc("/staking/stake", s.handleStakingStake).Methods(http.MethodPost)
	v1.HandleFunc("/staking/unstake", s.handleStakingUnstake).Methods(http.MethodPost)
	v1.HandleFunc("/staking/claim", s.handleStakingClaim).Methods(http.MethodPost)
	v1.HandleFunc("/staking/users/{user}", s.handleStakingUser).Methods(http.MethodGet)

	v1.HandleFunc("/marketplace/initialize", s.handleMarketplaceInitialize).Methods(http.MethodPost)
	v1.HandleFunc("/marketplace/set-fee", s.handleMarketplaceSetFee).Methods(http.MethodPost)
	v1.HandleFunc("/marketplace/list", s.handleMarketplaceList).Methods(http.MethodPost)
	v1.HandleFunc("/marketplace/delist", s.handleMarketplaceDelist).Methods(http.MethodPost)
	v1.HandleFunc("/marketplace/purchase", s.handleMarketplacePurchase).Methods(http.MethodPost)
	v1.HandleFunc("/marketplace/listings/{address}", s.handleMarketplaceListing).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, r, errNotFound("no route for %s", r.URL.Path))
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"slot":   s.ledger.Slot(),
		"time":   time.Unix(s.ledger.Now(), 0).UTC().Format(time.RFC3339),
	})
}
