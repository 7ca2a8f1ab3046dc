package api

import (
	"net/http"

	"solana-custody-lab/internal/pda"
	"solana-custody-lab/internal/programs/amm"
)

type ammInitializeRequest struct {
	User  pda.Address `json:"user" validate:"required"`
	MintX pda.Address `json:"mint_x" validate:"required"`
	MintY pda.Address `json:"mint_y" validate:"required"`
	Seed  uint64      `json:"seed"`
	Fee   uint16      `json:"fee"`
	// Authority may lock the pool. Omit for an immutable pool.
	Authority *pda.Address `json:"authority"`
}

type ammLiquidityRequest struct {
	User   pda.Address `json:"user" validate:"required"`
	Seed   uint64      `json:"seed"`
	Amount uint64      `json:"amount"`
	// Deposit reads these as maxima, withdraw as minima.
	X uint64 `json:"x"`
	Y uint64 `json:"y"`
}

type ammSwapRequest struct {
	User     pda.Address `json:"user" validate:"required"`
	Seed     uint64      `json:"seed"`
	XToY     bool        `json:"x_to_y"`
	AmountIn uint64      `json:"amount_in"`
	MinOut   uint64      `json:"min_out"`
}

type ammLockRequest struct {
	Caller pda.Address `json:"caller" validate:"required"`
	Seed   uint64      `json:"seed"`
}

// PoolResponse is the public view of a pool.
type PoolResponse struct {
	Address  pda.Address `json:"address"`
	Config   amm.Config  `json:"config"`
	ReserveX uint64      `json:"reserve_x"`
	ReserveY uint64      `json:"reserve_y"`
	Supply   uint64      `json:"lp_supply"`
}

// ammAccounts resolves the mints of an existing pool.
func (s *Server) ammAccounts(user pda.Address, seed uint64) (amm.Accounts, error) {
	pool, err := s.programs.AMM.Pool(amm.ConfigAddress(seed).Address)
	if err != nil {
		return amm.Accounts{}, err
	}
	return amm.Derive(user, pool.Config.MintX, pool.Config.MintY, seed), nil
}

func (s *Server) handleAMMInitialize(w http.ResponseWriter, r *http.Request) {
	var req ammInitializeRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	acc := amm.Derive(req.User, req.MintX, req.MintY, req.Seed)
	receipt, err := s.programs.AMM.Initialize(r.Context(), acc, req.Seed, req.Fee, req.Authority)
	s.submit(w, r, acc, receipt, err)
}

func (s *Server) handleAMMDeposit(w http.ResponseWriter, r *http.Request) {
	var req ammLiquidityRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	acc, err := s.ammAccounts(req.User, req.Seed)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	receipt, err := s.programs.AMM.Deposit(r.Context(), acc, req.Amount, req.X, req.Y)
	s.submit(w, r, acc, receipt, err)
}

func (s *Server) handleAMMWithdraw(w http.ResponseWriter, r *http.Request) {
	var req ammLiquidityRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	acc, err := s.ammAccounts(req.User, req.Seed)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	receipt, err := s.programs.AMM.Withdraw(r.Context(), acc, req.Amount, req.X, req.Y)
	s.submit(w, r, acc, receipt, err)
}

func (s *Server) handleAMMSwap(w http.ResponseWriter, r *http.Request) {
	var req ammSwapRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	acc, err := s.ammAccounts(req.User, req.Seed)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	receipt, err := s.programs.AMM.Swap(r.Context(), acc, req.XToY, req.AmountIn, req.MinOut)
	s.submit(w, r, acc, receipt, err)
}

func (s *Server) handleAMMLock(locked bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ammLockRequest
		if err := s.decode(r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
		acc, err := s.ammAccounts(req.Caller, req.Seed)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		set := s.programs.AMM.Unlock
		if locked {
			set = s.programs.AMM.Lock
		}
		receipt, err := set(r.Context(), req.Caller, acc)
		s.submit(w, r, acc, receipt, err)
	}
}

func (s *Server) handleAMMPool(w http.ResponseWriter, r *http.Request) {
	seed, err := pathUint(r, "seed")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	addr := amm.ConfigAddress(seed).Address
	pool, err := s.programs.AMM.Pool(addr)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, PoolResponse{
		Address:  addr,
		Config:   pool.Config,
		ReserveX: pool.ReserveX,
		ReserveY: pool.ReserveY,
		Supply:   pool.Supply,
	})
}
