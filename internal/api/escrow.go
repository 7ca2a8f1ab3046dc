package api

import (
	"net/http"

	"solana-custody-lab/internal/pda"
	"solana-custody-lab/internal/programs/escrow"
	"solana-custody-lab/internal/protocol"
)

type escrowMakeRequest struct {
	Maker   pda.Address `json:"maker" validate:"required"`
	MintA   pda.Address `json:"mint_a" validate:"required"`
	MintB   pda.Address `json:"mint_b" validate:"required"`
	Seed    uint64      `json:"seed"`
	Deposit uint64      `json:"deposit"`
	Receive uint64      `json:"receive"`
}

type escrowTakeRequest struct {
	Maker pda.Address `json:"maker" validate:"required"`
	Taker pda.Address `json:"taker" validate:"required"`
	Seed  uint64      `json:"seed"`
}

type escrowRefundRequest struct {
	Maker pda.Address `json:"maker" validate:"required"`
	Seed  uint64      `json:"seed"`
	// Caller defaults to the maker.
	Caller pda.Address `json:"caller"`
}

// escrowAccounts resolves the mints of an open escrow.
func (s *Server) escrowAccounts(maker, taker pda.Address, seed uint64) (escrow.Accounts, error) {
	rec, ok := s.programs.Escrow.Lookup(escrow.Address(maker, seed).Address)
	if !ok {
		return escrow.Accounts{}, protocol.Errorf(protocol.ErrRecordNotFound, "escrow of %s with seed %d", maker, seed)
	}
	return escrow.Derive(maker, taker, rec.MintA, rec.MintB, seed), nil
}

func (s *Server) handleEscrowMake(w http.ResponseWriter, r *http.Request) {
	var req escrowMakeRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	acc := escrow.Derive(req.Maker, pda.Zero, req.MintA, req.MintB, req.Seed)
	receipt, err := s.programs.Escrow.Make(r.Context(), acc, req.Seed, req.Deposit, req.Receive)
	s.submit(w, r, acc, receipt, err)
}

func (s *Server) handleEscrowTake(w http.ResponseWriter, r *http.Request) {
	var req escrowTakeRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	acc, err := s.escrowAccounts(req.Maker, req.Taker, req.Seed)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	receipt, err := s.programs.Escrow.Take(r.Context(), acc)
	s.submit(w, r, acc, receipt, err)
}

func (s *Server) handleEscrowRefund(w http.ResponseWriter, r *http.Request) {
	var req escrowRefundRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	caller := req.Caller
	if caller.IsZero() {
		caller = req.Maker
	}
	acc, err := s.escrowAccounts(req.Maker, pda.Zero, req.Seed)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	receipt, err := s.programs.Escrow.Refund(r.Context(), caller, acc)
	s.submit(w, r, acc, receipt, err)
}

func (s *Server) handleEscrowGet(w http.ResponseWriter, r *http.Request) {
	maker, err := pathAddress(r, "maker")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	seed, err := pathUint(r, "seed")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	addr := escrow.Address(maker, seed).Address
	rec, ok := s.programs.Escrow.Lookup(addr)
	if !ok {
		s.writeError(w, r, protocol.Errorf(protocol.ErrRecordNotFound, "escrow of %s with seed %d", maker, seed))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"address": addr,
		"escrow":  rec,
	})
}
