package api

import (
	"net/http"

	"solana-custody-lab/internal/pda"
	"solana-custody-lab/internal/programs/vault"
)

type vaultRequest struct {
	Owner  pda.Address `json:"owner" validate:"required"`
	Amount uint64      `json:"amount"`
}

func (s *Server) handleVaultInitialize(w http.ResponseWriter, r *http.Request) {
	var req vaultRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	acc := vault.Derive(req.Owner)
	receipt, err := s.programs.Vault.Initialize(r.Context(), acc)
	s.submit(w, r, acc, receipt, err)
}

func (s *Server) handleVaultDeposit(w http.ResponseWriter, r *http.Request) {
	var req vaultRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	acc := vault.Derive(req.Owner)
	receipt, err := s.programs.Vault.Deposit(r.Context(), acc, req.Amount)
	s.submit(w, r, acc, receipt, err)
}

func (s *Server) handleVaultWithdraw(w http.ResponseWriter, r *http.Request) {
	var req vaultRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	acc := vault.Derive(req.Owner)
	receipt, err := s.programs.Vault.Withdraw(r.Context(), acc, req.Amount)
	s.submit(w, r, acc, receipt, err)
}

func (s *Server) handleVaultClose(w http.ResponseWriter, r *http.Request) {
	var req vaultRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	acc := vault.Derive(req.Owner)
	receipt, err := s.programs.Vault.Close(r.Context(), acc)
	s.submit(w, r, acc, receipt, err)
}

func (s *Server) handleVaultGet(w http.ResponseWriter, r *http.Request) {
	owner, err := pathAddress(r, "owner")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	acc := vault.Derive(owner)
	if _, ok := s.ledger.Account(acc.State); !ok {
		s.writeError(w, r, errNotFound("vault of %s does not exist", owner))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"state":   acc.State,
		"vault":   acc.Vault,
		"balance": s.programs.Vault.Balance(acc),
	})
}
