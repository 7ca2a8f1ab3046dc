package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"solana-custody-lab/internal/ledger"
	"solana-custody-lab/internal/pda"
)

type airdropRequest struct {
	Address  pda.Address `json:"address" validate:"required"`
	Lamports uint64      `json:"lamports"`
}

// AccountResponse is the public view of one account.
type AccountResponse struct {
	Address  string          `json:"address"`
	Owner    string          `json:"owner"`
	Program  string          `json:"program"`
	Lamports uint64          `json:"lamports"`
	Kind     string          `json:"kind,omitempty"`
	Data     json.RawMessage `json:"data,omitempty"`
}

func (s *Server) accountResponse(a *ledger.Account) (AccountResponse, error) {
	rec, err := ledger.EncodeAccount(a, s.ledger.Slot())
	if err != nil {
		return AccountResponse{}, err
	}
	return AccountResponse{
		Address:  rec.Address,
		Owner:    rec.Owner,
		Program:  ledger.ProgramName(a.Owner),
		Lamports: rec.Lamports,
		Kind:     rec.Kind,
		Data:     rec.Data,
	}, nil
}

func (s *Server) handleAirdrop(w http.ResponseWriter, r *http.Request) {
	var req airdropRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	receipt, err := s.ledger.Airdrop(r.Context(), req.Address, req.Lamports)
	s.submit(w, r, nil, receipt, err)
}

func (s *Server) handleAccount(w http.ResponseWriter, r *http.Request) {
	addr, err := pathAddress(r, "address")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	a, ok := s.ledger.Account(addr)
	if !ok {
		s.writeError(w, r, errNotFound("account %s does not exist", addr))
		return
	}
	resp, err := s.accountResponse(a)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAccountsByOwner(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("owner")
	if raw == "" {
		s.writeError(w, r, errBadRequest("owner query parameter is required"))
		return
	}
	owner, err := pda.ParseAddress(raw)
	if err != nil {
		s.writeError(w, r, errBadRequest("owner: %v", err))
		return
	}

	accounts := s.ledger.AccountsByOwner(owner)
	out := make([]AccountResponse, 0, len(accounts))
	for _, a := range accounts {
		resp, err := s.accountResponse(a)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		out = append(out, resp)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleTransaction(w http.ResponseWriter, r *http.Request) {
	sig := mux.Vars(r)["signature"]
	if s.events == nil {
		s.writeError(w, r, errNotFound("transaction log is disabled"))
		return
	}
	e, err := s.events.GetBySignature(r.Context(), sig)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func pathAddress(r *http.Request, name string) (pda.Address, error) {
	addr, err := pda.ParseAddress(mux.Vars(r)[name])
	if err != nil {
		return pda.Zero, errBadRequest("%s: %v", name, err)
	}
	return addr, nil
}

func pathUint(r *http.Request, name string) (uint64, error) {
	v, err := strconv.ParseUint(mux.Vars(r)[name], 10, 64)
	if err != nil {
		return 0, errBadRequest("%s: %v", name, err)
	}
	return v, nil
}
