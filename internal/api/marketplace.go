package api

import (
	"net/http"

	"solana-custody-lab/internal/pda"
	"solana-custody-lab/internal/programs/marketplace"
)

type marketplaceInitializeRequest struct {
	Admin pda.Address `json:"admin" validate:"required"`
	Fee   uint16      `json:"fee"`
}

type marketplaceSetFeeRequest struct {
	Caller pda.Address `json:"caller" validate:"required"`
	Fee    uint16      `json:"fee"`
}

type marketplaceListRequest struct {
	Seller     pda.Address `json:"seller" validate:"required"`
	Mint       pda.Address `json:"mint" validate:"required"`
	Collection pda.Address `json:"collection" validate:"required"`
	Price      uint64      `json:"price"`
}

type marketplaceDelistRequest struct {
	Seller pda.Address `json:"seller" validate:"required"`
	Mint   pda.Address `json:"mint" validate:"required"`
	// Caller defaults to the seller.
	Caller pda.Address `json:"caller"`
}

type marketplacePurchaseRequest struct {
	Buyer  pda.Address `json:"buyer" validate:"required"`
	Seller pda.Address `json:"seller" validate:"required"`
	Mint   pda.Address `json:"mint" validate:"required"`
}

func (s *Server) handleMarketplaceInitialize(w http.ResponseWriter, r *http.Request) {
	var req marketplaceInitializeRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	acc := marketplace.Derive(req.Admin, pda.Zero, pda.Zero, pda.Zero)
	receipt, err := s.programs.Marketplace.Initialize(r.Context(), req.Admin, acc, req.Fee)
	s.submit(w, r, acc, receipt, err)
}

func (s *Server) handleMarketplaceSetFee(w http.ResponseWriter, r *http.Request) {
	var req marketplaceSetFeeRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	acc := marketplace.Derive(req.Caller, pda.Zero, pda.Zero, pda.Zero)
	receipt, err := s.programs.Marketplace.SetFee(r.Context(), req.Caller, acc, req.Fee)
	s.submit(w, r, acc, receipt, err)
}

func (s *Server) handleMarketplaceList(w http.ResponseWriter, r *http.Request) {
	var req marketplaceListRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	acc := marketplace.Derive(req.Seller, pda.Zero, req.Mint, req.Collection)
	receipt, err := s.programs.Marketplace.List(r.Context(), acc, req.Price)
	s.submit(w, r, acc, receipt, err)
}

func (s *Server) handleMarketplaceDelist(w http.ResponseWriter, r *http.Request) {
	var req marketplaceDelistRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	caller := req.Caller
	if caller.IsZero() {
		caller = req.Seller
	}
	acc := marketplace.Derive(req.Seller, pda.Zero, req.Mint, pda.Zero)
	receipt, err := s.programs.Marketplace.Delist(r.Context(), caller, acc)
	s.submit(w, r, acc, receipt, err)
}

func (s *Server) handleMarketplacePurchase(w http.ResponseWriter, r *http.Request) {
	var req marketplacePurchaseRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	acc := marketplace.Derive(req.Seller, req.Buyer, req.Mint, pda.Zero)
	receipt, err := s.programs.Marketplace.Purchase(r.Context(), acc)
	s.submit(w, r, acc, receipt, err)
}

func (s *Server) handleMarketplaceListing(w http.ResponseWriter, r *http.Request) {
	addr, err := pathAddress(r, "address")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	l, ok := s.programs.Marketplace.Listing(addr)
	if !ok {
		s.writeError(w, r, errNotFound("listing %s does not exist", addr))
		return
	}
	writeJSON(w, http.StatusOK, l)
}
