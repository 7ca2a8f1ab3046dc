package api

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"net/http"

	"solana-custody-lab/internal/ledger"
	"solana-custody-lab/internal/pda"
	"solana-custody-lab/internal/token"
)

type createMintRequest struct {
	Authority pda.Address `json:"authority" validate:"required"`
	Decimals  uint8       `json:"decimals"`
}

type mintToRequest struct {
	Mint      pda.Address `json:"mint" validate:"required"`
	Authority pda.Address `json:"authority" validate:"required"`
	Owner     pda.Address `json:"owner" validate:"required"`
	Amount    uint64      `json:"amount" validate:"gt=0"`
}

type createMetadataRequest struct {
	Mint            pda.Address  `json:"mint" validate:"required"`
	Authority       pda.Address  `json:"authority" validate:"required"`
	Name            string       `json:"name" validate:"required,max=32"`
	Symbol          string       `json:"symbol" validate:"max=10"`
	URI             string       `json:"uri" validate:"max=200"`
	UpdateAuthority *pda.Address `json:"update_authority"`
	Collection      *pda.Address `json:"collection"`
}

type verifyCollectionRequest struct {
	Mint       pda.Address `json:"mint" validate:"required"`
	Collection pda.Address `json:"collection" validate:"required"`
	Authority  pda.Address `json:"authority" validate:"required"`
}

// TokenBalanceResponse is the associated token account of an owner for a mint.
type TokenBalanceResponse struct {
	Account pda.Address `json:"account"`
	Amount  uint64      `json:"amount"`
}

// newMintKey returns a fresh keypair address. The private half is dropped: a
// mint only signs its own creation.
func newMintKey() (pda.Address, error) {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return pda.Zero, fmt.Errorf("generate mint key: %w", err)
	}
	return pda.AddressFromBytes(pub)
}

func (s *Server) handleTokenCreateMint(w http.ResponseWriter, r *http.Request) {
	var req createMintRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	mint, err := newMintKey()
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	receipt, err := s.ledger.Execute(r.Context(), ledger.Instruction{
		Program:  token.ProgramID,
		Name:     "create_mint",
		Signers:  []pda.Address{req.Authority, mint},
		Writable: []pda.Address{req.Authority, mint},
	}, func(tx *ledger.Tx) error {
		return token.CreateMint(tx, req.Authority, mint, req.Authority, req.Decimals)
	})
	s.submit(w, r, map[string]pda.Address{"mint": mint}, receipt, err)
}

func (s *Server) handleTokenMintTo(w http.ResponseWriter, r *http.Request) {
	var req mintToRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	ata := token.AssociatedAddress(req.Owner, req.Mint)

	receipt, err := s.ledger.Execute(r.Context(), ledger.Instruction{
		Program:  token.ProgramID,
		Name:     "mint_to",
		Signers:  []pda.Address{req.Authority},
		Writable: []pda.Address{req.Authority, req.Mint, ata},
	}, func(tx *ledger.Tx) error {
		if _, err := token.EnsureAssociated(tx, req.Authority, req.Owner, req.Mint); err != nil {
			return err
		}
		return token.MintTo(tx, req.Mint, ata, req.Authority, req.Amount)
	})
	s.submit(w, r, map[string]pda.Address{"account": ata}, receipt, err)
}

func (s *Server) handleTokenCreateMetadata(w http.ResponseWriter, r *http.Request) {
	var req createMetadataRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	update := req.Authority
	if req.UpdateAuthority != nil {
		update = *req.UpdateAuthority
	}
	md := token.MetadataAddress(req.Mint)

	receipt, err := s.ledger.Execute(r.Context(), ledger.Instruction{
		Program:  token.MetadataProgramID,
		Name:     "create_metadata",
		Signers:  []pda.Address{req.Authority},
		Writable: []pda.Address{req.Authority, md},
	}, func(tx *ledger.Tx) error {
		return token.CreateMetadata(tx, req.Authority, req.Mint, req.Authority, token.MetadataArgs{
			Name:            req.Name,
			Symbol:          req.Symbol,
			URI:             req.URI,
			UpdateAuthority: update,
			Collection:      req.Collection,
		})
	})
	s.submit(w, r, map[string]pda.Address{"metadata": md}, receipt, err)
}

func (s *Server) handleTokenVerifyCollection(w http.ResponseWriter, r *http.Request) {
	var req verifyCollectionRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	md := token.MetadataAddress(req.Mint)

	receipt, err := s.ledger.Execute(r.Context(), ledger.Instruction{
		Program:  token.MetadataProgramID,
		Name:     "verify_collection",
		Signers:  []pda.Address{req.Authority},
		Writable: []pda.Address{md},
	}, func(tx *ledger.Tx) error {
		return token.VerifyCollection(tx, req.Mint, req.Collection, req.Authority)
	})
	s.submit(w, r, map[string]pda.Address{"metadata": md}, receipt, err)
}

func (s *Server) handleTokenBalance(w http.ResponseWriter, r *http.Request) {
	mint, err := pathAddress(r, "mint")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	owner, err := pathAddress(r, "owner")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp := TokenBalanceResponse{Account: token.AssociatedAddress(owner, mint)}
	if a, ok := s.ledger.Account(resp.Account); ok {
		ta, ok := a.State.(*token.Account)
		if !ok {
			s.writeError(w, r, errBadRequest("%s is not a token account", resp.Account))
			return
		}
		resp.Amount = ta.Amount
	}
	writeJSON(w, http.StatusOK, resp)
}
