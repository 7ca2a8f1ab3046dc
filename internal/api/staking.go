package api

import (
	"net/http"

	"solana-custody-lab/internal/pda"
	"solana-custody-lab/internal/programs/staking"
)

type stakingConfigRequest struct {
	Admin          pda.Address `json:"admin" validate:"required"`
	PointsPerStake uint64      `json:"points_per_stake"`
	MaxStake       uint8       `json:"max_stake"`
	FreezePeriod   int64       `json:"freeze_period"`
}

type stakingRequest struct {
	User pda.Address `json:"user" validate:"required"`
	// Mint is the staked NFT. Unused by initialize-user and claim.
	Mint pda.Address `json:"mint"`
}

func (s *Server) handleStakingInitializeConfig(w http.ResponseWriter, r *http.Request) {
	var req stakingConfigRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	acc := staking.Derive(req.Admin, pda.Zero)
	receipt, err := s.programs.Staking.InitializeConfig(r.Context(), req.Admin, acc, req.PointsPerStake, req.MaxStake, req.FreezePeriod)
	s.submit(w, r, acc, receipt, err)
}

func (s *Server) handleStakingInitializeUser(w http.ResponseWriter, r *http.Request) {
	var req stakingRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	acc := staking.Derive(req.User, pda.Zero)
	receipt, err := s.programs.Staking.InitializeUser(r.Context(), acc)
	s.submit(w, r, acc, receipt, err)
}

func (s *Server) handleStakingStake(w http.ResponseWriter, r *http.Request) {
	var req stakingRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Mint.IsZero() {
		s.writeError(w, r, errBadRequest("mint is required"))
		return
	}
	acc := staking.Derive(req.User, req.Mint)
	receipt, err := s.programs.Staking.Stake(r.Context(), acc)
	s.submit(w, r, acc, receipt, err)
}

func (s *Server) handleStakingUnstake(w http.ResponseWriter, r *http.Request) {
	var req stakingRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Mint.IsZero() {
		s.writeError(w, r, errBadRequest("mint is required"))
		return
	}
	acc := staking.Derive(req.User, req.Mint)
	receipt, err := s.programs.Staking.Unstake(r.Context(), acc)
	s.submit(w, r, acc, receipt, err)
}

func (s *Server) handleStakingClaim(w http.ResponseWriter, r *http.Request) {
	var req stakingRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	acc := staking.Derive(req.User, pda.Zero)
	receipt, err := s.programs.Staking.ClaimRewards(r.Context(), acc)
	s.submit(w, r, acc, receipt, err)
}

func (s *Server) handleStakingUser(w http.ResponseWriter, r *http.Request) {
	user, err := pathAddress(r, "user")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	acc := staking.Derive(user, pda.Zero)
	u, ok := s.programs.Staking.User(acc)
	if !ok {
		s.writeError(w, r, errNotFound("staking account of %s does not exist", user))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"address": acc.UserAccount,
		"user":    u,
	})
}
