package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"

	"contribmine/native/mining"
	"contribmine/observability"
	"contribmine/observability/logging"
)

func (s *Server) handleParams(w http.ResponseWriter, r *http.Request) {
	params, err := s.engine.Params(r.Context())
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newParamsView(params))
}

func (s *Server) handleCurrentPeriod(w http.ResponseWriter, r *http.Request) {
	period, err := s.engine.CurrentPeriod(r.Context())
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newPeriodView(period))
}

func (s *Server) handlePeriod(w http.ResponseWriter, r *http.Request) {
	number, err := parseUint("period", chi.URLParam(r, "n"))
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	period, err := s.engine.Period(r.Context(), number)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newPeriodView(period))
}

func (s *Server) handlePeriodContributor(w http.ResponseWriter, r *http.Request) {
	number, err := parseUint("period", chi.URLParam(r, "n"))
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	addr, err := parseAddress("address", chi.URLParam(r, "addr"))
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	donated, err := s.engine.PeriodDonorAmount(r.Context(), number, addr)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	stake, recorded, err := s.engine.PeriodDonorStake(r.Context(), number, addr)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"period":        number,
		"contributor":   addr.Hex(),
		"donorAmount":   amount(donated),
		"stake":         amount(stake),
		"stakeRecorded": recorded,
	})
}

func (s *Server) handleContributor(w http.ResponseWriter, r *http.Request) {
	addr, err := parseAddress("address", chi.URLParam(r, "addr"))
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	contributor, err := s.engine.Contributor(r.Context(), addr)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	if contributor == nil {
		s.writeFailure(w, fmt.Errorf("%w: %s", mining.ErrUnknownContributor, addr.Hex()))
		return
	}
	periods := contributor.ParticipatedPeriods
	if periods == nil {
		periods = []uint64{}
	}
	writeJSON(w, http.StatusOK, contributorView{
		Address:             addr.Hex(),
		Initialized:         contributor.Initialized,
		LastSettledPeriod:   contributor.LastSettledPeriod,
		ParticipatedPeriods: periods,
		LastStake:           amount(contributor.LastStake),
		LastStakePeriod:     contributor.LastStakePeriod,
	})
}

func (s *Server) handleWindow(w http.ResponseWriter, r *http.Request) {
	addr, err := parseAddress("address", chi.URLParam(r, "addr"))
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	number, err := queryUint(r, "period", 0)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	if number == 0 {
		current, err := s.engine.CurrentPeriod(r.Context())
		if err != nil {
			s.writeFailure(w, err)
			return
		}
		number = current.Number
	}
	totals, err := s.engine.WindowTotals(r.Context(), addr, number)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, windowView{
		Period:      totals.Period,
		WindowStart: totals.WindowStart,
		DonorAmount: amount(totals.DonorAmount),
		TotalAmount: amount(totals.TotalAmount),
	})
}

func (s *Server) handleClaimable(w http.ResponseWriter, r *http.Request) {
	addr, err := parseAddress("address", chi.URLParam(r, "addr"))
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	est, err := s.engine.EstimateClaimable(r.Context(), addr)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newEstimateView(est))
}

func (s *Server) handleEstimate(w http.ResponseWriter, r *http.Request) {
	addr, err := parseAddress("address", chi.URLParam(r, "addr"))
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	periods, err := queryUint(r, "periods", 1)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	est, err := s.engine.EstimateReward(r.Context(), addr, periods)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newEstimateView(est))
}

func (s *Server) handleAPR(w http.ResponseWriter, r *http.Request) {
	addr, err := parseAddress("address", chi.URLParam(r, "addr"))
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	bps, err := s.engine.APR(r.Context(), addr)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"holder": addr.Hex(), "aprBps": amount(bps)})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusServiceUnavailable, "history index unavailable")
		return
	}
	addr, err := parseAddress("address", chi.URLParam(r, "addr"))
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	limit, err := queryUint(r, "limit", 100)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	contributions, settlements, err := s.history.History(r.Context(), addr.Hex(), int(limit))
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, historyView{Contributor: addr.Hex(), Contributions: contributions, Settlements: settlements})
}

func (s *Server) handleContribution(w http.ResponseWriter, r *http.Request) {
	id, err := parseUint("id", chi.URLParam(r, "id"))
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	record, err := s.engine.Contribution(r.Context(), id)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newContributionView(record))
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	if s.balances == nil {
		writeError(w, http.StatusServiceUnavailable, "balances unavailable")
		return
	}
	addr, err := parseAddress("address", chi.URLParam(r, "addr"))
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	asset := mining.NormalizeAsset(chi.URLParam(r, "asset"))
	balance, err := s.balances.BalanceOf(asset, addr)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"account": addr.Hex(), "asset": asset, "balance": amount(balance)})
}

func (s *Server) handleStakePosition(w http.ResponseWriter, r *http.Request) {
	if s.staking == nil {
		s.writeFailure(w, mining.ErrStakingUnavailable)
		return
	}
	addr, err := parseAddress("address", chi.URLParam(r, "addr"))
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	position, total, err := s.staking.Totals(addr)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"holder": addr.Hex(), "position": amount(position), "total": amount(total)})
}

type contributeRequest struct {
	Payer       string `json:"payer"`
	Contributor string `json:"contributor"`
	Community   string `json:"community"`
	Asset       string `json:"asset"`
	Amount      string `json:"amount"`
}

func (s *Server) handleContribute(w http.ResponseWriter, r *http.Request) {
	var req contributeRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeFailure(w, err)
		return
	}
	contributor, err := parseAddress("contributor", req.Contributor)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	payer := contributor
	if strings.TrimSpace(req.Payer) != "" {
		if payer, err = parseAddress("payer", req.Payer); err != nil {
			s.writeFailure(w, err)
			return
		}
	}
	var target common.Address
	if strings.TrimSpace(req.Community) != "" {
		if target, err = parseAddress("community", req.Community); err != nil {
			s.writeFailure(w, err)
			return
		}
	}
	value, err := parseAmount("amount", req.Amount)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	if !mayActFor(r.Context(), payer.Hex()) {
		writeError(w, http.StatusForbidden, "token may not spend for payer")
		return
	}
	var release func()
	record, err := s.engine.Contribute(r.Context(), mining.ContributionRequest{
		Payer:       payer,
		Contributor: contributor,
		Target:      target,
		Asset:       req.Asset,
		Amount:      value,
		Admit: func(period uint64, normalized *big.Int) error {
			undo, err := s.quota.reserve(contributor, period, normalized)
			if err != nil {
				return err
			}
			release = undo
			return nil
		},
	})
	if err != nil {
		if release != nil {
			release()
		}
		if isQuotaError(err) {
			observability.ModuleMetrics().RecordThrottle(moduleName, "quota")
		}
		s.writeFailure(w, err)
		return
	}
	s.logger.Info("contribution recorded",
		"id", record.ID,
		logging.MaskField("contributor", contributor.Hex()),
		"period", record.Period,
		"amount", amount(record.Amount))
	writeJSON(w, http.StatusCreated, newContributionView(record))
}

type claimRequest struct {
	Contributor string  `json:"contributor"`
	LastPeriod  *uint64 `json:"lastPeriod,omitempty"`
	Stake       bool    `json:"stake"`
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	var req claimRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeFailure(w, err)
		return
	}
	contributor, err := parseAddress("contributor", req.Contributor)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	if !mayActFor(r.Context(), contributor.Hex()) {
		writeError(w, http.StatusForbidden, "token may not claim for contributor")
		return
	}
	var settlement *mining.Settlement
	ctx := r.Context()
	switch {
	case req.Stake && req.LastPeriod != nil:
		settlement, err = s.engine.StakePartial(ctx, contributor, *req.LastPeriod)
	case req.Stake:
		settlement, err = s.engine.Stake(ctx, contributor)
	case req.LastPeriod != nil:
		settlement, err = s.engine.ClaimPartial(ctx, contributor, *req.LastPeriod)
	default:
		settlement, err = s.engine.Claim(ctx, contributor)
	}
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newSettlementView(settlement))
}

type stakeRequest struct {
	Holder string `json:"holder"`
	Amount string `json:"amount"`
}

func (s *Server) handleStake(w http.ResponseWriter, r *http.Request) {
	s.handleStakeChange(w, r, func(ctx context.Context, holder common.Address, value *big.Int) error {
		return s.staking.Stake(ctx, holder, value)
	})
}

func (s *Server) handleUnstake(w http.ResponseWriter, r *http.Request) {
	s.handleStakeChange(w, r, func(ctx context.Context, holder common.Address, value *big.Int) error {
		return s.staking.Unstake(ctx, holder, value)
	})
}

func (s *Server) handleStakeChange(w http.ResponseWriter, r *http.Request, apply func(context.Context, common.Address, *big.Int) error) {
	if s.staking == nil {
		s.writeFailure(w, mining.ErrStakingUnavailable)
		return
	}
	var req stakeRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeFailure(w, err)
		return
	}
	holder, err := parseAddress("holder", req.Holder)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	value, err := parseAmount("amount", req.Amount)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	if !mayActFor(r.Context(), holder.Hex()) {
		writeError(w, http.StatusForbidden, "token may not stake for holder")
		return
	}
	if err := apply(r.Context(), holder, value); err != nil {
		s.writeFailure(w, err)
		return
	}
	position, total, err := s.staking.Totals(holder)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"holder": holder.Hex(), "position": amount(position), "total": amount(total)})
}

type stakeNotification struct {
	Holders []string `json:"holders"`
	Amounts []string `json:"amounts"`
	Total   string   `json:"total"`
}

func (s *Server) handleStakeNotifications(w http.ResponseWriter, r *http.Request) {
	var req stakeNotification
	if err := decodeBody(r, &req); err != nil {
		s.writeFailure(w, err)
		return
	}
	total, err := parseAmount("total", req.Total)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	holders := make([]common.Address, 0, len(req.Holders))
	for i, raw := range req.Holders {
		addr, err := parseAddress("holders["+strconv.Itoa(i)+"]", raw)
		if err != nil {
			s.writeFailure(w, err)
			return
		}
		holders = append(holders, addr)
	}
	amounts := make([]*big.Int, 0, len(req.Amounts))
	for i, raw := range req.Amounts {
		value, err := parseAmount("amounts["+strconv.Itoa(i)+"]", raw)
		if err != nil {
			s.writeFailure(w, err)
			return
		}
		amounts = append(amounts, value)
	}
	if len(holders) == 1 && len(amounts) == 1 {
		err = s.engine.NotifyStake(r.Context(), holders[0], amounts[0], total)
	} else {
		err = s.engine.NotifyStakes(r.Context(), holders, amounts, total)
	}
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"applied": len(holders)})
}

type paramsUpdate struct {
	PeriodLength           *uint64 `json:"periodLength,omitempty"`
	DecayNumerator         *uint64 `json:"decayNumerator,omitempty"`
	DecayDenominator       *uint64 `json:"decayDenominator,omitempty"`
	ClaimDelay             *uint64 `json:"claimDelay,omitempty"`
	StakingDonationRatio   *uint64 `json:"stakingDonationRatio,omitempty"`
	CommunityDonationRatio *uint64 `json:"communityDonationRatio,omitempty"`
	WindowSize             *uint64 `json:"windowSize,omitempty"`
	BlocksPerYear          *uint64 `json:"blocksPerYear,omitempty"`
	TreasuryAccount        *string `json:"treasuryAccount,omitempty"`
	StakingAccount         *string `json:"stakingAccount,omitempty"`
}

// handleUpdateParams applies every supplied field in one engine scope so a
// rejected value leaves all parameters untouched.
func (s *Server) handleUpdateParams(w http.ResponseWriter, r *http.Request) {
	var req paramsUpdate
	if err := decodeBody(r, &req); err != nil {
		s.writeFailure(w, err)
		return
	}
	if (req.DecayNumerator == nil) != (req.DecayDenominator == nil) {
		s.writeFailure(w, fmt.Errorf("%w: decayNumerator and decayDenominator must be set together", errBadRequest))
		return
	}
	err := s.engine.Run(r.Context(), func(ctx context.Context) error {
		e := s.engine
		steps := []struct {
			set   bool
			apply func() error
		}{
			{req.PeriodLength != nil, func() error { return e.SetPeriodLength(ctx, *req.PeriodLength) }},
			{req.DecayNumerator != nil, func() error { return e.SetDecay(ctx, *req.DecayNumerator, *req.DecayDenominator) }},
			{req.ClaimDelay != nil, func() error { return e.SetClaimDelay(ctx, *req.ClaimDelay) }},
			{req.StakingDonationRatio != nil, func() error { return e.SetStakingDonationRatio(ctx, *req.StakingDonationRatio) }},
			{req.CommunityDonationRatio != nil, func() error { return e.SetCommunityDonationRatio(ctx, *req.CommunityDonationRatio) }},
			{req.WindowSize != nil, func() error { return e.SetWindowSize(ctx, *req.WindowSize) }},
			{req.BlocksPerYear != nil, func() error { return e.SetBlocksPerYear(ctx, *req.BlocksPerYear) }},
			{req.TreasuryAccount != nil, func() error {
				addr, err := parseAddress("treasuryAccount", *req.TreasuryAccount)
				if err != nil {
					return err
				}
				return e.SetTreasuryAccount(ctx, addr)
			}},
			{req.StakingAccount != nil, func() error {
				addr, err := parseAddress("stakingAccount", *req.StakingAccount)
				if err != nil {
					return err
				}
				return e.SetStakingAccount(ctx, addr)
			}},
		}
		for _, step := range steps {
			if !step.set {
				continue
			}
			if err := step.apply(); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	params, err := s.engine.Params(r.Context())
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newParamsView(params))
}

func (s *Server) handleAdvance(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Advance(r.Context()); err != nil {
		s.writeFailure(w, err)
		return
	}
	s.handleCurrentPeriod(w, r)
}

type pauseRequest struct {
	Module string `json:"module"`
	Paused bool   `json:"paused"`
}

func (s *Server) handlePauses(w http.ResponseWriter, r *http.Request) {
	if s.pauses == nil {
		writeError(w, http.StatusServiceUnavailable, "pauses unavailable")
		return
	}
	var req pauseRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeFailure(w, err)
		return
	}
	if strings.TrimSpace(req.Module) == "" {
		s.writeFailure(w, fmt.Errorf("%w: module required", errBadRequest))
		return
	}
	s.pauses.SetPaused(req.Module, req.Paused)
	s.logger.Warn("module pause toggled", "module", req.Module, "paused", req.Paused)
	writeJSON(w, http.StatusOK, map[string][]string{"paused": s.pauses.Paused()})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusServiceUnavailable, "history index unavailable")
		return
	}
	from, err := queryUint(r, "from", 0)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	to, err := queryUint(r, "to", 0)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	var buf bytes.Buffer
	rows, err := s.history.ExportContributions(r.Context(), &buf, from, to)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.apache.parquet")
	w.Header().Set("Content-Disposition", `attachment; filename="contributions.parquet"`)
	w.Header().Set("X-Row-Count", strconv.Itoa(rows))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Warn("write export", "error", err)
	}
}
