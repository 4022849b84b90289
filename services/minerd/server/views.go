package server

import (
	"math/big"
	"strings"

	"contribmine/native/mining"
	"contribmine/services/minerd/index"
)

type paramsView struct {
	PeriodLength           uint64 `json:"periodLength"`
	DecayNumerator         uint64 `json:"decayNumerator"`
	DecayDenominator       uint64 `json:"decayDenominator"`
	ClaimDelay             uint64 `json:"claimDelay"`
	StakingDonationRatio   uint64 `json:"stakingDonationRatio"`
	CommunityDonationRatio uint64 `json:"communityDonationRatio"`
	WindowSize             uint64 `json:"windowSize"`
	BlocksPerYear          uint64 `json:"blocksPerYear"`
	NativeAsset            string `json:"nativeAsset"`
	RewardAsset            string `json:"rewardAsset"`
	MinerAccount           string `json:"minerAccount"`
	TreasuryAccount        string `json:"treasuryAccount"`
	StakingAccount         string `json:"stakingAccount"`
}

func newParamsView(p *mining.Params) paramsView {
	return paramsView{
		PeriodLength:           p.PeriodLength,
		DecayNumerator:         p.DecayNumerator,
		DecayDenominator:       p.DecayDenominator,
		ClaimDelay:             p.ClaimDelay,
		StakingDonationRatio:   p.StakingDonationRatio,
		CommunityDonationRatio: p.CommunityDonationRatio,
		WindowSize:             p.WindowSize,
		BlocksPerYear:          p.BlocksPerYear,
		NativeAsset:            p.NativeAsset,
		RewardAsset:            p.RewardAsset,
		MinerAccount:           p.MinerAccount.Hex(),
		TreasuryAccount:        p.TreasuryAccount.Hex(),
		StakingAccount:         p.StakingAccount.Hex(),
	}
}

type periodView struct {
	Number               uint64 `json:"number"`
	StartBlock           uint64 `json:"startBlock"`
	EndBlock             uint64 `json:"endBlock"`
	RewardPerBlock       string `json:"rewardPerBlock"`
	RewardAmount         string `json:"rewardAmount"`
	DonationsAmount      string `json:"donationsAmount"`
	StakesAmount         string `json:"stakesAmount"`
	StakingDonationRatio uint64 `json:"stakingDonationRatio"`
	WindowSize           uint64 `json:"windowSize"`
}

func newPeriodView(p *mining.RewardPeriod) periodView {
	return periodView{
		Number:               p.Number,
		StartBlock:           p.StartBlock,
		EndBlock:             p.EndBlock,
		RewardPerBlock:       amount(p.RewardPerBlock),
		RewardAmount:         amount(p.RewardAmount),
		DonationsAmount:      amount(p.DonationsAmount),
		StakesAmount:         amount(p.StakesAmount),
		StakingDonationRatio: p.StakingDonationRatio,
		WindowSize:           p.WindowSize,
	}
}

type contributorView struct {
	Address             string   `json:"address"`
	Initialized         bool     `json:"initialized"`
	LastSettledPeriod   uint64   `json:"lastSettledPeriod"`
	ParticipatedPeriods []uint64 `json:"participatedPeriods"`
	LastStake           string   `json:"lastStake"`
	LastStakePeriod     uint64   `json:"lastStakePeriod"`
}

type contributionView struct {
	ID          uint64 `json:"id"`
	Contributor string `json:"contributor"`
	Target      string `json:"target"`
	TargetKind  string `json:"targetKind"`
	Period      uint64 `json:"period"`
	Block       uint64 `json:"block"`
	Amount      string `json:"amount"`
	Asset       string `json:"asset"`
	RawAmount   string `json:"rawAmount"`
}

func newContributionView(c *mining.Contribution) contributionView {
	return contributionView{
		ID:          c.ID,
		Contributor: c.Contributor.Hex(),
		Target:      c.Target.Hex(),
		TargetKind:  c.TargetKind,
		Period:      c.Period,
		Block:       c.Block,
		Amount:      amount(c.Amount),
		Asset:       c.Asset,
		RawAmount:   amount(c.RawAmount),
	}
}

type settlementView struct {
	Contributor string `json:"contributor"`
	Mode        string `json:"mode"`
	From        uint64 `json:"from"`
	To          uint64 `json:"to"`
	Owed        string `json:"owed"`
	Paid        string `json:"paid"`
	Shortfall   string `json:"shortfall"`
}

func newSettlementView(s *mining.Settlement) settlementView {
	return settlementView{
		Contributor: s.Contributor.Hex(),
		Mode:        string(s.Mode),
		From:        s.From,
		To:          s.To,
		Owed:        amount(s.Owed),
		Paid:        amount(s.Paid),
		Shortfall:   amount(s.Shortfall),
	}
}

type estimateView struct {
	Contributor string `json:"contributor"`
	From        uint64 `json:"from"`
	To          uint64 `json:"to"`
	Periods     uint64 `json:"periods"`
	Reward      string `json:"reward"`
	Payable     string `json:"payable"`
}

func newEstimateView(e *mining.Estimate) estimateView {
	return estimateView{
		Contributor: e.Contributor.Hex(),
		From:        e.From,
		To:          e.To,
		Periods:     e.Periods,
		Reward:      amount(e.Reward),
		Payable:     amount(e.Payable),
	}
}

type windowView struct {
	Period      uint64 `json:"period"`
	WindowStart uint64 `json:"windowStart"`
	DonorAmount string `json:"donorAmount"`
	TotalAmount string `json:"totalAmount"`
}

type historyView struct {
	Contributor   string                  `json:"contributor"`
	Contributions []index.ContributionRow `json:"contributions"`
	Settlements   []index.SettlementRow   `json:"settlements"`
}

func amount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
