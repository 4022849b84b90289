package mining

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// ModuleName identifies the mining module for pause toggles and telemetry.
const ModuleName = "mining"

const (
	// TargetKindTreasury marks contributions paid straight into the treasury.
	TargetKindTreasury = "treasury"
	// TargetKindCommunity marks contributions routed through a community.
	TargetKindCommunity = "community"
)

// RewardPeriod is one contiguous span of blocks over which contributions and
// stake are aggregated. Per-contributor amounts and stake snapshots are kept
// by the state backend under (period, contributor) keys.
type RewardPeriod struct {
	Number               uint64
	StartBlock           uint64
	EndBlock             uint64
	RewardPerBlock       *big.Int
	RewardAmount         *big.Int
	DonationsAmount      *big.Int
	StakesAmount         *big.Int
	StakingDonationRatio uint64
	WindowSize           uint64
}

// Clone returns a deep copy of the period.
func (p *RewardPeriod) Clone() *RewardPeriod {
	if p == nil {
		return nil
	}
	out := *p
	out.RewardPerBlock = copyBig(p.RewardPerBlock)
	out.RewardAmount = copyBig(p.RewardAmount)
	out.DonationsAmount = copyBig(p.DonationsAmount)
	out.StakesAmount = copyBig(p.StakesAmount)
	return &out
}

// Length returns the number of blocks covered by the period.
func (p *RewardPeriod) Length() uint64 {
	if p == nil || p.EndBlock < p.StartBlock {
		return 0
	}
	return p.EndBlock - p.StartBlock + 1
}

// Contributor is the per-address settlement ledger entry.
type Contributor struct {
	Initialized       bool
	LastSettledPeriod uint64
	// ParticipatedPeriods lists, without duplicates and in ascending order,
	// the periods the contributor donated in. Settlement does not depend on it.
	ParticipatedPeriods []uint64
	LastStake           *big.Int
	LastStakePeriod     uint64
}

// Clone returns a deep copy of the contributor entry.
func (c *Contributor) Clone() *Contributor {
	if c == nil {
		return nil
	}
	out := *c
	out.ParticipatedPeriods = append([]uint64(nil), c.ParticipatedPeriods...)
	out.LastStake = copyBig(c.LastStake)
	return &out
}

func (c *Contributor) recordParticipation(period uint64) {
	n := len(c.ParticipatedPeriods)
	if n > 0 && c.ParticipatedPeriods[n-1] == period {
		return
	}
	c.ParticipatedPeriods = append(c.ParticipatedPeriods, period)
}

// Contribution is an immutable, append-only donation record.
type Contribution struct {
	ID          uint64
	Contributor common.Address
	Target      common.Address
	TargetKind  string
	Period      uint64
	Block       uint64
	Amount      *big.Int
	Asset       string
	RawAmount   *big.Int
}

// Clone returns a deep copy of the record.
func (c *Contribution) Clone() *Contribution {
	if c == nil {
		return nil
	}
	out := *c
	out.Amount = copyBig(c.Amount)
	out.RawAmount = copyBig(c.RawAmount)
	return &out
}

// ContributionRequest describes an incoming donation. A zero Target (or the
// configured treasury account) routes the value to the treasury; any other
// Target is treated as a community. A zero Payer defaults to Contributor.
type ContributionRequest struct {
	Payer       common.Address
	Contributor common.Address
	Target      common.Address
	Asset       string
	Amount      *big.Int
	// Admit, when set, sees the period and normalized value before custody
	// moves. An error rejects the contribution.
	Admit func(period uint64, normalized *big.Int) error
}

// SettlementMode labels how settled reward leaves the ledger.
type SettlementMode string

const (
	ModeClaim        SettlementMode = "claim"
	ModeClaimPartial SettlementMode = "claim_partial"
	ModeStake        SettlementMode = "stake"
	ModeStakePartial SettlementMode = "stake_partial"
)

func (m SettlementMode) staking() bool {
	return m == ModeStake || m == ModeStakePartial
}

// Settlement is the outcome of settling periods (From, To] for a contributor.
// Shortfall is the owed reward that could not be paid because the reward
// balance was insufficient; it is forfeited once the cursor has moved.
type Settlement struct {
	Contributor common.Address
	Mode        SettlementMode
	From        uint64
	To          uint64
	Owed        *big.Int
	Paid        *big.Int
	Shortfall   *big.Int
}

// WindowTotals are a contributor's and the ledger's summed contributions over
// the trailing window ending at Period.
type WindowTotals struct {
	Period      uint64
	WindowStart uint64
	DonorAmount *big.Int
	TotalAmount *big.Int
}

// Estimate is a read-only projection; nothing is persisted while computing it.
type Estimate struct {
	Contributor common.Address
	From        uint64
	To          uint64
	Periods     uint64
	Reward      *big.Int
	Payable     *big.Int
}

func copyBig(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

func minBig(a, b *big.Int) *big.Int {
	if a.Cmp(b) <= 0 {
		return new(big.Int).Set(a)
	}
	return new(big.Int).Set(b)
}
