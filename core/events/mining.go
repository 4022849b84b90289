package events

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"contribmine/core/types"
)

const (
	// TypeMiningPeriodCreated is emitted for every reward period materialised
	// during catch-up.
	TypeMiningPeriodCreated = "mining.period.created"
	// TypeMiningContributionRecorded is emitted once a contribution has been
	// normalised and posted into the current period.
	TypeMiningContributionRecorded = "mining.contribution.recorded"
	// TypeMiningStakeUpdated is emitted when the staking module reports a new
	// holder balance.
	TypeMiningStakeUpdated = "mining.stake.updated"
	// TypeMiningRewardSettled is emitted for every settlement that advanced a
	// contributor cursor, including settlements that paid nothing.
	TypeMiningRewardSettled = "mining.reward.settled"
	// TypeMiningRewardShortfall signals that the reward balance could not cover
	// the owed amount and the difference was forfeited.
	TypeMiningRewardShortfall = "mining.reward.shortfall"
	// TypeMiningParamsUpdated is emitted whenever a global parameter changes.
	TypeMiningParamsUpdated = "mining.params.updated"
)

// MiningPeriodCreated describes a freshly materialised reward period.
type MiningPeriodCreated struct {
	Period         uint64
	StartBlock     uint64
	EndBlock       uint64
	RewardPerBlock *big.Int
	RewardAmount   *big.Int
	Rollover       *big.Int
	WindowSize     uint64
}

// EventType satisfies the Event interface.
func (MiningPeriodCreated) EventType() string { return TypeMiningPeriodCreated }

// Event converts the payload into a broadcastable event.
func (e MiningPeriodCreated) Event() *types.Event {
	return &types.Event{
		Type: TypeMiningPeriodCreated,
		Attributes: map[string]string{
			"period":         formatUint(e.Period),
			"startBlock":     formatUint(e.StartBlock),
			"endBlock":       formatUint(e.EndBlock),
			"rewardPerBlock": formatAmount(e.RewardPerBlock),
			"rewardAmount":   formatAmount(e.RewardAmount),
			"rollover":       formatAmount(e.Rollover),
			"windowSize":     formatUint(e.WindowSize),
		},
	}
}

// MiningContributionRecorded captures an immutable contribution record.
type MiningContributionRecorded struct {
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

// EventType satisfies the Event interface.
func (MiningContributionRecorded) EventType() string { return TypeMiningContributionRecorded }

// Event converts the payload into a broadcastable event.
func (e MiningContributionRecorded) Event() *types.Event {
	return &types.Event{
		Type: TypeMiningContributionRecorded,
		Attributes: map[string]string{
			"id":          formatUint(e.ID),
			"contributor": formatAddress(e.Contributor),
			"target":      formatAddress(e.Target),
			"targetKind":  e.TargetKind,
			"period":      formatUint(e.Period),
			"block":       formatUint(e.Block),
			"amount":      formatAmount(e.Amount),
			"asset":       normalizeAsset(e.Asset),
			"rawAmount":   formatAmount(e.RawAmount),
		},
	}
}

// MiningStakeUpdated records a stake snapshot pushed by the staking module.
type MiningStakeUpdated struct {
	Holder       common.Address
	Period       uint64
	HolderAmount *big.Int
	TotalAmount  *big.Int
}

// EventType satisfies the Event interface.
func (MiningStakeUpdated) EventType() string { return TypeMiningStakeUpdated }

// Event converts the payload into a broadcastable event.
func (e MiningStakeUpdated) Event() *types.Event {
	return &types.Event{
		Type: TypeMiningStakeUpdated,
		Attributes: map[string]string{
			"holder":       formatAddress(e.Holder),
			"period":       formatUint(e.Period),
			"holderAmount": formatAmount(e.HolderAmount),
			"totalAmount":  formatAmount(e.TotalAmount),
		},
	}
}

// MiningRewardSettled summarises a settlement of periods (FromPeriod, ToPeriod].
type MiningRewardSettled struct {
	Contributor common.Address
	Mode        string
	FromPeriod  uint64
	ToPeriod    uint64
	Owed        *big.Int
	Paid        *big.Int
}

// EventType satisfies the Event interface.
func (MiningRewardSettled) EventType() string { return TypeMiningRewardSettled }

// Event converts the payload into a broadcastable event.
func (e MiningRewardSettled) Event() *types.Event {
	return &types.Event{
		Type: TypeMiningRewardSettled,
		Attributes: map[string]string{
			"contributor": formatAddress(e.Contributor),
			"mode":        e.Mode,
			"fromPeriod":  formatUint(e.FromPeriod),
			"toPeriod":    formatUint(e.ToPeriod),
			"owed":        formatAmount(e.Owed),
			"paid":        formatAmount(e.Paid),
		},
	}
}

// MiningRewardShortfall reports an under-paid settlement.
type MiningRewardShortfall struct {
	Contributor common.Address
	Mode        string
	ToPeriod    uint64
	Owed        *big.Int
	Paid        *big.Int
	Shortfall   *big.Int
}

// EventType satisfies the Event interface.
func (MiningRewardShortfall) EventType() string { return TypeMiningRewardShortfall }

// Event converts the payload into a broadcastable event.
func (e MiningRewardShortfall) Event() *types.Event {
	return &types.Event{
		Type: TypeMiningRewardShortfall,
		Attributes: map[string]string{
			"contributor": formatAddress(e.Contributor),
			"mode":        e.Mode,
			"toPeriod":    formatUint(e.ToPeriod),
			"owed":        formatAmount(e.Owed),
			"paid":        formatAmount(e.Paid),
			"shortfall":   formatAmount(e.Shortfall),
		},
	}
}

// MiningParamsUpdated records a parameter change and the first period it
// applies to.
type MiningParamsUpdated struct {
	Field       string
	Value       string
	EffectiveAt uint64
}

// EventType satisfies the Event interface.
func (MiningParamsUpdated) EventType() string { return TypeMiningParamsUpdated }

// Event converts the payload into a broadcastable event.
func (e MiningParamsUpdated) Event() *types.Event {
	return &types.Event{
		Type: TypeMiningParamsUpdated,
		Attributes: map[string]string{
			"field":       e.Field,
			"value":       e.Value,
			"effectiveAt": formatUint(e.EffectiveAt),
		},
	}
}
