package mining

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// State is the persistence surface the engine reads and writes during an
// operation. Getters return nil (or zero) with a nil error for missing keys.
type State interface {
	MiningParams() (*Params, error)
	SetMiningParams(params *Params) error

	PeriodCount() (uint64, error)
	SetPeriodCount(count uint64) error
	Period(number uint64) (*RewardPeriod, error)
	PutPeriod(period *RewardPeriod) error

	DonorAmount(period uint64, donor common.Address) (*big.Int, error)
	SetDonorAmount(period uint64, donor common.Address, amount *big.Int) error
	// DonorStake returns the stake snapshot recorded for the donor in the
	// period and whether one was set.
	DonorStake(period uint64, donor common.Address) (*big.Int, bool, error)
	SetDonorStake(period uint64, donor common.Address, amount *big.Int) error

	Contributor(addr common.Address) (*Contributor, error)
	PutContributor(addr common.Address, contributor *Contributor) error

	ContributionCount() (uint64, error)
	SetContributionCount(count uint64) error
	Contribution(id uint64) (*Contribution, error)
	PutContribution(record *Contribution) error
}

// Txn is a write-buffered view over the backend. Nothing written through a
// Txn is visible to other transactions until Commit succeeds.
type Txn interface {
	State
	Commit() error
	Discard()
}

// Backend opens transactions. Begin must be safe to call concurrently for
// read-only use.
type Backend interface {
	Begin() (Txn, error)
}

// Clock reports the current block height.
type Clock interface {
	BlockNumber() uint64
}

// ClockFunc adapts a function to the Clock interface.
type ClockFunc func() uint64

// BlockNumber implements Clock.
func (f ClockFunc) BlockNumber() uint64 { return f() }

// Treasury values non-native assets in native units.
type Treasury interface {
	IsAcceptedAsset(asset string) bool
	Convert(ctx context.Context, asset string, amount *big.Int) (*big.Int, error)
}

// CommunityRegistry authorises community targets and records the donations
// routed through them.
type CommunityRegistry interface {
	ValidateDonation(ctx context.Context, community common.Address, asset string) error
	RecordDonation(ctx context.Context, community, contributor common.Address, asset string, amount *big.Int) error
}

// Staking receives stake-and-compound deposits. Implementations report the
// resulting totals back through Engine.NotifyStake using the same context.
type Staking interface {
	Deposit(ctx context.Context, from, holder common.Address, amount *big.Int) error
}

// Assets is the multi-asset balance ledger used for custody transfers.
type Assets interface {
	BalanceOf(asset string, account common.Address) (*big.Int, error)
	Transfer(ctx context.Context, asset string, from, to common.Address, amount *big.Int) error
}
