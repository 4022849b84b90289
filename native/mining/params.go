package mining

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

const (
	DefaultPeriodLength           uint64 = 17280
	DefaultDecayNumerator         uint64 = 998902
	DefaultDecayDenominator       uint64 = 1000000
	DefaultClaimDelay             uint64 = 1
	DefaultStakingDonationRatio   uint64 = 1000000
	DefaultCommunityDonationRatio uint64 = 2
	DefaultWindowSize             uint64 = 30
	DefaultBlocksPerYear          uint64 = 6307200
	DefaultNativeAsset                   = "CUSD"
	DefaultRewardAsset                   = "PACT"
)

// Params are the tunables of the reward ledger. Changes to PeriodLength,
// decay, StakingDonationRatio and WindowSize take effect from the next
// materialized period; earlier periods keep the values snapshotted into them.
type Params struct {
	PeriodLength           uint64
	DecayNumerator         uint64
	DecayDenominator       uint64
	ClaimDelay             uint64
	StakingDonationRatio   uint64
	CommunityDonationRatio uint64
	WindowSize             uint64
	BlocksPerYear          uint64
	NativeAsset            string
	RewardAsset            string
	MinerAccount           common.Address
	TreasuryAccount        common.Address
	StakingAccount         common.Address
}

// DefaultParams returns a parameter set that only lacks account wiring.
func DefaultParams() *Params {
	return &Params{
		PeriodLength:           DefaultPeriodLength,
		DecayNumerator:         DefaultDecayNumerator,
		DecayDenominator:       DefaultDecayDenominator,
		ClaimDelay:             DefaultClaimDelay,
		StakingDonationRatio:   DefaultStakingDonationRatio,
		CommunityDonationRatio: DefaultCommunityDonationRatio,
		WindowSize:             DefaultWindowSize,
		BlocksPerYear:          DefaultBlocksPerYear,
		NativeAsset:            DefaultNativeAsset,
		RewardAsset:            DefaultRewardAsset,
	}
}

// Clone returns a copy of the parameters.
func (p *Params) Clone() *Params {
	if p == nil {
		return nil
	}
	out := *p
	return &out
}

// Normalize canonicalises asset symbols in place and returns the receiver.
func (p *Params) Normalize() *Params {
	if p == nil {
		return nil
	}
	p.NativeAsset = NormalizeAsset(p.NativeAsset)
	p.RewardAsset = NormalizeAsset(p.RewardAsset)
	return p
}

// Validate reports whether the parameter set can drive the ledger.
func (p *Params) Validate() error {
	if p == nil {
		return fmt.Errorf("%w: nil params", ErrInvalidParams)
	}
	switch {
	case p.PeriodLength == 0:
		return fmt.Errorf("%w: period length must be positive", ErrInvalidParams)
	case p.DecayNumerator == 0 || p.DecayDenominator == 0:
		return fmt.Errorf("%w: decay ratio must be positive", ErrInvalidParams)
	case p.DecayNumerator > p.DecayDenominator:
		return fmt.Errorf("%w: decay ratio must not exceed one", ErrInvalidParams)
	case p.ClaimDelay == 0:
		return fmt.Errorf("%w: claim delay must be at least one period", ErrInvalidParams)
	case p.StakingDonationRatio == 0:
		return fmt.Errorf("%w: staking donation ratio must be positive", ErrInvalidParams)
	case p.CommunityDonationRatio == 0:
		return fmt.Errorf("%w: community donation ratio must be positive", ErrInvalidParams)
	case p.BlocksPerYear == 0:
		return fmt.Errorf("%w: blocks per year must be positive", ErrInvalidParams)
	case NormalizeAsset(p.NativeAsset) == "":
		return fmt.Errorf("%w: native asset required", ErrInvalidParams)
	case NormalizeAsset(p.RewardAsset) == "":
		return fmt.Errorf("%w: reward asset required", ErrInvalidParams)
	case p.MinerAccount == (common.Address{}):
		return fmt.Errorf("%w: miner account required", ErrInvalidParams)
	case p.TreasuryAccount == (common.Address{}):
		return fmt.Errorf("%w: treasury account required", ErrInvalidParams)
	}
	return nil
}

// decay applies one step of the geometric schedule to rate.
func (p *Params) decay(rate *big.Int) *big.Int {
	out := new(big.Int).Mul(rate, new(big.Int).SetUint64(p.DecayNumerator))
	return out.Quo(out, new(big.Int).SetUint64(p.DecayDenominator))
}

// NormalizeAsset canonicalises an asset symbol.
func NormalizeAsset(asset string) string {
	return strings.ToUpper(strings.TrimSpace(asset))
}
