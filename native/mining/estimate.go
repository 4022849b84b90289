package mining

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

const (
	basisPoints = 10000
	// maxProjectedPeriods bounds projection loops for very short periods.
	maxProjectedPeriods = 1 << 16
)

// EstimateClaimable previews what Claim would settle and pay right now.
// Nothing is persisted.
func (e *Engine) EstimateClaimable(ctx context.Context, addr common.Address) (*Estimate, error) {
	est := &Estimate{Contributor: addr, Reward: big.NewInt(0), Payable: big.NewInt(0)}
	err := e.view(ctx, func(ctx context.Context, op *operation) error {
		if err := op.advance(); err != nil {
			return err
		}
		contributor, err := op.txn.Contributor(addr)
		if err != nil {
			return err
		}
		if contributor == nil || !contributor.Initialized {
			return nil
		}
		est.From, est.To = contributor.LastSettledPeriod, contributor.LastSettledPeriod
		count, err := op.txn.PeriodCount()
		if err != nil {
			return err
		}
		horizon, due := claimHorizon(count, op.params.ClaimDelay)
		if !due || horizon <= contributor.LastSettledPeriod {
			return nil
		}
		owed, _, err := op.owed(addr, contributor.LastSettledPeriod, horizon)
		if err != nil {
			return err
		}
		est.To = horizon
		est.Periods = horizon - contributor.LastSettledPeriod
		est.Reward = owed
		est.Payable = new(big.Int).Set(owed)
		if e.assets != nil {
			available, err := e.assets.BalanceOf(op.params.RewardAsset, op.params.MinerAccount)
			if err != nil {
				return err
			}
			est.Payable = minBig(owed, orZero(available))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return est, nil
}

// EstimateReward projects the contributor's reward over the next periods
// periods, starting with the current one, assuming their current windowed
// contributions and stake stay unchanged. Horizons are capped at
// maxProjectedPeriods.
func (e *Engine) EstimateReward(ctx context.Context, addr common.Address, periods uint64) (*Estimate, error) {
	if periods > maxProjectedPeriods {
		periods = maxProjectedPeriods
	}
	est := &Estimate{Contributor: addr, Periods: periods, Reward: big.NewInt(0), Payable: big.NewInt(0)}
	if periods == 0 {
		return est, nil
	}
	err := e.view(ctx, func(ctx context.Context, op *operation) error {
		if err := op.advance(); err != nil {
			return err
		}
		current, err := op.latestPeriod()
		if err != nil {
			return err
		}
		donorSum, totalSum, err := op.sumWindow(addr, current)
		if err != nil {
			return err
		}
		stake, err := op.currentStake(addr)
		if err != nil {
			return err
		}
		est.From = current.Number
		est.To = current.Number + periods - 1
		est.Reward = op.project(current, periods, donorSum, totalSum, stake)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return est, nil
}

// APR returns the annualised return on the holder's current stake in basis
// points, projecting one year of periods through the same decay and share
// formulas used by settlement. The reward and staked assets are assumed to be
// denominated alike.
func (e *Engine) APR(ctx context.Context, holder common.Address) (*big.Int, error) {
	apr := big.NewInt(0)
	err := e.view(ctx, func(ctx context.Context, op *operation) error {
		if err := op.advance(); err != nil {
			return err
		}
		stake, err := op.currentStake(holder)
		if err != nil {
			return err
		}
		if stake.Sign() == 0 {
			return nil
		}
		current, err := op.latestPeriod()
		if err != nil {
			return err
		}
		_, totalSum, err := op.sumWindow(holder, current)
		if err != nil {
			return err
		}
		periodsPerYear := op.params.BlocksPerYear / op.params.PeriodLength
		if periodsPerYear == 0 {
			periodsPerYear = 1
		}
		yearly := op.project(current, periodsPerYear, big.NewInt(0), totalSum, stake)
		apr.Mul(yearly, big.NewInt(basisPoints))
		apr.Quo(apr, stake)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return apr, nil
}

// project sums shareOf over n periods starting at current. The first period
// uses its own reward and snapshots; later periods take the decayed rate and
// the current parameters.
func (op *operation) project(current *RewardPeriod, n uint64, donor, total, stake *big.Int) *big.Int {
	if n > maxProjectedPeriods {
		n = maxProjectedPeriods
	}
	params := op.params
	sum := shareOf(current.RewardAmount, donor, total, current.StakingDonationRatio, stake, current.StakesAmount)
	rate := copyBig(current.RewardPerBlock)
	length := new(big.Int).SetUint64(params.PeriodLength)
	for k := uint64(1); k < n; k++ {
		rate = params.decay(rate)
		if rate.Sign() == 0 {
			break
		}
		amount := new(big.Int).Mul(rate, length)
		sum.Add(sum, shareOf(amount, donor, total, params.StakingDonationRatio, stake, current.StakesAmount))
	}
	return sum
}

func (op *operation) currentStake(addr common.Address) (*big.Int, error) {
	contributor, err := op.txn.Contributor(addr)
	if err != nil {
		return nil, err
	}
	if contributor == nil {
		return big.NewInt(0), nil
	}
	return copyBig(contributor.LastStake), nil
}
