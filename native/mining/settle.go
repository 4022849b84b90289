package mining

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"contribmine/core/events"
)

// Claim settles every period up to the claim horizon and transfers the reward
// to the contributor.
func (e *Engine) Claim(ctx context.Context, contributor common.Address) (*Settlement, error) {
	return e.settle(ctx, contributor, ModeClaim, 0)
}

// ClaimPartial settles up to and including lastPeriod and transfers the reward
// to the contributor.
func (e *Engine) ClaimPartial(ctx context.Context, contributor common.Address, lastPeriod uint64) (*Settlement, error) {
	return e.settle(ctx, contributor, ModeClaimPartial, lastPeriod)
}

// Stake settles every period up to the claim horizon and deposits the reward
// into the staking module on the contributor's behalf.
func (e *Engine) Stake(ctx context.Context, contributor common.Address) (*Settlement, error) {
	return e.settle(ctx, contributor, ModeStake, 0)
}

// StakePartial settles up to and including lastPeriod and deposits the reward
// into the staking module on the contributor's behalf.
func (e *Engine) StakePartial(ctx context.Context, contributor common.Address, lastPeriod uint64) (*Settlement, error) {
	return e.settle(ctx, contributor, ModeStakePartial, lastPeriod)
}

func (e *Engine) settle(ctx context.Context, addr common.Address, mode SettlementMode, lastPeriod uint64) (*Settlement, error) {
	if addr == (common.Address{}) {
		return nil, ErrInvalidContributor
	}
	var result *Settlement
	err := e.update(ctx, string(mode), func(ctx context.Context, op *operation) error {
		if err := op.guard(); err != nil {
			return err
		}
		release, err := op.enter(addr)
		if err != nil {
			return err
		}
		defer release()
		if err := op.advance(); err != nil {
			return err
		}
		if mode.staking() && e.staking == nil {
			return ErrStakingUnavailable
		}
		if e.assets == nil {
			return ErrAssetsUnavailable
		}
		params := op.params
		contributor, err := op.txn.Contributor(addr)
		if err != nil {
			return err
		}
		if contributor == nil || !contributor.Initialized {
			return ErrUnknownContributor
		}
		from := contributor.LastSettledPeriod
		to, err := op.settlementTarget(from, mode, lastPeriod)
		if err != nil {
			return err
		}

		owed, carried, err := op.owed(addr, from, to)
		if err != nil {
			return err
		}
		if to > from {
			if err := op.txn.SetDonorStake(to, addr, carried); err != nil {
				return err
			}
			contributor.LastSettledPeriod = to
			if err := op.txn.PutContributor(addr, contributor); err != nil {
				return err
			}
		}

		available, err := e.assets.BalanceOf(params.RewardAsset, params.MinerAccount)
		if err != nil {
			return fmt.Errorf("mining: reward balance: %w", err)
		}
		paid := minBig(owed, orZero(available))
		if paid.Sign() < 0 {
			paid.SetInt64(0)
		}
		shortfall := new(big.Int).Sub(owed, paid)
		if paid.Sign() > 0 {
			if mode.staking() {
				if err := e.staking.Deposit(ctx, params.MinerAccount, addr, paid); err != nil {
					return fmt.Errorf("mining: stake reward: %w", err)
				}
			} else if err := e.assets.Transfer(ctx, params.RewardAsset, params.MinerAccount, addr, paid); err != nil {
				return fmt.Errorf("mining: transfer reward: %w", err)
			}
		}

		result = &Settlement{
			Contributor: addr,
			Mode:        mode,
			From:        from,
			To:          to,
			Owed:        owed,
			Paid:        paid,
			Shortfall:   shortfall,
		}
		if to > from {
			op.emit(events.MiningRewardSettled{
				Contributor: addr,
				Mode:        string(mode),
				FromPeriod:  from,
				ToPeriod:    to,
				Owed:        copyBig(owed),
				Paid:        copyBig(paid),
			})
		}
		if shortfall.Sign() > 0 {
			op.emit(events.MiningRewardShortfall{
				Contributor: addr,
				Mode:        string(mode),
				ToPeriod:    to,
				Owed:        copyBig(owed),
				Paid:        copyBig(paid),
				Shortfall:   copyBig(shortfall),
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// claimHorizon returns the last period that may be settled, or false when no
// period is past the claim delay yet.
func claimHorizon(count, delay uint64) (uint64, bool) {
	if count <= delay {
		return 0, false
	}
	return count - delay, true
}

func (op *operation) settlementTarget(cursor uint64, mode SettlementMode, lastPeriod uint64) (uint64, error) {
	count, err := op.txn.PeriodCount()
	if err != nil {
		return 0, err
	}
	horizon, due := claimHorizon(count, op.params.ClaimDelay)
	if mode == ModeClaim || mode == ModeStake {
		if !due || horizon < cursor {
			return 0, ErrClaimNotDue
		}
		return horizon, nil
	}
	if !due || lastPeriod > horizon {
		return 0, fmt.Errorf("%w: period %d beyond horizon", ErrClaimNotDue, lastPeriod)
	}
	if lastPeriod < cursor {
		return 0, fmt.Errorf("%w: period %d before cursor %d", ErrClaimOutOfOrder, lastPeriod, cursor)
	}
	return lastPeriod, nil
}

// owed walks periods (from, to] and sums the contributor's share of each. It
// returns the stake carried into period to, which becomes the snapshot at the
// new cursor.
func (op *operation) owed(addr common.Address, from, to uint64) (*big.Int, *big.Int, error) {
	carried := big.NewInt(0)
	if from > 0 {
		stake, ok, err := op.txn.DonorStake(from, addr)
		if err != nil {
			return nil, nil, err
		}
		if ok {
			carried = copyBig(stake)
		}
	}
	owed := big.NewInt(0)
	acc := newWindowAccumulator(op, addr)
	for n := from + 1; n <= to; n++ {
		period, err := op.period(n)
		if err != nil {
			return nil, nil, err
		}
		stake, ok, err := op.txn.DonorStake(n, addr)
		if err != nil {
			return nil, nil, err
		}
		if ok {
			carried = copyBig(stake)
		}
		if err := acc.step(period); err != nil {
			return nil, nil, err
		}
		owed.Add(owed, shareOf(period.RewardAmount, acc.donorSum, acc.totalSum, period.StakingDonationRatio, carried, period.StakesAmount))
	}
	return owed, carried, nil
}
