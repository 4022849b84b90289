package mining

import (
	"context"
	"fmt"
	"math/big"

	"contribmine/core/events"
)

// Initialize stores the parameters and opens period 1 at startBlock with the
// undecayed rate. Period 1 spans [startBlock, startBlock+PeriodLength-1].
func (e *Engine) Initialize(ctx context.Context, params *Params, startBlock uint64, firstRewardPerBlock *big.Int) error {
	if err := params.Validate(); err != nil {
		return err
	}
	if firstRewardPerBlock == nil || firstRewardPerBlock.Sign() <= 0 {
		return fmt.Errorf("%w: first reward per block must be positive", ErrInvalidAmount)
	}
	return e.update(ctx, "initialize", func(ctx context.Context, op *operation) error {
		existing, err := op.txn.MiningParams()
		if err != nil {
			return err
		}
		if existing != nil {
			return ErrAlreadyInitialized
		}
		if err := op.storeParams(params); err != nil {
			return err
		}
		stored := op.params
		rate := new(big.Int).Set(firstRewardPerBlock)
		first := &RewardPeriod{
			Number:               1,
			StartBlock:           startBlock,
			EndBlock:             startBlock + stored.PeriodLength - 1,
			RewardPerBlock:       rate,
			RewardAmount:         new(big.Int).Mul(rate, new(big.Int).SetUint64(stored.PeriodLength)),
			DonationsAmount:      big.NewInt(0),
			StakesAmount:         big.NewInt(0),
			StakingDonationRatio: stored.StakingDonationRatio,
			WindowSize:           stored.WindowSize,
		}
		if err := op.appendPeriod(first, big.NewInt(0)); err != nil {
			return err
		}
		return op.advance()
	})
}

// Advance materializes every period that has become due at the current block.
// It is idempotent within a block.
func (e *Engine) Advance(ctx context.Context) error {
	return e.update(ctx, "advance", func(ctx context.Context, op *operation) error {
		return op.advance()
	})
}

// advance catches the ledger up to the clock. Each new period starts where the
// previous ended, takes the decayed rate, and inherits the previous period's
// reward when the previous period's trailing window saw no contributions and
// no stake.
func (op *operation) advance() error {
	params, err := op.loadParams()
	if err != nil {
		return err
	}
	last, err := op.latestPeriod()
	if err != nil {
		return err
	}
	for last.EndBlock < op.now {
		next, rollover, err := op.nextPeriod(last, params)
		if err != nil {
			return err
		}
		if err := op.appendPeriod(next, rollover); err != nil {
			return err
		}
		last = next
	}
	return nil
}

func (op *operation) nextPeriod(last *RewardPeriod, params *Params) (*RewardPeriod, *big.Int, error) {
	rate := params.decay(last.RewardPerBlock)
	amount := new(big.Int).Mul(rate, new(big.Int).SetUint64(params.PeriodLength))
	rollover := big.NewInt(0)
	idle, err := op.windowIdle(last)
	if err != nil {
		return nil, nil, err
	}
	if idle {
		rollover.Set(last.RewardAmount)
		amount.Add(amount, rollover)
	}
	start := last.EndBlock + 1
	next := &RewardPeriod{
		Number:               last.Number + 1,
		StartBlock:           start,
		EndBlock:             start + params.PeriodLength - 1,
		RewardPerBlock:       rate,
		RewardAmount:         amount,
		DonationsAmount:      big.NewInt(0),
		StakesAmount:         copyBig(last.StakesAmount),
		StakingDonationRatio: params.StakingDonationRatio,
		WindowSize:           params.WindowSize,
	}
	return next, rollover, nil
}

// windowIdle reports whether every period in the trailing window of last had
// neither contributions nor stake.
func (op *operation) windowIdle(last *RewardPeriod) (bool, error) {
	start := windowStart(last.Number, last.WindowSize)
	for n := last.Number; n >= start && n > 0; n-- {
		period := last
		if n != last.Number {
			var err error
			if period, err = op.period(n); err != nil {
				return false, err
			}
		}
		if period.DonationsAmount.Sign() > 0 || period.StakesAmount.Sign() > 0 {
			return false, nil
		}
	}
	return true, nil
}

func (op *operation) appendPeriod(period *RewardPeriod, rollover *big.Int) error {
	count, err := op.txn.PeriodCount()
	if err != nil {
		return err
	}
	if period.Number != count+1 {
		return fmt.Errorf("mining: period %d does not follow %d", period.Number, count)
	}
	if err := op.txn.PutPeriod(period); err != nil {
		return err
	}
	if err := op.txn.SetPeriodCount(period.Number); err != nil {
		return err
	}
	op.emit(events.MiningPeriodCreated{
		Period:         period.Number,
		StartBlock:     period.StartBlock,
		EndBlock:       period.EndBlock,
		RewardPerBlock: copyBig(period.RewardPerBlock),
		RewardAmount:   copyBig(period.RewardAmount),
		Rollover:       copyBig(rollover),
		WindowSize:     period.WindowSize,
	})
	return nil
}

func (op *operation) period(number uint64) (*RewardPeriod, error) {
	period, err := op.txn.Period(number)
	if err != nil {
		return nil, err
	}
	if period == nil {
		return nil, fmt.Errorf("%w: %d", ErrPeriodNotFound, number)
	}
	return period, nil
}

func (op *operation) latestPeriod() (*RewardPeriod, error) {
	count, err := op.txn.PeriodCount()
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, ErrNotInitialized
	}
	return op.period(count)
}

// started reports whether the clock has reached the first period.
func (op *operation) started(current *RewardPeriod) bool {
	return current.Number > 1 || op.now >= current.StartBlock
}

// windowStart returns the first period of the window [max(1, period-size), period].
func windowStart(period, size uint64) uint64 {
	if size >= period {
		return 1
	}
	return period - size
}
