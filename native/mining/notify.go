package mining

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"contribmine/core/events"
)

// NotifyStake records the holder's new staked balance and the new global stake
// total into the current period. The staking module calls it after every
// stake change.
func (e *Engine) NotifyStake(ctx context.Context, holder common.Address, holderAmount, totalAmount *big.Int) error {
	if err := validateStake(holder, holderAmount, totalAmount); err != nil {
		return err
	}
	return e.update(ctx, "notify_stake", func(ctx context.Context, op *operation) error {
		if err := op.guard(); err != nil {
			return err
		}
		if err := op.advance(); err != nil {
			return err
		}
		return op.applyStake(holder, holderAmount, totalAmount)
	})
}

// NotifyStakes applies a batch of holder balances sharing one global total.
// The batch is atomic.
func (e *Engine) NotifyStakes(ctx context.Context, holders []common.Address, amounts []*big.Int, totalAmount *big.Int) error {
	if len(holders) != len(amounts) {
		return ErrLengthMismatch
	}
	for i := range holders {
		if err := validateStake(holders[i], amounts[i], totalAmount); err != nil {
			return err
		}
	}
	return e.update(ctx, "notify_stakes", func(ctx context.Context, op *operation) error {
		if err := op.guard(); err != nil {
			return err
		}
		if err := op.advance(); err != nil {
			return err
		}
		for i := range holders {
			if err := op.applyStake(holders[i], amounts[i], totalAmount); err != nil {
				return err
			}
		}
		return nil
	})
}

func validateStake(holder common.Address, holderAmount, totalAmount *big.Int) error {
	if holder == (common.Address{}) {
		return ErrInvalidContributor
	}
	if holderAmount == nil || totalAmount == nil || holderAmount.Sign() < 0 || totalAmount.Sign() < 0 {
		return fmt.Errorf("%w: stake amounts must be non-negative", ErrInvalidAmount)
	}
	if holderAmount.Cmp(totalAmount) > 0 {
		return fmt.Errorf("%w: holder stake exceeds total", ErrInvalidAmount)
	}
	return nil
}

func (op *operation) applyStake(holder common.Address, holderAmount, totalAmount *big.Int) error {
	current, err := op.latestPeriod()
	if err != nil {
		return err
	}
	current.StakesAmount = new(big.Int).Set(totalAmount)
	if err := op.txn.PutPeriod(current); err != nil {
		return err
	}
	if err := op.txn.SetDonorStake(current.Number, holder, new(big.Int).Set(holderAmount)); err != nil {
		return err
	}
	contributor, err := op.participant(holder, current.Number)
	if err != nil {
		return err
	}
	contributor.LastStake = new(big.Int).Set(holderAmount)
	contributor.LastStakePeriod = current.Number
	if err := op.txn.PutContributor(holder, contributor); err != nil {
		return err
	}
	op.emit(events.MiningStakeUpdated{
		Holder:       holder,
		Period:       current.Number,
		HolderAmount: new(big.Int).Set(holderAmount),
		TotalAmount:  new(big.Int).Set(totalAmount),
	})
	return nil
}
