package mining

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Queries run against a virtual catch-up: periods that are due but not yet
// materialized are visible without being persisted.

func (e *Engine) Params(ctx context.Context) (*Params, error) {
	var out *Params
	err := e.view(ctx, func(ctx context.Context, op *operation) error {
		params, err := op.loadParams()
		if err != nil {
			return err
		}
		out = params.Clone()
		return nil
	})
	return out, err
}

func (e *Engine) PeriodCount(ctx context.Context) (uint64, error) {
	var count uint64
	err := e.view(ctx, func(ctx context.Context, op *operation) error {
		if err := op.advance(); err != nil {
			return err
		}
		var err error
		count, err = op.txn.PeriodCount()
		return err
	})
	return count, err
}

// CurrentPeriod returns the period containing the current block.
func (e *Engine) CurrentPeriod(ctx context.Context) (*RewardPeriod, error) {
	var out *RewardPeriod
	err := e.view(ctx, func(ctx context.Context, op *operation) error {
		if err := op.advance(); err != nil {
			return err
		}
		current, err := op.latestPeriod()
		if err != nil {
			return err
		}
		out = current.Clone()
		return nil
	})
	return out, err
}

func (e *Engine) Period(ctx context.Context, number uint64) (*RewardPeriod, error) {
	var out *RewardPeriod
	err := e.view(ctx, func(ctx context.Context, op *operation) error {
		if err := op.advance(); err != nil {
			return err
		}
		period, err := op.period(number)
		if err != nil {
			return err
		}
		out = period.Clone()
		return nil
	})
	return out, err
}

func (e *Engine) PeriodDonorAmount(ctx context.Context, number uint64, donor common.Address) (*big.Int, error) {
	out := big.NewInt(0)
	err := e.view(ctx, func(ctx context.Context, op *operation) error {
		amount, err := op.txn.DonorAmount(number, donor)
		if err != nil {
			return err
		}
		out = copyBig(amount)
		return nil
	})
	return out, err
}

// PeriodDonorStake returns the stake snapshot of donor in the period and
// whether one was recorded.
func (e *Engine) PeriodDonorStake(ctx context.Context, number uint64, donor common.Address) (*big.Int, bool, error) {
	out := big.NewInt(0)
	var set bool
	err := e.view(ctx, func(ctx context.Context, op *operation) error {
		amount, ok, err := op.txn.DonorStake(number, donor)
		if err != nil {
			return err
		}
		out, set = copyBig(amount), ok
		return nil
	})
	return out, set, err
}

// Contributor returns the ledger entry for addr, or nil when unknown.
func (e *Engine) Contributor(ctx context.Context, addr common.Address) (*Contributor, error) {
	var out *Contributor
	err := e.view(ctx, func(ctx context.Context, op *operation) error {
		contributor, err := op.txn.Contributor(addr)
		if err != nil {
			return err
		}
		out = contributor.Clone()
		return nil
	})
	return out, err
}

func (e *Engine) ContributionCount(ctx context.Context) (uint64, error) {
	var count uint64
	err := e.view(ctx, func(ctx context.Context, op *operation) error {
		var err error
		count, err = op.txn.ContributionCount()
		return err
	})
	return count, err
}

func (e *Engine) Contribution(ctx context.Context, id uint64) (*Contribution, error) {
	var out *Contribution
	err := e.view(ctx, func(ctx context.Context, op *operation) error {
		record, err := op.txn.Contribution(id)
		if err != nil {
			return err
		}
		if record == nil {
			return ErrContributionMissing
		}
		out = record.Clone()
		return nil
	})
	return out, err
}

// WindowTotals re-sums the donor's and the ledger's contributions over the
// trailing window of the given period.
func (e *Engine) WindowTotals(ctx context.Context, donor common.Address, number uint64) (*WindowTotals, error) {
	var out *WindowTotals
	err := e.view(ctx, func(ctx context.Context, op *operation) error {
		if err := op.advance(); err != nil {
			return err
		}
		var err error
		out, err = op.windowTotals(donor, number)
		return err
	})
	return out, err
}
