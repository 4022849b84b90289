package mining

import (
	"context"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"contribmine/core/events"
)

// Parameter setters first catch the ledger up so that every period that was
// already due is materialized under the old values. The new values apply from
// the next period onward; ClaimDelay and the community ratio apply at once.

func (e *Engine) SetPeriodLength(ctx context.Context, length uint64) error {
	return e.updateParams(ctx, "periodLength", strconv.FormatUint(length, 10), func(p *Params) { p.PeriodLength = length })
}

// SetDecay replaces the per-period decay ratio numerator/denominator.
func (e *Engine) SetDecay(ctx context.Context, numerator, denominator uint64) error {
	value := strconv.FormatUint(numerator, 10) + "/" + strconv.FormatUint(denominator, 10)
	return e.updateParams(ctx, "decay", value, func(p *Params) {
		p.DecayNumerator = numerator
		p.DecayDenominator = denominator
	})
}

func (e *Engine) SetClaimDelay(ctx context.Context, delay uint64) error {
	return e.updateParams(ctx, "claimDelay", strconv.FormatUint(delay, 10), func(p *Params) { p.ClaimDelay = delay })
}

func (e *Engine) SetStakingDonationRatio(ctx context.Context, ratio uint64) error {
	return e.updateParams(ctx, "stakingDonationRatio", strconv.FormatUint(ratio, 10), func(p *Params) { p.StakingDonationRatio = ratio })
}

func (e *Engine) SetCommunityDonationRatio(ctx context.Context, ratio uint64) error {
	return e.updateParams(ctx, "communityDonationRatio", strconv.FormatUint(ratio, 10), func(p *Params) { p.CommunityDonationRatio = ratio })
}

func (e *Engine) SetWindowSize(ctx context.Context, size uint64) error {
	return e.updateParams(ctx, "windowSize", strconv.FormatUint(size, 10), func(p *Params) { p.WindowSize = size })
}

func (e *Engine) SetBlocksPerYear(ctx context.Context, blocks uint64) error {
	return e.updateParams(ctx, "blocksPerYear", strconv.FormatUint(blocks, 10), func(p *Params) { p.BlocksPerYear = blocks })
}

func (e *Engine) SetTreasuryAccount(ctx context.Context, addr common.Address) error {
	return e.updateParams(ctx, "treasuryAccount", addr.Hex(), func(p *Params) { p.TreasuryAccount = addr })
}

func (e *Engine) SetStakingAccount(ctx context.Context, addr common.Address) error {
	return e.updateParams(ctx, "stakingAccount", addr.Hex(), func(p *Params) { p.StakingAccount = addr })
}

func (e *Engine) updateParams(ctx context.Context, field, value string, mutate func(*Params)) error {
	return e.update(ctx, "set_"+field, func(ctx context.Context, op *operation) error {
		if err := op.advance(); err != nil {
			return err
		}
		next := op.params.Clone()
		mutate(next)
		if err := op.storeParams(next); err != nil {
			return err
		}
		count, err := op.txn.PeriodCount()
		if err != nil {
			return err
		}
		op.emit(events.MiningParamsUpdated{Field: field, Value: value, EffectiveAt: count + 1})
		return nil
	})
}
