package mining

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"contribmine/core/events"
)

// Contribute records a donation into the current period. The normalized value
// credited to the contributor is the raw amount for the native asset, the
// treasury-converted value for accepted foreign assets, and for community
// targets that value divided by the community donation ratio.
func (e *Engine) Contribute(ctx context.Context, req ContributionRequest) (*Contribution, error) {
	if req.Contributor == (common.Address{}) {
		return nil, ErrInvalidContributor
	}
	if req.Amount == nil || req.Amount.Sign() <= 0 {
		return nil, fmt.Errorf("%w: contribution must be positive", ErrInvalidAmount)
	}
	asset := NormalizeAsset(req.Asset)
	if asset == "" {
		return nil, fmt.Errorf("%w: asset required", ErrAssetNotAccepted)
	}
	payer := req.Payer
	if payer == (common.Address{}) {
		payer = req.Contributor
	}

	var record *Contribution
	err := e.update(ctx, "contribute", func(ctx context.Context, op *operation) error {
		if err := op.guard(); err != nil {
			return err
		}
		if err := op.advance(); err != nil {
			return err
		}
		params := op.params
		current, err := op.latestPeriod()
		if err != nil {
			return err
		}
		if !op.started(current) {
			return ErrNotStarted
		}

		kind, target := TargetKindTreasury, params.TreasuryAccount
		if req.Target != (common.Address{}) && req.Target != params.TreasuryAccount {
			kind, target = TargetKindCommunity, req.Target
		}
		normalized, err := op.normalize(ctx, kind, target, asset, req.Amount)
		if err != nil {
			return err
		}
		if req.Admit != nil {
			if err := req.Admit(current.Number, copyBig(normalized)); err != nil {
				return err
			}
		}

		current.DonationsAmount = new(big.Int).Add(current.DonationsAmount, normalized)
		if err := op.txn.PutPeriod(current); err != nil {
			return err
		}
		donorAmt, err := op.txn.DonorAmount(current.Number, req.Contributor)
		if err != nil {
			return err
		}
		if err := op.txn.SetDonorAmount(current.Number, req.Contributor, new(big.Int).Add(orZero(donorAmt), normalized)); err != nil {
			return err
		}
		contributor, err := op.participant(req.Contributor, current.Number)
		if err != nil {
			return err
		}
		contributor.recordParticipation(current.Number)
		if err := op.txn.PutContributor(req.Contributor, contributor); err != nil {
			return err
		}

		count, err := op.txn.ContributionCount()
		if err != nil {
			return err
		}
		record = &Contribution{
			ID:          count + 1,
			Contributor: req.Contributor,
			Target:      target,
			TargetKind:  kind,
			Period:      current.Number,
			Block:       op.now,
			Amount:      normalized,
			Asset:       asset,
			RawAmount:   new(big.Int).Set(req.Amount),
		}
		if err := op.txn.PutContribution(record); err != nil {
			return err
		}
		if err := op.txn.SetContributionCount(record.ID); err != nil {
			return err
		}

		if err := op.forward(ctx, kind, payer, target, req.Contributor, asset, req.Amount); err != nil {
			return err
		}
		op.emit(events.MiningContributionRecorded{
			ID:          record.ID,
			Contributor: record.Contributor,
			Target:      record.Target,
			TargetKind:  record.TargetKind,
			Period:      record.Period,
			Block:       record.Block,
			Amount:      copyBig(record.Amount),
			Asset:       record.Asset,
			RawAmount:   copyBig(record.RawAmount),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return record.Clone(), nil
}

// normalize converts a raw contribution into native units.
func (op *operation) normalize(ctx context.Context, kind string, target common.Address, asset string, amount *big.Int) (*big.Int, error) {
	params := op.params
	if kind == TargetKindCommunity {
		if op.engine.communities == nil {
			return nil, fmt.Errorf("%w: no community registry", ErrTargetNotAuthorized)
		}
		if err := op.engine.communities.ValidateDonation(ctx, target, asset); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrTargetNotAuthorized, err)
		}
	}
	value := new(big.Int).Set(amount)
	if asset != params.NativeAsset {
		treasury := op.engine.treasury
		if treasury == nil || !treasury.IsAcceptedAsset(asset) {
			return nil, fmt.Errorf("%w: %s", ErrAssetNotAccepted, asset)
		}
		converted, err := treasury.Convert(ctx, asset, amount)
		if err != nil {
			return nil, fmt.Errorf("mining: convert %s: %w", asset, err)
		}
		value = copyBig(converted)
	}
	if kind == TargetKindCommunity {
		value.Quo(value, new(big.Int).SetUint64(params.CommunityDonationRatio))
	}
	if value.Sign() <= 0 {
		return nil, fmt.Errorf("%w: contribution normalizes to zero", ErrInvalidAmount)
	}
	return value, nil
}

// forward moves custody of the raw amount to the target. It runs after every
// ledger write of the operation so a failing transfer aborts cleanly.
func (op *operation) forward(ctx context.Context, kind string, payer, target, contributor common.Address, asset string, amount *big.Int) error {
	if assets := op.engine.assets; assets != nil {
		if err := assets.Transfer(ctx, asset, payer, target, amount); err != nil {
			return fmt.Errorf("mining: forward contribution: %w", err)
		}
	}
	if kind == TargetKindCommunity {
		if err := op.engine.communities.RecordDonation(ctx, target, contributor, asset, amount); err != nil {
			return fmt.Errorf("mining: record community donation: %w", err)
		}
	}
	return nil
}

// participant loads the contributor entry, registering first-time
// participants with a cursor just before the current period.
func (op *operation) participant(addr common.Address, current uint64) (*Contributor, error) {
	contributor, err := op.txn.Contributor(addr)
	if err != nil {
		return nil, err
	}
	if contributor != nil && contributor.Initialized {
		return contributor, nil
	}
	return &Contributor{
		Initialized:       true,
		LastSettledPeriod: current - 1,
		LastStake:         big.NewInt(0),
	}, nil
}
