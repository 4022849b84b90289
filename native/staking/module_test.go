package staking

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"contribmine/native/bank"
	"contribmine/storage"
)

type recordingNotifier struct {
	calls []*big.Int
	fail  error
}

func (n *recordingNotifier) Run(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

func (n *recordingNotifier) NotifyStake(_ context.Context, _ common.Address, holderAmount, totalAmount *big.Int) error {
	if n.fail != nil {
		return n.fail
	}
	n.calls = append(n.calls, new(big.Int).Set(holderAmount), new(big.Int).Set(totalAmount))
	return nil
}

func TestStakeAndUnstakeNotify(t *testing.T) {
	ctx := context.Background()
	ledger := bank.NewLedger(storage.NewMemDB())
	account := common.HexToAddress("0xa3")
	holder := common.HexToAddress("0xb1")
	if err := ledger.Mint("PACT", holder, big.NewInt(100)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	module := NewModule(storage.NewMemDB(), ledger, account, "pact")
	if err := module.Stake(ctx, holder, big.NewInt(10)); !errors.Is(err, ErrNotifierUnavailable) {
		t.Fatalf("expected ErrNotifierUnavailable, got %v", err)
	}
	notifier := &recordingNotifier{}
	module.SetNotifier(notifier)

	if err := module.Stake(ctx, holder, big.NewInt(60)); err != nil {
		t.Fatalf("stake: %v", err)
	}
	if err := module.Unstake(ctx, holder, big.NewInt(20)); err != nil {
		t.Fatalf("unstake: %v", err)
	}
	if err := module.Unstake(ctx, holder, big.NewInt(41)); !errors.Is(err, ErrInsufficientStake) {
		t.Fatalf("expected ErrInsufficientStake, got %v", err)
	}
	position, total, err := module.Totals(holder)
	if err != nil {
		t.Fatalf("totals: %v", err)
	}
	if position.Int64() != 40 || total.Int64() != 40 {
		t.Fatalf("unexpected totals %s %s", position, total)
	}
	if len(notifier.calls) != 4 || notifier.calls[2].Int64() != 40 {
		t.Fatalf("unexpected notifications %v", notifier.calls)
	}
	held, _ := ledger.BalanceOf("PACT", account)
	if held.Int64() != 40 {
		t.Fatalf("unexpected custody %s", held)
	}
}

func TestStakeRevertsWhenNotificationFails(t *testing.T) {
	ctx := context.Background()
	ledger := bank.NewLedger(storage.NewMemDB())
	account := common.HexToAddress("0xa3")
	holder := common.HexToAddress("0xb1")
	if err := ledger.Mint("PACT", holder, big.NewInt(100)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	module := NewModule(storage.NewMemDB(), ledger, account, "PACT")
	boom := errors.New("paused")
	module.SetNotifier(&recordingNotifier{fail: boom})

	if err := module.Stake(ctx, holder, big.NewInt(30)); !errors.Is(err, boom) {
		t.Fatalf("expected notify failure, got %v", err)
	}
	position, total, err := module.Totals(holder)
	if err != nil {
		t.Fatalf("totals: %v", err)
	}
	if position.Sign() != 0 || total.Sign() != 0 {
		t.Fatalf("position must be restored, got %s %s", position, total)
	}
	balance, _ := ledger.BalanceOf("PACT", holder)
	if balance.Int64() != 100 {
		t.Fatalf("funds must be returned, got %s", balance)
	}
}
