package bank

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"contribmine/storage"
)

func TestLedgerTransfer(t *testing.T) {
	ledger := NewLedger(storage.NewMemDB())
	alice := common.HexToAddress("0x01")
	bob := common.HexToAddress("0x02")

	if err := ledger.Mint("cusd", alice, big.NewInt(100)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := ledger.Transfer(context.Background(), "CUSD", alice, bob, big.NewInt(40)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	aliceBal, _ := ledger.BalanceOf("CUSD", alice)
	bobBal, _ := ledger.BalanceOf("cusd", bob)
	if aliceBal.Int64() != 60 || bobBal.Int64() != 40 {
		t.Fatalf("unexpected balances %s %s", aliceBal, bobBal)
	}

	err := ledger.Transfer(context.Background(), "CUSD", bob, alice, big.NewInt(41))
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if err := ledger.Transfer(context.Background(), "CUSD", bob, alice, big.NewInt(0)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	other, _ := ledger.BalanceOf("PACT", alice)
	if other.Sign() != 0 {
		t.Fatalf("assets must be isolated")
	}
}
