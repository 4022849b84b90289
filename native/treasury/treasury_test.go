package treasury

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestConvert(t *testing.T) {
	tr := New(common.HexToAddress("0xa2"))
	if err := tr.SetRate("usdc", big.NewInt(3), big.NewInt(2)); err != nil {
		t.Fatalf("set rate: %v", err)
	}
	if !tr.IsAcceptedAsset("USDC") {
		t.Fatalf("expected USDC accepted")
	}
	got, err := tr.Convert(context.Background(), "USDC", big.NewInt(5))
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if got.Int64() != 7 {
		t.Fatalf("expected floor(15/2)=7, got %s", got)
	}
	if _, err := tr.Convert(context.Background(), "DOGE", big.NewInt(1)); !errors.Is(err, ErrAssetNotAccepted) {
		t.Fatalf("expected ErrAssetNotAccepted, got %v", err)
	}
	if err := tr.SetRate("X", big.NewInt(0), big.NewInt(1)); !errors.Is(err, ErrInvalidRate) {
		t.Fatalf("expected ErrInvalidRate, got %v", err)
	}
	tr.RemoveAsset("usdc")
	if len(tr.Assets()) != 0 {
		t.Fatalf("expected no assets after removal")
	}
}
