package community

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestRegistryValidateAndRecord(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry()
	addr := common.HexToAddress("0xc1")
	if err := reg.Register(addr, "Lagos", "cusd"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := reg.Register(addr, "dup", ""); !errors.Is(err, ErrCommunityExists) {
		t.Fatalf("expected ErrCommunityExists, got %v", err)
	}

	tests := []struct {
		name  string
		addr  common.Address
		asset string
		want  error
	}{
		{"accepted", addr, "CUSD", nil},
		{"wrong asset", addr, "USDC", ErrAssetMismatch},
		{"unknown", common.HexToAddress("0xc2"), "CUSD", ErrCommunityNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := reg.ValidateDonation(ctx, tc.addr, tc.asset)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}

	if err := reg.RecordDonation(ctx, addr, common.HexToAddress("0xb1"), "cusd", big.NewInt(25)); err != nil {
		t.Fatalf("record: %v", err)
	}
	c, err := reg.Get(addr)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if c.Donations["CUSD"].Int64() != 25 {
		t.Fatalf("unexpected tally %s", c.Donations["CUSD"])
	}

	if err := reg.SetActive(addr, false); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if err := reg.ValidateDonation(ctx, addr, "CUSD"); !errors.Is(err, ErrCommunityInactive) {
		t.Fatalf("expected ErrCommunityInactive, got %v", err)
	}
}
