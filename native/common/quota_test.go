package common

import (
	"errors"
	"math/big"
	"testing"
)

func TestCheckQuotaRequestLimit(t *testing.T) {
	q := Quota{MaxRequestsPerPeriod: 10}
	prev := QuotaNow{PeriodID: 1}

	next, err := CheckQuota(q, 1, prev, 10, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next.ReqCount != 10 {
		t.Fatalf("unexpected request count: %d", next.ReqCount)
	}

	denied, err := CheckQuota(q, 1, next, 1, nil)
	if !errors.Is(err, ErrQuotaRequestsExceeded) {
		t.Fatalf("expected ErrQuotaRequestsExceeded, got %v", err)
	}
	if denied.ReqCount != next.ReqCount || denied.PeriodID != next.PeriodID {
		t.Fatalf("expected counters to remain unchanged on denial")
	}

	rollover, err := CheckQuota(q, 2, next, 1, nil)
	if err != nil {
		t.Fatalf("unexpected error after period rollover: %v", err)
	}
	if rollover.PeriodID != 2 || rollover.ReqCount != 1 {
		t.Fatalf("unexpected state after rollover: %+v", rollover)
	}
}

func TestCheckQuotaValue(t *testing.T) {
	q := Quota{MaxValuePerPeriod: big.NewInt(1000)}
	prev := QuotaNow{PeriodID: 5}

	next, err := CheckQuota(q, 5, prev, 0, big.NewInt(1000))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next.ValueUsed.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("unexpected value used: %s", next.ValueUsed)
	}

	denied, err := CheckQuota(q, 5, next, 0, big.NewInt(1))
	if !errors.Is(err, ErrQuotaValueCapExceeded) {
		t.Fatalf("expected ErrQuotaValueCapExceeded, got %v", err)
	}
	if denied.ValueUsed.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("expected counters to remain unchanged on denial")
	}
	if next.ValueUsed.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("denied check mutated previous usage: %s", next.ValueUsed)
	}

	rollover, err := CheckQuota(q, 6, next, 0, big.NewInt(500))
	if err != nil {
		t.Fatalf("unexpected error after period rollover: %v", err)
	}
	if rollover.PeriodID != 6 || rollover.ValueUsed.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("unexpected state after rollover: %+v", rollover)
	}
}

func TestCheckQuotaOverflow(t *testing.T) {
	prev := QuotaNow{ReqCount: ^uint32(0), PeriodID: 1}
	if _, err := CheckQuota(Quota{}, 1, prev, 1, nil); !errors.Is(err, ErrQuotaCounterOverflow) {
		t.Fatalf("expected overflow, got %v", err)
	}
	if (Quota{}).Enabled() {
		t.Fatalf("empty quota reported enabled")
	}
}

func TestPausesGuard(t *testing.T) {
	pauses := NewPauses("Mining")
	if err := Guard(pauses, "mining"); !errors.Is(err, ErrModulePaused) {
		t.Fatalf("expected ErrModulePaused, got %v", err)
	}
	pauses.SetPaused("mining", false)
	if err := Guard(pauses, "mining"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	pauses.SetPaused("staking", true)
	if got := pauses.Paused(); len(got) != 1 || got[0] != "staking" {
		t.Fatalf("unexpected paused set: %v", got)
	}
}
