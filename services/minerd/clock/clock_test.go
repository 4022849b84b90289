package clock

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

func TestBlockNumberFollowsFakeClock(t *testing.T) {
	genesis := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	fake := clockwork.NewFakeClockAt(genesis.Add(-time.Minute))
	bc := New(fake, genesis, 5*time.Second)

	if got := bc.BlockNumber(); got != 0 {
		t.Fatalf("expected height 0 before genesis, got %d", got)
	}
	fake.Advance(time.Minute)
	if got := bc.BlockNumber(); got != 0 {
		t.Fatalf("expected height 0 at genesis, got %d", got)
	}
	fake.Advance(14 * time.Second)
	if got := bc.BlockNumber(); got != 2 {
		t.Fatalf("expected height 2, got %d", got)
	}
	fake.Advance(time.Second)
	if got := bc.BlockNumber(); got != 3 {
		t.Fatalf("expected height 3, got %d", got)
	}
	if got := bc.TimeOf(3); !got.Equal(genesis.Add(15 * time.Second)) {
		t.Fatalf("unexpected block time %s", got)
	}
}

func TestNewDefaultsInterval(t *testing.T) {
	bc := New(clockwork.NewFakeClock(), time.Unix(0, 0), 0)
	if bc.Interval() != time.Second {
		t.Fatalf("expected default interval, got %s", bc.Interval())
	}
}
