package events

import (
	"testing"

	"p3bridge/internal/p3"
)

func TestRingDropsOldestOnOverflow(t *testing.T) {
	b := NewRing(2)
	b.Push(&p3.Record{TOR: 1})
	b.Push(&p3.Record{TOR: 2})
	b.Push(&p3.Record{TOR: 3})

	recent := b.Recent(10)
	if len(recent) != 2 {
		t.Fatalf("got %d entries, want 2", len(recent))
	}
	if recent[0].Record.TOR != 3 || recent[1].Record.TOR != 2 {
		t.Fatalf("expected most-recent-first order [3,2], got [%d,%d]", recent[0].Record.TOR, recent[1].Record.TOR)
	}
}

func TestRingRecentRespectsMax(t *testing.T) {
	b := NewRing(10)
	for i := uint16(0); i < 5; i++ {
		b.Push(&p3.Record{TOR: i})
	}
	recent := b.Recent(3)
	if len(recent) != 3 {
		t.Fatalf("got %d entries, want 3", len(recent))
	}
}

func TestRingEmpty(t *testing.T) {
	b := NewRing(5)
	if got := b.Recent(10); len(got) != 0 {
		t.Fatalf("got %d entries from empty ring, want 0", len(got))
	}
}
