package bot

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeReader struct {
	slot    uint64
	slotErr error
	bounds  RoundBounds
}

func (f *fakeReader) CurrentSlot(context.Context) (uint64, error) {
	if f.slotErr != nil {
		return 0, f.slotErr
	}
	return f.slot, nil
}

func (f *fakeReader) CurrentRound(context.Context) (RoundBounds, error) {
	return f.bounds, nil
}

func TestSlotPosition_SlotsLeft(t *testing.T) {
	p := SlotPosition{Slot: 195, EndSlot: 200}
	if got := p.SlotsLeft(); got != 5 {
		t.Fatalf("got=%d want 5", got)
	}
	p.Slot = 200
	if got := p.SlotsLeft(); got != 0 {
		t.Fatalf("got=%d want 0", got)
	}
	p.Slot = 250
	if got := p.SlotsLeft(); got != 0 {
		t.Fatalf("got=%d want 0 past the end", got)
	}
}

func TestTracker_PollBeforeFirstRefresh(t *testing.T) {
	tr := NewTracker(&fakeReader{}, TrackerOptions{})
	if _, ok := tr.Poll(); ok {
		t.Fatalf("expected ok=false before any refresh")
	}
}

func TestTracker_PollAfterRefresh(t *testing.T) {
	reader := &fakeReader{
		slot:   150,
		bounds: RoundBounds{RoundID: 3, StartSlot: 100, EndSlot: 200},
	}
	tr := NewTracker(reader, TrackerOptions{StaleAfter: time.Minute})

	ctx := context.Background()
	if err := tr.refreshSlot(ctx); err != nil {
		t.Fatalf("refreshSlot: %v", err)
	}
	if err := tr.refreshBounds(ctx); err != nil {
		t.Fatalf("refreshBounds: %v", err)
	}

	pos, ok := tr.Poll()
	if !ok {
		t.Fatalf("expected ok=true")
	}
	if pos.RoundID != 3 || pos.Slot != 150 || pos.SlotsLeft() != 50 {
		t.Fatalf("pos=%+v", pos)
	}
	if pos.Stale {
		t.Fatalf("fresh position flagged stale")
	}
}

func TestTracker_StalenessOnRefreshFailure(t *testing.T) {
	reader := &fakeReader{
		slot:   150,
		bounds: RoundBounds{RoundID: 3, StartSlot: 100, EndSlot: 200},
	}
	tr := NewTracker(reader, TrackerOptions{StaleAfter: 10 * time.Millisecond})

	ctx := context.Background()
	if err := tr.refreshSlot(ctx); err != nil {
		t.Fatalf("refreshSlot: %v", err)
	}
	if err := tr.refreshBounds(ctx); err != nil {
		t.Fatalf("refreshBounds: %v", err)
	}

	// The source goes away; the last position is kept but goes stale.
	reader.slotErr = errors.New("rpc down")
	if err := tr.refreshSlot(ctx); err == nil {
		t.Fatalf("expected refresh error")
	}
	time.Sleep(20 * time.Millisecond)

	pos, ok := tr.Poll()
	if !ok {
		t.Fatalf("expected ok=true with previous position")
	}
	if !pos.Stale {
		t.Fatalf("expected stale position, got %+v", pos)
	}
	if pos.Slot != 150 {
		t.Fatalf("slot=%d want previous 150", pos.Slot)
	}
}
