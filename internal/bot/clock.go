// Package bot implements the round-monitoring and deployment-decision
// engine: it tracks slot progress within the current board round, scores
// squares each tick, applies the configured acceptance policy, and fires a
// single atomic deployment inside the trailing slot window before the round
// closes.
package bot

import (
	"context"
	"sync"
	"time"
)

// SlotPosition is one observation of where the chain is inside a round.
// Stale means the backing reads are older than the configured bound; the
// scheduler never acts on a stale position.
type SlotPosition struct {
	RoundID   uint64
	Slot      uint64
	StartSlot uint64
	EndSlot   uint64
	Stale     bool
}

// SlotsLeft returns how many slots remain before the round closes.
func (p SlotPosition) SlotsLeft() uint64 {
	if p.Slot >= p.EndSlot {
		return 0
	}
	return p.EndSlot - p.Slot
}

// RoundBounds is the board state a position is derived from.
type RoundBounds struct {
	RoundID   uint64
	StartSlot uint64
	EndSlot   uint64
}

// ChainReader is the slot/board source the tracker polls. Both calls may
// block on the transport.
type ChainReader interface {
	CurrentSlot(ctx context.Context) (uint64, error)
	CurrentRound(ctx context.Context) (RoundBounds, error)
}

// Tracker refreshes slot and round state on background loops so Poll stays
// non-blocking at tick frequency.
type Tracker struct {
	reader     ChainReader
	slotEvery  time.Duration
	boardEvery time.Duration
	staleAfter time.Duration

	mu          sync.Mutex
	slot        uint64
	bounds      RoundBounds
	haveSlot    bool
	haveBounds  bool
	lastRefresh time.Time

	onError func(err error)
}

type TrackerOptions struct {
	// SlotEvery is the slot poll cadence; should be well under a slot
	// duration so the submission window is never skipped over.
	SlotEvery  time.Duration
	BoardEvery time.Duration
	StaleAfter time.Duration

	// OnError receives transport errors from the refresh loops.
	OnError func(err error)
}

func (o TrackerOptions) withDefaults() TrackerOptions {
	if o.SlotEvery <= 0 {
		o.SlotEvery = 150 * time.Millisecond
	}
	if o.BoardEvery <= 0 {
		o.BoardEvery = time.Second
	}
	if o.StaleAfter <= 0 {
		o.StaleAfter = 2 * time.Second
	}
	return o
}

func NewTracker(reader ChainReader, opts TrackerOptions) *Tracker {
	opts = opts.withDefaults()
	return &Tracker{
		reader:     reader,
		slotEvery:  opts.SlotEvery,
		boardEvery: opts.BoardEvery,
		staleAfter: opts.StaleAfter,
		onError:    opts.OnError,
	}
}

// Start launches the refresh loops; they stop when ctx is cancelled.
func (t *Tracker) Start(ctx context.Context) {
	go t.loop(ctx, t.slotEvery, t.refreshSlot)
	go t.loop(ctx, t.boardEvery, t.refreshBounds)
}

func (t *Tracker) loop(ctx context.Context, every time.Duration, refresh func(context.Context) error) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	// Prime immediately instead of waiting a full period.
	if err := refresh(ctx); err != nil && ctx.Err() == nil {
		t.emitError(err)
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := refresh(ctx); err != nil && ctx.Err() == nil {
				t.emitError(err)
			}
		}
	}
}

func (t *Tracker) refreshSlot(ctx context.Context) error {
	slot, err := t.reader.CurrentSlot(ctx)
	if err != nil {
		return err
	}
	t.mu.Lock()
	t.slot = slot
	t.haveSlot = true
	t.lastRefresh = time.Now()
	t.mu.Unlock()
	return nil
}

func (t *Tracker) refreshBounds(ctx context.Context) error {
	bounds, err := t.reader.CurrentRound(ctx)
	if err != nil {
		return err
	}
	t.mu.Lock()
	t.bounds = bounds
	t.haveBounds = true
	t.mu.Unlock()
	return nil
}

func (t *Tracker) emitError(err error) {
	if t.onError != nil {
		t.onError(err)
	}
}

// Poll returns the latest known position without blocking. ok is false
// until both the slot and the round bounds have been read at least once.
// On a failed refresh the previous position is returned with Stale set
// once it ages past the bound; the caller suspends rather than halting.
func (t *Tracker) Poll() (SlotPosition, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.haveSlot || !t.haveBounds {
		return SlotPosition{}, false
	}
	return SlotPosition{
		RoundID:   t.bounds.RoundID,
		Slot:      t.slot,
		StartSlot: t.bounds.StartSlot,
		EndSlot:   t.bounds.EndSlot,
		Stale:     time.Since(t.lastRefresh) > t.staleAfter,
	}, true
}
