package bot

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeSource struct {
	mu      sync.Mutex
	calls   int
	fetch   func(roundID uint64) (Snapshot, error)
	lastErr error
}

func (f *fakeSource) FetchSnapshot(_ context.Context, roundID uint64) (Snapshot, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.fetch != nil {
		return f.fetch(roundID)
	}
	return equalSnap(make([]uint64, 20)...), nil
}

func (f *fakeSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakePolicy struct {
	decision Decision
}

func (p fakePolicy) Evaluate(Snapshot, []Candidate) Decision {
	return p.decision
}

type fakeSubmitter struct {
	mu      sync.Mutex
	calls   int
	outcome Outcome
	sig     string
	err     error

	started chan struct{} // closed-ish: one token per call
	release chan struct{} // blocks Submit until fed, when non-nil
}

func (f *fakeSubmitter) Submit(ctx context.Context, sub Submission) (Outcome, string, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return OutcomeMissedDeadline, "", ctx.Err()
		}
	}
	return f.outcome, f.sig, f.err
}

func (f *fakeSubmitter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func commitDecision() Decision {
	return Decision{Commit: true, Amount: 1_000_000_000, Squares: []uint8{0, 1, 2}, Rate: 1.2}
}

type outcomeRecord struct {
	roundID uint64
	outcome Outcome
}

func newTestScheduler(src SnapshotSource, pol Policy, sub Submitter, window uint64, rec *[]outcomeRecord) *Scheduler {
	hooks := Hooks{}
	if rec != nil {
		hooks.OnOutcome = func(roundID uint64, out Outcome, _ string, _ error) {
			*rec = append(*rec, outcomeRecord{roundID: roundID, outcome: out})
		}
	}
	return NewScheduler(src, pol, sub, SchedulerConfig{
		Window:      window,
		Amount:      1_000_000_000,
		MinSquares:  3,
		PickSquares: 3,
		MaxRate:     10,
	}, hooks)
}

func pos(round, slot, start, end uint64) SlotPosition {
	return SlotPosition{RoundID: round, Slot: slot, StartSlot: start, EndSlot: end}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("condition not met in time")
}

func TestScheduler_NeverSubmitsAtZeroSlotsLeft(t *testing.T) {
	src := &fakeSource{}
	sub := &fakeSubmitter{outcome: OutcomeLanded}
	var rec []outcomeRecord
	s := newTestScheduler(src, fakePolicy{decision: commitDecision()}, sub, 5, &rec)

	s.Tick(context.Background(), pos(1, 200, 100, 200))
	if sub.callCount() != 0 {
		t.Fatalf("submitted with zero slots left")
	}
	if len(rec) != 1 || rec[0].outcome != OutcomeSkipped {
		t.Fatalf("rec=%+v want one skipped outcome", rec)
	}
	if st := s.Status(); st.Phase != PhaseSettled {
		t.Fatalf("phase=%s want settled", st.Phase)
	}
}

func TestScheduler_SubmitsAtMostOncePerRound(t *testing.T) {
	src := &fakeSource{}
	sub := &fakeSubmitter{
		outcome: OutcomeLanded,
		started: make(chan struct{}, 8),
		release: make(chan struct{}),
	}
	s := newTestScheduler(src, fakePolicy{decision: commitDecision()}, sub, 10, nil)

	ctx := context.Background()
	s.Tick(ctx, pos(1, 195, 100, 200))
	<-sub.started
	for i := 0; i < 5; i++ {
		s.Tick(ctx, pos(1, 195+uint64(i)%3, 100, 200))
	}
	close(sub.release)
	if got := sub.callCount(); got != 1 {
		t.Fatalf("submit calls=%d want 1", got)
	}
}

func TestScheduler_StaleSuspendsAction(t *testing.T) {
	src := &fakeSource{}
	sub := &fakeSubmitter{outcome: OutcomeLanded}
	s := newTestScheduler(src, fakePolicy{decision: commitDecision()}, sub, 10, nil)

	p := pos(1, 195, 100, 200)
	p.Stale = true
	s.Tick(context.Background(), p)
	if src.callCount() != 0 || sub.callCount() != 0 {
		t.Fatalf("acted on stale data: fetches=%d submits=%d", src.callCount(), sub.callCount())
	}
}

func TestScheduler_FetchFailureRetriedNextTick(t *testing.T) {
	fail := true
	src := &fakeSource{fetch: func(uint64) (Snapshot, error) {
		if fail {
			return Snapshot{}, ErrUnavailable
		}
		return equalSnap(make([]uint64, 20)...), nil
	}}
	sub := &fakeSubmitter{outcome: OutcomeLanded, started: make(chan struct{}, 1)}
	s := newTestScheduler(src, fakePolicy{decision: commitDecision()}, sub, 10, nil)

	ctx := context.Background()
	s.Tick(ctx, pos(1, 195, 100, 200))
	if sub.callCount() != 0 {
		t.Fatalf("submitted despite fetch failure")
	}
	fail = false
	s.Tick(ctx, pos(1, 196, 100, 200))
	<-sub.started
	if got := sub.callCount(); got != 1 {
		t.Fatalf("submit calls=%d want 1", got)
	}
}

func TestScheduler_RolloverSettlesPreviousRound(t *testing.T) {
	src := &fakeSource{}
	sub := &fakeSubmitter{outcome: OutcomeLanded}
	var rec []outcomeRecord
	s := newTestScheduler(src, fakePolicy{decision: Decision{Reason: "rate too high"}}, sub, 5, &rec)

	ctx := context.Background()
	s.Tick(ctx, pos(1, 150, 100, 200)) // watching, far from window
	s.Tick(ctx, pos(2, 210, 200, 300)) // rollover
	if len(rec) != 1 || rec[0] != (outcomeRecord{roundID: 1, outcome: OutcomeSkipped}) {
		t.Fatalf("rec=%+v want round 1 skipped", rec)
	}
	if st := s.Status(); st.RoundID != 2 || st.Phase == PhaseSettled {
		t.Fatalf("status=%+v want active round 2", st)
	}
}

func TestScheduler_WindowCloseAbortsInFlightSubmission(t *testing.T) {
	src := &fakeSource{}
	sub := &fakeSubmitter{
		outcome: OutcomeLanded,
		sig:     "late-sig",
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	var rec []outcomeRecord
	s := newTestScheduler(src, fakePolicy{decision: commitDecision()}, sub, 10, &rec)

	ctx := context.Background()
	s.Tick(ctx, pos(1, 195, 100, 200))
	<-sub.started

	s.Tick(ctx, pos(1, 200, 100, 200)) // window closes mid-flight
	if len(rec) != 1 || rec[0].outcome != OutcomeMissedDeadline {
		t.Fatalf("rec=%+v want missed_deadline", rec)
	}

	// A late confirmation must not resurrect the round.
	close(sub.release)
	waitFor(t, func() bool {
		select {
		case res := <-s.results:
			s.results <- res
			return true
		default:
			return false
		}
	})
	s.Tick(ctx, pos(1, 200, 100, 200))
	if len(rec) != 1 {
		t.Fatalf("outcome emitted twice: %+v", rec)
	}
	if st := s.Status(); st.Outcome != OutcomeMissedDeadline || st.Signature != "" {
		t.Fatalf("status=%+v want missed_deadline with no signature", st)
	}
}

func TestScheduler_SubmissionOutcomeSettlesRound(t *testing.T) {
	src := &fakeSource{}
	sub := &fakeSubmitter{outcome: OutcomeRejected, err: errors.New("declined"), started: make(chan struct{}, 1)}
	var rec []outcomeRecord
	s := newTestScheduler(src, fakePolicy{decision: commitDecision()}, sub, 10, &rec)

	ctx := context.Background()
	s.Tick(ctx, pos(1, 195, 100, 200))
	<-sub.started
	waitFor(t, func() bool {
		s.Tick(ctx, pos(1, 196, 100, 200))
		return len(rec) == 1
	})
	if rec[0].outcome != OutcomeRejected {
		t.Fatalf("outcome=%s want rejected", rec[0].outcome)
	}
}

func TestScheduler_RestoredRoundIsNotReentered(t *testing.T) {
	src := &fakeSource{}
	sub := &fakeSubmitter{outcome: OutcomeLanded}
	s := NewScheduler(src, fakePolicy{decision: commitDecision()}, sub, SchedulerConfig{
		Window:      10,
		Amount:      1_000_000_000,
		MinSquares:  3,
		PickSquares: 3,
		SkipRound:   7,
	}, Hooks{})

	s.Tick(context.Background(), pos(7, 195, 100, 200))
	if src.callCount() != 0 || sub.callCount() != 0 {
		t.Fatalf("re-entered checkpointed round: fetches=%d submits=%d", src.callCount(), sub.callCount())
	}
	if st := s.Status(); st.Phase != PhaseSettled {
		t.Fatalf("phase=%s want settled", st.Phase)
	}
}
