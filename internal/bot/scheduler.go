package bot

import (
	"context"
	"sync/atomic"
)

// Phase is where the scheduler is within the active round.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseWatching
	PhaseDeciding
	PhaseSubmitting
	PhaseSettled
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseWatching:
		return "watching"
	case PhaseDeciding:
		return "deciding"
	case PhaseSubmitting:
		return "submitting"
	case PhaseSettled:
		return "settled"
	default:
		return "unknown"
	}
}

// Hooks surface per-round events to the logging layer. All callbacks run
// on the tick goroutine and may be nil.
type Hooks struct {
	OnWatching func(pos SlotPosition)
	OnDeciding func(pos SlotPosition)
	OnDecision func(roundID uint64, d Decision, slotsLeft uint64)
	OnFetchErr func(roundID uint64, err error)
	OnOutcome  func(roundID uint64, out Outcome, signature string, err error)
}

// SchedulerConfig is fixed for the run.
type SchedulerConfig struct {
	// Window is the trailing slot window: action begins once
	// slots-remaining drops to this value or below.
	Window uint64

	Amount      uint64
	MinSquares  int
	PickSquares int

	// MaxRate is the candidate saturation bound.
	MaxRate float64

	// SkipRound is a round id already settled by a previous run; it is
	// marked settled on sight so a restart never double-submits.
	SkipRound uint64
}

type submitResult struct {
	roundID   uint64
	outcome   Outcome
	signature string
	err       error
}

type roundState struct {
	id        uint64
	phase     Phase
	latched   bool
	cancel    context.CancelFunc
	outcome   Outcome
	signature string

	// slotsLeft feeds the slot-derived deadline to the in-flight
	// submission for this round.
	slotsLeft atomic.Uint64
}

// Scheduler owns the round lifecycle: one round at a time, evaluated
// every tick inside the window, submitted at most once, always settled
// with exactly one terminal outcome. Tick must be called from a single
// goroutine.
type Scheduler struct {
	source    SnapshotSource
	policy    Policy
	submitter Submitter
	cfg       SchedulerConfig
	hooks     Hooks

	cur     *roundState
	results chan submitResult
}

func NewScheduler(source SnapshotSource, policy Policy, submitter Submitter, cfg SchedulerConfig, hooks Hooks) *Scheduler {
	return &Scheduler{
		source:    source,
		policy:    policy,
		submitter: submitter,
		cfg:       cfg,
		hooks:     hooks,
		results:   make(chan submitResult, 4),
	}
}

// RoundStatus is a point-in-time view for the status surface.
type RoundStatus struct {
	RoundID   uint64
	Phase     Phase
	Outcome   Outcome
	Signature string
}

func (s *Scheduler) Status() RoundStatus {
	if s.cur == nil {
		return RoundStatus{Phase: PhaseIdle}
	}
	return RoundStatus{
		RoundID:   s.cur.id,
		Phase:     s.cur.phase,
		Outcome:   s.cur.outcome,
		Signature: s.cur.signature,
	}
}

// Tick advances the state machine by one observation.
func (s *Scheduler) Tick(ctx context.Context, pos SlotPosition) {
	s.drainResults()

	if s.cur == nil || s.cur.id != pos.RoundID {
		s.rollover(pos)
	}
	cur := s.cur
	if cur.phase == PhaseSettled {
		return
	}

	// Never act on stale data; resume when the feed recovers.
	if pos.Stale {
		return
	}

	left := pos.SlotsLeft()
	cur.slotsLeft.Store(left)

	if left == 0 {
		s.closeWindow(cur)
		return
	}
	if cur.phase == PhaseSubmitting {
		return
	}

	if left > s.cfg.Window {
		if cur.phase != PhaseWatching {
			cur.phase = PhaseWatching
			if s.hooks.OnWatching != nil {
				s.hooks.OnWatching(pos)
			}
		}
		return
	}

	if cur.phase != PhaseDeciding {
		cur.phase = PhaseDeciding
		if s.hooks.OnDeciding != nil {
			s.hooks.OnDeciding(pos)
		}
	}

	snap, err := s.source.FetchSnapshot(ctx, pos.RoundID)
	if err != nil {
		// Implicit skip for this tick only.
		if s.hooks.OnFetchErr != nil {
			s.hooks.OnFetchErr(pos.RoundID, err)
		}
		return
	}

	cands := BuildCandidates(snap, s.stakePerSquare(), s.cfg.MaxRate)
	d := s.policy.Evaluate(snap, cands)
	if s.hooks.OnDecision != nil {
		s.hooks.OnDecision(pos.RoundID, d, left)
	}
	if !d.Commit {
		return
	}
	if cur.latched {
		return
	}
	cur.latched = true
	cur.phase = PhaseSubmitting

	subCtx, cancel := context.WithCancel(ctx)
	cur.cancel = cancel
	sub := Submission{
		RoundID:   cur.id,
		Amount:    d.Amount,
		Squares:   d.Squares,
		Rate:      d.Rate,
		SlotsLeft: left,
	}
	go func() {
		out, sig, err := s.submitter.Submit(subCtx, sub)
		s.results <- submitResult{roundID: sub.RoundID, outcome: out, signature: sig, err: err}
	}()
}

// SlotsLeft reports the live slot budget of the round currently being
// submitted; wired into the retry loop's deadline check.
func (s *Scheduler) SlotsLeft(roundID uint64) uint64 {
	cur := s.cur
	if cur == nil || cur.id != roundID {
		return 0
	}
	return cur.slotsLeft.Load()
}

func (s *Scheduler) stakePerSquare() uint64 {
	if s.cfg.PickSquares <= 0 {
		return s.cfg.Amount
	}
	return s.cfg.Amount / uint64(s.cfg.PickSquares)
}

func (s *Scheduler) drainResults() {
	for {
		select {
		case res := <-s.results:
			cur := s.cur
			if cur == nil || cur.id != res.roundID || cur.phase != PhaseSubmitting {
				// Late result for an already-settled round; discard.
				continue
			}
			s.settle(cur, res.outcome, res.signature, res.err)
		default:
			return
		}
	}
}

func (s *Scheduler) rollover(pos SlotPosition) {
	if prev := s.cur; prev != nil && prev.phase != PhaseSettled {
		if prev.phase == PhaseSubmitting {
			// The old round's deadline has passed; abort in flight.
			prev.slotsLeft.Store(0)
			if prev.cancel != nil {
				prev.cancel()
			}
			s.settle(prev, OutcomeMissedDeadline, "", nil)
		} else {
			s.settle(prev, OutcomeSkipped, "", nil)
		}
	}

	next := &roundState{id: pos.RoundID}
	if pos.RoundID == s.cfg.SkipRound && pos.RoundID != 0 {
		// Settled by a previous run; do not re-announce.
		next.phase = PhaseSettled
		next.outcome = OutcomeSkipped
	}
	s.cur = next
}

func (s *Scheduler) closeWindow(cur *roundState) {
	if cur.phase == PhaseSubmitting {
		if cur.cancel != nil {
			cur.cancel()
		}
		// A late confirmation may still arrive; it is discarded, the
		// round is missed.
		s.settle(cur, OutcomeMissedDeadline, "", nil)
		return
	}
	s.settle(cur, OutcomeSkipped, "", nil)
}

func (s *Scheduler) settle(cur *roundState, out Outcome, sig string, err error) {
	cur.phase = PhaseSettled
	cur.outcome = out
	cur.signature = sig
	if cur.cancel != nil {
		cur.cancel()
		cur.cancel = nil
	}
	if s.hooks.OnOutcome != nil {
		s.hooks.OnOutcome(cur.id, out, sig, err)
	}
}
