package bot

import (
	"context"
	"errors"
	"time"
)

// ErrRejected means the remote side declined a sound submission; the
// round is settled terminally with no further attempts.
var ErrRejected = errors.New("submission rejected")

// Submission is one committed decision handed to the transport.
type Submission struct {
	RoundID uint64
	Amount  uint64
	Squares []uint8
	Rate    float64

	// SlotsLeft at decision time; passed through to the on-chain call.
	SlotsLeft uint64
}

// Transport performs a single submission attempt and returns a
// transaction signature. A returned error wrapping ErrRejected is
// terminal; anything else is a retryable transport failure.
type Transport interface {
	SubmitOnce(ctx context.Context, sub Submission) (string, error)
}

// Outcome is the terminal result of a round.
type Outcome int

const (
	OutcomePending Outcome = iota
	OutcomeSkipped
	OutcomeLanded
	OutcomeRejected
	OutcomeMissedDeadline
	OutcomeTransportError
)

func (o Outcome) String() string {
	switch o {
	case OutcomePending:
		return "pending"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeLanded:
		return "landed"
	case OutcomeRejected:
		return "rejected"
	case OutcomeMissedDeadline:
		return "missed_deadline"
	case OutcomeTransportError:
		return "transport_error"
	default:
		return "unknown"
	}
}

// Terminal reports whether the outcome ends the round.
func (o Outcome) Terminal() bool {
	return o != OutcomePending
}

// Submitter runs a decision to a terminal outcome.
type Submitter interface {
	Submit(ctx context.Context, sub Submission) (Outcome, string, error)
}

// RetrySubmitter retries transport failures while slots remain in the
// round, then escalates to MissedDeadline. Rejections are never retried.
type RetrySubmitter struct {
	Transport Transport

	// SlotsLeft reports the live slot budget for the round being
	// submitted; the deadline is slot-derived, not wall-clock.
	SlotsLeft func(roundID uint64) uint64

	RetryDelay  time.Duration
	MaxAttempts int
}

func (s *RetrySubmitter) Submit(ctx context.Context, sub Submission) (Outcome, string, error) {
	delay := s.RetryDelay
	if delay <= 0 {
		delay = 100 * time.Millisecond
	}
	maxAttempts := s.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 5
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if ctx.Err() != nil {
			return OutcomeMissedDeadline, "", ctx.Err()
		}
		if s.SlotsLeft != nil && s.SlotsLeft(sub.RoundID) == 0 {
			return OutcomeMissedDeadline, "", lastErr
		}

		sig, err := s.Transport.SubmitOnce(ctx, sub)
		if err == nil {
			return OutcomeLanded, sig, nil
		}
		if errors.Is(err, ErrRejected) {
			return OutcomeRejected, "", err
		}
		if ctx.Err() != nil {
			return OutcomeMissedDeadline, "", err
		}
		lastErr = err

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return OutcomeMissedDeadline, "", lastErr
		case <-t.C:
		}
	}
	return OutcomeTransportError, "", lastErr
}
