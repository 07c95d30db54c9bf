package bot

import "fmt"

// Decision is the outcome of one policy evaluation. At most one Commit
// decision is acted on per round; Skip decisions are re-evaluated every
// tick while the window stays open.
type Decision struct {
	Commit  bool
	Amount  uint64 // total lamports, split across Squares
	Squares []uint8
	Rate    float64 // blended refine rate of the pick set
	Reason  string  // set on Skip
}

// PolicyParams is the per-run configuration both policies share.
type PolicyParams struct {
	Amount      uint64 // lamports per round
	MinSquares  int
	PickSquares int
}

// Policy maps a snapshot plus its candidate set to a Decision. Both
// implementations are pure: evaluating twice on identical inputs yields
// identical decisions, so the scheduler may re-check right up to the
// window edge.
type Policy interface {
	Evaluate(s Snapshot, cands []Candidate) Decision
}

// ThresholdPolicy accepts when the blended refine rate of the top picks,
// after adding the round's stake, stays at or below a fixed bound.
type ThresholdPolicy struct {
	Params    PolicyParams
	Threshold float64
}

func (p ThresholdPolicy) Evaluate(s Snapshot, cands []Candidate) Decision {
	if len(cands) < p.Params.MinSquares {
		return Decision{Reason: fmt.Sprintf("insufficient candidates: %d < %d", len(cands), p.Params.MinSquares)}
	}

	ids := SelectSquares(cands, p.Params.PickSquares, p.Params.MinSquares)
	if len(ids) == 0 {
		return Decision{Reason: "selector returned no squares"}
	}
	picks := rankCandidates(cands)[:len(ids)]

	rate := s.BlendedRate(picks, p.Params.Amount)
	if rate > p.Threshold {
		return Decision{
			Rate:   rate,
			Reason: fmt.Sprintf("blended rate %.4f above threshold %.4f", rate, p.Threshold),
		}
	}
	return Decision{
		Commit:  true,
		Amount:  p.Params.Amount,
		Squares: ids,
		Rate:    rate,
	}
}

// OptimizedPolicy derives its bound from the candidate distribution each
// tick instead of a fixed threshold: the mean candidate rate, floored at
// MinBound. It then decides exactly as ThresholdPolicy would with that
// bound, so the two agree whenever the threshold equals the derived bound.
type OptimizedPolicy struct {
	Params   PolicyParams
	MinBound float64
}

// Bound returns the acceptance bound this candidate set implies.
func (p OptimizedPolicy) Bound(cands []Candidate) float64 {
	if len(cands) == 0 {
		return p.MinBound
	}
	var sum float64
	for _, c := range cands {
		sum += c.Rate
	}
	bound := sum / float64(len(cands))
	if bound < p.MinBound {
		bound = p.MinBound
	}
	return bound
}

func (p OptimizedPolicy) Evaluate(s Snapshot, cands []Candidate) Decision {
	return ThresholdPolicy{Params: p.Params, Threshold: p.Bound(cands)}.Evaluate(s, cands)
}
