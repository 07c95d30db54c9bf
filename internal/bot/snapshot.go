package bot

import (
	"context"
	"errors"
	"math"
	"sort"
)

// ErrUnavailable means the snapshot source could not be read this tick.
// The scheduler skips the tick and retries while the window stays open.
var ErrUnavailable = errors.New("square snapshot unavailable")

// Square is one allocation unit's committed state at snapshot time.
type Square struct {
	ID        uint8
	Committed uint64 // lamports deployed by all miners
}

// Snapshot is the per-tick view of the board. It is immutable and valid
// only for the tick that produced it; other miners move the committed
// values continuously, so snapshots are never cached across ticks.
type Snapshot struct {
	RoundID uint64
	Squares []Square

	OreUSD float64
	SolUSD float64

	// EmissionPerSquare is the atomic ORE a square pays out when it wins.
	EmissionPerSquare uint64
}

// SnapshotSource reads the current board state for a round.
type SnapshotSource interface {
	FetchSnapshot(ctx context.Context, roundID uint64) (Snapshot, error)
}

// Candidate is a square eligible for deployment, scored by refine rate.
// Lower is better: the rate is SOL paid per ORE received, both in USD, so
// a rate above 1 is overpaying relative to spot.
type Candidate struct {
	ID        uint8
	Committed uint64
	Rate      float64
}

// RefineRate scores a square given the stake that would be added to it.
// The rate is monotone in committed value, which is all the policy and
// selector rely on; the on-chain settlement math stays opaque.
func (s Snapshot) RefineRate(committed, stake uint64) float64 {
	oreSideUSD := s.OreUSD * float64(s.EmissionPerSquare) / 1e11
	if oreSideUSD <= 0 {
		return math.Inf(1)
	}
	solSideUSD := s.SolUSD * float64(committed+stake) / 1e9
	return solSideUSD / oreSideUSD
}

// BuildCandidates scores every square and drops the saturated ones: a
// square whose rate already exceeds maxRate with zero added stake cannot
// become acceptable by deploying into it. stakePerSquare is the lamports
// this bot would add to each chosen square. The result is sorted by
// ascending rate, square id breaking ties.
func BuildCandidates(s Snapshot, stakePerSquare uint64, maxRate float64) []Candidate {
	out := make([]Candidate, 0, len(s.Squares))
	for _, sq := range s.Squares {
		if maxRate > 0 && s.RefineRate(sq.Committed, 0) > maxRate {
			continue
		}
		out = append(out, Candidate{
			ID:        sq.ID,
			Committed: sq.Committed,
			Rate:      s.RefineRate(sq.Committed, stakePerSquare),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Rate != out[j].Rate {
			return out[i].Rate < out[j].Rate
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// BlendedRate is the refine rate of a whole pick set: total SOL in versus
// total emission out, as if the set were one big square.
func (s Snapshot) BlendedRate(picks []Candidate, totalStake uint64) float64 {
	if len(picks) == 0 {
		return math.Inf(1)
	}
	oreSideUSD := s.OreUSD * float64(s.EmissionPerSquare) * float64(len(picks)) / 1e11
	if oreSideUSD <= 0 {
		return math.Inf(1)
	}
	var committed uint64
	for _, c := range picks {
		committed += c.Committed
	}
	solSideUSD := s.SolUSD * float64(committed+totalStake) / 1e9
	return solSideUSD / oreSideUSD
}
