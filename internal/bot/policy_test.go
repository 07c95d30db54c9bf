package bot

import (
	"reflect"
	"strings"
	"testing"
)

func candidatesFrom(s Snapshot, stakePerSquare uint64) []Candidate {
	return BuildCandidates(s, stakePerSquare, 0)
}

func TestThresholdPolicy_InsufficientCandidates(t *testing.T) {
	// 8 eligible squares against a 12 minimum: always Skip, regardless
	// of how cheap they are.
	s := equalSnap(0, 0, 0, 0, 0, 0, 0, 0)
	p := ThresholdPolicy{
		Params:    PolicyParams{Amount: 1_000_000_000, MinSquares: 12, PickSquares: 5},
		Threshold: 1.3,
	}
	d := p.Evaluate(s, candidatesFrom(s, 200_000_000))
	if d.Commit {
		t.Fatalf("expected Skip, got %+v", d)
	}
	if !strings.Contains(d.Reason, "insufficient candidates") {
		t.Fatalf("reason=%q", d.Reason)
	}
}

func TestThresholdPolicy_CommitScenario(t *testing.T) {
	// 20 squares; the cheapest five hold 1.05 SOL each. Adding 1 SOL
	// across them blends to (5*1.05+1)/5 = 1.25, under the 1.3 bound.
	committed := make([]uint64, 20)
	for i := range committed {
		if i < 5 {
			committed[i] = 1_050_000_000
		} else {
			committed[i] = 2_000_000_000
		}
	}
	s := equalSnap(committed...)
	p := ThresholdPolicy{
		Params:    PolicyParams{Amount: 1_000_000_000, MinSquares: 12, PickSquares: 5},
		Threshold: 1.3,
	}
	d := p.Evaluate(s, candidatesFrom(s, 200_000_000))
	if !d.Commit {
		t.Fatalf("expected Commit, got %+v", d)
	}
	if want := []uint8{0, 1, 2, 3, 4}; !reflect.DeepEqual(d.Squares, want) {
		t.Fatalf("squares=%v want %v", d.Squares, want)
	}
	if d.Rate != 1.25 {
		t.Fatalf("rate=%v want 1.25", d.Rate)
	}
	if d.Amount != 1_000_000_000 {
		t.Fatalf("amount=%d", d.Amount)
	}
}

func TestThresholdPolicy_RateAboveThreshold(t *testing.T) {
	committed := make([]uint64, 15)
	for i := range committed {
		committed[i] = 3_000_000_000
	}
	s := equalSnap(committed...)
	p := ThresholdPolicy{
		Params:    PolicyParams{Amount: 1_000_000_000, MinSquares: 12, PickSquares: 5},
		Threshold: 1.3,
	}
	d := p.Evaluate(s, candidatesFrom(s, 200_000_000))
	if d.Commit {
		t.Fatalf("expected Skip, got %+v", d)
	}
	if !strings.Contains(d.Reason, "above threshold") {
		t.Fatalf("reason=%q", d.Reason)
	}
}

func TestPolicy_Idempotent(t *testing.T) {
	committed := make([]uint64, 15)
	for i := range committed {
		committed[i] = uint64(i) * 100_000_000
	}
	s := equalSnap(committed...)
	cands := candidatesFrom(s, 200_000_000)

	for _, p := range []Policy{
		ThresholdPolicy{Params: PolicyParams{Amount: 1_000_000_000, MinSquares: 12, PickSquares: 5}, Threshold: 1.3},
		OptimizedPolicy{Params: PolicyParams{Amount: 1_000_000_000, MinSquares: 12, PickSquares: 5}, MinBound: 1.1},
	} {
		d1 := p.Evaluate(s, cands)
		d2 := p.Evaluate(s, cands)
		if !reflect.DeepEqual(d1, d2) {
			t.Fatalf("%T not idempotent: %+v vs %+v", p, d1, d2)
		}
	}
}

func TestOptimizedPolicy_ConsistentWithThreshold(t *testing.T) {
	committed := make([]uint64, 18)
	for i := range committed {
		committed[i] = uint64(i+1) * 150_000_000
	}
	s := equalSnap(committed...)
	cands := candidatesFrom(s, 200_000_000)

	params := PolicyParams{Amount: 1_000_000_000, MinSquares: 12, PickSquares: 5}
	opt := OptimizedPolicy{Params: params, MinBound: 1.1}
	fixed := ThresholdPolicy{Params: params, Threshold: opt.Bound(cands)}

	if got, want := opt.Evaluate(s, cands), fixed.Evaluate(s, cands); !reflect.DeepEqual(got, want) {
		t.Fatalf("optimized=%+v threshold=%+v", got, want)
	}
}

func TestOptimizedPolicy_BoundFloor(t *testing.T) {
	p := OptimizedPolicy{MinBound: 1.1}
	cands := []Candidate{{Rate: 0.2}, {Rate: 0.4}}
	if got := p.Bound(cands); got != 1.1 {
		t.Fatalf("bound=%v want floor 1.1", got)
	}
	if got := p.Bound(nil); got != 1.1 {
		t.Fatalf("bound=%v want floor for empty set", got)
	}
	cands = []Candidate{{Rate: 1.25}, {Rate: 1.75}}
	if got := p.Bound(cands); got != 1.5 {
		t.Fatalf("bound=%v want mean 1.5", got)
	}
}
