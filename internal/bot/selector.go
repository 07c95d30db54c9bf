package bot

import "sort"

// rankCandidates returns a copy sorted by ascending rate, square id
// breaking ties. The total order keeps selection deterministic.
func rankCandidates(cands []Candidate) []Candidate {
	ordered := make([]Candidate, len(cands))
	copy(ordered, cands)
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].Rate != ordered[j].Rate {
			return ordered[i].Rate < ordered[j].Rate
		}
		return ordered[i].ID < ordered[j].ID
	})
	return ordered
}

// SelectSquares picks up to pick square ids from the candidate set,
// ordered by ascending rate with square id as tie-break. It returns nil
// when fewer than min candidates are eligible; the policy enforces the
// same precondition, this is the backstop.
func SelectSquares(cands []Candidate, pick, min int) []uint8 {
	if pick <= 0 || len(cands) < min {
		return nil
	}

	ordered := rankCandidates(cands)
	if pick > len(ordered) {
		pick = len(ordered)
	}
	out := make([]uint8, 0, pick)
	for _, c := range ordered[:pick] {
		out = append(out, c.ID)
	}
	return out
}
