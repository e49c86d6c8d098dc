package opt

import (
	"cmp"
	"slices"
)

// Candidate is the cheapest feasible insertion found for one customer.
type Candidate struct {
	Customer    int
	Route       int
	Predecessor int
	// Cost is the finish time reached at the customer's successor once inserted.
	Cost  float64
	Score float64
}

// SortCandidates orders candidates by ascending insertion cost; ties keep input order.
func SortCandidates(cands []Candidate) {
	slices.SortStableFunc(cands, func(a, b Candidate) int {
		return cmp.Compare(a.Cost, b.Cost)
	})
}

// restrict returns the restricted candidate list: the first min(size, len) entries.
func restrict(sorted []Candidate, size int) []Candidate {
	if size < 1 {
		size = 1
	}
	if size > len(sorted) {
		size = len(sorted)
	}
	return sorted[:size]
}
