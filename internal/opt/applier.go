package opt

import "fmt"

// applyInsertion splices cand.Customer after cand.Predecessor and recomputes the
// departure times of every node from the insertion point back to the depot.
// Feasibility was certified by the evaluator, so due times are not re-checked.
func applyInsertion(p *Problem, routes *Routes, times *DepartureTimes, cand Candidate) error {
	c, pre, k := cand.Customer, cand.Predecessor, cand.Route
	if routes.IsDepot(c) || routes.IsRouted(c) {
		return fmt.Errorf("apply insertion: customer %d is not insertable: %w", c, ErrInvariant)
	}
	if k < 0 || k >= routes.RouteCount() {
		return fmt.Errorf("apply insertion: route %d of %d: %w", k, routes.RouteCount(), ErrInvariant)
	}

	suc := routes.Successor(pre)
	if suc == unlinked {
		return fmt.Errorf("apply insertion: predecessor %d is not routed: %w", pre, ErrInvariant)
	}
	routes.SetPredecessor(c, pre)
	routes.SetSuccessor(c, suc)
	routes.SetSuccessor(pre, c)
	routes.SetPredecessor(suc, c)

	depot := routes.DepotOf(k)
	t := times.At(k, pre)
	node := pre
	for steps := 0; ; steps++ {
		if steps > routes.Size() {
			return fmt.Errorf("apply insertion: route %d after inserting %d: %w", k, c, ErrBrokenRoute)
		}
		next := routes.Successor(node)
		t = p.finishAt(next, t+p.Distance(node, next))
		if !routes.IsDepot(next) {
			times.set(k, next, t)
		}
		if next == depot {
			return nil
		}
		node = next
	}
}
