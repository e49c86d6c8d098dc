package opt

import "math"

// Evaluator finds, for each pending customer, its cheapest insertion that keeps every
// downstream time window and the route duration cap satisfied.
type Evaluator struct {
	p *Problem
}

func NewEvaluator(p *Problem) *Evaluator { return &Evaluator{p: p} }

// EvaluateAll returns at most one candidate per pending customer, in pending order.
// It only reads routes and times.
func (e *Evaluator) EvaluateAll(pending []int, times *DepartureTimes, routes *Routes) []Candidate {
	out := make([]Candidate, 0, len(pending))
	for _, c := range pending {
		best := Candidate{Customer: -1, Cost: math.MaxFloat64}
		for k := 0; k < routes.RouteCount(); k++ {
			depot := routes.DepotOf(k)
			pre := depot
			for {
				suc := routes.Successor(pre)
				if cost, ok := e.insertionCost(c, k, pre, suc, depot, times, routes); ok && cost < best.Cost {
					best = Candidate{Customer: c, Route: k, Predecessor: pre, Cost: cost, Score: e.p.Score(c)}
				}
				if suc == depot {
					break
				}
				pre = suc
			}
		}
		if best.Customer != -1 {
			out = append(out, best)
		}
	}
	return out
}

// insertionCost simulates c between pre and suc on route k and propagates the
// schedule back to the depot. The cost is the finish time at suc. Arrivals must be
// strictly before due times; finishes must not exceed the route duration cap.
func (e *Evaluator) insertionCost(c, k, pre, suc, depot int, times *DepartureTimes, routes *Routes) (float64, bool) {
	p := e.p
	maxT := p.MaxRouteDuration()

	arrival := times.At(k, pre) + p.Distance(pre, c)
	if arrival >= p.DueTime(c) {
		return 0, false
	}
	finish := p.finishAt(c, arrival)
	if finish > maxT {
		return 0, false
	}

	arrival = finish + p.Distance(c, suc)
	if arrival >= p.DueTime(suc) {
		return 0, false
	}
	cost := p.finishAt(suc, arrival)
	if cost > maxT {
		return 0, false
	}

	t := cost
	for node, steps := suc, 0; node != depot; steps++ {
		if steps > routes.Size() {
			return 0, false
		}
		next := routes.Successor(node)
		arrival = t + p.Distance(node, next)
		if arrival >= p.DueTime(next) {
			return 0, false
		}
		t = p.finishAt(next, arrival)
		if t > maxT {
			return 0, false
		}
		node = next
	}
	return cost, true
}
