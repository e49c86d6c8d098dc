package opt

import (
	"fmt"
	"strings"
)

// Visit is one served customer with its schedule.
type Visit struct {
	Node      int
	Arrival   float64
	Start     float64
	Departure float64
}

// Route is the schedule of one vehicle. Return is the arrival time back at the depot.
type Route struct {
	Vehicle int
	Visits  []Visit
	Score   float64
	Return  float64
}

// Solution is an immutable copy of a construction pass.
type Solution struct {
	Routes   []Route
	Unrouted []int
	Fitness  float64
}

// Snapshot re-derives the schedule of every route from its visiting order and
// collects the customers left out.
func Snapshot(p *Problem, routes *Routes, times *DepartureTimes) (Solution, error) {
	var s Solution
	for k := 0; k < routes.RouteCount(); k++ {
		seq, err := routes.Sequence(k)
		if err != nil {
			return Solution{}, fmt.Errorf("snapshot: %w", err)
		}
		r := Route{Vehicle: k, Visits: make([]Visit, 0, len(seq))}
		prev, t := 0, 0.0
		for _, n := range seq {
			arrival := t + p.Distance(prev, n)
			start := arrival
			if start < p.ReadyTime(n) {
				start = p.ReadyTime(n)
			}
			t = start + p.ServiceTime(n)
			if times != nil && k < times.Rows() && times.At(k, n) != t {
				return Solution{}, fmt.Errorf("snapshot: route %d node %d departs at %v, table says %v: %w", k, n, t, times.At(k, n), ErrInvariant)
			}
			r.Visits = append(r.Visits, Visit{Node: n, Arrival: arrival, Start: start, Departure: t})
			r.Score += p.Score(n)
			prev = n
		}
		r.Return = t + p.Distance(prev, 0)
		s.Routes = append(s.Routes, r)
		s.Fitness += r.Score
	}
	for n := 1; n <= p.POICount(); n++ {
		if !routes.IsRouted(n) {
			s.Unrouted = append(s.Unrouted, n)
		}
	}
	return s, nil
}

// Evaluate is the objective: total score of routed customers.
func Evaluate(s Solution) float64 {
	total := 0.0
	for _, r := range s.Routes {
		total += r.Score
	}
	return total
}

// Verify recomputes every schedule against p and reports the first broken rule.
func (s Solution) Verify(p *Problem) error {
	if len(s.Routes) > p.VehicleCount() {
		return fmt.Errorf("verify solution: %d routes for %d vehicles: %w", len(s.Routes), p.VehicleCount(), ErrRouteLimit)
	}
	seen := make(map[int]bool, p.POICount())
	for _, r := range s.Routes {
		prev, t := 0, 0.0
		for _, v := range r.Visits {
			if v.Node < 1 || v.Node > p.POICount() {
				return fmt.Errorf("verify solution: route %d visits node %d: %w", r.Vehicle, v.Node, ErrInvariant)
			}
			if seen[v.Node] {
				return fmt.Errorf("verify solution: customer %d routed twice: %w", v.Node, ErrInvariant)
			}
			seen[v.Node] = true
			arrival := t + p.Distance(prev, v.Node)
			if arrival >= p.DueTime(v.Node) {
				return fmt.Errorf("verify solution: customer %d arrives at %v, due %v: %w", v.Node, arrival, p.DueTime(v.Node), ErrInvariant)
			}
			t = p.finishAt(v.Node, arrival)
			if t > p.MaxRouteDuration() {
				return fmt.Errorf("verify solution: route %d leaves %d at %v past %v: %w", r.Vehicle, v.Node, t, p.MaxRouteDuration(), ErrInvariant)
			}
			prev = v.Node
		}
		if len(r.Visits) == 0 {
			continue
		}
		ret := t + p.Distance(prev, 0)
		if ret >= p.DueTime(0) || p.finishAt(0, ret) > p.MaxRouteDuration() {
			return fmt.Errorf("verify solution: route %d returns at %v, depot due %v, cap %v: %w", r.Vehicle, ret, p.DueTime(0), p.MaxRouteDuration(), ErrInvariant)
		}
	}
	for _, n := range s.Unrouted {
		if seen[n] {
			return fmt.Errorf("verify solution: customer %d both routed and unrouted: %w", n, ErrInvariant)
		}
	}
	return nil
}

// String renders the per-route report printed by the CLI.
func (s Solution) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "fitness: %.2f  routes: %d  unrouted: %d\n", s.Fitness, len(s.Routes), len(s.Unrouted))
	for _, r := range s.Routes {
		fmt.Fprintf(&b, "route %d (score %.2f, back at %.2f): 0", r.Vehicle, r.Score, r.Return)
		for _, v := range r.Visits {
			fmt.Fprintf(&b, " -> %d", v.Node)
		}
		b.WriteString(" -> 0\n")
		for _, v := range r.Visits {
			fmt.Fprintf(&b, "  %4d  arrive %8.2f  start %8.2f  leave %8.2f\n", v.Node, v.Arrival, v.Start, v.Departure)
		}
	}
	if len(s.Unrouted) > 0 {
		fmt.Fprintf(&b, "unrouted: %v\n", s.Unrouted)
	}
	return b.String()
}
