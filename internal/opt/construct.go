package opt

import (
	"fmt"
	"math/rand"
	"slices"
)

// ConstructionStats counts what one construction pass did.
type ConstructionStats struct {
	Evaluations  int
	Insertions   int
	RoutesOpened int
}

// Constructor runs greedy randomized construction passes over one problem.
// It owns its route state, departure times and random stream; use one per goroutine.
type Constructor struct {
	p       *Problem
	routes  *Routes
	times   *DepartureTimes
	eval    *Evaluator
	rng     *rand.Rand
	pending []int
	stats   ConstructionStats
}

func NewConstructor(p *Problem, rng *rand.Rand) *Constructor {
	if rng == nil {
		rng = NewRand(0)
	}
	routes := NewRoutes(p.POICount(), p.VehicleCount())
	return &Constructor{
		p:      p,
		routes: routes,
		times:  newDepartureTimes(routes.Size()),
		eval:   NewEvaluator(p),
		rng:    rng,
	}
}

// ConstructSolution rebuilds the routes from scratch with one greedy randomized pass.
// Customers that fit nowhere once every vehicle is in use stay pending; only an
// internal-consistency failure is reported as an error.
func (c *Constructor) ConstructSolution(rclSize int, policy Policy, alpha float64) error {
	if rclSize < 1 {
		return fmt.Errorf("construct solution: rcl size must be >= 1, got %d", rclSize)
	}
	sel := NewSelector(policy, alpha, c.p.MaxScore(), c.rng)

	c.routes.Reset()
	c.times.reset()
	c.pending = c.pending[:0]
	for j := 1; j <= c.p.POICount(); j++ {
		c.pending = append(c.pending, j)
	}
	c.stats = ConstructionStats{}

	for len(c.pending) > 0 {
		cands := c.evaluate()
		if len(cands) == 0 {
			if c.routes.RouteCount() >= c.p.VehicleCount() {
				break
			}
			if _, err := c.routes.CreateRoute(); err != nil {
				return fmt.Errorf("construct solution: %w", err)
			}
			c.times.addRow()
			c.stats.RoutesOpened++
			continue
		}

		rcl := restrict(cands, rclSize)
		pos := sel.Select(rcl)
		if pos < 0 || pos >= len(rcl) {
			return fmt.Errorf("construct solution: selector returned %d for %d candidates: %w", pos, len(rcl), ErrInvariant)
		}
		chosen := rcl[pos]
		c.pending = slices.DeleteFunc(c.pending, func(id int) bool { return id == chosen.Customer })
		if err := applyInsertion(c.p, c.routes, c.times, chosen); err != nil {
			return fmt.Errorf("construct solution: %w", err)
		}
		c.stats.Insertions++
	}
	return nil
}

func (c *Constructor) evaluate() []Candidate {
	c.stats.Evaluations++
	cands := c.eval.EvaluateAll(c.pending, c.times, c.routes)
	SortCandidates(cands)
	return cands
}

// Routes exposes the route state left by the last pass.
func (c *Constructor) Routes() *Routes { return c.routes }

func (c *Constructor) DepartureTimes() *DepartureTimes { return c.times }

// Pending returns the customers the last pass could not route.
func (c *Constructor) Pending() []int { return append([]int(nil), c.pending...) }

func (c *Constructor) Stats() ConstructionStats { return c.stats }

// Snapshot materialises the last pass as a Solution.
func (c *Constructor) Snapshot() (Solution, error) {
	return Snapshot(c.p, c.routes, c.times)
}
