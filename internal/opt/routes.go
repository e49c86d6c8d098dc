package opt

import (
	"errors"
	"fmt"
)

var (
	// ErrInvariant marks an internal-consistency failure of the route state.
	ErrInvariant = errors.New("route invariant violated")
	// ErrRouteLimit is returned when opening a route would exceed the fleet size.
	ErrRouteLimit = fmt.Errorf("route count would exceed vehicle count: %w", ErrInvariant)
	// ErrBrokenRoute is returned when a successor chain never returns to its depot.
	ErrBrokenRoute = fmt.Errorf("route does not return to its depot: %w", ErrInvariant)
)

const unlinked = -1

type link struct {
	pred, succ int
}

// Routes is the arena of predecessor/successor links for every open route.
// Slots 0..poiCount are the depot and the customers; slots poiCount+k for k >= 1
// are the depot aliases anchoring route k. Route 0 is anchored at node 0.
type Routes struct {
	poiCount int
	vehicles int
	links    []link
	depots   []int
}

// NewRoutes allocates the arena with route 0 open and empty.
func NewRoutes(poiCount, vehicles int) *Routes {
	r := &Routes{
		poiCount: poiCount,
		vehicles: vehicles,
		links:    make([]link, poiCount+vehicles),
		depots:   make([]int, 0, vehicles),
	}
	r.Reset()
	return r
}

// Reset unlinks every node and reopens route 0.
func (r *Routes) Reset() {
	for i := range r.links {
		r.links[i] = link{pred: unlinked, succ: unlinked}
	}
	r.depots = r.depots[:0]
	r.open(0)
}

func (r *Routes) open(depot int) int {
	r.links[depot] = link{pred: depot, succ: depot}
	r.depots = append(r.depots, depot)
	return len(r.depots) - 1
}

// CreateRoute opens an empty route for the next vehicle and returns its index.
func (r *Routes) CreateRoute() (int, error) {
	k := len(r.depots)
	if k >= r.vehicles {
		return -1, fmt.Errorf("create route %d with %d vehicles: %w", k, r.vehicles, ErrRouteLimit)
	}
	return r.open(r.poiCount + k), nil
}

func (r *Routes) RouteCount() int { return len(r.depots) }

func (r *Routes) VehicleCount() int { return r.vehicles }

// DepotOf returns the depot id anchoring route k.
func (r *Routes) DepotOf(k int) int { return r.depots[k] }

func (r *Routes) Successor(n int) int { return r.links[n].succ }

func (r *Routes) Predecessor(n int) int { return r.links[n].pred }

func (r *Routes) SetSuccessor(n, v int) { r.links[n].succ = v }

func (r *Routes) SetPredecessor(n, v int) { r.links[n].pred = v }

// IsDepot reports whether n is the depot or one of its aliases.
func (r *Routes) IsDepot(n int) bool { return n == 0 || n > r.poiCount }

// IsRouted reports whether customer n currently belongs to a route.
func (r *Routes) IsRouted(n int) bool {
	return !r.IsDepot(n) && r.links[n].succ != unlinked
}

// Size is the number of slots in the arena, also the width of a departure-time row.
func (r *Routes) Size() int { return len(r.links) }

// Sequence returns the customers of route k in visiting order.
func (r *Routes) Sequence(k int) ([]int, error) {
	if k < 0 || k >= len(r.depots) {
		return nil, fmt.Errorf("sequence: route %d of %d: %w", k, len(r.depots), ErrInvariant)
	}
	depot := r.depots[k]
	out := []int{}
	n := r.links[depot].succ
	for steps := 0; n != depot; steps++ {
		if n == unlinked || steps >= len(r.links) {
			return nil, fmt.Errorf("sequence: route %d: %w", k, ErrBrokenRoute)
		}
		out = append(out, n)
		n = r.links[n].succ
	}
	return out, nil
}

// Verify checks that every route closes on its depot and no customer appears twice.
func (r *Routes) Verify() error {
	if len(r.depots) > r.vehicles {
		return fmt.Errorf("verify routes: %d routes for %d vehicles: %w", len(r.depots), r.vehicles, ErrRouteLimit)
	}
	seen := make(map[int]int)
	for k := range r.depots {
		seq, err := r.Sequence(k)
		if err != nil {
			return fmt.Errorf("verify routes: %w", err)
		}
		for _, c := range seq {
			if r.IsDepot(c) {
				return fmt.Errorf("verify routes: depot %d inside route %d: %w", c, k, ErrInvariant)
			}
			if prev, dup := seen[c]; dup {
				return fmt.Errorf("verify routes: customer %d in routes %d and %d: %w", c, prev, k, ErrInvariant)
			}
			seen[c] = k
		}
	}
	return nil
}
