package opt

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

// lineProblem puts the depot at the origin and customer i at (10*i, 0) with score 10*i.
func lineProblem(t *testing.T, customers, vehicles int, maxT float64) *Problem {
	t.Helper()
	nodes := []Node{{ID: 0, DueTime: maxT}}
	for i := 1; i <= customers; i++ {
		nodes = append(nodes, Node{ID: i, X: float64(10 * i), Score: float64(10 * i), DueTime: maxT})
	}
	p, err := NewProblem(nodes, vehicles, maxT)
	require.NoError(t, err)
	return p
}

// randomProblem draws a clustered instance with mixed time windows.
func randomProblem(t *testing.T, seed int64, customers, vehicles int) *Problem {
	t.Helper()
	r := rand.New(rand.NewSource(seed))
	const horizon = 400.0
	nodes := []Node{{ID: 0, X: 50, Y: 50, DueTime: horizon}}
	for i := 1; i <= customers; i++ {
		ready := r.Float64() * horizon * 0.6
		nodes = append(nodes, Node{
			ID:          i,
			X:           r.Float64() * 100,
			Y:           r.Float64() * 100,
			Score:       float64(1 + r.Intn(30)),
			ReadyTime:   ready,
			DueTime:     ready + 20 + r.Float64()*150,
			ServiceTime: float64(r.Intn(15)),
		})
	}
	p, err := NewProblem(nodes, vehicles, horizon)
	require.NoError(t, err)
	return p
}

var allPolicies = []Policy{PolicyRandom, PolicyFuzzyBest, PolicyFuzzyAlphaCut}
