package opt

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

const snapshotEvery = 10

// Options configures a GRASP solve.
type Options struct {
	Iterations int           // construction passes; < 1 means one pass
	RCLSize    int           // restricted candidate list size, >= 1
	Policy     Policy        // selection policy
	Alpha      float64       // alpha-cut threshold in [0, 1]
	Seed       int64         // 0 selects a fixed default seed
	TimeBudget time.Duration // 0 means no deadline
	// Progress, when set, is called after every pass on the solving goroutine.
	Progress func(Progress)
}

// Progress reports one finished construction pass.
type Progress struct {
	Iteration int
	Fitness   float64
	Best      float64
	Improved  bool
}

// FitnessSnapshot samples the search every few passes.
type FitnessSnapshot struct {
	Iteration int
	Best      float64
	Current   float64
}

type Metrics struct {
	Iterations     int
	Improvements   int
	BestIteration  int
	BestFitness    float64
	AverageFitness float64
	WorstFitness   float64
	Insertions     int
	RoutesOpened   int
	Evaluations    int
	Elapsed        time.Duration
	StopReason     string // "iterations", "time budget", "canceled" or "deadline"
	Snapshots      []FitnessSnapshot
}

// Validate reports option combinations that cannot drive a construction pass.
func (o Options) Validate() error {
	if o.RCLSize < 1 {
		return fmt.Errorf("rcl size must be >= 1, got %d: %w", o.RCLSize, ErrInvalidOptions)
	}
	switch o.Policy {
	case PolicyRandom, PolicyFuzzyBest, PolicyFuzzyAlphaCut:
	default:
		return fmt.Errorf("unknown policy %s: %w", o.Policy, ErrInvalidOptions)
	}
	if math.IsNaN(o.Alpha) || o.Alpha < 0 || o.Alpha > 1 {
		return fmt.Errorf("alpha must be in [0,1], got %v: %w", o.Alpha, ErrInvalidOptions)
	}
	if o.TimeBudget < 0 {
		return fmt.Errorf("time budget must be >= 0, got %s: %w", o.TimeBudget, ErrInvalidOptions)
	}
	return nil
}

// Solve repeats randomized construction passes and keeps the highest-fitness one.
// Passes run sequentially on one random stream, so a seed fully determines the
// result when no time budget cuts the run short. The deadline and ctx are checked
// between passes only.
func Solve(ctx context.Context, p *Problem, o Options) (Solution, Metrics, error) {
	if err := o.Validate(); err != nil {
		return Solution{}, Metrics{}, fmt.Errorf("solve: %w", err)
	}
	iterations := o.Iterations
	if iterations < 1 {
		iterations = 1
	}
	var deadline time.Time
	if o.TimeBudget > 0 {
		deadline = time.Now().Add(o.TimeBudget)
	}

	start := time.Now()
	c := NewConstructor(p, NewRand(o.Seed))
	var (
		best  Solution
		m     = Metrics{StopReason: "iterations", WorstFitness: math.Inf(1), BestFitness: math.Inf(-1)}
		total float64
	)
	for it := 1; it <= iterations; it++ {
		if err := ctx.Err(); err != nil {
			if m.Iterations == 0 {
				return Solution{}, Metrics{}, fmt.Errorf("solve: %w", err)
			}
			m.StopReason = "canceled"
			if errors.Is(err, context.DeadlineExceeded) {
				m.StopReason = "deadline"
			}
			break
		}
		if !deadline.IsZero() && m.Iterations > 0 && !time.Now().Before(deadline) {
			m.StopReason = "time budget"
			break
		}

		if err := c.ConstructSolution(o.RCLSize, o.Policy, o.Alpha); err != nil {
			return Solution{}, Metrics{}, fmt.Errorf("solve: iteration %d: %w", it, err)
		}
		curr, err := c.Snapshot()
		if err != nil {
			return Solution{}, Metrics{}, fmt.Errorf("solve: iteration %d: %w", it, err)
		}
		st := c.Stats()
		m.Iterations++
		m.Insertions += st.Insertions
		m.RoutesOpened += st.RoutesOpened
		m.Evaluations += st.Evaluations

		fitness := Evaluate(curr)
		total += fitness
		if fitness < m.WorstFitness {
			m.WorstFitness = fitness
		}
		improved := fitness > m.BestFitness
		if improved {
			if m.Iterations > 1 {
				m.Improvements++
			}
			best = curr
			m.BestFitness = fitness
			m.BestIteration = it
		}
		if it%snapshotEvery == 0 {
			m.Snapshots = append(m.Snapshots, FitnessSnapshot{Iteration: it, Best: m.BestFitness, Current: fitness})
		}
		if o.Progress != nil {
			o.Progress(Progress{Iteration: it, Fitness: fitness, Best: m.BestFitness, Improved: improved})
		}
	}
	m.AverageFitness = total / float64(m.Iterations)
	m.Elapsed = time.Since(start)
	return best, m, nil
}
