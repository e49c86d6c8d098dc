package opt

import (
	"errors"
	"fmt"
	"math"

	"github.com/lvlath/go/matrix"
)

var (
	// ErrInvalidProblem is returned when a problem definition cannot be used for construction.
	ErrInvalidProblem = errors.New("invalid problem")
	ErrInvalidOptions = errors.New("invalid solve options")
)

// Node is a point of interest. Node 0 is the depot.
type Node struct {
	ID          int
	X, Y        float64
	Score       float64
	ReadyTime   float64
	DueTime     float64
	ServiceTime float64
}

// Problem is an immutable TOPTW instance: nodes, fleet size, route duration cap and
// the Euclidean distance matrix. Indices above POICount alias the depot.
type Problem struct {
	nodes       []Node
	vehicles    int
	maxDuration float64
	maxScore    float64
	matrix      *matrix.Dense
	// dist is the row-major prefetch of matrix for the evaluator's inner loop.
	dist []float64
}

// NewProblem validates nodes (depot first) and precomputes the distance matrix.
func NewProblem(nodes []Node, vehicles int, maxRouteDuration float64) (*Problem, error) {
	if len(nodes) == 0 {
		return nil, fmt.Errorf("new problem: depot node required: %w", ErrInvalidProblem)
	}
	if vehicles < 1 {
		return nil, fmt.Errorf("new problem: vehicles must be >= 1, got %d: %w", vehicles, ErrInvalidProblem)
	}
	if math.IsNaN(maxRouteDuration) || maxRouteDuration < 0 {
		return nil, fmt.Errorf("new problem: max route duration must be >= 0, got %v: %w", maxRouteDuration, ErrInvalidProblem)
	}
	for i, n := range nodes {
		if n.ID != i {
			return nil, fmt.Errorf("new problem: node at position %d has id %d: %w", i, n.ID, ErrInvalidProblem)
		}
		for _, v := range []float64{n.X, n.Y, n.Score, n.ReadyTime, n.DueTime, n.ServiceTime} {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("new problem: node %d has a non-finite attribute: %w", i, ErrInvalidProblem)
			}
		}
		if n.ServiceTime < 0 {
			return nil, fmt.Errorf("new problem: node %d service time %v < 0: %w", i, n.ServiceTime, ErrInvalidProblem)
		}
		if n.ReadyTime > n.DueTime {
			return nil, fmt.Errorf("new problem: node %d ready time %v after due time %v: %w", i, n.ReadyTime, n.DueTime, ErrInvalidProblem)
		}
	}

	p := &Problem{
		nodes:       append([]Node(nil), nodes...),
		vehicles:    vehicles,
		maxDuration: maxRouteDuration,
		maxScore:    -1,
	}
	for _, n := range p.nodes {
		if n.Score > p.maxScore {
			p.maxScore = n.Score
		}
	}
	m, err := euclideanMatrix(p.nodes)
	if err != nil {
		return nil, fmt.Errorf("new problem: distance matrix: %v: %w", err, ErrInvalidProblem)
	}
	p.matrix = m
	if p.dist, err = prefetch(m); err != nil {
		return nil, fmt.Errorf("new problem: distance matrix: %w", err)
	}
	return p, nil
}

func euclideanMatrix(nodes []Node) (*matrix.Dense, error) {
	n := len(nodes)
	m, err := matrix.NewDense(n, n)
	if err != nil {
		return nil, err
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			dx := nodes[i].X - nodes[j].X
			dy := nodes[i].Y - nodes[j].Y
			d := math.Sqrt(dx*dx + dy*dy)
			if err := m.Set(i, j, d); err != nil {
				return nil, err
			}
			if err := m.Set(j, i, d); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

// prefetch copies m into a flat row-major buffer.
func prefetch(m *matrix.Dense) ([]float64, error) {
	rows, cols := m.Rows(), m.Cols()
	w := make([]float64, rows*cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			x, err := m.At(i, j)
			if err != nil {
				return nil, err
			}
			w[i*cols+j] = x
		}
	}
	return w, nil
}

// resolve maps depot aliases onto node 0.
func (p *Problem) resolve(i int) int {
	if i > len(p.nodes)-1 {
		return 0
	}
	return i
}

// POICount is the number of customers, depot excluded.
func (p *Problem) POICount() int { return len(p.nodes) - 1 }

func (p *Problem) VehicleCount() int { return p.vehicles }

func (p *Problem) MaxRouteDuration() float64 { return p.maxDuration }

// Distance returns the travel time between i and j; travel time equals distance.
func (p *Problem) Distance(i, j int) float64 {
	return p.dist[p.resolve(i)*len(p.nodes)+p.resolve(j)]
}

// DistanceMatrix returns a copy of the node-to-node travel times, depot first.
func (p *Problem) DistanceMatrix() matrix.Matrix { return p.matrix.Clone() }

func (p *Problem) ReadyTime(i int) float64 { return p.nodes[p.resolve(i)].ReadyTime }

func (p *Problem) DueTime(i int) float64 { return p.nodes[p.resolve(i)].DueTime }

func (p *Problem) ServiceTime(i int) float64 { return p.nodes[p.resolve(i)].ServiceTime }

func (p *Problem) Score(i int) float64 { return p.nodes[p.resolve(i)].Score }

// MaxScore is the highest score over every node, depot included.
func (p *Problem) MaxScore() float64 { return p.maxScore }

// Node returns the attributes of i, resolving depot aliases.
func (p *Problem) Node(i int) Node { return p.nodes[p.resolve(i)] }

// Nodes returns a copy of all nodes, depot first.
func (p *Problem) Nodes() []Node { return append([]Node(nil), p.nodes...) }

// finishAt is the service completion time at node when arriving at arrival:
// waiting for the ready time when early, then serving.
func (p *Problem) finishAt(node int, arrival float64) float64 {
	n := p.nodes[p.resolve(node)]
	if arrival < n.ReadyTime {
		arrival = n.ReadyTime
	}
	return arrival + n.ServiceTime
}
