package opt

// DepartureTimes holds, per route, the service completion time of every node in
// that route. Slots of nodes outside the route stay zero and depot slots are never
// written, so a route always departs its depot at time zero.
type DepartureTimes struct {
	width int
	rows  [][]float64
}

func newDepartureTimes(width int) *DepartureTimes {
	return &DepartureTimes{width: width}
}

// reset drops every row and allocates a zeroed row for route 0.
func (d *DepartureTimes) reset() {
	d.rows = d.rows[:0]
	d.addRow()
}

func (d *DepartureTimes) addRow() {
	d.rows = append(d.rows, make([]float64, d.width))
}

// Rows is the number of routes tracked.
func (d *DepartureTimes) Rows() int { return len(d.rows) }

// At returns the departure time of node on route k.
func (d *DepartureTimes) At(k, node int) float64 { return d.rows[k][node] }

func (d *DepartureTimes) set(k, node int, t float64) { d.rows[k][node] = t }
