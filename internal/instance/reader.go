// Package instance reads and writes TOPTW benchmark instance files.
//
// The layout is whitespace separated. The first line carries the vehicle count in
// field 1 and the customer count in field 2; the second line is ignored. One row per
// node follows, depot first: id, x, y, service time, score, then time-window columns
// whose position differs between the depot row (ready 7, due 8) and customer rows
// (ready 8, due 9). The depot due time is the route duration cap.
package instance

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"toptw/internal/opt"
)

// ErrFormat is returned for files that do not follow the instance layout.
var ErrFormat = errors.New("malformed instance")

// ReadFile opens path and reads one instance from it.
func ReadFile(path string) (*opt.Problem, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read instance: %w", err)
	}
	defer f.Close()
	p, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// Read parses one instance from r.
func Read(r io.Reader) (*opt.Problem, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	next := func() ([]string, error) {
		if !sc.Scan() {
			if err := sc.Err(); err != nil {
				return nil, fmt.Errorf("read instance: line %d: %w", line+1, err)
			}
			return nil, fmt.Errorf("read instance: line %d: unexpected end of file: %w", line+1, ErrFormat)
		}
		line++
		return strings.Fields(sc.Text()), nil
	}

	head, err := next()
	if err != nil {
		return nil, err
	}
	if len(head) < 3 {
		return nil, fmt.Errorf("read instance: line 1: want at least 3 fields, got %d: %w", len(head), ErrFormat)
	}
	vehicles, err := atoi(head[1], 1, "vehicles")
	if err != nil {
		return nil, err
	}
	pois, err := atoi(head[2], 1, "points of interest")
	if err != nil {
		return nil, err
	}
	if pois < 0 {
		return nil, fmt.Errorf("read instance: line 1: negative point count %d: %w", pois, ErrFormat)
	}
	if _, err := next(); err != nil {
		return nil, err
	}

	nodes := make([]opt.Node, 0, pois+1)
	for i := 0; i <= pois; i++ {
		f, err := next()
		if err != nil {
			return nil, err
		}
		readyCol, dueCol := 8, 9
		if i == 0 {
			readyCol, dueCol = 7, 8
		}
		if len(f) <= dueCol {
			return nil, fmt.Errorf("read instance: line %d: want at least %d fields, got %d: %w", line, dueCol+1, len(f), ErrFormat)
		}
		n := opt.Node{ID: i}
		for _, c := range []struct {
			dst *float64
			col int
			tag string
		}{
			{&n.X, 1, "x"},
			{&n.Y, 2, "y"},
			{&n.ServiceTime, 3, "service time"},
			{&n.Score, 4, "score"},
			{&n.ReadyTime, readyCol, "ready time"},
			{&n.DueTime, dueCol, "due time"},
		} {
			v, err := strconv.ParseFloat(f[c.col], 64)
			if err != nil {
				return nil, fmt.Errorf("read instance: line %d: %s %q: %w", line, c.tag, f[c.col], ErrFormat)
			}
			*c.dst = v
		}
		nodes = append(nodes, n)
	}

	p, err := opt.NewProblem(nodes, vehicles, nodes[0].DueTime)
	if err != nil {
		return nil, fmt.Errorf("read instance: %w", err)
	}
	return p, nil
}

func atoi(s string, line int, tag string) (int, error) {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("read instance: line %d: %s %q: %w", line, tag, s, ErrFormat)
	}
	return v, nil
}
