// Package network computes the distance and travel-time matrices of an
// instance.
package network

import (
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"

	"evdarp/internal/instance"
)

// ErrCoordinates reports a coordinate the metric cannot measure.
var ErrCoordinates = errors.New("network: malformed coordinates")

// Matrices holds the dense distance (c) and time (t) matrices over every
// node of an instance, diagonal included.
type Matrices struct {
	Dist [][]float64
	Time [][]float64
}

// Build computes the matrices for in. Time is distance scaled by the
// instance speed factor.
func Build(in *instance.Instance) (*Matrices, error) {
	n := in.Len()
	dist := distanceFunc(in.Metric)
	if dist == nil {
		return nil, fmt.Errorf("network: unknown metric %q", in.Metric)
	}
	for i := 0; i < n; i++ {
		if err := checkCoord(in.Metric, in.Coord(i)); err != nil {
			return nil, fmt.Errorf("node %d: %w", i, err)
		}
	}
	m := &Matrices{Dist: square(n), Time: square(n)}
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			c := dist(in.Coord(i), in.Coord(j))
			m.Dist[i][j] = c
			m.Time[i][j] = c * in.SpeedFactor
		}
	}
	return m, nil
}

// Size returns the number of nodes covered.
func (m *Matrices) Size() int { return len(m.Dist) }

// Direct returns the direct travel time from pickup i to its delivery.
func (m *Matrices) Direct(in *instance.Instance, i int) float64 {
	return m.Time[i][in.DeliveryOf(i)]
}

func distanceFunc(metric instance.Metric) func(a, b instance.Coord) float64 {
	switch metric {
	case instance.Euclidean, "":
		return func(a, b instance.Coord) float64 {
			return math.Hypot(a.X-b.X, a.Y-b.Y)
		}
	case instance.Geographic:
		return func(a, b instance.Coord) float64 {
			return geo.Distance(orb.Point{a.X, a.Y}, orb.Point{b.X, b.Y})
		}
	}
	return nil
}

func checkCoord(metric instance.Metric, c instance.Coord) error {
	if math.IsNaN(c.X) || math.IsNaN(c.Y) || math.IsInf(c.X, 0) || math.IsInf(c.Y, 0) {
		return fmt.Errorf("%w: (%v, %v)", ErrCoordinates, c.X, c.Y)
	}
	if metric == instance.Geographic && (math.Abs(c.Y) > 90 || math.Abs(c.X) > 180) {
		return fmt.Errorf("%w: lon %v lat %v out of range", ErrCoordinates, c.X, c.Y)
	}
	return nil
}

func square(n int) [][]float64 {
	backing := make([]float64, n*n)
	out := make([][]float64, n)
	for i := range out {
		out[i] = backing[i*n : (i+1)*n : (i+1)*n]
	}
	return out
}
