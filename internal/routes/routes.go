// Package routes replays the arc variables of a solved formulation into
// ordered per-vehicle routes.
package routes

import (
	"errors"
	"fmt"
	"math"

	"evdarp/internal/formulation"
	"evdarp/internal/instance"
	"evdarp/internal/lp"
)

var (
	ErrNoSuccessor = errors.New("routes: no outgoing arc selected")
	ErrBranching   = errors.New("routes: more than one outgoing arc selected")
	ErrCycle       = errors.New("routes: node visited twice")
	ErrOrphanArcs  = errors.New("routes: selected arcs outside every route")
)

// Stop is one visited node with the solved service start, fuel and load.
type Stop struct {
	Node    int            `json:"node"`
	Name    string         `json:"name"`
	Role    string         `json:"role"`
	Coord   instance.Coord `json:"coord"`
	Arrival float64        `json:"arrival"`
	Service float64        `json:"service"`
	// Fuel is nil when fuel is not modelled.
	Fuel *float64  `json:"fuel,omitempty"`
	Load []float64 `json:"load"`
}

// Route is the walk of one vehicle.
type Route struct {
	Vehicle     int      `json:"vehicle"`
	VehicleName string   `json:"vehicleName,omitempty"`
	Stops       []Stop   `json:"stops"`
	Arcs        [][2]int `json:"arcs"`
	// Distance sums c over the arcs, the closing arc of a closed tour
	// excluded.
	Distance float64 `json:"distance"`
	// Duration is B[destination] - B[origin].
	Duration float64 `json:"duration"`
}

// Used reports whether the vehicle visits a pickup or a delivery. A walk
// through stations only does not count.
func (r Route) Used() bool {
	for _, s := range r.Stops {
		if s.Role == instance.Pickup.String() || s.Role == instance.Delivery.String() {
			return true
		}
	}
	return false
}

// selected reports whether a binary value rounds to one.
func selected(v float64) bool { return math.Round(v) == 1 }

// Reconstruct walks every vehicle from the origin along the unique selected
// outgoing arc until the destination (open tours) or back at the origin
// (closed tours). It fails instead of guessing when the arcs do not form
// exactly one simple walk per vehicle.
func Reconstruct(f *formulation.Formulation, sol *lp.Solution) ([]Route, error) {
	in := f.Instance
	out := make([]Route, 0, in.NumVehicles())
	for k := 0; k < in.NumVehicles(); k++ {
		r, err := walk(f, sol, k)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	orphans, err := Unused(f, sol, out)
	if err != nil {
		return nil, err
	}
	if len(orphans) > 0 {
		a := orphans[0]
		return nil, fmt.Errorf("%w: %d arcs, first %d->%d on vehicle %d", ErrOrphanArcs, len(orphans), a[0], a[1], a[2])
	}
	return out, nil
}

func walk(f *formulation.Formulation, sol *lp.Solution, k int) (Route, error) {
	in := f.Instance
	n := in.Len()
	origin, dest := in.Origin(), in.Destination()
	end := dest
	if f.Features.Tour == formulation.TourClosed {
		end = origin
	}

	r := Route{Vehicle: k, VehicleName: in.Vehicle(k).Name}
	visited := make([]bool, n)
	cur := origin
	visited[cur] = true
	st, err := stop(f, sol, cur, k)
	if err != nil {
		return Route{}, err
	}
	r.Stops = append(r.Stops, st)

	for steps := 0; ; steps++ {
		if steps > n {
			return Route{}, fmt.Errorf("%w: vehicle %d does not reach its end depot", ErrCycle, k)
		}
		next := -1
		for j := 0; j < n; j++ {
			if j == cur {
				continue
			}
			v, err := sol.Value(f.X[cur][j][k])
			if err != nil {
				return Route{}, fmt.Errorf("routes: x[%d][%d][%d]: %w", cur, j, k, err)
			}
			if !selected(v) {
				continue
			}
			if next >= 0 {
				return Route{}, fmt.Errorf("%w: vehicle %d leaves node %d to %d and %d", ErrBranching, k, cur, next, j)
			}
			next = j
		}
		if next < 0 {
			return Route{}, fmt.Errorf("%w: vehicle %d at node %d", ErrNoSuccessor, k, cur)
		}

		r.Arcs = append(r.Arcs, [2]int{cur, next})
		if !f.Closing(cur, next) {
			r.Distance += f.Matrices.Dist[cur][next]
		}
		if next == end && (end != origin || cur == dest) {
			if end == dest {
				st, err := stop(f, sol, next, k)
				if err != nil {
					return Route{}, err
				}
				r.Stops = append(r.Stops, st)
			}
			break
		}
		if visited[next] {
			return Route{}, fmt.Errorf("%w: vehicle %d returns to node %d", ErrCycle, k, next)
		}
		visited[next] = true
		st, err := stop(f, sol, next, k)
		if err != nil {
			return Route{}, err
		}
		r.Stops = append(r.Stops, st)
		cur = next
	}

	bo, err := sol.Value(f.B[origin][k])
	if err != nil {
		return Route{}, err
	}
	bd, err := sol.Value(f.B[dest][k])
	if err != nil {
		return Route{}, err
	}
	r.Duration = bd - bo
	return r, nil
}

func stop(f *formulation.Formulation, sol *lp.Solution, i, k int) (Stop, error) {
	in := f.Instance
	node := in.Node(i)
	s := Stop{
		Node:    i,
		Name:    node.Label(i),
		Role:    node.Role.String(),
		Coord:   node.Coord,
		Service: node.Service,
	}
	var err error
	if s.Arrival, err = sol.Value(f.B[i][k]); err != nil {
		return Stop{}, err
	}
	if f.Z != nil {
		z, err := sol.Value(f.Z[i][k])
		if err != nil {
			return Stop{}, err
		}
		s.Fuel = &z
	}
	s.Load = make([]float64, in.Resources)
	for r := range s.Load {
		if s.Load[r], err = sol.Value(f.Q[i][r][k]); err != nil {
			return Stop{}, err
		}
	}
	return s, nil
}

// Unused returns every selected arc (i, j, k) that no route walks, such as
// the arcs of a detached subtour.
func Unused(f *formulation.Formulation, sol *lp.Solution, routes []Route) ([][3]int, error) {
	walked := map[[3]int]bool{}
	for _, r := range routes {
		for _, a := range r.Arcs {
			walked[[3]int{a[0], a[1], r.Vehicle}] = true
		}
	}
	var out [][3]int
	n := f.Instance.Len()
	for k := 0; k < f.Instance.NumVehicles(); k++ {
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				if i == j {
					continue
				}
				v, err := sol.Value(f.X[i][j][k])
				if err != nil {
					return nil, err
				}
				if selected(v) && !walked[[3]int{i, j, k}] {
					out = append(out, [3]int{i, j, k})
				}
			}
		}
	}
	return out, nil
}
