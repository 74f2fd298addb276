package formulation

import (
	"fmt"
	"math"

	"evdarp/internal/lp"
)

type family struct {
	name    string
	enabled func(Features) bool
	emit    func(*builder)
}

func always(Features) bool     { return true }
func withFuel(f Features) bool { return f.Fuel }

// registry is emitted top to bottom. Row names are prefixed with the family
// name so exported models group by family.
var registry = []family{
	{"visit_pickup", always, (*builder).visitPickup},
	{"visit_delivery", always, (*builder).visitDelivery},
	{"pairing", always, (*builder).pairing},
	{"flow", always, (*builder).flow},
	{"depot_start", always, (*builder).depotStart},
	{"depot_end", always, (*builder).depotEnd},
	{"depot_closure", always, (*builder).depotClosure},
	{"dummy_successor", func(f Features) bool { return f.DummyStations }, (*builder).dummySuccessor},
	{"load", always, (*builder).load},
	{"capacity", always, (*builder).capacity},
	{"empty", always, (*builder).empty},
	{"precedence", always, (*builder).precedence},
	{"ride_def", always, (*builder).rideDef},
	{"ride", always, (*builder).rideBounds},
	{"time", always, (*builder).timeLinkage},
	{"window", always, (*builder).window},
	{"duration", always, (*builder).duration},
	{"fuel_start", withFuel, (*builder).fuelStart},
	{"fuel", withFuel, (*builder).fuel},
	{"refuel", withFuel, (*builder).refuel},
	{"range", withFuel, (*builder).rangeRows},
}

// Every pickup is left exactly once over all vehicles.
func (b *builder) visitPickup() {
	n := b.in.Len()
	for _, i := range b.in.Pickups() {
		e := new(lp.Expr)
		for k := 0; k < b.vehicles(); k++ {
			for j := 0; j < n; j++ {
				if j != i {
					e.Add(1, b.f.X[i][j][k])
				}
			}
		}
		b.add(fmt.Sprintf("visit_pickup_i%d", i), e, lp.EQ, 1)
	}
}

// Every delivery is entered exactly once over all vehicles.
func (b *builder) visitDelivery() {
	n := b.in.Len()
	for _, d := range b.in.Deliveries() {
		e := new(lp.Expr)
		for k := 0; k < b.vehicles(); k++ {
			for i := 0; i < n; i++ {
				if i != d {
					e.Add(1, b.f.X[i][d][k])
				}
			}
		}
		b.add(fmt.Sprintf("visit_delivery_i%d", d), e, lp.EQ, 1)
	}
}

// The vehicle leaving a pickup also leaves its delivery.
func (b *builder) pairing() {
	n := b.in.Len()
	for _, i := range b.in.Pickups() {
		d := b.in.DeliveryOf(i)
		for k := 0; k < b.vehicles(); k++ {
			e := new(lp.Expr)
			for j := 0; j < n; j++ {
				if j != i {
					e.Add(1, b.f.X[i][j][k])
				}
			}
			for j := 0; j < n; j++ {
				if j != d {
					e.Add(-1, b.f.X[d][j][k])
				}
			}
			b.add(fmt.Sprintf("pairing_i%d_k%d", i, k), e, lp.EQ, 0)
		}
	}
}

func (b *builder) flow() {
	n := b.in.Len()
	for i := 0; i < n; i++ {
		if b.in.Role(i).Depot() {
			continue
		}
		for k := 0; k < b.vehicles(); k++ {
			e := new(lp.Expr)
			for j := 0; j < n; j++ {
				if j == i {
					continue
				}
				e.Add(1, b.f.X[j][i][k])
				e.Add(-1, b.f.X[i][j][k])
			}
			b.add(fmt.Sprintf("flow_i%d_k%d", i, k), e, lp.EQ, 0)
		}
	}
}

func (b *builder) depotStart() {
	o, n := b.in.Origin(), b.in.Len()
	for k := 0; k < b.vehicles(); k++ {
		e := new(lp.Expr)
		for j := 0; j < n; j++ {
			if j != o {
				e.Add(1, b.f.X[o][j][k])
			}
		}
		b.add(fmt.Sprintf("depot_start_k%d", k), e, lp.EQ, 1)
	}
}

func (b *builder) depotEnd() {
	t, n := b.in.Destination(), b.in.Len()
	for k := 0; k < b.vehicles(); k++ {
		e := new(lp.Expr)
		for i := 0; i < n; i++ {
			if i != t {
				e.Add(1, b.f.X[i][t][k])
			}
		}
		b.add(fmt.Sprintf("depot_end_k%d", k), e, lp.EQ, 1)
	}
}

// Open tours never enter the origin nor leave the destination. Closed tours
// take exactly the return arc between them.
func (b *builder) depotClosure() {
	o, t, n := b.in.Origin(), b.in.Destination(), b.in.Len()
	closed := b.feats.Tour == TourClosed
	for k := 0; k < b.vehicles(); k++ {
		in, out := new(lp.Expr), new(lp.Expr)
		for i := 0; i < n; i++ {
			if i == o || (closed && i == t) {
				continue
			}
			in.Add(1, b.f.X[i][o][k])
		}
		for j := 0; j < n; j++ {
			if j == t || (closed && j == o) {
				continue
			}
			out.Add(1, b.f.X[t][j][k])
		}
		b.add(fmt.Sprintf("depot_closure_in_k%d", k), in, lp.EQ, 0)
		b.add(fmt.Sprintf("depot_closure_out_k%d", k), out, lp.EQ, 0)
		if closed {
			b.add(fmt.Sprintf("depot_closure_return_k%d", k), new(lp.Expr).Add(1, b.f.X[t][o][k]), lp.EQ, 1)
		}
	}
}

// A dummy station has at most one successor over all vehicles.
func (b *builder) dummySuccessor() {
	n := b.in.Len()
	for _, d := range b.in.Dummies() {
		e := new(lp.Expr)
		for k := 0; k < b.vehicles(); k++ {
			for j := 0; j < n; j++ {
				if j != d {
					e.Add(1, b.f.X[d][j][k])
				}
			}
		}
		b.add(fmt.Sprintf("dummy_successor_i%d", d), e, lp.LE, 1)
	}
}

// loadM is the big-M of the load rows into j for resource r of vehicle k.
func (b *builder) loadM(j, r, k int) float64 {
	capacity := float64(b.fleet[k].Capacity[r])
	if b.feats.BigM == BigMHorizon {
		return capacity
	}
	return capacity + math.Abs(float64(b.in.Demand(j, r)))
}

// Q_j = Q_i + q_j along every used arc.
func (b *builder) load() {
	for k := 0; k < b.vehicles(); k++ {
		for r := 0; r < b.in.Resources; r++ {
			b.arcs(func(i, j int) {
				q := float64(b.in.Demand(j, r))
				M := b.loadM(j, r, k)
				x, qi, qj := b.f.X[i][j][k], b.f.Q[i][r][k], b.f.Q[j][r][k]
				b.add(fmt.Sprintf("load_ub_i%d_j%d_r%d_k%d", i, j, r, k),
					new(lp.Expr).Add(1, qj).Add(-1, qi).Add(M, x), lp.LE, q+M)
				b.add(fmt.Sprintf("load_lb_i%d_j%d_r%d_k%d", i, j, r, k),
					new(lp.Expr).Add(1, qj).Add(-1, qi).Add(-M, x), lp.GE, q-M)
			})
		}
	}
}

func (b *builder) capacity() {
	n := b.in.Len()
	for k := 0; k < b.vehicles(); k++ {
		v := b.fleet[k]
		for i := 0; i < n; i++ {
			for r := 0; r < b.in.Resources; r++ {
				q := b.f.Q[i][r][k]
				b.add(fmt.Sprintf("capacity_lb_i%d_r%d_k%d", i, r, k), new(lp.Expr).Add(1, q), lp.GE, 0)
				b.add(fmt.Sprintf("capacity_ub_i%d_r%d_k%d", i, r, k), new(lp.Expr).Add(1, q), lp.LE, float64(v.Capacity[r]))
			}
			for g, s := range v.Shared {
				e := new(lp.Expr)
				for _, r := range s.Resources {
					e.Add(1, b.f.Q[i][r][k])
				}
				b.add(fmt.Sprintf("capacity_shared_i%d_g%d_k%d", i, g, k), e, lp.LE, float64(s.Capacity))
			}
		}
	}
}

func (b *builder) empty() {
	o, t := b.in.Origin(), b.in.Destination()
	for k := 0; k < b.vehicles(); k++ {
		for r := 0; r < b.in.Resources; r++ {
			b.add(fmt.Sprintf("empty_start_r%d_k%d", r, k), new(lp.Expr).Add(1, b.f.Q[o][r][k]), lp.EQ, 0)
			b.add(fmt.Sprintf("empty_end_r%d_k%d", r, k), new(lp.Expr).Add(1, b.f.Q[t][r][k]), lp.EQ, 0)
		}
	}
}

// A delivery starts no earlier than the direct trip from its pickup allows.
func (b *builder) precedence() {
	for _, i := range b.in.Pickups() {
		d := b.in.DeliveryOf(i)
		for k := 0; k < b.vehicles(); k++ {
			b.add(fmt.Sprintf("precedence_i%d_k%d", i, k),
				new(lp.Expr).Add(1, b.f.B[d][k]).Add(-1, b.f.B[i][k]), lp.GE, b.mats.Time[i][d])
		}
	}
}

// L_i = B_{n+i} - B_i - s_i.
func (b *builder) rideDef() {
	for _, i := range b.in.Pickups() {
		d := b.in.DeliveryOf(i)
		for k := 0; k < b.vehicles(); k++ {
			e := new(lp.Expr).Add(1, b.f.L[i][k]).Add(-1, b.f.B[d][k]).Add(1, b.f.B[i][k])
			b.add(fmt.Sprintf("ride_def_i%d_k%d", i, k), e, lp.EQ, -b.in.Service(i))
		}
	}
}

func (b *builder) rideBounds() {
	for _, i := range b.in.Pickups() {
		d := b.in.DeliveryOf(i)
		for k := 0; k < b.vehicles(); k++ {
			l := b.f.L[i][k]
			b.add(fmt.Sprintf("ride_lb_i%d_k%d", i, k), new(lp.Expr).Add(1, l), lp.GE, b.mats.Time[i][d])
			b.add(fmt.Sprintf("ride_ub_i%d_k%d", i, k), new(lp.Expr).Add(1, l), lp.LE, b.in.MaxRide)
		}
	}
}

// timeM returns the constants of the time rows on arc i→j: up relaxes
// B_j <= B_i + t_ij + s_i, down relaxes B_j >= B_i + t_ij + s_i.
func (b *builder) timeM(i, j, k int) (up, down float64) {
	if b.feats.BigM == BigMHorizon {
		T := b.fleet[k].MaxDuration
		return T, T
	}
	ei, li := b.in.Window(i)
	ej, lj := b.in.Window(j)
	travel := b.mats.Time[i][j] + b.in.Service(i)
	return math.Max(0, lj-ei-travel), math.Max(0, li+travel-ej)
}

// B_j = B_i + t_ij + s_i along every used arc.
func (b *builder) timeLinkage() {
	for k := 0; k < b.vehicles(); k++ {
		b.arcs(func(i, j int) {
			travel := b.mats.Time[i][j] + b.in.Service(i)
			up, down := b.timeM(i, j, k)
			x, bi, bj := b.f.X[i][j][k], b.f.B[i][k], b.f.B[j][k]
			b.add(fmt.Sprintf("time_ub_i%d_j%d_k%d", i, j, k),
				new(lp.Expr).Add(1, bj).Add(-1, bi).Add(up, x), lp.LE, travel+up)
			b.add(fmt.Sprintf("time_lb_i%d_j%d_k%d", i, j, k),
				new(lp.Expr).Add(1, bj).Add(-1, bi).Add(-down, x), lp.GE, travel-down)
		})
	}
}

func (b *builder) window() {
	for i := 0; i < b.in.Len(); i++ {
		e, l := b.in.Window(i)
		for k := 0; k < b.vehicles(); k++ {
			b.add(fmt.Sprintf("window_lb_i%d_k%d", i, k), new(lp.Expr).Add(1, b.f.B[i][k]), lp.GE, e)
			b.add(fmt.Sprintf("window_ub_i%d_k%d", i, k), new(lp.Expr).Add(1, b.f.B[i][k]), lp.LE, l)
		}
	}
}

func (b *builder) duration() {
	o, t := b.in.Origin(), b.in.Destination()
	for k := 0; k < b.vehicles(); k++ {
		e := new(lp.Expr).Add(1, b.f.B[t][k]).Add(-1, b.f.B[o][k])
		b.add(fmt.Sprintf("duration_k%d", k), e, lp.LE, b.fleet[k].MaxDuration)
	}
}

func (b *builder) fuelStart() {
	o := b.in.Origin()
	for k := 0; k < b.vehicles(); k++ {
		b.add(fmt.Sprintf("fuel_start_k%d", k), new(lp.Expr).Add(1, b.f.Z[o][k]), lp.EQ, b.fleet[k].Tank)
	}
}

// z_j <= z_i - rate*c_ij*x_ij + F(1 - x_ij) for arcs into non-station nodes
// other than the origin.
func (b *builder) fuel() {
	o := b.in.Origin()
	for k := 0; k < b.vehicles(); k++ {
		tank := b.fleet[k].Tank
		b.arcs(func(i, j int) {
			if j == o || b.in.IsStation(j) {
				return
			}
			use := b.in.FuelRate * b.mats.Dist[i][j]
			e := new(lp.Expr).Add(1, b.f.Z[j][k]).Add(-1, b.f.Z[i][k]).Add(use+tank, b.f.X[i][j][k])
			b.add(fmt.Sprintf("fuel_i%d_j%d_k%d", i, j, k), e, lp.LE, tank)
		})
	}
}

// Visiting a real or dummy station fills the tank.
func (b *builder) refuel() {
	for i := 0; i < b.in.Len(); i++ {
		if !b.in.IsStation(i) {
			continue
		}
		for k := 0; k < b.vehicles(); k++ {
			b.add(fmt.Sprintf("refuel_i%d_k%d", i, k), new(lp.Expr).Add(1, b.f.Z[i][k]), lp.EQ, b.fleet[k].Tank)
		}
	}
}

func (b *builder) rangeRows() {
	t := b.in.Destination()
	for k := 0; k < b.vehicles(); k++ {
		if b.feats.Range == RangeAll {
			for i := 0; i < b.in.Len(); i++ {
				for j := 0; j < b.in.Len(); j++ {
					if i == j || !b.in.IsStation(j) {
						continue
					}
					b.add(fmt.Sprintf("range_i%d_j%d_k%d", i, j, k),
						new(lp.Expr).Add(1, b.f.Z[i][k]), lp.GE, b.in.FuelRate*b.mats.Dist[i][j])
				}
			}
			continue
		}
		b.arcs(func(i, j int) {
			if j != t && !b.in.IsStation(j) {
				return
			}
			use := b.in.FuelRate * b.mats.Dist[i][j]
			b.add(fmt.Sprintf("range_i%d_j%d_k%d", i, j, k),
				new(lp.Expr).Add(1, b.f.Z[i][k]).Add(-use, b.f.X[i][j][k]), lp.GE, 0)
		})
	}
}
