package instance

import "fmt"

// Metric selects how coordinates are turned into distances.
type Metric string

const (
	Euclidean  Metric = "euclidean"
	Geographic Metric = "geographic"
)

// Instance is an immutable, validated problem instance. Node indices follow
// the layout 0 origin, 1..n pickups, n+1..2n deliveries, 2n+1..2n+f
// stations, 2n+f+1 destination, then dummy stations; callers should use the
// role accessors rather than this arithmetic.
type Instance struct {
	Name      string
	Resources int
	// MaxRide is the longest a request may spend aboard (Lmax).
	MaxRide float64
	// SpeedFactor converts distance units into time units.
	SpeedFactor float64
	// FuelRate is the fuel consumed per distance unit.
	FuelRate float64
	Metric   Metric

	nodes    []Node
	vehicles []Vehicle
	requests int
	stations int
	dummies  int
}

func (in *Instance) Len() int         { return len(in.nodes) }
func (in *Instance) NumVehicles() int { return len(in.vehicles) }
func (in *Instance) Requests() int    { return in.requests }

// Node returns a copy of node i.
func (in *Instance) Node(i int) Node { return in.nodes[i].clone() }

// Vehicle returns a copy of vehicle k.
func (in *Instance) Vehicle(k int) Vehicle { return in.vehicles[k].clone() }

func (in *Instance) Role(i int) Role { return in.nodes[i].Role }

func (in *Instance) Origin() int      { return 0 }
func (in *Instance) Destination() int { return 2*in.requests + in.stations + 1 }

// Pickups returns the pickup indices in request order.
func (in *Instance) Pickups() []int { return span(1, in.requests) }

// Deliveries returns the delivery indices in request order.
func (in *Instance) Deliveries() []int { return span(in.requests+1, in.requests) }

// DeliveryOf returns the delivery paired with pickup i.
func (in *Instance) DeliveryOf(i int) int {
	if in.nodes[i].Role != Pickup {
		panic(fmt.Sprintf("instance: node %d is a %s, not a pickup", i, in.nodes[i].Role))
	}
	return i + in.requests
}

// PickupOf returns the pickup paired with delivery j.
func (in *Instance) PickupOf(j int) int {
	if in.nodes[j].Role != Delivery {
		panic(fmt.Sprintf("instance: node %d is a %s, not a delivery", j, in.nodes[j].Role))
	}
	return j - in.requests
}

// Stations returns the real station indices.
func (in *Instance) Stations() []int { return span(2*in.requests+1, in.stations) }

// Dummies returns the dummy station indices.
func (in *Instance) Dummies() []int { return span(in.Destination()+1, in.dummies) }

// IsStation reports whether visiting i refuels (real or dummy station).
func (in *Instance) IsStation(i int) bool { return in.nodes[i].Role.Refuels() }

// Demand returns the demand of node i for resource r.
func (in *Instance) Demand(i, r int) int { return in.nodes[i].Demand[r] }

func (in *Instance) Service(i int) float64 { return in.nodes[i].Service }

// Window returns the earliest and latest service start at node i.
func (in *Instance) Window(i int) (float64, float64) {
	return in.nodes[i].Earliest, in.nodes[i].Latest
}

func (in *Instance) Coord(i int) Coord { return in.nodes[i].Coord }

// WithoutDummies returns a copy of the instance with every dummy station
// removed. Dummies sit at the end of the layout so no index shifts.
func (in *Instance) WithoutDummies() *Instance {
	out := *in
	out.nodes = make([]Node, in.Destination()+1)
	for i := range out.nodes {
		out.nodes[i] = in.nodes[i].clone()
	}
	out.vehicles = make([]Vehicle, len(in.vehicles))
	for k, v := range in.vehicles {
		out.vehicles[k] = v.clone()
	}
	out.dummies = 0
	return &out
}

func span(from, count int) []int {
	out := make([]int, count)
	for i := range out {
		out[i] = from + i
	}
	return out
}
