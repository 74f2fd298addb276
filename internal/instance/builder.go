package instance

// Builder assembles an Instance. Nodes may be added in any order; Build
// arranges them into the canonical layout and resolves their roles.
type Builder struct {
	name        string
	resources   int
	maxRide     float64
	speedFactor float64
	fuelRate    float64
	metric      Metric

	origin      *Node
	destination *Node
	pickups     []Node
	deliveries  []Node
	stations    []Node
	dummies     []dummy
	vehicles    []Vehicle
}

type dummy struct {
	node   Node
	source Role
	// station is the position in the station list when source is Station.
	station int
}

// NewBuilder starts an instance with the given number of resource types.
func NewBuilder(name string, resources int) *Builder {
	return &Builder{
		name:        name,
		resources:   resources,
		speedFactor: 1,
		fuelRate:    1,
		metric:      Euclidean,
	}
}

func (b *Builder) MaxRide(v float64) *Builder     { b.maxRide = v; return b }
func (b *Builder) SpeedFactor(v float64) *Builder { b.speedFactor = v; return b }
func (b *Builder) FuelRate(v float64) *Builder    { b.fuelRate = v; return b }
func (b *Builder) Metric(m Metric) *Builder       { b.metric = m; return b }

// Origin sets the start depot. Demand is forced to zero.
func (b *Builder) Origin(n Node) *Builder {
	n.Demand = make([]int, b.resources)
	b.origin = &n
	return b
}

// Destination sets the end depot. Demand is forced to zero.
func (b *Builder) Destination(n Node) *Builder {
	n.Demand = make([]int, b.resources)
	b.destination = &n
	return b
}

// Request adds a pickup and its paired delivery. An empty delivery demand
// defaults to the negation of the pickup demand.
func (b *Builder) Request(pickup, delivery Node) *Builder {
	if len(delivery.Demand) == 0 {
		delivery.Demand = make([]int, len(pickup.Demand))
		for r, q := range pickup.Demand {
			delivery.Demand[r] = -q
		}
	}
	b.pickups = append(b.pickups, pickup)
	b.deliveries = append(b.deliveries, delivery)
	return b
}

// Station adds a real refuelling station.
func (b *Builder) Station(n Node) *Builder {
	if n.Demand == nil {
		n.Demand = make([]int, b.resources)
	}
	b.stations = append(b.stations, n)
	return b
}

// DummyOf adds a dummy station duplicating the origin, the destination or
// the station at position station (0-based among stations). The dummy takes
// the coordinate of its source; service and window come from n.
func (b *Builder) DummyOf(source Role, station int, n Node) *Builder {
	if n.Demand == nil {
		n.Demand = make([]int, b.resources)
	}
	b.dummies = append(b.dummies, dummy{node: n, source: source, station: station})
	return b
}

func (b *Builder) Vehicle(v Vehicle) *Builder {
	b.vehicles = append(b.vehicles, v.clone())
	return b
}

// Build validates the collected data and returns the instance. Any problem
// is reported as an error wrapping ErrInvalid.
func (b *Builder) Build() (*Instance, error) {
	if err := b.validate(); err != nil {
		return nil, err
	}
	n, f := len(b.pickups), len(b.stations)
	in := &Instance{
		Name:        b.name,
		Resources:   b.resources,
		MaxRide:     b.maxRide,
		SpeedFactor: b.speedFactor,
		FuelRate:    b.fuelRate,
		Metric:      b.metric,
		requests:    n,
		stations:    f,
		dummies:     len(b.dummies),
	}
	add := func(node Node, role Role, request, source int) {
		node = node.clone()
		node.Role = role
		node.Request = request
		node.Source = source
		in.nodes = append(in.nodes, node)
	}
	add(*b.origin, Origin, 0, -1)
	for i, p := range b.pickups {
		add(p, Pickup, i+1, -1)
	}
	for i, d := range b.deliveries {
		add(d, Delivery, i+1, -1)
	}
	for _, s := range b.stations {
		add(s, Station, 0, -1)
	}
	add(*b.destination, Destination, 0, -1)
	for _, d := range b.dummies {
		var src int
		switch d.source {
		case Origin:
			src = 0
		case Destination:
			src = 2*n + f + 1
		default:
			src = 2*n + 1 + d.station
		}
		node := d.node
		node.Coord = in.nodes[src].Coord
		add(node, DummyStation, 0, src)
	}
	for _, v := range b.vehicles {
		in.vehicles = append(in.vehicles, v.clone())
	}
	return in, nil
}
