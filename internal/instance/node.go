package instance

import "fmt"

// Role tags a node with its place in the transport network. It is resolved
// once when an instance is built so nothing downstream computes index offsets.
type Role int

const (
	Origin Role = iota
	Pickup
	Delivery
	Station
	Destination
	DummyStation
)

func (r Role) String() string {
	switch r {
	case Origin:
		return "origin"
	case Pickup:
		return "pickup"
	case Delivery:
		return "delivery"
	case Station:
		return "station"
	case Destination:
		return "destination"
	case DummyStation:
		return "dummy-station"
	}
	return fmt.Sprintf("role(%d)", int(r))
}

// Depot reports whether the role is the origin or the destination depot.
func (r Role) Depot() bool { return r == Origin || r == Destination }

// Refuels reports whether a visit fills the tank (real or dummy station).
func (r Role) Refuels() bool { return r == Station || r == DummyStation }

// Coord is a planar position, or longitude (X) / latitude (Y) for
// geographic instances.
type Coord struct {
	X float64
	Y float64
}

// Node is a location of the network with its service requirements.
type Node struct {
	Name     string
	Coord    Coord
	Earliest float64
	Latest   float64
	// Demand holds one signed entry per resource; positive at pickups,
	// the element-wise negation at the paired delivery.
	Demand  []int
	Service float64

	Role Role
	// Request is the 1-based request id of a pickup or delivery, 0 otherwise.
	Request int
	// Source is the index of the node a dummy station duplicates, -1 otherwise.
	Source int
}

// Label returns the node name, or a generated one when the node is unnamed.
func (n Node) Label(index int) string {
	if n.Name != "" {
		return n.Name
	}
	return fmt.Sprintf("%s-%d", n.Role, index)
}

func (n Node) clone() Node {
	c := n
	c.Demand = append([]int(nil), n.Demand...)
	return c
}
