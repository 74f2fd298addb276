package instance

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalid is wrapped by every instance construction error.
var ErrInvalid = errors.New("instance: invalid")

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

func (b *Builder) validate() error {
	if b.resources < 1 {
		return invalid("resource count %d, want at least 1", b.resources)
	}
	if b.origin == nil {
		return invalid("missing origin depot")
	}
	if b.destination == nil {
		return invalid("missing destination depot")
	}
	if len(b.pickups) != len(b.deliveries) {
		return invalid("%d pickups but %d deliveries", len(b.pickups), len(b.deliveries))
	}
	if len(b.vehicles) == 0 {
		return invalid("no vehicles")
	}
	if b.maxRide < 0 || math.IsNaN(b.maxRide) {
		return invalid("max ride time %v", b.maxRide)
	}
	if !(b.speedFactor > 0) || math.IsInf(b.speedFactor, 0) {
		return invalid("speed factor %v must be positive", b.speedFactor)
	}
	if b.fuelRate < 0 || math.IsNaN(b.fuelRate) || math.IsInf(b.fuelRate, 0) {
		return invalid("fuel rate %v", b.fuelRate)
	}
	if b.metric != Euclidean && b.metric != Geographic {
		return invalid("unknown metric %q", b.metric)
	}

	if err := b.checkNode("origin", *b.origin); err != nil {
		return err
	}
	if err := b.checkNode("destination", *b.destination); err != nil {
		return err
	}
	for i := range b.pickups {
		p, d := b.pickups[i], b.deliveries[i]
		if err := b.checkNode(fmt.Sprintf("pickup %d", i+1), p); err != nil {
			return err
		}
		if err := b.checkNode(fmt.Sprintf("delivery %d", i+1), d); err != nil {
			return err
		}
		for r := range p.Demand {
			if p.Demand[r] != -d.Demand[r] {
				return invalid("request %d: delivery demand %v is not the negation of pickup demand %v", i+1, d.Demand, p.Demand)
			}
		}
	}
	for i, s := range b.stations {
		label := fmt.Sprintf("station %d", i+1)
		if err := b.checkNode(label, s); err != nil {
			return err
		}
		if !zero(s.Demand) {
			return invalid("%s carries demand %v", label, s.Demand)
		}
	}
	for i, d := range b.dummies {
		label := fmt.Sprintf("dummy station %d", i+1)
		switch d.source {
		case Origin, Destination:
		case Station:
			if d.station < 0 || d.station >= len(b.stations) {
				return invalid("%s duplicates unknown station %d", label, d.station)
			}
		default:
			return invalid("%s duplicates a %s", label, d.source)
		}
		if err := b.checkNode(label, d.node); err != nil {
			return err
		}
		if !zero(d.node.Demand) {
			return invalid("%s carries demand %v", label, d.node.Demand)
		}
	}

	for k, v := range b.vehicles {
		label := v.Name
		if label == "" {
			label = fmt.Sprintf("vehicle %d", k)
		}
		if len(v.Capacity) != b.resources {
			return invalid("%s: %d capacity entries for %d resources", label, len(v.Capacity), b.resources)
		}
		for r, c := range v.Capacity {
			if c < 0 {
				return invalid("%s: negative capacity %d for resource %d", label, c, r)
			}
		}
		if !(v.MaxDuration > 0) {
			return invalid("%s: max duration %v must be positive", label, v.MaxDuration)
		}
		if v.Tank < 0 || math.IsNaN(v.Tank) || math.IsInf(v.Tank, 0) {
			return invalid("%s: tank %v", label, v.Tank)
		}
		for _, s := range v.Shared {
			if s.Capacity < 0 {
				return invalid("%s: negative shared capacity %d", label, s.Capacity)
			}
			for _, r := range s.Resources {
				if r < 0 || r >= b.resources {
					return invalid("%s: shared capacity names unknown resource %d", label, r)
				}
			}
		}
	}
	return nil
}

func (b *Builder) checkNode(label string, n Node) error {
	if len(n.Demand) != b.resources {
		return invalid("%s: %d demand entries for %d resources", label, len(n.Demand), b.resources)
	}
	if !finite(n.Coord.X) || !finite(n.Coord.Y) {
		return invalid("%s: malformed coordinate (%v, %v)", label, n.Coord.X, n.Coord.Y)
	}
	if !finite(n.Earliest) || !finite(n.Latest) {
		return invalid("%s: malformed time window [%v, %v]", label, n.Earliest, n.Latest)
	}
	if n.Earliest > n.Latest {
		return invalid("%s: earliest %v after latest %v", label, n.Earliest, n.Latest)
	}
	if n.Service < 0 || !finite(n.Service) {
		return invalid("%s: service duration %v", label, n.Service)
	}
	return nil
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

func zero(q []int) bool {
	for _, v := range q {
		if v != 0 {
			return false
		}
	}
	return true
}
