package instance

import (
	"fmt"
	"math/rand"
)

// Horizons shared by the fixtures.
const (
	DefaultMaxDuration = 480
	DefaultMaxRide     = 240
	DefaultSpeedFactor = 15
	DefaultTank        = 7
)

// DefaultFleet is three container trucks: two carrying one full 20"
// container and one carrying two.
func DefaultFleet() []Vehicle {
	return []Vehicle{
		ContainerTruck("truck-0", [ContainerResources]int{1, 0, 0, 0}, DefaultTank, DefaultMaxDuration),
		ContainerTruck("truck-1", [ContainerResources]int{1, 0, 0, 0}, DefaultTank, DefaultMaxDuration),
		ContainerTruck("truck-2", [ContainerResources]int{2, 0, 0, 0}, DefaultTank, DefaultMaxDuration),
	}
}

func fullTwenty() []int { return []int{1, 0, 0, 0} }

// Default returns the fixed four-request instance with three stations and
// dummy stations at both depots. It is known to be solvable.
func Default() *Instance {
	const open, shut = 0, 2000
	at := func(name string, x, y, service float64) Node {
		return Node{Name: name, Coord: Coord{X: x, Y: y}, Earliest: open, Latest: shut, Service: service}
	}
	pickup := func(name string, x, y float64) Node {
		n := at(name, x, y, 30)
		n.Demand = fullTwenty()
		return n
	}

	b := NewBuilder("default", ContainerResources).
		MaxRide(DefaultMaxRide).
		SpeedFactor(DefaultSpeedFactor).
		Origin(at("origin", 3, 3, 5)).
		Request(pickup("p1", 1, 1), at("d1", 4, 1, 30)).
		Request(pickup("p2", 1, 4), at("d2", 4, 4, 30)).
		Request(pickup("p3", 4, 3), at("d3", 1, 3, 30)).
		Request(pickup("p4", 2, 4), at("d4", 3, 4, 30)).
		Station(at("afs1", 2, 2, 15)).
		Station(at("afs2", 4, 2, 15)).
		Station(at("afs3", 1, 2, 15)).
		Destination(at("destination", 3, 2, 5)).
		DummyOf(Origin, 0, at("afs-origin", 0, 0, 15)).
		DummyOf(Destination, 0, at("afs-destination", 0, 0, 15))
	for _, v := range DefaultFleet() {
		b.Vehicle(v)
	}
	in, err := b.Build()
	if err != nil {
		panic(err)
	}
	return in
}

// Random generates an instance with uniformly placed nodes in [1,5)² and
// windows [0,480], served by DefaultFleet. The result is not guaranteed to be
// feasible.
func Random(rng *rand.Rand, requests, stations int) *Instance {
	const open, shut = 0, DefaultMaxDuration
	at := func(name string, service float64) Node {
		return Node{
			Name:     name,
			Coord:    Coord{X: rng.Float64()*4 + 1, Y: rng.Float64()*4 + 1},
			Earliest: open,
			Latest:   shut,
			Service:  service,
		}
	}

	b := NewBuilder("random", ContainerResources).
		MaxRide(DefaultMaxRide).
		SpeedFactor(DefaultSpeedFactor).
		Origin(at("origin", 5))
	pickups := make([]Node, requests)
	for i := range pickups {
		pickups[i] = at(fmt.Sprintf("p%d", i+1), 30)
		pickups[i].Demand = fullTwenty()
	}
	for i := range pickups {
		b.Request(pickups[i], at(fmt.Sprintf("d%d", i+1), 30))
	}
	for i := 0; i < stations; i++ {
		b.Station(at(fmt.Sprintf("afs%d", i+1), 15))
	}
	dummy := Node{Earliest: open, Latest: shut, Service: 15}
	b.Destination(at("destination", 5)).
		DummyOf(Origin, 0, dummy).
		DummyOf(Destination, 0, dummy)
	for _, v := range DefaultFleet() {
		b.Vehicle(v)
	}
	in, err := b.Build()
	if err != nil {
		panic(err)
	}
	return in
}
