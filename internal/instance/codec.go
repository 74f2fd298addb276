package instance

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format names an instance file encoding.
type Format string

const (
	YAML Format = "yaml"
	JSON Format = "json"
)

// File is the on-disk representation of an instance. Nodes are grouped by
// role so files never depend on the index layout.
type File struct {
	Name        string        `yaml:"name" json:"name"`
	Resources   int           `yaml:"resources" json:"resources"`
	MaxRide     float64       `yaml:"maxRide" json:"maxRide"`
	SpeedFactor float64       `yaml:"speedFactor,omitempty" json:"speedFactor,omitempty"`
	FuelRate    *float64      `yaml:"fuelRate,omitempty" json:"fuelRate,omitempty"`
	Metric      Metric        `yaml:"metric,omitempty" json:"metric,omitempty"`
	Origin      NodeFile      `yaml:"origin" json:"origin"`
	Destination NodeFile      `yaml:"destination" json:"destination"`
	Requests    []RequestFile `yaml:"requests" json:"requests"`
	Stations    []NodeFile    `yaml:"stations,omitempty" json:"stations,omitempty"`
	Dummies     []DummyFile   `yaml:"dummies,omitempty" json:"dummies,omitempty"`
	Vehicles    []VehicleFile `yaml:"vehicles" json:"vehicles"`
}

type NodeFile struct {
	Name     string  `yaml:"name,omitempty" json:"name,omitempty"`
	X        float64 `yaml:"x" json:"x"`
	Y        float64 `yaml:"y" json:"y"`
	Earliest float64 `yaml:"earliest" json:"earliest"`
	Latest   float64 `yaml:"latest" json:"latest"`
	Demand   []int   `yaml:"demand,omitempty" json:"demand,omitempty"`
	Service  float64 `yaml:"service" json:"service"`
}

type RequestFile struct {
	Pickup   NodeFile `yaml:"pickup" json:"pickup"`
	Delivery NodeFile `yaml:"delivery" json:"delivery"`
}

// DummyFile duplicates "origin", "destination" or a station given by its
// 1-based position.
type DummyFile struct {
	Name    string  `yaml:"name,omitempty" json:"name,omitempty"`
	Of      string  `yaml:"of" json:"of"`
	Station int     `yaml:"station,omitempty" json:"station,omitempty"`
	Service float64 `yaml:"service" json:"service"`
	// Earliest and Latest default to the source node window.
	Earliest *float64 `yaml:"earliest,omitempty" json:"earliest,omitempty"`
	Latest   *float64 `yaml:"latest,omitempty" json:"latest,omitempty"`
}

type VehicleFile struct {
	Name        string               `yaml:"name,omitempty" json:"name,omitempty"`
	Capacity    []int                `yaml:"capacity" json:"capacity"`
	MaxDuration float64              `yaml:"maxDuration" json:"maxDuration"`
	Tank        float64              `yaml:"tank,omitempty" json:"tank,omitempty"`
	Shared      []SharedCapacityFile `yaml:"shared,omitempty" json:"shared,omitempty"`
}

type SharedCapacityFile struct {
	Resources []int `yaml:"resources" json:"resources"`
	Capacity  int   `yaml:"capacity" json:"capacity"`
}

func (n NodeFile) node() Node {
	return Node{
		Name:     n.Name,
		Coord:    Coord{X: n.X, Y: n.Y},
		Earliest: n.Earliest,
		Latest:   n.Latest,
		Demand:   append([]int(nil), n.Demand...),
		Service:  n.Service,
	}
}

func nodeFile(n Node) NodeFile {
	return NodeFile{
		Name:     n.Name,
		X:        n.Coord.X,
		Y:        n.Coord.Y,
		Earliest: n.Earliest,
		Latest:   n.Latest,
		Demand:   append([]int(nil), n.Demand...),
		Service:  n.Service,
	}
}

// Instance builds and validates the instance described by the file.
func (f *File) Instance() (*Instance, error) {
	b := NewBuilder(f.Name, f.Resources).MaxRide(f.MaxRide)
	if f.SpeedFactor != 0 {
		b.SpeedFactor(f.SpeedFactor)
	}
	if f.FuelRate != nil {
		b.FuelRate(*f.FuelRate)
	}
	if f.Metric != "" {
		b.Metric(f.Metric)
	}
	b.Origin(f.Origin.node()).Destination(f.Destination.node())
	for _, r := range f.Requests {
		b.Request(r.Pickup.node(), r.Delivery.node())
	}
	for _, s := range f.Stations {
		b.Station(s.node())
	}
	for i, d := range f.Dummies {
		var src NodeFile
		var role Role
		switch strings.ToLower(d.Of) {
		case "origin":
			role, src = Origin, f.Origin
		case "destination":
			role, src = Destination, f.Destination
		case "station":
			if d.Station < 1 || d.Station > len(f.Stations) {
				return nil, invalid("dummy %d: station %d out of range", i+1, d.Station)
			}
			role, src = Station, f.Stations[d.Station-1]
		default:
			return nil, invalid("dummy %d: unknown source %q", i+1, d.Of)
		}
		n := Node{Name: d.Name, Earliest: src.Earliest, Latest: src.Latest, Service: d.Service}
		if d.Earliest != nil {
			n.Earliest = *d.Earliest
		}
		if d.Latest != nil {
			n.Latest = *d.Latest
		}
		b.DummyOf(role, d.Station-1, n)
	}
	for _, v := range f.Vehicles {
		veh := Vehicle{
			Name:        v.Name,
			Capacity:    append([]int(nil), v.Capacity...),
			MaxDuration: v.MaxDuration,
			Tank:        v.Tank,
		}
		for _, s := range v.Shared {
			veh.Shared = append(veh.Shared, SharedCapacity{Resources: append([]int(nil), s.Resources...), Capacity: s.Capacity})
		}
		b.Vehicle(veh)
	}
	return b.Build()
}

// ToFile converts an instance back into its file representation.
func ToFile(in *Instance) *File {
	rate := in.FuelRate
	f := &File{
		Name:        in.Name,
		Resources:   in.Resources,
		MaxRide:     in.MaxRide,
		SpeedFactor: in.SpeedFactor,
		FuelRate:    &rate,
		Metric:      in.Metric,
		Origin:      nodeFile(in.nodes[in.Origin()]),
		Destination: nodeFile(in.nodes[in.Destination()]),
	}
	for _, p := range in.Pickups() {
		f.Requests = append(f.Requests, RequestFile{
			Pickup:   nodeFile(in.nodes[p]),
			Delivery: nodeFile(in.nodes[in.DeliveryOf(p)]),
		})
	}
	first := 2*in.requests + 1
	for _, s := range in.Stations() {
		f.Stations = append(f.Stations, nodeFile(in.nodes[s]))
	}
	for _, d := range in.Dummies() {
		n := in.nodes[d]
		e, l := n.Earliest, n.Latest
		df := DummyFile{Name: n.Name, Service: n.Service, Earliest: &e, Latest: &l}
		switch in.nodes[n.Source].Role {
		case Origin:
			df.Of = "origin"
		case Destination:
			df.Of = "destination"
		default:
			df.Of = "station"
			df.Station = n.Source - first + 1
		}
		f.Dummies = append(f.Dummies, df)
	}
	for _, v := range in.vehicles {
		vf := VehicleFile{
			Name:        v.Name,
			Capacity:    append([]int(nil), v.Capacity...),
			MaxDuration: v.MaxDuration,
			Tank:        v.Tank,
		}
		for _, s := range v.Shared {
			vf.Shared = append(vf.Shared, SharedCapacityFile{Resources: append([]int(nil), s.Resources...), Capacity: s.Capacity})
		}
		f.Vehicles = append(f.Vehicles, vf)
	}
	return f
}

// Decode reads an instance file in the given format.
func Decode(r io.Reader, format Format) (*Instance, error) {
	var f File
	switch format {
	case YAML:
		if err := yaml.NewDecoder(r).Decode(&f); err != nil {
			return nil, fmt.Errorf("instance: decode yaml: %w", err)
		}
	case JSON:
		dec := json.NewDecoder(r)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&f); err != nil {
			return nil, fmt.Errorf("instance: decode json: %w", err)
		}
	default:
		return nil, fmt.Errorf("instance: unknown format %q", format)
	}
	return f.Instance()
}

// Encode writes in to w in the given format.
func Encode(w io.Writer, in *Instance, format Format) error {
	f := ToFile(in)
	switch format {
	case YAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(f); err != nil {
			return err
		}
		return enc.Close()
	case JSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(f)
	}
	return fmt.Errorf("instance: unknown format %q", format)
}

// Load reads an instance file, picking the format from the extension.
func Load(path string) (*Instance, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("instance: load: %w", err)
	}
	defer fh.Close()
	format := YAML
	if strings.EqualFold(filepath.Ext(path), ".json") {
		format = JSON
	}
	in, err := Decode(fh, format)
	if err != nil {
		return nil, fmt.Errorf("instance: load %s: %w", path, err)
	}
	return in, nil
}
