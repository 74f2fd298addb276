package formulation

import (
	"fmt"
	"strings"
)

// ObjectiveKind selects the arc cost of the objective.
type ObjectiveKind int

const (
	// ObjectiveTimeService charges t[i][j] + s_j per arc, which keeps the
	// solver from inserting free stops at nodes sharing a coordinate.
	ObjectiveTimeService ObjectiveKind = iota
	// ObjectiveDistance charges c[i][j] per arc.
	ObjectiveDistance
)

// BigMPolicy selects the constants of the linking rows.
type BigMPolicy int

const (
	// BigMTight derives M per arc from the windows and capacities.
	BigMTight BigMPolicy = iota
	// BigMHorizon uses the route duration limit for time rows and the
	// capacity for load rows.
	BigMHorizon
)

// TourMode selects how a route ends.
type TourMode int

const (
	// TourOpen ends every walk at the destination depot.
	TourOpen TourMode = iota
	// TourClosed forces the arc destination→origin and ends walks back at
	// the origin.
	TourClosed
)

// RangePolicy selects the range feasibility rows.
type RangePolicy int

const (
	// RangeArc requires enough fuel for every used arc into a station or
	// the destination.
	RangeArc RangePolicy = iota
	// RangeAll requires every node to hold enough fuel to reach every
	// station, whether or not the arc is used.
	RangeAll
)

// Features toggles the optional parts of the model.
type Features struct {
	Fuel          bool          `json:"fuel" yaml:"fuel"`
	DummyStations bool          `json:"dummyStations" yaml:"dummyStations"`
	Objective     ObjectiveKind `json:"objective" yaml:"objective"`
	BigM          BigMPolicy    `json:"bigM" yaml:"bigM"`
	Tour          TourMode      `json:"tour" yaml:"tour"`
	Range         RangePolicy   `json:"range" yaml:"range"`
}

// DefaultFeatures is the full model: fuel and dummy stations on, time plus
// service objective, tight big-M, open tours, arc-conditional range.
func DefaultFeatures() Features {
	return Features{Fuel: true, DummyStations: true}
}

func (f Features) String() string {
	return fmt.Sprintf("fuel=%t dummies=%t objective=%s bigm=%s tour=%s range=%s",
		f.Fuel, f.DummyStations, f.Objective, f.BigM, f.Tour, f.Range)
}

var (
	objectiveNames = []string{"time-service", "distance"}
	bigMNames      = []string{"tight", "horizon"}
	tourNames      = []string{"open", "closed"}
	rangeNames     = []string{"arc", "all"}
)

func enumString(names []string, v int, kind string) string {
	if v >= 0 && v < len(names) {
		return names[v]
	}
	return fmt.Sprintf("%s(%d)", kind, v)
}

func parseEnum(names []string, s, kind string) (int, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, n := range names {
		if s == n {
			return i, nil
		}
	}
	return 0, fmt.Errorf("formulation: unknown %s %q (want one of %s)", kind, s, strings.Join(names, ", "))
}

func (o ObjectiveKind) String() string { return enumString(objectiveNames, int(o), "objective") }
func (b BigMPolicy) String() string    { return enumString(bigMNames, int(b), "bigm") }
func (t TourMode) String() string      { return enumString(tourNames, int(t), "tour") }
func (r RangePolicy) String() string   { return enumString(rangeNames, int(r), "range") }

func ParseObjective(s string) (ObjectiveKind, error) {
	v, err := parseEnum(objectiveNames, s, "objective")
	return ObjectiveKind(v), err
}

func ParseBigM(s string) (BigMPolicy, error) {
	v, err := parseEnum(bigMNames, s, "big-M policy")
	return BigMPolicy(v), err
}

func ParseTour(s string) (TourMode, error) {
	v, err := parseEnum(tourNames, s, "tour mode")
	return TourMode(v), err
}

func ParseRange(s string) (RangePolicy, error) {
	v, err := parseEnum(rangeNames, s, "range policy")
	return RangePolicy(v), err
}

func (o ObjectiveKind) MarshalText() ([]byte, error) { return []byte(o.String()), nil }
func (b BigMPolicy) MarshalText() ([]byte, error)    { return []byte(b.String()), nil }
func (t TourMode) MarshalText() ([]byte, error)      { return []byte(t.String()), nil }
func (r RangePolicy) MarshalText() ([]byte, error)   { return []byte(r.String()), nil }

func (o *ObjectiveKind) UnmarshalText(b []byte) (err error) {
	*o, err = ParseObjective(string(b))
	return err
}

func (p *BigMPolicy) UnmarshalText(b []byte) (err error) {
	*p, err = ParseBigM(string(b))
	return err
}

func (t *TourMode) UnmarshalText(b []byte) (err error) {
	*t, err = ParseTour(string(b))
	return err
}

func (r *RangePolicy) UnmarshalText(b []byte) (err error) {
	*r, err = ParseRange(string(b))
	return err
}

func (f Features) validate() error {
	switch {
	case f.Objective < 0 || int(f.Objective) >= len(objectiveNames):
		return fmt.Errorf("formulation: %s", f.Objective)
	case f.BigM < 0 || int(f.BigM) >= len(bigMNames):
		return fmt.Errorf("formulation: %s", f.BigM)
	case f.Tour < 0 || int(f.Tour) >= len(tourNames):
		return fmt.Errorf("formulation: %s", f.Tour)
	case f.Range < 0 || int(f.Range) >= len(rangeNames):
		return fmt.Errorf("formulation: %s", f.Range)
	}
	return nil
}
