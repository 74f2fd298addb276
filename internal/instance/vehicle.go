package instance

// Container resources of the port-drayage variant.
const (
	Full20 = iota
	Empty20
	Full40
	Empty40

	ContainerResources = 4
)

// SharedCapacity bounds the summed load of several resources, e.g. full and
// empty containers of one size competing for the same physical slot.
type SharedCapacity struct {
	Resources []int
	Capacity  int
}

// Vehicle is a transport unit.
type Vehicle struct {
	Name string
	// Capacity holds one non-negative entry per resource.
	Capacity    []int
	MaxDuration float64
	// Tank is the fuel capacity; ignored when fuel is not modelled.
	Tank   float64
	Shared []SharedCapacity
}

// ContainerTruck returns a truck carrying the four container resources where
// full and empty containers of the same size share the slot sized by the
// capacity of the full container type.
func ContainerTruck(name string, capacity [ContainerResources]int, tank, maxDuration float64) Vehicle {
	return Vehicle{
		Name:        name,
		Capacity:    capacity[:],
		MaxDuration: maxDuration,
		Tank:        tank,
		Shared: []SharedCapacity{
			{Resources: []int{Full20, Empty20}, Capacity: capacity[Full20]},
			{Resources: []int{Full40, Empty40}, Capacity: capacity[Full40]},
		},
	}
}

func (v Vehicle) clone() Vehicle {
	c := v
	c.Capacity = append([]int(nil), v.Capacity...)
	c.Shared = nil
	for _, s := range v.Shared {
		c.Shared = append(c.Shared, SharedCapacity{Resources: append([]int(nil), s.Resources...), Capacity: s.Capacity})
	}
	return c
}
