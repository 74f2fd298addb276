package metrics

import "testing"

func TestRegisterDefaultIsIdempotent(t *testing.T) {
	RegisterDefault()
	RegisterDefault()

	Solves.WithLabelValues("bnb", "optimal").Inc()
	families, err := Registry.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	for _, f := range families {
		if f.GetName() != "evdarp_solves_total" {
			continue
		}
		for _, m := range f.GetMetric() {
			if m.GetCounter().GetValue() >= 1 {
				return
			}
		}
	}
	t.Fatal("evdarp_solves_total not gathered")
}
