package routes

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"evdarp/internal/formulation"
	"evdarp/internal/lp"
)

func ff(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) }

// WriteReport writes one tab separated line per stop and a summary line
// per route:
//
//	vehicle node name x y arrival service fuel
//
// The fuel column is empty when fuel is not modelled.
func WriteReport(w io.Writer, routes []Route) error {
	cw := csv.NewWriter(w)
	cw.Comma = '\t'
	if err := cw.Write([]string{"vehicle", "node", "name", "x", "y", "arrival", "service", "fuel"}); err != nil {
		return err
	}
	var dist, dur float64
	for _, r := range routes {
		veh := strconv.Itoa(r.Vehicle)
		for _, s := range r.Stops {
			fuel := ""
			if s.Fuel != nil {
				fuel = ff(*s.Fuel)
			}
			rec := []string{veh, strconv.Itoa(s.Node), s.Name, ff(s.Coord.X), ff(s.Coord.Y), ff(s.Arrival), ff(s.Service), fuel}
			if err := cw.Write(rec); err != nil {
				return err
			}
		}
		if err := cw.Write([]string{veh, "total", "", "", "", ff(r.Duration), "", "distance=" + ff(r.Distance)}); err != nil {
			return err
		}
		dist += r.Distance
		dur += r.Duration
	}
	if err := cw.Write([]string{"all", "total", "", "", "", ff(dur), "", "distance=" + ff(dist)}); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}

// WriteMatrix prints the arc selection of vehicle k as an n×n grid: "1"
// for a selected arc, "-" for an unselected one and "\" on the diagonal.
func WriteMatrix(w io.Writer, f *formulation.Formulation, sol *lp.Solution, k int) error {
	if k < 0 || k >= f.Instance.NumVehicles() {
		return fmt.Errorf("routes: vehicle %d out of range", k)
	}
	n := f.Instance.Len()
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "vehicle %d\n", k)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if j > 0 {
				bw.WriteByte(' ')
			}
			if i == j {
				bw.WriteByte('\\')
				continue
			}
			v, err := sol.Value(f.X[i][j][k])
			if err != nil {
				return err
			}
			if selected(v) {
				bw.WriteByte('1')
			} else {
				bw.WriteByte('-')
			}
		}
		bw.WriteByte('\n')
	}
	return bw.Flush()
}
