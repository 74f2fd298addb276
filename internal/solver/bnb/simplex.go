package bnb

import (
	"math"

	"evdarp/internal/lp"
)

type lpStatus int

const (
	lpOptimal lpStatus = iota
	lpInfeasible
	lpUnbounded
	lpIterationLimit
)

// degenerateLimit is the number of consecutive degenerate pivots after which
// pricing switches from Dantzig to Bland's rule.
const degenerateLimit = 50

// problem is min c·y subject to rows, y >= 0.
type problem struct {
	a     [][]float64
	sense []lp.Sense
	b     []float64
	c     []float64
}

// tableau is a dense simplex tableau. Row i holds the constraint in the
// current basis with the right-hand side in the last column; obj holds the
// reduced costs and minus the objective value in its last column.
type tableau struct {
	t        [][]float64
	obj      []float64
	basis    []int
	cols     int
	artStart int
	eps      float64
	maxIter  int
}

// simplex solves p with the two-phase method and returns the structural
// values and the objective.
func simplex(p problem, eps float64, maxIter int) (lpStatus, []float64, float64) {
	m, nv := len(p.a), len(p.c)

	// normalise to non-negative right-hand sides
	sense := make([]lp.Sense, m)
	sign := make([]float64, m)
	slacks, arts := 0, 0
	for i := 0; i < m; i++ {
		sense[i], sign[i] = p.sense[i], 1
		if p.b[i] < 0 {
			sign[i] = -1
			switch sense[i] {
			case lp.LE:
				sense[i] = lp.GE
			case lp.GE:
				sense[i] = lp.LE
			}
		}
		if sense[i] != lp.EQ {
			slacks++
		}
		if sense[i] != lp.LE {
			arts++
		}
	}

	tb := &tableau{
		cols:     nv + slacks + arts,
		artStart: nv + slacks,
		basis:    make([]int, m),
		eps:      eps,
		maxIter:  maxIter,
	}
	tb.t = make([][]float64, m)
	slack, art := nv, nv+slacks
	for i := 0; i < m; i++ {
		row := make([]float64, tb.cols+1)
		for j, v := range p.a[i] {
			row[j] = sign[i] * v
		}
		row[tb.cols] = sign[i] * p.b[i]
		switch sense[i] {
		case lp.LE:
			row[slack] = 1
			tb.basis[i] = slack
			slack++
		case lp.GE:
			row[slack] = -1
			slack++
			row[art] = 1
			tb.basis[i] = art
			art++
		case lp.EQ:
			row[art] = 1
			tb.basis[i] = art
			art++
		}
		tb.t[i] = row
	}

	if arts > 0 {
		cost := make([]float64, tb.cols)
		for j := tb.artStart; j < tb.cols; j++ {
			cost[j] = 1
		}
		tb.price(cost)
		if st := tb.iterate(tb.cols); st != lpOptimal {
			return st, nil, 0
		}
		if -tb.obj[tb.cols] > eps*float64(1+m) {
			return lpInfeasible, nil, 0
		}
		tb.evictArtificials()
	}

	cost := make([]float64, tb.cols)
	copy(cost, p.c)
	tb.price(cost)
	if st := tb.iterate(tb.artStart); st != lpOptimal {
		return st, nil, 0
	}

	y := make([]float64, nv)
	for i, col := range tb.basis {
		if col < nv {
			y[col] = math.Max(0, tb.t[i][tb.cols])
		}
	}
	z := 0.0
	for j, cj := range p.c {
		z += cj * y[j]
	}
	return lpOptimal, y, z
}

// price rebuilds the reduced-cost row for cost under the current basis.
func (tb *tableau) price(cost []float64) {
	obj := make([]float64, tb.cols+1)
	copy(obj, cost)
	for i, col := range tb.basis {
		cb := cost[col]
		if cb == 0 {
			continue
		}
		for j, v := range tb.t[i] {
			obj[j] -= cb * v
		}
	}
	tb.obj = obj
}

// iterate pivots until no column below limit has a negative reduced cost.
func (tb *tableau) iterate(limit int) lpStatus {
	bland, degenerate := false, 0
	rhs := tb.cols
	for iter := 0; iter < tb.maxIter; iter++ {
		enter := -1
		best := -tb.eps
		for j := 0; j < limit; j++ {
			d := tb.obj[j]
			if d >= -tb.eps {
				continue
			}
			if bland {
				enter = j
				break
			}
			if d < best {
				best, enter = d, j
			}
		}
		if enter < 0 {
			return lpOptimal
		}

		leave := -1
		ratio := math.Inf(1)
		for i, row := range tb.t {
			a := row[enter]
			if a <= tb.eps {
				continue
			}
			r := row[rhs] / a
			switch {
			case leave < 0 || r < ratio-tb.eps:
				leave, ratio = i, r
			case r <= ratio+tb.eps && tb.basis[i] < tb.basis[leave]:
				leave, ratio = i, math.Min(r, ratio)
			}
		}
		if leave < 0 {
			return lpUnbounded
		}
		if ratio <= tb.eps {
			degenerate++
			if degenerate > degenerateLimit {
				bland = true
			}
		} else {
			degenerate = 0
		}
		tb.pivot(leave, enter)
	}
	return lpIterationLimit
}

func (tb *tableau) pivot(r, c int) {
	pr := tb.t[r]
	pv := pr[c]
	for j := range pr {
		pr[j] /= pv
	}
	pr[c] = 1
	for i, row := range tb.t {
		if i == r {
			continue
		}
		f := row[c]
		if f == 0 {
			continue
		}
		for j, v := range pr {
			if v != 0 {
				row[j] -= f * v
			}
		}
		row[c] = 0
		if math.Abs(row[tb.cols]) < tb.eps {
			row[tb.cols] = 0
		}
	}
	if f := tb.obj[c]; f != 0 {
		for j, v := range pr {
			if v != 0 {
				tb.obj[j] -= f * v
			}
		}
		tb.obj[c] = 0
	}
	tb.basis[r] = c
}

// evictArtificials pivots basic artificials (all at zero after a feasible
// phase one) out on any structural or slack column. Rows where none exists
// are redundant and keep their artificial at zero.
func (tb *tableau) evictArtificials() {
	for i, col := range tb.basis {
		if col < tb.artStart {
			continue
		}
		for j := 0; j < tb.artStart; j++ {
			if math.Abs(tb.t[i][j]) > tb.eps {
				tb.pivot(i, j)
				break
			}
		}
	}
}
