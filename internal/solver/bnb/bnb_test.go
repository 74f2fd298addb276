package bnb

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evdarp/internal/lp"
)

func TestContinuousLP(t *testing.T) {
	// max 5a + 4b + 3c  s.t. 2a+3b+c <= 5, 4a+b+2c <= 11, 3a+4b+2c <= 8
	m := lp.NewModel("lp")
	a := m.AddContinuous("a", 0, 10)
	b := m.AddContinuous("b", 0, 10)
	c := m.AddContinuous("c", 0, 10)
	m.AddConstraint("r1", new(lp.Expr).Add(2, a).Add(3, b).Add(1, c), lp.LE, 5)
	m.AddConstraint("r2", new(lp.Expr).Add(4, a).Add(1, b).Add(2, c), lp.LE, 11)
	m.AddConstraint("r3", new(lp.Expr).Add(3, a).Add(4, b).Add(2, c), lp.LE, 8)
	m.Minimize(new(lp.Expr).Add(-5, a).Add(-4, b).Add(-3, c))

	sol, err := New().Solve(context.Background(), m)
	require.NoError(t, err)
	require.Equal(t, lp.Optimal, sol.Status)
	assert.InDelta(t, -13, sol.Objective, 1e-7)
	assert.InDelta(t, 2, sol.MustValue(a), 1e-7)
	assert.InDelta(t, 0, sol.MustValue(b), 1e-7)
	assert.InDelta(t, 1, sol.MustValue(c), 1e-7)
	assert.Empty(t, m.Check(sol.Values(), 1e-6))
}

func knapsack() (*lp.Model, []lp.Var) {
	m := lp.NewModel("knapsack")
	weights := []float64{3, 4, 5, 6}
	values := []float64{4, 5, 6, 7}
	var items []lp.Var
	load, obj := new(lp.Expr), new(lp.Expr)
	for i := range weights {
		v := m.AddBinary("item" + string(rune('a'+i)))
		items = append(items, v)
		load.Add(weights[i], v)
		obj.Add(-values[i], v)
	}
	m.AddConstraint("capacity", load, lp.LE, 10)
	m.Minimize(obj)
	return m, items
}

func TestBinaryKnapsack(t *testing.T) {
	m, items := knapsack()
	sol, err := New().Solve(context.Background(), m)
	require.NoError(t, err)
	require.Equal(t, lp.Optimal, sol.Status)
	assert.InDelta(t, -12, sol.Objective, 1e-7)
	want := []float64{0, 1, 0, 1}
	for i, v := range items {
		assert.Equal(t, want[i], sol.MustValue(v), "item %d", i)
	}
	assert.Greater(t, sol.Nodes, 1)
}

func TestMixedWithEqualityAndGE(t *testing.T) {
	m := lp.NewModel("mixed")
	x := m.AddContinuous("x", 0, 1)
	y := m.AddBinary("y")
	m.AddConstraint("sum", new(lp.Expr).Add(1, x).Add(1, y), lp.EQ, 1)
	m.AddConstraint("floor", new(lp.Expr).Add(1, x), lp.GE, 0.3)
	m.Minimize(new(lp.Expr).Add(1, x).Add(2, y))

	sol, err := New().Solve(context.Background(), m)
	require.NoError(t, err)
	require.Equal(t, lp.Optimal, sol.Status)
	assert.InDelta(t, 1, sol.Objective, 1e-7)
	assert.Equal(t, 0.0, sol.MustValue(y))
}

func TestInfeasible(t *testing.T) {
	m := lp.NewModel("infeasible")
	x := m.AddBinary("x")
	y := m.AddBinary("y")
	m.AddConstraint("both", new(lp.Expr).Add(1, x).Add(1, y), lp.GE, 3)
	m.Minimize(new(lp.Expr).Add(1, x))

	sol, err := New().Solve(context.Background(), m)
	require.NoError(t, err)
	assert.Equal(t, lp.Infeasible, sol.Status)
	_, err = sol.Value(x)
	assert.True(t, errors.Is(err, lp.ErrNoSolution))
}

func TestIntegerInfeasible(t *testing.T) {
	// the relaxation is feasible at x = y = 0.5, no binary point is
	m := lp.NewModel("parity")
	x := m.AddBinary("x")
	y := m.AddBinary("y")
	m.AddConstraint("half", new(lp.Expr).Add(2, x).Add(2, y), lp.EQ, 1)
	m.Minimize(new(lp.Expr).Add(1, x))

	sol, err := New().Solve(context.Background(), m)
	require.NoError(t, err)
	assert.Equal(t, lp.Infeasible, sol.Status)
}

func TestNodeLimit(t *testing.T) {
	m, _ := knapsack()
	_, err := New(WithMaxNodes(1)).Solve(context.Background(), m)
	assert.True(t, errors.Is(err, lp.ErrSolver))
}

func TestNodeLimitWithIncumbent(t *testing.T) {
	// depth-first search settles on b+c (value 11) well before it reaches
	// b+d (value 12)
	m, items := knapsack()
	sol, err := New(WithMaxNodes(8)).Solve(context.Background(), m)
	require.NoError(t, err)
	require.Equal(t, lp.Feasible, sol.Status)
	assert.InDelta(t, -11, sol.Objective, 1e-7)
	assert.Equal(t, 8, sol.Nodes)
	assert.Equal(t, 1.0, sol.MustValue(items[2]))
	assert.Equal(t, 0.0, sol.MustValue(items[3]))
	assert.Empty(t, m.Check(sol.Values(), 1e-6))
}

func TestCancelled(t *testing.T) {
	m, _ := knapsack()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New().Solve(ctx, m)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.False(t, errors.Is(err, lp.ErrSolver))
}

func TestSimplexDegenerate(t *testing.T) {
	// Beale's cycling example; Dantzig pricing alone cycles on it.
	p := problem{
		a: [][]float64{
			{0.25, -60, -0.04, 9},
			{0.5, -90, -0.02, 3},
			{0, 0, 1, 0},
		},
		sense: []lp.Sense{lp.LE, lp.LE, lp.LE},
		b:     []float64{0, 0, 1},
		c:     []float64{-0.75, 150, -0.02, 6},
	}
	st, y, z := simplex(p, 1e-9, 1000)
	require.Equal(t, lpOptimal, st)
	assert.InDelta(t, -0.05, z, 1e-9)
	assert.InDelta(t, 1, y[2], 1e-9)
}
