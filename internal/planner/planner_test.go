package planner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evdarp/internal/formulation"
	"evdarp/internal/instance"
	"evdarp/internal/lp"
	"evdarp/internal/solver/bnb"
	"evdarp/internal/store"
)

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Publish(runID string, evt Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

type failing struct{}

func (failing) Solve(context.Context, *lp.Model) (*lp.Solution, error) {
	return nil, lp.ErrSolver
}

// bogus claims optimality for the all-zero assignment.
type bogus struct{}

func (bogus) Solve(_ context.Context, m *lp.Model) (*lp.Solution, error) {
	return lp.NewSolution(m, lp.Optimal, 0, make([]float64, m.NumVars())), nil
}

// unproven solves exactly but reports the result as an unproven incumbent.
type unproven struct{}

func (unproven) Solve(ctx context.Context, m *lp.Model) (*lp.Solution, error) {
	sol, err := bnb.New().Solve(ctx, m)
	if err != nil {
		return nil, err
	}
	return lp.NewSolution(m, lp.Feasible, sol.Objective, sol.Values()), nil
}

func at(x float64) instance.Node {
	return instance.Node{Coord: instance.Coord{X: x}, Latest: 100}
}

// lineInstance lays one request out on the x axis: origin 0, station s,
// pickup p, delivery d and destination e.
func lineInstance(t *testing.T, s, p, d, e, tank float64, capacity int, maxRide float64) *instance.Instance {
	t.Helper()
	pickup := at(p)
	pickup.Demand = []int{1}
	in, err := instance.NewBuilder("line", 1).
		MaxRide(maxRide).
		Origin(at(0)).
		Request(pickup, at(d)).
		Station(at(s)).
		Destination(at(e)).
		Vehicle(instance.Vehicle{Capacity: []int{capacity}, MaxDuration: 100, Tank: tank}).
		Build()
	require.NoError(t, err)
	return in
}

func stops(r []int, res *Result) []int {
	for _, s := range res.Routes[0].Stops {
		r = append(r, s.Node)
	}
	return r
}

func TestSingleRequestAmpleFuel(t *testing.T) {
	// O=0 P=1 Dl=2 S=3 D=4
	in := lineInstance(t, 10, 1, 2, 3, 100, 1, 50)
	res, err := New(bnb.New()).Run(context.Background(), in, formulation.DefaultFeatures())
	require.NoError(t, err)
	require.Equal(t, lp.Optimal, res.Status)
	assert.InDelta(t, 3, res.Objective, 1e-6)
	require.Len(t, res.Routes, 1)
	assert.Equal(t, []int{0, 1, 2, 4}, stops(nil, res))
	assert.InDelta(t, 3, res.Routes[0].Distance, 1e-6)
}

func TestCapacityTooSmallIsInfeasible(t *testing.T) {
	in := lineInstance(t, 10, 1, 2, 3, 100, 0, 50)
	pub := &recorder{}
	res, err := New(bnb.New(), WithPublisher(pub)).Run(context.Background(), in, formulation.DefaultFeatures())
	require.NoError(t, err)
	assert.Equal(t, lp.Infeasible, res.Status)
	assert.Empty(t, res.Routes)
	assert.Equal(t, []string{EventStarted, EventInfeasible}, pub.types())
}

func TestFuelForcesStationDetour(t *testing.T) {
	// the pickup at 5 is out of reach of a tank of 4 without the station at 3
	in := lineInstance(t, 3, 5, 6, 7, 4, 1, 50)
	res, err := New(bnb.New()).Run(context.Background(), in, formulation.DefaultFeatures())
	require.NoError(t, err)
	require.Equal(t, lp.Optimal, res.Status)
	assert.Equal(t, []int{0, 3, 1, 2, 4}, stops(nil, res))
	assert.InDelta(t, 7, res.Objective, 1e-6)
	for _, s := range res.Routes[0].Stops {
		require.NotNil(t, s.Fuel)
		assert.GreaterOrEqual(t, *s.Fuel, -1e-6)
	}
	// arrives at the station with 1 left and leaves full
	assert.Equal(t, 3, res.Routes[0].Stops[1].Node)
	assert.InDelta(t, 4, *res.Routes[0].Stops[1].Fuel, 1e-6)
}

func TestDirectRideBeyondLimitIsInfeasible(t *testing.T) {
	in := lineInstance(t, 10, 1, 6, 7, 100, 1, 4)
	res, err := New(bnb.New()).Run(context.Background(), in, formulation.DefaultFeatures())
	require.NoError(t, err)
	assert.Equal(t, lp.Infeasible, res.Status)
}

func TestClosedTourAndDistanceObjective(t *testing.T) {
	in := lineInstance(t, 10, 1, 2, 3, 100, 1, 50)
	feats := formulation.DefaultFeatures()
	feats.Tour = formulation.TourClosed
	feats.Objective = formulation.ObjectiveDistance
	res, err := New(bnb.New()).Run(context.Background(), in, feats)
	require.NoError(t, err)
	require.Equal(t, lp.Optimal, res.Status)
	assert.InDelta(t, 3, res.Objective, 1e-6)
	arcs := res.Routes[0].Arcs
	assert.Equal(t, [2]int{4, 0}, arcs[len(arcs)-1])
}

func TestRunPersistsExportsAndPublishes(t *testing.T) {
	in := lineInstance(t, 10, 1, 2, 3, 100, 1, 50)
	path := filepath.Join(t.TempDir(), "model.lp")
	st := store.NewMemory()
	pub := &recorder{}
	p := New(bnb.New(), WithExport(path), WithStore(st), WithPublisher(pub), WithMetrics())
	assert.Equal(t, "bnb", p.SolverName())

	res, err := p.Run(context.Background(), in, formulation.DefaultFeatures())
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), `\Problem name: line`))

	run, err := st.GetRun(context.Background(), res.RunID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusOptimal, run.Status)
	require.NotNil(t, run.Objective)
	assert.InDelta(t, res.Objective, *run.Objective, 1e-9)
	assert.Equal(t, string(data), run.LP)
	assert.Equal(t, res.Formulation.Model.NumRows(), run.Rows)
	assert.Len(t, run.Routes, 1)
	require.NotNil(t, run.Instance)

	assert.Equal(t, []string{EventStarted, EventSolved}, pub.types())
	assert.Equal(t, res.RunID, pub.events[1].Data["runId"])
}

func TestFeasibleIsNotReportedOptimal(t *testing.T) {
	in := lineInstance(t, 10, 1, 2, 3, 100, 1, 50)
	st := store.NewMemory()
	pub := &recorder{}
	res, err := New(unproven{}, WithStore(st), WithPublisher(pub)).Run(context.Background(), in, formulation.DefaultFeatures())
	require.NoError(t, err)
	assert.Equal(t, lp.Feasible, res.Status)
	assert.InDelta(t, 3, res.Objective, 1e-6)
	require.Len(t, res.Routes, 1)

	run, err := st.GetRun(context.Background(), res.RunID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusFeasible, run.Status)
	require.NotNil(t, run.Objective)
	assert.Len(t, run.Routes, 1)
	assert.Equal(t, []string{EventStarted, EventSolved}, pub.types())
	assert.Equal(t, store.StatusFeasible, pub.events[1].Data["status"])
}

func TestSolverFailure(t *testing.T) {
	in := lineInstance(t, 10, 1, 2, 3, 100, 1, 50)
	st := store.NewMemory()
	pub := &recorder{}
	_, err := New(failing{}, WithStore(st), WithPublisher(pub)).Run(context.Background(), in, formulation.DefaultFeatures())
	require.ErrorIs(t, err, lp.ErrSolver)
	assert.Equal(t, []string{EventStarted, EventFailed}, pub.types())

	runs, _, err := st.ListRuns(context.Background(), "", 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, store.StatusFailed, runs[0].Status)
	assert.NotEmpty(t, runs[0].Error)
}

func TestInvalidAssignmentIsRejected(t *testing.T) {
	in := lineInstance(t, 10, 1, 2, 3, 100, 1, 50)
	_, err := New(bogus{}).Run(context.Background(), in, formulation.DefaultFeatures())
	require.ErrorIs(t, err, lp.ErrSolver)
	assert.Contains(t, err.Error(), "violates")
}

func TestCancelledContext(t *testing.T) {
	in := lineInstance(t, 10, 1, 2, 3, 100, 1, 50)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(bnb.New()).Run(ctx, in, formulation.DefaultFeatures())
	require.True(t, errors.Is(err, context.Canceled), "err = %v", err)
}

func TestBadFeaturesFail(t *testing.T) {
	in := lineInstance(t, 10, 1, 2, 3, 100, 1, 50)
	feats := formulation.DefaultFeatures()
	feats.Tour = formulation.TourMode(9)
	_, err := New(bnb.New()).Run(context.Background(), in, feats)
	require.Error(t, err)
}

func TestStartRecordsBeforeSolving(t *testing.T) {
	in := lineInstance(t, 10, 1, 2, 3, 100, 1, 50)
	st := store.NewMemory()
	done := New(bnb.New(), WithStore(st)).Start(context.Background(), "run-1", in, formulation.DefaultFeatures())
	_, err := st.GetRun(context.Background(), "run-1")
	require.NoError(t, err, "run must be stored when Start returns")

	out := <-done
	require.NoError(t, out.Err)
	assert.Equal(t, lp.Optimal, out.Result.Status)
	run, err := st.GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, store.StatusOptimal, run.Status)
}
