// Package planner runs the pipeline from an instance to routes: network
// matrices, formulation, LP export, one blocking solve and route
// reconstruction. Persistence, metrics and event publication are optional.
package planner

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"evdarp/internal/formulation"
	"evdarp/internal/instance"
	"evdarp/internal/lp"
	"evdarp/internal/metrics"
	"evdarp/internal/network"
	"evdarp/internal/routes"
	"evdarp/internal/store"
)

// Run lifecycle event types.
const (
	EventStarted    = "run.started"
	EventSolved     = "run.solved"
	EventInfeasible = "run.infeasible"
	EventFailed     = "run.failed"
)

type Event struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

// Publisher receives run lifecycle events keyed by run id.
type Publisher interface {
	Publish(runID string, evt Event)
}

// Publishers fans every event out to each member in order.
type Publishers []Publisher

func (ps Publishers) Publish(runID string, evt Event) {
	for _, p := range ps {
		p.Publish(runID, evt)
	}
}

// Result is the outcome of one run. Routes is empty unless Status is
// lp.Optimal or lp.Feasible.
type Result struct {
	RunID       string
	Status      lp.Status
	Objective   float64
	Routes      []routes.Route
	Formulation *formulation.Formulation
	Solution    *lp.Solution
	Duration    time.Duration
}

// checkTol bounds how far a returned assignment may violate the model
// before it is rejected.
const checkTol = 1e-5

type Planner struct {
	solver  lp.Solver
	name    string
	export  string
	store   store.Store
	pub     Publisher
	metrics bool
}

type Option func(*Planner)

// WithExport writes the model in LP format to path before solving.
func WithExport(path string) Option { return func(p *Planner) { p.export = path } }

// WithStore persists every run.
func WithStore(s store.Store) Option { return func(p *Planner) { p.store = s } }

// WithPublisher emits run lifecycle events.
func WithPublisher(pub Publisher) Option { return func(p *Planner) { p.pub = pub } }

// WithMetrics records model size and solve outcomes in the metrics registry.
func WithMetrics() Option { return func(p *Planner) { p.metrics = true } }

func New(s lp.Solver, opts ...Option) *Planner {
	p := &Planner{solver: s, name: fmt.Sprintf("%T", s)}
	if n, ok := s.(interface{ Name() string }); ok {
		p.name = n.Name()
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// SolverName identifies the configured solver in logs, metrics and runs.
func (p *Planner) SolverName() string { return p.name }

// Run solves in under feats. An infeasible model is not an error: the
// result carries lp.Infeasible and no routes.
func (p *Planner) Run(ctx context.Context, in *instance.Instance, feats formulation.Features) (*Result, error) {
	return p.RunAs(ctx, uuid.New().String(), in, feats)
}

// RunAs is Run under a caller-chosen run id, for callers that hand the id
// out before the run finishes.
func (p *Planner) RunAs(ctx context.Context, runID string, in *instance.Instance, feats formulation.Features) (*Result, error) {
	st := p.begin(ctx, runID, in, feats)
	return p.finish(ctx, st, in, feats)
}

// Outcome is what Start delivers once the run ends.
type Outcome struct {
	Result *Result
	Err    error
}

// Start records and announces the run, then solves in the background. The
// returned channel receives exactly one Outcome.
func (p *Planner) Start(ctx context.Context, runID string, in *instance.Instance, feats formulation.Features) <-chan Outcome {
	st := p.begin(ctx, runID, in, feats)
	done := make(chan Outcome, 1)
	go func() {
		res, err := p.finish(ctx, st, in, feats)
		done <- Outcome{Result: res, Err: err}
	}()
	return done
}

type state struct {
	start time.Time
	res   *Result
	rec   store.Run
}

func (p *Planner) begin(ctx context.Context, runID string, in *instance.Instance, feats formulation.Features) *state {
	st := &state{
		start: time.Now(),
		res:   &Result{RunID: runID},
		rec: store.Run{
			ID:       runID,
			Name:     in.Name,
			Status:   store.StatusRunning,
			Solver:   p.name,
			Features: feats,
			Instance: instance.ToFile(in),
		},
	}
	p.persist(ctx, st.rec, true)
	log.Printf("run=%s op=start instance=%s nodes=%d vehicles=%d solver=%s features=%s",
		runID, in.Name, in.Len(), in.NumVehicles(), p.name, feats)
	p.publish(runID, EventStarted, map[string]any{"instance": in.Name, "solver": p.name})
	return st
}

func (p *Planner) finish(ctx context.Context, st *state, in *instance.Instance, feats formulation.Features) (*Result, error) {
	res, rec := st.res, &st.rec
	err := p.run(ctx, in, feats, res, rec)
	res.Duration = time.Since(st.start)
	rec.DurationMs = res.Duration.Milliseconds()

	switch {
	case err != nil:
		rec.Status, rec.Error = store.StatusFailed, err.Error()
		p.publish(res.RunID, EventFailed, map[string]any{"error": err.Error()})
		p.count("error")
	case res.Status == lp.Infeasible:
		rec.Status = store.StatusInfeasible
		p.publish(res.RunID, EventInfeasible, nil)
		p.count("infeasible")
	default:
		rec.Status = store.StatusOptimal
		if res.Status == lp.Feasible {
			rec.Status = store.StatusFeasible
		}
		obj := res.Objective
		rec.Objective = &obj
		rec.Routes = res.Routes
		p.publish(res.RunID, EventSolved, map[string]any{"objective": res.Objective, "routes": len(res.Routes), "status": rec.Status})
		p.count(rec.Status)
	}
	p.persist(ctx, *rec, false)
	log.Printf("run=%s op=done status=%s dur=%dms", res.RunID, rec.Status, rec.DurationMs)
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (p *Planner) run(ctx context.Context, in *instance.Instance, feats formulation.Features, res *Result, rec *store.Run) error {
	mats, err := p.matrices(res.RunID, in)
	if err != nil {
		return err
	}
	f, err := p.formulate(res.RunID, in, mats, feats)
	if err != nil {
		return err
	}
	res.Formulation = f
	rec.Vars, rec.Rows = f.Model.NumVars(), f.Model.NumRows()

	if p.export != "" {
		if err := f.Model.ExportLP(p.export); err != nil {
			return fmt.Errorf("planner: export: %w", err)
		}
		log.Printf("run=%s op=export path=%s", res.RunID, p.export)
	}
	if p.store != nil {
		var buf bytes.Buffer
		if err := lp.WriteLP(&buf, f.Model); err != nil {
			return fmt.Errorf("planner: write lp: %w", err)
		}
		rec.LP = buf.String()
	}

	sol, err := p.solve(ctx, res.RunID, f.Model)
	if err != nil {
		return err
	}
	res.Solution, res.Status = sol, sol.Status
	if sol.Status == lp.Infeasible {
		return nil
	}
	res.Objective = sol.Objective
	res.Routes, err = p.reconstruct(res.RunID, f, sol)
	return err
}

func (p *Planner) matrices(runID string, in *instance.Instance) (_ *network.Matrices, err error) {
	defer p.timed(runID, "matrices")(&err)
	return network.Build(in)
}

func (p *Planner) formulate(runID string, in *instance.Instance, mats *network.Matrices, feats formulation.Features) (_ *formulation.Formulation, err error) {
	defer p.timed(runID, "formulation")(&err)
	f, err := formulation.Build(in, mats, feats)
	if err != nil {
		return nil, err
	}
	log.Printf("run=%s op=formulation vars=%d binaries=%d rows=%d", runID, f.Model.NumVars(), f.Model.NumBinaries(), f.Model.NumRows())
	if p.metrics {
		bin := f.Model.NumBinaries()
		metrics.ModelVariables.WithLabelValues("binary").Set(float64(bin))
		metrics.ModelVariables.WithLabelValues("continuous").Set(float64(f.Model.NumVars() - bin))
		for _, fc := range f.Families {
			metrics.FamilyRows.WithLabelValues(fc.Name).Set(float64(fc.Rows))
		}
	}
	return f, nil
}

func (p *Planner) solve(ctx context.Context, runID string, m *lp.Model) (_ *lp.Solution, err error) {
	defer p.timed(runID, "solve")(&err)
	sol, err := p.solver.Solve(ctx, m)
	if err != nil {
		return nil, err
	}
	switch sol.Status {
	case lp.Infeasible:
		log.Printf("run=%s op=solve status=infeasible", runID)
		return sol, nil
	case lp.Optimal, lp.Feasible:
	default:
		return nil, fmt.Errorf("%w: status %s", lp.ErrSolver, sol.Status)
	}
	if vs := m.Check(sol.Values(), checkTol); len(vs) > 0 {
		return nil, fmt.Errorf("%w: returned assignment violates %d rows or bounds, first %s", lp.ErrSolver, len(vs), vs[0])
	}
	log.Printf("run=%s op=solve status=%s objective=%g nodes=%d", runID, sol.Status, sol.Objective, sol.Nodes)
	return sol, nil
}

func (p *Planner) reconstruct(runID string, f *formulation.Formulation, sol *lp.Solution) (_ []routes.Route, err error) {
	defer p.timed(runID, "routes")(&err)
	return routes.Reconstruct(f, sol)
}

// timed logs the duration of one stage when the returned func is deferred.
func (p *Planner) timed(runID, op string) func(errp *error) {
	start := time.Now()
	return func(errp *error) {
		dur := time.Since(start)
		if p.metrics {
			metrics.StageDuration.WithLabelValues(op).Observe(float64(dur.Milliseconds()))
		}
		if errp != nil && *errp != nil {
			log.Printf("run=%s op=%s dur=%dms err=%v", runID, op, dur.Milliseconds(), *errp)
			return
		}
		log.Printf("run=%s op=%s dur=%dms", runID, op, dur.Milliseconds())
	}
}

func (p *Planner) publish(runID, typ string, data map[string]any) {
	if p.pub == nil {
		return
	}
	if data == nil {
		data = map[string]any{}
	}
	data["runId"] = runID
	p.pub.Publish(runID, Event{Type: typ, Data: data})
}

func (p *Planner) count(status string) {
	if p.metrics {
		metrics.Solves.WithLabelValues(p.name, status).Inc()
	}
}

// persist stores rec; failures are logged and do not fail the run.
func (p *Planner) persist(ctx context.Context, rec store.Run, create bool) {
	if p.store == nil {
		return
	}
	var err error
	if create {
		_, err = p.store.CreateRun(ctx, rec)
	} else {
		err = p.store.UpdateRun(context.WithoutCancel(ctx), rec)
	}
	if err != nil {
		log.Printf("run=%s op=persist err=%v", rec.ID, err)
	}
}
