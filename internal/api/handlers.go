package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"evdarp/internal/formulation"
	"evdarp/internal/instance"
	"evdarp/internal/lp"
	"evdarp/internal/network"
	"evdarp/internal/planner"
	"evdarp/internal/routes"
	"evdarp/internal/store"
)

// SolveRequest is the body of POST /v1/solve.
type SolveRequest struct {
	Instance *instance.File `json:"instance"`
	// Features overrides the configured toggles field by field.
	Features *formulation.Features `json:"features,omitempty"`
	// Async answers 202 with the run id and solves in the background.
	Async bool `json:"async,omitempty"`
}

type SolveResponse struct {
	RunID      string         `json:"runId"`
	Status     string         `json:"status"`
	Objective  *float64       `json:"objective,omitempty"`
	Routes     []routes.Route `json:"routes"`
	Vars       int            `json:"vars"`
	Rows       int            `json:"rows"`
	DurationMs int64          `json:"durationMs"`
}

func solveResponse(res *planner.Result) SolveResponse {
	out := SolveResponse{RunID: res.RunID, Status: res.Status.String(), Routes: res.Routes, DurationMs: res.Duration.Milliseconds()}
	if out.Routes == nil {
		out.Routes = []routes.Route{}
	}
	if res.Formulation != nil {
		out.Vars, out.Rows = res.Formulation.Model.NumVars(), res.Formulation.Model.NumRows()
	}
	if res.Status.HasValues() {
		obj := res.Objective
		out.Objective = &obj
	}
	return out
}

// SolveHandler handles POST /v1/solve
func (s *Server) SolveHandler(w http.ResponseWriter, r *http.Request) {
	if !s.Limiter.Allow() {
		w.Header().Set("Retry-After", "1")
		writeProblem(w, http.StatusTooManyRequests, "Too Many Requests", "solve rate limit exceeded", r.URL.Path)
		return
	}
	feats := s.Config.Features
	req := SolveRequest{Features: &feats}
	if err := decodeJSON(w, r, &req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return
	}
	if err := validateSolveRequest(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid instance", err.Error(), r.URL.Path)
		return
	}
	in, err := req.Instance.Instance()
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid instance", err.Error(), r.URL.Path)
		return
	}
	if req.Features != nil {
		feats = *req.Features
	}

	runID := uuid.New().String()
	if req.Async {
		s.wg.Add(1)
		done := s.Planner.Start(context.WithoutCancel(r.Context()), runID, in, feats)
		go func() {
			defer s.wg.Done()
			// outcome is persisted and published by the planner
			<-done
		}()
		w.Header().Set("Location", "/v1/runs/"+runID)
		writeJSON(w, http.StatusAccepted, map[string]string{"runId": runID, "status": store.StatusRunning})
		return
	}
	res, err := s.Planner.RunAs(r.Context(), runID, in, feats)
	if err != nil {
		status, title := solveStatus(err)
		writeProblem(w, status, title, err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, solveResponse(res))
}

func solveStatus(err error) (int, string) {
	switch {
	case errors.Is(err, network.ErrCoordinates), errors.Is(err, instance.ErrInvalid):
		return http.StatusBadRequest, "Invalid instance"
	case errors.Is(err, lp.ErrSolver):
		return http.StatusBadGateway, "Solver failed"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "Solve interrupted"
	}
	return http.StatusInternalServerError, "Solve failed"
}

// RunsHandler handles GET /v1/runs
func (s *Server) RunsHandler(w http.ResponseWriter, r *http.Request) {
	cursor := r.URL.Query().Get("cursor")
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeProblem(w, http.StatusBadRequest, "Invalid limit", v, r.URL.Path)
			return
		}
		limit = n
	}
	items, next, err := s.Store.ListRuns(r.Context(), cursor, limit)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "List runs failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "nextCursor": next})
}

// run loads the run named in the path, writing the problem response itself
// when it cannot.
func (s *Server) run(w http.ResponseWriter, r *http.Request) (store.Run, bool) {
	id := r.PathValue("id")
	run, err := s.Store.GetRun(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeProblem(w, http.StatusNotFound, "Run not found", id, r.URL.Path)
		return store.Run{}, false
	}
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Get run failed", err.Error(), r.URL.Path)
		return store.Run{}, false
	}
	return run, true
}

// RunHandler handles GET /v1/runs/{id}
func (s *Server) RunHandler(w http.ResponseWriter, r *http.Request) {
	if run, ok := s.run(w, r); ok {
		writeJSON(w, http.StatusOK, run)
	}
}

// DeleteRunHandler handles DELETE /v1/runs/{id}
func (s *Server) DeleteRunHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	err := s.Store.DeleteRun(r.Context(), id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeProblem(w, http.StatusNotFound, "Run not found", id, r.URL.Path)
	case err != nil:
		writeProblem(w, http.StatusInternalServerError, "Delete run failed", err.Error(), r.URL.Path)
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

// RunLPHandler handles GET /v1/runs/{id}/lp
func (s *Server) RunLPHandler(w http.ResponseWriter, r *http.Request) {
	run, ok := s.run(w, r)
	if !ok {
		return
	}
	if run.LP == "" {
		writeProblem(w, http.StatusNotFound, "LP not available", "the run failed before the model was built", r.URL.Path)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", run.ID+".lp"))
	_, _ = w.Write([]byte(run.LP))
}

// RunReportHandler handles GET /v1/runs/{id}/report
func (s *Server) RunReportHandler(w http.ResponseWriter, r *http.Request) {
	run, ok := s.run(w, r)
	if !ok {
		return
	}
	if !store.HasRoutes(run.Status) {
		writeProblem(w, http.StatusConflict, "No routes", "run status is "+run.Status, r.URL.Path)
		return
	}
	w.Header().Set("Content-Type", "text/tab-separated-values; charset=utf-8")
	if err := routes.WriteReport(w, run.Routes); err != nil {
		writeProblem(w, http.StatusInternalServerError, "Report failed", err.Error(), r.URL.Path)
	}
}

// terminal reports whether evt ends a run.
func terminal(evt planner.Event) bool {
	switch evt.Type {
	case planner.EventSolved, planner.EventInfeasible, planner.EventFailed:
		return true
	}
	return false
}

// snapshot is the first event of every stream: the stored state of the run.
func snapshot(run store.Run) planner.Event {
	return planner.Event{Type: "run.snapshot", Data: map[string]any{"runId": run.ID, "status": run.Status}}
}

// heartbeat is how often idle SSE streams are pinged.
var heartbeat = 15 * time.Second

// RunEventsHandler handles GET /v1/runs/{id}/events as Server-Sent Events.
// The stream ends after the terminal event of the run.
func (s *Server) RunEventsHandler(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeProblem(w, http.StatusInternalServerError, "Streaming unsupported", "", r.URL.Path)
		return
	}
	id := r.PathValue("id")
	// subscribe before the snapshot so no transition is missed in between
	ch := s.Broker.Subscribe(id)
	defer s.Broker.Unsubscribe(id, ch)
	run, ok := s.run(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	send := func(evt planner.Event) {
		b, _ := json.Marshal(evt.Data)
		fmt.Fprintf(w, "event: %s\n", evt.Type)
		fmt.Fprintf(w, "data: %s\n\n", b)
		flusher.Flush()
	}
	send(snapshot(run))
	if run.Status != store.StatusRunning {
		return
	}
	tick := time.NewTicker(heartbeat)
	defer tick.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case evt, ok := <-ch:
			if !ok {
				return
			}
			send(evt)
			if terminal(evt) {
				return
			}
		case t := <-tick.C:
			send(planner.Event{Type: "heartbeat", Data: map[string]any{"runId": id, "ts": t.UTC().Format(time.RFC3339)}})
		}
	}
}

// HealthHandler handles GET /healthz
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ReadyHandler checks the database and Redis when they are configured.
func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	type pinger interface{ Ping(ctx context.Context) error }
	deps := map[string]any{"store": s.Store, "broker": s.Broker}
	for name, dep := range deps {
		p, ok := dep.(pinger)
		if !ok {
			continue
		}
		ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
		err := p.Ping(ctx)
		cancel()
		if err != nil {
			writeProblem(w, http.StatusServiceUnavailable, "Not Ready", strings.Join([]string{name, err.Error()}, ": "), r.URL.Path)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready", "solver": s.Planner.SolverName()})
}
