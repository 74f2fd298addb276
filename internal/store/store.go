package store

import (
	"context"
	"errors"
	"time"

	"evdarp/internal/formulation"
	"evdarp/internal/instance"
	"evdarp/internal/routes"
)

// Run states.
const (
	StatusRunning    = "running"
	StatusOptimal    = "optimal"
	StatusFeasible   = "feasible"
	StatusInfeasible = "infeasible"
	StatusFailed     = "failed"
)

// HasRoutes reports whether a run in state status carries routes.
func HasRoutes(status string) bool { return status == StatusOptimal || status == StatusFeasible }

// Run is one pass of the pipeline over an instance.
type Run struct {
	ID        string               `json:"id"`
	Name      string               `json:"name"`
	Status    string               `json:"status"`
	Solver    string               `json:"solver"`
	Objective *float64             `json:"objective,omitempty"`
	Features  formulation.Features `json:"features"`
	Instance  *instance.File       `json:"instance,omitempty"`
	Routes    []routes.Route       `json:"routes,omitempty"`
	Vars      int                  `json:"vars"`
	Rows      int                  `json:"rows"`
	Error     string               `json:"error,omitempty"`
	// LP holds the exported model text; it is served separately.
	LP         string    `json:"-"`
	CreatedAt  time.Time `json:"createdAt"`
	DurationMs int64     `json:"durationMs"`
}

// Store is the persistence interface for runs.
type Store interface {
	CreateRun(ctx context.Context, run Run) (Run, error)
	UpdateRun(ctx context.Context, run Run) error
	GetRun(ctx context.Context, id string) (Run, error)
	// ListRuns pages through runs newest first; cursor is the last id seen.
	ListRuns(ctx context.Context, cursor string, limit int) ([]Run, string, error)
	DeleteRun(ctx context.Context, id string) error
}

var ErrNotFound = errors.New("not found")

const defaultLimit = 100
