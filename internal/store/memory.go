package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"evdarp/internal/routes"
)

// Memory is a simple in-memory store used when no DATABASE_URL is set.
type Memory struct {
	mu    sync.Mutex
	runs  map[string]Run // id -> run
	order []string       // ids, oldest first
}

func NewMemory() *Memory {
	return &Memory{runs: map[string]Run{}}
}

func (m *Memory) CreateRun(ctx context.Context, run Run) (Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if _, ok := m.runs[run.ID]; ok {
		return Run{}, fmt.Errorf("store: run %s already exists", run.ID)
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	m.runs[run.ID] = clone(run)
	m.order = append(m.order, run.ID)
	return run, nil
}

func (m *Memory) UpdateRun(ctx context.Context, run Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.runs[run.ID]
	if !ok {
		return ErrNotFound
	}
	run.CreatedAt = old.CreatedAt
	m.runs[run.ID] = clone(run)
	return nil
}

func (m *Memory) GetRun(ctx context.Context, id string) (Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[id]
	if !ok {
		return Run{}, ErrNotFound
	}
	return clone(r), nil
}

func (m *Memory) ListRuns(ctx context.Context, cursor string, limit int) ([]Run, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit <= 0 {
		limit = defaultLimit
	}
	start := len(m.order) - 1
	if cursor != "" {
		start = -1
		for i := len(m.order) - 1; i >= 0; i-- {
			if m.order[i] == cursor {
				start = i - 1
				break
			}
		}
	}
	out := []Run{}
	next := ""
	for i := start; i >= 0; i-- {
		if len(out) == limit {
			next = out[len(out)-1].ID
			break
		}
		r := clone(m.runs[m.order[i]])
		r.Instance, r.Routes = nil, nil
		out = append(out, r)
	}
	return out, next, nil
}

func (m *Memory) DeleteRun(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.runs[id]; !ok {
		return ErrNotFound
	}
	delete(m.runs, id)
	for i, v := range m.order {
		if v == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

// clone copies the slices a caller could mutate.
func clone(r Run) Run {
	c := r
	if r.Routes != nil {
		c.Routes = append([]routes.Route(nil), r.Routes...)
	}
	if r.Objective != nil {
		v := *r.Objective
		c.Objective = &v
	}
	return c
}
