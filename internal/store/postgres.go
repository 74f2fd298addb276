package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
)

type Postgres struct {
	db *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &Postgres{db: db}, nil
}

func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

func (p *Postgres) Close() error { return p.db.Close() }

var schema = []string{
	`CREATE TABLE IF NOT EXISTS runs (
		id UUID PRIMARY KEY,
		name TEXT NOT NULL,
		status TEXT NOT NULL,
		solver TEXT NOT NULL DEFAULT '',
		objective DOUBLE PRECISION,
		features JSONB NOT NULL,
		instance JSONB,
		routes JSONB,
		num_vars INTEGER NOT NULL DEFAULT 0,
		num_rows INTEGER NOT NULL DEFAULT 0,
		error TEXT NOT NULL DEFAULT '',
		lp TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL,
		duration_ms BIGINT NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs (created_at DESC, id)`,
}

// InitSchema creates the runs table when it is missing.
func (p *Postgres) InitSchema(ctx context.Context) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("init schema: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	for i, stmt := range schema {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: exec statement #%d: %w", i+1, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("init schema: commit tx: %w", err)
	}
	return nil
}

func (p *Postgres) CreateRun(ctx context.Context, run Run) (Run, error) {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	cols, err := encodeRun(run)
	if err != nil {
		return Run{}, err
	}
	_, err = p.db.ExecContext(ctx, `INSERT INTO runs (id, name, status, solver, objective, features, instance, routes, num_vars, num_rows, error, lp, created_at, duration_ms)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		run.ID, run.Name, run.Status, run.Solver, run.Objective, cols.features, cols.instance, cols.routes,
		run.Vars, run.Rows, run.Error, run.LP, run.CreatedAt, run.DurationMs)
	if err != nil {
		return Run{}, err
	}
	return run, nil
}

func (p *Postgres) UpdateRun(ctx context.Context, run Run) error {
	cols, err := encodeRun(run)
	if err != nil {
		return err
	}
	res, err := p.db.ExecContext(ctx, `UPDATE runs SET name=$2, status=$3, solver=$4, objective=$5, features=$6, instance=$7, routes=$8, num_vars=$9, num_rows=$10, error=$11, lp=$12, duration_ms=$13 WHERE id=$1`,
		run.ID, run.Name, run.Status, run.Solver, run.Objective, cols.features, cols.instance, cols.routes,
		run.Vars, run.Rows, run.Error, run.LP, run.DurationMs)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

const runColumns = `id::text, name, status, solver, objective, features, instance, routes, num_vars, num_rows, error, lp, created_at, duration_ms`

func (p *Postgres) GetRun(ctx context.Context, id string) (Run, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Run{}, ErrNotFound
	}
	row := p.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id=$1`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrNotFound
	}
	return r, err
}

func (p *Postgres) ListRuns(ctx context.Context, cursor string, limit int) ([]Run, string, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	var (
		rows *sql.Rows
		err  error
	)
	// summaries only; instance, routes and lp stay behind GetRun
	const cols = `id::text, name, status, solver, objective, features, NULL::jsonb, NULL::jsonb, num_vars, num_rows, error, '', created_at, duration_ms`
	if cursor == "" {
		rows, err = p.db.QueryContext(ctx, `SELECT `+cols+` FROM runs ORDER BY created_at DESC, id DESC LIMIT $1`, limit+1)
	} else {
		if _, perr := uuid.Parse(cursor); perr != nil {
			return nil, "", fmt.Errorf("store: bad cursor %q", cursor)
		}
		rows, err = p.db.QueryContext(ctx, `SELECT `+cols+` FROM runs
			WHERE (created_at, id) < (SELECT created_at, id FROM runs WHERE id=$1)
			ORDER BY created_at DESC, id DESC LIMIT $2`, cursor, limit+1)
	}
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()
	out := []Run{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, "", err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}
	next := ""
	if len(out) > limit {
		out = out[:limit]
		next = out[limit-1].ID
	}
	return out, next, nil
}

func (p *Postgres) DeleteRun(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}
	res, err := p.db.ExecContext(ctx, `DELETE FROM runs WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

type runJSON struct {
	features []byte
	instance any
	routes   any
}

func encodeRun(r Run) (runJSON, error) {
	var out runJSON
	var err error
	if out.features, err = json.Marshal(r.Features); err != nil {
		return out, fmt.Errorf("store: encode features: %w", err)
	}
	if out.instance, err = nullJSON(r.Instance, r.Instance == nil); err != nil {
		return out, fmt.Errorf("store: encode instance: %w", err)
	}
	if out.routes, err = nullJSON(r.Routes, r.Routes == nil); err != nil {
		return out, fmt.Errorf("store: encode routes: %w", err)
	}
	return out, nil
}

// nullJSON marshals v, or returns a SQL NULL when isNil.
func nullJSON(v any, isNil bool) (any, error) {
	if isNil {
		return nil, nil
	}
	return json.Marshal(v)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (Run, error) {
	var (
		r                   Run
		obj                 sql.NullFloat64
		features, inst, rts []byte
	)
	if err := s.Scan(&r.ID, &r.Name, &r.Status, &r.Solver, &obj, &features, &inst, &rts,
		&r.Vars, &r.Rows, &r.Error, &r.LP, &r.CreatedAt, &r.DurationMs); err != nil {
		return Run{}, err
	}
	if obj.Valid {
		v := obj.Float64
		r.Objective = &v
	}
	if err := json.Unmarshal(features, &r.Features); err != nil {
		return Run{}, fmt.Errorf("store: decode features: %w", err)
	}
	if len(inst) > 0 {
		if err := json.Unmarshal(inst, &r.Instance); err != nil {
			return Run{}, fmt.Errorf("store: decode instance: %w", err)
		}
	}
	if len(rts) > 0 {
		if err := json.Unmarshal(rts, &r.Routes); err != nil {
			return Run{}, fmt.Errorf("store: decode routes: %w", err)
		}
	}
	return r, nil
}
