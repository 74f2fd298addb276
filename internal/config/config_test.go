package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"evdarp/internal/formulation"
	"evdarp/internal/lp"
	"evdarp/internal/solver/glpk"
)

func TestDefaults(t *testing.T) {
	t.Setenv("EVDARP_CONFIG", "")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Solver != DefaultSolver() || cfg.LPExport != "Cordeau.lp" || cfg.Instance != InstanceDefault {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.Features != formulation.DefaultFeatures() {
		t.Fatalf("features %+v", cfg.Features)
	}
}

func TestDefaultSolverSolves(t *testing.T) {
	if !glpk.Available && DefaultSolver() != SolverBnB {
		t.Fatalf("default solver %q without glpk", DefaultSolver())
	}
	m := lp.NewModel("one")
	x := m.AddBinary("x")
	m.Minimize(new(lp.Expr).Add(-1, x))
	sol, err := Default().NewSolver().Solve(context.Background(), m)
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if sol.Status != lp.Optimal || sol.MustValue(x) != 1 {
		t.Fatalf("status %v x %v", sol.Status, sol.Values())
	}
}

func TestFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "evdarp.yaml")
	body := "instance: random\nrequests: 3\nsolver: bnb\nfeatures:\n  fuel: false\n  tour: closed\n  objective: distance\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("EVDARP_CONFIG", path)
	t.Setenv("EVDARP_REQUESTS", "2")
	t.Setenv("EVDARP_BIGM", "horizon")
	t.Setenv("EVDARP_LP_EXPORT", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Instance != InstanceRandom || cfg.Solver != SolverBnB {
		t.Fatalf("file values lost: %+v", cfg)
	}
	if cfg.Requests != 2 {
		t.Fatalf("env did not override file: requests=%d", cfg.Requests)
	}
	f := cfg.Features
	if f.Fuel || f.Tour != formulation.TourClosed || f.Objective != formulation.ObjectiveDistance || f.BigM != formulation.BigMHorizon {
		t.Fatalf("features %+v", f)
	}
	if !f.DummyStations {
		t.Fatal("unset feature lost its default")
	}
	if cfg.LPExport != "" {
		t.Fatalf("empty EVDARP_LP_EXPORT should disable export, got %q", cfg.LPExport)
	}

	in, err := cfg.LoadInstance()
	if err != nil {
		t.Fatalf("LoadInstance: %v", err)
	}
	if in.Requests() != 2 {
		t.Fatalf("random instance has %d requests", in.Requests())
	}
}

func TestBadValues(t *testing.T) {
	for key, val := range map[string]string{
		"EVDARP_SEED":   "x",
		"EVDARP_FUEL":   "maybe",
		"EVDARP_TOUR":   "circular",
		"EVDARP_SOLVER": "cplex",
		"EVDARP_RATE":   "0",
	} {
		t.Run(key, func(t *testing.T) {
			t.Setenv("EVDARP_CONFIG", "")
			t.Setenv(key, val)
			if _, err := Load(); err == nil {
				t.Fatalf("%s=%s accepted", key, val)
			}
		})
	}
}

func TestWebhookEnv(t *testing.T) {
	t.Setenv("EVDARP_CONFIG", "")
	t.Setenv("EVDARP_WEBHOOK_URL", "http://hooks.local/runs")
	t.Setenv("EVDARP_WEBHOOK_SECRET", "s3cr3t")
	t.Setenv("EVDARP_WEBHOOK_MAX_ATTEMPTS", "3")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.WebhookURL != "http://hooks.local/runs" || cfg.WebhookSecret != "s3cr3t" || cfg.WebhookMaxAttempts != 3 {
		t.Fatalf("webhook config %+v", cfg)
	}
}
