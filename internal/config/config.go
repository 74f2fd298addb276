// Package config reads the service and CLI settings. Values come from the
// defaults, then the optional YAML file named by EVDARP_CONFIG, then the
// environment. A .env file is loaded by the entry points before Load runs.
package config

import (
	"fmt"
	"log"
	"math/rand"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"evdarp/internal/formulation"
	"evdarp/internal/instance"
	"evdarp/internal/lp"
	"evdarp/internal/solver/bnb"
	"evdarp/internal/solver/glpk"
)

// Instance sources besides a file path.
const (
	InstanceDefault = "default"
	InstanceRandom  = "random"
)

// Solver names.
const (
	SolverGLPK = "glpk"
	SolverBnB  = "bnb"
)

type Config struct {
	// Instance is "default", "random" or a path to a YAML/JSON instance file.
	Instance string `yaml:"instance"`
	Seed     int64  `yaml:"seed"`
	Requests int    `yaml:"requests"`
	Stations int    `yaml:"stations"`

	Solver   string `yaml:"solver"`
	MaxNodes int    `yaml:"maxNodes"`
	// LPExport is where the CLI writes the model; empty disables export.
	LPExport string               `yaml:"lpExport"`
	Features formulation.Features `yaml:"features"`

	DatabaseURL string  `yaml:"databaseUrl"`
	RedisURL    string  `yaml:"redisUrl"`
	Port        string  `yaml:"port"`
	Rate        float64 `yaml:"rate"`
	Burst       int     `yaml:"burst"`

	// WebhookURL receives the outcome of every run when set.
	WebhookURL         string `yaml:"webhookUrl"`
	WebhookSecret      string `yaml:"webhookSecret"`
	WebhookMaxAttempts int    `yaml:"webhookMaxAttempts"`
}

// DefaultSolver is glpk when the backend is compiled in and bnb otherwise.
func DefaultSolver() string {
	if glpk.Available {
		return SolverGLPK
	}
	return SolverBnB
}

func Default() Config {
	return Config{
		Instance: InstanceDefault,
		Seed:     1,
		Requests: 4,
		Stations: 2,
		Solver:   DefaultSolver(),
		MaxNodes: 200000,
		LPExport: "Cordeau.lp",
		Features: formulation.DefaultFeatures(),
		Port:     "8080",
		Rate:     2,
		Burst:    4,

		WebhookMaxAttempts: 10,
	}
}

// Load builds the configuration from the YAML file and the environment.
func Load() (Config, error) {
	cfg := Default()
	if path := os.Getenv("EVDARP_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: %s: %w", path, err)
		}
	}
	if err := cfg.fromEnv(); err != nil {
		return Config{}, err
	}
	return cfg, cfg.validate()
}

func (c *Config) fromEnv() error {
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	str("EVDARP_INSTANCE", &c.Instance)
	str("EVDARP_SOLVER", &c.Solver)
	str("DATABASE_URL", &c.DatabaseURL)
	str("REDIS_URL", &c.RedisURL)
	str("PORT", &c.Port)
	str("EVDARP_WEBHOOK_URL", &c.WebhookURL)
	str("EVDARP_WEBHOOK_SECRET", &c.WebhookSecret)
	// an explicitly empty EVDARP_LP_EXPORT turns export off
	if v, ok := os.LookupEnv("EVDARP_LP_EXPORT"); ok {
		c.LPExport = strings.TrimSpace(v)
	}

	var errs []string
	parse := func(key string, fn func(string) error) {
		v := strings.TrimSpace(os.Getenv(key))
		if v == "" {
			return
		}
		if err := fn(v); err != nil {
			errs = append(errs, fmt.Sprintf("%s=%q: %v", key, v, err))
		}
	}
	parse("EVDARP_SEED", func(v string) (err error) { c.Seed, err = strconv.ParseInt(v, 10, 64); return })
	parse("EVDARP_REQUESTS", func(v string) (err error) { c.Requests, err = strconv.Atoi(v); return })
	parse("EVDARP_STATIONS", func(v string) (err error) { c.Stations, err = strconv.Atoi(v); return })
	parse("EVDARP_MAX_NODES", func(v string) (err error) { c.MaxNodes, err = strconv.Atoi(v); return })
	parse("EVDARP_RATE", func(v string) (err error) { c.Rate, err = strconv.ParseFloat(v, 64); return })
	parse("EVDARP_BURST", func(v string) (err error) { c.Burst, err = strconv.Atoi(v); return })
	parse("EVDARP_WEBHOOK_MAX_ATTEMPTS", func(v string) (err error) { c.WebhookMaxAttempts, err = strconv.Atoi(v); return })
	parse("EVDARP_FUEL", func(v string) (err error) { c.Features.Fuel, err = strconv.ParseBool(v); return })
	parse("EVDARP_DUMMIES", func(v string) (err error) { c.Features.DummyStations, err = strconv.ParseBool(v); return })
	parse("EVDARP_OBJECTIVE", func(v string) (err error) { c.Features.Objective, err = formulation.ParseObjective(v); return })
	parse("EVDARP_BIGM", func(v string) (err error) { c.Features.BigM, err = formulation.ParseBigM(v); return })
	parse("EVDARP_TOUR", func(v string) (err error) { c.Features.Tour, err = formulation.ParseTour(v); return })
	parse("EVDARP_RANGE", func(v string) (err error) { c.Features.Range, err = formulation.ParseRange(v); return })
	if len(errs) > 0 {
		return fmt.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c Config) validate() error {
	switch {
	case c.Solver != SolverGLPK && c.Solver != SolverBnB:
		return fmt.Errorf("config: unknown solver %q", c.Solver)
	case c.Requests < 1:
		return fmt.Errorf("config: requests %d, want at least 1", c.Requests)
	case c.Stations < 0:
		return fmt.Errorf("config: stations %d", c.Stations)
	case c.MaxNodes < 1:
		return fmt.Errorf("config: max nodes %d", c.MaxNodes)
	case c.Rate <= 0 || c.Burst < 1:
		return fmt.Errorf("config: rate %v burst %d", c.Rate, c.Burst)
	}
	return nil
}

// LoadInstance resolves the Instance setting.
func (c Config) LoadInstance() (*instance.Instance, error) {
	switch c.Instance {
	case InstanceDefault:
		return instance.Default(), nil
	case InstanceRandom:
		return instance.Random(rand.New(rand.NewSource(c.Seed)), c.Requests, c.Stations), nil
	default:
		return instance.Load(c.Instance)
	}
}

// NewSolver builds the configured backend.
func (c Config) NewSolver() lp.Solver {
	if c.Solver == SolverBnB {
		return bnb.New(bnb.WithMaxNodes(c.MaxNodes))
	}
	if !glpk.Available {
		log.Printf("solver=glpk requested but not compiled in; solves will fail")
	}
	return glpk.New()
}
