// Package config loads service settings from an optional YAML file and lets the
// environment override individual keys.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"

	"toptw/internal/opt"
)

var ErrInvalid = errors.New("invalid configuration")

type Config struct {
	Server   Server   `yaml:"server"`
	GRASP    GRASP    `yaml:"grasp"`
	Storage  Storage  `yaml:"storage"`
	Webhooks Webhooks `yaml:"webhooks"`
}

type Server struct {
	Addr         string        `yaml:"addr"`
	RateRPS      float64       `yaml:"rateRps"`
	RateBurst    int           `yaml:"rateBurst"`
	SolveTimeout time.Duration `yaml:"solveTimeout"`
	// MaxNodes bounds the size of a submitted problem.
	MaxNodes int `yaml:"maxNodes"`
}

type GRASP struct {
	Iterations int           `yaml:"iterations"`
	RCLSize    int           `yaml:"rclSize"`
	Policy     string        `yaml:"policy"`
	Alpha      float64       `yaml:"alpha"`
	Seed       int64         `yaml:"seed"`
	TimeBudget time.Duration `yaml:"timeBudget"`
}

type Storage struct {
	DatabaseURL string `yaml:"databaseURL"`
	RedisURL    string `yaml:"redisURL"`
	Migrate     bool   `yaml:"migrate"`
	Migrations  string `yaml:"migrations"`
}

type Webhooks struct {
	MaxAttempts int           `yaml:"maxAttempts"`
	Interval    time.Duration `yaml:"interval"`
}

// Default returns the settings used when neither file nor environment set a key.
func Default() Config {
	return Config{
		Server:   Server{Addr: ":8080", RateRPS: 5, RateBurst: 10, SolveTimeout: 30 * time.Second, MaxNodes: 2000},
		GRASP:    GRASP{Iterations: 100, RCLSize: 3, Policy: opt.PolicyFuzzyAlphaCut.String(), Alpha: 0.8, Seed: 1},
		Storage:  Storage{Migrate: true, Migrations: "db/migrations"},
		Webhooks: Webhooks{MaxAttempts: 8, Interval: 2 * time.Second},
	}
}

// Load reads path (skipped when empty), applies environment overrides and validates.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("load config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("load config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

type lookupFunc func(string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	var errs []error
	parse := func(key string, set func(string) error) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			if err := set(strings.TrimSpace(v)); err != nil {
				errs = append(errs, fmt.Errorf("%s=%q: %w", key, v, ErrInvalid))
			}
		}
	}
	intVar := func(dst *int) func(string) error {
		return func(s string) error {
			n, err := strconv.Atoi(s)
			*dst = n
			return err
		}
	}
	floatVar := func(dst *float64) func(string) error {
		return func(s string) error {
			f, err := strconv.ParseFloat(s, 64)
			*dst = f
			return err
		}
	}
	durVar := func(dst *time.Duration) func(string) error {
		return func(s string) error {
			d, err := time.ParseDuration(s)
			*dst = d
			return err
		}
	}

	if v, ok := lookup("PORT"); ok && strings.TrimSpace(v) != "" {
		c.Server.Addr = ":" + strings.TrimPrefix(strings.TrimSpace(v), ":")
	}
	parse("RATE_RPS", floatVar(&c.Server.RateRPS))
	parse("RATE_BURST", intVar(&c.Server.RateBurst))
	parse("SOLVE_TIMEOUT", durVar(&c.Server.SolveTimeout))
	parse("MAX_NODES", intVar(&c.Server.MaxNodes))

	parse("GRASP_ITERATIONS", intVar(&c.GRASP.Iterations))
	parse("GRASP_RCL_SIZE", intVar(&c.GRASP.RCLSize))
	str("GRASP_POLICY", &c.GRASP.Policy)
	parse("GRASP_ALPHA", floatVar(&c.GRASP.Alpha))
	parse("GRASP_SEED", func(s string) error {
		n, err := strconv.ParseInt(s, 10, 64)
		c.GRASP.Seed = n
		return err
	})
	parse("GRASP_TIME_BUDGET", durVar(&c.GRASP.TimeBudget))

	str("DATABASE_URL", &c.Storage.DatabaseURL)
	str("REDIS_URL", &c.Storage.RedisURL)
	parse("DB_MIGRATE", func(s string) error {
		b, err := strconv.ParseBool(s)
		c.Storage.Migrate = b
		return err
	})

	parse("WEBHOOK_MAX_ATTEMPTS", intVar(&c.Webhooks.MaxAttempts))
	parse("WEBHOOK_INTERVAL", durVar(&c.Webhooks.Interval))
	return errors.Join(errs...)
}

// Validate rejects settings the solver or the server cannot run with.
func (c Config) Validate() error {
	var errs []error
	if _, err := opt.ParsePolicy(c.GRASP.Policy); err != nil {
		errs = append(errs, fmt.Errorf("grasp.policy: %v: %w", err, ErrInvalid))
	}
	if c.GRASP.RCLSize < 1 {
		errs = append(errs, fmt.Errorf("grasp.rclSize must be >= 1, got %d: %w", c.GRASP.RCLSize, ErrInvalid))
	}
	if c.GRASP.Alpha < 0 || c.GRASP.Alpha > 1 {
		errs = append(errs, fmt.Errorf("grasp.alpha must be in [0,1], got %v: %w", c.GRASP.Alpha, ErrInvalid))
	}
	if c.GRASP.Iterations < 1 {
		errs = append(errs, fmt.Errorf("grasp.iterations must be >= 1, got %d: %w", c.GRASP.Iterations, ErrInvalid))
	}
	if c.Server.SolveTimeout <= 0 {
		errs = append(errs, fmt.Errorf("server.solveTimeout must be > 0, got %v: %w", c.Server.SolveTimeout, ErrInvalid))
	}
	if c.Server.RateRPS < 0 || c.Server.RateBurst < 0 {
		errs = append(errs, fmt.Errorf("server rate limits must be >= 0: %w", ErrInvalid))
	}
	if c.Webhooks.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("webhooks.maxAttempts must be >= 1, got %d: %w", c.Webhooks.MaxAttempts, ErrInvalid))
	}
	return errors.Join(errs...)
}

// Options converts the GRASP section into solver options.
func (g GRASP) Options() (opt.Options, error) {
	pol, err := opt.ParsePolicy(g.Policy)
	if err != nil {
		return opt.Options{}, err
	}
	return opt.Options{
		Iterations: g.Iterations,
		RCLSize:    g.RCLSize,
		Policy:     pol,
		Alpha:      g.Alpha,
		Seed:       g.Seed,
		TimeBudget: g.TimeBudget,
	}, nil
}
