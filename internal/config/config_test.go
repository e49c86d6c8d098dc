package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"toptw/internal/opt"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
	o, err := Default().GRASP.Options()
	require.NoError(t, err)
	assert.Equal(t, opt.PolicyFuzzyAlphaCut, o.Policy)
	require.NoError(t, o.Validate())
}

func TestLoadYAMLWithEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "toptw.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":9000"
  solveTimeout: 5s
grasp:
  iterations: 40
  rclSize: 5
  policy: random
  alpha: 0.3
webhooks:
  maxAttempts: 3
`), 0o600))
	t.Setenv("GRASP_POLICY", "fuzzy-best")
	t.Setenv("RATE_RPS", "2.5")
	t.Setenv("PORT", "7070")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.Server.Addr)
	assert.Equal(t, 5*time.Second, cfg.Server.SolveTimeout)
	assert.Equal(t, 2.5, cfg.Server.RateRPS)
	assert.Equal(t, 40, cfg.GRASP.Iterations)
	assert.Equal(t, 5, cfg.GRASP.RCLSize)
	assert.Equal(t, "fuzzy-best", cfg.GRASP.Policy)
	assert.Equal(t, 0.3, cfg.GRASP.Alpha)
	assert.Equal(t, 3, cfg.Webhooks.MaxAttempts)
	assert.Equal(t, "db/migrations", cfg.Storage.Migrations)
}

func TestApplyEnvRejectsUnparsableValues(t *testing.T) {
	cfg := Default()
	env := map[string]string{"RATE_BURST": "lots", "GRASP_TIME_BUDGET": "soon"}
	err := cfg.applyEnv(func(k string) (string, bool) { v, ok := env[k]; return v, ok })
	require.ErrorIs(t, err, ErrInvalid)
	assert.Contains(t, err.Error(), "RATE_BURST")
	assert.Contains(t, err.Error(), "GRASP_TIME_BUDGET")
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"policy":   func(c *Config) { c.GRASP.Policy = "roulette" },
		"rcl":      func(c *Config) { c.GRASP.RCLSize = 0 },
		"alpha":    func(c *Config) { c.GRASP.Alpha = 2 },
		"attempts": func(c *Config) { c.Webhooks.MaxAttempts = 0 },
		"timeout":  func(c *Config) { c.Server.SolveTimeout = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(&cfg)
			require.ErrorIs(t, cfg.Validate(), ErrInvalid)
		})
	}
}

func TestLoadRejectsZeroSolveTimeout(t *testing.T) {
	t.Setenv("SOLVE_TIMEOUT", "0s")
	_, err := Load("")
	require.ErrorIs(t, err, ErrInvalid)
	assert.Contains(t, err.Error(), "solveTimeout")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
