package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterDefaultIsIdempotent(t *testing.T) {
	RegisterDefault()
	RegisterDefault()

	Runs.WithLabelValues("random", "completed").Inc()
	BestFitness.WithLabelValues("random").Set(42)

	families, err := Registry.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["grasp_runs_total"])
	assert.True(t, names["grasp_best_fitness"])
	assert.Equal(t, 42.0, testutil.ToFloat64(BestFitness.WithLabelValues("random")))
}
