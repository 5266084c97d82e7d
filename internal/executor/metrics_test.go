package executor

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/makeasinger/compute-worker/internal/model"
)

func TestMetricsRegistered(t *testing.T) {
	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)

	found := make(map[string]bool)
	for _, fam := range families {
		found[fam.GetName()] = true
	}

	for _, name := range []string{
		"compute_worker_tasks_total",
		"compute_worker_active_simulations",
		"compute_worker_system_faults_total",
	} {
		assert.True(t, found[name], "metric %q not registered", name)
	}
}

func TestTaskMetricsRecorded(t *testing.T) {
	e, rec, _ := startExecutor(t)

	succeeded := tasksTotal.WithLabelValues(string(model.CommandPrimeNumbers), statusSucceeded)
	failed := tasksTotal.WithLabelValues(string(model.CommandPrimeNumbers), statusFailed)
	unknown := tasksTotal.WithLabelValues(model.FallbackID, statusFailed)
	beforeOK, beforeFail, beforeUnknown := counterValue(t, succeeded), counterValue(t, failed), counterValue(t, unknown)

	execute(t, e, rec, "m-ok", model.CommandPrimeNumbers, model.PrimeNumbersPayload{Limit: intPtr(10)})
	execute(t, e, rec, "m-fail", model.CommandPrimeNumbers, model.PrimeNumbersPayload{Limit: intPtr(0)})
	execute(t, e, rec, "m-unknown", "nope", nil)

	assert.Equal(t, beforeOK+1, counterValue(t, succeeded))
	assert.Equal(t, beforeFail+1, counterValue(t, failed))
	assert.Equal(t, beforeUnknown+1, counterValue(t, unknown))
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}
