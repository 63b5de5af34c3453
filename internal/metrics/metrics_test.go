package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeneration_Register(t *testing.T) {
	reg := prometheus.NewRegistry()
	g := New(reg)

	g.Attempts.WithLabelValues("rejected").Inc()
	g.Attempts.WithLabelValues("accepted").Inc()
	g.Runs.WithLabelValues(OutcomeAccepted).Inc()
	g.Scores.Observe(0.9)
	g.OnSweep(3)
	g.OnSweep(0)

	assert.Equal(t, 1.0, testutil.ToFloat64(g.Attempts.WithLabelValues("rejected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(g.Runs.WithLabelValues(OutcomeAccepted)))
	assert.Equal(t, 3.0, testutil.ToFloat64(g.Swept))

	n, err := testutil.GatherAndCount(reg, "pagegen_generation_compliance_score")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestGeneration_NilIsSafe(t *testing.T) {
	var g *Generation
	assert.NotPanics(t, func() {
		g.OnSweep(5)
		g.ObserveAttempt("accepted")
		g.ObserveRun(OutcomeError)
		g.ObserveScore(0.5)
		g.RunStarted()
		g.RunDone()
		g.ArtifactFailed()
	})
}

func TestRegisterJobGauges(t *testing.T) {
	reg := prometheus.NewRegistry()
	RegisterJobGauges(reg, func() map[string]int {
		return map[string]int{"received": 2, "finished": 1}
	})

	expected := `
# HELP pagegen_jobs_live Number of unexpired jobs by status
# TYPE pagegen_jobs_live gauge
pagegen_jobs_live{status="finished"} 1
pagegen_jobs_live{status="received"} 2
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "pagegen_jobs_live"))
}
