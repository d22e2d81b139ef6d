package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := New()
	reg := prometheus.NewRegistry()
	require.NoError(t, m.Register(reg))

	m.IncCommits()
	m.AddApplySkipped(3)
	m.AddApplySkipped(0)
	m.ObserveSync(DirectionPull, ResultOK, 2)
	m.ObserveSync(DirectionPull, ResultSkipped, 1)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Commits))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.ApplySkipped))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.SyncRevisions.WithLabelValues(DirectionPull, ResultOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SyncRevisions.WithLabelValues(DirectionPull, ResultSkipped)))

	assert.Error(t, m.Register(reg), "collectors register once")
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IncCommits()
		m.AddApplySkipped(1)
		m.ObserveSync(DirectionPush, ResultFailed, 1)
	})
}
