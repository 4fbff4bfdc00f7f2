package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.Submission(OutcomeConfirmed)
	m.Submission(OutcomeQueued)
	m.Submission(OutcomeQueued)
	m.Replayed()
	m.DeadLettered()
	m.TrackDrain().End(ResultComplete)
	m.SetStatus(true, 4)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.submissions.WithLabelValues(OutcomeConfirmed)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.submissions.WithLabelValues(OutcomeQueued)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.replayed))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.deadLettered))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.drains.WithLabelValues(ResultComplete)))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.pending))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.online))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.Submission(OutcomeQueued)
	m.Replayed()
	m.DeadLettered()
	m.SetStatus(false, 1)
	m.TrackDrain().End(ResultAborted)
}

func TestNewMetrics_NilRegistererIsIsolated(t *testing.T) {
	assert.NotPanics(t, func() {
		NewMetrics(nil)
		NewMetrics(nil)
	})
}
