package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.IncrementConflict("Document")
	m.IncrementConflict("Document")
	m.IncrementWrite("DocumentCost", "update")
	m.ObserveOperation("update", 3*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.VersionConflicts.WithLabelValues("Document")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Writes.WithLabelValues("DocumentCost", "update")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.OperationLatency))
}

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IncrementConflict("Document")
		m.IncrementWrite("Document", "create")
		m.ObserveOperation("create", time.Second)
	})
}
