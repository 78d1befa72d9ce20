package metrics_test

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/muzz-matchmaker/internal/metrics"
)

func TestNew_RegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	m.Received.Inc()
	m.Handled.WithLabelValues("interaction", metrics.OutcomeOK).Inc()
	m.ObserveSince("interaction", time.Now())

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Received))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Handled.WithLabelValues("interaction", metrics.OutcomeOK)))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "received_messages_total")
	assert.Contains(t, names, "latency_seconds")
}

func TestNew_DoubleRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics.New(reg)
	assert.Panics(t, func() { metrics.New(reg) })
}

func TestNew_NilRegistry(t *testing.T) {
	m := metrics.New(nil)
	m.Received.Inc()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Received))
}
