package obs

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	require.NoError(t, err)

	m.DirectionsRequest("optimize", "ok")
	m.DirectionsRequest("optimize", "ok")
	m.DirectionsRequest("driving_times", "unavailable")
	m.RouteOptimized("nearest_neighbor")
	m.ObserveHTTP("GET", 200, 15*time.Millisecond)

	expected := `
# HELP dispatch_directions_requests_total Directions provider requests, by mode and outcome
# TYPE dispatch_directions_requests_total counter
dispatch_directions_requests_total{mode="driving_times",outcome="unavailable"} 1
dispatch_directions_requests_total{mode="optimize",outcome="ok"} 2
`
	assert.NoError(t, testutil.CollectAndCompare(m.directions, strings.NewReader(expected)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.optimizations.WithLabelValues("nearest_neighbor")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "200")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.httpDuration))
}

func TestMetricsReuseRegistered(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewMetrics(reg)
	require.NoError(t, err)
	second, err := NewMetrics(reg)
	require.NoError(t, err)

	second.RouteOptimized("directions")
	assert.Equal(t, float64(1), testutil.ToFloat64(first.optimizations.WithLabelValues("directions")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.DirectionsRequest("optimize", "ok")
		m.RouteOptimized("none")
		m.ObserveHTTP("GET", 200, time.Second)
	})
}

func TestTimeLogsThroughContextLogger(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger(&buf, "debug", "json")
	ctx := l.WithContext(context.Background())

	err := errors.New("boom")
	Time(ctx, "directions.optimize")(&err)

	out := buf.String()
	assert.Contains(t, out, `"op":"directions.optimize"`)
	assert.Contains(t, out, `"error":"boom"`)
}
