package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewWithRegistry(reg)

	r.RecordEvaluation("EURUSD", "PROCEED", 92)
	r.RecordEvaluation("EURUSD", "PROCEED", 80)
	assert.Equal(t, 2.0, testutil.ToFloat64(r.evaluations.WithLabelValues("EURUSD", "PROCEED")))
	assert.Equal(t, 80.0, testutil.ToFloat64(r.score.WithLabelValues("EURUSD")))

	r.RecordBias("EURUSD", "SHORT", 70)
	r.RecordBias("EURUSD", "WAIT", 0)
	assert.Equal(t, 1, testutil.CollectAndCount(r.confidence))

	r.RecordError("fetch_series")
	r.ObserveHTTP("/api/verdict", "GET", 200, 0.01, 512)
	r.ObserveHTTP("/api/verdict", "GET", 503, 0.02, 64)
	assert.Equal(t, 1.0, testutil.ToFloat64(r.httpRequests.WithLabelValues("/api/verdict", "GET", "503")))
	assert.Equal(t, "5xx", statusClass(503))
	assert.Equal(t, "4xx", statusClass(404))
}
