package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestTimerDuration(t *testing.T) {
	timer := NewTimer()
	time.Sleep(20 * time.Millisecond)

	first := timer.Duration()
	assert.GreaterOrEqual(t, first, 20*time.Millisecond)

	time.Sleep(5 * time.Millisecond)
	assert.Greater(t, timer.Duration(), first, "duration should keep growing")
}

func TestTimerObserveDuration(t *testing.T) {
	histogram := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name: "test_duration_seconds",
		Help: "Test duration histogram",
	})

	NewTimer().ObserveDuration(histogram)

	assert.Equal(t, 1, testutil.CollectAndCount(histogram))
}

func TestTimerObserveDurationVec(t *testing.T) {
	vec := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name: "test_stage_seconds",
		Help: "Test stage histogram",
	}, []string{"stage"})

	NewTimer().ObserveDurationVec(vec, "list")
	NewTimer().ObserveDurationVec(vec, "describe")

	assert.Equal(t, 2, testutil.CollectAndCount(vec))
}

func TestCountersRegistered(t *testing.T) {
	before := testutil.ToFloat64(StopCallsTotal.WithLabelValues("stopped"))
	StopCallsTotal.WithLabelValues("stopped").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(StopCallsTotal.WithLabelValues("stopped")))
}
