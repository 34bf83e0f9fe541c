package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Invocation metrics
	InvocationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autoheal_invocations_total",
			Help: "Total number of invocations by final status",
		},
		[]string{"status"},
	)

	InvocationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "autoheal_invocation_duration_seconds",
			Help:    "End-to-end invocation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	StageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "autoheal_stage_duration_seconds",
			Help:    "Duration of each pipeline stage in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"stage"},
	)

	// Correlation metrics
	UnhealthyTargets = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "autoheal_unhealthy_targets",
			Help:    "Number of remediable targets seen per invocation",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100},
		},
	)

	UnresolvedTargetsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "autoheal_unresolved_targets_total",
			Help: "Total number of unhealthy targets no running instance owned",
		},
	)

	AddressConflictsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "autoheal_address_conflicts_total",
			Help: "Total number of addresses claimed by more than one running instance",
		},
	)

	// Remediation metrics
	StopCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autoheal_stop_calls_total",
			Help: "Total number of instance remediations by result",
		},
		[]string{"result"},
	)

	DependencyErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autoheal_dependency_errors_total",
			Help: "Total number of fatal dependency errors by source",
		},
		[]string{"source"},
	)
)

func init() {
	prometheus.MustRegister(InvocationsTotal)
	prometheus.MustRegister(InvocationDuration)
	prometheus.MustRegister(StageDuration)
	prometheus.MustRegister(UnhealthyTargets)
	prometheus.MustRegister(UnresolvedTargetsTotal)
	prometheus.MustRegister(AddressConflictsTotal)
	prometheus.MustRegister(StopCallsTotal)
	prometheus.MustRegister(DependencyErrorsTotal)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer measures elapsed time for histogram observations
type Timer struct {
	start time.Time
}

// NewTimer starts a timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the time elapsed since the timer started
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// ObserveDuration records the elapsed seconds on an observer
func (t *Timer) ObserveDuration(o prometheus.Observer) {
	o.Observe(t.Duration().Seconds())
}

// ObserveDurationVec records the elapsed seconds on the labeled histogram
func (t *Timer) ObserveDurationVec(v *prometheus.HistogramVec, labels ...string) {
	v.WithLabelValues(labels...).Observe(t.Duration().Seconds())
}
