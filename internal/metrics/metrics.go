// Package metrics provides Prometheus instrumentation for the matching
// engine. It exposes gauges for queue depth, counters for queue operations
// and match outcomes, and histograms for cycle latency and score
// distribution.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// QueueSize tracks the current number of users in the waiting index.
	QueueSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "matchengine_queue_size",
		Help: "Current number of users in the waiting queue",
	})

	// QueueOps counts Join/Leave operations, labeled by op ("join",
	// "leave") and result ("ok", "already_queued", "rate_limited", "error").
	QueueOps = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "matchengine_queue_ops_total",
		Help: "Total queue operations processed",
	}, []string{"op", "result"})

	// MatchesTotal counts committed match attempts.
	MatchesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "matchengine_matches_total",
		Help: "Total match attempts committed",
	})

	// ExpiredTotal counts entries expired by the TTL sweep.
	ExpiredTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "matchengine_expired_total",
		Help: "Total waiting entries expired by the sweep",
	})

	// CyclesSkipped counts scheduler ticks skipped because the previous
	// cycle was still running.
	CyclesSkipped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "matchengine_cycles_skipped_total",
		Help: "Scheduler ticks skipped by the single-flight guard",
	})

	// CycleDuration records how long a full matching cycle takes.
	CycleDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "matchengine_cycle_duration_seconds",
		Help:    "Matching cycle duration in seconds",
		Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
	})

	// MatchScore records the blended score of committed matches.
	MatchScore = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "matchengine_match_score",
		Help:    "Total compatibility score of committed matches",
		Buckets: []float64{.4, .5, .6, .7, .8, .9, 1},
	})
)

func init() {
	prometheus.MustRegister(
		QueueSize,
		QueueOps,
		MatchesTotal,
		ExpiredTotal,
		CyclesSkipped,
		CycleDuration,
		MatchScore,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
