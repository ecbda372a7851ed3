// Package observability holds the daemon's prometheus instrumentation.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	syncRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fitness_sync",
		Subsystem: "engine",
		Name:      "runs_total",
		Help:      "Completed sync runs by result.",
	}, []string{"result"})
	pushOpsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fitness_sync",
		Subsystem: "engine",
		Name:      "push_operations_total",
		Help:      "Push-phase remote operations by entity, operation and result.",
	}, []string{"entity", "op", "result"})
	pullActionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fitness_sync",
		Subsystem: "engine",
		Name:      "pull_actions_total",
		Help:      "Pull/merge-phase actions applied to local records.",
	}, []string{"entity", "action"})
	runDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "fitness_sync",
		Subsystem: "engine",
		Name:      "run_duration_seconds",
		Help:      "Wall time of a full sync run across all entity types.",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
	})
	lastSuccessGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "fitness_sync",
		Subsystem: "engine",
		Name:      "last_success_timestamp_seconds",
		Help:      "Unix timestamp of the most recent fully successful sync run.",
	})
)

func init() {
	prometheus.MustRegister(syncRunsTotal, pushOpsTotal, pullActionsTotal, runDuration, lastSuccessGauge)
}

// RecordRun counts a completed sync run and its duration.
func RecordRun(result string, elapsed time.Duration) {
	syncRunsTotal.WithLabelValues(result).Inc()
	runDuration.Observe(elapsed.Seconds())
	if result == "success" {
		lastSuccessGauge.SetToCurrentTime()
	}
}

// RecordPushOp counts one push-phase remote operation.
func RecordPushOp(entity, op, result string) {
	pushOpsTotal.WithLabelValues(entity, op, result).Inc()
}

// RecordPullAction counts one pull/merge-phase local action.
func RecordPullAction(entity, action string) {
	pullActionsTotal.WithLabelValues(entity, action).Inc()
}
