// Package metrics holds the prometheus collectors of the planning engine.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const Namespace = "drydock"

var (
	ScanDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    prometheus.BuildFQName(Namespace, "conflict", "scan_duration_seconds"),
		Help:    "Duration of full plan conflict scans in seconds",
		Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
	})
	ConflictsFound = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: prometheus.BuildFQName(Namespace, "conflict", "found_total"),
		Help: "Conflicts recorded by scans, by type and severity",
	}, []string{"type", "severity"})
	Mutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: prometheus.BuildFQName(Namespace, "plan", "mutations_total"),
		Help: "Structural plan mutations by operation and outcome",
	}, []string{"operation", "outcome"})
	LockWait = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    prometheus.BuildFQName(Namespace, "plan", "lock_wait_seconds"),
		Help:    "Time spent acquiring the per-plan lock",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
	}, []string{"backend"})
	NotificationsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: prometheus.BuildFQName(Namespace, "notify", "sent_total"),
		Help: "Notifications handed to sinks, by sink and outcome",
	}, []string{"sink", "outcome"})
)

// ObserveScan records one finished scan.
func ObserveScan(started time.Time, counts map[[2]string]int) {
	ScanDuration.Observe(time.Since(started).Seconds())
	for k, n := range counts {
		ConflictsFound.WithLabelValues(k[0], k[1]).Add(float64(n))
	}
}

// Outcome labels an operation result.
func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
