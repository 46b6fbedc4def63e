// Package metrics declares the Prometheus collectors exported on /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "moodjournal"

var (
	// entryMutations counts entry writes. Labels: op (create, update, delete)
	entryMutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "entries",
		Name:      "mutations_total",
		Help:      "Journal entry writes by operation",
	}, []string{"op"})

	// aggregationSkips counts input the weekly aggregator dropped.
	// Labels: reason (invalid_timestamp, non_numeric_score)
	aggregationSkips = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "insights",
		Name:      "aggregation_skips_total",
		Help:      "Entries or scores skipped during weekly aggregation",
	}, []string{"reason"})

	filterRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "entries",
		Name:      "filter_requests_total",
		Help:      "Entry listings by whether mood criteria were applied",
	}, []string{"filtered"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	storedRecords = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "storage",
		Name:      "records",
		Help:      "Records held by the configured store",
	}, []string{"kind"})
)

// RecordEntryMutation counts one entry write of kind op.
func RecordEntryMutation(op string) {
	entryMutations.WithLabelValues(op).Inc()
}

// RecordAggregationSkip counts input dropped by the aggregator.
func RecordAggregationSkip(reason string) {
	aggregationSkips.WithLabelValues(reason).Inc()
}

// RecordFilterRequest counts an entry listing.
func RecordFilterRequest(filtered bool) {
	filterRequests.WithLabelValues(strconv.FormatBool(filtered)).Inc()
}

// ObserveHTTP records the latency of one HTTP request.
func ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	httpDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}

// SetStoredRecords publishes the latest store counts.
func SetStoredRecords(users, entries int) {
	storedRecords.WithLabelValues("users").Set(float64(users))
	storedRecords.WithLabelValues("entries").Set(float64(entries))
}
