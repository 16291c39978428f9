// Package stats exposes the core's prometheus metrics — window
// occupancy, post/ack counters, and tracker flush activity — under
// the "flowlog" namespace, grounded on friggdb.go's package-level
// promauto variables.
package stats

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MessagesPosted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "flowlog",
		Name:      "source_messages_posted_total",
		Help:      "Total number of messages posted by a source.",
	}, []string{"source"})

	MessagesAcked = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "flowlog",
		Name:      "source_messages_acked_total",
		Help:      "Total number of messages whose ack count dropped to zero, by outcome.",
	}, []string{"source", "outcome"})

	WindowRemaining = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "flowlog",
		Name:      "source_window_remaining",
		Help:      "Current free outstanding-message credit for a source.",
	}, []string{"source"})

	BookmarksSaved = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "flowlog",
		Name:      "bookmarks_saved_total",
		Help:      "Total number of bookmarks saved by a batched tracker's flush callback, by source.",
	}, []string{"source"})

	BatchFlushes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "flowlog",
		Name:      "batched_tracker_flushes_total",
		Help:      "Total number of batch flushes performed by Batched ack trackers, by source and trigger.",
	}, []string{"source", "trigger"})

	ReaderSuspended = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "flowlog",
		Name:      "reader_suspended",
		Help:      "1 if a reader's watches are currently suspended, 0 otherwise.",
	}, []string{"source"})

	FetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "flowlog",
		Name:      "reader_fetch_duration_seconds",
		Help:      "Time spent in a single reader fetch-loop iteration.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"source"})
)

// FlushTrigger enumerates why a Batched tracker flushed, for the
// BatchFlushes metric's label.
type FlushTrigger string

const (
	TriggerSize    FlushTrigger = "size"
	TriggerTimeout FlushTrigger = "timeout"
	TriggerDeinit  FlushTrigger = "deinit"
)
