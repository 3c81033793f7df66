package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RecordsMerged = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "scoutsync", Name: "records_merged_total", Help: "Incoming records accepted by the conflict resolver",
	})
	RecordsDiscarded = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "scoutsync", Name: "records_discarded_total", Help: "Incoming records discarded as stale or invalid",
	})
	SyncPasses = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "scoutsync", Name: "sync_passes_total", Help: "Full sync passes by outcome",
	}, []string{"outcome"})
	SyncDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "scoutsync", Name: "sync_pass_seconds", Help: "Full sync pass latency",
		Buckets: prometheus.DefBuckets,
	})
	QueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "scoutsync", Name: "outbound_queue_depth", Help: "Messages waiting for the live channel",
	})
	Reconnects = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "scoutsync", Name: "reconnect_attempts_total", Help: "Live channel reconnect attempts",
	})
)

func init() {
	prometheus.MustRegister(RecordsMerged, RecordsDiscarded, SyncPasses, SyncDuration, QueueDepth, Reconnects)
}

func Handler() http.Handler { return promhttp.Handler() }

func ObserveSyncPass(outcome string, d time.Duration) {
	SyncPasses.WithLabelValues(outcome).Inc()
	SyncDuration.Observe(d.Seconds())
}
