package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrorRate counts Redis errors by command.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "isupipe_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "isupipe_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// ReservationsTotal counts reservation attempts by outcome.
	ReservationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "isupipe_reservations_total",
		Help: "Reservation attempts by outcome (reserved, overbooked, invalid, failed)",
	}, []string{"outcome"})

	// AggregateDeltasTotal counts counter updates applied to entities.
	AggregateDeltasTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "isupipe_aggregate_deltas_total",
		Help: "Aggregate counter deltas applied, by entity kind",
	}, []string{"kind"})

	// UnitOfWorkRetries counts transaction attempts retried after a transient store error.
	UnitOfWorkRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "isupipe_unit_of_work_retries_total",
		Help: "Transactions retried after deadlock, serialization or write conflict",
	})

	// CacheLookups counts snapshot reads by kind and result (hit, miss, error).
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "isupipe_cache_lookups_total",
		Help: "Snapshot cache lookups by entity kind and result",
	}, []string{"kind", "result"})

	// CacheWriteErrors counts snapshot writes that failed after commit.
	CacheWriteErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "isupipe_cache_write_errors_total",
		Help: "Snapshot cache writes that failed after a successful commit",
	}, []string{"kind"})

	// ModerationEvents counts spam rejections and comments purged by banned words.
	ModerationEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "isupipe_moderation_events_total",
		Help: "Moderation outcomes (spam_rejected, comment_purged, word_registered)",
	}, []string{"event"})

	// LivestreamSubscribers is the number of open websocket feed connections.
	LivestreamSubscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "isupipe_livestream_feed_subscribers",
		Help: "Open websocket connections on livestream event feeds",
	})

	// FeedMessagesDropped counts feed messages not delivered to a slow or closed client.
	FeedMessagesDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "isupipe_feed_messages_dropped_total",
		Help: "Livestream feed messages dropped by reason (full, closed)",
	}, []string{"reason"})
)

// TrackQuery returns a function that records query latency when called (e.g. defer).
func TrackQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	}
}
