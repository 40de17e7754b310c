package metrics

import "github.com/prometheus/client_golang/prometheus"

// FeedMetrics counts change feed publish outcomes by event type.
type FeedMetrics struct {
	published *prometheus.CounterVec
	failed    *prometheus.CounterVec
	deadEnded *prometheus.CounterVec
}

// NewFeedMetrics registers the feed publisher metrics on the provided registerer.
func NewFeedMetrics(reg prometheus.Registerer) *FeedMetrics {
	if reg == nil {
		return &FeedMetrics{}
	}
	published := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "feed_events_published_total",
		Help: "Outbox events successfully published to the change feed.",
	}, []string{"event_type"})
	failed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "feed_events_failed_total",
		Help: "Outbox publish attempts that failed and will retry.",
	}, []string{"event_type"})
	deadEnded := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "feed_events_dead_lettered_total",
		Help: "Outbox events moved to the dead letter table.",
	}, []string{"event_type"})
	reg.MustRegister(published, failed, deadEnded)
	return &FeedMetrics{
		published: published,
		failed:    failed,
		deadEnded: deadEnded,
	}
}

// IncPublished increments the published counter for the event type.
func (f *FeedMetrics) IncPublished(eventType string) {
	if f == nil || f.published == nil {
		return
	}
	f.published.WithLabelValues(normalizeLabel(eventType)).Inc()
}

// IncFailed increments the retryable failure counter for the event type.
func (f *FeedMetrics) IncFailed(eventType string) {
	if f == nil || f.failed == nil {
		return
	}
	f.failed.WithLabelValues(normalizeLabel(eventType)).Inc()
}

// IncDeadLettered increments the DLQ counter for the event type.
func (f *FeedMetrics) IncDeadLettered(eventType string) {
	if f == nil || f.deadEnded == nil {
		return
	}
	f.deadEnded.WithLabelValues(normalizeLabel(eventType)).Inc()
}
