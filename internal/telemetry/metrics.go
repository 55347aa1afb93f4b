// Package telemetry registers the Prometheus metrics for the normalization
// pipeline.
package telemetry

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// MessagesNormalized counts canonical messages produced, per platform.
	MessagesNormalized *prometheus.CounterVec
	// ItemsDropped counts skipped inbound items, per platform and reason.
	ItemsDropped *prometheus.CounterVec
	// EnvelopesSeen counts inbound control envelopes, per discriminator
	// ("invalid" for unparsable ones).
	EnvelopesSeen *prometheus.CounterVec
	// FramesCaptured counts capture records routed, per platform and kind.
	FramesCaptured *prometheus.CounterVec
	// SubscriptionEvents counts subscription/gift records produced.
	SubscriptionEvents *prometheus.CounterVec
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		MessagesNormalized = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "chatfunnel_messages_normalized_total",
			Help: "Canonical messages produced per platform",
		}, []string{"platform"})
		ItemsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "chatfunnel_items_dropped_total",
			Help: "Inbound items skipped per platform and reason",
		}, []string{"platform", "reason"})
		EnvelopesSeen = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "chatfunnel_envelopes_total",
			Help: "Inbound control envelopes per type",
		}, []string{"type"})
		FramesCaptured = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "chatfunnel_frames_captured_total",
			Help: "Capture records routed per platform and transport kind",
		}, []string{"platform", "kind"})
		SubscriptionEvents = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "chatfunnel_subscription_events_total",
			Help: "Subscription and gift records produced per platform",
		}, []string{"platform"})
	})
}

// Drop increments ItemsDropped if metrics are initialized.
func Drop(platform, reason string) {
	if ItemsDropped != nil {
		ItemsDropped.WithLabelValues(platform, reason).Inc()
	}
}
