package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// QuoteMetrics records email dispatch outcomes and customer engagement.
type QuoteMetrics struct {
	emailAttempts *prometheus.CounterVec
	emailDuration *prometheus.HistogramVec
	engagement    *prometheus.CounterVec
}

// NewQuoteMetrics registers the quote metrics on the provided registerer.
func NewQuoteMetrics(reg prometheus.Registerer) *QuoteMetrics {
	if reg == nil {
		return &QuoteMetrics{}
	}
	emailAttempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "quote_email_attempts_total",
		Help: "Quote email dispatch attempts by kind (send/retry) and outcome.",
	}, []string{"kind", "outcome"})
	emailDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "quote_email_duration_seconds",
		Help:    "Duration of quote email transport calls in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})
	engagement := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "quote_engagement_events_total",
		Help: "Tracking-link engagement events by type (view/interest/rejected_token).",
	}, []string{"event"})
	reg.MustRegister(emailAttempts, emailDuration, engagement)
	return &QuoteMetrics{
		emailAttempts: emailAttempts,
		emailDuration: emailDuration,
		engagement:    engagement,
	}
}

// ObserveEmailAttempt records one transport call.
func (q *QuoteMetrics) ObserveEmailAttempt(kind, outcome string, duration time.Duration) {
	if q == nil || q.emailAttempts == nil {
		return
	}
	q.emailAttempts.WithLabelValues(normalizeLabel(kind), normalizeLabel(outcome)).Inc()
	q.emailDuration.WithLabelValues(normalizeLabel(kind)).Observe(duration.Seconds())
}

// IncEngagement increments the counter for the named engagement event.
func (q *QuoteMetrics) IncEngagement(event string) {
	if q == nil || q.engagement == nil {
		return
	}
	q.engagement.WithLabelValues(normalizeLabel(event)).Inc()
}

func normalizeLabel(value string) string {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "" {
		return "unknown"
	}
	return value
}
