package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MailSends counts outbound mail by message kind and outcome.
	MailSends = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nimble",
		Subsystem: "site",
		Name:      "mail_sends_total",
		Help:      "Outbound emails by kind and outcome.",
	}, []string{"kind", "outcome"})

	// FormSubmissions counts contact and newsletter posts by outcome.
	FormSubmissions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nimble",
		Subsystem: "site",
		Name:      "form_submissions_total",
		Help:      "Lead form submissions by form and outcome.",
	}, []string{"form", "outcome"})

	CheckoutSessions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nimble",
		Subsystem: "site",
		Name:      "checkout_sessions_total",
		Help:      "Checkout session requests by outcome.",
	}, []string{"outcome"})

	LicenseChecks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nimble",
		Subsystem: "site",
		Name:      "license_checks_total",
		Help:      "Active license lookups by outcome.",
	}, []string{"outcome"})

	// WebhookRequests counts Stripe webhook requests by event type and status.
	WebhookRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nimble",
		Subsystem: "site",
		Name:      "webhook_requests_total",
		Help:      "Stripe webhook requests by event type and HTTP status.",
	}, []string{"event_type", "status"})

	WebhookDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "nimble",
		Subsystem: "site",
		Name:      "webhook_duration_seconds",
		Help:      "Stripe webhook processing duration in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"event_type"})

	RateLimited = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nimble",
		Subsystem: "site",
		Name:      "rate_limited_total",
		Help:      "Requests rejected by the rate limiter, by route.",
	}, []string{"route"})
)
