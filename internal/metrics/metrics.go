// Package metrics defines Prometheus collectors for billing operations.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	// HTTPRequestsTotal tracks API requests by method, route and status.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests by method, route and status code",
		},
		[]string{"method", "route", "status"},
	)

	// HTTPRequestDuration tracks API request latency.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "route"},
	)
)

// Payment metrics
var (
	// PaymentsTotal tracks gateway charge attempts by outcome.
	PaymentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_total",
			Help: "Total number of payment attempts by tenant and status",
		},
		[]string{"tenant_id", "status"},
	)

	// PaymentAmountTotal accumulates charged amounts in minor units.
	PaymentAmountTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_amount_minor_units_total",
			Help: "Total charged amount in minor currency units by tenant and currency",
		},
		[]string{"tenant_id", "currency"},
	)
)

// Subscription lifecycle metrics
var (
	// SubscriptionsCreatedTotal tracks new subscriptions.
	SubscriptionsCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subscriptions_created_total",
			Help: "Total number of subscriptions created by tenant",
		},
		[]string{"tenant_id"},
	)

	// SubscriptionRenewalsTotal tracks renewal outcomes.
	SubscriptionRenewalsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subscription_renewals_total",
			Help: "Total number of subscription renewal attempts by outcome",
		},
		[]string{"outcome"},
	)

	// SubscriptionsExpiredTotal tracks expiries from the lapse sweep.
	SubscriptionsExpiredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "subscriptions_expired_total",
			Help: "Total number of subscriptions expired after the grace period",
		},
	)
)

// Plan versioning metrics
var (
	// PlanForksTotal tracks copy-on-write plan version forks.
	PlanForksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "plan_forks_total",
			Help: "Total number of plan updates that forked a new version",
		},
		[]string{"tenant_id"},
	)
)

// Usage and entitlement metrics
var (
	// UsageEventsTotal tracks recorded usage events, including
	// idempotent duplicates.
	UsageEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "usage_events_total",
			Help: "Total number of usage events recorded by tenant and result",
		},
		[]string{"tenant_id", "result"},
	)

	// EntitlementCacheHits tracks entitlement cache effectiveness.
	EntitlementCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "entitlement_cache_requests_total",
			Help: "Total number of entitlement lookups by cache outcome",
		},
		[]string{"outcome"},
	)
)
