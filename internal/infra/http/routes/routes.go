// Package routes wires handlers, auth and role guards onto the router.
package routes

import (
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/meterly/api/internal/infra/http/handler"
	"github.com/meterly/api/internal/infra/http/middleware"
	"github.com/meterly/api/pkg/jwt"
	"github.com/meterly/api/pkg/logger"
)

// Handlers bundles everything Register mounts.
type Handlers struct {
	Health       *handler.HealthHandler
	Tenant       *handler.TenantHandler
	Account      *handler.AccountHandler
	Product      *handler.ProductHandler
	Feature      *handler.FeatureHandler
	Plan         *handler.PlanHandler
	Subscription *handler.SubscriptionHandler
	Usage        *handler.UsageHandler
	Payment      *handler.PaymentHandler
	Entitlement  *handler.EntitlementHandler
}

// Register mounts all routes. Health, readiness and metrics are public;
// everything under /api/v1 requires a valid access token, with role
// guards on mutations.
func Register(r chi.Router, h Handlers, tokens *jwt.Generator, log *logger.Logger) {
	r.Get("/health", h.Health.Health)
	r.Get("/ready", h.Health.Ready)
	r.Method("GET", "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(tokens, log))

		r.Route("/tenants", func(r chi.Router) {
			r.Get("/", h.Tenant.List)
			r.Get("/{tenantID}", h.Tenant.Get)
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireWrite())
				r.Post("/", h.Tenant.Create)
				r.Patch("/{tenantID}", h.Tenant.Update)
				r.Delete("/{tenantID}", h.Tenant.Delete)
			})
		})

		r.Route("/accounts", func(r chi.Router) {
			r.Get("/", h.Account.List)
			r.Get("/{accountID}", h.Account.Get)
			r.Get("/{accountID}/subscriptions", h.Subscription.ListByAccount)
			r.Get("/{accountID}/payments", h.Payment.ListByAccount)
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireWrite())
				r.Post("/", h.Account.Create)
				r.Put("/{accountID}/payment-method", h.Account.SetPaymentMethod)
				r.Post("/{accountID}/suspend", h.Account.Suspend)
				r.Post("/{accountID}/reactivate", h.Account.Reactivate)
				r.Post("/{accountID}/close", h.Account.Close)
			})
		})

		r.Route("/products", func(r chi.Router) {
			r.Get("/", h.Product.List)
			r.Get("/{productID}", h.Product.Get)
			r.Get("/{productID}/features", h.Feature.List)
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequirePlanManagement())
				r.Post("/", h.Product.Create)
				r.Patch("/{productID}", h.Product.Update)
				r.Post("/{productID}/rotate-key", h.Product.RotateAPIKey)
				r.Post("/{productID}/deactivate", h.Product.Deactivate)
				r.Post("/{productID}/features", h.Feature.Create)
			})
		})

		r.Route("/features", func(r chi.Router) {
			r.Get("/{featureID}", h.Feature.Get)
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequirePlanManagement())
				r.Patch("/{featureID}", h.Feature.Update)
				r.Delete("/{featureID}", h.Feature.Delete)
			})
		})

		r.Route("/plans", func(r chi.Router) {
			r.Get("/", h.Plan.List)
			r.Get("/{planID}", h.Plan.Get)
			r.Get("/code/{planCode}/versions", h.Plan.GetFamily)
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequirePlanManagement())
				r.Post("/", h.Plan.Create)
				r.Patch("/code/{planCode}", h.Plan.Update)
				r.Post("/code/{planCode}/versions/{version}/archive", h.Plan.Archive)
				r.Post("/{planID}/features", h.Plan.ConfigureFeature)
			})
		})

		r.Route("/subscriptions", func(r chi.Router) {
			r.Get("/{subscriptionID}", h.Subscription.Get)
			r.Get("/{subscriptionID}/payments", h.Payment.ListBySubscription)
			r.Get("/{subscriptionID}/usage", h.Usage.ListEvents)
			r.Get("/{subscriptionID}/usage/summary", h.Usage.Summary)
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireWrite())
				r.Post("/", h.Subscription.Create)
				r.Post("/{subscriptionID}/cancel", h.Subscription.Cancel)
				r.Post("/{subscriptionID}/upgrade", h.Subscription.Upgrade)
			})
		})

		r.Route("/payments", func(r chi.Router) {
			r.Get("/{paymentID}", h.Payment.Get)
			r.With(middleware.RequireWrite()).Post("/{paymentID}/refund", h.Payment.Refund)
		})

		r.With(middleware.RequireUsageRecording()).Post("/usage", h.Usage.Record)
		r.Get("/entitlements", h.Entitlement.Get)
	})
}
