package main

import (
	"github.com/meterly/api/internal/infra/http/handler"
	"github.com/meterly/api/internal/infra/http/routes"
	"github.com/meterly/api/internal/infra/postgres"
	"github.com/meterly/api/internal/infra/redis"
	"github.com/meterly/api/pkg/logger"
	"github.com/meterly/api/pkg/validator"
)

// HandlerDeps carries everything handler construction needs.
type HandlerDeps struct {
	Log         *logger.Logger
	Validator   *validator.Validator
	DB          *postgres.DB
	RedisClient *redis.Client
	Services    *Services
}

// NewHandlers builds the HTTP handler set.
func NewHandlers(deps *HandlerDeps) routes.Handlers {
	log := deps.Log
	v := deps.Validator
	svcs := deps.Services

	return routes.Handlers{
		Health: handler.NewHealthHandler(
			handler.WithDatabase(deps.DB),
			handler.WithRedis(deps.RedisClient),
		),
		Tenant:       handler.NewTenantHandler(svcs.Tenant, v, log),
		Account:      handler.NewAccountHandler(svcs.Account, v, log),
		Product:      handler.NewProductHandler(svcs.Product, v, log),
		Feature:      handler.NewFeatureHandler(svcs.Feature, v, log),
		Plan:         handler.NewPlanHandler(svcs.Plan, v, log),
		Subscription: handler.NewSubscriptionHandler(svcs.Subscription, v, log),
		Usage:        handler.NewUsageHandler(svcs.Usage, v, log),
		Payment:      handler.NewPaymentHandler(svcs.Payment, v, log),
		Entitlement:  handler.NewEntitlementHandler(svcs.Entitlement, log),
	}
}
