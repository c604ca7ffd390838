package main

import (
	"github.com/meterly/api/internal/app"
	"github.com/meterly/api/internal/config"
	"github.com/meterly/api/internal/infra/gateway"
	"github.com/meterly/api/internal/infra/redis"
	"github.com/meterly/api/pkg/domain/payment"
	"github.com/meterly/api/pkg/jwt"
	"github.com/meterly/api/pkg/logger"
)

// Services holds all application services.
type Services struct {
	Tenant       *app.TenantService
	Account      *app.AccountService
	Product      *app.ProductService
	Feature      *app.FeatureService
	Plan         *app.PlanService
	Subscription *app.SubscriptionService
	Usage        *app.UsageService
	Payment      *app.PaymentService
	Entitlement  *app.EntitlementService

	JWTGenerator *jwt.Generator
	Gateway      payment.Gateway
}

// ServiceDeps carries everything service construction needs.
type ServiceDeps struct {
	Config      *config.Config
	Log         *logger.Logger
	Repos       *Repositories
	RedisClient *redis.Client
}

// NewServices builds the service graph. Only the sandbox gateway is
// implemented; live mode is rejected at config load until a real
// processor integration lands.
func NewServices(deps *ServiceDeps) (*Services, error) {
	cfg := deps.Config
	log := deps.Log
	repos := deps.Repos

	gw := gateway.NewSandbox(&cfg.Gateway, log)

	entitlementCache, err := redis.NewCache[app.EntitlementSet](deps.RedisClient, "entitlements", cfg.Billing.UsageCacheTTL)
	if err != nil {
		return nil, err
	}

	entitlements := app.NewEntitlementService(repos.Subscription, repos.Plan, repos.FeatureConfig, repos.Feature, repos.Usage, entitlementCache, log)

	return &Services{
		Tenant:       app.NewTenantService(repos.Tenant, log),
		Account:      app.NewAccountService(repos.Account, gw, log),
		Product:      app.NewProductService(repos.Product, log),
		Feature:      app.NewFeatureService(repos.Feature, repos.Product, log),
		Plan:         app.NewPlanService(repos.Plan, repos.PlanStore, repos.FeatureConfig, repos.Product, repos.Feature, repos.Subscription, log),
		Subscription: app.NewSubscriptionService(repos.Subscription, repos.Plan, repos.Account, repos.Payment, gw, log),
		Usage:        app.NewUsageService(repos.Usage, repos.Subscription, entitlements, log),
		Payment:      app.NewPaymentService(repos.Payment, gw, log),
		Entitlement:  entitlements,

		JWTGenerator: jwt.NewGenerator(jwt.TokenConfig{
			Secret:               cfg.Auth.JWTSecret,
			Issuer:               cfg.Auth.JWTIssuer,
			AccessTokenDuration:  cfg.Auth.AccessTokenDuration,
			RefreshTokenDuration: cfg.Auth.RefreshTokenDuration,
		}),
		Gateway: gw,
	}, nil
}
