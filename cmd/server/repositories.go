package main

import (
	"github.com/meterly/api/internal/infra/postgres"
	"github.com/meterly/api/pkg/domain/account"
	"github.com/meterly/api/pkg/domain/feature"
	"github.com/meterly/api/pkg/domain/payment"
	"github.com/meterly/api/pkg/domain/plan"
	"github.com/meterly/api/pkg/domain/product"
	"github.com/meterly/api/pkg/domain/subscription"
	"github.com/meterly/api/pkg/domain/tenant"
	"github.com/meterly/api/pkg/domain/usage"
)

// Repositories bundles every persistence port, all backed by the same
// PostgreSQL connection pool.
type Repositories struct {
	Tenant        tenant.Repository
	Account       account.Repository
	Product       product.Repository
	Feature       feature.Repository
	Plan          plan.Repository
	PlanStore     plan.Store
	FeatureConfig plan.FeatureConfigRepository
	Subscription  subscription.Repository
	Payment       payment.Repository
	Usage         usage.Repository
}

// NewRepositories wires all repositories to the database.
func NewRepositories(db *postgres.DB) *Repositories {
	return &Repositories{
		Tenant:        postgres.NewTenantRepository(db),
		Account:       postgres.NewAccountRepository(db),
		Product:       postgres.NewProductRepository(db),
		Feature:       postgres.NewFeatureRepository(db),
		Plan:          postgres.NewPlanRepository(db),
		PlanStore:     postgres.NewPlanStore(db),
		FeatureConfig: postgres.NewFeatureConfigRepository(db),
		Subscription:  postgres.NewSubscriptionRepository(db),
		Payment:       postgres.NewPaymentRepository(db),
		Usage:         postgres.NewUsageRepository(db),
	}
}
