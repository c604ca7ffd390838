package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/meterly/api/internal/infra/redis"
	"github.com/meterly/api/internal/metrics"
	"github.com/meterly/api/pkg/domain/feature"
	"github.com/meterly/api/pkg/domain/plan"
	"github.com/meterly/api/pkg/domain/shared"
	"github.com/meterly/api/pkg/domain/subscription"
	"github.com/meterly/api/pkg/domain/usage"
	"github.com/meterly/api/pkg/logger"
)

// Entitlement is one feature's availability for a customer.
type Entitlement struct {
	Enabled      bool               `json:"enabled"`
	Limit        *int64             `json:"limit,omitempty"`
	PricingTiers []plan.PricingTier `json:"pricing_tiers,omitempty"`
}

// EntitlementSet is the full entitlement answer for a tenant or customer:
// per-feature-code entitlements plus aggregated usage for metered features.
type EntitlementSet struct {
	Entitlements map[string]Entitlement `json:"entitlements"`
	Usage        map[string]int64       `json:"usage"`
	ComputedAt   time.Time              `json:"computed_at"`
}

// EntitlementService computes which features a tenant's billable
// subscriptions grant. Results are cached in Redis with a short TTL and
// invalidated on plan or subscription changes.
type EntitlementService struct {
	subscriptions subscription.Repository
	plans         plan.Repository
	configs       plan.FeatureConfigRepository
	features      feature.Repository
	events        usage.Repository
	cache         *redis.Cache[EntitlementSet]
	logger        *logger.Logger
}

// NewEntitlementService creates a new entitlement service. The cache may
// be nil, in which case every call recomputes.
func NewEntitlementService(
	subscriptions subscription.Repository,
	plans plan.Repository,
	configs plan.FeatureConfigRepository,
	features feature.Repository,
	events usage.Repository,
	cache *redis.Cache[EntitlementSet],
	log *logger.Logger,
) *EntitlementService {
	return &EntitlementService{
		subscriptions: subscriptions,
		plans:         plans,
		configs:       configs,
		features:      features,
		events:        events,
		cache:         cache,
		logger:        log.With("service", "entitlement"),
	}
}

// GetEntitlements returns the entitlement set for a tenant, optionally
// narrowed to one customer.
func (s *EntitlementService) GetEntitlements(ctx context.Context, tenantID string, customerID string) (*EntitlementSet, error) {
	tid, err := shared.IDFromString(tenantID)
	if err != nil {
		return nil, shared.ValidationError("invalid tenant ID")
	}

	cacheKey := tenantID
	if customerID != "" {
		cacheKey = fmt.Sprintf("%s:%s", tenantID, customerID)
	}

	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, cacheKey); err == nil {
			metrics.EntitlementCacheHits.WithLabelValues("hit").Inc()
			return cached, nil
		} else if !errors.Is(err, redis.ErrCacheMiss) {
			s.logger.WarnContext(ctx, "entitlement cache read failed", "error", err)
		}
		metrics.EntitlementCacheHits.WithLabelValues("miss").Inc()
	}

	set, err := s.compute(ctx, tid, customerID)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, *set); err != nil {
			s.logger.WarnContext(ctx, "entitlement cache write failed", "error", err)
		}
	}
	return set, nil
}

// Invalidate drops cached entitlements for a tenant. Usage writes call
// this so metered counters stay fresh; plan and subscription churn
// rides out the cache TTL instead.
func (s *EntitlementService) Invalidate(ctx context.Context, tenantID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeletePrefix(ctx, tenantID); err != nil {
		s.logger.WarnContext(ctx, "entitlement cache invalidation failed", "tenant_id", tenantID, "error", err)
	}
}

// compute walks billable subscriptions to their plans' feature configs.
// When several plans configure the same feature, the first available
// config in subscription order wins; this is a documented simplification
// rather than a priority rule.
func (s *EntitlementService) compute(ctx context.Context, tenantID shared.ID, customerID string) (*EntitlementSet, error) {
	var subs []*subscription.Subscription
	var err error
	if customerID != "" {
		cid, cerr := shared.IDFromString(customerID)
		if cerr != nil {
			return nil, shared.ValidationError("invalid customer ID")
		}
		subs, err = s.subscriptions.ListByCustomer(ctx, tenantID, cid)
	} else {
		subs, err = s.subscriptions.ListBillableByTenant(ctx, tenantID)
	}
	if err != nil {
		return nil, err
	}

	set := &EntitlementSet{
		Entitlements: make(map[string]Entitlement),
		Usage:        make(map[string]int64),
		ComputedAt:   time.Now().UTC(),
	}

	billable := make([]*subscription.Subscription, 0, len(subs))
	earliestPeriodStart := time.Time{}
	planIDs := make([]shared.ID, 0, len(subs))
	for _, sub := range subs {
		if !sub.IsBillable() {
			continue
		}
		billable = append(billable, sub)
		planIDs = append(planIDs, sub.PlanID())
		if earliestPeriodStart.IsZero() || sub.CurrentPeriodStart().Before(earliestPeriodStart) {
			earliestPeriodStart = sub.CurrentPeriodStart()
		}
	}
	if len(billable) == 0 {
		return set, nil
	}

	configs, err := s.configs.ListByPlans(ctx, planIDs)
	if err != nil {
		return nil, err
	}

	meteredCodes := make([]string, 0)
	for _, cfg := range configs {
		if !cfg.IsAvailable() {
			continue
		}
		f, err := s.features.GetByID(ctx, cfg.FeatureID())
		if err != nil {
			if shared.IsNotFound(err) {
				s.logger.WarnContext(ctx, "feature config references missing feature",
					"config_id", cfg.ID().String(),
				)
				continue
			}
			return nil, err
		}

		// First available config for a feature code wins.
		if _, seen := set.Entitlements[f.Code()]; seen {
			continue
		}

		ent := Entitlement{Enabled: true}
		switch cfg.FeatureType() {
		case feature.TypeQuota:
			ent.Limit = cfg.QuotaLimit()
		case feature.TypeMetered:
			ent.PricingTiers = cfg.PricingTiers()
			meteredCodes = append(meteredCodes, f.Code())
		}
		set.Entitlements[f.Code()] = ent
	}

	if len(meteredCodes) > 0 {
		subIDs := make([]shared.ID, len(billable))
		for i, sub := range billable {
			subIDs[i] = sub.ID()
		}
		aggregated, err := s.events.GetAggregatedUsage(ctx, subIDs, earliestPeriodStart)
		if err != nil {
			return nil, err
		}
		for _, agg := range aggregated {
			if _, ok := set.Entitlements[agg.FeatureCode]; ok {
				set.Usage[agg.FeatureCode] = agg.Total
			}
		}
		// Metered features with no events yet still report zero usage.
		for _, code := range meteredCodes {
			if _, ok := set.Usage[code]; !ok {
				set.Usage[code] = 0
			}
		}
	}

	return set, nil
}
