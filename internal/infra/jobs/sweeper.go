package jobs

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/meterly/api/pkg/domain/subscription"
	"github.com/meterly/api/pkg/logger"
)

// enqueueConcurrency bounds parallel enqueues during a sweep.
const enqueueConcurrency = 8

// Enqueuer is the slice of the job client the sweeper needs.
type Enqueuer interface {
	EnqueueSubscriptionRenewal(ctx context.Context, payload SubscriptionTaskPayload) error
	EnqueueSubscriptionExpiry(ctx context.Context, payload SubscriptionTaskPayload) error
}

// SweeperConfig tunes the periodic billing sweeps.
type SweeperConfig struct {
	// RenewalLookahead bounds how far ahead of period end renewals are
	// picked up.
	RenewalLookahead time.Duration
	// GracePeriodDays is how long a past due subscription keeps service
	// before the expiry sweep picks it up.
	GracePeriodDays int
}

// Sweeper scans for subscriptions that need billing work and fans them
// out as individual tasks. It runs on a cron schedule; the per-task
// idempotency keys make overlapping runs safe.
type Sweeper struct {
	subscriptions subscription.Repository
	enqueuer      Enqueuer
	cfg           SweeperConfig
	logger        *logger.Logger
}

// NewSweeper creates a new billing sweeper.
func NewSweeper(subscriptions subscription.Repository, enqueuer Enqueuer, cfg SweeperConfig, log *logger.Logger) *Sweeper {
	return &Sweeper{
		subscriptions: subscriptions,
		enqueuer:      enqueuer,
		cfg:           cfg,
		logger:        log.With("component", "billing_sweeper"),
	}
}

// SweepRenewals enqueues a renewal task for every billable subscription
// whose period ends within the lookahead window.
func (s *Sweeper) SweepRenewals(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(s.cfg.RenewalLookahead)
	subs, err := s.subscriptions.ListDueForRenewal(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to list subscriptions due for renewal: %w", err)
	}

	var queued atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(enqueueConcurrency)
	for _, sub := range subs {
		// Past due subscriptions are handled by the expiry sweep once
		// the grace period lapses; retrying the charge before that is
		// still wanted, so they stay in the renewal sweep too.
		g.Go(func() error {
			err := s.enqueuer.EnqueueSubscriptionRenewal(gctx, SubscriptionTaskPayload{
				SubscriptionID: sub.ID().String(),
				TenantID:       sub.TenantID().String(),
			})
			if err != nil {
				s.logger.ErrorContext(gctx, "failed to enqueue renewal",
					"subscription_id", sub.ID().String(),
					"error", err,
				)
				return nil
			}
			queued.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	s.logger.InfoContext(ctx, "renewal sweep completed",
		"due", len(subs),
		"queued", queued.Load(),
	)
	return nil
}

// SweepExpiries enqueues an expiry task for every past due subscription
// whose billing period ended longer than the grace period ago.
func (s *Sweeper) SweepExpiries(ctx context.Context) error {
	cutoff := time.Now().UTC().AddDate(0, 0, -s.cfg.GracePeriodDays)
	subs, err := s.subscriptions.ListDueForRenewal(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to list lapsed subscriptions: %w", err)
	}

	var queued int
	for _, sub := range subs {
		if sub.Status() != subscription.StatusPastDue {
			continue
		}
		err := s.enqueuer.EnqueueSubscriptionExpiry(ctx, SubscriptionTaskPayload{
			SubscriptionID: sub.ID().String(),
			TenantID:       sub.TenantID().String(),
		})
		if err != nil {
			s.logger.ErrorContext(ctx, "failed to enqueue expiry",
				"subscription_id", sub.ID().String(),
				"error", err,
			)
			continue
		}
		queued++
	}

	s.logger.InfoContext(ctx, "expiry sweep completed",
		"lapsed", len(subs),
		"queued", queued,
	)
	return nil
}
