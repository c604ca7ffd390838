// Package jobs wires background billing work onto Asynq: per-subscription
// renewal and expiry tasks, the client that enqueues them, and the worker
// that processes them.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/meterly/api/pkg/domain/shared"
	"github.com/meterly/api/pkg/domain/subscription"
)

const (
	// TypeSubscriptionRenewal is the task type for renewing one subscription.
	TypeSubscriptionRenewal = "billing:renew_subscription"
	// TypeSubscriptionExpiry is the task type for expiring one lapsed subscription.
	TypeSubscriptionExpiry = "billing:expire_subscription"
)

// SubscriptionTaskPayload identifies the subscription a billing task
// operates on.
type SubscriptionTaskPayload struct {
	SubscriptionID string `json:"subscription_id"`
	TenantID       string `json:"tenant_id"`
}

// NewSubscriptionRenewalTask creates a task for renewing a subscription.
func NewSubscriptionRenewalTask(payload SubscriptionTaskPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal renewal payload: %w", err)
	}

	opts := []asynq.Option{
		asynq.MaxRetry(3),
		asynq.Timeout(1 * time.Minute),
		asynq.Queue("critical"),
		// One renewal per subscription per run; a re-enqueued sweep
		// must not double-charge.
		asynq.TaskID(TypeSubscriptionRenewal + ":" + payload.SubscriptionID),
	}
	return asynq.NewTask(TypeSubscriptionRenewal, data, opts...), nil
}

// NewSubscriptionExpiryTask creates a task for expiring a subscription.
func NewSubscriptionExpiryTask(payload SubscriptionTaskPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal expiry payload: %w", err)
	}

	opts := []asynq.Option{
		asynq.MaxRetry(3),
		asynq.Timeout(30 * time.Second),
		asynq.Queue("default"),
		asynq.TaskID(TypeSubscriptionExpiry + ":" + payload.SubscriptionID),
	}
	return asynq.NewTask(TypeSubscriptionExpiry, data, opts...), nil
}

// SubscriptionProcessor is the slice of the subscription service the
// billing tasks need. Implemented by app.SubscriptionService.
type SubscriptionProcessor interface {
	RenewSubscription(ctx context.Context, id string) (*subscription.Subscription, error)
	ExpireSubscription(ctx context.Context, id string) (*subscription.Subscription, error)
}

// BillingTaskHandler handles subscription renewal and expiry tasks.
type BillingTaskHandler struct {
	processor SubscriptionProcessor
	log       *slog.Logger
}

// NewBillingTaskHandler creates a new billing task handler.
func NewBillingTaskHandler(processor SubscriptionProcessor, log *slog.Logger) *BillingTaskHandler {
	return &BillingTaskHandler{
		processor: processor,
		log:       log,
	}
}

// RegisterHandlers registers the billing task handlers on the mux.
func (h *BillingTaskHandler) RegisterHandlers(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeSubscriptionRenewal, h.HandleRenewal)
	mux.HandleFunc(TypeSubscriptionExpiry, h.HandleExpiry)
}

// HandleRenewal renews one subscription. A declined charge marks the
// subscription past due inside the service, so the task is not retried
// for it; the next sweep picks the subscription up again.
func (h *BillingTaskHandler) HandleRenewal(ctx context.Context, t *asynq.Task) error {
	var payload SubscriptionTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		h.log.Error("failed to unmarshal renewal payload", "error", err)
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	h.log.Info("processing subscription renewal task",
		"subscription_id", payload.SubscriptionID,
		"tenant_id", payload.TenantID,
	)

	sub, err := h.processor.RenewSubscription(ctx, payload.SubscriptionID)
	if err != nil {
		if shared.IsNotFound(err) || shared.IsStateConflict(err) {
			h.log.Warn("skipping subscription renewal",
				"subscription_id", payload.SubscriptionID,
				"reason", err.Error(),
			)
			return nil
		}
		return fmt.Errorf("renew subscription %s: %w", payload.SubscriptionID, err)
	}

	h.log.Info("subscription renewed",
		"subscription_id", payload.SubscriptionID,
		"period_end", sub.CurrentPeriodEnd(),
	)
	return nil
}

// HandleExpiry expires one lapsed subscription.
func (h *BillingTaskHandler) HandleExpiry(ctx context.Context, t *asynq.Task) error {
	var payload SubscriptionTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		h.log.Error("failed to unmarshal expiry payload", "error", err)
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	_, err := h.processor.ExpireSubscription(ctx, payload.SubscriptionID)
	if err != nil {
		if shared.IsNotFound(err) || shared.IsStateConflict(err) {
			h.log.Warn("skipping subscription expiry",
				"subscription_id", payload.SubscriptionID,
				"reason", err.Error(),
			)
			return nil
		}
		return fmt.Errorf("expire subscription %s: %w", payload.SubscriptionID, err)
	}

	h.log.Info("subscription expired", "subscription_id", payload.SubscriptionID)
	return nil
}
