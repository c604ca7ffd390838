package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/meterly/api/pkg/logger"
)

// Client manages enqueueing background jobs using Asynq.
type Client struct {
	client *asynq.Client
	logger *logger.Logger
}

// ClientConfig contains configuration for the job client.
type ClientConfig struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// NewClient creates a new job client for enqueueing tasks.
func NewClient(cfg ClientConfig, log *logger.Logger) (*Client, error) {
	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}

	client := asynq.NewClient(redisOpt)

	return &Client{
		client: client,
		logger: log.With("component", "job_client"),
	}, nil
}

// Close closes the client connection.
func (c *Client) Close() error {
	return c.client.Close()
}

// EnqueueSubscriptionRenewal enqueues a renewal task for one
// subscription. An already-queued task for the same subscription is a
// no-op.
func (c *Client) EnqueueSubscriptionRenewal(ctx context.Context, payload SubscriptionTaskPayload) error {
	task, err := NewSubscriptionRenewalTask(payload)
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}

	info, err := c.client.EnqueueContext(ctx, task)
	if err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			c.logger.Debug("subscription renewal already queued",
				"subscription_id", payload.SubscriptionID,
			)
			return nil
		}
		c.logger.Error("failed to enqueue subscription renewal",
			"subscription_id", payload.SubscriptionID,
			"error", err,
		)
		return fmt.Errorf("failed to enqueue task: %w", err)
	}

	c.logger.Info("subscription renewal queued",
		"task_id", info.ID,
		"subscription_id", payload.SubscriptionID,
		"queue", info.Queue,
	)
	return nil
}

// EnqueueSubscriptionExpiry enqueues an expiry task for one
// subscription.
func (c *Client) EnqueueSubscriptionExpiry(ctx context.Context, payload SubscriptionTaskPayload) error {
	task, err := NewSubscriptionExpiryTask(payload)
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}

	info, err := c.client.EnqueueContext(ctx, task)
	if err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			c.logger.Debug("subscription expiry already queued",
				"subscription_id", payload.SubscriptionID,
			)
			return nil
		}
		c.logger.Error("failed to enqueue subscription expiry",
			"subscription_id", payload.SubscriptionID,
			"error", err,
		)
		return fmt.Errorf("failed to enqueue task: %w", err)
	}

	c.logger.Info("subscription expiry queued",
		"task_id", info.ID,
		"subscription_id", payload.SubscriptionID,
		"queue", info.Queue,
	)
	return nil
}
