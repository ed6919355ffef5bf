package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/dtrandev/marketloop-backend/internal/inventory"
	"github.com/dtrandev/marketloop-backend/internal/orders"
	"github.com/dtrandev/marketloop-backend/pkg/db/models"
	"github.com/dtrandev/marketloop-backend/pkg/enums"
	"github.com/dtrandev/marketloop-backend/pkg/logger"
	"github.com/dtrandev/marketloop-backend/pkg/types"
)

const (
	defaultUnpaidTTL = 24 * time.Hour
	expiryBatchLimit = 200
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type pendingOrderReader interface {
	FindPendingUnpaidBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error)
}

type expiryOrderRepo interface {
	FindOrderItems(ctx context.Context, orderID uuid.UUID) ([]models.OrderItem, error)
	ClaimStatus(ctx context.Context, orderID uuid.UUID, from, to enums.OrderStatus, updates map[string]any) (bool, error)
}

type expiryRepoFactory func(tx *gorm.DB) expiryOrderRepo

func defaultExpiryRepo(tx *gorm.DB) expiryOrderRepo {
	return orders.NewRepository(tx)
}

type expiryNotifier interface {
	Notify(ctx context.Context, tx *gorm.DB, userID uuid.UUID, typ enums.NotificationType, payload types.JSONMap) error
}

// OrderExpiryJobParams configure the unpaid-order expiry job.
type OrderExpiryJobParams struct {
	Logger        *logger.Logger
	DB            txRunner
	PendingReader pendingOrderReader
	Releaser      inventory.Releaser
	Notifier      expiryNotifier
	RepoFactory   expiryRepoFactory
	UnpaidTTL     time.Duration
}

// NewOrderExpiryJob builds the cron job that cancels stale unpaid online orders.
func NewOrderExpiryJob(params OrderExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.PendingReader == nil {
		return nil, fmt.Errorf("pending orders reader required")
	}
	if params.Releaser == nil {
		return nil, fmt.Errorf("inventory releaser required")
	}
	if params.Notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	repoFactory := params.RepoFactory
	if repoFactory == nil {
		repoFactory = defaultExpiryRepo
	}
	ttl := params.UnpaidTTL
	if ttl <= 0 {
		ttl = defaultUnpaidTTL
	}
	return &orderExpiryJob{
		logg:          params.Logger,
		db:            params.DB,
		pendingReader: params.PendingReader,
		releaser:      params.Releaser,
		notifier:      params.Notifier,
		repoFactory:   repoFactory,
		unpaidTTL:     ttl,
		now:           time.Now,
	}, nil
}

type orderExpiryJob struct {
	logg          *logger.Logger
	db            txRunner
	pendingReader pendingOrderReader
	releaser      inventory.Releaser
	notifier      expiryNotifier
	repoFactory   expiryRepoFactory
	unpaidTTL     time.Duration
	now           func() time.Time
}

func (j *orderExpiryJob) Name() string { return "order-expiry" }

func (j *orderExpiryJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.unpaidTTL)
	stale, err := j.pendingReader.FindPendingUnpaidBefore(ctx, cutoff, expiryBatchLimit)
	if err != nil {
		return fmt.Errorf("query stale unpaid orders: %w", err)
	}

	var errs []error
	expired := 0
	for _, order := range stale {
		if err := j.expireOrder(ctx, order); err != nil {
			errs = append(errs, fmt.Errorf("expire order %s: %w", order.ID, err))
			continue
		}
		expired++
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":  cutoff,
		"scanned": len(stale),
		"expired": expired,
	})
	j.logg.Info(logCtx, "order expiry loop complete")
	return multierr.Combine(errs...)
}

func (j *orderExpiryJob) expireOrder(ctx context.Context, order models.Order) error {
	return j.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := j.repoFactory(tx)
		now := j.now().UTC()

		claimed, err := repo.ClaimStatus(ctx, order.ID,
			enums.OrderStatusPending, enums.OrderStatusCancelled,
			map[string]any{
				"cancel_reason": "payment window expired",
				"cancelled_at":  now,
			})
		if err != nil {
			return err
		}
		if !claimed {
			// Paid or cancelled since the scan; leave it alone.
			return nil
		}

		items, err := repo.FindOrderItems(ctx, order.ID)
		if err != nil {
			return err
		}
		for _, item := range items {
			if err := j.releaser.Release(ctx, tx, item.VariantID, item.Qty); err != nil {
				return err
			}
		}

		if err := j.notifier.Notify(ctx, tx, order.BuyerID, enums.NotificationOrderExpired, types.JSONMap{
			"order_id": order.ID.String(),
			"reason":   "payment window expired",
		}); err != nil {
			j.logg.Warn(j.logg.WithField(ctx, "order_id", order.ID.String()),
				"queue order expired notification failed")
		}
		return nil
	})
}
