package shipments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dtrandev/marketloop-backend/pkg/carrier"
	"github.com/dtrandev/marketloop-backend/pkg/db/models"
	"github.com/dtrandev/marketloop-backend/pkg/enums"
	pkgerrors "github.com/dtrandev/marketloop-backend/pkg/errors"
	"github.com/dtrandev/marketloop-backend/pkg/logger"
	"github.com/dtrandev/marketloop-backend/pkg/types"
)

// Carrier status vocabulary as pushed by the webhook.
const (
	carrierStatusPicked     = "picked"
	carrierStatusStoring    = "storing"
	carrierStatusDelivering = "delivering"
	carrierStatusDelivered  = "delivered"
	carrierStatusReturn     = "return"
	carrierStatusCancel     = "cancel"
)

// Repository defines persistence operations for carrier status pushes.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindShipmentByTracking(ctx context.Context, trackingCode string) (*models.Shipment, error)
	UpdateShipment(ctx context.Context, shipmentID uuid.UUID, updates map[string]any) error
	FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	ClaimOrderStatus(ctx context.Context, orderID uuid.UUID, from, to enums.OrderStatus, updates map[string]any) (bool, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Notifier queues a buyer-facing notification inside the caller's transaction.
type Notifier interface {
	Notify(ctx context.Context, tx *gorm.DB, userID uuid.UUID, typ enums.NotificationType, payload types.JSONMap) error
}

// Service consumes carrier status pushes and mirrors them onto shipments.
type Service interface {
	HandleCarrierUpdate(ctx context.Context, update carrier.TrackingUpdate) error
}

type service struct {
	repo     Repository
	txRunner txRunner
	notifier Notifier
	logg     *logger.Logger
}

// NewService builds the shipment tracking service.
func NewService(repo Repository, tx txRunner, notifier Notifier, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("shipments repository is required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner is required")
	}
	if notifier == nil {
		return nil, fmt.Errorf("notifier is required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &service{repo: repo, txRunner: tx, notifier: notifier, logg: logg}, nil
}

// HandleCarrierUpdate maps one carrier push onto the shipment row. A delivered
// push also completes the order, closing the fulfillment loop without seller
// action. Unknown tracking codes are acknowledged so the carrier stops retrying.
func (s *service) HandleCarrierUpdate(ctx context.Context, update carrier.TrackingUpdate) error {
	if update.TrackingCode == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "tracking code is required")
	}

	status, known := mapCarrierStatus(update.Status)
	if !known {
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
			"tracking_code":  update.TrackingCode,
			"carrier_status": update.Status,
		}), "unknown carrier status ignored")
		return nil
	}

	return s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		shipment, err := repo.FindShipmentByTracking(ctx, update.TrackingCode)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				s.logg.Warn(s.logg.WithField(ctx, "tracking_code", update.TrackingCode),
					"carrier update for unknown tracking code")
				return nil
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load shipment")
		}

		updates := map[string]any{
			"status":     status,
			"updated_at": time.Now().UTC(),
		}
		if len(update.Raw) > 0 {
			updates["last_carrier_payload"] = types.JSONMap(update.Raw)
		}
		if err := repo.UpdateShipment(ctx, shipment.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update shipment")
		}

		if status != enums.ShipmentStatusDelivered {
			return nil
		}

		claimed, err := repo.ClaimOrderStatus(ctx, shipment.OrderID,
			enums.OrderStatusShipping, enums.OrderStatusCompleted,
			map[string]any{"completed_at": time.Now().UTC()})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "complete order")
		}
		if !claimed {
			// The order already left SHIPPING, most likely a replayed push.
			s.logg.Info(s.logg.WithField(ctx, "order_id", shipment.OrderID.String()),
				"delivered push did not transition order")
			return nil
		}

		order, err := repo.FindOrder(ctx, shipment.OrderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
		}
		if err := s.notifier.Notify(ctx, tx, order.BuyerID, enums.NotificationOrderCompleted, types.JSONMap{
			"order_id":      order.ID.String(),
			"tracking_code": update.TrackingCode,
		}); err != nil {
			s.logg.Warn(ctx, "queue delivery notification failed")
		}

		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"order_id":      order.ID.String(),
			"tracking_code": update.TrackingCode,
		}), "order completed by carrier delivery")
		return nil
	})
}

func mapCarrierStatus(raw string) (enums.ShipmentStatus, bool) {
	switch raw {
	case carrierStatusPicked, carrierStatusStoring:
		return enums.ShipmentStatusPickedUp, true
	case carrierStatusDelivering:
		return enums.ShipmentStatusDelivering, true
	case carrierStatusDelivered:
		return enums.ShipmentStatusDelivered, true
	case carrierStatusCancel:
		return enums.ShipmentStatusCancelled, true
	case carrierStatusReturn:
		return enums.ShipmentStatusFailed, true
	default:
		return "", false
	}
}
