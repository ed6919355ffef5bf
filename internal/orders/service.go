package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dtrandev/marketloop-backend/internal/inventory"
	"github.com/dtrandev/marketloop-backend/pkg/carrier"
	"github.com/dtrandev/marketloop-backend/pkg/db/models"
	"github.com/dtrandev/marketloop-backend/pkg/enums"
	pkgerrors "github.com/dtrandev/marketloop-backend/pkg/errors"
	"github.com/dtrandev/marketloop-backend/pkg/logger"
	"github.com/dtrandev/marketloop-backend/pkg/pagination"
	"github.com/dtrandev/marketloop-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ShipmentGateway is the carrier surface the order lifecycle needs.
type ShipmentGateway interface {
	CreateShipment(ctx context.Context, params carrier.ShipmentCreateParams) (*carrier.ShipmentInfo, error)
	CancelShipment(ctx context.Context, trackingCode string) error
}

// Notifier queues an in-app notification inside the caller's transaction.
type Notifier interface {
	Notify(ctx context.Context, tx *gorm.DB, userID uuid.UUID, typ enums.NotificationType, payload types.JSONMap) error
}

// Service defines order lifecycle operations beyond repository reads.
type Service interface {
	Place(ctx context.Context, input PlaceInput) (*models.Order, error)
	ConfirmAndShip(ctx context.Context, orderID, shopID uuid.UUID) (*models.Order, error)
	StartShipping(ctx context.Context, orderID, shopID uuid.UUID) error
	Cancel(ctx context.Context, input CancelInput) error
	MarkDelivered(ctx context.Context, orderID, shopID uuid.UUID) error
	AdminOverrideStatus(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus, adminID uuid.UUID) error
	GetOrderForBuyer(ctx context.Context, orderID, buyerID uuid.UUID) (*OrderDetail, error)
	GetOrderForShop(ctx context.Context, orderID, shopID uuid.UUID) (*OrderDetail, error)
	GetOrder(ctx context.Context, orderID uuid.UUID) (*OrderDetail, error)
	ListBuyerOrders(ctx context.Context, buyerID uuid.UUID, params pagination.Params, filters OrderFilters) (*OrderList, error)
	ListShopOrders(ctx context.Context, shopID uuid.UUID, params pagination.Params, filters OrderFilters) (*OrderList, error)
	ListAllOrders(ctx context.Context, params pagination.Params, filters OrderFilters) (*OrderList, error)
}

// CancelInput captures a seller-side cancellation.
type CancelInput struct {
	OrderID uuid.UUID
	ShopID  uuid.UUID
	Reason  string
}

type service struct {
	repo      Repository
	tx        txRunner
	shipper   ShipmentGateway
	reserver  inventory.Reserver
	releaser  inventory.Releaser
	committer inventory.Committer
	restocker inventory.Restocker
	notifier  Notifier
	logg      *logger.Logger
}

// NewService builds an order service with the required dependencies.
func NewService(repo Repository, tx txRunner, shipper ShipmentGateway, reserver inventory.Reserver, releaser inventory.Releaser, committer inventory.Committer, restocker inventory.Restocker, notifier Notifier, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if shipper == nil {
		return nil, fmt.Errorf("shipment gateway required")
	}
	if reserver == nil {
		return nil, fmt.Errorf("inventory reserver required")
	}
	if releaser == nil {
		return nil, fmt.Errorf("inventory releaser required")
	}
	if committer == nil {
		return nil, fmt.Errorf("inventory committer required")
	}
	if restocker == nil {
		return nil, fmt.Errorf("inventory restocker required")
	}
	if notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:      repo,
		tx:        tx,
		shipper:   shipper,
		reserver:  reserver,
		releaser:  releaser,
		committer: committer,
		restocker: restocker,
		notifier:  notifier,
		logg:      logg,
	}, nil
}

func (s *service) Place(ctx context.Context, input PlaceInput) (*models.Order, error) {
	if input.BuyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if input.ShopID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shop id required")
	}
	if !input.PaymentMethod.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method")
	}
	if len(input.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order requires at least one item")
	}
	if err := input.ShippingAddress.Validate(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid shipping address")
	}
	if input.ShippingFeeCents < 0 || input.DiscountCents < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "fees must not be negative")
	}
	for _, item := range input.Items {
		if item.Qty <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "item qty must be positive")
		}
	}

	var created *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		variantIDs := make([]uuid.UUID, 0, len(input.Items))
		for _, item := range input.Items {
			variantIDs = append(variantIDs, item.VariantID)
		}
		variants, err := repo.FindVariants(ctx, variantIDs)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load variants")
		}
		byID := make(map[uuid.UUID]models.ProductVariant, len(variants))
		for _, v := range variants {
			byID[v.ID] = v
		}

		requests := make([]inventory.ReservationRequest, 0, len(input.Items))
		lines := make([]models.OrderItem, 0, len(input.Items))
		subtotal := 0
		for _, item := range input.Items {
			variant, ok := byID[item.VariantID]
			if !ok {
				return pkgerrors.New(pkgerrors.CodeNotFound, "variant not found")
			}
			if variant.ShopID != input.ShopID {
				return pkgerrors.New(pkgerrors.CodeValidation, "variant does not belong to shop")
			}
			if !variant.IsActive {
				return pkgerrors.New(pkgerrors.CodeValidation, "variant is not for sale")
			}
			lineTotal := variant.PriceCents * item.Qty
			subtotal += lineTotal
			lines = append(lines, models.OrderItem{
				VariantID:      variant.ID,
				ProductName:    variant.ProductName,
				VariantName:    variant.VariantName,
				UnitPriceCents: variant.PriceCents,
				Qty:            item.Qty,
				WeightGrams:    variant.WeightGrams * item.Qty,
				TotalCents:     lineTotal,
			})
			requests = append(requests, inventory.ReservationRequest{VariantID: variant.ID, Qty: item.Qty})
		}

		results, err := s.reserver.Reserve(ctx, tx, requests)
		if err != nil {
			return err
		}
		for _, res := range results {
			if !res.Reserved {
				return pkgerrors.New(pkgerrors.CodeStateConflict,
					fmt.Sprintf("insufficient stock for variant %s", res.VariantID))
			}
		}

		total := subtotal + input.ShippingFeeCents - input.DiscountCents
		if total < 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "discount exceeds order total")
		}

		address := input.ShippingAddress
		option := input.DeliveryOption
		order := &models.Order{
			BuyerID:          input.BuyerID,
			ShopID:           input.ShopID,
			Status:           enums.OrderStatusPending,
			PaymentMethod:    input.PaymentMethod,
			PaymentStatus:    enums.PaymentStatusUnpaid,
			SubtotalCents:    subtotal,
			ShippingFeeCents: input.ShippingFeeCents,
			DiscountCents:    input.DiscountCents,
			TotalCents:       total,
			ShippingAddress:  &address,
			DeliveryOption:   &option,
		}
		if _, err := repo.CreateOrder(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}
		for i := range lines {
			lines[i].OrderID = order.ID
		}
		if err := repo.CreateOrderItems(ctx, lines); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order items")
		}
		order.Items = lines

		if err := s.notifier.Notify(ctx, tx, order.BuyerID, enums.NotificationOrderPlaced, types.JSONMap{
			"order_id": order.ID.String(),
		}); err != nil {
			s.logg.Warn(ctx, "queue order placed notification failed")
		}

		created = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *service) ConfirmAndShip(ctx context.Context, orderID, shopID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if shopID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "shop context missing")
	}

	var confirmed *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.loadOwnedOrder(ctx, repo, orderID, shopID)
		if err != nil {
			return err
		}
		if order.Status != enums.OrderStatusPending {
			return stateConflict(order.Status)
		}
		if order.ShippingAddress == nil || order.DeliveryOption == nil {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order is missing delivery details")
		}

		weight := 0
		codAmount := 0
		for _, item := range order.Items {
			weight += item.WeightGrams
		}
		if order.PaymentMethod == enums.PaymentMethodCOD {
			codAmount = order.TotalCents
		}

		info, err := s.shipper.CreateShipment(ctx, carrier.ShipmentCreateParams{
			OrderCode:      order.ID.String(),
			ToAddress:      *order.ShippingAddress,
			ServiceID:      order.DeliveryOption.ServiceID,
			ServiceTypeID:  order.DeliveryOption.ServiceTypeID,
			WeightGrams:    weight,
			CODAmountCents: codAmount,
			Note:           order.DeliveryOption.Note,
		})
		if err != nil {
			return err
		}

		shipment := &models.Shipment{
			OrderID:            order.ID,
			TrackingCode:       info.TrackingCode,
			Status:             enums.ShipmentStatusCreated,
			WeightGrams:        weight,
			FeeCents:           info.FeeCents,
			CODAmountCents:     codAmount,
			ExpectedDeliveryAt: info.ExpectedDeliveryAt,
		}
		if _, err := repo.CreateShipment(ctx, shipment); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create shipment")
		}

		claimed, err := repo.ClaimStatus(ctx, order.ID, enums.OrderStatusPending, enums.OrderStatusProcessing, nil)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		if !claimed {
			return s.conflictWithCurrent(ctx, repo, order.ID)
		}

		for _, item := range order.Items {
			if err := s.committer.Commit(ctx, tx, item.VariantID, item.Qty); err != nil {
				return err
			}
		}

		if err := s.notifier.Notify(ctx, tx, order.BuyerID, enums.NotificationOrderConfirmed, types.JSONMap{
			"order_id":      order.ID.String(),
			"tracking_code": info.TrackingCode,
		}); err != nil {
			s.logg.Warn(ctx, "queue order confirmed notification failed")
		}

		order.Status = enums.OrderStatusProcessing
		order.Shipment = shipment
		confirmed = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return confirmed, nil
}

func (s *service) StartShipping(ctx context.Context, orderID, shopID uuid.UUID) error {
	if orderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if shopID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeForbidden, "shop context missing")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.loadOwnedOrder(ctx, repo, orderID, shopID)
		if err != nil {
			return err
		}
		if order.Status != enums.OrderStatusProcessing {
			return stateConflict(order.Status)
		}
		if order.Shipment == nil {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order has no shipment")
		}

		claimed, err := repo.ClaimStatus(ctx, order.ID, enums.OrderStatusProcessing, enums.OrderStatusShipping, nil)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		if !claimed {
			return s.conflictWithCurrent(ctx, repo, order.ID)
		}

		if err := repo.UpdateShipmentByOrder(ctx, order.ID, map[string]any{
			"status": enums.ShipmentStatusDelivering,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update shipment status")
		}

		if err := s.notifier.Notify(ctx, tx, order.BuyerID, enums.NotificationOrderShipping, types.JSONMap{
			"order_id": order.ID.String(),
		}); err != nil {
			s.logg.Warn(ctx, "queue order shipping notification failed")
		}
		return nil
	})
}

func (s *service) Cancel(ctx context.Context, input CancelInput) error {
	if input.OrderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.ShopID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeForbidden, "shop context missing")
	}
	if input.Reason == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "cancel reason required")
	}

	var trackingCode string
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.loadOwnedOrder(ctx, repo, input.OrderID, input.ShopID)
		if err != nil {
			return err
		}
		if order.Status != enums.OrderStatusPending && order.Status != enums.OrderStatusProcessing {
			return stateConflict(order.Status)
		}
		prevStatus := order.Status

		now := time.Now().UTC()
		claimed, err := repo.ClaimStatus(ctx, order.ID, prevStatus, enums.OrderStatusCancelled, map[string]any{
			"cancel_reason": input.Reason,
			"cancelled_at":  now,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		if !claimed {
			return s.conflictWithCurrent(ctx, repo, order.ID)
		}

		// Stock committed at confirm time is gone from the reserve ledger, so the
		// add-back path differs by how far the order got.
		for _, item := range order.Items {
			if prevStatus == enums.OrderStatusPending {
				if err := s.releaser.Release(ctx, tx, item.VariantID, item.Qty); err != nil {
					return err
				}
			} else {
				if err := s.restocker.Restock(ctx, tx, item.VariantID, item.Qty); err != nil {
					return err
				}
			}
		}

		if order.Shipment != nil {
			if err := repo.UpdateShipmentByOrder(ctx, order.ID, map[string]any{
				"status": enums.ShipmentStatusCancelled,
			}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update shipment status")
			}
			trackingCode = order.Shipment.TrackingCode
		}

		if err := s.notifier.Notify(ctx, tx, order.BuyerID, enums.NotificationOrderCancelled, types.JSONMap{
			"order_id": order.ID.String(),
			"reason":   input.Reason,
		}); err != nil {
			s.logg.Warn(ctx, "queue order cancelled notification failed")
		}
		return nil
	})
	if err != nil {
		return err
	}

	// Carrier cancellation happens after commit and never blocks the order.
	if trackingCode != "" {
		if cerr := s.shipper.CancelShipment(ctx, trackingCode); cerr != nil {
			s.logg.Warn(s.logg.WithField(ctx, "tracking_code", trackingCode), "carrier cancellation failed")
		}
	}
	return nil
}

func (s *service) MarkDelivered(ctx context.Context, orderID, shopID uuid.UUID) error {
	if orderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if shopID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeForbidden, "shop context missing")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.loadOwnedOrder(ctx, repo, orderID, shopID)
		if err != nil {
			return err
		}
		if order.Status != enums.OrderStatusShipping {
			return stateConflict(order.Status)
		}

		now := time.Now().UTC()
		claimed, err := repo.ClaimStatus(ctx, order.ID, enums.OrderStatusShipping, enums.OrderStatusCompleted, map[string]any{
			"completed_at": now,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		if !claimed {
			return s.conflictWithCurrent(ctx, repo, order.ID)
		}

		if err := repo.UpdateShipmentByOrder(ctx, order.ID, map[string]any{
			"status": enums.ShipmentStatusDelivered,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update shipment status")
		}

		if err := s.notifier.Notify(ctx, tx, order.BuyerID, enums.NotificationOrderCompleted, types.JSONMap{
			"order_id": order.ID.String(),
		}); err != nil {
			s.logg.Warn(ctx, "queue order completed notification failed")
		}
		return nil
	})
}

func (s *service) AdminOverrideStatus(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus, adminID uuid.UUID) error {
	if orderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if adminID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if !status.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid order status")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindOrder(ctx, orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if order.Status == status {
			return nil
		}

		if err := repo.UpdateOrder(ctx, order.ID, map[string]any{"status": status}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "override order status")
		}

		fields := map[string]any{
			"order_id":    order.ID.String(),
			"admin_id":    adminID.String(),
			"from_status": order.Status.String(),
			"to_status":   status.String(),
		}
		s.logg.Info(s.logg.WithFields(ctx, fields), "admin order status override")
		return nil
	})
}

func (s *service) GetOrderForBuyer(ctx context.Context, orderID, buyerID uuid.UUID) (*OrderDetail, error) {
	detail, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if detail.Order.BuyerID != buyerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to buyer")
	}
	return detail, nil
}

func (s *service) GetOrderForShop(ctx context.Context, orderID, shopID uuid.UUID) (*OrderDetail, error) {
	detail, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if detail.Order.ShopID != shopID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to shop")
	}
	return detail, nil
}

func (s *service) GetOrder(ctx context.Context, orderID uuid.UUID) (*OrderDetail, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.repo.FindOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return &OrderDetail{Order: *order, Items: order.Items, Shipment: order.Shipment}, nil
}

func (s *service) ListBuyerOrders(ctx context.Context, buyerID uuid.UUID, params pagination.Params, filters OrderFilters) (*OrderList, error) {
	if buyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	list, err := s.repo.ListBuyerOrders(ctx, buyerID, params, filters)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list buyer orders")
	}
	return list, nil
}

func (s *service) ListShopOrders(ctx context.Context, shopID uuid.UUID, params pagination.Params, filters OrderFilters) (*OrderList, error) {
	if shopID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "shop context missing")
	}
	list, err := s.repo.ListShopOrders(ctx, shopID, params, filters)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list shop orders")
	}
	return list, nil
}

func (s *service) ListAllOrders(ctx context.Context, params pagination.Params, filters OrderFilters) (*OrderList, error) {
	list, err := s.repo.ListAllOrders(ctx, params, filters)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return list, nil
}

func (s *service) loadOwnedOrder(ctx context.Context, repo Repository, orderID, shopID uuid.UUID) (*models.Order, error) {
	order, err := repo.FindOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order.ShopID != shopID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to shop")
	}
	return order, nil
}

func (s *service) conflictWithCurrent(ctx context.Context, repo Repository, orderID uuid.UUID) error {
	current, err := repo.FindOrder(ctx, orderID)
	if err != nil {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "order status changed concurrently")
	}
	return stateConflict(current.Status)
}

func stateConflict(current enums.OrderStatus) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict,
		fmt.Sprintf("operation not allowed while order is %s", current))
}
