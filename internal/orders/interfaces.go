package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dtrandev/marketloop-backend/pkg/db/models"
	"github.com/dtrandev/marketloop-backend/pkg/enums"
	"github.com/dtrandev/marketloop-backend/pkg/pagination"
)

// Repository defines persistence operations for order tables.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error)
	CreateOrderItems(ctx context.Context, items []models.OrderItem) error
	CreateShipment(ctx context.Context, shipment *models.Shipment) (*models.Shipment, error)
	FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	FindOrderItems(ctx context.Context, orderID uuid.UUID) ([]models.OrderItem, error)
	FindVariants(ctx context.Context, variantIDs []uuid.UUID) ([]models.ProductVariant, error)
	ClaimStatus(ctx context.Context, orderID uuid.UUID, from, to enums.OrderStatus, updates map[string]any) (bool, error)
	UpdateOrder(ctx context.Context, orderID uuid.UUID, updates map[string]any) error
	UpdateShipmentByOrder(ctx context.Context, orderID uuid.UUID, updates map[string]any) error
	ListBuyerOrders(ctx context.Context, buyerID uuid.UUID, params pagination.Params, filters OrderFilters) (*OrderList, error)
	ListShopOrders(ctx context.Context, shopID uuid.UUID, params pagination.Params, filters OrderFilters) (*OrderList, error)
	ListAllOrders(ctx context.Context, params pagination.Params, filters OrderFilters) (*OrderList, error)
	FindPendingUnpaidBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error)
}
