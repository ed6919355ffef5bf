package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/dtrandev/marketloop-backend/pkg/db/models"
	"github.com/dtrandev/marketloop-backend/pkg/enums"
	"github.com/dtrandev/marketloop-backend/pkg/types"
)

// PlaceItemInput is one requested line at checkout.
type PlaceItemInput struct {
	VariantID uuid.UUID
	Qty       int
}

// PlaceInput captures everything needed to create an order.
type PlaceInput struct {
	BuyerID          uuid.UUID
	ShopID           uuid.UUID
	PaymentMethod    enums.PaymentMethod
	ShippingAddress  types.Address
	DeliveryOption   types.DeliveryOption
	Items            []PlaceItemInput
	ShippingFeeCents int
	DiscountCents    int
}

// OrderFilters describe the inputs supported by the order lists.
type OrderFilters struct {
	Status        *enums.OrderStatus
	PaymentStatus *enums.PaymentStatus
	DateFrom      *time.Time
	DateTo        *time.Time
}

// OrderSummary exposes the aggregated fields returned in list endpoints.
type OrderSummary struct {
	ID            uuid.UUID           `json:"id"`
	ShopID        uuid.UUID           `json:"shop_id"`
	BuyerID       uuid.UUID           `json:"buyer_id"`
	Status        enums.OrderStatus   `json:"status"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	PaymentStatus enums.PaymentStatus `json:"payment_status"`
	TotalCents    int                 `json:"total_cents"`
	TotalItems    int                 `json:"total_items"`
	CreatedAt     time.Time           `json:"created_at"`
}

// OrderList wraps the paginated orders plus the next page cursor.
type OrderList struct {
	Orders     []OrderSummary `json:"orders"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

// OrderDetail is the full order view returned by detail endpoints.
type OrderDetail struct {
	Order    models.Order       `json:"order"`
	Items    []models.OrderItem `json:"items"`
	Shipment *models.Shipment   `json:"shipment,omitempty"`
}
