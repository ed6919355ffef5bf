package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/dtrandev/marketloop-backend/pkg/enums"
	"github.com/dtrandev/marketloop-backend/pkg/types"
)

// Order is the per-shop order created at checkout.
type Order struct {
	ID               uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	BuyerID          uuid.UUID             `gorm:"column:buyer_id;type:uuid;not null"`
	ShopID           uuid.UUID             `gorm:"column:shop_id;type:uuid;not null"`
	Status           enums.OrderStatus     `gorm:"column:status;type:text;not null;default:'pending'"`
	PaymentMethod    enums.PaymentMethod   `gorm:"column:payment_method;type:text;not null;default:'cod'"`
	PaymentStatus    enums.PaymentStatus   `gorm:"column:payment_status;type:text;not null;default:'unpaid'"`
	SubtotalCents    int                   `gorm:"column:subtotal_cents;not null"`
	ShippingFeeCents int                   `gorm:"column:shipping_fee_cents;not null;default:0"`
	DiscountCents    int                   `gorm:"column:discount_cents;not null;default:0"`
	TotalCents       int                   `gorm:"column:total_cents;not null"`
	ShippingAddress  *types.Address        `gorm:"column:shipping_address;type:jsonb;serializer:json"`
	DeliveryOption   *types.DeliveryOption `gorm:"column:delivery_option;type:jsonb;serializer:json"`
	CancelReason     *string               `gorm:"column:cancel_reason"`
	PaidAt           *time.Time            `gorm:"column:paid_at"`
	CancelledAt      *time.Time            `gorm:"column:cancelled_at"`
	CompletedAt      *time.Time            `gorm:"column:completed_at"`
	Items            []OrderItem           `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Shipment         *Shipment             `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt        time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}
