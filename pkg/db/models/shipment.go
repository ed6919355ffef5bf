package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/dtrandev/marketloop-backend/pkg/enums"
	"github.com/dtrandev/marketloop-backend/pkg/types"
)

// Shipment tracks the carrier consignment created when a seller confirms an order.
type Shipment struct {
	ID                 uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID            uuid.UUID            `gorm:"column:order_id;type:uuid;not null;uniqueIndex"`
	TrackingCode       string               `gorm:"column:tracking_code;not null;uniqueIndex"`
	Status             enums.ShipmentStatus `gorm:"column:status;type:text;not null;default:'created'"`
	WeightGrams        int                  `gorm:"column:weight_grams;not null;default:0"`
	FeeCents           int                  `gorm:"column:fee_cents;not null;default:0"`
	CODAmountCents     int                  `gorm:"column:cod_amount_cents;not null;default:0"`
	ExpectedDeliveryAt *time.Time           `gorm:"column:expected_delivery_at"`
	LastCarrierPayload types.JSONMap        `gorm:"column:last_carrier_payload;type:jsonb;serializer:json"`
	CreatedAt          time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}
