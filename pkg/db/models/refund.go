package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/dtrandev/marketloop-backend/pkg/enums"
	"github.com/dtrandev/marketloop-backend/pkg/types"
)

// Refund is a buyer-initiated return/refund case on a completed order.
type Refund struct {
	ID             uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID        uuid.UUID          `gorm:"column:order_id;type:uuid;not null;index"`
	BuyerID        uuid.UUID          `gorm:"column:buyer_id;type:uuid;not null"`
	ShopID         uuid.UUID          `gorm:"column:shop_id;type:uuid;not null"`
	AmountCents    int                `gorm:"column:amount_cents;not null"`
	Status         enums.RefundStatus `gorm:"column:status;type:text;not null;default:'requested'"`
	Description    string             `gorm:"column:description;not null"`
	EvidenceImages types.StringList   `gorm:"column:evidence_images;type:jsonb;serializer:json"`
	RejectReason   *string            `gorm:"column:reject_reason"`
	InspectionNote *string            `gorm:"column:inspection_note"`
	ReviewedAt     *time.Time         `gorm:"column:reviewed_at"`
	ClosedAt       *time.Time         `gorm:"column:closed_at"`
	CreatedAt      time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
