package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/dtrandev/marketloop-backend/pkg/types"
)

// WalletTransaction is an append-only credit/debit entry on a user wallet.
// RefundID is unique so a refund can never be paid out twice.
type WalletTransaction struct {
	ID          uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID      uuid.UUID      `gorm:"column:user_id;type:uuid;not null;index"`
	AmountCents int            `gorm:"column:amount_cents;not null"`
	Reason      string         `gorm:"column:reason;not null"`
	RefundID    *uuid.UUID     `gorm:"column:refund_id;type:uuid;uniqueIndex"`
	Metadata    *types.JSONMap `gorm:"column:metadata;type:jsonb;serializer:json"`
	CreatedAt   time.Time      `gorm:"column:created_at;autoCreateTime"`
}
