package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/dtrandev/marketloop-backend/pkg/enums"
)

// PaymentTransaction records one gateway payment attempt for an order.
// RequestID is the identifier echoed back by the gateway in callbacks.
type PaymentTransaction struct {
	ID           uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID      uuid.UUID              `gorm:"column:order_id;type:uuid;not null;index"`
	RequestID    string                 `gorm:"column:request_id;not null;uniqueIndex"`
	AmountCents  int                    `gorm:"column:amount_cents;not null"`
	Status       enums.PaymentTxnStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	GatewayTxnID *string                `gorm:"column:gateway_txn_id"`
	FailReason   *string                `gorm:"column:fail_reason"`
	CompletedAt  *time.Time             `gorm:"column:completed_at"`
	CreatedAt    time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}
