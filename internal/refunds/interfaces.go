package refunds

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dtrandev/marketloop-backend/pkg/db/models"
	"github.com/dtrandev/marketloop-backend/pkg/enums"
	"github.com/dtrandev/marketloop-backend/pkg/pagination"
)

// Repository defines persistence operations for the refund workflow.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateRefund(ctx context.Context, refund *models.Refund) (*models.Refund, error)
	FindRefund(ctx context.Context, refundID uuid.UUID) (*models.Refund, error)
	FindOpenRefundByOrder(ctx context.Context, orderID uuid.UUID) (*models.Refund, error)
	FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	ClaimStatus(ctx context.Context, refundID uuid.UUID, from []enums.RefundStatus, to enums.RefundStatus, updates map[string]any) (bool, error)
	UpdateRefund(ctx context.Context, refundID uuid.UUID, updates map[string]any) error
	ListBuyerRefunds(ctx context.Context, buyerID uuid.UUID, params pagination.Params) (*RefundList, error)
	ListShopRefunds(ctx context.Context, shopID uuid.UUID, params pagination.Params) (*RefundList, error)
}
