package payments

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dtrandev/marketloop-backend/pkg/db/models"
	"github.com/dtrandev/marketloop-backend/pkg/enums"
	"github.com/dtrandev/marketloop-backend/pkg/paygate"
)

// Repository defines persistence operations for payment reconciliation.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateTransaction(ctx context.Context, txn *models.PaymentTransaction) (*models.PaymentTransaction, error)
	FindTransactionByRequestID(ctx context.Context, requestID string) (*models.PaymentTransaction, error)
	FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	ClaimTransactionStatus(ctx context.Context, txnID uuid.UUID, to enums.PaymentTxnStatus, updates map[string]any) (bool, error)
	UpdateTransaction(ctx context.Context, txnID uuid.UUID, updates map[string]any) error
	MarkOrderPaid(ctx context.Context, orderID uuid.UUID, paidAt time.Time) error
}

// Gateway is the payment-provider surface reconciliation needs.
type Gateway interface {
	CreatePaymentIntent(ctx context.Context, params paygate.PaymentIntentParams) (*paygate.PaymentIntent, error)
	DecodeNotification(body []byte) (*paygate.Notification, error)
}
