package payments

import (
	"time"

	"github.com/google/uuid"

	"github.com/dtrandev/marketloop-backend/pkg/enums"
)

// InitiateResult is returned to the buyer after a payment intent is created.
type InitiateResult struct {
	PayURL    string `json:"payUrl"`
	RequestID string `json:"requestId"`
}

// TransactionStatus is the read-only projection served to the user-return
// redirect and to polling clients.
type TransactionStatus struct {
	RequestID   string                 `json:"requestId"`
	OrderID     uuid.UUID              `json:"orderId"`
	Status      enums.PaymentTxnStatus `json:"status"`
	AmountCents int                    `json:"amountCents"`
	FailReason  *string                `json:"failReason,omitempty"`
	CompletedAt *time.Time             `json:"completedAt,omitempty"`
}
