package refunds

import (
	"github.com/google/uuid"

	"github.com/dtrandev/marketloop-backend/pkg/db/models"
)

// RequestInput is the buyer's refund request.
type RequestInput struct {
	OrderID        uuid.UUID
	BuyerID        uuid.UUID
	AmountCents    *int
	Description    string
	EvidenceImages []string
}

// ReviewInput is the seller's first decision on a requested refund.
type ReviewInput struct {
	RefundID uuid.UUID
	ShopID   uuid.UUID
	Approve  bool
	Reason   string
}

// ConfirmReturnInput is the seller's inspection verdict on the returned goods.
type ConfirmReturnInput struct {
	RefundID uuid.UUID
	ShopID   uuid.UUID
	Accept   bool
	Note     string
}

// RefundList is one cursor page of refunds.
type RefundList struct {
	Refunds    []models.Refund `json:"refunds"`
	NextCursor string          `json:"nextCursor,omitempty"`
}
