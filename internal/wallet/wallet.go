package wallet

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dtrandev/marketloop-backend/pkg/db"
	"github.com/dtrandev/marketloop-backend/pkg/db/models"
	pkgerrors "github.com/dtrandev/marketloop-backend/pkg/errors"
	"github.com/dtrandev/marketloop-backend/pkg/logger"
	"github.com/dtrandev/marketloop-backend/pkg/types"
)

// Crediter posts a refund payout onto a buyer wallet. The unique refund id
// column makes a second payout for the same refund impossible.
type Crediter interface {
	Credit(ctx context.Context, tx *gorm.DB, userID uuid.UUID, amountCents int, refundID uuid.UUID, reason string) (*models.WalletTransaction, error)
}

type crediter struct {
	db     *gorm.DB
	logger *logger.Logger
}

// NewCrediter builds the wallet payout writer.
func NewCrediter(gdb *gorm.DB, logg *logger.Logger) (Crediter, error) {
	if gdb == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "database handle is required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger is required")
	}
	return &crediter{db: gdb, logger: logg}, nil
}

func (c *crediter) Credit(ctx context.Context, tx *gorm.DB, userID uuid.UUID, amountCents int, refundID uuid.UUID, reason string) (*models.WalletTransaction, error) {
	if tx == nil {
		tx = c.db
	}
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if amountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "credit amount must be positive")
	}
	if refundID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund id is required")
	}
	if reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reason is required")
	}

	entry := &models.WalletTransaction{
		ID:          uuid.New(),
		UserID:      userID,
		AmountCents: amountCents,
		Reason:      reason,
		RefundID:    &refundID,
		Metadata:    &types.JSONMap{"refund_id": refundID.String()},
	}
	if err := tx.WithContext(ctx).Create(entry).Error; err != nil {
		if db.IsUniqueViolation(err, "refund_id") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "refund already paid out")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create wallet transaction")
	}

	c.logger.Info(c.logger.WithFields(ctx, map[string]any{
		"user_id":   userID.String(),
		"refund_id": refundID.String(),
		"amount":    amountCents,
	}), "wallet credited")
	return entry, nil
}
