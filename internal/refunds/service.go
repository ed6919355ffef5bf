package refunds

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dtrandev/marketloop-backend/internal/wallet"
	"github.com/dtrandev/marketloop-backend/pkg/db/models"
	"github.com/dtrandev/marketloop-backend/pkg/enums"
	pkgerrors "github.com/dtrandev/marketloop-backend/pkg/errors"
	"github.com/dtrandev/marketloop-backend/pkg/logger"
	"github.com/dtrandev/marketloop-backend/pkg/pagination"
	"github.com/dtrandev/marketloop-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Notifier queues a buyer-facing notification inside the caller's transaction.
type Notifier interface {
	Notify(ctx context.Context, tx *gorm.DB, userID uuid.UUID, typ enums.NotificationType, payload types.JSONMap) error
}

// Service drives the refund workflow nested under completed orders.
type Service interface {
	Request(ctx context.Context, input RequestInput) (*models.Refund, error)
	Review(ctx context.Context, input ReviewInput) (*models.Refund, error)
	MarkReturning(ctx context.Context, buyerID, refundID uuid.UUID) (*models.Refund, error)
	ConfirmReturn(ctx context.Context, input ConfirmReturnInput) (*models.Refund, error)
	GetRefundForBuyer(ctx context.Context, buyerID, refundID uuid.UUID) (*models.Refund, error)
	GetRefundForShop(ctx context.Context, shopID, refundID uuid.UUID) (*models.Refund, error)
	ListBuyerRefunds(ctx context.Context, buyerID uuid.UUID, params pagination.Params) (*RefundList, error)
	ListShopRefunds(ctx context.Context, shopID uuid.UUID, params pagination.Params) (*RefundList, error)
}

type service struct {
	repo     Repository
	txRunner txRunner
	crediter wallet.Crediter
	notifier Notifier
	logg     *logger.Logger
}

// NewService builds the refund workflow service.
func NewService(repo Repository, tx txRunner, crediter wallet.Crediter, notifier Notifier, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("refunds repository is required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner is required")
	}
	if crediter == nil {
		return nil, fmt.Errorf("wallet crediter is required")
	}
	if notifier == nil {
		return nil, fmt.Errorf("notifier is required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &service{repo: repo, txRunner: tx, crediter: crediter, notifier: notifier, logg: logg}, nil
}

// Request opens a refund case against a completed order the buyer owns. Only
// one open case per order is allowed at a time.
func (s *service) Request(ctx context.Context, input RequestInput) (*models.Refund, error) {
	if input.BuyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer id is required")
	}
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	if input.Description == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "description is required")
	}
	if len(input.EvidenceImages) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one evidence image is required")
	}

	var created *models.Refund
	err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := repo.FindOrder(ctx, input.OrderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
		}
		if order.BuyerID != input.BuyerID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to caller")
		}
		if order.Status != enums.OrderStatusCompleted {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("refund not allowed while order is %s", order.Status))
		}

		amount := order.TotalCents
		if input.AmountCents != nil {
			amount = *input.AmountCents
		}
		if amount <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "refund amount must be positive")
		}
		if amount > order.TotalCents {
			return pkgerrors.New(pkgerrors.CodeValidation, "refund amount exceeds order total")
		}

		if _, err := repo.FindOpenRefundByOrder(ctx, order.ID); err == nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "an open refund already exists for this order")
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check open refunds")
		}

		created, err = repo.CreateRefund(ctx, &models.Refund{
			ID:             uuid.New(),
			OrderID:        order.ID,
			BuyerID:        order.BuyerID,
			ShopID:         order.ShopID,
			AmountCents:    amount,
			Status:         enums.RefundStatusRequested,
			Description:    input.Description,
			EvidenceImages: input.EvidenceImages,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create refund")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"refund_id": created.ID.String(),
		"order_id":  created.OrderID.String(),
		"amount":    created.AmountCents,
	}), "refund requested")
	return created, nil
}

// Review records the seller's first decision. Approval always routes through
// the waiting-return state; goods come back before money does.
func (s *service) Review(ctx context.Context, input ReviewInput) (*models.Refund, error) {
	if input.RefundID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund id is required")
	}
	if !input.Approve && input.Reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rejection reason is required")
	}

	var reviewed *models.Refund
	err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		refund, err := s.loadForShop(ctx, repo, input.ShopID, input.RefundID)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		from := []enums.RefundStatus{enums.RefundStatusRequested}
		var claimed bool
		if input.Approve {
			claimed, err = repo.ClaimStatus(ctx, refund.ID, from, enums.RefundStatusApprovedWaitingReturn, map[string]any{
				"reviewed_at": now,
			})
		} else {
			claimed, err = repo.ClaimStatus(ctx, refund.ID, from, enums.RefundStatusRejected, map[string]any{
				"reject_reason": input.Reason,
				"reviewed_at":   now,
				"closed_at":     now,
			})
		}
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "claim refund status")
		}
		if !claimed {
			return s.conflictWithCurrent(ctx, repo, refund.ID)
		}

		reviewed, err = repo.FindRefund(ctx, refund.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload refund")
		}
		if err := s.notifier.Notify(ctx, tx, reviewed.BuyerID, enums.NotificationRefundUpdate, types.JSONMap{
			"refund_id": reviewed.ID.String(),
			"order_id":  reviewed.OrderID.String(),
			"status":    reviewed.Status.String(),
		}); err != nil {
			s.logg.Warn(ctx, "queue refund review notification failed")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reviewed, nil
}

// MarkReturning records the buyer's "I shipped it back" signal.
func (s *service) MarkReturning(ctx context.Context, buyerID, refundID uuid.UUID) (*models.Refund, error) {
	if refundID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund id is required")
	}

	var updated *models.Refund
	err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		refund, err := s.loadForBuyer(ctx, repo, buyerID, refundID)
		if err != nil {
			return err
		}

		claimed, err := repo.ClaimStatus(ctx, refund.ID,
			[]enums.RefundStatus{enums.RefundStatusApprovedWaitingReturn},
			enums.RefundStatusReturning, nil)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "claim refund status")
		}
		if !claimed {
			return s.conflictWithCurrent(ctx, repo, refund.ID)
		}

		updated, err = repo.FindRefund(ctx, refund.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload refund")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// ConfirmReturn settles the case after the seller inspects the returned goods.
// Acceptance credits the buyer wallet and completes the refund in one
// transaction; the status claim makes a second payout impossible.
func (s *service) ConfirmReturn(ctx context.Context, input ConfirmReturnInput) (*models.Refund, error) {
	if input.RefundID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund id is required")
	}
	if !input.Accept && input.Note == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "inspection note is required when rejecting")
	}

	var settled *models.Refund
	err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		refund, err := s.loadForShop(ctx, repo, input.ShopID, input.RefundID)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		from := []enums.RefundStatus{
			enums.RefundStatusApprovedWaitingReturn,
			enums.RefundStatusReturning,
		}

		if !input.Accept {
			claimed, err := repo.ClaimStatus(ctx, refund.ID, from, enums.RefundStatusRejected, map[string]any{
				"inspection_note": input.Note,
				"closed_at":       now,
			})
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "claim refund status")
			}
			if !claimed {
				return s.conflictWithCurrent(ctx, repo, refund.ID)
			}
		} else {
			claimed, err := repo.ClaimStatus(ctx, refund.ID, from, enums.RefundStatusApprovedRefunding, nil)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "claim refund status")
			}
			if !claimed {
				return s.conflictWithCurrent(ctx, repo, refund.ID)
			}

			reason := fmt.Sprintf("refund payout for order %s", refund.OrderID)
			if _, err := s.crediter.Credit(ctx, tx, refund.BuyerID, refund.AmountCents, refund.ID, reason); err != nil {
				return err
			}

			updates := map[string]any{
				"status":    enums.RefundStatusCompleted,
				"closed_at": now,
			}
			if input.Note != "" {
				updates["inspection_note"] = input.Note
			}
			if err := repo.UpdateRefund(ctx, refund.ID, updates); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "complete refund")
			}
		}

		settled, err = repo.FindRefund(ctx, refund.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload refund")
		}
		if err := s.notifier.Notify(ctx, tx, settled.BuyerID, enums.NotificationRefundUpdate, types.JSONMap{
			"refund_id": settled.ID.String(),
			"order_id":  settled.OrderID.String(),
			"status":    settled.Status.String(),
		}); err != nil {
			s.logg.Warn(ctx, "queue refund settlement notification failed")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"refund_id": settled.ID.String(),
		"status":    settled.Status.String(),
	}), "refund return confirmed")
	return settled, nil
}

func (s *service) GetRefundForBuyer(ctx context.Context, buyerID, refundID uuid.UUID) (*models.Refund, error) {
	return s.loadForBuyer(ctx, s.repo, buyerID, refundID)
}

func (s *service) GetRefundForShop(ctx context.Context, shopID, refundID uuid.UUID) (*models.Refund, error) {
	return s.loadForShop(ctx, s.repo, shopID, refundID)
}

func (s *service) ListBuyerRefunds(ctx context.Context, buyerID uuid.UUID, params pagination.Params) (*RefundList, error) {
	if buyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer id is required")
	}
	list, err := s.repo.ListBuyerRefunds(ctx, buyerID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list refunds")
	}
	return list, nil
}

func (s *service) ListShopRefunds(ctx context.Context, shopID uuid.UUID, params pagination.Params) (*RefundList, error) {
	if shopID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shop id is required")
	}
	list, err := s.repo.ListShopRefunds(ctx, shopID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list refunds")
	}
	return list, nil
}

func (s *service) loadForBuyer(ctx context.Context, repo Repository, buyerID, refundID uuid.UUID) (*models.Refund, error) {
	refund, err := repo.FindRefund(ctx, refundID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "refund not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load refund")
	}
	if refund.BuyerID != buyerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "refund does not belong to caller")
	}
	return refund, nil
}

func (s *service) loadForShop(ctx context.Context, repo Repository, shopID, refundID uuid.UUID) (*models.Refund, error) {
	refund, err := repo.FindRefund(ctx, refundID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "refund not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load refund")
	}
	if refund.ShopID != shopID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "refund does not belong to caller's shop")
	}
	return refund, nil
}

func (s *service) conflictWithCurrent(ctx context.Context, repo Repository, refundID uuid.UUID) error {
	current, err := repo.FindRefund(ctx, refundID)
	if err != nil {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "refund status changed concurrently")
	}
	return pkgerrors.New(pkgerrors.CodeStateConflict,
		fmt.Sprintf("operation not allowed while refund is %s", current.Status))
}
