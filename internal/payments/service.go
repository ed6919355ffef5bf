package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dtrandev/marketloop-backend/pkg/db/models"
	"github.com/dtrandev/marketloop-backend/pkg/enums"
	pkgerrors "github.com/dtrandev/marketloop-backend/pkg/errors"
	"github.com/dtrandev/marketloop-backend/pkg/logger"
	"github.com/dtrandev/marketloop-backend/pkg/paygate"
	"github.com/dtrandev/marketloop-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Notifier queues a buyer-facing notification inside the caller's transaction.
type Notifier interface {
	Notify(ctx context.Context, tx *gorm.DB, userID uuid.UUID, typ enums.NotificationType, payload types.JSONMap) error
}

// Service reconciles gateway callbacks onto payment transactions.
type Service interface {
	Initiate(ctx context.Context, buyerID, orderID uuid.UUID) (*InitiateResult, error)
	HandleNotification(ctx context.Context, body []byte) error
	GetTransactionStatus(ctx context.Context, buyerID uuid.UUID, requestID string) (*TransactionStatus, error)
	ReconcileManually(ctx context.Context, requestID string, succeeded bool) error
}

// ServiceParams carries the dependencies for NewService.
type ServiceParams struct {
	Repo     Repository
	TxRunner txRunner
	Gateway  Gateway
	Notifier Notifier
	Logger   *logger.Logger
}

type service struct {
	repo     Repository
	txRunner txRunner
	gateway  Gateway
	notifier Notifier
	logger   *logger.Logger
}

// NewService builds the payment reconciliation service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payments repository is required")
	}
	if params.TxRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner is required")
	}
	if params.Gateway == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment gateway is required")
	}
	if params.Notifier == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "notifier is required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger is required")
	}
	return &service{
		repo:     params.Repo,
		txRunner: params.TxRunner,
		gateway:  params.Gateway,
		notifier: params.Notifier,
		logger:   params.Logger,
	}, nil
}

// Initiate creates a gateway payment intent for an online order. The pending
// transaction row is persisted before the outbound call so every external
// attempt is traceable by request id.
func (s *service) Initiate(ctx context.Context, buyerID, orderID uuid.UUID) (*InitiateResult, error) {
	if buyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer id is required")
	}
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}

	order, err := s.repo.FindOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
	}
	if order.BuyerID != buyerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to caller")
	}
	if order.PaymentMethod != enums.PaymentMethodOnline {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order is not payable online")
	}
	if order.PaymentStatus != enums.PaymentStatusUnpaid {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is already paid")
	}
	if order.Status != enums.OrderStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("payment not allowed while order is %s", order.Status))
	}

	requestID := fmt.Sprintf("%s-%d", order.ID, time.Now().UnixNano())
	txn, err := s.repo.CreateTransaction(ctx, &models.PaymentTransaction{
		ID:          uuid.New(),
		OrderID:     order.ID,
		RequestID:   requestID,
		AmountCents: order.TotalCents,
		Status:      enums.PaymentTxnStatusPending,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persist payment transaction")
	}

	intent, err := s.gateway.CreatePaymentIntent(ctx, paygate.PaymentIntentParams{
		RequestID:   requestID,
		OrderID:     order.ID.String(),
		AmountCents: order.TotalCents,
		OrderInfo:   fmt.Sprintf("Order %s", order.ID),
	})
	if err != nil {
		reason := err.Error()
		if updateErr := s.repo.UpdateTransaction(ctx, txn.ID, map[string]any{
			"status":      enums.PaymentTxnStatusFailed,
			"fail_reason": reason,
		}); updateErr != nil {
			s.logger.Error(ctx, "mark payment transaction failed", updateErr)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment intent")
	}

	s.logger.Info(s.logger.WithFields(ctx, map[string]any{
		"order_id":   order.ID.String(),
		"request_id": requestID,
		"amount":     order.TotalCents,
	}), "payment intent created")

	return &InitiateResult{PayURL: intent.PayURL, RequestID: requestID}, nil
}

// HandleNotification applies one gateway webhook. Duplicates acknowledge as
// no-ops; the conditional status update keeps concurrent duplicates from
// double-settling.
func (s *service) HandleNotification(ctx context.Context, body []byte) error {
	notif, err := s.gateway.DecodeNotification(body)
	if err != nil {
		return err
	}

	txn, err := s.repo.FindTransactionByRequestID(ctx, notif.RequestID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound,
				fmt.Sprintf("no transaction for request id %s", notif.RequestID))
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load payment transaction")
	}
	if txn.Status == enums.PaymentTxnStatusSuccess {
		s.logger.Info(s.logger.WithField(ctx, "request_id", notif.RequestID), "duplicate gateway notification ignored")
		return nil
	}
	if notif.AmountCents != txn.AmountCents {
		return pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("notification amount %d does not match transaction amount %d",
				notif.AmountCents, txn.AmountCents))
	}

	return s.settle(ctx, txn, notif.Succeeded(), notif.GatewayTxnID, notif.Message)
}

// GetTransactionStatus serves the user-return redirect. It never mutates state;
// the webhook is the authoritative writer.
func (s *service) GetTransactionStatus(ctx context.Context, buyerID uuid.UUID, requestID string) (*TransactionStatus, error) {
	if requestID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "request id is required")
	}

	txn, err := s.repo.FindTransactionByRequestID(ctx, requestID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment transaction not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load payment transaction")
	}
	order, err := s.repo.FindOrder(ctx, txn.OrderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
	}
	if order.BuyerID != buyerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to caller")
	}

	return &TransactionStatus{
		RequestID:   txn.RequestID,
		OrderID:     txn.OrderID,
		Status:      txn.Status,
		AmountCents: txn.AmountCents,
		FailReason:  txn.FailReason,
		CompletedAt: txn.CompletedAt,
	}, nil
}

// ReconcileManually settles a transaction without a gateway signature. The
// route wiring restricts it to non-production environments.
func (s *service) ReconcileManually(ctx context.Context, requestID string, succeeded bool) error {
	if requestID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "request id is required")
	}
	txn, err := s.repo.FindTransactionByRequestID(ctx, requestID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "payment transaction not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load payment transaction")
	}
	if txn.Status == enums.PaymentTxnStatusSuccess {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "transaction already settled")
	}
	s.logger.Warn(s.logger.WithFields(ctx, map[string]any{
		"request_id": requestID,
		"succeeded":  succeeded,
	}), "manual payment reconciliation")
	return s.settle(ctx, txn, succeeded, "manual", "manual reconciliation")
}

func (s *service) settle(ctx context.Context, txn *models.PaymentTransaction, succeeded bool, gatewayTxnID, message string) error {
	return s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		now := time.Now().UTC()

		if !succeeded {
			reason := message
			if reason == "" {
				reason = "gateway reported failure"
			}
			claimed, err := repo.ClaimTransactionStatus(ctx, txn.ID, enums.PaymentTxnStatusFailed, map[string]any{
				"fail_reason": reason,
			})
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark transaction failed")
			}
			if !claimed {
				// Already settled successfully by a racing callback.
				return nil
			}
			s.logger.Info(s.logger.WithFields(ctx, map[string]any{
				"request_id": txn.RequestID,
				"order_id":   txn.OrderID.String(),
				"reason":     reason,
			}), "payment transaction failed")
			return nil
		}

		updates := map[string]any{"completed_at": now}
		if gatewayTxnID != "" {
			updates["gateway_txn_id"] = gatewayTxnID
		}
		claimed, err := repo.ClaimTransactionStatus(ctx, txn.ID, enums.PaymentTxnStatusSuccess, updates)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark transaction succeeded")
		}
		if !claimed {
			return nil
		}
		if err := repo.MarkOrderPaid(ctx, txn.OrderID, now); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark order paid")
		}

		order, err := repo.FindOrder(ctx, txn.OrderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
		}
		if err := s.notifier.Notify(ctx, tx, order.BuyerID, enums.NotificationPaymentReceived, types.JSONMap{
			"order_id":   txn.OrderID.String(),
			"request_id": txn.RequestID,
			"amount":     txn.AmountCents,
		}); err != nil {
			s.logger.Warn(s.logger.WithField(ctx, "order_id", txn.OrderID.String()), "queue payment notification failed")
		}

		s.logger.Info(s.logger.WithFields(ctx, map[string]any{
			"request_id": txn.RequestID,
			"order_id":   txn.OrderID.String(),
			"amount":     txn.AmountCents,
		}), "payment transaction settled")
		return nil
	})
}
