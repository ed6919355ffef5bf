package controllers

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/dtrandev/marketloop-backend/internal/refunds"
	"github.com/dtrandev/marketloop-backend/pkg/db/models"
	"github.com/dtrandev/marketloop-backend/pkg/enums"
)

func TestRequestRefundCreatesCase(t *testing.T) {
	buyerID := uuid.New()
	orderID := uuid.New()
	var got refunds.RequestInput
	svc := &refundsServiceStub{
		request: func(ctx context.Context, input refunds.RequestInput) (*models.Refund, error) {
			got = input
			return &models.Refund{ID: uuid.New(), OrderID: input.OrderID, Status: enums.RefundStatusRequested}, nil
		},
	}

	body := fmt.Sprintf(`{"order_id":%q,"description":"arrived broken","evidence_images":["https://cdn.example/a.jpg"]}`, orderID)
	req := newRequest(http.MethodPost, "/api/v1/refunds", body, buyerID, nil, nil)
	resp := httptest.NewRecorder()
	RequestRefund(svc, testLogger()).ServeHTTP(resp, req)

	requireStatus(t, resp, http.StatusCreated)
	if got.OrderID != orderID || got.BuyerID != buyerID {
		t.Fatalf("unexpected input %+v", got)
	}
	if got.AmountCents != nil {
		t.Fatalf("expected nil amount for full refund, got %v", *got.AmountCents)
	}
	if got.Description != "arrived broken" || len(got.EvidenceImages) != 1 {
		t.Fatalf("unexpected input %+v", got)
	}
}

func TestRequestRefundAcceptsPartialAmount(t *testing.T) {
	var got refunds.RequestInput
	svc := &refundsServiceStub{
		request: func(ctx context.Context, input refunds.RequestInput) (*models.Refund, error) {
			got = input
			return &models.Refund{ID: uuid.New()}, nil
		},
	}

	body := fmt.Sprintf(`{"order_id":%q,"amount_cents":1500,"description":"missing part","evidence_images":["https://cdn.example/b.jpg"]}`, uuid.New())
	req := newRequest(http.MethodPost, "/api/v1/refunds", body, uuid.New(), nil, nil)
	resp := httptest.NewRecorder()
	RequestRefund(svc, testLogger()).ServeHTTP(resp, req)

	requireStatus(t, resp, http.StatusCreated)
	if got.AmountCents == nil || *got.AmountCents != 1500 {
		t.Fatalf("expected partial amount 1500, got %v", got.AmountCents)
	}
}

func TestRequestRefundRequiresEvidence(t *testing.T) {
	body := fmt.Sprintf(`{"order_id":%q,"description":"broken","evidence_images":[]}`, uuid.New())
	req := newRequest(http.MethodPost, "/api/v1/refunds", body, uuid.New(), nil, nil)
	resp := httptest.NewRecorder()
	RequestRefund(&refundsServiceStub{}, testLogger()).ServeHTTP(resp, req)
	requireStatus(t, resp, http.StatusBadRequest)
}

func TestReviewRefundForwardsDecision(t *testing.T) {
	shopID := uuid.New()
	refundID := uuid.New()
	var got refunds.ReviewInput
	svc := &refundsServiceStub{
		review: func(ctx context.Context, input refunds.ReviewInput) (*models.Refund, error) {
			got = input
			return &models.Refund{ID: input.RefundID, Status: enums.RefundStatusRejected}, nil
		},
	}

	req := newRequest(http.MethodPost, "/api/v1/shop/refunds/"+refundID.String()+"/review", `{"approve":false,"reason":"no defect visible"}`, uuid.New(), &shopID, map[string]string{"refundId": refundID.String()})
	resp := httptest.NewRecorder()
	ReviewRefund(svc, testLogger()).ServeHTTP(resp, req)

	requireStatus(t, resp, http.StatusOK)
	if got.RefundID != refundID || got.ShopID != shopID || got.Approve || got.Reason != "no defect visible" {
		t.Fatalf("unexpected review input %+v", got)
	}
}

func TestReviewRefundRequiresShopContext(t *testing.T) {
	refundID := uuid.New()
	req := newRequest(http.MethodPost, "/api/v1/shop/refunds/"+refundID.String()+"/review", `{"approve":true}`, uuid.New(), nil, map[string]string{"refundId": refundID.String()})
	resp := httptest.NewRecorder()
	ReviewRefund(&refundsServiceStub{}, testLogger()).ServeHTTP(resp, req)
	requireStatus(t, resp, http.StatusForbidden)
}

func TestMarkRefundReturningUsesBuyerContext(t *testing.T) {
	buyerID := uuid.New()
	refundID := uuid.New()
	svc := &refundsServiceStub{
		markReturning: func(ctx context.Context, gotBuyer, gotRefund uuid.UUID) (*models.Refund, error) {
			if gotBuyer != buyerID || gotRefund != refundID {
				t.Fatalf("unexpected ids buyer=%s refund=%s", gotBuyer, gotRefund)
			}
			return &models.Refund{ID: refundID, Status: enums.RefundStatusReturning}, nil
		},
	}

	req := newRequest(http.MethodPost, "/api/v1/refunds/"+refundID.String()+"/returning", "", buyerID, nil, map[string]string{"refundId": refundID.String()})
	resp := httptest.NewRecorder()
	MarkRefundReturning(svc, testLogger()).ServeHTTP(resp, req)
	requireStatus(t, resp, http.StatusOK)
}

func TestConfirmRefundReturnForwardsInspection(t *testing.T) {
	shopID := uuid.New()
	refundID := uuid.New()
	var got refunds.ConfirmReturnInput
	svc := &refundsServiceStub{
		confirmReturn: func(ctx context.Context, input refunds.ConfirmReturnInput) (*models.Refund, error) {
			got = input
			return &models.Refund{ID: input.RefundID}, nil
		},
	}

	req := newRequest(http.MethodPost, "/api/v1/shop/refunds/"+refundID.String()+"/confirm-return", `{"accept":true,"note":"resellable"}`, uuid.New(), &shopID, map[string]string{"refundId": refundID.String()})
	resp := httptest.NewRecorder()
	ConfirmRefundReturn(svc, testLogger()).ServeHTTP(resp, req)

	requireStatus(t, resp, http.StatusOK)
	if got.RefundID != refundID || got.ShopID != shopID || !got.Accept || got.Note != "resellable" {
		t.Fatalf("unexpected confirm input %+v", got)
	}
}

func TestListMyRefundsRejectsOversizedLimit(t *testing.T) {
	req := newRequest(http.MethodGet, "/api/v1/refunds?limit=500", "", uuid.New(), nil, nil)
	resp := httptest.NewRecorder()
	ListMyRefunds(&refundsServiceStub{}, testLogger()).ServeHTTP(resp, req)
	requireStatus(t, resp, http.StatusBadRequest)
}
