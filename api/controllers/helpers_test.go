package controllers

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dtrandev/marketloop-backend/api/middleware"
	"github.com/dtrandev/marketloop-backend/internal/notifications"
	"github.com/dtrandev/marketloop-backend/internal/orders"
	"github.com/dtrandev/marketloop-backend/internal/payments"
	"github.com/dtrandev/marketloop-backend/internal/refunds"
	"github.com/dtrandev/marketloop-backend/pkg/db/models"
	"github.com/dtrandev/marketloop-backend/pkg/enums"
	"github.com/dtrandev/marketloop-backend/pkg/logger"
	"github.com/dtrandev/marketloop-backend/pkg/pagination"
	"github.com/dtrandev/marketloop-backend/pkg/types"
	"gorm.io/gorm"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test-controllers", Level: logger.ParseLevel("error"), Output: io.Discard})
}

// newRequest builds a request carrying the authenticated user and, when set,
// the shop context plus chi path params.
func newRequest(method, target, body string, userID uuid.UUID, shopID *uuid.UUID, params map[string]string) *http.Request {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)

	ctx := req.Context()
	if userID != uuid.Nil {
		ctx = middleware.WithUserID(ctx, userID.String())
	}
	if shopID != nil {
		ctx = middleware.WithShopID(ctx, shopID.String())
	}
	if len(params) > 0 {
		routeCtx := chi.NewRouteContext()
		for key, value := range params {
			routeCtx.URLParams.Add(key, value)
		}
		ctx = context.WithValue(ctx, chi.RouteCtxKey, routeCtx)
	}
	return req.WithContext(ctx)
}

type ordersServiceStub struct {
	place          func(ctx context.Context, input orders.PlaceInput) (*models.Order, error)
	confirmAndShip func(ctx context.Context, orderID, shopID uuid.UUID) (*models.Order, error)
	startShipping  func(ctx context.Context, orderID, shopID uuid.UUID) error
	cancel         func(ctx context.Context, input orders.CancelInput) error
	markDelivered  func(ctx context.Context, orderID, shopID uuid.UUID) error
	adminOverride  func(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus, adminID uuid.UUID) error
	getForBuyer    func(ctx context.Context, orderID, buyerID uuid.UUID) (*orders.OrderDetail, error)
	getForShop     func(ctx context.Context, orderID, shopID uuid.UUID) (*orders.OrderDetail, error)
	get            func(ctx context.Context, orderID uuid.UUID) (*orders.OrderDetail, error)
	listBuyer      func(ctx context.Context, buyerID uuid.UUID, params pagination.Params, filters orders.OrderFilters) (*orders.OrderList, error)
	listShop       func(ctx context.Context, shopID uuid.UUID, params pagination.Params, filters orders.OrderFilters) (*orders.OrderList, error)
	listAll        func(ctx context.Context, params pagination.Params, filters orders.OrderFilters) (*orders.OrderList, error)
}

func (s *ordersServiceStub) Place(ctx context.Context, input orders.PlaceInput) (*models.Order, error) {
	if s.place == nil {
		panic("unexpected Place call")
	}
	return s.place(ctx, input)
}

func (s *ordersServiceStub) ConfirmAndShip(ctx context.Context, orderID, shopID uuid.UUID) (*models.Order, error) {
	if s.confirmAndShip == nil {
		panic("unexpected ConfirmAndShip call")
	}
	return s.confirmAndShip(ctx, orderID, shopID)
}

func (s *ordersServiceStub) StartShipping(ctx context.Context, orderID, shopID uuid.UUID) error {
	if s.startShipping == nil {
		panic("unexpected StartShipping call")
	}
	return s.startShipping(ctx, orderID, shopID)
}

func (s *ordersServiceStub) Cancel(ctx context.Context, input orders.CancelInput) error {
	if s.cancel == nil {
		panic("unexpected Cancel call")
	}
	return s.cancel(ctx, input)
}

func (s *ordersServiceStub) MarkDelivered(ctx context.Context, orderID, shopID uuid.UUID) error {
	if s.markDelivered == nil {
		panic("unexpected MarkDelivered call")
	}
	return s.markDelivered(ctx, orderID, shopID)
}

func (s *ordersServiceStub) AdminOverrideStatus(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus, adminID uuid.UUID) error {
	if s.adminOverride == nil {
		panic("unexpected AdminOverrideStatus call")
	}
	return s.adminOverride(ctx, orderID, status, adminID)
}

func (s *ordersServiceStub) GetOrderForBuyer(ctx context.Context, orderID, buyerID uuid.UUID) (*orders.OrderDetail, error) {
	if s.getForBuyer == nil {
		panic("unexpected GetOrderForBuyer call")
	}
	return s.getForBuyer(ctx, orderID, buyerID)
}

func (s *ordersServiceStub) GetOrderForShop(ctx context.Context, orderID, shopID uuid.UUID) (*orders.OrderDetail, error) {
	if s.getForShop == nil {
		panic("unexpected GetOrderForShop call")
	}
	return s.getForShop(ctx, orderID, shopID)
}

func (s *ordersServiceStub) GetOrder(ctx context.Context, orderID uuid.UUID) (*orders.OrderDetail, error) {
	if s.get == nil {
		panic("unexpected GetOrder call")
	}
	return s.get(ctx, orderID)
}

func (s *ordersServiceStub) ListBuyerOrders(ctx context.Context, buyerID uuid.UUID, params pagination.Params, filters orders.OrderFilters) (*orders.OrderList, error) {
	if s.listBuyer == nil {
		panic("unexpected ListBuyerOrders call")
	}
	return s.listBuyer(ctx, buyerID, params, filters)
}

func (s *ordersServiceStub) ListShopOrders(ctx context.Context, shopID uuid.UUID, params pagination.Params, filters orders.OrderFilters) (*orders.OrderList, error) {
	if s.listShop == nil {
		panic("unexpected ListShopOrders call")
	}
	return s.listShop(ctx, shopID, params, filters)
}

func (s *ordersServiceStub) ListAllOrders(ctx context.Context, params pagination.Params, filters orders.OrderFilters) (*orders.OrderList, error) {
	if s.listAll == nil {
		panic("unexpected ListAllOrders call")
	}
	return s.listAll(ctx, params, filters)
}

type paymentsServiceStub struct {
	initiate  func(ctx context.Context, buyerID, orderID uuid.UUID) (*payments.InitiateResult, error)
	handle    func(ctx context.Context, body []byte) error
	status    func(ctx context.Context, buyerID uuid.UUID, requestID string) (*payments.TransactionStatus, error)
	reconcile func(ctx context.Context, requestID string, succeeded bool) error
}

func (s *paymentsServiceStub) Initiate(ctx context.Context, buyerID, orderID uuid.UUID) (*payments.InitiateResult, error) {
	if s.initiate == nil {
		panic("unexpected Initiate call")
	}
	return s.initiate(ctx, buyerID, orderID)
}

func (s *paymentsServiceStub) HandleNotification(ctx context.Context, body []byte) error {
	if s.handle == nil {
		panic("unexpected HandleNotification call")
	}
	return s.handle(ctx, body)
}

func (s *paymentsServiceStub) GetTransactionStatus(ctx context.Context, buyerID uuid.UUID, requestID string) (*payments.TransactionStatus, error) {
	if s.status == nil {
		panic("unexpected GetTransactionStatus call")
	}
	return s.status(ctx, buyerID, requestID)
}

func (s *paymentsServiceStub) ReconcileManually(ctx context.Context, requestID string, succeeded bool) error {
	if s.reconcile == nil {
		panic("unexpected ReconcileManually call")
	}
	return s.reconcile(ctx, requestID, succeeded)
}

type refundsServiceStub struct {
	request       func(ctx context.Context, input refunds.RequestInput) (*models.Refund, error)
	review        func(ctx context.Context, input refunds.ReviewInput) (*models.Refund, error)
	markReturning func(ctx context.Context, buyerID, refundID uuid.UUID) (*models.Refund, error)
	confirmReturn func(ctx context.Context, input refunds.ConfirmReturnInput) (*models.Refund, error)
	getForBuyer   func(ctx context.Context, buyerID, refundID uuid.UUID) (*models.Refund, error)
	getForShop    func(ctx context.Context, shopID, refundID uuid.UUID) (*models.Refund, error)
	listBuyer     func(ctx context.Context, buyerID uuid.UUID, params pagination.Params) (*refunds.RefundList, error)
	listShop      func(ctx context.Context, shopID uuid.UUID, params pagination.Params) (*refunds.RefundList, error)
}

func (s *refundsServiceStub) Request(ctx context.Context, input refunds.RequestInput) (*models.Refund, error) {
	if s.request == nil {
		panic("unexpected Request call")
	}
	return s.request(ctx, input)
}

func (s *refundsServiceStub) Review(ctx context.Context, input refunds.ReviewInput) (*models.Refund, error) {
	if s.review == nil {
		panic("unexpected Review call")
	}
	return s.review(ctx, input)
}

func (s *refundsServiceStub) MarkReturning(ctx context.Context, buyerID, refundID uuid.UUID) (*models.Refund, error) {
	if s.markReturning == nil {
		panic("unexpected MarkReturning call")
	}
	return s.markReturning(ctx, buyerID, refundID)
}

func (s *refundsServiceStub) ConfirmReturn(ctx context.Context, input refunds.ConfirmReturnInput) (*models.Refund, error) {
	if s.confirmReturn == nil {
		panic("unexpected ConfirmReturn call")
	}
	return s.confirmReturn(ctx, input)
}

func (s *refundsServiceStub) GetRefundForBuyer(ctx context.Context, buyerID, refundID uuid.UUID) (*models.Refund, error) {
	if s.getForBuyer == nil {
		panic("unexpected GetRefundForBuyer call")
	}
	return s.getForBuyer(ctx, buyerID, refundID)
}

func (s *refundsServiceStub) GetRefundForShop(ctx context.Context, shopID, refundID uuid.UUID) (*models.Refund, error) {
	if s.getForShop == nil {
		panic("unexpected GetRefundForShop call")
	}
	return s.getForShop(ctx, shopID, refundID)
}

func (s *refundsServiceStub) ListBuyerRefunds(ctx context.Context, buyerID uuid.UUID, params pagination.Params) (*refunds.RefundList, error) {
	if s.listBuyer == nil {
		panic("unexpected ListBuyerRefunds call")
	}
	return s.listBuyer(ctx, buyerID, params)
}

func (s *refundsServiceStub) ListShopRefunds(ctx context.Context, shopID uuid.UUID, params pagination.Params) (*refunds.RefundList, error) {
	if s.listShop == nil {
		panic("unexpected ListShopRefunds call")
	}
	return s.listShop(ctx, shopID, params)
}

type notificationsServiceStub struct {
	list        func(ctx context.Context, params notifications.ListParams) (*notifications.ListResult, error)
	markRead    func(ctx context.Context, userID, notificationID uuid.UUID) error
	markAllRead func(ctx context.Context, userID uuid.UUID) (int64, error)
}

func (s *notificationsServiceStub) Notify(ctx context.Context, tx *gorm.DB, userID uuid.UUID, typ enums.NotificationType, payload types.JSONMap) error {
	panic("unexpected Notify call")
}

func (s *notificationsServiceStub) List(ctx context.Context, params notifications.ListParams) (*notifications.ListResult, error) {
	if s.list == nil {
		panic("unexpected List call")
	}
	return s.list(ctx, params)
}

func (s *notificationsServiceStub) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	if s.markRead == nil {
		panic("unexpected MarkRead call")
	}
	return s.markRead(ctx, userID, notificationID)
}

func (s *notificationsServiceStub) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	if s.markAllRead == nil {
		panic("unexpected MarkAllRead call")
	}
	return s.markAllRead(ctx, userID)
}

func requireStatus(t *testing.T, resp *httptest.ResponseRecorder, want int) {
	t.Helper()
	if resp.Code != want {
		t.Fatalf("expected status %d got %d body %s", want, resp.Code, resp.Body.String())
	}
}
