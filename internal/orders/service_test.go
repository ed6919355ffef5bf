package orders

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/dtrandev/marketloop-backend/internal/inventory"
	"github.com/dtrandev/marketloop-backend/pkg/carrier"
	"github.com/dtrandev/marketloop-backend/pkg/db/models"
	"github.com/dtrandev/marketloop-backend/pkg/enums"
	pkgerrors "github.com/dtrandev/marketloop-backend/pkg/errors"
	"github.com/dtrandev/marketloop-backend/pkg/logger"
	"github.com/dtrandev/marketloop-backend/pkg/pagination"
	"github.com/dtrandev/marketloop-backend/pkg/types"
)

type stubOrdersRepo struct {
	order         *models.Order
	variants      []models.ProductVariant
	createdOrder  *models.Order
	createdItems  []models.OrderItem
	createdShip   *models.Shipment
	orderUpdates  map[string]any
	shipUpdates   map[string]any
	claimedFrom   enums.OrderStatus
	claimedTo     enums.OrderStatus
	claimResult   bool
	claimErr      error
	createOrder   func(ctx context.Context, order *models.Order) (*models.Order, error)
	createShip    func(ctx context.Context, shipment *models.Shipment) (*models.Shipment, error)
	findVariants  func(ctx context.Context, ids []uuid.UUID) ([]models.ProductVariant, error)
	pendingUnpaid []models.Order
}

func (s *stubOrdersRepo) WithTx(tx *gorm.DB) Repository {
	return s
}

func (s *stubOrdersRepo) CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error) {
	if s.createOrder != nil {
		return s.createOrder(ctx, order)
	}
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	s.createdOrder = order
	return order, nil
}

func (s *stubOrdersRepo) CreateOrderItems(ctx context.Context, items []models.OrderItem) error {
	s.createdItems = append(s.createdItems, items...)
	return nil
}

func (s *stubOrdersRepo) CreateShipment(ctx context.Context, shipment *models.Shipment) (*models.Shipment, error) {
	if s.createShip != nil {
		return s.createShip(ctx, shipment)
	}
	if shipment.ID == uuid.Nil {
		shipment.ID = uuid.New()
	}
	s.createdShip = shipment
	return shipment, nil
}

func (s *stubOrdersRepo) FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if s.order == nil || s.order.ID != orderID {
		return nil, gorm.ErrRecordNotFound
	}
	return s.order, nil
}

func (s *stubOrdersRepo) FindOrderItems(ctx context.Context, orderID uuid.UUID) ([]models.OrderItem, error) {
	if s.order == nil || s.order.ID != orderID {
		return nil, nil
	}
	return s.order.Items, nil
}

func (s *stubOrdersRepo) FindVariants(ctx context.Context, ids []uuid.UUID) ([]models.ProductVariant, error) {
	if s.findVariants != nil {
		return s.findVariants(ctx, ids)
	}
	return s.variants, nil
}

func (s *stubOrdersRepo) ClaimStatus(ctx context.Context, orderID uuid.UUID, from, to enums.OrderStatus, updates map[string]any) (bool, error) {
	if s.claimErr != nil {
		return false, s.claimErr
	}
	s.claimedFrom = from
	s.claimedTo = to
	s.orderUpdates = updates
	if s.claimResult && s.order != nil && s.order.ID == orderID {
		s.order.Status = to
	}
	return s.claimResult, nil
}

func (s *stubOrdersRepo) UpdateOrder(ctx context.Context, orderID uuid.UUID, updates map[string]any) error {
	s.orderUpdates = updates
	return nil
}

func (s *stubOrdersRepo) UpdateShipmentByOrder(ctx context.Context, orderID uuid.UUID, updates map[string]any) error {
	s.shipUpdates = updates
	return nil
}

func (s *stubOrdersRepo) ListBuyerOrders(ctx context.Context, buyerID uuid.UUID, params pagination.Params, filters OrderFilters) (*OrderList, error) {
	panic("not implemented")
}

func (s *stubOrdersRepo) ListShopOrders(ctx context.Context, shopID uuid.UUID, params pagination.Params, filters OrderFilters) (*OrderList, error) {
	panic("not implemented")
}

func (s *stubOrdersRepo) ListAllOrders(ctx context.Context, params pagination.Params, filters OrderFilters) (*OrderList, error) {
	panic("not implemented")
}

func (s *stubOrdersRepo) FindPendingUnpaidBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error) {
	return s.pendingUnpaid, nil
}

type stubShipper struct {
	createCalls []carrier.ShipmentCreateParams
	cancelCalls []string
	createInfo  *carrier.ShipmentInfo
	createErr   error
	cancelErr   error
}

func (s *stubShipper) CreateShipment(ctx context.Context, params carrier.ShipmentCreateParams) (*carrier.ShipmentInfo, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	s.createCalls = append(s.createCalls, params)
	if s.createInfo != nil {
		return s.createInfo, nil
	}
	return &carrier.ShipmentInfo{TrackingCode: "TRK-1", FeeCents: 1500}, nil
}

func (s *stubShipper) CancelShipment(ctx context.Context, trackingCode string) error {
	s.cancelCalls = append(s.cancelCalls, trackingCode)
	return s.cancelErr
}

type inventoryCall struct {
	variantID uuid.UUID
	qty       int
}

type stubReserver struct {
	calls   []inventory.ReservationRequest
	results []inventory.ReservationResult
	err     error
}

func (s *stubReserver) Reserve(ctx context.Context, tx *gorm.DB, requests []inventory.ReservationRequest) ([]inventory.ReservationResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.calls = append(s.calls, requests...)
	if s.results != nil {
		return s.results, nil
	}
	results := make([]inventory.ReservationResult, len(requests))
	for i, req := range requests {
		results[i] = inventory.ReservationResult{VariantID: req.VariantID, Reserved: true}
	}
	return results, nil
}

type stubReleaser struct {
	calls []inventoryCall
	err   error
}

func (s *stubReleaser) Release(ctx context.Context, tx *gorm.DB, variantID uuid.UUID, qty int) error {
	if s.err != nil {
		return s.err
	}
	s.calls = append(s.calls, inventoryCall{variantID: variantID, qty: qty})
	return nil
}

type stubCommitter struct {
	calls []inventoryCall
	err   error
}

func (s *stubCommitter) Commit(ctx context.Context, tx *gorm.DB, variantID uuid.UUID, qty int) error {
	if s.err != nil {
		return s.err
	}
	s.calls = append(s.calls, inventoryCall{variantID: variantID, qty: qty})
	return nil
}

type stubRestocker struct {
	calls []inventoryCall
	err   error
}

func (s *stubRestocker) Restock(ctx context.Context, tx *gorm.DB, variantID uuid.UUID, qty int) error {
	if s.err != nil {
		return s.err
	}
	s.calls = append(s.calls, inventoryCall{variantID: variantID, qty: qty})
	return nil
}

type notifyCall struct {
	userID uuid.UUID
	typ    enums.NotificationType
}

type stubNotifier struct {
	calls []notifyCall
	err   error
}

func (s *stubNotifier) Notify(ctx context.Context, tx *gorm.DB, userID uuid.UUID, typ enums.NotificationType, payload types.JSONMap) error {
	if s.err != nil {
		return s.err
	}
	s.calls = append(s.calls, notifyCall{userID: userID, typ: typ})
	return nil
}

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type serviceDeps struct {
	repo      *stubOrdersRepo
	shipper   *stubShipper
	reserver  *stubReserver
	releaser  *stubReleaser
	committer *stubCommitter
	restocker *stubRestocker
	notifier  *stubNotifier
}

func newTestService(t *testing.T, repo *stubOrdersRepo) (Service, *serviceDeps) {
	t.Helper()
	deps := &serviceDeps{
		repo:      repo,
		shipper:   &stubShipper{},
		reserver:  &stubReserver{},
		releaser:  &stubReleaser{},
		committer: &stubCommitter{},
		restocker: &stubRestocker{},
		notifier:  &stubNotifier{},
	}
	logg := logger.New(logger.Options{ServiceName: "test", Level: zerolog.ErrorLevel})
	svc, err := NewService(repo, stubTxRunner{}, deps.shipper, deps.reserver, deps.releaser, deps.committer, deps.restocker, deps.notifier, logg)
	if err != nil {
		t.Fatalf("service constructor failed: %v", err)
	}
	return svc, deps
}

func testPlaceInput(shopID uuid.UUID, variants ...models.ProductVariant) PlaceInput {
	items := make([]PlaceItemInput, 0, len(variants))
	for _, v := range variants {
		items = append(items, PlaceItemInput{VariantID: v.ID, Qty: 2})
	}
	return PlaceInput{
		BuyerID:       uuid.New(),
		ShopID:        shopID,
		PaymentMethod: enums.PaymentMethodCOD,
		ShippingAddress: types.Address{
			Recipient: "Jamie Tran",
			Phone:     "0900000000",
			Line1:     "12 Market St",
			Ward:      "Ward 4",
			District:  "District 1",
			City:      "HCMC",
			Country:   "VN",
		},
		DeliveryOption:   types.DeliveryOption{ServiceID: 53320, ServiceTypeID: 2},
		Items:            items,
		ShippingFeeCents: 2000,
		DiscountCents:    500,
	}
}

func TestPlace(t *testing.T) {
	shopID := uuid.New()
	variant := models.ProductVariant{
		ID:          uuid.New(),
		ShopID:      shopID,
		ProductName: "Canvas Tote",
		VariantName: "Natural",
		PriceCents:  4500,
		WeightGrams: 300,
		IsActive:    true,
	}
	repo := &stubOrdersRepo{variants: []models.ProductVariant{variant}}
	svc, deps := newTestService(t, repo)

	order, err := svc.Place(context.Background(), testPlaceInput(shopID, variant))
	if err != nil {
		t.Fatalf("place: %v", err)
	}

	if order.SubtotalCents != 9000 {
		t.Fatalf("unexpected subtotal %d", order.SubtotalCents)
	}
	if order.TotalCents != 9000+2000-500 {
		t.Fatalf("unexpected total %d", order.TotalCents)
	}
	if order.Status != enums.OrderStatusPending {
		t.Fatalf("unexpected status %s", order.Status)
	}
	if len(repo.createdItems) != 1 {
		t.Fatalf("expected 1 line item, got %d", len(repo.createdItems))
	}
	if repo.createdItems[0].WeightGrams != 600 {
		t.Fatalf("line weight should scale with qty, got %d", repo.createdItems[0].WeightGrams)
	}
	if len(deps.reserver.calls) != 1 || deps.reserver.calls[0].Qty != 2 {
		t.Fatalf("expected one reservation of qty 2, got %+v", deps.reserver.calls)
	}
	if len(deps.notifier.calls) != 1 || deps.notifier.calls[0].typ != enums.NotificationOrderPlaced {
		t.Fatalf("expected order placed notification, got %+v", deps.notifier.calls)
	}
}

func TestPlaceInsufficientStock(t *testing.T) {
	shopID := uuid.New()
	variant := models.ProductVariant{ID: uuid.New(), ShopID: shopID, ProductName: "Tote", PriceCents: 100, IsActive: true}
	repo := &stubOrdersRepo{variants: []models.ProductVariant{variant}}
	svc, deps := newTestService(t, repo)
	deps.reserver.results = []inventory.ReservationResult{{VariantID: variant.ID, Reserved: false, Reason: "insufficient stock"}}

	_, err := svc.Place(context.Background(), testPlaceInput(shopID, variant))
	if err == nil {
		t.Fatal("expected reservation shortfall to abort the order")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.createdOrder != nil {
		t.Fatal("order must not be created when reservation fails")
	}
}

func TestPlaceValidation(t *testing.T) {
	svc, _ := newTestService(t, &stubOrdersRepo{})

	input := testPlaceInput(uuid.New())
	input.Items = nil
	_, err := svc.Place(context.Background(), input)
	if err == nil {
		t.Fatal("expected validation error for empty items")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestPlaceRejectsForeignVariant(t *testing.T) {
	shopID := uuid.New()
	variant := models.ProductVariant{ID: uuid.New(), ShopID: uuid.New(), ProductName: "Tote", PriceCents: 100, IsActive: true}
	repo := &stubOrdersRepo{variants: []models.ProductVariant{variant}}
	svc, _ := newTestService(t, repo)

	_, err := svc.Place(context.Background(), testPlaceInput(shopID, variant))
	if err == nil {
		t.Fatal("expected cross-shop variant to be rejected")
	}
}

func pendingOrder(shopID uuid.UUID) *models.Order {
	address := types.Address{
		Recipient: "Jamie Tran",
		Phone:     "0900000000",
		Line1:     "12 Market St",
		Ward:      "Ward 4",
		District:  "District 1",
		City:      "HCMC",
		Country:   "VN",
	}
	option := types.DeliveryOption{ServiceID: 53320, ServiceTypeID: 2}
	orderID := uuid.New()
	variantID := uuid.New()
	return &models.Order{
		ID:              orderID,
		BuyerID:         uuid.New(),
		ShopID:          shopID,
		Status:          enums.OrderStatusPending,
		PaymentMethod:   enums.PaymentMethodCOD,
		PaymentStatus:   enums.PaymentStatusUnpaid,
		TotalCents:      10500,
		ShippingAddress: &address,
		DeliveryOption:  &option,
		Items: []models.OrderItem{
			{ID: uuid.New(), OrderID: orderID, VariantID: variantID, Qty: 2, WeightGrams: 600, TotalCents: 9000},
		},
	}
}

func TestConfirmAndShip(t *testing.T) {
	shopID := uuid.New()
	order := pendingOrder(shopID)
	repo := &stubOrdersRepo{order: order, claimResult: true}
	svc, deps := newTestService(t, repo)

	confirmed, err := svc.ConfirmAndShip(context.Background(), order.ID, shopID)
	if err != nil {
		t.Fatalf("confirm and ship: %v", err)
	}

	if len(deps.shipper.createCalls) != 1 {
		t.Fatalf("expected one carrier call, got %d", len(deps.shipper.createCalls))
	}
	call := deps.shipper.createCalls[0]
	if call.WeightGrams != 600 {
		t.Fatalf("unexpected parcel weight %d", call.WeightGrams)
	}
	if call.CODAmountCents != order.TotalCents {
		t.Fatalf("COD order must carry the order total, got %d", call.CODAmountCents)
	}
	if repo.createdShip == nil || repo.createdShip.TrackingCode != "TRK-1" {
		t.Fatalf("shipment not persisted: %+v", repo.createdShip)
	}
	if repo.claimedFrom != enums.OrderStatusPending || repo.claimedTo != enums.OrderStatusProcessing {
		t.Fatalf("unexpected claim %s -> %s", repo.claimedFrom, repo.claimedTo)
	}
	if len(deps.committer.calls) != 1 || deps.committer.calls[0].qty != 2 {
		t.Fatalf("expected reserved stock commit, got %+v", deps.committer.calls)
	}
	if confirmed.Status != enums.OrderStatusProcessing {
		t.Fatalf("unexpected status %s", confirmed.Status)
	}
}

func TestConfirmAndShipOnlineOrderHasNoCOD(t *testing.T) {
	shopID := uuid.New()
	order := pendingOrder(shopID)
	order.PaymentMethod = enums.PaymentMethodOnline
	repo := &stubOrdersRepo{order: order, claimResult: true}
	svc, deps := newTestService(t, repo)

	if _, err := svc.ConfirmAndShip(context.Background(), order.ID, shopID); err != nil {
		t.Fatalf("confirm and ship: %v", err)
	}
	if deps.shipper.createCalls[0].CODAmountCents != 0 {
		t.Fatal("online orders must not carry COD")
	}
}

func TestConfirmAndShipCarrierFailure(t *testing.T) {
	shopID := uuid.New()
	order := pendingOrder(shopID)
	repo := &stubOrdersRepo{order: order, claimResult: true}
	svc, deps := newTestService(t, repo)
	deps.shipper.createErr = pkgerrors.New(pkgerrors.CodeDependency, "carrier unavailable")

	_, err := svc.ConfirmAndShip(context.Background(), order.ID, shopID)
	if err == nil {
		t.Fatal("expected carrier failure to abort")
	}
	if repo.createdShip != nil {
		t.Fatal("shipment must not be persisted on carrier failure")
	}
	if len(deps.committer.calls) != 0 {
		t.Fatal("stock must not be committed on carrier failure")
	}
}

func TestConfirmAndShipWrongShop(t *testing.T) {
	order := pendingOrder(uuid.New())
	repo := &stubOrdersRepo{order: order}
	svc, _ := newTestService(t, repo)

	_, err := svc.ConfirmAndShip(context.Background(), order.ID, uuid.New())
	if err == nil {
		t.Fatal("expected forbidden error")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestConfirmAndShipWrongState(t *testing.T) {
	shopID := uuid.New()
	order := pendingOrder(shopID)
	order.Status = enums.OrderStatusShipping
	repo := &stubOrdersRepo{order: order}
	svc, _ := newTestService(t, repo)

	_, err := svc.ConfirmAndShip(context.Background(), order.ID, shopID)
	if err == nil {
		t.Fatal("expected state conflict")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestConfirmAndShipLosesClaimRace(t *testing.T) {
	shopID := uuid.New()
	order := pendingOrder(shopID)
	repo := &stubOrdersRepo{order: order, claimResult: false}
	svc, _ := newTestService(t, repo)

	_, err := svc.ConfirmAndShip(context.Background(), order.ID, shopID)
	if err == nil {
		t.Fatal("expected losing writer to get a conflict")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCancelPendingReleasesStock(t *testing.T) {
	shopID := uuid.New()
	order := pendingOrder(shopID)
	repo := &stubOrdersRepo{order: order, claimResult: true}
	svc, deps := newTestService(t, repo)

	err := svc.Cancel(context.Background(), CancelInput{OrderID: order.ID, ShopID: shopID, Reason: "out of stock"})
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}

	if len(deps.releaser.calls) != 1 || deps.releaser.calls[0].qty != 2 {
		t.Fatalf("expected reserved stock release, got %+v", deps.releaser.calls)
	}
	if len(deps.restocker.calls) != 0 {
		t.Fatal("pending orders have no committed stock to restock")
	}
	if len(deps.shipper.cancelCalls) != 0 {
		t.Fatal("pending orders have no carrier shipment to cancel")
	}
	if len(deps.notifier.calls) != 1 || deps.notifier.calls[0].typ != enums.NotificationOrderCancelled {
		t.Fatalf("expected cancellation notification, got %+v", deps.notifier.calls)
	}
}

func TestCancelProcessingRestocksAndCancelsCarrier(t *testing.T) {
	shopID := uuid.New()
	order := pendingOrder(shopID)
	order.Status = enums.OrderStatusProcessing
	order.Shipment = &models.Shipment{ID: uuid.New(), OrderID: order.ID, TrackingCode: "TRK-9", Status: enums.ShipmentStatusCreated}
	repo := &stubOrdersRepo{order: order, claimResult: true}
	svc, deps := newTestService(t, repo)
	deps.shipper.cancelErr = pkgerrors.New(pkgerrors.CodeDependency, "carrier unavailable")

	err := svc.Cancel(context.Background(), CancelInput{OrderID: order.ID, ShopID: shopID, Reason: "buyer request"})
	if err != nil {
		t.Fatalf("carrier cancel failure must not fail the order cancel: %v", err)
	}

	if len(deps.restocker.calls) != 1 || deps.restocker.calls[0].qty != 2 {
		t.Fatalf("expected committed stock restock, got %+v", deps.restocker.calls)
	}
	if len(deps.releaser.calls) != 0 {
		t.Fatal("processing orders release via restock, not the reserve ledger")
	}
	if len(deps.shipper.cancelCalls) != 1 || deps.shipper.cancelCalls[0] != "TRK-9" {
		t.Fatalf("expected best-effort carrier cancellation, got %+v", deps.shipper.cancelCalls)
	}
	if repo.shipUpdates["status"] != enums.ShipmentStatusCancelled {
		t.Fatalf("shipment not marked cancelled: %+v", repo.shipUpdates)
	}
}

func TestCancelRequiresReason(t *testing.T) {
	svc, _ := newTestService(t, &stubOrdersRepo{})

	err := svc.Cancel(context.Background(), CancelInput{OrderID: uuid.New(), ShopID: uuid.New()})
	if err == nil {
		t.Fatal("expected validation error for empty reason")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCancelStockFailureAborts(t *testing.T) {
	shopID := uuid.New()
	order := pendingOrder(shopID)
	repo := &stubOrdersRepo{order: order, claimResult: true}
	svc, deps := newTestService(t, repo)
	deps.releaser.err = pkgerrors.New(pkgerrors.CodeDependency, "restore failed")

	err := svc.Cancel(context.Background(), CancelInput{OrderID: order.ID, ShopID: shopID, Reason: "oops"})
	if err == nil {
		t.Fatal("stock restore failure must abort the cancellation")
	}
}

func TestCancelNotificationFailureSwallowed(t *testing.T) {
	shopID := uuid.New()
	order := pendingOrder(shopID)
	repo := &stubOrdersRepo{order: order, claimResult: true}
	svc, deps := newTestService(t, repo)
	deps.notifier.err = pkgerrors.New(pkgerrors.CodeDependency, "queue down")

	err := svc.Cancel(context.Background(), CancelInput{OrderID: order.ID, ShopID: shopID, Reason: "oops"})
	if err != nil {
		t.Fatalf("notification failure must be swallowed: %v", err)
	}
}

func TestStartShipping(t *testing.T) {
	shopID := uuid.New()
	order := pendingOrder(shopID)
	order.Status = enums.OrderStatusProcessing
	order.Shipment = &models.Shipment{ID: uuid.New(), OrderID: order.ID, TrackingCode: "TRK-9"}
	repo := &stubOrdersRepo{order: order, claimResult: true}
	svc, deps := newTestService(t, repo)

	if err := svc.StartShipping(context.Background(), order.ID, shopID); err != nil {
		t.Fatalf("start shipping: %v", err)
	}
	if repo.claimedTo != enums.OrderStatusShipping {
		t.Fatalf("unexpected claim target %s", repo.claimedTo)
	}
	if repo.shipUpdates["status"] != enums.ShipmentStatusDelivering {
		t.Fatalf("shipment not advanced: %+v", repo.shipUpdates)
	}
	if len(deps.shipper.createCalls) != 0 {
		t.Fatal("start shipping must not call the carrier")
	}
}

func TestStartShippingRequiresShipment(t *testing.T) {
	shopID := uuid.New()
	order := pendingOrder(shopID)
	order.Status = enums.OrderStatusProcessing
	repo := &stubOrdersRepo{order: order}
	svc, _ := newTestService(t, repo)

	err := svc.StartShipping(context.Background(), order.ID, shopID)
	if err == nil {
		t.Fatal("expected missing shipment to conflict")
	}
}

func TestMarkDelivered(t *testing.T) {
	shopID := uuid.New()
	order := pendingOrder(shopID)
	order.Status = enums.OrderStatusShipping
	order.Shipment = &models.Shipment{ID: uuid.New(), OrderID: order.ID, TrackingCode: "TRK-9"}
	repo := &stubOrdersRepo{order: order, claimResult: true}
	svc, deps := newTestService(t, repo)

	if err := svc.MarkDelivered(context.Background(), order.ID, shopID); err != nil {
		t.Fatalf("mark delivered: %v", err)
	}
	if repo.claimedTo != enums.OrderStatusCompleted {
		t.Fatalf("unexpected claim target %s", repo.claimedTo)
	}
	if repo.orderUpdates["completed_at"] == nil {
		t.Fatal("completed_at must be set")
	}
	if repo.shipUpdates["status"] != enums.ShipmentStatusDelivered {
		t.Fatalf("shipment not delivered: %+v", repo.shipUpdates)
	}
	if len(deps.releaser.calls)+len(deps.restocker.calls) != 0 {
		t.Fatal("delivery must not touch stock")
	}
}

func TestAdminOverrideStatus(t *testing.T) {
	order := pendingOrder(uuid.New())
	repo := &stubOrdersRepo{order: order}
	svc, deps := newTestService(t, repo)

	err := svc.AdminOverrideStatus(context.Background(), order.ID, enums.OrderStatusCompleted, uuid.New())
	if err != nil {
		t.Fatalf("admin override: %v", err)
	}
	if repo.orderUpdates["status"] != enums.OrderStatusCompleted {
		t.Fatalf("status not overridden: %+v", repo.orderUpdates)
	}
	if len(deps.shipper.createCalls)+len(deps.releaser.calls)+len(deps.restocker.calls) != 0 {
		t.Fatal("override must not replay side effects")
	}
}

func TestGetOrderForBuyerEnforcesOwnership(t *testing.T) {
	order := pendingOrder(uuid.New())
	repo := &stubOrdersRepo{order: order}
	svc, _ := newTestService(t, repo)

	if _, err := svc.GetOrderForBuyer(context.Background(), order.ID, order.BuyerID); err != nil {
		t.Fatalf("owner read: %v", err)
	}
	_, err := svc.GetOrderForBuyer(context.Background(), order.ID, uuid.New())
	if err == nil {
		t.Fatal("expected forbidden for foreign buyer")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("unexpected error: %v", err)
	}
}
