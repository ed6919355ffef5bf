package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dtrandev/marketloop-backend/api/controllers"
	webhookcontrollers "github.com/dtrandev/marketloop-backend/api/controllers/webhooks"
	"github.com/dtrandev/marketloop-backend/api/middleware"
	"github.com/dtrandev/marketloop-backend/internal/notifications"
	"github.com/dtrandev/marketloop-backend/internal/orders"
	"github.com/dtrandev/marketloop-backend/internal/payments"
	"github.com/dtrandev/marketloop-backend/internal/refunds"
	"github.com/dtrandev/marketloop-backend/internal/shipments"
	"github.com/dtrandev/marketloop-backend/pkg/config"
	"github.com/dtrandev/marketloop-backend/pkg/db"
	"github.com/dtrandev/marketloop-backend/pkg/logger"
	"github.com/dtrandev/marketloop-backend/pkg/metrics"
	"github.com/dtrandev/marketloop-backend/pkg/paygate"
	"github.com/dtrandev/marketloop-backend/pkg/redis"
)

// Deps bundles everything the HTTP surface needs.
type Deps struct {
	Config        *config.Config
	Logger        *logger.Logger
	DB            db.Pinger
	Redis         *redis.Client
	Paygate       *paygate.Client
	PaymentsGuard *payments.IdempotencyGuard
	Webhooks      *metrics.WebhookMetrics

	Orders        orders.Service
	Payments      payments.Service
	Refunds       refunds.Service
	Shipments     shipments.Service
	Notifications notifications.Service
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.DB, deps.Redis))
	})

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/paygate", webhookcontrollers.PaygateWebhook(deps.Payments, deps.Paygate, deps.PaymentsGuard, deps.Webhooks, logg))
		r.Post("/carrier", webhookcontrollers.CarrierWebhook(deps.Shipments, cfg.Carrier.Token, deps.Webhooks, logg))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(deps.Redis, logg))
		r.Use(middleware.RateLimit(cfg.RateLimit, deps.Redis, logg))

		r.Route("/v1/orders", func(r chi.Router) {
			r.Post("/", controllers.PlaceOrder(deps.Orders, logg))
			r.Get("/", controllers.ListMyOrders(deps.Orders, logg))
			r.Get("/{orderId}", controllers.MyOrderDetail(deps.Orders, logg))
			r.Post("/{orderId}/pay", controllers.PayOrder(deps.Payments, logg))
		})
		r.Get("/v1/payments/return", controllers.PaymentReturn(deps.Payments, logg))

		r.Route("/v1/refunds", func(r chi.Router) {
			r.Post("/", controllers.RequestRefund(deps.Refunds, logg))
			r.Get("/", controllers.ListMyRefunds(deps.Refunds, logg))
			r.Get("/{refundId}", controllers.MyRefundDetail(deps.Refunds, logg))
			r.Post("/{refundId}/returning", controllers.MarkRefundReturning(deps.Refunds, logg))
		})

		r.Route("/v1/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(deps.Notifications, logg))
			r.Post("/{notificationId}/read", controllers.MarkNotificationRead(deps.Notifications, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(deps.Notifications, logg))
		})

		r.Route("/v1/shop", func(r chi.Router) {
			r.Use(middleware.RequireRole("seller", logg))
			r.Use(middleware.RequireShop(logg))

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", controllers.ListShopOrders(deps.Orders, logg))
				r.Get("/{orderId}", controllers.ShopOrderDetail(deps.Orders, logg))
				r.Post("/{orderId}/confirm", controllers.ConfirmOrder(deps.Orders, logg))
				r.Post("/{orderId}/ship", controllers.StartShipping(deps.Orders, logg))
				r.Post("/{orderId}/cancel", controllers.CancelOrder(deps.Orders, logg))
				r.Post("/{orderId}/delivered", controllers.MarkDelivered(deps.Orders, logg))
			})
			r.Route("/refunds", func(r chi.Router) {
				r.Get("/", controllers.ListShopRefunds(deps.Refunds, logg))
				r.Get("/{refundId}", controllers.ShopRefundDetail(deps.Refunds, logg))
				r.Post("/{refundId}/review", controllers.ReviewRefund(deps.Refunds, logg))
				r.Post("/{refundId}/confirm-return", controllers.ConfirmRefundReturn(deps.Refunds, logg))
			})
		})
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole("admin", logg))
		r.Use(middleware.Idempotency(deps.Redis, logg))
		r.Use(middleware.RateLimit(cfg.RateLimit, deps.Redis, logg))

		r.Route("/v1/orders", func(r chi.Router) {
			r.Get("/", controllers.AdminListOrders(deps.Orders, logg))
			r.Get("/{orderId}", controllers.AdminOrderDetail(deps.Orders, logg))
			r.Post("/{orderId}/status", controllers.AdminOverrideStatus(deps.Orders, logg))
		})

		// Manual settlement skips signature checks; never routed in prod.
		if !cfg.App.IsProd() {
			r.Post("/v1/payments/reconcile", controllers.AdminReconcilePayment(deps.Payments, logg))
		}
	})

	return r
}
