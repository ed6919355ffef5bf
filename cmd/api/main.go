package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dtrandev/marketloop-backend/api/routes"
	"github.com/dtrandev/marketloop-backend/internal/inventory"
	"github.com/dtrandev/marketloop-backend/internal/notifications"
	"github.com/dtrandev/marketloop-backend/internal/orders"
	"github.com/dtrandev/marketloop-backend/internal/payments"
	"github.com/dtrandev/marketloop-backend/internal/refunds"
	"github.com/dtrandev/marketloop-backend/internal/shipments"
	"github.com/dtrandev/marketloop-backend/internal/wallet"
	"github.com/dtrandev/marketloop-backend/pkg/carrier"
	"github.com/dtrandev/marketloop-backend/pkg/config"
	"github.com/dtrandev/marketloop-backend/pkg/db"
	"github.com/dtrandev/marketloop-backend/pkg/logger"
	"github.com/dtrandev/marketloop-backend/pkg/metrics"
	"github.com/dtrandev/marketloop-backend/pkg/migrate"
	"github.com/dtrandev/marketloop-backend/pkg/paygate"
	"github.com/dtrandev/marketloop-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	carrierClient, err := carrier.NewClient(context.Background(), cfg.Carrier, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create carrier client", err)
		os.Exit(1)
	}
	paygateClient, err := paygate.NewClient(context.Background(), cfg.Paygate, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create payment gateway client", err)
		os.Exit(1)
	}
	paymentsGuard, err := payments.NewIdempotencyGuard(redisClient, cfg.Paygate.IdempotencyTTL, "paygate")
	if err != nil {
		logg.Error(context.Background(), "failed to create payments idempotency guard", err)
		os.Exit(1)
	}

	notificationsSvc, err := notifications.NewService(notifications.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create notifications service", err)
		os.Exit(1)
	}

	ordersSvc, err := orders.NewService(
		orders.NewRepository(dbClient.DB()),
		dbClient,
		carrierClient,
		inventory.NewReserver(),
		inventory.NewReleaser(),
		inventory.NewCommitter(),
		inventory.NewRestocker(),
		notificationsSvc,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	paymentsSvc, err := payments.NewService(payments.ServiceParams{
		Repo:     payments.NewRepository(dbClient.DB()),
		TxRunner: dbClient,
		Gateway:  paygateClient,
		Notifier: notificationsSvc,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create payments service", err)
		os.Exit(1)
	}

	crediter, err := wallet.NewCrediter(dbClient.DB(), logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create wallet crediter", err)
		os.Exit(1)
	}
	refundsSvc, err := refunds.NewService(refunds.NewRepository(dbClient.DB()), dbClient, crediter, notificationsSvc, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create refunds service", err)
		os.Exit(1)
	}

	shipmentsSvc, err := shipments.NewService(shipments.NewRepository(dbClient.DB()), dbClient, notificationsSvc, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create shipments service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Deps{
			Config:        cfg,
			Logger:        logg,
			DB:            dbClient,
			Redis:         redisClient,
			Paygate:       paygateClient,
			PaymentsGuard: paymentsGuard,
			Webhooks:      metrics.NewWebhookMetrics(prometheus.DefaultRegisterer),
			Orders:        ordersSvc,
			Payments:      paymentsSvc,
			Refunds:       refundsSvc,
			Shipments:     shipmentsSvc,
			Notifications: notificationsSvc,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
