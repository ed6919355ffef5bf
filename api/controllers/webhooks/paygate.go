package webhooks

import (
	"context"
	"io"
	"net/http"

	"github.com/dtrandev/marketloop-backend/api/responses"
	"github.com/dtrandev/marketloop-backend/internal/payments"
	pkgerrors "github.com/dtrandev/marketloop-backend/pkg/errors"
	"github.com/dtrandev/marketloop-backend/pkg/logger"
	"github.com/dtrandev/marketloop-backend/pkg/metrics"
	"github.com/dtrandev/marketloop-backend/pkg/paygate"
)

const paygateSource = "paygate"

type paygateDecoder interface {
	DecodeNotification(body []byte) (*paygate.Notification, error)
}

type paygateGuard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Delete(ctx context.Context, eventID string) error
}

// PaygateWebhook handles asynchronous payment notifications from the gateway.
func PaygateWebhook(svc payments.Service, decoder paygateDecoder, guard paygateGuard, wm *metrics.WebhookMetrics, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}
		if decoder == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "gateway adapter unavailable"))
			return
		}
		if guard == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "idempotency guard unavailable"))
			return
		}

		payload, err := io.ReadAll(r.Body)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		// Signature verification happens inside the decode.
		notif, err := decoder.DecodeNotification(payload)
		if err != nil {
			wm.IncRejected(paygateSource)
			responses.WriteError(ctx, logg, w, err)
			return
		}

		alreadyProcessed, err := guard.CheckAndMark(ctx, notif.RequestID)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
			return
		}
		if alreadyProcessed {
			wm.IncReplayed(paygateSource)
			responses.WriteSuccess(w, nil)
			return
		}

		if err := svc.HandleNotification(ctx, payload); err != nil {
			_ = guard.Delete(ctx, notif.RequestID)
			wm.IncFailed(paygateSource)
			responses.WriteError(ctx, logg, w, err)
			return
		}

		wm.IncProcessed(paygateSource)
		if logg != nil {
			logg.Info(logg.WithField(ctx, "request_id", notif.RequestID), "gateway notification processed")
		}
		responses.WriteSuccess(w, nil)
	}
}
