package webhooks

import (
	"crypto/subtle"
	"io"
	"net/http"
	"strings"

	"github.com/dtrandev/marketloop-backend/api/responses"
	"github.com/dtrandev/marketloop-backend/internal/shipments"
	"github.com/dtrandev/marketloop-backend/pkg/carrier"
	pkgerrors "github.com/dtrandev/marketloop-backend/pkg/errors"
	"github.com/dtrandev/marketloop-backend/pkg/logger"
	"github.com/dtrandev/marketloop-backend/pkg/metrics"
)

const carrierTokenHeader = "X-Carrier-Token"

const carrierSource = "carrier"

// CarrierWebhook handles tracking status pushes from the delivery partner.
// The shared token authenticates the carrier; unknown tracking codes are
// acknowledged downstream so the carrier stops retrying.
func CarrierWebhook(svc shipments.Service, token string, wm *metrics.WebhookMetrics, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "shipments service unavailable"))
			return
		}

		presented := strings.TrimSpace(r.Header.Get(carrierTokenHeader))
		if token == "" || subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
			wm.IncRejected(carrierSource)
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid carrier token"))
			return
		}

		payload, err := io.ReadAll(r.Body)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		update, err := carrier.DecodeTrackingUpdate(payload)
		if err != nil {
			wm.IncRejected(carrierSource)
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if err := svc.HandleCarrierUpdate(ctx, *update); err != nil {
			wm.IncFailed(carrierSource)
			responses.WriteError(ctx, logg, w, err)
			return
		}
		wm.IncProcessed(carrierSource)
		responses.WriteSuccess(w, nil)
	}
}
