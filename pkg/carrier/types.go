package carrier

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/dtrandev/marketloop-backend/pkg/errors"
	"github.com/dtrandev/marketloop-backend/pkg/types"
)

// ShipmentCreateParams describes a pickup request handed to the carrier.
type ShipmentCreateParams struct {
	OrderCode      string
	ToAddress      types.Address
	ServiceID      int
	ServiceTypeID  int
	WeightGrams    int
	CODAmountCents int
	Note           string
}

// ShipmentInfo is the carrier's answer to a pickup request.
type ShipmentInfo struct {
	TrackingCode       string
	FeeCents           int
	ExpectedDeliveryAt *time.Time
}

// FeeQuoteParams asks the carrier to price a delivery before the order exists.
type FeeQuoteParams struct {
	ToAddress     types.Address
	ServiceID     int
	ServiceTypeID int
	WeightGrams   int
}

// FeeQuote carries the quoted delivery fee.
type FeeQuote struct {
	FeeCents int
}

// TrackingUpdate is a normalized carrier webhook payload.
type TrackingUpdate struct {
	TrackingCode string
	Status       string
	OccurredAt   time.Time
	Raw          map[string]any
}

type trackingPushPayload struct {
	TrackingCode string    `json:"tracking_code"`
	Status       string    `json:"status"`
	Time         time.Time `json:"time"`
}

// DecodeTrackingUpdate parses a raw carrier status push. The original payload
// is retained so handlers can persist it for audit.
func DecodeTrackingUpdate(body []byte) (*TrackingUpdate, error) {
	var push trackingPushPayload
	if err := json.Unmarshal(body, &push); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode tracking push")
	}
	if strings.TrimSpace(push.TrackingCode) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tracking code required")
	}

	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		raw = nil
	}

	occurredAt := push.Time
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	return &TrackingUpdate{
		TrackingCode: push.TrackingCode,
		Status:       strings.ToLower(strings.TrimSpace(push.Status)),
		OccurredAt:   occurredAt,
		Raw:          raw,
	}, nil
}

var gramsPerKg = decimal.NewFromInt(1000)

// weightKg converts grams to the fractional kilograms the carrier API expects.
func weightKg(grams int) decimal.Decimal {
	return decimal.NewFromInt(int64(grams)).Div(gramsPerKg)
}

type createShipmentRequest struct {
	OrderCode      string          `json:"order_code"`
	ToName         string          `json:"to_name"`
	ToPhone        string          `json:"to_phone"`
	ToAddress      string          `json:"to_address"`
	ToWard         string          `json:"to_ward"`
	ToDistrict     string          `json:"to_district"`
	ToCity         string          `json:"to_city"`
	ServiceID      int             `json:"service_id"`
	ServiceTypeID  int             `json:"service_type_id"`
	WeightKg       decimal.Decimal `json:"weight_kg"`
	CODAmountCents int             `json:"cod_amount"`
	Note           string          `json:"note,omitempty"`
}

type createShipmentResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		TrackingCode       string     `json:"tracking_code"`
		FeeCents           int        `json:"total_fee"`
		ExpectedDeliveryAt *time.Time `json:"expected_delivery_time"`
	} `json:"data"`
}

type feeQuoteRequest struct {
	ToWard        string          `json:"to_ward"`
	ToDistrict    string          `json:"to_district"`
	ToCity        string          `json:"to_city"`
	ServiceID     int             `json:"service_id"`
	ServiceTypeID int             `json:"service_type_id"`
	WeightKg      decimal.Decimal `json:"weight_kg"`
}

type feeQuoteResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		FeeCents int `json:"total_fee"`
	} `json:"data"`
}

type cancelShipmentRequest struct {
	TrackingCodes []string `json:"tracking_codes"`
}

type apiEnvelope struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}
