package carrier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/dtrandev/marketloop-backend/pkg/config"
	pkgerrors "github.com/dtrandev/marketloop-backend/pkg/errors"
	"github.com/dtrandev/marketloop-backend/pkg/logger"
)

var (
	errBaseURLRequired = errors.New("carrier base url is required")
	errTokenRequired   = errors.New("carrier token is required")
	errShopIDRequired  = errors.New("carrier shop id is required")
	errLoggerRequired  = errors.New("carrier logger is required")
)

// Client exposes the delivery-partner API with centralized auth, logging, and error mapping.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	shopID     string
	pickupName string
	logger     *logger.Logger
}

// NewClient initializes the carrier wrapper and validates the credentials.
func NewClient(ctx context.Context, cfg config.CarrierConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errBaseURLRequired
	}
	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, errTokenRequired
	}
	shopID := strings.TrimSpace(cfg.ShopID)
	if shopID == "" {
		return nil, errShopIDRequired
	}

	c := &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    baseURL,
		token:      token,
		shopID:     shopID,
		pickupName: strings.TrimSpace(cfg.PickupName),
		logger:     logg,
	}

	logg.Info(ctx, "carrier client initialized")
	return c, nil
}

// CreateShipment registers a pickup with the carrier and returns the assigned tracking code.
func (c *Client) CreateShipment(ctx context.Context, params ShipmentCreateParams) (*ShipmentInfo, error) {
	if params.OrderCode == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order code is required")
	}
	if params.WeightGrams <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "weight must be positive")
	}

	req := createShipmentRequest{
		OrderCode:      params.OrderCode,
		ToName:         params.ToAddress.Recipient,
		ToPhone:        params.ToAddress.Phone,
		ToAddress:      params.ToAddress.Line1,
		ToWard:         params.ToAddress.Ward,
		ToDistrict:     params.ToAddress.District,
		ToCity:         params.ToAddress.City,
		ServiceID:      params.ServiceID,
		ServiceTypeID:  params.ServiceTypeID,
		WeightKg:       weightKg(params.WeightGrams),
		CODAmountCents: params.CODAmountCents,
		Note:           params.Note,
	}
	c.log(ctx, "request", "create_shipment", map[string]any{
		"order_code": params.OrderCode,
		"weight_kg":  req.WeightKg.String(),
		"cod_amount": params.CODAmountCents,
		"to_phone":   params.ToAddress.Phone,
	})

	var resp createShipmentResponse
	if err := c.do(ctx, http.MethodPost, "/v2/shipping-order/create", req, &resp); err != nil {
		c.log(ctx, "error", "create_shipment", map[string]any{"error": err.Error()})
		return nil, err
	}
	if resp.Code != 200 {
		err := c.mapAPIError(resp.Code, resp.Message, "create shipment")
		c.log(ctx, "error", "create_shipment", map[string]any{"error": err.Error()})
		return nil, err
	}

	c.log(ctx, "response", "create_shipment", map[string]any{
		"tracking_code": resp.Data.TrackingCode,
		"fee_cents":     resp.Data.FeeCents,
	})
	return &ShipmentInfo{
		TrackingCode:       resp.Data.TrackingCode,
		FeeCents:           resp.Data.FeeCents,
		ExpectedDeliveryAt: resp.Data.ExpectedDeliveryAt,
	}, nil
}

// GetFeeQuote prices a delivery without creating a shipment.
func (c *Client) GetFeeQuote(ctx context.Context, params FeeQuoteParams) (*FeeQuote, error) {
	if params.WeightGrams <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "weight must be positive")
	}

	req := feeQuoteRequest{
		ToWard:        params.ToAddress.Ward,
		ToDistrict:    params.ToAddress.District,
		ToCity:        params.ToAddress.City,
		ServiceID:     params.ServiceID,
		ServiceTypeID: params.ServiceTypeID,
		WeightKg:      weightKg(params.WeightGrams),
	}
	c.log(ctx, "request", "get_fee_quote", map[string]any{
		"service_id": params.ServiceID,
		"weight_kg":  req.WeightKg.String(),
	})

	var resp feeQuoteResponse
	if err := c.do(ctx, http.MethodPost, "/v2/shipping-order/fee", req, &resp); err != nil {
		c.log(ctx, "error", "get_fee_quote", map[string]any{"error": err.Error()})
		return nil, err
	}
	if resp.Code != 200 {
		err := c.mapAPIError(resp.Code, resp.Message, "get fee quote")
		c.log(ctx, "error", "get_fee_quote", map[string]any{"error": err.Error()})
		return nil, err
	}

	c.log(ctx, "response", "get_fee_quote", map[string]any{"fee_cents": resp.Data.FeeCents})
	return &FeeQuote{FeeCents: resp.Data.FeeCents}, nil
}

// CancelShipment asks the carrier to abort a not-yet-delivered shipment.
func (c *Client) CancelShipment(ctx context.Context, trackingCode string) error {
	if strings.TrimSpace(trackingCode) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "tracking code is required")
	}

	c.log(ctx, "request", "cancel_shipment", map[string]any{"tracking_code": trackingCode})

	var resp apiEnvelope
	if err := c.do(ctx, http.MethodPost, "/v2/switch-status/cancel", cancelShipmentRequest{TrackingCodes: []string{trackingCode}}, &resp); err != nil {
		c.log(ctx, "error", "cancel_shipment", map[string]any{"error": err.Error()})
		return err
	}
	if resp.Code != 200 {
		err := c.mapAPIError(resp.Code, resp.Message, "cancel shipment")
		c.log(ctx, "error", "cancel_shipment", map[string]any{"error": err.Error()})
		return err
	}

	c.log(ctx, "response", "cancel_shipment", map[string]any{"tracking_code": trackingCode})
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encoding carrier request")
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "building carrier request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Token", c.token)
	req.Header.Set("ShopId", c.shopID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "calling carrier api")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reading carrier response")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return pkgerrors.New(domainCodeForStatus(resp.StatusCode), fmt.Sprintf("carrier api returned status %d", resp.StatusCode))
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decoding carrier response")
		}
	}
	return nil
}

func (c *Client) mapAPIError(code int, message, op string) error {
	domainCode := domainCodeForStatus(code)
	return pkgerrors.New(domainCode, fmt.Sprintf("carrier %s failed: %s", op, message))
}

func (c *Client) log(ctx context.Context, phase, op string, fields map[string]any) {
	if c == nil || c.logger == nil {
		return
	}
	logFields := map[string]any{
		"operation": op,
		"phase":     phase,
	}
	for k, v := range fields {
		logFields[k] = c.redact(k, v)
	}
	ctx = c.logger.WithFields(ctx, logFields)
	switch phase {
	case "error":
		c.logger.Error(ctx, fmt.Sprintf("carrier %s", op), errors.New(fmt.Sprint(fields["error"])))
	default:
		c.logger.Info(ctx, fmt.Sprintf("carrier %s", phase))
	}
}

func (c *Client) redact(key string, value any) any {
	lower := strings.ToLower(key)
	for _, sensitive := range []string{"token", "secret", "phone"} {
		if strings.Contains(lower, sensitive) {
			return "[REDACTED]"
		}
	}
	return value
}

func domainCodeForStatus(status int) pkgerrors.Code {
	switch status {
	case http.StatusBadRequest:
		return pkgerrors.CodeValidation
	case http.StatusUnauthorized:
		return pkgerrors.CodeUnauthorized
	case http.StatusForbidden:
		return pkgerrors.CodeForbidden
	case http.StatusNotFound:
		return pkgerrors.CodeNotFound
	case http.StatusConflict:
		return pkgerrors.CodeConflict
	case http.StatusUnprocessableEntity:
		return pkgerrors.CodeStateConflict
	case http.StatusTooManyRequests:
		return pkgerrors.CodeRateLimit
	default:
		return pkgerrors.CodeDependency
	}
}
