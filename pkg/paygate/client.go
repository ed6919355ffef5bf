package paygate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/dtrandev/marketloop-backend/pkg/config"
	pkgerrors "github.com/dtrandev/marketloop-backend/pkg/errors"
	"github.com/dtrandev/marketloop-backend/pkg/logger"
)

const requestTypeRedirect = "capture_redirect"

var (
	errBaseURLRequired   = errors.New("paygate base url is required")
	errPartnerIDRequired = errors.New("paygate partner id is required")
	errSecretKeyRequired = errors.New("paygate secret key is required")
	errLoggerRequired    = errors.New("paygate logger is required")
)

// Client exposes the payment gateway with centralized signing, logging, and error mapping.
type Client struct {
	httpClient *http.Client
	baseURL    string
	partnerID  string
	secretKey  string
	returnURL  string
	notifyURL  string
	logger     *logger.Logger
}

// NewClient initializes the gateway wrapper and validates the credentials.
func NewClient(ctx context.Context, cfg config.PaygateConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errBaseURLRequired
	}
	partnerID := strings.TrimSpace(cfg.PartnerID)
	if partnerID == "" {
		return nil, errPartnerIDRequired
	}
	secretKey := strings.TrimSpace(cfg.SecretKey)
	if secretKey == "" {
		return nil, errSecretKeyRequired
	}

	c := &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    baseURL,
		partnerID:  partnerID,
		secretKey:  secretKey,
		returnURL:  strings.TrimSpace(cfg.ReturnURL),
		notifyURL:  strings.TrimSpace(cfg.NotifyURL),
		logger:     logg,
	}

	logg.Info(ctx, "paygate client initialized")
	return c, nil
}

// SigningSecret returns the shared IPN secret.
func (c *Client) SigningSecret() string {
	if c == nil {
		return ""
	}
	return c.secretKey
}

// CreatePaymentIntent registers a redirect payment and returns the pay URL.
func (c *Client) CreatePaymentIntent(ctx context.Context, params PaymentIntentParams) (*PaymentIntent, error) {
	if strings.TrimSpace(params.RequestID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "request id is required")
	}
	if strings.TrimSpace(params.OrderID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	if params.AmountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}

	signature := Sign(c.secretKey, map[string]string{
		"partner_id":   c.partnerID,
		"request_id":   params.RequestID,
		"order_id":     params.OrderID,
		"amount":       strconv.Itoa(params.AmountCents),
		"request_type": requestTypeRedirect,
	})
	req := createIntentRequest{
		PartnerID:   c.partnerID,
		RequestID:   params.RequestID,
		OrderID:     params.OrderID,
		Amount:      params.AmountCents,
		OrderInfo:   params.OrderInfo,
		ReturnURL:   c.returnURL,
		NotifyURL:   c.notifyURL,
		RequestType: requestTypeRedirect,
		Signature:   signature,
	}

	c.log(ctx, "request", "create_payment_intent", map[string]any{
		"request_id": params.RequestID,
		"order_id":   params.OrderID,
		"amount":     params.AmountCents,
	})

	var resp createIntentResponse
	if err := c.do(ctx, http.MethodPost, "/v2/gateway/create", req, &resp); err != nil {
		c.log(ctx, "error", "create_payment_intent", map[string]any{"error": err.Error()})
		return nil, err
	}
	if resp.ResultCode != ResultCodeSuccess {
		err := pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("paygate create intent failed: %s", resp.Message))
		c.log(ctx, "error", "create_payment_intent", map[string]any{"error": err.Error()})
		return nil, err
	}
	if resp.PayURL == "" {
		err := pkgerrors.New(pkgerrors.CodeDependency, "paygate returned empty pay url")
		c.log(ctx, "error", "create_payment_intent", map[string]any{"error": err.Error()})
		return nil, err
	}

	c.log(ctx, "response", "create_payment_intent", map[string]any{"request_id": params.RequestID})
	return &PaymentIntent{PayURL: resp.PayURL, RequestID: params.RequestID}, nil
}

// DecodeNotification verifies the IPN signature and decodes the callback payload.
func (c *Client) DecodeNotification(body []byte) (*Notification, error) {
	var raw map[string]string
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decoding gateway notification")
	}

	signature := raw[signatureField]
	if !VerifySignature(c.secretKey, raw, signature) {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "gateway notification signature mismatch")
	}

	amount, err := strconv.Atoi(raw["amount"])
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "parsing notification amount")
	}

	return &Notification{
		RequestID:    raw["request_id"],
		OrderID:      raw["order_id"],
		AmountCents:  amount,
		ResultCode:   raw["result_code"],
		GatewayTxnID: raw["gateway_txn_id"],
		Message:      raw["message"],
	}, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encoding paygate request")
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "building paygate request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "calling paygate api")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reading paygate response")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("paygate api returned status %d", resp.StatusCode))
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decoding paygate response")
		}
	}
	return nil
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
		c.logger.Error(ctx, fmt.Sprintf("paygate %s", op), errors.New(fmt.Sprint(fields["error"])))
	default:
		c.logger.Info(ctx, fmt.Sprintf("paygate %s", phase))
	}
}

func (c *Client) redact(key string, value any) any {
	lower := strings.ToLower(key)
	for _, sensitive := range []string{"secret", "signature", "token"} {
		if strings.Contains(lower, sensitive) {
			return "[REDACTED]"
		}
	}
	return value
}
