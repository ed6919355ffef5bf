package paygate

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/dtrandev/marketloop-backend/pkg/config"
	pkgerrors "github.com/dtrandev/marketloop-backend/pkg/errors"
	"github.com/dtrandev/marketloop-backend/pkg/logger"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	logg := logger.New(logger.Options{ServiceName: "test", Level: zerolog.ErrorLevel})
	cfg := config.PaygateConfig{
		BaseURL:   srv.URL,
		PartnerID: "partner-1",
		SecretKey: "pg-secret",
		ReturnURL: "https://shop.example.com/return",
		NotifyURL: "https://shop.example.com/notify",
		Timeout:   5 * time.Second,
	}
	client, err := NewClient(context.Background(), cfg, logg)
	if err != nil {
		t.Fatalf("init client: %v", err)
	}
	return client
}

func TestSignAndVerify(t *testing.T) {
	params := map[string]string{
		"partner_id": "partner-1",
		"request_id": "req-1",
		"amount":     "5000",
	}
	sig := Sign("pg-secret", params)
	if sig == "" {
		t.Fatal("expected non-empty signature")
	}

	if !VerifySignature("pg-secret", params, sig) {
		t.Fatal("expected signature to verify")
	}
	if VerifySignature("other-secret", params, sig) {
		t.Fatal("signature verified under wrong secret")
	}

	params["amount"] = "9999"
	if VerifySignature("pg-secret", params, sig) {
		t.Fatal("signature verified for tampered params")
	}
}

func TestSign_IgnoresSignatureField(t *testing.T) {
	base := map[string]string{"a": "1", "b": "2"}
	withSig := map[string]string{"a": "1", "b": "2", "signature": "bogus"}
	if Sign("s", base) != Sign("s", withSig) {
		t.Fatal("signature field must not be part of the signed payload")
	}
}

func TestCreatePaymentIntent(t *testing.T) {
	var gotReq createIntentRequest
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(createIntentResponse{
			ResultCode: "0",
			Message:    "ok",
			PayURL:     "https://pay.example.com/intent/abc",
		})
	}))

	intent, err := client.CreatePaymentIntent(context.Background(), PaymentIntentParams{
		RequestID:   "order-1-1700000000",
		OrderID:     "order-1",
		AmountCents: 125000,
		OrderInfo:   "MarketLoop order",
	})
	if err != nil {
		t.Fatalf("create payment intent: %v", err)
	}
	if intent.PayURL != "https://pay.example.com/intent/abc" {
		t.Fatalf("unexpected pay url %q", intent.PayURL)
	}

	wantSig := Sign("pg-secret", map[string]string{
		"partner_id":   "partner-1",
		"request_id":   "order-1-1700000000",
		"order_id":     "order-1",
		"amount":       strconv.Itoa(125000),
		"request_type": requestTypeRedirect,
	})
	if gotReq.Signature != wantSig {
		t.Fatalf("outbound request not signed correctly")
	}
}

func TestCreatePaymentIntent_GatewayFailure(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(createIntentResponse{ResultCode: "43", Message: "duplicate request"})
	}))

	_, err := client.CreatePaymentIntent(context.Background(), PaymentIntentParams{
		RequestID:   "req-1",
		OrderID:     "order-1",
		AmountCents: 1000,
	})
	if err == nil {
		t.Fatal("expected gateway failure to surface")
	}
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency code, got %v", err)
	}
}

func TestDecodeNotification(t *testing.T) {
	client := newTestClient(t, http.NotFoundHandler())

	payload := map[string]string{
		"request_id":     "order-1-1700000000",
		"order_id":       "order-1",
		"amount":         "125000",
		"result_code":    "0",
		"gateway_txn_id": "gw-987",
		"message":        "captured",
	}
	payload["signature"] = Sign("pg-secret", payload)
	body, _ := json.Marshal(payload)

	notif, err := client.DecodeNotification(body)
	if err != nil {
		t.Fatalf("decode notification: %v", err)
	}
	if !notif.Succeeded() {
		t.Fatal("expected success notification")
	}
	if notif.AmountCents != 125000 || notif.GatewayTxnID != "gw-987" {
		t.Fatalf("unexpected notification: %+v", notif)
	}
}

func TestDecodeNotification_BadSignature(t *testing.T) {
	client := newTestClient(t, http.NotFoundHandler())

	payload := map[string]string{
		"request_id":  "req-1",
		"order_id":    "order-1",
		"amount":      "1000",
		"result_code": "0",
		"signature":   "deadbeef",
	}
	body, _ := json.Marshal(payload)

	_, err := client.DecodeNotification(body)
	if err == nil {
		t.Fatal("expected signature mismatch error")
	}
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeUnauthorized {
		t.Fatalf("expected unauthorized code, got %v", err)
	}
}
