package paygate

const signatureField = "signature"

// Notification result codes reported by the gateway IPN.
const (
	ResultCodeSuccess = "0"
)

// PaymentIntentParams describes a redirect payment to initiate.
type PaymentIntentParams struct {
	RequestID   string
	OrderID     string
	AmountCents int
	OrderInfo   string
}

// PaymentIntent carries the gateway redirect the buyer must visit.
type PaymentIntent struct {
	PayURL    string
	RequestID string
}

// Notification is a verified, decoded gateway callback.
type Notification struct {
	RequestID    string
	OrderID      string
	AmountCents  int
	ResultCode   string
	GatewayTxnID string
	Message      string
}

// Succeeded reports whether the gateway marked the payment as captured.
func (n Notification) Succeeded() bool {
	return n.ResultCode == ResultCodeSuccess
}

type createIntentRequest struct {
	PartnerID   string `json:"partner_id"`
	RequestID   string `json:"request_id"`
	OrderID     string `json:"order_id"`
	Amount      int    `json:"amount"`
	OrderInfo   string `json:"order_info"`
	ReturnURL   string `json:"return_url"`
	NotifyURL   string `json:"notify_url"`
	RequestType string `json:"request_type"`
	Signature   string `json:"signature"`
}

type createIntentResponse struct {
	ResultCode string `json:"result_code"`
	Message    string `json:"message"`
	PayURL     string `json:"pay_url"`
}
