package models

// Field names of the gateway's ITN form body.
const (
	FieldSignature        = "signature"
	FieldPaymentStatus    = "payment_status"
	FieldMerchantPayment  = "m_payment_id"
	FieldAmountGross      = "amount_gross"
	FieldGatewayPaymentID = "pf_payment_id"
)

// PaymentStatusComplete is the only ITN payment_status that confirms an order.
const PaymentStatusComplete = "COMPLETE"

// NotificationPayload is one decoded ITN body. It is never persisted.
type NotificationPayload map[string]string

func (p NotificationPayload) Get(key string) string {
	return p[key]
}

// Unsigned returns a copy of p without the signature field.
func (p NotificationPayload) Unsigned() map[string]string {
	out := make(map[string]string, len(p))
	for k, v := range p {
		if k == FieldSignature {
			continue
		}
		out[k] = v
	}
	return out
}

// PaymentRequest is what the checkout UI posts to the gateway as hidden form fields.
type PaymentRequest struct {
	Payload    map[string]string `json:"payload"`
	Signature  string            `json:"signature"`
	ProcessURL string            `json:"process_url"`
}
