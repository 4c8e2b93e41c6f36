// Package payment builds the signed redirect form that starts a gateway payment.
package payment

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"storefront-svc/config"
	"storefront-svc/models"
	"storefront-svc/signature"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var ErrOrderNotPending = errors.New("order is not awaiting payment")

// NotifyPath is where the gateway posts ITN callbacks.
const NotifyPath = "/payments/notify"

type OrderReader interface {
	GetOrder(ctx context.Context, id string) (*models.Order, error)
}

type Initiator struct {
	orders  OrderReader
	gateway config.Gateway
	logger  *zap.Logger
}

func NewInitiator(orders OrderReader, gateway config.Gateway, logger *zap.Logger) *Initiator {
	return &Initiator{orders: orders, gateway: gateway, logger: logger}
}

// Build returns the signed payload for a PENDING order. It has no side
// effects and may be called any number of times for the same order.
func (i *Initiator) Build(ctx context.Context, orderID string) (*models.PaymentRequest, error) {
	ctx, span := otel.Tracer("payment-initiator").Start(ctx, "BuildPaymentRequest")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", orderID))

	order, err := i.orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != models.OrderStatusPending {
		return nil, ErrOrderNotPending
	}

	base := strings.TrimRight(i.gateway.SiteBaseURL, "/")
	query := url.Values{"order_id": {order.ID}}.Encode()

	payload := map[string]string{
		"merchant_id":   i.gateway.MerchantID,
		"merchant_key":  i.gateway.MerchantKey,
		"return_url":    base + "/checkout/success?" + query,
		"cancel_url":    base + "/checkout/cancel?" + query,
		"notify_url":    base + NotifyPath,
		"email_address": order.BuyerEmail,
		"m_payment_id":  order.ID,
		"amount":        order.TotalAmount.StringFixed(2),
		"item_name":     fmt.Sprintf("Order %s", order.ID),
	}

	req := &models.PaymentRequest{
		Payload:    payload,
		Signature:  signature.Sign(payload, i.gateway.Passphrase),
		ProcessURL: i.gateway.ProcessURL,
	}

	i.logger.Info("Payment request built",
		zap.String("order_id", order.ID),
		zap.String("amount", payload["amount"]),
	)
	return req, nil
}
