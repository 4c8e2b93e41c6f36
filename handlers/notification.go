package handlers

import (
	"context"
	"net/http"

	"storefront-svc/middleware"
	"storefront-svc/models"
	"storefront-svc/orders"
	"storefront-svc/signature"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const maxNotificationBytes = 64 << 10

// PaymentConfirmer applies a verified payment to its order.
type PaymentConfirmer interface {
	ConfirmPayment(ctx context.Context, c orders.Confirmation) (orders.Outcome, error)
}

// NotificationHandler receives the gateway's ITN callbacks.
//
// Only a missing or forged signature (or an unreadable body) is answered
// with 400. Every other outcome is acknowledged with an empty 200 so the
// gateway does not retry conditions that retrying cannot fix.
type NotificationHandler struct {
	confirmer  PaymentConfirmer
	passphrase string
	logger     *zap.Logger
}

func NewNotificationHandler(confirmer PaymentConfirmer, passphrase string, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{
		confirmer:  confirmer,
		passphrase: passphrase,
		logger:     logger,
	}
}

func (h *NotificationHandler) HandleNotification(c *gin.Context) {
	if c.Request.Method != http.MethodPost {
		c.Header("Allow", http.MethodPost)
		c.Status(http.StatusMethodNotAllowed)
		return
	}

	ctx, span := otel.Tracer("storefront-service").Start(c.Request.Context(), "HandlePaymentNotification")
	defer span.End()
	traceID := middleware.GetTraceID(ctx)

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxNotificationBytes)
	if err := c.Request.ParseForm(); err != nil {
		h.reject(c, "malformed", zap.String("trace_id", traceID), zap.Error(err))
		return
	}

	payload := make(models.NotificationPayload, len(c.Request.PostForm))
	for key, values := range c.Request.PostForm {
		if len(values) > 0 {
			payload[key] = values[len(values)-1]
		}
	}

	orderID := payload.Get(models.FieldMerchantPayment)
	span.SetAttributes(attribute.String("order.id", orderID))

	claimed := payload.Get(models.FieldSignature)
	if claimed == "" {
		h.reject(c, "missing_signature", zap.String("trace_id", traceID), zap.String("order_id", orderID))
		return
	}
	if !signature.Verify(payload.Unsigned(), claimed, h.passphrase) {
		h.reject(c, "invalid_signature",
			zap.String("trace_id", traceID),
			zap.String("order_id", orderID),
			zap.String("remote_addr", c.ClientIP()),
		)
		return
	}

	status := payload.Get(models.FieldPaymentStatus)
	if status != models.PaymentStatusComplete {
		h.acknowledge(c, "not_complete",
			zap.String("trace_id", traceID),
			zap.String("order_id", orderID),
			zap.String("payment_status", status),
		)
		return
	}

	amount, err := decimal.NewFromString(payload.Get(models.FieldAmountGross))
	if err != nil {
		h.acknowledge(c, "invalid_amount",
			zap.String("trace_id", traceID),
			zap.String("order_id", orderID),
			zap.Error(err),
		)
		return
	}

	outcome, err := h.confirmer.ConfirmPayment(ctx, orders.Confirmation{
		OrderID:          orderID,
		AmountGross:      amount,
		GatewayPaymentID: payload.Get(models.FieldGatewayPaymentID),
	})
	if err != nil {
		span.RecordError(err)
		middleware.RecordPaymentNotification("persistence_error")
		h.logger.Error("Failed to apply payment notification",
			zap.String("trace_id", traceID),
			zap.String("order_id", orderID),
			zap.Error(err),
		)
		c.Status(http.StatusOK)
		return
	}

	h.acknowledge(c, string(outcome), zap.String("trace_id", traceID), zap.String("order_id", orderID))
}

func (h *NotificationHandler) reject(c *gin.Context, outcome string, fields ...zap.Field) {
	middleware.RecordPaymentNotification(outcome)
	h.logger.Warn("Payment notification rejected", append(fields, zap.String("outcome", outcome))...)
	c.Status(http.StatusBadRequest)
}

func (h *NotificationHandler) acknowledge(c *gin.Context, outcome string, fields ...zap.Field) {
	middleware.RecordPaymentNotification(outcome)
	h.logger.Info("Payment notification acknowledged", append(fields, zap.String("outcome", outcome))...)
	c.Status(http.StatusOK)
}
