package orders

import (
	"context"
	"errors"

	"storefront-svc/middleware"
	"storefront-svc/models"
	"storefront-svc/repository"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Outcome is how a verified payment notification was resolved.
type Outcome string

const (
	OutcomeConfirmed      Outcome = "confirmed"
	OutcomeUnknownOrder   Outcome = "unknown_order"
	OutcomeNotPending     Outcome = "not_pending"
	OutcomeAmountMismatch Outcome = "amount_mismatch"
)

// Confirmation is the actionable part of a verified "complete" notification.
type Confirmation struct {
	OrderID          string
	AmountGross      decimal.Decimal
	GatewayPaymentID string
}

// ConfirmPayment moves a PENDING order to PAID and decrements stock for its
// items. Orders that are unknown or already past PENDING are a no-op, which
// makes replayed and concurrent deliveries safe: the status write only
// succeeds while the order is still PENDING.
//
// A non-nil error means the write itself failed.
func (m *Machine) ConfirmPayment(ctx context.Context, c Confirmation) (Outcome, error) {
	ctx, span := m.tracer.Start(ctx, "ConfirmPayment")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", c.OrderID))

	order, err := m.store.GetOrder(ctx, c.OrderID)
	if errors.Is(err, repository.ErrOrderNotFound) {
		m.logger.Warn("Payment notification for unknown order",
			zap.String("trace_id", middleware.GetTraceID(ctx)),
			zap.String("order_id", c.OrderID),
		)
		return OutcomeUnknownOrder, nil
	}
	if err != nil {
		span.RecordError(err)
		return "", err
	}

	if order.Status != models.OrderStatusPending {
		m.logger.Info("Payment notification for non-pending order ignored",
			zap.String("trace_id", middleware.GetTraceID(ctx)),
			zap.String("order_id", order.ID),
			zap.String("status", string(order.Status)),
		)
		return OutcomeNotPending, nil
	}

	if !WithinTolerance(c.AmountGross, order.TotalAmount) {
		m.logger.Warn("Payment amount does not match order total",
			zap.String("trace_id", middleware.GetTraceID(ctx)),
			zap.String("order_id", order.ID),
			zap.String("amount_gross", c.AmountGross.String()),
			zap.String("total_amount", order.TotalAmount.StringFixed(2)),
		)
		return OutcomeAmountMismatch, nil
	}

	change := repository.StatusChange{GatewayPaymentID: c.GatewayPaymentID}
	if err := m.apply(ctx, order, models.OrderStatusPaid, change); err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			m.logger.Info("Order left pending before payment was applied",
				zap.String("trace_id", middleware.GetTraceID(ctx)),
				zap.String("order_id", order.ID),
			)
			return OutcomeNotPending, nil
		}
		span.RecordError(err)
		return "", err
	}
	return OutcomeConfirmed, nil
}

// WithinTolerance reports whether |notified - total| <= AmountTolerance.
func WithinTolerance(notified, total decimal.Decimal) bool {
	return notified.Sub(total).Abs().LessThanOrEqual(AmountTolerance)
}
