// Package orders owns the order lifecycle: which status changes are legal and
// what each one does to stock and downstream consumers.
package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront-svc/inventory"
	"storefront-svc/middleware"
	"storefront-svc/models"
	"storefront-svc/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var (
	ErrIllegalTransition = errors.New("illegal order transition")
	ErrTrackingRequired  = errors.New("tracking reference is required to ship")
)

const (
	EventOrderPaid      = "order_paid"
	EventOrderCancelled = "order_cancelled"
	EventOrderShipped   = "order_shipped"
)

// AmountTolerance is the largest accepted difference between a notified
// gross amount and the order total.
var AmountTolerance = decimal.New(1, -2)

type edge struct {
	from models.OrderStatus
	to   models.OrderStatus
}

type rule struct {
	stock inventory.Direction // zero means no stock change
	event string
}

var transitions = map[edge]rule{
	{models.OrderStatusPending, models.OrderStatusPaid}:      {stock: inventory.Decrement, event: EventOrderPaid},
	{models.OrderStatusPending, models.OrderStatusCancelled}: {event: EventOrderCancelled},
	{models.OrderStatusPaid, models.OrderStatusCancelled}:    {stock: inventory.Restock, event: EventOrderCancelled},
	{models.OrderStatusPaid, models.OrderStatusShipped}:      {event: EventOrderShipped},
}

// Allowed reports whether from -> to is in the transition table.
func Allowed(from, to models.OrderStatus) bool {
	if from.Terminal() {
		return false
	}
	_, ok := transitions[edge{from, to}]
	return ok
}

// Dispatcher receives the side effect of a committed transition.
type Dispatcher interface {
	Dispatch(ctx context.Context, event models.OrderEvent)
}

type Machine struct {
	store      repository.Store
	adjuster   *inventory.Adjuster
	dispatcher Dispatcher
	logger     *zap.Logger
	tracer     trace.Tracer
}

func NewMachine(store repository.Store, adjuster *inventory.Adjuster, dispatcher Dispatcher, logger *zap.Logger) *Machine {
	return &Machine{
		store:      store,
		adjuster:   adjuster,
		dispatcher: dispatcher,
		logger:     logger,
		tracer:     otel.Tracer("order-state-machine"),
	}
}

type TransitionRequest struct {
	OrderID          string
	To               models.OrderStatus
	GatewayPaymentID string
	TrackingRef      string
}

// Transition applies an administrative status change. An illegal change is
// logged and reported as ErrIllegalTransition without touching the order.
func (m *Machine) Transition(ctx context.Context, req TransitionRequest) (*models.Order, error) {
	ctx, span := m.tracer.Start(ctx, "Transition")
	defer span.End()
	span.SetAttributes(
		attribute.String("order.id", req.OrderID),
		attribute.String("order.to", string(req.To)),
	)

	if req.To == models.OrderStatusShipped && req.TrackingRef == "" {
		return nil, ErrTrackingRequired
	}

	order, err := m.store.GetOrder(ctx, req.OrderID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	if !Allowed(order.Status, req.To) {
		m.logger.Warn("Illegal order transition ignored",
			zap.String("trace_id", middleware.GetTraceID(ctx)),
			zap.String("order_id", order.ID),
			zap.String("from", string(order.Status)),
			zap.String("to", string(req.To)),
		)
		return order, ErrIllegalTransition
	}

	change := repository.StatusChange{GatewayPaymentID: req.GatewayPaymentID, TrackingRef: req.TrackingRef}
	if err := m.apply(ctx, order, req.To, change); err != nil {
		span.RecordError(err)
		if errors.Is(err, repository.ErrStatusConflict) {
			m.logger.Warn("Order changed status concurrently",
				zap.String("trace_id", middleware.GetTraceID(ctx)),
				zap.String("order_id", order.ID),
				zap.String("expected", string(order.Status)),
			)
			return nil, ErrIllegalTransition
		}
		return nil, err
	}

	return m.store.GetOrder(ctx, order.ID)
}

// apply moves order from its current status to `to` inside one transaction
// together with the stock changes the transition requires, then records and
// dispatches the committed change. order is updated in place.
func (m *Machine) apply(ctx context.Context, order *models.Order, to models.OrderStatus, change repository.StatusChange) error {
	from := order.Status
	r := transitions[edge{from, to}]

	var adjustments []inventory.Adjustment
	err := m.store.InTx(ctx, func(tx repository.Tx) error {
		if err := tx.UpdateStatus(ctx, order.ID, from, to, change); err != nil {
			return err
		}
		if r.stock == 0 {
			return nil
		}

		items, err := tx.OrderItems(ctx, order.ID)
		if err != nil {
			return fmt.Errorf("failed to load order items: %w", err)
		}
		adjustments, err = m.adjuster.Apply(ctx, tx, items, r.stock)
		return err
	})
	if err != nil {
		return err
	}

	if r.stock != 0 {
		m.adjuster.Committed(ctx, adjustments, r.stock)
	}
	middleware.RecordOrderTransition(string(from), string(to))

	order.Status = to
	if change.GatewayPaymentID != "" {
		order.GatewayPaymentID = change.GatewayPaymentID
	}
	if change.TrackingRef != "" {
		order.TrackingRef = change.TrackingRef
	}

	m.logger.Info("Order transitioned",
		zap.String("trace_id", middleware.GetTraceID(ctx)),
		zap.String("order_id", order.ID),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
	)

	m.dispatcher.Dispatch(ctx, models.OrderEvent{
		EventID:          uuid.NewString(),
		EventType:        r.event,
		OrderID:          order.ID,
		OwnerID:          order.OwnerID,
		BuyerEmail:       order.BuyerEmail,
		Status:           to,
		TotalAmount:      order.TotalAmount,
		GatewayPaymentID: order.GatewayPaymentID,
		TrackingRef:      order.TrackingRef,
		OccurredAt:       time.Now().UTC(),
	})
	return nil
}
