package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusPaid      OrderStatus = "paid"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Terminal reports whether no further transition can leave s.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusShipped || s == OrderStatusCancelled
}

type Order struct {
	ID               string          `json:"id"`
	OwnerID          string          `json:"owner_id"`
	BuyerEmail       string          `json:"buyer_email"`
	Status           OrderStatus     `json:"status"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
	GatewayPaymentID string          `json:"gateway_payment_id,omitempty"`
	TrackingRef      string          `json:"tracking_ref,omitempty"`
	Items            []OrderItem     `json:"items,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// OrderItem carries the unit price frozen at checkout.
type OrderItem struct {
	ID        int64           `json:"id"`
	OrderID   string          `json:"order_id"`
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type CreateOrderRequest struct {
	OwnerID    string                   `json:"owner_id" binding:"required"`
	BuyerEmail string                   `json:"buyer_email" binding:"required,email"`
	Items      []CreateOrderItemRequest `json:"items" binding:"required,min=1,dive"`
}

type CreateOrderItemRequest struct {
	ProductID string `json:"product_id" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required,gt=0"`
}

type ShipOrderRequest struct {
	TrackingRef string `json:"tracking_ref" binding:"required"`
}

type OrderEvent struct {
	EventID          string          `json:"event_id"`
	EventType        string          `json:"event_type"` // order_paid, order_cancelled, order_shipped
	OrderID          string          `json:"order_id"`
	OwnerID          string          `json:"owner_id"`
	BuyerEmail       string          `json:"buyer_email"`
	Status           OrderStatus     `json:"status"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
	GatewayPaymentID string          `json:"gateway_payment_id,omitempty"`
	TrackingRef      string          `json:"tracking_ref,omitempty"`
	OccurredAt       time.Time       `json:"occurred_at"`
}
