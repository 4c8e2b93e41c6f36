package repository

import (
	"context"
	"errors"

	"storefront-svc/models"
)

var (
	ErrOrderNotFound   = errors.New("order not found")
	ErrProductNotFound = errors.New("product not found")
	// ErrStatusConflict means the order was no longer in the expected status
	// when the conditional update ran.
	ErrStatusConflict = errors.New("order status conflict")
)

// StatusChange carries the optional columns written with a status update.
// Empty fields keep their stored value.
type StatusChange struct {
	GatewayPaymentID string
	TrackingRef      string
}

// Store is the record store behind the order pipeline.
type Store interface {
	GetOrder(ctx context.Context, id string) (*models.Order, error)
	GetProduct(ctx context.Context, id string) (*models.Product, error)
	CreateOrder(ctx context.Context, order *models.Order) error
	// InTx runs fn in a single transaction. fn's error rolls everything back.
	InTx(ctx context.Context, fn func(tx Tx) error) error
	Ping(ctx context.Context) error
}

// Tx is the write surface used by state transitions.
type Tx interface {
	// UpdateStatus moves the order from -> to only if it is currently in
	// from. It returns ErrStatusConflict when no row matched.
	UpdateStatus(ctx context.Context, orderID string, from, to models.OrderStatus, change StatusChange) error
	OrderItems(ctx context.Context, orderID string) ([]models.OrderItem, error)
	// AdjustStock adds delta to the product's stock, clamped at zero, and
	// returns the stored value.
	AdjustStock(ctx context.Context, productID string, delta int) (int, error)
}
