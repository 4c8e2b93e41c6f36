// Package inventory applies the stock side effects of order transitions.
//
// A decrement and its restock are both driven by the order's stored items,
// so a cancellation can never return more stock than payment removed.
package inventory

import (
	"context"
	"fmt"

	"storefront-svc/middleware"
	"storefront-svc/models"
	"storefront-svc/repository"

	"go.uber.org/zap"
)

type Direction int

const (
	Decrement Direction = iota + 1
	Restock
)

func (d Direction) String() string {
	switch d {
	case Decrement:
		return "decrement"
	case Restock:
		return "restock"
	default:
		return "none"
	}
}

// StockCache is the read cache that must forget a product after its stock changes.
type StockCache interface {
	DeleteProduct(ctx context.Context, id string) error
}

// Adjustment is one applied stock change.
type Adjustment struct {
	ProductID string
	Delta     int
	Stock     int
}

type Adjuster struct {
	cache  StockCache
	logger *zap.Logger
}

// NewAdjuster returns an Adjuster. cache may be nil.
func NewAdjuster(cache StockCache, logger *zap.Logger) *Adjuster {
	return &Adjuster{cache: cache, logger: logger}
}

// Apply writes one atomic, zero-clamped stock update per item inside tx.
func (a *Adjuster) Apply(ctx context.Context, tx repository.Tx, items []models.OrderItem, dir Direction) ([]Adjustment, error) {
	sign := 0
	switch dir {
	case Decrement:
		sign = -1
	case Restock:
		sign = 1
	default:
		return nil, fmt.Errorf("unknown inventory direction %d", dir)
	}

	adjustments := make([]Adjustment, 0, len(items))
	for _, item := range items {
		delta := sign * item.Quantity
		stock, err := tx.AdjustStock(ctx, item.ProductID, delta)
		if err != nil {
			return nil, fmt.Errorf("failed to %s product %s: %w", dir, item.ProductID, err)
		}
		adjustments = append(adjustments, Adjustment{ProductID: item.ProductID, Delta: delta, Stock: stock})
	}
	return adjustments, nil
}

// Committed records metrics and evicts cached products once the transaction
// holding the adjustments has committed. Cache failures are logged only.
func (a *Adjuster) Committed(ctx context.Context, adjustments []Adjustment, dir Direction) {
	for _, adj := range adjustments {
		middleware.RecordInventoryAdjustment(dir.String())

		a.logger.Info("Stock adjusted",
			zap.String("trace_id", middleware.GetTraceID(ctx)),
			zap.String("product_id", adj.ProductID),
			zap.Int("delta", adj.Delta),
			zap.Int("stock", adj.Stock),
		)

		if a.cache == nil {
			continue
		}
		if err := a.cache.DeleteProduct(ctx, adj.ProductID); err != nil {
			a.logger.Warn("Failed to invalidate product cache",
				zap.String("product_id", adj.ProductID),
				zap.Error(err),
			)
		}
	}
}
