package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"storefront-svc/models"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type PostgresStore struct {
	db     *sql.DB
	logger *zap.Logger
	tracer trace.Tracer
}

func NewPostgresStore(db *sql.DB, logger *zap.Logger) *PostgresStore {
	return &PostgresStore{
		db:     db,
		logger: logger,
		tracer: otel.Tracer("order-repository"),
	}
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	ctx, span := s.tracer.Start(ctx, "OrderRepository.GetOrder")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", id))

	var order models.Order
	err := s.db.QueryRowContext(ctx,
		"SELECT id, owner_id, buyer_email, status, total_amount, gateway_payment_id, tracking_ref, created_at, updated_at FROM orders WHERE id = $1",
		id,
	).Scan(&order.ID, &order.OwnerID, &order.BuyerEmail, &order.Status, &order.TotalAmount,
		&order.GatewayPaymentID, &order.TrackingRef, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	items, err := orderItems(ctx, s.db, id)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	order.Items = items

	return &order, nil
}

func (s *PostgresStore) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	ctx, span := s.tracer.Start(ctx, "OrderRepository.GetProduct")
	defer span.End()
	span.SetAttributes(attribute.String("product.id", id))

	var p models.Product
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, price, stock_quantity, updated_at FROM products WHERE id = $1",
		id,
	).Scan(&p.ID, &p.Name, &p.Price, &p.StockQuantity, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get product: %w", err)
	}

	return &p, nil
}

// CreateOrder inserts the order and its items in one transaction and fills
// in the generated timestamps and item ids.
func (s *PostgresStore) CreateOrder(ctx context.Context, order *models.Order) error {
	ctx, span := s.tracer.Start(ctx, "OrderRepository.CreateOrder")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", order.ID))

	return s.withTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx,
			"INSERT INTO orders (id, owner_id, buyer_email, status, total_amount) VALUES ($1, $2, $3, $4, $5) RETURNING created_at, updated_at",
			order.ID, order.OwnerID, order.BuyerEmail, order.Status, order.TotalAmount,
		).Scan(&order.CreatedAt, &order.UpdatedAt)
		if err != nil {
			span.RecordError(err)
			return fmt.Errorf("failed to insert order: %w", err)
		}

		for i := range order.Items {
			item := &order.Items[i]
			item.OrderID = order.ID
			err := tx.QueryRowContext(ctx,
				"INSERT INTO order_items (order_id, product_id, quantity, unit_price) VALUES ($1, $2, $3, $4) RETURNING id",
				item.OrderID, item.ProductID, item.Quantity, item.UnitPrice,
			).Scan(&item.ID)
			if err != nil {
				span.RecordError(err)
				return fmt.Errorf("failed to insert order item: %w", err)
			}
		}
		return nil
	})
}

func (s *PostgresStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return fn(&postgresTx{tx: tx, tracer: s.tracer})
	})
}

func (s *PostgresStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			s.logger.Error("Failed to rollback transaction", zap.Error(rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type postgresTx struct {
	tx     *sql.Tx
	tracer trace.Tracer
}

func (t *postgresTx) UpdateStatus(ctx context.Context, orderID string, from, to models.OrderStatus, change StatusChange) error {
	ctx, span := t.tracer.Start(ctx, "OrderRepository.UpdateStatus")
	defer span.End()
	span.SetAttributes(
		attribute.String("order.id", orderID),
		attribute.String("status.from", string(from)),
		attribute.String("status.to", string(to)),
	)

	result, err := t.tx.ExecContext(ctx,
		`UPDATE orders SET status = $1,
			gateway_payment_id = COALESCE(NULLIF($2, ''), gateway_payment_id),
			tracking_ref = COALESCE(NULLIF($3, ''), tracking_ref),
			updated_at = CURRENT_TIMESTAMP
		WHERE id = $4 AND status = $5`,
		to, change.GatewayPaymentID, change.TrackingRef, orderID, from,
	)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to update order status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if rows == 0 {
		return ErrStatusConflict
	}
	return nil
}

func (t *postgresTx) OrderItems(ctx context.Context, orderID string) ([]models.OrderItem, error) {
	return orderItems(ctx, t.tx, orderID)
}

func (t *postgresTx) AdjustStock(ctx context.Context, productID string, delta int) (int, error) {
	ctx, span := t.tracer.Start(ctx, "OrderRepository.AdjustStock")
	defer span.End()
	span.SetAttributes(
		attribute.String("product.id", productID),
		attribute.Int("delta", delta),
	)

	var stock int
	err := t.tx.QueryRowContext(ctx,
		"UPDATE products SET stock_quantity = GREATEST(stock_quantity + $1, 0), updated_at = CURRENT_TIMESTAMP WHERE id = $2 RETURNING stock_quantity",
		delta, productID,
	).Scan(&stock)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrProductNotFound
		}
		span.RecordError(err)
		return 0, fmt.Errorf("failed to adjust stock: %w", err)
	}
	return stock, nil
}

func orderItems(ctx context.Context, q querier, orderID string) ([]models.OrderItem, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT id, order_id, product_id, quantity, unit_price FROM order_items WHERE order_id = $1 ORDER BY id",
		orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query order items: %w", err)
	}
	defer rows.Close()

	var items []models.OrderItem
	for rows.Next() {
		var item models.OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.Quantity, &item.UnitPrice); err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate order items: %w", err)
	}
	return items, nil
}
