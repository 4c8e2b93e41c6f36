package repository

import (
	"context"
	"sync"
	"time"

	"storefront-svc/models"
)

// MemoryStore is an in-process Store. Transactions are serialized by a single
// lock and rolled back by restoring a snapshot, which gives tests the same
// all-or-nothing and compare-and-swap behaviour as Postgres.
type MemoryStore struct {
	mu       sync.Mutex
	orders   map[string]models.Order
	items    map[string][]models.OrderItem
	products map[string]models.Product
	nextItem int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		orders:   make(map[string]models.Order),
		items:    make(map[string][]models.OrderItem),
		products: make(map[string]models.Product),
	}
}

// PutProduct inserts or replaces a product.
func (s *MemoryStore) PutProduct(p models.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = p
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

func (s *MemoryStore) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	order.Items = append([]models.OrderItem(nil), s.items[id]...)
	return &order, nil
}

func (s *MemoryStore) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[id]
	if !ok {
		return nil, ErrProductNotFound
	}
	return &p, nil
}

func (s *MemoryStore) CreateOrder(ctx context.Context, order *models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, item := range order.Items {
		if _, ok := s.products[item.ProductID]; !ok {
			return ErrProductNotFound
		}
	}

	now := time.Now().UTC()
	order.CreatedAt, order.UpdatedAt = now, now
	for i := range order.Items {
		s.nextItem++
		order.Items[i].ID = s.nextItem
		order.Items[i].OrderID = order.ID
	}

	stored := *order
	stored.Items = nil
	s.orders[order.ID] = stored
	s.items[order.ID] = append([]models.OrderItem(nil), order.Items...)
	return nil
}

func (s *MemoryStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	orders := make(map[string]models.Order, len(s.orders))
	for k, v := range s.orders {
		orders[k] = v
	}
	products := make(map[string]models.Product, len(s.products))
	for k, v := range s.products {
		products[k] = v
	}

	if err := fn(memoryTx{s: s}); err != nil {
		s.orders, s.products = orders, products
		return err
	}
	return nil
}

type memoryTx struct {
	s *MemoryStore
}

func (t memoryTx) UpdateStatus(ctx context.Context, orderID string, from, to models.OrderStatus, change StatusChange) error {
	order, ok := t.s.orders[orderID]
	if !ok || order.Status != from {
		return ErrStatusConflict
	}
	order.Status = to
	if change.GatewayPaymentID != "" {
		order.GatewayPaymentID = change.GatewayPaymentID
	}
	if change.TrackingRef != "" {
		order.TrackingRef = change.TrackingRef
	}
	order.UpdatedAt = time.Now().UTC()
	t.s.orders[orderID] = order
	return nil
}

func (t memoryTx) OrderItems(ctx context.Context, orderID string) ([]models.OrderItem, error) {
	return append([]models.OrderItem(nil), t.s.items[orderID]...), nil
}

func (t memoryTx) AdjustStock(ctx context.Context, productID string, delta int) (int, error) {
	p, ok := t.s.products[productID]
	if !ok {
		return 0, ErrProductNotFound
	}
	p.StockQuantity = max(p.StockQuantity+delta, 0)
	p.UpdatedAt = time.Now().UTC()
	t.s.products[productID] = p
	return p.StockQuantity, nil
}
