package handlers

import (
	"context"
	"sync"
	"testing"

	"storefront-svc/config"
	"storefront-svc/inventory"
	"storefront-svc/models"
	"storefront-svc/orders"
	"storefront-svc/payment"
	"storefront-svc/repository"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

const testPassphrase = "jt7NOE43FZPn"

var testAdminSecret = []byte("admin-secret")

type recordingDispatcher struct {
	mu     sync.Mutex
	events []models.OrderEvent
}

func (d *recordingDispatcher) Dispatch(ctx context.Context, event models.OrderEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, event)
}

func (d *recordingDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.events)
}

type testEnv struct {
	router     *gin.Engine
	store      *repository.MemoryStore
	dispatcher *recordingDispatcher
}

// setupTestEnv wires the full router over an in-memory store holding one
// PENDING order "ord-1" (2 x prod-a at 49.50, total 99.00).
func setupTestEnv(t *testing.T) *testEnv {
	gin.SetMode(gin.TestMode)
	logger := zaptest.NewLogger(t, zaptest.Level(zap.InfoLevel))

	store := repository.NewMemoryStore()
	store.PutProduct(models.Product{ID: "prod-a", Name: "Mug", Price: decimal.RequireFromString("49.50"), StockQuantity: 10})
	store.PutProduct(models.Product{ID: "prod-b", Name: "Saucer", Price: decimal.RequireFromString("12.25"), StockQuantity: 3})
	if err := store.CreateOrder(context.Background(), &models.Order{
		ID:          "ord-1",
		OwnerID:     "user-1",
		BuyerEmail:  "buyer@example.com",
		Status:      models.OrderStatusPending,
		TotalAmount: decimal.RequireFromString("99.00"),
		Items: []models.OrderItem{
			{ProductID: "prod-a", Quantity: 2, UnitPrice: decimal.RequireFromString("49.50")},
		},
	}); err != nil {
		t.Fatalf("Failed to seed order: %v", err)
	}

	dispatcher := &recordingDispatcher{}
	machine := orders.NewMachine(store, inventory.NewAdjuster(nil, logger), dispatcher, logger)
	initiator := payment.NewInitiator(store, config.Gateway{
		MerchantID:  "10000100",
		MerchantKey: "46f0cd694581a",
		Passphrase:  testPassphrase,
		ProcessURL:  "https://sandbox.payfast.co.za/eng/process",
		SiteBaseURL: "https://shop.example.com",
	}, logger)

	router := gin.New()
	RegisterRoutes(router, Handlers{
		Notification: NewNotificationHandler(machine, testPassphrase, logger),
		Checkout:     NewCheckoutHandler(store, logger),
		Payment:      NewPaymentHandler(initiator, logger),
		Admin:        NewAdminHandler(machine, logger),
		Product:      NewProductHandler(store, nil, logger),
	}, testAdminSecret)

	return &testEnv{router: router, store: store, dispatcher: dispatcher}
}

func (e *testEnv) order(t *testing.T, id string) *models.Order {
	order, err := e.store.GetOrder(context.Background(), id)
	if err != nil {
		t.Fatalf("Failed to load order %s: %v", id, err)
	}
	return order
}

func (e *testEnv) stock(t *testing.T, id string) int {
	product, err := e.store.GetProduct(context.Background(), id)
	if err != nil {
		t.Fatalf("Failed to load product %s: %v", id, err)
	}
	return product.StockQuantity
}
