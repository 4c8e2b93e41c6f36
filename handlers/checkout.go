package handlers

import (
	"errors"
	"net/http"

	"storefront-svc/models"
	"storefront-svc/repository"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type CheckoutHandler struct {
	store  repository.Store
	logger *zap.Logger
}

func NewCheckoutHandler(store repository.Store, logger *zap.Logger) *CheckoutHandler {
	return &CheckoutHandler{store: store, logger: logger}
}

// CreateOrder starts checkout. Unit prices are copied from the catalog now
// and never re-read for this order.
func (h *CheckoutHandler) CreateOrder(c *gin.Context) {
	ctx, span := otel.Tracer("storefront-service").Start(c.Request.Context(), "CreateOrder")
	defer span.End()

	var req models.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	order := &models.Order{
		ID:          uuid.NewString(),
		OwnerID:     req.OwnerID,
		BuyerEmail:  req.BuyerEmail,
		Status:      models.OrderStatusPending,
		TotalAmount: decimal.Zero,
	}
	span.SetAttributes(attribute.String("order.id", order.ID))

	for _, item := range req.Items {
		product, err := h.store.GetProduct(ctx, item.ProductID)
		if errors.Is(err, repository.ErrProductNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Product not found", "product_id": item.ProductID})
			return
		}
		if err != nil {
			span.RecordError(err)
			h.logger.Error("Failed to load product", zap.String("product_id", item.ProductID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			return
		}

		order.Items = append(order.Items, models.OrderItem{
			ProductID: product.ID,
			Quantity:  item.Quantity,
			UnitPrice: product.Price,
		})
		order.TotalAmount = order.TotalAmount.Add(product.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	order.TotalAmount = order.TotalAmount.Round(2)

	if err := h.store.CreateOrder(ctx, order); err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
			return
		}
		span.RecordError(err)
		h.logger.Error("Failed to create order", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	h.logger.Info("Order created",
		zap.String("order_id", order.ID),
		zap.String("total_amount", order.TotalAmount.StringFixed(2)),
	)
	c.JSON(http.StatusCreated, order)
}

func (h *CheckoutHandler) GetOrder(c *gin.Context) {
	ctx, span := otel.Tracer("storefront-service").Start(c.Request.Context(), "GetOrder")
	defer span.End()

	id := c.Param("id")
	span.SetAttributes(attribute.String("order.id", id))

	order, err := h.store.GetOrder(ctx, id)
	if errors.Is(err, repository.ErrOrderNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
		return
	}
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to get order", zap.String("order_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, order)
}
