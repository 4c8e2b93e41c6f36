package handlers

import (
	"context"
	"errors"
	"net/http"

	"storefront-svc/cache"
	"storefront-svc/models"
	"storefront-svc/repository"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type ProductCache interface {
	GetProduct(ctx context.Context, id string) (*models.Product, error)
	SetProduct(ctx context.Context, p *models.Product) error
}

type ProductHandler struct {
	store  repository.Store
	cache  ProductCache
	logger *zap.Logger
}

// NewProductHandler returns a ProductHandler. cache may be nil.
func NewProductHandler(store repository.Store, cache ProductCache, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{store: store, cache: cache, logger: logger}
}

func (h *ProductHandler) GetProduct(c *gin.Context) {
	ctx, span := otel.Tracer("storefront-service").Start(c.Request.Context(), "GetProduct")
	defer span.End()

	id := c.Param("id")
	span.SetAttributes(attribute.String("product.id", id))

	if h.cache != nil {
		product, err := h.cache.GetProduct(ctx, id)
		if err == nil {
			span.SetAttributes(attribute.Bool("cache.hit", true))
			c.JSON(http.StatusOK, product)
			return
		}
		if !errors.Is(err, cache.ErrMiss) {
			h.logger.Warn("Product cache read failed", zap.String("product_id", id), zap.Error(err))
		}
	}

	product, err := h.store.GetProduct(ctx, id)
	if errors.Is(err, repository.ErrProductNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
		return
	}
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to get product", zap.String("product_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	if h.cache != nil {
		if err := h.cache.SetProduct(ctx, product); err != nil {
			h.logger.Warn("Product cache write failed", zap.String("product_id", id), zap.Error(err))
		}
	}

	c.JSON(http.StatusOK, product)
}
