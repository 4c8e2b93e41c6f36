package handlers

import (
	"context"
	"errors"
	"net/http"

	"storefront-svc/models"
	"storefront-svc/payment"
	"storefront-svc/repository"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type PaymentBuilder interface {
	Build(ctx context.Context, orderID string) (*models.PaymentRequest, error)
}

type PaymentHandler struct {
	builder PaymentBuilder
	logger  *zap.Logger
}

func NewPaymentHandler(builder PaymentBuilder, logger *zap.Logger) *PaymentHandler {
	return &PaymentHandler{builder: builder, logger: logger}
}

// InitiatePayment returns the signed form fields the browser posts to the gateway.
func (h *PaymentHandler) InitiatePayment(c *gin.Context) {
	id := c.Param("id")

	req, err := h.builder.Build(c.Request.Context(), id)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, req)
	case errors.Is(err, repository.ErrOrderNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
	case errors.Is(err, payment.ErrOrderNotPending):
		c.JSON(http.StatusConflict, gin.H{"error": "Order is not awaiting payment"})
	default:
		h.logger.Error("Failed to build payment request", zap.String("order_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
