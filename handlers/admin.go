package handlers

import (
	"context"
	"errors"
	"net/http"

	"storefront-svc/middleware"
	"storefront-svc/models"
	"storefront-svc/orders"
	"storefront-svc/repository"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Transitioner interface {
	Transition(ctx context.Context, req orders.TransitionRequest) (*models.Order, error)
}

// AdminHandler exposes the administrative order transitions. Routes are
// expected behind middleware.AdminAuth.
type AdminHandler struct {
	machine Transitioner
	logger  *zap.Logger
}

func NewAdminHandler(machine Transitioner, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{machine: machine, logger: logger}
}

func (h *AdminHandler) ShipOrder(c *gin.Context) {
	var req models.ShipOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.transition(c, orders.TransitionRequest{
		OrderID:     c.Param("id"),
		To:          models.OrderStatusShipped,
		TrackingRef: req.TrackingRef,
	})
}

func (h *AdminHandler) CancelOrder(c *gin.Context) {
	h.transition(c, orders.TransitionRequest{OrderID: c.Param("id"), To: models.OrderStatusCancelled})
}

// MarkPaid is the manual override for payments settled outside the gateway.
func (h *AdminHandler) MarkPaid(c *gin.Context) {
	h.transition(c, orders.TransitionRequest{OrderID: c.Param("id"), To: models.OrderStatusPaid})
}

func (h *AdminHandler) transition(c *gin.Context, req orders.TransitionRequest) {
	order, err := h.machine.Transition(c.Request.Context(), req)
	switch {
	case err == nil:
		h.logger.Info("Admin transition applied",
			zap.String("admin", middleware.AdminSubject(c)),
			zap.String("order_id", req.OrderID),
			zap.String("status", string(req.To)),
		)
		c.JSON(http.StatusOK, order)
	case errors.Is(err, repository.ErrOrderNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
	case errors.Is(err, orders.ErrTrackingRequired):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, orders.ErrIllegalTransition):
		resp := gin.H{"error": err.Error(), "requested": req.To}
		if order != nil {
			resp["status"] = order.Status
		}
		c.JSON(http.StatusConflict, resp)
	default:
		h.logger.Error("Admin transition failed",
			zap.String("order_id", req.OrderID),
			zap.String("status", string(req.To)),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
