package handlers

import (
	"storefront-svc/middleware"
	"storefront-svc/payment"

	"github.com/gin-gonic/gin"
)

// Handlers groups everything the REST router serves.
type Handlers struct {
	Notification *NotificationHandler
	Checkout     *CheckoutHandler
	Payment      *PaymentHandler
	Admin        *AdminHandler
	Product      *ProductHandler
}

// RegisterRoutes mounts the service routes on router. Admin routes require a
// bearer token signed with adminSecret.
func RegisterRoutes(router *gin.Engine, h Handlers, adminSecret []byte) {
	router.GET("/health", HealthCheck)
	router.GET("/metrics", middleware.PrometheusHandler())

	// Any method reaches the handler so it can answer 405 itself.
	router.Any(payment.NotifyPath, h.Notification.HandleNotification)

	router.POST("/orders", h.Checkout.CreateOrder)
	router.GET("/orders/:id", h.Checkout.GetOrder)
	router.GET("/orders/:id/payment", h.Payment.InitiatePayment)

	router.GET("/products/:id", h.Product.GetProduct)

	admin := router.Group("/admin", middleware.AdminAuth(adminSecret))
	admin.POST("/orders/:id/ship", h.Admin.ShipOrder)
	admin.POST("/orders/:id/cancel", h.Admin.CancelOrder)
	admin.POST("/orders/:id/mark-paid", h.Admin.MarkPaid)
}
