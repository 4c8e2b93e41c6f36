package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	paymentITNTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_itn_total",
			Help: "Total number of payment notifications by outcome",
		},
		[]string{"outcome"},
	)

	orderTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "order_transitions_total",
			Help: "Total number of applied order status transitions",
		},
		[]string{"from", "to"},
	)

	inventoryAdjustmentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inventory_adjustments_total",
			Help: "Total number of committed per-product stock adjustments",
		},
		[]string{"direction"},
	)

	sideEffectsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "side_effects_total",
			Help: "Total number of dispatched side effects by result",
		},
		[]string{"event_type", "result"},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpRequestDuration)
	prometheus.MustRegister(paymentITNTotal)
	prometheus.MustRegister(orderTransitionsTotal)
	prometheus.MustRegister(inventoryAdjustmentsTotal)
	prometheus.MustRegister(sideEffectsTotal)
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		c.Next()

		status := strconv.Itoa(c.Writer.Status())
		duration := time.Since(start).Seconds()

		httpRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, path).Observe(duration)
	}
}

func PrometheusHandler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}

func RecordPaymentNotification(outcome string) {
	paymentITNTotal.WithLabelValues(outcome).Inc()
}

func RecordOrderTransition(from, to string) {
	orderTransitionsTotal.WithLabelValues(from, to).Inc()
}

func RecordInventoryAdjustment(direction string) {
	inventoryAdjustmentsTotal.WithLabelValues(direction).Inc()
}

func RecordSideEffect(eventType, result string) {
	sideEffectsTotal.WithLabelValues(eventType, result).Inc()
}
