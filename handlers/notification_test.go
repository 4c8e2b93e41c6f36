package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"storefront-svc/models"
	"storefront-svc/orders"
	"storefront-svc/signature"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

func completeNotification(orderID, amount string) map[string]string {
	return map[string]string{
		"m_payment_id":   orderID,
		"pf_payment_id":  "1089250",
		"payment_status": "COMPLETE",
		"item_name":      "Order " + orderID,
		"amount_gross":   amount,
		"amount_fee":     "-2.28",
		"amount_net":     "96.72",
		"email_address":  "buyer@example.com",
		"merchant_id":    "10000100",
	}
}

func signedForm(fields map[string]string) url.Values {
	form := url.Values{}
	for k, v := range fields {
		form.Set(k, v)
	}
	form.Set("signature", signature.Sign(fields, testPassphrase))
	return form
}

func postNotification(router http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/payments/notify", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestNotification_HappyPath(t *testing.T) {
	env := setupTestEnv(t)

	w := postNotification(env.router, signedForm(completeNotification("ord-1", "99.00")).Encode())

	if w.Code != http.StatusOK {
		t.Errorf("Expected status %d, got %d", http.StatusOK, w.Code)
	}
	if w.Body.Len() != 0 {
		t.Errorf("Expected empty body, got %q", w.Body.String())
	}

	order := env.order(t, "ord-1")
	if order.Status != models.OrderStatusPaid {
		t.Errorf("Expected status %s, got %s", models.OrderStatusPaid, order.Status)
	}
	if order.GatewayPaymentID != "1089250" {
		t.Errorf("Expected gateway payment id 1089250, got %s", order.GatewayPaymentID)
	}
	if stock := env.stock(t, "prod-a"); stock != 8 {
		t.Errorf("Expected stock 8, got %d", stock)
	}
	if env.dispatcher.count() != 1 {
		t.Errorf("Expected 1 dispatched event, got %d", env.dispatcher.count())
	}
}

func TestNotification_ReplayIsAcknowledgedOnce(t *testing.T) {
	env := setupTestEnv(t)
	body := signedForm(completeNotification("ord-1", "99.00")).Encode()

	for i := 0; i < 3; i++ {
		w := postNotification(env.router, body)
		if w.Code != http.StatusOK {
			t.Errorf("Delivery %d: expected status %d, got %d", i+1, http.StatusOK, w.Code)
		}
	}

	if status := env.order(t, "ord-1").Status; status != models.OrderStatusPaid {
		t.Errorf("Expected status %s, got %s", models.OrderStatusPaid, status)
	}
	if stock := env.stock(t, "prod-a"); stock != 8 {
		t.Errorf("Expected stock 8 after replays, got %d", stock)
	}
	if env.dispatcher.count() != 1 {
		t.Errorf("Expected 1 dispatched event, got %d", env.dispatcher.count())
	}
}

func TestNotification_ForgedSignature(t *testing.T) {
	env := setupTestEnv(t)
	form := signedForm(completeNotification("ord-1", "99.00"))
	form.Set("signature", strings.Repeat("0", 32))

	w := postNotification(env.router, form.Encode())

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status %d, got %d", http.StatusBadRequest, w.Code)
	}
	if w.Body.Len() != 0 {
		t.Errorf("Expected empty body, got %q", w.Body.String())
	}
	if status := env.order(t, "ord-1").Status; status != models.OrderStatusPending {
		t.Errorf("Expected status %s, got %s", models.OrderStatusPending, status)
	}
	if stock := env.stock(t, "prod-a"); stock != 10 {
		t.Errorf("Expected stock 10, got %d", stock)
	}
}

func TestNotification_TamperedValue(t *testing.T) {
	env := setupTestEnv(t)
	form := signedForm(completeNotification("ord-1", "99.00"))
	form.Set("amount_gross", "1.00")

	w := postNotification(env.router, form.Encode())

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status %d, got %d", http.StatusBadRequest, w.Code)
	}
}

func TestNotification_MissingSignature(t *testing.T) {
	env := setupTestEnv(t)
	form := signedForm(completeNotification("ord-1", "99.00"))
	form.Del("signature")

	w := postNotification(env.router, form.Encode())

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status %d, got %d", http.StatusBadRequest, w.Code)
	}
}

func TestNotification_MethodNotAllowed(t *testing.T) {
	env := setupTestEnv(t)

	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete} {
		req := httptest.NewRequest(method, "/payments/notify", nil)
		w := httptest.NewRecorder()
		env.router.ServeHTTP(w, req)

		if w.Code != http.StatusMethodNotAllowed {
			t.Errorf("%s: expected status %d, got %d", method, http.StatusMethodNotAllowed, w.Code)
		}
	}
}

func TestNotification_BusinessRejectionsAreAcknowledged(t *testing.T) {
	tests := []struct {
		name   string
		fields map[string]string
	}{
		{
			name: "not complete",
			fields: func() map[string]string {
				f := completeNotification("ord-1", "99.00")
				f["payment_status"] = "CANCELLED"
				return f
			}(),
		},
		{name: "unknown order", fields: completeNotification("ord-404", "99.00")},
		{name: "amount mismatch", fields: completeNotification("ord-1", "99.02")},
		{name: "unparsable amount", fields: completeNotification("ord-1", "ninety-nine")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupTestEnv(t)

			w := postNotification(env.router, signedForm(tt.fields).Encode())

			if w.Code != http.StatusOK {
				t.Errorf("Expected status %d, got %d", http.StatusOK, w.Code)
			}
			if w.Body.Len() != 0 {
				t.Errorf("Expected empty body, got %q", w.Body.String())
			}
			if status := env.order(t, "ord-1").Status; status != models.OrderStatusPending {
				t.Errorf("Expected status %s, got %s", models.OrderStatusPending, status)
			}
			if stock := env.stock(t, "prod-a"); stock != 10 {
				t.Errorf("Expected stock 10, got %d", stock)
			}
		})
	}
}

func TestNotification_AmountWithinTolerance(t *testing.T) {
	env := setupTestEnv(t)

	w := postNotification(env.router, signedForm(completeNotification("ord-1", "99.01")).Encode())

	if w.Code != http.StatusOK {
		t.Errorf("Expected status %d, got %d", http.StatusOK, w.Code)
	}
	if status := env.order(t, "ord-1").Status; status != models.OrderStatusPaid {
		t.Errorf("Expected status %s, got %s", models.OrderStatusPaid, status)
	}
}

func TestNotification_DuplicateKeysLastWins(t *testing.T) {
	env := setupTestEnv(t)
	fields := completeNotification("ord-1", "99.00")
	body := "m_payment_id=ord-404&" + signedForm(fields).Encode()

	w := postNotification(env.router, body)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status %d, got %d", http.StatusOK, w.Code)
	}
	if status := env.order(t, "ord-1").Status; status != models.OrderStatusPaid {
		t.Errorf("Expected status %s, got %s", models.OrderStatusPaid, status)
	}
}

type failingConfirmer struct{}

func (failingConfirmer) ConfirmPayment(ctx context.Context, c orders.Confirmation) (orders.Outcome, error) {
	return "", errors.New("database is unavailable")
}

func TestNotification_PersistenceFailureIsAcknowledged(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewNotificationHandler(failingConfirmer{}, testPassphrase, zaptest.NewLogger(t, zaptest.Level(zap.InfoLevel)))
	router := gin.New()
	router.Any("/payments/notify", handler.HandleNotification)

	w := postNotification(router, signedForm(completeNotification("ord-1", "99.00")).Encode())

	if w.Code != http.StatusOK {
		t.Errorf("Expected status %d, got %d", http.StatusOK, w.Code)
	}
	if w.Body.Len() != 0 {
		t.Errorf("Expected empty body, got %q", w.Body.String())
	}
}
