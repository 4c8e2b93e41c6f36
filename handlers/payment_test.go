package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"storefront-svc/models"
	"storefront-svc/signature"
)

func TestInitiatePayment(t *testing.T) {
	env := setupTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/orders/ord-1/payment", nil)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d", http.StatusOK, w.Code)
	}

	var resp models.PaymentRequest
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Payload["amount"] != "99.00" {
		t.Errorf("Expected amount 99.00, got %s", resp.Payload["amount"])
	}
	if !signature.Verify(resp.Payload, resp.Signature, testPassphrase) {
		t.Errorf("Expected signature to verify")
	}
}

func TestInitiatePayment_NotPending(t *testing.T) {
	env := setupTestEnv(t)
	if w := adminRequest(t, env.router, "/admin/orders/ord-1/cancel", ""); w.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d", http.StatusOK, w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/orders/ord-1/payment", nil)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	if w.Code != http.StatusConflict {
		t.Errorf("Expected status %d, got %d", http.StatusConflict, w.Code)
	}
}

func TestInitiatePayment_UnknownOrder(t *testing.T) {
	env := setupTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/orders/ord-404/payment", nil)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status %d, got %d", http.StatusNotFound, w.Code)
	}
}
