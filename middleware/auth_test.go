package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

var testSecret = []byte("test-secret")

func setupAuthRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/admin/ping", AdminAuth(testSecret), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"subject": AdminSubject(c)})
	})
	return router
}

func doAuthRequest(router *gin.Engine, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/admin/ping", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestAdminAuth_ValidToken(t *testing.T) {
	router := setupAuthRouter()

	token, err := IssueAdminToken(testSecret, "ops@example.com", time.Hour)
	if err != nil {
		t.Fatalf("Failed to issue token: %v", err)
	}

	w := doAuthRequest(router, "Bearer "+token)
	if w.Code != http.StatusOK {
		t.Errorf("Expected status %d, got %d", http.StatusOK, w.Code)
	}
	if w.Body.String() != `{"subject":"ops@example.com"}` {
		t.Errorf("Unexpected body %s", w.Body.String())
	}
}

func TestAdminAuth_MissingHeader(t *testing.T) {
	w := doAuthRequest(setupAuthRouter(), "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status %d, got %d", http.StatusUnauthorized, w.Code)
	}
}

func TestAdminAuth_WrongSecret(t *testing.T) {
	token, _ := IssueAdminToken([]byte("other"), "ops", time.Hour)

	w := doAuthRequest(setupAuthRouter(), "Bearer "+token)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status %d, got %d", http.StatusUnauthorized, w.Code)
	}
}

func TestAdminAuth_Expired(t *testing.T) {
	token, _ := IssueAdminToken(testSecret, "ops", -time.Minute)

	w := doAuthRequest(setupAuthRouter(), "Bearer "+token)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status %d, got %d", http.StatusUnauthorized, w.Code)
	}
}

func TestAdminAuth_NonAdminRole(t *testing.T) {
	token, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, AdminClaims{
		Role: "customer",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString(testSecret)

	w := doAuthRequest(setupAuthRouter(), "Bearer "+token)
	if w.Code != http.StatusForbidden {
		t.Errorf("Expected status %d, got %d", http.StatusForbidden, w.Code)
	}
}
