package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"revwork/internal/domain/auth"
)

func TestAuthPopulatesUser(t *testing.T) {
	secret := "test-secret"
	token, err := auth.GenerateToken(secret, auth.Claims{UserID: "u-1", Role: auth.RoleManager}, auth.TokenTTL)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	var got auth.UserContext
	var ok bool
	handler := Auth(secret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, ok = GetUser(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if !ok {
		t.Fatal("user not set on context")
	}
	if got.UserID != "u-1" || got.Role != auth.RoleManager {
		t.Fatalf("unexpected user: %+v", got)
	}
}

func TestAuthIgnoresBadToken(t *testing.T) {
	handler := Auth("test-secret")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := GetUser(r.Context()); ok {
			t.Fatal("bad token must leave the request anonymous")
		}
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	handler.ServeHTTP(httptest.NewRecorder(), req)
}

func TestRequireRole(t *testing.T) {
	secret := "test-secret"
	protected := RequireRole(auth.RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	wrapped := Auth(secret)(protected)

	// No token.
	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous request: got %d, want 401", rec.Code)
	}

	// Wrong role.
	empToken, _ := auth.GenerateToken(secret, auth.Claims{UserID: "u-2", Role: auth.RoleEmployee}, auth.TokenTTL)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+empToken)
	rec = httptest.NewRecorder()
	wrapped.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("employee request: got %d, want 403", rec.Code)
	}

	// Allowed role.
	adminToken, _ := auth.GenerateToken(secret, auth.Claims{UserID: "u-3", Role: auth.RoleAdmin}, auth.TokenTTL)
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	rec = httptest.NewRecorder()
	wrapped.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("admin request: got %d, want 204", rec.Code)
	}
}
