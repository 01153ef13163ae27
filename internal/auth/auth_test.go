package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"school-quiz-service/internal/domain"
	"school-quiz-service/internal/infra/memory"
)

func newTestService() (*Service, *memory.UserStore) {
	store := memory.NewUserStore()
	svc := NewService(store, Config{
		Secret:        "test-secret",
		TokenTTL:      time.Hour,
		AdminUsername: "admin",
		AdminPassword: "s3cret",
	})
	return svc, store
}

func TestRegisterAndLogin(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	user, token, err := svc.Register(ctx, RegisterRequest{
		Username: "sara",
		Password: "hunter2",
		FullName: "Sara Ali",
		Grade:    6,
		School:   "Al Noor",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.ID == "" || token == "" {
		t.Fatal("expected id and token")
	}
	if user.PasswordHash == "hunter2" {
		t.Fatal("password stored in plaintext")
	}

	got, loginToken, err := svc.Login(ctx, "sara", "hunter2")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if got.ID != user.ID || loginToken == "" {
		t.Fatal("login returned wrong account")
	}

	if _, _, err := svc.Login(ctx, "sara", "wrong"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, _, err := svc.Login(ctx, "nobody", "hunter2"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown user, got %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := newTestService()
	_, _, err := svc.Register(context.Background(), RegisterRequest{
		Username: "x", Password: "y", FullName: "Z", Grade: 12, School: "S",
	})
	if !errors.Is(err, domain.ErrMissingFields) {
		t.Fatalf("expected ErrMissingFields for bad grade, got %v", err)
	}
}

func TestTokenRoundTrip(t *testing.T) {
	svc, _ := newTestService()
	token, err := svc.IssueToken("u-1", RoleStudent)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	claims, err := svc.Parse(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Subject != "u-1" || claims.Role != RoleStudent {
		t.Fatalf("unexpected claims %+v", claims)
	}
	if _, err := svc.Parse(token + "x"); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("expected ErrNotAuthorized, got %v", err)
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	svc, _ := newTestService()
	svc.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	token, err := svc.IssueToken("u-1", RoleStudent)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := svc.Parse(token); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("expected expiry rejection, got %v", err)
	}
}

func TestAdminLogin(t *testing.T) {
	svc, _ := newTestService()
	token, err := svc.AdminLogin("admin", "s3cret")
	if err != nil {
		t.Fatalf("admin login: %v", err)
	}
	claims, err := svc.Parse(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Role != RoleAdmin {
		t.Fatalf("expected admin role, got %q", claims.Role)
	}
	if _, err := svc.AdminLogin("admin", "wrong"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestMiddleware(t *testing.T) {
	svc, _ := newTestService()

	var seen *Claims
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = ClaimsFromContext(r.Context())
	})
	handler := svc.Middleware(inner)

	// No token. The rejection uses the API's JSON envelope.
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("expected JSON rejection, got %q", ct)
	}
	var body struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode rejection: %v", err)
	}
	if body.Success || body.Message == "" {
		t.Fatalf("unexpected rejection body %+v", body)
	}

	// Bearer token.
	token, _ := svc.IssueToken("u-9", RoleStudent)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || seen == nil || seen.Subject != "u-9" {
		t.Fatalf("expected claims for u-9, got code=%d claims=%+v", rec.Code, seen)
	}

	// Query token, as used by websocket clients.
	seen = nil
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/?token="+token, nil))
	if rec.Code != http.StatusOK || seen == nil {
		t.Fatalf("expected query token accepted, got %d", rec.Code)
	}

	// Admin gate.
	adminHandler := svc.Middleware(RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})))
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	adminHandler.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for student on admin route, got %d", rec.Code)
	}
}
