package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/carebook/carebook/libs/auth"
)

func TestRequireRole(t *testing.T) {
	secret := "test-secret"
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := ActorFromContext(r.Context())
		if !ok || actor.ID != "patient-1" || actor.Role != auth.RolePatient {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	h := RequireRole(next, secret, auth.RolePatient)

	req := httptest.NewRequest(http.MethodGet, "http://example.com", nil)
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, req)
	if rw.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rw.Code)
	}

	token, err := auth.SignHS256(auth.NewClaims("patient-1", auth.RolePatient, time.Hour), secret)
	if err != nil {
		t.Fatalf("SignHS256 failed: %v", err)
	}
	reqOK := httptest.NewRequest(http.MethodGet, "http://example.com", nil)
	reqOK.Header.Set("Authorization", "Bearer "+token)
	rwOK := httptest.NewRecorder()
	h.ServeHTTP(rwOK, reqOK)
	if rwOK.Code != http.StatusOK {
		t.Fatalf("expected 200 with valid token, got %d", rwOK.Code)
	}
}

func TestRequireRoleRejectsOtherRole(t *testing.T) {
	secret := "test-secret"
	h := RequireRole(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}), secret, auth.RoleDoctor)

	token, err := auth.SignHS256(auth.NewClaims("patient-1", auth.RolePatient, time.Hour), secret)
	if err != nil {
		t.Fatalf("SignHS256 failed: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "http://example.com", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, req)
	if rw.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for patient token on doctor route, got %d", rw.Code)
	}
}

func TestRequireRoleRejectsWrongSecret(t *testing.T) {
	h := RequireRole(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}), "right-secret", auth.RoleAdmin)

	token, err := auth.SignHS256(auth.NewClaims("admin", auth.RoleAdmin, time.Hour), "wrong-secret")
	if err != nil {
		t.Fatalf("SignHS256 failed: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "http://example.com", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, req)
	if rw.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for forged token, got %d", rw.Code)
	}
}
