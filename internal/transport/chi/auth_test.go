package chi

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestBearerAuthMiddleware_Disabled(t *testing.T) {
	mw := BearerAuthMiddleware(nil)
	req := httptest.NewRequest(http.MethodPost, "/api/search", nil)
	rec := httptest.NewRecorder()

	mw(okHandler()).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected pass-through without configured keys, got %d", rec.Code)
	}
}

func TestBearerAuthMiddleware_MissingHeader(t *testing.T) {
	mw := BearerAuthMiddleware([]string{"secret"})
	req := httptest.NewRequest(http.MethodPost, "/api/search", nil)
	rec := httptest.NewRecorder()

	mw(okHandler()).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

func TestBearerAuthMiddleware_WrongScheme(t *testing.T) {
	mw := BearerAuthMiddleware([]string{"secret"})
	req := httptest.NewRequest(http.MethodPost, "/api/search", nil)
	req.Header.Set("Authorization", "Basic secret")
	rec := httptest.NewRecorder()

	mw(okHandler()).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

func TestBearerAuthMiddleware_InvalidKey(t *testing.T) {
	mw := BearerAuthMiddleware([]string{"secret"})
	req := httptest.NewRequest(http.MethodPost, "/api/search", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec := httptest.NewRecorder()

	mw(okHandler()).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

func TestBearerAuthMiddleware_ValidKeySetsSubject(t *testing.T) {
	mw := BearerAuthMiddleware([]string{"secret"})
	req := httptest.NewRequest(http.MethodPost, "/api/search", nil)
	req.Header.Set("Authorization", "Bearer secret")
	req.RemoteAddr = "203.0.113.9:4821"
	rec := httptest.NewRecorder()

	var subject string
	var ip string
	mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := identityFromRequest(r)
		subject = id.UserID
		ip = id.IP
		w.WriteHeader(http.StatusOK)
	})).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if subject == "" {
		t.Error("expected an auth subject in the identity")
	}
	if subject == "secret" {
		t.Error("the raw token must never be the subject")
	}
	if ip != "203.0.113.9" {
		t.Errorf("expected port stripped from remote addr, got %q", ip)
	}
}

func TestBearerAuthMiddleware_ExemptPaths(t *testing.T) {
	mw := BearerAuthMiddleware([]string{"secret"})
	for _, path := range []string{"/health", "/metrics"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()

		mw(okHandler()).ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("%s: expected exemption, got %d", path, rec.Code)
		}
	}
}

func TestSubjectForToken_Stable(t *testing.T) {
	if subjectForToken("a") != subjectForToken("a") {
		t.Error("expected a stable subject per token")
	}
	if subjectForToken("a") == subjectForToken("b") {
		t.Error("expected distinct subjects for distinct tokens")
	}
}

func TestIdentityFromRequest_Anonymous(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/search", nil)
	req.RemoteAddr = "198.51.100.7:9000"

	id := identityFromRequest(req)

	if id.UserID != "" {
		t.Errorf("expected no user id without auth, got %q", id.UserID)
	}
	if id.IP != "198.51.100.7" {
		t.Errorf("unexpected ip %q", id.IP)
	}
}
