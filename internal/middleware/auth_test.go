package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/dukerupert/calwidget/internal/auth"
)

func testChecker(t *testing.T, key string) *APIKeyChecker {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash key: %v", err)
	}
	return NewAPIKeyChecker(string(hash))
}

func TestRequireAPIKeyMissing(t *testing.T) {
	handler := RequireAPIKey(testChecker(t, "secret"))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("should not reach handler")
	}))

	req := httptest.NewRequest("GET", "/calendars", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
	if rec.Header().Get("WWW-Authenticate") == "" {
		t.Error("missing WWW-Authenticate header")
	}
}

func TestRequireAPIKeyWrong(t *testing.T) {
	handler := RequireAPIKey(testChecker(t, "secret"))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("should not reach handler")
	}))

	req := httptest.NewRequest("GET", "/calendars", nil)
	req.Header.Set(apiKeyHeader, "guess")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestRequireAPIKeyValid(t *testing.T) {
	checker := testChecker(t, "secret")

	tests := []struct {
		name  string
		setup func(r *http.Request)
		path  string
	}{
		{"header", func(r *http.Request) { r.Header.Set(apiKeyHeader, "secret") }, "/calendars"},
		{"query", func(r *http.Request) {}, "/calendars?apikey=secret"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got auth.Client
			handler := RequireAPIKey(checker)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				c, ok := auth.FromContext(r.Context())
				if !ok {
					t.Fatal("expected Client in request context")
				}
				got = c
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest("GET", tt.path, nil)
			req = req.WithContext(auth.WithClient(req.Context(), auth.Client{RequestID: "r1"}))
			tt.setup(req)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
			}
			if !got.Authenticated || got.Method != auth.MethodAPIKey {
				t.Errorf("client = %+v", got)
			}
			if got.RequestID != "r1" {
				t.Errorf("RequestID = %q, want r1", got.RequestID)
			}
		})
	}
}

func TestAPIKeyCheckerRemembersVerifiedKeys(t *testing.T) {
	c := testChecker(t, "secret")
	if !c.Check("secret") {
		t.Fatal("first check failed")
	}
	c.hash = []byte("not a bcrypt hash")
	if !c.Check("secret") {
		t.Error("verified key should not need bcrypt again")
	}
	if c.Check("other") {
		t.Error("unverified key passed")
	}
	if c.Check("") {
		t.Error("empty key passed")
	}
}
