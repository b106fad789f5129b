package middleware

import (
	"crypto/sha256"
	"net/http"
	"sync"

	json "github.com/goccy/go-json"
	"golang.org/x/crypto/bcrypt"

	"github.com/dukerupert/calwidget/internal/auth"
)

const apiKeyHeader = "X-API-Key"

// APIKeyChecker verifies keys against a bcrypt hash. A key that passed once
// is remembered by digest so later requests skip the bcrypt cost.
type APIKeyChecker struct {
	hash []byte

	mu       sync.RWMutex
	verified map[[sha256.Size]byte]bool
}

func NewAPIKeyChecker(hash string) *APIKeyChecker {
	return &APIKeyChecker{
		hash:     []byte(hash),
		verified: make(map[[sha256.Size]byte]bool),
	}
}

// Check reports whether key matches the configured hash.
func (c *APIKeyChecker) Check(key string) bool {
	if key == "" {
		return false
	}
	digest := sha256.Sum256([]byte(key))

	c.mu.RLock()
	ok := c.verified[digest]
	c.mu.RUnlock()
	if ok {
		return true
	}

	if err := bcrypt.CompareHashAndPassword(c.hash, []byte(key)); err != nil {
		return false
	}
	c.mu.Lock()
	c.verified[digest] = true
	c.mu.Unlock()
	return true
}

// APIKey returns the key presented in the X-API-Key header or, failing that,
// the apikey query parameter.
func APIKey(r *http.Request) string {
	if key := r.Header.Get(apiKeyHeader); key != "" {
		return key
	}
	return r.URL.Query().Get("apikey")
}

// RequireAPIKey rejects requests without a valid key in the X-API-Key header
// or the apikey query parameter, and marks the request client authenticated.
func RequireAPIKey(checker *APIKeyChecker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := APIKey(r)
			if !checker.Check(key) {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("WWW-Authenticate", `APIKey realm="calwidget"`)
				w.WriteHeader(http.StatusUnauthorized)
				json.NewEncoder(w).Encode(map[string]string{"error": "invalid or missing API key"})
				return
			}

			c, _ := auth.FromContext(r.Context())
			c.Method = auth.MethodAPIKey
			c.Authenticated = true
			next.ServeHTTP(w, r.WithContext(auth.WithClient(r.Context(), c)))
		})
	}
}
