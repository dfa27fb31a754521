package middleware

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/corewire/assistant-core/pkg/contracts"
)

// APIKeyAuth is an AuthProvider that authenticates requests bearing a
// pre-shared API key via Authorization: Bearer, X-API-Key, or an
// api_key query parameter (for SSE connections that can't set headers).
//
// Keys are configured via the ASSISTANT_API_KEYS environment variable
// as a comma-separated list: "key1,key2,key3". It declines (nil, nil)
// when disabled or no key is present on the request, deferring to the
// next provider in the chain; a key that is present but invalid is a
// hard rejection.
type APIKeyAuth struct {
	mu      sync.RWMutex
	keys    map[string]bool
	enabled bool
}

// NewAPIKeyAuth creates an API key auth provider from environment config.
func NewAPIKeyAuth() *APIKeyAuth {
	auth := &APIKeyAuth{keys: make(map[string]bool)}

	keysEnv := os.Getenv("ASSISTANT_API_KEYS")
	for _, key := range strings.Split(keysEnv, ",") {
		key = strings.TrimSpace(key)
		if key != "" {
			auth.keys[key] = true
			auth.enabled = true
		}
	}

	return auth
}

func (a *APIKeyAuth) Name() string { return "api-key" }

// Enabled returns whether API key auth is active.
func (a *APIKeyAuth) Enabled() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.enabled
}

// AddKey adds a new API key at runtime.
func (a *APIKeyAuth) AddKey(key string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.keys[key] = true
	a.enabled = true
}

// RemoveKey removes an API key at runtime.
func (a *APIKeyAuth) RemoveKey(key string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.keys, key)
	if len(a.keys) == 0 {
		a.enabled = false
	}
}

// Authenticate implements contracts.AuthProvider.
func (a *APIKeyAuth) Authenticate(_ context.Context, r *http.Request) (*contracts.Identity, error) {
	if !a.Enabled() {
		return nil, nil
	}

	apiKey := extractAPIKey(r)
	if apiKey == "" {
		return nil, nil
	}

	if !a.validateKey(apiKey) {
		return nil, errors.New("invalid API key")
	}

	return &contracts.Identity{Subject: "api-key:" + fingerprint(apiKey), Role: "service"}, nil
}

func (a *APIKeyAuth) validateKey(candidate string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()

	for key := range a.keys {
		if subtle.ConstantTimeCompare([]byte(candidate), []byte(key)) == 1 {
			return true
		}
	}
	return false
}

// fingerprint returns a short, non-reversible tail used only for audit
// logging — never the key itself.
func fingerprint(key string) string {
	if len(key) <= 4 {
		return "****"
	}
	return "..." + key[len(key)-4:]
}

func extractAPIKey(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	if key := r.Header.Get("X-API-Key"); key != "" {
		return key
	}
	if key := r.URL.Query().Get("api_key"); key != "" {
		return key
	}
	return ""
}
