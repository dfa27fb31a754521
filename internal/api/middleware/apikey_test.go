package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/corewire/assistant-core/internal/api/middleware"
)

func TestAPIKeyAuth_Disabled(t *testing.T) {
	os.Unsetenv("ASSISTANT_API_KEYS")

	auth := middleware.NewAPIKeyAuth()
	if auth.Enabled() {
		t.Error("Expected auth to be disabled when ASSISTANT_API_KEYS is not set")
	}

	req := httptest.NewRequest(http.MethodGet, "/chat/converse", nil)
	identity, err := auth.Authenticate(req.Context(), req)
	if err != nil {
		t.Errorf("Authenticate() error = %v, want nil when disabled", err)
	}
	if identity != nil {
		t.Errorf("Authenticate() identity = %+v, want nil when disabled", identity)
	}
}

func TestAPIKeyAuth_ValidKey(t *testing.T) {
	os.Setenv("ASSISTANT_API_KEYS", "test-key-1,test-key-2")
	defer os.Unsetenv("ASSISTANT_API_KEYS")

	auth := middleware.NewAPIKeyAuth()
	if !auth.Enabled() {
		t.Fatal("Expected auth to be enabled")
	}

	req := httptest.NewRequest(http.MethodGet, "/chat/converse", nil)
	req.Header.Set("Authorization", "Bearer test-key-1")
	identity, err := auth.Authenticate(req.Context(), req)
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if identity == nil {
		t.Fatal("Authenticate() identity = nil, want a resolved identity for a valid Bearer key")
	}

	req2 := httptest.NewRequest(http.MethodGet, "/chat/converse", nil)
	req2.Header.Set("X-API-Key", "test-key-2")
	identity2, err := auth.Authenticate(req2.Context(), req2)
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if identity2 == nil {
		t.Fatal("Authenticate() identity = nil, want a resolved identity for a valid X-API-Key")
	}
}

func TestAPIKeyAuth_InvalidKey(t *testing.T) {
	os.Setenv("ASSISTANT_API_KEYS", "valid-key")
	defer os.Unsetenv("ASSISTANT_API_KEYS")

	auth := middleware.NewAPIKeyAuth()

	req := httptest.NewRequest(http.MethodGet, "/chat/converse", nil)
	req.Header.Set("Authorization", "Bearer wrong-key")
	identity, err := auth.Authenticate(req.Context(), req)
	if err == nil {
		t.Error("Authenticate() error = nil, want rejection of a wrong key")
	}
	if identity != nil {
		t.Errorf("Authenticate() identity = %+v, want nil on rejection", identity)
	}
}

func TestAPIKeyAuth_MissingKeyDeclines(t *testing.T) {
	os.Setenv("ASSISTANT_API_KEYS", "valid-key")
	defer os.Unsetenv("ASSISTANT_API_KEYS")

	auth := middleware.NewAPIKeyAuth()

	req := httptest.NewRequest(http.MethodGet, "/chat/converse", nil)
	identity, err := auth.Authenticate(req.Context(), req)
	if err != nil {
		t.Errorf("Authenticate() error = %v, want nil (decline, not reject) when no key is presented", err)
	}
	if identity != nil {
		t.Errorf("Authenticate() identity = %+v, want nil when no key is presented", identity)
	}
}

func TestAPIKeyAuth_AddRemoveKey(t *testing.T) {
	os.Unsetenv("ASSISTANT_API_KEYS")

	auth := middleware.NewAPIKeyAuth()
	if auth.Enabled() {
		t.Fatal("Should start disabled")
	}

	auth.AddKey("runtime-key")
	if !auth.Enabled() {
		t.Error("Should be enabled after AddKey")
	}

	req := httptest.NewRequest(http.MethodGet, "/chat/converse", nil)
	req.Header.Set("X-API-Key", "runtime-key")
	identity, err := auth.Authenticate(req.Context(), req)
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if identity == nil {
		t.Fatal("expected a resolved identity for the runtime-added key")
	}

	auth.RemoveKey("runtime-key")
	if auth.Enabled() {
		t.Error("Should be disabled after removing last key")
	}
}
