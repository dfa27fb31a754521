package connectors_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/corewire/assistant-core/internal/connectors"
	"github.com/corewire/assistant-core/internal/cryptutil"
	"github.com/corewire/assistant-core/internal/store"
	"github.com/corewire/assistant-core/pkg/contracts"
	"github.com/corewire/assistant-core/pkg/models"
)

func newTestService(t *testing.T) (*connectors.Service, store.Store) {
	t.Helper()
	dir := t.TempDir()
	os.Setenv("ASSISTANT_CORE_DATA_DIR", dir)
	t.Cleanup(func() { os.Unsetenv("ASSISTANT_CORE_DATA_DIR") })

	s := store.NewMemoryStore()
	t.Cleanup(func() { s.Close() })

	key := base64.StdEncoding.EncodeToString(make([]byte, 32))
	box, err := cryptutil.NewBox(key)
	if err != nil {
		t.Fatalf("NewBox() error = %v", err)
	}
	svc := connectors.New(s, box, contracts.NoopIngestionScheduler{}, "http://localhost:8080", "channels:read")
	return svc, s
}

func TestCreateConnector_AssignsExternalID(t *testing.T) {
	svc, _ := newTestService(t)
	c := &models.Connector{WorkspaceID: "ws-1", OwnerUserID: "u-1", App: models.AppSlack, AuthType: models.AuthOAuth}
	if err := svc.CreateConnector(context.Background(), c); err != nil {
		t.Fatalf("CreateConnector() error = %v", err)
	}
	if c.ExternalID == "" {
		t.Error("expected ExternalID to be assigned")
	}
	if c.Status != models.ConnectorNotConnected {
		t.Errorf("Status = %v, want NotConnected", c.Status)
	}
}

func TestCreateOAuthProvider_RejectsSecondGlobalProvider(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.CreateOAuthProvider(ctx, "", models.AppGoogle, "client-a", "secret-a", []string{"email"}, true); err != nil {
		t.Fatalf("first CreateOAuthProvider() error = %v", err)
	}
	_, err := svc.CreateOAuthProvider(ctx, "", models.AppGoogle, "client-b", "secret-b", []string{"email"}, true)
	if err != connectors.ErrGlobalProviderExists {
		t.Errorf("second CreateOAuthProvider() error = %v, want ErrGlobalProviderExists", err)
	}
}

func TestStartOAuth_SetsCookiesAndBuildsAuthURL(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.CreateOAuthProvider(ctx, "", models.AppGoogle, "client-id", "secret", []string{"email", "profile"}, true); err != nil {
		t.Fatalf("CreateOAuthProvider() error = %v", err)
	}

	rec := httptest.NewRecorder()
	authURL, err := svc.StartOAuth(ctx, rec, "default", "user-1", models.AppGoogle, models.IngestionState{})
	if err != nil {
		t.Fatalf("StartOAuth() error = %v", err)
	}
	if authURL == "" {
		t.Fatal("expected non-empty authorization URL")
	}

	resp := rec.Result()
	var sawState, sawVerifier bool
	for _, c := range resp.Cookies() {
		if c.Name == "google-state" {
			sawState = true
			if !c.HttpOnly || !c.Secure {
				t.Error("google-state cookie must be HttpOnly and Secure")
			}
			if c.MaxAge != 600 {
				t.Errorf("google-state MaxAge = %d, want 600", c.MaxAge)
			}
		}
		if c.Name == "google-code-verifier" {
			sawVerifier = true
		}
	}
	if !sawState || !sawVerifier {
		t.Error("expected both google-state and google-code-verifier cookies to be set")
	}
}

func TestStartOAuth_UnsupportedAppRejected(t *testing.T) {
	svc, _ := newTestService(t)
	rec := httptest.NewRecorder()
	_, err := svc.StartOAuth(context.Background(), rec, "default", "user-1", models.AppGenericMCP, models.IngestionState{})
	if err == nil {
		t.Fatal("expected error for unsupported app without a provider configured")
	}
}

// encodedGoogleState builds a validly-encoded state payload for
// models.AppGoogle, so tests exercise the cookie-mismatch path itself
// rather than failing earlier on state decoding.
func encodedGoogleState(t *testing.T) string {
	t.Helper()
	raw, err := json.Marshal(map[string]string{"app": string(models.AppGoogle), "random": "r"})
	if err != nil {
		t.Fatalf("marshal state: %v", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw)
}

func TestVerifyOAuthState_RejectsMismatch(t *testing.T) {
	callbackState := encodedGoogleState(t)
	req := httptest.NewRequest(http.MethodGet, "/oauth/callback?state="+callbackState, nil)
	req.AddCookie(&http.Cookie{Name: "google-state", Value: "actual-state"})
	req.AddCookie(&http.Cookie{Name: "google-code-verifier", Value: "verifier"})

	_, _, err := connectors.VerifyOAuthState(req, callbackState)
	if err == nil {
		t.Fatal("expected state mismatch error")
	}
}

func TestCompleteOAuth_RejectsStateMismatch(t *testing.T) {
	svc, _ := newTestService(t)
	callbackState := encodedGoogleState(t)
	req := httptest.NewRequest(http.MethodGet, "/oauth/callback?code=abc&state="+callbackState, nil)
	req.AddCookie(&http.Cookie{Name: "google-state", Value: "actual-state"})
	req.AddCookie(&http.Cookie{Name: "google-code-verifier", Value: "verifier"})

	_, err := svc.CompleteOAuth(context.Background(), req, "abc", callbackState)
	if err == nil {
		t.Fatal("expected state mismatch error")
	}
}

func TestDeleteConnector_CascadesToToolsAndJobs(t *testing.T) {
	svc, s := newTestService(t)
	ctx := context.Background()

	c := &models.Connector{WorkspaceID: "ws-1", OwnerUserID: "u-1", App: models.AppGenericMCP, AuthType: models.AuthAPIKey}
	if err := svc.CreateConnector(ctx, c); err != nil {
		t.Fatalf("CreateConnector() error = %v", err)
	}
	if err := s.SyncConnectorTools(ctx, "ws-1", c.ExternalID, []models.Tool{{WorkspaceID: "ws-1", ConnectorID: c.ExternalID, Name: "search"}}); err != nil {
		t.Fatalf("SyncConnectorTools() error = %v", err)
	}
	job := &models.IngestionJob{ID: "job-1", WorkspaceID: "ws-1", UserID: "u-1", ConnectorID: c.ExternalID}
	if err := s.CreateJobIfAbsent(ctx, job); err != nil {
		t.Fatalf("CreateJobIfAbsent() error = %v", err)
	}

	if err := svc.DeleteConnector(ctx, "ws-1", c.ExternalID); err != nil {
		t.Fatalf("DeleteConnector() error = %v", err)
	}

	tools, err := s.ListConnectorTools(ctx, "ws-1", c.ExternalID)
	if err != nil {
		t.Fatalf("ListConnectorTools() error = %v", err)
	}
	if len(tools) != 0 {
		t.Errorf("expected tools cascade-deleted, got %d", len(tools))
	}
	gotJob, err := s.GetJob(ctx, "job-1")
	if err != nil {
		t.Fatalf("GetJob() error = %v", err)
	}
	if gotJob.Status != models.JobCancelled {
		t.Errorf("job status after delete = %v, want %v", gotJob.Status, models.JobCancelled)
	}
	if _, err := s.GetConnector(ctx, c.ExternalID); err != store.ErrNotFound {
		t.Errorf("GetConnector() after delete error = %v, want ErrNotFound", err)
	}
}
