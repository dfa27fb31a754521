package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/corewire/assistant-core/internal/admindelete"
	"github.com/corewire/assistant-core/internal/agentic"
	"github.com/corewire/assistant-core/internal/api/handlers"
	"github.com/corewire/assistant-core/internal/config"
	"github.com/corewire/assistant-core/internal/connectors"
	"github.com/corewire/assistant-core/internal/cryptutil"
	"github.com/corewire/assistant-core/internal/guardrails"
	"github.com/corewire/assistant-core/internal/ingestion"
	"github.com/corewire/assistant-core/internal/llm"
	"github.com/corewire/assistant-core/internal/notify"
	"github.com/corewire/assistant-core/internal/retention"
	"github.com/corewire/assistant-core/internal/sessions"
	"github.com/corewire/assistant-core/internal/store"
	"github.com/corewire/assistant-core/internal/toolregistry"
	"github.com/corewire/assistant-core/pkg/contracts"
	"github.com/corewire/assistant-core/pkg/models"
)

func newTestHandlers(t *testing.T) *handlers.Handlers {
	t.Helper()
	s := store.NewMemoryStore()
	t.Cleanup(func() { s.Close() })

	box, err := cryptutil.NewBox("AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA=")
	if err != nil {
		t.Fatalf("NewBox() error = %v", err)
	}

	notifier := notify.NewService()
	ingestSvc := ingestion.New(s, contracts.NoopIngestionSource{}, contracts.NoopContentSink{}, notifier, nil)
	connSvc := connectors.New(s, box, ingestSvc, "http://localhost:8080", "channels:read")
	tools := toolregistry.New(s, box)
	archiver := retention.NewLocalAuditArchiver(t.TempDir(), false)
	adminDelete := admindelete.New(s, contracts.NoopDeletionIndex{}, archiver)
	registry := llm.NewRegistry(config.Config{})
	pipeline := agentic.New(registry)
	sessStore := sessions.NewMemorySessionStore()
	guard := guardrails.New()

	return handlers.New(s, pipeline, connSvc, ingestSvc, tools, adminDelete, notifier, sessStore, guard)
}

func newRouter(h *handlers.Handlers) http.Handler {
	r := chi.NewRouter()
	r.Route("/connectors", func(r chi.Router) {
		r.Get("/", h.ListConnectors)
		r.Post("/", h.CreateConnector)
		r.Route("/{connectorID}", func(r chi.Router) {
			r.Delete("/", h.DeleteConnector)
			r.Get("/tools", h.ListConnectorTools)
		})
	})
	r.Route("/sessions", func(r chi.Router) {
		r.Get("/", h.ListSessions)
		r.Post("/", h.CreateSession)
		r.Route("/{sessionID}", func(r chi.Router) {
			r.Get("/", h.GetSession)
			r.Delete("/", h.DeleteSession)
			r.Post("/messages", h.AppendSessionMessage)
		})
	})
	r.Route("/chat", func(r chi.Router) {
		r.Post("/converse", h.Converse)
	})
	r.Route("/audit", func(r chi.Router) {
		r.Get("/", h.ListAuditEvents)
	})
	r.Route("/admin", func(r chi.Router) {
		r.Post("/ingest-more-users", h.IngestMoreUsers)
		r.Post("/delete-user-data", h.DeleteUserData)
		r.Post("/connector/{connectorID}/tools", h.UpdateConnectorTools)
	})
	return r
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestListConnectors_EmptyReturnsEmptyArray(t *testing.T) {
	router := newRouter(newTestHandlers(t))
	rec := doJSON(t, router, http.MethodGet, "/connectors/", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Body.String(); got != "[]\n" {
		t.Errorf("body = %q, want empty JSON array", got)
	}
}

func TestCreateConnector_ThenListAndDelete(t *testing.T) {
	router := newRouter(newTestHandlers(t))

	rec := doJSON(t, router, http.MethodPost, "/connectors/", map[string]any{
		"app":      "generic-mcp",
		"authType": "api_key",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, want 201, body=%s", rec.Code, rec.Body.String())
	}
	var created models.Connector
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("unmarshal created connector: %v", err)
	}
	if created.ExternalID == "" {
		t.Fatal("expected ExternalID to be assigned")
	}

	rec = doJSON(t, router, http.MethodGet, "/connectors/", nil)
	var list []models.Connector
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("unmarshal list: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("len(list) = %d, want 1", len(list))
	}

	rec = doJSON(t, router, http.MethodDelete, "/connectors/"+created.ExternalID+"/", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d, want 204", rec.Code)
	}
}

func TestSessionLifecycle(t *testing.T) {
	router := newRouter(newTestHandlers(t))

	rec := doJSON(t, router, http.MethodPost, "/sessions/", map[string]any{"title": "demo"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create session status = %d, want 201, body=%s", rec.Code, rec.Body.String())
	}
	var session models.ChatSession
	if err := json.Unmarshal(rec.Body.Bytes(), &session); err != nil {
		t.Fatalf("unmarshal session: %v", err)
	}
	if session.ID == "" {
		t.Fatal("expected session ID to be assigned")
	}

	rec = doJSON(t, router, http.MethodPost, "/sessions/"+session.ID+"/messages", models.Message{
		Role: models.RoleUser, Content: "hello",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("append message status = %d, want 200, body=%s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, router, http.MethodGet, "/sessions/"+session.ID+"/", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get session status = %d, want 200", rec.Code)
	}
	var fetched models.ChatSession
	if err := json.Unmarshal(rec.Body.Bytes(), &fetched); err != nil {
		t.Fatalf("unmarshal fetched session: %v", err)
	}
	if len(fetched.Messages) != 1 {
		t.Fatalf("len(Messages) = %d, want 1", len(fetched.Messages))
	}

	rec = doJSON(t, router, http.MethodDelete, "/sessions/"+session.ID+"/", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete session status = %d, want 204", rec.Code)
	}

	rec = doJSON(t, router, http.MethodGet, "/sessions/"+session.ID+"/", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get deleted session status = %d, want 404", rec.Code)
	}
}

func TestConverse_NoProviderConfiguredReturnsBadRequest(t *testing.T) {
	router := newRouter(newTestHandlers(t))
	rec := doJSON(t, router, http.MethodPost, "/chat/converse", map[string]any{
		"query":   "what is the refund policy?",
		"modelId": "gpt-4o",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400, body=%s", rec.Code, rec.Body.String())
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal error body: %v", err)
	}
	if body["kind"] != string(models.ErrNoProviderConfigured) {
		t.Errorf("kind = %q, want %q", body["kind"], models.ErrNoProviderConfigured)
	}
}

func TestListAuditEvents_EmptyReturnsEmptyArray(t *testing.T) {
	router := newRouter(newTestHandlers(t))
	rec := doJSON(t, router, http.MethodGet, "/audit/", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Body.String(); got != "[]\n" {
		t.Errorf("body = %q, want empty JSON array", got)
	}
}

func TestIngestMoreUsers_RequiresConnectorAndEmails(t *testing.T) {
	router := newRouter(newTestHandlers(t))
	rec := doJSON(t, router, http.MethodPost, "/admin/ingest-more-users", map[string]any{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestDeleteUserData_RequiresEmail(t *testing.T) {
	router := newRouter(newTestHandlers(t))
	rec := doJSON(t, router, http.MethodPost, "/admin/delete-user-data", map[string]any{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestUpdateConnectorTools_EmptyBatchSucceeds(t *testing.T) {
	router := newRouter(newTestHandlers(t))
	rec := doJSON(t, router, http.MethodPost, "/admin/connector/conn-1/tools", map[string]any{"tools": []any{}})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", rec.Code, rec.Body.String())
	}
}
