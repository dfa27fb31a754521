package store_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/corewire/assistant-core/internal/store"
	"github.com/corewire/assistant-core/pkg/models"
)

// newTestStore creates a fresh in-memory store whose snapshot file lives in
// a per-test temporary directory.
func newTestStore(t *testing.T) store.Store {
	t.Helper()
	dir := t.TempDir()
	os.Setenv("ASSISTANT_CORE_DATA_DIR", dir)
	defer os.Unsetenv("ASSISTANT_CORE_DATA_DIR")
	s := store.NewMemoryStore()
	t.Cleanup(func() { s.Close() })
	return s
}

// ─── Connector CRUD ──────────────────────────────────────────

func TestCreateAndGetConnector(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	c := &models.Connector{
		ExternalID:  "conn-1",
		WorkspaceID: "ws-1",
		OwnerUserID: "user-1",
		App:         models.AppSlack,
		AuthType:    models.AuthOAuth,
		Status:      models.ConnectorNotConnected,
	}
	if err := s.CreateConnector(ctx, c); err != nil {
		t.Fatalf("CreateConnector() error = %v", err)
	}

	got, err := s.GetConnector(ctx, "conn-1")
	if err != nil {
		t.Fatalf("GetConnector() error = %v", err)
	}
	if got.App != models.AppSlack || got.Status != models.ConnectorNotConnected {
		t.Errorf("unexpected connector: %+v", got)
	}
}

func TestListConnectors_ExcludesDeletedAndOtherWorkspaces(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	visible := &models.Connector{ExternalID: "c1", WorkspaceID: "ws-1", OwnerUserID: "u1", App: models.AppMail}
	other := &models.Connector{ExternalID: "c2", WorkspaceID: "ws-2", OwnerUserID: "u1", App: models.AppMail}
	toDelete := &models.Connector{ExternalID: "c3", WorkspaceID: "ws-1", OwnerUserID: "u1", App: models.AppDrive}

	for _, c := range []*models.Connector{visible, other, toDelete} {
		if err := s.CreateConnector(ctx, c); err != nil {
			t.Fatalf("CreateConnector(%s) error = %v", c.ExternalID, err)
		}
	}
	if err := s.DeleteConnector(ctx, "c3"); err != nil {
		t.Fatalf("DeleteConnector() error = %v", err)
	}

	list, err := s.ListConnectors(ctx, "ws-1", "u1")
	if err != nil {
		t.Fatalf("ListConnectors() error = %v", err)
	}
	if len(list) != 1 || list[0].ExternalID != "c1" {
		t.Errorf("ListConnectors() = %+v, want only c1", list)
	}
}

func TestDeleteConnector_CascadesToolsAndJobs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	c := &models.Connector{ExternalID: "conn-mcp", WorkspaceID: "ws-1", OwnerUserID: "u1", App: models.AppGenericMCP}
	if err := s.CreateConnector(ctx, c); err != nil {
		t.Fatalf("CreateConnector() error = %v", err)
	}
	if err := s.SyncConnectorTools(ctx, "ws-1", "conn-mcp", []models.Tool{{Name: "search"}}); err != nil {
		t.Fatalf("SyncConnectorTools() error = %v", err)
	}
	job := &models.IngestionJob{ID: "job-1", WorkspaceID: "ws-1", UserID: "u1", ConnectorID: "conn-mcp"}
	if err := s.CreateJobIfAbsent(ctx, job); err != nil {
		t.Fatalf("CreateJobIfAbsent() error = %v", err)
	}

	if err := s.DeleteConnector(ctx, "conn-mcp"); err != nil {
		t.Fatalf("DeleteConnector() error = %v", err)
	}

	tools, err := s.ListConnectorTools(ctx, "ws-1", "conn-mcp")
	if err != nil {
		t.Fatalf("ListConnectorTools() error = %v", err)
	}
	if len(tools) != 0 {
		t.Errorf("expected tools cascade-deleted, got %v", tools)
	}

	gotJob, err := s.GetJob(ctx, "job-1")
	if err != nil {
		t.Fatalf("GetJob() error = %v", err)
	}
	if gotJob.Status != models.JobCancelled {
		t.Errorf("expected job cancelled on connector delete, got %v", gotJob.Status)
	}
}

// ─── Ingestion job at-most-one-active invariant ──────────────

func TestCreateJobIfAbsent_RejectsSecondActiveJob(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := &models.IngestionJob{ID: "j1", WorkspaceID: "ws-1", UserID: "u1", ConnectorID: "c1"}
	if err := s.CreateJobIfAbsent(ctx, first); err != nil {
		t.Fatalf("first CreateJobIfAbsent() error = %v", err)
	}

	second := &models.IngestionJob{ID: "j2", WorkspaceID: "ws-1", UserID: "u1", ConnectorID: "c1"}
	if err := s.CreateJobIfAbsent(ctx, second); err != store.ErrJobAlreadyActive {
		t.Errorf("second CreateJobIfAbsent() error = %v, want ErrJobAlreadyActive", err)
	}
}

func TestCreateJobIfAbsent_AllowsAfterPriorJobTerminal(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := &models.IngestionJob{ID: "j1", WorkspaceID: "ws-1", UserID: "u1", ConnectorID: "c1"}
	if err := s.CreateJobIfAbsent(ctx, first); err != nil {
		t.Fatalf("CreateJobIfAbsent() error = %v", err)
	}
	if err := s.UpdateJobStatus(ctx, "j1", models.JobSucceeded, ""); err != nil {
		t.Fatalf("UpdateJobStatus() error = %v", err)
	}

	second := &models.IngestionJob{ID: "j2", WorkspaceID: "ws-1", UserID: "u1", ConnectorID: "c1"}
	if err := s.CreateJobIfAbsent(ctx, second); err != nil {
		t.Errorf("expected second job to be accepted, got error = %v", err)
	}
}

// ─── Tool sync atomicity ──────────────────────────────────────

func TestSyncConnectorTools_ReplacesCatalog(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.SyncConnectorTools(ctx, "ws-1", "c1", []models.Tool{{Name: "A"}, {Name: "B"}}); err != nil {
		t.Fatalf("SyncConnectorTools() error = %v", err)
	}
	tools, _ := s.ListConnectorTools(ctx, "ws-1", "c1")
	if len(tools) != 2 {
		t.Fatalf("expected 2 tools, got %d", len(tools))
	}

	if err := s.SyncConnectorTools(ctx, "ws-1", "c1", []models.Tool{{Name: "B"}, {Name: "C"}}); err != nil {
		t.Fatalf("SyncConnectorTools() second call error = %v", err)
	}
	tools, _ = s.ListConnectorTools(ctx, "ws-1", "c1")
	names := map[string]bool{}
	for _, t := range tools {
		names[t.Name] = true
	}
	if names["A"] || !names["B"] || !names["C"] {
		t.Errorf("expected catalog {B, C}, got %v", names)
	}
}

// ─── OAuth provider ────────────────────────────────────────────

func TestFindGlobalProvider(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.CreateOAuthProvider(ctx, &models.OAuthProvider{ID: "p1", App: models.AppGoogle, IsGlobal: true}); err != nil {
		t.Fatalf("CreateOAuthProvider() error = %v", err)
	}
	got, err := s.FindGlobalProvider(ctx, models.AppGoogle)
	if err != nil {
		t.Fatalf("FindGlobalProvider() error = %v", err)
	}
	if got.ID != "p1" {
		t.Errorf("FindGlobalProvider().ID = %q", got.ID)
	}

	if _, err := s.FindGlobalProvider(ctx, models.AppSlack); err != store.ErrNotFound {
		t.Errorf("expected ErrNotFound for app with no global provider, got %v", err)
	}
}

// ─── Audit events ──────────────────────────────────────────────

func TestListAuditEvents_FiltersByWorkspaceAndSince(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.RecordAuditEvent(ctx, &models.AuditEvent{WorkspaceID: "ws-1", Action: "connector.create"}); err != nil {
		t.Fatalf("RecordAuditEvent() error = %v", err)
	}
	if err := s.RecordAuditEvent(ctx, &models.AuditEvent{WorkspaceID: "ws-2", Action: "connector.create"}); err != nil {
		t.Fatalf("RecordAuditEvent() error = %v", err)
	}

	events, err := s.ListAuditEvents(ctx, "ws-1", time.Now().Add(-time.Hour), 10)
	if err != nil {
		t.Fatalf("ListAuditEvents() error = %v", err)
	}
	if len(events) != 1 || events[0].WorkspaceID != "ws-1" {
		t.Errorf("ListAuditEvents() = %+v, want 1 event for ws-1", events)
	}
}
