package toolregistry_test

import (
	"context"
	"encoding/base64"
	"testing"

	"github.com/corewire/assistant-core/internal/cryptutil"
	"github.com/corewire/assistant-core/internal/store"
	"github.com/corewire/assistant-core/internal/toolregistry"
	"github.com/corewire/assistant-core/pkg/models"
)

func newTestBox(t *testing.T) *cryptutil.Box {
	t.Helper()
	key := base64.StdEncoding.EncodeToString(make([]byte, 32))
	box, err := cryptutil.NewBox(key)
	if err != nil {
		t.Fatalf("cryptutil.NewBox() error = %v", err)
	}
	return box
}

func newTestService(t *testing.T) (*toolregistry.Service, store.Store) {
	t.Helper()
	s := store.NewMemoryStore()
	t.Cleanup(func() { s.Close() })
	return toolregistry.New(s, newTestBox(t)), s
}

func TestSync_UnsupportedTransportMarksConnectorFailed(t *testing.T) {
	svc, s := newTestService(t)
	box := newTestBox(t)

	blob, err := box.Encrypt([]byte(`{"transport":"carrier-pigeon"}`))
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	connector := &models.Connector{
		ExternalID:     "conn-1",
		WorkspaceID:    "ws-1",
		OwnerUserID:    "u-1",
		App:            models.AppMail,
		AuthType:       models.AuthOAuth,
		Status:         models.ConnectorNotConnected,
		EncryptedCreds: blob,
	}
	if err := s.CreateConnector(context.Background(), connector); err != nil {
		t.Fatalf("CreateConnector() error = %v", err)
	}

	if err := svc.Sync(context.Background(), connector); err == nil {
		t.Fatal("expected Sync() to reject an unsupported transport")
	}

	got, err := s.GetConnector(context.Background(), "conn-1")
	if err != nil {
		t.Fatalf("GetConnector() error = %v", err)
	}
	if got.Status != models.ConnectorFailed {
		t.Errorf("Status = %q, want %q", got.Status, models.ConnectorFailed)
	}
}

func TestSync_HTTPTransportMissingURLRejected(t *testing.T) {
	svc, s := newTestService(t)
	box := newTestBox(t)

	blob, err := box.Encrypt([]byte(`{"transport":"http"}`))
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	connector := &models.Connector{
		ExternalID:     "conn-2",
		WorkspaceID:    "ws-1",
		OwnerUserID:    "u-1",
		App:            models.AppMail,
		AuthType:       models.AuthOAuth,
		Status:         models.ConnectorNotConnected,
		EncryptedCreds: blob,
	}
	if err := s.CreateConnector(context.Background(), connector); err != nil {
		t.Fatalf("CreateConnector() error = %v", err)
	}

	if err := svc.Sync(context.Background(), connector); err == nil {
		t.Fatal("expected Sync() to reject an http transport with no url")
	}
}

func TestUpdateToolsStatus_PartialSuccessReportsEachRow(t *testing.T) {
	svc, s := newTestService(t)
	ctx := context.Background()

	if err := s.SyncConnectorTools(ctx, "ws-1", "conn-1", []models.Tool{
		{Name: "search"},
	}); err != nil {
		t.Fatalf("SyncConnectorTools() error = %v", err)
	}

	results, err := svc.UpdateToolsStatus(ctx, "ws-1", []toolregistry.ToolUpdate{
		{ConnectorID: "conn-1", Name: "search", Enabled: true},
		{ConnectorID: "conn-1", Name: "does-not-exist", Enabled: true},
	})
	if err == nil {
		t.Fatal("expected partial-failure error when one row does not exist")
	}
	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(results))
	}
	if results[0].Err != nil {
		t.Errorf("results[0].Err = %v, want nil", results[0].Err)
	}
	if results[1].Err == nil {
		t.Error("results[1].Err = nil, want an error for the missing tool")
	}

	enabled, err := s.ListEnabledTools(ctx, "ws-1")
	if err != nil {
		t.Fatalf("ListEnabledTools() error = %v", err)
	}
	if len(enabled) != 1 || enabled[0].Name != "search" {
		t.Errorf("ListEnabledTools() = %+v, want only %q enabled", enabled, "search")
	}
}

func TestUpdateToolsStatus_AllSucceedReturnsNilError(t *testing.T) {
	svc, s := newTestService(t)
	ctx := context.Background()

	if err := s.SyncConnectorTools(ctx, "ws-1", "conn-1", []models.Tool{
		{Name: "search"}, {Name: "lookup"},
	}); err != nil {
		t.Fatalf("SyncConnectorTools() error = %v", err)
	}

	_, err := svc.UpdateToolsStatus(ctx, "ws-1", []toolregistry.ToolUpdate{
		{ConnectorID: "conn-1", Name: "search", Enabled: true},
		{ConnectorID: "conn-1", Name: "lookup", Enabled: true},
	})
	if err != nil {
		t.Fatalf("UpdateToolsStatus() error = %v, want nil", err)
	}
}
