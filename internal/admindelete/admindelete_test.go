package admindelete_test

import (
	"context"
	"errors"
	"testing"

	"github.com/corewire/assistant-core/internal/admindelete"
	"github.com/corewire/assistant-core/internal/retention"
	"github.com/corewire/assistant-core/internal/store"
	"github.com/corewire/assistant-core/pkg/models"
)

type fakeIndex struct {
	failApps map[models.SourceApp]bool
}

func (f *fakeIndex) DeleteByEmail(_ context.Context, _ string, app models.SourceApp, _ string) error {
	if f.failApps[app] {
		return errors.New("index unavailable")
	}
	return nil
}

func newTestStoreWithConnectors(t *testing.T, email string, apps ...models.SourceApp) store.Store {
	t.Helper()
	s := store.NewMemoryStore()
	t.Cleanup(func() { s.Close() })

	for _, app := range apps {
		conn := &models.Connector{
			ExternalID:  string(app) + "-conn",
			WorkspaceID: "ws-1",
			OwnerUserID: email,
			App:         app,
			AuthType:    models.AuthOAuth,
		}
		if err := s.CreateConnector(context.Background(), conn); err != nil {
			t.Fatalf("CreateConnector() error = %v", err)
		}
	}
	return s
}

func TestDelete_ClearsEveryMatchingConnector(t *testing.T) {
	s := newTestStoreWithConnectors(t, "user@example.com", models.AppMail, models.AppDrive)
	svc := admindelete.New(s, &fakeIndex{}, retention.NewLocalAuditArchiver(t.TempDir(), false))

	result, err := svc.Delete(context.Background(), admindelete.Request{
		WorkspaceID:  "ws-1",
		EmailToClear: "user@example.com",
	})
	if err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if len(result.Outcomes) != 2 {
		t.Fatalf("len(Outcomes) = %d, want 2", len(result.Outcomes))
	}
	for _, o := range result.Outcomes {
		if !o.IndexCleared {
			t.Errorf("outcome for %s: IndexCleared = false, want true", o.App)
		}
	}
}

func TestDelete_ScopesToRequestedServices(t *testing.T) {
	s := newTestStoreWithConnectors(t, "user@example.com", models.AppMail, models.AppDrive, models.AppSlack)
	svc := admindelete.New(s, &fakeIndex{}, retention.NewLocalAuditArchiver(t.TempDir(), false))

	result, err := svc.Delete(context.Background(), admindelete.Request{
		WorkspaceID:     "ws-1",
		EmailToClear:    "user@example.com",
		ServicesToClear: []models.SourceApp{models.AppMail},
	})
	if err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if len(result.Outcomes) != 1 || result.Outcomes[0].App != models.AppMail {
		t.Fatalf("Outcomes = %+v, want only %q", result.Outcomes, models.AppMail)
	}
}

func TestDelete_RecordsPerServiceFailureWithoutAborting(t *testing.T) {
	s := newTestStoreWithConnectors(t, "user@example.com", models.AppMail, models.AppDrive)
	idx := &fakeIndex{failApps: map[models.SourceApp]bool{models.AppMail: true}}
	svc := admindelete.New(s, idx, retention.NewLocalAuditArchiver(t.TempDir(), false))

	result, err := svc.Delete(context.Background(), admindelete.Request{
		WorkspaceID:  "ws-1",
		EmailToClear: "user@example.com",
	})
	if err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if len(result.Outcomes) != 2 {
		t.Fatalf("len(Outcomes) = %d, want 2 even though one service failed", len(result.Outcomes))
	}

	var sawFailure, sawSuccess bool
	for _, o := range result.Outcomes {
		switch o.App {
		case models.AppMail:
			if o.IndexCleared || o.Error == "" {
				t.Errorf("mail outcome = %+v, want a recorded failure", o)
			}
			sawFailure = true
		case models.AppDrive:
			if !o.IndexCleared {
				t.Errorf("drive outcome = %+v, want success", o)
			}
			sawSuccess = true
		}
	}
	if !sawFailure || !sawSuccess {
		t.Fatal("expected both a failed and a succeeded outcome")
	}
}

func TestDelete_DeleteSyncJobCancelsQueuedJobs(t *testing.T) {
	s := newTestStoreWithConnectors(t, "user@example.com", models.AppMail)
	svc := admindelete.New(s, &fakeIndex{}, retention.NewLocalAuditArchiver(t.TempDir(), false))

	result, err := svc.Delete(context.Background(), admindelete.Request{
		WorkspaceID:   "ws-1",
		EmailToClear:  "user@example.com",
		DeleteSyncJob: true,
	})
	if err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if len(result.Outcomes) != 1 || !result.Outcomes[0].JobsCancelled {
		t.Fatalf("Outcomes = %+v, want JobsCancelled = true", result.Outcomes)
	}
}
