package retention_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/corewire/assistant-core/internal/retention"
	"github.com/corewire/assistant-core/internal/store"
	"github.com/corewire/assistant-core/pkg/contracts"
	"github.com/corewire/assistant-core/pkg/models"
)

type fakeRoomProvider struct {
	active []contracts.ActiveRoom
}

func (f fakeRoomProvider) ListActiveRooms(_ context.Context) ([]contracts.ActiveRoom, error) {
	return f.active, nil
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	dir := t.TempDir()
	os.Setenv("ASSISTANT_CORE_DATA_DIR", dir)
	defer os.Unsetenv("ASSISTANT_CORE_DATA_DIR")
	s := store.NewMemoryStore()
	t.Cleanup(func() { s.Close() })
	return s
}

func TestJanitor_EndsRoomsWithNoParticipants(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.RecordActiveCallRoom(ctx, &models.CallRoom{ID: "r1", WorkspaceID: "ws-1", ExternalRoomID: "ext-1"}); err != nil {
		t.Fatalf("RecordActiveCallRoom() error = %v", err)
	}
	if err := s.RecordActiveCallRoom(ctx, &models.CallRoom{ID: "r2", WorkspaceID: "ws-1", ExternalRoomID: "ext-2"}); err != nil {
		t.Fatalf("RecordActiveCallRoom() error = %v", err)
	}

	provider := fakeRoomProvider{active: []contracts.ActiveRoom{{ExternalRoomID: "ext-1", ParticipantCount: 2}}}
	j := retention.NewJanitor(s, provider, "ws-1", time.Hour)

	runCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	j.Start(runCtx)

	rooms, err := s.ListActiveCallRooms(ctx, "ws-1")
	if err != nil {
		t.Fatalf("ListActiveCallRooms() error = %v", err)
	}
	if len(rooms) != 1 || rooms[0].ExternalRoomID != "ext-1" {
		t.Errorf("expected only ext-1 to remain active, got %+v", rooms)
	}
}

func TestJanitor_NoActiveRoomsIsNoop(t *testing.T) {
	s := newTestStore(t)
	provider := fakeRoomProvider{}
	j := retention.NewJanitor(s, provider, "ws-1", time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	j.Start(ctx) // must not panic or block beyond ctx
}
