package notify_test

import (
	"context"
	"testing"
	"time"

	"github.com/corewire/assistant-core/internal/notify"
	"github.com/corewire/assistant-core/pkg/contracts"
	"github.com/corewire/assistant-core/pkg/models"
)

func TestPublish_DeliversToSubscriber(t *testing.T) {
	s := notify.NewService()
	sub := s.Subscribe("conn-1")
	defer s.Unsubscribe("conn-1", sub)

	event := contracts.IngestionProgressEvent{
		ConnectorID: "conn-1",
		JobID:       "job-1",
		Status:      models.JobRunning,
		Timestamp:   time.Now(),
	}
	s.Publish(context.Background(), event)

	select {
	case got := <-sub:
		if got.JobID != "job-1" {
			t.Errorf("got JobID = %q, want job-1", got.JobID)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for published event")
	}
}

func TestPublish_IgnoresOtherConnectors(t *testing.T) {
	s := notify.NewService()
	sub := s.Subscribe("conn-1")
	defer s.Unsubscribe("conn-1", sub)

	s.Publish(context.Background(), contracts.IngestionProgressEvent{ConnectorID: "conn-2", JobID: "job-2"})

	select {
	case got := <-sub:
		t.Fatalf("unexpected event delivered: %+v", got)
	case <-time.After(50 * time.Millisecond):
		// expected: no delivery
	}
}

func TestUnsubscribe_ClosesChannel(t *testing.T) {
	s := notify.NewService()
	sub := s.Subscribe("conn-1")
	s.Unsubscribe("conn-1", sub)

	_, ok := <-sub
	if ok {
		t.Error("expected channel to be closed after Unsubscribe")
	}
}
