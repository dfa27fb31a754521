package ingestion_test

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/corewire/assistant-core/internal/ingestion"
	"github.com/corewire/assistant-core/internal/store"
	"github.com/corewire/assistant-core/pkg/contracts"
	"github.com/corewire/assistant-core/pkg/models"
)

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client
}

func newTestStoreWithConnector(t *testing.T, connectorID string) store.Store {
	t.Helper()
	dir := t.TempDir()
	os.Setenv("ASSISTANT_CORE_DATA_DIR", dir)
	t.Cleanup(func() { os.Unsetenv("ASSISTANT_CORE_DATA_DIR") })

	s := store.NewMemoryStore()
	t.Cleanup(func() { s.Close() })

	conn := &models.Connector{ExternalID: connectorID, WorkspaceID: "ws-1", OwnerUserID: "u-1", App: models.AppMail, AuthType: models.AuthOAuth}
	if err := s.CreateConnector(context.Background(), conn); err != nil {
		t.Fatalf("CreateConnector() error = %v", err)
	}
	return s
}

// countingSource returns a fixed number of one-item batches, then Done.
type countingSource struct {
	mu        sync.Mutex
	remaining int
}

func (c *countingSource) FetchBatch(_ context.Context, _ *models.Connector, _ models.IngestionState) (*contracts.IngestionBatch, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.remaining <= 0 {
		return &contracts.IngestionBatch{Done: true}, nil
	}
	c.remaining--
	return &contracts.IngestionBatch{
		Items: []contracts.SourceItem{{ID: "item", Content: "body"}},
		Done:  c.remaining <= 0,
	}, nil
}

type recordingSink struct {
	mu    sync.Mutex
	count int
}

func (s *recordingSink) Write(_ context.Context, _, _ string, items []contracts.SourceItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count += len(items)
	return nil
}

func (s *recordingSink) total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

type alwaysFailSource struct{}

func (alwaysFailSource) FetchBatch(_ context.Context, _ *models.Connector, _ models.IngestionState) (*contracts.IngestionBatch, error) {
	return nil, errors.New("transient source failure")
}

func waitForJobStatus(t *testing.T, s store.Store, jobID string, want models.JobStatus, timeout time.Duration) *models.IngestionJob {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		job, err := s.GetJob(context.Background(), jobID)
		if err == nil && job.Status == want {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s did not reach status %s within %s", jobID, want, timeout)
	return nil
}

func TestCreateJob_RunsWorkerToCompletion(t *testing.T) {
	s := newTestStoreWithConnector(t, "conn-1")
	source := &countingSource{remaining: 3}
	sink := &recordingSink{}
	svc := ingestion.New(s, source, sink, noopNotifier{}, nil)

	job, err := svc.CreateJob(context.Background(), "ws-1", "u-1", "conn-1", models.IngestionState{})
	if err != nil {
		t.Fatalf("CreateJob() error = %v", err)
	}

	waitForJobStatus(t, s, job.ID, models.JobSucceeded, time.Second)
	if got := sink.total(); got != 3 {
		t.Errorf("sink received %d items, want 3", got)
	}
}

func TestCreateJob_RejectsConcurrentActiveJob(t *testing.T) {
	s := newTestStoreWithConnector(t, "conn-1")
	source := &countingSource{remaining: 100}
	svc := ingestion.New(s, source, &recordingSink{}, noopNotifier{}, nil)

	ctx := context.Background()
	if _, err := svc.CreateJob(ctx, "ws-1", "u-1", "conn-1", models.IngestionState{}); err != nil {
		t.Fatalf("first CreateJob() error = %v", err)
	}
	_, err := svc.CreateJob(ctx, "ws-1", "u-1", "conn-1", models.IngestionState{})
	if err == nil {
		t.Fatal("expected second CreateJob() to be rejected")
	}
}

func TestCreateJob_RedisLockRejectsConcurrentJob(t *testing.T) {
	s := newTestStoreWithConnector(t, "conn-1")
	rdb := newTestRedis(t)
	svc := ingestion.New(s, &countingSource{remaining: 100}, &recordingSink{}, noopNotifier{}, rdb)

	ctx := context.Background()
	if _, err := svc.CreateJob(ctx, "ws-1", "u-1", "conn-1", models.IngestionState{}); err != nil {
		t.Fatalf("first CreateJob() error = %v", err)
	}
	_, err := svc.CreateJob(ctx, "ws-1", "u-1", "conn-1", models.IngestionState{})
	if err == nil {
		t.Fatal("expected redis-locked CreateJob() to be rejected")
	}
}

func TestCreateJob_FailsAfterRetriesExhausted(t *testing.T) {
	s := newTestStoreWithConnector(t, "conn-1")
	svc := ingestion.New(s, alwaysFailSource{}, &recordingSink{}, noopNotifier{}, nil)

	job, err := svc.CreateJob(context.Background(), "ws-1", "u-1", "conn-1", models.IngestionState{})
	if err != nil {
		t.Fatalf("CreateJob() error = %v", err)
	}

	// Five exponential back-off waits (0.5s initial, x1.5, ±50% jitter)
	// take about 3.3-9.9s before the job is marked failed.
	final := waitForJobStatus(t, s, job.ID, models.JobFailed, 15*time.Second)
	if final.Metadata.IngestionState.LastError == "" || final.Status != models.JobFailed {
		t.Error("expected job to record a failure")
	}
}

func TestCreateJob_RejectsInvertedScope(t *testing.T) {
	s := newTestStoreWithConnector(t, "conn-1")
	svc := ingestion.New(s, contracts.NoopIngestionSource{}, contracts.NoopContentSink{}, noopNotifier{}, nil)

	_, err := svc.CreateJob(context.Background(), "ws-1", "u-1", "conn-1", models.IngestionState{StartDate: "2026-02-01", EndDate: "2026-01-01"})
	if err == nil {
		t.Fatal("expected rejection of startDate after endDate")
	}
}

type noopNotifier struct{}

func (noopNotifier) Publish(_ context.Context, _ contracts.IngestionProgressEvent) {}
func (noopNotifier) Subscribe(_ string) <-chan contracts.IngestionProgressEvent    { return nil }
func (noopNotifier) Unsubscribe(_ string, _ <-chan contracts.IngestionProgressEvent) {}
