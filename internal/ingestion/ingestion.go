// Package ingestion implements the at-most-once background ingestion
// job orchestrator (C7): job creation with an active-job invariant,
// resumable per-job metadata, and progress fan-out.
package ingestion

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/corewire/assistant-core/internal/store"
	"github.com/corewire/assistant-core/pkg/apperr"
	"github.com/corewire/assistant-core/pkg/contracts"
	"github.com/corewire/assistant-core/pkg/models"
)

const (
	maxFetchRetries = 5
	redisLockTTL    = 30 * time.Second
)

// Service orchestrates ingestion jobs.
type Service struct {
	store    store.Store
	source   contracts.IngestionSource
	sink     contracts.ContentSink
	notifier contracts.ProgressNotifier
	redis    *redis.Client // nil disables the distributed lock; store-level create-if-absent still applies
}

// New builds a Service. redisClient may be nil (REDIS_URL unset), in
// which case only the store's transactional create-if-absent guards
// the at-most-one-active-job invariant.
func New(s store.Store, source contracts.IngestionSource, sink contracts.ContentSink, notifier contracts.ProgressNotifier, redisClient *redis.Client) *Service {
	return &Service{store: s, source: source, sink: sink, notifier: notifier, redis: redisClient}
}

// CreateJob validates scope, enforces the at-most-one-active-job
// invariant, persists the job row, and schedules its worker as a
// fire-and-forget background task. The HTTP caller gets job.ID back
// immediately; the worker runs decoupled from the request lifetime.
func (s *Service) CreateJob(ctx context.Context, workspaceID, userID, connectorID string, scope models.IngestionState) (*models.IngestionJob, error) {
	if scope.StartDate != "" && scope.EndDate != "" && scope.StartDate > scope.EndDate {
		return nil, apperr.New(models.ErrInvalidModel, "startDate must not be after endDate")
	}

	lockKey := fmt.Sprintf("ingestion:lock:%s:%s", userID, connectorID)
	if s.redis != nil {
		acquired, err := s.redis.SetNX(ctx, lockKey, "1", redisLockTTL).Result()
		if err != nil {
			return nil, fmt.Errorf("ingestion: acquire redis lock: %w", err)
		}
		if !acquired {
			return nil, apperr.New(models.ErrIngestionRunning, "an ingestion job is already running for this connector")
		}
	}

	job := &models.IngestionJob{
		ID:          uuid.New().String(),
		WorkspaceID: workspaceID,
		UserID:      userID,
		ConnectorID: connectorID,
		Status:      models.JobPending,
		Metadata:    models.JobMetadata{IngestionState: scope},
	}
	if err := s.store.CreateJobIfAbsent(ctx, job); err != nil {
		if s.redis != nil {
			s.redis.Del(ctx, lockKey)
		}
		if err == store.ErrJobAlreadyActive {
			return nil, apperr.New(models.ErrIngestionRunning, "an ingestion job is already running for this connector")
		}
		return nil, fmt.Errorf("ingestion: create job: %w", err)
	}

	go s.runWorker(context.WithoutCancel(ctx), job, lockKey)
	return job, nil
}

// ScheduleIngestion implements contracts.IngestionScheduler for
// callers (internal/connectors) that only need fire-and-forget
// scheduling without the job identifier.
func (s *Service) ScheduleIngestion(ctx context.Context, workspaceID, connectorExternalID, userID string, scope models.IngestionState) error {
	_, err := s.CreateJob(ctx, workspaceID, userID, connectorExternalID, scope)
	return err
}

// CancelJob records a cancellation signal on the job row; the worker
// polls for it between units of work.
func (s *Service) CancelJob(ctx context.Context, jobID string) error {
	return s.store.UpdateJobStatus(ctx, jobID, models.JobCancelled, "cancelled by caller")
}

func (s *Service) ListActiveJobs(ctx context.Context, workspaceID string) ([]models.IngestionJob, error) {
	return s.store.ListActiveJobs(ctx, workspaceID)
}

// runWorker pulls successive batches until the source reports
// completion, a hard failure occurs, or the job is cancelled. A hard
// failure never propagates to the HTTP caller, who already received
// the job id; it is logged and recorded on the job row.
func (s *Service) runWorker(ctx context.Context, job *models.IngestionJob, lockKey string) {
	defer func() {
		if s.redis != nil {
			s.redis.Del(context.Background(), lockKey)
		}
	}()

	if err := s.store.UpdateJobStatus(ctx, job.ID, models.JobRunning, ""); err != nil {
		log.Error().Err(err).Str("job", job.ID).Msg("failed to mark ingestion job running")
		return
	}

	connector, err := s.store.GetConnector(ctx, job.ConnectorID)
	if err != nil {
		s.fail(job, fmt.Sprintf("load connector: %v", err))
		return
	}

	state := job.Metadata.IngestionState
	progress := job.Metadata.WebsocketData
	retries := 0

	for {
		if current, err := s.store.GetJob(ctx, job.ID); err == nil && current.Status == models.JobCancelled {
			log.Info().Str("job", job.ID).Msg("ingestion job cancelled, stopping worker")
			return
		}

		batch, err := s.fetchWithBackoff(ctx, connector, state, &retries)
		if err != nil {
			s.fail(job, err.Error())
			return
		}

		if len(batch.Items) > 0 {
			if err := s.sink.Write(ctx, job.WorkspaceID, job.ConnectorID, batch.Items); err != nil {
				s.fail(job, fmt.Sprintf("write batch: %v", err))
				return
			}
		}

		state = batch.NextState
		state.LastUpdated = time.Now()
		progress.ProcessedItems += int64(len(batch.Items))
		progress.LastUpdated = state.LastUpdated

		if err := s.store.UpdateJobMetadata(ctx, job.ID, models.JobMetadata{WebsocketData: progress, IngestionState: state}); err != nil {
			log.Warn().Err(err).Str("job", job.ID).Msg("failed to persist ingestion progress")
		}
		s.notifier.Publish(ctx, contracts.IngestionProgressEvent{
			ConnectorID: job.ConnectorID,
			JobID:       job.ID,
			Progress:    progress,
			Status:      models.JobRunning,
			Timestamp:   time.Now(),
		})

		if batch.Done {
			break
		}
	}

	if err := s.store.UpdateJobStatus(ctx, job.ID, models.JobSucceeded, ""); err != nil {
		log.Error().Err(err).Str("job", job.ID).Msg("failed to mark ingestion job succeeded")
		return
	}
	s.notifier.Publish(ctx, contracts.IngestionProgressEvent{
		ConnectorID: job.ConnectorID,
		JobID:       job.ID,
		Progress:    progress,
		Status:      models.JobSucceeded,
		Timestamp:   time.Now(),
	})
}

// fetchWithBackoff retries transient source failures with exponential
// back-off, incrementing a worker-local retry counter (never the job
// row itself, per spec).
func (s *Service) fetchWithBackoff(ctx context.Context, connector *models.Connector, state models.IngestionState, retries *int) (*contracts.IngestionBatch, error) {
	var batch *contracts.IngestionBatch
	op := func() error {
		b, err := s.source.FetchBatch(ctx, connector, state)
		if err != nil {
			*retries++
			return err
		}
		batch = b
		return nil
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxFetchRetries), ctx)
	if err := backoff.Retry(op, bo); err != nil {
		return nil, fmt.Errorf("transient failures exhausted after %d retries: %w", *retries, err)
	}
	return batch, nil
}

func (s *Service) fail(job *models.IngestionJob, msg string) {
	log.Error().Str("job", job.ID).Str("error", msg).Msg("ingestion job failed")
	bg := context.Background()
	if err := s.store.UpdateJobStatus(bg, job.ID, models.JobFailed, msg); err != nil {
		log.Error().Err(err).Str("job", job.ID).Msg("failed to persist ingestion failure")
	}
	s.notifier.Publish(bg, contracts.IngestionProgressEvent{
		ConnectorID: job.ConnectorID,
		JobID:       job.ID,
		Status:      models.JobFailed,
		Timestamp:   time.Now(),
	})
}
