package ingestion

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/corewire/assistant-core/pkg/models"
)

// DefaultScheduleInterval is how often ScheduleRunner checks for due
// recurring ingestion schedules.
const DefaultScheduleInterval = time.Minute

// ScheduleRunner polls recurring ingestion schedules (a supplemental
// feature layered on top of the one-shot job model; it never changes
// one-shot semantics) and creates a job whenever NextRunAt has passed,
// mirroring the retention janitor's ticker/select loop shape.
type ScheduleRunner struct {
	svc      *Service
	interval time.Duration
}

func NewScheduleRunner(svc *Service, interval time.Duration) *ScheduleRunner {
	if interval <= 0 {
		interval = DefaultScheduleInterval
	}
	return &ScheduleRunner{svc: svc, interval: interval}
}

func (r *ScheduleRunner) Start(ctx context.Context) {
	r.runCycle(ctx)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.runCycle(ctx)
		}
	}
}

func (r *ScheduleRunner) runCycle(ctx context.Context) {
	schedules, err := r.svc.store.ListSchedules(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to list ingestion schedules")
		return
	}

	now := time.Now()
	for _, sch := range schedules {
		if !sch.Enabled || sch.NextRunAt.After(now) {
			continue
		}
		connector, err := r.svc.store.GetConnector(ctx, sch.ConnectorID)
		if err != nil {
			log.Warn().Err(err).Str("connector", sch.ConnectorID).Msg("skipping ingestion schedule: connector unavailable")
			continue
		}

		if _, err := r.svc.CreateJob(ctx, connector.WorkspaceID, connector.OwnerUserID, connector.ExternalID, models.IngestionState{}); err != nil {
			log.Warn().Err(err).Str("connector", sch.ConnectorID).Msg("scheduled ingestion run skipped")
		}

		sch.NextRunAt = now.Add(sch.Interval)
		if err := r.svc.store.UpsertSchedule(ctx, &sch); err != nil {
			log.Error().Err(err).Str("schedule", sch.ID).Msg("failed to persist next ingestion schedule run")
		}
	}
}
