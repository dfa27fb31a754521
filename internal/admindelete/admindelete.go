// Package admindelete implements the admin data-deletion coordinator
// (C9): idempotent per-service removal of a user's indexed content and,
// optionally, their queued ingestion jobs, with structured per-service
// outcome reporting that never aborts mid-batch.
package admindelete

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/corewire/assistant-core/internal/retention"
	"github.com/corewire/assistant-core/internal/store"
	"github.com/corewire/assistant-core/pkg/contracts"
	"github.com/corewire/assistant-core/pkg/models"
)

// Request is the input to Delete: which user's data to clear, and
// which services (empty means every connector the user has).
type Request struct {
	WorkspaceID     string
	EmailToClear    string
	ServicesToClear []models.SourceApp
	DeleteSyncJob   bool
}

// ServiceOutcome reports what happened for one connector.
type ServiceOutcome struct {
	App           models.SourceApp `json:"app"`
	ConnectorID   string           `json:"connectorId"`
	IndexCleared  bool             `json:"indexCleared"`
	JobsCancelled bool             `json:"jobsCancelled"`
	Error         string           `json:"error,omitempty"`
}

// Result is the structured, per-service summary returned to the caller.
type Result struct {
	EmailToClear string           `json:"emailToClear"`
	Outcomes     []ServiceOutcome `json:"outcomes"`
}

// Service coordinates admin-triggered data deletion.
type Service struct {
	store    store.Store
	index    contracts.DeletionIndex
	archiver *retention.LocalAuditArchiver
}

func New(s store.Store, index contracts.DeletionIndex, archiver *retention.LocalAuditArchiver) *Service {
	return &Service{store: s, index: index, archiver: archiver}
}

// Delete clears a user's indexed content per matching connector and,
// if requested, their queued sync jobs. Every step is idempotent and
// a failure on one connector is recorded rather than aborting the rest.
func (s *Service) Delete(ctx context.Context, req Request) (*Result, error) {
	connectors, err := s.store.ListConnectors(ctx, req.WorkspaceID, req.EmailToClear)
	if err != nil {
		return nil, err
	}

	wanted := toSet(req.ServicesToClear)
	result := &Result{EmailToClear: req.EmailToClear}

	for _, c := range connectors {
		if len(wanted) > 0 {
			if _, ok := wanted[c.App]; !ok {
				continue
			}
		}
		result.Outcomes = append(result.Outcomes, s.clearConnector(ctx, req, c))
	}

	if s.archiver != nil {
		if _, err := s.archiver.ArchiveDeletionResult(ctx, req.WorkspaceID, result); err != nil {
			log.Warn().Err(err).Str("workspace", req.WorkspaceID).Msg("failed to archive data-deletion result")
		}
	}

	return result, nil
}

func (s *Service) clearConnector(ctx context.Context, req Request, c models.Connector) ServiceOutcome {
	outcome := ServiceOutcome{App: c.App, ConnectorID: c.ExternalID}

	if err := s.index.DeleteByEmail(ctx, req.WorkspaceID, c.App, req.EmailToClear); err != nil {
		log.Error().Err(err).Str("connector", c.ExternalID).Msg("failed to clear search index entries")
		outcome.Error = err.Error()
	} else {
		outcome.IndexCleared = true
	}

	if req.DeleteSyncJob {
		if err := s.store.CancelJobsForConnector(ctx, c.ExternalID); err != nil {
			log.Error().Err(err).Str("connector", c.ExternalID).Msg("failed to cancel queued sync jobs")
			if outcome.Error == "" {
				outcome.Error = err.Error()
			}
		} else {
			outcome.JobsCancelled = true
		}
	}

	return outcome
}

func toSet(apps []models.SourceApp) map[models.SourceApp]struct{} {
	if len(apps) == 0 {
		return nil
	}
	set := make(map[models.SourceApp]struct{}, len(apps))
	for _, a := range apps {
		set[a] = struct{}{}
	}
	return set
}
