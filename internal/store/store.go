// Package store provides the persistence interface and implementations
// backing the connector, OAuth, ingestion, and tool-registry subsystems.
// Phase 1 is in-memory maps; Phase 2 introduces PostgreSQL-backed
// persistence via pgx.
package store

import (
	"context"
	"time"

	"github.com/corewire/assistant-core/pkg/models"
)

// Store is the primary storage interface. All handler code depends on
// this interface, making it easy to swap between in-memory (tests) and
// PostgreSQL (production) implementations.
type Store interface {
	ConnectorStore
	OAuthProviderStore
	IngestionJobStore
	ToolStore
	AuditStore
	CallRoomStore

	// Ping checks if the database is reachable.
	Ping(ctx context.Context) error

	// Close releases all resources held by the store.
	Close() error

	// Migrate runs database migrations.
	Migrate(ctx context.Context) error
}

// ── Connector Store ──────────────────────────────────────────

type ConnectorStore interface {
	// ListConnectors returns non-deleted connectors visible to the
	// given user within a workspace.
	ListConnectors(ctx context.Context, workspaceID, userID string) ([]models.Connector, error)
	GetConnector(ctx context.Context, externalID string) (*models.Connector, error)
	CreateConnector(ctx context.Context, connector *models.Connector) error
	UpdateConnectorStatus(ctx context.Context, externalID string, status models.ConnectorStatus) error
	UpdateConnectorCredentials(ctx context.Context, externalID string, encryptedCreds []byte, subjectEmail string) error

	// DeleteConnector soft-deletes the record. Callers are responsible
	// for cascading to tools/jobs before or after, per the Store
	// implementation's transactional guarantees.
	DeleteConnector(ctx context.Context, externalID string) error
}

// ── OAuth Provider Store ─────────────────────────────────────

type OAuthProviderStore interface {
	CreateOAuthProvider(ctx context.Context, provider *models.OAuthProvider) error
	GetOAuthProvider(ctx context.Context, id string) (*models.OAuthProvider, error)

	// FindGlobalProvider looks up the single global provider for an
	// app, if any. Creation of a second global provider for the same
	// app must be rejected by the caller (see connectors package).
	FindGlobalProvider(ctx context.Context, app models.SourceApp) (*models.OAuthProvider, error)
}

// ── Ingestion Job Store ──────────────────────────────────────

type IngestionJobStore interface {
	// CreateJobIfAbsent enforces the at-most-one-active-job-per-
	// (user,connector) invariant: it inserts the new row only if no
	// job for the pair is currently pending or running, returning
	// ErrJobAlreadyActive otherwise. The check-and-insert is atomic
	// with respect to other callers of this method.
	CreateJobIfAbsent(ctx context.Context, job *models.IngestionJob) error

	GetJob(ctx context.Context, id string) (*models.IngestionJob, error)
	UpdateJobMetadata(ctx context.Context, id string, metadata models.JobMetadata) error
	UpdateJobStatus(ctx context.Context, id string, status models.JobStatus, lastError string) error
	ListActiveJobs(ctx context.Context, workspaceID string) ([]models.IngestionJob, error)
	CancelJobsForConnector(ctx context.Context, connectorID string) error

	ListSchedules(ctx context.Context) ([]models.IngestionSchedule, error)
	UpsertSchedule(ctx context.Context, schedule *models.IngestionSchedule) error
}

// ── Tool Store ───────────────────────────────────────────────

type ToolStore interface {
	// SyncConnectorTools atomically replaces the connector's tool
	// catalog with exactly the given list (§4.8, testable property 5).
	SyncConnectorTools(ctx context.Context, workspaceID, connectorID string, tools []models.Tool) error
	ListConnectorTools(ctx context.Context, workspaceID, connectorID string) ([]models.Tool, error)
	ListEnabledTools(ctx context.Context, workspaceID string) ([]models.Tool, error)
	SetToolEnabled(ctx context.Context, workspaceID, connectorID, name string, enabled bool) error
	DeleteConnectorTools(ctx context.Context, workspaceID, connectorID string) error
}

// ── Audit Store ──────────────────────────────────────────────

type AuditStore interface {
	RecordAuditEvent(ctx context.Context, event *models.AuditEvent) error
	ListAuditEvents(ctx context.Context, workspaceID string, since time.Time, limit int) ([]models.AuditEvent, error)
}

// ── Call Room Store ──────────────────────────────────────────

type CallRoomStore interface {
	// RecordActiveCallRoom upserts a room the ingestion/cleanup loop
	// should track as active until the external service reports it
	// empty.
	RecordActiveCallRoom(ctx context.Context, room *models.CallRoom) error
	ListActiveCallRooms(ctx context.Context, workspaceID string) ([]models.CallRoom, error)
	MarkCallRoomEnded(ctx context.Context, id string) error
}

// ErrJobAlreadyActive is returned by CreateJobIfAbsent when the
// (user, connector) pair already has a pending or running job.
var ErrJobAlreadyActive = &jobActiveError{}

type jobActiveError struct{}

func (*jobActiveError) Error() string { return "ingestion job already active for user/connector" }

// ErrNotFound is returned by Get*/Update* methods when the target row
// does not exist (or is soft-deleted, for connectors).
var ErrNotFound = &notFoundError{}

type notFoundError struct{}

func (*notFoundError) Error() string { return "not found" }
