package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/corewire/assistant-core/pkg/models"
)

// Schema is the SQL DDL for every table this store depends on. Execute
// it via PostgresStore.Migrate, or apply it manually during deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS connectors (
    external_id       TEXT PRIMARY KEY,
    workspace_id      TEXT NOT NULL,
    owner_user_id     TEXT NOT NULL,
    app               TEXT NOT NULL,
    auth_type         TEXT NOT NULL,
    status            TEXT NOT NULL,
    encrypted_creds   BYTEA,
    subject_email     TEXT NOT NULL DEFAULT '',
    whitelisted_to    JSONB NOT NULL DEFAULT '[]',
    oauth_provider_id TEXT NOT NULL DEFAULT '',
    created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
    deleted_at        TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_connectors_workspace ON connectors(workspace_id);

CREATE TABLE IF NOT EXISTS oauth_providers (
    id               TEXT PRIMARY KEY,
    workspace_id     TEXT NOT NULL DEFAULT '',
    app              TEXT NOT NULL,
    client_id        TEXT NOT NULL,
    encrypted_secret BYTEA,
    scopes           JSONB NOT NULL DEFAULT '[]',
    is_global        BOOLEAN NOT NULL DEFAULT false,
    created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_oauth_providers_global_app
    ON oauth_providers(app) WHERE is_global;

CREATE TABLE IF NOT EXISTS ingestion_jobs (
    id           TEXT PRIMARY KEY,
    workspace_id TEXT NOT NULL,
    user_id      TEXT NOT NULL,
    connector_id TEXT NOT NULL,
    status       TEXT NOT NULL,
    metadata     JSONB NOT NULL DEFAULT '{}',
    created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_ingestion_jobs_workspace ON ingestion_jobs(workspace_id);
CREATE UNIQUE INDEX IF NOT EXISTS idx_ingestion_jobs_active_pair
    ON ingestion_jobs(user_id, connector_id) WHERE status IN ('pending', 'running');

CREATE TABLE IF NOT EXISTS ingestion_schedules (
    id           TEXT PRIMARY KEY,
    connector_id TEXT NOT NULL,
    interval_ns  BIGINT NOT NULL,
    next_run_at  TIMESTAMPTZ NOT NULL,
    enabled      BOOLEAN NOT NULL DEFAULT true
);

CREATE TABLE IF NOT EXISTS connector_tools (
    workspace_id TEXT NOT NULL,
    connector_id TEXT NOT NULL,
    name         TEXT NOT NULL,
    schema       TEXT NOT NULL DEFAULT '',
    description  TEXT NOT NULL DEFAULT '',
    enabled      BOOLEAN NOT NULL DEFAULT true,
    created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (workspace_id, connector_id, name)
);

CREATE TABLE IF NOT EXISTS audit_events (
    id           TEXT PRIMARY KEY,
    workspace_id TEXT NOT NULL,
    actor_id     TEXT NOT NULL,
    action       TEXT NOT NULL,
    target_kind  TEXT NOT NULL,
    target_id    TEXT NOT NULL,
    detail       JSONB NOT NULL DEFAULT '{}',
    created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_audit_events_workspace_time ON audit_events(workspace_id, created_at DESC);

CREATE TABLE IF NOT EXISTS call_rooms (
    id               TEXT PRIMARY KEY,
    workspace_id     TEXT NOT NULL,
    external_room_id TEXT NOT NULL,
    started_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
    ended_at         TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_call_rooms_workspace ON call_rooms(workspace_id);
`

// DB is the database handle used by PostgresStore. Both *pgxpool.Pool
// and *pgx.Conn satisfy it.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore implements Store against a PostgreSQL database via pgx.
// It is the production backend; MemoryStore remains the local-dev and
// test fallback.
type PostgresStore struct {
	db   DB
	pool *pgxpool.Pool // non-nil only when this store owns its pool (see NewPostgresStore)
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore connects to the given DSN and returns a ready store.
// The returned store owns the pool and closes it on Close.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("store: connect: %w", err)
	}
	return &PostgresStore{db: pool, pool: pool}, nil
}

// NewPostgresStoreWithDB wraps an already-open DB handle (pool or
// conn) whose lifecycle the caller owns; Close is a no-op.
func NewPostgresStoreWithDB(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	var one int
	return s.db.QueryRow(ctx, "SELECT 1").Scan(&one)
}

func (s *PostgresStore) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

// ── Connectors ───────────────────────────────────────────────

func (s *PostgresStore) ListConnectors(ctx context.Context, workspaceID, userID string) ([]models.Connector, error) {
	rows, err := s.db.Query(ctx, `
		SELECT external_id, workspace_id, owner_user_id, app, auth_type, status,
		       subject_email, whitelisted_to, oauth_provider_id, created_at, updated_at, deleted_at
		FROM connectors
		WHERE workspace_id = $1 AND owner_user_id = $2 AND deleted_at IS NULL
		ORDER BY created_at DESC`, workspaceID, userID)
	if err != nil {
		return nil, fmt.Errorf("store: list connectors: %w", err)
	}
	defer rows.Close()

	var out []models.Connector
	for rows.Next() {
		c, err := scanConnector(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (s *PostgresStore) GetConnector(ctx context.Context, externalID string) (*models.Connector, error) {
	row := s.db.QueryRow(ctx, `
		SELECT external_id, workspace_id, owner_user_id, app, auth_type, status,
		       subject_email, whitelisted_to, oauth_provider_id, created_at, updated_at, deleted_at
		FROM connectors WHERE external_id = $1 AND deleted_at IS NULL`, externalID)
	c, err := scanConnector(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get connector: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) CreateConnector(ctx context.Context, c *models.Connector) error {
	whitelisted, err := json.Marshal(emptySlice(c.WhitelistedTo))
	if err != nil {
		return fmt.Errorf("store: marshal whitelisted_to: %w", err)
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO connectors (external_id, workspace_id, owner_user_id, app, auth_type, status,
		                         encrypted_creds, subject_email, whitelisted_to, oauth_provider_id,
		                         created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		c.ExternalID, c.WorkspaceID, c.OwnerUserID, c.App, c.AuthType, c.Status,
		c.EncryptedCreds, c.SubjectEmail, whitelisted, c.OAuthProviderID,
		c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("store: create connector: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateConnectorStatus(ctx context.Context, externalID string, status models.ConnectorStatus) error {
	tag, err := s.db.Exec(ctx, `UPDATE connectors SET status = $1, updated_at = now() WHERE external_id = $2 AND deleted_at IS NULL`, status, externalID)
	if err != nil {
		return fmt.Errorf("store: update connector status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) UpdateConnectorCredentials(ctx context.Context, externalID string, encryptedCreds []byte, subjectEmail string) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE connectors SET encrypted_creds = $1, subject_email = $2, status = $3, updated_at = now()
		WHERE external_id = $4 AND deleted_at IS NULL`,
		encryptedCreds, subjectEmail, models.ConnectorConnected, externalID)
	if err != nil {
		return fmt.Errorf("store: update connector credentials: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) DeleteConnector(ctx context.Context, externalID string) error {
	tag, err := s.db.Exec(ctx, `UPDATE connectors SET deleted_at = now() WHERE external_id = $1 AND deleted_at IS NULL`, externalID)
	if err != nil {
		return fmt.Errorf("store: delete connector: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConnector(row rowScanner) (*models.Connector, error) {
	var c models.Connector
	var whitelisted []byte
	if err := row.Scan(&c.ExternalID, &c.WorkspaceID, &c.OwnerUserID, &c.App, &c.AuthType, &c.Status,
		&c.SubjectEmail, &whitelisted, &c.OAuthProviderID, &c.CreatedAt, &c.UpdatedAt, &c.DeletedAt); err != nil {
		return nil, err
	}
	if len(whitelisted) > 0 {
		if err := json.Unmarshal(whitelisted, &c.WhitelistedTo); err != nil {
			return nil, fmt.Errorf("store: unmarshal whitelisted_to: %w", err)
		}
	}
	return &c, nil
}

// ── OAuth Providers ──────────────────────────────────────────

func (s *PostgresStore) CreateOAuthProvider(ctx context.Context, p *models.OAuthProvider) error {
	scopes, err := json.Marshal(emptySlice(p.Scopes))
	if err != nil {
		return fmt.Errorf("store: marshal scopes: %w", err)
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO oauth_providers (id, workspace_id, app, client_id, encrypted_secret, scopes, is_global, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		p.ID, p.WorkspaceID, p.App, p.ClientID, p.EncryptedSecret, scopes, p.IsGlobal, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("store: create oauth provider: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetOAuthProvider(ctx context.Context, id string) (*models.OAuthProvider, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, workspace_id, app, client_id, scopes, is_global, created_at
		FROM oauth_providers WHERE id = $1`, id)
	p, err := scanOAuthProvider(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get oauth provider: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) FindGlobalProvider(ctx context.Context, app models.SourceApp) (*models.OAuthProvider, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, workspace_id, app, client_id, scopes, is_global, created_at
		FROM oauth_providers WHERE app = $1 AND is_global = true`, app)
	p, err := scanOAuthProvider(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: find global provider: %w", err)
	}
	return p, nil
}

func scanOAuthProvider(row rowScanner) (*models.OAuthProvider, error) {
	var p models.OAuthProvider
	var scopes []byte
	if err := row.Scan(&p.ID, &p.WorkspaceID, &p.App, &p.ClientID, &scopes, &p.IsGlobal, &p.CreatedAt); err != nil {
		return nil, err
	}
	if len(scopes) > 0 {
		if err := json.Unmarshal(scopes, &p.Scopes); err != nil {
			return nil, fmt.Errorf("store: unmarshal scopes: %w", err)
		}
	}
	return &p, nil
}

// ── Ingestion Jobs ───────────────────────────────────────────

func (s *PostgresStore) CreateJobIfAbsent(ctx context.Context, job *models.IngestionJob) error {
	metadata, err := json.Marshal(job.Metadata)
	if err != nil {
		return fmt.Errorf("store: marshal job metadata: %w", err)
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO ingestion_jobs (id, workspace_id, user_id, connector_id, status, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		job.ID, job.WorkspaceID, job.UserID, job.ConnectorID, job.Status, metadata, job.CreatedAt, job.UpdatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrJobAlreadyActive
	}
	if err != nil {
		return fmt.Errorf("store: create job: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetJob(ctx context.Context, id string) (*models.IngestionJob, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, workspace_id, user_id, connector_id, status, metadata, created_at, updated_at
		FROM ingestion_jobs WHERE id = $1`, id)
	job, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get job: %w", err)
	}
	return job, nil
}

func (s *PostgresStore) UpdateJobMetadata(ctx context.Context, id string, metadata models.JobMetadata) error {
	data, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("store: marshal job metadata: %w", err)
	}
	tag, err := s.db.Exec(ctx, `UPDATE ingestion_jobs SET metadata = $1, updated_at = now() WHERE id = $2`, data, id)
	if err != nil {
		return fmt.Errorf("store: update job metadata: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) UpdateJobStatus(ctx context.Context, id string, status models.JobStatus, lastError string) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE ingestion_jobs
		SET status = $1, updated_at = now(),
		    metadata = jsonb_set(metadata, '{ingestionState,lastError}', to_jsonb($2::text), true)
		WHERE id = $3`, status, lastError, id)
	if err != nil {
		return fmt.Errorf("store: update job status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListActiveJobs(ctx context.Context, workspaceID string) ([]models.IngestionJob, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, workspace_id, user_id, connector_id, status, metadata, created_at, updated_at
		FROM ingestion_jobs
		WHERE workspace_id = $1 AND status IN ('pending', 'running')
		ORDER BY created_at DESC`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("store: list active jobs: %w", err)
	}
	defer rows.Close()

	var out []models.IngestionJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *job)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CancelJobsForConnector(ctx context.Context, connectorID string) error {
	_, err := s.db.Exec(ctx, `
		UPDATE ingestion_jobs SET status = $1, updated_at = now()
		WHERE connector_id = $2 AND status IN ('pending', 'running')`, models.JobCancelled, connectorID)
	if err != nil {
		return fmt.Errorf("store: cancel jobs for connector: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListSchedules(ctx context.Context) ([]models.IngestionSchedule, error) {
	rows, err := s.db.Query(ctx, `SELECT id, connector_id, interval_ns, next_run_at, enabled FROM ingestion_schedules WHERE enabled = true`)
	if err != nil {
		return nil, fmt.Errorf("store: list schedules: %w", err)
	}
	defer rows.Close()

	var out []models.IngestionSchedule
	for rows.Next() {
		var sc models.IngestionSchedule
		var intervalNS int64
		if err := rows.Scan(&sc.ID, &sc.ConnectorID, &intervalNS, &sc.NextRunAt, &sc.Enabled); err != nil {
			return nil, fmt.Errorf("store: scan schedule: %w", err)
		}
		sc.Interval = time.Duration(intervalNS)
		out = append(out, sc)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpsertSchedule(ctx context.Context, sc *models.IngestionSchedule) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO ingestion_schedules (id, connector_id, interval_ns, next_run_at, enabled)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
		    interval_ns = EXCLUDED.interval_ns, next_run_at = EXCLUDED.next_run_at, enabled = EXCLUDED.enabled`,
		sc.ID, sc.ConnectorID, int64(sc.Interval), sc.NextRunAt, sc.Enabled)
	if err != nil {
		return fmt.Errorf("store: upsert schedule: %w", err)
	}
	return nil
}

func scanJob(row rowScanner) (*models.IngestionJob, error) {
	var job models.IngestionJob
	var metadata []byte
	if err := row.Scan(&job.ID, &job.WorkspaceID, &job.UserID, &job.ConnectorID, &job.Status, &metadata, &job.CreatedAt, &job.UpdatedAt); err != nil {
		return nil, err
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &job.Metadata); err != nil {
			return nil, fmt.Errorf("store: unmarshal job metadata: %w", err)
		}
	}
	return &job, nil
}

// ── Tools ────────────────────────────────────────────────────

func (s *PostgresStore) SyncConnectorTools(ctx context.Context, workspaceID, connectorID string, tools []models.Tool) error {
	tx, err := beginTx(ctx, s.db)
	if err != nil {
		return fmt.Errorf("store: sync tools: begin: %w", err)
	}
	defer tx.rollback(ctx)

	if _, err := tx.exec(ctx, `DELETE FROM connector_tools WHERE workspace_id = $1 AND connector_id = $2`, workspaceID, connectorID); err != nil {
		return fmt.Errorf("store: sync tools: clear: %w", err)
	}
	for _, t := range tools {
		if _, err := tx.exec(ctx, `
			INSERT INTO connector_tools (workspace_id, connector_id, name, schema, description, enabled, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			workspaceID, connectorID, t.Name, t.Schema, t.Description, t.Enabled, t.CreatedAt, t.UpdatedAt); err != nil {
			return fmt.Errorf("store: sync tools: insert %q: %w", t.Name, err)
		}
	}
	return tx.commit(ctx)
}

func (s *PostgresStore) ListConnectorTools(ctx context.Context, workspaceID, connectorID string) ([]models.Tool, error) {
	rows, err := s.db.Query(ctx, `
		SELECT workspace_id, connector_id, name, schema, description, enabled, created_at, updated_at
		FROM connector_tools WHERE workspace_id = $1 AND connector_id = $2 ORDER BY name`, workspaceID, connectorID)
	if err != nil {
		return nil, fmt.Errorf("store: list connector tools: %w", err)
	}
	defer rows.Close()
	return scanTools(rows)
}

func (s *PostgresStore) ListEnabledTools(ctx context.Context, workspaceID string) ([]models.Tool, error) {
	rows, err := s.db.Query(ctx, `
		SELECT workspace_id, connector_id, name, schema, description, enabled, created_at, updated_at
		FROM connector_tools WHERE workspace_id = $1 AND enabled = true ORDER BY connector_id, name`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("store: list enabled tools: %w", err)
	}
	defer rows.Close()
	return scanTools(rows)
}

func (s *PostgresStore) SetToolEnabled(ctx context.Context, workspaceID, connectorID, name string, enabled bool) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE connector_tools SET enabled = $1, updated_at = now()
		WHERE workspace_id = $2 AND connector_id = $3 AND name = $4`, enabled, workspaceID, connectorID, name)
	if err != nil {
		return fmt.Errorf("store: set tool enabled: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) DeleteConnectorTools(ctx context.Context, workspaceID, connectorID string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM connector_tools WHERE workspace_id = $1 AND connector_id = $2`, workspaceID, connectorID)
	if err != nil {
		return fmt.Errorf("store: delete connector tools: %w", err)
	}
	return nil
}

func scanTools(rows pgx.Rows) ([]models.Tool, error) {
	var out []models.Tool
	for rows.Next() {
		var t models.Tool
		if err := rows.Scan(&t.WorkspaceID, &t.ConnectorID, &t.Name, &t.Schema, &t.Description, &t.Enabled, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("store: scan tool: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ── Audit ────────────────────────────────────────────────────

func (s *PostgresStore) RecordAuditEvent(ctx context.Context, e *models.AuditEvent) error {
	detail, err := json.Marshal(emptyMap(e.Detail))
	if err != nil {
		return fmt.Errorf("store: marshal audit detail: %w", err)
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO audit_events (id, workspace_id, actor_id, action, target_kind, target_id, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.ID, e.WorkspaceID, e.ActorID, e.Action, e.TargetKind, e.TargetID, detail, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("store: record audit event: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListAuditEvents(ctx context.Context, workspaceID string, since time.Time, limit int) ([]models.AuditEvent, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, workspace_id, actor_id, action, target_kind, target_id, detail, created_at
		FROM audit_events
		WHERE workspace_id = $1 AND created_at >= $2
		ORDER BY created_at DESC
		LIMIT $3`, workspaceID, since, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list audit events: %w", err)
	}
	defer rows.Close()

	var out []models.AuditEvent
	for rows.Next() {
		var e models.AuditEvent
		var detail []byte
		if err := rows.Scan(&e.ID, &e.WorkspaceID, &e.ActorID, &e.Action, &e.TargetKind, &e.TargetID, &detail, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: scan audit event: %w", err)
		}
		if len(detail) > 0 {
			if err := json.Unmarshal(detail, &e.Detail); err != nil {
				return nil, fmt.Errorf("store: unmarshal audit detail: %w", err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ── Call Rooms ───────────────────────────────────────────────

func (s *PostgresStore) RecordActiveCallRoom(ctx context.Context, room *models.CallRoom) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO call_rooms (id, workspace_id, external_room_id, started_at, ended_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET ended_at = EXCLUDED.ended_at`,
		room.ID, room.WorkspaceID, room.ExternalRoomID, room.StartedAt, room.EndedAt)
	if err != nil {
		return fmt.Errorf("store: record active call room: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListActiveCallRooms(ctx context.Context, workspaceID string) ([]models.CallRoom, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, workspace_id, external_room_id, started_at, ended_at
		FROM call_rooms WHERE workspace_id = $1 AND ended_at IS NULL`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("store: list active call rooms: %w", err)
	}
	defer rows.Close()

	var out []models.CallRoom
	for rows.Next() {
		var room models.CallRoom
		if err := rows.Scan(&room.ID, &room.WorkspaceID, &room.ExternalRoomID, &room.StartedAt, &room.EndedAt); err != nil {
			return nil, fmt.Errorf("store: scan call room: %w", err)
		}
		out = append(out, room)
	}
	return out, rows.Err()
}

func (s *PostgresStore) MarkCallRoomEnded(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `UPDATE call_rooms SET ended_at = now() WHERE id = $1 AND ended_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("store: mark call room ended: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ── tx helper ────────────────────────────────────────────────

// pgxTx is the minimal subset of pgx.Tx that SyncConnectorTools needs.
// Defined so PostgresStore can run with a plain *pgx.Conn or a pool,
// both of which expose Begin the same way via the DB interface's
// underlying concrete type.
type pgxTx struct {
	tx pgx.Tx
}

func beginTx(ctx context.Context, db DB) (*pgxTx, error) {
	beginner, ok := db.(interface {
		Begin(ctx context.Context) (pgx.Tx, error)
	})
	if !ok {
		return nil, errors.New("store: underlying DB handle does not support transactions")
	}
	tx, err := beginner.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &pgxTx{tx: tx}, nil
}

func (t *pgxTx) exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return t.tx.Exec(ctx, sql, args...)
}

func (t *pgxTx) commit(ctx context.Context) error {
	return t.tx.Commit(ctx)
}

func (t *pgxTx) rollback(ctx context.Context) {
	_ = t.tx.Rollback(ctx)
}

func emptySlice(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func emptyMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
