// Package store — in-memory Store implementation.
// Used as a fallback when PostgreSQL is not available (local dev, tests).
// Supports file-based snapshot persistence so data survives restarts.
package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/corewire/assistant-core/pkg/models"
	"github.com/rs/zerolog/log"
)

// snapshot is the JSON-serializable shape written to disk.
type snapshot struct {
	Connectors     map[string]*models.Connector          `json:"connectors"`      // key: external_id
	OAuthProviders map[string]*models.OAuthProvider       `json:"oauth_providers"` // key: id
	Jobs           map[string]*models.IngestionJob         `json:"jobs"`           // key: id
	Schedules      map[string]*models.IngestionSchedule     `json:"schedules"`     // key: connector_id
	Tools          map[string]*models.Tool                  `json:"tools"`         // key: Tool.Key()
	AuditEvents    []*models.AuditEvent                      `json:"audit_events"`
	CallRooms      map[string]*models.CallRoom               `json:"call_rooms"` // key: id
}

// MemoryStore implements Store with in-memory maps.
type MemoryStore struct {
	mu             sync.RWMutex
	connectors     map[string]*models.Connector      // key: external_id
	oauthProviders map[string]*models.OAuthProvider   // key: id
	jobs           map[string]*models.IngestionJob    // key: id
	schedules      map[string]*models.IngestionSchedule // key: connector_id
	tools          map[string]*models.Tool            // key: Tool.Key()
	auditEvents    []*models.AuditEvent                // append-only log
	callRooms      map[string]*models.CallRoom         // key: id

	// Persistence
	snapshotPath string        // empty = no persistence
	saveMu       sync.Mutex    // guards file writes
	saveCh       chan struct{} // debounce channel
	doneCh       chan struct{} // signals background goroutines to stop
}

// NewMemoryStore creates a new in-memory store.
// If ASSISTANT_CORE_DATA_DIR is set, data is persisted to a JSON file in
// that directory. Otherwise defaults to ~/.assistant-core/data.json.
func NewMemoryStore() *MemoryStore {
	m := &MemoryStore{
		connectors:     make(map[string]*models.Connector),
		oauthProviders: make(map[string]*models.OAuthProvider),
		jobs:           make(map[string]*models.IngestionJob),
		schedules:      make(map[string]*models.IngestionSchedule),
		tools:          make(map[string]*models.Tool),
		auditEvents:    make([]*models.AuditEvent, 0),
		callRooms:      make(map[string]*models.CallRoom),
		saveCh:         make(chan struct{}, 1),
		doneCh:         make(chan struct{}),
	}

	dataDir := os.Getenv("ASSISTANT_CORE_DATA_DIR")
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err == nil {
			dataDir = filepath.Join(home, ".assistant-core")
		}
	}
	if dataDir != "" {
		m.snapshotPath = filepath.Join(dataDir, "data.json")
		if err := os.MkdirAll(dataDir, 0755); err != nil {
			log.Warn().Err(err).Str("dir", dataDir).Msg("Cannot create data dir, persistence disabled")
			m.snapshotPath = ""
		}
	}

	if m.snapshotPath != "" {
		m.loadSnapshot()
		go m.saveLoop()
	}

	log.Info().Str("snapshot", m.snapshotPath).Msg("Memory store configured")
	return m
}

// requestSave signals the background goroutine to persist data.
// Non-blocking: coalesces multiple rapid writes into one disk flush.
func (m *MemoryStore) requestSave() {
	if m.snapshotPath == "" {
		return
	}
	select {
	case m.saveCh <- struct{}{}:
	default:
	}
}

// saveLoop runs in a goroutine, debouncing save requests (max 1 write per 500ms).
func (m *MemoryStore) saveLoop() {
	for {
		select {
		case <-m.doneCh:
			return
		case <-m.saveCh:
			time.Sleep(500 * time.Millisecond)
			m.saveSnapshot()
		}
	}
}

func (m *MemoryStore) saveSnapshot() {
	m.mu.RLock()
	snap := snapshot{
		Connectors:     m.connectors,
		OAuthProviders: m.oauthProviders,
		Jobs:           m.jobs,
		Schedules:      m.schedules,
		Tools:          m.tools,
		AuditEvents:    m.auditEvents,
		CallRooms:      m.callRooms,
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	m.mu.RUnlock()

	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal snapshot")
		return
	}

	m.saveMu.Lock()
	defer m.saveMu.Unlock()

	tmp := m.snapshotPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		log.Error().Err(err).Str("path", tmp).Msg("Failed to write snapshot tmp")
		return
	}
	if err := os.Rename(tmp, m.snapshotPath); err != nil {
		log.Error().Err(err).Str("path", m.snapshotPath).Msg("Failed to rename snapshot")
		return
	}
	log.Debug().Str("path", m.snapshotPath).Msg("Snapshot saved")
}

func (m *MemoryStore) loadSnapshot() {
	data, err := os.ReadFile(m.snapshotPath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Info().Str("path", m.snapshotPath).Msg("No snapshot file found, starting fresh")
			return
		}
		log.Warn().Err(err).Str("path", m.snapshotPath).Msg("Failed to read snapshot")
		return
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		log.Error().Err(err).Str("path", m.snapshotPath).Msg("Failed to parse snapshot, starting fresh")
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if snap.Connectors != nil {
		m.connectors = snap.Connectors
	}
	if snap.OAuthProviders != nil {
		m.oauthProviders = snap.OAuthProviders
	}
	if snap.Jobs != nil {
		m.jobs = snap.Jobs
	}
	if snap.Schedules != nil {
		m.schedules = snap.Schedules
	}
	if snap.Tools != nil {
		m.tools = snap.Tools
	}
	if snap.AuditEvents != nil {
		m.auditEvents = snap.AuditEvents
	}
	if snap.CallRooms != nil {
		m.callRooms = snap.CallRooms
	}

	log.Info().
		Int("connectors", len(m.connectors)).
		Int("jobs", len(m.jobs)).
		Int("tools", len(m.tools)).
		Msg("Snapshot loaded")
}

func (m *MemoryStore) Ping(_ context.Context) error { return nil }

func (m *MemoryStore) Close() error {
	close(m.doneCh)
	if m.snapshotPath != "" {
		m.saveSnapshot()
	}
	return nil
}

func (m *MemoryStore) Migrate(_ context.Context) error { return nil }

// ── Connector Store ──────────────────────────────────────────

func (m *MemoryStore) ListConnectors(_ context.Context, workspaceID, userID string) ([]models.Connector, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.Connector
	for _, c := range m.connectors {
		if c.IsDeleted() || c.WorkspaceID != workspaceID {
			continue
		}
		if c.OwnerUserID != userID && !contains(c.WhitelistedTo, userID) {
			continue
		}
		out = append(out, *c)
	}
	return out, nil
}

func contains(xs []string, x string) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}

func (m *MemoryStore) GetConnector(_ context.Context, externalID string) (*models.Connector, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.connectors[externalID]
	if !ok || c.IsDeleted() {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *MemoryStore) CreateConnector(_ context.Context, connector *models.Connector) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	connector.CreatedAt = now
	connector.UpdatedAt = now
	cp := *connector
	m.connectors[connector.ExternalID] = &cp
	m.requestSave()
	return nil
}

func (m *MemoryStore) UpdateConnectorStatus(_ context.Context, externalID string, status models.ConnectorStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.connectors[externalID]
	if !ok || c.IsDeleted() {
		return ErrNotFound
	}
	c.Status = status
	c.UpdatedAt = time.Now().UTC()
	m.requestSave()
	return nil
}

func (m *MemoryStore) UpdateConnectorCredentials(_ context.Context, externalID string, encryptedCreds []byte, subjectEmail string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.connectors[externalID]
	if !ok || c.IsDeleted() {
		return ErrNotFound
	}
	c.EncryptedCreds = encryptedCreds
	if subjectEmail != "" {
		c.SubjectEmail = subjectEmail
	}
	c.UpdatedAt = time.Now().UTC()
	m.requestSave()
	return nil
}

func (m *MemoryStore) DeleteConnector(_ context.Context, externalID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.connectors[externalID]
	if !ok || c.IsDeleted() {
		return ErrNotFound
	}
	now := time.Now().UTC()
	c.DeletedAt = &now
	c.UpdatedAt = now

	for key, t := range m.tools {
		if t.ConnectorID == externalID {
			delete(m.tools, key)
		}
	}
	for _, j := range m.jobs {
		if j.ConnectorID == externalID && (j.Status == models.JobPending || j.Status == models.JobRunning) {
			j.Status = models.JobCancelled
			j.UpdatedAt = now
		}
	}
	m.requestSave()
	return nil
}

// ── OAuth Provider Store ─────────────────────────────────────

func (m *MemoryStore) CreateOAuthProvider(_ context.Context, provider *models.OAuthProvider) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	provider.CreatedAt = time.Now().UTC()
	cp := *provider
	m.oauthProviders[provider.ID] = &cp
	m.requestSave()
	return nil
}

func (m *MemoryStore) GetOAuthProvider(_ context.Context, id string) (*models.OAuthProvider, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.oauthProviders[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MemoryStore) FindGlobalProvider(_ context.Context, app models.SourceApp) (*models.OAuthProvider, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, p := range m.oauthProviders {
		if p.App == app && p.IsGlobal {
			cp := *p
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

// ── Ingestion Job Store ──────────────────────────────────────

func (m *MemoryStore) CreateJobIfAbsent(_ context.Context, job *models.IngestionJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, j := range m.jobs {
		if j.UserID == job.UserID && j.ConnectorID == job.ConnectorID &&
			(j.Status == models.JobPending || j.Status == models.JobRunning) {
			return ErrJobAlreadyActive
		}
	}

	now := time.Now().UTC()
	job.CreatedAt = now
	job.UpdatedAt = now
	if job.Status == "" {
		job.Status = models.JobPending
	}
	cp := *job
	m.jobs[job.ID] = &cp
	m.requestSave()
	return nil
}

func (m *MemoryStore) GetJob(_ context.Context, id string) (*models.IngestionJob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	j, ok := m.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (m *MemoryStore) UpdateJobMetadata(_ context.Context, id string, metadata models.JobMetadata) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[id]
	if !ok {
		return ErrNotFound
	}
	metadata.IngestionState.LastUpdated = time.Now().UTC()
	j.Metadata = metadata
	j.UpdatedAt = time.Now().UTC()
	m.requestSave()
	return nil
}

func (m *MemoryStore) UpdateJobStatus(_ context.Context, id string, status models.JobStatus, lastError string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[id]
	if !ok {
		return ErrNotFound
	}
	j.Status = status
	if lastError != "" {
		j.Metadata.IngestionState.LastError = lastError
	}
	j.UpdatedAt = time.Now().UTC()
	m.requestSave()
	return nil
}

func (m *MemoryStore) ListActiveJobs(_ context.Context, workspaceID string) ([]models.IngestionJob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.IngestionJob
	for _, j := range m.jobs {
		if j.WorkspaceID == workspaceID && (j.Status == models.JobPending || j.Status == models.JobRunning) {
			out = append(out, *j)
		}
	}
	return out, nil
}

func (m *MemoryStore) CancelJobsForConnector(_ context.Context, connectorID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	for _, j := range m.jobs {
		if j.ConnectorID == connectorID && (j.Status == models.JobPending || j.Status == models.JobRunning) {
			j.Status = models.JobCancelled
			j.UpdatedAt = now
		}
	}
	m.requestSave()
	return nil
}

func (m *MemoryStore) ListSchedules(_ context.Context) ([]models.IngestionSchedule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.IngestionSchedule, 0, len(m.schedules))
	for _, s := range m.schedules {
		out = append(out, *s)
	}
	return out, nil
}

func (m *MemoryStore) UpsertSchedule(_ context.Context, schedule *models.IngestionSchedule) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *schedule
	m.schedules[schedule.ConnectorID] = &cp
	m.requestSave()
	return nil
}

// ── Tool Store ───────────────────────────────────────────────

func (m *MemoryStore) SyncConnectorTools(_ context.Context, workspaceID, connectorID string, toolList []models.Tool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for key, t := range m.tools {
		if t.WorkspaceID == workspaceID && t.ConnectorID == connectorID {
			delete(m.tools, key)
		}
	}
	now := time.Now().UTC()
	for i := range toolList {
		t := toolList[i]
		t.WorkspaceID = workspaceID
		t.ConnectorID = connectorID
		t.CreatedAt, t.UpdatedAt = now, now
		m.tools[t.Key()] = &t
	}
	m.requestSave()
	return nil
}

func (m *MemoryStore) ListConnectorTools(_ context.Context, workspaceID, connectorID string) ([]models.Tool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.Tool
	for _, t := range m.tools {
		if t.WorkspaceID == workspaceID && t.ConnectorID == connectorID {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (m *MemoryStore) ListEnabledTools(_ context.Context, workspaceID string) ([]models.Tool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.Tool
	for _, t := range m.tools {
		if t.WorkspaceID == workspaceID && t.Enabled {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (m *MemoryStore) SetToolEnabled(_ context.Context, workspaceID, connectorID, name string, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := models.Tool{WorkspaceID: workspaceID, ConnectorID: connectorID, Name: name}.Key()
	t, ok := m.tools[key]
	if !ok {
		return ErrNotFound
	}
	t.Enabled = enabled
	t.UpdatedAt = time.Now().UTC()
	m.requestSave()
	return nil
}

func (m *MemoryStore) DeleteConnectorTools(_ context.Context, workspaceID, connectorID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for key, t := range m.tools {
		if t.WorkspaceID == workspaceID && t.ConnectorID == connectorID {
			delete(m.tools, key)
		}
	}
	m.requestSave()
	return nil
}

// ── Audit Store ──────────────────────────────────────────────

func (m *MemoryStore) RecordAuditEvent(_ context.Context, event *models.AuditEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	event.CreatedAt = time.Now().UTC()
	cp := *event
	m.auditEvents = append(m.auditEvents, &cp)
	m.requestSave()
	return nil
}

func (m *MemoryStore) ListAuditEvents(_ context.Context, workspaceID string, since time.Time, limit int) ([]models.AuditEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.AuditEvent
	for i := len(m.auditEvents) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		e := m.auditEvents[i]
		if e.WorkspaceID == workspaceID && !e.CreatedAt.Before(since) {
			out = append(out, *e)
		}
	}
	return out, nil
}

// ── Call Room Store ──────────────────────────────────────────

func (m *MemoryStore) RecordActiveCallRoom(_ context.Context, room *models.CallRoom) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if room.StartedAt.IsZero() {
		room.StartedAt = time.Now().UTC()
	}
	cp := *room
	m.callRooms[room.ID] = &cp
	m.requestSave()
	return nil
}

func (m *MemoryStore) ListActiveCallRooms(_ context.Context, workspaceID string) ([]models.CallRoom, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.CallRoom
	for _, r := range m.callRooms {
		if r.WorkspaceID == workspaceID && r.IsActive() {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (m *MemoryStore) MarkCallRoomEnded(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.callRooms[id]
	if !ok {
		return ErrNotFound
	}
	now := time.Now().UTC()
	r.EndedAt = &now
	m.requestSave()
	return nil
}
