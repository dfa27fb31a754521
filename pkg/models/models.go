// Package models defines the core data types shared across the
// provider-dispatch, agentic-pipeline, connector, and ingestion
// subsystems.
package models

import "time"

// ── Connector ────────────────────────────────────────────────

type SourceApp string

const (
	AppMail        SourceApp = "mail"
	AppDrive       SourceApp = "drive"
	AppChat        SourceApp = "chat"
	AppSharePoint  SourceApp = "sharepoint"
	AppGenericMCP  SourceApp = "generic-mcp"
	AppSlack       SourceApp = "slack"
	AppGoogle      SourceApp = "google"
	AppMicrosoft   SourceApp = "microsoft"
)

type AuthMode string

const (
	AuthOAuth          AuthMode = "oauth"
	AuthServiceAccount AuthMode = "service_account"
	AuthAPIKey         AuthMode = "api_key"
	AuthCustom         AuthMode = "custom"
)

type ConnectorStatus string

const (
	ConnectorNotConnected ConnectorStatus = "not_connected"
	ConnectorConnecting   ConnectorStatus = "connecting"
	ConnectorConnected    ConnectorStatus = "connected"
	ConnectorFailed       ConnectorStatus = "failed"
	ConnectorPaused       ConnectorStatus = "paused"
)

// Connector represents a tenant's binding to an external data source.
// Exactly one credential shape is populated, consistent with AuthMode.
type Connector struct {
	ExternalID      string          `json:"externalId" db:"external_id"`
	WorkspaceID     string          `json:"workspaceId" db:"workspace_id"`
	OwnerUserID     string          `json:"ownerUserId" db:"owner_user_id"`
	App             SourceApp       `json:"app" db:"app"`
	AuthType        AuthMode        `json:"authType" db:"auth_type"`
	Status          ConnectorStatus `json:"status" db:"status"`
	EncryptedCreds  []byte          `json:"-" db:"encrypted_creds"`
	SubjectEmail    string          `json:"subjectEmail,omitempty" db:"subject_email"`
	WhitelistedTo   []string        `json:"whitelistedEmails,omitempty" db:"-"`
	OAuthProviderID string          `json:"oauthProviderId,omitempty" db:"oauth_provider_id"`
	CreatedAt       time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt       time.Time       `json:"updatedAt" db:"updated_at"`
	DeletedAt       *time.Time      `json:"-" db:"deleted_at"`
}

func (c *Connector) IsDeleted() bool { return c.DeletedAt != nil }

// ── OAuthProvider ────────────────────────────────────────────

// OAuthProvider is a per-connector, or per-workspace when IsGlobal,
// record of client credentials for a given app.
type OAuthProvider struct {
	ID              string    `json:"id" db:"id"`
	WorkspaceID     string    `json:"workspaceId" db:"workspace_id"`
	App             SourceApp `json:"app" db:"app"`
	ClientID        string    `json:"clientId" db:"client_id"`
	EncryptedSecret []byte    `json:"-" db:"encrypted_secret"`
	Scopes          []string  `json:"scopes" db:"-"`
	IsGlobal        bool      `json:"isGlobal" db:"is_global"`
	CreatedAt       time.Time `json:"createdAt" db:"created_at"`
}

// ── IngestionJob ─────────────────────────────────────────────

type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

// WebsocketProgress is the public-progress half of a job's metadata —
// safe to broadcast to subscribers.
type WebsocketProgress struct {
	TotalItems     int64     `json:"totalItems"`
	ProcessedItems int64     `json:"processedItems"`
	CurrentStage   string    `json:"currentStage,omitempty"`
	LastUpdated    time.Time `json:"lastUpdated"`
}

// IngestionState is the private resume-state half of a job's metadata.
// Workers write to it after each atomic unit of work.
type IngestionState struct {
	SourceCursors map[string]string `json:"sourceCursors,omitempty"`
	StartDate     string            `json:"startDate,omitempty"`
	EndDate       string            `json:"endDate,omitempty"`
	Services      []string          `json:"services,omitempty"`
	Channels      []string          `json:"channels,omitempty"`
	IncludeBot    bool              `json:"includeBotMessage,omitempty"`
	CurrentIndex  int64             `json:"currentIndex"`
	LastUpdated   time.Time         `json:"lastUpdated"`
	LastError     string            `json:"lastError,omitempty"`
	RetryCount    int               `json:"retryCount,omitempty"`
}

// JobMetadata is the full persisted metadata document for a job.
type JobMetadata struct {
	WebsocketData  WebsocketProgress `json:"websocketData"`
	IngestionState IngestionState    `json:"ingestionState"`
}

// IngestionJob is a resumable unit of work bound to a (user, connector) pair.
type IngestionJob struct {
	ID          string      `json:"id" db:"id"`
	WorkspaceID string      `json:"workspaceId" db:"workspace_id"`
	UserID      string      `json:"userId" db:"user_id"`
	ConnectorID string      `json:"connectorId" db:"connector_id"`
	Status      JobStatus   `json:"status" db:"status"`
	Metadata    JobMetadata `json:"metadata" db:"metadata"`
	CreatedAt   time.Time   `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time   `json:"updatedAt" db:"updated_at"`
}

// IngestionSchedule is a supplemental recurring-cadence record layered
// on top of the one-shot job model; it never changes one-shot semantics.
type IngestionSchedule struct {
	ID          string        `json:"id" db:"id"`
	ConnectorID string        `json:"connectorId" db:"connector_id"`
	Interval    time.Duration `json:"interval" db:"interval"`
	NextRunAt   time.Time     `json:"nextRunAt" db:"next_run_at"`
	Enabled     bool          `json:"enabled" db:"enabled"`
}

// ── Tool (MCP) ───────────────────────────────────────────────

// Tool is identified by (WorkspaceID, ConnectorID, Name).
type Tool struct {
	WorkspaceID string    `json:"workspaceId" db:"workspace_id"`
	ConnectorID string    `json:"connectorId" db:"connector_id"`
	Name        string    `json:"name" db:"name"`
	Schema      string    `json:"schema" db:"schema"`
	Description string    `json:"description" db:"description"`
	Enabled     bool      `json:"enabled" db:"enabled"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time `json:"updatedAt" db:"updated_at"`
}

func (t Tool) Key() string { return t.WorkspaceID + "/" + t.ConnectorID + "/" + t.Name }

// ── ModelDescriptor ──────────────────────────────────────────

type BackendTag string

const (
	BackendAwsBedrock BackendTag = "AwsBedrock"
	BackendOpenAI     BackendTag = "OpenAI"
	BackendOllama     BackendTag = "Ollama"
	BackendTogether   BackendTag = "Together"
	BackendFireworks  BackendTag = "Fireworks"
	BackendGoogleAI   BackendTag = "GoogleAI"
	BackendVertexAI   BackendTag = "VertexAI"
)

// ModelDescriptor is an immutable record mapping a logical model
// identifier to a backend and its wire name.
type ModelDescriptor struct {
	ModelID      string
	Backend      BackendTag
	WireName     string
	Label        string
	Description  string
	Reasoning    bool
	WebSearch    bool
	DeepResearch bool
}

// ── Message / ConverseResponse ───────────────────────────────

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Citation is a single reference emitted while streaming an answer.
type Citation struct {
	Index int    `json:"index"`
	URL   string `json:"url"`
}

// CostSnapshot is the usage/cost record emitted at most once per call,
// before the terminal event.
type CostSnapshot struct {
	InputTokens  int64   `json:"inputTokens"`
	OutputTokens int64   `json:"outputTokens"`
	USD          float64 `json:"usd"`
}

// ErrorKind enumerates the error taxonomy surfaced to callers (§7).
type ErrorKind string

const (
	ErrNoProviderConfigured ErrorKind = "NoProviderConfigured"
	ErrInvalidModel         ErrorKind = "InvalidModel"
	ErrProviderTransport    ErrorKind = "ProviderTransport"
	ErrProviderRateLimited  ErrorKind = "ProviderRateLimited"
	ErrMalformedOutput      ErrorKind = "MalformedModelOutput"
	ErrAuthInvalid          ErrorKind = "AuthInvalid"
	ErrIngestionRunning     ErrorKind = "IngestionAlreadyRunning"
	ErrConnectorNotFound    ErrorKind = "ConnectorNotFound"
	ErrToolNotFound         ErrorKind = "ToolNotFound"
	ErrUnauthorized         ErrorKind = "UnauthorizedOperation"
	ErrPartialToolUpdate    ErrorKind = "PartialToolUpdate"
	ErrCancelled            ErrorKind = "Cancelled"
)

// StreamError is carried on a terminal ConverseResponse when a stream
// ends in failure.
type StreamError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// ConverseResponse is a single streamed record. Exactly one of the
// optional fields is meaningfully populated per value; Done is true
// only on the terminal record.
type ConverseResponse struct {
	Text      string        `json:"text,omitempty"`
	Reasoning string        `json:"reasoning,omitempty"`
	Citation  *Citation     `json:"citation,omitempty"`
	Cost      *CostSnapshot `json:"cost,omitempty"`
	Done      bool          `json:"done,omitempty"`
	Error     *StreamError  `json:"error,omitempty"`
}

// ── ChatSession ──────────────────────────────────────────────

// ChatSession is a multi-turn conversation carrying an optional
// agentPrompt persona that modifies every system prompt built for it.
type ChatSession struct {
	ID          string    `json:"id" db:"id"`
	WorkspaceID string    `json:"workspaceId" db:"workspace_id"`
	UserID      string    `json:"userId" db:"user_id"`
	Title       string    `json:"title" db:"title"`
	AgentPrompt string    `json:"agentPrompt,omitempty" db:"agent_prompt"`
	ModelID     string    `json:"modelId" db:"model_id"`
	Messages    []Message `json:"messages" db:"-"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time `json:"updatedAt" db:"updated_at"`
}

// ── Call Room ────────────────────────────────────────────────

// CallRoom tracks a real-time call room opened by an external
// collaborator (e.g. a meeting/voice service). The cleanup loop ends
// rooms the external service reports as empty.
type CallRoom struct {
	ID             string     `json:"id" db:"id"`
	WorkspaceID    string     `json:"workspaceId" db:"workspace_id"`
	ExternalRoomID string     `json:"externalRoomId" db:"external_room_id"`
	StartedAt      time.Time  `json:"startedAt" db:"started_at"`
	EndedAt        *time.Time `json:"endedAt,omitempty" db:"ended_at"`
}

// IsActive reports whether the room has not yet been marked ended.
func (c CallRoom) IsActive() bool { return c.EndedAt == nil }

// ── Audit ────────────────────────────────────────────────────

// AuditEvent is appended for every mutating connector/job/tool/admin
// operation.
type AuditEvent struct {
	ID          string         `json:"id" db:"id"`
	WorkspaceID string         `json:"workspaceId" db:"workspace_id"`
	ActorID     string         `json:"actorId" db:"actor_id"`
	Action      string         `json:"action" db:"action"`
	TargetKind  string         `json:"targetKind" db:"target_kind"`
	TargetID    string         `json:"targetId" db:"target_id"`
	Detail      map[string]any `json:"detail,omitempty"`
	CreatedAt   time.Time      `json:"createdAt" db:"created_at"`
}
