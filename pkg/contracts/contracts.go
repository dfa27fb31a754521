// Package contracts defines the pluggable-interface boundary between this
// core and alternate implementations of its swap points: the chat driver
// capability set, persistence, chat sessions, guardrails, and
// ingestion-progress notification. A default (community) implementation
// ships for each; callers wire an alternate implementation by satisfying
// the same interface rather than forking the core.
package contracts

import (
	"context"
	"net/http"
	"time"

	"github.com/corewire/assistant-core/internal/llm"
	"github.com/corewire/assistant-core/internal/store"
	"github.com/corewire/assistant-core/pkg/models"
)

// Store is a type alias for the internal Store interface, exposed here
// so alternate persistence backends can be referenced without importing
// internal/ directly.
type Store = store.Store

// ErrNotFound is a type alias for the internal sentinel not-found error.
var ErrNotFound = store.ErrNotFound

// ── Provider Driver ──────────────────────────────────────────

// Driver is a type alias for the chat-driver capability interface (C2).
// Concrete implementations: AWS Bedrock, OpenAI, Ollama, Together,
// Fireworks, GoogleAI, Vertex (internal/llm).
type Driver = llm.Driver

// EmbeddingDriver is a type alias for the optional embedding capability.
type EmbeddingDriver = llm.EmbeddingDriver

// ModelDiscoveryDriver is a type alias for the optional model-discovery
// capability, checked via type assertion against a registered Driver.
type ModelDiscoveryDriver = llm.ModelDiscoveryDriver

// ── Identity / Auth Provider Chain ───────────────────────────

// Identity is the authenticated subject attached to a request context.
type Identity struct {
	Subject     string
	Role        string
	WorkspaceID string
}

// AuthProvider implements one authentication mechanism in the chain.
// Contract: (identity, nil) authenticates and stops the chain;
// (nil, nil) declines and defers to the next provider; (nil, err)
// rejects the request immediately.
type AuthProvider interface {
	Name() string
	Enabled() bool
	Authenticate(ctx context.Context, r *http.Request) (*Identity, error)
}

// AuthProviderChain walks registered AuthProviders in order.
type AuthProviderChain interface {
	RegisterProvider(provider AuthProvider)
	Authenticate(ctx context.Context, r *http.Request) (*Identity, error)
	ListProviders() []string
}

// ── Chat Session Store ───────────────────────────────────────

// SessionStore manages multi-turn chat sessions carrying an optional
// agentPrompt persona (C5).
type SessionStore interface {
	CreateSession(ctx context.Context, session *models.ChatSession) error
	GetSession(ctx context.Context, sessionID string) (*models.ChatSession, error)
	UpdateSession(ctx context.Context, session *models.ChatSession) error
	AppendMessage(ctx context.Context, sessionID string, msg models.Message) error
	ListSessions(ctx context.Context, workspaceID, userID string) ([]models.ChatSession, error)
	DeleteSession(ctx context.Context, sessionID string) error
}

// ── Guardrail Service ────────────────────────────────────────

// GuardrailEvaluation is the outcome of an input or output guardrail pass.
type GuardrailEvaluation struct {
	Allowed bool
	Reason  string
}

// GuardrailService evaluates optional pre/post guards around the
// agentic pipeline. The default implementation always allows.
type GuardrailService interface {
	EvaluateInput(ctx context.Context, workspaceID, message string) (*GuardrailEvaluation, error)
	EvaluateOutput(ctx context.Context, workspaceID, response string) (*GuardrailEvaluation, error)
}

// ── Ingestion Progress Notifier ───────────────────────────────

// IngestionProgressEvent is broadcast over the websocket progress bus
// keyed by connector external id (C7).
type IngestionProgressEvent struct {
	ConnectorID string                   `json:"connectorId"`
	JobID       string                   `json:"jobId"`
	Progress    models.WebsocketProgress `json:"progress"`
	Status      models.JobStatus         `json:"status"`
	Timestamp   time.Time                `json:"timestamp"`
}

// ProgressNotifier publishes ingestion progress to subscribers.
type ProgressNotifier interface {
	Publish(ctx context.Context, event IngestionProgressEvent)
	Subscribe(connectorID string) <-chan IngestionProgressEvent
	Unsubscribe(connectorID string, ch <-chan IngestionProgressEvent)
}

// ── Call Room Provider ────────────────────────────────────────

// ActiveRoom is a snapshot of one external call room's participant
// count, as reported by the external real-time service.
type ActiveRoom struct {
	ExternalRoomID   string
	ParticipantCount int
}

// CallRoomProvider lists currently active rooms in the external
// real-time service the cleanup loop (C7) polls. A room absent from
// ListActiveRooms, or reporting zero participants, is considered ended.
type CallRoomProvider interface {
	ListActiveRooms(ctx context.Context) ([]ActiveRoom, error)
}

// ── Ingestion Source & Content Sink ──────────────────────────

// SourceItem is one unit of content pulled from an external
// connector's data source during an ingestion batch.
type SourceItem struct {
	ID      string
	Content string
	Meta    map[string]string
}

// IngestionBatch is one page of work fetched from an external source,
// carrying the cursor state needed to resume after it.
type IngestionBatch struct {
	Items     []SourceItem
	NextState models.IngestionState
	Done      bool
}

// IngestionSource fetches successive batches from a connector's
// external data source (mail/drive/chat/SharePoint/…). Pulling is in
// scope; the content/search index written to is not (see Non-goals).
type IngestionSource interface {
	FetchBatch(ctx context.Context, connector *models.Connector, state models.IngestionState) (*IngestionBatch, error)
}

// ContentSink writes a fetched batch into the external content/search
// index the system retrieves from at query time (C3).
type ContentSink interface {
	Write(ctx context.Context, workspaceID, connectorID string, items []SourceItem) error
}

// ── Ingestion Scheduler ───────────────────────────────────────

// IngestionScheduler is the narrow seam internal/connectors uses to
// kick off a background ingestion job (C7) after a connector gains
// credentials, without importing internal/ingestion directly.
type IngestionScheduler interface {
	ScheduleIngestion(ctx context.Context, workspaceID, connectorExternalID, userID string, scope models.IngestionState) error
}

// ── Deletion Index ────────────────────────────────────────────

// DeletionIndex removes all content attributable to a user from the
// external search/content index (C9). The index itself is an external
// collaborator (see Non-goals); this is the narrow seam the admin
// data-deletion coordinator calls per affected service.
type DeletionIndex interface {
	DeleteByEmail(ctx context.Context, workspaceID string, app models.SourceApp, email string) error
}

// ── Community defaults ───────────────────────────────────────

// CommunityGuardrailService always allows; it is the default wired when
// no stricter guardrail policy is configured.
type CommunityGuardrailService struct{}

func (CommunityGuardrailService) EvaluateInput(_ context.Context, _, _ string) (*GuardrailEvaluation, error) {
	return &GuardrailEvaluation{Allowed: true}, nil
}

func (CommunityGuardrailService) EvaluateOutput(_ context.Context, _, _ string) (*GuardrailEvaluation, error) {
	return &GuardrailEvaluation{Allowed: true}, nil
}

// NoopCallRoomProvider reports no active rooms; it is the default
// wired when no real-time call service is configured, so the cleanup
// loop simply has nothing to reconcile.
type NoopCallRoomProvider struct{}

func (NoopCallRoomProvider) ListActiveRooms(_ context.Context) ([]ActiveRoom, error) {
	return nil, nil
}

// NoopIngestionScheduler drops schedule requests; it is the default
// wired when the ingestion subsystem is not yet available to a caller
// (e.g. in connectors package tests).
type NoopIngestionScheduler struct{}

func (NoopIngestionScheduler) ScheduleIngestion(_ context.Context, _, _, _ string, _ models.IngestionState) error {
	return nil
}

// NoopIngestionSource reports a batch of zero items and immediate
// completion; it is the default wired when no real connector fetch
// implementation has been registered for an app.
type NoopIngestionSource struct{}

func (NoopIngestionSource) FetchBatch(_ context.Context, _ *models.Connector, _ models.IngestionState) (*IngestionBatch, error) {
	return &IngestionBatch{Done: true}, nil
}

// NoopContentSink discards written batches; it is the default wired
// when no search-index destination is configured.
type NoopContentSink struct{}

func (NoopContentSink) Write(_ context.Context, _, _ string, _ []SourceItem) error { return nil }

// NoopDeletionIndex reports every deletion as a no-op success; it is
// the default wired when no search index is configured to delete from.
type NoopDeletionIndex struct{}

func (NoopDeletionIndex) DeleteByEmail(_ context.Context, _ string, _ models.SourceApp, _ string) error {
	return nil
}
