// Package handlers implements the HTTP handlers for the assistant core:
// connector/OAuth lifecycle, ingestion job control, chat sessions and
// the agentic converse pipeline, admin operations, and audit readback.
package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/corewire/assistant-core/internal/admindelete"
	"github.com/corewire/assistant-core/internal/agentic"
	"github.com/corewire/assistant-core/internal/api/middleware"
	"github.com/corewire/assistant-core/internal/connectors"
	"github.com/corewire/assistant-core/internal/ingestion"
	"github.com/corewire/assistant-core/internal/notify"
	"github.com/corewire/assistant-core/internal/store"
	"github.com/corewire/assistant-core/internal/toolregistry"
	"github.com/corewire/assistant-core/pkg/apperr"
	"github.com/corewire/assistant-core/pkg/contracts"
	pkgmw "github.com/corewire/assistant-core/pkg/middleware"
	"github.com/corewire/assistant-core/pkg/models"
)

// Handlers holds all handler dependencies.
type Handlers struct {
	Store       store.Store
	Pipeline    *agentic.Pipeline
	Connectors  *connectors.Service
	Ingestion   *ingestion.Service
	Tools       *toolregistry.Service
	AdminDelete *admindelete.Service
	Notifier    *notify.Service
	Sessions    contracts.SessionStore
	Guardrails  contracts.GuardrailService
}

// New creates a new Handlers instance with all dependencies.
func New(s store.Store, pipeline *agentic.Pipeline, conn *connectors.Service, ing *ingestion.Service, tools *toolregistry.Service, adminDelete *admindelete.Service, notifier *notify.Service, sess contracts.SessionStore, guard contracts.GuardrailService) *Handlers {
	return &Handlers{
		Store:       s,
		Pipeline:    pipeline,
		Connectors:  conn,
		Ingestion:   ing,
		Tools:       tools,
		AdminDelete: adminDelete,
		Notifier:    notifier,
		Sessions:    sess,
		Guardrails:  guard,
	}
}

// userID resolves the acting user: the authenticated identity's
// subject, an X-User-Id header, a userId query parameter, or
// "anonymous" when none is present.
func userID(r *http.Request) string {
	if identity := pkgmw.GetIdentity(r.Context()); identity != nil && identity.Subject != "" {
		return identity.Subject
	}
	if h := r.Header.Get("X-User-Id"); h != "" {
		return h
	}
	if q := r.URL.Query().Get("userId"); q != "" {
		return q
	}
	return "anonymous"
}

// ══════════════════════════════════════════════════════════════
// ── OAuth & Connectors (C6) ──────────────────────────────────
// ══════════════════════════════════════════════════════════════

// StartOAuth begins the authorization-code flow.
// POST /oauth/start?app=google
func (h *Handlers) StartOAuth(w http.ResponseWriter, r *http.Request) {
	app := models.SourceApp(r.URL.Query().Get("app"))
	if app == "" {
		respondError(w, http.StatusBadRequest, "app query parameter is required")
		return
	}
	workspace := middleware.GetWorkspace(r.Context())
	scope := parseIngestionScope(r.URL.Query())

	authURL, err := h.Connectors.StartOAuth(r.Context(), w, workspace, userID(r), app, scope)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	http.Redirect(w, r, authURL, http.StatusFound)
}

// OAuthCallback exchanges the authorization code for a token and
// persists the resulting connector.
// GET /oauth/callback?code=…&state=…
func (h *Handlers) OAuthCallback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")
	if code == "" || state == "" {
		respondError(w, http.StatusBadRequest, "code and state query parameters are required")
		return
	}
	connector, err := h.Connectors.CompleteOAuth(r.Context(), r, code, state)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, connector)
}

// CreateOAuthProvider records client credentials for an app.
// POST /oauth/create-provider
func (h *Handlers) CreateOAuthProvider(w http.ResponseWriter, r *http.Request) {
	var req struct {
		App          models.SourceApp `json:"app"`
		ClientID     string           `json:"clientId"`
		ClientSecret string           `json:"clientSecret"`
		Scopes       []string         `json:"scopes"`
		IsGlobal     bool             `json:"isGlobal"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	workspace := middleware.GetWorkspace(r.Context())
	provider, err := h.Connectors.CreateOAuthProvider(r.Context(), workspace, req.App, req.ClientID, req.ClientSecret, req.Scopes, req.IsGlobal)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, provider)
}

// ListConnectors lists connectors visible to the caller.
// GET /connectors
func (h *Handlers) ListConnectors(w http.ResponseWriter, r *http.Request) {
	workspace := middleware.GetWorkspace(r.Context())
	list, err := h.Connectors.ListConnectors(r.Context(), workspace, userID(r))
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if list == nil {
		list = []models.Connector{}
	}
	respondJSON(w, http.StatusOK, list)
}

// CreateConnector creates a bare connector record (no credentials yet);
// callers complete it via the OAuth flow or AddServiceConnection.
// POST /connectors
func (h *Handlers) CreateConnector(w http.ResponseWriter, r *http.Request) {
	var req struct {
		App      models.SourceApp `json:"app"`
		AuthType models.AuthMode  `json:"authType"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	c := &models.Connector{
		WorkspaceID: middleware.GetWorkspace(r.Context()),
		OwnerUserID: userID(r),
		App:         req.App,
		AuthType:    req.AuthType,
	}
	if err := h.Connectors.CreateConnector(r.Context(), c); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, c)
}

// DeleteConnector cascades to tools/jobs and soft-deletes the record.
// DELETE /connectors/{connectorID}
func (h *Handlers) DeleteConnector(w http.ResponseWriter, r *http.Request) {
	connectorID := chi.URLParam(r, "connectorID")
	workspace := middleware.GetWorkspace(r.Context())
	if err := h.Connectors.DeleteConnector(r.Context(), workspace, connectorID); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ConnectorProgress upgrades to a websocket and streams ingestion
// progress events for the connector.
// GET /connectors/{connectorID}/progress
func (h *Handlers) ConnectorProgress(w http.ResponseWriter, r *http.Request) {
	connectorID := chi.URLParam(r, "connectorID")
	if err := h.Notifier.ServeProgressWebsocket(r.Context(), w, r, connectorID); err != nil {
		log.Warn().Err(err).Str("connector", connectorID).Msg("progress websocket closed with error")
	}
}

// ListConnectorTools lists the synced MCP tool catalog for a connector.
// GET /connectors/{connectorID}/tools
func (h *Handlers) ListConnectorTools(w http.ResponseWriter, r *http.Request) {
	connectorID := chi.URLParam(r, "connectorID")
	workspace := middleware.GetWorkspace(r.Context())
	tools, err := h.Store.ListConnectorTools(r.Context(), workspace, connectorID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if tools == nil {
		tools = []models.Tool{}
	}
	respondJSON(w, http.StatusOK, tools)
}

// ══════════════════════════════════════════════════════════════
// ── Ingestion Jobs (C7) ──────────────────────────────────────
// ══════════════════════════════════════════════════════════════

// ListIngestionJobs lists active (pending/running) jobs for the workspace.
// GET /ingestion/jobs
func (h *Handlers) ListIngestionJobs(w http.ResponseWriter, r *http.Request) {
	workspace := middleware.GetWorkspace(r.Context())
	jobs, err := h.Ingestion.ListActiveJobs(r.Context(), workspace)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if jobs == nil {
		jobs = []models.IngestionJob{}
	}
	respondJSON(w, http.StatusOK, jobs)
}

// CancelIngestionJob requests cancellation of a running/pending job.
// POST /ingestion/jobs/{jobID}/cancel
func (h *Handlers) CancelIngestionJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	if err := h.Ingestion.CancelJob(r.Context(), jobID); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "cancelling"})
}

// ══════════════════════════════════════════════════════════════
// ── Chat Sessions ────────────────────────────────────────────
// ══════════════════════════════════════════════════════════════

// ListSessions lists the caller's chat sessions.
// GET /sessions
func (h *Handlers) ListSessions(w http.ResponseWriter, r *http.Request) {
	workspace := middleware.GetWorkspace(r.Context())
	sessions, err := h.Sessions.ListSessions(r.Context(), workspace, userID(r))
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if sessions == nil {
		sessions = []models.ChatSession{}
	}
	respondJSON(w, http.StatusOK, sessions)
}

// CreateSession starts a new chat session, optionally carrying an
// agentPrompt persona.
// POST /sessions
func (h *Handlers) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title       string `json:"title"`
		AgentPrompt string `json:"agentPrompt"`
		ModelID     string `json:"modelId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	now := time.Now().UTC()
	session := &models.ChatSession{
		ID:          uuid.New().String(),
		WorkspaceID: middleware.GetWorkspace(r.Context()),
		UserID:      userID(r),
		Title:       req.Title,
		AgentPrompt: req.AgentPrompt,
		ModelID:     req.ModelID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := h.Sessions.CreateSession(r.Context(), session); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, session)
}

// GetSession returns a session with its full message history.
// GET /sessions/{sessionID}
func (h *Handlers) GetSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.Sessions.GetSession(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		if err == store.ErrNotFound {
			respondError(w, http.StatusNotFound, "session not found")
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, session)
}

// DeleteSession removes a session.
// DELETE /sessions/{sessionID}
func (h *Handlers) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.Sessions.DeleteSession(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AppendSessionMessage appends one message to the session history
// (used by callers replaying a conversation; the converse endpoints
// append both sides of the exchange themselves).
// POST /sessions/{sessionID}/messages
func (h *Handlers) AppendSessionMessage(w http.ResponseWriter, r *http.Request) {
	var msg models.Message
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	sessionID := chi.URLParam(r, "sessionID")
	if err := h.Sessions.AppendMessage(r.Context(), sessionID, msg); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, msg)
}

// ══════════════════════════════════════════════════════════════
// ── Agentic Converse Pipeline (C3-C5) ────────────────────────
// ══════════════════════════════════════════════════════════════

// chatRequest is the wire shape for both converse endpoints.
type chatRequest struct {
	Query         string                `json:"query"`
	SessionID     string                `json:"sessionId,omitempty"`
	ModelID       string                `json:"modelId"`
	AgentPrompt   string                `json:"agentPrompt,omitempty"`
	Reasoning     bool                  `json:"reasoning,omitempty"`
	SpecificFiles bool                  `json:"specificFiles,omitempty"`
	Context       []agentic.ContextItem `json:"context,omitempty"`
	ContextKind   agentic.ContextKind   `json:"contextKind,omitempty"`
}

func (req chatRequest) toPipelineRequest() agentic.Request {
	kind := req.ContextKind
	if kind == "" {
		kind = agentic.ContextGeneric
	}
	return agentic.Request{
		Query:         req.Query,
		ModelID:       req.ModelID,
		Bundle:        agentic.ContextBundle{Kind: kind, Items: req.Context},
		AgentPrompt:   req.AgentPrompt,
		Reasoning:     req.Reasoning,
		SpecificFiles: req.SpecificFiles,
		DateString:    time.Now().UTC().Format("2006-01-02"),
	}
}

// Converse runs one synchronous structured query against the
// configured provider and returns the final answer with citations.
// POST /chat/converse
func (h *Handlers) Converse(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if h.Guardrails != nil {
		eval, err := h.Guardrails.EvaluateInput(r.Context(), middleware.GetWorkspace(r.Context()), req.Query)
		if err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if !eval.Allowed {
			respondError(w, http.StatusForbidden, eval.Reason)
			return
		}
	}

	answer, citations, cost, err := h.Pipeline.BaselineRAGJson(r.Context(), req.toPipelineRequest())
	if err != nil {
		respondDomainError(w, err)
		return
	}
	if err := h.appendExchange(r, req, answer); err != nil {
		log.Warn().Err(err).Msg("failed to append converse exchange to session")
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"text":      answer,
		"citations": citations,
		"cost":      cost,
	})
}

// ConverseStream streams a structured query as Server-Sent-Events of
// ConverseResponse records serialized as JSON lines (§6).
// POST /chat/converse/stream
func (h *Handlers) ConverseStream(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	if h.Guardrails != nil {
		eval, err := h.Guardrails.EvaluateInput(r.Context(), middleware.GetWorkspace(r.Context()), req.Query)
		if err != nil || !eval.Allowed {
			reason := "input rejected by guardrails"
			if err != nil {
				reason = err.Error()
			} else if eval.Reason != "" {
				reason = eval.Reason
			}
			respondError(w, http.StatusForbidden, reason)
			return
		}
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	out := make(chan models.ConverseResponse, 8)
	done := make(chan error, 1)
	go func() {
		done <- h.Pipeline.BaselineRAGJsonStream(r.Context(), req.toPipelineRequest(), out)
		close(out)
	}()

	var accumulated string
	for event := range out {
		accumulated += event.Text
		data, _ := json.Marshal(event)
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()
	}
	<-done

	if err := h.appendExchange(r, req, accumulated); err != nil {
		log.Warn().Err(err).Msg("failed to append converse exchange to session")
	}
}

// appendExchange records both sides of a converse call to the
// referenced session, when one is given.
func (h *Handlers) appendExchange(r *http.Request, req chatRequest, answer string) error {
	if req.SessionID == "" {
		return nil
	}
	if err := h.Sessions.AppendMessage(r.Context(), req.SessionID, models.Message{Role: models.RoleUser, Content: req.Query}); err != nil {
		return err
	}
	return h.Sessions.AppendMessage(r.Context(), req.SessionID, models.Message{Role: models.RoleAssistant, Content: answer})
}

// ══════════════════════════════════════════════════════════════
// ── Audit ─────────────────────────────────────────────────────
// ══════════════════════════════════════════════════════════════

// ListAuditEvents lists audit events for the workspace since an
// optional timestamp, newest activity first.
// GET /audit?since=RFC3339&limit=100
func (h *Handlers) ListAuditEvents(w http.ResponseWriter, r *http.Request) {
	workspace := middleware.GetWorkspace(r.Context())
	since := time.Time{}
	if s := r.URL.Query().Get("since"); s != "" {
		parsed, err := time.Parse(time.RFC3339, s)
		if err != nil {
			respondError(w, http.StatusBadRequest, "since must be RFC3339")
			return
		}
		since = parsed
	}
	limit := 100
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			limit = n
		}
	}
	events, err := h.Store.ListAuditEvents(r.Context(), workspace, since, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if events == nil {
		events = []models.AuditEvent{}
	}
	respondJSON(w, http.StatusOK, events)
}

// ══════════════════════════════════════════════════════════════
// ── Admin Operations (C6-C9) ─────────────────────────────────
// ══════════════════════════════════════════════════════════════

// RegisterServiceAccount registers a service-account connector and
// schedules ingestion.
// POST /admin/service-account (multipart)
func (h *Handlers) RegisterServiceAccount(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		respondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	app := models.SourceApp(r.FormValue("app"))
	if app == "" {
		respondError(w, http.StatusBadRequest, "app is required")
		return
	}

	keyBlob, err := readFormFile(r, "serviceKeyBlob")
	if err != nil {
		respondError(w, http.StatusBadRequest, "serviceKeyBlob file is required")
		return
	}

	c := &models.Connector{
		WorkspaceID: middleware.GetWorkspace(r.Context()),
		OwnerUserID: userID(r),
		App:         app,
		AuthType:    models.AuthServiceAccount,
	}
	scope := models.IngestionState{
		StartDate: r.FormValue("startDate"),
		EndDate:   r.FormValue("endDate"),
	}

	err = h.Connectors.AddServiceConnection(
		r.Context(), c, keyBlob,
		r.FormValue("subjectEmail"),
		splitCSV(r.FormValue("whitelistedEmails")),
		r.FormValue("clientId"), r.FormValue("clientSecret"), r.FormValue("tenantId"),
		scope,
	)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, c)
}

// IngestMoreUsers expands the scope of a domain-wide service-account
// connector to additional subject emails, scheduling one ingestion job
// per email.
// POST /admin/ingest-more-users
func (h *Handlers) IngestMoreUsers(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ConnectorID            string   `json:"connectorId"`
		EmailsToIngest         []string `json:"emailsToIngest"`
		StartDate              string   `json:"startDate"`
		EndDate                string   `json:"endDate"`
		InsertDriveAndContacts bool     `json:"insertDriveAndContacts"`
		InsertGmail            bool     `json:"insertGmail"`
		InsertCalendar         bool     `json:"insertCalendar"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ConnectorID == "" || len(req.EmailsToIngest) == 0 {
		respondError(w, http.StatusBadRequest, "connectorId and emailsToIngest are required")
		return
	}

	var services []string
	if req.InsertGmail {
		services = append(services, string(models.AppMail))
	}
	if req.InsertDriveAndContacts {
		services = append(services, string(models.AppDrive), "contacts")
	}
	if req.InsertCalendar {
		services = append(services, "calendar")
	}

	workspace := middleware.GetWorkspace(r.Context())
	jobIDs := make([]string, 0, len(req.EmailsToIngest))
	for _, email := range req.EmailsToIngest {
		scope := models.IngestionState{StartDate: req.StartDate, EndDate: req.EndDate, Services: services}
		job, err := h.Ingestion.CreateJob(r.Context(), workspace, email, req.ConnectorID, scope)
		if err != nil {
			respondDomainError(w, err)
			return
		}
		jobIDs = append(jobIDs, job.ID)
	}
	respondJSON(w, http.StatusCreated, map[string]any{"ingestionIds": jobIDs})
}

// SlackIngestChannels schedules ingestion over a subset of Slack
// channels for a connected workspace.
// POST /admin/slack/ingest-channels
func (h *Handlers) SlackIngestChannels(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ConnectorID      string   `json:"connectorId"`
		ChannelsToIngest []string `json:"channelsToIngest"`
		StartDate        string   `json:"startDate"`
		EndDate          string   `json:"endDate"`
		IncludeBotMsg    bool     `json:"includeBotMessage"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ConnectorID == "" {
		respondError(w, http.StatusBadRequest, "connectorId is required")
		return
	}

	scope := models.IngestionState{
		StartDate:  req.StartDate,
		EndDate:    req.EndDate,
		Channels:   req.ChannelsToIngest,
		IncludeBot: req.IncludeBotMsg,
	}
	job, err := h.Ingestion.CreateJob(r.Context(), middleware.GetWorkspace(r.Context()), userID(r), req.ConnectorID, scope)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{"ingestionId": job.ID})
}

// DeleteUserData coordinates cross-service removal of a user's
// indexed content.
// POST /admin/delete-user-data
func (h *Handlers) DeleteUserData(w http.ResponseWriter, r *http.Request) {
	var req struct {
		EmailToClear string `json:"emailToClear"`
		Options      struct {
			ServicesToClear []models.SourceApp `json:"servicesToClear"`
			DeleteSyncJob   bool               `json:"deleteSyncJob"`
		} `json:"options"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.EmailToClear == "" {
		respondError(w, http.StatusBadRequest, "emailToClear is required")
		return
	}

	result, err := h.AdminDelete.Delete(r.Context(), admindelete.Request{
		WorkspaceID:     middleware.GetWorkspace(r.Context()),
		EmailToClear:    req.EmailToClear,
		ServicesToClear: req.Options.ServicesToClear,
		DeleteSyncJob:   req.Options.DeleteSyncJob,
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// UpdateConnectorTools mutates per-tool enable flags with a
// partial-success shape.
// POST /admin/connector/{connectorID}/tools
func (h *Handlers) UpdateConnectorTools(w http.ResponseWriter, r *http.Request) {
	connectorID := chi.URLParam(r, "connectorID")
	var req struct {
		Tools []struct {
			ToolID  string `json:"toolId"`
			Enabled bool   `json:"enabled"`
		} `json:"tools"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	updates := make([]toolregistry.ToolUpdate, 0, len(req.Tools))
	for _, t := range req.Tools {
		updates = append(updates, toolregistry.ToolUpdate{ConnectorID: connectorID, Name: t.ToolID, Enabled: t.Enabled})
	}

	results, err := h.Tools.UpdateToolsStatus(r.Context(), middleware.GetWorkspace(r.Context()), updates)
	if err != nil {
		respondJSON(w, http.StatusMultiStatus, toolUpdateResponse(results))
		return
	}
	respondJSON(w, http.StatusOK, toolUpdateResponse(results))
}

func toolUpdateResponse(results []toolregistry.ToolUpdateResult) []map[string]any {
	out := make([]map[string]any, 0, len(results))
	for _, r := range results {
		row := map[string]any{"toolId": r.Name, "connectorId": r.ConnectorID}
		if r.Err != nil {
			row["error"] = r.Err.Error()
		} else {
			row["ok"] = true
		}
		out = append(out, row)
	}
	return out
}

// ══════════════════════════════════════════════════════════════
// ── Helpers ──────────────────────────────────────────────────
// ══════════════════════════════════════════════════════════════

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondDomainError maps a *apperr.DomainError to its HTTP status;
// anything else is a 500.
func respondDomainError(w http.ResponseWriter, err error) {
	kind, ok := apperr.KindOf(err)
	if !ok {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	status := http.StatusInternalServerError
	switch kind {
	case models.ErrAuthInvalid, models.ErrUnauthorized:
		status = http.StatusUnauthorized
	case models.ErrInvalidModel, models.ErrNoProviderConfigured:
		status = http.StatusBadRequest
	case models.ErrConnectorNotFound, models.ErrToolNotFound:
		status = http.StatusNotFound
	case models.ErrIngestionRunning:
		status = http.StatusConflict
	case models.ErrProviderRateLimited:
		status = http.StatusTooManyRequests
	case models.ErrPartialToolUpdate:
		status = http.StatusMultiStatus
	}
	respondJSON(w, status, map[string]string{"error": err.Error(), "kind": string(kind)})
}

func parseIngestionScope(q url.Values) models.IngestionState {
	return models.IngestionState{
		StartDate: q.Get("startDate"),
		EndDate:   q.Get("endDate"),
	}
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func readFormFile(r *http.Request, field string) ([]byte, error) {
	file, _, err := r.FormFile(field)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return io.ReadAll(file)
}
