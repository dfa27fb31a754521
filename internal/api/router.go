package api

import (
	"encoding/json"
	"net/http"
	"os"
	"strings"

	"github.com/corewire/assistant-core/internal/api/handlers"
	"github.com/corewire/assistant-core/internal/api/middleware"
	"github.com/corewire/assistant-core/internal/config"
	"github.com/corewire/assistant-core/pkg/contracts"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter builds the HTTP router: health/version, OAuth connector
// lifecycle, admin operations, chat sessions, and the streaming
// converse endpoint, wrapped in the shared middleware chain.
func NewRouter(cfg *config.Config, h *handlers.Handlers, authChain contracts.AuthProviderChain) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Compress(5))
	r.Use(middleware.Logger)
	r.Use(middleware.TenantExtractor)
	r.Use(middleware.Telemetry)

	// Pluggable auth middleware. The chain walks registered providers
	// (API key, service account, and anything a caller registers on top)
	// and stores the resulting Identity in context.
	if authChain != nil {
		authMW := middleware.NewAuthMiddleware(authChain)
		r.Use(authMW.Handler)
	}

	// CORS — configurable via ASSISTANT_CORS_ORIGINS env var. Wildcard
	// origins force AllowCredentials off, per the Fetch spec.
	corsOrigins := parseCORSOrigins()
	isWildcard := len(corsOrigins) == 1 && corsOrigins[0] == "*"
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Workspace", "X-Request-Id", "X-API-Key", "X-Service-Token"},
		ExposedHeaders:   []string{"X-Request-Id", "X-Trace-Id"},
		AllowCredentials: !isWildcard,
		MaxAge:           300,
	}))

	// Health & info
	r.Get("/health", healthHandler)
	r.Get("/version", versionHandler(cfg))

	// OAuth authorization-code flow (C6). These run before the caller
	// holds any session; the state/verifier cookie pair is the guard.
	r.Route("/oauth", func(r chi.Router) {
		r.Post("/start", h.StartOAuth)
		r.Get("/callback", h.OAuthCallback)
		r.Post("/create-provider", h.CreateOAuthProvider)
	})

	// Connectors (C6)
	r.Route("/connectors", func(r chi.Router) {
		r.Get("/", h.ListConnectors)
		r.Post("/", h.CreateConnector)
		r.Route("/{connectorID}", func(r chi.Router) {
			r.Delete("/", h.DeleteConnector)
			r.Get("/progress", h.ConnectorProgress)
			r.Get("/tools", h.ListConnectorTools)
		})
	})

	// Ingestion jobs (C7)
	r.Route("/ingestion", func(r chi.Router) {
		r.Get("/jobs", h.ListIngestionJobs)
		r.Post("/jobs/{jobID}/cancel", h.CancelIngestionJob)
	})

	// Chat sessions + the agentic converse pipeline (C3-C5)
	r.Route("/sessions", func(r chi.Router) {
		r.Get("/", h.ListSessions)
		r.Post("/", h.CreateSession)
		r.Route("/{sessionID}", func(r chi.Router) {
			r.Get("/", h.GetSession)
			r.Delete("/", h.DeleteSession)
			r.Post("/messages", h.AppendSessionMessage)
		})
	})
	r.Route("/chat", func(r chi.Router) {
		r.Post("/converse", h.Converse)
		r.Post("/converse/stream", h.ConverseStream)
	})

	// Audit log (read-only; events are appended by the services above)
	r.Route("/audit", func(r chi.Router) {
		r.Get("/", h.ListAuditEvents)
	})

	// Admin operations (C6-C9)
	r.Route("/admin", func(r chi.Router) {
		r.Post("/service-account", h.RegisterServiceAccount)
		r.Post("/ingest-more-users", h.IngestMoreUsers)
		r.Post("/slack/ingest-channels", h.SlackIngestChannels)
		r.Post("/delete-user-data", h.DeleteUserData)
		r.Post("/connector/{connectorID}/tools", h.UpdateConnectorTools)
	})

	return r
}

// parseCORSOrigins reads allowed CORS origins from the environment.
// Default: wildcard (open access, no credentials).
//
//	ASSISTANT_CORS_ORIGINS=https://app.example.com,http://localhost:5173
//	ASSISTANT_CORS_ORIGINS=*  (default)
func parseCORSOrigins() []string {
	originsEnv := os.Getenv("ASSISTANT_CORS_ORIGINS")
	if originsEnv == "" {
		return []string{"*"}
	}

	var origins []string
	for _, o := range strings.Split(originsEnv, ",") {
		o = strings.TrimSpace(o)
		if o != "" {
			origins = append(origins, o)
		}
	}
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "healthy",
		"service": "assistant-core",
	})
}

func versionHandler(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{
			"version": cfg.Version,
			"service": "assistant-core",
		})
	}
}
