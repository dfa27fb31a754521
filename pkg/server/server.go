// Package server provides the public entry point for initializing the
// assistant core server.
//
// This package exists in pkg/ (not internal/) so that a hosted deployment
// can import it and compose the full server with its own overrides.
//
// Usage:
//
//	srv, err := server.New(ctx)
//	http.ListenAndServe(":8080", srv.Handler)
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/corewire/assistant-core/internal/admindelete"
	"github.com/corewire/assistant-core/internal/agentic"
	"github.com/corewire/assistant-core/internal/api"
	"github.com/corewire/assistant-core/internal/api/handlers"
	"github.com/corewire/assistant-core/internal/api/middleware"
	aauth "github.com/corewire/assistant-core/internal/auth"
	"github.com/corewire/assistant-core/internal/config"
	"github.com/corewire/assistant-core/internal/connectors"
	"github.com/corewire/assistant-core/internal/cryptutil"
	"github.com/corewire/assistant-core/internal/guardrails"
	"github.com/corewire/assistant-core/internal/ingestion"
	"github.com/corewire/assistant-core/internal/llm"
	"github.com/corewire/assistant-core/internal/notify"
	"github.com/corewire/assistant-core/internal/retention"
	"github.com/corewire/assistant-core/internal/sessions"
	"github.com/corewire/assistant-core/internal/store"
	"github.com/corewire/assistant-core/internal/telemetry"
	"github.com/corewire/assistant-core/internal/toolregistry"
	"github.com/corewire/assistant-core/pkg/contracts"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Config is the public configuration for the assistant core server.
type Config struct {
	Port         int
	Version      string
	OTELEnabled  bool
	OTELEndpoint string
	ServiceName  string
}

// Server holds the initialized assistant core, including every
// component an embedding caller may want to reach into (register a
// custom auth provider, swap the deletion index, etc.) without
// forking this package.
type Server struct {
	// Handler is the HTTP handler with all routes and middleware.
	Handler http.Handler

	// Store is the data store (in-memory by default).
	Store store.Store

	// LLMRegistry resolves a modelId to a configured provider driver.
	LLMRegistry *llm.Registry

	// Pipeline is the agentic query pipeline (C3-C5).
	Pipeline *agentic.Pipeline

	// Connectors manages connector lifecycle and OAuth flows (C6).
	Connectors *connectors.Service

	// Ingestion runs ingestion jobs and the recurring schedule runner (C7).
	Ingestion *ingestion.Service

	// Tools syncs and invokes MCP connector tools (C8).
	Tools *toolregistry.Service

	// AdminDelete coordinates cross-service user data deletion (C9).
	AdminDelete *admindelete.Service

	// Notifier publishes ingestion progress to websocket subscribers.
	Notifier *notify.Service

	// Guardrails evaluates pipeline input/output. The handlers receive
	// this service at construction; replacing the field afterwards does
	// not change the service the handlers use.
	Guardrails contracts.GuardrailService

	// SessionStore manages multi-turn chat sessions.
	SessionStore contracts.SessionStore

	// AuthChain is the pluggable authentication provider chain. Callers
	// add further providers (OIDC, SAML, mTLS, ...) via RegisterProvider.
	AuthChain *aauth.ProviderChain

	// Handlers is the HTTP handler collection.
	Handlers *handlers.Handlers

	// Janitor runs the call-room cleanup loop (C7).
	Janitor *retention.Janitor

	// Archiver writes audit events and deletion results to local JSONL.
	Archiver *retention.LocalAuditArchiver

	// Config is the server configuration.
	Config *Config

	// Port is the port the server should listen on.
	Port int

	cancelBackground context.CancelFunc
	shutdownFunc     func(context.Context) error
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() *Config {
	cfg := config.Load()
	return &Config{
		Port:         cfg.Port,
		Version:      cfg.Version,
		OTELEnabled:  cfg.Telemetry.Enabled,
		OTELEndpoint: cfg.Telemetry.OTLPEndpoint,
		ServiceName:  cfg.Telemetry.ServiceName,
	}
}

// New initializes every component with an in-memory store and returns
// a ready Server. This is the primary entry point for cmd/server.
func New(ctx context.Context) (*Server, error) {
	return NewWithConfig(ctx, LoadConfig())
}

// NewWithConfig initializes the server with an explicit public configuration.
func NewWithConfig(ctx context.Context, pubCfg *Config) (*Server, error) {
	cfg := config.Load()
	if pubCfg.Port > 0 {
		cfg.Port = pubCfg.Port
	}

	shutdown, err := telemetry.Init(cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	dataStore := store.NewMemoryStore()
	log.Info().Msg("in-memory store initialized")

	return buildServer(ctx, cfg, pubCfg, dataStore, shutdown)
}

// NewWithStore initializes the server with an externally-provided store
// (e.g. a PostgreSQL-backed implementation). The caller is responsible
// for running migrations and closing the store.
func NewWithStore(ctx context.Context, dataStore store.Store) (*Server, error) {
	return NewWithStoreAndConfig(ctx, dataStore, LoadConfig())
}

// NewWithStoreAndConfig initializes the server with an external store and explicit config.
func NewWithStoreAndConfig(ctx context.Context, dataStore store.Store, pubCfg *Config) (*Server, error) {
	cfg := config.Load()
	if pubCfg.Port > 0 {
		cfg.Port = pubCfg.Port
	}

	shutdown, err := telemetry.Init(cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	log.Info().Msg("external store provided")

	return buildServer(ctx, cfg, pubCfg, dataStore, shutdown)
}

// buildServer is the shared constructor that wires every subsystem.
func buildServer(ctx context.Context, cfg *config.Config, pubCfg *Config, dataStore store.Store, shutdown func(context.Context) error) (*Server, error) {
	// ── Provider dispatch + agentic pipeline (C1-C5) ────────
	registry := llm.NewRegistry(*cfg)
	pipeline := agentic.New(registry)
	log.Info().Msg("model registry initialized")

	// ── Credential encryption ───────────────────────────────
	box, err := cryptutil.NewBox(cfg.Crypto.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("init credential box (set ENCRYPTION_KEY to a base64-encoded 32-byte key): %w", err)
	}

	// ── Sessions, guardrails, progress notifier ─────────────
	sessStore := sessions.NewMemorySessionStore()
	guard := guardrails.New()
	notifier := notify.NewService()

	// ── Ingestion + connectors (C6-C7) ──────────────────────
	// The ingestion service is wired as the connectors package's
	// scheduler seam, closing the loop: a connector gaining
	// credentials schedules its own first sync.
	var redisClient *redis.Client
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		redisClient = redis.NewClient(opts)
		log.Info().Msg("distributed ingestion lock backed by redis")
	}

	ingestSvc := ingestion.New(dataStore, contracts.NoopIngestionSource{}, contracts.NoopContentSink{}, notifier, redisClient)
	connSvc := connectors.New(dataStore, box, ingestSvc, cfg.OAuth.RedirectBaseURL, cfg.OAuth.SlackScopes)
	scheduleRunner := ingestion.NewScheduleRunner(ingestSvc, ingestion.DefaultScheduleInterval)
	log.Info().Msg("connector and ingestion services initialized")

	// ── Tool registry (C8) ───────────────────────────────────
	tools := toolregistry.New(dataStore, box)

	// ── Retention: call-room cleanup + local archive (C7, C9) ─
	janitor := retention.NewJanitor(dataStore, contracts.NoopCallRoomProvider{}, "default", retention.DefaultCleanupInterval)
	archiver := retention.NewLocalAuditArchiver("", true)

	// ── Admin data deletion (C9) ─────────────────────────────
	adminDelete := admindelete.New(dataStore, contracts.NoopDeletionIndex{}, archiver)

	// ── Pluggable auth chain ──────────────────────────────────
	// A hosted deployment adds further providers (OIDC, SAML, mTLS,
	// ...) by calling AuthChain.RegisterProvider() on the returned Server.
	authChain := aauth.NewProviderChain()
	apiKeyProvider := middleware.NewAPIKeyAuth()
	if apiKeyProvider.Enabled() {
		authChain.RegisterProvider(apiKeyProvider)
	}
	svcAcctProvider := aauth.NewServiceAccountProvider()
	if svcAcctProvider.Enabled() {
		authChain.RegisterProvider(svcAcctProvider)
	}

	h := handlers.New(dataStore, pipeline, connSvc, ingestSvc, tools, adminDelete, notifier, sessStore, guard)
	router := api.NewRouter(cfg, h, authChain)

	bgCtx, bgCancel := context.WithCancel(context.Background())
	go janitor.Start(bgCtx)
	go scheduleRunner.Start(bgCtx)

	return &Server{
		Handler:          router,
		Store:            dataStore,
		LLMRegistry:      registry,
		Pipeline:         pipeline,
		Connectors:       connSvc,
		Ingestion:        ingestSvc,
		Tools:            tools,
		AdminDelete:      adminDelete,
		Notifier:         notifier,
		Guardrails:       guard,
		SessionStore:     sessStore,
		AuthChain:        authChain,
		Handlers:         h,
		Janitor:          janitor,
		Archiver:         archiver,
		Config:           pubCfg,
		Port:             cfg.Port,
		cancelBackground: bgCancel,
		shutdownFunc:     shutdown,
	}, nil
}

// Shutdown stops all background goroutines (cleanup loop, schedule
// runner) and flushes telemetry. Should be called on graceful shutdown.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.cancelBackground != nil {
		s.cancelBackground()
	}
	if s.shutdownFunc != nil {
		return s.shutdownFunc(ctx)
	}
	return nil
}
