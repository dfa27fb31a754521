package llm

import (
	"fmt"
	"strings"
	"sync"

	"github.com/corewire/assistant-core/internal/config"
	"github.com/corewire/assistant-core/pkg/models"
	"github.com/rs/zerolog/log"
)

// NoProviderConfiguredError is returned by any lookup when no backend
// is configured (§4.1 Failure).
type NoProviderConfiguredError struct{}

func (NoProviderConfiguredError) Error() string { return string(models.ErrNoProviderConfigured) }

// InvalidModelError is returned when a model id has no resolvable driver.
type InvalidModelError struct{ ModelID string }

func (e InvalidModelError) Error() string {
	return fmt.Sprintf("%s: %s", models.ErrInvalidModel, e.ModelID)
}

// backendPriority is the deterministic selection order (§4.1, §6).
var backendPriority = []models.BackendTag{
	models.BackendAwsBedrock,
	models.BackendOpenAI,
	models.BackendOllama,
	models.BackendTogether,
	models.BackendFireworks,
	models.BackendGoogleAI,
	models.BackendVertexAI,
}

// Registry is the process-wide provider registry (§9's "explicit
// process-wide Registry value" design note, replacing module-level
// singletons). Initialization is lazy and idempotent: the first caller
// builds backend clients, subsequent callers reuse them.
type Registry struct {
	cfg config.Config

	mu          sync.Mutex
	initialized bool
	active      models.BackendTag
	activeErr   error
	drivers     map[models.BackendTag]Driver
}

// NewRegistry constructs an uninitialized registry over cfg. Clients are
// built on first use, not here.
func NewRegistry(cfg config.Config) *Registry {
	return &Registry{cfg: cfg, drivers: make(map[models.BackendTag]Driver)}
}

func (r *Registry) ensureInit() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.initialized {
		return
	}
	r.initialized = true

	p := r.cfg.Providers
	for _, backend := range backendPriority {
		switch backend {
		case models.BackendAwsBedrock:
			if p.AWSAccessKeyID != "" && p.AWSSecretAccessKey != "" {
				r.drivers[backend] = newBedrockDriver(p)
				r.active = backend
			}
		case models.BackendOpenAI:
			if p.OpenAIAPIKey != "" && r.active == "" {
				r.drivers[backend] = newOpenAIDriver(p)
				r.active = backend
			}
		case models.BackendOllama:
			if p.OllamaModel != "" && r.active == "" {
				r.drivers[backend] = newOllamaDriver(p)
				r.active = backend
			}
		case models.BackendTogether:
			if p.TogetherAPIKey != "" && r.active == "" {
				r.drivers[backend] = newTogetherDriver(p)
				r.active = backend
			}
		case models.BackendFireworks:
			if p.FireworksAPIKey != "" && r.active == "" {
				r.drivers[backend] = newFireworksDriver(p)
				r.active = backend
			}
		case models.BackendGoogleAI:
			if p.GeminiAPIKey != "" && r.active == "" {
				r.drivers[backend] = newGoogleAIDriver(p)
				r.active = backend
			}
		case models.BackendVertexAI:
			if p.VertexProjectID != "" && r.active == "" {
				r.drivers[backend] = newVertexDriver(p)
				r.active = backend
			}
		}
	}

	if r.active == "" {
		r.activeErr = NoProviderConfiguredError{}
		log.Warn().Msg("no LLM backend configured")
		return
	}
	log.Info().Str("backend", string(r.active)).Msg("active LLM provider resolved")
}

// ActiveProvider returns the single active backend for this process, or
// NoProviderConfiguredError.
func (r *Registry) ActiveProvider() (models.BackendTag, error) {
	r.ensureInit()
	if r.activeErr != nil {
		return "", r.activeErr
	}
	return r.active, nil
}

// ProviderForModel resolves a modelId to its driver. For the Vertex
// backend, the descriptor's wire name selects a sub-backend: wire names
// containing "gemini" use the Google sub-backend, otherwise Anthropic.
func (r *Registry) ProviderForModel(modelID string) (Driver, error) {
	backend, err := r.ActiveProvider()
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	driver := r.drivers[backend]
	r.mu.Unlock()
	if driver == nil {
		return nil, InvalidModelError{ModelID: modelID}
	}

	if backend == models.BackendVertexAI {
		wire := modelID
		for _, d := range staticDescriptors[backend] {
			if d.ModelID == modelID {
				wire = d.WireName
				break
			}
		}
		if vd, ok := driver.(*vertexDriver); ok {
			return vd.subBackendFor(wire), nil
		}
	}

	return driver, nil
}

// AvailableModels returns descriptors for the active backend only; for
// dynamic backends the configured model name is surfaced directly.
func (r *Registry) AvailableModels() []models.ModelDescriptor {
	backend, err := r.ActiveProvider()
	if err != nil {
		return nil
	}
	if descs, ok := staticDescriptors[backend]; ok && len(descs) > 0 {
		return descs
	}
	if dyn := r.dynamicModelName(backend); dyn != "" {
		return []models.ModelDescriptor{{ModelID: dyn, Backend: backend, WireName: dyn, Label: dyn}}
	}
	return nil
}

func isGeminiWire(wire string) bool {
	return strings.Contains(strings.ToLower(wire), "gemini")
}
