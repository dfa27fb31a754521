// Package llm implements the Configuration & Provider Registry (C1) and
// the Model-Agnostic Chat Driver (C2): a uniform converse/converseStream
// contract dispatched across seven disparate backend wire formats.
package llm

import (
	"context"

	"github.com/corewire/assistant-core/pkg/models"
)

// Params configures a single converse/converseStream call.
type Params struct {
	ModelID      string
	MaxNewTokens int
	TopP         float64
	Temperature  float64
	SystemPrompt string
	JSON         bool
	Reasoning    bool
	WebSearch    bool
	AgentPrompt  string
	Messages     []models.Message
}

// DefaultParams fills the documented defaults (§4.2) for any zero fields.
func DefaultParams(p Params) Params {
	if p.MaxNewTokens == 0 {
		p.MaxNewTokens = 5120
	}
	if p.TopP == 0 {
		p.TopP = 0.9
	}
	if p.Temperature == 0 {
		p.Temperature = 0.6
	}
	return p
}

// Driver is implemented once per backend variant. Drivers never inspect
// or transform prompt content beyond what the wire format requires.
type Driver interface {
	Backend() models.BackendTag

	// Converse performs a single synchronous call.
	Converse(ctx context.Context, messages []models.Message, params Params) (text string, cost models.CostSnapshot, err error)

	// ConverseStream writes ConverseResponse values to out in causal
	// order, ending with exactly one terminal (Done==true) value, even
	// on failure or cancellation. The driver must stop upstream reads
	// within one backend chunk of ctx being cancelled.
	ConverseStream(ctx context.Context, messages []models.Message, params Params, out chan<- models.ConverseResponse) error
}

// EmbeddingDriver is an optional capability, checked via type assertion,
// mirroring the teacher's registry's capability-interface pattern.
type EmbeddingDriver interface {
	Driver
	Embed(ctx context.Context, model string, texts []string) ([][]float64, error)
}

// ModelDiscoveryDriver is an optional capability for backends that can
// enumerate their own available models at runtime.
type ModelDiscoveryDriver interface {
	Driver
	DiscoverModels(ctx context.Context) ([]models.ModelDescriptor, error)
}

// emitTerminal writes the (at most one) cost snapshot followed by the
// single terminal ConverseResponse, used by every driver's
// ConverseStream to honor the "always exactly one terminal event,
// cost at most once and only before done" guarantee (§3).
func emitTerminal(out chan<- models.ConverseResponse, cost *models.CostSnapshot, streamErr error, cancelled bool) {
	if cost != nil && streamErr == nil && !cancelled {
		out <- models.ConverseResponse{Cost: cost}
	}
	resp := models.ConverseResponse{Done: true}
	switch {
	case cancelled:
		resp.Error = &models.StreamError{Kind: models.ErrCancelled, Message: "stream cancelled"}
	case streamErr != nil:
		resp.Error = &models.StreamError{Kind: models.ErrProviderTransport, Message: streamErr.Error()}
	}
	out <- resp
}
