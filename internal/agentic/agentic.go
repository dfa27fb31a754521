// Package agentic orchestrates the higher-level query pipeline over the
// chat driver (internal/llm), prompt assembly (internal/prompt), and
// structured-output parser (internal/jsonrepair).
package agentic

import (
	"context"
	"fmt"
	"strings"

	"github.com/corewire/assistant-core/internal/jsonrepair"
	"github.com/corewire/assistant-core/internal/llm"
	"github.com/corewire/assistant-core/internal/prompt"
	"github.com/corewire/assistant-core/pkg/models"
)

// ContextKind classifies a retrieved-context bundle, driving prompt
// variant selection in baselineRAG.
type ContextKind string

const (
	ContextFiles   ContextKind = "files"
	ContextKBItems ContextKind = "kb-items"
	ContextEmail   ContextKind = "email"
	ContextMeeting ContextKind = "meeting"
	ContextGeneric ContextKind = "generic"
)

// ContextItem is a single retrievable passage, addressable by Index for
// citation purposes ("Index N" in prompt text maps to "[N]" in output).
type ContextItem struct {
	Index int
	Text  string
	URL   string
	Email string // populated for ContextEmail bundles
}

// ContextBundle is the retrieved-context set passed into a query.
type ContextBundle struct {
	Kind  ContextKind
	Items []ContextItem
}

func (b ContextBundle) render() string {
	var sb strings.Builder
	for _, item := range b.Items {
		fmt.Fprintf(&sb, "Index %d: %s\n", item.Index, item.Text)
	}
	return sb.String()
}

// Request carries everything a pipeline operation needs beyond the raw
// query text.
type Request struct {
	Query         string
	ModelID       string
	UserCtx       string
	Bundle        ContextBundle
	AgentPrompt   string // raw, tolerantly parsed via prompt.ParseAgentPrompt
	Reasoning     bool
	SpecificFiles bool // caller indicates the bundle is a specific-files selection
	DateString    string
}

// Pipeline composes the model registry with prompt/parse helpers. It
// holds no per-request state and is safe for concurrent use.
type Pipeline struct {
	Registry *llm.Registry
}

func New(registry *llm.Registry) *Pipeline {
	return &Pipeline{Registry: registry}
}

func (p *Pipeline) driverFor(modelID string) (llm.Driver, error) {
	return p.Registry.ProviderForModel(modelID)
}

func (p *Pipeline) agentPrompt(raw string) prompt.AgentPrompt {
	return prompt.ParseAgentPrompt(raw)
}

// variantFor implements the baselineRAG selection rule from §4.5: kb-items
// for specific-file requests over KB rows, then the files, email and
// meeting variants by bundle kind, then reasoning, else the plain JSON
// variant.
func variantFor(req Request) prompt.Variant {
	if req.SpecificFiles && req.Bundle.Kind == ContextKBItems {
		return prompt.VariantKBItemsJSON
	}
	if req.Bundle.Kind == ContextFiles {
		return prompt.VariantFilesContextJSON
	}
	if req.Bundle.Kind == ContextEmail {
		return prompt.VariantEmailJSON
	}
	if req.Bundle.Kind == ContextMeeting {
		return prompt.VariantMeetingJSON
	}
	if req.Reasoning {
		return prompt.VariantBaselineReasoningJSON
	}
	return prompt.VariantBaselineJSON
}

func (p *Pipeline) systemPrompt(req Request, variant prompt.Variant) string {
	return prompt.Build(prompt.BuildInput{
		Variant:      variant,
		UserCtx:      req.UserCtx,
		RetrievedCtx: req.Bundle.render(),
		DateString:   req.DateString,
		Agent:        p.agentPrompt(req.AgentPrompt),
	})
}

func (p *Pipeline) messages(req Request) []models.Message {
	return []models.Message{{Role: models.RoleUser, Content: req.Query}}
}

// answerOrSearch makes a single streaming call with the optimized (or
// agent-variant) prompt plus retrieved context, per §4.5.
func (p *Pipeline) AnswerOrSearch(ctx context.Context, req Request, out chan<- models.ConverseResponse) error {
	driver, err := p.driverFor(req.ModelID)
	if err != nil {
		emitPipelineError(out, models.ErrNoProviderConfigured, err.Error())
		return err
	}
	variant := prompt.VariantBaseline
	if !p.agentPrompt(req.AgentPrompt).IsEmpty() {
		variant = prompt.VariantBaselineJSON
	}
	params := llm.DefaultParams(llm.Params{
		ModelID:      req.ModelID,
		SystemPrompt: p.systemPrompt(req, variant),
		Reasoning:    req.Reasoning,
	})
	return driver.ConverseStream(ctx, p.messages(req), params, out)
}

// BaselineRAG is the synchronous plain-text entry point.
func (p *Pipeline) BaselineRAG(ctx context.Context, req Request) (string, models.CostSnapshot, error) {
	driver, err := p.driverFor(req.ModelID)
	if err != nil {
		return "", models.CostSnapshot{}, err
	}
	params := llm.DefaultParams(llm.Params{
		ModelID:      req.ModelID,
		SystemPrompt: p.systemPrompt(req, prompt.VariantBaseline),
		Reasoning:    req.Reasoning,
	})
	return driver.Converse(ctx, p.messages(req), params)
}

// BaselineRAGJson is the synchronous structured entry point; the model
// text is run through the tolerant parser before returning.
func (p *Pipeline) BaselineRAGJson(ctx context.Context, req Request) (answer string, citations []models.Citation, cost models.CostSnapshot, err error) {
	driver, derr := p.driverFor(req.ModelID)
	if derr != nil {
		return "", nil, models.CostSnapshot{}, derr
	}
	variant := variantFor(req)
	params := llm.DefaultParams(llm.Params{
		ModelID:      req.ModelID,
		SystemPrompt: p.systemPrompt(req, variant),
		JSON:         true,
		Reasoning:    req.Reasoning,
	})
	text, cost, err := driver.Converse(ctx, p.messages(req), params)
	if err != nil {
		return "", nil, cost, err
	}
	result := jsonrepair.Parse(text, "answer")
	answer = jsonrepair.String(result, "answer")
	for _, c := range result.Get("citations").Array() {
		citations = append(citations, models.Citation{
			Index: int(c.Get("index").Int()),
			URL:   c.Get("url").String(),
		})
	}
	return answer, citations, cost, nil
}

// BaselineRAGJsonStream is the streaming structured entry point: raw
// text deltas are forwarded as they arrive, and the terminal event's
// accompanying cost/parsed fields are left to the caller to derive from
// the accumulated text via jsonrepair once the stream completes — the
// parser is total, so partial JSON mid-stream never raises.
func (p *Pipeline) BaselineRAGJsonStream(ctx context.Context, req Request, out chan<- models.ConverseResponse) error {
	driver, err := p.driverFor(req.ModelID)
	if err != nil {
		emitPipelineError(out, models.ErrNoProviderConfigured, err.Error())
		return err
	}
	variant := variantFor(req)
	params := llm.DefaultParams(llm.Params{
		ModelID:      req.ModelID,
		SystemPrompt: p.systemPrompt(req, variant),
		JSON:         true,
		Reasoning:    req.Reasoning,
	})
	return driver.ConverseStream(ctx, p.messages(req), params, out)
}

func emitPipelineError(out chan<- models.ConverseResponse, kind models.ErrorKind, msg string) {
	out <- models.ConverseResponse{Done: true, Error: &models.StreamError{Kind: kind, Message: msg}}
}
