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

// ToolSelection is the decoded output of generateToolSelectionOutput.
type ToolSelection struct {
	Tool         string
	Arguments    string // raw JSON object text, left undecoded for the caller's tool invoker
	QueryRewrite string
	Reasoning    string
}

// PastAction records one prior tool invocation in a multi-step session,
// given to the selector so it does not repeat a dead-end action.
type PastAction struct {
	Tool   string
	Result string
}

// GenerateToolSelectionOutput returns at most one tool to invoke next,
// given the user query, the available tool catalog, and past actions.
func (p *Pipeline) GenerateToolSelectionOutput(ctx context.Context, req Request, catalog []models.Tool, past []PastAction) (ToolSelection, error) {
	driver, err := p.driverFor(req.ModelID)
	if err != nil {
		return ToolSelection{}, err
	}

	var sb strings.Builder
	sb.WriteString("Available tools:\n")
	for _, t := range catalog {
		fmt.Fprintf(&sb, "- %s: %s\n", t.Name, t.Description)
	}
	if len(past) > 0 {
		sb.WriteString("Past actions this session:\n")
		for _, a := range past {
			fmt.Fprintf(&sb, "- %s -> %s\n", a.Tool, a.Result)
		}
	}
	req.UserCtx = strings.TrimSpace(req.UserCtx + "\n" + sb.String())

	params := llm.DefaultParams(llm.Params{
		ModelID:      req.ModelID,
		SystemPrompt: p.systemPrompt(req, prompt.VariantToolSelection),
		JSON:         true,
	})
	text, _, err := driver.Converse(ctx, p.messages(req), params)
	if err != nil {
		return ToolSelection{}, err
	}
	result := jsonrepair.Parse(text, "tool")
	return ToolSelection{
		Tool:         jsonrepair.String(result, "tool"),
		Arguments:    result.Get("arguments").Raw,
		QueryRewrite: jsonrepair.String(result, "queryRewrite"),
		Reasoning:    jsonrepair.String(result, "reasoning"),
	}, nil
}

// GenerateAnswerBasedOnToolOutput streams the final answer given a
// tool's raw output and the original query.
func (p *Pipeline) GenerateAnswerBasedOnToolOutput(ctx context.Context, req Request, toolOutput string, out chan<- models.ConverseResponse) error {
	driver, err := p.driverFor(req.ModelID)
	if err != nil {
		emitPipelineError(out, models.ErrNoProviderConfigured, err.Error())
		return err
	}
	req.Bundle = ContextBundle{Kind: ContextGeneric, Items: []ContextItem{{Index: 1, Text: toolOutput}}}
	params := llm.DefaultParams(llm.Params{
		ModelID:      req.ModelID,
		SystemPrompt: p.systemPrompt(req, prompt.VariantWebSearch),
		JSON:         true,
	})
	return driver.ConverseStream(ctx, p.messages(req), params, out)
}

// GenerateSynthesisBasedOnToolOutput collapses multiple gathered
// fragments (from one or more tool calls) into one coherent answer.
func (p *Pipeline) GenerateSynthesisBasedOnToolOutput(ctx context.Context, req Request, fragments []string) (answer string, citations []models.Citation, err error) {
	driver, derr := p.driverFor(req.ModelID)
	if derr != nil {
		return "", nil, derr
	}
	items := make([]ContextItem, 0, len(fragments))
	for i, f := range fragments {
		items = append(items, ContextItem{Index: i + 1, Text: f})
	}
	req.Bundle = ContextBundle{Kind: ContextGeneric, Items: items}
	params := llm.DefaultParams(llm.Params{
		ModelID:      req.ModelID,
		SystemPrompt: p.systemPrompt(req, prompt.VariantSynthesis),
		JSON:         true,
	})
	text, _, err := driver.Converse(ctx, p.messages(req), params)
	if err != nil {
		return "", nil, err
	}
	result := jsonrepair.Parse(text, "answer")
	answer = jsonrepair.String(result, "answer")
	for _, c := range result.Get("citations").Array() {
		citations = append(citations, models.Citation{
			Index: int(c.Get("index").Int()),
			URL:   c.Get("url").String(),
		})
	}
	return answer, citations, nil
}

// GenerateFallback is emitted when search yields no usable context: a
// structured reasoning explanation rather than a bare empty answer.
func (p *Pipeline) GenerateFallback(ctx context.Context, req Request) (string, error) {
	driver, err := p.driverFor(req.ModelID)
	if err != nil {
		return "", err
	}
	req.Bundle = ContextBundle{}
	params := llm.DefaultParams(llm.Params{
		ModelID:      req.ModelID,
		SystemPrompt: p.systemPrompt(req, prompt.VariantBaselineReasoningJSON),
		JSON:         true,
	})
	text, _, err := driver.Converse(ctx, p.messages(req), params)
	if err != nil {
		return "", err
	}
	result := jsonrepair.Parse(text, "answer")
	answer := jsonrepair.String(result, "answer")
	if answer == "" {
		return "I could not find relevant information to answer this question.", nil
	}
	return answer, nil
}
