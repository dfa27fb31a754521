package agentic

import (
	"context"
	"strings"

	"github.com/corewire/assistant-core/internal/jsonrepair"
	"github.com/corewire/assistant-core/internal/llm"
	"github.com/corewire/assistant-core/internal/prompt"
)

// endOfThinkingToken marks where a model's reasoning preamble ends and
// its answer begins, per §4.5's tie-break policy.
const endOfThinkingToken = "</thinking>"

// SplitReasoningAndAnswer separates text before/after the sentinel
// end-of-thinking token. When the token is absent, all text is treated
// as the answer and reasoning is empty.
func SplitReasoningAndAnswer(text string) (reasoning, answer string) {
	idx := strings.Index(text, endOfThinkingToken)
	if idx == -1 {
		return "", text
	}
	return strings.TrimSpace(text[:idx]), strings.TrimSpace(text[idx+len(endOfThinkingToken):])
}

// GenerateTitleUsingQuery produces a short conversation title. Parse
// failures default to "Untitled" rather than erroring.
func (p *Pipeline) GenerateTitleUsingQuery(ctx context.Context, req Request) (string, error) {
	driver, err := p.driverFor(req.ModelID)
	if err != nil {
		return "Untitled", nil
	}
	params := llm.DefaultParams(llm.Params{
		ModelID:      req.ModelID,
		SystemPrompt: p.systemPrompt(req, prompt.VariantTitleGeneration),
		JSON:         true,
	})
	text, _, err := driver.Converse(ctx, p.messages(req), params)
	if err != nil {
		return "Untitled", nil
	}
	result := jsonrepair.Parse(text, "title")
	title := strings.TrimSpace(jsonrepair.String(result, "title"))
	if title == "" {
		return "Untitled", nil
	}
	return title, nil
}

// GenerateFollowUpQuestions returns up to 3 suggested follow-ups.
// Invalid entries (empty after trim) are filtered, not rejected
// wholesale — a partially-valid response still yields a usable list.
func (p *Pipeline) GenerateFollowUpQuestions(ctx context.Context, req Request) ([]string, error) {
	driver, err := p.driverFor(req.ModelID)
	if err != nil {
		return nil, err
	}
	params := llm.DefaultParams(llm.Params{
		ModelID:      req.ModelID,
		SystemPrompt: p.systemPrompt(req, prompt.VariantFollowUp),
		JSON:         true,
	})
	text, _, err := driver.Converse(ctx, p.messages(req), params)
	if err != nil {
		return nil, err
	}
	result := jsonrepair.Parse(text, "questions")
	var out []string
	for _, q := range result.Get("questions").Array() {
		s := strings.TrimSpace(q.String())
		if s != "" {
			out = append(out, s)
		}
	}
	if len(out) > 3 {
		out = out[:3]
	}
	return out, nil
}

// GeneratePromptFromRequirements turns a free-form description of
// desired assistant behavior into a usable agentPrompt body.
func (p *Pipeline) GeneratePromptFromRequirements(ctx context.Context, req Request, requirements string) (string, error) {
	driver, err := p.driverFor(req.ModelID)
	if err != nil {
		return "", err
	}
	req.Query = requirements
	params := llm.DefaultParams(llm.Params{
		ModelID:      req.ModelID,
		SystemPrompt: "Write a concise system prompt for an assistant meeting these requirements. Respond as JSON: {\"prompt\": string}.",
		JSON:         true,
	})
	text, _, err := driver.Converse(ctx, p.messages(req), params)
	if err != nil {
		return "", err
	}
	result := jsonrepair.Parse(text, "prompt")
	return strings.TrimSpace(jsonrepair.String(result, "prompt")), nil
}
