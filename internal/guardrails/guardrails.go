// Package guardrails provides the community guardrail evaluation engine:
// a built-in, heuristic pre/post-processing guard around the agentic
// query pipeline. It implements contracts.GuardrailService.
//
// Checks run in a fixed order, independent of workspace configuration:
//   - PII detection: regex-based (emails, phone numbers, SSNs, credit cards)
//   - prompt injection: heuristic pattern matching against known jailbreak phrasing
//
// The output stage only runs PII detection; prompt injection only
// applies to inbound user messages.
package guardrails

import (
	"context"
	"regexp"

	"github.com/corewire/assistant-core/pkg/contracts"
)

// Service is the built-in implementation of contracts.GuardrailService.
// The zero value is ready to use.
type Service struct{}

// New returns a ready-to-use guardrail service.
func New() *Service {
	return &Service{}
}

// EvaluateInput runs input-stage guardrails (PII + prompt injection)
// against the user message.
func (s *Service) EvaluateInput(_ context.Context, _, message string) (*contracts.GuardrailEvaluation, error) {
	if name, ok := matchAny(piiPatterns, message); ok {
		return &contracts.GuardrailEvaluation{Allowed: false, Reason: "PII detected: " + name}, nil
	}
	if matchAnyPattern(injectionPatterns, message) {
		return &contracts.GuardrailEvaluation{Allowed: false, Reason: "potential prompt injection detected"}, nil
	}
	return &contracts.GuardrailEvaluation{Allowed: true}, nil
}

// EvaluateOutput runs output-stage guardrails (PII only) against the
// model response before it reaches the caller.
func (s *Service) EvaluateOutput(_ context.Context, _, response string) (*contracts.GuardrailEvaluation, error) {
	if name, ok := matchAny(piiPatterns, response); ok {
		return &contracts.GuardrailEvaluation{Allowed: false, Reason: "response withheld: contains " + name}, nil
	}
	return &contracts.GuardrailEvaluation{Allowed: true}, nil
}

// ── PII detection ────────────────────────────────────────────

var piiPatterns = map[string]*regexp.Regexp{
	"email":       regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`),
	"phone":       regexp.MustCompile(`(\+?1[-.\s]?)?\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}`),
	"ssn":         regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`),
	"credit_card": regexp.MustCompile(`\b(?:\d{4}[-\s]?){3}\d{4}\b`),
}

func matchAny(patterns map[string]*regexp.Regexp, text string) (string, bool) {
	for name, re := range patterns {
		if re.MatchString(text) {
			return name, true
		}
	}
	return "", false
}

// ── Prompt injection heuristics ──────────────────────────────

var injectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)ignore\s+(all\s+)?(previous|prior|above)\s+(instructions?|prompts?|rules?|directions?)`),
	regexp.MustCompile(`(?i)disregard\s+(all\s+)?(previous|prior|above)\s+(instructions?|prompts?|rules?)`),
	regexp.MustCompile(`(?i)forget\s+(all\s+)?(previous|prior|above|your)\s+(instructions?|prompts?|rules?|context)`),
	regexp.MustCompile(`(?i)you\s+are\s+now\s+(a|an|my)\s+`),
	regexp.MustCompile(`(?i)new\s+instructions?:\s*`),
	regexp.MustCompile(`(?i)system\s*:\s*you\s+are`),
	regexp.MustCompile(`(?i)\bdo\s+anything\s+now\b`),
	regexp.MustCompile(`(?i)\bjailbreak\b`),
	regexp.MustCompile(`(?i)reveal\s+(your|the)\s+(system\s+)?(prompt|instructions?)`),
	regexp.MustCompile(`(?i)repeat\s+(your|the)\s+(system\s+)?(prompt|instructions?)\s+verbatim`),
}

func matchAnyPattern(patterns []*regexp.Regexp, text string) bool {
	for _, re := range patterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}
