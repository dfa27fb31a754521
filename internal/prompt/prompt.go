// Package prompt builds system prompts deterministically from user
// context, retrieved context, agent persona, and the current date.
// Every function here is pure: same inputs, same output string.
package prompt

import (
	"fmt"
	"regexp"
	"strings"
)

// Variant enumerates the system-prompt variants named in §4.3.
type Variant string

const (
	VariantBaseline               Variant = "baseline"
	VariantBaselineJSON           Variant = "baseline-JSON"
	VariantBaselineReasoningJSON  Variant = "baseline-reasoning-JSON"
	VariantFilesContextJSON       Variant = "files-context-JSON"
	VariantKBItemsJSON            Variant = "kb-items-JSON"
	VariantEmailJSON              Variant = "email-JSON"
	VariantMeetingJSON            Variant = "meeting-JSON"
	VariantTemporalDirectionJSON  Variant = "temporal-direction-JSON"
	VariantQueryRewriteJSON       Variant = "query-rewrite-JSON"
	VariantToolSelection          Variant = "tool-selection"
	VariantSynthesis              Variant = "synthesis"
	VariantWebSearch              Variant = "web-search"
	VariantDeepResearch           Variant = "deep-research"
	VariantFollowUp               Variant = "follow-up"
	VariantTitleGeneration        Variant = "title-generation"
)

// AgentPrompt is the tolerantly-parsed triad described in §4.3: either a
// structured persona, a {prompt, sources} pair, a literal string, or
// empty on parse failure.
type AgentPrompt struct {
	Name            string
	Description     string
	Prompt          string
	AppIntegrations []string
	Sources         []string
}

// IsEmpty reports true iff both Prompt=="" and Sources is empty — the
// definition §4.3 gives for "empty agent prompt".
func (a AgentPrompt) IsEmpty() bool {
	return a.Prompt == "" && len(a.Sources) == 0
}

// ParseAgentPrompt tolerantly parses the raw agentPrompt blob. Parse
// failures never raise — they fall back to an empty AgentPrompt.
func ParseAgentPrompt(raw string) AgentPrompt {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return AgentPrompt{}
	}

	// Structured form: {name, description, prompt, appIntegrations}
	if structured, ok := tryParseStructured(raw); ok {
		return structured
	}
	// {prompt, sources} form
	if withSources, ok := tryParsePromptSources(raw); ok {
		return withSources
	}
	// Plain non-empty string: treated as a literal prompt body, unless
	// it merely failed to parse as JSON while clearly intending to be
	// one (a leading '{' with no valid shape) — the spec does not
	// require detecting that case, so any non-JSON string is literal.
	if !looksLikeJSON(raw) {
		return AgentPrompt{Prompt: raw}
	}
	return AgentPrompt{}
}

func looksLikeJSON(s string) bool {
	return strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}")
}

// indexToCitation rewrites "Index N" occurrences in retrieved context to
// "[N]" before insertion into a prompt, giving the model a stable
// citation token (§4.3).
var indexPattern = regexp.MustCompile(`Index (\d+)`)

func IndexToCitation(text string) string {
	return indexPattern.ReplaceAllString(text, "[$1]")
}

// Build assembles the system prompt for the given variant.
type BuildInput struct {
	Variant       Variant
	UserCtx       string
	RetrievedCtx  string
	DateString    string
	Agent         AgentPrompt
}

func Build(in BuildInput) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Today's date is %s.\n", in.DateString)

	if !in.Agent.IsEmpty() {
		if in.Agent.Name != "" {
			fmt.Fprintf(&b, "You are %s. %s\n", in.Agent.Name, in.Agent.Description)
		}
		if in.Agent.Prompt != "" {
			b.WriteString(in.Agent.Prompt)
			b.WriteString("\n")
		}
	}

	b.WriteString(variantInstruction(in.Variant))
	b.WriteString("\n")

	if in.RetrievedCtx != "" {
		b.WriteString("Retrieved context:\n")
		b.WriteString(IndexToCitation(in.RetrievedCtx))
		b.WriteString("\n")
	}
	if in.UserCtx != "" {
		b.WriteString("User context:\n")
		b.WriteString(in.UserCtx)
		b.WriteString("\n")
	}

	return b.String()
}

func variantInstruction(v Variant) string {
	switch v {
	case VariantBaseline:
		return "Answer the user's question using only the retrieved context, in plain text."
	case VariantBaselineJSON:
		return `Answer as JSON: {"answer": string, "citations": [{"index": number, "url": string}]}.`
	case VariantBaselineReasoningJSON:
		return `Think step by step, then answer as JSON: {"reasoning": string, "answer": string, "citations": [...]}.`
	case VariantFilesContextJSON:
		return `The retrieved context is a set of whole documents. Answer as JSON citing document indexes.`
	case VariantKBItemsJSON:
		return `The retrieved context is a set of knowledge-base rows. Answer as JSON citing row indexes.`
	case VariantEmailJSON:
		return `The retrieved context is email threads. Answer as JSON, citing sender and thread indexes.`
	case VariantMeetingJSON:
		return `The retrieved context is meeting notes/transcripts. Answer as JSON, citing meeting indexes.`
	case VariantTemporalDirectionJSON:
		return `Classify whether the query refers to the past, present, or future. Answer as JSON: {"direction": "past"|"present"|"future"}.`
	case VariantQueryRewriteJSON:
		return `Produce alternative phrasings of the query. Answer as JSON: {"queries": [string, ...]}.`
	case VariantToolSelection:
		return `Select at most one tool to answer the query. Answer as JSON: {"tool": string, "arguments": object, "queryRewrite": string, "reasoning": string}.`
	case VariantSynthesis:
		return `Synthesize the gathered fragments into one coherent answer as JSON: {"answer": string, "citations": [...]}.`
	case VariantWebSearch:
		return `Answer using web search results as context. Cite sources by URL. Answer as JSON.`
	case VariantDeepResearch:
		return `Perform multi-step research using the provided tools before answering. Answer as JSON.`
	case VariantFollowUp:
		return `Suggest up to 3 follow-up questions. Answer as JSON: {"questions": [string, ...]}.`
	case VariantTitleGeneration:
		return `Generate a short title (max 8 words) for this conversation. Answer as JSON: {"title": string}.`
	default:
		return "Answer the user's question using only the retrieved context."
	}
}
