package prompt_test

import (
	"strings"
	"testing"

	"github.com/corewire/assistant-core/internal/prompt"
)

func TestParseAgentPrompt_Empty(t *testing.T) {
	got := prompt.ParseAgentPrompt("")
	if !got.IsEmpty() {
		t.Errorf("expected empty AgentPrompt for empty input, got %+v", got)
	}
}

func TestParseAgentPrompt_PlainString(t *testing.T) {
	got := prompt.ParseAgentPrompt("You are a helpful assistant for the sales team.")
	if got.Prompt != "You are a helpful assistant for the sales team." {
		t.Errorf("Prompt = %q, want literal passthrough", got.Prompt)
	}
	if got.IsEmpty() {
		t.Error("expected non-empty AgentPrompt for plain string")
	}
}

func TestParseAgentPrompt_Structured(t *testing.T) {
	raw := `{"name":"Sales Bot","description":"Helps with sales","prompt":"Be concise.","appIntegrations":["slack","mail"]}`
	got := prompt.ParseAgentPrompt(raw)
	if got.Name != "Sales Bot" || got.Description != "Helps with sales" || got.Prompt != "Be concise." {
		t.Errorf("unexpected parse result: %+v", got)
	}
	if len(got.AppIntegrations) != 2 {
		t.Errorf("AppIntegrations = %v, want 2 entries", got.AppIntegrations)
	}
}

func TestParseAgentPrompt_PromptWithSources(t *testing.T) {
	raw := `{"prompt":"Answer from these sources only.","sources":["kb-1","kb-2"]}`
	got := prompt.ParseAgentPrompt(raw)
	if got.Prompt != "Answer from these sources only." {
		t.Errorf("Prompt = %q", got.Prompt)
	}
	if len(got.Sources) != 2 {
		t.Errorf("Sources = %v, want 2 entries", got.Sources)
	}
	if got.IsEmpty() {
		t.Error("expected non-empty AgentPrompt when sources present")
	}
}

func TestParseAgentPrompt_MalformedJSONNeverPanics(t *testing.T) {
	inputs := []string{
		`{"name": "unterminated`,
		`{not even json}`,
		`{}`,
		`   `,
	}
	for _, in := range inputs {
		got := prompt.ParseAgentPrompt(in)
		_ = got // must not panic regardless of shape
	}
}

func TestIndexToCitation(t *testing.T) {
	in := "See Index 3 and Index 12 for details."
	want := "See [3] and [12] for details."
	if got := prompt.IndexToCitation(in); got != want {
		t.Errorf("IndexToCitation(%q) = %q, want %q", in, got, want)
	}
}

func TestBuild_IncludesVariantInstructionAndContext(t *testing.T) {
	out := prompt.Build(prompt.BuildInput{
		Variant:      prompt.VariantBaselineJSON,
		UserCtx:      "User is in the EU timezone.",
		RetrievedCtx: "Doc at Index 1 says the deadline is Friday.",
		DateString:   "2026-07-30",
		Agent:        prompt.AgentPrompt{Prompt: "Be terse."},
	})

	for _, want := range []string{
		"2026-07-30",
		"Be terse.",
		`"answer"`,
		"[1]",
		"User is in the EU timezone.",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Build() output missing %q:\n%s", want, out)
		}
	}
}

func TestBuild_EmptyAgentPromptOmitsPersonaLine(t *testing.T) {
	out := prompt.Build(prompt.BuildInput{
		Variant:    prompt.VariantBaseline,
		DateString: "2026-07-30",
	})
	if strings.Contains(out, "You are ") {
		t.Errorf("expected no persona line for empty agent prompt:\n%s", out)
	}
}
