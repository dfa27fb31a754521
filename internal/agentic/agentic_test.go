package agentic

import "testing"

func TestVariantFor_FilesContext(t *testing.T) {
	req := Request{Bundle: ContextBundle{Kind: ContextFiles}}
	if got := variantFor(req); got != "files-context-JSON" {
		t.Errorf("variantFor = %q", got)
	}
}

func TestVariantFor_KBItemsWhenSpecificFiles(t *testing.T) {
	req := Request{SpecificFiles: true, Bundle: ContextBundle{Kind: ContextKBItems}}
	if got := variantFor(req); got != "kb-items-JSON" {
		t.Errorf("variantFor = %q", got)
	}
}

func TestVariantFor_ReasoningFallback(t *testing.T) {
	req := Request{Reasoning: true, Bundle: ContextBundle{Kind: ContextGeneric}}
	if got := variantFor(req); got != "baseline-reasoning-JSON" {
		t.Errorf("variantFor = %q", got)
	}
}

func TestVariantFor_PlainJSONDefault(t *testing.T) {
	req := Request{Bundle: ContextBundle{Kind: ContextGeneric}}
	if got := variantFor(req); got != "baseline-JSON" {
		t.Errorf("variantFor = %q", got)
	}
}

func TestSplitReasoningAndAnswer_WithToken(t *testing.T) {
	reasoning, answer := SplitReasoningAndAnswer("Let me think...</thinking>The answer is 42.")
	if reasoning != "Let me think..." {
		t.Errorf("reasoning = %q", reasoning)
	}
	if answer != "The answer is 42." {
		t.Errorf("answer = %q", answer)
	}
}

func TestSplitReasoningAndAnswer_NoToken(t *testing.T) {
	reasoning, answer := SplitReasoningAndAnswer("Just the answer.")
	if reasoning != "" {
		t.Errorf("expected empty reasoning, got %q", reasoning)
	}
	if answer != "Just the answer." {
		t.Errorf("answer = %q", answer)
	}
}

func TestParseIndexesTag(t *testing.T) {
	text := "Here is my ranking: <indexes>3, 1, 7</indexes>"
	got := parseIndexesTag(text)
	want := []int{3, 1, 7}
	if len(got) != len(want) {
		t.Fatalf("len(got) = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestParseIndexesTag_Absent(t *testing.T) {
	if got := parseIndexesTag("no tag here"); got != nil {
		t.Errorf("expected nil, got %v", got)
	}
}

func TestExtractEmailsFromContext_FuzzyMatch(t *testing.T) {
	p := &Pipeline{}
	bundle := ContextBundle{Items: []ContextItem{
		{Index: 1, Text: "thread", Email: "jane.doe@example.com"},
		{Index: 2, Text: "thread", Email: "bob.smith@example.com"},
	}}
	got := p.ExtractEmailsFromContext("What did Jane Doe say about the deadline?", bundle)
	if len(got) != 1 || got[0] != "jane.doe@example.com" {
		t.Errorf("got %v, want [jane.doe@example.com]", got)
	}
}

func TestExtractEmailsFromContext_NoNamesInQuery(t *testing.T) {
	p := &Pipeline{}
	bundle := ContextBundle{Items: []ContextItem{{Index: 1, Email: "jane.doe@example.com"}}}
	got := p.ExtractEmailsFromContext("what is the deadline?", bundle)
	if got != nil {
		t.Errorf("expected nil, got %v", got)
	}
}
