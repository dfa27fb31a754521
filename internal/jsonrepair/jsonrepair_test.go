package jsonrepair_test

import (
	"testing"

	"github.com/corewire/assistant-core/internal/jsonrepair"
)

func TestParse_PlainValidJSON(t *testing.T) {
	result := jsonrepair.Parse(`{"answer": "Paris is the capital of France."}`, "answer")
	if jsonrepair.String(result, "answer") != "Paris is the capital of France." {
		t.Errorf("answer = %q", jsonrepair.String(result, "answer"))
	}
}

func TestParse_FencedCodeBlock(t *testing.T) {
	raw := "```json\n{\"answer\": \"42\"}\n```"
	result := jsonrepair.Parse(raw, "answer")
	if jsonrepair.String(result, "answer") != "42" {
		t.Errorf("answer = %q", jsonrepair.String(result, "answer"))
	}
}

func TestParse_MissingLeadingBrace(t *testing.T) {
	raw := `"answer": "incomplete but recoverable"}`
	result := jsonrepair.Parse(raw, "answer")
	if jsonrepair.String(result, "answer") != "incomplete but recoverable" {
		t.Errorf("answer = %q", jsonrepair.String(result, "answer"))
	}
}

func TestParse_LeadingAndTrailingNoise(t *testing.T) {
	raw := "Sure, here is the result: {\"answer\": \"noise-stripped\"} Hope that helps!"
	result := jsonrepair.Parse(raw, "answer")
	if jsonrepair.String(result, "answer") != "noise-stripped" {
		t.Errorf("answer = %q", jsonrepair.String(result, "answer"))
	}
}

func TestParse_AnswerNullSentinel(t *testing.T) {
	raw := `"answer null"`
	result := jsonrepair.Parse(raw, "answer")
	if result.Get("answer").Type.String() != "Null" {
		t.Errorf("expected answer to be null, got %v", result.Get("answer"))
	}
}

func TestParse_TotalFailureReturnsEmptyObject(t *testing.T) {
	inputs := []string{
		"",
		"   ",
		"not json at all, just prose",
		"{{{{{",
		"}}}}}",
	}
	for _, in := range inputs {
		result := jsonrepair.Parse(in, "answer")
		if !jsonrepair.IsEmpty(result) {
			t.Errorf("Parse(%q) expected empty object, got %v", in, result)
		}
	}
}

func TestParse_NeverPanics(t *testing.T) {
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("Parse panicked: %v", r)
		}
	}()
	inputs := []string{
		"\x00\x01\x02{\"a\":\"b\"}",
		"// a comment\n{\"a\": 1}",
		"```\n{\"a\": \"b\" // trailing comment\n}\n```",
	}
	for _, in := range inputs {
		jsonrepair.Parse(in, "a")
	}
}

func TestParse_TruncatedMidStreamObjectRecovered(t *testing.T) {
	raw := "```json\n{\"title\": \"Q2 review\""
	result := jsonrepair.Parse(raw, "title")
	if jsonrepair.String(result, "title") != "Q2 review" {
		t.Errorf("title = %q", jsonrepair.String(result, "title"))
	}
}

func TestParse_TruncatedNestedObjectRecovered(t *testing.T) {
	raw := `{"answer": "partial", "sources": [{"id": "doc-1"`
	result := jsonrepair.Parse(raw, "answer")
	if jsonrepair.String(result, "answer") != "partial" {
		t.Errorf("answer = %q", jsonrepair.String(result, "answer"))
	}
	if result.Get("sources.0.id").String() != "doc-1" {
		t.Errorf("sources.0.id = %q", result.Get("sources.0.id").String())
	}
}

func TestParse_AnswerNullSentinelUnterminated(t *testing.T) {
	raw := `{"answer null}`
	result := jsonrepair.Parse(raw, "answer")
	if !result.Get("answer").Exists() {
		t.Fatal("expected answer field to be present")
	}
	if result.Get("answer").Type.String() != "Null" {
		t.Errorf("expected answer to be null, got %v", result.Get("answer"))
	}
}

func TestParse_LineCommentsStripped(t *testing.T) {
	raw := "{\n  // leading comment\n  \"answer\": \"value\"\n}"
	result := jsonrepair.Parse(raw, "answer")
	if jsonrepair.String(result, "answer") != "value" {
		t.Errorf("answer = %q", jsonrepair.String(result, "answer"))
	}
}
