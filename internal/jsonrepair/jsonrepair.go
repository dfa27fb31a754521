// Package jsonrepair tolerantly extracts a structured JSON object from
// model-generated text. The parser is total: it never returns an error,
// falling back to an empty object when every repair attempt fails, so
// callers streaming partial output can treat missing fields as
// "not emitted yet" rather than a hard failure.
package jsonrepair

import (
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"
)

const emptyObject = "{}"

var (
	fencePattern       = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")
	lineCommentPattern = regexp.MustCompile(`(?m)^\s*//.*$`)
	controlCharPattern = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F]`)
)

// Parse runs the repair pipeline against raw model text and returns the
// best-effort decoded object as a gjson.Result (Type==JSON). key, when
// non-empty, names
// the field the ad-hoc "<key> null" sentinel fixup rewrites to. As a last
// resort before giving up, Parse balances any unclosed `{`/`[` (and closes
// a dangling string) so a mid-stream truncated object still decodes.
func Parse(raw string, key string) gjson.Result {
	text := strings.TrimSpace(raw)
	text = stripFence(text)
	text = ensureLeadingBrace(text, key)
	text = sliceBraces(text)

	if result, ok := tryParse(text); ok {
		return result
	}

	reescaped := reescapeStrings(text)
	if result, ok := tryParse(reescaped); ok {
		return result
	}

	fixedUp := applyAnswerNullFixup(reescaped, key)
	if result, ok := tryParse(fixedUp); ok {
		return result
	}

	// Comments are stripped before re-escaping: pretty.Ugly joins every
	// line, after which a "//" comment no longer starts a line.
	cleaned := reescapeStrings(stripCommentsAndControlChars(applyAnswerNullFixup(text, key)))
	if result, ok := tryParse(cleaned); ok {
		return result
	}

	balanced := balanceBrackets(cleaned)
	if result, ok := tryParse(balanced); ok {
		return result
	}

	return gjson.Parse(emptyObject)
}

func stripFence(text string) string {
	if m := fencePattern.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return text
}

// ensureLeadingBrace prepends "{" when the text plainly contains the
// named key marker ("key":) but is missing its opening brace — a common
// truncation artifact in streamed partial output.
func ensureLeadingBrace(text, key string) string {
	if key == "" {
		return text
	}
	marker := `"` + key + `":`
	if strings.Contains(text, marker) && !strings.Contains(text, "{") {
		return "{" + text
	}
	return text
}

// sliceBraces trims everything before the first "{" and, when a matching
// "}" exists after it, everything past the last one. A truncated stream
// that never emitted a closing brace keeps its tail intact so the
// brace-balancing pass has the partial object to work with.
func sliceBraces(text string) string {
	first := strings.Index(text, "{")
	if first == -1 {
		return text
	}
	last := strings.LastIndex(text, "}")
	if last == -1 || last < first {
		return text[first:]
	}
	return text[first : last+1]
}

// balanceBrackets closes a dangling string literal and appends the
// closing `}`/`]` for any `{`/`[` left open, in reverse-open order, so
// a mid-stream truncated object becomes valid JSON. It never touches
// text that is already balanced.
func balanceBrackets(text string) string {
	var stack []byte
	inString := false
	escaped := false
	for i := 0; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			stack = append(stack, c)
		case '}', ']':
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		}
	}

	if !inString && len(stack) == 0 {
		return text
	}

	var b strings.Builder
	b.WriteString(text)
	if inString {
		b.WriteByte('"')
	}
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i] == '{' {
			b.WriteByte('}')
		} else {
			b.WriteByte(']')
		}
	}
	return b.String()
}

func tryParse(text string) (gjson.Result, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return gjson.Result{}, false
	}
	if !gjson.Valid(text) {
		return gjson.Result{}, false
	}
	result := gjson.Parse(text)
	if !result.IsObject() {
		return gjson.Result{}, false
	}
	return result, true
}

// reescapeStrings normalizes the text via pretty.Ugly (which removes
// whitespace outside strings) and then escapes every remaining raw
// newline and tab, i.e. those a model emitted verbatim inside a JSON
// string literal. Unescaped quote characters inside string literals are
// left as they are.
func reescapeStrings(text string) string {
	ugly := string(pretty.Ugly([]byte(text)))
	ugly = strings.ReplaceAll(ugly, "\n", "\\n")
	ugly = strings.ReplaceAll(ugly, "\t", "\\t")
	return ugly
}

// applyAnswerNullFixup rewrites the sentinel "<key> null" (a model quirk
// where a null value is emitted as a bare, often unterminated, quoted
// phrase instead of a JSON null) to {<key>: null}. The closing quote is
// optional since a truncated stream can cut off right after "null". When
// the sentinel is the entire payload the result is wrapped fresh; when
// it's embedded in a larger (possibly still-truncated) object, the
// phrase is rewritten in place so the surrounding structure survives.
func applyAnswerNullFixup(text, key string) string {
	if key == "" {
		return text
	}
	pattern := regexp.MustCompile(`"` + regexp.QuoteMeta(key) + ` null"?`)
	loc := pattern.FindStringIndex(text)
	if loc == nil {
		return text
	}
	before := strings.TrimSpace(text[:loc[0]])
	after := strings.TrimSpace(text[loc[1]:])
	if before == "" && after == "" {
		if fixed, err := sjson.SetRaw(emptyObject, key, "null"); err == nil {
			return fixed
		}
		return text
	}
	return text[:loc[0]] + `"` + key + `": null` + text[loc[1]:]
}

func stripCommentsAndControlChars(text string) string {
	text = fencePattern.ReplaceAllString(text, "$1")
	text = lineCommentPattern.ReplaceAllString(text, "")
	text = controlCharPattern.ReplaceAllString(text, "")
	return sliceBraces(strings.TrimSpace(text))
}

// String returns the named string field, or "" if absent — "not emitted
// yet" during streaming is indistinguishable from "absent" by design.
func String(result gjson.Result, path string) string {
	return result.Get(path).String()
}

// IsEmpty reports whether the parsed result carries no fields at all,
// i.e. every repair attempt failed.
func IsEmpty(result gjson.Result) bool {
	return !result.Exists() || len(result.Map()) == 0
}
