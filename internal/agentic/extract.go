package agentic

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/antzucaro/matchr"

	"github.com/corewire/assistant-core/internal/llm"
	"github.com/corewire/assistant-core/internal/prompt"
)

// emailNameFuzzyThreshold is the minimum Jaro-Winkler similarity (on
// lowercased names) for a mentioned name to resolve to a context email.
const emailNameFuzzyThreshold = 0.85

// ExtractEmailsFromContext resolves human names mentioned in a query to
// email addresses found in the retrieved context, using fuzzy string
// matching to tolerate nicknames and minor misspellings.
func (p *Pipeline) ExtractEmailsFromContext(query string, bundle ContextBundle) []string {
	names := extractCandidateNames(query)
	if len(names) == 0 {
		return nil
	}

	seen := make(map[string]bool)
	var out []string
	for _, item := range bundle.Items {
		if item.Email == "" {
			continue
		}
		localPart := strings.SplitN(item.Email, "@", 2)[0]
		candidate := strings.ToLower(strings.ReplaceAll(localPart, ".", " "))
		for _, name := range names {
			if matchr.JaroWinkler(strings.ToLower(name), candidate, true) >= emailNameFuzzyThreshold {
				if !seen[item.Email] {
					seen[item.Email] = true
					out = append(out, item.Email)
				}
				break
			}
		}
	}
	return out
}

// extractCandidateNames is a lightweight heuristic: consecutive
// capitalized words are treated as a candidate person name. This is
// deliberately simple — the fuzzy match against actual context emails
// is what absorbs imprecision here, not the extraction step.
var capitalizedWordPattern = regexp.MustCompile(`\b([A-Z][a-z]+(?:\s+[A-Z][a-z]+)?)\b`)

func extractCandidateNames(query string) []string {
	matches := capitalizedWordPattern.FindAllString(query, -1)
	seen := make(map[string]bool)
	var out []string
	for _, m := range matches {
		if !seen[m] {
			seen[m] = true
			out = append(out, m)
		}
	}
	return out
}

var indexesTagPattern = regexp.MustCompile(`(?s)<indexes>(.*?)</indexes>`)
var indexNumberPattern = regexp.MustCompile(`\d+`)

// ExtractBestDocumentIndexes asks the model to rank retrieved passages
// and parses the integer index list out of an <indexes>…</indexes> tag.
func (p *Pipeline) ExtractBestDocumentIndexes(ctx context.Context, req Request) ([]int, error) {
	driver, err := p.driverFor(req.ModelID)
	if err != nil {
		return nil, err
	}
	params := llm.DefaultParams(llm.Params{
		ModelID: req.ModelID,
		SystemPrompt: p.systemPrompt(req, prompt.VariantBaseline) +
			"\nRank the most relevant passages and respond with their indexes wrapped in <indexes></indexes>, comma-separated.",
	})
	text, _, err := driver.Converse(ctx, p.messages(req), params)
	if err != nil {
		return nil, err
	}
	return parseIndexesTag(text), nil
}

func parseIndexesTag(text string) []int {
	m := indexesTagPattern.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	nums := indexNumberPattern.FindAllString(m[1], -1)
	out := make([]int, 0, len(nums))
	for _, n := range nums {
		if v, err := strconv.Atoi(n); err == nil {
			out = append(out, v)
		}
	}
	return out
}
