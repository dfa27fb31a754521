package llm

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"

	"github.com/corewire/assistant-core/pkg/models"
)

// fallbackEncoding is the BPE table used to deterministically count
// tokens (§4.2) when a backend's response carries no usage block. Every
// backend (OpenAI, Bedrock, Vertex) gets counted against the same table
// rather than its own tokenizer: cl100k_base is close enough across
// GPT/Claude/Gemini prose to be a stable proxy, and it's the only BPE
// table this module ships. tiktoken-go-loader embeds the rank file via
// go:embed so encoding never reaches out to the network at runtime.
const fallbackEncoding = "cl100k_base"

var (
	tokenizerOnce sync.Once
	tokenizer     *tiktoken.Tiktoken
)

func init() {
	tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
}

func loadTokenizer() *tiktoken.Tiktoken {
	tokenizerOnce.Do(func() {
		tke, err := tiktoken.GetEncoding(fallbackEncoding)
		if err != nil {
			// The rank table is embedded at build time, so this can only
			// fail if the loader itself is misconfigured; fall back to
			// the char-count heuristic rather than panic.
			return
		}
		tokenizer = tke
	})
	return tokenizer
}

// estimateTokens counts text against the embedded cl100k_base BPE
// table, falling back to a 4-chars-per-token heuristic (floored at 1
// token for non-empty text) if the table failed to load.
func estimateTokens(text string) int64 {
	if text == "" {
		return 0
	}
	if tke := loadTokenizer(); tke != nil {
		return int64(len(tke.Encode(text, nil, nil)))
	}
	n := int64(len(text)) / 4
	if n == 0 {
		n = 1
	}
	return n
}

// costPer1K is a table of known per-1000-token USD prices, keyed by
// backend and wire model id. Unknown combinations fall back to a
// conservative generic rate.
var costPer1K = map[models.BackendTag]map[string][2]float64{
	models.BackendOpenAI: {
		"gpt-4o":      {0.0025, 0.01},
		"gpt-4o-mini": {0.00015, 0.0006},
		"o3":          {0.01, 0.04},
	},
	models.BackendAwsBedrock: {
		"anthropic.claude-3-5-sonnet-20241022-v2:0": {0.003, 0.015},
		"anthropic.claude-3-5-haiku-20241022-v1:0":  {0.001, 0.005},
	},
}

const genericCostPer1KInput = 0.001
const genericCostPer1KOutput = 0.002

func estimateCost(backend models.BackendTag, modelID string, inputTokens, outputTokens int64) float64 {
	in, out := genericCostPer1KInput, genericCostPer1KOutput
	if table, ok := costPer1K[backend]; ok {
		if rates, ok := table[modelID]; ok {
			in, out = rates[0], rates[1]
		}
	}
	return float64(inputTokens)/1000*in + float64(outputTokens)/1000*out
}
