package llm

import "github.com/corewire/assistant-core/pkg/models"

// staticDescriptors is the per-backend table of known model identifiers.
// Dynamic backends (Ollama, Together, Fireworks, GoogleAI, Vertex)
// surface the configured model name directly when no static descriptor
// applies (§4.1).
var staticDescriptors = map[models.BackendTag][]models.ModelDescriptor{
	models.BackendAwsBedrock: {
		{ModelID: "bedrock-claude-sonnet", Backend: models.BackendAwsBedrock, WireName: "anthropic.claude-3-5-sonnet-20241022-v2:0", Label: "Claude Sonnet (Bedrock)", Reasoning: false},
		{ModelID: "bedrock-claude-haiku", Backend: models.BackendAwsBedrock, WireName: "anthropic.claude-3-5-haiku-20241022-v1:0", Label: "Claude Haiku (Bedrock)"},
		{ModelID: "bedrock-nova-pro", Backend: models.BackendAwsBedrock, WireName: "amazon.nova-pro-v1:0", Label: "Amazon Nova Pro"},
	},
	models.BackendOpenAI: {
		{ModelID: "gpt-4o", Backend: models.BackendOpenAI, WireName: "gpt-4o", Label: "GPT-4o", WebSearch: true},
		{ModelID: "gpt-4o-mini", Backend: models.BackendOpenAI, WireName: "gpt-4o-mini", Label: "GPT-4o mini"},
		{ModelID: "o3", Backend: models.BackendOpenAI, WireName: "o3", Label: "OpenAI o3", Reasoning: true, DeepResearch: true},
	},
}

// ResolveByLabel reverse-maps a human label to a model id, scoped to the
// active backend; falls back to direct equality with dynamic model names.
func (r *Registry) ResolveByLabel(humanLabel string) (string, bool) {
	backend, err := r.ActiveProvider()
	if err != nil {
		return "", false
	}
	for _, d := range staticDescriptors[backend] {
		if d.Label == humanLabel {
			return d.ModelID, true
		}
	}
	if dyn := r.dynamicModelName(backend); dyn != "" && dyn == humanLabel {
		return dyn, true
	}
	return "", false
}

// dynamicModelName returns the single configured model name for
// backends whose model set isn't enumerated statically.
func (r *Registry) dynamicModelName(backend models.BackendTag) string {
	p := r.cfg.Providers
	switch backend {
	case models.BackendOllama:
		return p.OllamaModel
	case models.BackendTogether:
		return p.TogetherModel
	case models.BackendFireworks:
		return p.FireworksModel
	case models.BackendGoogleAI:
		return p.GeminiModel
	case models.BackendVertexAI:
		if p.VertexProvider == "GOOGLE" {
			return p.GeminiModel
		}
		return "claude-sonnet-4@vertex"
	}
	return ""
}
