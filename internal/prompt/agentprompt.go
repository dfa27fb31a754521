package prompt

import "encoding/json"

// structuredAgentPrompt mirrors the {name, description, prompt,
// appIntegrations} shape; promptWithSources mirrors {prompt, sources}.
type structuredAgentPrompt struct {
	Name            string   `json:"name"`
	Description     string   `json:"description"`
	Prompt          string   `json:"prompt"`
	AppIntegrations []string `json:"appIntegrations"`
}

type promptWithSources struct {
	Prompt  string   `json:"prompt"`
	Sources []string `json:"sources"`
}

func tryParseStructured(raw string) (AgentPrompt, bool) {
	var s structuredAgentPrompt
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return AgentPrompt{}, false
	}
	if s.Name == "" && s.Description == "" && s.AppIntegrations == nil {
		return AgentPrompt{}, false
	}
	return AgentPrompt{
		Name:            s.Name,
		Description:     s.Description,
		Prompt:          s.Prompt,
		AppIntegrations: s.AppIntegrations,
	}, true
}

func tryParsePromptSources(raw string) (AgentPrompt, bool) {
	var p promptWithSources
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return AgentPrompt{}, false
	}
	if p.Prompt == "" && p.Sources == nil {
		return AgentPrompt{}, false
	}
	return AgentPrompt{Prompt: p.Prompt, Sources: p.Sources}, true
}
