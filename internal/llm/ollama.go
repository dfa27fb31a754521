package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/corewire/assistant-core/internal/config"
	"github.com/corewire/assistant-core/pkg/models"
)

// ollamaDriver talks to a local/remote Ollama instance's OpenAI-compatible
// endpoint with plain net/http — Ollama's wire API is a thin REST surface
// and no repo in the example pack ships an Ollama SDK, so this follows
// the teacher's own hand-rolled HTTP-driver idiom directly.
type ollamaDriver struct {
	host   string
	client *http.Client
}

func newOllamaDriver(p config.ProvidersConfig) *ollamaDriver {
	return &ollamaDriver{host: p.OllamaHost, client: &http.Client{Timeout: 4 * time.Minute}}
}

func (d *ollamaDriver) Backend() models.BackendTag { return models.BackendOllama }

type ollamaChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatRequest struct {
	Model    string              `json:"model"`
	Messages []ollamaChatMessage `json:"messages"`
	Stream   bool                `json:"stream"`
	Options  map[string]any      `json:"options,omitempty"`
}

type ollamaChatResponse struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Done           bool `json:"done"`
	PromptEvalCount int64 `json:"prompt_eval_count"`
	EvalCount       int64 `json:"eval_count"`
}

func toOllamaMessages(params Params) []ollamaChatMessage {
	var out []ollamaChatMessage
	if params.SystemPrompt != "" {
		out = append(out, ollamaChatMessage{Role: "system", Content: params.SystemPrompt})
	}
	for _, m := range params.Messages {
		out = append(out, ollamaChatMessage{Role: string(m.Role), Content: m.Content})
	}
	return out
}

func (d *ollamaDriver) Converse(ctx context.Context, messages []models.Message, params Params) (string, models.CostSnapshot, error) {
	params = DefaultParams(params)
	params.Messages = messages

	reqBody := ollamaChatRequest{
		Model:    params.ModelID,
		Messages: toOllamaMessages(params),
		Stream:   false,
		Options:  map[string]any{"temperature": params.Temperature, "top_p": params.TopP},
	}
	body, _ := json.Marshal(reqBody)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, d.host+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", models.CostSnapshot{}, fmt.Errorf("ollama: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(httpReq)
	if err != nil {
		return "", models.CostSnapshot{}, fmt.Errorf("ollama: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return "", models.CostSnapshot{}, fmt.Errorf("ollama: status %d: %s", resp.StatusCode, string(b))
	}

	var out ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", models.CostSnapshot{}, fmt.Errorf("ollama: decode: %w", err)
	}

	cost := models.CostSnapshot{
		InputTokens:  out.PromptEvalCount,
		OutputTokens: out.EvalCount,
		USD:          0, // local inference, no per-token billing
	}
	return out.Message.Content, cost, nil
}

func (d *ollamaDriver) ConverseStream(ctx context.Context, messages []models.Message, params Params, outCh chan<- models.ConverseResponse) error {
	params = DefaultParams(params)
	params.Messages = messages

	reqBody := ollamaChatRequest{
		Model:    params.ModelID,
		Messages: toOllamaMessages(params),
		Stream:   true,
		Options:  map[string]any{"temperature": params.Temperature, "top_p": params.TopP},
	}
	body, _ := json.Marshal(reqBody)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, d.host+"/api/chat", bytes.NewReader(body))
	if err != nil {
		emitTerminal(outCh, nil, err, false)
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(httpReq)
	if err != nil {
		emitTerminal(outCh, nil, err, false)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		err := fmt.Errorf("ollama: status %d: %s", resp.StatusCode, string(b))
		emitTerminal(outCh, nil, err, false)
		return err
	}

	dec := json.NewDecoder(resp.Body)
	var inTok, outTok int64
	for {
		select {
		case <-ctx.Done():
			emitTerminal(outCh, nil, nil, true)
			return nil
		default:
		}
		var chunk ollamaChatResponse
		if err := dec.Decode(&chunk); err != nil {
			if err == io.EOF {
				break
			}
			emitTerminal(outCh, nil, err, false)
			return err
		}
		if chunk.Message.Content != "" {
			outCh <- models.ConverseResponse{Text: chunk.Message.Content}
		}
		if chunk.Done {
			inTok, outTok = chunk.PromptEvalCount, chunk.EvalCount
			break
		}
	}
	cost := models.CostSnapshot{InputTokens: inTok, OutputTokens: outTok}
	emitTerminal(outCh, &cost, nil, false)
	return nil
}
