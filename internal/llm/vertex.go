package llm

import (
	"context"
	"fmt"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/vertex"

	"github.com/corewire/assistant-core/internal/config"
	"github.com/corewire/assistant-core/pkg/models"
)

// vertexDriver fronts two model families behind one backend tag, per
// the spec's "sub-backend" glossary entry: model wire names containing
// "gemini" route to the Google sub-backend, otherwise to the Anthropic
// sub-backend. The top-level Driver methods operate against whichever
// sub-backend was configured as the default (VERTEX_PROVIDER); callers
// that need per-model sub-backend selection go through subBackendFor,
// which the registry uses in ProviderForModel.
type vertexDriver struct {
	google    *googleAIDriver
	anthropic *vertexAnthropicDriver
	def       Driver
}

func newVertexDriver(p config.ProvidersConfig) *vertexDriver {
	google := newVertexGoogleDriver(p)
	anthropicDriver := newVertexAnthropicDriver(p)

	v := &vertexDriver{google: google, anthropic: anthropicDriver}
	if p.VertexProvider == "GOOGLE" {
		v.def = google
	} else {
		v.def = anthropicDriver
	}
	return v
}

func (d *vertexDriver) subBackendFor(wireName string) Driver {
	if isGeminiWire(wireName) {
		return d.google
	}
	return d.anthropic
}

func (d *vertexDriver) Backend() models.BackendTag { return models.BackendVertexAI }

func (d *vertexDriver) Converse(ctx context.Context, messages []models.Message, params Params) (string, models.CostSnapshot, error) {
	return d.def.Converse(ctx, messages, params)
}

func (d *vertexDriver) ConverseStream(ctx context.Context, messages []models.Message, params Params, out chan<- models.ConverseResponse) error {
	return d.def.ConverseStream(ctx, messages, params, out)
}

// vertexAnthropicDriver talks to Claude models hosted on Vertex AI via
// the official Anthropic SDK's Vertex client option.
type vertexAnthropicDriver struct {
	client anthropic.Client
}

func newVertexAnthropicDriver(p config.ProvidersConfig) *vertexAnthropicDriver {
	client := anthropic.NewClient(
		vertex.WithGoogleAuth(context.Background(), p.VertexRegion, p.VertexProjectID),
		option.WithMaxRetries(2),
	)
	return &vertexAnthropicDriver{client: client}
}

func (d *vertexAnthropicDriver) Backend() models.BackendTag { return models.BackendVertexAI }

func toAnthropicMessages(params Params) []anthropic.MessageParam {
	var out []anthropic.MessageParam
	for _, m := range params.Messages {
		switch m.Role {
		case models.RoleAssistant:
			out = append(out, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}
	return out
}

func (d *vertexAnthropicDriver) Converse(ctx context.Context, messages []models.Message, params Params) (string, models.CostSnapshot, error) {
	params = DefaultParams(params)
	params.Messages = messages

	req := anthropic.MessageNewParams{
		Model:     anthropic.Model(params.ModelID),
		MaxTokens: int64(params.MaxNewTokens),
		Messages:  toAnthropicMessages(params),
		TopP:      anthropic.Float(params.TopP),
	}
	if params.SystemPrompt != "" {
		req.System = []anthropic.TextBlockParam{{Text: params.SystemPrompt}}
	}

	resp, err := d.client.Messages.New(ctx, req)
	if err != nil {
		return "", models.CostSnapshot{}, fmt.Errorf("vertex-anthropic: %w", err)
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	cost := models.CostSnapshot{
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
		USD:          estimateCost(models.BackendVertexAI, params.ModelID, resp.Usage.InputTokens, resp.Usage.OutputTokens),
	}
	return text, cost, nil
}

func (d *vertexAnthropicDriver) ConverseStream(ctx context.Context, messages []models.Message, params Params, out chan<- models.ConverseResponse) error {
	params = DefaultParams(params)
	params.Messages = messages

	req := anthropic.MessageNewParams{
		Model:     anthropic.Model(params.ModelID),
		MaxTokens: int64(params.MaxNewTokens),
		Messages:  toAnthropicMessages(params),
		TopP:      anthropic.Float(params.TopP),
	}
	if params.SystemPrompt != "" {
		req.System = []anthropic.TextBlockParam{{Text: params.SystemPrompt}}
	}

	stream := d.client.Messages.NewStreaming(ctx, req)
	defer stream.Close()

	var inTok, outTok int64
	for stream.Next() {
		select {
		case <-ctx.Done():
			emitTerminal(out, nil, nil, true)
			return nil
		default:
		}
		event := stream.Current()
		switch delta := event.AsAny().(type) {
		case anthropic.ContentBlockDeltaEvent:
			if delta.Delta.Text != "" {
				out <- models.ConverseResponse{Text: delta.Delta.Text}
				outTok += estimateTokens(delta.Delta.Text)
			}
		case anthropic.MessageDeltaEvent:
			inTok = delta.Usage.InputTokens
			outTok = delta.Usage.OutputTokens
		}
	}
	if err := stream.Err(); err != nil {
		emitTerminal(out, nil, err, false)
		return err
	}
	cost := models.CostSnapshot{InputTokens: inTok, OutputTokens: outTok, USD: estimateCost(models.BackendVertexAI, params.ModelID, inTok, outTok)}
	emitTerminal(out, &cost, nil, false)
	return nil
}
