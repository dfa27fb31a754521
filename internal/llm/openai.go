package llm

import (
	"context"
	"fmt"

	"github.com/corewire/assistant-core/internal/config"
	"github.com/corewire/assistant-core/pkg/models"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// openAIDriver implements Driver over the official OpenAI SDK. Together
// and Fireworks reuse this exact driver pointed at their OpenAI-compatible
// base URLs (they are OpenAI-wire-compatible, per the teacher's LiteLLM
// proxy driver pattern).
type openAIDriver struct {
	client openai.Client
	tag    models.BackendTag
}

func newOpenAIDriver(p config.ProvidersConfig) *openAIDriver {
	opts := []option.RequestOption{option.WithAPIKey(p.OpenAIAPIKey)}
	if p.OpenAIBaseURL != "" {
		opts = append(opts, option.WithBaseURL(p.OpenAIBaseURL))
	}
	return &openAIDriver{client: openai.NewClient(opts...), tag: models.BackendOpenAI}
}

func newTogetherDriver(p config.ProvidersConfig) *openAIDriver {
	return &openAIDriver{
		client: openai.NewClient(
			option.WithAPIKey(p.TogetherAPIKey),
			option.WithBaseURL("https://api.together.xyz/v1"),
		),
		tag: models.BackendTogether,
	}
}

func newFireworksDriver(p config.ProvidersConfig) *openAIDriver {
	return &openAIDriver{
		client: openai.NewClient(
			option.WithAPIKey(p.FireworksAPIKey),
			option.WithBaseURL("https://api.fireworks.ai/inference/v1"),
		),
		tag: models.BackendFireworks,
	}
}

func (d *openAIDriver) Backend() models.BackendTag { return d.tag }

func toOpenAIMessages(params Params) []openai.ChatCompletionMessageParamUnion {
	var out []openai.ChatCompletionMessageParamUnion
	if params.SystemPrompt != "" {
		out = append(out, openai.SystemMessage(params.SystemPrompt))
	}
	for _, m := range params.Messages {
		switch m.Role {
		case models.RoleUser:
			out = append(out, openai.UserMessage(m.Content))
		case models.RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		case models.RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		}
	}
	return out
}

func (d *openAIDriver) newRequest(modelID string, params Params) openai.ChatCompletionNewParams {
	req := openai.ChatCompletionNewParams{
		Model:       modelID,
		Messages:    toOpenAIMessages(params),
		TopP:        openai.Float(params.TopP),
		Temperature: openai.Float(params.Temperature),
	}
	if params.JSON {
		req.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &openai.ResponseFormatJSONObjectParam{},
		}
	}
	return req
}

func (d *openAIDriver) Converse(ctx context.Context, messages []models.Message, params Params) (string, models.CostSnapshot, error) {
	params = DefaultParams(params)
	params.Messages = messages
	req := d.newRequest(params.ModelID, params)

	resp, err := d.client.Chat.Completions.New(ctx, req)
	if err != nil {
		return "", models.CostSnapshot{}, fmt.Errorf("%s: %w", d.tag, err)
	}
	if len(resp.Choices) == 0 {
		return "", models.CostSnapshot{}, fmt.Errorf("%s: empty response", d.tag)
	}
	cost := models.CostSnapshot{
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
		USD:          estimateCost(d.tag, params.ModelID, resp.Usage.PromptTokens, resp.Usage.CompletionTokens),
	}
	return resp.Choices[0].Message.Content, cost, nil
}

func (d *openAIDriver) ConverseStream(ctx context.Context, messages []models.Message, params Params, out chan<- models.ConverseResponse) error {
	params = DefaultParams(params)
	params.Messages = messages
	req := d.newRequest(params.ModelID, params)

	stream := d.client.Chat.Completions.NewStreaming(ctx, req)
	defer stream.Close()

	var inputTok, outputTok int64
	for stream.Next() {
		select {
		case <-ctx.Done():
			emitTerminal(out, nil, nil, true)
			return nil
		default:
		}
		chunk := stream.Current()
		if len(chunk.Choices) > 0 {
			delta := chunk.Choices[0].Delta
			if delta.Content != "" {
				out <- models.ConverseResponse{Text: delta.Content}
				outputTok += estimateTokens(delta.Content)
			}
		}
		if chunk.Usage.PromptTokens > 0 {
			inputTok = chunk.Usage.PromptTokens
			outputTok = chunk.Usage.CompletionTokens
		}
	}
	if err := stream.Err(); err != nil {
		emitTerminal(out, nil, err, false)
		return err
	}
	cost := models.CostSnapshot{InputTokens: inputTok, OutputTokens: outputTok, USD: estimateCost(d.tag, params.ModelID, inputTok, outputTok)}
	emitTerminal(out, &cost, nil, false)
	return nil
}
