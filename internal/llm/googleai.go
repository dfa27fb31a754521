package llm

import (
	"context"
	"fmt"

	"github.com/corewire/assistant-core/internal/config"
	"github.com/corewire/assistant-core/pkg/models"
	"google.golang.org/genai"
)

// googleAIDriver wraps the GoogleAI (Gemini Developer API) backend. The
// same client constructor, pointed at the Vertex backend, is reused by
// vertexDriver's Google sub-backend.
type googleAIDriver struct {
	client *genai.Client
	tag    models.BackendTag
}

func newGoogleAIDriver(p config.ProvidersConfig) *googleAIDriver {
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  p.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return &googleAIDriver{tag: models.BackendGoogleAI}
	}
	return &googleAIDriver{client: client, tag: models.BackendGoogleAI}
}

func newVertexGoogleDriver(p config.ProvidersConfig) *googleAIDriver {
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		Project:  p.VertexProjectID,
		Location: p.VertexRegion,
		Backend:  genai.BackendVertexAI,
	})
	if err != nil {
		return &googleAIDriver{tag: models.BackendVertexAI}
	}
	return &googleAIDriver{client: client, tag: models.BackendVertexAI}
}

func (d *googleAIDriver) Backend() models.BackendTag { return d.tag }

func toGenaiContents(params Params) []*genai.Content {
	var out []*genai.Content
	for _, m := range params.Messages {
		role := genai.RoleUser
		if m.Role == models.RoleAssistant {
			role = genai.RoleModel
		}
		out = append(out, genai.NewContentFromText(m.Content, role))
	}
	return out
}

func (d *googleAIDriver) genConfig(params Params) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(params.Temperature)),
		TopP:            genai.Ptr(float32(params.TopP)),
		MaxOutputTokens: int32(params.MaxNewTokens),
	}
	if params.SystemPrompt != "" {
		cfg.SystemInstruction = genai.NewContentFromText(params.SystemPrompt, genai.RoleUser)
	}
	if params.JSON {
		cfg.ResponseMIMEType = "application/json"
	}
	return cfg
}

func (d *googleAIDriver) Converse(ctx context.Context, messages []models.Message, params Params) (string, models.CostSnapshot, error) {
	if d.client == nil {
		return "", models.CostSnapshot{}, fmt.Errorf("%s: client not initialized", d.tag)
	}
	params = DefaultParams(params)
	params.Messages = messages

	resp, err := d.client.Models.GenerateContent(ctx, params.ModelID, toGenaiContents(params), d.genConfig(params))
	if err != nil {
		return "", models.CostSnapshot{}, fmt.Errorf("%s: %w", d.tag, err)
	}
	text := resp.Text()

	var inTok, outTok int64
	if resp.UsageMetadata != nil {
		inTok = int64(resp.UsageMetadata.PromptTokenCount)
		outTok = int64(resp.UsageMetadata.CandidatesTokenCount)
	}
	cost := models.CostSnapshot{InputTokens: inTok, OutputTokens: outTok, USD: estimateCost(d.tag, params.ModelID, inTok, outTok)}
	return text, cost, nil
}

func (d *googleAIDriver) ConverseStream(ctx context.Context, messages []models.Message, params Params, out chan<- models.ConverseResponse) error {
	if d.client == nil {
		err := fmt.Errorf("%s: client not initialized", d.tag)
		emitTerminal(out, nil, err, false)
		return err
	}
	params = DefaultParams(params)
	params.Messages = messages

	var inTok, outTok int64
	for chunk, err := range d.client.Models.GenerateContentStream(ctx, params.ModelID, toGenaiContents(params), d.genConfig(params)) {
		select {
		case <-ctx.Done():
			emitTerminal(out, nil, nil, true)
			return nil
		default:
		}
		if err != nil {
			emitTerminal(out, nil, err, false)
			return err
		}
		text := chunk.Text()
		if text != "" {
			out <- models.ConverseResponse{Text: text}
		}
		if chunk.UsageMetadata != nil {
			inTok = int64(chunk.UsageMetadata.PromptTokenCount)
			outTok = int64(chunk.UsageMetadata.CandidatesTokenCount)
		}
	}
	cost := models.CostSnapshot{InputTokens: inTok, OutputTokens: outTok, USD: estimateCost(d.tag, params.ModelID, inTok, outTok)}
	emitTerminal(out, &cost, nil, false)
	return nil
}
