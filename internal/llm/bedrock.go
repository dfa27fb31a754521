package llm

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	appconfig "github.com/corewire/assistant-core/internal/config"
	"github.com/corewire/assistant-core/pkg/models"
)

// bedrockDriver dispatches to Anthropic-family models hosted on AWS
// Bedrock via the Converse/ConverseStream API, which already matches
// this system's own converse/converseStream contract almost exactly.
type bedrockDriver struct {
	client *bedrockruntime.Client
}

func newBedrockDriver(p appconfig.ProvidersConfig) *bedrockDriver {
	cfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(p.AWSRegion),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			p.AWSAccessKeyID, p.AWSSecretAccessKey, p.AWSSessionToken)),
	)
	if err != nil {
		// Deferred: the first real call will surface a ProviderTransport
		// error rather than failing process boot.
		return &bedrockDriver{client: bedrockruntime.NewFromConfig(aws.Config{Region: p.AWSRegion})}
	}
	return &bedrockDriver{client: bedrockruntime.NewFromConfig(cfg)}
}

func (d *bedrockDriver) Backend() models.BackendTag { return models.BackendAwsBedrock }

func toBedrockMessages(params Params) []types.Message {
	var out []types.Message
	for _, m := range params.Messages {
		var role types.ConversationRole
		switch m.Role {
		case models.RoleAssistant:
			role = types.ConversationRoleAssistant
		default:
			role = types.ConversationRoleUser
		}
		out = append(out, types.Message{
			Role:    role,
			Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: m.Content}},
		})
	}
	return out
}

func (d *bedrockDriver) inferenceConfig(params Params) *types.InferenceConfiguration {
	return &types.InferenceConfiguration{
		MaxTokens:   aws.Int32(int32(params.MaxNewTokens)),
		Temperature: aws.Float32(float32(params.Temperature)),
		TopP:        aws.Float32(float32(params.TopP)),
	}
}

func (d *bedrockDriver) Converse(ctx context.Context, messages []models.Message, params Params) (string, models.CostSnapshot, error) {
	params = DefaultParams(params)
	params.Messages = messages

	input := &bedrockruntime.ConverseInput{
		ModelId:         aws.String(params.ModelID),
		Messages:        toBedrockMessages(params),
		InferenceConfig: d.inferenceConfig(params),
	}
	if params.SystemPrompt != "" {
		input.System = []types.SystemContentBlock{&types.SystemContentBlockMemberText{Value: params.SystemPrompt}}
	}

	resp, err := d.client.Converse(ctx, input)
	if err != nil {
		return "", models.CostSnapshot{}, fmt.Errorf("bedrock: %w", err)
	}

	var text string
	if out, ok := resp.Output.(*types.ConverseOutputMemberMessage); ok {
		for _, block := range out.Value.Content {
			if t, ok := block.(*types.ContentBlockMemberText); ok {
				text += t.Value
			}
		}
	}

	var inTok, outTok int64
	if resp.Usage != nil {
		inTok = int64(aws.ToInt32(resp.Usage.InputTokens))
		outTok = int64(aws.ToInt32(resp.Usage.OutputTokens))
	}
	cost := models.CostSnapshot{
		InputTokens:  inTok,
		OutputTokens: outTok,
		USD:          estimateCost(models.BackendAwsBedrock, params.ModelID, inTok, outTok),
	}
	return text, cost, nil
}

func (d *bedrockDriver) ConverseStream(ctx context.Context, messages []models.Message, params Params, out chan<- models.ConverseResponse) error {
	params = DefaultParams(params)
	params.Messages = messages

	input := &bedrockruntime.ConverseStreamInput{
		ModelId:         aws.String(params.ModelID),
		Messages:        toBedrockMessages(params),
		InferenceConfig: d.inferenceConfig(params),
	}
	if params.SystemPrompt != "" {
		input.System = []types.SystemContentBlock{&types.SystemContentBlockMemberText{Value: params.SystemPrompt}}
	}

	resp, err := d.client.ConverseStream(ctx, input)
	if err != nil {
		emitTerminal(out, nil, err, false)
		return err
	}

	stream := resp.GetStream()
	defer stream.Close()

	var inTok, outTok int64
	for event := range stream.Events() {
		select {
		case <-ctx.Done():
			emitTerminal(out, nil, nil, true)
			return nil
		default:
		}
		switch v := event.(type) {
		case *types.ConverseStreamOutputMemberContentBlockDelta:
			if d, ok := v.Value.Delta.(*types.ContentBlockDeltaMemberText); ok {
				out <- models.ConverseResponse{Text: d.Value}
				outTok += estimateTokens(d.Value)
			}
		case *types.ConverseStreamOutputMemberMetadata:
			if v.Value.Usage != nil {
				inTok = int64(aws.ToInt32(v.Value.Usage.InputTokens))
				outTok = int64(aws.ToInt32(v.Value.Usage.OutputTokens))
			}
		}
	}
	if err := stream.Err(); err != nil {
		emitTerminal(out, nil, err, false)
		return err
	}
	cost := models.CostSnapshot{InputTokens: inTok, OutputTokens: outTok, USD: estimateCost(models.BackendAwsBedrock, params.ModelID, inTok, outTok)}
	emitTerminal(out, &cost, nil, false)
	return nil
}
