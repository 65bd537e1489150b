package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"kingk/internal/codec"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type completionsAPI interface {
	New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// OpenAIClient implements Client on the chat completions API.
type OpenAIClient struct {
	tracer       trace.Tracer
	completions  completionsAPI
	defaultModel string
}

func NewOpenAIClient(tracer trace.Tracer, apiKey, model string) *OpenAIClient {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &OpenAIClient{
		tracer:       tracer,
		completions:  &client.Chat.Completions,
		defaultModel: model,
	}
}

func (c *OpenAIClient) Generate(ctx context.Context, req Request) (string, error) {
	ctx, span := c.tracer.Start(ctx, "llm.openai.generate")
	defer span.End()

	params, err := c.buildParams(req)
	if err != nil {
		return "", err
	}
	span.SetAttributes(
		attribute.String("llm.model", string(params.Model)),
		attribute.Int("llm.messages", len(params.Messages)),
		attribute.Bool("llm.structured", req.Schema != nil),
	)

	resp, err := c.completions.New(ctx, params)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("openai chat completion: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

func (c *OpenAIClient) buildParams(req Request) (openai.ChatCompletionNewParams, error) {
	model := req.Model
	if model == "" {
		model = c.defaultModel
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Contents)+1)
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	for _, content := range req.Contents {
		msg, err := toMessage(content)
		if err != nil {
			return openai.ChatCompletionNewParams{}, err
		}
		messages = append(messages, msg)
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: messages,
	}

	if req.Schema != nil {
		schema, err := strictSchema(req.Schema)
		if err != nil {
			return openai.ChatCompletionNewParams{}, err
		}
		name := req.SchemaName
		if name == "" {
			name = "response"
		}
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   name,
					Schema: schema,
					Strict: openai.Bool(true),
				},
			},
		}
	}
	return params, nil
}

func toMessage(content Content) (openai.ChatCompletionMessageParamUnion, error) {
	if content.Role == RoleModel {
		var sb strings.Builder
		for _, p := range content.Parts {
			if p.Inline != nil {
				return openai.ChatCompletionMessageParamUnion{}, fmt.Errorf("model turns cannot carry inline data")
			}
			sb.WriteString(p.Text)
		}
		return openai.AssistantMessage(sb.String()), nil
	}

	if len(content.Parts) == 1 && content.Parts[0].Inline == nil {
		return openai.UserMessage(content.Parts[0].Text), nil
	}

	parts := make([]openai.ChatCompletionContentPartUnionParam, 0, len(content.Parts))
	for _, p := range content.Parts {
		if p.Inline != nil {
			url := "data:" + p.Inline.MIMEType + ";base64," + codec.EncodeBase64(p.Inline.Data)
			parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: url}))
			continue
		}
		parts = append(parts, openai.TextContentPart(p.Text))
	}
	return openai.UserMessage(parts), nil
}

// strictSchema renders a schema in the form the strict structured-output mode
// expects: every object closes additional properties.
func strictSchema(schema any) (map[string]any, error) {
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("unmarshal schema: %w", err)
	}
	closeObjects(out)
	return out, nil
}

func closeObjects(node map[string]any) {
	if t, ok := node["type"].(string); ok && t == "object" {
		node["additionalProperties"] = false
	}
	if props, ok := node["properties"].(map[string]any); ok {
		for _, p := range props {
			if child, ok := p.(map[string]any); ok {
				closeObjects(child)
			}
		}
	}
	if items, ok := node["items"].(map[string]any); ok {
		closeObjects(items)
	}
}
