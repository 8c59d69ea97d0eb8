package ai

import (
	"context"
	"errors"
	"fmt"

	"github.com/kotrzina/dining-menu/pkg/config"
	"github.com/kotrzina/dining-menu/pkg/prometheus"
	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/sirupsen/logrus"
)

const openAiProvider = "openai"

type OpenAi struct {
	client openai.Client

	config  *config.Config
	monitor *prometheus.Monitor
	logger  *logrus.Logger
}

func NewOpenAi(conf *config.Config, m *prometheus.Monitor, l *logrus.Logger) *OpenAi {
	return &OpenAi{
		client: openai.NewClient(
			option.WithAPIKey(conf.OpenAiAPIKey),
		),

		config:  conf,
		monitor: m,
		logger:  l,
	}
}

func (ai *OpenAi) Available() bool {
	return ai.config.OpenAiAPIKey != ""
}

func (ai *OpenAi) GetPlan(ctx context.Context, prompt string, tools []Tool) (Response, error) {
	c := &openAiChat{
		client: &ai.client,
		param: openai.ChatCompletionNewParams{
			Messages: []openai.ChatCompletionMessageParamUnion{
				openai.SystemMessage(prompt),
				openai.UserMessage(planRequest),
			},
			Model: openai.ChatModelGPT5Mini,
			Tools: openAiTools(tools),
		},
	}

	return converse(ctx, openAiProvider, c, tools, ai.monitor, ai.logger)
}

type openAiChat struct {
	client *openai.Client
	param  openai.ChatCompletionNewParams
}

func (c *openAiChat) Send(ctx context.Context) (Turn, error) {
	resp, err := c.client.Chat.Completions.New(ctx, c.param)
	if err != nil {
		return Turn{}, fmt.Errorf("openai client error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Turn{}, errors.New("openai returned no choices")
	}

	msg := resp.Choices[0].Message
	c.param.Messages = append(c.param.Messages, msg.ToParam())

	turn := Turn{
		Text: msg.Content,
		Cost: Cost{Input: int(resp.Usage.PromptTokens), Output: int(resp.Usage.CompletionTokens)},
	}
	for _, call := range msg.ToolCalls {
		turn.Calls = append(turn.Calls, ToolCall{ID: call.ID, Name: call.Function.Name, Input: call.Function.Arguments})
	}

	return turn, nil
}

// Answer adds one tool message per result.
func (c *openAiChat) Answer(results []ToolResult) {
	for _, r := range results {
		c.param.Messages = append(c.param.Messages, openai.ToolMessage(r.Output, r.Call.ID))
	}
}

func openAiTools(tools []Tool) []openai.ChatCompletionToolUnionParam {
	ret := make([]openai.ChatCompletionToolUnionParam, len(tools))
	for i, t := range tools {
		def := openai.FunctionDefinitionParam{
			Name:        t.Name,
			Description: openai.String(t.Description),
		}
		if t.HasSchema {
			def.Parameters = openAiSchema(t.Schema)
		}
		ret[i] = openai.ChatCompletionFunctionTool(def)
	}

	return ret
}

// openAiSchema converts the property tree. Objects carry properties, other types their enum.
func openAiSchema(p Property) map[string]any {
	schema := map[string]any{"type": p.Type.String()}
	if p.Description != "" {
		schema["description"] = p.Description
	}

	if p.Type != SchemaTypeObject {
		if len(p.Enum) > 0 {
			schema["enum"] = p.Enum
		}
		return schema
	}

	if len(p.Properties) > 0 {
		props := make(map[string]map[string]any, len(p.Properties))
		for name, child := range p.Properties {
			props[name] = openAiSchema(child)
		}
		schema["properties"] = props
	}
	if len(p.Required) > 0 {
		schema["required"] = p.Required
	}

	return schema
}
