package ai

import (
	"context"
	"errors"
	"fmt"

	"github.com/kotrzina/dining-menu/pkg/config"
	"github.com/kotrzina/dining-menu/pkg/prometheus"
	"github.com/liushuangls/go-anthropic/v2"
	"github.com/liushuangls/go-anthropic/v2/jsonschema"
	"github.com/sirupsen/logrus"
)

const anthropicProvider = "anthropic"

type Anthropic struct {
	client *anthropic.Client

	config  *config.Config
	monitor *prometheus.Monitor
	logger  *logrus.Logger
}

func NewAnthropic(conf *config.Config, m *prometheus.Monitor, l *logrus.Logger) *Anthropic {
	return &Anthropic{
		client: anthropic.NewClient(conf.AnthropicAPIKey),

		config:  conf,
		monitor: m,
		logger:  l,
	}
}

func (ai *Anthropic) Available() bool {
	return ai.config.AnthropicAPIKey != ""
}

func (ai *Anthropic) GetPlan(ctx context.Context, prompt string, tools []Tool) (Response, error) {
	c := &anthropicChat{
		client: ai.client,
		system: prompt,
		tools:  anthropicTools(tools),
		messages: []anthropic.Message{
			anthropic.NewUserTextMessage(planRequest),
		},
	}

	return converse(ctx, anthropicProvider, c, tools, ai.monitor, ai.logger)
}

type anthropicChat struct {
	client   *anthropic.Client
	system   string
	tools    []anthropic.ToolDefinition
	messages []anthropic.Message
}

func (c *anthropicChat) Send(ctx context.Context) (Turn, error) {
	resp, err := c.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:     anthropic.ModelClaude3Dot5SonnetLatest,
		System:    c.system,
		Messages:  c.messages,
		MaxTokens: 2000,
		Tools:     c.tools,
	})
	if err != nil {
		var e *anthropic.APIError
		if errors.As(err, &e) {
			return Turn{}, fmt.Errorf("messages error, type: %s, message: %s", e.Type, e.Message)
		}
		return Turn{}, fmt.Errorf("messages error: %w", err)
	}

	c.messages = append(c.messages, anthropic.Message{
		Role:    anthropic.RoleAssistant,
		Content: resp.Content,
	})

	turn := Turn{
		Cost: Cost{Input: resp.Usage.InputTokens, Output: resp.Usage.OutputTokens},
	}
	if len(resp.Content) > 0 {
		turn.Text = resp.Content[len(resp.Content)-1].GetText()
	}
	if resp.StopReason != anthropic.MessagesStopReasonToolUse {
		return turn, nil
	}

	for _, content := range resp.Content {
		if use := content.MessageContentToolUse; use != nil {
			turn.Calls = append(turn.Calls, ToolCall{ID: use.ID, Name: use.Name, Input: string(use.Input)})
		}
	}

	return turn, nil
}

// Answer sends all results in one user message.
func (c *anthropicChat) Answer(results []ToolResult) {
	msg := anthropic.Message{
		Role:    anthropic.RoleUser,
		Content: make([]anthropic.MessageContent, len(results)),
	}
	for i, r := range results {
		msg.Content[i] = anthropic.NewToolResultMessageContent(r.Call.ID, r.Output, r.Failed)
	}

	c.messages = append(c.messages, msg)
}

func anthropicTools(tools []Tool) []anthropic.ToolDefinition {
	defs := make([]anthropic.ToolDefinition, len(tools))
	for i, t := range tools {
		defs[i] = anthropic.ToolDefinition{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: anthropicSchema(t.Schema),
		}
	}

	return defs
}

// anthropicSchema converts the property tree. Enums are sent as strings.
func anthropicSchema(p Property) jsonschema.Definition {
	def := jsonschema.Definition{
		Type:        jsonschema.DataType(p.Type.String()),
		Description: p.Description,
		Enum:        p.GetEnumAsStrings(),
		Required:    p.Required,
	}

	if p.Properties != nil {
		def.Properties = make(map[string]jsonschema.Definition, len(p.Properties))
		for name, child := range p.Properties {
			def.Properties[name] = anthropicSchema(child)
		}
	}

	return def
}
