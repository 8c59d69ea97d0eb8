package ai

import (
	"context"
	"errors"
	"fmt"

	"github.com/kotrzina/dining-menu/pkg/prometheus"
	"github.com/sirupsen/logrus"
)

// ToolCall is a tool invocation requested by the model.
type ToolCall struct {
	ID    string
	Name  string
	Input string
}

// ToolResult answers one ToolCall.
type ToolResult struct {
	Call   ToolCall
	Output string
	Failed bool
}

// Turn is one model reply.
type Turn struct {
	Text  string
	Calls []ToolCall
	Cost  Cost
}

// chat keeps the message history of one provider.
// Send appends the model reply to the history, Answer appends tool results.
type chat interface {
	Send(ctx context.Context) (Turn, error)
	Answer(results []ToolResult)
}

// converse talks to the model until it stops requesting tools. Every requested call
// is answered, unknown tools and tool errors are reported back as failed results.
func converse(ctx context.Context, provider string, c chat, tools []Tool, monitor *prometheus.Monitor, logger *logrus.Logger) (Response, error) {
	byName := make(map[string]Tool, len(tools))
	for _, t := range tools {
		byName[t.Name] = t
	}

	var output Response
	for round := 0; round < safetyLoopLimit; round++ {
		turn, err := c.Send(ctx)
		if err != nil {
			return output, err
		}

		output.Text = turn.Text
		output.Cost.Input += turn.Cost.Input
		output.Cost.Output += turn.Cost.Output

		monitor.InputTokens.WithLabelValues(provider).Add(float64(turn.Cost.Input))
		monitor.OutputTokens.WithLabelValues(provider).Add(float64(turn.Cost.Output))
		logger.WithField("billing", "input").Infof("%s input tokens: %d", provider, turn.Cost.Input)
		logger.WithField("billing", "output").Infof("%s output tokens: %d", provider, turn.Cost.Output)

		if len(turn.Calls) == 0 {
			break
		}

		results := make([]ToolResult, len(turn.Calls))
		for i, call := range turn.Calls {
			results[i] = runTool(byName, call, logger)
		}
		c.Answer(results)

		if err := ctx.Err(); err != nil {
			return output, err
		}
	}

	if output.Text == "" {
		return output, errors.New("empty response")
	}
	return output, nil
}

func runTool(tools map[string]Tool, call ToolCall, logger *logrus.Logger) ToolResult {
	t, ok := tools[call.Name]
	if !ok {
		logger.Warnf("model requested unknown tool %s", call.Name)
		return ToolResult{Call: call, Output: fmt.Sprintf("unknown tool %s", call.Name), Failed: true}
	}

	logger.Infof("running tool %s", call.Name)
	out, err := t.Fn(call.Input)
	if err != nil {
		return ToolResult{Call: call, Output: err.Error(), Failed: true}
	}

	return ToolResult{Call: call, Output: out}
}
