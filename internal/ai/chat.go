package ai

import (
	"context"
	"errors"
	"log/slog"
)

// ChatModel binds a Runtime to a model and a fixed sampling temperature.
type ChatModel struct {
	Runtime     Runtime
	Backend     string
	Model       string
	Temperature float64
	MaxTokens   int
}

// ErrEmptyCompletion is returned when the provider answers with no choices.
var ErrEmptyCompletion = errors.New("empty completion")

// Complete sends messages and returns the assistant message of the first choice.
func (m *ChatModel) Complete(ctx context.Context, msgs []Message) (*Message, error) {
	return m.complete(ctx, GenerateRequest{Messages: msgs})
}

// CompleteText is Complete for the common system+user prompt shape.
func (m *ChatModel) CompleteText(ctx context.Context, system, user string) (string, error) {
	var msgs []Message
	if system != "" {
		msgs = append(msgs, Message{Role: "system", Content: system})
	}
	msgs = append(msgs, Message{Role: "user", Content: user})
	out, err := m.Complete(ctx, msgs)
	if err != nil {
		return "", err
	}
	return out.Content, nil
}

// CallTool forces the model to call fn and returns the resulting message.
func (m *ChatModel) CallTool(ctx context.Context, msgs []Message, tool Tool) (*Message, error) {
	return m.complete(ctx, GenerateRequest{
		Messages:   msgs,
		Tools:      []Tool{tool},
		ToolChoice: ForceTool(tool.Function.Name),
	})
}

func (m *ChatModel) complete(ctx context.Context, req GenerateRequest) (*Message, error) {
	temp := m.Temperature
	req.Model = m.Model
	req.Temperature = &temp
	req.MaxTokens = m.MaxTokens
	resp, err := m.Runtime.Generate(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, ErrEmptyCompletion
	}
	attrs := []any{"backend", m.Backend, "model", m.Model, "prompt_tokens", resp.Usage.PromptTokens, "completion_tokens", resp.Usage.CompletionTokens}
	if cost, ok := EstimateCostUSD(m.Model, resp.Usage.PromptTokens, resp.Usage.CompletionTokens); ok {
		attrs = append(attrs, "est_cost_usd", cost)
	}
	if resp.RequestID != "" {
		attrs = append(attrs, "request_id", resp.RequestID)
	}
	slog.Debug("llm completion", attrs...)
	msg := resp.Choices[0].Message
	return &msg, nil
}
