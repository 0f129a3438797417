// Package openai provides a chat-completion vertex builder backed by the
// OpenAI API. Registered separately from the core prebuilts so that flows
// without model calls carry no API dependency.
package openai

import (
	"context"
	"fmt"
	"os"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/flowengine/flowengine/internal/app/usecases"
	"github.com/flowengine/flowengine/internal/core/artifact"
)

// TypeChat is the vertex type handled by the chat builder.
const TypeChat = "openai_chat"

// DefaultModel is used when the vertex declares no "model" parameter.
const DefaultModel = goopenai.GPT4oMini

// client is the subset of the OpenAI client the builder needs.
type client interface {
	CreateChatCompletion(ctx context.Context, req goopenai.ChatCompletionRequest) (goopenai.ChatCompletionResponse, error)
}

// ChatBuilder turns a prompt parameter into a chat completion. Parameters:
// "prompt" (required), "system", "model", "temperature", "max_tokens".
type ChatBuilder struct {
	client client
}

// NewChatBuilder creates a builder with an explicit API key. An empty key
// falls back to the OPENAI_API_KEY environment variable.
func NewChatBuilder(apiKey string) *ChatBuilder {
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	return &ChatBuilder{client: goopenai.NewClient(apiKey)}
}

// Register installs the chat builder into a registry.
func Register(reg *usecases.Registry, apiKey string) error {
	return reg.Register(TypeChat, NewChatBuilder(apiKey))
}

// Build implements usecases.Builder.
func (b *ChatBuilder) Build(ctx context.Context, params map[string]interface{}) (map[string]interface{}, []artifact.LogEntry, error) {
	prompt, ok := params["prompt"].(string)
	if !ok || prompt == "" {
		return nil, nil, fmt.Errorf("openai_chat: missing %q parameter", "prompt")
	}

	req := goopenai.ChatCompletionRequest{
		Model:    DefaultModel,
		Messages: []goopenai.ChatCompletionMessage{},
	}
	if model, ok := params["model"].(string); ok && model != "" {
		req.Model = model
	}
	if system, ok := params["system"].(string); ok && system != "" {
		req.Messages = append(req.Messages, goopenai.ChatCompletionMessage{
			Role:    goopenai.ChatMessageRoleSystem,
			Content: system,
		})
	}
	req.Messages = append(req.Messages, goopenai.ChatCompletionMessage{
		Role:    goopenai.ChatMessageRoleUser,
		Content: prompt,
	})
	if temp, ok := floatParam(params["temperature"]); ok {
		req.Temperature = float32(temp)
	}
	if maxTokens, ok := intParam(params["max_tokens"]); ok {
		req.MaxTokens = maxTokens
	}

	resp, err := b.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, nil, fmt.Errorf("openai_chat: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, nil, fmt.Errorf("openai_chat: empty response")
	}

	content := resp.Choices[0].Message.Content
	outputs := map[string]interface{}{
		"out":  content,
		"text": content,
		"usage": map[string]interface{}{
			"prompt_tokens":     resp.Usage.PromptTokens,
			"completion_tokens": resp.Usage.CompletionTokens,
		},
	}
	return outputs, nil, nil
}

func floatParam(raw interface{}) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	}
	return 0, false
}

func intParam(raw interface{}) (int, bool) {
	switch v := raw.(type) {
	case int:
		return v, true
	case float64:
		return int(v), true
	}
	return 0, false
}
