// File path: internal/llm/openai.go
package llm

import (
	"context"
	"fmt"
	"os"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/jbpark-dev/storesense/internal/common"
)

const defaultChatModel = "gpt-4o-mini"

// OpenAIProvider generates through an OpenAI-compatible chat endpoint.
type OpenAIProvider struct {
	client *openai.Client
	model  string
}

// NewOpenAIProvider builds the provider from the API key plus
// OPENAI_CHAT_MODEL and optional OPENAI_BASE_URL.
func NewOpenAIProvider(apiKey string) *OpenAIProvider {
	model := strings.TrimSpace(os.Getenv("OPENAI_CHAT_MODEL"))
	if model == "" {
		model = defaultChatModel
	}
	clientConfig := openai.DefaultConfig(apiKey)
	if base := strings.TrimSpace(os.Getenv("OPENAI_BASE_URL")); base != "" {
		clientConfig.BaseURL = base
	}
	return &OpenAIProvider{client: openai.NewClientWithConfig(clientConfig), model: model}
}

func (p *OpenAIProvider) Generate(ctx context.Context, prompt string, maxOutputTokens int) (string, error) {
	logger := common.Logger()
	req := openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}
	if maxOutputTokens > 0 {
		req.MaxTokens = maxOutputTokens
	}
	logger.Debug("llm: chat completion request", "model", p.model, "prompt_chars", len(prompt))
	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("llm: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("llm: no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

func (p *OpenAIProvider) Name() string { return "openai" }
