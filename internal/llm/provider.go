// File path: internal/llm/provider.go
package llm

import (
	"context"
	"os"
	"strings"

	"github.com/jbpark-dev/storesense/internal/common"
)

// Provider is the text-generation backend. MaxOutputTokens bounds the
// response length when positive; zero means the backend default.
type Provider interface {
	Generate(ctx context.Context, prompt string, maxOutputTokens int) (string, error)
	Name() string
}

// NewProvider selects the backend from the environment. A missing API key
// is logged rather than fatal at startup; the local provider keeps the
// pipeline exercisable and the deployment fails visibly at first real
// generation instead.
func NewProvider() Provider {
	logger := common.Logger()
	apiKey := strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	if apiKey == "" {
		logger.Warn("llm: OPENAI_API_KEY not set; falling back to local provider")
		return NewLocalProvider()
	}
	provider := NewOpenAIProvider(apiKey)
	logger.Info("llm: OpenAI provider selected", "model", provider.model)
	return provider
}
