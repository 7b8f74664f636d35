// File path: internal/llm/local.go
package llm

import (
	"context"
	"fmt"
	"strings"
)

// LocalProvider is the offline fallback used when no API key is
// configured. It echoes a bounded slice of the prompt so the surrounding
// pipeline stays exercisable without a network dependency.
type LocalProvider struct{}

func NewLocalProvider() *LocalProvider {
	return &LocalProvider{}
}

func (l *LocalProvider) Generate(ctx context.Context, prompt string, maxOutputTokens int) (string, error) {
	trimmed := strings.TrimSpace(prompt)
	if trimmed == "" {
		return "", fmt.Errorf("llm: empty prompt")
	}
	if runes := []rune(trimmed); len(runes) > 200 {
		trimmed = string(runes[:200]) + "..."
	}
	return "[local-stub] " + trimmed, nil
}

func (l *LocalProvider) Name() string { return "local" }
