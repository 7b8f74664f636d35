// File path: internal/embedding/embedder.go
package embedding

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/jbpark-dev/storesense/internal/common"
)

// Embedder turns texts into fixed-size vectors. Implementations must
// return unit-length vectors so downstream similarity can use the dot
// product as cosine.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

const defaultEmbedModel = "text-embedding-3-small"

// OpenAIEmbedder embeds through an OpenAI-compatible embeddings endpoint.
type OpenAIEmbedder struct {
	client *openai.Client
	model  string
	dim    int
}

// NewOpenAIEmbedderFromEnv builds the embedder from OPENAI_API_KEY,
// OPENAI_EMBED_MODEL and optional OPENAI_BASE_URL.
func NewOpenAIEmbedderFromEnv() (*OpenAIEmbedder, error) {
	apiKey := strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	if apiKey == "" {
		return nil, errors.New("embedding: OPENAI_API_KEY not set")
	}
	model := strings.TrimSpace(os.Getenv("OPENAI_EMBED_MODEL"))
	if model == "" {
		model = defaultEmbedModel
	}
	clientConfig := openai.DefaultConfig(apiKey)
	if base := strings.TrimSpace(os.Getenv("OPENAI_BASE_URL")); base != "" {
		clientConfig.BaseURL = base
	}
	dim := 1536
	if model == "text-embedding-3-large" {
		dim = 3072
	}
	common.Logger().Info("embedding: remote embedder configured", "model", model, "dim", dim)
	return &OpenAIEmbedder{client: openai.NewClientWithConfig(clientConfig), model: model, dim: dim}, nil
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(e.model),
		Input: texts,
	})
	if err != nil {
		return nil, fmt.Errorf("embedding: create embeddings: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embedding: got %d vectors for %d texts", len(resp.Data), len(texts))
	}
	vectors := make([][]float32, len(resp.Data))
	for i, data := range resp.Data {
		vec := make([]float32, len(data.Embedding))
		copy(vec, data.Embedding)
		Normalize(vec)
		vectors[i] = vec
	}
	return vectors, nil
}

func (e *OpenAIEmbedder) Dimension() int { return e.dim }

// Normalize scales v to unit length in place. Zero vectors stay zero.
func Normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	inv := float32(1 / math.Sqrt(sum))
	for i := range v {
		v[i] *= inv
	}
}

// Cosine returns the cosine similarity of two vectors. Mismatched or
// empty vectors score zero.
func Cosine(a, b []float32) float32 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
