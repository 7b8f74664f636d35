// File path: internal/report/builder_test.go
package report

import (
	"context"
	"hash/fnv"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jbpark-dev/storesense/internal/config"
	"github.com/jbpark-dev/storesense/internal/corpus"
	"github.com/jbpark-dev/storesense/internal/embedding"
	"github.com/jbpark-dev/storesense/internal/llm"
	"github.com/jbpark-dev/storesense/internal/stats"
)

type hashEmbedder struct{}

func (hashEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		h := fnv.New32a()
		h.Write([]byte(text))
		vec := make([]float32, 4)
		vec[int(h.Sum32()%4)] = 1
		out[i] = vec
	}
	return out, nil
}

func (hashEmbedder) Dimension() int { return 4 }

type countingProvider struct {
	calls    int64
	response string
}

func (p *countingProvider) Generate(context.Context, string, int) (string, error) {
	atomic.AddInt64(&p.calls, 1)
	return p.response, nil
}

func (p *countingProvider) Name() string { return "counting" }

func stageCorpus(t *testing.T, dir, name string, lines []string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	vectors := make([][]float32, len(lines))
	for i := range lines {
		vec := make([]float32, 4)
		vec[i%4] = 1
		vectors[i] = vec
	}
	require.NoError(t, corpus.WriteIndex(filepath.Join(dir, name+".vec"), vectors))
	var meta string
	for _, line := range lines {
		meta += line + "\n"
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, name+"_metadata.jsonl"), []byte(meta), 0o644))
}

func stageCorpora(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	stageCorpus(t, filepath.Join(root, "v1"), "marketing_reports", []string{
		`{"id":"r1","store_code":"S900","source":"report_q2","text":"weekday lunch drives most revenue"}`,
		`{"id":"r2","store_code":"S901","source":"report_q3","text":"delivery orders grew 40 percent"}`,
	})
	stageCorpus(t, filepath.Join(root, "shared"), "marketing_segments", []string{
		`{"id":"g1","segment":"office workers","text":"lunch subscriptions retain office workers"}`,
		`{"id":"g2","segment":"students","text":"late-night sets attract students"}`,
	})
	return root
}

func recordLabels(records []corpus.Record) []string {
	out := make([]string, 0, len(records))
	for _, rec := range records {
		out = append(out, rec.SourceLabel())
	}
	return out
}

func testConfig(root string) config.Config {
	cfg := config.Default()
	cfg.CorpusRoot = root
	return cfg
}

func newTestBuilder(t *testing.T, root string, provider llm.Provider, opts ...Option) *Builder {
	t.Helper()
	return NewBuilder(testConfig(root), corpus.NewCatalog(),
		embedding.NewServiceWith(hashEmbedder{}), llm.NewGateway(provider), opts...)
}

func TestBuildHappyPath(t *testing.T) {
	provider := &countingProvider{response: "generated marketing summary"}
	builder := newTestBuilder(t, stageCorpora(t), provider)

	result := builder.Build(context.Background(), "S900", "v1", 0)
	require.Empty(t, result.Error)
	require.Empty(t, result.Traceback)
	require.Equal(t, "S900", result.StoreCode)
	require.Equal(t, "v1", result.Mode)
	require.Equal(t, "generated marketing summary", result.RAGSummary)
	require.NotEmpty(t, result.RequestID)
	require.False(t, result.Cached)

	require.ElementsMatch(t, []string{"report_q2", "report_q3"}, recordLabels(result.References.Reports))
	require.ElementsMatch(t, []string{"office workers", "students"}, recordLabels(result.References.Segments))

	// references expose the full retrieved records, not just labels
	require.Len(t, result.References.Reports, 2)
	for _, rec := range result.References.Reports {
		require.NotEmpty(t, rec.ID)
		require.NotEmpty(t, rec.Text)
	}
	require.Len(t, result.References.Segments, 2)
	for _, rec := range result.References.Segments {
		require.NotEmpty(t, rec.Segment)
		require.NotEmpty(t, rec.Text)
	}

	require.NotNil(t, result.PromptInfo)
	require.Equal(t, 2, result.PromptInfo.Reports)
	require.Equal(t, 2, result.PromptInfo.Segments)
	require.NotNil(t, result.Timing)
	require.EqualValues(t, 1, atomic.LoadInt64(&provider.calls))
}

func TestBuildSecondCallHitsCache(t *testing.T) {
	provider := &countingProvider{response: "summary"}
	builder := newTestBuilder(t, stageCorpora(t), provider)

	first := builder.Build(context.Background(), "S900", "v1", 0)
	require.Empty(t, first.Error)
	second := builder.Build(context.Background(), "S900", "v1", 0)
	require.Empty(t, second.Error)
	require.True(t, second.Cached)
	require.Equal(t, first.RAGSummary, second.RAGSummary)
	require.NotEqual(t, first.RequestID, second.RequestID)
	require.EqualValues(t, 1, atomic.LoadInt64(&provider.calls))
}

func TestBuildMissingCorpusSkipsGeneration(t *testing.T) {
	provider := &countingProvider{response: "should not appear"}
	builder := newTestBuilder(t, t.TempDir(), provider)

	result := builder.Build(context.Background(), "S900", "v1", 0)
	require.Contains(t, result.Error, "marketing_reports")
	require.NotEmpty(t, result.Traceback)
	require.LessOrEqual(t, len(result.Traceback), 2)
	require.Empty(t, result.RAGSummary)
	require.Zero(t, atomic.LoadInt64(&provider.calls))
}

func TestBuildNoEvidenceSkipsGeneration(t *testing.T) {
	root := t.TempDir()
	// fixture vectors whose dimension does not match the embedder, so
	// every search comes back empty
	for _, dir := range []string{filepath.Join(root, "v1"), filepath.Join(root, "shared")} {
		require.NoError(t, os.MkdirAll(dir, 0o755))
	}
	name := map[string]string{
		filepath.Join(root, "v1"):     "marketing_reports",
		filepath.Join(root, "shared"): "marketing_segments",
	}
	for dir, corpusName := range name {
		require.NoError(t, corpus.WriteIndex(filepath.Join(dir, corpusName+".vec"), [][]float32{{1, 0}}))
		require.NoError(t, os.WriteFile(filepath.Join(dir, corpusName+"_metadata.jsonl"),
			[]byte(`{"id":"x","text":"unreachable"}`+"\n"), 0o644))
	}

	provider := &countingProvider{response: "should not appear"}
	builder := newTestBuilder(t, root, provider)
	result := builder.Build(context.Background(), "S900", "v1", 0)

	require.Contains(t, result.Error, "no data found for store S900")
	require.Empty(t, result.Traceback)
	require.Contains(t, result.RAGSummary, "No marketing data")
	require.Empty(t, result.References.Reports)
	require.Empty(t, result.References.Segments)
	require.Zero(t, atomic.LoadInt64(&provider.calls))
}

func TestBuildUnknownModeStillRenders(t *testing.T) {
	root := stageCorpora(t)
	// unknown modes read their own corpus directory
	stageCorpus(t, filepath.Join(root, "v7"), "marketing_reports", []string{
		`{"id":"r1","source":"misc","text":"generic store data"}`,
	})
	provider := &countingProvider{response: "default-template summary"}
	builder := newTestBuilder(t, root, provider)

	result := builder.Build(context.Background(), "S900", "v7", 0)
	require.Empty(t, result.Error)
	require.Equal(t, "default-template summary", result.RAGSummary)
}

func TestBuildFullMergesBaseline(t *testing.T) {
	ctx := context.Background()
	store, err := stats.Open(ctx, filepath.Join(t.TempDir(), "stats.db"))
	require.NoError(t, err)
	defer store.Close()
	require.NoError(t, store.SeedMerchant(ctx, stats.Merchant{
		StoreCode:   "S900",
		StoreName:   "Noodle Bar",
		Industry:    "noodles",
		RevisitRate: 35,
	}, nil, nil, nil))

	provider := &countingProvider{response: "summary"}
	builder := newTestBuilder(t, stageCorpora(t), provider,
		WithReporter(stats.NewReporter(store)))

	result := builder.BuildFull(ctx, "S900", "v1", 0)
	require.Empty(t, result.Error)
	require.NotNil(t, result.Base)
	require.Equal(t, "Noodle Bar", result.Base.StoreName)
	require.Equal(t, "stable", result.Base.Status)
	require.Nil(t, result.Trend) // no trend service configured
}

func TestBuildFullToleratesUnknownMerchant(t *testing.T) {
	ctx := context.Background()
	store, err := stats.Open(ctx, filepath.Join(t.TempDir(), "stats.db"))
	require.NoError(t, err)
	defer store.Close()

	// v2 corpus shares the fixtures via its own directory
	root := stageCorpora(t)
	stageCorpus(t, filepath.Join(root, "v2"), "marketing_reports", []string{
		`{"id":"r1","source":"retention_doc","text":"retention playbook"}`,
	})

	builder := newTestBuilder(t, root, &countingProvider{response: "summary"},
		WithReporter(stats.NewReporter(store)))
	result := builder.BuildFull(ctx, "GHOST", "v2", 0)
	require.Empty(t, result.Error)
	require.Equal(t, "summary", result.RAGSummary)
	require.Nil(t, result.Base)
}
