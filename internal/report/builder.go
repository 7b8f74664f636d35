// File path: internal/report/builder.go
package report

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jbpark-dev/storesense/internal/align"
	"github.com/jbpark-dev/storesense/internal/common"
	"github.com/jbpark-dev/storesense/internal/common/telemetry"
	"github.com/jbpark-dev/storesense/internal/config"
	"github.com/jbpark-dev/storesense/internal/corpus"
	"github.com/jbpark-dev/storesense/internal/embedding"
	"github.com/jbpark-dev/storesense/internal/llm"
	"github.com/jbpark-dev/storesense/internal/prompt"
	"github.com/jbpark-dev/storesense/internal/retriever"
	"github.com/jbpark-dev/storesense/internal/stats"
	"github.com/jbpark-dev/storesense/internal/trend"
)

const (
	reportCorpusName  = "marketing_reports"
	segmentCorpusName = "marketing_segments"
	sharedCorpusDir   = "shared"

	noDataMessage = "No marketing data is available for this store yet. " +
		"A report will be produced once analysis data is loaded."
)

// References carries the deduplicated retrieval hits behind a summary,
// per corpus, so callers can show the provenance of every claim.
type References struct {
	Reports  []corpus.Record `json:"reports"`
	Segments []corpus.Record `json:"segments"`
}

// Timing breaks a build down into its two expensive phases.
type Timing struct {
	RetrievalMS  int64 `json:"retrieval_ms"`
	GenerationMS int64 `json:"generation_ms"`
	TotalMS      int64 `json:"total_ms"`
}

// PromptInfo describes the prompt that produced the summary.
type PromptInfo struct {
	ContextChars int `json:"context_chars"`
	Pairs        int `json:"pairs"`
	Reports      int `json:"reports"`
	Segments     int `json:"segments"`
}

// Result is the final report payload. Error and Traceback are set
// instead of RAGSummary when the build fails; when retrieval finds no
// evidence at all, Error holds a no-data marker with an empty Traceback.
// A build never panics out.
type Result struct {
	RequestID  string             `json:"request_id"`
	StoreCode  string             `json:"store_code"`
	Mode       string             `json:"mode"`
	RAGSummary string             `json:"rag_summary"`
	References References         `json:"references"`
	Cached     bool               `json:"cached"`
	Timing     *Timing            `json:"timing,omitempty"`
	PromptInfo *PromptInfo        `json:"prompt_info,omitempty"`
	Base       *stats.BaseReport  `json:"base_report,omitempty"`
	Trend      *trend.Report      `json:"trend,omitempty"`
	Error      string             `json:"error,omitempty"`
	Traceback  []string           `json:"traceback,omitempty"`
}

// Builder orchestrates retrieval, evidence alignment, prompt assembly
// and generation into a single report.
type Builder struct {
	cfg        config.Config
	catalog    *corpus.Catalog
	embeddings *embedding.Service
	aligner    *align.Aligner
	gateway    *llm.Gateway
	reporter   *stats.Reporter
	trends     *trend.Service
}

// Option configures optional collaborators on a Builder.
type Option func(*Builder)

// WithReporter attaches the statistics baseline reporter.
func WithReporter(r *stats.Reporter) Option {
	return func(b *Builder) { b.reporter = r }
}

// WithTrends attaches the keyword-trend service.
func WithTrends(s *trend.Service) Option {
	return func(b *Builder) { b.trends = s }
}

func NewBuilder(cfg config.Config, catalog *corpus.Catalog, embeddings *embedding.Service, gateway *llm.Gateway, opts ...Option) *Builder {
	b := &Builder{
		cfg:        cfg,
		catalog:    catalog,
		embeddings: embeddings,
		aligner:    align.New(embeddings),
		gateway:    gateway,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build produces the RAG portion of a report. Any failure, including a
// panic in a collaborator, is folded into the result's Error and a short
// Traceback; Build itself never returns an error.
func (b *Builder) Build(ctx context.Context, storeCode, mode string, topK int) (result *Result) {
	if topK <= 0 {
		topK = b.cfg.TopK
	}
	result = &Result{
		RequestID: uuid.NewString(),
		StoreCode: storeCode,
		Mode:      mode,
	}
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			result.Error = fmt.Sprintf("report build panicked: %v", r)
			result.Traceback = shortTrace(0)
			common.Logger().Error("report: build panicked",
				"request_id", result.RequestID, "store_code", storeCode, "panic", r)
		}
		if result.Timing == nil {
			result.Timing = &Timing{}
		}
		result.Timing.TotalMS = time.Since(start).Milliseconds()
		telemetry.RecordReportBuild(mode, result.Error != "")
	}()

	if err := b.build(ctx, result, topK); err != nil {
		result.Error = err.Error()
		result.Traceback = shortTrace(0)
		common.Logger().Error("report: build failed",
			"request_id", result.RequestID, "store_code", storeCode, "mode", mode, "error", err)
	}
	return result
}

func (b *Builder) build(ctx context.Context, result *Result, topK int) error {
	storeCode, mode := result.StoreCode, result.Mode
	log := common.Logger()

	retrievalStart := time.Now()
	reportCorpus, err := b.catalog.Get(filepath.Join(b.cfg.CorpusRoot, mode), reportCorpusName)
	if err != nil {
		return fmt.Errorf("load %s corpus for mode %s: %w", reportCorpusName, mode, err)
	}
	segmentCorpus, err := b.catalog.Get(filepath.Join(b.cfg.CorpusRoot, sharedCorpusDir), segmentCorpusName)
	if err != nil {
		return fmt.Errorf("load %s corpus: %w", segmentCorpusName, err)
	}

	if err := b.embeddings.WaitReady(ctx); err != nil {
		return fmt.Errorf("wait for embedding model: %w", err)
	}

	queries := retriever.ExpandQueries(storeCode, mode)
	queryVectors, err := b.embeddings.Embed(ctx, queries)
	if err != nil {
		return fmt.Errorf("embed queries: %w", err)
	}

	var reports, segments []corpus.Record
	for _, vec := range queryVectors {
		reports = append(reports, retriever.Search(reportCorpus, vec, topK)...)
		segments = append(segments, retriever.Search(segmentCorpus, vec, topK)...)
	}
	reports = retriever.Dedupe(reports)
	segments = retriever.Dedupe(segments)
	result.Timing = &Timing{RetrievalMS: time.Since(retrievalStart).Milliseconds()}

	if len(reports) == 0 && len(segments) == 0 {
		log.Warn("report: no evidence retrieved",
			"request_id", result.RequestID, "store_code", storeCode, "mode", mode)
		result.RAGSummary = noDataMessage
		// Error carries the machine-readable no-data marker; Traceback
		// stays empty so callers can tell this from a build failure.
		result.Error = fmt.Sprintf("no data found for store %s", storeCode)
		return nil
	}

	pairs := b.aligner.Align(ctx, reports, segments, b.cfg.MaxPairs)
	contextText := prompt.AssembleContext(reports, segments, pairs)
	promptText := prompt.Render(prompt.Mode(mode), storeCode, contextText)
	result.PromptInfo = &PromptInfo{
		ContextChars: len(contextText),
		Pairs:        len(pairs),
		Reports:      len(reports),
		Segments:     len(segments),
	}

	genStart := time.Now()
	generated, err := b.gateway.GenerateCached(ctx, llm.CacheKey{
		StoreCode: storeCode,
		Mode:      mode,
		Context:   contextText,
	}, promptText)
	if err != nil {
		return fmt.Errorf("generate summary: %w", err)
	}
	result.Timing.GenerationMS = time.Since(genStart).Milliseconds()

	result.RAGSummary = generated.Text
	result.Cached = generated.Cached
	result.References = References{
		Reports:  reports,
		Segments: segments,
	}
	log.Info("report: build complete",
		"request_id", result.RequestID, "store_code", storeCode, "mode", mode,
		"reports", len(reports), "segments", len(segments), "pairs", len(pairs),
		"cached", generated.Cached)
	return nil
}

// BuildFull runs the RAG build alongside the statistics baseline and
// keyword-trend collectors and merges whatever succeeded. Collaborator
// failures are logged and their sections omitted; only the RAG section
// carries an Error field.
func (b *Builder) BuildFull(ctx context.Context, storeCode, mode string, topK int) *Result {
	var (
		ragResult *Result
		base      *stats.BaseReport
		trendRep  *trend.Report
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(2)
	g.Go(func() error {
		ragResult = b.Build(gctx, storeCode, mode, topK)
		return nil
	})
	g.Go(func() error {
		if b.reporter == nil {
			return nil
		}
		var err error
		base, err = b.reporter.Generate(gctx, storeCode, mode)
		if err != nil {
			common.Logger().Warn("report: baseline stats unavailable",
				"store_code", storeCode, "mode", mode, "error", err)
			return nil
		}
		if b.trends != nil && base != nil && base.Industry != "" {
			trendRep = b.trends.IndustryReport(gctx, base.Industry)
		}
		return nil
	})
	g.Wait()

	ragResult.Base = base
	ragResult.Trend = trendRep
	return ragResult
}

// shortTrace captures up to two frames above the caller, enough to
// locate a failure without shipping a full stack to clients.
func shortTrace(skip int) []string {
	pcs := make([]uintptr, 2)
	n := runtime.Callers(skip+2, pcs)
	if n == 0 {
		return nil
	}
	frames := runtime.CallersFrames(pcs[:n])
	trace := make([]string, 0, n)
	for {
		frame, more := frames.Next()
		trace = append(trace, fmt.Sprintf("%s (%s:%d)",
			frame.Function, filepath.Base(frame.File), frame.Line))
		if !more {
			break
		}
	}
	return trace
}
