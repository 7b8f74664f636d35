// File path: cmd/storesense/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/jbpark-dev/storesense/internal/api"
	"github.com/jbpark-dev/storesense/internal/common"
	"github.com/jbpark-dev/storesense/internal/config"
	"github.com/jbpark-dev/storesense/internal/corpus"
	"github.com/jbpark-dev/storesense/internal/embedding"
	"github.com/jbpark-dev/storesense/internal/llm"
	"github.com/jbpark-dev/storesense/internal/report"
	"github.com/jbpark-dev/storesense/internal/stats"
	"github.com/jbpark-dev/storesense/internal/trend"
)

func main() {
	logger := common.Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		logger.Warn("storesense: .env file not loaded", "error", err)
	} else {
		logger.Info("storesense: environment loaded from .env")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Error("storesense: config load failed", "error", err)
		fmt.Println("config error:", err)
		os.Exit(1)
	}

	addr := flag.String("addr", cfg.ListenAddr, "listen address")
	corpusRoot := flag.String("corpus-root", cfg.CorpusRoot, "directory holding the vector corpora")
	statsDB := flag.String("stats-db", cfg.StatsDBPath, "path to the merchant metrics SQLite database")
	topK := flag.Int("top-k", cfg.TopK, "documents retrieved per query and corpus")
	flag.Parse()

	cfg.ListenAddr = *addr
	if trimmed := strings.TrimSpace(*corpusRoot); trimmed != "" {
		cfg.CorpusRoot = trimmed
	}
	if trimmed := strings.TrimSpace(*statsDB); trimmed != "" {
		cfg.StatsDBPath = trimmed
	}
	if *topK > 0 {
		cfg.TopK = *topK
	}

	logger.Info("storesense: startup initiated",
		"addr", cfg.ListenAddr, "corpus_root", cfg.CorpusRoot, "stats_db", cfg.StatsDBPath)

	embeddings := embedding.NewService(func() (embedding.Embedder, error) {
		return embedding.NewOpenAIEmbedderFromEnv()
	})
	embeddings.Warm()

	provider := llm.NewProvider()
	logger.Info("storesense: llm provider ready", "provider", provider.Name())
	gateway := llm.NewGateway(provider,
		llm.WithAttempts(cfg.GenerateAttempts),
		llm.WithBackoff(cfg.GenerateBackoff),
		llm.WithMaxOutputTokens(cfg.MaxOutputTokens),
	)

	opts := make([]report.Option, 0, 2)
	metricsStore, err := stats.Open(ctx, cfg.StatsDBPath)
	if err != nil {
		logger.Warn("storesense: metrics store unavailable, baseline reports disabled", "error", err)
	} else {
		defer metricsStore.Close()
		opts = append(opts, report.WithReporter(stats.NewReporter(metricsStore)))
		if cfg.TrendClientID != "" && cfg.TrendClientSecret != "" {
			trendClient := trend.NewClient(cfg.TrendClientID, cfg.TrendClientSecret,
				trend.WithEndpoint(cfg.TrendEndpoint))
			opts = append(opts, report.WithTrends(trend.NewService(provider, trendClient)))
		} else {
			logger.Info("storesense: trend credentials not set, keyword trends disabled")
		}
	}

	builder := report.NewBuilder(cfg, corpus.NewCatalog(), embeddings, gateway, opts...)
	server := api.NewServer(builder)

	logger.Info("storesense: server listening", "addr", cfg.ListenAddr, "health", "/healthz")
	fmt.Printf("Serving on %s\n", cfg.ListenAddr)
	reachable := cfg.ListenAddr
	if strings.HasPrefix(reachable, ":") {
		reachable = "localhost" + reachable
	}
	logger.Info("storesense: verify reachability",
		"suggestion", fmt.Sprintf("curl http://%s/healthz", reachable))
	srv := &http.Server{Addr: cfg.ListenAddr, Handler: server}
	go func() {
		<-ctx.Done()
		logger.Info("storesense: shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("storesense: shutdown failed", "error", err)
		}
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("storesense: server stopped", "error", err)
		fmt.Println("server stopped:", err)
		return
	}
	logger.Info("storesense: server stopped")
}
