// File path: internal/common/telemetry/telemetry.go
package telemetry

import (
	"context"
	"expvar"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jbpark-dev/storesense/internal/common"
)

type spanKey struct{}

type span struct {
	name  string
	start time.Time
}

type MemoryLimitError struct {
	Component string
	Usage     uint64
	Limit     uint64
}

func (e MemoryLimitError) Error() string {
	return fmt.Sprintf("memory limit exceeded for %s: %d > %d", e.Component, e.Usage, e.Limit)
}

var (
	initOnce sync.Once

	corpusSearchTotal     *expvar.Int
	corpusSearchLatencyMS *expvar.Int

	generateTotal     *expvar.Map
	generateCacheHits *expvar.Int
	generateLatencyMS *expvar.Map

	reportBuildTotal *expvar.Map
	reportErrorTotal *expvar.Int

	memoryLimitBytes uint64
	memoryLimitVar   *expvar.Int
	memoryUsageVar   *expvar.Int
)

func ensureInit() {
	initOnce.Do(func() {
		corpusSearchTotal = expvar.NewInt("storesense_corpus_search_total")
		corpusSearchLatencyMS = expvar.NewInt("storesense_corpus_search_latency_ms")

		generateTotal = expvar.NewMap("storesense_generate_total")
		generateCacheHits = expvar.NewInt("storesense_generate_cache_hits")
		generateLatencyMS = expvar.NewMap("storesense_generate_latency_ms")

		reportBuildTotal = expvar.NewMap("storesense_report_build_total")
		reportErrorTotal = expvar.NewInt("storesense_report_errors_total")

		memoryLimitVar = expvar.NewInt("storesense_memory_limit_bytes")
		memoryUsageVar = expvar.NewInt("storesense_memory_usage_bytes")

		memoryLimitBytes = loadMemoryLimit()
		memoryLimitVar.Set(int64(memoryLimitBytes))
	})
}

func loadMemoryLimit() uint64 {
	limit := strings.TrimSpace(os.Getenv("STORESENSE_MEMORY_LIMIT_BYTES"))
	if limit != "" {
		if value, err := strconv.ParseUint(limit, 10, 64); err == nil {
			return value
		}
	}
	if limitMB := strings.TrimSpace(os.Getenv("STORESENSE_MEMORY_LIMIT_MB")); limitMB != "" {
		if value, err := strconv.ParseUint(limitMB, 10, 64); err == nil {
			return value * 1024 * 1024
		}
	}
	return 0
}

func StartSpan(ctx context.Context, name string) (context.Context, func(attrs ...interface{})) {
	ensureInit()
	sp := &span{name: name, start: time.Now()}
	ctx = context.WithValue(ctx, spanKey{}, sp)
	logger := common.Logger()
	logger.Debug("trace: start", "span", name)
	return ctx, func(attrs ...interface{}) {
		if sp == nil {
			return
		}
		duration := time.Since(sp.start)
		logger.Debug("trace: end", append([]interface{}{"span", name, "dur", duration}, attrs...)...)
	}
}

func RecordCorpusSearch(duration time.Duration) {
	ensureInit()
	corpusSearchTotal.Add(1)
	if duration > 0 {
		corpusSearchLatencyMS.Add(duration.Milliseconds())
	}
}

func RecordGeneration(mode string, cacheHit bool, duration time.Duration) {
	ensureInit()
	key := strings.TrimSpace(strings.ToLower(mode))
	if key == "" {
		key = "unknown"
	}
	generateTotal.Add(key, 1)
	if cacheHit {
		generateCacheHits.Add(1)
	}
	if duration > 0 {
		generateLatencyMS.Add(key, duration.Milliseconds())
	}
}

func RecordReportBuild(mode string, failed bool) {
	ensureInit()
	key := strings.TrimSpace(strings.ToLower(mode))
	if key == "" {
		key = "unknown"
	}
	reportBuildTotal.Add(key, 1)
	if failed {
		reportErrorTotal.Add(1)
	}
}

func CheckMemoryBudget(component string) error {
	ensureInit()
	if memoryLimitBytes == 0 {
		updateMemoryUsage()
		return nil
	}
	usage := updateMemoryUsage()
	if usage > memoryLimitBytes {
		err := MemoryLimitError{Component: component, Usage: usage, Limit: memoryLimitBytes}
		common.Logger().Warn("telemetry: memory guard tripped", "component", component, "usage", usage, "limit", memoryLimitBytes)
		return err
	}
	return nil
}

func updateMemoryUsage() uint64 {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	usage := stats.Alloc
	memoryUsageVar.Set(int64(usage))
	return usage
}

func SpanDuration(ctx context.Context) time.Duration {
	sp, _ := ctx.Value(spanKey{}).(*span)
	if sp == nil {
		return 0
	}
	return time.Since(sp.start)
}
