// File path: internal/llm/gateway.go
package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/jbpark-dev/storesense/internal/common"
	"github.com/jbpark-dev/storesense/internal/common/telemetry"
)

// ErrGenerationFailed reports that every generation attempt failed. It is
// distinct from a successful call returning empty text, which callers
// treat as "no content".
var ErrGenerationFailed = errors.New("llm: generation failed")

const (
	defaultAttempts = 2
	defaultBackoff  = 2 * time.Second
)

// CacheKey identifies one generation outcome. Identical keys never
// re-invoke the backend while the cached entry exists.
type CacheKey struct {
	StoreCode string
	Mode      string
	Context   string
}

func (k CacheKey) hash() string {
	h := sha256.New()
	h.Write([]byte(k.StoreCode))
	h.Write([]byte{0})
	h.Write([]byte(k.Mode))
	h.Write([]byte{0})
	h.Write([]byte(k.Context))
	return hex.EncodeToString(h.Sum(nil))
}

// Result is a generation outcome. Elapsed covers the backend call only
// and is zero on a cache hit.
type Result struct {
	Text    string
	Cached  bool
	Elapsed time.Duration
}

// Gateway invokes the generation backend with bounded retry, an output
// length cap, and a content-addressed result cache. The cache lives for
// the process lifetime and is never evicted. Concurrent requests for the
// same key collapse into a single backend call.
type Gateway struct {
	provider        Provider
	attempts        int
	backoff         time.Duration
	maxOutputTokens int

	mu    sync.RWMutex
	cache map[string]Result
	group singleflight.Group

	// sleep is swapped out by tests to avoid real backoff waits.
	sleep func(time.Duration)
}

type GatewayOption func(*Gateway)

// WithAttempts sets the total attempt budget (including the first try).
func WithAttempts(n int) GatewayOption {
	return func(g *Gateway) {
		if n > 0 {
			g.attempts = n
		}
	}
}

// WithBackoff sets the fixed wait between attempts.
func WithBackoff(d time.Duration) GatewayOption {
	return func(g *Gateway) {
		if d > 0 {
			g.backoff = d
		}
	}
}

// WithMaxOutputTokens caps response length to bound latency and cost.
func WithMaxOutputTokens(n int) GatewayOption {
	return func(g *Gateway) {
		if n > 0 {
			g.maxOutputTokens = n
		}
	}
}

func NewGateway(provider Provider, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		provider: provider,
		attempts: defaultAttempts,
		backoff:  defaultBackoff,
		cache:    make(map[string]Result),
		sleep:    time.Sleep,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g
}

// Generate runs the prompt through the backend, retrying transient
// failures up to the attempt budget with a fixed backoff, and failing
// with ErrGenerationFailed only after the budget is exhausted.
func (g *Gateway) Generate(ctx context.Context, prompt string) (string, error) {
	logger := common.Logger()
	var lastErr error
	for attempt := 1; attempt <= g.attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		start := time.Now()
		text, err := g.provider.Generate(ctx, prompt, g.maxOutputTokens)
		if err == nil {
			logger.Debug("llm: generation succeeded", "attempt", attempt,
				"elapsed", time.Since(start).Round(time.Millisecond))
			return text, nil
		}
		lastErr = err
		logger.Warn("llm: generation attempt failed", "attempt", attempt,
			"attempts", g.attempts, "error", err)
		if attempt < g.attempts {
			g.sleep(g.backoff)
		}
	}
	return "", fmt.Errorf("%w after %d attempts: %v", ErrGenerationFailed, g.attempts, lastErr)
}

// GenerateCached short-circuits on a cache hit for the key and otherwise
// generates, storing the outcome. Concurrent callers with an identical
// key share one backend call.
func (g *Gateway) GenerateCached(ctx context.Context, key CacheKey, prompt string) (Result, error) {
	hash := key.hash()
	if result, ok := g.lookup(hash); ok {
		common.Logger().Info("llm: cache hit", "store_code", key.StoreCode, "mode", key.Mode)
		telemetry.RecordGeneration(key.Mode, true, 0)
		return result, nil
	}
	value, err, _ := g.group.Do(hash, func() (interface{}, error) {
		if result, ok := g.lookup(hash); ok {
			return result, nil
		}
		start := time.Now()
		text, err := g.Generate(ctx, prompt)
		if err != nil {
			return Result{}, err
		}
		result := Result{Text: text, Elapsed: time.Since(start)}
		telemetry.RecordGeneration(key.Mode, false, result.Elapsed)
		g.mu.Lock()
		g.cache[hash] = result
		g.mu.Unlock()
		common.Logger().Info("llm: cache store", "store_code", key.StoreCode, "mode", key.Mode,
			"elapsed", result.Elapsed.Round(time.Millisecond))
		return result, nil
	})
	if err != nil {
		return Result{}, err
	}
	return value.(Result), nil
}

func (g *Gateway) lookup(hash string) (Result, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	result, ok := g.cache[hash]
	if ok {
		result.Cached = true
	}
	return result, ok
}

// CacheLen reports the number of cached generations.
func (g *Gateway) CacheLen() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.cache)
}
