// File path: internal/embedding/service.go
package embedding

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/jbpark-dev/storesense/internal/common"
)

// Initialization of the underlying model is expensive, so the service
// defers it to one background task and lets callers block until it
// completes. At most maxConcurrentBatches Embed calls run at once to
// bound CPU contention with the rest of the process.
const maxConcurrentBatches = 4

// ErrNotReady reports that the embedder has not finished initializing.
// Callers that treat embedding as an enhancement check Ready instead of
// waiting.
var ErrNotReady = errors.New("embedding: service not ready")

// Factory produces the shared embedder instance. It runs once regardless
// of how many callers race on first use.
type Factory func() (Embedder, error)

// Service wraps a lazily-initialized shared Embedder. Warm starts the
// initialization in the background; WaitReady blocks on a condition
// variable until the instance exists (or initialization failed).
type Service struct {
	mu       sync.Mutex
	cond     *sync.Cond
	factory  Factory
	embedder Embedder
	initErr  error
	started  bool
	done     bool

	sem   *semaphore.Weighted
	cache *vectorCache
}

func NewService(factory Factory) *Service {
	s := &Service{
		factory: factory,
		sem:     semaphore.NewWeighted(maxConcurrentBatches),
		cache:   newVectorCache(512),
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// NewServiceWith returns a service that is already initialized with the
// given embedder. Used by tests and callers that construct the embedder
// eagerly.
func NewServiceWith(embedder Embedder) *Service {
	s := NewService(nil)
	s.embedder = embedder
	s.started = true
	s.done = true
	return s
}

// Warm kicks off background initialization. Safe to call more than once;
// only the first call starts the factory.
func (s *Service) Warm() {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	if s.factory == nil {
		// surfaces through WaitReady instead of crashing the goroutine
		s.initErr = errors.New("embedding: no embedder factory configured")
		s.done = true
		s.cond.Broadcast()
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	go func() {
		logger := common.Logger()
		logger.Info("embedding: background initialization started")
		start := time.Now()
		embedder, err := s.factory()

		s.mu.Lock()
		s.embedder = embedder
		s.initErr = err
		s.done = true
		s.cond.Broadcast()
		s.mu.Unlock()

		if err != nil {
			logger.Error("embedding: initialization failed", "error", err)
			return
		}
		logger.Info("embedding: initialization complete", "elapsed", time.Since(start).Round(time.Millisecond))
	}()
}

// Ready reports whether the embedder initialized successfully.
func (s *Service) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done && s.initErr == nil && s.embedder != nil
}

// WaitReady blocks until initialization finishes or ctx is done,
// starting the initialization if nothing has yet. Initialization failure
// is returned to every waiter.
func (s *Service) WaitReady(ctx context.Context) error {
	s.Warm()

	waitDone := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			s.cond.Broadcast()
		case <-waitDone:
		}
	}()
	defer close(waitDone)

	s.mu.Lock()
	defer s.mu.Unlock()
	for !s.done {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.cond.Wait()
	}
	if s.initErr != nil {
		return s.initErr
	}
	return ctx.Err()
}

// Embed delegates to the shared embedder, blocking until it is ready.
// Vectors are served from the LRU where possible; only misses reach the
// embedder.
func (s *Service) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := s.WaitReady(ctx); err != nil {
		return nil, err
	}

	vectors := make([][]float32, len(texts))
	var missing []string
	var missingIdx []int
	for i, text := range texts {
		if vec, ok := s.cache.Get(text); ok {
			vectors[i] = vec
			continue
		}
		missing = append(missing, text)
		missingIdx = append(missingIdx, i)
	}
	if len(missing) == 0 {
		return vectors, nil
	}

	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer s.sem.Release(1)

	s.mu.Lock()
	embedder := s.embedder
	s.mu.Unlock()
	embedded, err := embedder.Embed(ctx, missing)
	if err != nil {
		return nil, err
	}
	if len(embedded) != len(missing) {
		return nil, errors.New("embedding: embedder returned wrong vector count")
	}
	for i, vec := range embedded {
		vectors[missingIdx[i]] = vec
		s.cache.Set(missing[i], vec)
	}
	return vectors, nil
}

// EmbedIfReady embeds only when initialization has already completed,
// returning ErrNotReady otherwise. Alignment uses this so it degrades
// instead of blocking a report on model warm-up.
func (s *Service) EmbedIfReady(ctx context.Context, texts []string) ([][]float32, error) {
	if !s.Ready() {
		return nil, ErrNotReady
	}
	return s.Embed(ctx, texts)
}

// Dimension reports the embedder dimension, or zero before readiness.
func (s *Service) Dimension() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.embedder == nil {
		return 0
	}
	return s.embedder.Dimension()
}
