package prefetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Sternrassler/http-cache-client/pkg/client"
	"github.com/Sternrassler/http-cache-client/pkg/logging"
)

// ErrPartialWarm is returned when some targets could not be fetched.
var ErrPartialWarm = errors.New("some targets failed to warm")

// Config holds warmer configuration.
type Config struct {
	// MaxConcurrency is the maximum number of parallel requests.
	MaxConcurrency int

	// Timeout per target fetch.
	Timeout time.Duration

	// Header is sent with every request.
	Header http.Header
}

// DefaultConfig returns the default warmer configuration.
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 8,
		Timeout:        15 * time.Second,
	}
}

// Getter is the part of the caching client the warmer needs.
type Getter interface {
	Get(ctx context.Context, target string, header http.Header) (*client.Response, error)
}

// Result is the outcome of warming a single target.
type Result struct {
	Target      string             `json:"target"`
	StatusCode  int                `json:"status_code,omitempty"`
	CacheStatus client.CacheStatus `json:"cache_status,omitempty"`
	Error       string             `json:"error,omitempty"`
}

// Warmer fetches targets in parallel using a worker pool.
type Warmer struct {
	getter Getter
	config Config
	logger zerolog.Logger
}

// NewWarmer creates a new Warmer.
func NewWarmer(getter Getter, config Config) *Warmer {
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = 8
	}
	if config.Timeout <= 0 {
		config.Timeout = 15 * time.Second
	}

	return &Warmer{
		getter: getter,
		config: config,
		logger: logging.NewLogger(logging.ComponentPrefetch),
	}
}

// Warm fetches every distinct target once. Results are keyed by target.
// The error wraps ErrPartialWarm when any target failed; results for the
// others are still returned. A cancelled ctx stops fetching and the error
// also wraps ctx.Err().
func (w *Warmer) Warm(ctx context.Context, targets []string) (map[string]Result, error) {
	start := time.Now()

	queue := make(chan string, len(targets))
	seen := make(map[string]bool, len(targets))
	for _, target := range targets {
		if target == "" || seen[target] {
			continue
		}
		seen[target] = true
		queue <- target
	}
	close(queue)

	results := make(map[string]Result, len(seen))
	var mu sync.Mutex

	workers := w.config.MaxConcurrency
	if workers > len(seen) {
		workers = len(seen)
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			processed := 0

			for target := range queue {
				if ctx.Err() != nil {
					mu.Lock()
					results[target] = Result{Target: target, Error: ctx.Err().Error()}
					mu.Unlock()
					continue
				}

				res := w.fetch(ctx, target)
				mu.Lock()
				results[target] = res
				mu.Unlock()
				processed++
			}

			w.logger.Debug().
				Int("worker_id", workerID).
				Int("targets_processed", processed).
				Msg("Worker completed")
		}(i)
	}
	wg.Wait()

	failed := 0
	for _, res := range results {
		if res.Error != "" {
			failed++
		}
	}

	w.logger.Info().
		Int("targets", len(results)).
		Int("failed", failed).
		Dur("duration", time.Since(start)).
		Msg("Warm complete")

	if err := ctx.Err(); err != nil {
		return results, fmt.Errorf("%w (%d/%d): %w", ErrPartialWarm, failed, len(results), err)
	}
	if failed > 0 {
		return results, fmt.Errorf("%w (%d/%d)", ErrPartialWarm, failed, len(results))
	}
	return results, nil
}

func (w *Warmer) fetch(ctx context.Context, target string) Result {
	fetchCtx, cancel := context.WithTimeout(ctx, w.config.Timeout)
	defer cancel()

	resp, err := w.getter.Get(fetchCtx, target, w.config.Header)
	if err != nil {
		w.logger.Warn().Err(err).Str("target", target).Msg("Warm fetch failed")
		return Result{Target: target, Error: err.Error()}
	}
	return Result{
		Target:      target,
		StatusCode:  resp.StatusCode,
		CacheStatus: resp.CacheStatus,
	}
}
