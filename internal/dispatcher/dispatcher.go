// Package dispatcher implements C13: bounded-concurrency execution of
// Pipeline.Arun over many URLs, gated by a semaphore and a background
// memory observer.
package dispatcher

import (
	"context"
	"net/url"
	"time"

	"github.com/rohmanhakim/docs-crawler/internal/config"
	"github.com/rohmanhakim/docs-crawler/internal/metadata"
	"github.com/rohmanhakim/docs-crawler/internal/pipeline"
	"github.com/rohmanhakim/docs-crawler/pkg/limiter"
	"github.com/shirou/gopsutil/v3/mem"
	"golang.org/x/sync/errgroup"
)

/*
Responsibilities

- Run Pipeline.Arun over many URLs at once, bounded by SemaphoreCount
- Pause admission of new work while system memory usage exceeds
  MemoryThresholdPercent, resuming once it drops back down
- Preserve per-URL independence: one URL's failure never cancels the
  others (mirrors Pipeline.ArunMany, just concurrent)
- Offer both a buffered (Run) and a streaming (RunStream) form
- Keep each host's request pace polite across however many goroutines
  are hitting it at once, via a shared per-host limiter.RateLimiter

Dispatcher never decides crawl scope or ordering; it only decides how
many Arun calls may be in flight at once. Scope/ordering is C14's job.
*/

const dispatcherPackageName = "dispatcher"

// memSampleInterval is how often the background observer re-checks
// system memory usage while a Run/RunStream call is in flight.
const memSampleInterval = 200 * time.Millisecond

// Dispatcher bounds concurrent Pipeline.Arun calls and backs off when
// system memory pressure crosses a configured threshold.
type Dispatcher struct {
	pipeline     *pipeline.Pipeline
	metadataSink metadata.MetadataSink
	memUsage     func() (float64, error)
	rateLimiter  limiter.RateLimiter
}

// New constructs a Dispatcher around p. metadataSink may be nil.
func New(p *pipeline.Pipeline, metadataSink metadata.MetadataSink) *Dispatcher {
	return &Dispatcher{
		pipeline:     p,
		metadataSink: metadataSink,
		memUsage:     sampleMemoryUsedPercent,
		rateLimiter:  limiter.NewConcurrentRateLimiter(),
	}
}

// NewWithRateLimiter is New, with an injected RateLimiter for tests that
// need to control or observe per-host pacing directly.
func NewWithRateLimiter(p *pipeline.Pipeline, metadataSink metadata.MetadataSink, rateLimiter limiter.RateLimiter) *Dispatcher {
	return &Dispatcher{
		pipeline:     p,
		metadataSink: metadataSink,
		memUsage:     sampleMemoryUsedPercent,
		rateLimiter:  rateLimiter,
	}
}

// configureRateLimiter primes the shared limiter from cfg before a
// Run/RunStream call starts dispatching. cfg.MeanDelay()/cfg.MaxRange()
// define the (lo, hi) range OnResponse's adaptive delay decays toward and
// Wait samples from for hosts with no adaptive state yet; cfg.MaxAttempt()
// caps how many 429/503 responses a host tolerates before OnResponse
// reports it exhausted.
func (d *Dispatcher) configureRateLimiter(cfg config.Config) {
	if d.rateLimiter == nil {
		return
	}
	d.rateLimiter.SetBaseDelay(cfg.BaseDelay())
	d.rateLimiter.SetJitter(cfg.Jitter())
	if cfg.RandomSeed() != 0 {
		d.rateLimiter.SetRandomSeed(cfg.RandomSeed())
	}
	if setRange, ok := d.rateLimiter.(interface {
		SetBaseDelayRange(lo, hi time.Duration)
	}); ok {
		lo := cfg.MeanDelay() - cfg.MaxRange()/2
		if lo < 0 {
			lo = 0
		}
		setRange.SetBaseDelayRange(lo, cfg.MeanDelay()+cfg.MaxRange()/2)
	}
	if setMaxRetries, ok := d.rateLimiter.(interface{ SetMaxRetries(int) }); ok {
		setMaxRetries.SetMaxRetries(cfg.MaxAttempt())
	}
}

// throttle blocks until rawURL's host clears the rate limiter, then folds
// the resulting CrawlResult's status code back into the limiter's
// per-host adaptive state.
func (d *Dispatcher) throttle(rawURL string, fn func() pipeline.CrawlResult) pipeline.CrawlResult {
	if d.rateLimiter == nil {
		return fn()
	}
	host := hostOf(rawURL)
	d.rateLimiter.Wait(host)
	result := fn()
	d.rateLimiter.OnResponse(host, result.StatusCode)
	return result
}

func hostOf(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return parsed.Host
}

func sampleMemoryUsedPercent() (float64, error) {
	v, err := mem.VirtualMemory()
	if err != nil {
		return 0, err
	}
	return v.UsedPercent, nil
}

// Run dispatches one Pipeline.Arun per url, bounded by
// cfg.SemaphoreCount() concurrent calls, and returns every result once
// all urls have been processed. Result order matches input order.
func (d *Dispatcher) Run(ctx context.Context, urls []string, cfg config.Config, opts pipeline.Options) []pipeline.CrawlResult {
	results := make([]pipeline.CrawlResult, len(urls))

	d.configureRateLimiter(cfg)
	sem := make(chan struct{}, maxConcurrency(cfg))
	memGate := d.newMemoryGate(ctx, cfg)
	defer memGate.stop()

	g, gctx := errgroup.WithContext(ctx)
	for i, u := range urls {
		i, u := i, u
		g.Go(func() error {
			select {
			case <-gctx.Done():
				results[i] = pipeline.CrawlResult{URL: u, ErrorMessage: "cancelled"}
				return nil
			default:
			}
			select {
			case sem <- struct{}{}:
			case <-gctx.Done():
				results[i] = pipeline.CrawlResult{URL: u, ErrorMessage: "cancelled"}
				return nil
			}
			defer func() { <-sem }()

			memGate.wait(gctx)

			results[i] = d.throttle(u, func() pipeline.CrawlResult {
				return d.pipeline.Arun(gctx, u, cfg, opts)
			})
			return nil
		})
	}
	// errgroup.Group.Go's func never returns a non-nil error here (every
	// failure is folded into a CrawlResult), so Wait only ever surfaces
	// ctx cancellation, which the per-task select above already handles.
	_ = g.Wait()

	return results
}

// RunStream is Run's streaming counterpart: it dispatches the same
// bounded-concurrency work but emits each CrawlResult on the returned
// channel as soon as it completes, instead of waiting for the whole
// batch. The channel is closed once every url has been processed or ctx
// is cancelled.
func (d *Dispatcher) RunStream(ctx context.Context, urls []string, cfg config.Config, opts pipeline.Options) <-chan pipeline.CrawlResult {
	out := make(chan pipeline.CrawlResult)

	go func() {
		defer close(out)

		d.configureRateLimiter(cfg)
		sem := make(chan struct{}, maxConcurrency(cfg))
		memGate := d.newMemoryGate(ctx, cfg)
		defer memGate.stop()

		g, gctx := errgroup.WithContext(ctx)
		for _, u := range urls {
			u := u
			g.Go(func() error {
				select {
				case <-gctx.Done():
					out <- pipeline.CrawlResult{URL: u, ErrorMessage: "cancelled"}
					return nil
				default:
				}
				select {
				case sem <- struct{}{}:
				case <-gctx.Done():
					out <- pipeline.CrawlResult{URL: u, ErrorMessage: "cancelled"}
					return nil
				}
				defer func() { <-sem }()

				memGate.wait(gctx)

				result := d.throttle(u, func() pipeline.CrawlResult {
					return d.pipeline.Arun(gctx, u, cfg, opts)
				})
				select {
				case out <- result:
				case <-gctx.Done():
				}
				return nil
			})
		}
		_ = g.Wait()
	}()

	return out
}

func maxConcurrency(cfg config.Config) int {
	n := cfg.SemaphoreCount()
	if n <= 0 {
		n = 1
	}
	return n
}
