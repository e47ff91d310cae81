package dispatcher

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rohmanhakim/docs-crawler/internal/metadata"
)

// memoryGate samples system memory usage on a timer and blocks new work
// admission whenever usage crosses the configured threshold, per §4.13's
// memory-pressure backoff. It degrades to "never block" if sampling
// itself fails, since a broken memory reader must never stall the crawl.
type memoryGate struct {
	threshold float64
	paused    atomic.Bool
	cancel    context.CancelFunc
	stopped   chan struct{}
}

func (d *Dispatcher) newMemoryGate(parentCtx context.Context, cfgThreshold memoryThresholdSource) *memoryGate {
	ctx, cancel := context.WithCancel(parentCtx)
	g := &memoryGate{
		threshold: cfgThreshold.MemoryThresholdPercent(),
		cancel:    cancel,
		stopped:   make(chan struct{}),
	}
	if g.threshold <= 0 {
		cancel()
		close(g.stopped)
		return g
	}

	go g.watch(ctx, d)
	return g
}

// memoryThresholdSource is the one config accessor the gate needs; kept
// as its own interface so tests can pass a bare struct instead of a full
// config.Config.
type memoryThresholdSource interface {
	MemoryThresholdPercent() float64
}

func (g *memoryGate) watch(ctx context.Context, d *Dispatcher) {
	ticker := time.NewTicker(memSampleInterval)
	defer ticker.Stop()
	defer close(g.stopped)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			usedPercent, err := d.memUsage()
			if err != nil {
				if d.metadataSink != nil {
					d.metadataSink.RecordError(
						time.Now(),
						dispatcherPackageName,
						"memoryGate.watch",
						metadata.CauseInvariantViolation,
						err.Error(),
						nil,
					)
				}
				g.paused.Store(false)
				continue
			}
			g.paused.Store(usedPercent >= g.threshold)
		}
	}
}

// wait blocks the caller while the gate is paused, polling at
// memSampleInterval, until either memory drops back below threshold or
// ctx is cancelled.
func (g *memoryGate) wait(ctx context.Context) {
	if g.threshold <= 0 {
		return
	}
	for g.paused.Load() {
		select {
		case <-ctx.Done():
			return
		case <-time.After(memSampleInterval):
		}
	}
}

// stop cancels the background sampler and waits for it to exit.
func (g *memoryGate) stop() {
	g.cancel()
	<-g.stopped
}
