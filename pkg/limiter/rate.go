package limiter

import (
	"math/rand"
	"sync"
	"time"

	"github.com/rohmanhakim/docs-crawler/pkg/timeutil"
)

// RateLimiter
// Specialized component to manage rate limiting during crawling
// Responsibilities:
// - Bookkeep each hostname's last fetch timestamp
// - Compute the final delay for each hostname given various factors
// - Make sure the crawling process respect the server's policy
type RateLimiter interface {
	SetBaseDelay(baseDelay time.Duration)
	SetJitter(jitter time.Duration)
	SetRandomSeed(randomSeed int64)
	SetCrawlDelay(host string, delay time.Duration)
	Backoff(host string)
	ResetBackoff(host string)
	MarkLastFetchAsNow(host string)
	SetRNG(rng interface{})
	ResolveDelay(host string) time.Duration
	Wait(host string)
	OnResponse(host string, statusCode int) bool
}

var defaultBackoffParam = timeutil.NewBackoffParam(1*time.Second, 2.0, 30*time.Second)

type ConcurrentRateLimiter struct {
	mu           sync.RWMutex
	rngMu        sync.Mutex
	baseDelay    time.Duration
	jitter       time.Duration
	backoffParam timeutil.BackoffParam
	hostTimings  map[string]hostTiming
	rng          *rand.Rand

	// base_delay_lo/hi, current_delay[host], retry_count[host],
	// max_delay, max_retries: the per-host adaptive delay range
	// driven directly by upstream 429/503 responses.
	baseDelayLo  time.Duration
	baseDelayHi  time.Duration
	maxDelay     time.Duration
	maxRetries   int
	currentDelay map[string]time.Duration
	retryCount   map[string]int
}

func NewConcurrentRateLimiter() *ConcurrentRateLimiter {
	return &ConcurrentRateLimiter{
		backoffParam: defaultBackoffParam,
		hostTimings:  make(map[string]hostTiming),
		currentDelay: make(map[string]time.Duration),
		retryCount:   make(map[string]int),
		rng:          rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *ConcurrentRateLimiter) SetBaseDelay(baseDelay time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.baseDelay = baseDelay
}

func (r *ConcurrentRateLimiter) SetJitter(jitter time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.jitter = jitter
}

func (r *ConcurrentRateLimiter) SetRandomSeed(randomSeed int64) {
	r.rngMu.Lock()
	defer r.rngMu.Unlock()

	r.rng = rand.New(rand.NewSource(randomSeed))
}

// SetBackoffParam replaces the exponential-backoff curve (initial delay,
// multiplier, cap) used by Backoff.
func (r *ConcurrentRateLimiter) SetBackoffParam(param timeutil.BackoffParam) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.backoffParam = param
}

// SetBaseDelayRange configures the (base_delay_lo, base_delay_hi) range
// that OnResponse decays current_delay[host] toward, and that Wait draws
// a uniform per-request delay from when a host has no adaptive state yet.
func (r *ConcurrentRateLimiter) SetBaseDelayRange(lo, hi time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.baseDelayLo = lo
	r.baseDelayHi = hi
}

// SetMaxDelay caps how far OnResponse can grow current_delay[host].
func (r *ConcurrentRateLimiter) SetMaxDelay(maxDelay time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.maxDelay = maxDelay
}

// SetMaxRetries caps retry_count[host] before OnResponse reports the
// host exhausted.
func (r *ConcurrentRateLimiter) SetMaxRetries(maxRetries int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.maxRetries = maxRetries
}

// Set delay to given host, separated from global base delay
func (r *ConcurrentRateLimiter) SetCrawlDelay(host string, delay time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	currentHostTiming, exists := r.hostTimings[host]
	if exists {
		currentHostTiming.crawlDelay = delay
		r.hostTimings[host] = currentHostTiming
	} else {
		r.hostTimings[host] = hostTiming{
			crawlDelay: delay,
		}
	}
}

// Backoff triggers exponential backoff for the given host.
// It increments the backoff counter and computes the delay.
func (r *ConcurrentRateLimiter) Backoff(host string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	currentHostTiming, exists := r.hostTimings[host]
	count := 1
	if exists {
		count = currentHostTiming.backoffCount + 1
	}

	delay := r.exponentialBackoffDelayLocked(count)

	currentHostTiming.backoffCount = count
	currentHostTiming.backoffDelay = delay
	r.hostTimings[host] = currentHostTiming
}

// exponentialBackoffDelayLocked computes exponential backoff based on
// count using the configured jitter and backoffParam. Caller must hold
// r.mu (the RNG draw is independently protected by rngMu).
func (r *ConcurrentRateLimiter) exponentialBackoffDelayLocked(backoffCount int) time.Duration {
	rng := r.rngSnapshot()
	delay := timeutil.ExponentialBackoffDelay(backoffCount, r.jitter, *rng, r.backoffParam)
	r.rngSync(rng)
	return delay
}

// ResetBackoff resets the backoff counter for the given host.
// Called after a successful request to clear backoff state.
func (r *ConcurrentRateLimiter) ResetBackoff(host string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	currentHostTiming, exists := r.hostTimings[host]
	if exists {
		currentHostTiming.backoffCount = 0
		currentHostTiming.backoffDelay = time.Duration(0)
		r.hostTimings[host] = currentHostTiming
	}
}

// Mark the given host lastFetch to time.Now()
func (r *ConcurrentRateLimiter) MarkLastFetchAsNow(host string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	currentHostTiming, exists := r.hostTimings[host]
	if exists {
		currentHostTiming.lastFetchAt = time.Now()
		r.hostTimings[host] = currentHostTiming
	} else {
		r.hostTimings[host] = hostTiming{
			lastFetchAt: time.Now(),
		}
	}
}

// rngSnapshot takes the live *rand.Rand under rngMu, initializing it on
// first use, and hands the caller a value copy to draw from outside the
// lock. rngSync writes the advanced state back.
func (r *ConcurrentRateLimiter) rngSnapshot() *rand.Rand {
	r.rngMu.Lock()
	defer r.rngMu.Unlock()

	if r.rng == nil {
		r.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	snapshot := *r.rng
	return &snapshot
}

func (r *ConcurrentRateLimiter) rngSync(snapshot *rand.Rand) {
	r.rngMu.Lock()
	defer r.rngMu.Unlock()

	*r.rng = *snapshot
}

// SetRNG allows injecting a custom random number generator for testing
func (r *ConcurrentRateLimiter) SetRNG(rng interface{}) {
	if randImpl, ok := rng.(*rand.Rand); ok {
		r.rngMu.Lock()
		r.rng = randImpl
		r.rngMu.Unlock()
	}
}

// Compute the final delay resolution for given host
// FinalDelay = max(BaseDelay, crawlDelay, BackoffDelay) + Jitter
func (r *ConcurrentRateLimiter) ResolveDelay(host string) time.Duration {
	// copy needed state under read lock, then compute without holding r.mu
	r.mu.RLock()
	currentHostTiming, exists := r.hostTimings[host]
	base := r.baseDelay
	jitter := r.jitter
	r.mu.RUnlock()

	// return no delay if the host not registered yet
	if !exists {
		return time.Duration(0)
	}

	delays := []time.Duration{base, currentHostTiming.crawlDelay, currentHostTiming.backoffDelay}

	// compute the highest delay between BaseDelay, crawlDelay, and BackoffDelay
	finalDelay := timeutil.MaxDuration(delays)

	// add jitter to the final delay
	rng := r.rngSnapshot()
	finalDelay += timeutil.ComputeJitter(jitter, *rng)
	r.rngSync(rng)

	elapsed := time.Since(currentHostTiming.lastFetchAt)

	// return the remaining time since the host last been fetched,
	// else don't delay
	if elapsed < finalDelay {
		return finalDelay - elapsed
	}

	return time.Duration(0)
}

// Wait blocks until host's (base_delay_lo, base_delay_hi, current_delay)
// contract is satisfied: last_request[host] + uniform(current_delay).
// A host with no adaptive state yet draws its delay from the configured
// base range on every call, matching "no memory until throttled".
func (r *ConcurrentRateLimiter) Wait(host string) {
	delay := r.resolveAdaptiveDelay(host)

	r.mu.RLock()
	last, seen := r.hostTimings[host]
	r.mu.RUnlock()

	if seen {
		if elapsed := time.Since(last.lastFetchAt); elapsed < delay {
			time.Sleep(delay - elapsed)
		}
	} else if delay > 0 {
		time.Sleep(delay)
	}

	r.MarkLastFetchAsNow(host)
}

func (r *ConcurrentRateLimiter) resolveAdaptiveDelay(host string) time.Duration {
	r.mu.RLock()
	current, hasCurrent := r.currentDelay[host]
	lo, hi := r.baseDelayLo, r.baseDelayHi
	r.mu.RUnlock()

	if !hasCurrent {
		current = lo
		if hi > lo {
			rng := r.rngSnapshot()
			current = lo + timeutil.ComputeJitter(hi-lo, *rng)
			r.rngSync(rng)
		}
	}
	return current
}

// OnResponse folds an HTTP status observed for host into the adaptive
// delay state. 429/503 doubles current_delay[host] (capped at max_delay)
// and increments retry_count[host]; any other status decays
// current_delay[host] back toward base_delay_lo and clears retry_count.
// It returns false once retry_count[host] has exceeded max_retries,
// signaling the caller to stop retrying this host.
func (r *ConcurrentRateLimiter) OnResponse(host string, statusCode int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if statusCode == 429 || statusCode == 503 {
		current, ok := r.currentDelay[host]
		if !ok || current < r.baseDelayLo {
			current = r.baseDelayLo
		}
		if current == 0 {
			current = time.Second
		} else {
			current *= 2
		}
		if r.maxDelay > 0 && current > r.maxDelay {
			current = r.maxDelay
		}
		r.currentDelay[host] = current

		r.retryCount[host]++
		return r.maxRetries <= 0 || r.retryCount[host] <= r.maxRetries
	}

	// decay back toward the base range
	current, ok := r.currentDelay[host]
	if ok && current > r.baseDelayLo {
		decayed := current / 2
		if decayed < r.baseDelayLo {
			decayed = r.baseDelayLo
		}
		r.currentDelay[host] = decayed
	}
	r.retryCount[host] = 0
	return true
}

func (r *ConcurrentRateLimiter) BaseDelay() time.Duration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.baseDelay
}

func (r *ConcurrentRateLimiter) Jitter() time.Duration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.jitter
}

func (r *ConcurrentRateLimiter) RNG() *rand.Rand {
	r.rngMu.Lock()
	defer r.rngMu.Unlock()
	return r.rng
}

func (r *ConcurrentRateLimiter) HostTimings() map[string]hostTiming {
	r.mu.RLock()
	defer r.mu.RUnlock()

	// return a shallow copy to avoid exposing internal map for mutation
	copyMap := make(map[string]hostTiming, len(r.hostTimings))
	for k, v := range r.hostTimings {
		copyMap[k] = v
	}
	return copyMap
}

// RetryCount reports retry_count[host] as last updated by OnResponse.
func (r *ConcurrentRateLimiter) RetryCount(host string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.retryCount[host]
}

// CurrentDelay reports current_delay[host] as last updated by OnResponse.
func (r *ConcurrentRateLimiter) CurrentDelay(host string) time.Duration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.currentDelay[host]
}
