package metadata

import (
	"sync"
	"time"
)

/*
Metadata Collected
- Fetch timestamps
- HTTP status codes
- Content hashes
- Crawl depth

Logging Goals
- Debuggable crawl behavior
- Post-run auditability
- Failure diagnostics

Structured logging is preferred.

Allowed:
- Primitive values
- Timestamps
- URLs (as values, not objects with behavior)
- Hashes
- Status codes
- Durations
- Identifiers (page ID, crawl ID)
*/

// MetadataSink is the observability surface every pipeline package writes
// to. It accumulates records rather than emitting log lines, so crawl
// metadata stays queryable instead of scattered across a log stream.
type MetadataSink interface {
	RecordFetch(fetchURL string, httpStatus int, duration time.Duration, contentType string, retryCount int, crawlDepth int)
	RecordAssetFetch(fetchURL string, httpStatus int, duration time.Duration, retryCount int)
	RecordError(observedAt time.Time, packageName string, action string, cause ErrorCause, errorString string, attrs []Attribute)
	RecordArtifact(kind ArtifactKind, path string, attrs []Attribute)
}

// CrawlFinalizer records the terminal, derived summary of a completed
// crawl. It is recorded exactly once and must not influence scheduling,
// retries, or crawl termination.
type CrawlFinalizer interface {
	RecordFinalCrawlStats(totalPages int, totalErrors int, totalAssets int, duration time.Duration)
}

// Recorder is the default MetadataSink/CrawlFinalizer: an in-memory,
// thread-safe accumulator of everything a crawl run observes. It keeps no
// logging framework in the loop; the accumulated slices are the record.
type Recorder struct {
	label string

	mu          sync.Mutex
	fetchEvents []FetchEvent
	errors      []ErrorRecord
	artifacts   []ArtifactRecord
	finalStats  []crawlStats
}

// NewRecorder creates a Recorder tagged with label, identifying which
// worker or run produced the records it accumulates.
func NewRecorder(label string) Recorder {
	return Recorder{label: label}
}

// Label returns the identifier this recorder was constructed with.
func (r *Recorder) Label() string {
	return r.label
}

func (r *Recorder) RecordFetch(fetchURL string, httpStatus int, duration time.Duration, contentType string, retryCount int, crawlDepth int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fetchEvents = append(r.fetchEvents, FetchEvent{
		fetchUrl:    fetchURL,
		httpStatus:  httpStatus,
		duration:    duration,
		contentType: contentType,
		retryCount:  retryCount,
		crawlDepth:  crawlDepth,
	})
}

func (r *Recorder) RecordAssetFetch(fetchURL string, httpStatus int, duration time.Duration, retryCount int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fetchEvents = append(r.fetchEvents, FetchEvent{
		fetchUrl:   fetchURL,
		httpStatus: httpStatus,
		duration:   duration,
		retryCount: retryCount,
	})
}

func (r *Recorder) RecordError(observedAt time.Time, packageName string, action string, cause ErrorCause, errorString string, attrs []Attribute) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, ErrorRecord{
		packageName: packageName,
		action:      action,
		cause:       cause,
		errorString: errorString,
		observedAt:  observedAt,
		attrs:       attrs,
	})
}

func (r *Recorder) RecordArtifact(kind ArtifactKind, path string, attrs []Attribute) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.artifacts = append(r.artifacts, ArtifactRecord{
		kind:  kind,
		paths: path,
		attrs: attrs,
	})
}

func (r *Recorder) RecordFinalCrawlStats(totalPages int, totalErrors int, totalAssets int, duration time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finalStats = append(r.finalStats, crawlStats{
		totalPages:  totalPages,
		totalErrors: totalErrors,
		totalAssets: totalAssets,
		durationMs:  duration.Milliseconds(),
	})
}

// FetchEventCount returns how many fetch/asset-fetch events have been
// recorded so far. Useful for tests and end-of-run summaries.
func (r *Recorder) FetchEventCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.fetchEvents)
}

// ErrorCount returns how many errors have been recorded so far.
func (r *Recorder) ErrorCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.errors)
}
