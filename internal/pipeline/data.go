// Package pipeline implements C11: the per-URL orchestration chain that
// wires C1-C10 into a single arun/arun_many entry point.
package pipeline

import (
	"time"

	"github.com/rohmanhakim/docs-crawler/internal/extraction"
	"github.com/rohmanhakim/docs-crawler/internal/metadatastore"
)

// CrawlResult is the user-visible shape §7 describes:
// { url, success, status_code?, error_message?, ... }.
type CrawlResult struct {
	URL              string
	Success          bool
	StatusCode       int
	ErrorMessage     string
	HTML             string
	CleanedHTML      string
	RawMarkdown      string
	FitMarkdown      string
	ExtractedContent []extraction.Record
	Media            metadatastore.MediaSet
	Links            metadatastore.LinkSet
	Metadata         map[string]string
	ResponseHeaders  map[string]string
	ETag             string
	LastModified     string
	HeadFingerprint  string
	CachedAt         time.Time
	FromCache        bool
	DownloadedFiles  []string
}

// Options carries the run-scoped knobs that config.Config cannot express
// because they are functions, not data: the pluggable extraction
// strategy and its backing callables.
type Options struct {
	// ExtractionStrategy runs over FitMarkdown sections (or, for CSS/
	// XPath strategies, CleanedHTML directly) to produce
	// ExtractedContent. Nil means no extraction is performed.
	ExtractionStrategy extraction.Strategy
	ExtractionConfig   extraction.Config
}
