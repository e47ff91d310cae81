package fetcher

import (
	"context"
	"net/http"
	"net/url"

	"github.com/rohmanhakim/docs-crawler/pkg/failure"
	"github.com/rohmanhakim/docs-crawler/pkg/retry"
)

// HookName identifies a point in the fetch lifecycle a caller can observe
// or short-circuit via SetHook.
type HookName string

const (
	HookBeforeRequest HookName = "before_request"
	HookAfterResponse HookName = "after_response"
)

// HookFunc runs at a HookName point. Returning a non-nil error aborts the
// fetch and is surfaced to the caller as-is.
type HookFunc func(ctx context.Context, fetchUrl url.URL) failure.ClassifiedError

// FetchOutcome pairs a requested URL with its FetchMany result so ordering
// survives even when some URLs in the batch fail.
type FetchOutcome struct {
	url    url.URL
	result FetchResult
	err    failure.ClassifiedError
}

func (o FetchOutcome) URL() url.URL            { return o.url }
func (o FetchOutcome) Result() FetchResult     { return o.result }
func (o FetchOutcome) Err() failure.ClassifiedError { return o.err }

// Fetcher is the C7 contract: retrieve bytes for a URL without interpreting
// them. http:// and https:// go over the network; raw:// and file:// are
// resolved locally. A Fetcher never parses content, only returns it.
type Fetcher interface {
	Init(httpClient *http.Client, userAgent string)
	Fetch(
		ctx context.Context,
		crawlDepth int,
		fetchUrl url.URL,
		retryParam retry.RetryParam,
	) (FetchResult, failure.ClassifiedError)
	FetchMany(
		ctx context.Context,
		crawlDepth int,
		fetchUrls []url.URL,
		retryParam retry.RetryParam,
	) []FetchOutcome
	SetHook(name HookName, fn HookFunc)
	UpdateUserAgent(userAgent string)
	Close() error
}
