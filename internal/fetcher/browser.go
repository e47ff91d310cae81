package fetcher

import (
	"context"
	"net/http"
	"net/url"

	"github.com/rohmanhakim/docs-crawler/pkg/failure"
	"github.com/rohmanhakim/docs-crawler/pkg/retry"
)

// ErrBrowserFetcherUnavailable is returned by every BrowserFetcher call.
// A real browser-driven fetcher (headless Chromium over CDP) sits outside
// this module's dependency surface; BrowserFetcher exists so a pipeline can
// select a Fetcher by strategy name and fail clearly when "browser" mode is
// requested without that capability wired in.
var ErrBrowserFetcherUnavailable = &FetchError{
	Message:   "browser fetcher is not available in this build",
	Retryable: false,
	Cause:     ErrCauseBrowserUnavailable,
}

// BrowserFetcher is a placeholder Fetcher implementation. It satisfies the
// interface so callers can wire it in by configuration today and swap in a
// real implementation later without changing call sites.
type BrowserFetcher struct{}

func NewBrowserFetcher() BrowserFetcher {
	return BrowserFetcher{}
}

var _ Fetcher = (*BrowserFetcher)(nil)

func (b *BrowserFetcher) Init(httpClient *http.Client, userAgent string) {}

func (b *BrowserFetcher) Fetch(
	ctx context.Context,
	crawlDepth int,
	fetchUrl url.URL,
	retryParam retry.RetryParam,
) (FetchResult, failure.ClassifiedError) {
	return FetchResult{}, ErrBrowserFetcherUnavailable
}

func (b *BrowserFetcher) FetchMany(
	ctx context.Context,
	crawlDepth int,
	fetchUrls []url.URL,
	retryParam retry.RetryParam,
) []FetchOutcome {
	outcomes := make([]FetchOutcome, 0, len(fetchUrls))
	for _, fetchUrl := range fetchUrls {
		outcomes = append(outcomes, FetchOutcome{url: fetchUrl, err: ErrBrowserFetcherUnavailable})
	}
	return outcomes
}

func (b *BrowserFetcher) SetHook(name HookName, fn HookFunc) {}

func (b *BrowserFetcher) UpdateUserAgent(userAgent string) {}

func (b *BrowserFetcher) Close() error { return nil }
