package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rohmanhakim/docs-crawler/internal/metadata"
	"github.com/rohmanhakim/docs-crawler/pkg/failure"
	"github.com/rohmanhakim/docs-crawler/pkg/retry"
)

/*
Responsibilities

- Perform HTTP requests
- Apply headers and timeouts
- Handle redirects safely
- Classify responses
- Resolve raw:// and file:// URLs without touching the network

Fetch Semantics

- Only successful HTML responses are processed
- Non-HTML content is discarded
- Redirect chains are bounded
- All responses are logged with metadata

The fetcher never parses content; it only returns bytes and metadata.
*/

type HtmlFetcher struct {
	metadataSink metadata.MetadataSink
	httpClient   *http.Client

	uaMu      sync.RWMutex
	userAgent string

	hooksMu sync.RWMutex
	hooks   map[HookName]HookFunc
}

func NewHtmlFetcher(
	metadataSink metadata.MetadataSink,
) HtmlFetcher {
	return HtmlFetcher{
		metadataSink: metadataSink,
		httpClient:   &http.Client{},
	}
}

var _ Fetcher = (*HtmlFetcher)(nil)

func (h *HtmlFetcher) Init(httpClient *http.Client, userAgent string) {
	h.httpClient = httpClient
	h.UpdateUserAgent(userAgent)
}

func (h *HtmlFetcher) UpdateUserAgent(userAgent string) {
	h.uaMu.Lock()
	defer h.uaMu.Unlock()
	h.userAgent = userAgent
}

func (h *HtmlFetcher) currentUserAgent() string {
	h.uaMu.RLock()
	defer h.uaMu.RUnlock()
	return h.userAgent
}

func (h *HtmlFetcher) SetHook(name HookName, fn HookFunc) {
	h.hooksMu.Lock()
	defer h.hooksMu.Unlock()
	if h.hooks == nil {
		h.hooks = make(map[HookName]HookFunc)
	}
	h.hooks[name] = fn
}

func (h *HtmlFetcher) runHook(name HookName, ctx context.Context, fetchUrl url.URL) failure.ClassifiedError {
	h.hooksMu.RLock()
	fn := h.hooks[name]
	h.hooksMu.RUnlock()
	if fn == nil {
		return nil
	}
	return fn(ctx, fetchUrl)
}

func (h *HtmlFetcher) Close() error {
	h.httpClient.CloseIdleConnections()
	return nil
}

func (h *HtmlFetcher) FetchMany(
	ctx context.Context,
	crawlDepth int,
	fetchUrls []url.URL,
	retryParam retry.RetryParam,
) []FetchOutcome {
	outcomes := make([]FetchOutcome, 0, len(fetchUrls))
	for _, fetchUrl := range fetchUrls {
		result, err := h.Fetch(ctx, crawlDepth, fetchUrl, retryParam)
		outcomes = append(outcomes, FetchOutcome{url: fetchUrl, result: result, err: err})
	}
	return outcomes
}

func (h *HtmlFetcher) Fetch(
	ctx context.Context,
	crawlDepth int,
	fetchUrl url.URL,
	retryParam retry.RetryParam,
) (FetchResult, failure.ClassifiedError) {
	callerMethod := "HtmlFetcher.Fetch"
	startTime := time.Now()

	scheme := strings.ToLower(fetchUrl.Scheme)
	if scheme == "raw" || scheme == "file" {
		result, err := h.fetchLocal(fetchUrl, scheme)
		h.recordFetchOutcome(callerMethod, fetchUrl, crawlDepth, 1, time.Since(startTime), result, err)
		if err != nil {
			return FetchResult{}, err
		}
		return result, nil
	}

	if hookErr := h.runHook(HookBeforeRequest, ctx, fetchUrl); hookErr != nil {
		h.recordFetchOutcome(callerMethod, fetchUrl, crawlDepth, 0, time.Since(startTime), FetchResult{}, hookErr)
		return FetchResult{}, hookErr
	}

	result, attempts, err := h.fetchWithRetry(ctx, fetchUrl, h.currentUserAgent(), retryParam)

	if err == nil {
		result.fetchedAt = time.Now()
		if hookErr := h.runHook(HookAfterResponse, ctx, fetchUrl); hookErr != nil {
			err = hookErr
		}
	}

	h.recordFetchOutcome(callerMethod, fetchUrl, crawlDepth, attempts, time.Since(startTime), result, err)

	if err != nil {
		return FetchResult{}, err
	}

	return result, nil
}

// fetchLocal resolves raw:// and file:// URLs without a network round trip.
// Both are treated as always-HTML, status 200, with no response headers.
func (h *HtmlFetcher) fetchLocal(fetchUrl url.URL, scheme string) (FetchResult, failure.ClassifiedError) {
	var body []byte

	switch scheme {
	case "raw":
		body = []byte(rawHTMLFromURL(fetchUrl))
	case "file":
		data, err := os.ReadFile(fetchUrl.Path)
		if err != nil {
			return FetchResult{}, &FetchError{
				Message:   fmt.Sprintf("failed to read local file: %v", err),
				Retryable: false,
				Cause:     ErrCauseNetworkFailure,
			}
		}
		body = data
	}

	return FetchResult{
		url:          fetchUrl,
		redirectedTo: fetchUrl,
		body:         body,
		meta: ResponseMeta{
			statusCode:      http.StatusOK,
			responseHeaders: map[string]string{},
		},
		fetchedAt: time.Now(),
	}, nil
}

// rawHTMLFromURL extracts the HTML payload embedded in a raw:// URL.
// url.URL cannot cleanly round-trip arbitrary markup through its Host/Path
// fields, so the original string form is used and the scheme prefix (with
// or without the "//" convention) is stripped.
func rawHTMLFromURL(u url.URL) string {
	s := u.String()
	switch {
	case strings.HasPrefix(s, "raw://"):
		return strings.TrimPrefix(s, "raw://")
	case strings.HasPrefix(s, "raw:"):
		return strings.TrimPrefix(s, "raw:")
	case u.Opaque != "":
		return u.Opaque
	default:
		return s
	}
}

func (h *HtmlFetcher) recordFetchOutcome(
	callerMethod string,
	fetchUrl url.URL,
	crawlDepth int,
	attempts int,
	duration time.Duration,
	result FetchResult,
	err failure.ClassifiedError,
) {
	var statusCode int
	var contentType string
	if err == nil {
		statusCode = result.Code()
		contentType = h.extractContentType(result.Headers())
	}

	h.metadataSink.RecordFetch(
		fetchUrl.String(),
		statusCode,
		duration,
		contentType,
		attempts,
		crawlDepth,
	)

	if err == nil {
		return
	}

	var retryErr *retry.RetryError
	if errors.As(err, &retryErr) {
		h.recordRetryError(callerMethod, fetchUrl, err)
	} else {
		h.recordFetchError(callerMethod, fetchUrl, err)
	}
}

func (h *HtmlFetcher) extractContentType(headers map[string]string) string {
	if ct, ok := headers["Content-Type"]; ok {
		return ct
	}
	return ""
}

func (h *HtmlFetcher) recordFetchError(callerMethod string, fetchUrl url.URL, err failure.ClassifiedError) {
	var fetchError *FetchError
	if errors.As(err, &fetchError) {
		h.metadataSink.RecordError(
			time.Now(),
			"fetcher",
			callerMethod,
			mapFetchErrorToMetadataCause(fetchError),
			err.Error(),
			[]metadata.Attribute{
				metadata.NewAttr(metadata.AttrURL, fetchUrl.String()),
			},
		)
	}
}

func (h *HtmlFetcher) recordRetryError(callerMethod string, fetchUrl url.URL, err failure.ClassifiedError) {
	var retryError *retry.RetryError
	if errors.As(err, &retryError) {
		h.metadataSink.RecordError(
			time.Now(),
			"fetcher",
			callerMethod,
			metadata.CauseRetryFailure,
			err.Error(),
			[]metadata.Attribute{
				metadata.NewAttr(metadata.AttrMessage, retryError.Error()),
				metadata.NewAttr(metadata.AttrURL, fetchUrl.String()),
			},
		)
	}
}

func (h *HtmlFetcher) fetchWithRetry(ctx context.Context, fetchUrl url.URL, userAgent string, retryParam retry.RetryParam) (FetchResult, int, failure.ClassifiedError) {
	fetchTask := func() (FetchResult, failure.ClassifiedError) {
		return h.performFetch(ctx, fetchUrl, userAgent)
	}

	retryResult := retry.Retry(retryParam, fetchTask)

	if retryResult.IsFailure() {
		retryErr := retryResult.Err()
		// The underlying error may be a FetchError (returned by the task
		// itself) or a RetryError (exhaustion/zero-attempt, from retry.Retry).
		var fetchErr *FetchError
		if errors.As(retryErr, &fetchErr) {
			return FetchResult{}, retryResult.Attempts(), fetchErr
		}
		return FetchResult{}, retryResult.Attempts(), retryErr
	}

	return retryResult.Value(), retryResult.Attempts(), nil
}

func (h *HtmlFetcher) performFetch(ctx context.Context, fetchUrl url.URL, userAgent string) (FetchResult, failure.ClassifiedError) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fetchUrl.String(), nil)
	if err != nil {
		return FetchResult{}, &FetchError{
			Message:   fmt.Sprintf("failed to create request: %v", err),
			Retryable: false,
			Cause:     ErrCauseNetworkFailure,
		}
	}

	// Apply browser-like headers
	headers := requestHeaders(userAgent)
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := h.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return FetchResult{}, &FetchError{
				Message:   fmt.Sprintf("request cancelled: %v", err),
				Retryable: false,
				Cause:     ErrCauseCancelled,
			}
		}
		// Network/transport errors are retryable
		return FetchResult{}, &FetchError{
			Message:   fmt.Sprintf("request failed: %v", err),
			Retryable: true,
			Cause:     ErrCauseNetworkFailure,
		}
	}
	defer resp.Body.Close()

	// Handle HTTP status codes
	switch {
	case resp.StatusCode >= 500:
		// Server errors (5xx) are retryable
		return FetchResult{}, &FetchError{
			Message:   fmt.Sprintf("server error: %d", resp.StatusCode),
			Retryable: true,
			Cause:     ErrCauseRequest5xx,
		}

	case resp.StatusCode == 429:
		// Too Many Requests is retryable
		return FetchResult{}, &FetchError{
			Message:   "rate limited (429)",
			Retryable: true,
			Cause:     ErrCauseRequestTooMany,
		}

	case resp.StatusCode == 403:
		// Forbidden is not retryable
		return FetchResult{}, &FetchError{
			Message:   "access forbidden (403)",
			Retryable: false,
			Cause:     ErrCauseRequestPageForbidden,
		}

	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		// Other client errors are not retryable
		return FetchResult{}, &FetchError{
			Message:   fmt.Sprintf("client error: %d", resp.StatusCode),
			Retryable: false,
			Cause:     ErrCauseRequestPageForbidden,
		}

	case resp.StatusCode >= 300 && resp.StatusCode < 400:
		// Redirects should be handled by http.Client, but if we get here,
		// it means redirect limit exceeded
		return FetchResult{}, &FetchError{
			Message:   fmt.Sprintf("redirect error: %d", resp.StatusCode),
			Retryable: false,
			Cause:     ErrCauseRedirectLimitExceeded,
		}
	}

	// Check Content-Type for HTML
	contentType := resp.Header.Get("Content-Type")
	if !isHTMLContent(contentType) {
		return FetchResult{}, &FetchError{
			Message:   fmt.Sprintf("non-HTML content type: %s", contentType),
			Retryable: false,
			Cause:     ErrCauseContentTypeInvalid,
		}
	}

	// Read response body
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return FetchResult{}, &FetchError{
			Message:   fmt.Sprintf("failed to read response body: %v", err),
			Retryable: true,
			Cause:     ErrCauseReadResponseBodyError,
		}
	}

	// Build response headers map
	responseHeaders := make(map[string]string)
	for key, values := range resp.Header {
		if len(values) > 0 {
			responseHeaders[key] = values[0]
		}
	}

	redirectedTo := fetchUrl
	if resp.Request != nil && resp.Request.URL != nil {
		redirectedTo = *resp.Request.URL
	}

	// Create FetchResult
	result := FetchResult{
		url:          fetchUrl,
		redirectedTo: redirectedTo,
		body:         body,
		meta: ResponseMeta{
			statusCode:      resp.StatusCode,
			responseHeaders: responseHeaders,
		},
	}

	return result, nil
}

func isHTMLContent(contentType string) bool {
	// Check if content type is HTML
	contentType = strings.ToLower(contentType)
	return strings.Contains(contentType, "text/html") ||
		strings.Contains(contentType, "application/xhtml")
}

func requestHeaders(userAgent string) map[string]string {
	return map[string]string{
		"User-Agent":      userAgent,
		"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		"Accept-Language": "en-US,en;q=0.5",
		"Accept-Encoding": "gzip, deflate, br",
		"DNT":             "1",
		"Connection":      "keep-alive",
	}
}
