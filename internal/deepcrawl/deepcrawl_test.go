package deepcrawl_test

import (
	"context"
	"net/http"
	"net/url"
	"os"
	"testing"
	"time"

	"github.com/rohmanhakim/docs-crawler/internal/cachecontext"
	"github.com/rohmanhakim/docs-crawler/internal/cachevalidator"
	"github.com/rohmanhakim/docs-crawler/internal/config"
	"github.com/rohmanhakim/docs-crawler/internal/contentstore"
	"github.com/rohmanhakim/docs-crawler/internal/deepcrawl"
	"github.com/rohmanhakim/docs-crawler/internal/fetcher"
	"github.com/rohmanhakim/docs-crawler/internal/mdconvert"
	"github.com/rohmanhakim/docs-crawler/internal/metadata"
	"github.com/rohmanhakim/docs-crawler/internal/metadatastore"
	"github.com/rohmanhakim/docs-crawler/internal/pipeline"
	"github.com/rohmanhakim/docs-crawler/internal/robots"
	"github.com/rohmanhakim/docs-crawler/pkg/failure"
	"github.com/rohmanhakim/docs-crawler/pkg/hashutil"
	"github.com/rohmanhakim/docs-crawler/pkg/retry"
	"github.com/rohmanhakim/docs-crawler/pkg/timeutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type siteRobot struct{}

func (siteRobot) Decide(target url.URL) (robots.Decision, *robots.RobotsError) {
	return robots.Decision{Url: target, Allowed: true, Reason: robots.AllowedByRobots}, nil
}

// siteFetcher serves a tiny fixed link graph:
//
//	/          -> links to /page2 and https://external.example/other
//	/page2     -> no further links
type siteFetcher struct{}

func (f *siteFetcher) Init(httpClient *http.Client, userAgent string)   {}
func (f *siteFetcher) SetHook(name fetcher.HookName, fn fetcher.HookFunc) {}
func (f *siteFetcher) UpdateUserAgent(userAgent string)                 {}
func (f *siteFetcher) Close() error                                    { return nil }
func (f *siteFetcher) FetchMany(ctx context.Context, crawlDepth int, fetchUrls []url.URL, retryParam retry.RetryParam) []fetcher.FetchOutcome {
	return nil
}

func (f *siteFetcher) Fetch(ctx context.Context, crawlDepth int, fetchUrl url.URL, retryParam retry.RetryParam) (fetcher.FetchResult, failure.ClassifiedError) {
	var body string
	switch fetchUrl.Path {
	case "/page2":
		body = `<html><head><title>Page 2</title></head><body><main><p>Second page with enough words to survive pruning.</p></main></body></html>`
	default:
		body = `<html><head><title>Home</title></head><body><main>
<p>Home page with enough words to survive pruning by the scraper.</p>
<a href="/page2">Page 2</a>
<a href="https://external.example/other">External</a>
</main></body></html>`
	}
	return fetcher.NewFetchResultForTest(fetchUrl, []byte(body), 200, "text/html", map[string]string{}, time.Now()), nil
}

func newTestRunner(t *testing.T) *deepcrawl.Runner {
	t.Helper()
	dir, err := os.MkdirTemp("", "deepcrawl-test-*")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(dir) })

	recorder := metadata.NewRecorder("test")
	contentStore := contentstore.NewStore(dir+"/blobs", hashutil.HashAlgoXXHash, &recorder)
	retryParam := retry.NewRetryParam(0, 0, 1, 1, timeutil.NewBackoffParam(0, 1, 0))
	metadataStore, storeErr := metadatastore.Open(dir+"/cache.db", &recorder, retryParam)
	require.Nil(t, storeErr)
	t.Cleanup(func() { _ = metadataStore.Close() })

	validator := cachevalidator.New(&http.Client{}, time.Second, &recorder)
	generator := mdconvert.NewGenerator(&recorder)

	p := pipeline.New(siteRobot{}, &siteFetcher{}, contentStore, metadataStore, validator, generator, &recorder)
	return deepcrawl.New(p)
}

func TestRunDeepStaysWithinAllowedHostAndDepth(t *testing.T) {
	runner := newTestRunner(t)

	seed, _ := url.Parse("https://example.com/")
	cfg, err := config.WithDefault([]url.URL{*seed}).
		WithAllowedHosts(map[string]struct{}{"example.com": {}}).
		WithAllowedPathPrefix([]string{"/"}).
		WithMaxDepth(2).
		WithMaxPages(10).
		WithCacheMode(cachecontext.ModeBypass).
		Build()
	require.NoError(t, err)

	results := runner.RunDeep(context.Background(), cfg, pipeline.Options{})

	require.Len(t, results, 2) // "/" and "/page2"; external.example excluded by AllowedHosts
	urls := []string{results[0].URL, results[1].URL}
	assert.Contains(t, urls, "https://example.com/")
	assert.Contains(t, urls, "https://example.com/page2")
}

func TestRunDeepRespectsMaxPages(t *testing.T) {
	runner := newTestRunner(t)

	seed, _ := url.Parse("https://example.com/")
	cfg, err := config.WithDefault([]url.URL{*seed}).
		WithAllowedHosts(map[string]struct{}{"example.com": {}}).
		WithAllowedPathPrefix([]string{"/"}).
		WithMaxDepth(5).
		WithMaxPages(1).
		WithCacheMode(cachecontext.ModeBypass).
		Build()
	require.NoError(t, err)

	results := runner.RunDeep(context.Background(), cfg, pipeline.Options{})
	assert.Len(t, results, 1)
}

func TestPrefetchLinksDoesNotCrawl(t *testing.T) {
	runner := newTestRunner(t)

	seed, _ := url.Parse("https://example.com/")
	cfg, err := config.WithDefault([]url.URL{*seed}).
		WithAllowedHosts(map[string]struct{}{"example.com": {}}).
		WithAllowedPathPrefix([]string{"/"}).
		WithCacheMode(cachecontext.ModeBypass).
		Build()
	require.NoError(t, err)

	links := runner.PrefetchLinks(context.Background(), "https://example.com/", cfg, pipeline.Options{})
	assert.Contains(t, links, "https://example.com/page2")
}
