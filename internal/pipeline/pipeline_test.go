package pipeline_test

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

const testHTML = `<!DOCTYPE html>
<html>
<head><title>Test Page</title><meta name="description" content="a test page"></head>
<body>
<main>
<h1>Heading</h1>
<p>This paragraph has more than enough words to survive pruning by the scraper.</p>
</main>
</body>
</html>`

// robotsAllowAllMock implements robots.Robot, allowing every URL.
type robotsAllowAllMock struct{}

func (robotsAllowAllMock) Decide(target url.URL) (robots.Decision, *robots.RobotsError) {
	return robots.Decision{Url: target, Allowed: true, Reason: robots.AllowedByRobots}, nil
}

// fakeFetcher implements fetcher.Fetcher and always returns the same
// canned body, regardless of which URL is requested.
type fakeFetcher struct {
	body       []byte
	statusCode int
}

func (f *fakeFetcher) Init(httpClient *http.Client, userAgent string)                     {}
func (f *fakeFetcher) SetHook(name fetcher.HookName, fn fetcher.HookFunc)                 {}
func (f *fakeFetcher) UpdateUserAgent(userAgent string)                                   {}
func (f *fakeFetcher) Close() error                                                       { return nil }
func (f *fakeFetcher) FetchMany(ctx context.Context, crawlDepth int, fetchUrls []url.URL, retryParam retry.RetryParam) []fetcher.FetchOutcome {
	return nil
}

func (f *fakeFetcher) Fetch(ctx context.Context, crawlDepth int, fetchUrl url.URL, retryParam retry.RetryParam) (fetcher.FetchResult, failure.ClassifiedError) {
	return fetcher.NewFetchResultForTest(
		fetchUrl,
		f.body,
		f.statusCode,
		"text/html",
		map[string]string{"Content-Type": "text/html"},
		time.Now(),
	), nil
}

func seedURLs() []url.URL {
	u, _ := url.Parse("https://example.com/")
	return []url.URL{*u}
}

func newTestPipeline(t *testing.T, body []byte) (*pipeline.Pipeline, func()) {
	t.Helper()
	dir, err := os.MkdirTemp("", "pipeline-test-*")
	require.NoError(t, err)

	recorder := metadata.NewRecorder("test")
	contentStore := contentstore.NewStore(dir+"/blobs", hashutil.HashAlgoXXHash, &recorder)

	retryParam := retry.NewRetryParam(0, 0, 1, 1, timeutil.NewBackoffParam(0, 1, 0))
	metadataStore, storeErr := metadatastore.Open(dir+"/cache.db", &recorder, retryParam)
	require.Nil(t, storeErr)

	validator := cachevalidator.New(&http.Client{}, time.Second, &recorder)
	generator := mdconvert.NewGenerator(&recorder)

	f := &fakeFetcher{body: body, statusCode: 200}
	p := pipeline.New(robotsAllowAllMock{}, f, contentStore, metadataStore, validator, generator, &recorder)

	cleanup := func() {
		_ = metadataStore.Close()
		_ = os.RemoveAll(dir)
	}
	return p, cleanup
}

func TestArunFetchesAndCachesFreshURL(t *testing.T) {
	p, cleanup := newTestPipeline(t, []byte(testHTML))
	defer cleanup()

	cfg, err := config.WithDefault(seedURLs()).WithCacheMode(cachecontext.ModeEnabled).Build()
	require.NoError(t, err)

	result := p.Arun(context.Background(), "https://example.com/page", cfg, pipeline.Options{})

	assert.True(t, result.Success)
	assert.Contains(t, result.CleanedHTML, "Heading")
	assert.NotEmpty(t, result.FitMarkdown)
	assert.False(t, result.FromCache)
}

func TestArunServesFromCacheOnSecondRun(t *testing.T) {
	p, cleanup := newTestPipeline(t, []byte(testHTML))
	defer cleanup()

	cfg, err := config.WithDefault(seedURLs()).WithCacheMode(cachecontext.ModeEnabled).Build()
	require.NoError(t, err)

	first := p.Arun(context.Background(), "https://example.com/cached", cfg, pipeline.Options{})
	require.True(t, first.Success)

	second := p.Arun(context.Background(), "https://example.com/cached", cfg, pipeline.Options{})
	assert.True(t, second.Success)
	assert.True(t, second.FromCache)
}

func TestArunManyPreservesOrderAndIsolatesFailures(t *testing.T) {
	p, cleanup := newTestPipeline(t, []byte(testHTML))
	defer cleanup()

	cfg, err := config.WithDefault(seedURLs()).WithCacheMode(cachecontext.ModeBypass).Build()
	require.NoError(t, err)

	urls := []string{
		"https://example.com/a",
		"://not-a-valid-url",
		"https://example.com/b",
	}
	results := p.ArunMany(context.Background(), urls, cfg, pipeline.Options{})

	require.Len(t, results, 3)
	assert.True(t, results[0].Success)
	assert.False(t, results[1].Success)
	assert.True(t, results[2].Success)
}
