package dispatcher_test

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
	"github.com/rohmanhakim/docs-crawler/internal/dispatcher"
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

const dispatcherTestHTML = `<!DOCTYPE html>
<html><head><title>T</title></head><body><main><h1>Heading</h1><p>Enough words to survive pruning in this test fixture.</p></main></body></html>`

type allowAllRobot struct{}

func (allowAllRobot) Decide(target url.URL) (robots.Decision, *robots.RobotsError) {
	return robots.Decision{Url: target, Allowed: true, Reason: robots.AllowedByRobots}, nil
}

type cannedFetcher struct{ body []byte }

func (f *cannedFetcher) Init(httpClient *http.Client, userAgent string)   {}
func (f *cannedFetcher) SetHook(name fetcher.HookName, fn fetcher.HookFunc) {}
func (f *cannedFetcher) UpdateUserAgent(userAgent string)                 {}
func (f *cannedFetcher) Close() error                                    { return nil }
func (f *cannedFetcher) FetchMany(ctx context.Context, crawlDepth int, fetchUrls []url.URL, retryParam retry.RetryParam) []fetcher.FetchOutcome {
	return nil
}
func (f *cannedFetcher) Fetch(ctx context.Context, crawlDepth int, fetchUrl url.URL, retryParam retry.RetryParam) (fetcher.FetchResult, failure.ClassifiedError) {
	return fetcher.NewFetchResultForTest(fetchUrl, f.body, 200, "text/html", map[string]string{}, time.Now()), nil
}

func newTestPipeline(t *testing.T) *pipeline.Pipeline {
	t.Helper()
	dir, err := os.MkdirTemp("", "dispatcher-test-*")
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
	f := &cannedFetcher{body: []byte(dispatcherTestHTML)}

	return pipeline.New(allowAllRobot{}, f, contentStore, metadataStore, validator, generator, &recorder)
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	seed, _ := url.Parse("https://example.com/")
	cfg, err := config.WithDefault([]url.URL{*seed}).
		WithCacheMode(cachecontext.ModeBypass).
		WithSemaphoreCount(4).
		WithMemoryThresholdPercent(0). // disables the memory gate for deterministic tests
		Build()
	require.NoError(t, err)
	return cfg
}

func TestRunProcessesEveryURLInOrder(t *testing.T) {
	d := dispatcher.New(newTestPipeline(t), nil)
	cfg := testConfig(t)

	urls := []string{
		"https://example.com/1",
		"https://example.com/2",
		"https://example.com/3",
	}
	results := d.Run(context.Background(), urls, cfg, pipeline.Options{})

	require.Len(t, results, 3)
	for i, u := range urls {
		assert.Equal(t, u, results[i].URL)
		assert.True(t, results[i].Success)
	}
}

func TestRunStreamEmitsEveryResult(t *testing.T) {
	d := dispatcher.New(newTestPipeline(t), nil)
	cfg := testConfig(t)

	urls := []string{
		"https://example.com/a",
		"https://example.com/b",
	}

	seen := map[string]bool{}
	for result := range d.RunStream(context.Background(), urls, cfg, pipeline.Options{}) {
		seen[result.URL] = result.Success
	}

	assert.Len(t, seen, 2)
	for _, u := range urls {
		assert.True(t, seen[u])
	}
}

func TestRunRespectsCancellation(t *testing.T) {
	d := dispatcher.New(newTestPipeline(t), nil)
	cfg := testConfig(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := d.Run(ctx, []string{"https://example.com/x"}, cfg, pipeline.Options{})
	require.Len(t, results, 1)
	assert.False(t, results[0].Success)
}
