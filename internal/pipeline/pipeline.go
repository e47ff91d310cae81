package pipeline

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rohmanhakim/docs-crawler/internal/assets"
	"github.com/rohmanhakim/docs-crawler/internal/cachecontext"
	"github.com/rohmanhakim/docs-crawler/internal/cachevalidator"
	"github.com/rohmanhakim/docs-crawler/internal/config"
	"github.com/rohmanhakim/docs-crawler/internal/contentstore"
	"github.com/rohmanhakim/docs-crawler/internal/fetcher"
	"github.com/rohmanhakim/docs-crawler/internal/fingerprint"
	"github.com/rohmanhakim/docs-crawler/internal/mdconvert"
	"github.com/rohmanhakim/docs-crawler/internal/metadata"
	"github.com/rohmanhakim/docs-crawler/internal/metadatastore"
	"github.com/rohmanhakim/docs-crawler/internal/robots"
	"github.com/rohmanhakim/docs-crawler/internal/scraper"
	"github.com/rohmanhakim/docs-crawler/pkg/hashutil"
	"github.com/rohmanhakim/docs-crawler/pkg/retry"
	"github.com/rohmanhakim/docs-crawler/pkg/timeutil"
)

const pipelinePackageName = "pipeline"

/*
Responsibilities

- Run the per-URL chain every crawl, cached or not, goes through:
  robots gate, cache read/validate, fetch, scrape, markdown generation,
  extraction, cache write.
- Never decide whether a second URL gets crawled at all: that is
  C13/C14's job. Pipeline only knows how to resolve one URL to one
  CrawlResult.
- Degrade rather than fail: a cache I/O error falls back to a fresh
  fetch, a validator error serves the cached entry, never a crawl
  failure by itself.

Pipeline is the single choke point: one type owns every collaborator so
nothing outside this package calls fetcher/scraper/mdconvert/extraction
directly.
*/

// Pipeline wires C1-C10 into a single Arun/ArunMany entry point.
type Pipeline struct {
	robot         robots.Robot
	fetcher       fetcher.Fetcher
	contentStore  *contentstore.Store
	metadataStore metadatastore.Store
	validator     *cachevalidator.Validator
	mdGenerator   *mdconvert.Generator
	metadataSink  metadata.MetadataSink
	hashAlgo      hashutil.HashAlgo
	assetResolver assets.Resolver
}

// New constructs a Pipeline. Its hashAlgo is always xxhash and is used
// only to name downloaded assets; contentStore hashes blobs with its own
// algorithm. The pipeline starts without an asset resolver, so Arun skips
// local asset download until WithAssetResolver attaches one.
func New(
	robot robots.Robot,
	htmlFetcher fetcher.Fetcher,
	contentStore *contentstore.Store,
	metadataStore metadatastore.Store,
	validator *cachevalidator.Validator,
	mdGenerator *mdconvert.Generator,
	metadataSink metadata.MetadataSink,
) *Pipeline {
	return &Pipeline{
		robot:         robot,
		fetcher:       htmlFetcher,
		contentStore:  contentStore,
		metadataStore: metadataStore,
		validator:     validator,
		mdGenerator:   mdGenerator,
		metadataSink:  metadataSink,
		hashAlgo:      hashutil.HashAlgoXXHash,
	}
}

// WithAssetResolver attaches an assets.Resolver that downloads
// markdown-referenced images locally and rewrites FitMarkdown to point at
// them, returning p for chaining. A Pipeline with no resolver skips this
// step and leaves markdown image references untouched.
func (p *Pipeline) WithAssetResolver(resolver assets.Resolver) *Pipeline {
	p.assetResolver = resolver
	return p
}

// NewDefault builds a Pipeline from cfg, wiring a real HtmlFetcher,
// CachedRobot, content/metadata stores rooted at cfg.OutputDir, and a
// validator/generator sharing metadataSink. Callers that need test
// doubles should use New directly instead.
func NewDefault(cfg config.Config, metadataSink metadata.MetadataSink) (*Pipeline, func() error, error) {
	cachedRobot := robots.NewCachedRobot(metadataSink)
	cachedRobot.Init(cfg.UserAgent())

	htmlFetcher := fetcher.NewHtmlFetcher(metadataSink)
	htmlFetcher.Init(&http.Client{Timeout: cfg.Timeout()}, cfg.UserAgent())

	contentStore := contentstore.NewStore(cfg.OutputDir()+"/blobs", hashutil.HashAlgoXXHash, metadataSink)

	retryParam := retry.NewRetryParam(
		cfg.BaseDelay(),
		cfg.Jitter(),
		cfg.RandomSeed(),
		cfg.MaxAttempt(),
		timeutil.NewBackoffParam(cfg.BackoffInitialDuration(), cfg.BackoffMultiplier(), cfg.BackoffMaxDuration()),
	)
	metadataStore, storeErr := metadatastore.Open(cfg.OutputDir()+"/cache.db", metadataSink, retryParam)
	if storeErr != nil {
		return nil, nil, storeErr
	}

	validator := cachevalidator.New(&http.Client{Timeout: cfg.Timeout()}, cfg.Timeout(), metadataSink)
	generator := mdconvert.NewGenerator(metadataSink)

	p := New(&cachedRobot, &htmlFetcher, contentStore, metadataStore, validator, generator, metadataSink)

	assetResolver := assets.NewLocalResolver(metadataSink, &http.Client{Timeout: cfg.Timeout()}, cfg.UserAgent())
	p.WithAssetResolver(&assetResolver)

	return p, metadataStore.Close, nil
}

// Arun resolves a single URL end to end, per §4.11. It never returns a
// Go error: every failure mode is folded into CrawlResult.Success/
// ErrorMessage so ArunMany can keep processing the rest of a batch.
func (p *Pipeline) Arun(ctx context.Context, pageURL string, cfg config.Config, opts Options) CrawlResult {
	result := CrawlResult{URL: pageURL}

	parsed, parseErr := url.Parse(pageURL)
	if parseErr != nil {
		result.ErrorMessage = "invalid url: " + parseErr.Error()
		p.recordError(pipelinePackageName, "Arun", metadata.CauseInvariantViolation, result.ErrorMessage, pageURL)
		return result
	}

	if cfg.CheckRobotsTxt() && p.robot != nil {
		decision, robotsErr := p.robot.Decide(*parsed)
		if robotsErr != nil {
			result.ErrorMessage = robotsErr.Error()
			return result
		}
		if !decision.Allowed {
			result.ErrorMessage = "disallowed by robots.txt: " + string(decision.Reason)
			return result
		}
	}

	cacheCtx := cachecontext.New(cfg.CacheMode(), parsed.Scheme)

	retryParam := retry.NewRetryParam(
		cfg.BaseDelay(),
		cfg.Jitter(),
		cfg.RandomSeed(),
		cfg.MaxAttempt(),
		timeutil.NewBackoffParam(cfg.BackoffInitialDuration(), cfg.BackoffMultiplier(), cfg.BackoffMaxDuration()),
	)

	var cached *metadatastore.CacheEntry
	if cacheCtx.ShouldRead() && !cacheCtx.AlwaysBypass() && p.metadataStore != nil {
		entry, found, storeErr := p.metadataStore.Get(parsed.String())
		if storeErr != nil {
			p.recordError(pipelinePackageName, "Arun.cacheRead", metadata.CauseStorageFailure, storeErr.Error(), pageURL)
		} else if found {
			cached = &entry
		}
	}

	useCache := cached != nil
	if useCache && cacheCtx.ShouldValidate() {
		val := p.validator.Validate(ctx, cachevalidator.Input{
			URL:                   parsed.String(),
			StoredETag:            cached.ETag(),
			StoredLastModified:    cached.LastModified(),
			StoredHeadFingerprint: cached.HeadFingerprint(),
		})
		switch val.Outcome {
		case cachevalidator.Fresh:
			useCache = true
		case cachevalidator.Stale, cachevalidator.Unknown:
			useCache = false
		case cachevalidator.Error:
			// A broken validator (network down, origin unreachable) is not
			// evidence the cached content is wrong: prefer it over failing
			// the whole crawl outright.
			useCache = true
			p.recordError(pipelinePackageName, "Arun.validate", metadata.CauseNetworkFailure, val.Reason, pageURL)
		}
	}

	if useCache {
		return p.resultFromCache(pageURL, *cached)
	}

	fetchResult, fetchErr := p.fetcher.Fetch(ctx, 0, *parsed, retryParam)
	if fetchErr != nil {
		if cached != nil {
			// The fresh fetch also failed: fall back to whatever was
			// cached rather than surfacing a user-visible failure.
			return p.resultFromCache(pageURL, *cached)
		}
		result.ErrorMessage = fetchErr.Error()
		return result
	}

	result.StatusCode = fetchResult.Code()
	result.HTML = string(fetchResult.Body())
	result.ResponseHeaders = fetchResult.Headers()
	result.ETag = fetchResult.Headers()[http.CanonicalHeaderKey("ETag")]
	result.LastModified = fetchResult.Headers()["Last-Modified"]
	result.HeadFingerprint = fingerprint.Fingerprint(extractHeadHTML(result.HTML))

	scrapeOpts := scraper.Options{
		WordCountThreshold:      cfg.WordCountThreshold(),
		CSSSelector:             cfg.CSSSelector(),
		ExcludedTags:            cfg.ExcludedTags(),
		KeepDataAttrs:           cfg.KeepDataAttrs(),
		ImageScoreThreshold:     cfg.ImageScoreThreshold(),
		ExcludeDomains:          cfg.ExcludeDomains(),
		ExcludeExternalLinks:    cfg.ExcludeExternalLinks(),
		ExcludeSocialMediaLinks: cfg.ExcludeSocialMediaLinks(),
		ExcludeExternalImages:   cfg.ExcludeExternalImages(),
	}
	scrapeResult := scraper.Scrape(fetchResult.RedirectedURL().String(), fetchResult.Body(), scrapeOpts)
	if !scrapeResult.Success {
		result.ErrorMessage = "scrape failed: " + scrapeResult.Note
		p.recordError(pipelinePackageName, "Arun.scrape", metadata.CauseContentInvalid, result.ErrorMessage, pageURL)
		return result
	}
	result.CleanedHTML = scrapeResult.CleanedHTML
	result.Media = scrapeResult.Media
	result.Links = scrapeResult.Links
	result.Metadata = scrapeResult.Metadata

	genResult, genErr := p.mdGenerator.GenerateFromHTML(scrapeResult.CleanedHTML, mdconvert.GenerateOptions{
		Filter: mdconvert.PruningContentFilter(cfg.WordCountThreshold()),
	})
	if genErr != nil {
		result.ErrorMessage = genErr.Error()
		return result
	}
	result.RawMarkdown = genResult.RawMarkdown
	result.FitMarkdown = genResult.FitMarkdown

	if p.assetResolver != nil {
		p.resolveAssets(ctx, *parsed, &result, cfg, retryParam)
	}

	if opts.ExtractionStrategy != nil {
		extractionCfg := opts.ExtractionConfig
		extractionCfg.DocumentHTML = scrapeResult.CleanedHTML
		sections := markdownSections(result.FitMarkdown)
		records, extractErr := opts.ExtractionStrategy.Run(pageURL, sections, extractionCfg)
		if extractErr != nil {
			p.recordError(pipelinePackageName, "Arun.extract", metadata.CauseContentInvalid, extractErr.Error(), pageURL)
		} else {
			result.ExtractedContent = records
		}
	}

	result.Success = true
	result.CachedAt = timeNow()

	if cacheCtx.ShouldWrite() {
		p.writeCache(pageURL, result)
	}

	return result
}

// ArunMany runs Arun over every url independently: one URL's failure
// never aborts the rest of the batch, and results preserve input order.
func (p *Pipeline) ArunMany(ctx context.Context, urls []string, cfg config.Config, opts Options) []CrawlResult {
	results := make([]CrawlResult, len(urls))
	for i, u := range urls {
		results[i] = p.Arun(ctx, u, cfg, opts)
	}
	return results
}

// resolveAssets downloads every image the scraper found in result.Media
// into cfg's output directory, rewrites result.FitMarkdown to reference
// the local copies, and records what got written to
// result.DownloadedFiles. Failures are recorded but never fail Arun: a
// page with unreachable images still produces a crawl result.
func (p *Pipeline) resolveAssets(ctx context.Context, pageURL url.URL, result *CrawlResult, cfg config.Config, retryParam retry.RetryParam) {
	linkRefs := make([]mdconvert.LinkRef, 0, len(result.Media.Images))
	for _, img := range result.Media.Images {
		linkRefs = append(linkRefs, mdconvert.NewLinkRef(img.Src, mdconvert.KindImage))
	}
	if len(linkRefs) == 0 {
		return
	}

	conversionResult := mdconvert.NewConversionResult([]byte(result.FitMarkdown), linkRefs)
	resolveParam := assets.NewResolveParam(cfg.OutputDir(), cfg.MaxAssetSize(), p.hashAlgo)

	doc, err := p.assetResolver.Resolve(ctx, pageURL, conversionResult, resolveParam, retryParam)
	if err != nil {
		p.recordError(pipelinePackageName, "Arun.resolveAssets", metadata.CauseNetworkFailure, err.Error(), pageURL.String())
		return
	}

	result.FitMarkdown = string(doc.Content())
	result.DownloadedFiles = doc.LocalAssets()
}

func (p *Pipeline) resultFromCache(pageURL string, entry metadatastore.CacheEntry) CrawlResult {
	result := CrawlResult{
		URL:             pageURL,
		Success:         entry.Success(),
		Media:           entry.Media(),
		Links:           entry.Links(),
		Metadata:        entry.Metadata(),
		ResponseHeaders: entry.ResponseHeaders(),
		ETag:            entry.ETag(),
		LastModified:    entry.LastModified(),
		HeadFingerprint: entry.HeadFingerprint(),
		CachedAt:        entry.CachedAt(),
		FromCache:       true,
		DownloadedFiles: entry.DownloadedFiles(),
	}

	hashes := entry.ContentHashes()
	if hashes.HTML != "" {
		if body, found, err := p.contentStore.Get(contentstore.KindHTML, hashes.HTML); err == nil && found {
			result.HTML = string(body)
		}
	}
	if hashes.CleanedHTML != "" {
		if body, found, err := p.contentStore.Get(contentstore.KindCleanedHTML, hashes.CleanedHTML); err == nil && found {
			result.CleanedHTML = string(body)
		}
	}
	if hashes.Markdown != "" {
		if body, found, err := p.contentStore.Get(contentstore.KindMarkdown, hashes.Markdown); err == nil && found {
			result.RawMarkdown = string(body)
			result.FitMarkdown = string(body)
		}
	}
	return result
}

func (p *Pipeline) writeCache(pageURL string, result CrawlResult) {
	var hashes metadatastore.ContentHashes

	if put, err := p.contentStore.Put(contentstore.KindHTML, pageURL, []byte(result.HTML)); err == nil {
		hashes.HTML = put.Hash()
	} else {
		p.recordError(pipelinePackageName, "writeCache.html", metadata.CauseStorageFailure, err.Error(), pageURL)
	}
	if put, err := p.contentStore.Put(contentstore.KindCleanedHTML, pageURL, []byte(result.CleanedHTML)); err == nil {
		hashes.CleanedHTML = put.Hash()
	} else {
		p.recordError(pipelinePackageName, "writeCache.cleanedHtml", metadata.CauseStorageFailure, err.Error(), pageURL)
	}
	if put, err := p.contentStore.Put(contentstore.KindMarkdown, pageURL, []byte(result.FitMarkdown)); err == nil {
		hashes.Markdown = put.Hash()
	} else {
		p.recordError(pipelinePackageName, "writeCache.markdown", metadata.CauseStorageFailure, err.Error(), pageURL)
	}

	entry := metadatastore.NewCacheEntry(
		pageURL,
		hashes,
		result.Media,
		result.Links,
		result.Metadata,
		result.ResponseHeaders,
		result.DownloadedFiles,
		result.Success,
		result.ETag,
		result.LastModified,
		result.HeadFingerprint,
		result.CachedAt,
	)
	if err := p.metadataStore.Put(entry); err != nil {
		p.recordError(pipelinePackageName, "writeCache.metadata", metadata.CauseStorageFailure, err.Error(), pageURL)
	}
}

func (p *Pipeline) recordError(pkg, action string, cause metadata.ErrorCause, message, pageURL string) {
	if p.metadataSink == nil {
		return
	}
	p.metadataSink.RecordError(timeNow(), pkg, action, cause, message, []metadata.Attribute{
		metadata.NewAttr(metadata.AttrURL, pageURL),
	})
}

// timeNow is a seam so tests can override cached-at stamping; production
// code always wants wall-clock time.
var timeNow = time.Now

// extractHeadHTML returns the <head>...</head> substring of htmlBody, or
// "" if none is present. fingerprint.Fingerprint expects head-inner HTML,
// not a full document.
func extractHeadHTML(htmlBody string) string {
	lower := strings.ToLower(htmlBody)
	start := strings.Index(lower, "<head")
	if start < 0 {
		return ""
	}
	openEnd := strings.Index(lower[start:], ">")
	if openEnd < 0 {
		return ""
	}
	contentStart := start + openEnd + 1
	end := strings.Index(lower[contentStart:], "</head>")
	if end < 0 {
		return ""
	}
	return htmlBody[contentStart : contentStart+end]
}

// markdownSections splits fit markdown into blank-line-delimited blocks,
// the unit extraction strategies operate over.
func markdownSections(fitMarkdown string) []string {
	blocks := strings.Split(fitMarkdown, "\n\n")
	var sections []string
	for _, b := range blocks {
		if trimmed := strings.TrimSpace(b); trimmed != "" {
			sections = append(sections, trimmed)
		}
	}
	return sections
}
