// Package deepcrawl implements C14: multi-page traversal on top of a
// single-URL Pipeline, choosing BFS or DFS ordering and enforcing the
// run's depth/page budget.
package deepcrawl

import (
	"context"
	"net/url"
	"strings"

	"github.com/rohmanhakim/docs-crawler/internal/config"
	"github.com/rohmanhakim/docs-crawler/internal/frontier"
	"github.com/rohmanhakim/docs-crawler/internal/pipeline"
	"github.com/rohmanhakim/docs-crawler/pkg/urlutil"
)

/*
Responsibilities

- Own the one standing traversal loop a crawl run has: seed URLs in,
  CrawlResults out, admitting discovered links per depth/page/scope
  limits along the way
- Pick traversal order (BFS via frontier.FIFOQueue, DFS via
  frontier.LIFOStack) from config.DeepCrawlStrategy()
- Never re-decide per-URL admission Pipeline already owns (robots,
  cache policy): deepcrawl only decides whether a URL is ever looked at
  at all, via depth/page budget and allowed-host/path scope

This is the one layer above Pipeline that is allowed to know about more
than one URL at a time; Pipeline.Arun itself stays single-URL.
*/

const (
	strategyDFS = "dfs"
)

// frontierEntry is the unit deepcrawl's queue/stack holds: a URL plus
// the depth it was discovered at.
type frontierEntry struct {
	url   string
	depth int
}

// Runner drives a deep crawl over a single Pipeline.
type Runner struct {
	pipeline *pipeline.Pipeline
}

// New constructs a Runner around p.
func New(p *pipeline.Pipeline) *Runner {
	return &Runner{pipeline: p}
}

// RunDeep traverses every page reachable from cfg.SeedURLs() within
// cfg.MaxDepth()/cfg.MaxPages(), in the order cfg.DeepCrawlStrategy()
// selects, and returns every CrawlResult produced along the way.
func (r *Runner) RunDeep(ctx context.Context, cfg config.Config, opts pipeline.Options) []pipeline.CrawlResult {
	seen := frontier.NewSet[string]()
	var results []pipeline.CrawlResult

	enqueue, dequeue := newFrontier(cfg.DeepCrawlStrategy())

	for _, seed := range cfg.SeedURLs() {
		normalized := seed.String()
		if seen.Contains(normalized) {
			continue
		}
		seen.Add(normalized)
		enqueue(frontierEntry{url: normalized, depth: 0})
	}

	for {
		if cfg.MaxPages() > 0 && len(results) >= cfg.MaxPages() {
			break
		}
		if ctx.Err() != nil {
			break
		}
		entry, ok := dequeue()
		if !ok {
			break
		}

		result := r.pipeline.Arun(ctx, entry.url, cfg, opts)
		results = append(results, result)

		if !result.Success || entry.depth >= cfg.MaxDepth() {
			continue
		}

		for _, link := range allLinks(result) {
			childURL, ok := resolveChild(link, entry.url, cfg)
			if !ok || seen.Contains(childURL) {
				continue
			}
			seen.Add(childURL)
			enqueue(frontierEntry{url: childURL, depth: entry.depth + 1})
		}
	}

	return results
}

// PrefetchLinks resolves and admits every link on pageURL without
// enqueueing them for a full crawl: it is a cheap lookahead for callers
// that want to know what RunDeep would visit next, disabled by default
// and never called from RunDeep itself.
func (r *Runner) PrefetchLinks(ctx context.Context, pageURL string, cfg config.Config, opts pipeline.Options) []string {
	result := r.pipeline.Arun(ctx, pageURL, cfg, opts)
	if !result.Success {
		return nil
	}

	seen := frontier.NewSet[string]()
	var discovered []string
	for _, link := range allLinks(result) {
		childURL, ok := resolveChild(link, pageURL, cfg)
		if !ok || seen.Contains(childURL) {
			continue
		}
		seen.Add(childURL)
		discovered = append(discovered, childURL)
	}
	return discovered
}

func allLinks(result pipeline.CrawlResult) []string {
	hrefs := make([]string, 0, len(result.Links.Internal)+len(result.Links.External))
	for _, l := range result.Links.Internal {
		hrefs = append(hrefs, l.Href)
	}
	for _, l := range result.Links.External {
		hrefs = append(hrefs, l.Href)
	}
	return hrefs
}

// resolveChild normalizes href against base and admits it only if its
// host is in cfg.AllowedHosts() (when that set is non-empty) and its
// path starts with one of cfg.AllowedPathPrefix().
func resolveChild(href, base string, cfg config.Config) (string, bool) {
	normalized, ok, err := urlutil.Normalize(href, base, urlutil.NormalizeOptions{})
	if err != nil || !ok {
		return "", false
	}

	parsed, parseErr := url.Parse(normalized)
	if parseErr != nil {
		return "", false
	}

	if allowedHosts := cfg.AllowedHosts(); len(allowedHosts) > 0 {
		if _, ok := allowedHosts[parsed.Host]; !ok {
			return "", false
		}
	}

	prefixes := cfg.AllowedPathPrefix()
	if len(prefixes) > 0 {
		matched := false
		for _, prefix := range prefixes {
			if strings.HasPrefix(parsed.Path, prefix) {
				matched = true
				break
			}
		}
		if !matched {
			return "", false
		}
	}

	return normalized, true
}

// newFrontier returns enqueue/dequeue closures over either a FIFOQueue
// (bfs, the default) or a LIFOStack (dfs), per strategyName.
func newFrontier(strategyName string) (enqueue func(frontierEntry), dequeue func() (frontierEntry, bool)) {
	if strings.ToLower(strategyName) == strategyDFS {
		stack := frontier.NewLIFOStack[frontierEntry]()
		return stack.Push, stack.Pop
	}
	queue := frontier.NewFIFOQueue[frontierEntry]()
	return queue.Enqueue, queue.Dequeue
}
