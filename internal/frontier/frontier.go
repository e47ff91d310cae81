package frontier

import "github.com/rohmanhakim/docs-crawler/internal/config"

/*
Frontier provides the building blocks a crawl traversal is made of:
- FIFOQueue (BFS order), LIFOStack (DFS order) and Set (deduplication)
- CrawlToken, CrawlAdmissionCandidate and DiscoveryMetadata, which carry
  a URL together with its depth

The package does no traversal itself: ordering, depth limits and page
budgets are applied by internal/deepcrawl using these containers.
It knows nothing about fetching, extraction, markdown or storage.
*/

// CrawlingPolicy carries no fields; NewCrawlingPolicy ignores cfg.
type CrawlingPolicy struct{}

func NewCrawlingPolicy(cfg config.Config) CrawlingPolicy {
	return CrawlingPolicy{}
}
