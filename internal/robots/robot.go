package robots

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gobwas/glob"
	"github.com/rohmanhakim/docs-crawler/internal/metadata"
	"github.com/rohmanhakim/docs-crawler/internal/robots/cache"
)

/*
Responsibilities

- Fetch robots.txt per host
- Cache rules for crawl duration
- Enforce allow/disallow rules before fetch

Robots checks occur in the pipeline, right before a URL is fetched.
*/

const decidePackageName = "robots"

// robotState is the mutable, per-instance cache of resolved rule sets.
// It lives behind a pointer so CachedRobot itself stays comparable with
// ==, matching the rest of the package's value-type ruleSet/Decision
// idiom.
type robotState struct {
	mu    sync.RWMutex
	rules map[string]ruleSet
}

// Robot decides whether a URL may be fetched under robots.txt policy.
// The pipeline depends on this interface rather than CachedRobot
// directly so admission checks stay testable without a real fetcher.
type Robot interface {
	Decide(target url.URL) (Decision, *RobotsError)
}

// CachedRobot enforces robots.txt policy for a single user agent,
// caching resolved rule sets per host for the lifetime of the crawl.
type CachedRobot struct {
	sink      metadata.MetadataSink
	userAgent string
	fetcher   *RobotsFetcher
	state     *robotState
}

// NewCachedRobot constructs a CachedRobot bound to sink. Call Init or
// InitWithCache before Decide.
func NewCachedRobot(sink metadata.MetadataSink) CachedRobot {
	return CachedRobot{sink: sink}
}

// Init prepares the robot with an in-memory, session-scoped cache.
func (r *CachedRobot) Init(userAgent string) {
	r.InitWithCache(userAgent, cache.NewMemoryCache())
}

// InitWithCache prepares the robot with a caller-supplied Cache, letting
// callers share or persist robots.txt results across robots instances.
func (r *CachedRobot) InitWithCache(userAgent string, customCache cache.Cache) {
	r.userAgent = userAgent
	r.fetcher = NewRobotsFetcherWithClient(r.sink, userAgent, &http.Client{Timeout: 30 * time.Second}, customCache)
	r.state = &robotState{rules: make(map[string]ruleSet)}
}

// Decide resolves the robots.txt rules for target's host and reports
// whether the user agent is permitted to fetch it.
func (r *CachedRobot) Decide(target url.URL) (Decision, *RobotsError) {
	scheme := target.Scheme
	if scheme == "" {
		scheme = "http"
	}
	host := target.Host

	rs, err := r.resolveRuleSet(scheme, host)
	if err != nil {
		r.recordDecideError(target, err)
		return Decision{}, err
	}

	allowed, reason := evaluatePath(rs, target.Path)

	var crawlDelay time.Duration
	if d := rs.CrawlDelay(); d != nil {
		crawlDelay = *d
	}

	return Decision{
		Url:        target,
		Allowed:    allowed,
		Reason:     reason,
		CrawlDelay: crawlDelay,
	}, nil
}

func (r *CachedRobot) resolveRuleSet(scheme, host string) (ruleSet, *RobotsError) {
	r.state.mu.RLock()
	rs, found := r.state.rules[host]
	r.state.mu.RUnlock()
	if found {
		return rs, nil
	}

	result, err := r.fetcher.Fetch(context.Background(), scheme, host)
	if err != nil {
		return ruleSet{}, err
	}

	rs = MapResponseToRuleSet(result.Response, r.userAgent, result.FetchedAt)

	r.state.mu.Lock()
	r.state.rules[host] = rs
	r.state.mu.Unlock()

	return rs, nil
}

func (r *CachedRobot) recordDecideError(target url.URL, err *RobotsError) {
	if r.sink == nil {
		return
	}
	r.sink.RecordError(
		time.Now(),
		decidePackageName,
		"decide",
		mapRobotsErrorToMetadataCause(err),
		err.Error(),
		[]metadata.Attribute{
			metadata.NewAttr(metadata.AttrURL, target.String()),
			metadata.NewAttr(metadata.AttrHost, target.Host),
		},
	)
}

// evaluatePath applies robots.txt allow/disallow precedence to path: the
// longest matching pattern wins; ties favor Allow.
func evaluatePath(rs ruleSet, path string) (bool, DecisionReason) {
	if !rs.hasGroups {
		return true, EmptyRuleSet
	}
	if !rs.matchedGroup {
		return true, UserAgentNotMatched
	}

	bestAllow := bestMatchLength(rs.AllowRules(), path)
	bestDisallow := bestMatchLength(rs.DisallowRules(), path)

	if bestDisallow > bestAllow {
		return false, DisallowedByRobots
	}
	if bestAllow >= 0 {
		return true, AllowedByRobots
	}
	return true, NoMatchingRules
}

// bestMatchLength returns the specificity (pattern length, $ excluded) of
// the longest rule matching path, or -1 if none match.
func bestMatchLength(rules []pathRule, path string) int {
	best := -1
	for _, rule := range rules {
		matched, length := matchesPattern(rule.Prefix(), path)
		if matched && length > best {
			best = length
		}
	}
	return best
}

// matchesPattern evaluates a single robots.txt pattern against path.
// '*' matches any sequence of characters (including none); a trailing
// '$' anchors the match to the end of path instead of treating the
// pattern as a prefix.
func matchesPattern(pattern, path string) (bool, int) {
	anchored := strings.HasSuffix(pattern, "$")
	core := pattern
	if anchored {
		core = strings.TrimSuffix(pattern, "$")
	}
	if core == "" {
		return true, 0
	}

	candidate := core
	if !anchored {
		candidate = core + "*"
	}

	g, err := glob.Compile(candidate)
	if err != nil {
		// Pattern isn't valid glob syntax (stray brackets, etc). Fall
		// back to a literal prefix match rather than rejecting it.
		return strings.HasPrefix(path, core), len(core)
	}
	return g.Match(path), len(core)
}
