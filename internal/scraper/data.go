// Package scraper implements C8: turning raw HTML into cleaned HTML plus
// the media/links/metadata inventories the rest of the pipeline needs.
package scraper

import "github.com/rohmanhakim/docs-crawler/internal/metadatastore"

// Options configures a single Scrape call. Zero value is usable: an
// empty CSSSelector scopes to the whole document, a zero
// WordCountThreshold keeps everything, a zero ImageScoreThreshold is
// treated as 2, so only images scoring above 2 are kept.
type Options struct {
	WordCountThreshold      int
	CSSSelector             string
	ExcludedTags            []string
	KeepDataAttrs           bool
	ImageScoreThreshold     int
	ExcludeDomains          []string
	ExcludeExternalLinks    bool
	ExcludeSocialMediaLinks bool
	ExcludeExternalImages   bool
	// ExtraTrackingParams is passed through to the URL normalizer.
	ExtraTrackingParams []string
}

// Result is C8's output: cleaned HTML, the media/link inventories, and
// metadata pulled from the original (uncleaned) head.
type Result struct {
	CleanedHTML string
	Media       metadatastore.MediaSet
	Links       metadatastore.LinkSet
	Metadata    map[string]string
	Success     bool
	Note        string
}

var socialMediaDomains = map[string]struct{}{
	"facebook.com":  {},
	"twitter.com":   {},
	"x.com":         {},
	"instagram.com": {},
	"linkedin.com":  {},
	"youtube.com":   {},
	"tiktok.com":    {},
	"pinterest.com": {},
	"reddit.com":    {},
}

const minDescWords = 5
