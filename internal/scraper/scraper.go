package scraper

import (
	"bytes"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rohmanhakim/docs-crawler/internal/metadatastore"
	"github.com/rohmanhakim/docs-crawler/pkg/urlutil"
)

var alwaysRemovedTags = map[string]struct{}{
	"script":   {},
	"style":    {},
	"link":     {},
	"meta":     {},
	"noscript": {},
}

// Scrape implements §4.8: parse htmlBytes, optionally scope to a CSS
// selector, strip noise, inventory links/media, and return the cleaned
// HTML alongside metadata pulled from the original head.
func Scrape(pageURL string, htmlBytes []byte, opts Options) Result {
	originalDoc, err := goquery.NewDocumentFromReader(bytes.NewReader(htmlBytes))
	if err != nil {
		return Result{Success: false, Note: "unparseable HTML: " + err.Error()}
	}

	meta := map[string]string{}
	if root := originalDoc.Get(0); root != nil {
		meta = extractMetadata(root)
	}

	scope := originalDoc.Selection
	if opts.CSSSelector != "" {
		scoped := originalDoc.Find(opts.CSSSelector)
		if scoped.Length() == 0 {
			return Result{
				Success:  true,
				Note:     "css_selector matched no elements",
				Metadata: meta,
			}
		}
		scope = scoped
	}

	parsedPageURL, _ := url.Parse(pageURL)
	var baseDomain string
	if parsedPageURL != nil {
		baseDomain = urlutil.BaseDomain(*parsedPageURL)
	}

	removeExcludedTags(scope, opts.ExcludedTags)

	links := collectLinks(scope, pageURL, baseDomain, opts)
	media := collectMedia(scope, pageURL, baseDomain, opts)

	pruneByWordCount(scope, opts.WordCountThreshold)
	flattenWrappers(scope)
	stripNonEssentialAttrs(scope, opts.KeepDataAttrs)

	return Result{
		CleanedHTML: renderSelection(scope),
		Media:       media,
		Links:       links,
		Metadata:    meta,
		Success:     true,
	}
}

func removeExcludedTags(scope *goquery.Selection, excluded []string) {
	selectors := make([]string, 0, len(alwaysRemovedTags)+len(excluded))
	for tag := range alwaysRemovedTags {
		selectors = append(selectors, tag)
	}
	for _, tag := range excluded {
		tag = strings.TrimSpace(tag)
		if tag != "" {
			selectors = append(selectors, tag)
		}
	}
	if len(selectors) > 0 {
		scope.Find(strings.Join(selectors, ", ")).Remove()
	}
	removeComments(scope)
}

// ---- links ----

func collectLinks(scope *goquery.Selection, pageURL, baseDomain string, opts Options) metadatastore.LinkSet {
	var links metadatastore.LinkSet
	seen := make(map[string]struct{})

	var toRemove []*goquery.Selection

	scope.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		normalized, ok, err := urlutil.Normalize(href, pageURL, urlutil.NormalizeOptions{ExtraTrackingParams: opts.ExtraTrackingParams})
		if err != nil || !ok {
			return
		}
		if _, dup := seen[normalized]; dup {
			toRemove = append(toRemove, a)
			return
		}

		external := urlutil.IsExternal(normalized, baseDomain)
		switch {
		case isExcludedDomain(normalized, opts.ExcludeDomains):
			toRemove = append(toRemove, a)
			return
		case external && opts.ExcludeExternalLinks:
			toRemove = append(toRemove, a)
			return
		case external && opts.ExcludeSocialMediaLinks && isSocialMediaLink(normalized):
			toRemove = append(toRemove, a)
			return
		}

		seen[normalized] = struct{}{}
		link := metadatastore.Link{
			Href:  normalized,
			Text:  strings.TrimSpace(a.Text()),
			Title: attrOrEmpty(a, "title"),
		}
		if external {
			links.External = append(links.External, link)
		} else {
			links.Internal = append(links.Internal, link)
		}
	})

	for _, a := range toRemove {
		a.Remove()
	}

	return links
}

func isExcludedDomain(normalizedURL string, excludedDomains []string) bool {
	if len(excludedDomains) == 0 {
		return false
	}
	lower := strings.ToLower(normalizedURL)
	for _, d := range excludedDomains {
		d = strings.ToLower(strings.TrimSpace(d))
		if d != "" && strings.Contains(lower, d) {
			return true
		}
	}
	return false
}

func isSocialMediaLink(normalizedURL string) bool {
	lower := strings.ToLower(normalizedURL)
	for domain := range socialMediaDomains {
		if strings.Contains(lower, domain) {
			return true
		}
	}
	return false
}

func attrOrEmpty(s *goquery.Selection, name string) string {
	v, _ := s.Attr(name)
	return v
}

// ---- media ----

func collectMedia(scope *goquery.Selection, pageURL, baseDomain string, opts Options) metadatastore.MediaSet {
	var media metadatastore.MediaSet
	var toRemove []*goquery.Selection

	imgs := scope.Find("img")
	total := imgs.Length()

	imgs.Each(func(idx int, img *goquery.Selection) {
		src, exists := img.Attr("src")
		if !exists || strings.TrimSpace(src) == "" {
			toRemove = append(toRemove, img)
			return
		}
		normalized, ok, err := urlutil.Normalize(src, pageURL, urlutil.NormalizeOptions{})
		if err != nil || !ok {
			normalized = src
		}
		if opts.ExcludeExternalImages && urlutil.IsExternal(normalized, baseDomain) {
			toRemove = append(toRemove, img)
			return
		}

		score := scoreImage(img, normalized, idx, total)
		threshold := opts.ImageScoreThreshold
		if threshold == 0 {
			threshold = 2
		}
		if score <= threshold {
			toRemove = append(toRemove, img)
			return
		}

		media.Images = append(media.Images, metadatastore.MediaItem{
			Src:   normalized,
			Alt:   attrOrEmpty(img, "alt"),
			Desc:  nearestDescription(img),
			Score: float64(score),
			Type:  "image",
		})
	})

	for _, tag := range []string{"video", "audio"} {
		kind := tag
		scope.Find(tag).Each(func(_ int, el *goquery.Selection) {
			src, exists := el.Attr("src")
			if !exists || src == "" {
				if firstSource := el.Find("source").First(); firstSource.Length() > 0 {
					src, _ = firstSource.Attr("src")
				}
			}
			if src == "" {
				return
			}
			normalized, ok, err := urlutil.Normalize(src, pageURL, urlutil.NormalizeOptions{})
			if err != nil || !ok {
				normalized = src
			}
			item := metadatastore.MediaItem{
				Src:  normalized,
				Alt:  attrOrEmpty(el, "alt"),
				Desc: nearestDescription(el),
				Type: kind,
			}
			if kind == "video" {
				media.Videos = append(media.Videos, item)
			} else {
				media.Audios = append(media.Audios, item)
			}
		})
	}

	for _, img := range toRemove {
		img.Remove()
	}

	return media
}

func scoreImage(img *goquery.Selection, src string, index, total int) int {
	score := 0
	if dimensionAboveThreshold(img, "width") {
		score++
	}
	if dimensionAboveThreshold(img, "height") {
		score++
	}
	if estimatedByteSizeAboveThreshold(src) {
		score++
	}
	if alt, ok := img.Attr("alt"); ok && strings.TrimSpace(alt) != "" {
		score++
	}
	if isCommonRasterFormat(src) {
		score++
	}
	if total > 0 && index < total/2 {
		score++
	}
	return score
}

func dimensionAboveThreshold(img *goquery.Selection, attr string) bool {
	val, ok := img.Attr(attr)
	if !ok {
		return false
	}
	val = strings.TrimSpace(val)
	if strings.HasSuffix(val, "%") {
		pct, err := strconv.ParseFloat(strings.TrimSuffix(val, "%"), 64)
		return err == nil && pct > 30
	}
	px, err := strconv.Atoi(strings.TrimSuffix(val, "px"))
	return err == nil && px > 150
}

// estimatedByteSizeAboveThreshold approximates the "> 10KB" criterion
// from what's observable without fetching the image: a base64 data URI's
// decoded size, or otherwise treated as unknown (not satisfied).
func estimatedByteSizeAboveThreshold(src string) bool {
	if !strings.HasPrefix(src, "data:") {
		return false
	}
	commaIdx := strings.IndexByte(src, ',')
	if commaIdx < 0 {
		return false
	}
	payload := src[commaIdx+1:]
	return len(payload)*3/4 > 10*1024
}

var rasterFormats = []string{".jpg", ".jpeg", ".png", ".webp", ".gif", ".bmp"}

func isCommonRasterFormat(src string) bool {
	lower := strings.ToLower(src)
	for _, ext := range rasterFormats {
		if strings.Contains(lower, ext) {
			return true
		}
	}
	return false
}

// nearestDescription walks up from el to find the nearest ancestor
// paragraph whose text is at least minDescWords words long.
func nearestDescription(el *goquery.Selection) string {
	for p := el.Parent(); p.Length() > 0; p = p.Parent() {
		switch goquery.NodeName(p) {
		case "p":
			text := strings.TrimSpace(p.Text())
			if len(strings.Fields(text)) >= minDescWords {
				return text
			}
		case "body", "html":
			return ""
		}
	}
	return ""
}
