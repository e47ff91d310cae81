// Package urlutil implements URL normalization and classification (C1).
package urlutil

import (
	"errors"
	"net/url"
	"sort"
	"strings"
)

// ErrInvalidBase is returned when the base URL supplied to Normalize has
// an empty scheme or host.
var ErrInvalidBase = errors.New("urlutil: base URL must have a scheme and host")

// defaultTrackingParams is the built-in set of query keys stripped during
// normalization. It is data-configurable: callers append to it via
// NormalizeOptions.ExtraTrackingParams rather than forking this set.
var defaultTrackingParams = map[string]struct{}{
	"utm_source":   {},
	"utm_medium":   {},
	"utm_campaign": {},
	"utm_term":     {},
	"utm_content":  {},
	"gclid":        {},
	"fbclid":       {},
	"ref":          {},
	"ref_src":      {},
}

// twoLabelTLDs is a small whitelist of effective two-label public suffixes.
// Anything not listed here falls back to the "last two labels" heuristic.
var twoLabelTLDs = map[string]struct{}{
	"co.uk":  {},
	"com.au": {},
	"co.jp":  {},
	"co.nz":  {},
	"co.id":  {},
	"co.in":  {},
	"com.br": {},
}

// NormalizeOptions controls the optional behaviors of Normalize.
type NormalizeOptions struct {
	// KeepFragment preserves the URL fragment instead of stripping it.
	KeepFragment bool
	// PreserveHTTPS upgrades a same-host http resolution back to https
	// when the original reference was carried over an https document.
	PreserveHTTPS bool
	// ExtraTrackingParams is a caller-supplied set of additional query
	// keys to strip, alongside the built-in tracking-parameter set.
	ExtraTrackingParams []string
}

// Normalize resolves href against base and returns its canonical string
// form. It returns ok=false (with a nil error) when href is empty or
// all whitespace, matching the "return null on empty input" contract.
// It returns an error only when base itself has an empty scheme or host.
//
// Normalize is idempotent: Normalize(Normalize(x, b), b) == Normalize(x, b)
// for every valid input pair.
func Normalize(href, base string, opts NormalizeOptions) (result string, ok bool, err error) {
	trimmed := strings.TrimSpace(href)
	if trimmed == "" {
		return "", false, nil
	}

	baseURL, err := url.Parse(base)
	if err != nil {
		return "", false, ErrInvalidBase
	}
	if baseURL.Scheme == "" || baseURL.Host == "" {
		return "", false, ErrInvalidBase
	}

	refURL, err := url.Parse(trimmed)
	if err != nil {
		return "", false, nil
	}

	originalScheme := baseURL.Scheme
	wasProtocolRelative := strings.HasPrefix(trimmed, "//")

	resolved := baseURL.ResolveReference(refURL)

	canonical := canonicalize(*resolved, opts)

	if opts.PreserveHTTPS && !wasProtocolRelative &&
		originalScheme == "https" && canonical.Scheme == "http" &&
		lowerASCII(canonical.Hostname()) == lowerASCII(baseURL.Hostname()) {
		canonical.Scheme = "https"
		if canonical.Host != "" {
			if _, port := splitHostPort(canonical.Host); port == "443" {
				canonical.Host = canonical.Hostname()
			}
		}
	}

	return canonical.String(), true, nil
}

// canonicalize applies the host/port/path/query/fragment rules of §4.1
// to an already-resolved URL.
func canonicalize(u url.URL, opts NormalizeOptions) url.URL {
	canonical := u

	canonical.Scheme = lowerASCII(canonical.Scheme)
	canonical.Host = lowerASCII(canonical.Host)

	if host, port := canonical.Hostname(), canonical.Port(); port != "" {
		if (canonical.Scheme == "http" && port == "80") ||
			(canonical.Scheme == "https" && port == "443") {
			canonical.Host = host
		}
	}

	canonical.Path = collapseSlashes(canonical.Path)
	if len(canonical.Path) > 1 {
		canonical.Path = stripTrailingSlash(canonical.Path)
	}

	canonical.RawQuery = normalizeQuery(canonical.RawQuery, opts.ExtraTrackingParams)
	canonical.ForceQuery = false

	if !opts.KeepFragment {
		canonical.Fragment = ""
		canonical.RawFragment = ""
	}

	return canonical
}

// Canonicalize is kept for callers that already hold a parsed url.URL,
// such as the asset resolver. Unlike Normalize it does not collapse
// duplicate slashes or filter tracking parameters: it lowercases
// scheme/host, strips default ports, trims trailing slashes from the path,
// and removes the fragment and query entirely.
func Canonicalize(sourceUrl url.URL) url.URL {
	canonical := sourceUrl
	canonical.Scheme = lowerASCII(canonical.Scheme)
	canonical.Host = lowerASCII(canonical.Host)

	if host, port := canonical.Hostname(), canonical.Port(); port != "" {
		if (canonical.Scheme == "http" && port == "80") ||
			(canonical.Scheme == "https" && port == "443") {
			canonical.Host = host
		}
	}

	if len(canonical.Path) > 1 {
		canonical.Path = stripTrailingSlash(canonical.Path)
	}

	canonical.Fragment = ""
	canonical.RawFragment = ""
	canonical.RawQuery = ""
	canonical.ForceQuery = false

	return canonical
}

// Resolve resolves a (possibly relative) reference URL against a scheme
// and host, returning the absolute result. It is used when a document's
// origin is known but no single base *url.URL is threaded through.
func Resolve(ref url.URL, scheme, host string) url.URL {
	if ref.IsAbs() {
		return ref
	}
	base := url.URL{Scheme: scheme, Host: host, Path: "/"}
	resolved := base.ResolveReference(&ref)
	return *resolved
}

// FilterByHost returns the subset of urls whose host matches host
// (case-insensitively).
func FilterByHost(host string, urls []url.URL) []url.URL {
	target := lowerASCII(host)
	filtered := make([]url.URL, 0, len(urls))
	for _, u := range urls {
		if lowerASCII(u.Hostname()) == target {
			filtered = append(filtered, u)
		}
	}
	return filtered
}

// BaseDomain returns the registrable domain (eTLD+1) of a URL, stripping
// a leading "www." label. It uses a small whitelist of two-label public
// suffixes; hosts not matching the whitelist fall back to their last two
// labels.
func BaseDomain(u url.URL) string {
	host := lowerASCII(u.Hostname())
	host = strings.TrimPrefix(host, "www.")

	labels := strings.Split(host, ".")
	if len(labels) < 2 {
		return host
	}

	if len(labels) >= 3 {
		lastTwo := strings.Join(labels[len(labels)-2:], ".")
		if _, ok := twoLabelTLDs[lastTwo]; ok {
			return strings.Join(labels[len(labels)-3:], ".")
		}
	}

	return strings.Join(labels[len(labels)-2:], ".")
}

// IsExternal reports whether normalizedURL is outside baseDomain. Non-web
// schemes (mailto:, tel:, ftp:, javascript:, data:) are always classified
// as external.
func IsExternal(normalizedURL string, baseDomain string) bool {
	u, err := url.Parse(normalizedURL)
	if err != nil {
		return true
	}

	switch strings.ToLower(u.Scheme) {
	case "mailto", "tel", "ftp", "javascript", "data":
		return true
	}

	return BaseDomain(*u) != baseDomain
}

// normalizeQuery lowercases keys, drops tracking parameters, preserves
// blank values, and sorts keys alphabetically, producing a deterministic
// encoded query string.
func normalizeQuery(rawQuery string, extraTracking []string) string {
	if rawQuery == "" {
		return ""
	}

	tracking := make(map[string]struct{}, len(defaultTrackingParams)+len(extraTracking))
	for k := range defaultTrackingParams {
		tracking[k] = struct{}{}
	}
	for _, k := range extraTracking {
		tracking[lowerASCII(k)] = struct{}{}
	}

	pairs := strings.Split(rawQuery, "&")
	type kv struct{ key, value string }
	kept := make([]kv, 0, len(pairs))

	for _, pair := range pairs {
		if pair == "" {
			continue
		}
		var key, value string
		if idx := strings.IndexByte(pair, '='); idx >= 0 {
			key = pair[:idx]
			value = pair[idx+1:]
		} else {
			key = pair
			value = ""
		}

		decodedKey, err := url.QueryUnescape(key)
		if err != nil {
			decodedKey = key
		}
		lowerKey := lowerASCII(decodedKey)

		if _, skip := tracking[lowerKey]; skip {
			continue
		}

		kept = append(kept, kv{key: lowerKey, value: value})
	}

	if len(kept) == 0 {
		return ""
	}

	sort.SliceStable(kept, func(i, j int) bool { return kept[i].key < kept[j].key })

	var b strings.Builder
	for i, p := range kept {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(p.key))
		b.WriteByte('=')
		b.WriteString(p.value)
	}
	return b.String()
}

// collapseSlashes removes duplicate internal path slashes while
// preserving a single leading slash.
func collapseSlashes(path string) string {
	if !strings.Contains(path, "//") {
		return path
	}
	var b strings.Builder
	b.Grow(len(path))
	var prevSlash bool
	for i := 0; i < len(path); i++ {
		c := path[i]
		if c == '/' {
			if prevSlash {
				continue
			}
			prevSlash = true
		} else {
			prevSlash = false
		}
		b.WriteByte(c)
	}
	return b.String()
}

func splitHostPort(hostport string) (string, string) {
	idx := strings.LastIndexByte(hostport, ':')
	if idx < 0 {
		return hostport, ""
	}
	return hostport[:idx], hostport[idx+1:]
}

// lowerASCII converts ASCII characters to lowercase without allocating
// when no conversion is needed.
func lowerASCII(s string) string {
	var needsLower bool
	for i := 0; i < len(s); i++ {
		if s[i] >= 'A' && s[i] <= 'Z' {
			needsLower = true
			break
		}
	}
	if !needsLower {
		return s
	}
	b := make([]byte, len(s))
	copy(b, s)
	for i := 0; i < len(b); i++ {
		if b[i] >= 'A' && b[i] <= 'Z' {
			b[i] += 'a' - 'A'
		}
	}
	return string(b)
}

// stripTrailingSlash removes trailing slashes from a path, leaving root
// ("/") intact.
func stripTrailingSlash(path string) string {
	for len(path) > 1 && path[len(path)-1] == '/' {
		path = path[:len(path)-1]
	}
	return path
}
