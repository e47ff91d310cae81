// Package fingerprint computes a canonical, deterministic digest of the
// semantically stable subset of an HTML document's <head> (C5 input).
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// signal is one canonical (key, value) pair pulled from <head>. Two heads
// with the same set of signals (regardless of source attribute order or
// tag/attribute letter case) fingerprint identically.
type signal struct {
	key   string
	value string
}

// Fingerprint extracts title, meta description/keywords/author, every
// meta property="og:*", every meta name="twitter:*", and
// meta property="article:modified_time" from headHTML, canonicalizes
// them, and returns a hex digest. Returns "" when no signal is present,
// per §4.4.
func Fingerprint(headHTML string) string {
	signals := collectSignals(headHTML)
	if len(signals) == 0 {
		return ""
	}

	sort.Slice(signals, func(i, j int) bool {
		if signals[i].key != signals[j].key {
			return signals[i].key < signals[j].key
		}
		return signals[i].value < signals[j].value
	})

	var b strings.Builder
	for _, s := range signals {
		b.WriteString(s.key)
		b.WriteByte('=')
		b.WriteString(s.value)
		b.WriteByte('\n')
	}

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

func collectSignals(headHTML string) []signal {
	context := &html.Node{Type: html.ElementNode, Data: "head", DataAtom: atom.Head}
	nodes, err := html.ParseFragment(strings.NewReader(headHTML), context)
	if err != nil {
		return nil
	}

	var signals []signal
	for _, n := range nodes {
		walk(n, &signals)
	}
	return signals
}

func walk(n *html.Node, signals *[]signal) {
	if n.Type == html.ElementNode {
		switch strings.ToLower(n.Data) {
		case "title":
			if text := strings.TrimSpace(textContent(n)); text != "" {
				*signals = append(*signals, signal{key: "title", value: normalizeSpace(text)})
			}
		case "meta":
			if s, ok := metaSignal(n); ok {
				*signals = append(*signals, s)
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, signals)
	}
}

func metaSignal(n *html.Node) (signal, bool) {
	attrs := attrMap(n)

	content := strings.TrimSpace(attrs["content"])
	if content == "" {
		return signal{}, false
	}

	if name := strings.ToLower(strings.TrimSpace(attrs["name"])); name != "" {
		switch name {
		case "description", "keywords", "author":
			return signal{key: name, value: normalizeSpace(content)}, true
		}
		if strings.HasPrefix(name, "twitter:") {
			return signal{key: name, value: normalizeSpace(content)}, true
		}
		return signal{}, false
	}

	if property := strings.ToLower(strings.TrimSpace(attrs["property"])); property != "" {
		if strings.HasPrefix(property, "og:") || property == "article:modified_time" {
			return signal{key: property, value: normalizeSpace(content)}, true
		}
	}

	return signal{}, false
}

func attrMap(n *html.Node) map[string]string {
	m := make(map[string]string, len(n.Attr))
	for _, a := range n.Attr {
		m[strings.ToLower(a.Key)] = a.Val
	}
	return m
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

func normalizeSpace(s string) string {
	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}
