package scraper

import (
	"strings"

	"github.com/dyatlov/go-opengraph/opengraph"
	"golang.org/x/net/html"
)

// extractMetadata pulls title/description/keywords/author/og:*/twitter:*
// from the original (uncleaned) document head, per §4.8's "extract from
// the original head, not the cleaned tree" rule.
func extractMetadata(doc *html.Node) map[string]string {
	meta := make(map[string]string)

	head := findHead(doc)
	if head == nil {
		return meta
	}

	var buf strings.Builder
	if err := html.Render(&buf, head); err == nil {
		og := opengraph.NewOpenGraph()
		if err := og.ProcessHTML(strings.NewReader(buf.String())); err == nil {
			putIfNotEmpty(meta, "og:title", og.Title)
			putIfNotEmpty(meta, "og:description", og.Description)
			putIfNotEmpty(meta, "og:type", og.Type)
			putIfNotEmpty(meta, "og:url", og.URL)
			putIfNotEmpty(meta, "og:site_name", og.SiteName)
		}
	}

	walkMeta(head, meta)
	if title := findTitle(head); title != "" {
		meta["title"] = title
	}
	return meta
}

func findHead(doc *html.Node) *html.Node {
	var head *html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if head != nil {
			return
		}
		if n.Type == html.ElementNode && strings.EqualFold(n.Data, "head") {
			head = n
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return head
}

func findTitle(head *html.Node) string {
	var title string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if title != "" {
			return
		}
		if n.Type == html.ElementNode && strings.EqualFold(n.Data, "title") {
			title = strings.TrimSpace(textOf(n))
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(head)
	return title
}

func walkMeta(head *html.Node, meta map[string]string) {
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && strings.EqualFold(n.Data, "meta") {
			attrs := attrMap(n)
			content := strings.TrimSpace(attrs["content"])
			if content != "" {
				if name := strings.ToLower(strings.TrimSpace(attrs["name"])); name != "" {
					switch name {
					case "description", "keywords", "author":
						meta[name] = content
					default:
						if strings.HasPrefix(name, "twitter:") {
							meta[name] = content
						}
					}
				}
				if property := strings.ToLower(strings.TrimSpace(attrs["property"])); property != "" {
					if strings.HasPrefix(property, "og:") || property == "article:modified_time" {
						putIfNotEmpty(meta, property, content)
					}
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(head)
}

func attrMap(n *html.Node) map[string]string {
	m := make(map[string]string, len(n.Attr))
	for _, a := range n.Attr {
		m[strings.ToLower(a.Key)] = a.Val
	}
	return m
}

func textOf(n *html.Node) string {
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

func putIfNotEmpty(m map[string]string, key, value string) {
	if strings.TrimSpace(value) != "" {
		if _, exists := m[key]; !exists {
			m[key] = value
		}
	}
}
