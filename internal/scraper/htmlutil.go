package scraper

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// keptAttrsByTag lists the attributes preserved per tag when stripping
// non-essential attributes; anything else (style, class, id, on*, data-*
// unless opted in) is dropped.
var keptAttrsByTag = map[string]map[string]struct{}{
	"a":      {"href": {}, "title": {}},
	"img":    {"src": {}, "alt": {}, "width": {}, "height": {}},
	"video":  {"src": {}, "poster": {}},
	"audio":  {"src": {}},
	"source": {"src": {}, "type": {}},
}

func removeComments(scope *goquery.Selection) {
	for _, n := range scope.Nodes {
		removeCommentsIn(n)
	}
}

func removeCommentsIn(n *html.Node) {
	var next *html.Node
	for c := n.FirstChild; c != nil; c = next {
		next = c.NextSibling
		if c.Type == html.CommentNode {
			n.RemoveChild(c)
			continue
		}
		removeCommentsIn(c)
	}
}

// pruneByWordCount recursively removes element nodes (other than the
// scope roots themselves) whose own text is below threshold words and
// which carry no media/link descendant worth keeping.
func pruneByWordCount(scope *goquery.Selection, threshold int) {
	if threshold <= 0 {
		return
	}
	for _, n := range scope.Nodes {
		pruneChildren(n, threshold)
	}
}

func pruneChildren(n *html.Node, threshold int) {
	var next *html.Node
	for c := n.FirstChild; c != nil; c = next {
		next = c.NextSibling
		if c.Type != html.ElementNode {
			continue
		}
		pruneChildren(c, threshold)
		if shouldPrune(c, threshold) {
			n.RemoveChild(c)
		}
	}
}

func shouldPrune(n *html.Node, threshold int) bool {
	if hasMediaOrLinkDescendant(n) {
		return false
	}
	words := len(strings.Fields(nodeText(n)))
	return words < threshold
}

func hasMediaOrLinkDescendant(n *html.Node) bool {
	if n.Type == html.ElementNode {
		switch n.Data {
		case "img", "video", "audio", "a":
			return true
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if hasMediaOrLinkDescendant(c) {
			return true
		}
	}
	return false
}

func nodeText(n *html.Node) string {
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

// flattenWrappers collapses div/span elements whose only meaningful
// content is a single element child into that child, removing a layer
// of layout wrapping left over after cleaning.
func flattenWrappers(scope *goquery.Selection) {
	for _, n := range scope.Nodes {
		flattenChildren(n)
	}
}

func flattenChildren(n *html.Node) {
	var next *html.Node
	for c := n.FirstChild; c != nil; c = next {
		next = c.NextSibling
		if c.Type != html.ElementNode {
			continue
		}
		flattenChildren(c)
	}

	if n.Type != html.ElementNode {
		return
	}
	if n.Data != "div" && n.Data != "span" {
		return
	}

	onlyChild := soleElementChild(n)
	if onlyChild == nil {
		return
	}

	parent := n.Parent
	if parent == nil {
		return
	}
	n.RemoveChild(onlyChild)
	parent.InsertBefore(onlyChild, n)
	parent.RemoveChild(n)
}

// soleElementChild returns n's only element child if every other child
// is whitespace-only text, else nil.
func soleElementChild(n *html.Node) *html.Node {
	var sole *html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case html.ElementNode:
			if sole != nil {
				return nil
			}
			sole = c
		case html.TextNode:
			if strings.TrimSpace(c.Data) != "" {
				return nil
			}
		default:
			return nil
		}
	}
	return sole
}

func stripNonEssentialAttrs(scope *goquery.Selection, keepDataAttrs bool) {
	for _, n := range scope.Nodes {
		stripAttrsIn(n, keepDataAttrs)
	}
}

func stripAttrsIn(n *html.Node, keepDataAttrs bool) {
	if n.Type == html.ElementNode {
		allowed := keptAttrsByTag[n.Data]
		kept := n.Attr[:0:0]
		for _, a := range n.Attr {
			if _, ok := allowed[a.Key]; ok {
				kept = append(kept, a)
				continue
			}
			if keepDataAttrs && strings.HasPrefix(a.Key, "data-") {
				kept = append(kept, a)
			}
		}
		n.Attr = kept
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		stripAttrsIn(c, keepDataAttrs)
	}
}

func renderSelection(scope *goquery.Selection) string {
	var b strings.Builder
	for _, n := range scope.Nodes {
		_ = html.Render(&b, n)
	}
	return b.String()
}
