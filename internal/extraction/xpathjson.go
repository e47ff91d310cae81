package extraction

import (
	"regexp"
	"strings"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

// XPathJSONStrategy is the XPath sibling of CSSJSONStrategy: same Schema
// shape, XPath expressions instead of CSS selectors. XPath's own
// following-sibling::/preceding-sibling:: axes cover the sibling-
// combinator case natively, so no special-casing is needed here.
type XPathJSONStrategy struct{}

var _ Strategy = XPathJSONStrategy{}

func (XPathJSONStrategy) InputFormat() InputFormat { return InputHTML }

func (XPathJSONStrategy) Run(_ string, _ []string, cfg Config) ([]Record, error) {
	if cfg.Schema == nil {
		return nil, ErrNoSchema
	}
	doc, err := htmlquery.Parse(strings.NewReader(cfg.DocumentHTML))
	if err != nil {
		return nil, err
	}

	rows, err := htmlquery.QueryAll(doc, cfg.Schema.BaseSelector)
	if err != nil {
		return nil, err
	}

	records := make([]Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, extractXPathRow(row, cfg.Schema.Fields))
	}
	return records, nil
}

func extractXPathRow(row *html.Node, fields []Field) Record {
	record := make(Record, len(fields))
	for _, f := range fields {
		record[f.Name] = extractXPathField(row, f)
	}
	return record
}

func extractXPathField(row *html.Node, f Field) any {
	matches := queryRelative(row, f.Selector)

	switch f.Type {
	case FieldNested:
		if len(matches) == 0 {
			return defaultOr(f.Default, Record{})
		}
		return extractXPathRow(matches[0], f.Fields)
	case FieldList:
		if len(matches) == 0 {
			return defaultOr(f.Default, []any{})
		}
		values := make([]any, 0, len(matches))
		for _, m := range matches {
			values = append(values, xpathScalar(m, f))
		}
		return values
	case FieldNestedList:
		if len(matches) == 0 {
			return defaultOr(f.Default, []any{})
		}
		values := make([]any, 0, len(matches))
		for _, m := range matches {
			values = append(values, extractXPathRow(m, f.Fields))
		}
		return values
	default:
		if len(matches) == 0 {
			return defaultOr(f.Default, "")
		}
		return xpathScalar(matches[0], f)
	}
}

func queryRelative(row *html.Node, selector string) []*html.Node {
	if strings.TrimSpace(selector) == "" {
		return []*html.Node{row}
	}
	nodes, err := htmlquery.QueryAll(row, selector)
	if err != nil {
		return nil
	}
	return nodes
}

func xpathScalar(n *html.Node, f Field) string {
	var raw string
	switch f.Type {
	case FieldAttribute:
		raw = htmlquery.SelectAttr(n, f.Attribute)
	case FieldHTML:
		raw = htmlquery.OutputHTML(n, true)
	case FieldRegex:
		text := htmlquery.InnerText(n)
		if f.Pattern == "" {
			raw = text
			break
		}
		re, err := regexp.Compile(f.Pattern)
		if err != nil {
			raw = ""
			break
		}
		raw = re.FindString(text)
	default:
		raw = strings.TrimSpace(htmlquery.InnerText(n))
	}
	if f.Transform != nil {
		raw = f.Transform(raw)
	}
	return raw
}
