package extraction

import (
	"errors"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ErrNoSchema is returned when a CSSJSONStrategy is run without a Schema.
var ErrNoSchema = errors.New("extraction: css json strategy requires a schema")

// CSSJSONStrategy extracts one Record per element matched by
// Schema.BaseSelector, per §4.10.
type CSSJSONStrategy struct{}

var _ Strategy = CSSJSONStrategy{}

func (CSSJSONStrategy) InputFormat() InputFormat { return InputHTML }

func (CSSJSONStrategy) Run(_ string, _ []string, cfg Config) ([]Record, error) {
	if cfg.Schema == nil {
		return nil, ErrNoSchema
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(cfg.DocumentHTML))
	if err != nil {
		return nil, err
	}

	var records []Record
	doc.Find(cfg.Schema.BaseSelector).Each(func(_ int, row *goquery.Selection) {
		records = append(records, extractRow(row, cfg.Schema.Fields))
	})
	return records, nil
}

func extractRow(row *goquery.Selection, fields []Field) Record {
	record := make(Record, len(fields))
	for _, f := range fields {
		record[f.Name] = extractField(row, f)
	}
	return record
}

func extractField(row *goquery.Selection, f Field) any {
	switch f.Type {
	case FieldNested:
		target := resolveSelector(row, f.Selector)
		if target.Length() == 0 {
			return defaultOr(f.Default, Record{})
		}
		return extractRow(target.First(), f.Fields)
	case FieldList:
		target := resolveSelector(row, f.Selector)
		var values []any
		target.Each(func(_ int, s *goquery.Selection) {
			values = append(values, scalarValue(s, f))
		})
		if values == nil {
			return defaultOr(f.Default, []any{})
		}
		return values
	case FieldNestedList:
		target := resolveSelector(row, f.Selector)
		var values []any
		target.Each(func(_ int, s *goquery.Selection) {
			values = append(values, extractRow(s, f.Fields))
		})
		if values == nil {
			return defaultOr(f.Default, []any{})
		}
		return values
	default:
		target := resolveSelector(row, f.Selector)
		if target.Length() == 0 {
			return defaultOr(f.Default, "")
		}
		return scalarValue(target.First(), f)
	}
}

func scalarValue(s *goquery.Selection, f Field) string {
	var raw string
	switch f.Type {
	case FieldAttribute:
		raw, _ = s.Attr(f.Attribute)
	case FieldHTML:
		raw, _ = s.Html()
	case FieldRegex:
		text := s.Text()
		if f.Pattern == "" {
			raw = text
			break
		}
		re, err := regexp.Compile(f.Pattern)
		if err != nil {
			raw = ""
			break
		}
		if m := re.FindString(text); m != "" {
			raw = m
		}
	default:
		raw = strings.TrimSpace(s.Text())
	}
	if f.Transform != nil {
		raw = f.Transform(raw)
	}
	return raw
}

func defaultOr(d any, fallback any) any {
	if d != nil {
		return d
	}
	return fallback
}

// resolveSelector applies selector relative to row. A leading "+" or "~"
// combinator is evaluated against row's own siblings (immediate-next or
// any-following respectively), restricted to the tail of row's sibling
// list — never against the whole document — with the remainder of the
// selector string applied as a descendant search inside the matched
// sibling(s). Anything else is a plain descendant Find under row.
func resolveSelector(row *goquery.Selection, selector string) *goquery.Selection {
	trimmed := strings.TrimSpace(selector)
	if trimmed == "" {
		return row
	}

	combinator := trimmed[0]
	if combinator != '+' && combinator != '~' {
		return row.Find(trimmed)
	}

	rest := strings.TrimSpace(trimmed[1:])
	parts := strings.SplitN(rest, " ", 2)
	firstToken := parts[0]
	var descendant string
	if len(parts) > 1 {
		descendant = strings.TrimSpace(parts[1])
	}

	var siblings *goquery.Selection
	if combinator == '+' {
		siblings = row.Next()
	} else {
		siblings = row.NextAll()
	}
	if firstToken != "" {
		siblings = siblings.Filter(firstToken)
	}

	if descendant == "" {
		return siblings
	}
	return siblings.Find(descendant)
}
