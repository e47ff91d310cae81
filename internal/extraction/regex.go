package extraction

import (
	"fmt"
	"regexp"
	"strings"
)

// builtinPatterns is the default labeled pattern set §4.10 names.
var builtinPatterns = map[string]string{
	"email":      `[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`,
	"phone":      `\+?\d{1,3}[-.\s]?\(?\d{1,4}\)?[-.\s]?\d{2,4}[-.\s]?\d{2,4}[-.\s]?\d{0,4}`,
	"url":        `https?://[^\s<>"']+`,
	"iso_date":   `\d{4}-\d{2}-\d{2}`,
	"us_date":    `\d{1,2}/\d{1,2}/\d{2,4}`,
	"ip":         `\b(?:\d{1,3}\.){3}\d{1,3}\b`,
	"currency":   `[$€£¥]\s?\d[\d,]*(?:\.\d+)?`,
}

// RegexStrategy extracts labeled spans from plain-text sections using the
// built-in pattern set plus any caller-supplied patterns.
type RegexStrategy struct {
	patterns map[string]*regexp.Regexp
}

var _ Strategy = (*RegexStrategy)(nil)

// NewRegexStrategy compiles the requested built-in labels (all of them
// when labels is empty) plus userPatterns, stripping stray control
// characters out of caller-supplied patterns before compiling. A pattern
// that still fails to compile makes it return an error.
func NewRegexStrategy(labels []string, userPatterns map[string]string) (*RegexStrategy, error) {
	compiled := make(map[string]*regexp.Regexp)

	selected := builtinPatterns
	if len(labels) > 0 {
		selected = make(map[string]string, len(labels))
		for _, label := range labels {
			if pattern, ok := builtinPatterns[label]; ok {
				selected[label] = pattern
			}
		}
	}

	for label, pattern := range selected {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("extraction: builtin pattern %q: %w", label, err)
		}
		compiled[label] = re
	}

	for label, pattern := range userPatterns {
		re, err := safeCompile(pattern)
		if err != nil {
			return nil, fmt.Errorf("extraction: user pattern %q: %w", label, err)
		}
		compiled[label] = re
	}

	return &RegexStrategy{patterns: compiled}, nil
}

// safeCompile strips non-printable control characters (anything a stray
// copy-paste might have introduced) before handing the pattern to the
// regexp compiler.
func safeCompile(pattern string) (*regexp.Regexp, error) {
	var b strings.Builder
	for _, r := range pattern {
		if r < 0x20 && r != '\t' {
			continue
		}
		b.WriteRune(r)
	}
	return regexp.Compile(b.String())
}

func (r *RegexStrategy) InputFormat() InputFormat { return InputMarkdown }

func (r *RegexStrategy) Run(_ string, sections []string, _ Config) ([]Record, error) {
	var records []Record
	for _, section := range sections {
		for label, re := range r.patterns {
			for _, match := range re.FindAllString(section, -1) {
				records = append(records, Record{"label": label, "value": match})
			}
		}
	}
	return records, nil
}
