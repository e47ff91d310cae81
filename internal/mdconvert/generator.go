package mdconvert

import (
	"strings"
	"time"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/rohmanhakim/docs-crawler/internal/metadata"
	"github.com/rohmanhakim/docs-crawler/pkg/failure"
	"golang.org/x/net/html"
)

// GenerateResult is §4.9's output triple: the full conversion plus a
// filtered ("fit") view for callers that want boilerplate stripped.
type GenerateResult struct {
	RawMarkdown string
	FitMarkdown string
	FitHTML     string
}

// ContentFilter narrows markdown down to its higher-value blocks. It is
// pluggable so callers can swap in a different strategy per §6's
// content_filter option; PruningContentFilter is the built-in default.
type ContentFilter func(markdown string) string

// GenerateOptions configures a single GenerateFromHTML call.
type GenerateOptions struct {
	// Filter produces FitMarkdown from RawMarkdown. A nil Filter uses
	// PruningContentFilter(0), which drops link-only blocks.
	Filter ContentFilter
}

// Generator produces raw/fit markdown directly from cleaned HTML (§4.9):
// it is the entry point C8's scraper output (or any other cleaned-HTML
// source) feeds into, taking a plain HTML string rather than a
// separately sanitized document type.
type Generator struct {
	metadataSink metadata.MetadataSink
}

// NewGenerator builds a Generator.
func NewGenerator(metadataSink metadata.MetadataSink) *Generator {
	return &Generator{metadataSink: metadataSink}
}

// GenerateFromHTML parses cleanedHTML, converts it to markdown with the
// html-to-markdown converter (base, commonmark and table plugins), and
// applies opts.Filter to derive the fit view.
func (g *Generator) GenerateFromHTML(cleanedHTML string, opts GenerateOptions) (GenerateResult, failure.ClassifiedError) {
	doc, err := html.Parse(strings.NewReader(cleanedHTML))
	if err != nil {
		convErr := &ConversionError{
			Message:   err.Error(),
			Retryable: false,
			Cause:     ErrCauseConversionFailure,
		}
		if g.metadataSink != nil {
			g.metadataSink.RecordError(
				time.Now(),
				"mdconvert",
				"Generator.GenerateFromHTML",
				mapConversionErrorToMetadataCause(*convErr),
				err.Error(),
				[]metadata.Attribute{},
			)
		}
		return GenerateResult{}, convErr
	}

	conv := converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
			table.NewTablePlugin(),
		),
	)

	markdown, convErr := conv.ConvertNode(doc)
	if convErr != nil {
		classified := &ConversionError{
			Message:   convErr.Error(),
			Retryable: false,
			Cause:     ErrCauseConversionFailure,
		}
		if g.metadataSink != nil {
			g.metadataSink.RecordError(
				time.Now(),
				"mdconvert",
				"Generator.GenerateFromHTML",
				mapConversionErrorToMetadataCause(*classified),
				convErr.Error(),
				[]metadata.Attribute{},
			)
		}
		return GenerateResult{}, classified
	}

	raw := string(markdown)
	filter := opts.Filter
	if filter == nil {
		filter = PruningContentFilter(0)
	}
	fit := filter(raw)

	return GenerateResult{
		RawMarkdown: raw,
		FitMarkdown: fit,
		FitHTML:     cleanedHTML,
	}, nil
}

// PruningContentFilter returns a ContentFilter that drops markdown blocks
// (paragraphs separated by blank lines) whose word count is below
// minWordsPerBlock, or which are made up almost entirely of link syntax
// (nav/boilerplate). minWordsPerBlock <= 0 keeps every non-link-only
// block.
func PruningContentFilter(minWordsPerBlock int) ContentFilter {
	return func(markdown string) string {
		blocks := strings.Split(markdown, "\n\n")
		var kept []string
		for _, block := range blocks {
			trimmed := strings.TrimSpace(block)
			if trimmed == "" {
				continue
			}
			if isLinkOnlyBlock(trimmed) {
				continue
			}
			if minWordsPerBlock > 0 && len(strings.Fields(trimmed)) < minWordsPerBlock {
				continue
			}
			kept = append(kept, block)
		}
		return strings.Join(kept, "\n\n")
	}
}

// isLinkOnlyBlock reports whether a markdown block is a single bare link
// or a run of lines that are each just a single "[text](url)" pattern, the
// shape typical of navigation/footer boilerplate.
func isLinkOnlyBlock(block string) bool {
	lines := strings.Split(block, "\n")
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if !isBareLinkLine(line) {
			return false
		}
	}
	return true
}

func isBareLinkLine(line string) bool {
	line = strings.TrimPrefix(line, "- ")
	line = strings.TrimPrefix(line, "* ")
	if !strings.HasPrefix(line, "[") {
		return false
	}
	closeBracket := strings.Index(line, "](")
	if closeBracket < 0 {
		return false
	}
	return strings.HasSuffix(line, ")")
}
