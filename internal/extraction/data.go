// Package extraction implements C10: pluggable strategies that turn
// cleaned content into structured records.
package extraction

// InputFormat is the content representation a Strategy consumes.
type InputFormat string

const (
	InputMarkdown    InputFormat = "markdown"
	InputHTML        InputFormat = "html"
	InputFitMarkdown InputFormat = "fit_markdown"
)

// Record is one structured extraction result. Field values are strings,
// nested records, or lists of either, matching the JSON-ish shape the
// spec's built-ins produce.
type Record map[string]any

// Config carries the inputs a Strategy.Run call needs beyond the raw
// sections: the original document HTML (for CSS/XPath strategies that
// must walk a DOM rather than the already-flattened sections), and any
// strategy-specific schema/options.
type Config struct {
	// DocumentHTML is the cleaned HTML the sections were derived from.
	// CSS/XPath strategies parse this directly instead of sections.
	DocumentHTML string
	// Schema is the CSS/XPath JSON extraction schema (nil for other
	// strategies).
	Schema *Schema
	// RegexPatterns lists which built-in regex labels to apply; empty
	// means "all built-ins". UserPatterns adds caller-supplied labeled
	// patterns on top.
	RegexPatterns []string
	UserPatterns  map[string]string
	// Embedder backs the Cosine strategy.
	Embedder Embedder
	// SimilarityThreshold is the Cosine strategy's clustering cutoff.
	SimilarityThreshold float64
	// Provider backs the LLM strategy.
	Provider     LLMProvider
	PromptPrefix string
}

// Strategy is the C10 contract every built-in and plugin implements.
type Strategy interface {
	InputFormat() InputFormat
	Run(sourceURL string, sections []string, cfg Config) ([]Record, error)
}
