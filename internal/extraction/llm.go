package extraction

import "fmt"

// LLMMessage is the subset of a provider's chat-completion response this
// strategy reads from, modeled loosely enough to cover the common
// OpenAI-shaped and reasoning-model-shaped providers.
type LLMMessage struct {
	Content              string
	ReasoningContent     string
	ProviderSpecificRefusal string
}

// LLMResponse is what an LLMProvider returns for a single prompt.
type LLMResponse struct {
	Message LLMMessage
}

// LLMProvider calls an LLM with a templated prompt and returns its raw
// response. The provider implementation (which model, which HTTP client)
// is out of scope here; this strategy only consumes the response shape.
type LLMProvider func(prompt string) (LLMResponse, error)

// LLMStrategy extracts structured content by prompting an LLM per
// section and reading back its response through the fallback chain
// message.content -> message.reasoning_content -> refusal (§4.10): a
// falsy prior value (empty string) falls through to the next source.
type LLMStrategy struct{}

var _ Strategy = LLMStrategy{}

func (LLMStrategy) InputFormat() InputFormat { return InputMarkdown }

func (LLMStrategy) Run(sourceURL string, sections []string, cfg Config) ([]Record, error) {
	if cfg.Provider == nil {
		return nil, nil
	}

	records := make([]Record, 0, len(sections))
	for _, section := range sections {
		prompt := buildPrompt(cfg.PromptPrefix, sourceURL, section)
		resp, err := cfg.Provider(prompt)
		if err != nil {
			return records, err
		}
		records = append(records, Record{"content": resolveLLMContent(resp.Message)})
	}
	return records, nil
}

func buildPrompt(prefix, sourceURL, section string) string {
	if prefix == "" {
		prefix = "Extract structured content from the following section."
	}
	return fmt.Sprintf("%s\n\nURL: %s\n\n%s", prefix, sourceURL, section)
}

// resolveLLMContent implements the fallback chain: each candidate is
// used only if the previous one is falsy (here: empty string).
func resolveLLMContent(msg LLMMessage) string {
	if msg.Content != "" {
		return msg.Content
	}
	if msg.ReasoningContent != "" {
		return msg.ReasoningContent
	}
	return msg.ProviderSpecificRefusal
}
