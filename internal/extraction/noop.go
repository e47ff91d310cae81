package extraction

// NoOpStrategy returns each input section unchanged as its own record.
type NoOpStrategy struct{}

var _ Strategy = NoOpStrategy{}

func (NoOpStrategy) InputFormat() InputFormat { return InputMarkdown }

func (NoOpStrategy) Run(_ string, sections []string, _ Config) ([]Record, error) {
	records := make([]Record, 0, len(sections))
	for _, s := range sections {
		records = append(records, Record{"content": s})
	}
	return records, nil
}
