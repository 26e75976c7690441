package chunker

import (
	"strings"
)

// ParagraphStrategy packs whole paragraphs (blank-line separated) into
// chunks bounded by MaxTokens. Paragraph boundaries are read before
// whitespace normalization, because normalization erases them.
type ParagraphStrategy struct {
	MaxTokens int
	Count     TokenCounter
}

func (p ParagraphStrategy) Name() string { return "paragraph" }

func (p ParagraphStrategy) Split(text string) ([]string, error) {
	count := p.Count
	if count == nil {
		count = RuneCounter
	}

	var paragraphs []string
	for _, raw := range strings.Split(text, "\n\n") {
		para := Normalize(raw)
		if para != "" {
			paragraphs = append(paragraphs, para)
		}
	}
	if len(paragraphs) == 0 {
		return nil, nil
	}

	var chunks []string
	var current []string
	currentTokens := 0

	flush := func() {
		if len(current) == 0 {
			return
		}
		chunks = append(chunks, strings.Join(current, " "))
		current = nil
		currentTokens = 0
	}

	for _, para := range paragraphs {
		tokens := count(para)
		if currentTokens > 0 && currentTokens+tokens > p.MaxTokens {
			flush()
		}
		current = append(current, para)
		currentTokens += tokens
	}
	flush()

	return chunks, nil
}
