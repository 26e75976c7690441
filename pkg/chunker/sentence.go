package chunker

import (
	"strings"
	"unicode"
)

// SentenceStrategy packs whole sentences into chunks bounded by MaxTokens.
// A single sentence longer than the bound becomes its own chunk rather than
// being split mid-sentence.
type SentenceStrategy struct {
	MaxTokens int
	Count     TokenCounter
}

func (s SentenceStrategy) Name() string { return "sentence" }

func (s SentenceStrategy) Split(text string) ([]string, error) {
	text = Normalize(text)
	if text == "" {
		return nil, nil
	}

	count := s.Count
	if count == nil {
		count = RuneCounter
	}

	sentences := splitIntoSentences(text)
	if len(sentences) == 0 {
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

	for _, sentence := range sentences {
		tokens := count(sentence)
		if currentTokens > 0 && currentTokens+tokens > s.MaxTokens {
			flush()
		}
		current = append(current, sentence)
		currentTokens += tokens
	}
	flush()

	return chunks, nil
}

// splitIntoSentences splits normalized text on terminal punctuation.
// Trailing closing quotes and brackets stay attached to their sentence;
// numeric listings like "1. " do not terminate a sentence.
func splitIntoSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		current.WriteRune(runes[i])

		if runes[i] != '.' && runes[i] != '!' && runes[i] != '?' {
			continue
		}

		if runes[i] == '.' && i > 0 && unicode.IsDigit(runes[i-1]) &&
			i+1 < len(runes) && runes[i+1] == ' ' {
			continue
		}

		j := i + 1
		for j < len(runes) && (runes[j] == '.' || runes[j] == '!' || runes[j] == '?') {
			current.WriteRune(runes[j])
			j++
		}
		for j < len(runes) && (runes[j] == '"' || runes[j] == '\'' || runes[j] == ')' ||
			runes[j] == ']' || runes[j] == '}') {
			current.WriteRune(runes[j])
			j++
		}

		sentence := strings.TrimSpace(current.String())
		if sentence != "" {
			sentences = append(sentences, sentence)
		}
		current.Reset()
		i = j - 1
	}

	remaining := strings.TrimSpace(current.String())
	if remaining != "" {
		sentences = append(sentences, remaining)
	}

	return sentences
}
