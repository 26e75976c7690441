package chunker

import (
	"encoding/csv"
	"fmt"
	"strings"
)

// CSVStrategy splits tabular text into row groups bounded by MaxTokens.
// The header row is repeated at the start of every chunk so each chunk
// stays interpretable on its own.
type CSVStrategy struct {
	MaxTokens int
	Count     TokenCounter
	Separator rune
}

func (c CSVStrategy) Name() string { return "csv" }

func (c CSVStrategy) Split(text string) ([]string, error) {
	count := c.Count
	if count == nil {
		count = RuneCounter
	}
	sep := c.Separator
	if sep == 0 {
		sep = ','
	}

	reader := csv.NewReader(strings.NewReader(text))
	reader.Comma = sep
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing csv: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	header := strings.Join(records[0], string(sep))
	headerTokens := count(header)
	rows := records[1:]
	if len(rows) == 0 {
		return []string{header}, nil
	}

	var chunks []string
	var current []string
	currentTokens := headerTokens

	flush := func() {
		if len(current) == 0 {
			return
		}
		chunks = append(chunks, header+"\n"+strings.Join(current, "\n"))
		current = nil
		currentTokens = headerTokens
	}

	for _, record := range rows {
		row := strings.Join(record, string(sep))
		tokens := count(row)
		if len(current) > 0 && currentTokens+tokens > c.MaxTokens {
			flush()
		}
		current = append(current, row)
		currentTokens += tokens
	}
	flush()

	return chunks, nil
}
