package summary

import (
	"context"
	"fmt"
	"strings"

	"github.com/trellis-kg/trellis/pkg/datapoint"
	"github.com/trellis-kg/trellis/pkg/extract"

	"github.com/google/uuid"
)

// InvalidSummaryInputsError reports inputs the summarizer refuses to
// process: empty elements or text with nothing to condense. It is a local
// input error, never a retry path.
type InvalidSummaryInputsError struct {
	Index  int
	Reason string
}

func (e *InvalidSummaryInputsError) Error() string {
	return fmt.Sprintf("invalid summary input at index %d: %s", e.Index, e.Reason)
}

// CodeUnit is one summarizable unit of source code.
type CodeUnit struct {
	ID       uuid.UUID
	Dataset  string
	Language string
	Source   string
}

// Summarizer produces derived summary DataPoints. Summaries reference
// their source through SummarizesID and never mutate it; re-summarizing a
// chunk overwrites the previous summary because the id derives from the
// source id.
type Summarizer struct {
	model extract.Summarizer
}

// New creates a summarizer backed by the given model.
func New(model extract.Summarizer) *Summarizer {
	return &Summarizer{model: model}
}

// Summarize produces one text summary per chunk. All inputs are validated
// before any model call so a bad element fails the call without side
// effects.
func (s *Summarizer) Summarize(ctx context.Context, chunks []datapoint.Chunk) ([]datapoint.TextSummary, error) {
	for i, chunk := range chunks {
		if strings.TrimSpace(chunk.Text) == "" {
			return nil, &InvalidSummaryInputsError{Index: i, Reason: "chunk has no extractable text"}
		}
	}

	summaries := make([]datapoint.TextSummary, 0, len(chunks))
	for _, chunk := range chunks {
		text, err := s.model.Summarize(ctx, chunk.Text)
		if err != nil {
			return nil, fmt.Errorf("summarizing chunk %s: %w", chunk.ID, err)
		}
		summaries = append(summaries, datapoint.NewTextSummary(chunk.Dataset, chunk.ID, text))
	}
	return summaries, nil
}

// SummarizeCode produces one code summary per unit.
func (s *Summarizer) SummarizeCode(ctx context.Context, units []CodeUnit) ([]datapoint.CodeSummary, error) {
	for i, unit := range units {
		if strings.TrimSpace(unit.Source) == "" {
			return nil, &InvalidSummaryInputsError{Index: i, Reason: "code unit has no source"}
		}
	}

	summaries := make([]datapoint.CodeSummary, 0, len(units))
	for _, unit := range units {
		text, err := s.model.Summarize(ctx, unit.Source)
		if err != nil {
			return nil, fmt.Errorf("summarizing code unit %s: %w", unit.ID, err)
		}
		summaries = append(summaries, datapoint.NewCodeSummary(unit.Dataset, unit.ID, unit.Language, text))
	}
	return summaries, nil
}
