package summary

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/trellis-kg/trellis/pkg/datapoint"

	"github.com/google/uuid"
)

type fakeModel struct {
	calls int
}

func (f *fakeModel) Summarize(ctx context.Context, text string) (string, error) {
	f.calls++
	words := strings.Fields(text)
	if len(words) > 3 {
		words = words[:3]
	}
	return strings.Join(words, " "), nil
}

func chunkOf(text string) datapoint.Chunk {
	doc := datapoint.NewDocument("ds", "doc.txt", "text/plain", []byte(text))
	return datapoint.NewChunk("ds", doc.ID, 0, text)
}

func TestSummarize(t *testing.T) {
	model := &fakeModel{}
	s := New(model)

	chunks := []datapoint.Chunk{
		chunkOf("Alice met Bob in Paris."),
		chunkOf("They discussed the harvest at length."),
	}

	got, err := s.Summarize(context.Background(), chunks)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d summaries, want 2", len(got))
	}
	for i, summary := range got {
		if summary.SummarizesID != chunks[i].ID {
			t.Errorf("summary %d does not reference its chunk", i)
		}
		if summary.Text == "" {
			t.Errorf("summary %d has no text", i)
		}
	}
}

func TestSummarizeOverwritesOnResummarize(t *testing.T) {
	s := New(&fakeModel{})
	chunk := chunkOf("Alice met Bob in Paris.")

	first, err := s.Summarize(context.Background(), []datapoint.Chunk{chunk})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := s.Summarize(context.Background(), []datapoint.Chunk{chunk})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first[0].ID != second[0].ID {
		t.Error("re-summarizing should produce the same summary id")
	}
}

func TestSummarizeRejectsEmptyInput(t *testing.T) {
	model := &fakeModel{}
	s := New(model)

	chunks := []datapoint.Chunk{
		chunkOf("Valid text here."),
		{ID: uuid.New(), Dataset: "ds", Text: "   \t "},
	}

	_, err := s.Summarize(context.Background(), chunks)
	if err == nil {
		t.Fatal("expected error for empty chunk text")
	}
	var invalid *InvalidSummaryInputsError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidSummaryInputsError, got %T: %v", err, err)
	}
	if invalid.Index != 1 {
		t.Errorf("error names index %d, want 1", invalid.Index)
	}
	if model.calls != 0 {
		t.Errorf("validation should run before any model call, got %d calls", model.calls)
	}
}

func TestSummarizeCode(t *testing.T) {
	s := New(&fakeModel{})

	units := []CodeUnit{
		{ID: uuid.New(), Dataset: "ds", Language: "go", Source: "func main() {}"},
	}
	got, err := s.SummarizeCode(context.Background(), units)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d summaries, want 1", len(got))
	}
	if got[0].Language != "go" {
		t.Errorf("got language %q, want go", got[0].Language)
	}

	_, err = s.SummarizeCode(context.Background(), []CodeUnit{{ID: uuid.New(), Dataset: "ds"}})
	var invalid *InvalidSummaryInputsError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidSummaryInputsError, got %v", err)
	}
}
