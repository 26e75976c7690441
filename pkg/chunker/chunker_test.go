package chunker

import (
	"errors"
	"strings"
	"testing"

	"github.com/trellis-kg/trellis/pkg/datapoint"
)

func TestChunkOrderingAndReconstruction(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		maxTokens int
	}{
		{
			name:      "short text fits one chunk",
			text:      "Alice met Bob in Paris.",
			maxTokens: 100,
		},
		{
			name:      "multiple sentences split across chunks",
			text:      "First sentence here. Second sentence follows. Third one closes. Fourth keeps going. Fifth is the last.",
			maxTokens: 30,
		},
		{
			name:      "messy whitespace",
			text:      "One   sentence\twith gaps.  Another\n\nsentence   here.",
			maxTokens: 20,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := New(SentenceStrategy{MaxTokens: tc.maxTokens, Count: RuneCounter})
			doc := datapoint.NewDocument("ds", "doc.txt", "text/plain", []byte(tc.text))

			chunks, err := c.Chunk(doc, tc.text)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(chunks) == 0 {
				t.Fatal("expected at least one chunk")
			}

			texts := make([]string, 0, len(chunks))
			for i, chunk := range chunks {
				if chunk.Index != i {
					t.Errorf("chunk %d has index %d", i, chunk.Index)
				}
				if chunk.DocumentID != doc.ID {
					t.Errorf("chunk %d not linked to document", i)
				}
				texts = append(texts, chunk.Text)
			}

			if got, want := strings.Join(texts, " "), Normalize(tc.text); got != want {
				t.Errorf("reconstruction mismatch:\n got  %q\n want %q", got, want)
			}
		})
	}
}

func TestChunkDeterministicIDs(t *testing.T) {
	c := New(SentenceStrategy{MaxTokens: 30, Count: RuneCounter})
	text := "Alice met Bob in Paris. They talked for hours. Then they left."

	docA := datapoint.NewDocument("ds", "a.txt", "text/plain", []byte(text))
	docB := datapoint.NewDocument("ds", "b.txt", "text/plain", []byte("prefix. "+text))

	chunksA, err := c.Chunk(docA, text)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	chunksB, err := c.Chunk(docA, text)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(chunksA) != len(chunksB) {
		t.Fatalf("chunk counts differ: %d vs %d", len(chunksA), len(chunksB))
	}
	for i := range chunksA {
		if chunksA[i].ID != chunksB[i].ID {
			t.Errorf("chunk %d id not stable across runs", i)
		}
	}

	// Same text in another document of the same dataset maps onto the
	// same chunk id.
	chunkFromB := datapoint.NewChunk("ds", docB.ID, 5, chunksA[0].Text)
	if chunkFromB.ID != chunksA[0].ID {
		t.Error("identical chunk text in the same dataset should share an id")
	}

	otherDataset := datapoint.NewChunk("other", docA.ID, 0, chunksA[0].Text)
	if otherDataset.ID == chunksA[0].ID {
		t.Error("chunk ids must not collide across datasets")
	}
}

func TestChunkInvalidUTF8(t *testing.T) {
	c := New(SentenceStrategy{MaxTokens: 100, Count: RuneCounter})
	doc := datapoint.NewDocument("ds", "bad.bin", "application/octet-stream", []byte{0xff, 0xfe})

	_, err := c.Chunk(doc, string([]byte{0xff, 0xfe, 0xfd}))
	if err == nil {
		t.Fatal("expected decoding error")
	}
	var decErr *DecodingError
	if !errors.As(err, &decErr) {
		t.Fatalf("expected DecodingError, got %T: %v", err, err)
	}
	if decErr.DocumentID != doc.ID.String() {
		t.Errorf("error names wrong document: %s", decErr.DocumentID)
	}
}

func TestSentenceStrategyPacking(t *testing.T) {
	tests := []struct {
		name       string
		text       string
		maxTokens  int
		wantChunks []string
	}{
		{
			name:       "sentences packed up to bound",
			text:       "Aaaa bbbb. Cccc dddd. Eeee ffff.",
			maxTokens:  21,
			wantChunks: []string{"Aaaa bbbb. Cccc dddd.", "Eeee ffff."},
		},
		{
			name:       "oversized sentence becomes its own chunk",
			text:       "Short one. This single sentence is far longer than the configured bound allows. Tail.",
			maxTokens:  15,
			wantChunks: []string{"Short one.", "This single sentence is far longer than the configured bound allows.", "Tail."},
		},
		{
			name:       "numeric listing does not terminate",
			text:       "The agenda was 1. coffee and 2. code. Then we shipped.",
			maxTokens:  100,
			wantChunks: []string{"The agenda was 1. coffee and 2. code. Then we shipped."},
		},
		{
			name:       "closing quote stays attached",
			text:       `She said "stop." He did not.`,
			maxTokens:  12,
			wantChunks: []string{`She said "stop."`, "He did not."},
		},
		{
			name:       "empty input",
			text:       "   \n\t ",
			maxTokens:  10,
			wantChunks: nil,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := SentenceStrategy{MaxTokens: tc.maxTokens, Count: RuneCounter}
			got, err := s.Split(tc.text)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != len(tc.wantChunks) {
				t.Fatalf("got %d chunks %q, want %d", len(got), got, len(tc.wantChunks))
			}
			for i := range got {
				if got[i] != tc.wantChunks[i] {
					t.Errorf("chunk %d: got %q, want %q", i, got[i], tc.wantChunks[i])
				}
			}
		})
	}
}

func TestParagraphStrategy(t *testing.T) {
	text := "First paragraph\nstill first.\n\nSecond paragraph.\n\n\n\nThird paragraph."

	t.Run("paragraph boundaries respected", func(t *testing.T) {
		s := ParagraphStrategy{MaxTokens: 5, Count: RuneCounter}
		got, err := s.Split(text)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := []string{"First paragraph still first.", "Second paragraph.", "Third paragraph."}
		if len(got) != len(want) {
			t.Fatalf("got %d chunks %q, want %d", len(got), got, len(want))
		}
		for i := range got {
			if got[i] != want[i] {
				t.Errorf("chunk %d: got %q, want %q", i, got[i], want[i])
			}
		}
	})

	t.Run("small paragraphs packed together", func(t *testing.T) {
		s := ParagraphStrategy{MaxTokens: 1000, Count: RuneCounter}
		got, err := s.Split(text)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got) != 1 {
			t.Fatalf("expected one packed chunk, got %d: %q", len(got), got)
		}
		if got[0] != "First paragraph still first. Second paragraph. Third paragraph." {
			t.Errorf("unexpected packed chunk: %q", got[0])
		}
	})
}

func TestCSVStrategyHeaderCarry(t *testing.T) {
	text := "name,city\nAlice,Paris\nBob,Berlin\nCarol,Madrid\nDave,Rome"

	s := CSVStrategy{MaxTokens: 35, Count: RuneCounter}
	got, err := s.Split(text)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) < 2 {
		t.Fatalf("expected the rows to split across chunks, got %d: %q", len(got), got)
	}
	for i, chunk := range got {
		if !strings.HasPrefix(chunk, "name,city\n") {
			t.Errorf("chunk %d missing header: %q", i, chunk)
		}
	}

	var rows int
	for _, chunk := range got {
		rows += strings.Count(chunk, "\n")
	}
	if rows != 4 {
		t.Errorf("expected 4 data rows across chunks, got %d", rows)
	}
}
