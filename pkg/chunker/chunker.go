package chunker

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/trellis-kg/trellis/pkg/datapoint"

	"github.com/pkoukk/tiktoken-go"
)

// DecodingError reports a document whose content could not be decoded.
// It aborts only that document's branch of the pipeline, not the run.
type DecodingError struct {
	DocumentID string
	Reason     string
}

func (e *DecodingError) Error() string {
	return fmt.Sprintf("cannot decode document %s: %s", e.DocumentID, e.Reason)
}

// TokenCounter reports the token length of a piece of text. Splitting
// strategies use it to bound chunk sizes; tests inject cheap counters.
type TokenCounter func(text string) int

// TiktokenCounter returns a TokenCounter backed by the named tiktoken
// encoding (e.g. "o200k_base").
func TiktokenCounter(encoding string) (TokenCounter, error) {
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("failed to load token encoding %q: %w", encoding, err)
	}
	return func(text string) int {
		return len(enc.Encode(text, nil, nil))
	}, nil
}

// RuneCounter is a TokenCounter that counts runes. Used where no tokenizer
// is configured and in tests.
func RuneCounter(text string) int {
	return utf8.RuneCountInString(text)
}

// Strategy picks chunk boundaries. Implementations split already-validated
// text into an ordered list of chunk texts; they never touch a store.
type Strategy interface {
	Name() string
	Split(text string) ([]string, error)
}

// Chunker turns a classified document into ordered, addressable chunks.
// The boundary strategy is injected configuration, not hardcoded.
type Chunker struct {
	strategy Strategy
}

func New(strategy Strategy) *Chunker {
	return &Chunker{strategy: strategy}
}

// Chunk splits a document's text into ordered chunks with indexes 0..N-1.
// Identical text always yields identical chunk ids. Undecodable input fails
// with a DecodingError.
func (c *Chunker) Chunk(doc datapoint.Document, text string) ([]datapoint.Chunk, error) {
	if !utf8.ValidString(text) {
		return nil, &DecodingError{DocumentID: doc.ID.String(), Reason: "invalid UTF-8"}
	}

	parts, err := c.strategy.Split(text)
	if err != nil {
		return nil, fmt.Errorf("strategy %s failed to split document %s: %w", c.strategy.Name(), doc.ID, err)
	}

	chunks := make([]datapoint.Chunk, 0, len(parts))
	for i, part := range parts {
		chunks = append(chunks, datapoint.NewChunk(doc.Dataset, doc.ID, i, part))
	}
	return chunks, nil
}

// Normalize is the declared normalization under which chunk text
// reconstructs the source: whitespace runs collapse to a single space and
// outer whitespace is trimmed.
func Normalize(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
