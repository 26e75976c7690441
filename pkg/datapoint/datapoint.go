package datapoint

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/google/uuid"
)

// Kind discriminates the concrete variant carried by a DataPoint envelope.
type Kind string

const (
	KindDocument    Kind = "document"
	KindChunk       Kind = "chunk"
	KindEntity      Kind = "entity"
	KindEntityType  Kind = "entity_type"
	KindEdge        Kind = "edge"
	KindTextSummary Kind = "text_summary"
	KindCodeSummary Kind = "code_summary"
)

// idNamespace is the fixed UUIDv5 namespace for all content-derived ids.
// Changing it invalidates every persisted id, so it never changes.
var idNamespace = uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")

// DeterministicID derives the stable identifier for a DataPoint from its
// dataset, kind and source content. Re-ingesting identical content yields
// the identical id, which is what makes every store upsert idempotent.
func DeterministicID(dataset string, kind Kind, content string) uuid.UUID {
	var b strings.Builder
	b.Grow(len(dataset) + len(kind) + len(content) + 2)
	b.WriteString(dataset)
	b.WriteByte(0)
	b.WriteString(string(kind))
	b.WriteByte(0)
	b.WriteString(content)
	return uuid.NewSHA1(idNamespace, []byte(b.String()))
}

// ContentHash returns the hex sha256 of raw document bytes. It is stored on
// the Document row and used to short-circuit re-ingestion of unchanged
// documents.
func ContentHash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// DataPoint is the uniform envelope for anything persisted: chunks,
// entities, summaries, embedding-bearing records. Concrete variants expose
// an Envelope method that produces this form for the vector and graph
// stores.
type DataPoint struct {
	ID        uuid.UUID      `json:"id"`
	Kind      Kind           `json:"kind"`
	Dataset   string         `json:"dataset"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Embedding []float32      `json:"embedding,omitempty"`
}
