package extract

import (
	"context"
)

// CandidateEntity is an entity proposed by the extraction model. Names and
// types are free text at this stage; the ontology resolver canonicalizes
// them later.
type CandidateEntity struct {
	Name        string `json:"name" jsonschema_description:"Name of the entity as it appears in the text"`
	Type        string `json:"type" jsonschema_description:"Type of the entity, e.g. person, location, organization"`
	Description string `json:"description" jsonschema_description:"One-sentence description of the entity grounded in the text"`
}

// CandidateRelation is a directed relation between two proposed entities,
// referenced by name.
type CandidateRelation struct {
	Source   string `json:"source" jsonschema_description:"Name of the source entity"`
	Relation string `json:"relation" jsonschema_description:"Relationship name in snake_case, e.g. met_in, works_at"`
	Target   string `json:"target" jsonschema_description:"Name of the target entity"`
}

// Candidates is the raw output of one extraction call over one chunk.
type Candidates struct {
	Entities  []CandidateEntity   `json:"entities"`
	Relations []CandidateRelation `json:"relations"`
}

// Adapter extracts a candidate graph from chunk text. Implementations wrap
// a specific model provider; the pipeline never depends on one directly.
type Adapter interface {
	Extract(ctx context.Context, text string) (Candidates, error)
}

// Embedder produces vector embeddings for text. Empty input yields a
// zero vector so callers never need to special-case it.
type Embedder interface {
	Embed(ctx context.Context, input []byte) ([]float32, error)
	EmbedBatch(ctx context.Context, inputs [][]byte) ([][]float32, error)
}

// Summarizer condenses a piece of text into a short summary.
type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
}
