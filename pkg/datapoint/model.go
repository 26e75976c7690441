package datapoint

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Document is a source file registered with a dataset. Its id is derived
// from the content hash, so re-adding identical bytes maps onto the same
// document.
type Document struct {
	ID          uuid.UUID `json:"id"`
	Dataset     string    `json:"dataset"`
	Name        string    `json:"name"`
	MimeType    string    `json:"mime_type"`
	ContentHash string    `json:"content_hash"`
}

// NewDocument classifies and registers raw content under a dataset.
func NewDocument(dataset, name, mimeType string, content []byte) Document {
	hash := ContentHash(content)
	return Document{
		ID:          DeterministicID(dataset, KindDocument, hash),
		Dataset:     dataset,
		Name:        name,
		MimeType:    mimeType,
		ContentHash: hash,
	}
}

func (d Document) Envelope() DataPoint {
	return DataPoint{
		ID:      d.ID,
		Kind:    KindDocument,
		Dataset: d.Dataset,
		Metadata: map[string]any{
			"name":         d.Name,
			"mime_type":    d.MimeType,
			"content_hash": d.ContentHash,
		},
	}
}

// Chunk is one ordered segment of a document. Chunk ids are derived from
// the chunk text alone, so byte-identical text in the same dataset always
// maps onto the same id regardless of which run produced it.
type Chunk struct {
	ID         uuid.UUID   `json:"id"`
	DocumentID uuid.UUID   `json:"document_id"`
	Dataset    string      `json:"dataset"`
	Index      int         `json:"chunk_index"`
	Text       string      `json:"text"`
	Contains   []uuid.UUID `json:"contains,omitempty"`
	Embedding  []float32   `json:"embedding,omitempty"`
}

// NewChunk builds a chunk for the given document position.
func NewChunk(dataset string, documentID uuid.UUID, index int, text string) Chunk {
	return Chunk{
		ID:         DeterministicID(dataset, KindChunk, text),
		DocumentID: documentID,
		Dataset:    dataset,
		Index:      index,
		Text:       text,
	}
}

func (c Chunk) Envelope() DataPoint {
	return DataPoint{
		ID:        c.ID,
		Kind:      KindChunk,
		Dataset:   c.Dataset,
		Embedding: c.Embedding,
		Metadata: map[string]any{
			"document_id": c.DocumentID.String(),
			"chunk_index": c.Index,
			"text":        c.Text,
		},
	}
}

// EntityType is a node class, either free-text from extraction or a
// canonical ontology class.
type EntityType struct {
	ID            uuid.UUID `json:"id"`
	Dataset       string    `json:"dataset"`
	Name          string    `json:"name"`
	OntologyValid bool      `json:"ontology_valid"`
}

func NewEntityType(dataset, name string, ontologyValid bool) EntityType {
	return EntityType{
		ID:            DeterministicID(dataset, KindEntityType, NormalizeName(name)),
		Dataset:       dataset,
		Name:          name,
		OntologyValid: ontologyValid,
	}
}

func (t EntityType) Envelope() DataPoint {
	return DataPoint{
		ID:      t.ID,
		Kind:    KindEntityType,
		Dataset: t.Dataset,
		Metadata: map[string]any{
			"name":           t.Name,
			"ontology_valid": t.OntologyValid,
		},
	}
}

// Entity is a node in the knowledge graph. Within one dataset no two
// entities share (name, type); the id is derived from exactly that pair so
// concurrent extraction of the same entity converges on one node.
type Entity struct {
	ID          uuid.UUID   `json:"id"`
	Dataset     string      `json:"dataset"`
	Name        string      `json:"name"`
	TypeID      uuid.UUID   `json:"type_id"`
	TypeName    string      `json:"type_name"`
	Description string      `json:"description,omitempty"`
	Provenance  []uuid.UUID `json:"provenance,omitempty"`
	Embedding   []float32   `json:"embedding,omitempty"`
}

func NewEntity(dataset, name, typeName string) Entity {
	key := NormalizeName(name) + "\x00" + NormalizeName(typeName)
	return Entity{
		ID:       DeterministicID(dataset, KindEntity, key),
		Dataset:  dataset,
		Name:     name,
		TypeID:   DeterministicID(dataset, KindEntityType, NormalizeName(typeName)),
		TypeName: typeName,
	}
}

func (e Entity) Envelope() DataPoint {
	return DataPoint{
		ID:        e.ID,
		Kind:      KindEntity,
		Dataset:   e.Dataset,
		Embedding: e.Embedding,
		Metadata: map[string]any{
			"name":        e.Name,
			"type":        e.TypeName,
			"description": e.Description,
		},
	}
}

// Edge is a directed relation between two entities. Edges are deduplicated
// by the full (source, relation, target) key; re-extracting the same fact
// from another chunk appends provenance instead of creating a second edge.
type Edge struct {
	ID         uuid.UUID   `json:"id"`
	Dataset    string      `json:"dataset"`
	SourceID   uuid.UUID   `json:"source_id"`
	Relation   string      `json:"relation"`
	TargetID   uuid.UUID   `json:"target_id"`
	Weight     float64     `json:"weight,omitempty"`
	Provenance []uuid.UUID `json:"provenance,omitempty"`
}

func NewEdge(dataset string, source uuid.UUID, relation string, target uuid.UUID) Edge {
	key := EdgeKey(source, relation, target)
	return Edge{
		ID:       DeterministicID(dataset, KindEdge, key),
		Dataset:  dataset,
		SourceID: source,
		Relation: relation,
		TargetID: target,
	}
}

// EdgeKey is the dedup key for an edge.
func EdgeKey(source uuid.UUID, relation string, target uuid.UUID) string {
	return fmt.Sprintf("%s\x00%s\x00%s", source, NormalizeName(relation), target)
}

// Key returns the edge's own dedup key.
func (e Edge) Key() string {
	return EdgeKey(e.SourceID, e.Relation, e.TargetID)
}

// TextSummary is a derived DataPoint summarizing a chunk. The id is derived
// from the summarized chunk, so re-summarizing overwrites instead of
// accumulating.
type TextSummary struct {
	ID           uuid.UUID `json:"id"`
	Dataset      string    `json:"dataset"`
	Text         string    `json:"text"`
	SummarizesID uuid.UUID `json:"summarizes_id"`
	Embedding    []float32 `json:"embedding,omitempty"`
}

func NewTextSummary(dataset string, summarizes uuid.UUID, text string) TextSummary {
	return TextSummary{
		ID:           DeterministicID(dataset, KindTextSummary, summarizes.String()),
		Dataset:      dataset,
		Text:         text,
		SummarizesID: summarizes,
	}
}

func (s TextSummary) Envelope() DataPoint {
	return DataPoint{
		ID:        s.ID,
		Kind:      KindTextSummary,
		Dataset:   s.Dataset,
		Embedding: s.Embedding,
		Metadata: map[string]any{
			"text":          s.Text,
			"summarizes_id": s.SummarizesID.String(),
		},
	}
}

// CodeSummary is a summary of a code unit (function, type, file).
type CodeSummary struct {
	ID           uuid.UUID `json:"id"`
	Dataset      string    `json:"dataset"`
	Text         string    `json:"text"`
	Language     string    `json:"language,omitempty"`
	SummarizesID uuid.UUID `json:"summarizes_id"`
	Embedding    []float32 `json:"embedding,omitempty"`
}

func NewCodeSummary(dataset string, summarizes uuid.UUID, language, text string) CodeSummary {
	return CodeSummary{
		ID:           DeterministicID(dataset, KindCodeSummary, summarizes.String()),
		Dataset:      dataset,
		Text:         text,
		Language:     language,
		SummarizesID: summarizes,
	}
}

func (s CodeSummary) Envelope() DataPoint {
	return DataPoint{
		ID:        s.ID,
		Kind:      KindCodeSummary,
		Dataset:   s.Dataset,
		Embedding: s.Embedding,
		Metadata: map[string]any{
			"text":          s.Text,
			"language":      s.Language,
			"summarizes_id": s.SummarizesID.String(),
		},
	}
}

// NormalizeName lowercases and collapses whitespace so that id derivation
// and (name, type) matching ignore cosmetic differences.
func NormalizeName(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
