package store

import (
	"context"
	"errors"

	"github.com/trellis-kg/trellis/pkg/datapoint"

	"github.com/google/uuid"
)

// ErrTransient marks store failures worth retrying: connection drops,
// timeouts, broker hiccups. Implementations wrap such errors so the writer
// can tell them apart from permanent ones.
var ErrTransient = errors.New("transient store error")

// ErrNotFound is returned by point lookups that match nothing.
var ErrNotFound = errors.New("not found")

// Relational is the transactional system of record for documents, chunks,
// runs and ingestion progress.
type Relational interface {
	UpsertDocument(ctx context.Context, doc datapoint.Document) error
	UpsertChunk(ctx context.Context, chunk datapoint.Chunk) error
	GetChunk(ctx context.Context, id uuid.UUID) (datapoint.Chunk, error)

	SaveRun(ctx context.Context, run datapoint.PipelineRun) error
	GetRun(ctx context.Context, id string) (datapoint.PipelineRun, error)

	// HasCompleted reports whether a document with the given content hash
	// already completed the named pipeline for the dataset.
	HasCompleted(ctx context.Context, dataset, pipeline, contentHash string) (bool, error)
	MarkCompleted(ctx context.Context, dataset, pipeline, contentHash string) error
}

// VectorRecord is one embeddable unit in the vector store.
type VectorRecord struct {
	ID        uuid.UUID
	Kind      datapoint.Kind
	Dataset   string
	Embedding []float32
	Metadata  map[string]any
}

// Match is one scored vector search hit. Score is a similarity in [0, 1],
// higher is closer.
type Match struct {
	ID       uuid.UUID
	Kind     datapoint.Kind
	Score    float64
	Metadata map[string]any
}

// Vector stores embeddings and answers similarity queries.
type Vector interface {
	UpsertVectors(ctx context.Context, records []VectorRecord) error
	SearchVectors(ctx context.Context, dataset string, kinds []datapoint.Kind, embedding []float32, limit int) ([]Match, error)
	DeleteVectors(ctx context.Context, ids []uuid.UUID) error
}

// EntityKey identifies an entity by its normalized (name, type) pair.
type EntityKey struct {
	Name string
	Type string
}

// Key builds an EntityKey from free-form name and type.
func Key(name, typeName string) EntityKey {
	return EntityKey{
		Name: datapoint.NormalizeName(name),
		Type: datapoint.NormalizeName(typeName),
	}
}

// Graph stores entities and their relations. UpsertEdge merges provenance
// on conflict instead of duplicating the edge.
type Graph interface {
	UpsertType(ctx context.Context, entityType datapoint.EntityType) error
	UpsertNode(ctx context.Context, entity datapoint.Entity) error
	UpsertEdge(ctx context.Context, edge datapoint.Edge) error

	// FindEntities looks up existing entities for the given keys. Missing
	// keys are simply absent from the result.
	FindEntities(ctx context.Context, dataset string, keys []EntityKey) (map[EntityKey]datapoint.Entity, error)

	// MatchEntities finds entities whose normalized name equals one of the
	// given names, regardless of type. Used for search anchors.
	MatchEntities(ctx context.Context, dataset string, names []string) ([]datapoint.Entity, error)

	EdgesFrom(ctx context.Context, dataset string, id uuid.UUID) ([]datapoint.Edge, error)

	// Neighborhood walks outgoing and incoming edges up to depth hops from
	// the given ids and returns the visited entities and edges.
	Neighborhood(ctx context.Context, dataset string, ids []uuid.UUID, depth int) ([]datapoint.Entity, []datapoint.Edge, error)
}

// Batch is one flush unit handed to the writer. All members belong to the
// same dataset.
type Batch struct {
	Dataset string

	Documents []datapoint.Document
	Chunks    []datapoint.Chunk
	Types     []datapoint.EntityType
	Entities  []datapoint.Entity
	Edges     []datapoint.Edge
	Summaries []datapoint.TextSummary
	Code      []datapoint.CodeSummary
}

// Empty reports whether the batch holds nothing to persist.
func (b Batch) Empty() bool {
	return len(b.Documents) == 0 && len(b.Chunks) == 0 && len(b.Types) == 0 &&
		len(b.Entities) == 0 && len(b.Edges) == 0 && len(b.Summaries) == 0 &&
		len(b.Code) == 0
}
