package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/trellis-kg/trellis/pkg/datapoint"
	"github.com/trellis-kg/trellis/pkg/store"

	"github.com/google/uuid"
)

// Store is an in-memory tri-store: relational rows, vectors with cosine
// search, and a graph of entities and edges. It backs local mode and is
// the canonical test fixture.
type Store struct {
	mu sync.RWMutex

	documents map[uuid.UUID]datapoint.Document
	chunks    map[uuid.UUID]datapoint.Chunk
	runs      map[string]datapoint.PipelineRun
	completed map[string]bool

	vectors map[uuid.UUID]store.VectorRecord

	types    map[uuid.UUID]datapoint.EntityType
	entities map[uuid.UUID]datapoint.Entity
	edges    map[uuid.UUID]datapoint.Edge
}

// New creates an empty store.
func New() *Store {
	return &Store{
		documents: make(map[uuid.UUID]datapoint.Document),
		chunks:    make(map[uuid.UUID]datapoint.Chunk),
		runs:      make(map[string]datapoint.PipelineRun),
		completed: make(map[string]bool),
		vectors:   make(map[uuid.UUID]store.VectorRecord),
		types:     make(map[uuid.UUID]datapoint.EntityType),
		entities:  make(map[uuid.UUID]datapoint.Entity),
		edges:     make(map[uuid.UUID]datapoint.Edge),
	}
}

func completedKey(dataset, pipeline, contentHash string) string {
	return dataset + "\x00" + pipeline + "\x00" + contentHash
}

func (s *Store) UpsertDocument(ctx context.Context, doc datapoint.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.documents[doc.ID] = doc
	return nil
}

func (s *Store) UpsertChunk(ctx context.Context, chunk datapoint.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks[chunk.ID] = chunk
	return nil
}

func (s *Store) GetChunk(ctx context.Context, id uuid.UUID) (datapoint.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	chunk, ok := s.chunks[id]
	if !ok {
		return datapoint.Chunk{}, fmt.Errorf("chunk %s: %w", id, store.ErrNotFound)
	}
	return chunk, nil
}

func (s *Store) SaveRun(ctx context.Context, run datapoint.PipelineRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.ID] = run
	return nil
}

func (s *Store) GetRun(ctx context.Context, id string) (datapoint.PipelineRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[id]
	if !ok {
		return datapoint.PipelineRun{}, fmt.Errorf("run %s: %w", id, store.ErrNotFound)
	}
	return run, nil
}

func (s *Store) HasCompleted(ctx context.Context, dataset, pipeline, contentHash string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.completed[completedKey(dataset, pipeline, contentHash)], nil
}

func (s *Store) MarkCompleted(ctx context.Context, dataset, pipeline, contentHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completed[completedKey(dataset, pipeline, contentHash)] = true
	return nil
}

func (s *Store) UpsertVectors(ctx context.Context, records []store.VectorRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, record := range records {
		s.vectors[record.ID] = record
	}
	return nil
}

func (s *Store) SearchVectors(
	ctx context.Context,
	dataset string,
	kinds []datapoint.Kind,
	embedding []float32,
	limit int,
) ([]store.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	kindSet := make(map[datapoint.Kind]bool, len(kinds))
	for _, kind := range kinds {
		kindSet[kind] = true
	}

	var matches []store.Match
	for _, record := range s.vectors {
		if dataset != "" && record.Dataset != dataset {
			continue
		}
		if len(kindSet) > 0 && !kindSet[record.Kind] {
			continue
		}
		matches = append(matches, store.Match{
			ID:       record.ID,
			Kind:     record.Kind,
			Score:    Cosine(embedding, record.Embedding),
			Metadata: record.Metadata,
		})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ID.String() < matches[j].ID.String()
	})
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func (s *Store) DeleteVectors(ctx context.Context, ids []uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.vectors, id)
	}
	return nil
}

func (s *Store) UpsertType(ctx context.Context, entityType datapoint.EntityType) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.types[entityType.ID]; ok {
		return nil
	}
	s.types[entityType.ID] = entityType
	return nil
}

func (s *Store) UpsertNode(ctx context.Context, entity datapoint.Entity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.entities[entity.ID]
	if !ok {
		s.entities[entity.ID] = entity
		return nil
	}
	existing.Provenance = unionIDs(existing.Provenance, entity.Provenance)
	if existing.Description == "" {
		existing.Description = entity.Description
	}
	if entity.Embedding != nil {
		existing.Embedding = entity.Embedding
	}
	s.entities[entity.ID] = existing
	return nil
}

func (s *Store) UpsertEdge(ctx context.Context, edge datapoint.Edge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.edges[edge.ID]
	if !ok {
		s.edges[edge.ID] = edge
		return nil
	}
	existing.Provenance = unionIDs(existing.Provenance, edge.Provenance)
	if edge.Weight > existing.Weight {
		existing.Weight = edge.Weight
	}
	s.edges[edge.ID] = existing
	return nil
}

func (s *Store) FindEntities(
	ctx context.Context,
	dataset string,
	keys []store.EntityKey,
) (map[store.EntityKey]datapoint.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wanted := make(map[store.EntityKey]bool, len(keys))
	for _, key := range keys {
		wanted[key] = true
	}

	found := make(map[store.EntityKey]datapoint.Entity)
	for _, entity := range s.entities {
		if entity.Dataset != dataset {
			continue
		}
		key := store.Key(entity.Name, entity.TypeName)
		if wanted[key] {
			found[key] = entity
		}
	}
	return found, nil
}

func (s *Store) MatchEntities(ctx context.Context, dataset string, names []string) ([]datapoint.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wanted := make(map[string]bool, len(names))
	for _, name := range names {
		wanted[datapoint.NormalizeName(name)] = true
	}

	var found []datapoint.Entity
	for _, entity := range s.entities {
		if entity.Dataset != dataset {
			continue
		}
		if wanted[datapoint.NormalizeName(entity.Name)] {
			found = append(found, entity)
		}
	}
	sort.Slice(found, func(i, j int) bool {
		return found[i].ID.String() < found[j].ID.String()
	})
	return found, nil
}

func (s *Store) EdgesFrom(ctx context.Context, dataset string, id uuid.UUID) ([]datapoint.Edge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []datapoint.Edge
	for _, edge := range s.edges {
		if edge.Dataset == dataset && edge.SourceID == id {
			out = append(out, edge)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (s *Store) Neighborhood(
	ctx context.Context,
	dataset string,
	ids []uuid.UUID,
	depth int,
) ([]datapoint.Entity, []datapoint.Edge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	visited := make(map[uuid.UUID]bool)
	seenEdges := make(map[uuid.UUID]bool)
	frontier := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := s.entities[id]; ok && !visited[id] {
			visited[id] = true
			frontier = append(frontier, id)
		}
	}

	var edges []datapoint.Edge
	for hop := 0; hop < depth && len(frontier) > 0; hop++ {
		var next []uuid.UUID
		for _, edge := range s.edges {
			if edge.Dataset != dataset || seenEdges[edge.ID] {
				continue
			}
			for _, id := range frontier {
				if edge.SourceID != id && edge.TargetID != id {
					continue
				}
				seenEdges[edge.ID] = true
				edges = append(edges, edge)
				for _, other := range []uuid.UUID{edge.SourceID, edge.TargetID} {
					if _, ok := s.entities[other]; ok && !visited[other] {
						visited[other] = true
						next = append(next, other)
					}
				}
				break
			}
		}
		frontier = next
	}

	var entities []datapoint.Entity
	for id := range visited {
		entities = append(entities, s.entities[id])
	}
	sort.Slice(entities, func(i, j int) bool {
		return entities[i].ID.String() < entities[j].ID.String()
	})
	sort.Slice(edges, func(i, j int) bool {
		return edges[i].ID.String() < edges[j].ID.String()
	})
	return entities, edges, nil
}

// Counts reports row counts per store, used by tests to assert dedup.
func (s *Store) Counts() (documents, chunks, entities, edges int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.documents), len(s.chunks), len(s.entities), len(s.edges)
}

// Entity returns the stored entity for an id.
func (s *Store) Entity(id uuid.UUID) (datapoint.Entity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entity, ok := s.entities[id]
	return entity, ok
}

// Edge returns the stored edge for an id.
func (s *Store) Edge(id uuid.UUID) (datapoint.Edge, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	edge, ok := s.edges[id]
	return edge, ok
}

// Cosine is the cosine similarity of two vectors mapped into [0, 1].
// Mismatched lengths and zero vectors score 0.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	return (sim + 1) / 2
}

func unionIDs(existing, incoming []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(existing))
	for _, id := range existing {
		seen[id] = true
	}
	for _, id := range incoming {
		if !seen[id] {
			seen[id] = true
			existing = append(existing, id)
		}
	}
	return existing
}
