package bolt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/trellis-kg/trellis/pkg/datapoint"
	"github.com/trellis-kg/trellis/pkg/store"
	"github.com/trellis-kg/trellis/pkg/store/memory"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"
)

var (
	bucketDocuments = []byte("documents")
	bucketChunks    = []byte("chunks")
	bucketRuns      = []byte("runs")
	bucketProgress  = []byte("progress")
	bucketVectors   = []byte("vectors")
	bucketTypes     = []byte("entity_types")
	bucketEntities  = []byte("entities")
	bucketEdges     = []byte("edges")
)

// Store is an embedded single-node tri-store on bbolt. Records are JSON
// in per-kind buckets; vector search is a cosine scan. Meant for local
// mode, not multi-node deployments.
type Store struct {
	db *bbolt.DB
}

// Open opens or creates the database file and its buckets.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening bolt database: %w", err)
	}

	buckets := [][]byte{
		bucketDocuments, bucketChunks, bucketRuns, bucketProgress,
		bucketVectors, bucketTypes, bucketEntities, bucketEdges,
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		for _, bucket := range buckets {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func put(tx *bbolt.Tx, bucket []byte, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return tx.Bucket(bucket).Put([]byte(key), data)
}

func get(tx *bbolt.Tx, bucket []byte, key string, out any) error {
	data := tx.Bucket(bucket).Get([]byte(key))
	if data == nil {
		return store.ErrNotFound
	}
	return json.Unmarshal(data, out)
}

func (s *Store) UpsertDocument(ctx context.Context, doc datapoint.Document) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return put(tx, bucketDocuments, doc.ID.String(), doc)
	})
}

func (s *Store) UpsertChunk(ctx context.Context, chunk datapoint.Chunk) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return put(tx, bucketChunks, chunk.ID.String(), chunk)
	})
}

func (s *Store) GetChunk(ctx context.Context, id uuid.UUID) (datapoint.Chunk, error) {
	var chunk datapoint.Chunk
	err := s.db.View(func(tx *bbolt.Tx) error {
		return get(tx, bucketChunks, id.String(), &chunk)
	})
	if err != nil {
		return datapoint.Chunk{}, fmt.Errorf("chunk %s: %w", id, err)
	}
	return chunk, nil
}

func (s *Store) SaveRun(ctx context.Context, run datapoint.PipelineRun) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return put(tx, bucketRuns, run.ID, run)
	})
}

func (s *Store) GetRun(ctx context.Context, id string) (datapoint.PipelineRun, error) {
	var run datapoint.PipelineRun
	err := s.db.View(func(tx *bbolt.Tx) error {
		return get(tx, bucketRuns, id, &run)
	})
	if err != nil {
		return datapoint.PipelineRun{}, fmt.Errorf("run %s: %w", id, err)
	}
	return run, nil
}

func progressKey(dataset, pipeline, contentHash string) string {
	return dataset + "\x00" + pipeline + "\x00" + contentHash
}

func (s *Store) HasCompleted(ctx context.Context, dataset, pipeline, contentHash string) (bool, error) {
	var found bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		found = tx.Bucket(bucketProgress).Get([]byte(progressKey(dataset, pipeline, contentHash))) != nil
		return nil
	})
	return found, err
}

func (s *Store) MarkCompleted(ctx context.Context, dataset, pipeline, contentHash string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketProgress).Put([]byte(progressKey(dataset, pipeline, contentHash)), []byte{1})
	})
}

func (s *Store) UpsertVectors(ctx context.Context, records []store.VectorRecord) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		for _, record := range records {
			if err := put(tx, bucketVectors, record.ID.String(), record); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) SearchVectors(
	ctx context.Context,
	dataset string,
	kinds []datapoint.Kind,
	embedding []float32,
	limit int,
) ([]store.Match, error) {
	kindSet := make(map[datapoint.Kind]bool, len(kinds))
	for _, kind := range kinds {
		kindSet[kind] = true
	}

	var matches []store.Match
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketVectors).ForEach(func(_, data []byte) error {
			var record store.VectorRecord
			if err := json.Unmarshal(data, &record); err != nil {
				return err
			}
			if dataset != "" && record.Dataset != dataset {
				return nil
			}
			if len(kindSet) > 0 && !kindSet[record.Kind] {
				return nil
			}
			matches = append(matches, store.Match{
				ID:       record.ID,
				Kind:     record.Kind,
				Score:    memory.Cosine(embedding, record.Embedding),
				Metadata: record.Metadata,
			})
			return nil
		})
	})
	if err != nil {
		return nil, err
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
	return s.db.Update(func(tx *bbolt.Tx) error {
		for _, id := range ids {
			if err := tx.Bucket(bucketVectors).Delete([]byte(id.String())); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) UpsertType(ctx context.Context, entityType datapoint.EntityType) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if tx.Bucket(bucketTypes).Get([]byte(entityType.ID.String())) != nil {
			return nil
		}
		return put(tx, bucketTypes, entityType.ID.String(), entityType)
	})
}

func (s *Store) UpsertNode(ctx context.Context, entity datapoint.Entity) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		var existing datapoint.Entity
		err := get(tx, bucketEntities, entity.ID.String(), &existing)
		if errors.Is(err, store.ErrNotFound) {
			return put(tx, bucketEntities, entity.ID.String(), entity)
		}
		if err != nil {
			return err
		}

		existing.Provenance = unionIDs(existing.Provenance, entity.Provenance)
		if existing.Description == "" {
			existing.Description = entity.Description
		}
		if entity.Embedding != nil {
			existing.Embedding = entity.Embedding
		}
		return put(tx, bucketEntities, entity.ID.String(), existing)
	})
}

func (s *Store) UpsertEdge(ctx context.Context, edge datapoint.Edge) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		var existing datapoint.Edge
		err := get(tx, bucketEdges, edge.ID.String(), &existing)
		if errors.Is(err, store.ErrNotFound) {
			return put(tx, bucketEdges, edge.ID.String(), edge)
		}
		if err != nil {
			return err
		}

		existing.Provenance = unionIDs(existing.Provenance, edge.Provenance)
		if edge.Weight > existing.Weight {
			existing.Weight = edge.Weight
		}
		return put(tx, bucketEdges, edge.ID.String(), existing)
	})
}

func (s *Store) FindEntities(
	ctx context.Context,
	dataset string,
	keys []store.EntityKey,
) (map[store.EntityKey]datapoint.Entity, error) {
	wanted := make(map[store.EntityKey]bool, len(keys))
	for _, key := range keys {
		wanted[key] = true
	}

	found := make(map[store.EntityKey]datapoint.Entity)
	err := s.forEachEntity(dataset, func(entity datapoint.Entity) {
		key := store.Key(entity.Name, entity.TypeName)
		if wanted[key] {
			found[key] = entity
		}
	})
	return found, err
}

func (s *Store) MatchEntities(ctx context.Context, dataset string, names []string) ([]datapoint.Entity, error) {
	wanted := make(map[string]bool, len(names))
	for _, name := range names {
		wanted[datapoint.NormalizeName(name)] = true
	}

	var found []datapoint.Entity
	err := s.forEachEntity(dataset, func(entity datapoint.Entity) {
		if wanted[datapoint.NormalizeName(entity.Name)] {
			found = append(found, entity)
		}
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(found, func(i, j int) bool {
		return found[i].ID.String() < found[j].ID.String()
	})
	return found, nil
}

func (s *Store) EdgesFrom(ctx context.Context, dataset string, id uuid.UUID) ([]datapoint.Edge, error) {
	var out []datapoint.Edge
	err := s.forEachEdge(dataset, func(edge datapoint.Edge) {
		if edge.SourceID == id {
			out = append(out, edge)
		}
	})
	if err != nil {
		return nil, err
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
	var allEdges []datapoint.Edge
	if err := s.forEachEdge(dataset, func(edge datapoint.Edge) {
		allEdges = append(allEdges, edge)
	}); err != nil {
		return nil, nil, err
	}

	visited := make(map[uuid.UUID]bool, len(ids))
	frontier := ids
	for _, id := range ids {
		visited[id] = true
	}
	seenEdges := make(map[uuid.UUID]bool)
	var edges []datapoint.Edge

	for hop := 0; hop < depth && len(frontier) > 0; hop++ {
		var next []uuid.UUID
		for _, edge := range allEdges {
			if seenEdges[edge.ID] {
				continue
			}
			touches := false
			for _, id := range frontier {
				if edge.SourceID == id || edge.TargetID == id {
					touches = true
					break
				}
			}
			if !touches {
				continue
			}
			seenEdges[edge.ID] = true
			edges = append(edges, edge)
			for _, other := range []uuid.UUID{edge.SourceID, edge.TargetID} {
				if !visited[other] {
					visited[other] = true
					next = append(next, other)
				}
			}
		}
		frontier = next
	}

	var entities []datapoint.Entity
	err := s.forEachEntity(dataset, func(entity datapoint.Entity) {
		if visited[entity.ID] {
			entities = append(entities, entity)
		}
	})
	if err != nil {
		return nil, nil, err
	}
	sort.Slice(entities, func(i, j int) bool {
		return entities[i].ID.String() < entities[j].ID.String()
	})
	sort.Slice(edges, func(i, j int) bool {
		return edges[i].ID.String() < edges[j].ID.String()
	})
	return entities, edges, nil
}

func (s *Store) forEachEntity(dataset string, fn func(datapoint.Entity)) error {
	return s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketEntities).ForEach(func(_, data []byte) error {
			var entity datapoint.Entity
			if err := json.Unmarshal(data, &entity); err != nil {
				return err
			}
			if dataset == "" || entity.Dataset == dataset {
				fn(entity)
			}
			return nil
		})
	})
}

func (s *Store) forEachEdge(dataset string, fn func(datapoint.Edge)) error {
	return s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketEdges).ForEach(func(_, data []byte) error {
			var edge datapoint.Edge
			if err := json.Unmarshal(data, &edge); err != nil {
				return err
			}
			if dataset == "" || edge.Dataset == dataset {
				fn(edge)
			}
			return nil
		})
	})
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
