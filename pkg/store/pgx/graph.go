package pgx

import (
	"context"

	"github.com/trellis-kg/trellis/pkg/datapoint"
	"github.com/trellis-kg/trellis/pkg/store"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

func (s *Store) UpsertType(ctx context.Context, entityType datapoint.EntityType) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO entity_types (id, dataset, name, ontology_valid)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING
	`, entityType.ID, entityType.Dataset, entityType.Name, entityType.OntologyValid)
	return classify(err)
}

func (s *Store) UpsertNode(ctx context.Context, entity datapoint.Entity) error {
	var embedding any
	if entity.Embedding != nil {
		embedding = pgvector.NewVector(entity.Embedding)
	}
	// first write wins for the description; provenance unions
	_, err := s.pool.Exec(ctx, `
		INSERT INTO entities (id, dataset, name, name_norm, type_id, type_name, description, provenance, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7, COALESCE($8, '{}'), $9)
		ON CONFLICT (id) DO UPDATE SET
			description = CASE WHEN entities.description = '' THEN EXCLUDED.description ELSE entities.description END,
			provenance = (
				SELECT ARRAY(SELECT DISTINCT unnest(entities.provenance || EXCLUDED.provenance))
			),
			embedding = COALESCE(EXCLUDED.embedding, entities.embedding)
	`, entity.ID, entity.Dataset, entity.Name, datapoint.NormalizeName(entity.Name),
		entity.TypeID, entity.TypeName, entity.Description, entity.Provenance, embedding)
	return classify(err)
}

func (s *Store) UpsertEdge(ctx context.Context, edge datapoint.Edge) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO edges (id, dataset, source_id, relation, target_id, weight, provenance)
		VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7, '{}'))
		ON CONFLICT (id) DO UPDATE SET
			weight = GREATEST(edges.weight, EXCLUDED.weight),
			provenance = (
				SELECT ARRAY(SELECT DISTINCT unnest(edges.provenance || EXCLUDED.provenance))
			)
	`, edge.ID, edge.Dataset, edge.SourceID, edge.Relation, edge.TargetID, edge.Weight, edge.Provenance)
	return classify(err)
}

func (s *Store) FindEntities(
	ctx context.Context,
	dataset string,
	keys []store.EntityKey,
) (map[store.EntityKey]datapoint.Entity, error) {
	found := make(map[store.EntityKey]datapoint.Entity)
	if len(keys) == 0 {
		return found, nil
	}

	names := make([]string, len(keys))
	for i, key := range keys {
		names[i] = key.Name
	}

	entities, err := s.queryEntities(ctx, `
		SELECT id, dataset, name, type_id, type_name, description, provenance
		FROM entities
		WHERE dataset = $1 AND name_norm = ANY($2)
	`, dataset, names)
	if err != nil {
		return nil, err
	}

	wanted := make(map[store.EntityKey]bool, len(keys))
	for _, key := range keys {
		wanted[key] = true
	}
	for _, entity := range entities {
		key := store.Key(entity.Name, entity.TypeName)
		if wanted[key] {
			found[key] = entity
		}
	}
	return found, nil
}

func (s *Store) MatchEntities(ctx context.Context, dataset string, names []string) ([]datapoint.Entity, error) {
	if len(names) == 0 {
		return nil, nil
	}
	normalized := make([]string, len(names))
	for i, name := range names {
		normalized[i] = datapoint.NormalizeName(name)
	}
	return s.queryEntities(ctx, `
		SELECT id, dataset, name, type_id, type_name, description, provenance
		FROM entities
		WHERE dataset = $1 AND name_norm = ANY($2)
		ORDER BY id
	`, dataset, normalized)
}

func (s *Store) EdgesFrom(ctx context.Context, dataset string, id uuid.UUID) ([]datapoint.Edge, error) {
	return s.queryEdges(ctx, `
		SELECT id, dataset, source_id, relation, target_id, weight, provenance
		FROM edges
		WHERE dataset = $1 AND source_id = $2
		ORDER BY id
	`, dataset, id)
}

func (s *Store) Neighborhood(
	ctx context.Context,
	dataset string,
	ids []uuid.UUID,
	depth int,
) ([]datapoint.Entity, []datapoint.Edge, error) {
	visited := make(map[uuid.UUID]bool, len(ids))
	frontier := ids
	seenEdges := make(map[uuid.UUID]bool)
	var edges []datapoint.Edge

	for _, id := range ids {
		visited[id] = true
	}

	for hop := 0; hop < depth && len(frontier) > 0; hop++ {
		hopEdges, err := s.queryEdges(ctx, `
			SELECT id, dataset, source_id, relation, target_id, weight, provenance
			FROM edges
			WHERE dataset = $1 AND (source_id = ANY($2) OR target_id = ANY($2))
			ORDER BY id
		`, dataset, frontier)
		if err != nil {
			return nil, nil, err
		}

		var next []uuid.UUID
		for _, edge := range hopEdges {
			if seenEdges[edge.ID] {
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

	nodeIDs := make([]uuid.UUID, 0, len(visited))
	for id := range visited {
		nodeIDs = append(nodeIDs, id)
	}
	entities, err := s.queryEntities(ctx, `
		SELECT id, dataset, name, type_id, type_name, description, provenance
		FROM entities
		WHERE dataset = $1 AND id = ANY($2)
		ORDER BY id
	`, dataset, nodeIDs)
	if err != nil {
		return nil, nil, err
	}
	return entities, edges, nil
}

func (s *Store) queryEntities(ctx context.Context, query string, args ...any) ([]datapoint.Entity, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var entities []datapoint.Entity
	for rows.Next() {
		var entity datapoint.Entity
		if err := rows.Scan(&entity.ID, &entity.Dataset, &entity.Name, &entity.TypeID,
			&entity.TypeName, &entity.Description, &entity.Provenance); err != nil {
			return nil, classify(err)
		}
		entities = append(entities, entity)
	}
	return entities, classify(rows.Err())
}

func (s *Store) queryEdges(ctx context.Context, query string, args ...any) ([]datapoint.Edge, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var edges []datapoint.Edge
	for rows.Next() {
		var edge datapoint.Edge
		if err := rows.Scan(&edge.ID, &edge.Dataset, &edge.SourceID, &edge.Relation,
			&edge.TargetID, &edge.Weight, &edge.Provenance); err != nil {
			return nil, classify(err)
		}
		edges = append(edges, edge)
	}
	return edges, classify(rows.Err())
}
