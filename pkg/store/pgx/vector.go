package pgx

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/trellis-kg/trellis/pkg/datapoint"
	"github.com/trellis-kg/trellis/pkg/store"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

func (s *Store) UpsertVectors(ctx context.Context, records []store.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return classify(err)
	}
	defer tx.Rollback(ctx)

	for _, record := range records {
		metadata, err := json.Marshal(record.Metadata)
		if err != nil {
			return fmt.Errorf("encoding vector metadata: %w", err)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO vectors (id, kind, dataset, embedding, metadata)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO UPDATE SET
				embedding = EXCLUDED.embedding,
				metadata = EXCLUDED.metadata
		`, record.ID, record.Kind, record.Dataset, pgvector.NewVector(record.Embedding), metadata)
		if err != nil {
			return classify(err)
		}
	}
	return classify(tx.Commit(ctx))
}

func (s *Store) SearchVectors(
	ctx context.Context,
	dataset string,
	kinds []datapoint.Kind,
	embedding []float32,
	limit int,
) ([]store.Match, error) {
	if limit <= 0 {
		limit = 10
	}

	query := `
		SELECT id, kind, 1 - (embedding <=> $1) / 2 AS score, metadata
		FROM vectors
		WHERE ($2 = '' OR dataset = $2)
	`
	args := []any{pgvector.NewVector(embedding), dataset}
	if len(kinds) > 0 {
		names := make([]string, len(kinds))
		for i, kind := range kinds {
			names[i] = string(kind)
		}
		query += fmt.Sprintf(" AND kind = ANY($%d)", len(args)+1)
		args = append(args, names)
	}
	query += fmt.Sprintf(" ORDER BY embedding <=> $1, id LIMIT %d", limit)

	rows, err := s.pool.Query(ctx, strings.TrimSpace(query), args...)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var matches []store.Match
	for rows.Next() {
		var match store.Match
		var metadata []byte
		if err := rows.Scan(&match.ID, &match.Kind, &match.Score, &metadata); err != nil {
			return nil, classify(err)
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &match.Metadata); err != nil {
				return nil, fmt.Errorf("decoding vector metadata: %w", err)
			}
		}
		matches = append(matches, match)
	}
	return matches, classify(rows.Err())
}

func (s *Store) DeleteVectors(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx, `DELETE FROM vectors WHERE id = ANY($1)`, ids)
	return classify(err)
}
