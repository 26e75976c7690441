package pgx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/trellis-kg/trellis/pkg/datapoint"
	"github.com/trellis-kg/trellis/pkg/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

func (s *Store) UpsertDocument(ctx context.Context, doc datapoint.Document) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO documents (id, dataset, name, mime_type, content_hash)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			mime_type = EXCLUDED.mime_type
	`, doc.ID, doc.Dataset, doc.Name, doc.MimeType, doc.ContentHash)
	return classify(err)
}

func (s *Store) UpsertChunk(ctx context.Context, chunk datapoint.Chunk) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO chunks (id, document_id, dataset, chunk_index, text, contains)
		VALUES ($1, $2, $3, $4, $5, COALESCE($6, '{}'))
		ON CONFLICT (id) DO UPDATE SET
			document_id = EXCLUDED.document_id,
			chunk_index = EXCLUDED.chunk_index,
			contains = (
				SELECT ARRAY(SELECT DISTINCT unnest(chunks.contains || EXCLUDED.contains))
			)
	`, chunk.ID, chunk.DocumentID, chunk.Dataset, chunk.Index, chunk.Text, chunk.Contains)
	return classify(err)
}

func (s *Store) GetChunk(ctx context.Context, id uuid.UUID) (datapoint.Chunk, error) {
	var chunk datapoint.Chunk
	err := s.pool.QueryRow(ctx, `
		SELECT id, document_id, dataset, chunk_index, text, contains
		FROM chunks WHERE id = $1
	`, id).Scan(&chunk.ID, &chunk.DocumentID, &chunk.Dataset, &chunk.Index, &chunk.Text, &chunk.Contains)
	if errors.Is(err, pgx.ErrNoRows) {
		return datapoint.Chunk{}, fmt.Errorf("chunk %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return datapoint.Chunk{}, classify(err)
	}
	return chunk, nil
}

func (s *Store) SaveRun(ctx context.Context, run datapoint.PipelineRun) error {
	tasks, err := json.Marshal(run.Tasks)
	if err != nil {
		return fmt.Errorf("encoding run tasks: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO pipeline_runs
			(id, dataset, pipeline, status, current_task, failed_task, failure, tasks, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			current_task = EXCLUDED.current_task,
			failed_task = EXCLUDED.failed_task,
			failure = EXCLUDED.failure,
			tasks = EXCLUDED.tasks,
			finished_at = EXCLUDED.finished_at
	`, run.ID, run.Dataset, run.Pipeline, run.Status, run.CurrentTask,
		run.FailedTask, run.Failure, tasks, run.StartedAt, run.FinishedAt)
	return classify(err)
}

func (s *Store) GetRun(ctx context.Context, id string) (datapoint.PipelineRun, error) {
	var run datapoint.PipelineRun
	var tasks []byte
	err := s.pool.QueryRow(ctx, `
		SELECT id, dataset, pipeline, status, current_task, failed_task, failure, tasks, started_at, finished_at
		FROM pipeline_runs WHERE id = $1
	`, id).Scan(&run.ID, &run.Dataset, &run.Pipeline, &run.Status, &run.CurrentTask,
		&run.FailedTask, &run.Failure, &tasks, &run.StartedAt, &run.FinishedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return datapoint.PipelineRun{}, fmt.Errorf("run %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return datapoint.PipelineRun{}, classify(err)
	}
	if len(tasks) > 0 {
		if err := json.Unmarshal(tasks, &run.Tasks); err != nil {
			return datapoint.PipelineRun{}, fmt.Errorf("decoding run tasks: %w", err)
		}
	}
	return run, nil
}

func (s *Store) HasCompleted(ctx context.Context, dataset, pipeline, contentHash string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM ingest_progress
			WHERE dataset = $1 AND pipeline = $2 AND content_hash = $3
		)
	`, dataset, pipeline, contentHash).Scan(&exists)
	if err != nil {
		return false, classify(err)
	}
	return exists, nil
}

func (s *Store) MarkCompleted(ctx context.Context, dataset, pipeline, contentHash string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO ingest_progress (dataset, pipeline, content_hash)
		VALUES ($1, $2, $3)
		ON CONFLICT (dataset, pipeline, content_hash) DO NOTHING
	`, dataset, pipeline, contentHash)
	return classify(err)
}
