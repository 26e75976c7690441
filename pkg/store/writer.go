package store

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/trellis-kg/trellis/internal/util"
	"github.com/trellis-kg/trellis/pkg/logger"

	"github.com/google/uuid"
)

const lockStripes = 64

// Writer persists a batch across the three backing stores in a fixed
// order: relational rows first, then vector upserts, then graph nodes,
// then graph edges. A relational failure aborts the whole flush; every
// step retries transient errors with backoff. Identical batches are
// no-ops because all ids are content-derived and every store upserts.
type Writer struct {
	relational Relational
	vector     Vector
	graph      Graph

	backoff util.BackoffParams
	locks   [lockStripes]sync.Mutex
}

// NewWriter creates a writer over the three stores.
func NewWriter(relational Relational, vector Vector, graph Graph, backoff util.BackoffParams) *Writer {
	return &Writer{
		relational: relational,
		vector:     vector,
		graph:      graph,
		backoff:    backoff,
	}
}

// Persist flushes the batch. On error the already-written prefix stays in
// place; re-running the same batch converges because every write is an
// idempotent upsert.
func (w *Writer) Persist(ctx context.Context, batch Batch) error {
	if batch.Empty() {
		return nil
	}

	if err := w.persistRelational(ctx, batch); err != nil {
		return err
	}
	if err := w.persistVectors(ctx, batch); err != nil {
		return err
	}
	if err := w.persistNodes(ctx, batch); err != nil {
		return err
	}
	if err := w.persistEdges(ctx, batch); err != nil {
		return err
	}

	logger.Debug("batch persisted",
		"dataset", batch.Dataset,
		"documents", len(batch.Documents),
		"chunks", len(batch.Chunks),
		"entities", len(batch.Entities),
		"edges", len(batch.Edges),
	)
	return nil
}

func (w *Writer) persistRelational(ctx context.Context, batch Batch) error {
	for _, doc := range batch.Documents {
		d := doc
		err := w.withLock(d.ID, func() error {
			return w.retry(ctx, "upserting document", func(ctx context.Context) error {
				return w.relational.UpsertDocument(ctx, d)
			})
		})
		if err != nil {
			return err
		}
	}
	for _, chunk := range batch.Chunks {
		c := chunk
		err := w.withLock(c.ID, func() error {
			return w.retry(ctx, "upserting chunk", func(ctx context.Context) error {
				return w.relational.UpsertChunk(ctx, c)
			})
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) persistVectors(ctx context.Context, batch Batch) error {
	records := vectorRecords(batch)
	if len(records) == 0 {
		return nil
	}
	return w.retry(ctx, "upserting vectors", func(ctx context.Context) error {
		return w.vector.UpsertVectors(ctx, records)
	})
}

func (w *Writer) persistNodes(ctx context.Context, batch Batch) error {
	for _, entityType := range batch.Types {
		et := entityType
		err := w.withLock(et.ID, func() error {
			return w.retry(ctx, "upserting entity type", func(ctx context.Context) error {
				return w.graph.UpsertType(ctx, et)
			})
		})
		if err != nil {
			return err
		}
	}
	for _, entity := range batch.Entities {
		e := entity
		err := w.withLock(e.ID, func() error {
			return w.retry(ctx, "upserting entity", func(ctx context.Context) error {
				return w.graph.UpsertNode(ctx, e)
			})
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) persistEdges(ctx context.Context, batch Batch) error {
	for _, edge := range batch.Edges {
		e := edge
		err := w.withLock(e.ID, func() error {
			return w.retry(ctx, "upserting edge", func(ctx context.Context) error {
				return w.graph.UpsertEdge(ctx, e)
			})
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// retry runs fn with bounded backoff while it keeps failing transiently.
// Permanent errors abort on the first attempt.
func (w *Writer) retry(ctx context.Context, op string, fn func(context.Context) error) error {
	var permanent error
	err := util.RetryBackoff(ctx, w.backoff, func(ctx context.Context) error {
		err := fn(ctx)
		if err == nil || errors.Is(err, ErrTransient) {
			return err
		}
		permanent = err
		return nil
	})
	if permanent != nil {
		return fmt.Errorf("%s: %w", op, permanent)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// withLock serializes work on a single id so concurrent merge-then-upsert
// of the same entity cannot interleave. Unrelated ids proceed in parallel.
func (w *Writer) withLock(id uuid.UUID, fn func() error) error {
	stripe := binary.BigEndian.Uint32(id[:4]) % lockStripes
	w.locks[stripe].Lock()
	defer w.locks[stripe].Unlock()
	return fn()
}

func vectorRecords(batch Batch) []VectorRecord {
	var records []VectorRecord
	for _, chunk := range batch.Chunks {
		if chunk.Embedding == nil {
			continue
		}
		dp := chunk.Envelope()
		records = append(records, VectorRecord{
			ID: dp.ID, Kind: dp.Kind, Dataset: dp.Dataset,
			Embedding: chunk.Embedding, Metadata: dp.Metadata,
		})
	}
	for _, entity := range batch.Entities {
		if entity.Embedding == nil {
			continue
		}
		dp := entity.Envelope()
		records = append(records, VectorRecord{
			ID: dp.ID, Kind: dp.Kind, Dataset: dp.Dataset,
			Embedding: entity.Embedding, Metadata: dp.Metadata,
		})
	}
	for _, summary := range batch.Summaries {
		if summary.Embedding == nil {
			continue
		}
		dp := summary.Envelope()
		records = append(records, VectorRecord{
			ID: dp.ID, Kind: dp.Kind, Dataset: dp.Dataset,
			Embedding: summary.Embedding, Metadata: dp.Metadata,
		})
	}
	for _, code := range batch.Code {
		if code.Embedding == nil {
			continue
		}
		dp := code.Envelope()
		records = append(records, VectorRecord{
			ID: dp.ID, Kind: dp.Kind, Dataset: dp.Dataset,
			Embedding: code.Embedding, Metadata: dp.Metadata,
		})
	}
	return records
}
