package pipeline

import (
	"context"
	"fmt"

	"github.com/trellis-kg/trellis/internal/util"
	"github.com/trellis-kg/trellis/pkg/chunker"
	"github.com/trellis-kg/trellis/pkg/datapoint"
	"github.com/trellis-kg/trellis/pkg/extract"
	"github.com/trellis-kg/trellis/pkg/graph"
	"github.com/trellis-kg/trellis/pkg/store"
	"github.com/trellis-kg/trellis/pkg/summary"
)

// CognifyParams wires the components of the standard ingestion pipeline.
// CSVChunker is optional; when set, documents with a CSV mime type go
// through it instead of the default Chunker.
type CognifyParams struct {
	Chunker    *chunker.Chunker
	CSVChunker *chunker.Chunker
	Adapter    extract.Adapter
	Embedder   extract.Embedder
	Deduper    *graph.Deduper
	Summarizer *summary.Summarizer
	Backoff    util.BackoffParams
}

// CognifyTasks is the standard document-to-graph task chain: chunk and
// embed, extract and reconcile the graph, then summarize. Each stage only
// sees state the previous stage flushed.
func CognifyTasks(p CognifyParams) []Task {
	tasks := []Task{
		chunkTask(p),
		extractTask(p),
	}
	if p.Summarizer != nil {
		tasks = append(tasks, summarizeTask(p))
	}
	return tasks
}

func chunkTask(p CognifyParams) Task {
	return Task{
		Name: "chunk_documents",
		Run: func(ctx context.Context, unit *Unit) (store.Batch, error) {
			chunk := p.Chunker
			if p.CSVChunker != nil && unit.Document.MimeType == "text/csv" {
				chunk = p.CSVChunker
			}
			chunks, err := chunk.Chunk(unit.Document, string(unit.Content))
			if err != nil {
				return store.Batch{}, err
			}

			if p.Embedder != nil {
				inputs := make([][]byte, len(chunks))
				for i, chunk := range chunks {
					inputs[i] = []byte(chunk.Text)
				}
				embeddings, err := p.Embedder.EmbedBatch(ctx, inputs)
				if err != nil {
					return store.Batch{}, fmt.Errorf("embedding chunks: %w", err)
				}
				for i := range chunks {
					chunks[i].Embedding = embeddings[i]
				}
			}

			unit.Chunks = chunks
			return store.Batch{
				Documents: []datapoint.Document{unit.Document},
				Chunks:    chunks,
			}, nil
		},
	}
}

func extractTask(p CognifyParams) Task {
	return Task{
		Name: "extract_graph",
		Run: func(ctx context.Context, unit *Unit) (store.Batch, error) {
			var delta store.Batch
			for ci := range unit.Chunks {
				chunk := unit.Chunks[ci]
				var cands extract.Candidates
				err := util.RetryBackoff(ctx, p.Backoff, func(ctx context.Context) error {
					var err error
					cands, err = p.Adapter.Extract(ctx, chunk.Text)
					return err
				})
				if err != nil {
					return store.Batch{}, fmt.Errorf("extracting from chunk %s: %w", chunk.ID, err)
				}

				reconciled, err := p.Deduper.Reconcile(ctx, chunk.Dataset, cands, chunk)
				if err != nil {
					return store.Batch{}, err
				}

				if p.Embedder != nil {
					for i := range reconciled.Entities {
						if reconciled.Entities[i].Embedding != nil {
							continue
						}
						text := reconciled.Entities[i].Name + ": " + reconciled.Entities[i].Description
						embedding, err := p.Embedder.Embed(ctx, []byte(text))
						if err != nil {
							return store.Batch{}, fmt.Errorf("embedding entity %s: %w", reconciled.Entities[i].Name, err)
						}
						reconciled.Entities[i].Embedding = embedding
					}
				}

				for _, ent := range reconciled.Entities {
					unit.Chunks[ci].Contains = append(unit.Chunks[ci].Contains, ent.ID)
				}
				if len(reconciled.Entities) > 0 {
					delta.Chunks = append(delta.Chunks, unit.Chunks[ci])
				}

				delta.Types = append(delta.Types, reconciled.Types...)
				delta.Entities = append(delta.Entities, reconciled.Entities...)
				delta.Edges = append(delta.Edges, reconciled.Edges...)
			}
			return delta, nil
		},
	}
}

func summarizeTask(p CognifyParams) Task {
	return Task{
		Name: "summarize_chunks",
		Run: func(ctx context.Context, unit *Unit) (store.Batch, error) {
			if len(unit.Chunks) == 0 {
				return store.Batch{}, nil
			}
			summaries, err := p.Summarizer.Summarize(ctx, unit.Chunks)
			if err != nil {
				return store.Batch{}, err
			}

			if p.Embedder != nil {
				for i := range summaries {
					embedding, err := p.Embedder.Embed(ctx, []byte(summaries[i].Text))
					if err != nil {
						return store.Batch{}, fmt.Errorf("embedding summary: %w", err)
					}
					summaries[i].Embedding = embedding
				}
			}
			return store.Batch{Summaries: summaries}, nil
		},
	}
}
