package graph

import (
	"context"
	"testing"

	"github.com/trellis-kg/trellis/pkg/datapoint"
	"github.com/trellis-kg/trellis/pkg/extract"
	"github.com/trellis-kg/trellis/pkg/ontology"
	"github.com/trellis-kg/trellis/pkg/store/memory"
)

func testChunk(text string) datapoint.Chunk {
	doc := datapoint.NewDocument("ds", "doc.txt", "text/plain", []byte(text))
	return datapoint.NewChunk("ds", doc.ID, 0, text)
}

func TestReconcileInBatchDedup(t *testing.T) {
	d := NewDeduper(memory.New(), nil)
	chunk := testChunk("Alice met Bob in Paris.")

	cands := extract.Candidates{
		Entities: []extract.CandidateEntity{
			{Name: "Alice", Type: "person", Description: "first mention"},
			{Name: "alice", Type: "Person", Description: "duplicate mention"},
			{Name: "Bob", Type: "person", Description: "a person"},
		},
		Relations: []extract.CandidateRelation{
			{Source: "Alice", Relation: "met", Target: "Bob"},
			{Source: "alice", Relation: "MET", Target: "bob"},
		},
	}

	got, err := d.Reconcile(context.Background(), "ds", cands, chunk)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(got.Entities) != 2 {
		t.Fatalf("got %d entities, want 2", len(got.Entities))
	}
	if got.Entities[0].Description != "first mention" {
		t.Errorf("first description should win, got %q", got.Entities[0].Description)
	}
	if len(got.Edges) != 1 {
		t.Fatalf("got %d edges, want 1 deduplicated edge", len(got.Edges))
	}
	if len(got.Types) != 1 {
		t.Errorf("got %d types, want 1", len(got.Types))
	}
}

func TestReconcileMergesIntoExisting(t *testing.T) {
	s := memory.New()
	d := NewDeduper(s, nil)
	ctx := context.Background()

	first := testChunk("Alice met Bob in Paris.")
	batch, err := d.Reconcile(ctx, "ds", extract.Candidates{
		Entities: []extract.CandidateEntity{{Name: "Alice", Type: "person", Description: "a person"}},
	}, first)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, entity := range batch.Entities {
		if err := s.UpsertNode(ctx, entity); err != nil {
			t.Fatalf("seeding store: %v", err)
		}
	}
	committed := batch.Entities[0]

	second := testChunk("Alice traveled to Berlin.")
	got, err := d.Reconcile(ctx, "ds", extract.Candidates{
		Entities: []extract.CandidateEntity{{Name: "Alice", Type: "person", Description: "another mention"}},
	}, second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(got.Entities) != 1 {
		t.Fatalf("got %d entities, want 1", len(got.Entities))
	}
	if got.Entities[0].ID != committed.ID {
		t.Error("re-extracted entity should keep the committed id")
	}
	if got.Entities[0].Description != "a person" {
		t.Errorf("committed description should survive, got %q", got.Entities[0].Description)
	}
	if len(got.Entities[0].Provenance) != 2 {
		t.Errorf("got %d provenance entries, want 2", len(got.Entities[0].Provenance))
	}
}

func TestReconcileTypeConflictKeepsCommitted(t *testing.T) {
	s := memory.New()
	d := NewDeduper(s, nil)
	ctx := context.Background()

	chunk := testChunk("Paris is lovely.")
	batch, err := d.Reconcile(ctx, "ds", extract.Candidates{
		Entities: []extract.CandidateEntity{{Name: "Paris", Type: "city", Description: "capital of France"}},
	}, chunk)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.UpsertNode(ctx, batch.Entities[0]); err != nil {
		t.Fatalf("seeding store: %v", err)
	}

	conflicting := testChunk("Paris appears again.")
	got, err := d.Reconcile(ctx, "ds", extract.Candidates{
		Entities: []extract.CandidateEntity{{Name: "Paris", Type: "location", Description: "a place"}},
	}, conflicting)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got.Entities[0].TypeName != "city" {
		t.Errorf("committed type should win, got %q", got.Entities[0].TypeName)
	}
	if got.Entities[0].ID != batch.Entities[0].ID {
		t.Error("conflicting mention should collapse onto the committed entity")
	}
}

func TestReconcileReinforcesCommittedEdges(t *testing.T) {
	s := memory.New()
	d := NewDeduper(s, nil)
	ctx := context.Background()

	cands := extract.Candidates{
		Entities: []extract.CandidateEntity{
			{Name: "Alice", Type: "person"},
			{Name: "Bob", Type: "person"},
		},
		Relations: []extract.CandidateRelation{
			{Source: "Alice", Relation: "met", Target: "Bob"},
		},
	}

	first, err := d.Reconcile(ctx, "ds", cands, testChunk("Alice met Bob."))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(first.Edges) != 1 || first.Edges[0].Weight != 1 {
		t.Fatalf("fresh relation should carry weight 1, got %+v", first.Edges)
	}
	for _, entity := range first.Entities {
		if err := s.UpsertNode(ctx, entity); err != nil {
			t.Fatalf("seeding store: %v", err)
		}
	}
	if err := s.UpsertEdge(ctx, first.Edges[0]); err != nil {
		t.Fatalf("seeding store: %v", err)
	}

	second, err := d.Reconcile(ctx, "ds", cands, testChunk("Alice met Bob again."))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(second.Edges) != 1 {
		t.Fatalf("got %d edges, want 1", len(second.Edges))
	}
	if second.Edges[0].Weight != 2 {
		t.Errorf("re-observed relation should carry weight 2, got %v", second.Edges[0].Weight)
	}
	if second.Edges[0].ID != first.Edges[0].ID {
		t.Error("re-observed relation should keep the committed edge id")
	}
}

func TestReconcileDropsUnknownEndpoints(t *testing.T) {
	d := NewDeduper(memory.New(), nil)
	chunk := testChunk("Alice waved.")

	got, err := d.Reconcile(context.Background(), "ds", extract.Candidates{
		Entities: []extract.CandidateEntity{{Name: "Alice", Type: "person"}},
		Relations: []extract.CandidateRelation{
			{Source: "Alice", Relation: "waved_at", Target: "Ghost"},
		},
	}, chunk)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got.Edges) != 0 {
		t.Errorf("relation with unknown target should be dropped, got %d edges", len(got.Edges))
	}
}

func TestReconcileResolvesOntologyTypes(t *testing.T) {
	o, err := ontology.New([]ontology.Class{
		{Name: "agent"},
		{Name: "person", Parent: "agent"},
	})
	if err != nil {
		t.Fatalf("building ontology: %v", err)
	}
	d := NewDeduper(memory.New(), ontology.NewResolver(o, 0))
	chunk := testChunk("Alice waved.")

	got, err := d.Reconcile(context.Background(), "ds", extract.Candidates{
		Entities: []extract.CandidateEntity{{Name: "Alice", Type: "persons"}},
	}, chunk)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got.Entities[0].TypeName != "person" {
		t.Errorf("type should resolve to canonical class, got %q", got.Entities[0].TypeName)
	}
	if len(got.Types) != 1 || !got.Types[0].OntologyValid {
		t.Error("resolved type node should be marked ontology valid")
	}
}
