package memory

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/trellis-kg/trellis/pkg/datapoint"
	"github.com/trellis-kg/trellis/pkg/store"
)

func TestCosine(t *testing.T) {
	cases := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 0}, []float32{1, 0}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0.5},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, 0},
		{"length mismatch", []float32{1, 0}, []float32{1}, 0},
		{"zero vector", []float32{0, 0}, []float32{1, 0}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Cosine(tc.a, tc.b)
			if diff := got - tc.want; diff > 1e-9 || diff < -1e-9 {
				t.Fatalf("Cosine = %f, want %f", got, tc.want)
			}
		})
	}
}

func TestSearchVectorsKindFilter(t *testing.T) {
	s := New()
	ctx := context.Background()

	chunkID := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	entityID := uuid.MustParse("00000000-0000-0000-0000-000000000002")
	err := s.UpsertVectors(ctx, []store.VectorRecord{
		{ID: chunkID, Kind: datapoint.KindChunk, Dataset: "ds", Embedding: []float32{1, 0}},
		{ID: entityID, Kind: datapoint.KindEntity, Dataset: "ds", Embedding: []float32{1, 0}},
	})
	if err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	matches, err := s.SearchVectors(ctx, "ds", []datapoint.Kind{datapoint.KindChunk}, []float32{1, 0}, 10)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(matches) != 1 || matches[0].ID != chunkID {
		t.Fatalf("kind filter leaked: %v", matches)
	}

	matches, err = s.SearchVectors(ctx, "other", nil, []float32{1, 0}, 10)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(matches) != 0 {
		t.Fatalf("dataset filter leaked: %v", matches)
	}
}

func TestUpsertNodeMerge(t *testing.T) {
	s := New()
	ctx := context.Background()

	first := datapoint.NewEntity("ds", "Alice", "person")
	first.Description = "original description"
	first.Provenance = []uuid.UUID{uuid.MustParse("00000000-0000-0000-0000-0000000000aa")}
	if err := s.UpsertNode(ctx, first); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	second := datapoint.NewEntity("ds", "Alice", "person")
	second.Description = "competing description"
	second.Provenance = []uuid.UUID{
		uuid.MustParse("00000000-0000-0000-0000-0000000000aa"),
		uuid.MustParse("00000000-0000-0000-0000-0000000000bb"),
	}
	if err := s.UpsertNode(ctx, second); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	got, ok := s.Entity(first.ID)
	if !ok {
		t.Fatal("entity missing after merge")
	}
	if got.Description != "original description" {
		t.Errorf("description not first-write-wins: %q", got.Description)
	}
	if len(got.Provenance) != 2 {
		t.Errorf("provenance union has %d entries, want 2", len(got.Provenance))
	}
}

func TestUpsertEdgeKeepsMaxWeight(t *testing.T) {
	s := New()
	ctx := context.Background()

	a, b := uuid.New(), uuid.New()
	edge := datapoint.NewEdge("ds", a, "met", b)
	edge.Weight = 2
	if err := s.UpsertEdge(ctx, edge); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	edge.Weight = 1
	if err := s.UpsertEdge(ctx, edge); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	got, ok := s.Edge(edge.ID)
	if !ok {
		t.Fatal("edge missing")
	}
	if got.Weight != 2 {
		t.Errorf("weight regressed to %f, want 2", got.Weight)
	}
}

func TestNeighborhoodDepth(t *testing.T) {
	s := New()
	ctx := context.Background()

	// a -> b -> c -> d: depth 2 from a must stop at c.
	ids := make([]datapoint.Entity, 4)
	for i, name := range []string{"a", "b", "c", "d"} {
		ids[i] = datapoint.NewEntity("ds", name, "node")
		if err := s.UpsertNode(ctx, ids[i]); err != nil {
			t.Fatalf("upsert failed: %v", err)
		}
	}
	for i := 0; i < 3; i++ {
		edge := datapoint.NewEdge("ds", ids[i].ID, "next", ids[i+1].ID)
		if err := s.UpsertEdge(ctx, edge); err != nil {
			t.Fatalf("upsert failed: %v", err)
		}
	}

	entities, edges, err := s.Neighborhood(ctx, "ds", []uuid.UUID{ids[0].ID}, 2)
	if err != nil {
		t.Fatalf("neighborhood failed: %v", err)
	}
	if len(entities) != 3 {
		t.Fatalf("got %d entities, want a, b, c", len(entities))
	}
	for _, ent := range entities {
		if ent.ID == ids[3].ID {
			t.Fatal("entity beyond depth leaked into neighborhood")
		}
	}
	if len(edges) != 2 {
		t.Fatalf("got %d edges, want 2", len(edges))
	}
}
