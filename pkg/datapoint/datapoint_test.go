package datapoint

import (
	"testing"
)

func TestDeterministicID(t *testing.T) {
	tests := []struct {
		name     string
		datasetA string
		kindA    Kind
		contentA string
		datasetB string
		kindB    Kind
		contentB string
		wantSame bool
	}{
		{"identical inputs", "ds", KindChunk, "alpha", "ds", KindChunk, "alpha", true},
		{"different content", "ds", KindChunk, "alpha", "ds", KindChunk, "beta", false},
		{"different dataset", "ds1", KindChunk, "alpha", "ds2", KindChunk, "alpha", false},
		{"different kind", "ds", KindChunk, "alpha", "ds", KindEntity, "alpha", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			a := DeterministicID(tc.datasetA, tc.kindA, tc.contentA)
			b := DeterministicID(tc.datasetB, tc.kindB, tc.contentB)
			if (a == b) != tc.wantSame {
				t.Fatalf("ids %s vs %s: same=%v, want %v", a, b, a == b, tc.wantSame)
			}
		})
	}
}

func TestDeterministicIDSeparatorSafety(t *testing.T) {
	// dataset/content boundaries must not be confusable
	a := DeterministicID("ab", KindChunk, "c")
	b := DeterministicID("a", KindChunk, "bc")
	if a == b {
		t.Fatalf("boundary collision: %s", a)
	}
}

func TestNewEntityKeyedByNameAndType(t *testing.T) {
	tests := []struct {
		name     string
		nameA    string
		typeA    string
		nameB    string
		typeB    string
		wantSame bool
	}{
		{"same name same type", "Alice", "PERSON", "Alice", "PERSON", true},
		{"case and spacing ignored", "alice", "person", "  ALICE ", "Person", true},
		{"same name different type", "Paris", "LOCATION", "Paris", "PERSON", false},
		{"different name same type", "Alice", "PERSON", "Bob", "PERSON", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			a := NewEntity("ds", tc.nameA, tc.typeA)
			b := NewEntity("ds", tc.nameB, tc.typeB)
			if (a.ID == b.ID) != tc.wantSame {
				t.Fatalf("entity ids %s vs %s: same=%v, want %v", a.ID, b.ID, a.ID == b.ID, tc.wantSame)
			}
		})
	}
}

func TestEdgeKeyDedup(t *testing.T) {
	alice := NewEntity("ds", "Alice", "PERSON")
	bob := NewEntity("ds", "Bob", "PERSON")

	e1 := NewEdge("ds", alice.ID, "met", bob.ID)
	e2 := NewEdge("ds", alice.ID, "MET", bob.ID)
	if e1.Key() != e2.Key() {
		t.Fatalf("edge keys differ: %q vs %q", e1.Key(), e2.Key())
	}
	if e1.ID != e2.ID {
		t.Fatalf("edge ids differ: %s vs %s", e1.ID, e2.ID)
	}

	reversed := NewEdge("ds", bob.ID, "met", alice.ID)
	if e1.Key() == reversed.Key() {
		t.Fatal("edge key must be directional")
	}
}

func TestNewDocumentStableAcrossReingestion(t *testing.T) {
	content := []byte("Alice met Bob in Paris.")
	d1 := NewDocument("ds", "a.txt", "text/plain", content)
	d2 := NewDocument("ds", "a.txt", "text/plain", content)
	if d1.ID != d2.ID {
		t.Fatalf("document ids differ: %s vs %s", d1.ID, d2.ID)
	}
	d3 := NewDocument("ds", "a.txt", "text/plain", []byte("Other content."))
	if d1.ID == d3.ID {
		t.Fatal("different content produced identical document id")
	}
}

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lowercase", "ALICE", "alice"},
		{"collapse spaces", "  New   York ", "new york"},
		{"already normal", "paris", "paris"},
		{"tabs and newlines", "New\tYork\nCity", "new york city"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := NormalizeName(tc.in); got != tc.want {
				t.Fatalf("NormalizeName(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}
