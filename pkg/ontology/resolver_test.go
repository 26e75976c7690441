package ontology

import (
	"testing"
)

func testOntology(t *testing.T) *Ontology {
	t.Helper()
	o, err := New([]Class{
		{Name: "agent"},
		{Name: "person", Parent: "agent"},
		{Name: "organization", Parent: "agent"},
		{Name: "place"},
		{Name: "city", Parent: "place"},
	})
	if err != nil {
		t.Fatalf("building ontology: %v", err)
	}
	return o
}

func TestResolve(t *testing.T) {
	r := NewResolver(testOntology(t), 0)

	tests := []struct {
		name      string
		candidate string
		wantName  string
		wantValid bool
	}{
		{"exact match", "person", "person", true},
		{"case insensitive", "Person", "person", true},
		{"whitespace ignored", "  person ", "person", true},
		{"fuzzy match", "persons", "person", true},
		{"no match keeps free text", "quasar", "quasar", false},
		{"below threshold keeps free text", "pe", "pe", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := r.Resolve(tc.candidate)
			if got.Name != tc.wantName {
				t.Errorf("got name %q, want %q", got.Name, tc.wantName)
			}
			if got.OntologyValid != tc.wantValid {
				t.Errorf("got valid %v, want %v", got.OntologyValid, tc.wantValid)
			}
		})
	}
}

func TestResolveDeterministic(t *testing.T) {
	r := NewResolver(testOntology(t), 0)
	first := r.Resolve("persons")
	for range 50 {
		if got := r.Resolve("persons"); got != first {
			t.Fatalf("resolution not stable: %+v vs %+v", got, first)
		}
	}
}

func TestResolveTieBreaks(t *testing.T) {
	// "cat" and "car" are equally similar to "caX" shapes; build classes
	// where two candidates score the same and depth decides.
	o, err := New([]Class{
		{Name: "root"},
		{Name: "abcd"},
		{Name: "abce", Parent: "root"},
	})
	if err != nil {
		t.Fatalf("building ontology: %v", err)
	}

	r := NewResolver(o, 0.7)
	got := r.Resolve("abcx")
	if !got.OntologyValid {
		t.Fatal("expected a fuzzy match")
	}
	// Both score 0.75; "abce" sits deeper in the hierarchy.
	if got.Name != "abce" {
		t.Errorf("expected deeper class to win the tie, got %q", got.Name)
	}
}

func TestResolveNilOntology(t *testing.T) {
	r := NewResolver(nil, 0)
	got := r.Resolve("person")
	if got.OntologyValid {
		t.Error("nil ontology should never validate a type")
	}
	if got.Name != "person" {
		t.Errorf("got %q, want original text", got.Name)
	}
}

func TestOntologyPath(t *testing.T) {
	o := testOntology(t)

	tests := []struct {
		name string
		want []string
	}{
		{"city", []string{"place", "city"}},
		{"person", []string{"agent", "person"}},
		{"agent", []string{"agent"}},
		{"unknown", nil},
	}

	for _, tc := range tests {
		got := o.Path(tc.name)
		if len(got) != len(tc.want) {
			t.Errorf("Path(%q) = %v, want %v", tc.name, got, tc.want)
			continue
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Errorf("Path(%q) = %v, want %v", tc.name, got, tc.want)
				break
			}
		}
	}
}

func TestSimilarity(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"person", "person", 1},
		{"", "person", 0},
		{"abcd", "abcd", 1},
	}
	for _, tc := range tests {
		if got := Similarity(tc.a, tc.b); got != tc.want {
			t.Errorf("Similarity(%q, %q) = %v, want %v", tc.a, tc.b, got, tc.want)
		}
	}

	if got := Similarity("persons", "person"); got <= 0.8 {
		t.Errorf("Similarity(persons, person) = %v, want > 0.8", got)
	}
	if got := Similarity("person", "quasar"); got >= 0.8 {
		t.Errorf("Similarity(person, quasar) = %v, want < 0.8", got)
	}
}
