package extract

import (
	"testing"
)

func TestUnmarshalFlexible(t *testing.T) {
	tests := []struct {
		name         string
		input        string
		wantEntities int
		wantErr      bool
	}{
		{
			name:         "valid json",
			input:        `{"entities":[{"name":"Alice","type":"person","description":"a person"}],"relations":[]}`,
			wantEntities: 1,
		},
		{
			name:         "double encoded",
			input:        `"{\"entities\":[{\"name\":\"Alice\",\"type\":\"person\",\"description\":\"a person\"}],\"relations\":[]}"`,
			wantEntities: 1,
		},
		{
			name:         "unquoted keys repaired",
			input:        `{entities: [{name: "Alice", type: "person", description: "a person"}], relations: []}`,
			wantEntities: 1,
		},
		{
			name:         "trailing comma repaired",
			input:        `{"entities":[{"name":"Alice","type":"person","description":"a person"},],"relations":[]}`,
			wantEntities: 1,
		},
		{
			name:    "unrecoverable garbage",
			input:   `]]]not json at all{{{`,
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var out Candidates
			err := UnmarshalFlexible(tc.input, &out)
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(out.Entities) != tc.wantEntities {
				t.Errorf("got %d entities, want %d", len(out.Entities), tc.wantEntities)
			}
		})
	}
}

func TestGenerateSchema(t *testing.T) {
	schema := GenerateSchema(Candidates{})
	if schema == nil {
		t.Fatal("expected a schema")
	}

	ptr := GenerateSchema(&Candidates{})
	if ptr == nil {
		t.Fatal("expected a schema from pointer type")
	}
}
