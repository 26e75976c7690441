package ontology

import (
	"encoding/json"
	"fmt"
	"os"
)

// LoadFile reads an ontology from a JSON file holding an array of classes,
// e.g. [{"name": "person"}, {"name": "employee", "parent": "person"}].
// Declaration order in the file is the resolver's tie-break order.
func LoadFile(path string) (*Ontology, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading ontology file: %w", err)
	}

	var classes []Class
	if err := json.Unmarshal(data, &classes); err != nil {
		return nil, fmt.Errorf("parsing ontology file %s: %w", path, err)
	}
	return New(classes)
}
