package ontology

import (
	"fmt"

	"github.com/trellis-kg/trellis/pkg/datapoint"
)

// Class is one canonical node class in an ontology snapshot. Parent names
// the immediate superclass; empty for roots.
type Class struct {
	Name   string `json:"name"`
	Parent string `json:"parent,omitempty"`
}

// Ontology is an immutable snapshot of canonical classes. Lookups run
// against normalized names; the declaration order of classes is preserved
// so resolution never depends on map iteration.
type Ontology struct {
	classes []Class
	index   map[string]int
}

// New builds an ontology from the given classes. A class naming an unknown
// parent is an error. Duplicate class names keep the first declaration.
func New(classes []Class) (*Ontology, error) {
	o := &Ontology{
		classes: make([]Class, 0, len(classes)),
		index:   make(map[string]int, len(classes)),
	}

	for _, class := range classes {
		key := datapoint.NormalizeName(class.Name)
		if key == "" {
			return nil, fmt.Errorf("ontology class with empty name")
		}
		if _, ok := o.index[key]; ok {
			continue
		}
		o.index[key] = len(o.classes)
		o.classes = append(o.classes, class)
	}

	for _, class := range o.classes {
		if class.Parent == "" {
			continue
		}
		if _, ok := o.index[datapoint.NormalizeName(class.Parent)]; !ok {
			return nil, fmt.Errorf("ontology class %q names unknown parent %q", class.Name, class.Parent)
		}
	}
	return o, nil
}

// Len reports the number of classes.
func (o *Ontology) Len() int {
	if o == nil {
		return 0
	}
	return len(o.classes)
}

// Classes returns the classes in first-seen order.
func (o *Ontology) Classes() []Class {
	if o == nil {
		return nil
	}
	out := make([]Class, len(o.classes))
	copy(out, o.classes)
	return out
}

// Lookup finds a class by name, ignoring case and whitespace.
func (o *Ontology) Lookup(name string) (Class, bool) {
	if o == nil {
		return Class{}, false
	}
	idx, ok := o.index[datapoint.NormalizeName(name)]
	if !ok {
		return Class{}, false
	}
	return o.classes[idx], true
}

// Path returns the ancestor chain of the named class from root to the
// class itself. Unknown names yield nil.
func (o *Ontology) Path(name string) []string {
	if o == nil {
		return nil
	}
	idx, ok := o.index[datapoint.NormalizeName(name)]
	if !ok {
		return nil
	}

	var reversed []string
	seen := make(map[int]bool)
	for {
		if seen[idx] {
			break
		}
		seen[idx] = true
		class := o.classes[idx]
		reversed = append(reversed, class.Name)
		if class.Parent == "" {
			break
		}
		parentIdx, ok := o.index[datapoint.NormalizeName(class.Parent)]
		if !ok {
			break
		}
		idx = parentIdx
	}

	path := make([]string, len(reversed))
	for i, name := range reversed {
		path[len(reversed)-1-i] = name
	}
	return path
}

func (o *Ontology) order(name string) int {
	idx, ok := o.index[datapoint.NormalizeName(name)]
	if !ok {
		return -1
	}
	return idx
}
