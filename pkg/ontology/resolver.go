package ontology

import (
	"github.com/trellis-kg/trellis/pkg/datapoint"
)

// DefaultThreshold is the minimum similarity for a fuzzy class match.
const DefaultThreshold = 0.8

// Resolution is the outcome of resolving one free-text type against the
// ontology. When no class matches, Name carries the original free text and
// OntologyValid is false.
type Resolution struct {
	Name          string
	OntologyValid bool
	Score         float64
}

// Resolver maps free-text entity types onto canonical ontology classes.
// Resolution is pure: the same candidate against the same snapshot always
// yields the same class.
type Resolver struct {
	ontology  *Ontology
	threshold float64
}

// NewResolver creates a resolver over the given snapshot. A nil ontology
// resolves everything to its original free text. A zero threshold falls
// back to DefaultThreshold.
func NewResolver(o *Ontology, threshold float64) *Resolver {
	if threshold == 0 {
		threshold = DefaultThreshold
	}
	return &Resolver{ontology: o, threshold: threshold}
}

// Resolve canonicalizes a free-text type. Exact normalized matches win
// outright. Otherwise the most similar class at or above the threshold is
// chosen; ties go to the class with the deeper ontology path, then to the
// class declared first.
func (r *Resolver) Resolve(candidate string) Resolution {
	if r.ontology.Len() == 0 {
		return Resolution{Name: candidate}
	}

	if class, ok := r.ontology.Lookup(candidate); ok {
		return Resolution{Name: class.Name, OntologyValid: true, Score: 1}
	}

	normalized := datapoint.NormalizeName(candidate)
	best := Resolution{Name: candidate}
	bestDepth := -1
	bestOrder := -1

	for _, class := range r.ontology.Classes() {
		score := Similarity(normalized, datapoint.NormalizeName(class.Name))
		if score < r.threshold {
			continue
		}

		depth := len(r.ontology.Path(class.Name))
		order := r.ontology.order(class.Name)

		better := score > best.Score ||
			(score == best.Score && depth > bestDepth) ||
			(score == best.Score && depth == bestDepth && (bestOrder == -1 || order < bestOrder))
		if better {
			best = Resolution{Name: class.Name, OntologyValid: true, Score: score}
			bestDepth = depth
			bestOrder = order
		}
	}

	return best
}

// Similarity is a ratio in [0, 1] between two strings: twice the length of
// their longest common subsequence over their combined length. Identical
// strings score 1, disjoint strings 0.
func Similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 || len(rb) == 0 {
		return 0
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for i := 1; i <= len(ra); i++ {
		for j := 1; j <= len(rb); j++ {
			if ra[i-1] == rb[j-1] {
				curr[j] = prev[j-1] + 1
			} else if prev[j] >= curr[j-1] {
				curr[j] = prev[j]
			} else {
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
	}

	lcs := prev[len(rb)]
	return 2 * float64(lcs) / float64(len(ra)+len(rb))
}
