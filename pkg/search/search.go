package search

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/google/uuid"

	"github.com/trellis-kg/trellis/pkg/datapoint"
	"github.com/trellis-kg/trellis/pkg/extract"
	"github.com/trellis-kg/trellis/pkg/logger"
	"github.com/trellis-kg/trellis/pkg/store"
)

// Mode selects the retrieval strategy for a query.
type Mode string

const (
	ModeSemantic   Mode = "semantic"
	ModeStructural Mode = "structural"
	ModeHybrid     Mode = "hybrid"
)

const (
	DefaultLimit = 10

	// Hybrid fusion weights. Semantic similarity carries more signal than
	// graph proximity for free-text queries.
	semanticWeight   = 0.6
	structuralWeight = 0.4

	// hopDecay discounts structural scores per hop from an anchor entity.
	hopDecay = 0.5

	neighborhoodDepth = 2
)

// RetrievalUnavailableError reports that the backing store for a retrieval
// mode could not be reached. Hybrid queries degrade to the surviving mode
// instead of surfacing this.
type RetrievalUnavailableError struct {
	Mode Mode
	Err  error
}

func (e *RetrievalUnavailableError) Error() string {
	return fmt.Sprintf("%s retrieval unavailable: %v", e.Mode, e.Err)
}

func (e *RetrievalUnavailableError) Unwrap() error { return e.Err }

// Query is one search request.
type Query struct {
	Text    string
	Mode    Mode
	Dataset string
	Limit   int
}

// Result is one ranked hit. Snippet is the chunk text or the entity's
// "Name: Description" rendering, whichever the hit carries.
type Result struct {
	ID      uuid.UUID `json:"id"`
	Kind    string    `json:"kind"`
	Score   float64   `json:"score"`
	Snippet string    `json:"snippet"`
}

// Router answers queries against the vector and graph stores, fusing both
// rankings for hybrid mode.
type Router struct {
	vector   store.Vector
	graph    store.Graph
	embedder extract.Embedder
}

func NewRouter(vector store.Vector, graph store.Graph, embedder extract.Embedder) *Router {
	return &Router{vector: vector, graph: graph, embedder: embedder}
}

// Search runs the query in the requested mode. An empty result list is a
// valid answer; only an unreachable store is an error.
func (r *Router) Search(ctx context.Context, q Query) ([]Result, error) {
	if q.Limit <= 0 {
		q.Limit = DefaultLimit
	}
	if q.Mode == "" {
		q.Mode = ModeHybrid
	}

	switch q.Mode {
	case ModeSemantic:
		return r.semantic(ctx, q)
	case ModeStructural:
		return r.structural(ctx, q)
	case ModeHybrid:
		return r.hybrid(ctx, q)
	default:
		return nil, fmt.Errorf("unknown search mode %q", q.Mode)
	}
}

func (r *Router) semantic(ctx context.Context, q Query) ([]Result, error) {
	embedding, err := r.embedder.Embed(ctx, []byte(q.Text))
	if err != nil {
		return nil, &RetrievalUnavailableError{Mode: ModeSemantic, Err: err}
	}

	kinds := []datapoint.Kind{
		datapoint.KindChunk,
		datapoint.KindEntity,
		datapoint.KindTextSummary,
		datapoint.KindCodeSummary,
	}
	matches, err := r.vector.SearchVectors(ctx, q.Dataset, kinds, embedding, q.Limit)
	if err != nil {
		return nil, &RetrievalUnavailableError{Mode: ModeSemantic, Err: err}
	}

	results := make([]Result, 0, len(matches))
	for _, m := range matches {
		results = append(results, Result{
			ID:      m.ID,
			Kind:    string(m.Kind),
			Score:   m.Score,
			Snippet: snippetFromMetadata(m.Metadata),
		})
	}
	return results, nil
}

func (r *Router) structural(ctx context.Context, q Query) ([]Result, error) {
	names := queryTerms(q.Text)
	if len(names) == 0 {
		return nil, nil
	}

	anchors, err := r.graph.MatchEntities(ctx, q.Dataset, names)
	if err != nil {
		return nil, &RetrievalUnavailableError{Mode: ModeStructural, Err: err}
	}
	if len(anchors) == 0 {
		return nil, nil
	}

	anchorIDs := make([]uuid.UUID, len(anchors))
	hops := make(map[uuid.UUID]int, len(anchors))
	for i, a := range anchors {
		anchorIDs[i] = a.ID
		hops[a.ID] = 0
	}

	entities, edges, err := r.graph.Neighborhood(ctx, q.Dataset, anchorIDs, neighborhoodDepth)
	if err != nil {
		return nil, &RetrievalUnavailableError{Mode: ModeStructural, Err: err}
	}

	// Hop distances via BFS over the returned edge set. Edge direction is
	// irrelevant for proximity.
	adjacency := make(map[uuid.UUID][]datapoint.Edge)
	for _, e := range edges {
		adjacency[e.SourceID] = append(adjacency[e.SourceID], e)
		adjacency[e.TargetID] = append(adjacency[e.TargetID], e)
	}
	frontier := anchorIDs
	for hop := 1; len(frontier) > 0 && hop <= neighborhoodDepth; hop++ {
		var next []uuid.UUID
		for _, id := range frontier {
			for _, e := range adjacency[id] {
				for _, other := range []uuid.UUID{e.SourceID, e.TargetID} {
					if _, seen := hops[other]; !seen {
						hops[other] = hop
						next = append(next, other)
					}
				}
			}
		}
		frontier = next
	}

	// Score each entity by the strength of its incident edges, decayed by
	// hop distance from the nearest anchor.
	strength := make(map[uuid.UUID]float64)
	for _, e := range edges {
		w := e.Weight
		if w <= 0 {
			w = 1
		}
		w *= float64(max(len(e.Provenance), 1))
		strength[e.SourceID] += w
		strength[e.TargetID] += w
	}

	results := make([]Result, 0, len(entities))
	for _, ent := range entities {
		hop, ok := hops[ent.ID]
		if !ok {
			continue
		}
		score := (1 + strength[ent.ID]) * decay(hop)
		results = append(results, Result{
			ID:      ent.ID,
			Kind:    string(datapoint.KindEntity),
			Score:   score,
			Snippet: entitySnippet(ent),
		})
	}

	sortResults(results, nil)
	if len(results) > q.Limit {
		results = results[:q.Limit]
	}
	return results, nil
}

func (r *Router) hybrid(ctx context.Context, q Query) ([]Result, error) {
	inner := q
	inner.Limit = q.Limit * 2

	semantic, semErr := r.semantic(ctx, inner)
	structural, structErr := r.structural(ctx, inner)

	if semErr != nil && structErr != nil {
		return nil, &RetrievalUnavailableError{Mode: ModeHybrid, Err: semErr}
	}
	if semErr != nil {
		logger.Warn("semantic retrieval down, structural only", "error", semErr)
		return trim(structural, q.Limit), nil
	}
	if structErr != nil {
		logger.Warn("structural retrieval down, semantic only", "error", structErr)
		return trim(semantic, q.Limit), nil
	}

	fused := Fuse(semantic, structural, semanticWeight, structuralWeight)
	return trim(fused, q.Limit), nil
}

// Fuse combines two rankings into one. Each side is min-max normalized
// into [0, 1] first, so the weights compare relative rank rather than raw
// score scales. Hits present on both sides get both contributions. Ties
// break by semantic score, then by id, so fusion is deterministic.
func Fuse(semantic, structural []Result, wSem, wStruct float64) []Result {
	semScores := normalize(semantic)
	structScores := normalize(structural)

	merged := make(map[uuid.UUID]Result)
	for _, r := range semantic {
		r.Score = wSem * semScores[r.ID]
		merged[r.ID] = r
	}
	for _, r := range structural {
		if existing, ok := merged[r.ID]; ok {
			existing.Score += wStruct * structScores[r.ID]
			merged[r.ID] = existing
			continue
		}
		r.Score = wStruct * structScores[r.ID]
		merged[r.ID] = r
	}

	results := make([]Result, 0, len(merged))
	for _, r := range merged {
		results = append(results, r)
	}
	sortResults(results, semScores)
	return results
}

// normalize maps each result's score into [0, 1] by min-max over the
// ranking. A single-element or constant ranking maps to 1.
func normalize(results []Result) map[uuid.UUID]float64 {
	out := make(map[uuid.UUID]float64, len(results))
	if len(results) == 0 {
		return out
	}

	lo, hi := results[0].Score, results[0].Score
	for _, r := range results[1:] {
		lo = min(lo, r.Score)
		hi = max(hi, r.Score)
	}
	for _, r := range results {
		if hi == lo {
			out[r.ID] = 1
			continue
		}
		out[r.ID] = (r.Score - lo) / (hi - lo)
	}
	return out
}

func sortResults(results []Result, semScores map[uuid.UUID]float64) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if semScores != nil && semScores[a.ID] != semScores[b.ID] {
			return semScores[a.ID] > semScores[b.ID]
		}
		return a.ID.String() < b.ID.String()
	})
}

func trim(results []Result, limit int) []Result {
	if len(results) > limit {
		return results[:limit]
	}
	return results
}

func decay(hop int) float64 {
	d := 1.0
	for ; hop > 0; hop-- {
		d *= hopDecay
	}
	return d
}

func snippetFromMetadata(metadata map[string]any) string {
	if text, ok := metadata["text"].(string); ok && text != "" {
		return text
	}
	name, _ := metadata["name"].(string)
	if desc, ok := metadata["description"].(string); ok && desc != "" {
		return name + ": " + desc
	}
	return name
}

func entitySnippet(ent datapoint.Entity) string {
	if ent.Description != "" {
		return ent.Name + ": " + ent.Description
	}
	return ent.Name
}

// queryTerms extracts candidate entity names from free text: individual
// words plus adjacent capitalized pairs ("New York").
func queryTerms(text string) []string {
	words := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})

	seen := make(map[string]bool)
	var terms []string
	add := func(term string) {
		norm := datapoint.NormalizeName(term)
		if norm == "" || seen[norm] {
			return
		}
		seen[norm] = true
		terms = append(terms, norm)
	}

	for i, w := range words {
		add(w)
		if i+1 < len(words) && isCapitalized(w) && isCapitalized(words[i+1]) {
			add(w + " " + words[i+1])
		}
	}
	return terms
}

func isCapitalized(word string) bool {
	for _, r := range word {
		return unicode.IsUpper(r)
	}
	return false
}
