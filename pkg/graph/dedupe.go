package graph

import (
	"context"
	"fmt"

	"github.com/trellis-kg/trellis/pkg/datapoint"
	"github.com/trellis-kg/trellis/pkg/extract"
	"github.com/trellis-kg/trellis/pkg/logger"
	"github.com/trellis-kg/trellis/pkg/ontology"
	"github.com/trellis-kg/trellis/pkg/store"

	"github.com/google/uuid"
)

// Reconciled is the deduplicated graph delta produced from one batch of
// candidates, ready for the writer.
type Reconciled struct {
	Types    []datapoint.EntityType
	Entities []datapoint.Entity
	Edges    []datapoint.Edge
}

// Deduper folds candidate graphs into the committed graph. Entities are
// keyed by (name, type); edges by (source, relation, target). Matching
// existing nodes absorb new candidates instead of spawning duplicates.
type Deduper struct {
	graph    store.Graph
	resolver *ontology.Resolver
}

// NewDeduper creates a deduper over the graph store. The resolver may
// carry a nil ontology, in which case types stay free text.
func NewDeduper(graph store.Graph, resolver *ontology.Resolver) *Deduper {
	if resolver == nil {
		resolver = ontology.NewResolver(nil, 0)
	}
	return &Deduper{graph: graph, resolver: resolver}
}

// Reconcile merges the candidates extracted from one chunk: in-batch merge
// first, then a targeted lookup against the committed graph. A candidate
// whose name already exists with a different type keeps the committed
// type; the conflict is logged, never fatal. Relations already committed
// for their source entity come back with their weight bumped by one.
func (d *Deduper) Reconcile(
	ctx context.Context,
	dataset string,
	cands extract.Candidates,
	chunk datapoint.Chunk,
) (Reconciled, error) {
	var out Reconciled

	merged := mergeCandidates(cands.Entities)
	if len(merged) == 0 && len(cands.Relations) == 0 {
		return out, nil
	}

	names := make([]string, 0, len(merged))
	for _, cand := range merged {
		names = append(names, cand.Name)
	}
	existing, err := d.graph.MatchEntities(ctx, dataset, names)
	if err != nil {
		return out, fmt.Errorf("looking up existing entities: %w", err)
	}
	byName := make(map[string]datapoint.Entity, len(existing))
	for _, entity := range existing {
		byName[datapoint.NormalizeName(entity.Name)] = entity
	}

	typeSeen := make(map[string]bool)
	entityByName := make(map[string]datapoint.Entity, len(merged))

	for _, cand := range merged {
		resolution := d.resolver.Resolve(cand.Type)
		typeName := resolution.Name

		entity, found := byName[datapoint.NormalizeName(cand.Name)]
		if found {
			if datapoint.NormalizeName(entity.TypeName) != datapoint.NormalizeName(typeName) {
				logger.Warn("entity type conflict, keeping committed type",
					"dataset", dataset,
					"entity", cand.Name,
					"committed", entity.TypeName,
					"candidate", typeName,
				)
			}
			typeName = entity.TypeName
		} else {
			entity = datapoint.NewEntity(dataset, cand.Name, typeName)
			entity.Description = cand.Description
		}
		entity.Provenance = appendID(entity.Provenance, chunk.ID)

		typeKey := datapoint.NormalizeName(typeName)
		if !typeSeen[typeKey] {
			typeSeen[typeKey] = true
			out.Types = append(out.Types, datapoint.NewEntityType(dataset, typeName, resolution.OntologyValid))
		}

		out.Entities = append(out.Entities, entity)
		entityByName[datapoint.NormalizeName(cand.Name)] = entity
	}

	edgeSeen := make(map[string]int)
	committedBySource := make(map[uuid.UUID]map[string]datapoint.Edge)
	for _, rel := range cands.Relations {
		source, okS := entityByName[datapoint.NormalizeName(rel.Source)]
		target, okT := entityByName[datapoint.NormalizeName(rel.Target)]
		if !okS || !okT {
			logger.Debug("dropping relation with unknown endpoint",
				"dataset", dataset,
				"source", rel.Source,
				"relation", rel.Relation,
				"target", rel.Target,
			)
			continue
		}

		edge := datapoint.NewEdge(dataset, source.ID, rel.Relation, target.ID)
		edge.Weight = 1
		edge.Provenance = appendID(nil, chunk.ID)

		// Re-observing a committed relation reinforces it. The stores keep
		// the max weight on conflict, so the bumped weight wins the merge.
		committed, ok := committedBySource[source.ID]
		if !ok {
			existing, err := d.graph.EdgesFrom(ctx, dataset, source.ID)
			if err != nil {
				return out, fmt.Errorf("looking up committed edges: %w", err)
			}
			committed = make(map[string]datapoint.Edge, len(existing))
			for _, e := range existing {
				committed[e.Key()] = e
			}
			committedBySource[source.ID] = committed
		}
		if prior, ok := committed[edge.Key()]; ok {
			edge.Weight = prior.Weight + 1
		}

		if idx, ok := edgeSeen[edge.Key()]; ok {
			out.Edges[idx].Provenance = appendID(out.Edges[idx].Provenance, chunk.ID)
			continue
		}
		edgeSeen[edge.Key()] = len(out.Edges)
		out.Edges = append(out.Edges, edge)
	}

	return out, nil
}

func appendID(ids []uuid.UUID, id uuid.UUID) []uuid.UUID {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}

// mergeCandidates collapses in-batch duplicates by normalized (name, type)
// key. The first description wins; later duplicates are dropped.
func mergeCandidates(entities []extract.CandidateEntity) []extract.CandidateEntity {
	seen := make(map[store.EntityKey]int)
	var merged []extract.CandidateEntity
	for _, cand := range entities {
		if datapoint.NormalizeName(cand.Name) == "" {
			continue
		}
		key := store.Key(cand.Name, cand.Type)
		if idx, ok := seen[key]; ok {
			if merged[idx].Description == "" {
				merged[idx].Description = cand.Description
			}
			continue
		}
		seen[key] = len(merged)
		merged = append(merged, cand)
	}
	return merged
}
