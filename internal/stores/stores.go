package stores

import (
	"context"
	"fmt"

	"github.com/trellis-kg/trellis/internal/util"
	"github.com/trellis-kg/trellis/pkg/store"
	"github.com/trellis-kg/trellis/pkg/store/bolt"
	"github.com/trellis-kg/trellis/pkg/store/memory"
	"github.com/trellis-kg/trellis/pkg/store/pgx"
)

// Stores bundles the three persistence backends behind one handle.
type Stores struct {
	Relational store.Relational
	Vector     store.Vector
	Graph      store.Graph

	closer func()
}

func (s *Stores) Close() {
	if s.closer != nil {
		s.closer()
	}
}

// Open selects the backend from STORE_BACKEND: "postgres" (default) uses
// the pgvector-enabled pool, "bolt" a local file database, "memory" the
// in-process store for development.
func Open(ctx context.Context) (*Stores, error) {
	backend := util.GetEnvString("STORE_BACKEND", "postgres")

	switch backend {
	case "postgres":
		st, err := pgx.New(ctx, util.GetEnv("DATABASE_URL"))
		if err != nil {
			return nil, fmt.Errorf("opening postgres store: %w", err)
		}
		return &Stores{
			Relational: st,
			Vector:     st,
			Graph:      st,
			closer:     st.Close,
		}, nil
	case "bolt":
		st, err := bolt.Open(util.GetEnvString("BOLT_PATH", "trellis.db"))
		if err != nil {
			return nil, fmt.Errorf("opening bolt store: %w", err)
		}
		return &Stores{
			Relational: st,
			Vector:     st,
			Graph:      st,
			closer:     func() { st.Close() },
		}, nil
	case "memory":
		st := memory.New()
		return &Stores{
			Relational: st,
			Vector:     st,
			Graph:      st,
		}, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", backend)
	}
}
