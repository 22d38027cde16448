package scheduler

import (
	"context"

	"github.com/luocf/inferunity/pkg/ir"
)

// Topological runs nodes one at a time in a single topological order.
// It is the simplest variant and the right default for small graphs
// or a single CPU provider where there is nothing to gain from
// concurrency.
type Topological struct{}

func (Topological) Name() string { return "topological" }

func (Topological) Run(ctx context.Context, g *ir.Graph, exec NodeExecFunc) error {
	order, err := g.TopologicalSort()
	if err != nil {
		return err
	}
	for _, n := range order {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := exec(ctx, n); err != nil {
			return err
		}
	}
	return nil
}
