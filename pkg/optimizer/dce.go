package optimizer

import (
	"github.com/luocf/inferunity/pkg/ir"
	"github.com/luocf/inferunity/pkg/operator"
)

// DeadCodeEliminationPass removes nodes whose outputs are consumed by
// nothing and declared as no graph output. Removing one dead node can
// make its own producers dead in turn, so Run iterates internally
// until a full sweep removes nothing.
//
// The default pipeline schedules two separate instances of this pass
// (once after constant folding, once after fusion and identity
// simplification), each with a different prerequisite, so Dependencies
// reads from an instance field rather than returning a fixed value.
type DeadCodeEliminationPass struct {
	deps []string
}

func (p *DeadCodeEliminationPass) Name() string { return "dead_code_elimination" }

func (p *DeadCodeEliminationPass) Dependencies() []string { return p.deps }

func (p *DeadCodeEliminationPass) Run(g *ir.Graph, reg *operator.Registry) (bool, error) {
	anyChanged := false
	for {
		sweepChanged := false
		for _, node := range g.Nodes() {
			dead := true
			for _, v := range node.Outputs() {
				if len(v.Consumers()) > 0 || v.IsGraphOutput() {
					dead = false
					break
				}
			}
			if len(node.Outputs()) == 0 {
				dead = false // no declared outputs: assume side-effecting, keep
			}
			if dead {
				g.RemoveNode(node)
				sweepChanged = true
			}
		}
		if !sweepChanged {
			break
		}
		anyChanged = true
	}
	return anyChanged, nil
}
