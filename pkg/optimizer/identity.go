package optimizer

import (
	"math"

	"github.com/luocf/inferunity/pkg/ir"
	"github.com/luocf/inferunity/pkg/operator"
	"github.com/luocf/inferunity/pkg/tensor"
)

const identityTolerance = 1e-6

// IdentitySimplificationPass recognizes Add-with-zero and
// Mul-with-one, where the zero/one operand is a constant, and removes
// the node entirely: every consumer of its output is rewired straight
// to the other (non-identity) operand.
type IdentitySimplificationPass struct{}

func (p *IdentitySimplificationPass) Name() string { return "identity_simplification" }

// Dependencies requires operator fusion to have already run, matching
// the default pipeline's ordering: simplification follows fusion so it
// sees fused nodes' identity-shaped operands too.
func (p *IdentitySimplificationPass) Dependencies() []string {
	return []string{"operator_fusion"}
}

func (p *IdentitySimplificationPass) Run(g *ir.Graph, reg *operator.Registry) (bool, error) {
	changed := false
	for _, node := range g.Nodes() {
		n, ok := g.Node(node.ID())
		if !ok {
			continue
		}
		switch n.OpType() {
		case "Add":
			if simplifyIdentity(g, n, isZeroOperand) {
				changed = true
			}
		case "Mul":
			if simplifyIdentity(g, n, isOneOperand) {
				changed = true
			}
		}
	}
	return changed, nil
}

func isZeroOperand(v ir.Value) bool {
	t := v.Tensor()
	return t != nil && t.IsZero(identityTolerance)
}

func isOneOperand(v ir.Value) bool {
	t := v.Tensor()
	if t == nil || t.DType() != tensor.Float32 {
		return false
	}
	for _, f := range t.Float32s() {
		if math.Abs(float64(f)-1) > identityTolerance {
			return false
		}
	}
	return true
}

func simplifyIdentity(g *ir.Graph, node ir.Node, isIdentityElement func(ir.Value) bool) bool {
	inputs := node.Inputs()
	if len(inputs) != 2 {
		return false
	}
	outs := node.Outputs()
	if len(outs) != 1 {
		return false
	}

	var kept ir.Value
	switch {
	case isIdentityElement(inputs[1]):
		kept = inputs[0]
	case isIdentityElement(inputs[0]):
		kept = inputs[1]
	default:
		return false
	}

	out := outs[0]
	g.ReplaceValue(out, kept)
	g.RemoveNode(node)
	return true
}
