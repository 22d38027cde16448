package ir

import (
	ierrors "github.com/luocf/inferunity/pkg/errors"
)

// Validate checks the invariants of §3.3 / §4.1:
//
//   - every Node input has a producer, is a graph input, or carries an
//     initializer Tensor;
//   - id uniqueness across Nodes and across Values (guaranteed by
//     construction — AddNode/AddValue assign fresh monotonic ids — but
//     re-checked here defensively after Clone/deserialize);
//   - declared inputs/outputs exist in values;
//   - acyclicity, by confirming TopologicalSort returns every node.
//
// Failing any check yields an *errors.Error with Kind InvalidModel
// naming the violated invariant.
func (g *Graph) Validate() error {
	seenNode := make(map[NodeID]bool)
	for _, n := range g.Nodes() {
		if seenNode[n.id] {
			return ierrors.New(ierrors.InvalidModel, "duplicate node id %d", n.id)
		}
		seenNode[n.id] = true
	}

	seenValue := make(map[ValueID]bool)
	for _, v := range g.Values() {
		if seenValue[v.id] {
			return ierrors.New(ierrors.InvalidModel, "duplicate value id %d", v.id)
		}
		seenValue[v.id] = true
	}

	for _, id := range g.declaredInputs {
		if _, ok := g.Value(id); !ok {
			return ierrors.New(ierrors.InvalidModel, "declared input value %d does not exist", id)
		}
	}
	for _, id := range g.declaredOutputs {
		if _, ok := g.Value(id); !ok {
			return ierrors.New(ierrors.InvalidModel, "declared output value %d does not exist", id)
		}
	}

	if len(g.declaredInputs) == 0 {
		return ierrors.New(ierrors.InvalidModel, "graph has no declared inputs (non-empty boundaries invariant)")
	}
	if len(g.declaredOutputs) == 0 {
		return ierrors.New(ierrors.InvalidModel, "graph has no declared outputs (non-empty boundaries invariant)")
	}

	for _, n := range g.Nodes() {
		for _, vID := range n.InputIDs() {
			v, ok := g.Value(vID)
			if !ok {
				return ierrors.New(ierrors.InvalidModel, "node %d references missing value %d", n.id, vID)
			}
			connected := v.HasProducer() || v.IsGraphInput() || v.Tensor() != nil
			if !connected {
				return ierrors.New(ierrors.InvalidModel,
					"connectivity invariant violated: value %d (input to node %d / %s) has no producer, is not a graph input, and carries no initializer", vID, n.id, n.OpType())
			}
		}
	}

	if _, err := g.TopologicalSort(); err != nil {
		return ierrors.Wrap(ierrors.InvalidModel, err, "acyclicity invariant violated")
	}

	return nil
}
