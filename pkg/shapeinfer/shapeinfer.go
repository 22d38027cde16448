// Package shapeinfer walks a validated graph in topological order and
// fills in each value's shape/dtype slot by asking the op-type's
// registered Operator to infer its output shapes from its inputs'.
package shapeinfer

import (
	"fmt"

	ierrors "github.com/luocf/inferunity/pkg/errors"
	"github.com/luocf/inferunity/pkg/ir"
	"github.com/luocf/inferunity/pkg/operator"
	"github.com/luocf/inferunity/pkg/tensor"
)

// Warning describes one node whose shape could not be inferred. Shape
// inference failures at load time are diagnostic, not fatal — a node
// may have a dynamic or as-yet-unknowable shape and still execute
// correctly once real inputs arrive.
type Warning struct {
	NodeID  ir.NodeID
	OpType  string
	Message string
}

func (w Warning) String() string {
	return fmt.Sprintf("node %d (%s): %s", w.NodeID, w.OpType, w.Message)
}

// Result is the outcome of a full-graph inference pass.
type Result struct {
	Warnings []Warning
}

// Infer fills in shapes for every value in the graph reachable via
// node outputs, using reg to resolve each node's operator. Graph
// inputs and initializers must already carry correct shapes/dtypes
// before calling Infer. Returns an error only for a structural failure
// (the graph has a cycle, so no topological order exists); per-node
// inference failures are
// collected as warnings on the returned Result.
func Infer(g *ir.Graph, reg *operator.Registry) (*Result, error) {
	order, err := g.TopologicalSort()
	if err != nil {
		return nil, ierrors.Wrap(ierrors.InvalidModel, err, "shape inference requires an acyclic graph")
	}

	result := &Result{}
	for _, node := range order {
		op, opErr := reg.New(node.OpType())
		if opErr != nil {
			result.Warnings = append(result.Warnings, Warning{
				NodeID: node.ID(), OpType: node.OpType(),
				Message: "no operator registered; output shapes left unresolved",
			})
			continue
		}
		op.SetAttributes(node.Attrs())

		inputValues := node.Inputs()
		inputs := make([]*tensor.Tensor, len(inputValues))
		for i, v := range inputValues {
			if t := v.Tensor(); t != nil {
				inputs[i] = t
			} else {
				inputs[i] = tensor.NewPlaceholder(v.Shape(), v.DType())
			}
		}

		if err := op.ValidateInputs(inputs); err != nil {
			result.Warnings = append(result.Warnings, Warning{
				NodeID: node.ID(), OpType: node.OpType(),
				Message: "input validation failed: " + err.Error(),
			})
			continue
		}

		shapes, err := op.InferOutputShape(inputs)
		if err != nil {
			result.Warnings = append(result.Warnings, Warning{
				NodeID: node.ID(), OpType: node.OpType(),
				Message: "shape inference failed: " + err.Error(),
			})
			continue
		}

		outputValues := node.Outputs()
		if len(shapes) != len(outputValues) {
			result.Warnings = append(result.Warnings, Warning{
				NodeID: node.ID(), OpType: node.OpType(),
				Message: fmt.Sprintf("operator returned %d output shapes, node declares %d outputs", len(shapes), len(outputValues)),
			})
			continue
		}
		for i, v := range outputValues {
			v.SetShape(shapes[i])
			if v.DType() == tensor.Unknown && len(inputValues) > 0 {
				v.SetDType(inputValues[0].DType())
			}
		}
	}
	return result, nil
}
