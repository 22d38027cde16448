package optimizer

import (
	"github.com/luocf/inferunity/pkg/ir"
	"github.com/luocf/inferunity/pkg/operator"
	"github.com/luocf/inferunity/pkg/tensor"
)

// ConstantFoldingPass evaluates any node whose inputs are all already
// constant (an initializer, or a value folded by an earlier run of
// this pass) and replaces the node with a plain constant value,
// removing the node from the graph entirely.
type ConstantFoldingPass struct{}

func (p *ConstantFoldingPass) Name() string { return "constant_folding" }

// Dependencies reports no prerequisites: constant folding only looks
// at each node's own inputs and runs first in the default pipeline.
func (p *ConstantFoldingPass) Dependencies() []string { return nil }

func isFoldableConstant(v ir.Value) bool { return v.Tensor() != nil }

func (p *ConstantFoldingPass) Run(g *ir.Graph, reg *operator.Registry) (bool, error) {
	order, err := g.TopologicalSort()
	if err != nil {
		return false, err
	}

	changed := false
	for _, node := range order {
		inputValues := node.Inputs()
		if len(inputValues) == 0 {
			continue
		}
		allConstant := true
		inputs := make([]*tensor.Tensor, len(inputValues))
		for i, v := range inputValues {
			if !isFoldableConstant(v) {
				allConstant = false
				break
			}
			inputs[i] = v.Tensor()
		}
		if !allConstant {
			continue
		}

		op, err := reg.New(node.OpType())
		if err != nil {
			continue // unregistered op-type: nothing to fold with
		}
		op.SetAttributes(node.Attrs())
		if err := op.ValidateInputs(inputs); err != nil {
			continue
		}
		shapes, err := op.InferOutputShape(inputs)
		if err != nil {
			continue
		}

		outputValues := node.Outputs()
		if len(shapes) != len(outputValues) {
			continue
		}
		outputs := make([]*tensor.Tensor, len(shapes))
		ok := true
		for i, s := range shapes {
			t, err := tensor.New(s, inputs[0].DType())
			if err != nil {
				ok = false
				break
			}
			outputs[i] = t
		}
		if !ok {
			continue
		}
		if err := op.Execute(inputs, outputs, &operator.ExecutionContext{Device: "cpu"}); err != nil {
			continue
		}

		for i, v := range outputValues {
			v.SetTensor(outputs[i])
			v.MarkConstant()
		}
		g.RemoveNode(node)
		changed = true
	}
	return changed, nil
}
