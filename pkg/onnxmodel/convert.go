package onnxmodel

import (
	"github.com/luocf/inferunity/pkg/ir"
	"github.com/luocf/inferunity/pkg/tensor"

	ierrors "github.com/luocf/inferunity/pkg/errors"
)

// ToGraph converts a SimpleONNXModel into a Graph IR following the
// conversion algorithm of §6.1:
//
//  1. each initializer becomes a constant Value carrying a Tensor built
//     from its raw bytes;
//  2. each declared input not already created as an initializer becomes
//     a graph input Value;
//  3. each node becomes a Node wired to Values resolved by name,
//     creating a placeholder Value for any input name not yet seen
//     (an edge produced later in node order, or by an output never
//     seen before — ONNX graphs are not required to list nodes in
//     producer-before-consumer order);
//  4. each declared output name is resolved to its Value and added to
//     the graph's declared outputs;
//  5. the assembled graph is validated before being returned.
func ToGraph(model *SimpleONNXModel) (*ir.Graph, error) {
	if model == nil {
		return nil, ierrors.New(ierrors.InvalidArgument, "nil model")
	}

	g := ir.New()
	seen := make(map[string]ir.Value, len(model.Initializers)+len(model.InputInfos))

	for _, init := range model.Initializers {
		if init.Name == "" {
			return nil, ierrors.New(ierrors.InvalidModel, "initializer has no name")
		}
		dt := tensor.FromONNX(init.DataType)
		shape := tensor.NewShape(init.Dims...)
		v := g.AddValue(init.Name)
		v.SetTensor(tensor.NewFromBytes(shape, dt, init.RawData))
		v.MarkConstant()
		seen[init.Name] = v
	}

	for _, in := range model.InputInfos {
		if in.Name == "" {
			return nil, ierrors.New(ierrors.InvalidModel, "declared input has no name")
		}
		if _, ok := seen[in.Name]; ok {
			// Declared both as an input and an initializer (a default
			// value): the initializer already created the Value;
			// honor the declared input only if it wasn't already a
			// constant.
			continue
		}
		v := g.AddValue(in.Name)
		v.SetShape(tensor.NewShape(in.Dims...))
		v.SetDType(tensor.FromONNX(in.DataType))
		g.AddInput(v)
		seen[in.Name] = v
	}

	valueFor := func(name string) ir.Value {
		if v, ok := seen[name]; ok {
			return v
		}
		v := g.AddValue(name)
		seen[name] = v
		return v
	}

	for _, nodeInfo := range model.Nodes {
		if nodeInfo.OpType == "" {
			return nil, ierrors.New(ierrors.InvalidModel, "node %q has no op_type", nodeInfo.Name)
		}
		n := g.AddNode(nodeInfo.OpType, nodeInfo.Name)
		for _, inName := range nodeInfo.Inputs {
			g.Connect(n, valueFor(inName))
		}
		for _, outName := range nodeInfo.Outputs {
			g.Produce(n, valueFor(outName))
		}
		n.SetAttrs(convertAttributes(nodeInfo.Attributes))
	}

	for _, outName := range model.OutputNames {
		v, ok := seen[outName]
		if !ok {
			return nil, ierrors.New(ierrors.InvalidModel, "declared output %q is never produced", outName)
		}
		g.AddOutput(v)
	}

	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

func convertAttributes(attrs []AttributeValue) ir.AttributeBag {
	bag := make(ir.AttributeBag, len(attrs))
	for _, a := range attrs {
		bag[a.Name] = convertAttribute(a)
	}
	return bag
}

func convertAttribute(a AttributeValue) ir.Attribute {
	switch a.Kind {
	case AttrInt:
		return ir.Attribute{Kind: ir.AttrInt, Int: a.Int}
	case AttrFloat:
		return ir.Attribute{Kind: ir.AttrFloat, Float: a.Float}
	case AttrString:
		return ir.Attribute{Kind: ir.AttrString, Str: a.Str}
	case AttrInts:
		return ir.Attribute{Kind: ir.AttrInts, Ints: append([]int64(nil), a.Ints...)}
	case AttrFloats:
		return ir.Attribute{Kind: ir.AttrFloats, Floats: append([]float64(nil), a.Floats...)}
	case AttrStrings:
		return ir.Attribute{Kind: ir.AttrStrings, Strings: append([]string(nil), a.Strings...)}
	default:
		return ir.Attribute{}
	}
}
