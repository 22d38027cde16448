package onnxmodel

import (
	"testing"

	"github.com/luocf/inferunity/pkg/tensor"
)

func TestToGraphBuildsSimpleGraph(t *testing.T) {
	model := &SimpleONNXModel{
		InputInfos: []InputInfo{
			{Name: "x", DataType: 1, Dims: []int64{2, 3}},
		},
		Nodes: []NodeInfo{
			{Name: "relu1", OpType: "Relu", Inputs: []string{"x"}, Outputs: []string{"y"}},
		},
		OutputNames: []string{"y"},
	}

	g, err := ToGraph(model)
	if err != nil {
		t.Fatalf("ToGraph: %v", err)
	}
	if g.NodeCount() != 1 {
		t.Fatalf("expected 1 node, got %d", g.NodeCount())
	}
	inputs := g.Inputs()
	if len(inputs) != 1 || inputs[0].Name() != "x" {
		t.Fatalf("expected declared input x, got %+v", inputs)
	}
	outputs := g.Outputs()
	if len(outputs) != 1 || outputs[0].Name() != "y" {
		t.Fatalf("expected declared output y, got %+v", outputs)
	}
}

func TestToGraphWiresInitializerAsConstant(t *testing.T) {
	raw := make([]byte, 4*6)
	model := &SimpleONNXModel{
		Initializers: []Initializer{
			{Name: "w", DataType: 1, Dims: []int64{2, 3}, RawData: raw},
		},
		Nodes: []NodeInfo{
			{OpType: "Relu", Inputs: []string{"w"}, Outputs: []string{"y"}},
		},
		OutputNames: []string{"y"},
	}

	g, err := ToGraph(model)
	if err != nil {
		t.Fatalf("ToGraph: %v", err)
	}
	w, ok := g.ValueByName("w")
	if !ok {
		t.Fatalf("expected value w to exist")
	}
	if !w.IsConstant() {
		t.Fatalf("expected w to be marked constant")
	}
	if w.Tensor() == nil || w.Tensor().DType() != tensor.Float32 {
		t.Fatalf("expected w to carry a Float32 tensor, got %+v", w.Tensor())
	}
}

func TestToGraphRejectsUndeclaredOutput(t *testing.T) {
	model := &SimpleONNXModel{
		InputInfos:  []InputInfo{{Name: "x", DataType: 1, Dims: []int64{1}}},
		OutputNames: []string{"never_produced"},
	}
	if _, err := ToGraph(model); err == nil {
		t.Fatalf("expected error for output that is never produced")
	}
}

func TestToGraphRejectsDanglingInput(t *testing.T) {
	// A node input that no node produces, that is not a declared
	// input and that has no initializer fails Validate's connectivity
	// check.
	model := &SimpleONNXModel{
		InputInfos: []InputInfo{{Name: "x", DataType: 1, Dims: []int64{1}}},
		Nodes: []NodeInfo{
			{OpType: "Relu", Inputs: []string{"dangling"}, Outputs: []string{"y"}},
		},
		OutputNames: []string{"y"},
	}
	if _, err := ToGraph(model); err == nil {
		t.Fatalf("expected connectivity error for dangling input")
	}
}
