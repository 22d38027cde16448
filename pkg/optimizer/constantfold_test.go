package optimizer

import (
	"testing"

	"github.com/luocf/inferunity/pkg/ir"
	"github.com/luocf/inferunity/pkg/operator"
	"github.com/luocf/inferunity/pkg/tensor"
)

func constTensor(t *testing.T, dims []int64, values []float32) *tensor.Tensor {
	t.Helper()
	ts, err := tensor.New(tensor.NewShape(dims...), tensor.Float32)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := ts.SetFloat32s(values); err != nil {
		t.Fatalf("SetFloat32s: %v", err)
	}
	return ts
}

func TestConstantFoldingEvaluatesPureConstantAddNode(t *testing.T) {
	g := ir.New()

	a := g.AddValue("a")
	a.SetTensor(constTensor(t, []int64{2}, []float32{1, 2}))
	a.MarkConstant()

	b := g.AddValue("b")
	b.SetTensor(constTensor(t, []int64{2}, []float32{10, 20}))
	b.MarkConstant()

	add := g.AddNode("Add", "add0")
	g.Connect(add, a)
	g.Connect(add, b)
	y := g.AddValue("y")
	g.Produce(add, y)
	g.AddOutput(y)

	pass := &ConstantFoldingPass{}
	changed, err := pass.Run(g, operator.Default())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !changed {
		t.Fatalf("expected constant folding to fire")
	}
	if g.NodeCount() != 0 {
		t.Fatalf("expected the Add node to be removed, got %d nodes", g.NodeCount())
	}

	out, _ := g.ValueByName("y")
	if out.Tensor() == nil {
		t.Fatalf("expected folded output to carry a concrete tensor")
	}
	got := out.Tensor().Float32s()
	want := []float32{11, 22}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("index %d: got %v, want %v", i, got[i], want[i])
		}
	}
}

func TestConstantFoldingSkipsNodeWithNonConstantInput(t *testing.T) {
	g := ir.New()

	x := g.AddValue("x")
	x.SetShape(tensor.NewShape(2))
	x.SetDType(tensor.Float32)
	g.AddInput(x)

	b := g.AddValue("b")
	b.SetTensor(constTensor(t, []int64{2}, []float32{10, 20}))
	b.MarkConstant()

	add := g.AddNode("Add", "add0")
	g.Connect(add, x)
	g.Connect(add, b)
	y := g.AddValue("y")
	g.Produce(add, y)
	g.AddOutput(y)

	pass := &ConstantFoldingPass{}
	changed, err := pass.Run(g, operator.Default())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if changed {
		t.Fatalf("expected no folding when an input is non-constant")
	}
	if g.NodeCount() != 1 {
		t.Fatalf("expected the Add node to survive, got %d nodes", g.NodeCount())
	}
}
