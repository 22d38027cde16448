package optimizer

import (
	"testing"

	"github.com/luocf/inferunity/pkg/ir"
	"github.com/luocf/inferunity/pkg/operator"
	"github.com/luocf/inferunity/pkg/tensor"
)

func buildConvReLUGraph(t *testing.T) (*ir.Graph, ir.Value) {
	t.Helper()
	g := ir.New()
	x := g.AddValue("x")
	x.SetShape(tensor.NewShape(1, 1, 3, 3))
	x.SetDType(tensor.Float32)
	g.AddInput(x)

	w := g.AddValue("w")
	w.SetTensor(constTensor(t, []int64{1, 1, 1, 1}, []float32{1}))
	w.MarkConstant()

	conv := g.AddNode("Conv", "conv0")
	g.Connect(conv, x)
	g.Connect(conv, w)
	convOut := g.AddValue("conv_out")
	g.Produce(conv, convOut)

	relu := g.AddNode("Relu", "relu0")
	g.Connect(relu, convOut)
	out := g.AddValue("y")
	g.Produce(relu, out)
	g.AddOutput(out)

	return g, out
}

func TestOperatorFusionFoldsConvReLUChain(t *testing.T) {
	g, out := buildConvReLUGraph(t)

	pass := &OperatorFusionPass{}
	changed, err := pass.Run(g, operator.Default())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !changed {
		t.Fatalf("expected fusion to fire")
	}
	if g.NodeCount() != 1 {
		t.Fatalf("expected exactly one fused node, got %d", g.NodeCount())
	}
	nodes := g.Nodes()
	if nodes[0].OpType() != "FusedConvReLU" {
		t.Fatalf("expected FusedConvReLU, got %s", nodes[0].OpType())
	}
	prod, ok := out.Producer()
	if !ok || prod.OpType() != "FusedConvReLU" {
		t.Fatalf("expected graph output to be produced by the fused node")
	}
}

func TestOperatorFusionFoldsMatMulAddChain(t *testing.T) {
	g := ir.New()
	a := g.AddValue("a")
	a.SetShape(tensor.NewShape(2, 3))
	a.SetDType(tensor.Float32)
	g.AddInput(a)

	b := g.AddValue("b")
	b.SetTensor(constTensor(t, []int64{3, 4}, make([]float32, 12)))
	b.MarkConstant()

	bias := g.AddValue("bias")
	bias.SetTensor(constTensor(t, []int64{4}, []float32{0.1, 0.2, 0.3, 0.4}))
	bias.MarkConstant()

	mm := g.AddNode("MatMul", "mm0")
	g.Connect(mm, a)
	g.Connect(mm, b)
	mmOut := g.AddValue("mm_out")
	g.Produce(mm, mmOut)

	add := g.AddNode("Add", "add0")
	g.Connect(add, mmOut)
	g.Connect(add, bias)
	y := g.AddValue("y")
	g.Produce(add, y)
	g.AddOutput(y)

	pass := &OperatorFusionPass{}
	changed, err := pass.Run(g, operator.Default())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !changed {
		t.Fatalf("expected fusion to fire")
	}
	nodes := g.Nodes()
	if len(nodes) != 1 || nodes[0].OpType() != "FusedMatMulAdd" {
		t.Fatalf("expected a single FusedMatMulAdd node, got %v", nodes)
	}
	if len(nodes[0].Inputs()) != 3 {
		t.Fatalf("expected 3 combined inputs, got %d", len(nodes[0].Inputs()))
	}
}
