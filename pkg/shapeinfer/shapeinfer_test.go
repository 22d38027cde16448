package shapeinfer

import (
	"testing"

	"github.com/luocf/inferunity/pkg/ir"
	"github.com/luocf/inferunity/pkg/operator"
	"github.com/luocf/inferunity/pkg/tensor"
)

func buildReluGraph(t *testing.T) *ir.Graph {
	t.Helper()
	g := ir.New()
	x := g.AddValue("x")
	x.SetShape(tensor.NewShape(1, 3))
	x.SetDType(tensor.Float32)
	g.AddInput(x)

	relu := g.AddNode("Relu", "relu0")
	g.Connect(relu, x)
	y := g.AddValue("y")
	g.Produce(relu, y)
	g.AddOutput(y)

	return g
}

func TestInferPropagatesShapeThroughRelu(t *testing.T) {
	g := buildReluGraph(t)
	reg := operator.Default()

	result, err := Infer(g, reg)
	if err != nil {
		t.Fatalf("Infer: %v", err)
	}
	if len(result.Warnings) != 0 {
		t.Fatalf("expected no warnings, got %v", result.Warnings)
	}

	y, ok := g.ValueByName("y")
	if !ok {
		t.Fatalf("value y not found")
	}
	if !y.Shape().Equal(tensor.NewShape(1, 3)) {
		t.Fatalf("expected shape [1,3], got %s", y.Shape())
	}
}

func TestInferWarnsOnUnregisteredOpType(t *testing.T) {
	g := ir.New()
	x := g.AddValue("x")
	x.SetShape(tensor.NewShape(1, 3))
	x.SetDType(tensor.Float32)
	g.AddInput(x)

	mystery := g.AddNode("SomeFutureOp", "n0")
	g.Connect(mystery, x)
	y := g.AddValue("y")
	g.Produce(mystery, y)
	g.AddOutput(y)

	result, err := Infer(g, operator.Default())
	if err != nil {
		t.Fatalf("Infer: %v", err)
	}
	if len(result.Warnings) != 1 {
		t.Fatalf("expected exactly one warning, got %v", result.Warnings)
	}
}
