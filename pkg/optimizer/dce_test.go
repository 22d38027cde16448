package optimizer

import (
	"testing"

	"github.com/luocf/inferunity/pkg/ir"
	"github.com/luocf/inferunity/pkg/operator"
	"github.com/luocf/inferunity/pkg/tensor"
)

func TestDeadCodeEliminationRemovesUnusedBranch(t *testing.T) {
	g := ir.New()
	x := g.AddValue("x")
	x.SetShape(tensor.NewShape(3))
	x.SetDType(tensor.Float32)
	g.AddInput(x)

	live := g.AddNode("Relu", "live")
	g.Connect(live, x)
	liveOut := g.AddValue("live_out")
	g.Produce(live, liveOut)
	g.AddOutput(liveOut)

	dead := g.AddNode("Relu", "dead")
	g.Connect(dead, x)
	deadOut := g.AddValue("dead_out")
	g.Produce(dead, deadOut)
	// deadOut has no consumer and is not a declared output.

	pass := &DeadCodeEliminationPass{}
	changed, err := pass.Run(g, operator.Default())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !changed {
		t.Fatalf("expected DCE to remove the dead branch")
	}
	if g.NodeCount() != 1 {
		t.Fatalf("expected exactly 1 surviving node, got %d", g.NodeCount())
	}
	if n, ok := g.Node(live.ID()); !ok || n.Name() != "live" {
		t.Fatalf("expected the live node to survive")
	}
}

func TestDeadCodeEliminationKeepsChainToGraphOutput(t *testing.T) {
	g := ir.New()
	x := g.AddValue("x")
	x.SetShape(tensor.NewShape(3))
	x.SetDType(tensor.Float32)
	g.AddInput(x)

	n1 := g.AddNode("Relu", "n1")
	g.Connect(n1, x)
	mid := g.AddValue("mid")
	g.Produce(n1, mid)

	n2 := g.AddNode("Relu", "n2")
	g.Connect(n2, mid)
	out := g.AddValue("out")
	g.Produce(n2, out)
	g.AddOutput(out)

	pass := &DeadCodeEliminationPass{}
	changed, err := pass.Run(g, operator.Default())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if changed {
		t.Fatalf("expected no removal: both nodes feed the graph output")
	}
	if g.NodeCount() != 2 {
		t.Fatalf("expected both nodes to survive, got %d", g.NodeCount())
	}
}
