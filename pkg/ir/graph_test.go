package ir

import (
	"testing"

	"github.com/luocf/inferunity/pkg/tensor"
)

func buildAddGraph(t *testing.T) *Graph {
	t.Helper()
	g := New()
	a := g.AddValue("a")
	b := g.AddValue("b")
	out := g.AddValue("out")
	n := g.AddNode("Add", "add1")
	g.Connect(n, a)
	g.Connect(n, b)
	g.Produce(n, out)
	g.AddInput(a)
	g.AddInput(b)
	g.AddOutput(out)
	return g
}

func TestTopologicalSortOrdersByDependency(t *testing.T) {
	g := buildAddGraph(t)
	order, err := g.TopologicalSort()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(order) != 1 {
		t.Fatalf("expected 1 node, got %d", len(order))
	}
	if order[0].OpType() != "Add" {
		t.Fatalf("expected Add, got %s", order[0].OpType())
	}
}

func TestTopologicalSortDetectsCycle(t *testing.T) {
	g := New()
	v1 := g.AddValue("v1")
	v2 := g.AddValue("v2")
	n1 := g.AddNode("A", "n1")
	n2 := g.AddNode("B", "n2")
	g.Connect(n1, v2)
	g.Produce(n1, v1)
	g.Connect(n2, v1)
	g.Produce(n2, v2)

	if _, err := g.TopologicalSort(); err == nil {
		t.Fatal("expected cycle error, got nil")
	}
}

func TestValidateRequiresNonEmptyBoundaries(t *testing.T) {
	g := New()
	if err := g.Validate(); err == nil {
		t.Fatal("expected validation error for empty graph")
	}
}

func TestValidateDetectsDisconnectedInput(t *testing.T) {
	g := New()
	orphanValue := g.AddValue("orphan")
	out := g.AddValue("out")
	n := g.AddNode("Relu", "relu1")
	g.Connect(n, orphanValue)
	g.Produce(n, out)
	g.AddInput(out) // not orphanValue — orphanValue has no producer and isn't a graph input
	g.AddOutput(out)

	if err := g.Validate(); err == nil {
		t.Fatal("expected connectivity violation error")
	}
}

func TestRemoveNodeDisconnectsConsumers(t *testing.T) {
	g := buildAddGraph(t)
	n := g.Nodes()[0]
	a := g.Values()[0]

	g.RemoveNode(n)

	for _, c := range a.Consumers() {
		t.Fatalf("expected no consumers after removal, found %v", c.ID())
	}
	if _, ok := g.Node(n.ID()); ok {
		t.Fatal("expected node to be removed")
	}
}

func TestCloneDoesNotDuplicateTensors(t *testing.T) {
	g := New()
	v := g.AddValue("w")
	ts, err := tensor.New(tensor.NewShape(2), tensor.Float32)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v.SetTensor(ts)
	out := g.AddValue("out")
	n := g.AddNode("Relu", "relu")
	g.Connect(n, v)
	g.Produce(n, out)
	g.AddInput(v)
	g.AddOutput(out)

	clone := g.Clone()
	cv, _ := clone.Value(v.ID())
	if cv.Tensor() != nil {
		t.Fatal("expected clone to not carry tensor payload (structural template)")
	}
	if cv.Shape().NumElements() != 2 {
		t.Fatalf("expected clone to retain shape metadata, got %s", cv.Shape())
	}
}

func TestSerializeDeserializeRoundTripsValidGraph(t *testing.T) {
	g := buildAddGraph(t)
	text := g.Serialize()

	g2, err := Deserialize(text)
	if err != nil {
		t.Fatalf("unexpected deserialize error: %v", err)
	}
	if err := g2.Validate(); err != nil {
		t.Fatalf("round-tripped graph failed validation: %v", err)
	}
	if g2.NodeCount() != g.NodeCount() {
		t.Fatalf("node count mismatch: got %d want %d", g2.NodeCount(), g.NodeCount())
	}
}

func TestProducerConsumerConsistency(t *testing.T) {
	g := buildAddGraph(t)
	for _, n := range g.Nodes() {
		for _, v := range n.Inputs() {
			found := false
			for _, c := range v.Consumers() {
				if c.ID() == n.ID() {
					found = true
				}
			}
			if !found {
				t.Fatalf("value %v does not list node %v as consumer", v.ID(), n.ID())
			}
		}
		for _, v := range n.Outputs() {
			prod, ok := v.Producer()
			if !ok || prod.ID() != n.ID() {
				t.Fatalf("value %v producer mismatch for node %v", v.ID(), n.ID())
			}
		}
	}
}
