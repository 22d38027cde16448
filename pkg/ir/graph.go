// Package ir implements the in-memory computation graph: nodes carry an
// op-type and attributes, values carry shape/dtype and ownership of an
// optional tensor payload. Nodes and Values live in owning slabs inside
// the Graph; edges between them are indices (NodeID/ValueID), not
// pointers (spec §9).
package ir

import (
	"fmt"

	"github.com/luocf/inferunity/pkg/tensor"
)

type nodeSlot struct {
	id       NodeID
	opType   string
	name     string
	inputs   []ValueID
	outputs  []ValueID
	attrs    AttributeBag
	provider string
	removed  bool
}

type valueSlot struct {
	id        ValueID
	name      string
	tensor    *tensor.Tensor
	shape     tensor.Shape
	dtype     tensor.DType
	layout    tensor.Layout
	isConst   bool
	producer  NodeID
	consumers []NodeID
	removed   bool
}

// Graph is a DAG over Nodes and Values (§3.1, §4.1). It owns every
// Node and Value it contains.
type Graph struct {
	nodes  []nodeSlot
	values []valueSlot

	declaredInputs  []ValueID
	declaredOutputs []ValueID

	nameToValue map[string]ValueID
}

// New returns an empty Graph.
func New() *Graph {
	return &Graph{nameToValue: make(map[string]ValueID)}
}

// AddNode assigns a fresh monotonic NodeID and returns a Node view.
func (g *Graph) AddNode(opType, name string) Node {
	id := NodeID(len(g.nodes))
	g.nodes = append(g.nodes, nodeSlot{
		id:     id,
		opType: opType,
		name:   name,
		attrs:  AttributeBag{},
	})
	return Node{g: g, id: id}
}

// AddValue assigns a fresh monotonic ValueID and returns a Value view.
func (g *Graph) AddValue(name string) Value {
	id := ValueID(len(g.values))
	g.values = append(g.values, valueSlot{id: id, name: name, producer: NoNode})
	if name != "" {
		g.nameToValue[name] = id
	}
	return Value{g: g, id: id}
}

// Node returns a view over the Node with the given id. ok is false if
// the id is out of range or the node has been removed.
func (g *Graph) Node(id NodeID) (Node, bool) {
	if id < 0 || int(id) >= len(g.nodes) || g.nodes[id].removed {
		return Node{}, false
	}
	return Node{g: g, id: id}, true
}

// Value returns a view over the Value with the given id.
func (g *Graph) Value(id ValueID) (Value, bool) {
	if id < 0 || int(id) >= len(g.values) || g.values[id].removed {
		return Value{}, false
	}
	return Value{g: g, id: id}, true
}

// ValueByName looks up a Value by its declared name.
func (g *Graph) ValueByName(name string) (Value, bool) {
	id, ok := g.nameToValue[name]
	if !ok {
		return Value{}, false
	}
	return g.Value(id)
}

// Nodes returns every live Node in the graph, in ID order (NOT a
// topological order — call TopologicalSort for that).
func (g *Graph) Nodes() []Node {
	out := make([]Node, 0, len(g.nodes))
	for i := range g.nodes {
		if !g.nodes[i].removed {
			out = append(out, Node{g: g, id: g.nodes[i].id})
		}
	}
	return out
}

// Values returns every live Value in the graph, in ID order.
func (g *Graph) Values() []Value {
	out := make([]Value, 0, len(g.values))
	for i := range g.values {
		if !g.values[i].removed {
			out = append(out, Value{g: g, id: g.values[i].id})
		}
	}
	return out
}

// Inputs returns the graph's declared input Values.
func (g *Graph) Inputs() []Value {
	return g.resolveList(g.declaredInputs)
}

// Outputs returns the graph's declared output Values.
func (g *Graph) Outputs() []Value {
	return g.resolveList(g.declaredOutputs)
}

func (g *Graph) resolveList(ids []ValueID) []Value {
	out := make([]Value, 0, len(ids))
	for _, id := range ids {
		if v, ok := g.Value(id); ok {
			out = append(out, v)
		}
	}
	return out
}

// AddInput declares v as a graph input.
func (g *Graph) AddInput(v Value) { g.declaredInputs = append(g.declaredInputs, v.id) }

// AddOutput declares v as a graph output.
func (g *Graph) AddOutput(v Value) { g.declaredOutputs = append(g.declaredOutputs, v.id) }

// Connect wires node n's i-th input to value v, updating the
// consumer-consistency back-reference (§3.3).
func (g *Graph) Connect(n Node, v Value) {
	g.nodes[n.id].inputs = append(g.nodes[n.id].inputs, v.id)
	g.values[v.id].consumers = append(g.values[v.id].consumers, n.id)
}

// Produce wires value v as an output of node n, setting v's producer.
func (g *Graph) Produce(n Node, v Value) {
	g.nodes[n.id].outputs = append(g.nodes[n.id].outputs, v.id)
	g.values[v.id].producer = n.id
}

// RewireInput redirects node n's input at index i from its current
// Value to newValue, updating both values' consumer back-references.
// Used by rewrite passes (e.g. memory layout) that need to redirect a
// single input occurrence without disturbing a value's other
// consumers, unlike ReplaceValue which rewires every consumer at once.
func (g *Graph) RewireInput(n Node, i int, newValue Value) {
	slot := &g.nodes[n.id]
	if i < 0 || i >= len(slot.inputs) {
		return
	}
	old := slot.inputs[i]
	if old == newValue.id {
		return
	}
	g.removeConsumer(old, n.id)
	slot.inputs[i] = newValue.id
	g.values[newValue.id].consumers = append(g.values[newValue.id].consumers, n.id)
}

// RemoveNode disconnects every input Value's consumer list from n and
// clears any output Value's producer field before dropping n (§4.1).
func (g *Graph) RemoveNode(n Node) {
	slot := &g.nodes[n.id]
	if slot.removed {
		return
	}
	for _, inID := range slot.inputs {
		g.removeConsumer(inID, n.id)
	}
	for _, outID := range slot.outputs {
		if int(outID) < len(g.values) {
			g.values[outID].producer = NoNode
		}
	}
	slot.removed = true
	slot.inputs = nil
	slot.outputs = nil
}

func (g *Graph) removeConsumer(valueID ValueID, nodeID NodeID) {
	if int(valueID) >= len(g.values) {
		return
	}
	cons := g.values[valueID].consumers
	for i, c := range cons {
		if c == nodeID {
			g.values[valueID].consumers = append(cons[:i], cons[i+1:]...)
			return
		}
	}
}

// RemoveValue removes v from producers/consumers and from the
// inputs/outputs lists if listed there (§4.1).
func (g *Graph) RemoveValue(v Value) {
	slot := &g.values[v.id]
	if slot.removed {
		return
	}
	if slot.producer != NoNode && int(slot.producer) < len(g.nodes) {
		prod := &g.nodes[slot.producer]
		for i, o := range prod.outputs {
			if o == v.id {
				prod.outputs = append(prod.outputs[:i], prod.outputs[i+1:]...)
				break
			}
		}
	}
	for _, c := range slot.consumers {
		if int(c) >= len(g.nodes) {
			continue
		}
		cn := &g.nodes[c]
		for i, in := range cn.inputs {
			if in == v.id {
				cn.inputs = append(cn.inputs[:i], cn.inputs[i+1:]...)
				break
			}
		}
	}
	g.declaredInputs = removeID(g.declaredInputs, v.id)
	g.declaredOutputs = removeID(g.declaredOutputs, v.id)
	slot.removed = true
	slot.consumers = nil
}

func removeID(ids []ValueID, target ValueID) []ValueID {
	out := ids[:0]
	for _, id := range ids {
		if id != target {
			out = append(out, id)
		}
	}
	return out
}

// ReplaceValue rewires every consumer of old to read from new instead,
// and promotes new into old's place among the graph's declared outputs
// if old was one. Used by rewrite passes (e.g. identity simplification)
// that remove a node but must keep its result reachable under the
// value its output consumers already refer to.
func (g *Graph) ReplaceValue(old, new Value) {
	slot := &g.values[old.id]
	for _, c := range append([]NodeID(nil), slot.consumers...) {
		if int(c) >= len(g.nodes) {
			continue
		}
		cn := &g.nodes[c]
		for i, in := range cn.inputs {
			if in == old.id {
				cn.inputs[i] = new.id
			}
		}
		g.values[new.id].consumers = append(g.values[new.id].consumers, c)
	}
	slot.consumers = nil
	for i, id := range g.declaredOutputs {
		if id == old.id {
			g.declaredOutputs[i] = new.id
		}
	}
}

// NodeCount returns the number of live nodes.
func (g *Graph) NodeCount() int {
	n := 0
	for i := range g.nodes {
		if !g.nodes[i].removed {
			n++
		}
	}
	return n
}

// String renders a short human summary, useful in error messages.
func (g *Graph) String() string {
	return fmt.Sprintf("Graph{nodes=%d, values=%d, inputs=%d, outputs=%d}",
		g.NodeCount(), len(g.Values()), len(g.declaredInputs), len(g.declaredOutputs))
}
