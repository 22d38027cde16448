package ir

import "github.com/luocf/inferunity/pkg/tensor"

// Value is a lightweight view over a named edge in a Graph, carrying a
// Tensor (for constants/initializers and, during execution, normal
// intermediates) or just a shape/dtype slot (§3.1).
type Value struct {
	g  *Graph
	id ValueID
}

// ID returns the value's unique identifier within its Graph.
func (v Value) ID() ValueID { return v.id }

// Name returns the value's (possibly empty) declared name.
func (v Value) Name() string { return v.g.values[v.id].name }

// Producer returns the Node that produces this value, or
// (Node{}, false) if it has none (graph input or initializer).
func (v Value) Producer() (Node, bool) {
	p := v.g.values[v.id].producer
	if p == NoNode {
		return Node{}, false
	}
	return v.g.Node(p)
}

// HasProducer reports whether this value has a producer Node.
func (v Value) HasProducer() bool { return v.g.values[v.id].producer != NoNode }

// Consumers returns every Node that lists this value as an input.
func (v Value) Consumers() []Node {
	ids := v.g.values[v.id].consumers
	out := make([]Node, 0, len(ids))
	for _, id := range ids {
		if n, ok := v.g.Node(id); ok {
			out = append(out, n)
		}
	}
	return out
}

// Shape returns the value's shape slot.
func (v Value) Shape() tensor.Shape { return v.g.values[v.id].shape }

// SetShape sets the value's shape slot (used during shape inference).
func (v Value) SetShape(s tensor.Shape) { v.g.values[v.id].shape = s }

// DType returns the value's element type slot.
func (v Value) DType() tensor.DType { return v.g.values[v.id].dtype }

// SetDType sets the value's element type slot.
func (v Value) SetDType(d tensor.DType) { v.g.values[v.id].dtype = d }

// Tensor returns the value's attached Tensor, or nil if none is
// attached yet.
func (v Value) Tensor() *tensor.Tensor { return v.g.values[v.id].tensor }

// SetTensor attaches a Tensor to the value, and synchronizes the
// shape/dtype slots from it.
func (v Value) SetTensor(t *tensor.Tensor) {
	slot := &v.g.values[v.id]
	slot.tensor = t
	if t != nil {
		slot.shape = t.Shape()
		slot.dtype = t.DType()
	}
}

// Layout returns the value's advisory layout tag, defaulting to NCHW
// for a value nothing has tagged yet (a bare Value zero-values to
// tensor.NCHW, matching the default every built-in kernel assumes).
func (v Value) Layout() tensor.Layout { return v.g.values[v.id].layout }

// SetLayout updates the value's advisory layout tag. The Memory Layout
// pass uses this to propagate a node's chosen operating layout onto
// its outputs so downstream consumers see it without needing a Tensor
// attached yet.
func (v Value) SetLayout(l tensor.Layout) { v.g.values[v.id].layout = l }

// IsConstant reports whether this value was marked constant (an
// initializer, or folded by the Constant Folding pass).
func (v Value) IsConstant() bool { return v.g.values[v.id].isConst }

// MarkConstant marks the value as holding a constant Tensor.
func (v Value) MarkConstant() { v.g.values[v.id].isConst = true }

// IsGraphInput reports whether v is one of the graph's declared inputs.
func (v Value) IsGraphInput() bool {
	for _, id := range v.g.declaredInputs {
		if id == v.id {
			return true
		}
	}
	return false
}

// IsGraphOutput reports whether v is one of the graph's declared outputs.
func (v Value) IsGraphOutput() bool {
	for _, id := range v.g.declaredOutputs {
		if id == v.id {
			return true
		}
	}
	return false
}
