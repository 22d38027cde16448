package ir

// Node is a lightweight view over a single op invocation owned by a
// Graph (§3.1). It is a thin (graph, id) handle — copying a Node is
// cheap and always refers back to the same underlying slot.
type Node struct {
	g  *Graph
	id NodeID
}

// ID returns the node's unique identifier within its Graph.
func (n Node) ID() NodeID { return n.id }

// OpType returns the op-type string (e.g. "Conv", "Relu").
func (n Node) OpType() string { return n.g.nodes[n.id].opType }

// Name returns the node's (possibly empty) display name.
func (n Node) Name() string { return n.g.nodes[n.id].name }

// Inputs returns the node's ordered input Values.
func (n Node) Inputs() []Value { return n.g.resolveList(n.g.nodes[n.id].inputs) }

// InputIDs returns the node's ordered input ValueIDs.
func (n Node) InputIDs() []ValueID {
	return append([]ValueID(nil), n.g.nodes[n.id].inputs...)
}

// Outputs returns the node's ordered output Values.
func (n Node) Outputs() []Value { return n.g.resolveList(n.g.nodes[n.id].outputs) }

// OutputIDs returns the node's ordered output ValueIDs.
func (n Node) OutputIDs() []ValueID {
	return append([]ValueID(nil), n.g.nodes[n.id].outputs...)
}

// Attrs returns the node's attribute bag.
func (n Node) Attrs() AttributeBag { return n.g.nodes[n.id].attrs }

// SetAttr sets a single attribute.
func (n Node) SetAttr(name string, a Attribute) { n.g.nodes[n.id].attrs[name] = a }

// SetAttrs replaces the node's entire attribute bag.
func (n Node) SetAttrs(attrs AttributeBag) { n.g.nodes[n.id].attrs = attrs }

// Provider returns the backend provider name assigned to this node at
// prepare time, or "" if unassigned (§4.5).
func (n Node) Provider() string { return n.g.nodes[n.id].provider }

// SetProvider records the provider assigned to this node.
func (n Node) SetProvider(name string) { n.g.nodes[n.id].provider = name }

// SetName updates the node's display name.
func (n Node) SetName(name string) { n.g.nodes[n.id].name = name }

// SetOpType updates the node's op-type (used by fusion to rewrite a
// matched subgraph's head node into the fused op in place).
func (n Node) SetOpType(opType string) { n.g.nodes[n.id].opType = opType }
