package ir

// Clone deep-copies the graph structure (Nodes, Values, attributes,
// assigned providers, edges, declared input/output lists). Tensor
// payloads are NOT duplicated — clones are structural templates, the
// explicit design choice codified in spec §9/Design Notes. A clone
// must be re-populated with Tensors (e.g. by re-running the load flow's
// initializer step, or by sharing the source's initializer Tensors)
// before it is executable.
func (g *Graph) Clone() *Graph {
	cp := &Graph{
		nodes:           make([]nodeSlot, len(g.nodes)),
		values:          make([]valueSlot, len(g.values)),
		declaredInputs:  append([]ValueID(nil), g.declaredInputs...),
		declaredOutputs: append([]ValueID(nil), g.declaredOutputs...),
		nameToValue:     make(map[string]ValueID, len(g.nameToValue)),
	}
	for i, n := range g.nodes {
		cp.nodes[i] = nodeSlot{
			id:       n.id,
			opType:   n.opType,
			name:     n.name,
			inputs:   append([]ValueID(nil), n.inputs...),
			outputs:  append([]ValueID(nil), n.outputs...),
			attrs:    n.attrs.Clone(),
			provider: n.provider,
			removed:  n.removed,
		}
	}
	for i, v := range g.values {
		cp.values[i] = valueSlot{
			id:        v.id,
			name:      v.name,
			tensor:    nil, // structural template: no tensor payload duplication
			shape:     v.shape,
			dtype:     v.dtype,
			layout:    v.layout,
			isConst:   v.isConst,
			producer:  v.producer,
			consumers: append([]NodeID(nil), v.consumers...),
			removed:   v.removed,
		}
	}
	for k, v := range g.nameToValue {
		cp.nameToValue[k] = v
	}
	return cp
}

// CloneSharingTensors is like Clone but additionally shares (by
// reference — not duplicating bytes) every source initializer Tensor
// into the clone, so the result remains directly executable. This is
// the "recommended" alternative to the bare structural-template clone
// that spec §9 / Design Notes calls out for avoiding duplication of
// large weight buffers across clones.
func (g *Graph) CloneSharingTensors() *Graph {
	cp := g.Clone()
	for i, v := range g.values {
		if v.tensor != nil && !v.HasProducerFlag() {
			cp.values[i].tensor = v.tensor
		}
	}
	return cp
}

// HasProducerFlag reports whether the slot itself (not a view) records
// a producer. Exported-adjacent helper kept unexported-by-convention
// via the valueSlot receiver; used only by CloneSharingTensors.
func (v valueSlot) HasProducerFlag() bool { return v.producer != NoNode }
