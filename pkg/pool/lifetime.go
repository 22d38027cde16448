package pool

import "github.com/luocf/inferunity/pkg/ir"

// Lifetime is the [birth, death] interval, expressed as positions in a
// topological execution order, during which a Value's backing storage
// must stay allocated.
type Lifetime struct {
	Value ir.ValueID
	// Birth is the index in order of the node that produces Value, or
	// -1 for a graph input (live from before execution starts).
	Birth int
	// Death is the index of the last node in order that consumes
	// Value, or len(order) if Value is a declared graph output (it
	// must outlive the run rather than die at its last consumer).
	Death int
}

// AnalyzeLifetimes computes a Lifetime for every Value touched by
// order, so the engine can free a value's pool block as soon as its
// last consumer has run.
func AnalyzeLifetimes(g *ir.Graph, order []ir.Node) []Lifetime {
	outputs := make(map[ir.ValueID]bool)
	for _, v := range g.Outputs() {
		outputs[v.ID()] = true
	}

	births := make(map[ir.ValueID]int)
	deaths := make(map[ir.ValueID]int)
	seen := make(map[ir.ValueID]bool)

	note := func(id ir.ValueID) {
		if !seen[id] {
			seen[id] = true
			births[id] = -1
			deaths[id] = -1
		}
	}

	for _, v := range g.Inputs() {
		note(v.ID())
	}

	for i, n := range order {
		for _, out := range n.OutputIDs() {
			note(out)
			births[out] = i
		}
		for _, in := range n.InputIDs() {
			note(in)
			if i > deaths[in] {
				deaths[in] = i
			}
		}
	}

	lifetimes := make([]Lifetime, 0, len(seen))
	for id := range seen {
		death := deaths[id]
		if outputs[id] || death < births[id] {
			death = len(order)
		}
		lifetimes = append(lifetimes, Lifetime{Value: id, Birth: births[id], Death: death})
	}
	return lifetimes
}
