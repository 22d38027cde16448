// Package optimizer implements the graph-rewrite passes that run
// between model load and execution: constant folding, dead code
// elimination, operator fusion, identity subgraph replacement, and
// memory layout optimization.
package optimizer

import (
	"fmt"

	"github.com/luocf/inferunity/pkg/ir"
	"github.com/luocf/inferunity/pkg/operator"
)

// Pass rewrites a Graph in place, reporting whether it changed
// anything. A pass must leave the graph in a structurally valid state
// (producer/consumer consistency intact) whether or not it changed it.
type Pass interface {
	Name() string
	// Dependencies names the passes (by Name()) that must run before
	// this one. Manager.Run orders the pipeline with a topological
	// sort over these dependencies, breaking ties by declaration order
	// (§4.3).
	Dependencies() []string
	Run(g *ir.Graph, reg *operator.Registry) (changed bool, err error)
}

// Level selects how aggressively the Manager's default pipeline
// rewrites a graph, mirroring the session option of the same name.
type Level int

const (
	// LevelNone runs no passes at all.
	LevelNone Level = iota
	// LevelBasic runs constant folding and dead code elimination only.
	LevelBasic
	// LevelExtended additionally runs operator fusion and identity
	// subgraph replacement.
	LevelExtended
	// LevelAll additionally runs memory layout optimization.
	LevelAll
)

// Manager runs an ordered list of passes, iterating passes that
// declare a repeat budget until they report no further change or the
// budget is exhausted.
type Manager struct {
	passes []scheduledPass
}

type scheduledPass struct {
	pass     Pass
	maxIters int
}

// NewManager returns an empty Manager; use AddPass to build a pipeline,
// or Default to get the standard one.
func NewManager() *Manager {
	return &Manager{}
}

// AddPass appends pass to the pipeline, run at most maxIters times
// (until it reports no change, whichever comes first). maxIters of 1
// is the common case for passes with no interesting fixpoint.
func (m *Manager) AddPass(pass Pass, maxIters int) {
	if maxIters < 1 {
		maxIters = 1
	}
	m.passes = append(m.passes, scheduledPass{pass: pass, maxIters: maxIters})
}

// Default builds the standard optimization pipeline for the given
// level. Fusion and identity simplification each get their own
// iteration budget (10 and 5 respectively) since a single pass over
// the node list may expose new fusion/simplification opportunities
// that only a subsequent pass would see.
func Default(level Level) *Manager {
	m := NewManager()
	if level == LevelNone {
		return m
	}
	m.AddPass(&ConstantFoldingPass{}, 1)
	m.AddPass(&DeadCodeEliminationPass{deps: []string{"constant_folding"}}, 1)
	if level >= LevelExtended {
		m.AddPass(&OperatorFusionPass{}, 10)
		m.AddPass(&IdentitySimplificationPass{}, 5)
		m.AddPass(&DeadCodeEliminationPass{deps: []string{"identity_simplification"}}, 1)
	}
	if level >= LevelAll {
		m.AddPass(&MemoryLayoutPass{}, 1)
	}
	return m
}

// Run executes every scheduled pass against g in dependency order,
// returning the names of passes that changed the graph (in run order,
// with repeats).
func (m *Manager) Run(g *ir.Graph, reg *operator.Registry) ([]string, error) {
	ordered, err := scheduleOrder(m.passes)
	if err != nil {
		return nil, err
	}

	var applied []string
	for _, sp := range ordered {
		for i := 0; i < sp.maxIters; i++ {
			changed, err := sp.pass.Run(g, reg)
			if err != nil {
				return applied, fmt.Errorf("pass %s: %w", sp.pass.Name(), err)
			}
			if !changed {
				break
			}
			applied = append(applied, sp.pass.Name())
		}
	}
	return applied, nil
}

// scheduleOrder topologically sorts passes over their Dependencies(),
// breaking ties by declaration order (§4.3: "independent passes run in
// declaration order"). A dependency name is considered satisfied as
// soon as ANY already-placed pass reports that Name() — this lets the
// same pass type be scheduled more than once with different
// instance-level Dependencies() (as the default pipeline does with
// DeadCodeEliminationPass) without a later same-named instance being
// mistaken for an unmet prerequisite of an earlier one.
func scheduleOrder(passes []scheduledPass) ([]scheduledPass, error) {
	remaining := append([]scheduledPass(nil), passes...)
	satisfied := make(map[string]bool, len(remaining))
	ordered := make([]scheduledPass, 0, len(remaining))

	for len(remaining) > 0 {
		progressed := false
		for i, sp := range remaining {
			ready := true
			for _, dep := range sp.pass.Dependencies() {
				if !satisfied[dep] {
					ready = false
					break
				}
			}
			if !ready {
				continue
			}

			ordered = append(ordered, sp)
			satisfied[sp.pass.Name()] = true
			remaining = append(remaining[:i:i], remaining[i+1:]...)
			progressed = true
			break
		}
		if !progressed {
			names := make([]string, len(remaining))
			for i, sp := range remaining {
				names[i] = sp.pass.Name()
			}
			return nil, fmt.Errorf("optimizer: unsatisfiable pass dependencies among %v", names)
		}
	}
	return ordered, nil
}
