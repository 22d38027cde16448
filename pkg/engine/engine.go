// Package engine drives a validated, shape-inferred Graph to
// completion: for each node (in whatever order/concurrency the chosen
// Scheduler provides) it selects an ExecutionProvider, gathers input
// Tensors, infers output shapes, draws output storage from a
// pool.Pool sized by tensor-lifetime analysis, and calls the
// provider's ExecuteNode. Operator kernels and provider selection are
// external collaborators (§1); this package is the glue the spec
// calls the execution engine (§4.5).
package engine

import (
	"context"
	"fmt"
	"sync"

	ierrors "github.com/luocf/inferunity/pkg/errors"
	"github.com/luocf/inferunity/pkg/ir"
	"github.com/luocf/inferunity/pkg/logging"
	"github.com/luocf/inferunity/pkg/operator"
	"github.com/luocf/inferunity/pkg/pool"
	"github.com/luocf/inferunity/pkg/provider"
	"github.com/luocf/inferunity/pkg/scheduler"
	"github.com/luocf/inferunity/pkg/tensor"
)

// Engine ties a Scheduler, a provider.Registry and a pool.Pool
// together to execute a prepared Graph.
type Engine struct {
	Scheduler scheduler.Scheduler
	Providers *provider.Registry
	Pool      *pool.Pool
	Logger    *logging.Logger

	mu        sync.Mutex
	lifetimes map[ir.ValueID]pool.Lifetime
	blocks    map[ir.ValueID]*pool.Block
	order     []ir.Node
	nodeIndex map[ir.NodeID]int
}

// New returns an Engine. A nil logger falls back to a default one; a
// nil pool allocates an unbounded default-sized pool.
func New(sched scheduler.Scheduler, providers *provider.Registry, p *pool.Pool, logger *logging.Logger) *Engine {
	if p == nil {
		p = pool.New(0, 0)
	}
	if logger == nil {
		logger = logging.New(logging.DefaultConfig())
	}
	return &Engine{Scheduler: sched, Providers: providers, Pool: p, Logger: logger}
}

// AssignProviders records, on every node, the first registered
// provider supporting its op-type, so per-run selection is O(1)
// (§4.5 "Provider selection at load time"). Returns a NOT_FOUND
// diagnostic identifying the first node with no matching provider.
func (e *Engine) AssignProviders(g *ir.Graph) error {
	for _, n := range g.Nodes() {
		p, ok := e.Providers.SelectFor(n.OpType())
		if !ok {
			return ierrors.New(ierrors.NotFound, "no execution provider supports op-type %q", n.OpType()).WithNode(fmt.Sprintf("%d", n.ID()))
		}
		n.SetProvider(p.Name())
	}
	return nil
}

// Run executes every node of g via e.Scheduler, in accordance with
// §4.5's per-node procedure: select provider, gather inputs, infer
// shapes, allocate outputs from the pool, execute, and free any value
// whose lifetime has ended.
func (e *Engine) Run(ctx context.Context, g *ir.Graph) error {
	order, err := g.TopologicalSort()
	if err != nil {
		return ierrors.Wrap(ierrors.InvalidModel, err, "cannot run: graph is not acyclic")
	}

	e.mu.Lock()
	lifetimes := pool.AnalyzeLifetimes(g, order)
	e.lifetimes = make(map[ir.ValueID]pool.Lifetime, len(lifetimes))
	for _, lt := range lifetimes {
		e.lifetimes[lt.Value] = lt
	}
	e.blocks = make(map[ir.ValueID]*pool.Block)
	e.order = order
	e.nodeIndex = make(map[ir.NodeID]int, len(order))
	for i, n := range order {
		e.nodeIndex[n.ID()] = i
	}
	e.mu.Unlock()

	err = e.Scheduler.Run(ctx, g, e.execNode)
	e.Pool.RunDeferredRelease()
	return err
}

func (e *Engine) execNode(ctx context.Context, n ir.Node) error {
	nodeIDStr := fmt.Sprintf("%d", n.ID())

	pName := n.Provider()
	var prov provider.ExecutionProvider
	if pName != "" {
		for _, p := range e.Providers.Providers() {
			if p.Name() == pName {
				prov = p
				break
			}
		}
	}
	if prov == nil {
		var ok bool
		prov, ok = e.Providers.SelectFor(n.OpType())
		if !ok {
			return ierrors.New(ierrors.NotFound, "no execution provider supports op-type %q", n.OpType()).WithNode(nodeIDStr)
		}
	}

	inputValues := n.Inputs()
	inputs := make([]*tensor.Tensor, len(inputValues))
	for i, v := range inputValues {
		t := v.Tensor()
		if t == nil {
			return ierrors.New(ierrors.InvalidArgument, "input %q has no tensor attached at execution time", v.Name()).WithNode(nodeIDStr)
		}
		inputs[i] = t
	}

	reg := registryFor(prov)
	op, err := reg.New(n.OpType())
	if err != nil {
		return err
	}
	op.SetAttributes(n.Attrs())
	if err := op.ValidateInputs(inputs); err != nil {
		return ierrors.Wrap(ierrors.InvalidArgument, err, "input validation failed").WithNode(nodeIDStr)
	}
	shapes, err := op.InferOutputShape(inputs)
	if err != nil {
		return ierrors.Wrap(ierrors.InvalidArgument, err, "output shape inference failed").WithNode(nodeIDStr)
	}

	outputValues := n.Outputs()
	if len(shapes) != len(outputValues) {
		return ierrors.New(ierrors.InvalidModel, "operator %s returned %d shapes for %d declared outputs", n.OpType(), len(shapes), len(outputValues)).WithNode(nodeIDStr)
	}

	outputs := make([]*tensor.Tensor, len(outputValues))
	for i, v := range outputValues {
		dtype := v.DType()
		if dtype == tensor.Unknown && len(inputValues) > 0 {
			dtype = inputValues[0].DType()
		}
		t, err := e.allocate(v, shapes[i], dtype)
		if err != nil {
			return ierrors.Wrap(ierrors.OutOfMemory, err, "allocating output %q", v.Name()).WithNode(nodeIDStr)
		}
		v.SetTensor(t)
		outputs[i] = t
	}

	if err := prov.ExecuteNode(ctx, n, inputs, outputs); err != nil {
		return err
	}

	e.releaseDead(n)
	return nil
}

// allocate binds value v's backing storage for shape/dtype from the
// pool, unless v already owns a Tensor (e.g. an initializer being
// replayed through a second run).
func (e *Engine) allocate(v ir.Value, shape tensor.Shape, dtype tensor.DType) (*tensor.Tensor, error) {
	size := shape.NumElements()
	if size == tensor.Dynamic {
		return nil, fmt.Errorf("cannot allocate value %q with dynamic shape %s", v.Name(), shape)
	}
	byteSize := size * int64(dtype.Size())
	if byteSize == 0 {
		byteSize = 1
	}
	block, err := e.Pool.Allocate(byteSize, v.ID())
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	e.blocks[v.ID()] = block
	e.mu.Unlock()
	return e.Pool.Bind(block, shape, dtype), nil
}

// releaseDead frees pool blocks for every value whose death index is
// n's position in the run order (its last consumer has now run).
func (e *Engine) releaseDead(n ir.Node) {
	e.mu.Lock()
	defer e.mu.Unlock()
	idx, ok := e.nodeIndex[n.ID()]
	if !ok {
		return
	}
	dead := make(map[ir.ValueID]bool)
	for id, lt := range e.lifetimes {
		if lt.Death == idx {
			if _, ok := e.blocks[id]; ok {
				dead[id] = true
			}
		}
	}
	if len(dead) == 0 {
		return
	}
	e.Pool.ReleaseDead(dead)
	for id := range dead {
		delete(e.blocks, id)
	}
}

// registryFor recovers the operator.Registry backing a provider. Only
// CPUProvider is shipped, so this is the one conversion needed; a
// future GPU provider would expose its own registry the same way.
func registryFor(p provider.ExecutionProvider) *operator.Registry {
	type registryHolder interface {
		OperatorRegistry() *operator.Registry
	}
	if rh, ok := p.(registryHolder); ok {
		return rh.OperatorRegistry()
	}
	return operator.Default()
}
