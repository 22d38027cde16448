// Package provider defines the ExecutionProvider abstraction: a
// backend capable of executing a subset of op-types, selected per node
// at prepare time. Only a CPU provider ships built in; GPU/NPU
// providers are external collaborators that register against the same
// interface.
package provider

import (
	"context"

	"github.com/luocf/inferunity/pkg/ir"
	"github.com/luocf/inferunity/pkg/operator"
	"github.com/luocf/inferunity/pkg/tensor"
)

// ExecutionProvider executes nodes whose op-type it supports.
// Instances are created once per session and reused across runs; they
// must be safe for concurrent use by the scheduler's parallel variant.
type ExecutionProvider interface {
	// Name identifies the provider (e.g. "cpu", "cuda").
	Name() string

	// SupportsOperator reports whether this provider can execute opType.
	SupportsOperator(opType string) bool

	// Prepare gives the provider a chance to do one-time, per-graph
	// setup (e.g. compiling a subgraph) before any node executes.
	Prepare(ctx context.Context, g *ir.Graph) error

	// ExecuteNode runs node's operator against inputs, writing outputs.
	ExecuteNode(ctx context.Context, node ir.Node, inputs, outputs []*tensor.Tensor) error
}

// Registry maps provider name to instance, consulted in priority order
// (the order providers were registered) when the engine picks a
// provider for a node.
type Registry struct {
	providers []ExecutionProvider
}

// NewRegistry returns an empty provider Registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register appends p to the selection order. Earlier registrations
// take priority when more than one provider supports the same op-type.
func (r *Registry) Register(p ExecutionProvider) {
	r.providers = append(r.providers, p)
}

// SelectFor returns the first registered provider supporting opType.
func (r *Registry) SelectFor(opType string) (ExecutionProvider, bool) {
	for _, p := range r.providers {
		if p.SupportsOperator(opType) {
			return p, true
		}
	}
	return nil, false
}

// PrepareAll calls Prepare on every registered provider.
func (r *Registry) PrepareAll(ctx context.Context, g *ir.Graph) error {
	for _, p := range r.providers {
		if err := p.Prepare(ctx, g); err != nil {
			return err
		}
	}
	return nil
}

// Providers returns the registered providers in selection order.
func (r *Registry) Providers() []ExecutionProvider {
	return append([]ExecutionProvider(nil), r.providers...)
}

// CPUProvider executes any op-type registered in an operator.Registry,
// making it the universal fallback provider.
type CPUProvider struct {
	ops *operator.Registry
}

// NewCPUProvider returns a CPUProvider backed by ops. A nil ops argument
// falls back to operator.Default().
func NewCPUProvider(ops *operator.Registry) *CPUProvider {
	if ops == nil {
		ops = operator.Default()
	}
	return &CPUProvider{ops: ops}
}

func (p *CPUProvider) Name() string { return "cpu" }

// OperatorRegistry returns the Registry this provider dispatches
// through, letting the execution engine reuse it for shape inference
// ahead of ExecuteNode without hard-coding a second registry lookup.
func (p *CPUProvider) OperatorRegistry() *operator.Registry { return p.ops }

func (p *CPUProvider) SupportsOperator(opType string) bool {
	return p.ops.Has(opType)
}

func (p *CPUProvider) Prepare(ctx context.Context, g *ir.Graph) error {
	return nil
}

func (p *CPUProvider) ExecuteNode(ctx context.Context, node ir.Node, inputs, outputs []*tensor.Tensor) error {
	op, err := p.ops.New(node.OpType())
	if err != nil {
		return err
	}
	op.SetAttributes(node.Attrs())
	if err := op.ValidateInputs(inputs); err != nil {
		return err
	}
	return op.Execute(inputs, outputs, &operator.ExecutionContext{Device: p.Name()})
}
