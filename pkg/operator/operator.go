// Package operator defines the Operator contract (§4.4) and the
// process-wide registry that produces Operator instances by op-type
// string. Kernel operators themselves are external collaborators per
// spec §1; this package specifies the contract plus the minimum
// built-in set needed for the engine to be self-contained (§6.3).
package operator

import (
	"time"

	"github.com/luocf/inferunity/pkg/ir"
	"github.com/luocf/inferunity/pkg/tensor"
)

// ProfileSink receives per-node timing samples. A nil sink means
// profiling is disabled; callers must nil-check before invoking it.
type ProfileSink interface {
	RecordNode(opType, nodeID string, d time.Duration)
}

// ExecutionContext is per-run state (§3.1): device type, opaque device
// context, and an optional profiling sink.
type ExecutionContext struct {
	Device        string
	DeviceContext interface{}
	Profiler      ProfileSink
}

// Operator is the logic for one op-type (§3.1, §4.4). An instance's
// lifetime is at most one node execution — instances are not
// thread-safe and must not be shared across threads (§5).
type Operator interface {
	// Name returns the operator's op-type string.
	Name() string

	// SetAttributes copies the Node's attribute bag into the operator
	// instance before any other method is called.
	SetAttributes(attrs ir.AttributeBag)

	// ValidateInputs rejects wrong count, wrong dtype, wrong rank. Must
	// not inspect tensor data.
	ValidateInputs(inputs []*tensor.Tensor) error

	// InferOutputShape is pure over shapes and dtypes.
	InferOutputShape(inputs []*tensor.Tensor) ([]tensor.Shape, error)

	// Execute reads inputs, writes outputs; must not reallocate output
	// buffers (sizes were already established via InferOutputShape).
	Execute(inputs, outputs []*tensor.Tensor, ctx *ExecutionContext) error
}

// Base provides the attribute-bag storage shared by every built-in
// operator, so each operator only implements SetAttributes once (via
// embedding) instead of repeating the boilerplate.
type Base struct {
	Attrs ir.AttributeBag
}

// SetAttributes implements the attribute-bag half of the Operator
// contract for any type that embeds Base.
func (b *Base) SetAttributes(attrs ir.AttributeBag) { b.Attrs = attrs }
