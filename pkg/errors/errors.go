// Package errors defines the engine-wide diagnostic type: every fallible
// core operation returns either success or a diagnostic carrying a Kind
// and a message (spec §7). The teacher's per-package flat sentinel
// errors (pkg/graph/errors.go, pkg/engine/errors.go) work when callers
// only need to compare against errors.Is; §7 additionally requires
// callers to branch on *kind*, so diagnostics here carry that kind
// explicitly instead of being one-off sentinels.
package errors

import "fmt"

// Kind classifies a diagnostic (spec §7).
type Kind int

const (
	// InvalidArgument: bad user input, wrong tensor shape/dtype/count,
	// bad attribute.
	InvalidArgument Kind = iota
	// InvalidModel: graph fails validation invariants (§3.3).
	InvalidModel
	// NotFound: missing operator in registry, no provider supports an
	// op, missing input name in Run-by-name.
	NotFound
	// OutOfMemory: pool allocation failure after release-unused +
	// defragment retry.
	OutOfMemory
	// NotImplemented: feature/format/dtype not yet handled.
	NotImplemented
	// RuntimeError: I/O failure, serialization failure, other.
	RuntimeError
)

func (k Kind) String() string {
	switch k {
	case InvalidArgument:
		return "INVALID_ARGUMENT"
	case InvalidModel:
		return "INVALID_MODEL"
	case NotFound:
		return "NOT_FOUND"
	case OutOfMemory:
		return "OUT_OF_MEMORY"
	case NotImplemented:
		return "NOT_IMPLEMENTED"
	case RuntimeError:
		return "RUNTIME_ERROR"
	default:
		return "UNKNOWN"
	}
}

// Error is the diagnostic type returned by core operations.
type Error struct {
	Kind    Kind
	Message string
	// NodeID identifies the node that raised this error, if any
	// (§4.5 step 4: "propagate any error with the erring node
	// identified").
	NodeID string
	// Wrapped is the underlying cause, if any.
	Wrapped error
}

func (e *Error) Error() string {
	if e.NodeID != "" {
		return fmt.Sprintf("%s: %s (node %s)", e.Kind, e.Message, e.NodeID)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Wrapped }

// New builds an Error of the given kind.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an Error of the given kind around an existing cause.
func Wrap(kind Kind, cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Wrapped: cause}
}

// WithNode returns a copy of e annotated with the erring node's ID.
func (e *Error) WithNode(nodeID string) *Error {
	cp := *e
	cp.NodeID = nodeID
	return &cp
}

// KindOf extracts the Kind of err if it is (or wraps) an *Error,
// otherwise returns RuntimeError — the catch-all per §7's table.
func KindOf(err error) Kind {
	var e *Error
	if asError(err, &e) {
		return e.Kind
	}
	return RuntimeError
}

func asError(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
