// Package tensor provides the typed n-dimensional buffer and shape types
// shared across the graph IR, operators and execution engine.
package tensor

import "fmt"

// DType identifies the element type of a Tensor.
type DType int

const (
	// Unknown is the sentinel for an unrecognized ONNX dtype (§6.2).
	Unknown DType = iota
	Float32
	Float16
	Int32
	Int64
	Int8
	Uint8
)

// elementSizes is the authoritative element-size table (§3.2).
var elementSizes = map[DType]int{
	Float32: 4,
	Float16: 2,
	Int32:   4,
	Int64:   8,
	Int8:    1,
	Uint8:   1,
}

// Size returns the size in bytes of one element of d, or 0 for Unknown.
func (d DType) Size() int {
	return elementSizes[d]
}

func (d DType) String() string {
	switch d {
	case Float32:
		return "FLOAT32"
	case Float16:
		return "FLOAT16"
	case Int32:
		return "INT32"
	case Int64:
		return "INT64"
	case Int8:
		return "INT8"
	case Uint8:
		return "UINT8"
	default:
		return "UNKNOWN"
	}
}

// FromONNX maps the ONNX TensorProto data_type enum (§6.2) to a DType.
// Unrecognized values map to Unknown, never to an error — the spec
// requires the sentinel, not a rejection, at this layer.
func FromONNX(onnxType int64) DType {
	switch onnxType {
	case 1:
		return Float32
	case 2:
		return Uint8
	case 3:
		return Int8
	case 6:
		return Int32
	case 7:
		return Int64
	case 10:
		return Float16
	default:
		return Unknown
	}
}

// Layout is advisory metadata describing how a 4D tensor's axes are
// ordered; kernels interpret it, the IR only carries it (§3.2).
type Layout int

const (
	NCHW Layout = iota
	NHWC
)

func (l Layout) String() string {
	if l == NHWC {
		return "NHWC"
	}
	return "NCHW"
}

// ErrUnknownDType is returned where an operation requires a concrete
// element size and the tensor carries Unknown.
type ErrUnknownDType struct{ DType DType }

func (e ErrUnknownDType) Error() string {
	return fmt.Sprintf("unknown dtype: %v", e.DType)
}
