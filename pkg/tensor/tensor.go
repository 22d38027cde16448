package tensor

import (
	"fmt"
	"math"
)

// Tensor is a typed n-dimensional buffer (§3.1). A Tensor either owns
// its backing storage or is a non-owning view over another Tensor's
// storage (see View and FromBuffer).
type Tensor struct {
	shape    Shape
	dtype    DType
	layout   Layout
	data     []byte
	ownsData bool
}

// New allocates a zero-filled Tensor of the given shape and dtype.
func New(shape Shape, dtype DType) (*Tensor, error) {
	n := shape.NumElements()
	if n == Dynamic {
		return nil, fmt.Errorf("cannot allocate tensor with dynamic shape %s", shape)
	}
	size := dtype.Size()
	if size == 0 {
		return nil, ErrUnknownDType{DType: dtype}
	}
	return &Tensor{
		shape:    shape,
		dtype:    dtype,
		layout:   NCHW,
		data:     make([]byte, int(n)*size),
		ownsData: true,
	}, nil
}

// NewFromBytes wraps raw bytes (e.g. an ONNX initializer's raw_data)
// as an owning Tensor. The caller is responsible for byte-count/dtype
// consistency; this mirrors the conversion rule in §6.1 step 1.
func NewFromBytes(shape Shape, dtype DType, raw []byte) *Tensor {
	buf := make([]byte, len(raw))
	copy(buf, raw)
	return &Tensor{shape: shape, dtype: dtype, layout: NCHW, data: buf, ownsData: true}
}

// View returns a non-owning Tensor sharing t's backing buffer, with a
// new shape. The Reshape operator does not use it: Reshape copies its
// input's elements into a separately allocated output tensor, so the
// output does not share the input's buffer.
func (t *Tensor) View(shape Shape) (*Tensor, error) {
	if shape.NumElements() != t.shape.NumElements() {
		return nil, fmt.Errorf("view shape %s has different element count than source shape %s", shape, t.shape)
	}
	return &Tensor{
		shape:    shape,
		dtype:    t.dtype,
		layout:   t.layout,
		data:     t.data,
		ownsData: false,
	}, nil
}

// FromBuffer builds a non-owning Tensor directly over buf with no
// copy, so a caller managing its own backing storage (the memory pool)
// can bind a tensor to a block without the copy NewFromBytes performs.
// buf must be at least dtype.Size()*shape.NumElements() bytes.
func FromBuffer(shape Shape, dtype DType, buf []byte) *Tensor {
	return &Tensor{shape: shape, dtype: dtype, layout: NCHW, data: buf, ownsData: false}
}

// NewPlaceholder builds a Tensor carrying only shape/dtype metadata,
// with no backing buffer. Shape inference walks the graph before any
// tensor data exists (and shapes may still be partially dynamic), so it
// operates on placeholders rather than allocated Tensors; calling any
// data accessor on one is a programming error.
func NewPlaceholder(shape Shape, dtype DType) *Tensor {
	return &Tensor{shape: shape, dtype: dtype, layout: NCHW}
}

// Shape returns the tensor's shape.
func (t *Tensor) Shape() Shape { return t.shape }

// DType returns the tensor's element type.
func (t *Tensor) DType() DType { return t.dtype }

// Layout returns the tensor's advisory layout.
func (t *Tensor) Layout() Layout { return t.layout }

// SetLayout updates the advisory layout tag in place.
func (t *Tensor) SetLayout(l Layout) { t.layout = l }

// OwnsData reports whether this Tensor owns its backing buffer.
func (t *Tensor) OwnsData() bool { return t.ownsData }

// Bytes returns the raw backing buffer.
func (t *Tensor) Bytes() []byte { return t.data }

// Float32s reinterprets the backing buffer as a float32 slice. Panics
// if dtype is not Float32 — callers must check DType() first; this
// mirrors kernels reading inputs whose dtype was already validated by
// ValidateInputs.
func (t *Tensor) Float32s() []float32 {
	if t.dtype != Float32 {
		panic(fmt.Sprintf("Float32s called on dtype %v", t.dtype))
	}
	n := len(t.data) / 4
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		bits := uint32(t.data[i*4]) | uint32(t.data[i*4+1])<<8 | uint32(t.data[i*4+2])<<16 | uint32(t.data[i*4+3])<<24
		out[i] = math.Float32frombits(bits)
	}
	return out
}

// SetFloat32s writes a float32 slice into the backing buffer. The
// slice length must equal the tensor's element count.
func (t *Tensor) SetFloat32s(values []float32) error {
	if t.dtype != Float32 {
		return fmt.Errorf("SetFloat32s called on dtype %v", t.dtype)
	}
	if int64(len(values)) != t.shape.NumElements() {
		return fmt.Errorf("value count %d does not match shape %s", len(values), t.shape)
	}
	if len(t.data) != len(values)*4 {
		t.data = make([]byte, len(values)*4)
	}
	for i, v := range values {
		bits := math.Float32bits(v)
		t.data[i*4] = byte(bits)
		t.data[i*4+1] = byte(bits >> 8)
		t.data[i*4+2] = byte(bits >> 16)
		t.data[i*4+3] = byte(bits >> 24)
	}
	return nil
}

// Int64s reinterprets the backing buffer as an int64 slice.
func (t *Tensor) Int64s() []int64 {
	if t.dtype != Int64 {
		panic(fmt.Sprintf("Int64s called on dtype %v", t.dtype))
	}
	n := len(t.data) / 8
	out := make([]int64, n)
	for i := 0; i < n; i++ {
		var v uint64
		for b := 0; b < 8; b++ {
			v |= uint64(t.data[i*8+b]) << (8 * b)
		}
		out[i] = int64(v)
	}
	return out
}

// Clone returns a deep copy that owns a fresh buffer.
func (t *Tensor) Clone() *Tensor {
	buf := make([]byte, len(t.data))
	copy(buf, t.data)
	return &Tensor{shape: t.shape, dtype: t.dtype, layout: t.layout, data: buf, ownsData: true}
}

// IsZero reports whether every element is zero within tolerance tol.
// Used by the Subgraph Replacement identity pass (§4.3).
func (t *Tensor) IsZero(tol float64) bool {
	switch t.dtype {
	case Float32:
		for _, v := range t.Float32s() {
			if math.Abs(float64(v)) > tol {
				return false
			}
		}
		return true
	case Int64:
		for _, v := range t.Int64s() {
			if v != 0 {
				return false
			}
		}
		return true
	default:
		for _, b := range t.data {
			if b != 0 {
				return false
			}
		}
		return true
	}
}
