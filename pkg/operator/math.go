package operator

import (
	"fmt"

	ierrors "github.com/luocf/inferunity/pkg/errors"
	"github.com/luocf/inferunity/pkg/tensor"
)

// binaryOp implements the four elementwise arithmetic ops (§6.3). The
// op kind is fixed at construction time rather than read from an
// attribute, since Add/Sub/Mul/Div are distinct ONNX op-types, not one
// parameterized op.
type binaryOp struct {
	Base
	kind string
}

func newBinaryOp(kind string) *binaryOp { return &binaryOp{kind: kind} }

func (o *binaryOp) Name() string { return o.kind }

func (o *binaryOp) ValidateInputs(inputs []*tensor.Tensor) error {
	if err := requireCount(inputs, 2, o.kind); err != nil {
		return err
	}
	if err := requireFloat32(inputs[0], o.kind); err != nil {
		return err
	}
	return requireFloat32(inputs[1], o.kind)
}

func (o *binaryOp) InferOutputShape(inputs []*tensor.Tensor) ([]tensor.Shape, error) {
	shape, err := broadcastShape(inputs[0].Shape(), inputs[1].Shape())
	if err != nil {
		return nil, err
	}
	return []tensor.Shape{shape}, nil
}

// Execute applies the op elementwise with numpy-style broadcasting.
// Division by zero writes 0 for that element per §4.4's documented
// policy (not an error) — this matches the spec's boundary behavior
// table in §8 exactly.
func (o *binaryOp) Execute(inputs, outputs []*tensor.Tensor, ctx *ExecutionContext) error {
	a, b := inputs[0].Float32s(), inputs[1].Float32s()
	outShape := outputs[0].Shape()
	n := int(outShape.NumElements())
	out := make([]float32, n)

	aShape, bShape := inputs[0].Shape(), inputs[1].Shape()
	sameShape := aShape.Equal(outShape) && bShape.Equal(outShape)

	for i := 0; i < n; i++ {
		var av, bv float32
		if sameShape {
			av, bv = a[i], b[i]
		} else {
			av = a[broadcastIndex(i, outShape, aShape)]
			bv = b[broadcastIndex(i, outShape, bShape)]
		}
		switch o.kind {
		case "Add":
			out[i] = av + bv
		case "Sub":
			out[i] = av - bv
		case "Mul":
			out[i] = av * bv
		case "Div":
			if bv == 0 {
				out[i] = 0
			} else {
				out[i] = av / bv
			}
		}
	}
	return outputs[0].SetFloat32s(out)
}

// MatMul implements 2D matrix multiplication.
type MatMul struct{ Base }

func (o *MatMul) Name() string { return "MatMul" }

func (o *MatMul) ValidateInputs(inputs []*tensor.Tensor) error {
	if err := requireCount(inputs, 2, "MatMul"); err != nil {
		return err
	}
	for _, t := range inputs {
		if t.Shape().Rank() < 2 {
			return ierrors.New(ierrors.InvalidArgument, "MatMul requires rank >= 2 on both inputs, got rank %d", t.Shape().Rank())
		}
		if err := requireFloat32(t, "MatMul"); err != nil {
			return err
		}
	}
	return nil
}

func (o *MatMul) InferOutputShape(inputs []*tensor.Tensor) ([]tensor.Shape, error) {
	a, b := inputs[0].Shape(), inputs[1].Shape()
	ar, br := a.Rank(), b.Rank()
	if a.Dim(ar-1) != b.Dim(br-2) {
		return nil, ierrors.New(ierrors.InvalidArgument, "MatMul inner dimensions mismatch: %s x %s", a, b)
	}
	return []tensor.Shape{tensor.NewShape(a.Dim(ar-2), b.Dim(br-1))}, nil
}

func (o *MatMul) Execute(inputs, outputs []*tensor.Tensor, ctx *ExecutionContext) error {
	a, b := inputs[0], inputs[1]
	aShape, bShape := a.Shape(), b.Shape()
	m, k := aShape.Dim(aShape.Rank()-2), aShape.Dim(aShape.Rank()-1)
	k2, n := bShape.Dim(bShape.Rank()-2), bShape.Dim(bShape.Rank()-1)
	if k != k2 {
		return fmt.Errorf("MatMul: inner dimension mismatch %d vs %d", k, k2)
	}
	av, bv := a.Float32s(), b.Float32s()
	out := make([]float32, m*n)
	for i := int64(0); i < m; i++ {
		for j := int64(0); j < n; j++ {
			var sum float32
			for p := int64(0); p < k; p++ {
				sum += av[i*k+p] * bv[p*n+j]
			}
			out[i*n+j] = sum
		}
	}
	return outputs[0].SetFloat32s(out)
}
