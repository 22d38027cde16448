package operator

import (
	ierrors "github.com/luocf/inferunity/pkg/errors"
	"github.com/luocf/inferunity/pkg/tensor"
)

// The fused operators below compose already-implemented kernels rather
// than reimplementing their math, the way an operator fusion pass
// would splice a matched subgraph into one node at load time (§4.3).
// Each shares the wrapped operators' attribute bag so strides/pads/
// epsilon continue to read from the same names as the unfused form.

// FusedConvBNReLU folds Conv -> BatchNormalization -> Relu into one
// node. Inputs: [x, weight, bnScale, bnBias, bnMean, bnVar].
type FusedConvBNReLU struct{ Base }

func (o *FusedConvBNReLU) Name() string { return "FusedConvBNReLU" }

func (o *FusedConvBNReLU) ValidateInputs(inputs []*tensor.Tensor) error {
	if err := requireCount(inputs, 6, "FusedConvBNReLU"); err != nil {
		return err
	}
	conv := Conv{Base: Base{Attrs: o.Attrs}}
	return conv.ValidateInputs(inputs[:2])
}

func (o *FusedConvBNReLU) InferOutputShape(inputs []*tensor.Tensor) ([]tensor.Shape, error) {
	conv := Conv{Base: Base{Attrs: o.Attrs}}
	return conv.InferOutputShape(inputs[:2])
}

func (o *FusedConvBNReLU) Execute(inputs, outputs []*tensor.Tensor, ctx *ExecutionContext) error {
	conv := Conv{Base: Base{Attrs: o.Attrs}}
	convShape, err := conv.InferOutputShape(inputs[:2])
	if err != nil {
		return err
	}
	mid, err := tensor.New(convShape[0], tensor.Float32)
	if err != nil {
		return err
	}
	if err := conv.Execute(inputs[:2], []*tensor.Tensor{mid}, ctx); err != nil {
		return err
	}

	bn := BatchNormalization{Base: Base{Attrs: o.Attrs}}
	bnInputs := []*tensor.Tensor{mid, inputs[2], inputs[3], inputs[4], inputs[5]}
	if err := bn.Execute(bnInputs, []*tensor.Tensor{mid}, ctx); err != nil {
		return err
	}

	relu := Relu{}
	return relu.Execute([]*tensor.Tensor{mid}, outputs, ctx)
}

// FusedConvReLU folds Conv -> Relu. Inputs: [x, weight, bias?].
type FusedConvReLU struct{ Base }

func (o *FusedConvReLU) Name() string { return "FusedConvReLU" }

func (o *FusedConvReLU) ValidateInputs(inputs []*tensor.Tensor) error {
	conv := Conv{Base: Base{Attrs: o.Attrs}}
	return conv.ValidateInputs(inputs)
}

func (o *FusedConvReLU) InferOutputShape(inputs []*tensor.Tensor) ([]tensor.Shape, error) {
	conv := Conv{Base: Base{Attrs: o.Attrs}}
	return conv.InferOutputShape(inputs)
}

func (o *FusedConvReLU) Execute(inputs, outputs []*tensor.Tensor, ctx *ExecutionContext) error {
	conv := Conv{Base: Base{Attrs: o.Attrs}}
	convShape, err := conv.InferOutputShape(inputs)
	if err != nil {
		return err
	}
	mid, err := tensor.New(convShape[0], tensor.Float32)
	if err != nil {
		return err
	}
	if err := conv.Execute(inputs, []*tensor.Tensor{mid}, ctx); err != nil {
		return err
	}
	relu := Relu{}
	return relu.Execute([]*tensor.Tensor{mid}, outputs, ctx)
}

// FusedBNReLU folds BatchNormalization -> Relu. Inputs: [x, scale,
// bias, mean, var].
type FusedBNReLU struct{ Base }

func (o *FusedBNReLU) Name() string { return "FusedBNReLU" }

func (o *FusedBNReLU) ValidateInputs(inputs []*tensor.Tensor) error {
	bn := BatchNormalization{Base: Base{Attrs: o.Attrs}}
	return bn.ValidateInputs(inputs)
}

func (o *FusedBNReLU) InferOutputShape(inputs []*tensor.Tensor) ([]tensor.Shape, error) {
	bn := BatchNormalization{Base: Base{Attrs: o.Attrs}}
	return bn.InferOutputShape(inputs)
}

func (o *FusedBNReLU) Execute(inputs, outputs []*tensor.Tensor, ctx *ExecutionContext) error {
	bn := BatchNormalization{Base: Base{Attrs: o.Attrs}}
	bnShape, err := bn.InferOutputShape(inputs)
	if err != nil {
		return err
	}
	mid, err := tensor.New(bnShape[0], tensor.Float32)
	if err != nil {
		return err
	}
	if err := bn.Execute(inputs, []*tensor.Tensor{mid}, ctx); err != nil {
		return err
	}
	relu := Relu{}
	return relu.Execute([]*tensor.Tensor{mid}, outputs, ctx)
}

// FusedMatMulAdd folds MatMul -> Add (bias broadcast) into one node.
// Inputs: [A, B, bias].
type FusedMatMulAdd struct{ Base }

func (o *FusedMatMulAdd) Name() string { return "FusedMatMulAdd" }

func (o *FusedMatMulAdd) ValidateInputs(inputs []*tensor.Tensor) error {
	if err := requireCount(inputs, 3, "FusedMatMulAdd"); err != nil {
		return err
	}
	mm := MatMul{}
	if err := mm.ValidateInputs(inputs[:2]); err != nil {
		return err
	}
	return requireFloat32(inputs[2], "FusedMatMulAdd")
}

func (o *FusedMatMulAdd) InferOutputShape(inputs []*tensor.Tensor) ([]tensor.Shape, error) {
	mm := MatMul{}
	mmShape, err := mm.InferOutputShape(inputs[:2])
	if err != nil {
		return nil, err
	}
	bcast, err := broadcastShape(mmShape[0], inputs[2].Shape())
	if err != nil {
		return nil, ierrors.New(ierrors.InvalidArgument, "%v", err)
	}
	return []tensor.Shape{bcast}, nil
}

func (o *FusedMatMulAdd) Execute(inputs, outputs []*tensor.Tensor, ctx *ExecutionContext) error {
	mm := MatMul{}
	mmShape, err := mm.InferOutputShape(inputs[:2])
	if err != nil {
		return err
	}
	mid, err := tensor.New(mmShape[0], tensor.Float32)
	if err != nil {
		return err
	}
	if err := mm.Execute(inputs[:2], []*tensor.Tensor{mid}, ctx); err != nil {
		return err
	}

	add := newBinaryOp("Add")
	return add.Execute([]*tensor.Tensor{mid, inputs[2]}, outputs, ctx)
}
