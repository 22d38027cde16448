package operator

import (
	"math"

	"github.com/luocf/inferunity/pkg/tensor"
)

// Relu implements max(0, x).
type Relu struct{ Base }

func (o *Relu) Name() string { return "Relu" }

func (o *Relu) ValidateInputs(inputs []*tensor.Tensor) error {
	if err := requireCount(inputs, 1, "Relu"); err != nil {
		return err
	}
	return requireFloat32(inputs[0], "Relu")
}

func (o *Relu) InferOutputShape(inputs []*tensor.Tensor) ([]tensor.Shape, error) {
	return []tensor.Shape{inputs[0].Shape()}, nil
}

func (o *Relu) Execute(inputs, outputs []*tensor.Tensor, ctx *ExecutionContext) error {
	in := inputs[0].Float32s()
	out := make([]float32, len(in))
	for i, v := range in {
		if v > 0 {
			out[i] = v
		}
	}
	return outputs[0].SetFloat32s(out)
}

// Sigmoid implements 1 / (1 + e^-x).
type Sigmoid struct{ Base }

func (o *Sigmoid) Name() string { return "Sigmoid" }

func (o *Sigmoid) ValidateInputs(inputs []*tensor.Tensor) error {
	if err := requireCount(inputs, 1, "Sigmoid"); err != nil {
		return err
	}
	return requireFloat32(inputs[0], "Sigmoid")
}

func (o *Sigmoid) InferOutputShape(inputs []*tensor.Tensor) ([]tensor.Shape, error) {
	return []tensor.Shape{inputs[0].Shape()}, nil
}

func (o *Sigmoid) Execute(inputs, outputs []*tensor.Tensor, ctx *ExecutionContext) error {
	in := inputs[0].Float32s()
	out := make([]float32, len(in))
	for i, v := range in {
		out[i] = float32(1 / (1 + math.Exp(-float64(v))))
	}
	return outputs[0].SetFloat32s(out)
}

// Tanh implements the hyperbolic tangent activation.
type Tanh struct{ Base }

func (o *Tanh) Name() string { return "Tanh" }

func (o *Tanh) ValidateInputs(inputs []*tensor.Tensor) error {
	if err := requireCount(inputs, 1, "Tanh"); err != nil {
		return err
	}
	return requireFloat32(inputs[0], "Tanh")
}

func (o *Tanh) InferOutputShape(inputs []*tensor.Tensor) ([]tensor.Shape, error) {
	return []tensor.Shape{inputs[0].Shape()}, nil
}

func (o *Tanh) Execute(inputs, outputs []*tensor.Tensor, ctx *ExecutionContext) error {
	in := inputs[0].Float32s()
	out := make([]float32, len(in))
	for i, v := range in {
		out[i] = float32(math.Tanh(float64(v)))
	}
	return outputs[0].SetFloat32s(out)
}

// geluSqrt2OverPi and geluCoeff are the constants §4.4 specifies for
// the tanh-approximation GELU.
const (
	geluSqrt2OverPi = 0.7978845608028654 // sqrt(2/pi)
	geluCoeff       = 0.044715
)

// Gelu implements the tanh approximation of the Gaussian Error Linear Unit.
type Gelu struct{ Base }

func (o *Gelu) Name() string { return "Gelu" }

func (o *Gelu) ValidateInputs(inputs []*tensor.Tensor) error {
	if err := requireCount(inputs, 1, "Gelu"); err != nil {
		return err
	}
	return requireFloat32(inputs[0], "Gelu")
}

func (o *Gelu) InferOutputShape(inputs []*tensor.Tensor) ([]tensor.Shape, error) {
	return []tensor.Shape{inputs[0].Shape()}, nil
}

func (o *Gelu) Execute(inputs, outputs []*tensor.Tensor, ctx *ExecutionContext) error {
	in := inputs[0].Float32s()
	out := make([]float32, len(in))
	for i, v := range in {
		x := float64(v)
		inner := geluSqrt2OverPi * (x + geluCoeff*x*x*x)
		out[i] = float32(0.5 * x * (1 + math.Tanh(inner)))
	}
	return outputs[0].SetFloat32s(out)
}

// Silu implements x * sigmoid(x) (a.k.a. the Swish activation).
type Silu struct{ Base }

func (o *Silu) Name() string { return "Silu" }

func (o *Silu) ValidateInputs(inputs []*tensor.Tensor) error {
	if err := requireCount(inputs, 1, "Silu"); err != nil {
		return err
	}
	return requireFloat32(inputs[0], "Silu")
}

func (o *Silu) InferOutputShape(inputs []*tensor.Tensor) ([]tensor.Shape, error) {
	return []tensor.Shape{inputs[0].Shape()}, nil
}

func (o *Silu) Execute(inputs, outputs []*tensor.Tensor, ctx *ExecutionContext) error {
	in := inputs[0].Float32s()
	out := make([]float32, len(in))
	for i, v := range in {
		x := float64(v)
		out[i] = float32(x / (1 + math.Exp(-x)))
	}
	return outputs[0].SetFloat32s(out)
}
