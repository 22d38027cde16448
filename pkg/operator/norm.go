package operator

import (
	"math"

	ierrors "github.com/luocf/inferunity/pkg/errors"
	"github.com/luocf/inferunity/pkg/tensor"
)

// BatchNormalization applies the standard inference-time batch-norm
// transform over an NCHW tensor: per-channel scale/shift using running
// mean and variance, inputs = [x, scale, bias, mean, var].
type BatchNormalization struct{ Base }

func (o *BatchNormalization) Name() string { return "BatchNormalization" }

func (o *BatchNormalization) epsilon() float64 {
	return o.Attrs.FloatOr("epsilon", 1e-5)
}

func (o *BatchNormalization) ValidateInputs(inputs []*tensor.Tensor) error {
	if err := requireCount(inputs, 5, "BatchNormalization"); err != nil {
		return err
	}
	if inputs[0].Shape().Rank() < 2 {
		return ierrors.New(ierrors.InvalidArgument, "BatchNormalization requires rank >= 2, got %d", inputs[0].Shape().Rank())
	}
	return requireFloat32(inputs[0], "BatchNormalization")
}

func (o *BatchNormalization) InferOutputShape(inputs []*tensor.Tensor) ([]tensor.Shape, error) {
	return []tensor.Shape{inputs[0].Shape()}, nil
}

func (o *BatchNormalization) Execute(inputs, outputs []*tensor.Tensor, ctx *ExecutionContext) error {
	x := inputs[0]
	scale, bias, mean, variance := inputs[1].Float32s(), inputs[2].Float32s(), inputs[3].Float32s(), inputs[4].Float32s()
	shape := x.Shape()
	c := shape.Dim(1)
	var spatial int64 = 1
	for i := 2; i < int(shape.Rank()); i++ {
		spatial *= shape.Dim(i)
	}
	n := shape.Dim(0)
	eps := o.epsilon()

	in := x.Float32s()
	out := make([]float32, len(in))
	for ni := int64(0); ni < n; ni++ {
		for ci := int64(0); ci < c; ci++ {
			denom := float32(math.Sqrt(float64(variance[ci]) + eps))
			base := (ni*c + ci) * spatial
			for s := int64(0); s < spatial; s++ {
				idx := base + s
				out[idx] = (in[idx]-mean[ci])/denom*scale[ci] + bias[ci]
			}
		}
	}
	return outputs[0].SetFloat32s(out)
}

// LayerNormalization normalizes over the last axis, per the last
// dimension's scale/bias pair, inputs = [x, scale, bias].
type LayerNormalization struct{ Base }

func (o *LayerNormalization) Name() string { return "LayerNormalization" }

func (o *LayerNormalization) epsilon() float64 {
	return o.Attrs.FloatOr("epsilon", 1e-5)
}

func (o *LayerNormalization) ValidateInputs(inputs []*tensor.Tensor) error {
	if err := requireCount(inputs, 3, "LayerNormalization"); err != nil {
		return err
	}
	return requireFloat32(inputs[0], "LayerNormalization")
}

func (o *LayerNormalization) InferOutputShape(inputs []*tensor.Tensor) ([]tensor.Shape, error) {
	return []tensor.Shape{inputs[0].Shape()}, nil
}

func (o *LayerNormalization) Execute(inputs, outputs []*tensor.Tensor, ctx *ExecutionContext) error {
	x := inputs[0]
	scale, bias := inputs[1].Float32s(), inputs[2].Float32s()
	shape := x.Shape()
	last := shape.Dim(shape.Rank() - 1)
	rows := shape.NumElements() / last
	eps := o.epsilon()

	in := x.Float32s()
	out := make([]float32, len(in))
	for r := int64(0); r < rows; r++ {
		base := r * last
		var mean float32
		for i := int64(0); i < last; i++ {
			mean += in[base+i]
		}
		mean /= float32(last)
		var variance float32
		for i := int64(0); i < last; i++ {
			d := in[base+i] - mean
			variance += d * d
		}
		variance /= float32(last)
		denom := float32(math.Sqrt(float64(variance) + eps))
		for i := int64(0); i < last; i++ {
			out[base+i] = (in[base+i]-mean)/denom*scale[i] + bias[i]
		}
	}
	return outputs[0].SetFloat32s(out)
}

// RMSNorm normalizes each row by its root-mean-square, skipping the
// mean-centering step LayerNormalization performs, inputs = [x, scale].
// The rms^2+eps term is floored at a small positive constant so a
// broadcast of all-zero input never divides by zero (§4.4).
type RMSNorm struct{ Base }

const rmsNormMinDenomSq = 1e-12

func (o *RMSNorm) Name() string { return "RMSNorm" }

func (o *RMSNorm) epsilon() float64 {
	return o.Attrs.FloatOr("epsilon", 1e-6)
}

func (o *RMSNorm) ValidateInputs(inputs []*tensor.Tensor) error {
	if err := requireCount(inputs, 2, "RMSNorm"); err != nil {
		return err
	}
	return requireFloat32(inputs[0], "RMSNorm")
}

func (o *RMSNorm) InferOutputShape(inputs []*tensor.Tensor) ([]tensor.Shape, error) {
	return []tensor.Shape{inputs[0].Shape()}, nil
}

func (o *RMSNorm) Execute(inputs, outputs []*tensor.Tensor, ctx *ExecutionContext) error {
	x := inputs[0]
	scale := inputs[1].Float32s()
	shape := x.Shape()
	last := shape.Dim(shape.Rank() - 1)
	rows := shape.NumElements() / last
	eps := o.epsilon()

	in := x.Float32s()
	out := make([]float32, len(in))
	for r := int64(0); r < rows; r++ {
		base := r * last
		var sumSq float64
		for i := int64(0); i < last; i++ {
			v := float64(in[base+i])
			sumSq += v * v
		}
		meanSq := sumSq/float64(last) + eps
		if meanSq < rmsNormMinDenomSq {
			meanSq = rmsNormMinDenomSq
		}
		denom := float32(math.Sqrt(meanSq))
		for i := int64(0); i < last; i++ {
			out[base+i] = in[base+i] / denom * scale[i]
		}
	}
	return outputs[0].SetFloat32s(out)
}
