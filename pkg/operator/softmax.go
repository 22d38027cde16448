package operator

import (
	"math"

	"github.com/luocf/inferunity/pkg/tensor"
)

// softmax implements Softmax/LogSoftmax along a configurable axis
// (default: last), subtracting the per-row max before exponentiating
// for numerical stability (§4.4).
type softmax struct {
	Base
	kind string
}

func newSoftmax(kind string) *softmax { return &softmax{kind: kind} }

func (o *softmax) Name() string { return o.kind }

func (o *softmax) axis(rank int64) int64 {
	a := o.Attrs.IntOr("axis", -1)
	if a < 0 {
		a += rank
	}
	return a
}

func (o *softmax) ValidateInputs(inputs []*tensor.Tensor) error {
	if err := requireCount(inputs, 1, o.kind); err != nil {
		return err
	}
	return requireFloat32(inputs[0], o.kind)
}

func (o *softmax) InferOutputShape(inputs []*tensor.Tensor) ([]tensor.Shape, error) {
	return []tensor.Shape{inputs[0].Shape()}, nil
}

func (o *softmax) Execute(inputs, outputs []*tensor.Tensor, ctx *ExecutionContext) error {
	x := inputs[0]
	shape := x.Shape()
	rank := int64(shape.Rank())
	axis := o.axis(rank)

	dims := shape.Dims()
	axisSize := dims[axis]
	var outer, inner int64 = 1, 1
	for i := int64(0); i < axis; i++ {
		outer *= dims[i]
	}
	for i := axis + 1; i < rank; i++ {
		inner *= dims[i]
	}

	in := x.Float32s()
	out := make([]float32, len(in))

	for oIdx := int64(0); oIdx < outer; oIdx++ {
		for iIdx := int64(0); iIdx < inner; iIdx++ {
			base := oIdx*axisSize*inner + iIdx
			maxV := in[base]
			for a := int64(1); a < axisSize; a++ {
				v := in[base+a*inner]
				if v > maxV {
					maxV = v
				}
			}
			var sum float64
			for a := int64(0); a < axisSize; a++ {
				e := math.Exp(float64(in[base+a*inner] - maxV))
				out[base+a*inner] = float32(e)
				sum += e
			}
			for a := int64(0); a < axisSize; a++ {
				idx := base + a*inner
				if o.kind == "LogSoftmax" {
					out[idx] = float32(math.Log(float64(out[idx])) - math.Log(sum))
				} else {
					out[idx] = float32(float64(out[idx]) / sum)
				}
			}
		}
	}
	return outputs[0].SetFloat32s(out)
}
