package operator

import (
	"fmt"

	"github.com/luocf/inferunity/pkg/tensor"
)

func requireCount(inputs []*tensor.Tensor, n int, opName string) error {
	if len(inputs) != n {
		return fmt.Errorf("%s: expected %d inputs, got %d", opName, n, len(inputs))
	}
	return nil
}

func requireMinCount(inputs []*tensor.Tensor, n int, opName string) error {
	if len(inputs) < n {
		return fmt.Errorf("%s: expected at least %d inputs, got %d", opName, n, len(inputs))
	}
	return nil
}

func requireFloat32(t *tensor.Tensor, opName string) error {
	if t.DType() != tensor.Float32 {
		return fmt.Errorf("%s: unsupported dtype %v (only FLOAT32 is implemented)", opName, t.DType())
	}
	return nil
}

// broadcastShape computes the numpy-style broadcast of two shapes, or
// an error if they are incompatible. Both operands may be freely
// broadcast (e.g. bias addition); this is a superset of the plain
// same-shape case the spec's literal end-to-end scenarios exercise.
func broadcastShape(a, b tensor.Shape) (tensor.Shape, error) {
	ad, bd := a.Dims(), b.Dims()
	n := len(ad)
	if len(bd) > n {
		n = len(bd)
	}
	out := make([]int64, n)
	for i := 0; i < n; i++ {
		var av, bv int64 = 1, 1
		if i < len(ad) {
			av = ad[len(ad)-1-i]
		}
		if i < len(bd) {
			bv = bd[len(bd)-1-i]
		}
		switch {
		case av == bv:
			out[n-1-i] = av
		case av == 1:
			out[n-1-i] = bv
		case bv == 1:
			out[n-1-i] = av
		default:
			return tensor.Shape{}, fmt.Errorf("cannot broadcast shapes %s and %s", a, b)
		}
	}
	return tensor.NewShape(out...), nil
}

// broadcastIndex maps a flat index in the broadcast output shape back
// to the corresponding flat index in a tensor of shape `small`.
func broadcastIndex(flatOut int, outShape, small tensor.Shape) int {
	outDims := outShape.Dims()
	smallDims := small.Dims()
	rankDiff := len(outDims) - len(smallDims)

	coords := make([]int64, len(outDims))
	rem := flatOut
	for i := len(outDims) - 1; i >= 0; i-- {
		coords[i] = int64(rem) % outDims[i]
		rem /= int(outDims[i])
	}

	idx := 0
	stride := 1
	for i := len(smallDims) - 1; i >= 0; i-- {
		d := smallDims[i]
		c := coords[i+rankDiff]
		if d == 1 {
			c = 0
		}
		idx += int(c) * stride
		stride *= int(d)
	}
	return idx
}
