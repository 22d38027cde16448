package operator

import (
	ierrors "github.com/luocf/inferunity/pkg/errors"
	"github.com/luocf/inferunity/pkg/tensor"
)

// convParams reads the shared stride/pad attributes used by Conv and
// the pooling operators. pads is [top, left, bottom, right]; strides
// is [strideH, strideW]. Both default to the identity (no padding,
// unit stride) when absent.
func convParams(attrs interface{ Ints(string) ([]int64, bool) }) (strideH, strideW, padTop, padLeft, padBottom, padRight int64) {
	strideH, strideW = 1, 1
	if s, ok := attrs.Ints("strides"); ok && len(s) == 2 {
		strideH, strideW = s[0], s[1]
	}
	if p, ok := attrs.Ints("pads"); ok && len(p) == 4 {
		padTop, padLeft, padBottom, padRight = p[0], p[1], p[2], p[3]
	}
	return
}

func convOutDim(size, pad1, pad2, kernel, stride int64) int64 {
	return (size+pad1+pad2-kernel)/stride + 1
}

// Conv implements 2D convolution over an NCHW input (§6.3). Only
// float32, group=1 convolution is implemented — sufficient for the
// spec's literal end-to-end scenarios (§8 scenarios 4 and 5).
type Conv struct{ Base }

func (o *Conv) Name() string { return "Conv" }

func (o *Conv) ValidateInputs(inputs []*tensor.Tensor) error {
	if err := requireMinCount(inputs, 2, "Conv"); err != nil {
		return err
	}
	if inputs[0].Shape().Rank() < 4 {
		return ierrors.New(ierrors.InvalidArgument, "Conv requires input rank >= 4, got %d", inputs[0].Shape().Rank())
	}
	if inputs[1].Shape().Rank() != 4 {
		return ierrors.New(ierrors.InvalidArgument, "Conv requires weight rank == 4, got %d", inputs[1].Shape().Rank())
	}
	return requireFloat32(inputs[0], "Conv")
}

func (o *Conv) InferOutputShape(inputs []*tensor.Tensor) ([]tensor.Shape, error) {
	in, w := inputs[0].Shape(), inputs[1].Shape()
	n, _, h, wd := in.Dim(0), in.Dim(1), in.Dim(2), in.Dim(3)
	outC, _, kh, kw := w.Dim(0), w.Dim(1), w.Dim(2), w.Dim(3)
	strideH, strideW, padTop, padLeft, padBottom, padRight := convParams(o.Attrs)
	oh := convOutDim(h, padTop, padBottom, kh, strideH)
	ow := convOutDim(wd, padLeft, padRight, kw, strideW)
	return []tensor.Shape{tensor.NewShape(n, outC, oh, ow)}, nil
}

func (o *Conv) Execute(inputs, outputs []*tensor.Tensor, ctx *ExecutionContext) error {
	in, w := inputs[0], inputs[1]
	var bias []float32
	if len(inputs) >= 3 && inputs[2] != nil {
		bias = inputs[2].Float32s()
	}
	inShape, wShape := in.Shape(), w.Shape()
	n, inC, h, wd := inShape.Dim(0), inShape.Dim(1), inShape.Dim(2), inShape.Dim(3)
	outC, _, kh, kw := wShape.Dim(0), wShape.Dim(1), wShape.Dim(2), wShape.Dim(3)
	strideH, strideW, padTop, padLeft, _, _ := convParams(o.Attrs)

	outShape := outputs[0].Shape()
	oh, ow := outShape.Dim(2), outShape.Dim(3)

	inData := in.Float32s()
	wData := w.Float32s()
	out := make([]float32, outShape.NumElements())

	for ni := int64(0); ni < n; ni++ {
		for oc := int64(0); oc < outC; oc++ {
			for y := int64(0); y < oh; y++ {
				for x := int64(0); x < ow; x++ {
					var sum float32
					for ic := int64(0); ic < inC; ic++ {
						for ky := int64(0); ky < kh; ky++ {
							iy := y*strideH - padTop + ky
							if iy < 0 || iy >= h {
								continue
							}
							for kx := int64(0); kx < kw; kx++ {
								ix := x*strideW - padLeft + kx
								if ix < 0 || ix >= wd {
									continue
								}
								inIdx := ((ni*inC+ic)*h+iy)*wd + ix
								wIdx := ((oc*inC+ic)*kh+ky)*kw + kx
								sum += inData[inIdx] * wData[wIdx]
							}
						}
					}
					if bias != nil {
						sum += bias[oc]
					}
					outIdx := ((ni*outC+oc)*oh+y)*ow + x
					out[outIdx] = sum
				}
			}
		}
	}
	return outputs[0].SetFloat32s(out)
}

// pool implements MaxPool/AveragePool over an NCHW input, parameterized
// by kind at construction since the two differ only in reduction.
type pool struct {
	Base
	kind string
}

func newPool(kind string) *pool { return &pool{kind: kind} }

func (o *pool) Name() string { return o.kind }

func (o *pool) ValidateInputs(inputs []*tensor.Tensor) error {
	if err := requireCount(inputs, 1, o.kind); err != nil {
		return err
	}
	if inputs[0].Shape().Rank() != 4 {
		return ierrors.New(ierrors.InvalidArgument, "%s requires rank-4 NCHW input, got rank %d", o.kind, inputs[0].Shape().Rank())
	}
	return requireFloat32(inputs[0], o.kind)
}

func (o *pool) kernelShape() (kh, kw int64) {
	if k, ok := o.Attrs.Ints("kernel_shape"); ok && len(k) == 2 {
		return k[0], k[1]
	}
	return 1, 1
}

func (o *pool) InferOutputShape(inputs []*tensor.Tensor) ([]tensor.Shape, error) {
	in := inputs[0].Shape()
	n, c, h, w := in.Dim(0), in.Dim(1), in.Dim(2), in.Dim(3)
	kh, kw := o.kernelShape()
	strideH, strideW, padTop, padLeft, padBottom, padRight := convParams(o.Attrs)
	oh := convOutDim(h, padTop, padBottom, kh, strideH)
	ow := convOutDim(w, padLeft, padRight, kw, strideW)
	return []tensor.Shape{tensor.NewShape(n, c, oh, ow)}, nil
}

func (o *pool) Execute(inputs, outputs []*tensor.Tensor, ctx *ExecutionContext) error {
	in := inputs[0]
	inShape := in.Shape()
	n, c, h, w := inShape.Dim(0), inShape.Dim(1), inShape.Dim(2), inShape.Dim(3)
	kh, kw := o.kernelShape()
	strideH, strideW, padTop, padLeft, _, _ := convParams(o.Attrs)
	outShape := outputs[0].Shape()
	oh, ow := outShape.Dim(2), outShape.Dim(3)

	inData := in.Float32s()
	out := make([]float32, outShape.NumElements())

	for ni := int64(0); ni < n; ni++ {
		for ci := int64(0); ci < c; ci++ {
			for y := int64(0); y < oh; y++ {
				for x := int64(0); x < ow; x++ {
					var sum float32
					var maxV float32
					count := 0
					first := true
					for ky := int64(0); ky < kh; ky++ {
						iy := y*strideH - padTop + ky
						if iy < 0 || iy >= h {
							continue
						}
						for kx := int64(0); kx < kw; kx++ {
							ix := x*strideW - padLeft + kx
							if ix < 0 || ix >= w {
								continue
							}
							v := inData[((ni*c+ci)*h+iy)*w+ix]
							sum += v
							count++
							if first || v > maxV {
								maxV = v
								first = false
							}
						}
					}
					outIdx := ((ni*c+ci)*oh+y)*ow + x
					if o.kind == "MaxPool" {
						out[outIdx] = maxV
					} else {
						if count == 0 {
							out[outIdx] = 0
						} else {
							out[outIdx] = sum / float32(count)
						}
					}
				}
			}
		}
	}
	return outputs[0].SetFloat32s(out)
}
