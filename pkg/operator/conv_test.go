package operator

import (
	"testing"

	"github.com/luocf/inferunity/pkg/ir"
	"github.com/luocf/inferunity/pkg/tensor"
)

func TestConv1x1IsPerChannelLinearMap(t *testing.T) {
	// 1x1, 2 input channels -> 1 output channel, identity-ish weights.
	x := floatTensor(t, []int64{1, 2, 2, 2}, []float32{
		1, 2, 3, 4, // channel 0
		5, 6, 7, 8, // channel 1
	})
	w := floatTensor(t, []int64{1, 2, 1, 1}, []float32{1, 1})

	conv := &Conv{}
	out := runOp(t, conv, []*tensor.Tensor{x, w})
	assertFloatsClose(t, out[0].Float32s(), []float32{6, 8, 10, 12}, 1e-6)
}

func TestConv3x3UniformKernelAverages(t *testing.T) {
	x := floatTensor(t, []int64{1, 1, 3, 3}, []float32{
		1, 2, 3,
		4, 5, 6,
		7, 8, 9,
	})
	w := floatTensor(t, []int64{1, 1, 3, 3}, []float32{
		1.0 / 9, 1.0 / 9, 1.0 / 9,
		1.0 / 9, 1.0 / 9, 1.0 / 9,
		1.0 / 9, 1.0 / 9, 1.0 / 9,
	})

	conv := &Conv{}
	out := runOp(t, conv, []*tensor.Tensor{x, w})
	// Valid convolution with a 3x3 kernel over a 3x3 input yields a
	// single output: the mean of all 9 elements.
	assertFloatsClose(t, out[0].Float32s(), []float32{5}, 1e-5)
}

func TestMaxPoolTakesWindowMaximum(t *testing.T) {
	x := floatTensor(t, []int64{1, 1, 2, 2}, []float32{1, 5, 3, 2})
	pool := newPool("MaxPool")
	pool.SetAttributes(ir.AttributeBag{
		"kernel_shape": {Kind: ir.AttrInts, Ints: []int64{2, 2}},
	})
	out := runOp(t, pool, []*tensor.Tensor{x})
	assertFloatsClose(t, out[0].Float32s(), []float32{5}, 1e-6)
}

func TestAveragePoolTakesWindowMean(t *testing.T) {
	x := floatTensor(t, []int64{1, 1, 2, 2}, []float32{1, 5, 3, 3})
	pool := newPool("AveragePool")
	pool.SetAttributes(ir.AttributeBag{
		"kernel_shape": {Kind: ir.AttrInts, Ints: []int64{2, 2}},
	})
	out := runOp(t, pool, []*tensor.Tensor{x})
	assertFloatsClose(t, out[0].Float32s(), []float32{3}, 1e-6)
}
