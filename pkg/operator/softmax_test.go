package operator

import (
	"testing"

	"github.com/luocf/inferunity/pkg/tensor"
)

func TestSoftmaxSumsToOne(t *testing.T) {
	x := floatTensor(t, []int64{1, 3}, []float32{1, 2, 3})
	out := runOp(t, newSoftmax("Softmax"), []*tensor.Tensor{x})
	got := out[0].Float32s()
	var sum float32
	for _, v := range got {
		sum += v
	}
	assertFloatsClose(t, []float32{sum}, []float32{1}, 1e-5)
}

func TestSoftmaxIsStableForLargeInputs(t *testing.T) {
	x := floatTensor(t, []int64{1, 3}, []float32{1000, 1001, 1002})
	out := runOp(t, newSoftmax("Softmax"), []*tensor.Tensor{x})
	got := out[0].Float32s()
	for _, v := range got {
		if v != v { // NaN check
			t.Fatalf("softmax produced NaN for large inputs: %v", got)
		}
	}
}

func TestLogSoftmaxIsLogOfSoftmax(t *testing.T) {
	x := floatTensor(t, []int64{1, 2}, []float32{0, 0})
	out := runOp(t, newSoftmax("LogSoftmax"), []*tensor.Tensor{x})
	// Uniform input over 2 classes: softmax = [0.5, 0.5], log = [-ln2, -ln2]
	assertFloatsClose(t, out[0].Float32s(), []float32{-0.6931472, -0.6931472}, 1e-5)
}
