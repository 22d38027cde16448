package operator

import (
	"testing"

	"github.com/luocf/inferunity/pkg/ir"
	"github.com/luocf/inferunity/pkg/tensor"
)

func TestReshapeInfersSingleNegativeOneDimension(t *testing.T) {
	x := floatTensor(t, []int64{2, 3}, []float32{1, 2, 3, 4, 5, 6})
	reshape := &Reshape{}
	reshape.SetAttributes(ir.AttributeBag{
		"shape": {Kind: ir.AttrInts, Ints: []int64{-1, 2}},
	})
	out := runOp(t, reshape, []*tensor.Tensor{x})
	if out[0].Shape().Dim(0) != 3 || out[0].Shape().Dim(1) != 2 {
		t.Fatalf("expected shape [3,2], got %s", out[0].Shape())
	}
	assertFloatsClose(t, out[0].Float32s(), []float32{1, 2, 3, 4, 5, 6}, 1e-6)
}

func TestReshapeRejectsTwoNegativeOneDimensions(t *testing.T) {
	x := floatTensor(t, []int64{2, 3}, []float32{1, 2, 3, 4, 5, 6})
	reshape := &Reshape{}
	reshape.SetAttributes(ir.AttributeBag{
		"shape": {Kind: ir.AttrInts, Ints: []int64{-1, -1}},
	})
	if _, err := reshape.InferOutputShape([]*tensor.Tensor{x}); err == nil {
		t.Fatalf("expected error for two -1 dimensions")
	}
}

func TestConcatJoinsAlongAxis(t *testing.T) {
	a := floatTensor(t, []int64{1, 2}, []float32{1, 2})
	b := floatTensor(t, []int64{1, 2}, []float32{3, 4})
	concat := &Concat{}
	concat.SetAttributes(ir.AttributeBag{"axis": {Kind: ir.AttrInt, Int: 1}})
	out := runOp(t, concat, []*tensor.Tensor{a, b})
	assertFloatsClose(t, out[0].Float32s(), []float32{1, 2, 3, 4}, 1e-6)
}

func TestTransposeDefaultPermReversesAxes(t *testing.T) {
	x := floatTensor(t, []int64{2, 3}, []float32{1, 2, 3, 4, 5, 6})
	out := runOp(t, &Transpose{}, []*tensor.Tensor{x})
	if out[0].Shape().Dim(0) != 3 || out[0].Shape().Dim(1) != 2 {
		t.Fatalf("expected shape [3,2], got %s", out[0].Shape())
	}
	assertFloatsClose(t, out[0].Float32s(), []float32{1, 4, 2, 5, 3, 6}, 1e-6)
}

func TestGatherSelectsRowsAlongAxis(t *testing.T) {
	data := floatTensor(t, []int64{3, 2}, []float32{10, 11, 20, 21, 30, 31})
	idx := int64Tensor(t, []int64{2}, []int64{2, 0})
	out := runOp(t, &Gather{}, []*tensor.Tensor{data, idx})
	assertFloatsClose(t, out[0].Float32s(), []float32{30, 31, 10, 11}, 1e-6)
}

func TestGatherRejectsOutOfRangeIndex(t *testing.T) {
	data := floatTensor(t, []int64{2}, []float32{1, 2})
	idx := int64Tensor(t, []int64{1}, []int64{5})
	g := &Gather{}
	shapes, err := g.InferOutputShape([]*tensor.Tensor{data, idx})
	if err != nil {
		t.Fatalf("InferOutputShape: %v", err)
	}
	out, _ := tensor.New(shapes[0], tensor.Float32)
	if err := g.Execute([]*tensor.Tensor{data, idx}, []*tensor.Tensor{out}, &ExecutionContext{}); err == nil {
		t.Fatalf("expected out-of-range error")
	}
}

func TestSliceClampsNegativeStartsAndEnds(t *testing.T) {
	x := floatTensor(t, []int64{5}, []float32{0, 1, 2, 3, 4})
	slice := &Slice{}
	slice.SetAttributes(ir.AttributeBag{
		"starts": {Kind: ir.AttrInts, Ints: []int64{-2}},
		"ends":   {Kind: ir.AttrInts, Ints: []int64{100}},
		"axes":   {Kind: ir.AttrInts, Ints: []int64{0}},
	})
	out := runOp(t, slice, []*tensor.Tensor{x})
	assertFloatsClose(t, out[0].Float32s(), []float32{3, 4}, 1e-6)
}

func TestEmbeddingGathersTableRows(t *testing.T) {
	table := floatTensor(t, []int64{3, 2}, []float32{1, 1, 2, 2, 3, 3})
	idx := int64Tensor(t, []int64{2}, []int64{1, 0})
	out := runOp(t, &Embedding{}, []*tensor.Tensor{table, idx})
	assertFloatsClose(t, out[0].Float32s(), []float32{2, 2, 1, 1}, 1e-6)
}
