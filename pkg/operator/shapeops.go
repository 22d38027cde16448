package operator

import (
	ierrors "github.com/luocf/inferunity/pkg/errors"
	"github.com/luocf/inferunity/pkg/tensor"
)

// Reshape reinterprets data under a new shape, honoring the single -1
// placeholder rule (§8). The target shape is read from the attribute
// "shape" when present, otherwise from the second input tensor — this
// mirrors the attribute-over-input precedence the Slice operator below
// also follows.
type Reshape struct{ Base }

func (o *Reshape) Name() string { return "Reshape" }

func (o *Reshape) ValidateInputs(inputs []*tensor.Tensor) error {
	return requireMinCount(inputs, 1, "Reshape")
}

func (o *Reshape) targetDims(inputs []*tensor.Tensor) []int64 {
	if dims, ok := o.Attrs.Ints("shape"); ok {
		return dims
	}
	if len(inputs) >= 2 && inputs[1] != nil {
		return inputs[1].Int64s()
	}
	return nil
}

func (o *Reshape) InferOutputShape(inputs []*tensor.Tensor) ([]tensor.Shape, error) {
	target := o.targetDims(inputs)
	if target == nil {
		return nil, ierrors.New(ierrors.InvalidArgument, "Reshape requires a \"shape\" attribute or a shape input tensor")
	}
	resolved, err := tensor.ResolveReshape(inputs[0].Shape().NumElements(), target)
	if err != nil {
		return nil, ierrors.New(ierrors.InvalidArgument, "%v", err)
	}
	return []tensor.Shape{tensor.NewShape(resolved...)}, nil
}

func (o *Reshape) Execute(inputs, outputs []*tensor.Tensor, ctx *ExecutionContext) error {
	return outputs[0].SetFloat32s(inputs[0].Float32s())
}

// Concat joins tensors along axis, which may be negative (counted from
// the end).
type Concat struct{ Base }

func (o *Concat) Name() string { return "Concat" }

func (o *Concat) axis(rank int64) int64 {
	a := o.Attrs.IntOr("axis", 0)
	if a < 0 {
		a += rank
	}
	return a
}

func (o *Concat) ValidateInputs(inputs []*tensor.Tensor) error {
	if err := requireMinCount(inputs, 1, "Concat"); err != nil {
		return err
	}
	for _, t := range inputs {
		if err := requireFloat32(t, "Concat"); err != nil {
			return err
		}
	}
	return nil
}

func (o *Concat) InferOutputShape(inputs []*tensor.Tensor) ([]tensor.Shape, error) {
	first := inputs[0].Shape()
	axis := o.axis(int64(first.Rank()))
	dims := first.Dims()
	var total int64
	for _, t := range inputs {
		d := t.Shape().Dims()
		total += d[axis]
	}
	dims[axis] = total
	return []tensor.Shape{tensor.NewShape(dims...)}, nil
}

func (o *Concat) Execute(inputs, outputs []*tensor.Tensor, ctx *ExecutionContext) error {
	outShape := outputs[0].Shape()
	axis := o.axis(int64(outShape.Rank()))
	dims := outShape.Dims()

	var outer int64 = 1
	for i := int64(0); i < axis; i++ {
		outer *= dims[i]
	}
	var inner int64 = 1
	for i := axis + 1; i < int64(outShape.Rank()); i++ {
		inner *= dims[i]
	}

	out := make([]float32, outShape.NumElements())
	var axisOffset int64
	for _, t := range inputs {
		axisSize := t.Shape().Dim(int(axis))
		data := t.Float32s()
		for oIdx := int64(0); oIdx < outer; oIdx++ {
			for a := int64(0); a < axisSize; a++ {
				srcBase := (oIdx*axisSize + a) * inner
				dstBase := (oIdx*dims[axis] + axisOffset + a) * inner
				copy(out[dstBase:dstBase+inner], data[srcBase:srcBase+inner])
			}
		}
		axisOffset += axisSize
	}
	return outputs[0].SetFloat32s(out)
}

// Split is the inverse of Concat: one input divided into len(outputs)
// pieces along axis, either evenly or per the "split" attribute.
type Split struct{ Base }

func (o *Split) Name() string { return "Split" }

func (o *Split) axis(rank int64) int64 {
	a := o.Attrs.IntOr("axis", 0)
	if a < 0 {
		a += rank
	}
	return a
}

func (o *Split) ValidateInputs(inputs []*tensor.Tensor) error {
	if err := requireCount(inputs, 1, "Split"); err != nil {
		return err
	}
	return requireFloat32(inputs[0], "Split")
}

func (o *Split) sizes(axisSize int64) ([]int64, error) {
	if sizes, ok := o.Attrs.Ints("split"); ok {
		var total int64
		for _, s := range sizes {
			total += s
		}
		if total != axisSize {
			return nil, ierrors.New(ierrors.InvalidArgument, "Split sizes sum to %d, axis has %d elements", total, axisSize)
		}
		return sizes, nil
	}
	numOutputs := o.Attrs.IntOr("num_outputs", 2)
	if axisSize%numOutputs != 0 {
		return nil, ierrors.New(ierrors.InvalidArgument, "Split axis size %d not evenly divisible by %d outputs", axisSize, numOutputs)
	}
	sizes := make([]int64, numOutputs)
	each := axisSize / numOutputs
	for i := range sizes {
		sizes[i] = each
	}
	return sizes, nil
}

func (o *Split) InferOutputShape(inputs []*tensor.Tensor) ([]tensor.Shape, error) {
	in := inputs[0].Shape()
	axis := o.axis(int64(in.Rank()))
	sizes, err := o.sizes(in.Dim(int(axis)))
	if err != nil {
		return nil, err
	}
	out := make([]tensor.Shape, len(sizes))
	for i, sz := range sizes {
		dims := in.Dims()
		dims[axis] = sz
		out[i] = tensor.NewShape(dims...)
	}
	return out, nil
}

func (o *Split) Execute(inputs, outputs []*tensor.Tensor, ctx *ExecutionContext) error {
	in := inputs[0]
	inShape := in.Shape()
	axis := o.axis(int64(inShape.Rank()))
	dims := inShape.Dims()

	var outer int64 = 1
	for i := int64(0); i < axis; i++ {
		outer *= dims[i]
	}
	var inner int64 = 1
	for i := axis + 1; i < int64(inShape.Rank()); i++ {
		inner *= dims[i]
	}

	data := in.Float32s()
	var axisOffset int64
	for _, out := range outputs {
		axisSize := out.Shape().Dim(int(axis))
		buf := make([]float32, out.Shape().NumElements())
		for oIdx := int64(0); oIdx < outer; oIdx++ {
			for a := int64(0); a < axisSize; a++ {
				srcBase := (oIdx*dims[axis] + axisOffset + a) * inner
				dstBase := (oIdx*axisSize + a) * inner
				copy(buf[dstBase:dstBase+inner], data[srcBase:srcBase+inner])
			}
		}
		if err := out.SetFloat32s(buf); err != nil {
			return err
		}
		axisOffset += axisSize
	}
	return nil
}

// Transpose permutes axes according to the "perm" attribute, defaulting
// to full reversal when absent.
type Transpose struct{ Base }

func (o *Transpose) Name() string { return "Transpose" }

func (o *Transpose) perm(rank int) []int64 {
	if p, ok := o.Attrs.Ints("perm"); ok {
		return p
	}
	p := make([]int64, rank)
	for i := range p {
		p[i] = int64(rank - 1 - i)
	}
	return p
}

func (o *Transpose) ValidateInputs(inputs []*tensor.Tensor) error {
	if err := requireCount(inputs, 1, "Transpose"); err != nil {
		return err
	}
	return requireFloat32(inputs[0], "Transpose")
}

func (o *Transpose) InferOutputShape(inputs []*tensor.Tensor) ([]tensor.Shape, error) {
	in := inputs[0].Shape()
	perm := o.perm(in.Rank())
	if len(perm) != in.Rank() {
		return nil, ierrors.New(ierrors.InvalidArgument, "Transpose perm length %d does not match input rank %d", len(perm), in.Rank())
	}
	dims := in.Dims()
	out := make([]int64, len(dims))
	for i, p := range perm {
		out[i] = dims[p]
	}
	return []tensor.Shape{tensor.NewShape(out...)}, nil
}

func (o *Transpose) Execute(inputs, outputs []*tensor.Tensor, ctx *ExecutionContext) error {
	in := inputs[0]
	inShape := in.Shape()
	perm := o.perm(inShape.Rank())
	dims := inShape.Dims()
	rank := len(dims)

	inStrides := make([]int64, rank)
	var s int64 = 1
	for i := rank - 1; i >= 0; i-- {
		inStrides[i] = s
		s *= dims[i]
	}

	outDims := outputs[0].Shape().Dims()
	outStrides := make([]int64, rank)
	s = 1
	for i := rank - 1; i >= 0; i-- {
		outStrides[i] = s
		s *= outDims[i]
	}

	data := in.Float32s()
	out := make([]float32, len(data))
	total := int64(len(data))
	coords := make([]int64, rank)
	for flat := int64(0); flat < total; flat++ {
		rem := flat
		for i := 0; i < rank; i++ {
			coords[i] = rem / outStrides[i]
			rem %= outStrides[i]
		}
		var srcIdx int64
		for i, p := range perm {
			srcIdx += coords[i] * inStrides[p]
		}
		out[flat] = data[srcIdx]
	}
	return outputs[0].SetFloat32s(out)
}

// Gather selects rows (or sub-tensors along axis) of data indexed by
// an int64 indices tensor. Out-of-range indices are rejected with
// INVALID_ARGUMENT at execute time, since index values are data that
// ValidateInputs must not inspect (§4.4).
type Gather struct{ Base }

func (o *Gather) Name() string { return "Gather" }

func (o *Gather) axis(rank int64) int64 {
	a := o.Attrs.IntOr("axis", 0)
	if a < 0 {
		a += rank
	}
	return a
}

func (o *Gather) ValidateInputs(inputs []*tensor.Tensor) error {
	if err := requireCount(inputs, 2, "Gather"); err != nil {
		return err
	}
	return requireFloat32(inputs[0], "Gather")
}

func (o *Gather) InferOutputShape(inputs []*tensor.Tensor) ([]tensor.Shape, error) {
	data, idx := inputs[0].Shape(), inputs[1].Shape()
	axis := o.axis(int64(data.Rank()))
	dataDims := data.Dims()
	out := append([]int64{}, dataDims[:axis]...)
	out = append(out, idx.Dims()...)
	out = append(out, dataDims[axis+1:]...)
	return []tensor.Shape{tensor.NewShape(out...)}, nil
}

func (o *Gather) Execute(inputs, outputs []*tensor.Tensor, ctx *ExecutionContext) error {
	data, idxT := inputs[0], inputs[1]
	dataShape := data.Shape()
	axis := o.axis(int64(dataShape.Rank()))
	dims := dataShape.Dims()
	axisSize := dims[axis]

	var outer int64 = 1
	for i := int64(0); i < axis; i++ {
		outer *= dims[i]
	}
	var inner int64 = 1
	for i := axis + 1; i < int64(dataShape.Rank()); i++ {
		inner *= dims[i]
	}

	indices := idxT.Int64s()
	dataBuf := data.Float32s()
	out := make([]float32, 0, outputs[0].Shape().NumElements())

	for oIdx := int64(0); oIdx < outer; oIdx++ {
		for _, gi := range indices {
			if gi < 0 {
				gi += axisSize
			}
			if gi < 0 || gi >= axisSize {
				return ierrors.New(ierrors.InvalidArgument, "Gather index %d out of range for axis size %d", gi, axisSize)
			}
			base := (oIdx*axisSize + gi) * inner
			out = append(out, dataBuf[base:base+inner]...)
		}
	}
	return outputs[0].SetFloat32s(out)
}

// Slice extracts a sub-range per axis. Start/end/axes/step parameters
// are read from attributes when present; otherwise from input tensors
// 2-5, matching ONNX's Slice-10+ signature. Negative starts/ends are
// clamped into range rather than rejected (§8).
type Slice struct{ Base }

func (o *Slice) Name() string { return "Slice" }

func (o *Slice) ValidateInputs(inputs []*tensor.Tensor) error {
	if err := requireMinCount(inputs, 1, "Slice"); err != nil {
		return err
	}
	return requireFloat32(inputs[0], "Slice")
}

func (o *Slice) params(inputs []*tensor.Tensor, rank int) (starts, ends, axes, steps []int64) {
	if s, ok := o.Attrs.Ints("starts"); ok {
		starts = s
		ends, _ = o.Attrs.Ints("ends")
		axes, _ = o.Attrs.Ints("axes")
		steps, _ = o.Attrs.Ints("steps")
	} else {
		if len(inputs) > 1 {
			starts = inputs[1].Int64s()
		}
		if len(inputs) > 2 {
			ends = inputs[2].Int64s()
		}
		if len(inputs) > 3 {
			axes = inputs[3].Int64s()
		}
		if len(inputs) > 4 {
			steps = inputs[4].Int64s()
		}
	}
	if axes == nil {
		axes = make([]int64, len(starts))
		for i := range axes {
			axes[i] = int64(i)
		}
	}
	if steps == nil {
		steps = make([]int64, len(starts))
		for i := range steps {
			steps[i] = 1
		}
	}
	_ = rank
	return
}

func clampSliceIndex(v, dim int64) int64 {
	if v < 0 {
		v += dim
	}
	if v < 0 {
		v = 0
	}
	if v > dim {
		v = dim
	}
	return v
}

func (o *Slice) InferOutputShape(inputs []*tensor.Tensor) ([]tensor.Shape, error) {
	in := inputs[0].Shape()
	dims := in.Dims()
	starts, ends, axes, steps := o.params(inputs, in.Rank())
	out := append([]int64{}, dims...)
	for i, axis := range axes {
		dim := dims[axis]
		start := clampSliceIndex(starts[i], dim)
		end := clampSliceIndex(ends[i], dim)
		step := steps[i]
		if step == 0 {
			return nil, ierrors.New(ierrors.InvalidArgument, "Slice step must be non-zero")
		}
		var count int64
		if step > 0 {
			if end > start {
				count = (end - start + step - 1) / step
			}
		} else {
			if start > end {
				count = (start - end - step - 1) / (-step)
			}
		}
		out[axis] = count
	}
	return []tensor.Shape{tensor.NewShape(out...)}, nil
}

func (o *Slice) Execute(inputs, outputs []*tensor.Tensor, ctx *ExecutionContext) error {
	in := inputs[0]
	inShape := in.Shape()
	dims := inShape.Dims()
	rank := inShape.Rank()
	starts, ends, axes, steps := o.params(inputs, rank)

	effStart := make([]int64, rank)
	effStep := make([]int64, rank)
	for i := range effStep {
		effStep[i] = 1
	}
	for i, axis := range axes {
		effStart[axis] = clampSliceIndex(starts[i], dims[axis])
		effStep[axis] = steps[i]
		_ = ends
	}

	inStrides := make([]int64, rank)
	var s int64 = 1
	for i := rank - 1; i >= 0; i-- {
		inStrides[i] = s
		s *= dims[i]
	}

	outShape := outputs[0].Shape()
	outDims := outShape.Dims()
	total := outShape.NumElements()
	data := in.Float32s()
	out := make([]float32, total)
	coords := make([]int64, rank)

	outStrides := make([]int64, rank)
	s = 1
	for i := rank - 1; i >= 0; i-- {
		outStrides[i] = s
		s *= outDims[i]
	}

	for flat := int64(0); flat < total; flat++ {
		rem := flat
		for i := 0; i < rank; i++ {
			coords[i] = rem / outStrides[i]
			rem %= outStrides[i]
		}
		var srcIdx int64
		for i := 0; i < rank; i++ {
			srcIdx += (effStart[i] + coords[i]*effStep[i]) * inStrides[i]
		}
		out[flat] = data[srcIdx]
	}
	return outputs[0].SetFloat32s(out)
}

// Embedding gathers rows of a [vocab, dim] table by an int64 indices
// tensor, producing indices.Shape + [dim].
type Embedding struct{ Base }

func (o *Embedding) Name() string { return "Embedding" }

func (o *Embedding) ValidateInputs(inputs []*tensor.Tensor) error {
	if err := requireCount(inputs, 2, "Embedding"); err != nil {
		return err
	}
	if inputs[0].Shape().Rank() != 2 {
		return ierrors.New(ierrors.InvalidArgument, "Embedding table must be rank 2, got %d", inputs[0].Shape().Rank())
	}
	return requireFloat32(inputs[0], "Embedding")
}

func (o *Embedding) InferOutputShape(inputs []*tensor.Tensor) ([]tensor.Shape, error) {
	table, idx := inputs[0].Shape(), inputs[1].Shape()
	dim := table.Dim(1)
	out := append(idx.Dims(), dim)
	return []tensor.Shape{tensor.NewShape(out...)}, nil
}

func (o *Embedding) Execute(inputs, outputs []*tensor.Tensor, ctx *ExecutionContext) error {
	table, idxT := inputs[0], inputs[1]
	vocab := table.Shape().Dim(0)
	dim := table.Shape().Dim(1)
	indices := idxT.Int64s()
	tableData := table.Float32s()

	out := make([]float32, 0, int64(len(indices))*dim)
	for _, i := range indices {
		if i < 0 || i >= vocab {
			return ierrors.New(ierrors.InvalidArgument, "Embedding index %d out of range for vocab size %d", i, vocab)
		}
		base := i * dim
		out = append(out, tableData[base:base+dim]...)
	}
	return outputs[0].SetFloat32s(out)
}
