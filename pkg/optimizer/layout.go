package optimizer

import (
	"github.com/luocf/inferunity/pkg/ir"
	"github.com/luocf/inferunity/pkg/operator"
	"github.com/luocf/inferunity/pkg/tensor"
)

// nchwOnlyOps always prefer NCHW regardless of what layout their input
// arrives in; every other op_type inherits its first input's layout
// (§4.3).
var nchwOnlyOps = map[string]bool{
	"Conv":               true,
	"MaxPool":            true,
	"AveragePool":        true,
	"BatchNormalization": true,
}

// MemoryLayoutPass assigns a preferred layout to every Node based on
// its op_type, propagates the chosen layout onto each node's outputs,
// and splices in an explicit Transpose node wherever a consumer's
// preferred layout differs from the Value it reads — rather than
// leaving the mismatch for a kernel to discover (and potentially
// misinterpret) at execute time.
type MemoryLayoutPass struct{}

func (p *MemoryLayoutPass) Name() string { return "memory_layout_optimization" }

func (p *MemoryLayoutPass) Dependencies() []string {
	return []string{"dead_code_elimination"}
}

// layoutEdge identifies one source-value/target-layout conversion so
// that two consumers needing the same conversion share a single
// inserted Transpose instead of duplicating it.
type layoutEdge struct {
	from ir.ValueID
	to   tensor.Layout
}

func (p *MemoryLayoutPass) Run(g *ir.Graph, reg *operator.Registry) (bool, error) {
	order, err := g.TopologicalSort()
	if err != nil {
		return false, err
	}

	changed := false
	inserted := map[layoutEdge]ir.Value{}
	for _, n := range order {
		preferred := preferredLayout(n)

		for i, in := range n.Inputs() {
			cur := currentLayout(in)
			if cur == preferred {
				continue
			}

			edge := layoutEdge{from: in.ID(), to: preferred}
			out, ok := inserted[edge]
			if !ok {
				out = insertLayoutTranspose(g, in, cur, preferred)
				inserted[edge] = out
			}
			g.RewireInput(n, i, out)
			changed = true
		}

		for _, out := range n.Outputs() {
			out.SetLayout(preferred)
		}
	}
	return changed, nil
}

// preferredLayout returns the layout n's kernel wants to operate in:
// NCHW unconditionally for the ops that require it, otherwise whatever
// layout its first input already carries.
func preferredLayout(n ir.Node) tensor.Layout {
	if nchwOnlyOps[n.OpType()] {
		return tensor.NCHW
	}
	ins := n.Inputs()
	if len(ins) == 0 {
		return tensor.NCHW
	}
	return currentLayout(ins[0])
}

// currentLayout favors a Value's attached Tensor (the authoritative
// source for constants/initializers and declared inputs) and falls
// back to the advisory layout tag a producing node may have set.
func currentLayout(v ir.Value) tensor.Layout {
	if t := v.Tensor(); t != nil {
		return t.Layout()
	}
	return v.Layout()
}

// insertLayoutTranspose splices a Transpose node between in and its
// consumer, producing a fresh Value tagged with the target layout.
func insertLayoutTranspose(g *ir.Graph, in ir.Value, from, to tensor.Layout) ir.Value {
	suffix := "nchw"
	if to == tensor.NHWC {
		suffix = "nhwc"
	}

	out := g.AddValue(in.Name() + "_" + suffix)
	out.SetDType(in.DType())
	out.SetLayout(to)
	if in.Shape().Rank() == 4 {
		out.SetShape(permuteShape(in.Shape(), transposePerm(from, to)))
	}

	transpose := g.AddNode("Transpose", in.Name()+"_to_"+suffix)
	transpose.SetAttrs(ir.AttributeBag{
		"perm": {Kind: ir.AttrInts, Ints: transposePerm(from, to)},
	})
	g.Connect(transpose, in)
	g.Produce(transpose, out)
	return out
}

// transposePerm returns the perm attribute translating from's axis
// order to to's (§4.3: NCHW<->NHWC perms are {0,2,3,1} and {0,3,1,2}).
func transposePerm(from, to tensor.Layout) []int64 {
	if from == tensor.NCHW && to == tensor.NHWC {
		return []int64{0, 2, 3, 1}
	}
	return []int64{0, 3, 1, 2}
}

func permuteShape(s tensor.Shape, perm []int64) tensor.Shape {
	dims := s.Dims()
	out := make([]int64, len(perm))
	for i, axis := range perm {
		out[i] = dims[axis]
	}
	return tensor.NewShape(out...)
}
