package optimizer

import (
	"github.com/luocf/inferunity/pkg/ir"
	"github.com/luocf/inferunity/pkg/operator"
)

// OperatorFusionPass recognizes four adjacent-node patterns and
// rewrites each matched chain into a single fused node, so the
// execution engine pays one node-dispatch instead of two or three:
//
//	Conv -> BatchNormalization -> Relu  =>  FusedConvBNReLU
//	Conv -> Relu                        =>  FusedConvReLU
//	BatchNormalization -> Relu          =>  FusedBNReLU
//	MatMul -> Add                       =>  FusedMatMulAdd
//
// A match requires the intermediate value(s) to have exactly one
// consumer and not be declared graph outputs — fusing past a value
// another node (or the caller) still needs would silently drop it.
type OperatorFusionPass struct{}

func (p *OperatorFusionPass) Name() string { return "operator_fusion" }

// Dependencies requires dead code elimination to have already run, so
// fusion never tries to match against a node its consumer has already
// been pruned away from.
func (p *OperatorFusionPass) Dependencies() []string {
	return []string{"dead_code_elimination"}
}

func (p *OperatorFusionPass) Run(g *ir.Graph, reg *operator.Registry) (bool, error) {
	changed := false
	for _, node := range g.Nodes() {
		n, ok := g.Node(node.ID())
		if !ok {
			continue
		}
		switch n.OpType() {
		case "Conv":
			if tryFuseConvChain(g, n) {
				changed = true
			}
		case "BatchNormalization":
			if tryFuseBNReLU(g, n) {
				changed = true
			}
		case "MatMul":
			if tryFuseMatMulAdd(g, n) {
				changed = true
			}
		}
	}
	return changed, nil
}

func singleUnexportedConsumer(v ir.Value) (ir.Node, bool) {
	if v.IsGraphOutput() {
		return ir.Node{}, false
	}
	consumers := v.Consumers()
	if len(consumers) != 1 {
		return ir.Node{}, false
	}
	return consumers[0], true
}

func tryFuseConvChain(g *ir.Graph, conv ir.Node) bool {
	outs := conv.Outputs()
	if len(outs) != 1 {
		return false
	}
	next, ok := singleUnexportedConsumer(outs[0])
	if !ok {
		return false
	}

	switch next.OpType() {
	case "BatchNormalization":
		bnOuts := next.Outputs()
		if len(bnOuts) != 1 {
			return false
		}
		relu, ok := singleUnexportedConsumer(bnOuts[0])
		if !ok || relu.OpType() != "Relu" {
			return false
		}
		fuseConvBNReLU(g, conv, next, relu)
		return true
	case "Relu":
		fuseConvReLU(g, conv, next)
		return true
	}
	return false
}

func tryFuseBNReLU(g *ir.Graph, bn ir.Node) bool {
	inputs := bn.Inputs()
	if len(inputs) == 0 {
		return false
	}
	if prod, ok := inputs[0].Producer(); ok && prod.OpType() == "Conv" {
		if convOuts := prod.Outputs(); len(convOuts) == 1 {
			if _, single := singleUnexportedConsumer(convOuts[0]); single {
				// Defer to tryFuseConvChain, which handles this pair
				// (as a 3-chain with a trailing Relu, or leaves it
				// alone if there is none).
				return false
			}
		}
	}

	outs := bn.Outputs()
	if len(outs) != 1 {
		return false
	}
	relu, ok := singleUnexportedConsumer(outs[0])
	if !ok || relu.OpType() != "Relu" {
		return false
	}
	fuseBNReLU(g, bn, relu)
	return true
}

func tryFuseMatMulAdd(g *ir.Graph, matmul ir.Node) bool {
	outs := matmul.Outputs()
	if len(outs) != 1 {
		return false
	}
	add, ok := singleUnexportedConsumer(outs[0])
	if !ok || add.OpType() != "Add" {
		return false
	}
	addIns := add.Inputs()
	if len(addIns) != 2 {
		return false
	}
	fuseMatMulAdd(g, matmul, add)
	return true
}

func mergeAttrs(primary, secondary ir.AttributeBag) ir.AttributeBag {
	out := primary.Clone()
	for k, v := range secondary {
		if _, exists := out[k]; !exists {
			out[k] = v
		}
	}
	return out
}

func fuseConvBNReLU(g *ir.Graph, conv, bn, relu ir.Node) {
	convIns := conv.Inputs()
	bnIns := bn.Inputs()
	finalOut := relu.Outputs()[0]
	attrs := mergeAttrs(conv.Attrs(), bn.Attrs())

	combined := append(append([]ir.Value{}, convIns...), bnIns[1:]...)

	g.RemoveNode(conv)
	g.RemoveNode(bn)
	g.RemoveNode(relu)

	fused := g.AddNode("FusedConvBNReLU", conv.Name()+"_fused_conv_bn_relu")
	fused.SetAttrs(attrs)
	for _, v := range combined {
		g.Connect(fused, v)
	}
	g.Produce(fused, finalOut)
}

func fuseConvReLU(g *ir.Graph, conv, relu ir.Node) {
	convIns := conv.Inputs()
	finalOut := relu.Outputs()[0]
	attrs := conv.Attrs().Clone()

	g.RemoveNode(conv)
	g.RemoveNode(relu)

	fused := g.AddNode("FusedConvReLU", conv.Name()+"_fused_conv_relu")
	fused.SetAttrs(attrs)
	for _, v := range convIns {
		g.Connect(fused, v)
	}
	g.Produce(fused, finalOut)
}

func fuseBNReLU(g *ir.Graph, bn, relu ir.Node) {
	bnIns := bn.Inputs()
	finalOut := relu.Outputs()[0]
	attrs := bn.Attrs().Clone()

	g.RemoveNode(bn)
	g.RemoveNode(relu)

	fused := g.AddNode("FusedBNReLU", bn.Name()+"_fused_bn_relu")
	fused.SetAttrs(attrs)
	for _, v := range bnIns {
		g.Connect(fused, v)
	}
	g.Produce(fused, finalOut)
}

func fuseMatMulAdd(g *ir.Graph, matmul, add ir.Node) {
	mmIns := matmul.Inputs()
	mmOut := matmul.Outputs()[0]
	addIns := add.Inputs()
	finalOut := add.Outputs()[0]
	attrs := matmul.Attrs().Clone()

	bias := addIns[0]
	if bias.ID() == mmOut.ID() {
		bias = addIns[1]
	}
	combined := append(append([]ir.Value{}, mmIns...), bias)

	g.RemoveNode(matmul)
	g.RemoveNode(add)

	fused := g.AddNode("FusedMatMulAdd", matmul.Name()+"_fused_matmul_add")
	fused.SetAttrs(attrs)
	for _, v := range combined {
		g.Connect(fused, v)
	}
	g.Produce(fused, finalOut)
}
