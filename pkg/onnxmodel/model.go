// Package onnxmodel implements the parser-to-core contract of spec
// §6.1: a reduced, in-memory model the engine converts into a
// Graph IR. Two producers of SimpleONNXModel are provided — a minimal
// ONNX protobuf wire reader and a JSON mirror for tests/fixtures — but
// callers may build a SimpleONNXModel by any other means too; the
// struct itself is the contract the engine depends on, not either
// parser.
package onnxmodel

// InputInfo describes one declared graph input (§6.1).
type InputInfo struct {
	Name     string
	DataType int64
	// Dims holds declared dimensions; a negative entry denotes a
	// dynamic dimension (§6.1).
	Dims []int64
}

// Initializer describes one constant tensor carried by the model
// (weights, biases, etc.).
type Initializer struct {
	Name     string
	DataType int64
	Dims     []int64
	RawData  []byte
}

// AttributeValue is the reduced form of one ONNX NodeProto attribute.
// Exactly one of the typed fields is meaningful, selected by Kind.
type AttributeValue struct {
	Name string
	Kind AttributeKind

	Int     int64
	Float   float64
	Str     string
	Ints    []int64
	Floats  []float64
	Strings []string
}

// AttributeKind mirrors the ONNX AttributeProto.AttributeType enum,
// reduced to the variants §4.4/§9 require the engine to model.
type AttributeKind int

const (
	AttrUnspecified AttributeKind = iota
	AttrInt
	AttrFloat
	AttrString
	AttrInts
	AttrFloats
	AttrStrings
)

// NodeInfo describes one ONNX NodeProto (§6.1).
type NodeInfo struct {
	Name       string
	OpType     string
	Inputs     []string
	Outputs    []string
	Attributes []AttributeValue
}

// SimpleONNXModel is the reduced, in-memory model that constitutes the
// parser-to-core contract (§6.1). Session.Load consumes exactly this
// shape regardless of which concrete parser produced it.
type SimpleONNXModel struct {
	ModelVersion int64
	InputInfos   []InputInfo
	OutputNames  []string
	Initializers []Initializer
	Nodes        []NodeInfo
}
