package onnxmodel

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"

	ierrors "github.com/luocf/inferunity/pkg/errors"
)

// ONNX wire field numbers this reader understands. These match the
// public onnx.proto schema; a full, code-generated parser is out of
// scope (§1) — this walks only the fields the reduced model needs and
// skips everything else field-by-field, since real ONNX models carry
// metadata (docstrings, opset imports, training info) this core has
// no use for.
const (
	fieldModelVersion = 5 // ModelProto.model_version (int64)
	fieldModelGraph   = 7 // ModelProto.graph (GraphProto)

	fieldGraphNode        = 1  // GraphProto.node (repeated NodeProto)
	fieldGraphInitializer = 5  // GraphProto.initializer (repeated TensorProto)
	fieldGraphInput       = 11 // GraphProto.input (repeated ValueInfoProto)
	fieldGraphOutput      = 12 // GraphProto.output (repeated ValueInfoProto)

	fieldNodeInput     = 1 // NodeProto.input (repeated string)
	fieldNodeOutput    = 2 // NodeProto.output (repeated string)
	fieldNodeName      = 3 // NodeProto.name (string)
	fieldNodeOpType    = 4 // NodeProto.op_type (string)
	fieldNodeAttribute = 5 // NodeProto.attribute (repeated AttributeProto)

	fieldAttrName    = 1  // AttributeProto.name (string)
	fieldAttrFloat   = 2  // AttributeProto.f (float)
	fieldAttrInt     = 3  // AttributeProto.i (int64)
	fieldAttrString  = 4  // AttributeProto.s (bytes)
	fieldAttrFloats  = 7  // AttributeProto.floats (repeated float)
	fieldAttrInts    = 8  // AttributeProto.ints (repeated int64)
	fieldAttrStrings = 9  // AttributeProto.strings (repeated bytes)
	fieldAttrType    = 20 // AttributeProto.type (enum)

	fieldValueInfoName = 1 // ValueInfoProto.name (string)
	fieldValueInfoType = 2 // ValueInfoProto.type (TypeProto)

	fieldTypeTensor      = 1 // TypeProto.tensor_type (TypeProto.Tensor)
	fieldTensorTypeElem  = 1 // TypeProto.Tensor.elem_type (int32)
	fieldTensorTypeShape = 2 // TypeProto.Tensor.shape (TensorShapeProto)
	fieldShapeDim        = 1 // TensorShapeProto.dim (repeated Dimension)
	fieldDimValue        = 1 // TensorShapeProto.Dimension.dim_value (int64, oneof)
	fieldDimParam        = 2 // TensorShapeProto.Dimension.dim_param (string, oneof -> dynamic)
	fieldTensorDims      = 1 // TensorProto.dims (repeated int64)
	fieldTensorDataType  = 2 // TensorProto.data_type (int32)
	fieldTensorNameField = 8 // TensorProto.name (string)
	fieldTensorRawData   = 9 // TensorProto.raw_data (bytes)
)

// attrTypeEnum mirrors AttributeProto.AttributeType values needed to
// disambiguate which of AttributeProto's oneof-like fields was set.
const (
	attrTypeFloat   = 1
	attrTypeInt     = 2
	attrTypeString  = 3
	attrTypeFloats  = 6
	attrTypeInts    = 7
	attrTypeStrings = 8
)

// ParseProtobuf decodes ONNX model bytes in standard protobuf wire
// form into a SimpleONNXModel, reading field-by-field with protowire
// rather than a generated message type (§1, §6.1-EXPANSION). Unknown
// or unsupported fields are skipped, not rejected.
func ParseProtobuf(data []byte) (*SimpleONNXModel, error) {
	m := &SimpleONNXModel{}
	b := data
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, ierrors.New(ierrors.RuntimeError, "malformed ONNX model: bad tag: %v", protowire.ParseError(n))
		}
		b = b[n:]

		switch num {
		case fieldModelVersion:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, tagErr("model_version", n)
			}
			m.ModelVersion = int64(v)
			b = b[n:]
		case fieldModelGraph:
			graphBytes, n, err := consumeBytesField(b, typ)
			if err != nil {
				return nil, fmt.Errorf("graph field: %w", err)
			}
			if err := parseGraph(graphBytes, m); err != nil {
				return nil, err
			}
			b = b[n:]
		default:
			n, err := skipField(b, typ)
			if err != nil {
				return nil, err
			}
			b = b[n:]
		}
	}
	return m, nil
}

func parseGraph(b []byte, m *SimpleONNXModel) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return tagErr("graph", n)
		}
		b = b[n:]

		switch num {
		case fieldGraphNode:
			nodeBytes, n, err := consumeBytesField(b, typ)
			if err != nil {
				return fmt.Errorf("node field: %w", err)
			}
			node, err := parseNode(nodeBytes)
			if err != nil {
				return err
			}
			m.Nodes = append(m.Nodes, node)
			b = b[n:]
		case fieldGraphInitializer:
			tensorBytes, n, err := consumeBytesField(b, typ)
			if err != nil {
				return fmt.Errorf("initializer field: %w", err)
			}
			init, err := parseInitializer(tensorBytes)
			if err != nil {
				return err
			}
			m.Initializers = append(m.Initializers, init)
			b = b[n:]
		case fieldGraphInput:
			viBytes, n, err := consumeBytesField(b, typ)
			if err != nil {
				return fmt.Errorf("input field: %w", err)
			}
			info, err := parseValueInfo(viBytes)
			if err != nil {
				return err
			}
			m.InputInfos = append(m.InputInfos, info)
			b = b[n:]
		case fieldGraphOutput:
			viBytes, n, err := consumeBytesField(b, typ)
			if err != nil {
				return fmt.Errorf("output field: %w", err)
			}
			info, err := parseValueInfo(viBytes)
			if err != nil {
				return err
			}
			m.OutputNames = append(m.OutputNames, info.Name)
			b = b[n:]
		default:
			n, err := skipField(b, typ)
			if err != nil {
				return err
			}
			b = b[n:]
		}
	}
	return nil
}

func parseNode(b []byte) (NodeInfo, error) {
	var node NodeInfo
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return node, tagErr("node", n)
		}
		b = b[n:]

		switch num {
		case fieldNodeInput:
			s, n, err := consumeStringField(b, typ)
			if err != nil {
				return node, err
			}
			node.Inputs = append(node.Inputs, s)
			b = b[n:]
		case fieldNodeOutput:
			s, n, err := consumeStringField(b, typ)
			if err != nil {
				return node, err
			}
			node.Outputs = append(node.Outputs, s)
			b = b[n:]
		case fieldNodeName:
			s, n, err := consumeStringField(b, typ)
			if err != nil {
				return node, err
			}
			node.Name = s
			b = b[n:]
		case fieldNodeOpType:
			s, n, err := consumeStringField(b, typ)
			if err != nil {
				return node, err
			}
			node.OpType = s
			b = b[n:]
		case fieldNodeAttribute:
			attrBytes, n, err := consumeBytesField(b, typ)
			if err != nil {
				return node, err
			}
			attr, err := parseAttribute(attrBytes)
			if err != nil {
				return node, err
			}
			node.Attributes = append(node.Attributes, attr)
			b = b[n:]
		default:
			n, err := skipField(b, typ)
			if err != nil {
				return node, err
			}
			b = b[n:]
		}
	}
	return node, nil
}

func parseAttribute(b []byte) (AttributeValue, error) {
	var a AttributeValue
	var declaredType int64
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return a, tagErr("attribute", n)
		}
		b = b[n:]

		switch num {
		case fieldAttrName:
			s, n, err := consumeStringField(b, typ)
			if err != nil {
				return a, err
			}
			a.Name = s
			b = b[n:]
		case fieldAttrFloat:
			v, n := protowire.ConsumeFixed32(b)
			if n < 0 {
				return a, tagErr("attribute.f", n)
			}
			a.Float = float64(math.Float32frombits(v))
			a.Kind = AttrFloat
			b = b[n:]
		case fieldAttrInt:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return a, tagErr("attribute.i", n)
			}
			a.Int = int64(v)
			a.Kind = AttrInt
			b = b[n:]
		case fieldAttrString:
			s, n, err := consumeStringField(b, typ)
			if err != nil {
				return a, err
			}
			a.Str = s
			a.Kind = AttrString
			b = b[n:]
		case fieldAttrFloats:
			v, n := protowire.ConsumeFixed32(b)
			if n < 0 {
				return a, tagErr("attribute.floats", n)
			}
			a.Floats = append(a.Floats, float64(math.Float32frombits(v)))
			a.Kind = AttrFloats
			b = b[n:]
		case fieldAttrInts:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return a, tagErr("attribute.ints", n)
			}
			a.Ints = append(a.Ints, int64(v))
			a.Kind = AttrInts
			b = b[n:]
		case fieldAttrStrings:
			s, n, err := consumeStringField(b, typ)
			if err != nil {
				return a, err
			}
			a.Strings = append(a.Strings, s)
			a.Kind = AttrStrings
			b = b[n:]
		case fieldAttrType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return a, tagErr("attribute.type", n)
			}
			declaredType = int64(v)
			b = b[n:]
		default:
			n, err := skipField(b, typ)
			if err != nil {
				return a, err
			}
			b = b[n:]
		}
	}
	if a.Kind == AttrUnspecified {
		a.Kind = kindFromDeclaredType(declaredType)
	}
	return a, nil
}

func kindFromDeclaredType(t int64) AttributeKind {
	switch t {
	case attrTypeFloat:
		return AttrFloat
	case attrTypeInt:
		return AttrInt
	case attrTypeString:
		return AttrString
	case attrTypeFloats:
		return AttrFloats
	case attrTypeInts:
		return AttrInts
	case attrTypeStrings:
		return AttrStrings
	default:
		return AttrUnspecified
	}
}

func parseValueInfo(b []byte) (InputInfo, error) {
	var info InputInfo
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return info, tagErr("value_info", n)
		}
		b = b[n:]

		switch num {
		case fieldValueInfoName:
			s, n, err := consumeStringField(b, typ)
			if err != nil {
				return info, err
			}
			info.Name = s
			b = b[n:]
		case fieldValueInfoType:
			typeBytes, n, err := consumeBytesField(b, typ)
			if err != nil {
				return info, err
			}
			dataType, dims, err := parseTypeProto(typeBytes)
			if err != nil {
				return info, err
			}
			info.DataType = dataType
			info.Dims = dims
			b = b[n:]
		default:
			n, err := skipField(b, typ)
			if err != nil {
				return info, err
			}
			b = b[n:]
		}
	}
	return info, nil
}

func parseTypeProto(b []byte) (int64, []int64, error) {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return 0, nil, tagErr("type_proto", n)
		}
		b = b[n:]
		if num == fieldTypeTensor {
			tensorTypeBytes, _, err := consumeBytesField(b, typ)
			if err != nil {
				return 0, nil, err
			}
			return parseTensorTypeProto(tensorTypeBytes)
		}
		nn, err := skipField(b, typ)
		if err != nil {
			return 0, nil, err
		}
		b = b[nn:]
	}
	return 0, nil, nil
}

func parseTensorTypeProto(b []byte) (int64, []int64, error) {
	var elemType int64
	var dims []int64
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return 0, nil, tagErr("tensor_type", n)
		}
		b = b[n:]

		switch num {
		case fieldTensorTypeElem:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return 0, nil, tagErr("tensor_type.elem_type", n)
			}
			elemType = int64(v)
			b = b[n:]
		case fieldTensorTypeShape:
			shapeBytes, n, err := consumeBytesField(b, typ)
			if err != nil {
				return 0, nil, err
			}
			d, err := parseTensorShape(shapeBytes)
			if err != nil {
				return 0, nil, err
			}
			dims = d
			b = b[n:]
		default:
			n, err := skipField(b, typ)
			if err != nil {
				return 0, nil, err
			}
			b = b[n:]
		}
	}
	return elemType, dims, nil
}

func parseTensorShape(b []byte) ([]int64, error) {
	var dims []int64
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, tagErr("tensor_shape", n)
		}
		b = b[n:]
		if num == fieldShapeDim {
			dimBytes, n, err := consumeBytesField(b, typ)
			if err != nil {
				return nil, err
			}
			d, err := parseDimension(dimBytes)
			if err != nil {
				return nil, err
			}
			dims = append(dims, d)
			b = b[n:]
			continue
		}
		nn, err := skipField(b, typ)
		if err != nil {
			return nil, err
		}
		b = b[nn:]
	}
	return dims, nil
}

// parseDimension returns the dimension's value, or -1 if it is a
// symbolic dim_param (dynamic dimension, §6.1).
func parseDimension(b []byte) (int64, error) {
	value := int64(-1)
	sawValue := false
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return -1, tagErr("dimension", n)
		}
		b = b[n:]

		switch num {
		case fieldDimValue:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return -1, tagErr("dimension.dim_value", n)
			}
			value = int64(v)
			sawValue = true
			b = b[n:]
		case fieldDimParam:
			_, n, err := consumeStringField(b, typ)
			if err != nil {
				return -1, err
			}
			b = b[n:]
		default:
			n, err := skipField(b, typ)
			if err != nil {
				return -1, err
			}
			b = b[n:]
		}
	}
	if !sawValue {
		return -1, nil
	}
	return value, nil
}

func parseInitializer(b []byte) (Initializer, error) {
	var init Initializer
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return init, tagErr("tensor", n)
		}
		b = b[n:]

		switch num {
		case fieldTensorDims:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return init, tagErr("tensor.dims", n)
			}
			init.Dims = append(init.Dims, int64(v))
			b = b[n:]
		case fieldTensorDataType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return init, tagErr("tensor.data_type", n)
			}
			init.DataType = int64(v)
			b = b[n:]
		case fieldTensorNameField:
			s, n, err := consumeStringField(b, typ)
			if err != nil {
				return init, err
			}
			init.Name = s
			b = b[n:]
		case fieldTensorRawData:
			raw, n, err := consumeBytesField(b, typ)
			if err != nil {
				return init, err
			}
			init.RawData = append([]byte(nil), raw...)
			b = b[n:]
		default:
			n, err := skipField(b, typ)
			if err != nil {
				return init, err
			}
			b = b[n:]
		}
	}
	return init, nil
}

func consumeBytesField(b []byte, typ protowire.Type) ([]byte, int, error) {
	if typ != protowire.BytesType {
		n, err := skipField(b, typ)
		return nil, n, err
	}
	v, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return nil, 0, tagErr("bytes field", n)
	}
	return v, n, nil
}

func consumeStringField(b []byte, typ protowire.Type) (string, int, error) {
	v, n, err := consumeBytesField(b, typ)
	if err != nil {
		return "", n, err
	}
	return string(v), n, nil
}

func skipField(b []byte, typ protowire.Type) (int, error) {
	n := protowire.ConsumeFieldValue(0, typ, b)
	if n < 0 {
		return 0, ierrors.New(ierrors.RuntimeError, "malformed ONNX model: cannot skip field: %v", protowire.ParseError(n))
	}
	return n, nil
}

func tagErr(where string, n int) error {
	return ierrors.New(ierrors.RuntimeError, "malformed ONNX model: %s: %v", where, protowire.ParseError(n))
}
