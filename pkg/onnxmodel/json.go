package onnxmodel

import (
	"encoding/base64"
	"encoding/json"

	"github.com/xeipuuv/gojsonschema"

	ierrors "github.com/luocf/inferunity/pkg/errors"
)

// jsonSchema describes the JSON mirror format (§6.1-EXPANSION): a
// readable stand-in for the protobuf wire form, used by tests and
// fixtures that would otherwise need a binary model checked into the
// repo.
const jsonSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["nodes"],
  "properties": {
    "model_version": {"type": "integer"},
    "inputs": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name"],
        "properties": {
          "name": {"type": "string"},
          "data_type": {"type": "integer"},
          "dims": {"type": "array", "items": {"type": "integer"}}
        }
      }
    },
    "outputs": {"type": "array", "items": {"type": "string"}},
    "initializers": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name"],
        "properties": {
          "name": {"type": "string"},
          "data_type": {"type": "integer"},
          "dims": {"type": "array", "items": {"type": "integer"}},
          "raw_data_base64": {"type": "string"}
        }
      }
    },
    "nodes": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["op_type", "inputs", "outputs"],
        "properties": {
          "name": {"type": "string"},
          "op_type": {"type": "string"},
          "inputs": {"type": "array", "items": {"type": "string"}},
          "outputs": {"type": "array", "items": {"type": "string"}},
          "attributes": {
            "type": "array",
            "items": {
              "type": "object",
              "required": ["name"],
              "properties": {
                "name": {"type": "string"},
                "i": {"type": "integer"},
                "f": {"type": "number"},
                "s": {"type": "string"},
                "ints": {"type": "array", "items": {"type": "integer"}},
                "floats": {"type": "array", "items": {"type": "number"}},
                "strings": {"type": "array", "items": {"type": "string"}}
              }
            }
          }
        }
      }
    }
  }
}`

type jsonModel struct {
	ModelVersion int64             `json:"model_version"`
	Inputs       []jsonInput       `json:"inputs"`
	Outputs      []string          `json:"outputs"`
	Initializers []jsonInitializer `json:"initializers"`
	Nodes        []jsonNode        `json:"nodes"`
}

type jsonInput struct {
	Name     string  `json:"name"`
	DataType int64   `json:"data_type"`
	Dims     []int64 `json:"dims"`
}

type jsonInitializer struct {
	Name          string  `json:"name"`
	DataType      int64   `json:"data_type"`
	Dims          []int64 `json:"dims"`
	RawDataBase64 string  `json:"raw_data_base64"`
}

type jsonNode struct {
	Name       string          `json:"name"`
	OpType     string          `json:"op_type"`
	Inputs     []string        `json:"inputs"`
	Outputs    []string        `json:"outputs"`
	Attributes []jsonAttribute `json:"attributes"`
}

type jsonAttribute struct {
	Name    string    `json:"name"`
	Int     *int64    `json:"i,omitempty"`
	Float   *float64  `json:"f,omitempty"`
	Str     *string   `json:"s,omitempty"`
	Ints    []int64   `json:"ints,omitempty"`
	Floats  []float64 `json:"floats,omitempty"`
	Strings []string  `json:"strings,omitempty"`
}

// ParseJSON decodes the JSON mirror format into a SimpleONNXModel,
// schema-validating before decoding (§6.1-EXPANSION) so malformed
// fixtures fail with a clear diagnostic instead of a zero-valued
// model.
func ParseJSON(data []byte) (*SimpleONNXModel, error) {
	schemaLoader := gojsonschema.NewStringLoader(jsonSchema)
	docLoader := gojsonschema.NewBytesLoader(data)

	result, err := gojsonschema.Validate(schemaLoader, docLoader)
	if err != nil {
		return nil, ierrors.Wrap(ierrors.RuntimeError, err, "json model: schema validation failed")
	}
	if !result.Valid() {
		msg := "json model failed schema validation"
		if len(result.Errors()) > 0 {
			msg = result.Errors()[0].String()
		}
		return nil, ierrors.New(ierrors.InvalidModel, "%s", msg)
	}

	var jm jsonModel
	if err := json.Unmarshal(data, &jm); err != nil {
		return nil, ierrors.Wrap(ierrors.RuntimeError, err, "json model: decode failed")
	}

	m := &SimpleONNXModel{
		ModelVersion: jm.ModelVersion,
		OutputNames:  jm.Outputs,
	}
	for _, in := range jm.Inputs {
		m.InputInfos = append(m.InputInfos, InputInfo{
			Name:     in.Name,
			DataType: in.DataType,
			Dims:     in.Dims,
		})
	}
	for _, init := range jm.Initializers {
		raw, err := decodeRawData(init.RawDataBase64)
		if err != nil {
			return nil, ierrors.Wrap(ierrors.InvalidModel, err, "initializer %q: bad raw_data_base64", init.Name)
		}
		m.Initializers = append(m.Initializers, Initializer{
			Name:     init.Name,
			DataType: init.DataType,
			Dims:     init.Dims,
			RawData:  raw,
		})
	}
	for _, n := range jm.Nodes {
		node := NodeInfo{
			Name:    n.Name,
			OpType:  n.OpType,
			Inputs:  n.Inputs,
			Outputs: n.Outputs,
		}
		for _, a := range n.Attributes {
			node.Attributes = append(node.Attributes, jsonAttributeToValue(a))
		}
		m.Nodes = append(m.Nodes, node)
	}
	return m, nil
}

func jsonAttributeToValue(a jsonAttribute) AttributeValue {
	v := AttributeValue{Name: a.Name}
	switch {
	case a.Int != nil:
		v.Kind, v.Int = AttrInt, *a.Int
	case a.Float != nil:
		v.Kind, v.Float = AttrFloat, *a.Float
	case a.Str != nil:
		v.Kind, v.Str = AttrString, *a.Str
	case a.Ints != nil:
		v.Kind, v.Ints = AttrInts, a.Ints
	case a.Floats != nil:
		v.Kind, v.Floats = AttrFloats, a.Floats
	case a.Strings != nil:
		v.Kind, v.Strings = AttrStrings, a.Strings
	}
	return v
}

func decodeRawData(b64 string) ([]byte, error) {
	if b64 == "" {
		return nil, nil
	}
	return base64.StdEncoding.DecodeString(b64)
}
