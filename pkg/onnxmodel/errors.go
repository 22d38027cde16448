package onnxmodel

import ierrors "github.com/luocf/inferunity/pkg/errors"

// DetectFormat picks a parser by filename extension (§6.1): ".onnx"
// selects the protobuf wire reader, ".json" the JSON mirror. Any other
// extension is NOT_IMPLEMENTED — the core recognizes exactly these two
// forms.
func DetectFormat(path string) (format string, err error) {
	switch {
	case hasSuffix(path, ".onnx"):
		return "onnx", nil
	case hasSuffix(path, ".json"):
		return "json", nil
	default:
		return "", ierrors.New(ierrors.NotImplemented, "unrecognized model file extension: %q", path)
	}
}

func hasSuffix(s, suffix string) bool {
	return len(s) >= len(suffix) && s[len(s)-len(suffix):] == suffix
}

// Parse dispatches to ParseProtobuf or ParseJSON based on format, as
// returned by DetectFormat.
func Parse(format string, data []byte) (*SimpleONNXModel, error) {
	switch format {
	case "onnx":
		return ParseProtobuf(data)
	case "json":
		return ParseJSON(data)
	default:
		return nil, ierrors.New(ierrors.NotImplemented, "unrecognized model format: %q", format)
	}
}
