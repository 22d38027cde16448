package ir

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/luocf/inferunity/pkg/tensor"
)

// Serialize produces a line-oriented text form enumerating inputs,
// outputs, each Node (id, op_type, name, inputs-by-id, outputs-by-id,
// attrs) and each Value (id, shape, dtype) — a debugging format, not a
// wire format (§4.1).
func (g *Graph) Serialize() string {
	var b strings.Builder
	b.WriteString("graph\n")
	b.WriteString("inputs: " + joinIDs(g.declaredInputs) + "\n")
	b.WriteString("outputs: " + joinIDs(g.declaredOutputs) + "\n")
	for _, n := range g.Nodes() {
		fmt.Fprintf(&b, "node %d %s %q inputs=%s outputs=%s attrs=%s\n",
			n.id, n.OpType(), n.Name(), joinValueIDs(n.InputIDs()), joinValueIDs(n.OutputIDs()), serializeAttrs(n.Attrs()))
	}
	for _, v := range g.Values() {
		fmt.Fprintf(&b, "value %d name=%q shape=%s dtype=%s\n", v.id, v.Name(), v.Shape(), v.DType())
	}
	return b.String()
}

func joinIDs(ids []ValueID) string { return joinValueIDs(ids) }

func joinValueIDs(ids []ValueID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(int64(id), 10)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

func serializeAttrs(attrs AttributeBag) string {
	if len(attrs) == 0 {
		return "{}"
	}
	parts := make([]string, 0, len(attrs))
	for k, a := range attrs {
		parts = append(parts, fmt.Sprintf("%s=%s", k, serializeAttr(a)))
	}
	return "{" + strings.Join(parts, ",") + "}"
}

func serializeAttr(a Attribute) string {
	switch a.Kind {
	case AttrInt:
		return strconv.FormatInt(a.Int, 10)
	case AttrFloat:
		return strconv.FormatFloat(a.Float, 'g', -1, 64)
	case AttrString:
		return a.Str
	case AttrInts:
		parts := make([]string, len(a.Ints))
		for i, v := range a.Ints {
			parts[i] = strconv.FormatInt(v, 10)
		}
		return "[" + strings.Join(parts, " ") + "]"
	case AttrFloats:
		parts := make([]string, len(a.Floats))
		for i, v := range a.Floats {
			parts[i] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		return "[" + strings.Join(parts, " ") + "]"
	case AttrStrings:
		return "[" + strings.Join(a.Strings, " ") + "]"
	default:
		return ""
	}
}

// Deserialize parses the text grammar produced by Serialize best-effort
// and runs Validate() on the result (§4.1). Field-level equality with
// the source graph is not required given the advisory nature of the
// text format (§8 round-trip property).
func Deserialize(text string) (*Graph, error) {
	g := New()
	nodeSpecs := []nodeSpec{}
	valueSpecs := []valueSpec{}
	var inputIDs, outputIDs []ValueID

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case line == "" || line == "graph":
			continue
		case strings.HasPrefix(line, "inputs:"):
			inputIDs = parseIDList(strings.TrimPrefix(line, "inputs:"))
		case strings.HasPrefix(line, "outputs:"):
			outputIDs = parseIDList(strings.TrimPrefix(line, "outputs:"))
		case strings.HasPrefix(line, "node "):
			spec, err := parseNodeLine(line)
			if err != nil {
				return nil, err
			}
			nodeSpecs = append(nodeSpecs, spec)
		case strings.HasPrefix(line, "value "):
			spec, err := parseValueLine(line)
			if err != nil {
				return nil, err
			}
			valueSpecs = append(valueSpecs, spec)
		}
	}

	// Pre-create every value so forward references (a node referencing
	// a value id defined later in the text) resolve.
	maxValueID := ValueID(-1)
	for _, vs := range valueSpecs {
		if vs.id > maxValueID {
			maxValueID = vs.id
		}
	}
	for _, ids := range [][]ValueID{inputIDs, outputIDs} {
		for _, id := range ids {
			if id > maxValueID {
				maxValueID = id
			}
		}
	}
	for _, ns := range nodeSpecs {
		for _, id := range append(append([]ValueID{}, ns.inputs...), ns.outputs...) {
			if id > maxValueID {
				maxValueID = id
			}
		}
	}
	for i := ValueID(0); i <= maxValueID; i++ {
		g.AddValue("")
	}
	for _, vs := range valueSpecs {
		v, _ := g.Value(vs.id)
		v.g.values[v.id].name = vs.name
		if vs.shape.Rank() > 0 || vs.shapeSet {
			v.SetShape(vs.shape)
		}
		v.SetDType(vs.dtype)
	}

	for _, ns := range nodeSpecs {
		n := g.AddNode(ns.opType, ns.name)
		for _, inID := range ns.inputs {
			v, ok := g.Value(inID)
			if !ok {
				return nil, fmt.Errorf("node %d references undefined value %d", ns.id, inID)
			}
			g.Connect(n, v)
		}
		for _, outID := range ns.outputs {
			v, ok := g.Value(outID)
			if !ok {
				return nil, fmt.Errorf("node %d references undefined value %d", ns.id, outID)
			}
			g.Produce(n, v)
		}
	}

	for _, id := range inputIDs {
		if v, ok := g.Value(id); ok {
			g.AddInput(v)
		}
	}
	for _, id := range outputIDs {
		if v, ok := g.Value(id); ok {
			g.AddOutput(v)
		}
	}

	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

type nodeSpec struct {
	id      NodeID
	opType  string
	name    string
	inputs  []ValueID
	outputs []ValueID
}

type valueSpec struct {
	id       ValueID
	name     string
	shape    tensor.Shape
	shapeSet bool
	dtype    tensor.DType
}

func parseIDList(s string) []ValueID {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]ValueID, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err == nil {
			out = append(out, ValueID(v))
		}
	}
	return out
}

func parseNodeLine(line string) (nodeSpec, error) {
	// node <id> <opType> "<name>" inputs=[..] outputs=[..] attrs={..}
	fields := strings.SplitN(line, " ", 4)
	if len(fields) < 4 {
		return nodeSpec{}, fmt.Errorf("malformed node line: %q", line)
	}
	id, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return nodeSpec{}, fmt.Errorf("malformed node id in %q: %w", line, err)
	}
	rest := fields[3]
	nameStart := strings.Index(rest, `"`)
	nameEnd := strings.Index(rest[nameStart+1:], `"`)
	name := ""
	var tail string
	if nameStart >= 0 && nameEnd >= 0 {
		name = rest[nameStart+1 : nameStart+1+nameEnd]
		tail = rest[nameStart+1+nameEnd+1:]
	} else {
		tail = rest
	}
	inputs := extractIDList(tail, "inputs=")
	outputs := extractIDList(tail, "outputs=")
	return nodeSpec{id: NodeID(id), opType: fields[2], name: name, inputs: inputs, outputs: outputs}, nil
}

func extractIDList(s, key string) []ValueID {
	idx := strings.Index(s, key)
	if idx < 0 {
		return nil
	}
	s = s[idx+len(key):]
	end := strings.Index(s, "]")
	if end < 0 {
		return nil
	}
	return parseIDList(s[:end+1])
}

func parseValueLine(line string) (valueSpec, error) {
	// value <id> name="<name>" shape=[..] dtype=<DTYPE>
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return valueSpec{}, fmt.Errorf("malformed value line: %q", line)
	}
	id, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return valueSpec{}, fmt.Errorf("malformed value id in %q: %w", line, err)
	}
	spec := valueSpec{id: ValueID(id)}
	for _, f := range fields[2:] {
		switch {
		case strings.HasPrefix(f, "name="):
			spec.name = strings.Trim(strings.TrimPrefix(f, "name="), `"`)
		case strings.HasPrefix(f, "shape="):
			raw := strings.TrimPrefix(f, "shape=")
			if sh, err := tensor.ParseShape(raw); err == nil {
				spec.shape = sh
				spec.shapeSet = true
			}
		case strings.HasPrefix(f, "dtype="):
			spec.dtype = parseDType(strings.TrimPrefix(f, "dtype="))
		}
	}
	return spec, nil
}

func parseDType(s string) tensor.DType {
	switch s {
	case "FLOAT32":
		return tensor.Float32
	case "FLOAT16":
		return tensor.Float16
	case "INT32":
		return tensor.Int32
	case "INT64":
		return tensor.Int64
	case "INT8":
		return tensor.Int8
	case "UINT8":
		return tensor.Uint8
	default:
		return tensor.Unknown
	}
}
