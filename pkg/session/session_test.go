package session

import (
	"context"
	"testing"

	"github.com/luocf/inferunity/pkg/config"
	"github.com/luocf/inferunity/pkg/tensor"
)

const addModelJSON = `{
  "nodes": [
    {"op_type": "Add", "inputs": ["a", "b"], "outputs": ["c"]}
  ],
  "inputs": [
    {"name": "a", "data_type": 1, "dims": [2, 3]},
    {"name": "b", "data_type": 1, "dims": [2, 3]}
  ],
  "outputs": ["c"]
}`

func mustTensor(t *testing.T, dims []int64, values []float32) *tensor.Tensor {
	t.Helper()
	tt, err := tensor.New(tensor.NewShape(dims...), tensor.Float32)
	if err != nil {
		t.Fatalf("tensor.New: %v", err)
	}
	if err := tt.SetFloat32s(values); err != nil {
		t.Fatalf("SetFloat32s: %v", err)
	}
	return tt
}

func newAddSession(t *testing.T) *Session {
	t.Helper()
	cfg := config.Testing()
	s, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.LoadBytes(context.Background(), "json", []byte(addModelJSON)); err != nil {
		t.Fatalf("LoadBytes: %v", err)
	}
	return s
}

func TestSessionRunAdd(t *testing.T) {
	s := newAddSession(t)
	a := mustTensor(t, []int64{2, 3}, []float32{1, 2, 3, 4, 5, 6})
	b := mustTensor(t, []int64{2, 3}, []float32{10, 20, 30, 40, 50, 60})

	outputs, err := s.Run(context.Background(), []*tensor.Tensor{a, b})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(outputs) != 1 {
		t.Fatalf("expected 1 output, got %d", len(outputs))
	}
	got := outputs[0].Float32s()
	want := []float32{11, 22, 33, 44, 55, 66}
	for i, w := range want {
		if got[i] != w {
			t.Fatalf("output[%d] = %v, want %v", i, got[i], w)
		}
	}
}

func TestSessionRunByName(t *testing.T) {
	s := newAddSession(t)
	a := mustTensor(t, []int64{2, 3}, []float32{1, 1, 1, 1, 1, 1})
	b := mustTensor(t, []int64{2, 3}, []float32{2, 2, 2, 2, 2, 2})

	outputs, err := s.RunByName(context.Background(), map[string]*tensor.Tensor{"a": a, "b": b})
	if err != nil {
		t.Fatalf("RunByName: %v", err)
	}
	c, ok := outputs["c"]
	if !ok {
		t.Fatalf("expected output named c, got %v", outputs)
	}
	for _, v := range c.Float32s() {
		if v != 3 {
			t.Fatalf("expected all elements 3, got %v", c.Float32s())
		}
	}
}

func TestSessionRunByNameRejectsUnknownInput(t *testing.T) {
	s := newAddSession(t)
	a := mustTensor(t, []int64{2, 3}, []float32{1, 1, 1, 1, 1, 1})
	b := mustTensor(t, []int64{2, 3}, []float32{2, 2, 2, 2, 2, 2})

	_, err := s.RunByName(context.Background(), map[string]*tensor.Tensor{"a": a, "b": b, "z": b})
	if err == nil {
		t.Fatalf("expected NOT_FOUND error for unknown input name")
	}
}

func TestSessionRunRejectsWrongInputCount(t *testing.T) {
	s := newAddSession(t)
	a := mustTensor(t, []int64{2, 3}, []float32{1, 1, 1, 1, 1, 1})

	_, err := s.Run(context.Background(), []*tensor.Tensor{a})
	if err == nil {
		t.Fatalf("expected error for wrong input count")
	}
}

func TestSessionRunBatch(t *testing.T) {
	s := newAddSession(t)
	sample1 := []*tensor.Tensor{
		mustTensor(t, []int64{2, 3}, []float32{1, 1, 1, 1, 1, 1}),
		mustTensor(t, []int64{2, 3}, []float32{2, 2, 2, 2, 2, 2}),
	}
	sample2 := []*tensor.Tensor{
		mustTensor(t, []int64{2, 3}, []float32{10, 10, 10, 10, 10, 10}),
		mustTensor(t, []int64{2, 3}, []float32{20, 20, 20, 20, 20, 20}),
	}

	outputs, err := s.RunBatch(context.Background(), [][]*tensor.Tensor{sample1, sample2})
	if err != nil {
		t.Fatalf("RunBatch: %v", err)
	}
	if len(outputs) != 2 {
		t.Fatalf("expected 2 sample outputs, got %d", len(outputs))
	}
	for _, v := range outputs[0][0].Float32s() {
		if v != 3 {
			t.Fatalf("sample 0: expected all elements 3, got %v", outputs[0][0].Float32s())
		}
	}
	for _, v := range outputs[1][0].Float32s() {
		if v != 30 {
			t.Fatalf("sample 1: expected all elements 30, got %v", outputs[1][0].Float32s())
		}
	}
}

func TestSessionLoadRejectsUnknownOpType(t *testing.T) {
	const bad = `{
		"nodes": [{"op_type": "NotARealOp", "inputs": ["x"], "outputs": ["y"]}],
		"inputs": [{"name": "x", "data_type": 1, "dims": [1]}],
		"outputs": ["y"]
	}`
	s, err := New(config.Testing())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.LoadBytes(context.Background(), "json", []byte(bad)); err == nil {
		t.Fatalf("expected error loading a model with an unregistered op-type")
	}
}

func TestSessionHealthReflectsLoadState(t *testing.T) {
	s, err := New(config.Testing())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if h := s.Health(context.Background()); h.Status == "healthy" {
		t.Fatalf("expected unhealthy before Load, got %v", h)
	}

	s2 := newAddSession(t)
	if h := s2.Health(context.Background()); h.Status != "healthy" {
		t.Fatalf("expected healthy after Load, got %v", h)
	}
}
