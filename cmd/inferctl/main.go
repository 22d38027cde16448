// Command inferctl loads an ONNX (or JSON-mirror) model, runs one
// inference pass with zero-filled inputs shaped from the model's
// declared input shapes, and prints the resulting output shapes.
//
// Usage:
//
//	inferctl -model path/to/model.onnx
//
// Flags:
//
//	-model string
//	    Path to the model file (.onnx or .json)
//	-opt-level string
//	    Graph optimization level: none, basic, extended, all (default "basic")
//	-scheduler string
//	    Scheduler variant: topological, parallel, pipeline (default "topological")
//	-timeout duration
//	    Maximum run time (default 30s)
//
// Example:
//
//	inferctl -model model.onnx -opt-level all -scheduler parallel
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/luocf/inferunity/pkg/config"
	"github.com/luocf/inferunity/pkg/session"
	"github.com/luocf/inferunity/pkg/tensor"
)

func main() {
	modelPath := flag.String("model", "", "Path to the model file (.onnx or .json)")
	optLevel := flag.String("opt-level", "basic", "Graph optimization level: none, basic, extended, all")
	schedulerName := flag.String("scheduler", "topological", "Scheduler variant: topological, parallel, pipeline")
	timeout := flag.Duration("timeout", 30*time.Second, "Maximum run time")
	flag.Parse()

	if *modelPath == "" {
		fmt.Fprintln(os.Stderr, "inferctl: -model is required")
		flag.Usage()
		os.Exit(2)
	}

	cfg := config.Default()
	cfg.Scheduler = *schedulerName
	cfg.MaxExecutionTime = *timeout
	os.Setenv("INFERUNITY_OPT_LEVEL", *optLevel)
	cfg = config.FromEnv(cfg)

	if err := run(*modelPath, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "inferctl: %v\n", err)
		os.Exit(1)
	}
}

func run(modelPath string, cfg *config.SessionOptions) error {
	sess, err := session.New(cfg)
	if err != nil {
		return fmt.Errorf("creating session: %w", err)
	}

	ctx := context.Background()
	if err := sess.Load(ctx, modelPath); err != nil {
		return fmt.Errorf("loading %s: %w", modelPath, err)
	}
	fmt.Printf("loaded %s: %d nodes, applied passes: %s\n",
		modelPath, sess.Graph().NodeCount(), strings.Join(sess.AppliedPasses(), ", "))
	for _, w := range sess.ShapeWarnings() {
		fmt.Printf("warning: %s\n", w.String())
	}
	if h := sess.Health(ctx); h.Status != "healthy" {
		return fmt.Errorf("session not ready after load: %s", h.Status)
	}

	inputs, err := zeroInputs(sess)
	if err != nil {
		return fmt.Errorf("building placeholder inputs: %w", err)
	}

	outputs, err := sess.Run(ctx, inputs)
	if err != nil {
		return fmt.Errorf("running %s: %w", modelPath, err)
	}

	for i, out := range outputs {
		fmt.Printf("output[%d]: shape=%s dtype=%s\n", i, out.Shape(), out.DType())
	}
	return nil
}

// zeroInputs builds a zero-filled Tensor for every declared graph
// input, sized from its inferred shape. A dynamic or empty shape, or a
// dtype tensor.New rejects, is reported as an error naming the
// offending input.
func zeroInputs(sess *session.Session) ([]*tensor.Tensor, error) {
	declared := sess.Graph().Inputs()
	inputs := make([]*tensor.Tensor, len(declared))
	for i, v := range declared {
		if v.Shape().IsDynamic() || v.Shape().IsEmpty() {
			return nil, fmt.Errorf("input %q has no static shape; supply real inputs via the session API instead", v.Name())
		}
		t, err := tensor.New(v.Shape(), v.DType())
		if err != nil {
			return nil, fmt.Errorf("input %q: %w", v.Name(), err)
		}
		inputs[i] = t
	}
	return inputs, nil
}
