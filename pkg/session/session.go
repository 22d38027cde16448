// Package session implements the top-level façade described in
// §4.7: Load takes a model file to a prepared, optimized Graph ready
// to run; Run (and its by-name and batched variants) drive one
// inference pass through the execution engine and return the
// requested output Tensors.
package session

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/luocf/inferunity/pkg/config"
	"github.com/luocf/inferunity/pkg/engine"
	ierrors "github.com/luocf/inferunity/pkg/errors"
	"github.com/luocf/inferunity/pkg/health"
	"github.com/luocf/inferunity/pkg/ir"
	"github.com/luocf/inferunity/pkg/logging"
	"github.com/luocf/inferunity/pkg/observer"
	"github.com/luocf/inferunity/pkg/onnxmodel"
	"github.com/luocf/inferunity/pkg/operator"
	"github.com/luocf/inferunity/pkg/optimizer"
	"github.com/luocf/inferunity/pkg/pool"
	"github.com/luocf/inferunity/pkg/provider"
	"github.com/luocf/inferunity/pkg/scheduler"
	"github.com/luocf/inferunity/pkg/shapeinfer"
	"github.com/luocf/inferunity/pkg/telemetry"
	"github.com/luocf/inferunity/pkg/tensor"
)

// Session owns one loaded Graph and the engine prepared to run it
// (§4.7). A Session is not safe for concurrent Run calls against the
// same loaded graph; load once, then serialize Run calls (or build
// one Session per concurrent caller).
type Session struct {
	cfg *config.SessionOptions

	graph     *ir.Graph
	engine    *engine.Engine
	sched     scheduler.Scheduler
	logger    *logging.Logger
	tel       *telemetry.Provider
	observer  *observer.Manager
	health    *health.Checker
	providers *provider.Registry

	shapeWarnings []shapeinfer.Warning
	appliedPasses []string

	id string
}

// Option configures a Session at construction time.
type Option func(*Session)

// WithLogger overrides the Session's logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithTelemetry attaches a telemetry.Provider recording run and node
// metrics. Without one, Run proceeds with metrics disabled.
func WithTelemetry(t *telemetry.Provider) Option {
	return func(s *Session) { s.tel = t }
}

// WithObserver attaches an observer.Manager notified of run/node
// lifecycle events. Without one, a no-op manager is used.
func WithObserver(m *observer.Manager) Option {
	return func(s *Session) { s.observer = m }
}

// WithSessionID overrides the session identifier reported to the
// logger, telemetry and observer (default: a generated id).
func WithSessionID(id string) Option {
	return func(s *Session) { s.id = id }
}

// New constructs a Session around cfg. Call Load before Run.
func New(cfg *config.SessionOptions, opts ...Option) (*Session, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, ierrors.Wrap(ierrors.InvalidArgument, err, "invalid session options")
	}
	s := &Session{
		cfg:      cfg,
		logger:   logging.New(logging.DefaultConfig()),
		observer: observer.NewManager(),
		health:   health.NewChecker("inferunity", "session"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.id == "" {
		s.id = "session-" + uuid.NewString()
	}
	s.logger = s.logger.WithSessionID(s.id)
	operator.Init()
	s.health.RegisterCheck("model_loaded", s.checkModelLoaded, time.Second, true)
	s.health.RegisterCheck("providers_ready", s.checkProvidersReady, time.Second, true)
	return s, nil
}

func (s *Session) checkModelLoaded(ctx context.Context) error {
	if s.graph == nil {
		return ierrors.New(ierrors.InvalidArgument, "no model loaded")
	}
	return nil
}

func (s *Session) checkProvidersReady(ctx context.Context) error {
	if s.providers == nil || len(s.providers.Providers()) == 0 {
		return ierrors.New(ierrors.InvalidArgument, "no execution providers assigned")
	}
	return nil
}

// Health reports the session's readiness: whether a model is loaded
// and execution providers are assigned (§9-EXPANSION). Suitable for
// wiring into a supervisor's liveness/readiness probe.
func (s *Session) Health(ctx context.Context) health.HealthResponse {
	return s.health.Readiness(ctx)
}

// Load reads the model at path, converts it to a Graph, runs shape
// inference (warnings only) and the configured optimization pipeline,
// assigns execution providers, and prepares the engine to run
// (§4.7 "Load").
func (s *Session) Load(ctx context.Context, path string) error {
	format, err := onnxmodel.DetectFormat(path)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ierrors.Wrap(ierrors.RuntimeError, err, "reading model file %q", path)
	}
	return s.LoadBytes(ctx, format, data)
}

// LoadBytes is Load without a filesystem round-trip: format is
// "onnx" or "json", matching onnxmodel.DetectFormat/Parse.
func (s *Session) LoadBytes(ctx context.Context, format string, data []byte) error {
	model, err := onnxmodel.Parse(format, data)
	if err != nil {
		return err
	}
	g, err := onnxmodel.ToGraph(model)
	if err != nil {
		return err
	}

	reg := operator.Default()
	result, err := shapeinfer.Infer(g, reg)
	if err != nil {
		return err
	}
	s.shapeWarnings = result.Warnings
	for _, w := range s.shapeWarnings {
		s.logger.WithNodeID(fmt.Sprintf("%d", w.NodeID)).Warnf("shape inference: %s", w.Message)
	}

	if s.cfg.GraphOptimizationLevel != optimizer.LevelNone {
		mgr := optimizer.Default(s.cfg.GraphOptimizationLevel)
		applied, err := mgr.Run(g, reg)
		if err != nil {
			return ierrors.Wrap(ierrors.InvalidModel, err, "optimization pipeline failed")
		}
		s.appliedPasses = applied
	}

	providers := provider.NewRegistry()
	providers.Register(provider.NewCPUProvider(reg))

	sched := s.buildScheduler()
	pl := pool.New(s.cfg.PoolInitialBytes, s.cfg.PoolMaxBytes)
	pl.SetLogger(s.logger)
	eng := engine.New(sched, providers, pl, s.logger)
	if err := eng.AssignProviders(g); err != nil {
		return err
	}
	if err := providers.PrepareAll(ctx, g); err != nil {
		return ierrors.Wrap(ierrors.RuntimeError, err, "provider prepare failed")
	}

	s.graph = g
	s.engine = eng
	s.sched = sched
	s.providers = providers
	return nil
}

func (s *Session) buildScheduler() scheduler.Scheduler {
	switch s.cfg.Scheduler {
	case "parallel":
		return scheduler.Parallel{MaxConcurrency: s.cfg.MaxConcurrency}
	case "pipeline":
		return scheduler.Pipeline{Workers: s.cfg.PipelineStages}
	default:
		return scheduler.Topological{}
	}
}

// ShapeWarnings returns the warnings Load's shape-inference pass
// collected, if any.
func (s *Session) ShapeWarnings() []shapeinfer.Warning { return s.shapeWarnings }

// Graph returns the loaded, optimized Graph, or nil before Load.
func (s *Session) Graph() *ir.Graph { return s.graph }

// Run binds inputs positionally to the graph's declared inputs (in
// declaration order), executes the graph once, and returns the
// declared outputs' Tensors in declaration order (§4.7 "Run").
func (s *Session) Run(ctx context.Context, inputs []*tensor.Tensor) ([]*tensor.Tensor, error) {
	if s.graph == nil {
		return nil, ierrors.New(ierrors.InvalidArgument, "session has no loaded graph; call Load first")
	}
	declared := s.graph.Inputs()
	if len(inputs) != len(declared) {
		return nil, ierrors.New(ierrors.InvalidArgument, "expected %d inputs, got %d", len(declared), len(inputs))
	}
	for i, v := range declared {
		v.SetTensor(inputs[i])
	}
	return s.runPrepared(ctx)
}

// RunByName binds inputs by declared Value name, falling back to
// "input_<i>" positional naming for inputs the model left unnamed.
// Unknown names return a NOT_FOUND diagnostic (§4.7 "Run by name").
func (s *Session) RunByName(ctx context.Context, inputs map[string]*tensor.Tensor) (map[string]*tensor.Tensor, error) {
	if s.graph == nil {
		return nil, ierrors.New(ierrors.InvalidArgument, "session has no loaded graph; call Load first")
	}
	declared := s.graph.Inputs()
	bound := make(map[string]bool, len(inputs))
	for i, v := range declared {
		name := v.Name()
		if name == "" {
			name = fmt.Sprintf("input_%d", i)
		}
		t, ok := inputs[name]
		if !ok {
			return nil, ierrors.New(ierrors.NotFound, "missing input %q", name)
		}
		v.SetTensor(t)
		bound[name] = true
	}
	for name := range inputs {
		if !bound[name] {
			return nil, ierrors.New(ierrors.NotFound, "unknown input %q", name)
		}
	}

	outputs, err := s.runPrepared(ctx)
	if err != nil {
		return nil, err
	}
	declaredOutputs := s.graph.Outputs()
	result := make(map[string]*tensor.Tensor, len(outputs))
	for i, v := range declaredOutputs {
		name := v.Name()
		if name == "" {
			name = fmt.Sprintf("output_%d", i)
		}
		result[name] = outputs[i]
	}
	return result, nil
}

func (s *Session) runPrepared(ctx context.Context) ([]*tensor.Tensor, error) {
	runCtx := ctx
	if s.cfg.MaxExecutionTime > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.cfg.MaxExecutionTime)
		defer cancel()
	}

	start := time.Now()
	s.observer.Notify(runCtx, observer.Event{
		Type: observer.EventRunStart, Status: observer.StatusStarted,
		Timestamp: start, RunID: s.id, SessionID: s.id, StartTime: start,
	})

	err := s.engine.Run(runCtx, s.graph)

	elapsed := time.Since(start)
	status := observer.StatusSuccess
	if err != nil {
		status = observer.StatusFailure
	}
	s.observer.Notify(ctx, observer.Event{
		Type: observer.EventRunEnd, Status: status, Timestamp: time.Now(),
		RunID: s.id, SessionID: s.id, StartTime: start, ElapsedTime: elapsed, Error: err,
		Metadata: map[string]interface{}{"nodes_executed": s.graph.NodeCount()},
	})
	if s.tel != nil {
		s.tel.RecordRun(ctx, s.id, elapsed, err == nil, s.graph.NodeCount())
	}
	if err != nil {
		return nil, err
	}

	outputs := s.graph.Outputs()
	result := make([]*tensor.Tensor, len(outputs))
	for i, v := range outputs {
		t := v.Tensor()
		if t == nil {
			return nil, ierrors.New(ierrors.RuntimeError, "output %q produced no tensor", v.Name())
		}
		result[i] = t
	}
	return result, nil
}

// RunBatch stacks N single-sample input sets along a new leading
// batch dimension, executes the graph once, and splits each output
// back into N samples (§4.7 "Batched run"). The samples at each input
// position must share shape and dtype, and every output's dimension 0
// must equal N; otherwise this returns INVALID_ARGUMENT. The declared
// input shapes are not checked against the stacked inputs.
func (s *Session) RunBatch(ctx context.Context, batches [][]*tensor.Tensor) ([][]*tensor.Tensor, error) {
	if len(batches) == 0 {
		return nil, ierrors.New(ierrors.InvalidArgument, "RunBatch requires at least one sample")
	}
	numInputs := len(batches[0])
	for _, b := range batches {
		if len(b) != numInputs {
			return nil, ierrors.New(ierrors.InvalidArgument, "inconsistent input count across batch samples")
		}
	}

	stacked := make([]*tensor.Tensor, numInputs)
	for i := 0; i < numInputs; i++ {
		samples := make([]*tensor.Tensor, len(batches))
		for b := range batches {
			samples[b] = batches[b][i]
		}
		st, err := stackTensors(samples)
		if err != nil {
			return nil, ierrors.Wrap(ierrors.InvalidArgument, err, "stacking input %d", i)
		}
		stacked[i] = st
	}

	outputs, err := s.Run(ctx, stacked)
	if err != nil {
		return nil, err
	}

	result := make([][]*tensor.Tensor, len(batches))
	for b := range batches {
		result[b] = make([]*tensor.Tensor, len(outputs))
	}
	for oi, out := range outputs {
		split, err := splitTensor(out, len(batches))
		if err != nil {
			return nil, ierrors.Wrap(ierrors.InvalidArgument, err, "splitting output %d", oi)
		}
		for b := range batches {
			result[b][oi] = split[b]
		}
	}
	return result, nil
}

// stackTensors concatenates same-shaped, same-dtype tensors along a
// new leading dimension. Tensors are row-major, so the stacked
// buffer is simply each sample's bytes in sequence.
func stackTensors(samples []*tensor.Tensor) (*tensor.Tensor, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("no samples to stack")
	}
	first := samples[0]
	dims := first.Shape().Dims()
	for _, t := range samples[1:] {
		if !t.Shape().Equal(first.Shape()) || t.DType() != first.DType() {
			return nil, fmt.Errorf("batch samples must share shape and dtype")
		}
	}
	stackedDims := append([]int64{int64(len(samples))}, dims...)
	raw := make([]byte, 0, len(samples)*len(first.Bytes()))
	for _, t := range samples {
		raw = append(raw, t.Bytes()...)
	}
	return tensor.NewFromBytes(tensor.NewShape(stackedDims...), first.DType(), raw), nil
}

// splitTensor is stackTensors' inverse: it slices a batched tensor's
// leading dimension back into n equal-sized, non-owning views.
func splitTensor(t *tensor.Tensor, n int) ([]*tensor.Tensor, error) {
	dims := t.Shape().Dims()
	if len(dims) == 0 || dims[0] != int64(n) {
		return nil, fmt.Errorf("output batch dimension (%v) does not match sample count %d", dims, n)
	}
	sampleShape := tensor.NewShape(dims[1:]...)
	sampleBytes := len(t.Bytes()) / n
	out := make([]*tensor.Tensor, n)
	for i := 0; i < n; i++ {
		chunk := t.Bytes()[i*sampleBytes : (i+1)*sampleBytes]
		out[i] = tensor.FromBuffer(sampleShape, t.DType(), chunk)
	}
	return out, nil
}

// AppliedPasses returns the names of optimizer passes that changed
// the graph during Load, in run order (with repeats for fixpoint
// iteration).
func (s *Session) AppliedPasses() []string { return s.appliedPasses }
