package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/luocf/inferunity/pkg/optimizer"
)

// SessionOptions holds the configuration a Session is constructed
// with (§6.4): which execution providers to prefer and in what order,
// how aggressively to optimize the loaded graph, and the operational
// limits enforced around a run.
type SessionOptions struct {
	// ExecutionProviders is the ordered list of provider names to
	// prefer. An empty list means "use whatever is registered, in
	// registry order".
	ExecutionProviders []string

	// GraphOptimizationLevel selects the optimizer.Manager pipeline run
	// at load time.
	GraphOptimizationLevel optimizer.Level

	// EnableOperatorFusion additionally gates the fusion pass even at
	// LevelExtended/LevelAll, so a caller can opt out of fusion
	// specifically while keeping constant folding and DCE.
	EnableOperatorFusion bool

	// EnableProfiling attaches a profiling sink to the
	// operator.ExecutionContext for every node execution.
	EnableProfiling bool

	// Scheduler selects which scheduler.Scheduler variant drives
	// execution: "topological" (default), "parallel", or "pipeline".
	Scheduler string
	// MaxConcurrency bounds the parallel scheduler's per-wave fan-out
	// (0 = unbounded). Ignored by other scheduler variants.
	MaxConcurrency int
	// PipelineStages sets the pipeline scheduler's stage count when
	// Scheduler == "pipeline".
	PipelineStages int

	// MaxExecutionTime bounds an entire Run call, enforced by the
	// Session via context.WithTimeout (§5: "Timeouts must be enforced
	// by the caller layer").
	MaxExecutionTime time.Duration
	// MaxNodeExecutionTime bounds a single node's execution.
	MaxNodeExecutionTime time.Duration

	// PoolInitialBytes pre-sizes the tensor pool's arena.
	PoolInitialBytes int64
	// PoolMaxBytes caps the tensor pool's arena (0 = unbounded).
	PoolMaxBytes int64
}

// Default returns production-ready default SessionOptions: BASIC
// optimization, the topological scheduler, no provider preference
// (registry order), and generous but finite time limits.
func Default() *SessionOptions {
	return &SessionOptions{
		ExecutionProviders:     nil,
		GraphOptimizationLevel: optimizer.LevelBasic,
		EnableOperatorFusion:   true,
		EnableProfiling:        false,
		Scheduler:              "topological",
		MaxConcurrency:         0,
		PipelineStages:         4,
		MaxExecutionTime:       5 * time.Minute,
		MaxNodeExecutionTime:   30 * time.Second,
		PoolInitialBytes:       0,
		PoolMaxBytes:           0,
	}
}

// Development returns SessionOptions tuned for iterating locally:
// the full optimization pipeline, profiling on, and a longer
// execution budget.
func Development() *SessionOptions {
	cfg := Default()
	cfg.GraphOptimizationLevel = optimizer.LevelAll
	cfg.EnableProfiling = true
	cfg.MaxExecutionTime = 10 * time.Minute
	return cfg
}

// Production returns SessionOptions for deployed inference: the full
// optimization pipeline, profiling off, strict time limits.
func Production() *SessionOptions {
	cfg := Default()
	cfg.GraphOptimizationLevel = optimizer.LevelAll
	cfg.EnableProfiling = false
	cfg.MaxExecutionTime = 5 * time.Minute
	cfg.MaxNodeExecutionTime = 30 * time.Second
	return cfg
}

// Testing returns SessionOptions for the test suite: optimization off
// by default (tests exercise raw graphs) and short time limits so a
// stuck test fails fast.
func Testing() *SessionOptions {
	cfg := Default()
	cfg.GraphOptimizationLevel = optimizer.LevelNone
	cfg.MaxExecutionTime = 1 * time.Minute
	cfg.MaxNodeExecutionTime = 5 * time.Second
	return cfg
}

// FromEnv overlays environment variable overrides onto cfg and
// returns it. Recognized variables: INFERUNITY_OPT_LEVEL (none|basic|
// extended|all), INFERUNITY_SCHEDULER, INFERUNITY_MAX_EXECUTION_TIME
// (Go duration string), INFERUNITY_PROVIDERS (comma-separated),
// INFERUNITY_MAX_CONCURRENCY (integer).
func FromEnv(cfg *SessionOptions) *SessionOptions {
	if v := os.Getenv("INFERUNITY_OPT_LEVEL"); v != "" {
		switch strings.ToLower(v) {
		case "none":
			cfg.GraphOptimizationLevel = optimizer.LevelNone
		case "basic":
			cfg.GraphOptimizationLevel = optimizer.LevelBasic
		case "extended":
			cfg.GraphOptimizationLevel = optimizer.LevelExtended
		case "all":
			cfg.GraphOptimizationLevel = optimizer.LevelAll
		}
	}
	if v := os.Getenv("INFERUNITY_SCHEDULER"); v != "" {
		cfg.Scheduler = v
	}
	if v := os.Getenv("INFERUNITY_MAX_EXECUTION_TIME"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.MaxExecutionTime = d
		}
	}
	if v := os.Getenv("INFERUNITY_PROVIDERS"); v != "" {
		cfg.ExecutionProviders = strings.Split(v, ",")
	}
	if v := os.Getenv("INFERUNITY_MAX_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxConcurrency = n
		}
	}
	return cfg
}

// Validate checks that cfg's values are internally consistent.
func (c *SessionOptions) Validate() error {
	if c.MaxExecutionTime < 0 {
		return ErrInvalidExecutionTime
	}
	if c.MaxNodeExecutionTime < 0 {
		return ErrInvalidNodeExecutionTime
	}
	if c.PoolMaxBytes < 0 {
		return ErrInvalidPoolMaxBytes
	}
	if c.PoolInitialBytes < 0 {
		return ErrInvalidPoolInitialBytes
	}
	if c.PoolMaxBytes > 0 && c.PoolInitialBytes > c.PoolMaxBytes {
		return ErrPoolInitialExceedsMax
	}
	switch c.Scheduler {
	case "", "topological", "parallel", "pipeline":
	default:
		return ErrInvalidScheduler
	}
	if c.MaxConcurrency < 0 {
		return ErrInvalidMaxConcurrency
	}
	if c.PipelineStages < 0 {
		return ErrInvalidPipelineStages
	}
	return nil
}

// Clone returns a deep copy of cfg.
func (c *SessionOptions) Clone() *SessionOptions {
	cp := *c
	if c.ExecutionProviders != nil {
		cp.ExecutionProviders = append([]string(nil), c.ExecutionProviders...)
	}
	return &cp
}
