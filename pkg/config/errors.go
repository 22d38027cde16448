package config

import "errors"

// Sentinel errors for SessionOptions validation.
var (
	ErrInvalidExecutionTime     = errors.New("invalid max execution time: must be non-negative")
	ErrInvalidNodeExecutionTime = errors.New("invalid max node execution time: must be non-negative")
	ErrInvalidPoolMaxBytes      = errors.New("invalid pool max bytes: must be non-negative")
	ErrInvalidPoolInitialBytes  = errors.New("invalid pool initial bytes: must be non-negative")
	ErrPoolInitialExceedsMax    = errors.New("pool initial bytes exceeds pool max bytes")
	ErrInvalidScheduler         = errors.New("invalid scheduler: must be one of topological, parallel, pipeline")
	ErrInvalidMaxConcurrency    = errors.New("invalid max concurrency: must be non-negative")
	ErrInvalidPipelineStages    = errors.New("invalid pipeline stages: must be non-negative")
)
