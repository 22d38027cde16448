package ir

import "errors"

// Sentinel errors for graph-structure lookups, in the teacher's flat
// sentinel style (pkg/graph/errors.go) — these are internal lookup
// failures, distinct from the *errors.Error{Kind} diagnostics that
// cross the Session's public surface (see pkg/errors).
var (
	ErrNodeNotFound  = errors.New("node not found in graph")
	ErrValueNotFound = errors.New("value not found in graph")
	ErrCycleDetected = errors.New("graph contains a cycle")
)
