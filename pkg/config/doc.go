// Package config provides configuration management for the inference
// engine: a single SessionOptions value centralizing execution
// providers, graph optimization level, fusion/profiling toggles and
// operational time limits, with validation, defaults, and an
// environment variable overlay.
//
// # Overview
//
// SessionOptions centralizes every setting a Session needs at
// construction time. It is a pluggable, replaceable configuration
// system: callers may build one by hand, start from a named preset
// (Default/Development/Production/Testing) and override fields, or
// load overrides from the environment with FromEnv.
//
// # Basic usage
//
//	cfg := config.Default()
//	sess, err := session.New(cfg)
//
// # Custom configuration
//
//	cfg := config.Default()
//	cfg.GraphOptimizationLevel = optimizer.LevelExtended
//	cfg.MaxExecutionTime = 10 * time.Minute
//	sess, err := session.New(cfg)
//
// # Thread safety
//
// SessionOptions values are safe for concurrent read access once
// constructed; Session does not mutate the options it was given.
package config
