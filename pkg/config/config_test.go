package config

import (
	"os"
	"testing"
	"time"

	"github.com/luocf/inferunity/pkg/optimizer"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default() should validate, got %v", err)
	}
	if cfg.GraphOptimizationLevel != optimizer.LevelBasic {
		t.Fatalf("expected LevelBasic, got %v", cfg.GraphOptimizationLevel)
	}
}

func TestPresetsValidate(t *testing.T) {
	for name, cfg := range map[string]*SessionOptions{
		"development": Development(),
		"production":  Production(),
		"testing":     Testing(),
	} {
		if err := cfg.Validate(); err != nil {
			t.Fatalf("%s preset should validate, got %v", name, err)
		}
	}
}

func TestValidateRejectsNegativeDurations(t *testing.T) {
	cfg := Default()
	cfg.MaxExecutionTime = -1
	if err := cfg.Validate(); err != ErrInvalidExecutionTime {
		t.Fatalf("expected ErrInvalidExecutionTime, got %v", err)
	}
}

func TestValidateRejectsPoolInitialExceedingMax(t *testing.T) {
	cfg := Default()
	cfg.PoolMaxBytes = 100
	cfg.PoolInitialBytes = 200
	if err := cfg.Validate(); err != ErrPoolInitialExceedsMax {
		t.Fatalf("expected ErrPoolInitialExceedsMax, got %v", err)
	}
}

func TestValidateRejectsUnknownScheduler(t *testing.T) {
	cfg := Default()
	cfg.Scheduler = "quantum"
	if err := cfg.Validate(); err != ErrInvalidScheduler {
		t.Fatalf("expected ErrInvalidScheduler, got %v", err)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	cfg := Default()
	cfg.ExecutionProviders = []string{"cpu"}
	clone := cfg.Clone()
	clone.ExecutionProviders[0] = "mutated"
	if cfg.ExecutionProviders[0] != "cpu" {
		t.Fatalf("mutating clone's slice affected the original")
	}
}

func TestFromEnvOverridesOptLevel(t *testing.T) {
	os.Setenv("INFERUNITY_OPT_LEVEL", "all")
	defer os.Unsetenv("INFERUNITY_OPT_LEVEL")

	cfg := FromEnv(Default())
	if cfg.GraphOptimizationLevel != optimizer.LevelAll {
		t.Fatalf("expected LevelAll from env override, got %v", cfg.GraphOptimizationLevel)
	}
}

func TestFromEnvOverridesExecutionTime(t *testing.T) {
	os.Setenv("INFERUNITY_MAX_EXECUTION_TIME", "45s")
	defer os.Unsetenv("INFERUNITY_MAX_EXECUTION_TIME")

	cfg := FromEnv(Default())
	if cfg.MaxExecutionTime != 45*time.Second {
		t.Fatalf("expected 45s, got %v", cfg.MaxExecutionTime)
	}
}
