// Package config loads and validates the substrate's configuration from
// YAML. Zero values fall back to the same defaults the packages use on
// their own, so an empty file is a valid configuration.
package config

import (
	"bytes"
	"io"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/substratehq/strata/pkg/errors"
	"github.com/substratehq/strata/pkg/handle"
	"github.com/substratehq/strata/pkg/memory"
	"github.com/substratehq/strata/pkg/rollout"
)

// Config is the complete substrate configuration.
type Config struct {
	Storage StorageConfig `yaml:"storage,omitempty" validate:"omitempty"`
	View    ViewConfig    `yaml:"view,omitempty" validate:"omitempty"`
	Memory  MemoryConfig  `yaml:"memory,omitempty" validate:"omitempty"`
	Rollout RolloutConfig `yaml:"rollout,omitempty" validate:"omitempty"`
	LLM     LLMConfig     `yaml:"llm,omitempty" validate:"omitempty"`
}

// StorageConfig locates the on-disk stores.
type StorageConfig struct {
	// HandleDB is the SQLite path for the handle store; empty selects the
	// in-memory store.
	HandleDB string `yaml:"handle_db,omitempty"`
	// MemoryDB is the SQLite path for the memory store.
	MemoryDB string `yaml:"memory_db,omitempty"`
}

// ViewConfig caps bounded view reads.
type ViewConfig struct {
	MaxPeekChars int `yaml:"max_peek_chars,omitempty" validate:"omitempty,min=1"`
	MaxSampleN   int `yaml:"max_sample_n,omitempty" validate:"omitempty,min=1"`
	MaxRows      int `yaml:"max_rows,omitempty" validate:"omitempty,min=1"`
	MaxGroups    int `yaml:"max_groups,omitempty" validate:"omitempty,min=1"`
	MaxDistinct  int `yaml:"max_distinct,omitempty" validate:"omitempty,min=1"`
}

// MemoryConfig tunes consolidation.
type MemoryConfig struct {
	Dedup            *bool   `yaml:"dedup,omitempty"`
	TitleThreshold   float64 `yaml:"title_threshold,omitempty" validate:"omitempty,gt=0,lte=1"`
	ContentThreshold float64 `yaml:"content_threshold,omitempty" validate:"omitempty,gt=0,lte=1"`
}

// Duration wraps time.Duration so YAML can carry values like "90s".
type Duration time.Duration

// UnmarshalYAML accepts either a duration string or integer nanoseconds.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err == nil {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return errors.Wrap(err, errors.InvalidInput, "invalid duration")
		}
		*d = Duration(parsed)
		return nil
	}
	var ns int64
	if err := value.Decode(&ns); err != nil {
		return errors.Wrap(err, errors.InvalidInput, "invalid duration")
	}
	*d = Duration(ns)
	return nil
}

// RolloutConfig tunes batches and per-rollout budgets.
type RolloutConfig struct {
	Rollouts      int      `yaml:"rollouts,omitempty" validate:"omitempty,min=1,max=64"`
	MaxParallel   int      `yaml:"max_parallel,omitempty" validate:"omitempty,min=1"`
	MaxIterations int      `yaml:"max_iterations,omitempty" validate:"omitempty,min=1"`
	MaxCalls      int      `yaml:"max_calls,omitempty" validate:"omitempty,min=1"`
	Timeout       Duration `yaml:"timeout,omitempty"`
	MinConfidence float64  `yaml:"min_confidence,omitempty" validate:"omitempty,gt=0,lte=1"`
}

// LLMConfig configures the model backing judge and extractor.
type LLMConfig struct {
	Model  string `yaml:"model,omitempty"`
	APIKey string `yaml:"api_key,omitempty"`
}

var validate = validator.New()

// Load reads a YAML config file, applies validation, and returns the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WithFields(
			errors.Wrap(err, errors.ResourceNotFound, "failed to read config file"),
			errors.Fields{"path": path},
		)
	}
	return Parse(data)
}

// Parse decodes and validates YAML config bytes.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && err != io.EOF {
		return nil, errors.Wrap(err, errors.InvalidInput, "failed to parse config")
	}
	if err := validate.Struct(&cfg); err != nil {
		return nil, errors.Wrap(err, errors.ValidationFailed, "invalid configuration")
	}
	return &cfg, nil
}

// ViewLimits converts the config to view limits, defaulting unset caps.
func (c *Config) ViewLimits() handle.Limits {
	limits := handle.DefaultLimits()
	if c.View.MaxPeekChars > 0 {
		limits.MaxPeekChars = c.View.MaxPeekChars
	}
	if c.View.MaxSampleN > 0 {
		limits.MaxSampleN = c.View.MaxSampleN
	}
	if c.View.MaxRows > 0 {
		limits.MaxRows = c.View.MaxRows
	}
	if c.View.MaxGroups > 0 {
		limits.MaxGroups = c.View.MaxGroups
	}
	if c.View.MaxDistinct > 0 {
		limits.MaxDistinct = c.View.MaxDistinct
	}
	return limits
}

// ConsolidateOptions converts the config to consolidation options.
func (c *Config) ConsolidateOptions() memory.ConsolidateOptions {
	opts := memory.DefaultConsolidateOptions()
	if c.Memory.Dedup != nil {
		opts.Dedup = *c.Memory.Dedup
	}
	if c.Memory.TitleThreshold > 0 {
		opts.TitleThreshold = c.Memory.TitleThreshold
	}
	if c.Memory.ContentThreshold > 0 {
		opts.ContentThreshold = c.Memory.ContentThreshold
	}
	return opts
}

// RolloutOptions converts the config to coordinator options.
func (c *Config) RolloutOptions() rollout.Options {
	opts := rollout.DefaultOptions()
	if c.Rollout.Rollouts > 0 {
		opts.Rollouts = c.Rollout.Rollouts
	}
	if c.Rollout.MaxParallel > 0 {
		opts.MaxParallel = c.Rollout.MaxParallel
	}
	if c.Rollout.MaxIterations > 0 {
		opts.Budget.MaxIterations = c.Rollout.MaxIterations
	}
	if c.Rollout.MaxCalls > 0 {
		opts.Budget.MaxCalls = c.Rollout.MaxCalls
	}
	if c.Rollout.Timeout > 0 {
		opts.Budget.Timeout = time.Duration(c.Rollout.Timeout)
	}
	if c.Rollout.MinConfidence > 0 {
		opts.MinConfidence = c.Rollout.MinConfidence
	}
	opts.Consolidate = c.ConsolidateOptions()
	return opts
}
