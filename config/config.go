// MIT License
//
// Copyright (c) 2024 EASE lab
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

// Package config loads btbench runtime configuration.
package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/pkg/errors"

	"github.com/vhive-serverless/btbench/sweep"
)

const (
	defaultCompiler         = "gcc"
	defaultVariant          = "labels"
	defaultCapacityPadding  = 2
	defaultAssocChainLength = 1024
	defaultNormalize        = "branch"
	defaultRepeats          = 1
	defaultTimeoutSec       = 30
	defaultPinnedCPU        = -1
	defaultLogLevel         = "Info"
)

var (
	defaultCapacityRange = sweep.Range{Start: 256, Stop: 8192, Step: 256}
	defaultAssocRange    = sweep.Range{Start: 2, Stop: 16, Step: 1}
)

// Config represents runtime configuration parameters
type Config struct {
	Compiler   string   `json:"compiler"`
	ExtraFlags []string `json:"extra_flags"`
	WorkDir    string   `json:"work_dir"`
	// Skeleton is a skeleton file path. Empty selects the built-in one.
	Skeleton         string      `json:"skeleton"`
	Variant          string      `json:"variant"`
	CapacityRange    sweep.Range `json:"capacity_range"`
	CapacityPadding  int         `json:"capacity_padding"`
	AssocRange       sweep.Range `json:"assoc_range"`
	AssocChainLength int         `json:"assoc_chain_length"`
	PaddingOffset    int         `json:"padding_offset"`
	// Normalize is "branch" (cycles per branch) or "raw".
	Normalize    string `json:"normalize"`
	Repeats      int    `json:"repeats"`
	TimeoutSec   int    `json:"timeout_sec"`
	PinnedCPU    int    `json:"pinned_cpu"`
	CSVPath      string `json:"csv_path"`
	FailuresPath string `json:"failures_path"`
	PlotPath     string `json:"plot_path"`
	DBPath       string `json:"db_path"`
	LogLevel     string `json:"log_level"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Compiler:         defaultCompiler,
		WorkDir:          os.TempDir(),
		Variant:          defaultVariant,
		CapacityRange:    defaultCapacityRange,
		CapacityPadding:  defaultCapacityPadding,
		AssocRange:       defaultAssocRange,
		AssocChainLength: defaultAssocChainLength,
		PaddingOffset:    sweep.DefaultPaddingOffset,
		Normalize:        defaultNormalize,
		Repeats:          defaultRepeats,
		TimeoutSec:       defaultTimeoutSec,
		PinnedCPU:        defaultPinnedCPU,
		LogLevel:         defaultLogLevel,
	}
}

// LoadConfig loads configuration from JSON file at 'path' over the
// defaults. An empty path returns the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read config from %q", path)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "failed to unmarshal config from %q", path)
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrapf(err, "invalid config in %q", path)
	}
	return cfg, nil
}

// Validate checks values that cannot be checked by a sweep itself.
func (c *Config) Validate() error {
	switch {
	case c.Compiler == "":
		return errors.New("compiler must be set")
	case c.Repeats < 1:
		return errors.Errorf("repeats must be at least 1, got %d", c.Repeats)
	case c.TimeoutSec < 1:
		return errors.Errorf("timeout_sec must be at least 1, got %d", c.TimeoutSec)
	case c.CapacityPadding < 0:
		return errors.Errorf("capacity_padding must not be negative, got %d", c.CapacityPadding)
	case c.PaddingOffset < 0:
		return errors.Errorf("padding_offset must not be negative, got %d", c.PaddingOffset)
	case c.Normalize != "branch" && c.Normalize != "raw":
		return errors.Errorf("unknown normalize policy %q", c.Normalize)
	}
	return nil
}

// Timeout returns the execution timeout.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

// Range returns the configured range of an experiment.
func (c *Config) Range(e sweep.Experiment) sweep.Range {
	if e == sweep.Associativity {
		return c.AssocRange
	}
	return c.CapacityRange
}
