// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config loads the optional host configuration file (pkvm.yaml)
// that tunes the runtime: GC thresholds, value-stack capacity, maximum
// call depth, and the size of the compute-thread slot pool.
package config

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Defaults mirror the constants named in the core data model: a minimum
// GC threshold floor and generous but finite stack/recursion limits.
const (
	DefaultGCMinThreshold = 1024
	DefaultMaxStackDepth  = 1 << 16
	DefaultMaxRecursion   = 1000
	DefaultSlotCount      = 16
	MaxSlotCount          = 16
)

// Config is the full set of host-tunable runtime parameters.
type Config struct {
	GCMinThreshold int `yaml:"gc_min_threshold"`
	MaxStackDepth  int `yaml:"max_stack_depth"`
	MaxRecursion   int `yaml:"max_recursion"`
	SlotCount      int `yaml:"slot_count"`
}

// Default returns the built-in configuration used when no pkvm.yaml is
// present.
func Default() Config {
	return Config{
		GCMinThreshold: DefaultGCMinThreshold,
		MaxStackDepth:  DefaultMaxStackDepth,
		MaxRecursion:   DefaultMaxRecursion,
		SlotCount:      DefaultSlotCount,
	}
}

// Load reads and parses path, overlaying it on top of Default. A missing
// file is not an error: Load silently returns the defaults, the way an
// embeddable runtime should behave when the host hasn't opted into a
// config file at all.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, errors.Wrapf(err, "config: reading %s", path)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "config: parsing %s", path)
	}
	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.GCMinThreshold <= 0 {
		return errors.New("config: gc_min_threshold must be positive")
	}
	if c.MaxStackDepth <= 0 {
		return errors.New("config: max_stack_depth must be positive")
	}
	if c.MaxRecursion <= 0 {
		return errors.New("config: max_recursion must be positive")
	}
	if c.SlotCount <= 0 || c.SlotCount > MaxSlotCount {
		return errors.Errorf("config: slot_count must be in [1,%d]", MaxSlotCount)
	}
	return nil
}
