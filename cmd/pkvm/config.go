// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pkvm-dev/pkvm/internal/config"
	"github.com/pkvm-dev/pkvm/internal/diag"
	"github.com/pkvm-dev/pkvm/internal/pkvm"
)

// loadVM builds a VM from the command's persistent flags: an optional
// config file overlaid with any explicit flag overrides, and a
// stderr-backed structured logger.
func loadVM(cmd *cobra.Command) (*pkvm.VM, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg := config.Default()
	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if v, _ := cmd.Flags().GetInt("gc-threshold"); v > 0 {
		cfg.GCMinThreshold = v
	}
	if v, _ := cmd.Flags().GetInt("max-stack"); v > 0 {
		cfg.MaxStackDepth = v
	}
	if v, _ := cmd.Flags().GetInt("max-recursion"); v > 0 {
		cfg.MaxRecursion = v
	}
	log := diag.New(nil, diagLevel())
	return pkvm.New(cfg, log, pkvm.Hooks{
		Print: func(s string) { fmt.Fprint(os.Stdout, s) },
		Flush: func() { os.Stdout.Sync() },
	}), nil
}
