// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command pkvm is a thin host shell around the pkvm runtime core: it
// wires stdin/stdout, a config file, and a handful of subcommands for
// running, introspecting, and REPL-driving compiled modules. It never
// compiles source itself — every subcommand expects an already-built
// CodeObject, supplied here only in the trivial disassembler-friendly
// forms tests exercise, since a real compiler front end is out of scope.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "pkvm",
		Short: "embeddable Python-subset runtime CLI",
	}
	root.PersistentFlags().String("config", "", "path to pkvm.yaml")
	root.PersistentFlags().Int("gc-threshold", 0, "override the GC minimum threshold")
	root.PersistentFlags().Int("max-stack", 0, "override the value-stack capacity")
	root.PersistentFlags().Int("max-recursion", 0, "override the maximum call depth")

	root.AddCommand(newReplCmd(), newStatsCmd(), newDisasmCmd(), newEvalCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
}

func exitf(code int, format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(code)
}
