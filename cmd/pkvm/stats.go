// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pkvm-dev/pkvm/internal/pkvm"
)

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats <file.pasm>",
		Short: "run a module and report heap/GC and OS resource statistics",
		Args:  cobra.ExactArgs(1),
		RunE:  runStats,
	}
	return cmd
}

func runStats(cmd *cobra.Command, args []string) error {
	src, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	code, err := pkvm.Assemble(args[0], string(src))
	if err != nil {
		return err
	}
	vm, err := loadVM(cmd)
	if err != nil {
		return err
	}
	if _, ok := vm.RunCode(code, vm.Main()); !ok {
		exc, _ := vm.PendingException()
		fmt.Fprint(os.Stderr, vm.FormatTraceback(exc))
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	defer w.Flush()
	s := vm.Stats()
	fmt.Fprintf(w, "live objects\t%d\n", s.LiveObjects)
	fmt.Fprintf(w, "small-pool slots\t%d\n", s.SmallSlots)
	fmt.Fprintf(w, "large-object slots\t%d\n", s.LargeSlots)
	fmt.Fprintf(w, "gc threshold\t%d\n", s.GCThreshold)
	if rss, ok := processRSSBytes(); ok {
		fmt.Fprintf(w, "process RSS\t%d bytes\n", rss)
	}
	return nil
}
