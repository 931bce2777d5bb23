// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/pkvm-dev/pkvm/internal/pkvm"
)

func newEvalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <file.pasm>",
		Short: "execute an assembled module body and report its return value",
		Args:  cobra.ExactArgs(1),
		RunE:  runModule,
	}
	cmd.Aliases = []string{"eval"}
	return cmd
}

func runModule(cmd *cobra.Command, args []string) error {
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
	result, ok := vm.RunCode(code, vm.Main())
	if !ok {
		exc, _ := vm.PendingException()
		fmt.Fprint(os.Stderr, colorizeError(vm.FormatTraceback(exc)))
		os.Exit(1)
	}
	fmt.Println(result.String())
	return nil
}

func colorizeError(s string) string {
	if !colorEnabled() {
		return s
	}
	return color.New(color.FgRed, color.Bold).Sprint(s)
}

func colorEnabled() bool {
	return os.Getenv("NO_COLOR") == "" && isTerminalStdout()
}
