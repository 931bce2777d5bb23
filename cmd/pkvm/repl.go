// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/pkvm-dev/pkvm/internal/pkvm"
)

func isTerminalStdout() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// newReplCmd implements the `repl` compile mode described in spec.md
// §6.2: each line is assembled (per the CLI's tiny textual bytecode
// format; a real Python REPL front end needs a compiler, out of scope
// here) and run against a single persistent __main__ module, so names
// defined on one line are visible on the next, the way an interactive
// interpreter session behaves.
func newReplCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "repl",
		Short: "interactive line-oriented execution against a persistent module",
		RunE:  runRepl,
	}
	return cmd
}

func runRepl(cmd *cobra.Command, args []string) error {
	vm, err := loadVM(cmd)
	if err != nil {
		return err
	}

	if !isTerminalStdout() {
		return runReplNonInteractive(vm, os.Stdin)
	}

	rl, err := readline.New("pkvm> ")
	if err != nil {
		return err
	}
	defer rl.Close()

	var buf []string
	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		buf = append(buf, line)
		if strings.TrimSpace(line) == "" {
			continue
		}
		evalReplChunk(vm, strings.Join(buf, "\n"))
		buf = buf[:0]
	}
}

func runReplNonInteractive(vm *pkvm.VM, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	evalReplChunk(vm, string(data))
	return nil
}

func evalReplChunk(vm *pkvm.VM, src string) {
	code, err := pkvm.Assemble("<repl>", src)
	if err != nil {
		fmt.Fprintln(os.Stderr, colorizeError(err.Error()))
		return
	}
	result, ok := vm.RunCode(code, vm.Main())
	if !ok {
		exc, _ := vm.PendingException()
		fmt.Fprint(os.Stderr, colorizeError(vm.FormatTraceback(exc)))
		return
	}
	if !result.IsNone() {
		fmt.Println(result.String())
	}
}
