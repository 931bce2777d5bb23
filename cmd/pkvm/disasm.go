// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pkvm-dev/pkvm/internal/pkvm"
)

func newDisasmCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "disasm <file.pasm>",
		Short: "disassemble an assembled code object",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			code, err := pkvm.Assemble(args[0], string(src))
			if err != nil {
				return err
			}
			fmt.Print(pkvm.Disassemble(code))
			return nil
		},
	}
	return cmd
}
