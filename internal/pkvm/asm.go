// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pkvm

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/pkvm-dev/pkvm/internal/rtvalue"
)

// Assemble builds a CodeObject from a tiny line-oriented bytecode text
// format: one instruction per line, `OPNAME arg0 arg1`, blank lines and
// `#`-prefixed comments ignored, a `.const` / `.local` directive per
// constant/local variable, and `.nargs N` for the argument count;
// identifiers are written inline as instruction operands. This is not a
// Python compiler — there is no lexer or parser for Python syntax here —
// it exists so tests and the CLI's disasm/run/eval subcommands have a
// textual way to describe a CodeObject without a real front end, which
// is explicitly out of this core's scope.
func Assemble(name string, src string) (*CodeObject, error) {
	code := &CodeObject{Name: rtvalue.Intern(name), Filename: name}
	localIndex := map[string]int{}

	for lineNo, raw := range strings.Split(src, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		switch fields[0] {
		case ".const":
			v, err := parseConst(fields[1:])
			if err != nil {
				return nil, errors.Wrapf(err, "line %d", lineNo+1)
			}
			code.Consts = append(code.Consts, v)
		case ".local":
			localIndex[fields[1]] = len(code.Varnames)
			code.Varnames = append(code.Varnames, rtvalue.Intern(fields[1]))
			code.NLocals++
		case ".nargs":
			n, _ := strconv.Atoi(fields[1])
			code.NArgs = n
		default:
			instr, err := parseInstr(fields, localIndex)
			if err != nil {
				return nil, errors.Wrapf(err, "line %d", lineNo+1)
			}
			code.Code = append(code.Code, instr)
		}
	}
	return code, nil
}

func parseConst(fields []string) (rtvalue.Value, error) {
	if len(fields) != 2 {
		return rtvalue.None, errors.New(".const requires a kind and value")
	}
	switch fields[0] {
	case "none":
		return rtvalue.None, nil
	case "bool":
		return rtvalue.Bool(fields[1] == "true"), nil
	case "int":
		n, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return rtvalue.None, err
		}
		return rtvalue.Int(n), nil
	case "float":
		f, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return rtvalue.None, err
		}
		return rtvalue.Float(f), nil
	default:
		return rtvalue.None, errors.Errorf("unknown const kind %q", fields[0])
	}
}

var opByName = map[string]Op{
	"LOAD_CONST": OpLoadConst, "LOAD_FAST": OpLoadFast, "STORE_FAST": OpStoreFast,
	"LOAD_GLOBAL": OpLoadGlobal, "STORE_GLOBAL": OpStoreGlobal,
	"LOAD_ATTR": OpLoadAttr, "STORE_ATTR": OpStoreAttr, "LOAD_NAME": OpLoadName,
	"BINARY_OP": OpBinaryOp, "UNARY_NEG": OpUnaryNeg, "UNARY_NOT": OpUnaryNot,
	"COMPARE_OP": OpCompareOp, "CONTAINS": OpContains,
	"POP_TOP": OpPopTop, "DUP_TOP": OpDupTop, "SWAP": OpSwap,
	"JUMP": OpJump, "JUMP_IF_FALSE": OpJumpIfFalse, "JUMP_IF_TRUE": OpJumpIfTrue,
	"FOR_ITER": OpForIter, "GET_ITER": OpGetIter,
	"BUILD_LIST": OpBuildList, "BUILD_TUPLE": OpBuildTuple, "BUILD_DICT": OpBuildDict,
	"BUILD_STRING": OpBuildString,
	"CALL": OpCall, "RETURN": OpReturn, "YIELD": OpYield, "RAISE": OpRaise, "RERAISE": OpReraise,
	"SETUP_TRY": OpSetupTry, "POP_BLOCK": OpPopBlock,
	"IMPORT": OpImport, "IMPORT_FROM": OpImportFrom,
	"MAKE_FUNCTION": OpMakeFunction, "UNPACK_SEQUENCE": OpUnpackSequence,
	"BINARY_SUBSCR": OpBinarySubscr, "STORE_SUBSCR": OpStoreSubscr,
}

var binOpByName = map[string]BinOpKind{
	"+": BinAdd, "-": BinSub, "*": BinMul, "/": BinTrueDiv, "//": BinFloorDiv, "%": BinMod, "**": BinPow,
}

var cmpOpByName = map[string]CompareKind{
	"==": CmpEq, "!=": CmpNe, "<": CmpLt, "<=": CmpLe, ">": CmpGt, ">=": CmpGe,
}

func parseInstr(fields []string, locals map[string]int) (Instr, error) {
	op, ok := opByName[fields[0]]
	if !ok {
		return Instr{}, errors.Errorf("unknown opcode %q", fields[0])
	}
	instr := Instr{Op: op}
	args := fields[1:]
	switch op {
	case OpBinaryOp:
		k, ok := binOpByName[args[0]]
		if !ok {
			return Instr{}, errors.Errorf("unknown binary op %q", args[0])
		}
		instr.A = int32(k)
	case OpCompareOp:
		k, ok := cmpOpByName[args[0]]
		if !ok {
			return Instr{}, errors.Errorf("unknown compare op %q", args[0])
		}
		instr.A = int32(k)
	case OpLoadFast, OpStoreFast:
		idx, ok := locals[args[0]]
		if !ok {
			return Instr{}, errors.Errorf("undeclared local %q", args[0])
		}
		instr.A = int32(idx)
	case OpLoadGlobal, OpStoreGlobal, OpLoadAttr, OpStoreAttr, OpLoadName, OpImport, OpImportFrom:
		instr.Name = rtvalue.Intern(args[0])
	case OpLoadConst:
		n, _ := strconv.Atoi(args[0])
		instr.A = int32(n)
	case OpJump, OpJumpIfFalse, OpJumpIfTrue, OpForIter:
		n, _ := strconv.Atoi(args[0])
		instr.A = int32(n)
	case OpBuildList, OpBuildTuple, OpBuildDict, OpBuildString, OpCall, OpUnpackSequence:
		n, _ := strconv.Atoi(args[0])
		instr.A = int32(n)
	}
	return instr, nil
}

// Disassemble renders code as human-readable text, one numbered
// instruction per line. The output is not Assemble input: lines carry an
// index prefix and operands are printed in their decoded numeric form.
func Disassemble(code *CodeObject) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n", code.String())
	for i, instr := range code.Code {
		fmt.Fprintf(&sb, "%4d  %s\n", i, disasmInstr(instr))
	}
	return sb.String()
}

func disasmInstr(instr Instr) string {
	for name, op := range opByName {
		if op == instr.Op {
			switch instr.Op {
			case OpLoadGlobal, OpStoreGlobal, OpLoadAttr, OpStoreAttr, OpLoadName, OpImport, OpImportFrom:
				return fmt.Sprintf("%-16s %s", name, instr.Name.Text())
			default:
				return fmt.Sprintf("%-16s %d %d", name, instr.A, instr.B)
			}
		}
	}
	return fmt.Sprintf("<unknown op %d>", instr.Op)
}
