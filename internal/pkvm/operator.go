// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pkvm

import (
	"math"
	"strings"

	"github.com/pkvm-dev/pkvm/internal/rtvalue"
)

// SlotResult distinguishes "produced a value" from "this type doesn't
// implement the operation for that operand" (BinaryOp then tries the left
// type's __method__) from "raised an exception" (propagate immediately), matching
// Python's NotImplemented-sentinel convention without needing a Value to
// represent NotImplemented itself.
type SlotResult uint8

const (
	SlotOK SlotResult = iota
	SlotNotImplemented
	SlotRaised
)

type binarySlotFunc func(vm *VM, a, b rtvalue.Value) (rtvalue.Value, SlotResult)

// arithSlots holds the builtin-type implementations of each binary
// operator, indexed by [BinOpKind][TypeID]. User types reach the same
// operators through Namespace methods (__add__ etc.), consulted by
// BinaryOp only after the builtin fast path misses.
var arithSlots map[BinOpKind]map[TypeID]binarySlotFunc

func (vm *VM) installArithmeticSlots(ids []*Type) {
	if arithSlots != nil {
		return // process-global table; built once regardless of VM count
	}
	arithSlots = map[BinOpKind]map[TypeID]binarySlotFunc{
		BinAdd:      {TypeInt: intArith(func(a, b int64) int64 { return a + b }, func(a, b float64) float64 { return a + b }), TypeFloat: floatArith(func(a, b float64) float64 { return a + b }), TypeStr: strConcat, TypeVec2: vec2Arith(func(a, b float32) float32 { return a + b }), TypeVec2i: vec2iArith(func(a, b int32) int32 { return a + b })},
		BinSub:      {TypeInt: intArith(func(a, b int64) int64 { return a - b }, func(a, b float64) float64 { return a - b }), TypeFloat: floatArith(func(a, b float64) float64 { return a - b }), TypeVec2: vec2Arith(func(a, b float32) float32 { return a - b }), TypeVec2i: vec2iArith(func(a, b int32) int32 { return a - b })},
		BinMul:      {TypeInt: intArith(func(a, b int64) int64 { return a * b }, func(a, b float64) float64 { return a * b }), TypeFloat: floatArith(func(a, b float64) float64 { return a * b })},
		BinFloorDiv: {TypeInt: intFloorDiv, TypeFloat: floatArith(func(a, b float64) float64 { return float64(int64(a / b)) })},
		BinMod:      {TypeInt: intMod, TypeFloat: floatArith(func(a, b float64) float64 { return a - b*float64(int64(a/b)) })},
		BinTrueDiv:  {TypeInt: intTrueDiv, TypeFloat: floatTrueDiv},
		BinPow:      {TypeInt: intPow, TypeFloat: floatPow},
	}
}

func numKind(v rtvalue.Value) (float64, bool, bool) {
	switch v.Kind() {
	case rtvalue.KindInt:
		return float64(v.AsInt()), true, true
	case rtvalue.KindFloat:
		return v.AsFloat(), false, true
	default:
		return 0, false, false
	}
}

// intArith builds an int slot from f; g is the same operator on floats,
// used when b is a float so the int operand is promoted rather than the
// float one truncated.
func intArith(f func(a, b int64) int64, g func(a, b float64) float64) binarySlotFunc {
	return func(vm *VM, a, b rtvalue.Value) (rtvalue.Value, SlotResult) {
		if b.Kind() != rtvalue.KindInt {
			if b.Kind() == rtvalue.KindFloat {
				return floatArith(g)(vm, a, b)
			}
			return rtvalue.None, SlotNotImplemented
		}
		return rtvalue.Int(f(a.AsInt(), b.AsInt())), SlotOK
	}
}

func floatArith(f func(a, b float64) float64) binarySlotFunc {
	return func(vm *VM, a, b rtvalue.Value) (rtvalue.Value, SlotResult) {
		bf, _, ok := numKind(b)
		if !ok {
			return rtvalue.None, SlotNotImplemented
		}
		af, _, _ := numKind(a)
		return rtvalue.Float(f(af, bf)), SlotOK
	}
}

func intFloorDiv(vm *VM, a, b rtvalue.Value) (rtvalue.Value, SlotResult) {
	if b.Kind() != rtvalue.KindInt {
		if b.Kind() == rtvalue.KindFloat {
			return floatArith(func(x, y float64) float64 { return float64(int64(x / y)) })(vm, a, b)
		}
		return rtvalue.None, SlotNotImplemented
	}
	if b.AsInt() == 0 {
		return rtvalue.None, vm.raiseZeroDiv()
	}
	return rtvalue.Int(floorDiv(a.AsInt(), b.AsInt())), SlotOK
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func intMod(vm *VM, a, b rtvalue.Value) (rtvalue.Value, SlotResult) {
	if b.Kind() != rtvalue.KindInt {
		if b.Kind() == rtvalue.KindFloat {
			return floatArith(func(x, y float64) float64 { return x - y*float64(int64(x/y)) })(vm, a, b)
		}
		return rtvalue.None, SlotNotImplemented
	}
	if b.AsInt() == 0 {
		return rtvalue.None, vm.raiseZeroDiv()
	}
	m := a.AsInt() % b.AsInt()
	if m != 0 && (m < 0) != (b.AsInt() < 0) {
		m += b.AsInt()
	}
	return rtvalue.Int(m), SlotOK
}

func intTrueDiv(vm *VM, a, b rtvalue.Value) (rtvalue.Value, SlotResult) {
	bf, _, ok := numKind(b)
	if !ok {
		return rtvalue.None, SlotNotImplemented
	}
	if bf == 0 {
		return rtvalue.None, vm.raiseZeroDiv()
	}
	af, _, _ := numKind(a)
	return rtvalue.Float(af / bf), SlotOK
}

func floatTrueDiv(vm *VM, a, b rtvalue.Value) (rtvalue.Value, SlotResult) {
	bf, _, ok := numKind(b)
	if !ok {
		return rtvalue.None, SlotNotImplemented
	}
	if bf == 0 {
		return rtvalue.None, vm.raiseZeroDiv()
	}
	af, _, _ := numKind(a)
	return rtvalue.Float(af / bf), SlotOK
}

func intPow(vm *VM, a, b rtvalue.Value) (rtvalue.Value, SlotResult) {
	if b.Kind() == rtvalue.KindInt && b.AsInt() >= 0 {
		res := int64(1)
		base := a.AsInt()
		for n := b.AsInt(); n > 0; n-- {
			res *= base
		}
		return rtvalue.Int(res), SlotOK
	}
	return floatPow(vm, a, b)
}

func floatPow(vm *VM, a, b rtvalue.Value) (rtvalue.Value, SlotResult) {
	af, _, ok1 := numKind(a)
	bf, _, ok2 := numKind(b)
	if !ok1 || !ok2 {
		return rtvalue.None, SlotNotImplemented
	}
	res := 1.0
	if bf == float64(int64(bf)) && bf >= 0 {
		for n := int64(bf); n > 0; n-- {
			res *= af
		}
	} else {
		res = math.Pow(af, bf)
	}
	return rtvalue.Float(res), SlotOK
}

// vec2Arith builds a component-wise vec2 binary op; b must also be a vec2,
// matching the builtin arithmetic slots' no-implicit-conversion rule for
// non-numeric types.
func vec2Arith(f func(a, b float32) float32) binarySlotFunc {
	return func(vm *VM, a, b rtvalue.Value) (rtvalue.Value, SlotResult) {
		if b.Kind() != rtvalue.KindVec2 {
			return rtvalue.None, SlotNotImplemented
		}
		ax, ay := a.AsVec2()
		bx, by := b.AsVec2()
		return rtvalue.NewVec2(f(ax, bx), f(ay, by)), SlotOK
	}
}

func vec2iArith(f func(a, b int32) int32) binarySlotFunc {
	return func(vm *VM, a, b rtvalue.Value) (rtvalue.Value, SlotResult) {
		if b.Kind() != rtvalue.KindVec2i {
			return rtvalue.None, SlotNotImplemented
		}
		ax, ay := a.AsVec2i()
		bx, by := b.AsVec2i()
		return rtvalue.NewVec2i(f(ax, bx), f(ay, by)), SlotOK
	}
}

func strConcat(vm *VM, a, b rtvalue.Value) (rtvalue.Value, SlotResult) {
	as, ok := vm.stringValue(a)
	if !ok {
		return rtvalue.None, SlotNotImplemented
	}
	bs, ok := vm.stringValue(b)
	if !ok {
		return rtvalue.None, SlotNotImplemented
	}
	var sb strings.Builder
	sb.WriteString(as)
	sb.WriteString(bs)
	return vm.newString(sb.String()), SlotOK
}

func (vm *VM) raiseZeroDiv() SlotResult {
	vm.Raisef("ZeroDivisionError", "division by zero")
	return SlotRaised
}

// BinaryOp implements binary_op: it tries the left operand's builtin slot,
// and if there is none or it returns SlotNotImplemented, the left type's
// __method__ found through its MRO; an exception raised by either
// propagates. If neither applies it raises TypeError. The right operand's
// type is not consulted: no reflected slot or __radd__-style method is
// tried.
func (vm *VM) BinaryOp(kind BinOpKind, a, b rtvalue.Value) (rtvalue.Value, bool) {
	if table, ok := arithSlots[kind]; ok {
		if fn, ok := table[vm.TypeOf(a).ID]; ok {
			v, res := fn(vm, a, b)
			switch res {
			case SlotOK:
				return v, true
			case SlotRaised:
				return rtvalue.None, false
			}
		}
	}
	// User-type operator methods, per spec's dynamic dispatch fallback
	// for types with no builtin fast-path slot.
	if v, found, ok := vm.tryUserBinOp(kind, a, b); found {
		return v, ok
	}
	return rtvalue.None, vm.raiseTypeErrorf("unsupported operand type(s): %q and %q",
		vm.TypeOf(a).Name.Text(), vm.TypeOf(b).Name.Text())
}

var binOpMethodNames = map[BinOpKind]rtvalue.Name{
	BinAdd:      rtvalue.Intern("__add__"),
	BinSub:      rtvalue.Intern("__sub__"),
	BinMul:      rtvalue.Intern("__mul__"),
	BinTrueDiv:  rtvalue.Intern("__truediv__"),
	BinFloorDiv: rtvalue.Intern("__floordiv__"),
	BinMod:      rtvalue.Intern("__mod__"),
	BinPow:      rtvalue.Intern("__pow__"),
}

func (vm *VM) tryUserBinOp(kind BinOpKind, a, b rtvalue.Value) (v rtvalue.Value, found, ok bool) {
	name := binOpMethodNames[kind]
	typ := vm.TypeOf(a)
	method, ok := LookupMethod(typ, name)
	if !ok {
		return rtvalue.None, false, false
	}
	bound := vm.bindDescriptor(method, a, typ)
	v, ok = vm.CallValue(bound, []rtvalue.Value{b})
	return v, true, ok
}

// CompareOp implements comparisons per the Open Question decision
// recorded in DESIGN.md: missing __eq__ falls back to identity; a present
// __eq__ with no __ne__ has __ne__ negate __eq__'s result; ordering
// operators (<,<=,>,>=) have no identity fallback and raise TypeError if
// unimplemented, matching Python's own behavior.
func (vm *VM) CompareOp(kind CompareKind, a, b rtvalue.Value) (rtvalue.Value, bool) {
	switch kind {
	case CmpEq, CmpNe:
		return vm.compareEq(kind, a, b)
	default:
		return vm.compareOrder(kind, a, b)
	}
}

func (vm *VM) compareEq(kind CompareKind, a, b rtvalue.Value) (rtvalue.Value, bool) {
	typ := vm.TypeOf(a)
	if method, ok := LookupMethod(typ, rtvalue.NameEq); ok {
		bound := vm.bindDescriptor(method, a, typ)
		eq, ok := vm.CallValue(bound, []rtvalue.Value{b})
		if !ok {
			return rtvalue.None, false
		}
		if kind == CmpEq {
			return eq, true
		}
		if ne, ok := LookupMethod(typ, rtvalue.NameNe); ok {
			boundNe := vm.bindDescriptor(ne, a, typ)
			return vm.CallValue(boundNe, []rtvalue.Value{b})
		}
		return rtvalue.Bool(!eq.Truthy()), true
	}
	// No __eq__: fall back to identity/scalar-value comparison.
	eq := valueEquals(a, b)
	if kind == CmpEq {
		return rtvalue.Bool(eq), true
	}
	return rtvalue.Bool(!eq), true
}

func valueEquals(a, b rtvalue.Value) bool {
	if a.Kind() != b.Kind() {
		// int/float cross-kind equality, matching Python's numeric tower.
		af, _, ok1 := numKind(a)
		bf, _, ok2 := numKind(b)
		if ok1 && ok2 {
			return af == bf
		}
		return false
	}
	return rtvalue.Identical(a, b)
}

func (vm *VM) compareOrder(kind CompareKind, a, b rtvalue.Value) (rtvalue.Value, bool) {
	af, _, ok1 := numKind(a)
	bf, _, ok2 := numKind(b)
	if ok1 && ok2 {
		var res bool
		switch kind {
		case CmpLt:
			res = af < bf
		case CmpLe:
			res = af <= bf
		case CmpGt:
			res = af > bf
		case CmpGe:
			res = af >= bf
		}
		return rtvalue.Bool(res), true
	}
	if as, ok1 := vm.stringValue(a); ok1 {
		if bs, ok2 := vm.stringValue(b); ok2 {
			var res bool
			switch kind {
			case CmpLt:
				res = as < bs
			case CmpLe:
				res = as <= bs
			case CmpGt:
				res = as > bs
			case CmpGe:
				res = as >= bs
			}
			return rtvalue.Bool(res), true
		}
	}
	return rtvalue.None, vm.raiseTypeErrorf("'%s' not supported between instances of %q and %q",
		compareSymbol(kind), vm.TypeOf(a).Name.Text(), vm.TypeOf(b).Name.Text())
}

func compareSymbol(kind CompareKind) string {
	switch kind {
	case CmpLt:
		return "<"
	case CmpLe:
		return "<="
	case CmpGt:
		return ">"
	case CmpGe:
		return ">="
	}
	return "?"
}
