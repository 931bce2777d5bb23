// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pkvm

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pkvm-dev/pkvm/internal/config"
	"github.com/pkvm-dev/pkvm/internal/diag"
	"github.com/pkvm-dev/pkvm/internal/rtvalue"
)

func newTestVM(t *testing.T) *VM {
	t.Helper()
	return New(config.Default(), diag.Discard(), Hooks{})
}

func run(t *testing.T, vm *VM, asm string) (rtvalue.Value, bool) {
	t.Helper()
	code, err := Assemble("test", asm)
	require.NoError(t, err)
	return vm.RunCode(code, vm.Main())
}

func TestArithmetic(t *testing.T) {
	vm := newTestVM(t)
	v, ok := run(t, vm, `
.const int 2
.const int 3
LOAD_CONST 0
LOAD_CONST 1
BINARY_OP +
RETURN
`)
	require.True(t, ok)
	require.Equal(t, int64(5), v.AsInt())
}

func TestLocalsStoreLoad(t *testing.T) {
	vm := newTestVM(t)
	v, ok := run(t, vm, `
.const int 10
.const int 5
.local x
LOAD_CONST 0
STORE_FAST x
LOAD_FAST x
LOAD_CONST 1
BINARY_OP +
RETURN
`)
	require.True(t, ok)
	require.Equal(t, int64(15), v.AsInt())
}

func TestComparisonIdentityFallback(t *testing.T) {
	vm := newTestVM(t)
	v, ok := run(t, vm, `
.const int 3
.const int 3
LOAD_CONST 0
LOAD_CONST 1
COMPARE_OP ==
RETURN
`)
	require.True(t, ok)
	require.True(t, v.AsBool())
}

func TestZeroDivisionRaises(t *testing.T) {
	vm := newTestVM(t)
	_, ok := run(t, vm, `
.const int 1
.const int 0
LOAD_CONST 0
LOAD_CONST 1
BINARY_OP //
RETURN
`)
	require.False(t, ok)
	exc, pending := vm.PendingException()
	require.True(t, pending)
	require.Equal(t, vm.ExcType("ZeroDivisionError"), vm.TypeOf(exc))
}

func TestForIterSumsAList(t *testing.T) {
	vm := newTestVM(t)
	v, ok := run(t, vm, `
.const int 1
.const int 2
.const int 3
.const int 0
.local sum
.local val
LOAD_CONST 3
STORE_FAST sum
LOAD_CONST 0
LOAD_CONST 1
LOAD_CONST 2
BUILD_LIST 3
GET_ITER
FOR_ITER 14
STORE_FAST val
LOAD_FAST sum
LOAD_FAST val
BINARY_OP +
STORE_FAST sum
JUMP 7
LOAD_FAST sum
RETURN
`)
	require.True(t, ok)
	require.Equal(t, int64(6), v.AsInt())
}

func TestTryExceptCatchesZeroDivision(t *testing.T) {
	vm := newTestVM(t)
	code := &CodeObject{
		Name:    rtvalue.Intern("catch"),
		NLocals: 1,
		Consts:  []rtvalue.Value{rtvalue.Int(1), rtvalue.Int(0)},
		Code: []Instr{
			{Op: OpLoadConst, A: 0},
			{Op: OpLoadConst, A: 1},
			{Op: OpBinaryOp, A: int32(BinFloorDiv)},
			{Op: OpLoadFast, A: 0},
			{Op: OpReturn},
		},
		Blocks: []BlockEntry{
			{Kind: BlockTry, Start: 0, End: 3, Target: 3, ExcLocal: 0},
		},
	}
	v, ok := vm.RunCode(code, vm.Main())
	require.True(t, ok)
	require.Equal(t, rtvalue.KindObj, v.Kind())
	require.Equal(t, vm.ExcType("ZeroDivisionError"), vm.TypeOf(v))
}

// TestTryExceptTypeMismatchFallsThroughToOuterHandler proves except
// matching is type-aware: an inner handler declaring TypeError must not
// catch a ZeroDivisionError, so control must fall through to the wider,
// catch-all outer handler instead.
func TestTryExceptTypeMismatchFallsThroughToOuterHandler(t *testing.T) {
	vm := newTestVM(t)
	code := &CodeObject{
		Name:    rtvalue.Intern("nested"),
		NLocals: 1,
		Consts:  []rtvalue.Value{rtvalue.Int(1), rtvalue.Int(0)},
		Code: []Instr{
			{Op: OpLoadConst, A: 0},
			{Op: OpLoadConst, A: 1},
			{Op: OpBinaryOp, A: int32(BinFloorDiv)}, // raises at ip=2
			{Op: OpLoadFast, A: 0},
			{Op: OpReturn},
		},
		Blocks: []BlockEntry{
			// Narrower, innermost block: only catches TypeError. Must be
			// skipped, since ZeroDivisionError is not a TypeError.
			{Kind: BlockTry, Start: 1, End: 3, Target: 10, ExcLocal: -1, ExcTypes: []TypeID{vm.ExcType("TypeError").ID}},
			// Wider, outer block: bare except, catches anything.
			{Kind: BlockTry, Start: 0, End: 4, Target: 3, ExcLocal: 0},
		},
	}
	v, ok := vm.RunCode(code, vm.Main())
	require.True(t, ok)
	require.Equal(t, rtvalue.KindObj, v.Kind())
	require.Equal(t, vm.ExcType("ZeroDivisionError"), vm.TypeOf(v))
}

func TestReraisePropagatesSameException(t *testing.T) {
	vm := newTestVM(t)
	code := &CodeObject{
		Name:    rtvalue.Intern("reraise"),
		NLocals: 1,
		Consts:  []rtvalue.Value{rtvalue.Int(1), rtvalue.Int(0)},
		Code: []Instr{
			{Op: OpLoadConst, A: 0},
			{Op: OpLoadConst, A: 1},
			{Op: OpBinaryOp, A: int32(BinFloorDiv)}, // raises at ip=2
			{Op: OpReraise},                         // handler body: bare re-raise
		},
		Blocks: []BlockEntry{
			{Kind: BlockTry, Start: 0, End: 3, Target: 3, ExcLocal: -1},
		},
	}
	_, ok := vm.RunCode(code, vm.Main())
	require.False(t, ok)
	exc, pending := vm.PendingException()
	require.True(t, pending)
	require.Equal(t, vm.ExcType("ZeroDivisionError"), vm.TypeOf(exc))
}

func TestReraiseWithNoActiveExceptionRaisesRuntimeError(t *testing.T) {
	vm := newTestVM(t)
	_, ok := run(t, vm, `
RERAISE
`)
	require.False(t, ok)
	exc, pending := vm.PendingException()
	require.True(t, pending)
	require.Equal(t, vm.ExcType("RuntimeError"), vm.TypeOf(exc))
}

// TestCevalOnStepFiresEveryOpcode drives a genuine infinite bytecode loop
// through step() and confirms cooperative cancellation takes effect after
// a bounded number of opcodes, proving the hook is consulted every
// instruction rather than once per call into step().
func TestCevalOnStepFiresEveryOpcode(t *testing.T) {
	steps := 0
	hooks := Hooks{CevalOnStep: func(vm *VM) bool {
		steps++
		return steps <= 3
	}}
	vm := New(config.Default(), diag.Discard(), hooks)
	_, ok := run(t, vm, `
.const int 0
LOAD_CONST 0
POP_TOP
JUMP 0
`)
	require.False(t, ok)
	exc, pending := vm.PendingException()
	require.True(t, pending)
	require.Equal(t, vm.ExcType("RuntimeError"), vm.TypeOf(exc))
	require.Equal(t, 4, steps)
}

func TestUnboundLocalRaisesBeforeAssignment(t *testing.T) {
	vm := newTestVM(t)
	_, ok := run(t, vm, `
.local x
LOAD_FAST x
RETURN
`)
	require.False(t, ok)
	exc, pending := vm.PendingException()
	require.True(t, pending)
	require.Equal(t, vm.ExcType("UnboundLocalError"), vm.TypeOf(exc))
}

func TestVec2ArithmeticAndIdentity(t *testing.T) {
	vm := newTestVM(t)
	a := rtvalue.NewVec2(1, 2)
	b := rtvalue.NewVec2(3, 4)
	require.Equal(t, TypeVec2, vm.TypeOf(a).ID)

	sum, ok := vm.BinaryOp(BinAdd, a, b)
	require.True(t, ok)
	x, y := sum.AsVec2()
	require.Equal(t, float32(4), x)
	require.Equal(t, float32(6), y)

	i := rtvalue.NewVec2i(1, 1)
	j := rtvalue.NewVec2i(2, 3)
	diff, ok := vm.BinaryOp(BinSub, j, i)
	require.True(t, ok)
	ix, iy := diff.AsVec2i()
	require.Equal(t, int32(1), ix)
	require.Equal(t, int32(2), iy)
}

func TestTypeValueIsStableAcrossCalls(t *testing.T) {
	vm := newTestVM(t)
	typ := vm.types.Get(TypeInt)
	a := vm.typeValue(typ)
	b := vm.typeValue(typ)
	require.True(t, rtvalue.Identical(a, b))
}

func TestSealedTypeRejectsSubclassing(t *testing.T) {
	vm := newTestVM(t)
	_, ok := vm.DefineSubclass(rtvalue.Intern("MyBool"), vm.types.Get(TypeBool))
	require.False(t, ok)
	exc, pending := vm.PendingException()
	require.True(t, pending)
	require.Equal(t, vm.ExcType("TypeError"), vm.TypeOf(exc))
}

func TestCallNativeFunction(t *testing.T) {
	vm := newTestVM(t)
	doubled := func(vm *VM, args []rtvalue.Value) (rtvalue.Value, bool) {
		return rtvalue.Int(args[0].AsInt() * 2), true
	}
	ref := vm.heap.Alloc(&HeapObject{typeID: TypeNativeFunc, payload: &nativeFuncBox{name: rtvalue.Intern("double"), fn: doubled}}, 16)
	vm.Main().Globals[rtvalue.Intern("double")] = rtvalue.Obj(ref)

	v, ok := run(t, vm, `
.const int 21
LOAD_GLOBAL double
LOAD_CONST 0
CALL 1
RETURN
`)
	require.True(t, ok)
	require.Equal(t, int64(42), v.AsInt())
}

func TestRecursionLimitRaises(t *testing.T) {
	cfg := config.Default()
	cfg.MaxRecursion = 8
	vm := New(cfg, diag.Discard(), Hooks{})

	var callable rtvalue.Value
	var self *nativeFuncBox
	self = &nativeFuncBox{name: rtvalue.Intern("inf"), fn: func(vm *VM, args []rtvalue.Value) (rtvalue.Value, bool) {
		return vm.CallValue(callable, nil)
	}}
	ref := vm.heap.Alloc(&HeapObject{typeID: TypeNativeFunc, payload: self}, 16)
	callable = rtvalue.Obj(ref)

	_, ok := vm.CallValue(callable, nil)
	require.False(t, ok)
	exc, pending := vm.PendingException()
	require.True(t, pending)
	require.Equal(t, vm.ExcType("RecursionError"), vm.TypeOf(exc))
}

func TestListSubscriptGetAndSet(t *testing.T) {
	vm := newTestVM(t)
	v, ok := run(t, vm, `
.local lst
.const int 10
.const int 20
.const int 30
.const int 99
.const int 1
.const int -1
LOAD_CONST 0
LOAD_CONST 1
LOAD_CONST 2
BUILD_LIST 3
STORE_FAST lst
LOAD_CONST 3
LOAD_FAST lst
LOAD_CONST 4
STORE_SUBSCR
LOAD_FAST lst
LOAD_CONST 5
BINARY_SUBSCR
RETURN
`)
	require.True(t, ok)
	require.Equal(t, int64(30), v.AsInt())
}

func TestDictSubscriptGetSetAndKeyError(t *testing.T) {
	vm := newTestVM(t)
	v, ok := run(t, vm, `
.local d
.const int 1
.const int 2
BUILD_DICT 0
STORE_FAST d
LOAD_CONST 1
LOAD_FAST d
LOAD_CONST 0
STORE_SUBSCR
LOAD_FAST d
LOAD_CONST 0
BINARY_SUBSCR
RETURN
`)
	require.True(t, ok)
	require.Equal(t, int64(2), v.AsInt())

	_, ok = run(t, vm, `
.const int 7
BUILD_DICT 0
LOAD_CONST 0
BINARY_SUBSCR
RETURN
`)
	require.False(t, ok)
	exc, pending := vm.PendingException()
	require.True(t, pending)
	require.Equal(t, vm.ExcType("KeyError"), vm.TypeOf(exc))
}
