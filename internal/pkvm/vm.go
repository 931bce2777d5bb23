// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package pkvm implements the core of an embeddable Python-subset
// runtime: a tagged value representation, a managed heap with a tracing
// mark-sweep collector, a dense type table with TypeID-indexed operator
// dispatch, and a bytecode interpreter with frames, a shared value
// stack, a vectorcall-based call protocol, and exception propagation.
//
// Compilation is out of scope: CodeObject values are built directly by a
// host compiler (or by tests) rather than produced by anything in this
// package.
package pkvm

import (
	"github.com/google/uuid"
	"github.com/pkvm-dev/pkvm/internal/config"
	"github.com/pkvm-dev/pkvm/internal/diag"
	"github.com/pkvm-dev/pkvm/internal/rtvalue"
)

// Hooks are the host callbacks the spec names as the runtime's only
// sanctioned boundary to the outside world: output, single-character
// input, import source loading, and cooperative cancellation.
type Hooks struct {
	ImportHooks
	Print        func(s string)
	Flush        func()
	GetChar      func() (rune, bool)
	CevalOnStep  func(vm *VM) bool // return false to request cooperative cancellation
}

// VM is the interpreter singleton: the active frame chain, the module
// registry, the dense type table, the builtins/__main__ module
// references, the shared value stack, the managed heap, the return-value
// and pending-exception slots, and a small host-scratch register file.
//
// A VM is never accessed from more than one goroutine at a time; the
// concurrency model (see slots.go) runs each independent VM on its own
// goroutine rather than sharing one VM across goroutines.
type VM struct {
	SessionID uuid.UUID

	top     *Frame
	modules *ModuleRegistry
	types   *TypeTable
	excTypes map[string]*Type
	seqIterType *Type
	superType   *Type

	builtins *Module
	main     *Module

	stack *ValueStack

	heap *Heap

	retval         rtvalue.Value
	currException  rtvalue.Value
	excState       excState
	handling       rtvalue.Value // exception currently being handled, for bare `raise`

	scratch [numScratchRegisters]rtvalue.Value

	hooks Hooks
	cfg   config.Config
	log   diag.Logger

	callDepth int
}

// New creates a VM using cfg for GC/stack/recursion tuning and log as the
// diagnostics sink. hooks may be the zero value; a VM with no hooks wired
// simply has import/print/getchar/cancellation act as no-ops/failures.
func New(cfg config.Config, log diag.Logger, hooks Hooks) *VM {
	vm := &VM{
		SessionID: uuid.New(),
		modules:   newModuleRegistry(),
		types:     newTypeTable(),
		stack:     newValueStack(cfg.MaxStackDepth),
		heap:      NewHeap(cfg.GCMinThreshold, log),
		hooks:     hooks,
		cfg:       cfg,
		log:       log,
		retval:    rtvalue.None,
		currException: rtvalue.None,
		handling:      rtvalue.None,
	}
	vm.registerBuiltinTypes()
	vm.initExceptionTypes()
	vm.builtins = newModule(rtvalue.Intern("builtins"), "builtins", false)
	vm.main = newModule(rtvalue.NameMain, "__main__", false)
	vm.main.Globals[rtvalue.NameName] = vm.newString("__main__")
	vm.modules.install("builtins", vm.builtins)
	vm.modules.install("__main__", vm.main)
	return vm
}

// Main returns the __main__ module, the entry point for exec/eval/single
// compile modes per spec.md §6.2.
func (vm *VM) Main() *Module { return vm.main }

// builtinTypeNames gives the name for each builtin TypeID, in exactly the
// const-declaration order of types.go, so table index == TypeID.
var builtinTypeNames = [numBuiltinTypes]string{
	TypeNone:         "NoneType",
	TypeBool:         "bool",
	TypeInt:          "int",
	TypeFloat:        "float",
	TypeVec2:         "vec2",
	TypeVec2i:        "vec2i",
	TypeStr:          "str",
	TypeList:         "list",
	TypeTuple:        "tuple",
	TypeDict:         "dict",
	TypeFunction:     "function",
	TypeNativeFunc:   "builtin_function",
	TypeBoundMethod:  "method",
	TypeClassMethod:  "classmethod",
	TypeStaticMethod: "staticmethod",
	TypeProperty:     "property",
	TypeType:         "type",
	TypeException:    "BaseException",
	TypeModule:       "module",
	TypeObject:       "object",
}

// noInstanceDict lists the builtin types whose HeapObject.attrs must stay
// nil forever (frozen scalars and containers with their own payload).
var noInstanceDict = map[TypeID]bool{
	TypeNone: true, TypeBool: true, TypeInt: true, TypeFloat: true,
	TypeVec2: true, TypeVec2i: true,
	TypeStr: true, TypeList: true, TypeTuple: true, TypeDict: true,
}

func (vm *VM) registerBuiltinTypes() {
	root := &Type{Name: rtvalue.Intern("object"), Namespace: map[rtvalue.Name]rtvalue.Value{}, AllowsInstanceDict: true}

	ids := make([]*Type, numBuiltinTypes)
	for id := TypeID(0); id < numBuiltinTypes; id++ {
		if id == TypeObject {
			continue
		}
		t := &Type{
			Name:               rtvalue.Intern(builtinTypeNames[id]),
			Base:               root,
			Namespace:          make(map[rtvalue.Name]rtvalue.Value),
			AllowsInstanceDict: !noInstanceDict[id],
			IsSealed:           id == TypeBool || id == TypeNone,
		}
		ids[id] = t
	}
	ids[TypeObject] = root

	// Register in TypeID order so table index equals the const value.
	for id := TypeID(0); id < numBuiltinTypes; id++ {
		vm.types.register(ids[id])
	}
	vm.installArithmeticSlots(ids)
}

// TypeOf returns the runtime Type of any Value, including scalars whose
// Kind alone determines it.
func (vm *VM) TypeOf(v rtvalue.Value) *Type {
	switch v.Kind() {
	case rtvalue.KindNone:
		return vm.types.Get(TypeNone)
	case rtvalue.KindBool:
		return vm.types.Get(TypeBool)
	case rtvalue.KindInt:
		return vm.types.Get(TypeInt)
	case rtvalue.KindFloat:
		return vm.types.Get(TypeFloat)
	case rtvalue.KindVec2:
		return vm.types.Get(TypeVec2)
	case rtvalue.KindVec2i:
		return vm.types.Get(TypeVec2i)
	case rtvalue.KindObj:
		obj := vm.heap.Get(v.AsRef())
		return vm.types.Get(obj.TypeID())
	}
	panic("pkvm: TypeOf: invalid Value")
}

// typeValue returns the stable self-reference Value for typ, allocating
// and pinning it the first time typ is referenced as a first-class value
// (e.g. to bind a classmethod's implicit first argument). The reference is
// cached so that `type(x) is type(y)` for two instances of the same type
// compares identical, and pinned so a GC pass run before anything else
// references it can't free it out from under the cache.
func (vm *VM) typeValue(typ *Type) rtvalue.Value {
	if !typ.hasSelfRef {
		ref := vm.heap.Alloc(&HeapObject{typeID: TypeType, payload: typ}, 16)
		vm.heap.Pin(ref)
		typ.selfRef = rtvalue.Obj(ref)
		typ.hasSelfRef = true
	}
	return typ.selfRef
}

// DefineSubclass creates a user-visible Python subclass of base, raising
// TypeError instead of silently declining when base.IsSealed (e.g. bool or
// NoneType, which CPython also refuses to let be subclassed).
func (vm *VM) DefineSubclass(name rtvalue.Name, base *Type) (*Type, bool) {
	typ, ok := vm.types.NewSubclass(name, base)
	if !ok {
		return nil, vm.raiseTypeErrorf("type %q is not an acceptable base type", base.Name.Text())
	}
	return typ, true
}

// newString allocates a str object.
func (vm *VM) newString(s string) rtvalue.Value {
	ref := vm.heap.Alloc(&HeapObject{typeID: TypeStr, payload: &strBox{s: s}}, len(s))
	return rtvalue.Obj(ref)
}

func (vm *VM) stringValue(v rtvalue.Value) (string, bool) {
	if v.Kind() != rtvalue.KindObj {
		return "", false
	}
	obj := vm.heap.Get(v.AsRef())
	box, ok := obj.payload.(*strBox)
	if !ok {
		return "", false
	}
	return box.s, true
}

// newList allocates a list object from items (copied).
func (vm *VM) newList(items []rtvalue.Value) rtvalue.Value {
	cp := append([]rtvalue.Value(nil), items...)
	ref := vm.heap.Alloc(&HeapObject{typeID: TypeList, payload: &listBox{items: cp}}, 16+len(cp)*4)
	return rtvalue.Obj(ref)
}

// GCRoots implements RootSource: every type's Namespace values, the frame
// chain's locals, live stack windows and closure cells, the module
// registry's globals, the retval/pending/handled-exception slots and the
// scratch registers. Type self-reference values are kept alive separately,
// via the heap's pinned set (see typeValue), not through this root list.
func (vm *VM) GCRoots() []rtvalue.Value {
	var roots []rtvalue.Value
	for _, t := range vm.types.types {
		for _, v := range t.Namespace {
			roots = append(roots, v)
		}
	}
	for f := vm.top; f != nil; f = f.Parent {
		roots = append(roots, f.Locals...)
		roots = append(roots, f.liveStackRoots(vm.stack)...)
		for _, c := range f.Closure {
			if c != nil {
				roots = append(roots, c.v)
			}
		}
	}
	roots = append(roots, vm.modules.roots()...)
	roots = append(roots, vm.retval, vm.currException, vm.handling)
	roots = append(roots, vm.scratch[:]...)
	return roots
}

// MaybeCollect runs a GC pass if the allocation-threshold policy says one
// is due. The interpreter calls this between bytecode instructions at
// safe points (never mid-instruction, since intermediate Values living
// only in Go locals during an instruction's execution are not roots).
func (vm *VM) MaybeCollect() {
	if vm.heap.ShouldCollect() {
		vm.heap.Collect(vm)
	}
}

// Stats exposes heap statistics for host introspection (e.g. `pkvm
// stats`).
func (vm *VM) Stats() Stats { return vm.heap.Stats() }

// numScratchRegisters is the size of the host-side scratch register file
// (spec.md §3.8): a small fixed set of Value slots an embedder can park
// values in across calls into the VM without needing its own GC roots.
const numScratchRegisters = 8

// Scratch reads host-side scratch register i. Values held here are kept
// alive across collections via GCRoots.
func (vm *VM) Scratch(i int) rtvalue.Value { return vm.scratch[i] }

// SetScratch writes host-side scratch register i.
func (vm *VM) SetScratch(i int, v rtvalue.Value) { vm.scratch[i] = v }
