// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pkvm

import "github.com/pkvm-dev/pkvm/internal/rtvalue"

// StepResult reports why the interpreter loop returned control to its
// driver: the frame returned normally, the frame yielded, or an exception
// is propagating.
type StepResult uint8

const (
	StepReturn StepResult = iota
	StepYield
	StepError
)

// RunCode executes code as a fresh top-level frame against module's
// globals and returns the frame's final return value.
func (vm *VM) RunCode(code *CodeObject, module *Module) (rtvalue.Value, bool) {
	frame := newFrame(code, module, rtvalue.None, vm.stack.Depth(), vm.top)
	return vm.runFrame(frame)
}

// CallValue is the vectorcall entry point: it takes args as a Go slice
// (not copied onto the shared value stack) and dispatches according to callable's Kind and,
// for heap objects, payload type, per the spec's call-protocol table.
func (vm *VM) CallValue(callable rtvalue.Value, args []rtvalue.Value) (rtvalue.Value, bool) {
	vm.callDepth++
	if vm.callDepth > vm.cfg.MaxRecursion {
		vm.callDepth--
		return rtvalue.None, vm.Raisef("RecursionError", "maximum recursion depth exceeded")
	}
	defer func() { vm.callDepth-- }()

	if callable.Kind() != rtvalue.KindObj {
		return rtvalue.None, vm.raiseTypeErrorf("%q object is not callable", vm.TypeOf(callable).Name.Text())
	}
	obj := vm.heap.Get(callable.AsRef())
	switch p := obj.payload.(type) {
	case *nativeFuncBox:
		return p.fn(vm, args)
	case *funcBox:
		return vm.callFunction(p, args, callable)
	case *boundMethodBox:
		return vm.CallValue(p.fn, append([]rtvalue.Value{p.self}, args...))
	case *Type:
		return vm.instantiate(p, args)
	default:
		typ := vm.types.Get(obj.TypeID())
		if method, ok := LookupMethod(typ, rtvalue.NameCall); ok {
			bound := vm.bindDescriptor(method, callable, typ)
			return vm.CallValue(bound, args)
		}
		return rtvalue.None, vm.raiseTypeErrorf("%q object is not callable", typ.Name.Text())
	}
}

func (vm *VM) callFunction(fb *funcBox, args []rtvalue.Value, callable rtvalue.Value) (rtvalue.Value, bool) {
	code := fb.code
	if len(args) > code.NArgs {
		if len(args) > len(code.Varnames) {
			return rtvalue.None, vm.raiseTypeErrorf("%s() takes at most %d arguments (%d given)", code.Name.Text(), len(code.Varnames), len(args))
		}
	}
	frame := newFrame(code, fb.module, callable, vm.stack.Depth(), vm.top)
	frame.Closure = fb.closure
	for i := 0; i < code.NArgs; i++ {
		if i < len(args) {
			frame.Locals[i] = args[i]
		} else if d := i - code.NArgs + len(fb.defaults); d >= 0 && d < len(fb.defaults) {
			frame.Locals[i] = fb.defaults[d]
		} else {
			return rtvalue.None, vm.raiseTypeErrorf("%s() missing required argument", code.Name.Text())
		}
	}
	return vm.runFrame(frame)
}

func (vm *VM) instantiate(typ *Type, args []rtvalue.Value) (rtvalue.Value, bool) {
	obj := &HeapObject{typeID: typ.ID}
	if typ.AllowsInstanceDict {
		obj.payload = &instanceBox{}
	}
	ref := vm.heap.Alloc(obj, 48)
	self := rtvalue.Obj(ref)
	if init, ok := LookupMethod(typ, rtvalue.NameInit); ok {
		bound := vm.bindDescriptor(init, self, typ)
		if _, ok := vm.CallValue(bound, args); !ok {
			return rtvalue.None, false
		}
	}
	return self, true
}

// runFrame pushes frame as the active frame and drives the bytecode loop
// until it returns, yields, or propagates an exception to its caller.
func (vm *VM) runFrame(frame *Frame) (rtvalue.Value, bool) {
	prevTop := vm.top
	vm.top = frame
	defer func() { vm.top = prevTop }()

	for {
		result := vm.step(frame)
		switch result {
		case StepReturn:
			vm.stack.ShrinkTo(frame.p0)
			return vm.retval, true
		case StepYield:
			// Generators are represented as frames suspended mid-loop;
			// full generator-object wrapping is a builtins-library
			// concern, out of scope for the core (spec.md Non-goals).
			// The core only guarantees a YIELD opcode suspends correctly
			// and RESUME (re-entering runFrame on the same frame) picks
			// up where it left off.
			return vm.retval, true
		case StepError:
			vm.stack.ShrinkTo(frame.p0)
			return rtvalue.None, false
		}
	}
}

// step executes bytecode starting at frame.IP until a RETURN, YIELD,
// unhandled-locally exception, or (after handling) a resumed try block
// changes control flow; it returns the StepResult describing why it
// stopped. Each iteration of the inner loop is one opcode.
func (vm *VM) step(frame *Frame) StepResult {
	code := frame.Code
	for frame.IP < len(code.Code) {
		if vm.hooks.CevalOnStep != nil && !vm.hooks.CevalOnStep(vm) {
			vm.Raisef("RuntimeError", "execution cancelled")
			return vm.unwindOrPropagate(frame)
		}
		vm.MaybeCollect()
		instr := code.Code[frame.IP]
		frame.IP++

		switch instr.Op {
		case OpLoadConst:
			vm.stack.Push(code.Consts[instr.A])
		case OpLoadFast:
			v := frame.Locals[instr.A]
			if v.Kind() == rtvalue.KindUnbound {
				vm.Raisef("UnboundLocalError", "local variable %q referenced before assignment", code.Varnames[instr.A].Text())
				return vm.unwindOrPropagate(frame)
			}
			vm.stack.Push(v)
		case OpStoreFast:
			frame.Locals[instr.A] = vm.stack.Pop()
		case OpLoadClosure:
			vm.stack.Push(frame.Closure[instr.A].v)
		case OpStoreClosure:
			frame.Closure[instr.A].v = vm.stack.Pop()
		case OpMakeCell:
			frame.Closure[instr.A] = &cell{v: rtvalue.None}
		case OpLoadGlobal:
			v, ok := frame.Module.Globals[instr.Name]
			if !ok {
				v, ok = vm.builtins.Globals[instr.Name]
			}
			if !ok {
				vm.Raisef("NameError", "name %q is not defined", instr.Name.Text())
				return vm.unwindOrPropagate(frame)
			}
			vm.stack.Push(v)
		case OpStoreGlobal:
			frame.Module.Globals[instr.Name] = vm.stack.Pop()
		case OpLoadName:
			v, ok := frame.Module.Globals[instr.Name]
			if !ok {
				v, ok = vm.builtins.Globals[instr.Name]
			}
			if !ok {
				vm.Raisef("NameError", "name %q is not defined", instr.Name.Text())
				return vm.unwindOrPropagate(frame)
			}
			vm.stack.Push(v)
		case OpLoadAttr:
			recv := vm.stack.Pop()
			v, ok := vm.GetAttr(recv, instr.Name)
			if !ok {
				return vm.unwindOrPropagate(frame)
			}
			vm.stack.Push(v)
		case OpStoreAttr:
			val := vm.stack.Pop()
			recv := vm.stack.Pop()
			if !vm.SetAttr(recv, instr.Name, val) {
				return vm.unwindOrPropagate(frame)
			}
		case OpBinaryOp:
			b := vm.stack.Pop()
			a := vm.stack.Pop()
			v, ok := vm.BinaryOp(BinOpKind(instr.A), a, b)
			if !ok {
				return vm.unwindOrPropagate(frame)
			}
			vm.stack.Push(v)
		case OpCompareOp:
			b := vm.stack.Pop()
			a := vm.stack.Pop()
			v, ok := vm.CompareOp(CompareKind(instr.A), a, b)
			if !ok {
				return vm.unwindOrPropagate(frame)
			}
			vm.stack.Push(v)
		case OpUnaryNeg:
			a := vm.stack.Pop()
			v, ok := vm.unaryNeg(a)
			if !ok {
				return vm.unwindOrPropagate(frame)
			}
			vm.stack.Push(v)
		case OpUnaryNot:
			a := vm.stack.Pop()
			vm.stack.Push(rtvalue.Bool(!vm.truthy(a)))
		case OpContains:
			b := vm.stack.Pop()
			a := vm.stack.Pop()
			v, ok := vm.contains(a, b)
			if !ok {
				return vm.unwindOrPropagate(frame)
			}
			vm.stack.Push(v)
		case OpPopTop:
			vm.stack.Pop()
		case OpDupTop:
			vm.stack.Push(vm.stack.Top())
		case OpSwap:
			a := vm.stack.Pop()
			b := vm.stack.Pop()
			vm.stack.Push(a)
			vm.stack.Push(b)
		case OpJump:
			frame.IP = int(instr.A)
		case OpJumpIfFalse:
			if !vm.truthy(vm.stack.Pop()) {
				frame.IP = int(instr.A)
			}
		case OpJumpIfTrue:
			if vm.truthy(vm.stack.Pop()) {
				frame.IP = int(instr.A)
			}
		case OpGetIter:
			v := vm.stack.Pop()
			it, ok := vm.getIter(v)
			if !ok {
				return vm.unwindOrPropagate(frame)
			}
			vm.stack.Push(it)
		case OpForIter:
			it := vm.stack.Top()
			v, stop, ok := vm.iterNext(it)
			if !ok {
				return vm.unwindOrPropagate(frame)
			}
			if stop {
				vm.stack.Pop()
				frame.IP = int(instr.A)
			} else {
				vm.stack.Push(v)
			}
		case OpBuildList:
			n := int(instr.A)
			items := make([]rtvalue.Value, n)
			for i := n - 1; i >= 0; i-- {
				items[i] = vm.stack.Pop()
			}
			vm.stack.Push(vm.newList(items))
		case OpBuildTuple:
			n := int(instr.A)
			items := make([]rtvalue.Value, n)
			for i := n - 1; i >= 0; i-- {
				items[i] = vm.stack.Pop()
			}
			ref := vm.heap.Alloc(&HeapObject{typeID: TypeTuple, payload: &listBox{items: items}}, 16+4*n)
			vm.stack.Push(rtvalue.Obj(ref))
		case OpBuildDict:
			n := int(instr.A)
			keys := make([]rtvalue.Value, n)
			values := make([]rtvalue.Value, n)
			for i := n - 1; i >= 0; i-- {
				values[i] = vm.stack.Pop()
				keys[i] = vm.stack.Pop()
			}
			vm.stack.Push(vm.newDict(keys, values))
		case OpBuildString:
			n := int(instr.A)
			parts := make([]string, n)
			for i := n - 1; i >= 0; i-- {
				parts[i], _ = vm.stringValue(vm.stack.Pop())
			}
			joined := ""
			for _, p := range parts {
				joined += p
			}
			vm.stack.Push(vm.newString(joined))
		case OpCall:
			argc := int(instr.A)
			args := make([]rtvalue.Value, argc)
			for i := argc - 1; i >= 0; i-- {
				args[i] = vm.stack.Pop()
			}
			callee := vm.stack.Pop()
			v, ok := vm.CallValue(callee, args)
			if !ok {
				return vm.unwindOrPropagate(frame)
			}
			vm.stack.Push(v)
		case OpReturn:
			vm.retval = vm.stack.Pop()
			return StepReturn
		case OpYield:
			vm.retval = vm.stack.Pop()
			return StepYield
		case OpRaise:
			exc := vm.stack.Pop()
			vm.Raise(exc)
			return vm.unwindOrPropagate(frame)
		case OpReraise:
			if vm.handling.IsNone() {
				vm.Raisef("RuntimeError", "no active exception to re-raise")
			} else {
				vm.Raise(vm.handling)
			}
			return vm.unwindOrPropagate(frame)
		case OpSetupTry:
			// No-op marker left in the instruction stream for symmetry
			// with a compiler's emission; unwinding is block-table
			// driven (BlocksActiveAt), not stack driven, so entering a
			// try region needs no runtime bookkeeping of its own.
		case OpPopBlock:
			// Block exit for the normal (no-exception) path: context
			// managers pop their __exit__ value here.
			if b, ok := code.BlockAt(frame.IP-1, BlockWith); ok {
				_ = b
				vm.stack.Pop() // the context value pushed by the with-statement
			}
		case OpImport:
			m, ok := vm.Import(instr.Name.Text())
			if !ok {
				return vm.unwindOrPropagate(frame)
			}
			frame.Module.Globals[instr.Name] = vm.moduleValue(m)
		case OpImportFrom:
			modVal := vm.stack.Pop()
			mod := vm.moduleFromValue(modVal)
			v, ok := mod.Globals[instr.Name]
			if !ok {
				vm.Raisef("ImportError", "cannot import name %q", instr.Name.Text())
				return vm.unwindOrPropagate(frame)
			}
			vm.stack.Push(v)
		case OpMakeFunction:
			nestedIdx := int(instr.A)
			nested := code.Nested[nestedIdx]
			ndefaults := int(instr.B)
			defaults := make([]rtvalue.Value, ndefaults)
			for i := ndefaults - 1; i >= 0; i-- {
				defaults[i] = vm.stack.Pop()
			}
			fn := vm.makeFunction(nested, frame, defaults)
			vm.stack.Push(fn)
		case OpBinarySubscr:
			key := vm.stack.Pop()
			container := vm.stack.Pop()
			v, ok := vm.getItem(container, key)
			if !ok {
				return vm.unwindOrPropagate(frame)
			}
			vm.stack.Push(v)
		case OpStoreSubscr:
			key := vm.stack.Pop()
			container := vm.stack.Pop()
			value := vm.stack.Pop()
			if !vm.setItem(container, key, value) {
				return vm.unwindOrPropagate(frame)
			}
		case OpUnpackSequence:
			n := int(instr.A)
			seq := vm.stack.Pop()
			items, ok := vm.sequenceItems(seq)
			if !ok {
				return vm.unwindOrPropagate(frame)
			}
			if len(items) != n {
				vm.Raisef("ValueError", "expected %d values to unpack, got %d", n, len(items))
				return vm.unwindOrPropagate(frame)
			}
			for i := n - 1; i >= 0; i-- {
				vm.stack.Push(items[i])
			}
		default:
			panic("pkvm: unknown opcode")
		}
	}
	return StepReturn
}

// unwindOrPropagate walks the try blocks covering the instruction that
// raised, innermost first, looking for the first whose declared except
// classes match the pending exception (type identity or subclass of any
// one declared class; a bare `except:` with no declared classes matches
// anything). On a match it jumps to the handler (optionally storing the
// exception into the handler's designated local) and marks the exception
// handled, resuming bytecode execution. If no covering try block matches,
// every active loop block drops its iterator from the stack and StepError
// is returned so the exception keeps propagating to the caller's frame.
// With blocks are not popped here and no __exit__ is called; the with
// block's context value goes when runFrame discards the frame's stack
// window.
func (vm *VM) unwindOrPropagate(frame *Frame) StepResult {
	ip := frame.IP - 1
	if ip < 0 {
		ip = 0
	}
	for _, b := range frame.Code.TryBlocksAt(ip) {
		if !vm.excMatches(b.ExcTypes) {
			continue
		}
		vm.markHandled()
		vm.handling = vm.currException
		if b.ExcLocal >= 0 {
			frame.Locals[b.ExcLocal] = vm.currException
		}
		vm.ClearException()
		frame.IP = int(b.Target)
		return vm.stepContinue(frame)
	}
	for _, b := range frame.Code.BlocksActiveAt(ip) {
		if b.Kind == BlockLoop {
			vm.stack.Pop() // drop the iterator FOR_ITER left on the stack
		}
	}
	return StepError
}

// excMatches reports whether the currently pending exception's type is
// declared, or is a subclass of a declared type, anywhere in declared; an
// empty declared list is a bare `except:` and matches unconditionally.
func (vm *VM) excMatches(declared []TypeID) bool {
	if len(declared) == 0 {
		return true
	}
	excTyp := vm.TypeOf(vm.currException)
	for _, id := range declared {
		if IsSubclass(excTyp, vm.types.Get(id)) {
			return true
		}
	}
	return false
}

// stepContinue re-enters the bytecode loop after a handler jump by calling
// step again for the same frame. This is a nested Go call, so each handled
// exception adds one step call to Go's own stack until the frame returns.
func (vm *VM) stepContinue(frame *Frame) StepResult {
	return vm.step(frame)
}

func (vm *VM) truthy(v rtvalue.Value) bool {
	if v.Kind() != rtvalue.KindObj {
		return v.Truthy()
	}
	typ := vm.TypeOf(v)
	if method, ok := LookupMethod(typ, rtvalue.NameBool); ok {
		bound := vm.bindDescriptor(method, v, typ)
		res, ok := vm.CallValue(bound, nil)
		if ok {
			return res.Truthy()
		}
	}
	return true
}

func (vm *VM) unaryNeg(v rtvalue.Value) (rtvalue.Value, bool) {
	switch v.Kind() {
	case rtvalue.KindInt:
		return rtvalue.Int(-v.AsInt()), true
	case rtvalue.KindFloat:
		return rtvalue.Float(-v.AsFloat()), true
	}
	return rtvalue.None, vm.raiseTypeErrorf("bad operand type for unary -: %q", vm.TypeOf(v).Name.Text())
}

func (vm *VM) contains(container, item rtvalue.Value) (rtvalue.Value, bool) {
	typ := vm.TypeOf(container)
	if method, ok := LookupMethod(typ, rtvalue.Intern("__contains__")); ok {
		bound := vm.bindDescriptor(method, container, typ)
		return vm.CallValue(bound, []rtvalue.Value{item})
	}
	if container.Kind() == rtvalue.KindObj {
		obj := vm.heap.Get(container.AsRef())
		if lb, ok := obj.payload.(*listBox); ok {
			for _, v := range lb.items {
				if valueEquals(v, item) {
					return rtvalue.True, true
				}
			}
			return rtvalue.False, true
		}
		if db, ok := obj.payload.(*dictBox); ok {
			_, found := vm.dictFind(db, item)
			return rtvalue.Bool(found), true
		}
	}
	return rtvalue.None, vm.raiseTypeErrorf("argument of type %q is not iterable", typ.Name.Text())
}

// getItem implements container[key] for the builtin sequence/mapping
// types, falling back to the __getitem__ dunder for user-defined types.
func (vm *VM) getItem(container, key rtvalue.Value) (rtvalue.Value, bool) {
	typ := vm.TypeOf(container)
	if method, ok := LookupMethod(typ, rtvalue.Intern("__getitem__")); ok {
		bound := vm.bindDescriptor(method, container, typ)
		return vm.CallValue(bound, []rtvalue.Value{key})
	}
	if container.Kind() == rtvalue.KindObj {
		obj := vm.heap.Get(container.AsRef())
		switch p := obj.payload.(type) {
		case *listBox:
			idx, ok := vm.sequenceIndex(p.items, key)
			if !ok {
				return rtvalue.None, false
			}
			return p.items[idx], true
		case *dictBox:
			idx, found := vm.dictFind(p, key)
			if !found {
				return rtvalue.None, vm.Raisef("KeyError", "%s", key.String())
			}
			return p.values[idx], true
		}
	}
	return rtvalue.None, vm.raiseTypeErrorf("%q object is not subscriptable", typ.Name.Text())
}

// setItem implements container[key] = value, falling back to the
// __setitem__ dunder for user-defined types.
func (vm *VM) setItem(container, key, value rtvalue.Value) bool {
	typ := vm.TypeOf(container)
	if method, ok := LookupMethod(typ, rtvalue.Intern("__setitem__")); ok {
		bound := vm.bindDescriptor(method, container, typ)
		_, ok := vm.CallValue(bound, []rtvalue.Value{key, value})
		return ok
	}
	if container.Kind() == rtvalue.KindObj {
		obj := vm.heap.Get(container.AsRef())
		switch p := obj.payload.(type) {
		case *listBox:
			idx, ok := vm.sequenceIndex(p.items, key)
			if !ok {
				return false
			}
			p.items[idx] = value
			return true
		case *dictBox:
			vm.dictPut(p, key, value)
			return true
		}
	}
	return vm.raiseTypeErrorf("%q object does not support item assignment", typ.Name.Text())
}

// sequenceIndex resolves key to a list index, accepting negative indices
// the way Python counts from the end.
func (vm *VM) sequenceIndex(items []rtvalue.Value, key rtvalue.Value) (int, bool) {
	if key.Kind() != rtvalue.KindInt {
		return 0, vm.raiseTypeErrorf("list indices must be integers, not %q", vm.TypeOf(key).Name.Text())
	}
	idx := int(key.AsInt())
	if idx < 0 {
		idx += len(items)
	}
	if idx < 0 || idx >= len(items) {
		return 0, vm.Raisef("IndexError", "list index out of range")
	}
	return idx, true
}

// dictKey returns a Go-comparable representation of v for the O(1)
// index map, for the handful of kinds cheap to hash this way; ok=false
// falls back to a linear valueEquals scan (dictFind/dictPut still work,
// just not in O(1)).
func (vm *VM) dictKey(v rtvalue.Value) (any, bool) {
	switch v.Kind() {
	case rtvalue.KindNone:
		return nil, true
	case rtvalue.KindBool:
		return v.AsBool(), true
	case rtvalue.KindInt:
		return v.AsInt(), true
	case rtvalue.KindFloat:
		return v.AsFloat(), true
	case rtvalue.KindObj:
		if s, ok := vm.stringValue(v); ok {
			return s, true
		}
	}
	return nil, false
}

// dictFind returns the keys/values index of key in db, consulting the
// O(1) index map when key hashes cheaply and falling back to a linear
// valueEquals scan otherwise.
func (vm *VM) dictFind(db *dictBox, key rtvalue.Value) (int, bool) {
	if hk, ok := vm.dictKey(key); ok && db.index != nil {
		idx, found := db.index[hk]
		return idx, found
	}
	for i, k := range db.keys {
		if valueEquals(k, key) {
			return i, true
		}
	}
	return -1, false
}

// dictPut inserts or overwrites key -> value in db, maintaining the
// index map for future O(1) lookups of hashable keys.
func (vm *VM) dictPut(db *dictBox, key, value rtvalue.Value) {
	if idx, ok := vm.dictFind(db, key); ok {
		db.values[idx] = value
		return
	}
	idx := len(db.keys)
	db.keys = append(db.keys, key)
	db.values = append(db.values, value)
	if hk, ok := vm.dictKey(key); ok {
		if db.index == nil {
			db.index = make(map[any]int, len(db.keys))
		}
		db.index[hk] = idx
	}
}

func (vm *VM) sequenceItems(v rtvalue.Value) ([]rtvalue.Value, bool) {
	if v.Kind() == rtvalue.KindObj {
		if obj := vm.heap.Get(v.AsRef()); true {
			if lb, ok := obj.payload.(*listBox); ok {
				return lb.items, true
			}
		}
	}
	return nil, vm.raiseTypeErrorf("cannot unpack non-sequence %q", vm.TypeOf(v).Name.Text())
}

func (vm *VM) makeFunction(code *CodeObject, enclosing *Frame, defaults []rtvalue.Value) rtvalue.Value {
	var closure []*cell
	if len(code.FreeVars) > 0 {
		closure = make([]*cell, len(code.FreeVars))
		copy(closure, enclosing.Closure)
	}
	ref := vm.heap.Alloc(&HeapObject{
		typeID: TypeFunction,
		payload: &funcBox{
			code:     code,
			closure:  closure,
			defaults: defaults,
			module:   enclosing.Module,
		},
	}, 64)
	return rtvalue.Obj(ref)
}

func (vm *VM) moduleValue(m *Module) rtvalue.Value {
	ref := vm.heap.Alloc(&HeapObject{typeID: TypeModule, payload: m}, 32)
	return rtvalue.Obj(ref)
}

func (vm *VM) moduleFromValue(v rtvalue.Value) *Module {
	obj := vm.heap.Get(v.AsRef())
	m, _ := obj.payload.(*Module)
	return m
}

func (vm *VM) newDict(keys, values []rtvalue.Value) rtvalue.Value {
	db := &dictBox{keys: append([]rtvalue.Value(nil), keys...), values: append([]rtvalue.Value(nil), values...)}
	vm.reindexDict(db)
	ref := vm.heap.Alloc(&HeapObject{typeID: TypeDict, payload: db}, 24+16*len(keys))
	return rtvalue.Obj(ref)
}

// reindexDict (re)builds db's O(1) index map from its current keys. Later
// key collisions (BUILD_DICT with a duplicate literal key, or a decoded
// payload that had one) keep the last-written value and index, matching
// Python dict-literal semantics.
func (vm *VM) reindexDict(db *dictBox) {
	for i, k := range db.keys {
		if hk, ok := vm.dictKey(k); ok {
			if db.index == nil {
				db.index = make(map[any]int, len(db.keys))
			}
			db.index[hk] = i
		}
	}
}
