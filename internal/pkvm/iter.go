// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pkvm

import "github.com/pkvm-dev/pkvm/internal/rtvalue"

// seqIterBox is the native iterator produced for list/tuple/dict-key
// iteration; user-defined iterables instead return whatever their
// __iter__ produces, resolved via Namespace/MRO lookup.
type seqIterBox struct {
	items []rtvalue.Value
	pos   int
}

// getIter implements GET_ITER: builtins get a native seqIterBox, anything
// else must supply __iter__.
func (vm *VM) getIter(v rtvalue.Value) (rtvalue.Value, bool) {
	if v.Kind() == rtvalue.KindObj {
		obj := vm.heap.Get(v.AsRef())
		switch p := obj.payload.(type) {
		case *listBox:
			return vm.newSeqIter(p.items), true
		case *seqIterBox:
			return v, true
		case *dictBox:
			return vm.newSeqIter(p.keys), true
		}
	}
	typ := vm.TypeOf(v)
	if method, ok := LookupMethod(typ, rtvalue.NameIter); ok {
		bound := vm.bindDescriptor(method, v, typ)
		return vm.CallValue(bound, nil)
	}
	return rtvalue.None, vm.raiseTypeErrorf("%q object is not iterable", typ.Name.Text())
}

func (vm *VM) newSeqIter(items []rtvalue.Value) rtvalue.Value {
	ref := vm.heap.Alloc(&HeapObject{typeID: vm.seqIterTypeID(), payload: &seqIterBox{items: items}}, 24)
	return rtvalue.Obj(ref)
}

// seqIterTypeID lazily registers the builtin sequence-iterator type the
// first time it's needed, since it has no place in the fixed builtin-type
// const block (iteration is a protocol any type can join, but the native
// sequence iterator itself is an implementation detail, not part of the
// spec's Component Design surface).
func (vm *VM) seqIterTypeID() TypeID {
	if vm.seqIterType == nil {
		vm.seqIterType, _ = vm.types.NewSubclass(rtvalue.Intern("seq_iterator"), vm.types.Get(TypeObject))
	}
	return vm.seqIterType.ID
}

// iterNext implements FOR_ITER: returns (value, stop=false, ok=true) on a
// produced value, (None, true, true) on StopIteration, or (None, _,
// false) with an exception raised for any other failure.
func (vm *VM) iterNext(it rtvalue.Value) (rtvalue.Value, bool, bool) {
	if it.Kind() == rtvalue.KindObj {
		obj := vm.heap.Get(it.AsRef())
		if sb, ok := obj.payload.(*seqIterBox); ok {
			if sb.pos >= len(sb.items) {
				return rtvalue.None, true, true
			}
			v := sb.items[sb.pos]
			sb.pos++
			return v, false, true
		}
	}
	typ := vm.TypeOf(it)
	method, ok := LookupMethod(typ, rtvalue.NameNext)
	if !ok {
		return rtvalue.None, false, vm.raiseTypeErrorf("%q object is not an iterator", typ.Name.Text())
	}
	bound := vm.bindDescriptor(method, it, typ)
	v, ok := vm.CallValue(bound, nil)
	if !ok {
		if exc, pending := vm.PendingException(); pending && vm.TypeOf(exc) == vm.ExcType("StopIteration") {
			vm.ClearException()
			return rtvalue.None, true, true
		}
		return rtvalue.None, false, false
	}
	return v, false, true
}
