// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pkvm

import "github.com/pkvm-dev/pkvm/internal/rtvalue"

// superBox represents the proxy object super(startType, obj) returns:
// attribute lookup through it begins at startType.Base rather than
// obj's own dynamic type, letting an overriding method reach its parent
// class's implementation.
type superBox struct {
	startType *Type
	obj       rtvalue.Value
}

// NewSuper implements the two-argument super(type, obj) native
// constructor (see DESIGN.md's Open Question decision: the zero-argument
// form is a compiler-synthesized sugar for this, out of core scope).
// obj must be an instance of startType (or startType itself, for the
// classmethod-binding case); callers needing that check should use
// vm.NewSuperChecked.
func (vm *VM) NewSuper(startType *Type, obj rtvalue.Value) rtvalue.Value {
	ref := vm.heap.Alloc(&HeapObject{
		typeID:  vm.superTypeID(),
		payload: &superBox{startType: startType, obj: obj},
	}, 32)
	return rtvalue.Obj(ref)
}

// NewSuperChecked validates that obj is an instance of (a subclass of)
// startType before constructing the proxy, raising TypeError otherwise —
// the runtime-checked variant a native `super` builtin should call.
func (vm *VM) NewSuperChecked(startType *Type, obj rtvalue.Value) (rtvalue.Value, bool) {
	if !IsSubclass(vm.TypeOf(obj), startType) {
		return rtvalue.None, vm.raiseTypeErrorf("super(type, obj): obj must be an instance or subtype of type")
	}
	return vm.NewSuper(startType, obj), true
}

func (vm *VM) superTypeID() TypeID {
	if vm.superType == nil {
		vm.superType, _ = vm.types.NewSubclass(rtvalue.Intern("super"), vm.types.Get(TypeObject))
	}
	return vm.superType.ID
}

// superGetAttr implements attribute lookup through a super proxy: walk
// the MRO starting one step past startType, bind whatever is found to
// the wrapped obj (not to the super proxy itself).
func (vm *VM) superGetAttr(sb *superBox, name rtvalue.Name) (rtvalue.Value, bool) {
	mro := MRO(sb.startType)
	for i, t := range mro {
		if t == sb.startType && i+1 < len(mro) {
			for _, parent := range mro[i+1:] {
				if v, ok := parent.Namespace[name]; ok {
					return vm.bindDescriptor(v, sb.obj, parent), true
				}
			}
			break
		}
	}
	return rtvalue.None, vm.RaiseAttributeError(sb.startType, name)
}
