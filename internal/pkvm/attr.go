// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pkvm

import "github.com/pkvm-dev/pkvm/internal/rtvalue"

// GetAttr implements the full attribute-lookup rule: instance dict first,
// then MRO class-namespace lookup with the descriptor protocol applied,
// falling back to __getattr__ if defined. ok=false with no exception
// already raised means "not found, and there was no __getattr__ to ask".
func (vm *VM) GetAttr(recv rtvalue.Value, name rtvalue.Name) (rtvalue.Value, bool) {
	typ := vm.TypeOf(recv)

	if recv.Kind() == rtvalue.KindObj {
		obj := vm.heap.Get(recv.AsRef())
		if sb, ok := obj.payload.(*superBox); ok {
			return vm.superGetAttr(sb, name)
		}
		if v, ok := obj.Attr(name); ok {
			return v, true
		}
	}

	if v, ok := LookupMethod(typ, name); ok {
		return vm.bindDescriptor(v, recv, typ), true
	}

	if getattr, ok := LookupMethod(typ, rtvalue.NameGetattr); ok {
		bound := vm.bindDescriptor(getattr, recv, typ)
		return vm.CallValue(bound, []rtvalue.Value{vm.nameValue(name)})
	}

	vm.RaiseAttributeError(typ, name)
	return rtvalue.None, false
}

// SetAttr writes an instance attribute, honoring a data descriptor's
// __set__ if the class namespace defines one for name.
func (vm *VM) SetAttr(recv rtvalue.Value, name rtvalue.Name, val rtvalue.Value) bool {
	typ := vm.TypeOf(recv)
	if v, ok := LookupMethod(typ, name); ok {
		if prop := vm.asProperty(v); prop != nil {
			if prop.fset.IsNone() {
				return vm.raiseTypeErrorf("can't set attribute %q", name.Text())
			}
			_, ok := vm.CallValue(prop.fset, []rtvalue.Value{recv, val})
			return ok
		}
	}
	if recv.Kind() != rtvalue.KindObj {
		return vm.raiseTypeErrorf("%s instances have no writable attributes", typ.Name.Text())
	}
	obj := vm.heap.Get(recv.AsRef())
	if !typ.AllowsInstanceDict {
		return vm.raiseTypeErrorf("%s instances have no writable attributes", typ.Name.Text())
	}
	obj.SetAttr(name, val)
	return true
}

// bindDescriptor applies the descriptor protocol: a function becomes a
// bound method, a classmethod binds to the type instead of the instance,
// a staticmethod and a property unwrap, and anything else passes through
// unchanged, per spec.md's descriptor-protocol rule.
func (vm *VM) bindDescriptor(member rtvalue.Value, recv rtvalue.Value, typ *Type) rtvalue.Value {
	if member.Kind() != rtvalue.KindObj {
		return member
	}
	obj := vm.heap.Get(member.AsRef())
	switch p := obj.payload.(type) {
	case *funcBox:
		return vm.newBoundMethod(recv, member)
	case *classmethodBox:
		return vm.newBoundMethod(vm.typeValue(typ), p.fn)
	case *staticmethodBox:
		return p.fn
	case *propertyBox:
		if p.fget.IsNone() {
			vm.raiseTypeErrorf("unreadable attribute")
			return rtvalue.None
		}
		v, _ := vm.CallValue(p.fget, []rtvalue.Value{recv})
		return v
	default:
		return member
	}
}

func (vm *VM) asProperty(v rtvalue.Value) *propertyBox {
	if v.Kind() != rtvalue.KindObj {
		return nil
	}
	obj := vm.heap.Get(v.AsRef())
	p, _ := obj.payload.(*propertyBox)
	return p
}

func (vm *VM) newBoundMethod(self, fn rtvalue.Value) rtvalue.Value {
	ref := vm.heap.Alloc(&HeapObject{
		typeID:  TypeBoundMethod,
		payload: &boundMethodBox{self: self, fn: fn},
	}, 32)
	return rtvalue.Obj(ref)
}

func (vm *VM) nameValue(name rtvalue.Name) rtvalue.Value {
	return vm.newString(name.Text())
}
