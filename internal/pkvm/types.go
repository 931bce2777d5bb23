// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pkvm

import "github.com/pkvm-dev/pkvm/internal/rtvalue"

// TypeID indexes the VM's dense type table, the same way gocore's Kind
// indexes its fixed Kind-string table: a small integer, never a pointer,
// so dispatch is an array load.
type TypeID int32

// Built-in type ids, allocated up front in VM construction order.
const (
	TypeNone TypeID = iota
	TypeBool
	TypeInt
	TypeFloat
	TypeVec2
	TypeVec2i
	TypeStr
	TypeList
	TypeTuple
	TypeDict
	TypeFunction
	TypeNativeFunc
	TypeBoundMethod
	TypeClassMethod
	TypeStaticMethod
	TypeProperty
	TypeType
	TypeException
	TypeModule
	TypeObject // root of the class hierarchy
	numBuiltinTypes
)

// NativeFunc is the signature every built-in callable implements: it
// receives the VM (for raising exceptions or allocating) and the already
// vectorcall-assembled argument slice, and returns a result or an error
// following the native bool-success convention (ok=false means an
// exception was raised on vm and retval is meaningless).
type NativeFunc func(vm *VM, args []rtvalue.Value) (rtvalue.Value, bool)

// Type describes one class: its name, its base (single inheritance, as
// spec'd), and its own namespace of methods/properties consulted during
// MRO attribute lookup. Builtin arithmetic dispatch goes through the
// arithSlots map keyed by operator and TypeID (operator.go) instead of
// Namespace, so no per-Type slot array duplicates that indexing;
// user-defined types dispatch operators the same way everything else
// dispatches methods, through Namespace/MRO.
type Type struct {
	ID   TypeID
	Name rtvalue.Name
	Base *Type // nil only for TypeObject

	// Module is the type's defining module, for introspection (__module__)
	// and qualified naming; nil for a core builtin with no Python-level
	// module of its own.
	Module *Module

	// Namespace holds the type's own methods/class attributes (functions,
	// classmethods, staticmethods, properties, nested types). Attribute
	// lookup walks Base chains through this map.
	Namespace map[rtvalue.Name]rtvalue.Value

	// Annotations records the declared type of each annotated class
	// attribute (`x: int` in a class body), keyed by attribute name.
	Annotations map[rtvalue.Name]TypeID

	// Dtor, if set, is invoked by the heap's sweep phase on an instance of
	// this type immediately before its storage is reclaimed.
	Dtor NativeFunc

	// AllowsInstanceDict is false for frozen/native scalar types (int,
	// float, str, bool) whose HeapObject.attrs must stay nil.
	AllowsInstanceDict bool

	// IsPython is true for a type defined by interpreted class syntax,
	// false for a type implemented natively by this runtime.
	IsPython bool

	// IsSealed forbids NewSubclass from using this type as a base,
	// mirroring CPython's refusal to let bool or NoneType be subclassed.
	IsSealed bool

	selfRef    rtvalue.Value // cached by VM.typeValue
	hasSelfRef bool
}

// TypeTable is the VM's dense array of all known types, builtin plus
// user-defined, indexed by TypeID.
type TypeTable struct {
	types []*Type
}

func newTypeTable() *TypeTable {
	return &TypeTable{}
}

func (t *TypeTable) register(typ *Type) TypeID {
	typ.ID = TypeID(len(t.types))
	t.types = append(t.types, typ)
	return typ.ID
}

func (t *TypeTable) Get(id TypeID) *Type {
	if int(id) < 0 || int(id) >= len(t.types) {
		panic("pkvm: TypeTable.Get: invalid TypeID")
	}
	return t.types[id]
}

// NewSubclass creates a user-defined subclass of base with its own empty
// Namespace; lookups that miss fall through to base via the MRO walk in
// LookupMethod/GetAttr rather than copying anything out of base eagerly.
// ok is false, and no type is created, if base.IsSealed.
func (t *TypeTable) NewSubclass(name rtvalue.Name, base *Type) (typ *Type, ok bool) {
	if base.IsSealed {
		return nil, false
	}
	typ = &Type{
		Name:               name,
		Base:               base,
		Namespace:          make(map[rtvalue.Name]rtvalue.Value),
		AllowsInstanceDict: true,
	}
	t.register(typ)
	return typ, true
}

// IsSubclass reports whether typ is base or a descendant of base, walking
// the single-inheritance Base chain.
func IsSubclass(typ, base *Type) bool {
	for t := typ; t != nil; t = t.Base {
		if t == base {
			return true
		}
	}
	return false
}

// MRO returns typ's method resolution order: itself, then each Base in
// turn, ending at TypeObject. Single inheritance makes this a simple
// linear walk rather than C3 linearization.
func MRO(typ *Type) []*Type {
	var mro []*Type
	for t := typ; t != nil; t = t.Base {
		mro = append(mro, t)
	}
	return mro
}

// LookupMethod walks typ's MRO looking for name in each Namespace,
// stopping at the first hit. This is the "attribute lookup" half of the
// descriptor protocol; bindDescriptor (attr.go) does the binding
// afterward (it does not call a user-defined __get__).
func LookupMethod(typ *Type, name rtvalue.Name) (rtvalue.Value, bool) {
	for _, t := range MRO(typ) {
		if v, ok := t.Namespace[name]; ok {
			return v, true
		}
	}
	return rtvalue.None, false
}
