// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pkvm

import "github.com/pkvm-dev/pkvm/internal/rtvalue"

// HeapObject is the header every heap-allocated value carries, mirroring
// the object-header conventions of gocore's object table: a type tag, a
// mark bit the GC flips during the trace phase, a size-class flag, and
// an optional per-instance attribute dict for objects whose type allows
// dynamic attributes.
type HeapObject struct {
	typeID   TypeID
	gcMarked bool
	isLarge  bool

	// attrs holds per-instance attributes. Types that forbid instance
	// dicts (most builtins) leave this nil forever.
	attrs map[rtvalue.Name]rtvalue.Value

	// payload is the type-specific body: *strBox, *listBox, *dictBox,
	// *funcBox, *boundMethodBox, *instanceBox, ... (ints and floats are
	// inline Values and have no payload). It is an interface value rather
	// than []byte so host-defined native payloads are representable; the
	// GC's outgoing walk enumerates children only of payload types it
	// knows.
	payload any
}

func (o *HeapObject) TypeID() TypeID { return o.typeID }

// Attr reads an instance attribute, returning ok=false if the object has
// no attrs dict or the name isn't present (distinct from "the name maps
// to None").
func (o *HeapObject) Attr(name rtvalue.Name) (rtvalue.Value, bool) {
	if o.attrs == nil {
		return rtvalue.None, false
	}
	v, ok := o.attrs[name]
	return v, ok
}

func (o *HeapObject) SetAttr(name rtvalue.Name, v rtvalue.Value) {
	if o.attrs == nil {
		o.attrs = make(map[rtvalue.Name]rtvalue.Value)
	}
	o.attrs[name] = v
}

func (o *HeapObject) DelAttr(name rtvalue.Name) bool {
	if o.attrs == nil {
		return false
	}
	if _, ok := o.attrs[name]; !ok {
		return false
	}
	delete(o.attrs, name)
	return true
}

// Boxed payload kinds. Named *Box to echo the "box a Go value behind a
// heap reference" idiom used throughout the interpreter's builtins.
type (
	strBox  struct{ s string }
	listBox struct{ items []rtvalue.Value }
	dictBox struct {
		keys   []rtvalue.Value
		values []rtvalue.Value
		// index maps a hashable key's identity representation to its
		// position in keys/values, mirroring a Python dict's O(1) lookup.
		index map[any]int
	}
	funcBox struct {
		code     *CodeObject
		closure  []*cell
		defaults []rtvalue.Value
		module   *Module
	}
	boundMethodBox struct {
		self rtvalue.Value
		fn   rtvalue.Value
	}
	classmethodBox struct{ fn rtvalue.Value }
	staticmethodBox struct{ fn rtvalue.Value }
	propertyBox struct {
		fget, fset rtvalue.Value
	}
	instanceBox struct{} // marker; state lives entirely in HeapObject.attrs
	exceptionBox struct {
		message string
		args    []rtvalue.Value
		frames  []tracebackEntry
	}
	nativeFuncBox struct {
		name rtvalue.Name
		fn   NativeFunc
	}
)

// cell is the box a closed-over variable lives in, shared between the
// defining frame and every nested function that captures it.
type cell struct{ v rtvalue.Value }

type tracebackEntry struct {
	filename string
	funcName string
	line     int
}
