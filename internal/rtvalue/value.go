// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package rtvalue defines the tagged value representation shared by every
// layer of the runtime: the heap, the type table, and the interpreter all
// pass Value by value rather than through an interface, so a None, a bool,
// a small int and a float never allocate.
package rtvalue

import "fmt"

// Kind identifies which arm of a Value is live. It is a dense, small
// integer so code that needs to branch on it (package pkvm's operator
// dispatch) can switch on a byte instead of doing a reflection-style type
// switch.
type Kind uint8

const (
	KindNone Kind = iota
	KindBool
	KindInt
	KindFloat
	KindVec2    // inline 2D float vector, e.g. a screen/world coordinate pair
	KindVec2i   // inline 2D integer vector, e.g. a tile/grid coordinate pair
	KindObj     // HeapRef: tagged reference into the managed heap
	KindUnbound // internal-only sentinel for a not-yet-assigned local slot
	nKind
)

var kindStrings = [nKind]string{
	KindNone:    "NoneType",
	KindBool:    "bool",
	KindInt:     "int",
	KindFloat:   "float",
	KindVec2:    "vec2",
	KindVec2i:   "vec2i",
	KindObj:     "object",
	KindUnbound: "<unbound>",
}

func (k Kind) String() string {
	if k >= nKind {
		panic(fmt.Sprintf("rtvalue: invalid Kind %d", uint8(k)))
	}
	return kindStrings[k]
}

// HeapRef is an opaque handle into the managed heap. It is never
// dereferenced by this package; the heap package interprets it.
type HeapRef uint32

// NilRef is the HeapRef equivalent of a nil pointer.
const NilRef HeapRef = 0

// Value is the universal tagged value. Exactly one of the fields below is
// meaningful, selected by Kind. Keeping int and float in separate fields
// (rather than reinterpreting bits via unsafe) costs a little space but
// keeps the type free of unsafe, matching this codebase's preference for
// plain, inspectable structs over bit tricks.
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	ref  HeapRef
	vx, vy   float32 // KindVec2 payload
	vix, viy int32   // KindVec2i payload
}

// None is the singleton null value.
var None = Value{kind: KindNone}

// True and False are the two bool values.
var (
	True  = Value{kind: KindBool, b: true}
	False = Value{kind: KindBool, b: false}
)

func Bool(b bool) Value {
	if b {
		return True
	}
	return False
}

func Int(i int64) Value { return Value{kind: KindInt, i: i} }

func Float(f float64) Value { return Value{kind: KindFloat, f: f} }

// NewVec2 builds an inline 2D float vector payload.
func NewVec2(x, y float32) Value { return Value{kind: KindVec2, vx: x, vy: y} }

// NewVec2i builds an inline 2D integer vector payload.
func NewVec2i(x, y int32) Value { return Value{kind: KindVec2i, vix: x, viy: y} }

// Obj wraps a heap reference tagged with the object's runtime kind slot;
// the heap itself, not this package, knows the ref's actual Type.
func Obj(ref HeapRef) Value { return Value{kind: KindObj, ref: ref} }

// Unbound is the sentinel a frame's locals slot holds before its first
// assignment, distinct from None (which is a real, loadable value). Only
// the interpreter's LOAD_FAST should ever observe this Kind; it is never
// a legal operand to any other operation.
var Unbound = Value{kind: KindUnbound}

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsNone() bool { return v.kind == KindNone }

// Truthy implements the None/False/0/0.0/empty-container falsiness rule.
// Container emptiness is not decidable here (it needs the heap), so
// callers holding a KindObj value must consult the type table's __bool__
// slot instead; this only resolves the scalar cases.
func (v Value) Truthy() bool {
	switch v.kind {
	case KindNone:
		return false
	case KindBool:
		return v.b
	case KindInt:
		return v.i != 0
	case KindFloat:
		return v.f != 0
	case KindVec2:
		return v.vx != 0 || v.vy != 0
	case KindVec2i:
		return v.vix != 0 || v.viy != 0
	default:
		panic("rtvalue: Truthy called on KindObj; resolve via __bool__ instead")
	}
}

func (v Value) AsBool() bool {
	if v.kind != KindBool {
		panic("rtvalue: AsBool on non-bool Value")
	}
	return v.b
}

func (v Value) AsInt() int64 {
	if v.kind != KindInt {
		panic("rtvalue: AsInt on non-int Value")
	}
	return v.i
}

func (v Value) AsFloat() float64 {
	if v.kind != KindFloat {
		panic("rtvalue: AsFloat on non-float Value")
	}
	return v.f
}

func (v Value) AsRef() HeapRef {
	if v.kind != KindObj {
		panic("rtvalue: AsRef on non-object Value")
	}
	return v.ref
}

func (v Value) AsVec2() (float32, float32) {
	if v.kind != KindVec2 {
		panic("rtvalue: AsVec2 on non-vec2 Value")
	}
	return v.vx, v.vy
}

func (v Value) AsVec2i() (int32, int32) {
	if v.kind != KindVec2i {
		panic("rtvalue: AsVec2i on non-vec2i Value")
	}
	return v.vix, v.viy
}

// Identical reports pointer/scalar identity (`is`), never value equality.
func Identical(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNone:
		return true
	case KindBool:
		return a.b == b.b
	case KindInt:
		return a.i == b.i
	case KindFloat:
		return a.f == b.f
	case KindVec2:
		return a.vx == b.vx && a.vy == b.vy
	case KindVec2i:
		return a.vix == b.vix && a.viy == b.viy
	case KindObj:
		return a.ref == b.ref
	}
	panic("rtvalue: Identical: invalid kind")
}

func (v Value) String() string {
	switch v.kind {
	case KindNone:
		return "None"
	case KindBool:
		if v.b {
			return "True"
		}
		return "False"
	case KindInt:
		return fmt.Sprintf("%d", v.i)
	case KindFloat:
		return fmt.Sprintf("%g", v.f)
	case KindVec2:
		return fmt.Sprintf("vec2(%g, %g)", v.vx, v.vy)
	case KindVec2i:
		return fmt.Sprintf("vec2i(%d, %d)", v.vix, v.viy)
	case KindObj:
		return fmt.Sprintf("<object ref=%d>", v.ref)
	}
	panic("rtvalue: String: invalid kind")
}
