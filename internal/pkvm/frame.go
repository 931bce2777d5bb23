// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pkvm

import "github.com/pkvm-dev/pkvm/internal/rtvalue"

// ValueStack is the contiguous operand stack shared by every frame in a
// call chain; each Frame addresses its own window via a base pointer
// (p0) rather than owning a private slice, the way gocore's root package
// describes a composite value as pieces within a single addressable
// region rather than copies of it.
type ValueStack struct {
	data []rtvalue.Value
	top  int
}

func newValueStack(capacity int) *ValueStack {
	return &ValueStack{data: make([]rtvalue.Value, capacity)}
}

func (s *ValueStack) Push(v rtvalue.Value) {
	if s.top == len(s.data) {
		panic("pkvm: value stack overflow")
	}
	s.data[s.top] = v
	s.top++
}

func (s *ValueStack) Pop() rtvalue.Value {
	s.top--
	v := s.data[s.top]
	s.data[s.top] = rtvalue.None
	return v
}

func (s *ValueStack) Top() rtvalue.Value { return s.data[s.top-1] }

func (s *ValueStack) PeekN(n int) rtvalue.Value { return s.data[s.top-1-n] }

func (s *ValueStack) ShrinkTo(base int) {
	for i := base; i < s.top; i++ {
		s.data[i] = rtvalue.None
	}
	s.top = base
}

func (s *ValueStack) Depth() int { return s.top }

// Frame is one activation record: a code pointer, the enclosing module
// (for global lookup), an optional closure cell set, a locals array sized
// by the code object's NLocals, and this frame's base offset into the
// shared ValueStack.
type Frame struct {
	Code    *CodeObject
	Module  *Module
	Closure []*cell // indexed by CellVars/FreeVars position; nil if none

	Locals []rtvalue.Value
	p0     int // base offset into the VM's shared ValueStack
	IP     int

	Callable rtvalue.Value // the Value that was called to create this frame (for tracebacks)

	Parent *Frame
}

func newFrame(code *CodeObject, module *Module, callable rtvalue.Value, stackBase int, parent *Frame) *Frame {
	locals := make([]rtvalue.Value, code.NLocals)
	for i := range locals {
		locals[i] = rtvalue.Unbound
	}
	return &Frame{
		Code:     code,
		Module:   module,
		Locals:   locals,
		p0:       stackBase,
		Callable: callable,
		Parent:   parent,
	}
}

// CurrentLine reports the source line the frame's instruction pointer
// currently maps to, used by traceback formatting.
func (f *Frame) CurrentLine() int { return f.Code.FindLine(f.IP) }

// liveStackRoots returns a copy of this frame's live portion of the
// shared value stack, for VM.GCRoots (which adds the frame's locals
// itself), as a flat slice so the heap's root walk doesn't need to know
// about frames at all.
func (f *Frame) liveStackRoots(stack *ValueStack) []rtvalue.Value {
	n := stack.top - f.p0
	if n <= 0 {
		return nil
	}
	return append([]rtvalue.Value(nil), stack.data[f.p0:stack.top]...)
}
