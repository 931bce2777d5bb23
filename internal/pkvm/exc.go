// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pkvm

import (
	"fmt"
	"strings"

	"github.com/pkvm-dev/pkvm/internal/rtvalue"
)

// excState distinguishes "an exception is in flight and must propagate"
// from "an exception was raised, a handler caught it, but the VM hasn't
// cleared curr_exception yet" — the two pocketpy vm.h keeps separate
// rather than collapsing into one bool.
type excState uint8

const (
	excNone excState = iota
	excPending
	excHandled
)

// Exception type names, registered during VM construction: "Exception"
// as a subclass of object, and every other name as a direct subclass of
// Exception.
var exceptionTypeNames = []string{
	"Exception",
	"SyntaxError",
	"NameError",
	"UnboundLocalError",
	"AttributeError",
	"TypeError",
	"ValueError",
	"KeyError",
	"IndexError",
	"ZeroDivisionError",
	"OverflowError",
	"ImportError",
	"OSError",
	"RuntimeError",
	"StopIteration",
	"NotImplementedError",
	"AssertionError",
	"RecursionError",
}

func (vm *VM) initExceptionTypes() {
	vm.excTypes = make(map[string]*Type, len(exceptionTypeNames))
	base := vm.types.Get(TypeObject)
	root, _ := vm.types.NewSubclass(rtvalue.Intern("Exception"), base)
	vm.excTypes["Exception"] = root
	for _, name := range exceptionTypeNames[1:] {
		vm.excTypes[name], _ = vm.types.NewSubclass(rtvalue.Intern(name), root)
	}
}

// ExcType looks up a registered exception type by name (e.g. "TypeError").
func (vm *VM) ExcType(name string) *Type { return vm.excTypes[name] }

// NewException constructs (but does not raise) an exception instance.
func (vm *VM) NewException(typ *Type, message string, args ...rtvalue.Value) rtvalue.Value {
	ref := vm.heap.Alloc(&HeapObject{
		typeID:  typ.ID,
		payload: &exceptionBox{message: message, args: args},
	}, 64)
	return rtvalue.Obj(ref)
}

// Raise sets exc as the VM's pending exception, following the native
// bool-return convention: every native call site that can fail should
// return (value, false) immediately after calling Raise.
func (vm *VM) Raise(exc rtvalue.Value) bool {
	vm.currException = exc
	vm.excState = excPending
	vm.recordRaiseLocation()
	return false
}

// Raisef is a convenience wrapper constructing a typed exception from a
// format string and raising it in one step.
func (vm *VM) Raisef(typeName, format string, args ...any) bool {
	typ := vm.excTypes[typeName]
	if typ == nil {
		typ = vm.excTypes["RuntimeError"]
	}
	return vm.Raise(vm.NewException(typ, fmt.Sprintf(format, args...)))
}

func (vm *VM) raiseTypeErrorf(format string, args ...any) bool {
	return vm.Raisef("TypeError", format, args...)
}

func (vm *VM) RaiseAttributeError(typ *Type, name rtvalue.Name) bool {
	return vm.Raisef("AttributeError", "%s object has no attribute %q", typ.Name.Text(), name.Text())
}

func (vm *VM) raiseImportError(path string, cause error) bool {
	return vm.Raisef("ImportError", "cannot import %q: %v", path, cause)
}

// PendingException returns the in-flight exception and whether one is
// pending (excPending; an excHandled exception has already been consumed
// by a handler and is not "pending" for propagation purposes).
func (vm *VM) PendingException() (rtvalue.Value, bool) {
	return vm.currException, vm.excState == excPending
}

// ClearException transitions a pending exception to handled-and-cleared,
// called by the interpreter once control reaches an except clause body.
func (vm *VM) ClearException() {
	vm.currException = rtvalue.None
	vm.excState = excNone
}

// markHandled transitions excPending -> excHandled without clearing the
// value, used the instant a try/except block's handler is entered.
// unwindOrPropagate calls ClearException right after, so excHandled does
// not outlast handler entry; the caught value stays in vm.handling, where
// RERAISE finds it.
func (vm *VM) markHandled() {
	if vm.excState == excPending {
		vm.excState = excHandled
	}
}

func (vm *VM) recordRaiseLocation() {
	if box := vm.exceptionPayload(vm.currException); box != nil && box.frames == nil {
		for f := vm.top; f != nil; f = f.Parent {
			box.frames = append(box.frames, tracebackEntry{
				filename: f.Code.Filename,
				funcName: f.Code.Name.Text(),
				line:     f.CurrentLine(),
			})
		}
	}
}

func (vm *VM) exceptionPayload(v rtvalue.Value) *exceptionBox {
	if v.Kind() != rtvalue.KindObj {
		return nil
	}
	obj := vm.heap.Get(v.AsRef())
	box, _ := obj.payload.(*exceptionBox)
	return box
}

// FormatTraceback renders a human-readable traceback for an exception,
// one line per frame active at raise time, most-recent call last —
// matching how pocketpy's frame unwind-for-printing logic walks the
// frame chain captured at the moment of the raise.
func (vm *VM) FormatTraceback(exc rtvalue.Value) string {
	box := vm.exceptionPayload(exc)
	if box == nil {
		return fmt.Sprintf("%s", exc)
	}
	var sb strings.Builder
	sb.WriteString("Traceback (most recent call last):\n")
	for i := len(box.frames) - 1; i >= 0; i-- {
		fr := box.frames[i]
		fmt.Fprintf(&sb, "  File %q, line %d, in %s\n", fr.filename, fr.line, fr.funcName)
	}
	typ := vm.TypeOf(exc)
	fmt.Fprintf(&sb, "%s: %s\n", typ.Name.Text(), box.message)
	return sb.String()
}

// ExceptionMessage returns the stored message text of an exception Value.
func (vm *VM) ExceptionMessage(exc rtvalue.Value) string {
	if box := vm.exceptionPayload(exc); box != nil {
		return box.message
	}
	return ""
}
