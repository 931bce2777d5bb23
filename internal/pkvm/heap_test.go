// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pkvm

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pkvm-dev/pkvm/internal/config"
	"github.com/pkvm-dev/pkvm/internal/diag"
	"github.com/pkvm-dev/pkvm/internal/rtvalue"
)

type fixedRoots struct{ roots []rtvalue.Value }

func (f fixedRoots) GCRoots() []rtvalue.Value { return f.roots }

func TestHeapAllocAndGet(t *testing.T) {
	h := NewHeap(16, diag.Discard())
	ref := h.Alloc(&HeapObject{typeID: TypeStr, payload: &strBox{s: "hi"}}, 8)
	require.NotEqual(t, rtvalue.NilRef, ref)
	obj := h.Get(ref)
	require.Equal(t, "hi", obj.payload.(*strBox).s)
}

func TestHeapGetPanicsOnInvalidRef(t *testing.T) {
	h := NewHeap(16, diag.Discard())
	require.Panics(t, func() { h.Get(rtvalue.HeapRef(999)) })
}

func TestHeapCollectFreesUnreachable(t *testing.T) {
	h := NewHeap(16, diag.Discard())
	kept := h.Alloc(&HeapObject{typeID: TypeStr, payload: &strBox{s: "kept"}}, 8)
	h.Alloc(&HeapObject{typeID: TypeStr, payload: &strBox{s: "garbage"}}, 8)

	require.Equal(t, 2, h.Stats().LiveObjects)
	freed := h.Collect(fixedRoots{roots: []rtvalue.Value{rtvalue.Obj(kept)}})
	require.Equal(t, 1, freed)
	require.Equal(t, 1, h.Stats().LiveObjects)
	require.Equal(t, "kept", h.Get(kept).payload.(*strBox).s)
}

func TestHeapPinProtectsUnreachableObject(t *testing.T) {
	h := NewHeap(16, diag.Discard())
	ref := h.Alloc(&HeapObject{typeID: TypeStr, payload: &strBox{s: "pinned"}}, 8)
	h.Pin(ref)

	freed := h.Collect(fixedRoots{})
	require.Equal(t, 0, freed)
	require.Equal(t, 1, h.Stats().LiveObjects)

	h.Unpin(ref)
	freed = h.Collect(fixedRoots{})
	require.Equal(t, 1, freed)
}

func TestHeapLockDisablesCollection(t *testing.T) {
	h := NewHeap(16, diag.Discard())
	h.Alloc(&HeapObject{typeID: TypeStr, payload: &strBox{s: "x"}}, 8)
	h.Lock()
	require.Equal(t, 0, h.Collect(fixedRoots{}))
	h.Unlock()
	require.Equal(t, 1, h.Collect(fixedRoots{}))
}

func TestShouldCollectThresholdPolicy(t *testing.T) {
	h := NewHeap(4, diag.Discard())
	require.False(t, h.ShouldCollect())
	for i := 0; i < 4; i++ {
		h.Alloc(&HeapObject{typeID: TypeStr, payload: &strBox{s: "x"}}, 8)
	}
	require.True(t, h.ShouldCollect())
}

func TestHeapCollectMarksFuncBoxConsts(t *testing.T) {
	h := NewHeap(16, diag.Discard())
	strRef := h.Alloc(&HeapObject{typeID: TypeStr, payload: &strBox{s: "const"}}, 8)
	code := &CodeObject{Consts: []rtvalue.Value{rtvalue.Obj(strRef)}}
	fnRef := h.Alloc(&HeapObject{typeID: TypeFunction, payload: &funcBox{code: code}}, 32)

	freed := h.Collect(fixedRoots{roots: []rtvalue.Value{rtvalue.Obj(fnRef)}})
	require.Equal(t, 0, freed)
	require.Equal(t, "const", h.Get(strRef).payload.(*strBox).s)
}

func TestHeapSweepInvokesTypeDestructor(t *testing.T) {
	vm := New(config.Default(), diag.Discard(), Hooks{})
	typ, ok := vm.DefineSubclass(rtvalue.Intern("Resource"), vm.types.Get(TypeObject))
	require.True(t, ok)

	ran := false
	typ.Dtor = func(vm *VM, args []rtvalue.Value) (rtvalue.Value, bool) {
		ran = true
		return rtvalue.None, true
	}

	v, ok := vm.instantiate(typ, nil)
	require.True(t, ok)
	_ = v // deliberately not kept alive as a GC root

	vm.heap.Collect(vm)
	require.True(t, ran)
}

func TestLargeObjectPlacement(t *testing.T) {
	h := NewHeap(16, diag.Discard())
	items := make([]rtvalue.Value, 300)
	ref := h.Alloc(&HeapObject{typeID: TypeList, payload: &listBox{items: items}}, 4096)
	obj := h.Get(ref)
	require.True(t, obj.isLarge)
}
