// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pkvm

import (
	"github.com/pkvm-dev/pkvm/internal/diag"
	"github.com/pkvm-dev/pkvm/internal/rtvalue"
)

// largeObjectThreshold is the payload-size boundary (estimated, since Go
// gives us no sizeof) above which an allocation goes on the large-object
// list instead of the small-object pool. Lists and dicts with many
// elements cross it; scalars, strings, and small instances don't.
const largeObjectThreshold = 256

// smallPoolSlabSize records gocore's heapInfo slab granularity. Nothing
// reads it: the small pool is one flat slice, and Collect keeps its mark
// set in a map keyed by HeapRef.
const smallPoolSlabSize = 512

// Heap is the managed heap: a small-object pool plus a large-object list,
// a tracing mark-sweep collector, and the pinned ("_no_gc") root overrides
// used while constructing an object before it is reachable from anywhere
// else.
type Heap struct {
	small []*HeapObject // dense table; index is rtvalue.HeapRef-1
	free  []rtvalue.HeapRef

	large map[rtvalue.HeapRef]*HeapObject

	pinned map[rtvalue.HeapRef]bool

	gcLocked   int // >0 disables collection; mirrors the spec's GC lock counter
	gcMin      int
	liveCount  int
	gcThreshold int

	log diag.Logger
}

// NewHeap creates an empty heap. gcMinThreshold is the floor used by the
// trigger policy threshold = max(gcMinThreshold, 2*live).
func NewHeap(gcMinThreshold int, log diag.Logger) *Heap {
	h := &Heap{
		large:       make(map[rtvalue.HeapRef]*HeapObject),
		pinned:      make(map[rtvalue.HeapRef]bool),
		gcMin:       gcMinThreshold,
		gcThreshold: gcMinThreshold,
		log:         log,
	}
	// Ref 0 is reserved as NilRef; index 0 of `small` is never used.
	h.small = append(h.small, nil)
	return h
}

// Alloc places obj on the heap and returns its reference. estimatedSize is
// the caller's best guess at the payload's byte footprint, used only to
// pick small-pool vs. large-object placement.
func (h *Heap) Alloc(obj *HeapObject, estimatedSize int) rtvalue.HeapRef {
	obj.isLarge = estimatedSize >= largeObjectThreshold
	var ref rtvalue.HeapRef
	if obj.isLarge {
		ref = h.nextLargeRef()
		h.large[ref] = obj
	} else {
		if n := len(h.free); n > 0 {
			ref = h.free[n-1]
			h.free = h.free[:n-1]
			h.small[ref] = obj
		} else {
			ref = rtvalue.HeapRef(len(h.small))
			h.small = append(h.small, obj)
		}
	}
	h.liveCount++
	return ref
}

var nextLargeRefCounter rtvalue.HeapRef = 1 << 24 // disjoint range from small refs

func (h *Heap) nextLargeRef() rtvalue.HeapRef {
	for {
		nextLargeRefCounter++
		if _, used := h.large[nextLargeRefCounter]; !used {
			return nextLargeRefCounter
		}
	}
}

// Get resolves a reference to its object. It panics on a dangling/invalid
// reference, matching the teacher's FindObject convention of treating an
// out-of-range address as a programmer error rather than a soft failure.
func (h *Heap) Get(ref rtvalue.HeapRef) *HeapObject {
	if ref == rtvalue.NilRef {
		panic("pkvm: Get on NilRef")
	}
	if int(ref) < len(h.small) {
		if o := h.small[ref]; o != nil {
			return o
		}
	}
	if o, ok := h.large[ref]; ok {
		return o
	}
	panic("pkvm: Get: invalid or freed HeapRef")
}

// Pin marks ref as an explicit GC root regardless of reachability,
// mirroring the `_no_gc` protected set: used while building a payload
// before it is linked into any other root.
func (h *Heap) Pin(ref rtvalue.HeapRef) { h.pinned[ref] = true }

// Unpin removes ref from the pinned set.
func (h *Heap) Unpin(ref rtvalue.HeapRef) { delete(h.pinned, ref) }

// Lock increments the GC lock counter, disabling collection until a
// matching Unlock. Used around code that must not observe objects moving
// out from under it (the heap never moves objects, but a collection
// mid-construction could still free an as-yet-unpinned object).
func (h *Heap) Lock() { h.gcLocked++ }

func (h *Heap) Unlock() {
	if h.gcLocked == 0 {
		panic("pkvm: Heap.Unlock without matching Lock")
	}
	h.gcLocked--
}

// ShouldCollect reports whether the allocation-threshold policy says a
// collection is due: the live count has reached the threshold, which is
// gcMin at construction and max(gcMin, 2*live) after each Collect.
func (h *Heap) ShouldCollect() bool {
	if h.gcLocked > 0 {
		return false
	}
	return h.liveCount >= h.gcThreshold
}

// RootSource is implemented by anything that contributes GC roots: VM
// frame chains, the module registry, the type table's self-references,
// and the retval/pending-exception slots.
type RootSource interface {
	GCRoots() []rtvalue.Value
}

// Collect runs one mark-sweep pass over roots (plus the pinned set) and
// frees every unreached object. It returns the number of objects freed.
func (h *Heap) Collect(roots RootSource) int {
	if h.gcLocked > 0 {
		return 0
	}
	h.log.GC("start", h.liveCount, h.gcThreshold)

	marked := make(map[rtvalue.HeapRef]bool, h.liveCount)
	var work []rtvalue.HeapRef

	push := func(ref rtvalue.HeapRef) {
		if ref == rtvalue.NilRef || marked[ref] {
			return
		}
		marked[ref] = true
		work = append(work, ref)
	}

	for ref := range h.pinned {
		push(ref)
	}
	for _, v := range roots.GCRoots() {
		if v.Kind() == rtvalue.KindObj {
			push(v.AsRef())
		}
	}

	for len(work) > 0 {
		ref := work[len(work)-1]
		work = work[:len(work)-1]
		obj := h.Get(ref)
		obj.gcMarked = true
		for _, v := range h.outgoing(obj) {
			if v.Kind() == rtvalue.KindObj {
				push(v.AsRef())
			}
		}
	}

	freed := 0
	for ref := 1; ref < len(h.small); ref++ {
		obj := h.small[ref]
		if obj == nil {
			continue
		}
		r := rtvalue.HeapRef(ref)
		if marked[r] {
			obj.gcMarked = false
			continue
		}
		h.destruct(roots, r, obj)
		h.small[ref] = nil
		h.free = append(h.free, r)
		h.liveCount--
		freed++
	}
	for ref, obj := range h.large {
		if marked[ref] {
			obj.gcMarked = false
			continue
		}
		h.destruct(roots, ref, obj)
		delete(h.large, ref)
		h.liveCount--
		freed++
	}

	h.gcThreshold = h.gcMin
	if 2*h.liveCount > h.gcThreshold {
		h.gcThreshold = 2 * h.liveCount
	}
	h.log.GC("end", h.liveCount, h.gcThreshold)
	return freed
}

// destruct invokes obj's type destructor, if any, just before its storage
// is reclaimed. roots is the same RootSource passed to Collect; only a
// *VM carries a type table, so anything else (e.g. a bare-heap unit test's
// fixedRoots) is a no-op.
func (h *Heap) destruct(roots RootSource, ref rtvalue.HeapRef, obj *HeapObject) {
	vm, ok := roots.(*VM)
	if !ok {
		return
	}
	typ := vm.types.Get(obj.TypeID())
	if typ.Dtor == nil {
		return
	}
	typ.Dtor(vm, []rtvalue.Value{rtvalue.Obj(ref)})
}

// outgoing enumerates the Values a heap object directly references,
// mirroring gocore's typeObject pointer-finding walk but dispatched on
// our own payload kinds instead of runtime type descriptors.
func (h *Heap) outgoing(obj *HeapObject) []rtvalue.Value {
	var out []rtvalue.Value
	for _, v := range obj.attrs {
		out = append(out, v)
	}
	switch p := obj.payload.(type) {
	case *listBox:
		out = append(out, p.items...)
	case *dictBox:
		out = append(out, p.keys...)
		out = append(out, p.values...)
	case *funcBox:
		for _, c := range p.closure {
			if c != nil {
				out = append(out, c.v)
			}
		}
		out = append(out, p.defaults...)
		// A function's code-object constant pool (string/tuple/etc.
		// literals) is reachable only through the function, never
		// directly from a root, so the mark phase must walk it too.
		out = append(out, p.code.Consts...)
	case *boundMethodBox:
		out = append(out, p.self, p.fn)
	case *classmethodBox:
		out = append(out, p.fn)
	case *staticmethodBox:
		out = append(out, p.fn)
	case *propertyBox:
		out = append(out, p.fget, p.fset)
	case *exceptionBox:
		out = append(out, p.args...)
	}
	return out
}

// Stats reports a snapshot of the heap's allocation state, the way the
// teacher's `overview` command reports mapped memory.
type Stats struct {
	LiveObjects int
	SmallSlots  int
	LargeSlots  int
	GCThreshold int
}

func (h *Heap) Stats() Stats {
	return Stats{
		LiveObjects: h.liveCount,
		SmallSlots:  len(h.small) - 1,
		LargeSlots:  len(h.large),
		GCThreshold: h.gcThreshold,
	}
}
