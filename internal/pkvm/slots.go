// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pkvm

import (
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/pkvm-dev/pkvm/internal/config"
	"github.com/pkvm-dev/pkvm/internal/diag"
	"github.com/pkvm-dev/pkvm/internal/rtvalue"
)

// Slot is a single compute thread: an independently-heaped VM bound to
// its own goroutine. Slots never share a VM, a heap, or a module
// registry; the only thing that crosses a slot boundary is a pickled
// byte payload, carried by the request/response types in rpc.go —
// mirroring the teacher's ptrace-attached-process-over-RPC model,
// repurposed from "one OS process, externally controlled" to "one
// goroutine, internally controlled".
type Slot struct {
	id  int
	vm  *VM
	cfg config.Config

	reqC    chan StartRequest
	cancelC chan struct{}
	doneC   chan JoinResponse

	cancelled int32
}

// SlotPool bounds the number of compute threads it creates at
// cfg.SlotCount (at most config.MaxSlotCount, 16 per spec.md §5).
type SlotPool struct {
	mu    sync.Mutex
	cfg   config.Config
	log   diag.Logger
	slots []*Slot
}

// NewSlotPool creates a pool with no slots started yet; slots are spun up
// lazily by Spawn, up to cfg.SlotCount in total.
func NewSlotPool(cfg config.Config, log diag.Logger) *SlotPool {
	return &SlotPool{cfg: cfg, log: log}
}

// Spawn starts a new compute thread running body (a function that builds
// and executes a module against its own fresh VM), returning the Slot
// handle used to Join or Cancel it. Once the pool has created
// cfg.SlotCount slots it returns an error instead of blocking; finished
// slots are never removed, so they still count toward the limit.
func (p *SlotPool) Spawn(body func(vm *VM) (rtvalue.Value, bool)) (*Slot, error) {
	p.mu.Lock()
	if len(p.slots) >= p.cfg.SlotCount {
		p.mu.Unlock()
		return nil, errors.Errorf("pkvm: slot pool exhausted (limit %d)", p.cfg.SlotCount)
	}
	id := len(p.slots)
	slot := &Slot{
		id:      id,
		vm:      New(p.cfg, p.log, Hooks{}),
		cfg:     p.cfg,
		reqC:    make(chan StartRequest, 1),
		cancelC: make(chan struct{}),
		doneC:   make(chan JoinResponse, 1),
	}
	p.slots = append(p.slots, slot)
	p.mu.Unlock()

	slot.vm.hooks.CevalOnStep = func(vm *VM) bool {
		return atomic.LoadInt32(&slot.cancelled) == 0
	}

	p.log.SlotEvent(id, "spawn")
	go slot.run(body)
	return slot, nil
}

func (s *Slot) run(body func(vm *VM) (rtvalue.Value, bool)) {
	result, ok := body(s.vm)
	resp := JoinResponse{}
	if !ok {
		exc, _ := s.vm.PendingException()
		resp.Failed = true
		resp.Traceback = s.vm.FormatTraceback(exc)
	} else {
		payload, err := s.vm.Dumps(result)
		if err != nil {
			resp.Failed = true
			resp.Traceback = err.Error()
		} else {
			resp.ResultPickle = payload
		}
	}
	s.doneC <- resp
}

// Join blocks until the slot's goroutine finishes and returns its pickled
// result, decoded against a fresh VM the caller provides (since a pickled
// Value is meaningless without a heap to allocate its decoded form into).
func (s *Slot) Join(decodeInto *VM) (rtvalue.Value, bool, error) {
	resp := <-s.doneC
	if resp.Failed {
		return rtvalue.None, false, errors.New(resp.Traceback)
	}
	v, err := decodeInto.Loads(resp.ResultPickle)
	if err != nil {
		return rtvalue.None, false, err
	}
	return v, true, nil
}

// Cancel requests cooperative cancellation; the slot's VM observes this
// at its next CevalOnStep checkpoint, per spec.md §5.
func (s *Slot) Cancel() {
	atomic.StoreInt32(&s.cancelled, 1)
}

// ID returns the slot's index within its pool. Slot has no accessor for
// its VM; the VM is reachable only as the argument of Spawn's body
// function.
func (s *Slot) ID() int { return s.id }
