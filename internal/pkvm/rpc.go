// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pkvm

// The request/response pairs below mirror the teacher's
// program/proxyrpc package, which paired one struct per RPC operation
// (ReadAtRequest/Response, WriteAtRequest/Response, ...) for controlling
// a debuggee process. Here each pair controls a VM slot instead of a
// ptraced process, and every field that would have carried a live Go
// value instead carries a pickled byte payload, since §5 requires
// compute threads to communicate only via serialized byte payloads.

// StartRequest asks a slot to begin executing a module body.
type StartRequest struct {
	ModuleName string
	CodeBytes  []byte // names the code object to run; Slot keeps no code-object registry and does not read StartRequest
	ArgsPickle []byte // pickled []rtvalue.Value, the call's positional arguments
}

// StartResponse acknowledges that a slot accepted the request and began
// running (or reports why it couldn't).
type StartResponse struct {
	Accepted bool
	Err      string
}

// JoinRequest asks a slot for its final result, blocking until the slot's
// goroutine finishes.
type JoinRequest struct{}

// JoinResponse carries the slot's outcome as a pickled Value plus any
// unhandled-exception traceback text, never a live Value or Go error —
// crossing the slot boundary only ever happens in serialized form.
type JoinResponse struct {
	ResultPickle []byte
	Traceback    string
	Failed       bool
}

// CancelRequest asks a slot to stop at its next cooperative checkpoint
// (the CevalOnStep hook), mirroring the proxyrpc CloseRequest/Response
// pair's "tell the far side to stop" shape.
type CancelRequest struct{}

// CancelResponse acknowledges a cancellation was requested; it does not
// guarantee the slot has stopped yet.
type CancelResponse struct{ Requested bool }
