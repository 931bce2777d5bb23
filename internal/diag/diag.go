// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package diag supplies the structured-logging sink used by the heap,
// interpreter, and compute-thread pool for diagnostic events (GC passes,
// step traces, slot lifecycle). It wraps zerolog rather than defining a
// bespoke logging interface, matching how this domain's VMs (e.g. the
// Tamarin runtime) emit runtime diagnostics.
package diag

import (
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Logger is a per-VM structured logger, tagged with a session id so log
// lines from multiple concurrently-running VM slots can be told apart.
type Logger struct {
	zl        zerolog.Logger
	SessionID uuid.UUID
}

// New builds a Logger writing to w at the given level. Passing a nil w
// defaults to os.Stderr.
func New(w io.Writer, level zerolog.Level) Logger {
	if w == nil {
		w = os.Stderr
	}
	id := uuid.New()
	zl := zerolog.New(w).Level(level).With().
		Timestamp().
		Str("session", id.String()).
		Logger()
	return Logger{zl: zl, SessionID: id}
}

// Discard returns a Logger that drops all events, used by tests and by
// embedders that never configured diagnostics.
func Discard() Logger {
	return New(io.Discard, zerolog.Disabled)
}

func (l Logger) GC(event string, liveObjects, threshold int) {
	l.zl.Debug().Str("event", event).Int("live", liveObjects).Int("threshold", threshold).Msg("gc")
}

func (l Logger) Step(frameDepth int, ip int) {
	l.zl.Trace().Int("frame_depth", frameDepth).Int("ip", ip).Msg("step")
}

func (l Logger) SlotEvent(slot int, event string) {
	l.zl.Info().Int("slot", slot).Str("event", event).Msg("slot")
}

func (l Logger) Error(err error, msg string) {
	l.zl.Error().Err(err).Msg(msg)
}
