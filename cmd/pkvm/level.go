// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"os"

	"github.com/rs/zerolog"
)

// diagLevel reads PKVM_LOG (e.g. "debug", "trace") to decide how verbose
// structured diagnostics should be; unset defaults to warnings only, so
// a plain `pkvm run` stays quiet unless the host asks for more.
func diagLevel() zerolog.Level {
	switch os.Getenv("PKVM_LOG") {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	default:
		return zerolog.WarnLevel
	}
}
