// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefault(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

func TestLoadOverlaysDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pkvm.yaml")
	require.NoError(t, os.WriteFile(path, []byte("gc_min_threshold: 2048\nslot_count: 4\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 2048, cfg.GCMinThreshold)
	require.Equal(t, 4, cfg.SlotCount)
	require.Equal(t, DefaultMaxStackDepth, cfg.MaxStackDepth)
}

func TestLoadRejectsInvalidSlotCount(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pkvm.yaml")
	require.NoError(t, os.WriteFile(path, []byte("slot_count: 99\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}
