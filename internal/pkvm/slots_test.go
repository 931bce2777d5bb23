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

func TestSlotPoolRunsIndependentVM(t *testing.T) {
	cfg := config.Default()
	cfg.SlotCount = 2
	pool := NewSlotPool(cfg, diag.Discard())

	slot, err := pool.Spawn(func(vm *VM) (rtvalue.Value, bool) {
		code, err := Assemble("slot", `
.const int 20
.const int 22
LOAD_CONST 0
LOAD_CONST 1
BINARY_OP +
RETURN
`)
		require.NoError(t, err)
		return vm.RunCode(code, vm.Main())
	})
	require.NoError(t, err)

	decoder := New(cfg, diag.Discard(), Hooks{})
	v, ok, err := slot.Join(decoder)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(42), v.AsInt())
}

func TestSlotPoolExhaustion(t *testing.T) {
	cfg := config.Default()
	cfg.SlotCount = 1
	pool := NewSlotPool(cfg, diag.Discard())

	block := make(chan struct{})
	_, err := pool.Spawn(func(vm *VM) (rtvalue.Value, bool) {
		<-block
		return rtvalue.None, true
	})
	require.NoError(t, err)

	_, err = pool.Spawn(func(vm *VM) (rtvalue.Value, bool) { return rtvalue.None, true })
	require.Error(t, err)
	close(block)
}

func TestSlotCancel(t *testing.T) {
	cfg := config.Default()
	pool := NewSlotPool(cfg, diag.Discard())

	started := make(chan struct{})
	slot, err := pool.Spawn(func(vm *VM) (rtvalue.Value, bool) {
		close(started)
		for {
			if !vm.hooks.CevalOnStep(vm) {
				return rtvalue.None, vm.Raisef("RuntimeError", "cancelled")
			}
		}
	})
	require.NoError(t, err)
	<-started
	slot.Cancel()

	decoder := New(cfg, diag.Discard(), Hooks{})
	_, ok, err := slot.Join(decoder)
	require.False(t, ok)
	require.Error(t, err)
}
