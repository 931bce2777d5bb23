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

func TestScratchRegistersSurviveCollection(t *testing.T) {
	vm := New(config.Default(), diag.Discard(), Hooks{})
	vm.SetScratch(0, vm.newString("pinned"))

	for i := 0; i < 64; i++ {
		vm.newList([]rtvalue.Value{rtvalue.Int(int64(i))})
	}
	vm.heap.Collect(vm)

	s, ok := vm.stringValue(vm.Scratch(0))
	require.True(t, ok)
	require.Equal(t, "pinned", s)
}

func TestTypeOfBuiltins(t *testing.T) {
	vm := New(config.Default(), diag.Discard(), Hooks{})
	require.Equal(t, TypeInt, vm.TypeOf(rtvalue.Int(1)).ID)
	require.Equal(t, TypeBool, vm.TypeOf(rtvalue.True).ID)
	require.Equal(t, TypeNone, vm.TypeOf(rtvalue.None).ID)
	require.True(t, IsSubclass(vm.TypeOf(rtvalue.Int(1)), vm.types.Get(TypeObject)))
}
