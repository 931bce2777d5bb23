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

func TestPickleScalarRoundTrip(t *testing.T) {
	vm := New(config.Default(), diag.Discard(), Hooks{})
	for _, v := range []rtvalue.Value{rtvalue.None, rtvalue.True, rtvalue.False, rtvalue.Int(-7), rtvalue.Float(2.5)} {
		data, err := vm.Dumps(v)
		require.NoError(t, err)
		got, err := vm.Loads(data)
		require.NoError(t, err)
		require.True(t, rtvalue.Identical(v, got) || (v.Kind() == rtvalue.KindFloat && got.AsFloat() == v.AsFloat()))
	}
}

func TestPickleStringRoundTrip(t *testing.T) {
	vm := New(config.Default(), diag.Discard(), Hooks{})
	v := vm.newString("hello, world")
	data, err := vm.Dumps(v)
	require.NoError(t, err)
	got, err := vm.Loads(data)
	require.NoError(t, err)
	s, ok := vm.stringValue(got)
	require.True(t, ok)
	require.Equal(t, "hello, world", s)
}

func TestPickleListRoundTrip(t *testing.T) {
	vm := New(config.Default(), diag.Discard(), Hooks{})
	v := vm.newList([]rtvalue.Value{rtvalue.Int(1), rtvalue.Int(2), vm.newString("x")})
	data, err := vm.Dumps(v)
	require.NoError(t, err)
	got, err := vm.Loads(data)
	require.NoError(t, err)
	obj := vm.heap.Get(got.AsRef())
	items := obj.payload.(*listBox).items
	require.Len(t, items, 3)
	require.Equal(t, int64(1), items[0].AsInt())
	s, _ := vm.stringValue(items[2])
	require.Equal(t, "x", s)
}

func TestPickleCyclicListUsesBackReference(t *testing.T) {
	vm := New(config.Default(), diag.Discard(), Hooks{})
	v := vm.newList([]rtvalue.Value{rtvalue.Int(1)})
	obj := vm.heap.Get(v.AsRef())
	obj.payload.(*listBox).items = append(obj.payload.(*listBox).items, v) // self-reference

	data, err := vm.Dumps(v)
	require.NoError(t, err)
	got, err := vm.Loads(data)
	require.NoError(t, err)
	gotObj := vm.heap.Get(got.AsRef())
	items := gotObj.payload.(*listBox).items
	require.Len(t, items, 2)
	require.Equal(t, got.AsRef(), items[1].AsRef())
}
