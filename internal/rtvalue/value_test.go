// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rtvalue

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScalarConstructorsRoundTrip(t *testing.T) {
	require.True(t, None.IsNone())
	require.Equal(t, KindBool, True.Kind())
	require.True(t, True.AsBool())
	require.False(t, False.AsBool())
	require.Equal(t, int64(42), Int(42).AsInt())
	require.Equal(t, 3.5, Float(3.5).AsFloat())
	require.Equal(t, HeapRef(7), Obj(7).AsRef())
}

func TestTruthy(t *testing.T) {
	require.False(t, None.Truthy())
	require.False(t, False.Truthy())
	require.True(t, True.Truthy())
	require.False(t, Int(0).Truthy())
	require.True(t, Int(1).Truthy())
	require.False(t, Float(0).Truthy())
}

func TestIdentical(t *testing.T) {
	require.True(t, Identical(None, None))
	require.True(t, Identical(Int(5), Int(5)))
	require.False(t, Identical(Int(5), Int(6)))
	require.False(t, Identical(Int(5), Float(5)))
	require.True(t, Identical(Obj(3), Obj(3)))
	require.False(t, Identical(Obj(3), Obj(4)))
}

func TestNameIntern(t *testing.T) {
	a := Intern("foo_bar_baz")
	b := Intern("foo_bar_baz")
	require.Equal(t, a, b)
	require.Equal(t, "foo_bar_baz", a.Text())
}

func TestKindStringPanicsOnInvalid(t *testing.T) {
	require.Panics(t, func() { _ = Kind(200).String() })
}

func TestVec2RoundTripAndTruthy(t *testing.T) {
	v := NewVec2(1.5, 0)
	x, y := v.AsVec2()
	require.Equal(t, float32(1.5), x)
	require.Equal(t, float32(0), y)
	require.True(t, v.Truthy())
	require.False(t, NewVec2(0, 0).Truthy())
	require.Equal(t, "vec2(1.5, 0)", v.String())
}

func TestVec2iRoundTripAndIdentity(t *testing.T) {
	v := NewVec2i(2, 3)
	x, y := v.AsVec2i()
	require.Equal(t, int32(2), x)
	require.Equal(t, int32(3), y)
	require.True(t, Identical(NewVec2i(2, 3), NewVec2i(2, 3)))
	require.False(t, Identical(NewVec2i(2, 3), NewVec2i(2, 4)))
	require.False(t, Identical(NewVec2i(2, 3), NewVec2(2, 3)))
}

func TestUnboundIsDistinctFromNone(t *testing.T) {
	require.Equal(t, KindUnbound, Unbound.Kind())
	require.False(t, Identical(Unbound, None))
}
