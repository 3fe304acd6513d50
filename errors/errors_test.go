// Copyright 2016 The Upspin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package errors

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSeparator(t *testing.T) {
	defer func(prev string) { Separator = prev }(Separator)
	Separator = ":: "

	e1 := E("fetch", "/foo/bar", Permission, Str("network unreachable"))
	e2 := E("open", "/foo/bar", Other, e1)

	want := "/foo/bar: open: permission denied:: fetch: network unreachable"
	assert.Equal(t, want, e2.Error())
}

func TestDoesNotChangePreviousError(t *testing.T) {
	err := E(Permission)
	err2 := E("caller", err)

	assert.Equal(t, "caller: permission denied", err2.Error())
	assert.Equal(t, Permission, err.(*Error).Kind)
}

func TestKindPropagation(t *testing.T) {
	inner := E("open", Busy)
	outer := E("session.Open", inner)

	assert.Equal(t, Busy, GetKind(outer))
}

func TestErrno(t *testing.T) {
	cases := []struct {
		k    Kind
		want int
	}{
		{Permission, -1},
		{NotExist, -2},
		{Exist, -3},
		{IsDir, -4},
		{Invalid, -5},
		{BadHandle, -6},
		{Busy, -7},
		{NoMemory, -8},
		{Other, 0},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, c.k.Errno(), c.k.String())
	}
}

func TestDuplicateSuppression(t *testing.T) {
	inner := E("/foo/bar", "fetch", IsDir)
	outer := E("/foo/bar", "open", inner)

	// The path should appear only once in the message.
	assert.Equal(t, 1, countOccurrences(outer.Error(), "/foo/bar"))
}

func countOccurrences(s, sub string) int {
	count := 0
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			count++
		}
	}
	return count
}
