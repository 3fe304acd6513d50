// Copyright 2016 The Upspin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverridesDefaults(t *testing.T) {
	doc := strings.NewReader("addr: 0.0.0.0:9000\ncapacity: 2048\n")
	cfg, err := Load(doc)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9000", cfg.Addr)
	assert.Equal(t, int64(2048), cfg.Capacity)
	assert.Equal(t, Default().Origin, cfg.Origin)
}

func TestLoadRejectsUnknownKey(t *testing.T) {
	doc := strings.NewReader("bogus: true\n")
	_, err := Load(doc)
	require.Error(t, err)
}

func TestMergeFlagsOverrideFile(t *testing.T) {
	cfg := Default()
	cfg.Merge("", "", "/data/cache", 0, false)
	assert.Equal(t, "/data/cache", cfg.CacheDir)
	assert.Equal(t, Default().Addr, cfg.Addr)
}
