// Copyright 2016 The Upspin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config loads the process-wide configuration for cachefsd: its
// listen address, the origin's network address, the local cache directory,
// and the cache's byte capacity. Values may come from a YAML file, from
// command-line flags (see the flags package), or from both, with flags
// always taking precedence over the file.
package config

import (
	"io"
	"io/ioutil"

	"github.com/jacoboyy/cachefs/errors"
	yaml "gopkg.in/yaml.v2"
)

// Config holds the parameters needed to start the proxy.
type Config struct {
	// Addr is the address the proxy listens on for client connections.
	Addr string `yaml:"addr"`
	// Origin is the address of the authoritative file server.
	Origin string `yaml:"origin"`
	// CacheDir is the local directory for the on-disk cache.
	CacheDir string `yaml:"cachedir"`
	// Capacity is the cache's byte budget.
	Capacity int64 `yaml:"capacity"`
	// Insecure disables TLS on the listener.
	Insecure bool `yaml:"insecure"`
}

// Default returns a Config populated with the same defaults as package
// flags, so that Load(nil) and the zero-flag CLI agree.
func Default() *Config {
	return &Config{
		Addr:     "localhost:4080",
		Origin:   "localhost:4443",
		CacheDir: "/var/cache/cachefs",
		Capacity: 1 << 30,
	}
}

// Load reads a YAML configuration document from r and overlays it onto a
// set of defaults. A nil reader returns the defaults unchanged. Unrecognized
// keys are an error, matching upspin's config loader.
func Load(r io.Reader) (*Config, error) {
	const op = "config.Load"
	cfg := Default()
	if r == nil {
		return cfg, nil
	}
	data, err := ioutil.ReadAll(r)
	if err != nil {
		return nil, errors.E(op, errors.Permission, err)
	}
	if len(data) == 0 {
		return cfg, nil
	}

	// Decode into a generic map first so unknown keys can be reported,
	// the same way config.valsFromYAML does upstream.
	raw := map[string]interface{}{}
	if err := yaml.Unmarshal(data, raw); err != nil {
		return nil, errors.E(op, errors.Invalid, errors.Errorf("parsing YAML: %v", err))
	}
	known := map[string]bool{
		"addr": true, "origin": true, "cachedir": true,
		"capacity": true, "insecure": true,
	}
	for k := range raw {
		if !known[k] {
			return nil, errors.E(op, errors.Invalid, errors.Errorf("unrecognized key %q", k))
		}
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.E(op, errors.Invalid, err)
	}
	return cfg, nil
}

// Merge overlays any non-zero-valued CLI flags onto cfg and returns cfg,
// so that a configuration file can set defaults a command-line invocation
// selectively overrides.
func (cfg *Config) Merge(addr, origin, cacheDir string, capacity int64, insecure bool) *Config {
	if addr != "" {
		cfg.Addr = addr
	}
	if origin != "" {
		cfg.Origin = origin
	}
	if cacheDir != "" {
		cfg.CacheDir = cacheDir
	}
	if capacity != 0 {
		cfg.Capacity = capacity
	}
	if insecure {
		cfg.Insecure = insecure
	}
	return cfg
}
