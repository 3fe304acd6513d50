// Copyright 2016 The Upspin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package flags defines command-line flags to make them consistent between
// the cachefsd and originserver binaries. Not all flags make sense for
// both binaries.
package flags

import (
	"flag"
	"fmt"
	"reflect"

	"github.com/jacoboyy/cachefs/log"
)

// We define the flags in two steps so clients don't have to write *flags.Flag.

var (
	// Addr is the network address on which cachefsd listens for client
	// connections.
	Addr = "localhost:4080"

	// Origin is the network address of the authoritative file server
	// that the proxy fetches from and writes back to.
	Origin = "localhost:4443"

	// CacheDir is the local directory used for the on-disk cache.
	CacheDir = "/var/cache/cachefs"

	// Capacity is the cache's byte budget.
	Capacity int64 = 1 << 30 // 1 GiB

	// ConfigFile, if non-empty, names a YAML file with the above
	// parameters; flags override values found there.
	ConfigFile = ""

	// Log sets the level of logging.
	Log logFlag

	// Insecure disables TLS on the proxy's listener. It must never be
	// set when Addr is not on the loopback network.
	Insecure = false
)

type logFlag string

// String implements flag.Value.
func (l *logFlag) String() string {
	return string(*l)
}

// Set implements flag.Value.
func (l *logFlag) Set(level string) error {
	if err := log.SetLevel(level); err != nil {
		return err
	}
	*l = logFlag(log.GetLevel())
	return nil
}

// Get implements flag.Getter.
func (l *logFlag) Get() interface{} {
	return log.GetLevel()
}

// Parse sets up the command-line flags for the given flag variables and
// calls flag.Parse. Passing an unknown variable triggers a panic.
//
//	flags.Parse(&flags.Addr, &flags.CacheDir, &flags.Capacity)
func Parse(vars ...interface{}) error {
	for i, v := range vars {
		unknown := false
		switch v := v.(type) {
		case *string:
			switch v {
			case &Addr:
				flag.StringVar(v, "addr", Addr, "address for incoming client connections")
			case &Origin:
				flag.StringVar(v, "origin", Origin, "address of the authoritative file server")
			case &CacheDir:
				flag.StringVar(v, "cachedir", CacheDir, "local directory for the on-disk cache")
			case &ConfigFile:
				flag.StringVar(v, "configfile", "", "`file` with YAML configuration")
			default:
				unknown = true
			}
		case *int64:
			switch v {
			case &Capacity:
				flag.Int64Var(v, "capacity", Capacity, "cache byte budget")
			default:
				unknown = true
			}
		case *bool:
			switch v {
			case &Insecure:
				flag.BoolVar(v, "insecure", Insecure, "disable TLS on the listener (loopback only)")
			default:
				unknown = true
			}
		case *logFlag:
			switch v {
			case &Log:
				v.Set("info")
				flag.Var(v, "log", "`level` of logging: debug, info, error, disabled")
			default:
				unknown = true
			}
		default:
			unknown = true
		}
		if unknown {
			msg := fmt.Sprintf("flags: unknown flag (%#v, arg %d)", v, i)
			if reflect.TypeOf(v).Kind() != reflect.Ptr {
				msg += ", expected pointer type"
			}
			panic(msg)
		}
	}
	flag.Parse()
	return nil
}
