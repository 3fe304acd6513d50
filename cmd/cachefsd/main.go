// Copyright 2016 The Upspin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Cachefsd is the caching file proxy (C10 of the design): a
// long-lived process that sits between clients and an authoritative origin
// file server, serving check-on-open whole-file caching over a raw framed
// protocol on -addr, and a gzip-compressed /debug/cache endpoint on
// -debug_addr. Configuration comes from a YAML file (-configfile), with any
// -addr, -origin, -cachedir, -capacity, or -insecure flag overriding the
// file's value, matching upspin.io/cmd/cacheserver's config-then-flags
// layering.
package main

import (
	"crypto/tls"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"

	"github.com/jacoboyy/cachefs/cache"
	"github.com/jacoboyy/cachefs/config"
	"github.com/jacoboyy/cachefs/dispatcher"
	"github.com/jacoboyy/cachefs/flags"
	"github.com/jacoboyy/cachefs/log"
	"github.com/jacoboyy/cachefs/rpcclient"
	"golang.org/x/crypto/acme/autocert"
)

var (
	debugAddr   = flag.String("debug_addr", "localhost:4081", "address for the /debug/cache endpoint")
	autocertDir = flag.String("autocert_dir", "", "`directory` for cached autocert certificates; empty disables TLS even when -insecure is false")
)

func main() {
	flag.Usage = usage
	flags.Parse(&flags.Addr, &flags.Origin, &flags.CacheDir, &flags.Capacity, &flags.ConfigFile, &flags.Insecure, &flags.Log)

	cfg, err := loadConfig()
	if err != nil {
		log.Fatal(err)
	}

	client, err := rpcclient.New(cfg.Origin, cfg.Insecure)
	if err != nil {
		log.Fatalf("cachefsd: dialing origin %s: %v", cfg.Origin, err)
	}

	ix := cache.New(cfg.CacheDir, cfg.Capacity)
	d := dispatcher.New(ix, client)

	go serveDebug(ix)

	ln, err := listen(cfg)
	if err != nil {
		log.Fatalf("cachefsd: listen on %s: %v", cfg.Addr, err)
	}
	log.Printf("cachefsd: serving clients on %s, origin %s, cache %s (%d bytes)",
		cfg.Addr, cfg.Origin, cfg.CacheDir, cfg.Capacity)
	log.Fatal(d.Serve(ln))
}

func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	var err error
	if flags.ConfigFile != "" {
		f, err := os.Open(flags.ConfigFile)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		cfg, err = config.Load(f)
		if err != nil {
			return nil, err
		}
	} else {
		cfg, err = config.Load(nil)
		if err != nil {
			return nil, err
		}
	}
	// Only flags given on the command line override the file's values.
	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	given := func(name, v string) string {
		if set[name] {
			return v
		}
		return ""
	}
	var capacity int64
	if set["capacity"] {
		capacity = flags.Capacity
	}
	cfg.Merge(given("addr", flags.Addr), given("origin", flags.Origin), given("cachedir", flags.CacheDir), capacity, flags.Insecure)
	return cfg, nil
}

// listen returns the client-facing listener: plain TCP when -insecure is
// set (loopback development use) or -autocert_dir is empty, otherwise TLS
// terminated with a
// certificate autocert.Manager obtains and renews, mirroring
// upspin.io/cloud/autocert's role without its Google Cloud Storage
// backend, since cachefsd's cache directory is already a local disk cache.
func listen(cfg *config.Config) (net.Listener, error) {
	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return nil, err
	}
	if cfg.Insecure || *autocertDir == "" {
		return ln, nil
	}
	m := &autocert.Manager{
		Prompt: autocert.AcceptTOS,
		Cache:  autocert.DirCache(*autocertDir),
	}
	tlsConfig := m.TLSConfig()
	tlsConfig.NextProtos = append(tlsConfig.NextProtos, "cachefs/1")
	return tls.NewListener(ln, tlsConfig), nil
}

func serveDebug(ix *cache.Index) {
	mux := http.NewServeMux()
	mux.Handle("/debug/cache", dispatcher.DebugHandler(ix))
	log.Error.Printf("cachefsd: debug server exited: %v", http.ListenAndServe(*debugAddr, mux))
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: cachefsd [flags]")
	flag.PrintDefaults()
	os.Exit(2)
}
