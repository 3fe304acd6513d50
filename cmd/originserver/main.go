// Copyright 2016 The Upspin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Originserver is the reference authoritative file server (C6 of the
// design): an in-memory store of versioned files exposed over the
// fetch/write/unlink RPCs cachefsd's proxy speaks, for development and
// testing against cachefsd without a real backend. It is not meant to
// survive a restart; production deployments point -origin at a real
// file-serving backend that implements the same RPCs.
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"

	"github.com/jacoboyy/cachefs/flags"
	"github.com/jacoboyy/cachefs/log"
	"github.com/jacoboyy/cachefs/origin"
	"github.com/jacoboyy/cachefs/rpcserver"
	"golang.org/x/net/http2"
)

func main() {
	flag.Usage = usage
	flags.Parse(&flags.Addr, &flags.Log)

	h := rpcserver.New(origin.New())
	srv := &http.Server{
		Addr:    flags.Addr,
		Handler: h,
	}
	if err := http2.ConfigureServer(srv, nil); err != nil {
		log.Fatalf("originserver: configuring HTTP/2: %v", err)
	}

	log.Printf("originserver: serving on %s", flags.Addr)
	log.Fatal(srv.ListenAndServe())
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: originserver [flags]")
	flag.PrintDefaults()
	os.Exit(2)
}
