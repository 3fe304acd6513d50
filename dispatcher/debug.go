// Copyright 2016 The Upspin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dispatcher

import (
	"encoding/json"
	"net/http"

	"github.com/NYTimes/gziphandler"
	"github.com/jacoboyy/cachefs/cache"
)

// DebugHandler returns a gzip-compressed HTTP handler reporting current
// cache occupancy, for operators to scrape or curl (spec.md §4.8's debug
// surface). It is served on a separate listener from the client-facing
// framed protocol, the way upspin.io/cmd servers expose a debug mux
// alongside their main RPC listener.
func DebugHandler(ix *cache.Index) http.Handler {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(ix.GetStats()); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
	return gziphandler.GzipHandler(h)
}
