package service

/*
 Copyright 2019 - 2025 Crunchy Data Solutions, Inc.
 Licensed under the Apache License, Version 2.0 (the "License");
 you may not use this file except in compliance with the License.
 You may obtain a copy of the License at
      http://www.apache.org/licenses/LICENSE-2.0
 Unless required by applicable law or agreed to in writing, software
 distributed under the License is distributed on an "AS IS" BASIS,
 WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 See the License for the specific language governing permissions and
 limitations under the License.
*/

import (
	"crypto/subtle"
	"net/http"

	log "github.com/sirupsen/logrus"
	"github.com/tobilg/raster-tileserver/internal/conf"
)

const headerAPIKey = "X-API-Key"

// checkAPIKey compares the request key with the configured one.
// Without a configured key every request passes.
func checkAPIKey(r *http.Request) *appError {
	want := conf.Configuration.Cache.ApiKey
	if want == "" {
		return nil
	}
	got := r.Header.Get(headerAPIKey)
	if got == "" {
		log.Warnf("Cache request %s %s from %s without API key", r.Method, r.URL.Path, r.RemoteAddr)
		return appErrorUnauthorized(nil, "API key required. Provide X-API-Key header.")
	}
	if subtle.ConstantTimeCompare([]byte(got), []byte(want)) != 1 {
		log.Warnf("Cache request %s %s from %s with invalid API key", r.Method, r.URL.Path, r.RemoteAddr)
		return appErrorForbidden(nil, "Invalid API key")
	}
	return nil
}

// cacheAuthMiddleware guards the cache management handlers
func cacheAuthMiddleware(next appHandler) appHandler {
	return func(w http.ResponseWriter, r *http.Request) *appError {
		if e := checkAPIKey(r); e != nil {
			return e
		}
		return next(w, r)
	}
}
