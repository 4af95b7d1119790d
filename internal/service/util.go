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
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/theckman/httpforwarded"
	"github.com/tobilg/raster-tileserver/internal/conf"
)

// appHandler is a handler that returns its failure instead of writing it
type appHandler func(http.ResponseWriter, *http.Request) *appError

// appError is an error with the message and status sent to the client
type appError struct {
	Error   error
	Message string
	Code    int
}

func (fn appHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log.Debugf("%v %v %v", r.RemoteAddr, r.Method, r.URL)

	if e := fn(w, r); e != nil {
		if e.Error != nil {
			log.Warnf("Request %v %v failed: %v (%v)", r.Method, r.URL.Path, e.Message, e.Error)
		} else {
			log.Debugf("Request %v %v failed: %v", r.Method, r.URL.Path, e.Message)
		}
		http.Error(w, e.Message, e.Code)
	}
}

func appErrorMsg(err error, msg string, code int) *appError {
	return &appError{err, msg, code}
}

func appErrorInternal(err error, msg string) *appError {
	return appErrorMsg(err, msg, http.StatusInternalServerError)
}

func appErrorBadRequest(err error, msg string) *appError {
	return appErrorMsg(err, msg, http.StatusBadRequest)
}

func appErrorNotFound(err error, msg string) *appError {
	return appErrorMsg(err, msg, http.StatusNotFound)
}

func appErrorUnauthorized(err error, msg string) *appError {
	return appErrorMsg(err, msg, http.StatusUnauthorized)
}

func appErrorForbidden(err error, msg string) *appError {
	return appErrorMsg(err, msg, http.StatusForbidden)
}

// writeJSON encodes v as the response body
func writeJSON(w http.ResponseWriter, contentType string, v interface{}) *appError {
	encodedContent, err := json.Marshal(v)
	if err != nil {
		return appErrorInternal(err, "Error encoding JSON response")
	}
	w.Header().Set("Content-Type", contentType)
	if _, err := w.Write(encodedContent); err != nil {
		log.Warnf("Error writing response: %v", err)
	}
	return nil
}

// serveURLBase returns the base URL the client reached the service at,
// honoring reverse proxy headers
func serveURLBase(r *http.Request) string {
	// Use configuration file settings if we have them
	configURL := conf.Configuration.Server.UrlBase
	if configURL != "" {
		return strings.TrimRight(configURL, "/") + conf.Configuration.Server.BasePath + "/"
	}

	// Preferred scheme
	ps := "http"
	if r.TLS != nil {
		ps = "https"
	}
	// Preferred host:port
	ph := strings.TrimRight(r.Host, "/")

	// Check for the IETF standard "Forwarded" header
	// for reverse proxy information
	xf := http.CanonicalHeaderKey("Forwarded")
	if f, ok := r.Header[xf]; ok {
		if fm, err := httpforwarded.Parse(f); err == nil {
			if h := fm["host"]; len(h) > 0 {
				ph = h[0]
			}
			if p := fm["proto"]; len(p) > 0 {
				ps = p[0]
			}
			return fmt.Sprintf("%v://%v%v/", ps, ph, conf.Configuration.Server.BasePath)
		}
	}

	// Check the X-Forwarded-Host and X-Forwarded-Proto headers
	xfh := http.CanonicalHeaderKey("X-Forwarded-Host")
	if fh, ok := r.Header[xfh]; ok {
		ph = fh[0]
	}
	xfp := http.CanonicalHeaderKey("X-Forwarded-Proto")
	if fp, ok := r.Header[xfp]; ok {
		ps = fp[0]
	}

	return fmt.Sprintf("%v://%v%v/", ps, ph, conf.Configuration.Server.BasePath)
}
