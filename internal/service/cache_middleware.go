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
	"bytes"
	"context"
	"fmt"
	"net/http"

	log "github.com/sirupsen/logrus"
	"github.com/tobilg/raster-tileserver/internal/cache"
	"github.com/tobilg/raster-tileserver/internal/conf"
	"github.com/tobilg/raster-tileserver/internal/metrics"
)

// tileCacheMiddleware wraps the tile handler to check cache first
func (s *Service) tileCacheMiddleware(next appHandler) appHandler {
	return func(w http.ResponseWriter, r *http.Request) *appError {
		// Skip cache if service or cache is not initialized
		if !s.cacheEnabled() {
			return next(w, r)
		}

		req := tileRequest(r)
		// Unknown layers are not cached; the handler answers them
		lyr, err := catalogInstance.LayerByName(r.Context(), req.Layer)
		if err != nil {
			return next(w, r)
		}
		cacheKey := cache.Key(lyr.Name, req.Z, req.X, req.Y, req.Legend, req.Entries)

		maxAge := conf.Configuration.Cache.BrowserCacheMaxAge
		if cachedTile, found := s.cache.Get(r.Context(), cacheKey); found {
			metrics.IncCacheHit()
			w.Header().Set("Content-Type", ContentTypePNG)
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("X-Cache", "HIT")
			w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", maxAge))
			w.WriteHeader(http.StatusOK)
			if _, err := w.Write(cachedTile); err != nil {
				log.Warnf("Error writing cached tile: %v", err)
			}
			return nil
		}

		// Cache miss - set headers before calling next handler
		metrics.IncCacheMiss()
		w.Header().Set("X-Cache", "MISS")
		w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", maxAge))

		// Capture the response to store it
		recorder := &responseCapturer{
			ResponseWriter: w,
			body:           &bytes.Buffer{},
		}
		appErr := next(recorder, r)

		if appErr == nil && recorder.statusCode == http.StatusOK && recorder.body.Len() > 0 {
			// Store asynchronously; the request context ends with the response
			ctx := context.WithoutCancel(r.Context())
			tileData := recorder.body.Bytes()
			go func() {
				if err := s.cache.Set(ctx, cacheKey, tileData); err != nil {
					log.Warnf("Error caching tile %s: %v", cacheKey, err)
				}
			}()
		}
		if appErr != nil {
			// Errors must not be cached by browsers either
			w.Header().Set("Cache-Control", "no-store")
		}
		return appErr
	}
}

// responseCapturer captures the response body to store in cache
type responseCapturer struct {
	http.ResponseWriter
	body       *bytes.Buffer
	statusCode int
}

func (rc *responseCapturer) Write(b []byte) (int, error) {
	// If WriteHeader wasn't called explicitly, assume 200 OK
	if rc.statusCode == 0 {
		rc.statusCode = http.StatusOK
	}
	rc.body.Write(b)
	return rc.ResponseWriter.Write(b)
}

func (rc *responseCapturer) WriteHeader(statusCode int) {
	rc.statusCode = statusCode
	rc.ResponseWriter.WriteHeader(statusCode)
}
