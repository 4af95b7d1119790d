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
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"github.com/tobilg/raster-tileserver/internal/conf"
	"github.com/tobilg/raster-tileserver/internal/metrics"
	"github.com/tobilg/raster-tileserver/internal/render"
)

const (
	ContentTypeJSON = "application/json"
	ContentTypeText = "text/plain"
	ContentTypePNG  = render.ContentTypePNG
)

// initRouter sets up the HTTP routes
func initRouter(basePath string) *mux.Router {
	router := mux.NewRouter()

	// Apply base path if specified
	var r *mux.Router
	if basePath != "" {
		log.Infof("Using base path: %s", basePath)
		r = router.PathPrefix(basePath).Subrouter()
	} else {
		r = router
	}
	r.Use(metricsMiddleware)

	// Health check endpoint
	r.Handle("/health", appHandler(handleHealth)).Methods("GET")

	// Layers discovery endpoint
	r.Handle("/layers", appHandler(handleLayers)).Methods("GET")
	r.Handle("/layers.json", appHandler(handleLayers)).Methods("GET")

	// TileJSON metadata endpoint
	r.Handle("/tms/{layer}.json", appHandler(handleTileJSON)).Methods("GET")

	// Raster tile endpoint (with cache middleware)
	r.Handle("/tms/{layer}/{z:[0-9]+}/{x:[0-9]+}/{y:[0-9]+}{format:\\.[A-Za-z0-9]+}",
		serviceInstance.tileCacheMiddleware(appHandler(handleTile))).Methods("GET")

	// Legend entries of a layer or legend
	r.Handle("/legend/{name}", appHandler(handleLegend)).Methods("GET")

	if conf.Configuration.Metrics.Enabled {
		path := conf.Configuration.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		r.Handle(path, metrics.Handler()).Methods("GET")
	}

	// Cache management endpoints (conditionally registered)
	if !conf.Configuration.Cache.DisableApi {
		log.Info("Cache management endpoints enabled")
		// Apply authentication middleware if API key is configured
		r.Handle("/cache/stats", appHandler(cacheAuthMiddleware(serviceInstance.handleCacheStats))).Methods("GET")
		r.Handle("/cache/clear", appHandler(cacheAuthMiddleware(serviceInstance.handleCacheClear))).Methods("DELETE")
		r.Handle("/cache/layer/{layer}", appHandler(cacheAuthMiddleware(serviceInstance.handleCacheClearLayer))).Methods("DELETE")
	} else {
		log.Info("Cache management endpoints disabled")
	}

	// Log registered routes
	router.Walk(func(route *mux.Route, router *mux.Router, ancestors []*mux.Route) error {
		pathTemplate, err := route.GetPathTemplate()
		if err == nil {
			log.Debugf("Registered route: %s", pathTemplate)
		}
		methods, err := route.GetMethods()
		if err == nil {
			log.Debugf("  Methods: %v", methods)
		}
		return nil
	})

	return router
}

// metricsMiddleware records the status and duration of matched routes
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		route := r.URL.Path
		if cr := mux.CurrentRoute(r); cr != nil {
			if tpl, err := cr.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		metrics.ObserveHTTP(r.Method, route, sw.status, time.Since(start).Seconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (sw *statusWriter) WriteHeader(code int) {
	sw.status = code
	sw.ResponseWriter.WriteHeader(code)
}

// getBaseURL constructs the base URL for the service
func getBaseURL(r *http.Request) string {
	// Remove trailing slash from serveURLBase
	base := serveURLBase(r)
	if len(base) > 0 && base[len(base)-1] == '/' {
		base = base[:len(base)-1]
	}
	return base
}

// formatTileURL formats a tile URL pattern for use in map viewers
func formatTileURL(baseURL string, layer string) string {
	return fmt.Sprintf("%s/tms/%s/{z}/{x}/{y}.png", baseURL, url.PathEscape(layer))
}
