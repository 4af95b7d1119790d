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
	"net/http"

	log "github.com/sirupsen/logrus"
	"github.com/tobilg/raster-tileserver/internal/cache"
)

// HealthResponse represents the JSON response for the /health endpoint
type HealthResponse struct {
	Status  string      `json:"status"`
	Catalog string      `json:"catalog"`
	Rasters int         `json:"rasters_open"`
	Cache   CacheStatus `json:"cache"`
}

// CacheStatus represents cache health information
type CacheStatus struct {
	Enabled bool         `json:"enabled"`
	Stats   *cache.Stats `json:"stats,omitempty"`
}

// handleHealth returns health status of the service
func handleHealth(w http.ResponseWriter, r *http.Request) *appError {
	log.Debug("Health check request")

	health := HealthResponse{
		Status:  "ok",
		Catalog: "connected",
	}

	if catalogInstance == nil {
		health.Status = "error"
		health.Catalog = "disconnected"
	} else if err := catalogInstance.Ping(r.Context()); err != nil {
		log.Warnf("Catalog ping failed: %v", err)
		health.Status = "error"
		health.Catalog = "disconnected"
	}

	if serviceInstance != nil {
		if serviceInstance.renderer != nil {
			health.Rasters = serviceInstance.renderer.Store().Len()
		}
		if serviceInstance.cache != nil && serviceInstance.cache.Enabled() {
			stats := serviceInstance.cache.Stats()
			health.Cache = CacheStatus{Enabled: true, Stats: &stats}
		}
	}

	w.Header().Set("Content-Type", ContentTypeJSON)
	if health.Status == "ok" {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	return writeJSON(w, ContentTypeJSON, health)
}
