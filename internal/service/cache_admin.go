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
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"github.com/tobilg/raster-tileserver/internal/data"
)

func (s *Service) cacheEnabled() bool {
	return s != nil && s.cache != nil && s.cache.Enabled()
}

// handleCacheStats returns cache statistics as JSON
func (s *Service) handleCacheStats(w http.ResponseWriter, r *http.Request) *appError {
	if !s.cacheEnabled() {
		return writeJSON(w, ContentTypeJSON, map[string]string{
			"status": "disabled",
		})
	}
	return writeJSON(w, ContentTypeJSON, s.cache.Stats())
}

// handleCacheClear clears the entire cache
func (s *Service) handleCacheClear(w http.ResponseWriter, r *http.Request) *appError {
	if !s.cacheEnabled() {
		return appErrorBadRequest(nil, "Cache is disabled")
	}
	if err := s.cache.Clear(r.Context()); err != nil {
		return appErrorInternal(err, "Error clearing cache")
	}
	log.Info("Tile cache cleared")

	return writeJSON(w, ContentTypeJSON, map[string]string{
		"status":  "ok",
		"message": "Cache cleared",
	})
}

// handleCacheClearLayer clears all tiles of a layer.
// Tiles requested by raster file name are stored under the layer name.
func (s *Service) handleCacheClearLayer(w http.ResponseWriter, r *http.Request) *appError {
	if !s.cacheEnabled() {
		return appErrorBadRequest(nil, "Cache is disabled")
	}

	layer := mux.Vars(r)["layer"]
	if lyr, err := catalogInstance.LayerByName(r.Context(), layer); err == nil {
		layer = lyr.Name
	} else if !errors.Is(err, data.ErrNotFound) {
		return appErrorInternal(err, "Error reading layer")
	}

	removed, err := s.cache.ClearLayer(r.Context(), layer)
	if err != nil {
		return appErrorInternal(err, fmt.Sprintf("Error clearing cache of layer %s", layer))
	}
	log.Infof("Cleared %d cached tiles of layer %s", removed, layer)

	return writeJSON(w, ContentTypeJSON, map[string]interface{}{
		"status":  "ok",
		"message": fmt.Sprintf("Cleared %d tiles for layer %s", removed, layer),
		"removed": removed,
		"layer":   layer,
	})
}
