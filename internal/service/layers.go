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
	"net/url"

	log "github.com/sirupsen/logrus"
	"github.com/tobilg/raster-tileserver/internal/conf"
)

// LayerInfo is a catalog layer as listed by the /layers endpoint
type LayerInfo struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Datatype    string `json:"datatype"`
	Srid        int    `json:"srid,omitempty"`
	RasterFile  string `json:"rasterfile"`
	Legend      string `json:"legend,omitempty"`
	TileURL     string `json:"tileurl"`
	TileJSON    string `json:"tilejson"`
}

// LayersResponse represents the JSON response for the /layers endpoint
type LayersResponse struct {
	Title       string      `json:"title,omitempty"`
	Description string      `json:"description,omitempty"`
	Layers      []LayerInfo `json:"layers"`
}

// handleLayers returns a list of all raster layers
func handleLayers(w http.ResponseWriter, r *http.Request) *appError {
	log.Debug("Layers request")

	layers, err := catalogInstance.Layers(r.Context())
	if err != nil {
		return appErrorInternal(err, "Error retrieving layers")
	}

	baseURL := getBaseURL(r)
	response := LayersResponse{
		Title:       conf.Configuration.Metadata.Title,
		Description: conf.Configuration.Metadata.Description,
		Layers:      make([]LayerInfo, 0, len(layers)),
	}
	for _, lyr := range layers {
		info := LayerInfo{
			Name:        lyr.Name,
			Description: lyr.Description,
			Datatype:    lyr.Datatype,
			Srid:        lyr.Srid,
			RasterFile:  lyr.RasterFile,
			TileURL:     formatTileURL(baseURL, lyr.Name),
			TileJSON:    baseURL + "/tms/" + url.PathEscape(lyr.Name) + ".json",
		}
		if lyr.LegendID != nil {
			if lgd, err := catalogInstance.LegendByID(r.Context(), *lyr.LegendID); err == nil {
				info.Legend = lgd.Title
			} else {
				log.Debugf("Legend %d of layer %s: %v", *lyr.LegendID, lyr.Name, err)
			}
		}
		response.Layers = append(response.Layers, info)
	}

	return writeJSON(w, ContentTypeJSON, response)
}
