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
	"net/url"
	"strconv"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"github.com/tobilg/raster-tileserver/internal/data"
	"github.com/tobilg/raster-tileserver/internal/legend"
	"github.com/tobilg/raster-tileserver/internal/raster"
	"github.com/tobilg/raster-tileserver/internal/render"
)

// tileRequest parses the tile address and query of a request
func tileRequest(r *http.Request) render.TileRequest {
	vars := mux.Vars(r)
	query := r.URL.Query()
	return render.TileRequest{
		Layer:   vars["layer"],
		Z:       parseCoord(vars["z"]),
		X:       parseCoord(vars["x"]),
		Y:       parseCoord(vars["y"]),
		Format:  vars["format"],
		Legend:  query.Get("legend"),
		Entries: legend.ParseEntries(query["entries"]),
	}
}

// parseCoord returns -1 for numbers too large to address a tile,
// which then render as blank tiles
func parseCoord(s string) int {
	v, err := strconv.Atoi(s)
	if err != nil || v > 1<<30 {
		return -1
	}
	return v
}

// handleTile serves a colorized PNG tile of a raster layer
func handleTile(w http.ResponseWriter, r *http.Request) *appError {
	req := tileRequest(r)
	log.Debugf("Tile request: layer=%s z=%d x=%d y=%d legend=%q entries=%v",
		req.Layer, req.Z, req.X, req.Y, req.Legend, req.Entries)

	if serviceInstance == nil || serviceInstance.renderer == nil {
		return appErrorInternal(nil, "Service not initialized")
	}
	tl, err := serviceInstance.renderer.RenderTile(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, data.ErrNotFound):
			return appErrorNotFound(err, fmt.Sprintf("Not found: %v", err))
		case errors.Is(err, render.ErrUnsupportedFormat):
			return appErrorBadRequest(err, fmt.Sprintf("Unsupported tile format: %s", req.Format))
		case errors.Is(err, raster.ErrUnsupportedSrid), errors.Is(err, raster.ErrUnsupported):
			return appErrorInternal(err, fmt.Sprintf("Layer %s cannot be rendered: %v", req.Layer, err))
		}
		return appErrorInternal(err, "Error rendering tile")
	}

	w.Header().Set("Content-Type", tl.ContentType)
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(tl.Data); err != nil {
		log.Warnf("Error writing tile data: %v", err)
	}
	return nil
}

// TileJSON is the TileJSON 3.0.0 document of a layer
type TileJSON struct {
	TileJSON    string    `json:"tilejson"`
	Name        string    `json:"name,omitempty"`
	Description string    `json:"description,omitempty"`
	Version     string    `json:"version,omitempty"`
	Scheme      string    `json:"scheme,omitempty"`
	Format      string    `json:"format,omitempty"`
	Tiles       []string  `json:"tiles"`
	MinZoom     int       `json:"minzoom"`
	MaxZoom     int       `json:"maxzoom"`
	Bounds      []float64 `json:"bounds,omitempty"`
	Center      []float64 `json:"center,omitempty"`
	Legend      string    `json:"legend,omitempty"`
}

// handleTileJSON serves TileJSON metadata for a layer
func handleTileJSON(w http.ResponseWriter, r *http.Request) *appError {
	name := mux.Vars(r)["layer"]
	log.Debugf("TileJSON request for layer: %s", name)

	if serviceInstance == nil || serviceInstance.renderer == nil {
		return appErrorInternal(nil, "Service not initialized")
	}
	lyr, err := catalogInstance.LayerByName(r.Context(), name)
	if errors.Is(err, data.ErrNotFound) {
		return appErrorNotFound(err, fmt.Sprintf("Layer not found: %s", name))
	}
	if err != nil {
		return appErrorInternal(err, fmt.Sprintf("Error reading layer %s", name))
	}

	baseURL := getBaseURL(r)
	tj := &TileJSON{
		TileJSON:    "3.0.0",
		Name:        lyr.Name,
		Description: lyr.Description,
		Version:     "1.0.0",
		Scheme:      "xyz",
		Format:      "png",
		Tiles:       []string{formatTileURL(baseURL, lyr.Name)},
		MinZoom:     0,
		MaxZoom:     22,
	}
	if lyr.LegendID != nil {
		tj.Legend = fmt.Sprintf("%s/legend/%s", baseURL, url.PathEscape(lyr.Name))
	}

	cov, err := serviceInstance.renderer.Coverage(r.Context(), lyr)
	switch {
	case err == nil:
		b := cov.Bounds
		tj.MinZoom = cov.MinZoom
		tj.MaxZoom = cov.MaxZoom
		tj.Bounds = []float64{b.Min[0], b.Min[1], b.Max[0], b.Max[1]}
		c := b.Center()
		tj.Center = []float64{c[0], c[1], float64((cov.MinZoom + cov.MaxZoom) / 2)}
	case errors.Is(err, raster.ErrMissing):
		log.Warnf("TileJSON for layer %s without raster file: %v", lyr.Name, err)
	default:
		return appErrorInternal(err, fmt.Sprintf("Error reading raster of layer %s", lyr.Name))
	}

	return writeJSON(w, ContentTypeJSON, tj)
}
