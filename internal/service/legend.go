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
	"github.com/tobilg/raster-tileserver/internal/legend"
)

// handleLegend returns the legend entries of a layer, or of a legend by title
func handleLegend(w http.ResponseWriter, r *http.Request) *appError {
	name := mux.Vars(r)["name"]
	log.Debugf("Legend request: %s", name)

	entries, err := legend.Lookup(r.Context(), catalogInstance, name)
	if errors.Is(err, data.ErrNotFound) {
		return appErrorNotFound(err, fmt.Sprintf("Layer or legend not found: %s", name))
	}
	if err != nil {
		return appErrorInternal(err, "Error reading legend")
	}
	return writeJSON(w, ContentTypeJSON, entries)
}
