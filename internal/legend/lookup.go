package legend

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
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/tobilg/raster-tileserver/internal/data"
)

// EntryJSON is one legend entry as served by the legend endpoint
type EntryJSON struct {
	Color      string `json:"color"`
	Expression string `json:"expression"`
	Name       string `json:"name"`
}

// Lookup returns the entries of the legend of the named layer, or of
// the legend with that title. A layer without a legend falls back to a
// legend titled like it and otherwise has no entries.
func Lookup(ctx context.Context, cat data.Catalog, name string) ([]EntryJSON, error) {
	lyr, err := cat.LayerByName(ctx, name)
	if err != nil && !errors.Is(err, data.ErrNotFound) {
		return nil, err
	}
	if err == nil && lyr.LegendID != nil {
		lgd, err := cat.LegendByID(ctx, *lyr.LegendID)
		if errors.Is(err, data.ErrNotFound) {
			log.Warnf("Layer %s references missing legend %d", lyr.Name, *lyr.LegendID)
			return []EntryJSON{}, nil
		}
		if err != nil {
			return nil, err
		}
		return entriesJSON(lgd), nil
	}

	lgd, err := cat.LegendByTitle(ctx, name)
	switch {
	case errors.Is(err, data.ErrNotFound) && lyr != nil:
		return []EntryJSON{}, nil
	case errors.Is(err, data.ErrNotFound):
		return nil, fmt.Errorf("no layer or legend %q: %w", name, data.ErrNotFound)
	case err != nil:
		return nil, err
	}
	return entriesJSON(lgd), nil
}

func entriesJSON(lgd *data.Legend) []EntryJSON {
	entries := make([]EntryJSON, 0, len(lgd.Entries))
	for _, e := range lgd.Entries {
		entries = append(entries, EntryJSON{
			Color:      e.Color,
			Expression: e.Expression,
			Name:       e.SemanticsName(),
		})
	}
	return entries
}
