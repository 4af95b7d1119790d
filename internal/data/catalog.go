package data

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
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// Raster datatypes
const (
	DatatypeCategorical  = "ca"
	DatatypeContinuous   = "co"
	DatatypeMask         = "ma"
	DatatypeRankOrdered  = "ro"
	DefaultLayerDatatype = DatatypeContinuous
)

// ErrNotFound is returned (wrapped) when a layer or legend does not exist
var ErrNotFound = errors.New("not found")

// Catalog is the repository of raster layers and legends
type Catalog interface {
	Layers(ctx context.Context) ([]*RasterLayer, error)

	// LayerByName matches the layer name, or the base name of its raster file
	LayerByName(ctx context.Context, name string) (*RasterLayer, error)

	LegendByID(ctx context.Context, id int64) (*Legend, error)

	// LegendByTitle matches the legend title case-insensitively
	LegendByTitle(ctx context.Context, title string) (*Legend, error)

	// PutLegend inserts the legend, or replaces it when ID is set.
	// The assigned ID is written back.
	PutLegend(ctx context.Context, lgd *Legend) error

	// PutLayer inserts the layer, or replaces it when ID is set.
	// The assigned ID is written back.
	PutLayer(ctx context.Context, lyr *RasterLayer) error

	Ping(ctx context.Context) error

	Close() error
}

// RasterLayer is a named single-band raster file
type RasterLayer struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Datatype    string `json:"datatype"`
	Srid        int    `json:"srid,omitempty"`
	// Nodata is kept as entered; empty means the file's own nodata applies
	Nodata     string `json:"nodata,omitempty"`
	RasterFile string `json:"rasterfile"`
	LegendID   *int64 `json:"legend_id,omitempty"`
}

// NodataValue parses the layer nodata value
func (lyr *RasterLayer) NodataValue() (float64, bool) {
	s := strings.TrimSpace(lyr.Nodata)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// IsContinuous reports whether interpolated resampling makes sense for the layer
func (lyr *RasterLayer) IsContinuous() bool {
	return lyr.Datatype == DatatypeContinuous
}

func (lyr *RasterLayer) matches(name string) bool {
	if lyr.Name == name {
		return true
	}
	return lyr.RasterFile != "" && filepath.Base(lyr.RasterFile) == name
}

// matchByFile returns the layer with the lowest ID whose raster file has
// the base name; the layers are sorted in place
func matchByFile(layers []*RasterLayer, name string) *RasterLayer {
	sort.Slice(layers, func(i, j int) bool { return layers[i].ID < layers[j].ID })
	for _, lyr := range layers {
		if lyr.matches(name) {
			return lyr
		}
	}
	return nil
}

func (lyr *RasterLayer) clone() *RasterLayer {
	c := *lyr
	if lyr.LegendID != nil {
		id := *lyr.LegendID
		c.LegendID = &id
	}
	return &c
}

// Legend is an ordered list of classification rules
type Legend struct {
	ID          int64          `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	Entries     []*LegendEntry `json:"entries"`
}

// LegendEntry maps an expression over pixel values to a color
type LegendEntry struct {
	ID         int64            `json:"id"`
	Semantics  *LegendSemantics `json:"semantics,omitempty"`
	Expression string           `json:"expression"`
	Color      string           `json:"color"`
}

// LegendSemantics is a label shared by entries of different legends
type LegendSemantics struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Keyword     string `json:"keyword,omitempty"`
}

// SemanticsName returns the entry label, or an empty string
func (e *LegendEntry) SemanticsName() string {
	if e.Semantics == nil {
		return ""
	}
	return e.Semantics.Name
}

// Clone returns a deep copy of the legend
func (lgd *Legend) Clone() *Legend {
	c := *lgd
	c.Entries = make([]*LegendEntry, len(lgd.Entries))
	for i, e := range lgd.Entries {
		ec := *e
		if e.Semantics != nil {
			sc := *e.Semantics
			ec.Semantics = &sc
		}
		c.Entries[i] = &ec
	}
	return &c
}

func sameTitle(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
