package render

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
	"image/png"
	"strings"
	"time"

	"github.com/paulmach/orb"
	log "github.com/sirupsen/logrus"
	"github.com/tobilg/raster-tileserver/internal/conf"
	"github.com/tobilg/raster-tileserver/internal/data"
	"github.com/tobilg/raster-tileserver/internal/legend"
	"github.com/tobilg/raster-tileserver/internal/metrics"
	"github.com/tobilg/raster-tileserver/internal/raster"
	"github.com/tobilg/raster-tileserver/internal/tile"
	"golang.org/x/sync/semaphore"
)

// ErrUnsupportedFormat is returned for tile formats other than png
var ErrUnsupportedFormat = errors.New("unsupported tile format")

// Options control how tiles are drawn
type Options struct {
	Resampling  raster.Method
	NoLegend    NoLegend
	Compression png.CompressionLevel
	// MaxConcurrent bounds simultaneous renders; 0 means no bound
	MaxConcurrent int
	// Overzoom is the number of zoom levels rendered past the native one; negative means no limit
	Overzoom int
}

// OptionsFromConfig reads the render options of the configuration
func OptionsFromConfig(cfg conf.Render) (Options, error) {
	method, err := raster.ParseMethod(cfg.Resampling)
	if err != nil {
		return Options{}, err
	}
	noLegend, err := ParseNoLegend(cfg.NoLegend)
	if err != nil {
		return Options{}, err
	}
	level, err := ParseCompression(cfg.Compression)
	if err != nil {
		return Options{}, err
	}
	return Options{
		Resampling:    method,
		NoLegend:      noLegend,
		Compression:   level,
		MaxConcurrent: cfg.MaxConcurrent,
		Overzoom:      cfg.Overzoom,
	}, nil
}

// TileRequest is a parsed tile request
type TileRequest struct {
	Layer string
	Z     int
	X     int
	Y     int
	// Format is the file suffix, with or without the dot
	Format string
	// Legend optionally names a legend, or a layer whose legend is used
	Legend string
	// Entries optionally restricts the legend to these expressions
	Entries []string
}

// Tile is a rendered tile
type Tile struct {
	Data        []byte
	ContentType string
	// Blank is set for the shared fully transparent tile
	Blank bool
}

// Renderer turns tile requests into PNG tiles
type Renderer struct {
	catalog data.Catalog
	store   *raster.Store
	enc     *Encoder
	opts    Options
	sem     *semaphore.Weighted
}

// NewRenderer creates a renderer reading layers from cat and rasters from store
func NewRenderer(cat data.Catalog, store *raster.Store, opts Options) *Renderer {
	rd := &Renderer{
		catalog: cat,
		store:   store,
		enc:     NewEncoder(opts.Compression),
		opts:    opts,
	}
	if opts.MaxConcurrent > 0 {
		rd.sem = semaphore.NewWeighted(int64(opts.MaxConcurrent))
	}
	return rd
}

func blank() *Tile {
	return &Tile{Data: BlankTile(), ContentType: ContentTypePNG, Blank: true}
}

// RenderTile renders one tile.
// Unknown layers and legends return data.ErrNotFound. Tiles without
// data coverage return the blank tile.
func (rd *Renderer) RenderTile(ctx context.Context, req TileRequest) (*Tile, error) {
	start := time.Now()
	t, err := rd.renderTile(ctx, req)

	result := metrics.ResultRendered
	switch {
	case errors.Is(err, data.ErrNotFound):
		result = metrics.ResultNotFound
	case err != nil:
		result = metrics.ResultError
	case t.Blank:
		result = metrics.ResultBlank
	}
	metrics.ObserveRender(result, time.Since(start).Seconds())
	log.Debugf("Tile %s/%d/%d/%d: %s in %v", req.Layer, req.Z, req.X, req.Y, result, time.Since(start))
	return t, err
}

func (rd *Renderer) renderTile(ctx context.Context, req TileRequest) (*Tile, error) {
	if f := strings.TrimPrefix(strings.ToLower(req.Format), "."); f != "" && f != "png" {
		return nil, fmt.Errorf("%q: %w", req.Format, ErrUnsupportedFormat)
	}

	lyr, err := rd.catalog.LayerByName(ctx, req.Layer)
	if err != nil {
		return nil, err
	}
	res, err := legend.Resolve(ctx, rd.catalog, lyr, req.Legend, req.Entries)
	if err != nil {
		return nil, err
	}
	if !res.HasLegend() && rd.opts.NoLegend == NoLegendTransparent {
		return blank(), nil
	}

	if rd.sem != nil {
		if err := rd.sem.Acquire(ctx, 1); err != nil {
			return nil, err
		}
		defer rd.sem.Release(1)
	}

	r, err := rd.openRaster(ctx, lyr)
	if errors.Is(err, raster.ErrMissing) {
		log.Warnf("Raster file of layer %s is missing: %v", lyr.Name, err)
		return blank(), nil
	}
	if err != nil {
		return nil, err
	}

	w := tile.Resolve(req.Z, req.X, req.Y, r.Extent(), r.MaxZoom(rd.opts.Overzoom))
	if !w.InExtent {
		return blank(), nil
	}

	method := raster.Nearest
	if lyr.IsContinuous() {
		method = rd.opts.Resampling
	}
	grid, err := raster.Sample(ctx, r, w, method)
	if err != nil {
		return nil, err
	}

	var ramp *Ramp
	if !res.HasLegend() {
		if min, max, ok := r.Stats(); ok {
			ramp = &Ramp{Min: min, Max: max}
		}
	}
	img, painted := Colorize(grid, res, ramp)
	if !painted {
		return blank(), nil
	}
	b, err := rd.enc.Encode(img)
	if err != nil {
		return nil, err
	}
	return &Tile{Data: b, ContentType: ContentTypePNG}, nil
}

// openRaster returns the layer raster with the layer SRID and nodata applied
func (rd *Renderer) openRaster(ctx context.Context, lyr *data.RasterLayer) (*raster.Raster, error) {
	src, err := rd.store.Open(ctx, lyr.RasterFile)
	if err != nil {
		return nil, err
	}
	nodata, hasNodata := lyr.NodataValue()
	r, err := src.WithOverrides(lyr.Srid, nodata, hasNodata)
	if err != nil {
		return nil, fmt.Errorf("layer %s: %w", lyr.Name, err)
	}
	return r, nil
}

// Coverage describes where and down to which zoom a layer has data
type Coverage struct {
	// Bounds is in longitude/latitude
	Bounds  orb.Bound
	MinZoom int
	MaxZoom int
}

// Coverage reads the raster of a layer to find its bounds and zoom range.
// A missing raster file returns raster.ErrMissing.
func (rd *Renderer) Coverage(ctx context.Context, lyr *data.RasterLayer) (*Coverage, error) {
	r, err := rd.openRaster(ctx, lyr)
	if err != nil {
		return nil, err
	}
	maxZoom := r.MaxZoom(rd.opts.Overzoom)
	if maxZoom < 0 {
		maxZoom = tile.MaxZoom
	}
	return &Coverage{
		Bounds:  tile.ToLonLat(r.Extent()),
		MinZoom: 0,
		MaxZoom: maxZoom,
	}, nil
}

// Store returns the raster store of the renderer
func (rd *Renderer) Store() *raster.Store {
	return rd.store
}
