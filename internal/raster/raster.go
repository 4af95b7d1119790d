package raster

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
	"math"
	"sync"

	"github.com/paulmach/orb"
	"github.com/tobilg/raster-tileserver/internal/tile"
)

// Geographic and Web Mercator systems; projected ones are listed in crs.go
const (
	SridWebMercator = 3857
	SridWGS84       = 4326
)

// ErrUnsupportedSrid is returned for rasters in a CRS without a known projection
var ErrUnsupportedSrid = errors.New("unsupported spatial reference system")

// Raster is a decoded single-band raster.
// Rows run north to south; (OriginX, OriginY) is the upper-left corner.
type Raster struct {
	Width      int
	Height     int
	OriginX    float64
	OriginY    float64
	PixelSizeX float64
	PixelSizeY float64
	// Srid is 0 when the file carries no usable GeoKeys
	Srid      int
	Nodata    float64
	HasNodata bool
	// Values holds Width*Height samples in row-major order
	Values []float64

	// stats is shared by copies from WithOverrides; nil computes on every call
	stats *statsCache
}

type statsKey struct {
	nodata    float64
	hasNodata bool
}

type statsResult struct {
	min, max float64
	ok       bool
}

type statsCache struct {
	mu      sync.Mutex
	results map[statsKey]statsResult
}

func newStatsCache() *statsCache {
	return &statsCache{results: make(map[statsKey]statsResult)}
}

// NormalizeSrid maps the Web Mercator aliases onto 3857 and
// checks that the SRID can be projected
func NormalizeSrid(srid int) (int, error) {
	switch srid {
	case SridWebMercator, 900913, 3785, 102100, 102113:
		return SridWebMercator, nil
	case SridWGS84:
		return SridWGS84, nil
	}
	if _, err := LookupCRS(srid); err != nil {
		return srid, err
	}
	return srid, nil
}

// WithOverrides returns a copy using the given SRID and nodata value
// where they are set. The pixel values are shared.
// A raster without any SRID is taken to be in Web Mercator.
func (r *Raster) WithOverrides(srid int, nodata float64, hasNodata bool) (*Raster, error) {
	c := *r
	if srid != 0 {
		c.Srid = srid
	}
	if c.Srid == 0 {
		c.Srid = SridWebMercator
	}
	norm, err := NormalizeSrid(c.Srid)
	if err != nil {
		return nil, err
	}
	c.Srid = norm
	if hasNodata {
		c.Nodata = nodata
		c.HasNodata = true
	}
	return &c, nil
}

// NativeBound returns the raster bound in its own CRS
func (r *Raster) NativeBound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{r.OriginX, r.OriginY - float64(r.Height)*r.PixelSizeY},
		Max: orb.Point{r.OriginX + float64(r.Width)*r.PixelSizeX, r.OriginY},
	}
}

// Extent returns the raster bound in EPSG:3857.
// A raster in an unknown CRS is taken to be in Web Mercator.
func (r *Raster) Extent() tile.Extent {
	b := r.NativeBound()
	crs, err := LookupCRS(r.Srid)
	if err != nil {
		return b
	}
	return crs.ProjectBound(b)
}

// At returns the value at (col, row); false for nodata or out of range
func (r *Raster) At(col, row int) (float64, bool) {
	if col < 0 || row < 0 || col >= r.Width || row >= r.Height {
		return 0, false
	}
	v := r.Values[row*r.Width+col]
	if r.isNodata(v) {
		return 0, false
	}
	return v, true
}

func (r *Raster) isNodata(v float64) bool {
	if math.IsNaN(v) {
		return true
	}
	return r.HasNodata && v == r.Nodata
}

// Stats returns the smallest and largest valid value; false when there are none.
// Decoded rasters scan their values once per nodata setting.
func (r *Raster) Stats() (min, max float64, ok bool) {
	if r.stats == nil {
		return r.scanStats()
	}
	key := statsKey{nodata: r.Nodata, hasNodata: r.HasNodata}
	if !r.HasNodata || math.IsNaN(r.Nodata) {
		// NaN is always nodata
		key = statsKey{}
	}
	r.stats.mu.Lock()
	defer r.stats.mu.Unlock()
	res, found := r.stats.results[key]
	if !found {
		res.min, res.max, res.ok = r.scanStats()
		r.stats.results[key] = res
	}
	return res.min, res.max, res.ok
}

func (r *Raster) scanStats() (min, max float64, ok bool) {
	min, max = math.Inf(1), math.Inf(-1)
	for _, v := range r.Values {
		if r.isNodata(v) {
			continue
		}
		ok = true
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	if !ok {
		return 0, 0, false
	}
	return min, max, true
}

// ResolutionMeters returns the pixel width in meters, measured at the equator for geographic rasters.
// Projected systems are all metric.
func (r *Raster) ResolutionMeters() float64 {
	if r.Srid == SridWGS84 {
		return r.PixelSizeX * 2 * tile.OriginShift / 360
	}
	return r.PixelSizeX
}

// MaxZoom returns the deepest zoom level rendered, overzoom levels past the native one.
// A negative overzoom means no limit and returns -1.
func (r *Raster) MaxZoom(overzoom int) int {
	if overzoom < 0 {
		return -1
	}
	z := tile.NativeZoom(r.ResolutionMeters()) + overzoom
	if z > tile.MaxZoom {
		return tile.MaxZoom
	}
	return z
}
