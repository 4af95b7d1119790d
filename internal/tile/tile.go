package tile

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
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
	"github.com/paulmach/orb/project"
)

const (
	// Size is the tile edge length in pixels
	Size = 256

	// MaxZoom is the deepest zoom level served
	MaxZoom = 30

	// OriginShift is half the EPSG:3857 world width in meters
	OriginShift = 20037508.342789244
)

// Extent is a bounding box in EPSG:3857 meters
type Extent = orb.Bound

// Window is the EPSG:3857 area covered by one tile of the XYZ pyramid
type Window struct {
	Bound orb.Bound
	Z     int
	X     int
	Y     int
	// InExtent is false when the tile address is invalid
	// or the tile has no overlap with the raster
	InExtent bool
}

// Resolve maps a tile address to its window.
// maxZoom limits the zoom levels served for the raster; a negative value means no limit.
func Resolve(z, x, y int, extent Extent, maxZoom int) Window {
	w := Window{Z: z, X: x, Y: y}
	if !Valid(z, x, y) {
		return w
	}
	w.Bound = MercatorBound(z, x, y)
	if maxZoom >= 0 && z > maxZoom {
		return w
	}
	w.InExtent = overlaps(w.Bound, extent)
	return w
}

// Valid reports whether z/x/y addresses a tile of the pyramid
func Valid(z, x, y int) bool {
	if z < 0 || z > MaxZoom {
		return false
	}
	n := 1 << uint(z)
	return x >= 0 && x < n && y >= 0 && y < n
}

// MercatorBound returns the EPSG:3857 bound of a valid tile address
func MercatorBound(z, x, y int) orb.Bound {
	span := 2 * OriginShift / float64(int64(1)<<uint(z))
	minx := -OriginShift + float64(x)*span
	maxy := OriginShift - float64(y)*span
	return orb.Bound{
		Min: orb.Point{minx, maxy - span},
		Max: orb.Point{minx + span, maxy},
	}
}

// LonLatBound returns the WGS84 bound of a valid tile address
func LonLatBound(z, x, y int) orb.Bound {
	return maptile.New(uint32(x), uint32(y), maptile.Zoom(z)).Bound()
}

// overlaps is true when the bounds share a non-empty area
func overlaps(a, b orb.Bound) bool {
	if !a.Intersects(b) {
		return false
	}
	return a.Min.X() < b.Max.X() && b.Min.X() < a.Max.X() &&
		a.Min.Y() < b.Max.Y() && b.Min.Y() < a.Max.Y()
}

// PixelSize returns the ground size of one tile pixel in meters
func (w Window) PixelSize() float64 {
	return (w.Bound.Max.X() - w.Bound.Min.X()) / Size
}

// PixelCenter returns the EPSG:3857 coordinate of the center of output pixel (px, py)
func PixelCenter(w Window, px, py int) orb.Point {
	res := w.PixelSize()
	return orb.Point{
		w.Bound.Min.X() + (float64(px)+0.5)*res,
		w.Bound.Max.Y() - (float64(py)+0.5)*res,
	}
}

// Resolution returns the pixel size in meters at zoom z
func Resolution(z int) float64 {
	return 2 * OriginShift / (Size * math.Pow(2, float64(z)))
}

// NativeZoom returns the zoom level whose pixel size is closest to resolutionMeters
func NativeZoom(resolutionMeters float64) int {
	if resolutionMeters <= 0 || math.IsNaN(resolutionMeters) || math.IsInf(resolutionMeters, 0) {
		return MaxZoom
	}
	z := int(math.Round(math.Log2(Resolution(0) / resolutionMeters)))
	if z < 0 {
		return 0
	}
	if z > MaxZoom {
		return MaxZoom
	}
	return z
}

// MaxLatitude is the latitude at which the EPSG:3857 square world ends
const MaxLatitude = 85.05112877980659

// ToMercator converts a WGS84 bound to EPSG:3857, clamping latitudes to the projection limit
func ToMercator(b orb.Bound) orb.Bound {
	return orb.Bound{
		Min: project.WGS84.ToMercator(clampLat(b.Min)),
		Max: project.WGS84.ToMercator(clampLat(b.Max)),
	}
}

func clampLat(p orb.Point) orb.Point {
	return orb.Point{p.X(), math.Max(-MaxLatitude, math.Min(MaxLatitude, p.Y()))}
}

// ToLonLat converts an EPSG:3857 bound to WGS84
func ToLonLat(b orb.Bound) orb.Bound {
	return orb.Bound{
		Min: project.Mercator.ToWGS84(b.Min),
		Max: project.Mercator.ToWGS84(b.Max),
	}
}
