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
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/tobilg/raster-tileserver/internal/tile"
)

// Method is a resampling method
type Method int

const (
	Nearest Method = iota
	Bilinear
)

func (m Method) String() string {
	if m == Bilinear {
		return "bilinear"
	}
	return "nearest"
}

// ParseMethod parses a resampling method name; empty means nearest
func ParseMethod(name string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "nearest":
		return Nearest, nil
	case "bilinear":
		return Bilinear, nil
	}
	return Nearest, fmt.Errorf("unknown resampling method %q", name)
}

// Grid is a tile of sampled values; NaN marks pixels without data
type Grid struct {
	Width  int
	Height int
	Values []float64
}

// NewGrid returns a tile-sized grid without data
func NewGrid() *Grid {
	g := &Grid{
		Width:  tile.Size,
		Height: tile.Size,
		Values: make([]float64, tile.Size*tile.Size),
	}
	for i := range g.Values {
		g.Values[i] = math.NaN()
	}
	return g
}

// At returns the value of output pixel (px, py)
func (g *Grid) At(px, py int) float64 {
	return g.Values[py*g.Width+px]
}

// Sample resamples the raster onto the tile window by mapping every
// output pixel center back into the source raster
func Sample(ctx context.Context, r *Raster, w tile.Window, method Method) (*Grid, error) {
	g := NewGrid()
	if !w.InExtent {
		return g, nil
	}
	crs, err := LookupCRS(r.Srid)
	if err != nil {
		return nil, err
	}
	for py := 0; py < tile.Size; py++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for px := 0; px < tile.Size; px++ {
			p, ok := crs.FromMercator(tile.PixelCenter(w, px, py))
			if !ok {
				continue
			}
			fx := (p.X() - r.OriginX) / r.PixelSizeX
			fy := (r.OriginY - p.Y()) / r.PixelSizeY
			if fx < 0 || fy < 0 || fx >= float64(r.Width) || fy >= float64(r.Height) {
				continue
			}
			v, ok := r.sampleAt(fx, fy, method)
			if ok {
				g.Values[py*g.Width+px] = v
			}
		}
	}
	return g, nil
}

func (r *Raster) sampleAt(fx, fy float64, method Method) (float64, bool) {
	if method == Bilinear {
		if v, ok := r.bilinear(fx, fy); ok {
			return v, true
		}
	}
	return r.At(int(fx), int(fy))
}

// bilinear interpolates between the four nearest pixel centers.
// It fails when any of them is nodata.
func (r *Raster) bilinear(fx, fy float64) (float64, bool) {
	gx := fx - 0.5
	gy := fy - 0.5
	x0 := int(math.Floor(gx))
	y0 := int(math.Floor(gy))
	dx := gx - float64(x0)
	dy := gy - float64(y0)

	x1 := clamp(x0+1, 0, r.Width-1)
	y1 := clamp(y0+1, 0, r.Height-1)
	x0 = clamp(x0, 0, r.Width-1)
	y0 = clamp(y0, 0, r.Height-1)

	v00, ok00 := r.At(x0, y0)
	v10, ok10 := r.At(x1, y0)
	v01, ok01 := r.At(x0, y1)
	v11, ok11 := r.At(x1, y1)
	if !ok00 || !ok10 || !ok01 || !ok11 {
		return 0, false
	}
	top := v00*(1-dx) + v10*dx
	bot := v01*(1-dx) + v11*dx
	return top*(1-dy) + bot*dy, true
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
