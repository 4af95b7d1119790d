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
	"fmt"
	"image"
	"image/color"
	"math"
	"strings"

	"github.com/tobilg/raster-tileserver/internal/legend"
	"github.com/tobilg/raster-tileserver/internal/raster"
)

// NoLegend selects how tiles of layers without a legend are drawn
type NoLegend int

const (
	NoLegendTransparent NoLegend = iota
	NoLegendGreyscale
)

// ParseNoLegend parses "transparent" (the default) or "greyscale"
func ParseNoLegend(name string) (NoLegend, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "transparent":
		return NoLegendTransparent, nil
	case "greyscale", "grayscale":
		return NoLegendGreyscale, nil
	}
	return NoLegendTransparent, fmt.Errorf("unknown no-legend mode %q", name)
}

// Ramp maps values linearly from black at Min to white at Max
type Ramp struct {
	Min float64
	Max float64
}

// Grey returns the opaque grey for v
func (r Ramp) Grey(v float64) color.NRGBA {
	t := 0.0
	if r.Max > r.Min {
		t = (v - r.Min) / (r.Max - r.Min)
	}
	t = math.Max(0, math.Min(1, t))
	g := uint8(math.Round(t * 255))
	return color.NRGBA{R: g, G: g, B: g, A: 255}
}

// Colorize paints the sampled grid. With a legend the first matching
// rule gives the color and unmatched pixels stay transparent. Without
// one, ramp paints greys, or nothing when ramp is nil. NaN pixels are
// always transparent. The result reports whether any pixel was painted.
func Colorize(g *raster.Grid, res *legend.Resolved, ramp *Ramp) (*image.NRGBA, bool) {
	img := image.NewNRGBA(image.Rect(0, 0, g.Width, g.Height))
	withLegend := res.HasLegend()
	if !withLegend && ramp == nil {
		return img, false
	}

	painted := false
	for py := 0; py < g.Height; py++ {
		for px := 0; px < g.Width; px++ {
			v := g.Values[py*g.Width+px]
			if math.IsNaN(v) {
				continue
			}
			var c color.NRGBA
			if withLegend {
				var ok bool
				if c, ok = res.Color(v); !ok {
					continue
				}
			} else {
				c = ramp.Grey(v)
			}
			if c.A == 0 {
				continue
			}
			img.SetNRGBA(px, py, c)
			painted = true
		}
	}
	return img, painted
}
