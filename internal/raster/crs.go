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
	"fmt"
	"math"
	"sync"

	"github.com/go-spatial/proj/core"
	_ "github.com/go-spatial/proj/operations"
	"github.com/go-spatial/proj/support"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
	"github.com/tobilg/raster-tileserver/internal/tile"
)

// Projected systems known by their proj definition
var projDefs = map[int]string{
	// NAD83(HARN) and NAD83 / Florida GDL Albers
	3086: "+proj=aea +lat_1=24 +lat_2=31.5 +lat_0=24 +lon_0=-84 +x_0=400000 +y_0=0 +ellps=GRS80",
	3087: "+proj=aea +lat_1=24 +lat_2=31.5 +lat_0=24 +lon_0=-84 +x_0=400000 +y_0=0 +ellps=GRS80",
	// NAD83 / California Albers
	3310: "+proj=aea +lat_1=34 +lat_2=40.5 +lat_0=0 +lon_0=-120 +x_0=0 +y_0=-4000000 +ellps=GRS80",
	// NAD83 / Conus Albers
	5070: "+proj=aea +lat_1=29.5 +lat_2=45.5 +lat_0=23 +lon_0=-96 +x_0=0 +y_0=0 +ellps=GRS80",
}

// projDef returns the proj definition of a projected SRID, including the UTM zone families
func projDef(srid int) (string, bool) {
	if def, ok := projDefs[srid]; ok {
		return def, true
	}
	switch {
	case srid >= 32601 && srid <= 32660:
		return fmt.Sprintf("+proj=utm +zone=%d +ellps=WGS84", srid-32600), true
	case srid >= 32701 && srid <= 32760:
		return fmt.Sprintf("+proj=utm +zone=%d +south +ellps=WGS84", srid-32700), true
	case srid >= 26901 && srid <= 26923:
		return fmt.Sprintf("+proj=utm +zone=%d +ellps=GRS80", srid-26900), true
	case srid >= 25828 && srid <= 25838:
		return fmt.Sprintf("+proj=utm +zone=%d +ellps=GRS80", srid-25800), true
	}
	return "", false
}

// CRS converts points between Web Mercator and the CRS of a raster
type CRS struct {
	Srid int
	// op is nil for Web Mercator and WGS84
	op core.IConvertLPToXY
}

var (
	crsMu    sync.Mutex
	crsCache = map[int]*CRS{}
)

// LookupCRS returns the CRS of a normalized SRID; 0 is Web Mercator
func LookupCRS(srid int) (*CRS, error) {
	if srid == 0 {
		srid = SridWebMercator
	}
	crsMu.Lock()
	defer crsMu.Unlock()
	if c, ok := crsCache[srid]; ok {
		return c, nil
	}
	c := &CRS{Srid: srid}
	if srid != SridWebMercator && srid != SridWGS84 {
		def, ok := projDef(srid)
		if !ok {
			return nil, fmt.Errorf("EPSG:%d: %w", srid, ErrUnsupportedSrid)
		}
		ps, err := support.NewProjString(def)
		if err != nil {
			return nil, fmt.Errorf("EPSG:%d: %v: %w", srid, err, ErrUnsupportedSrid)
		}
		_, opx, err := core.NewSystem(ps)
		if err != nil {
			return nil, fmt.Errorf("EPSG:%d: %v: %w", srid, err, ErrUnsupportedSrid)
		}
		op, ok := opx.(core.IConvertLPToXY)
		if !ok {
			return nil, fmt.Errorf("EPSG:%d: not a projection: %w", srid, ErrUnsupportedSrid)
		}
		c.op = op
	}
	crsCache[srid] = c
	return c, nil
}

// FromMercator converts an EPSG:3857 point into the CRS
func (c *CRS) FromMercator(p orb.Point) (orb.Point, bool) {
	if c.Srid == SridWebMercator {
		return p, true
	}
	ll := project.Mercator.ToWGS84(p)
	if c.op == nil {
		return ll, true
	}
	xy, err := c.op.Forward(&core.CoordLP{Lam: support.DDToR(ll.Lon()), Phi: support.DDToR(ll.Lat())})
	if err != nil || math.IsNaN(xy.X) || math.IsNaN(xy.Y) {
		return orb.Point{}, false
	}
	return orb.Point{xy.X, xy.Y}, true
}

// ToMercator converts a point of the CRS into EPSG:3857
func (c *CRS) ToMercator(p orb.Point) (orb.Point, bool) {
	if c.Srid == SridWebMercator {
		return p, true
	}
	ll := p
	if c.op != nil {
		lp, err := c.op.Inverse(&core.CoordXY{X: p.X(), Y: p.Y()})
		if err != nil || math.IsNaN(lp.Lam) || math.IsNaN(lp.Phi) {
			return orb.Point{}, false
		}
		ll = orb.Point{support.RToDD(lp.Lam), support.RToDD(lp.Phi)}
	}
	ll[1] = math.Max(-tile.MaxLatitude, math.Min(tile.MaxLatitude, ll[1]))
	return project.WGS84.ToMercator(ll), true
}

// edgeSteps is the number of segments each bound edge is split into when reprojected
const edgeSteps = 16

// ProjectBound returns the EPSG:3857 bound of a native bound.
// The edges are densified since straight lines of a projected CRS
// bend in Web Mercator.
func (c *CRS) ProjectBound(b orb.Bound) orb.Bound {
	if c.Srid == SridWebMercator {
		return b
	}
	if c.op == nil {
		return tile.ToMercator(b)
	}
	var out orb.Bound
	seen := false
	add := func(x, y float64) {
		m, ok := c.ToMercator(orb.Point{x, y})
		if !ok {
			return
		}
		if !seen {
			out = m.Bound()
			seen = true
			return
		}
		out = out.Extend(m)
	}
	dx := (b.Max.X() - b.Min.X()) / edgeSteps
	dy := (b.Max.Y() - b.Min.Y()) / edgeSteps
	for i := 0; i <= edgeSteps; i++ {
		x := b.Min.X() + float64(i)*dx
		y := b.Min.Y() + float64(i)*dy
		add(x, b.Min.Y())
		add(x, b.Max.Y())
		add(b.Min.X(), y)
		add(b.Max.X(), y)
	}
	return out
}
