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
	"testing"

	"github.com/paulmach/orb"
)

func near(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

var world = Extent{
	Min: orb.Point{-OriginShift, -OriginShift},
	Max: orb.Point{OriginShift, OriginShift},
}

func TestMercatorBound(t *testing.T) {
	b := MercatorBound(0, 0, 0)
	if b != world {
		t.Errorf("Expected world bound, got %v", b)
	}

	// XYZ: y grows southwards, so 1/0/0 is the north-west quarter
	b = MercatorBound(1, 0, 0)
	if b.Min.X() != -OriginShift || b.Max.X() != 0 || b.Min.Y() != 0 || b.Max.Y() != OriginShift {
		t.Errorf("Expected north-west quarter, got %v", b)
	}
	b = MercatorBound(1, 1, 1)
	if b.Min.X() != 0 || b.Max.X() != OriginShift || b.Min.Y() != -OriginShift || b.Max.Y() != 0 {
		t.Errorf("Expected south-east quarter, got %v", b)
	}
}

func TestMercatorBoundMatchesMaptile(t *testing.T) {
	tests := []struct{ z, x, y int }{
		{0, 0, 0},
		{3, 2, 5},
		{11, 552, 858},
		{16, 34000, 20000},
	}
	for _, tt := range tests {
		got := MercatorBound(tt.z, tt.x, tt.y)
		exp := ToMercator(LonLatBound(tt.z, tt.x, tt.y))
		if !near(got.Min.X(), exp.Min.X(), 0.01) || !near(got.Max.Y(), exp.Max.Y(), 0.01) ||
			!near(got.Max.X(), exp.Max.X(), 0.01) || !near(got.Min.Y(), exp.Min.Y(), 0.01) {
			t.Errorf("Expected %v for %d/%d/%d, got %v", exp, tt.z, tt.x, tt.y, got)
		}
	}
}

func TestLonLatBoundFlorida(t *testing.T) {
	b := LonLatBound(11, 552, 858)
	c := b.Center()
	if !near(c.X(), -82.9, 0.2) || !near(c.Y(), 27.95, 0.2) {
		t.Errorf("Expected tile 11/552/858 over Florida, got center %v", c)
	}
}

func TestResolve(t *testing.T) {
	florida := MercatorBound(11, 552, 858)

	tests := []struct {
		name     string
		z, x, y  int
		maxZoom  int
		inExtent bool
	}{
		{"Tile over raster", 11, 552, 858, -1, true},
		{"Parent tile", 10, 276, 429, -1, true},
		{"World tile", 0, 0, 0, -1, true},
		{"Neighbour tile", 11, 554, 858, -1, false},
		{"Far away tile", 11, 0, 0, -1, false},
		{"Negative zoom", -1, 0, 0, -1, false},
		{"Zoom beyond pyramid", MaxZoom + 1, 0, 0, -1, false},
		{"x out of range", 1, 2, 0, -1, false},
		{"y out of range", 1, 0, 2, -1, false},
		{"Negative x", 1, -1, 0, -1, false},
		{"Zoom beyond raster", 11, 552, 858, 10, false},
		{"Zoom at raster limit", 11, 552, 858, 11, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := Resolve(tt.z, tt.x, tt.y, florida, tt.maxZoom)
			if w.InExtent != tt.inExtent {
				t.Errorf("Expected InExtent %v, got %v", tt.inExtent, w.InExtent)
			}
			if w.Z != tt.z || w.X != tt.x || w.Y != tt.y {
				t.Errorf("Expected address %d/%d/%d, got %d/%d/%d", tt.z, tt.x, tt.y, w.Z, w.X, w.Y)
			}
		})
	}
}

func TestPixelCenter(t *testing.T) {
	w := Resolve(0, 0, 0, world, -1)
	res := w.PixelSize()
	if !near(res, Resolution(0), 1e-9) {
		t.Errorf("Expected pixel size %v, got %v", Resolution(0), res)
	}

	p := PixelCenter(w, 0, 0)
	if !near(p.X(), -OriginShift+res/2, 1e-6) || !near(p.Y(), OriginShift-res/2, 1e-6) {
		t.Errorf("Expected top-left pixel center, got %v", p)
	}
	p = PixelCenter(w, Size-1, Size-1)
	if !near(p.X(), OriginShift-res/2, 1e-6) || !near(p.Y(), -OriginShift+res/2, 1e-6) {
		t.Errorf("Expected bottom-right pixel center, got %v", p)
	}
}

func TestNativeZoom(t *testing.T) {
	tests := []struct {
		res      float64
		expected int
	}{
		{Resolution(0), 0},
		{Resolution(11), 11},
		{Resolution(11) * 1.2, 11},
		{Resolution(11) * 0.6, 12},
		{1e9, 0},
		{1e-9, MaxZoom},
		{0, MaxZoom},
	}
	for _, tt := range tests {
		if got := NativeZoom(tt.res); got != tt.expected {
			t.Errorf("Expected zoom %d for resolution %v, got %d", tt.expected, tt.res, got)
		}
	}
}

func TestToLonLatRoundTrip(t *testing.T) {
	b := ToLonLat(MercatorBound(11, 552, 858))
	exp := LonLatBound(11, 552, 858)
	if !near(b.Min.X(), exp.Min.X(), 1e-6) || !near(b.Max.Y(), exp.Max.Y(), 1e-6) {
		t.Errorf("Expected %v, got %v", exp, b)
	}

	clamped := ToMercator(orb.Bound{Min: orb.Point{-180, -90}, Max: orb.Point{180, 90}})
	if !near(clamped.Max.Y(), OriginShift, 1) || !near(clamped.Min.Y(), -OriginShift, 1) {
		t.Errorf("Expected latitude clamped to the square world, got %v", clamped)
	}
}
