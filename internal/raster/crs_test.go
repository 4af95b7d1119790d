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
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
)

func TestLookupCRS(t *testing.T) {
	tests := []struct {
		name     string
		srid     int
		lonLat   orb.Point
		expected orb.Point
	}{
		{"Florida Albers origin", 3086, orb.Point{-84, 24}, orb.Point{400000, 0}},
		{"UTM 17N central meridian", 32617, orb.Point{-81, 0}, orb.Point{500000, 0}},
		{"WGS84", 4326, orb.Point{-81.5, 28.25}, orb.Point{-81.5, 28.25}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			crs, err := LookupCRS(tt.srid)
			if err != nil {
				t.Fatalf("Expected EPSG:%d to be known, got %v", tt.srid, err)
			}
			merc := project.WGS84.ToMercator(tt.lonLat)
			p, ok := crs.FromMercator(merc)
			if !ok {
				t.Fatal("Expected the point to project")
			}
			if math.Abs(p.X()-tt.expected.X()) > 0.01 || math.Abs(p.Y()-tt.expected.Y()) > 0.01 {
				t.Errorf("Expected %v, got %v", tt.expected, p)
			}
			back, ok := crs.ToMercator(p)
			if !ok {
				t.Fatal("Expected the point to project back")
			}
			if math.Abs(back.X()-merc.X()) > 0.01 || math.Abs(back.Y()-merc.Y()) > 0.01 {
				t.Errorf("Expected round trip to %v, got %v", merc, back)
			}
		})
	}
}

func TestLookupCRSUnknown(t *testing.T) {
	for _, srid := range []int{2000, 27700, 32661} {
		if _, err := LookupCRS(srid); !errors.Is(err, ErrUnsupportedSrid) {
			t.Errorf("Expected ErrUnsupportedSrid for EPSG:%d, got %v", srid, err)
		}
		if _, err := NormalizeSrid(srid); !errors.Is(err, ErrUnsupportedSrid) {
			t.Errorf("Expected NormalizeSrid to reject EPSG:%d, got %v", srid, err)
		}
	}
	c, err := LookupCRS(0)
	if err != nil {
		t.Fatal(err)
	}
	if c.Srid != SridWebMercator {
		t.Errorf("Expected SRID 0 to mean Web Mercator, got %d", c.Srid)
	}
}
