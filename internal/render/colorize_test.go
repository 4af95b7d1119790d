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
	"bytes"
	"image"
	"image/color"
	"image/png"
	"math"
	"testing"

	"github.com/tobilg/raster-tileserver/internal/data"
	"github.com/tobilg/raster-tileserver/internal/legend"
	"github.com/tobilg/raster-tileserver/internal/raster"
)

func rule(t *testing.T, expr string, c color.NRGBA) legend.Rule {
	m, err := legend.Compile(expr)
	if err != nil {
		t.Fatal(err)
	}
	return legend.Rule{Expression: expr, Color: c, Match: m}
}

func TestColorizeFirstMatchWins(t *testing.T) {
	g := raster.NewGrid()
	g.Values[0] = 4
	g.Values[1] = 7
	g.Values[2] = 1

	red := color.NRGBA{0xff, 0, 0, 0xff}
	green := color.NRGBA{0, 0xff, 0, 0xff}
	res := &legend.Resolved{
		Legend: &data.Legend{Title: "Test"},
		Rules:  []legend.Rule{rule(t, ">=4", red), rule(t, "4", green)},
	}

	img, painted := Colorize(g, res, &Ramp{Min: 0, Max: 10})
	if !painted {
		t.Fatal("Expected painted pixels")
	}
	if c := img.NRGBAAt(0, 0); c != red {
		t.Errorf("Expected the first rule to win, got %v", c)
	}
	if c := img.NRGBAAt(1, 0); c != red {
		t.Errorf("Expected red for 7, got %v", c)
	}
	// the ramp is unused while a legend applies
	if c := img.NRGBAAt(2, 0); c != (color.NRGBA{}) {
		t.Errorf("Expected unmatched pixel to be transparent, got %v", c)
	}
	if c := img.NRGBAAt(3, 0); c != (color.NRGBA{}) {
		t.Errorf("Expected NaN pixel to be transparent, got %v", c)
	}
}

func TestColorizeWithoutLegend(t *testing.T) {
	g := raster.NewGrid()
	g.Values[0] = 2

	if _, painted := Colorize(g, &legend.Resolved{}, nil); painted {
		t.Error("Expected nothing painted without legend or ramp")
	}

	img, painted := Colorize(g, &legend.Resolved{}, &Ramp{Min: 0, Max: 4})
	if !painted {
		t.Fatal("Expected the ramp to paint")
	}
	if c := img.NRGBAAt(0, 0); c != (color.NRGBA{128, 128, 128, 255}) {
		t.Errorf("Expected mid grey, got %v", c)
	}
}

func TestRampGrey(t *testing.T) {
	r := Ramp{Min: 10, Max: 20}
	tests := []struct {
		v        float64
		expected uint8
	}{
		{10, 0}, {20, 255}, {15, 128}, {0, 0}, {99, 255},
	}
	for _, tt := range tests {
		if g := r.Grey(tt.v); g.R != tt.expected || g.A != 255 {
			t.Errorf("Expected grey %d for %v, got %v", tt.expected, tt.v, g)
		}
	}
	if g := (Ramp{Min: 3, Max: 3}).Grey(3); g.R != 0 {
		t.Errorf("Expected black for a flat ramp, got %v", g)
	}
	if g := r.Grey(math.Inf(1)); g.R != 255 {
		t.Errorf("Expected white for +Inf, got %v", g)
	}
}

func TestEncoderDeterministic(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 256, 256))
	for i := 0; i < 256; i++ {
		img.SetNRGBA(i, i, color.NRGBA{uint8(i), 0x34, 0x56, 0xff})
	}
	enc := NewEncoder(png.DefaultCompression)
	a, err := enc.Encode(img)
	if err != nil {
		t.Fatal(err)
	}
	b, err := NewEncoder(png.DefaultCompression).Encode(img)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a, b) {
		t.Error("Expected identical bytes for identical images")
	}
	if !bytes.Equal(BlankTile(), BlankTile()) {
		t.Error("Expected a stable blank tile")
	}
	if len(BlankTile()) > 1024 {
		t.Errorf("Expected a small blank tile, got %d bytes", len(BlankTile()))
	}
}

func TestParseCompression(t *testing.T) {
	tests := []struct {
		name     string
		expected png.CompressionLevel
	}{
		{"", png.DefaultCompression},
		{"speed", png.BestSpeed},
		{"Best", png.BestCompression},
		{"none", png.NoCompression},
	}
	for _, tt := range tests {
		level, err := ParseCompression(tt.name)
		if err != nil || level != tt.expected {
			t.Errorf("Expected %v for %q, got %v (%v)", tt.expected, tt.name, level, err)
		}
	}
	if _, err := ParseCompression("max"); err == nil {
		t.Error("Expected error for an unknown compression")
	}
}
