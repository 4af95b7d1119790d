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
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const testSeed = `
legends:
  - title: Landcover
    entries:
      - expression: "4"
        color: "#123456"
        name: Earth
  - title: Other
    entries:
      - expression: "4"
        color: "#654321"
        name: Water
layers:
  - name: landcover
    rasterfile: raster.tif
    datatype: ca
    nodata: "0"
    legend: landcover
  - name: plain
    rasterfile: plain.tif
`

func TestImportSeed(t *testing.T) {
	ctx := context.Background()
	for name, cat := range catalogs(t) {
		t.Run(name, func(t *testing.T) {
			seed, err := ReadSeed(strings.NewReader(testSeed))
			if err != nil {
				t.Fatalf("Expected seed to decode, got error: %v", err)
			}
			if err := ImportSeed(ctx, cat, seed); err != nil {
				t.Fatalf("Expected seed import, got error: %v", err)
			}

			lyr, err := cat.LayerByName(ctx, "landcover")
			if err != nil {
				t.Fatal(err)
			}
			if lyr.LegendID == nil {
				t.Fatal("Expected landcover to reference a legend")
			}
			lgd, err := cat.LegendByID(ctx, *lyr.LegendID)
			if err != nil {
				t.Fatal(err)
			}
			if lgd.Title != "Landcover" {
				t.Errorf("Expected legend Landcover, got %s", lgd.Title)
			}
			if lyr.Datatype != DatatypeCategorical {
				t.Errorf("Expected datatype ca, got %s", lyr.Datatype)
			}

			// importing again replaces instead of duplicating
			if err := ImportSeed(ctx, cat, seed); err != nil {
				t.Fatalf("Expected repeated seed import, got error: %v", err)
			}
			layers, _ := cat.Layers(ctx)
			if len(layers) != 2 {
				t.Errorf("Expected 2 layers, got %d", len(layers))
			}
			lgd, _ = cat.LegendByTitle(ctx, "Landcover")
			if len(lgd.Entries) != 1 {
				t.Errorf("Expected 1 entry, got %d", len(lgd.Entries))
			}
		})
	}
}

func TestImportSeedUnknownLegend(t *testing.T) {
	seed := &Seed{Layers: []SeedLayer{{Name: "a", RasterFile: "a.tif", Legend: "missing"}}}
	err := ImportSeed(context.Background(), NewCatalogMemory(), seed)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestReadSeedRejectsUnknownFields(t *testing.T) {
	_, err := ReadSeed(strings.NewReader("layers:\n  - name: a\n    colour: red\n"))
	if err == nil {
		t.Error("Expected error for unknown field")
	}
}

func TestLoadSeed(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "seed.yml")
	if err := os.WriteFile(file, []byte(testSeed), 0644); err != nil {
		t.Fatal(err)
	}
	seed, err := LoadSeed(file)
	if err != nil {
		t.Fatalf("Expected seed file to load, got error: %v", err)
	}
	if len(seed.Legends) != 2 || len(seed.Layers) != 2 {
		t.Errorf("Expected 2 legends and 2 layers, got %d and %d", len(seed.Legends), len(seed.Layers))
	}
	if _, err := LoadSeed(filepath.Join(dir, "missing.yml")); err == nil {
		t.Error("Expected error for missing seed file")
	}
}
