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
	"testing"
)

// catalogs returns every catalog implementation, freshly created
func catalogs(t *testing.T) map[string]Catalog {
	t.Helper()
	db, err := NewCatalogDB("")
	if err != nil {
		t.Fatalf("Expected in-memory DuckDB catalog, got error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return map[string]Catalog{
		"memory": NewCatalogMemory(),
		"duckdb": db,
	}
}

func earthLegend(title string) *Legend {
	return &Legend{
		Title: title,
		Entries: []*LegendEntry{
			{Expression: "4", Color: "#123456", Semantics: &LegendSemantics{Name: "Earth"}},
			{Expression: "5", Color: "#654321", Semantics: &LegendSemantics{Name: "Water"}},
		},
	}
}

func TestLegendRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, cat := range catalogs(t) {
		t.Run(name, func(t *testing.T) {
			lgd := earthLegend("Landcover")
			if err := cat.PutLegend(ctx, lgd); err != nil {
				t.Fatalf("Expected legend to be stored, got error: %v", err)
			}
			if lgd.ID == 0 {
				t.Fatal("Expected legend ID to be assigned")
			}

			got, err := cat.LegendByID(ctx, lgd.ID)
			if err != nil {
				t.Fatalf("Expected legend by id, got error: %v", err)
			}
			if got.Title != "Landcover" {
				t.Errorf("Expected title Landcover, got %s", got.Title)
			}
			if len(got.Entries) != 2 {
				t.Fatalf("Expected 2 entries, got %d", len(got.Entries))
			}
			// insertion order
			if got.Entries[0].Expression != "4" || got.Entries[1].Expression != "5" {
				t.Errorf("Expected entries in insertion order, got %s, %s",
					got.Entries[0].Expression, got.Entries[1].Expression)
			}
			if got.Entries[0].SemanticsName() != "Earth" {
				t.Errorf("Expected semantics Earth, got %s", got.Entries[0].SemanticsName())
			}
			if got.Entries[1].Color != "#654321" {
				t.Errorf("Expected color #654321, got %s", got.Entries[1].Color)
			}
		})
	}
}

func TestLegendByTitleCaseInsensitive(t *testing.T) {
	ctx := context.Background()
	for name, cat := range catalogs(t) {
		t.Run(name, func(t *testing.T) {
			if err := cat.PutLegend(ctx, earthLegend("Landcover")); err != nil {
				t.Fatal(err)
			}
			for _, title := range []string{"Landcover", "landcover", "LANDCOVER", " landCover "} {
				lgd, err := cat.LegendByTitle(ctx, title)
				if err != nil {
					t.Errorf("Expected legend for title %q, got error: %v", title, err)
					continue
				}
				if lgd.Title != "Landcover" {
					t.Errorf("Expected Landcover, got %s", lgd.Title)
				}
			}

			_, err := cat.LegendByTitle(ctx, "unknown")
			if !errors.Is(err, ErrNotFound) {
				t.Errorf("Expected ErrNotFound, got %v", err)
			}
			_, err = cat.LegendByID(ctx, 9999)
			if !errors.Is(err, ErrNotFound) {
				t.Errorf("Expected ErrNotFound, got %v", err)
			}
		})
	}
}

func TestLegendTitleUnique(t *testing.T) {
	ctx := context.Background()
	for name, cat := range catalogs(t) {
		t.Run(name, func(t *testing.T) {
			if err := cat.PutLegend(ctx, earthLegend("Landcover")); err != nil {
				t.Fatal(err)
			}
			if err := cat.PutLegend(ctx, earthLegend("LANDCOVER")); err == nil {
				t.Error("Expected error for duplicate legend title")
			}
		})
	}
}

func TestLegendReplaceEntries(t *testing.T) {
	ctx := context.Background()
	for name, cat := range catalogs(t) {
		t.Run(name, func(t *testing.T) {
			lgd := earthLegend("Landcover")
			if err := cat.PutLegend(ctx, lgd); err != nil {
				t.Fatal(err)
			}
			update := &Legend{
				ID:    lgd.ID,
				Title: "Landcover",
				Entries: []*LegendEntry{
					{Expression: "7", Color: "#ffffff", Semantics: &LegendSemantics{Name: "Earth"}},
				},
			}
			if err := cat.PutLegend(ctx, update); err != nil {
				t.Fatalf("Expected legend update, got error: %v", err)
			}
			got, err := cat.LegendByID(ctx, lgd.ID)
			if err != nil {
				t.Fatal(err)
			}
			if len(got.Entries) != 1 || got.Entries[0].Expression != "7" {
				t.Errorf("Expected single entry 7, got %+v", got.Entries)
			}
			// semantics reused by name
			if got.Entries[0].Semantics.ID != lgd.Entries[0].Semantics.ID {
				t.Errorf("Expected semantics id %d to be reused, got %d",
					lgd.Entries[0].Semantics.ID, got.Entries[0].Semantics.ID)
			}
		})
	}
}

func TestReturnedLegendIsCopy(t *testing.T) {
	ctx := context.Background()
	for name, cat := range catalogs(t) {
		t.Run(name, func(t *testing.T) {
			lgd := earthLegend("Landcover")
			if err := cat.PutLegend(ctx, lgd); err != nil {
				t.Fatal(err)
			}
			got, _ := cat.LegendByID(ctx, lgd.ID)
			got.Entries = got.Entries[:1]
			got.Title = "changed"

			again, _ := cat.LegendByID(ctx, lgd.ID)
			if again.Title != "Landcover" || len(again.Entries) != 2 {
				t.Errorf("Expected stored legend unchanged, got %s with %d entries", again.Title, len(again.Entries))
			}
		})
	}
}

func TestLayerByName(t *testing.T) {
	ctx := context.Background()
	for name, cat := range catalogs(t) {
		t.Run(name, func(t *testing.T) {
			lgd := earthLegend("Landcover")
			if err := cat.PutLegend(ctx, lgd); err != nil {
				t.Fatal(err)
			}
			lyr := &RasterLayer{
				Name:       "landcover",
				Datatype:   DatatypeCategorical,
				Srid:       3857,
				Nodata:     "0",
				RasterFile: "florida/raster.tif",
				LegendID:   &lgd.ID,
			}
			if err := cat.PutLayer(ctx, lyr); err != nil {
				t.Fatalf("Expected layer to be stored, got error: %v", err)
			}
			if err := cat.PutLayer(ctx, &RasterLayer{Name: "other", RasterFile: "other.tif"}); err != nil {
				t.Fatal(err)
			}

			tests := []struct {
				lookup   string
				expected string
			}{
				{"landcover", "landcover"},
				{"raster.tif", "landcover"},
				{"other", "other"},
				{"other.tif", "other"},
			}
			for _, tt := range tests {
				got, err := cat.LayerByName(ctx, tt.lookup)
				if err != nil {
					t.Errorf("Expected layer for %s, got error: %v", tt.lookup, err)
					continue
				}
				if got.Name != tt.expected {
					t.Errorf("Expected %s for %s, got %s", tt.expected, tt.lookup, got.Name)
				}
			}

			got, _ := cat.LayerByName(ctx, "landcover")
			if got.LegendID == nil || *got.LegendID != lgd.ID {
				t.Errorf("Expected legend id %d, got %v", lgd.ID, got.LegendID)
			}
			if v, ok := got.NodataValue(); !ok || v != 0 {
				t.Errorf("Expected nodata 0, got %v (%v)", v, ok)
			}
			if got.Srid != 3857 {
				t.Errorf("Expected srid 3857, got %d", got.Srid)
			}

			other, _ := cat.LayerByName(ctx, "other")
			if other.LegendID != nil {
				t.Errorf("Expected no legend, got %v", *other.LegendID)
			}
			if other.Datatype != DefaultLayerDatatype {
				t.Errorf("Expected default datatype %s, got %s", DefaultLayerDatatype, other.Datatype)
			}
			if _, ok := other.NodataValue(); ok {
				t.Error("Expected no nodata value")
			}

			_, err := cat.LayerByName(ctx, "missing")
			if !errors.Is(err, ErrNotFound) {
				t.Errorf("Expected ErrNotFound, got %v", err)
			}

			layers, err := cat.Layers(ctx)
			if err != nil {
				t.Fatal(err)
			}
			if len(layers) != 2 || layers[0].Name != "landcover" || layers[1].Name != "other" {
				t.Errorf("Expected layers [landcover other], got %d layers", len(layers))
			}
		})
	}
}

func TestLayerByFileNameLowestID(t *testing.T) {
	ctx := context.Background()
	for name, cat := range catalogs(t) {
		t.Run(name, func(t *testing.T) {
			// names sort against ID order
			for _, lyr := range []*RasterLayer{
				{Name: "zeta", RasterFile: "2020/raster.tif"},
				{Name: "alpha", RasterFile: "2021/raster.tif"},
				{Name: "mid", RasterFile: "raster.tif"},
			} {
				if err := cat.PutLayer(ctx, lyr); err != nil {
					t.Fatal(err)
				}
			}
			for i := 0; i < 20; i++ {
				got, err := cat.LayerByName(ctx, "raster.tif")
				if err != nil {
					t.Fatal(err)
				}
				if got.Name != "zeta" {
					t.Fatalf("Expected the first stored layer zeta, got %s", got.Name)
				}
			}
		})
	}
}

func TestLayerUpdate(t *testing.T) {
	ctx := context.Background()
	for name, cat := range catalogs(t) {
		t.Run(name, func(t *testing.T) {
			lyr := &RasterLayer{Name: "landcover", RasterFile: "raster.tif"}
			if err := cat.PutLayer(ctx, lyr); err != nil {
				t.Fatal(err)
			}
			lyr.Description = "updated"
			if err := cat.PutLayer(ctx, lyr); err != nil {
				t.Fatalf("Expected layer update, got error: %v", err)
			}
			got, _ := cat.LayerByName(ctx, "landcover")
			if got.Description != "updated" {
				t.Errorf("Expected description updated, got %s", got.Description)
			}
			if err := cat.PutLayer(ctx, &RasterLayer{Name: "landcover", RasterFile: "x.tif"}); err == nil {
				t.Error("Expected error for duplicate layer name")
			}
			if err := cat.Ping(ctx); err != nil {
				t.Errorf("Expected ping to succeed, got %v", err)
			}
		})
	}
}

func TestNodataValue(t *testing.T) {
	tests := []struct {
		nodata   string
		expected float64
		ok       bool
	}{
		{"", 0, false},
		{"0", 0, true},
		{" -9999 ", -9999, true},
		{"1.5", 1.5, true},
		{"none", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.nodata, func(t *testing.T) {
			lyr := &RasterLayer{Nodata: tt.nodata}
			v, ok := lyr.NodataValue()
			if ok != tt.ok || v != tt.expected {
				t.Errorf("Expected %v (%v), got %v (%v)", tt.expected, tt.ok, v, ok)
			}
		})
	}
}
