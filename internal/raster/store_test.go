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
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tobilg/raster-tileserver/internal/raster/rastertest"
)

func testOptions(value uint16) rastertest.Options {
	return rastertest.Options{
		Width: 8, Height: 8, OriginX: 0, OriginY: 80, PixelSize: 10,
		Srid: 3857, Values: rastertest.Fill(64, value),
	}
}

func TestStoreOpen(t *testing.T) {
	dir := t.TempDir()
	rastertest.WriteFile(t, dir, "sub/raster.tif", testOptions(4))

	store, err := NewStore(dir, 4)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	r, err := store.Open(ctx, "sub/raster.tif")
	if err != nil {
		t.Fatalf("Expected raster to open, got error: %v", err)
	}
	if r.Values[0] != 4 {
		t.Errorf("Expected value 4, got %v", r.Values[0])
	}

	again, err := store.Open(ctx, "sub/raster.tif")
	if err != nil {
		t.Fatal(err)
	}
	if again != r {
		t.Error("Expected the cached raster on second open")
	}
	if store.Len() != 1 {
		t.Errorf("Expected 1 cached raster, got %d", store.Len())
	}
}

func TestStoreReloadsChangedFile(t *testing.T) {
	dir := t.TempDir()
	path := rastertest.WriteFile(t, dir, "raster.tif", testOptions(4))

	store, _ := NewStore(dir, 4)
	ctx := context.Background()
	if _, err := store.Open(ctx, "raster.tif"); err != nil {
		t.Fatal(err)
	}

	rastertest.WriteFile(t, dir, "raster.tif", testOptions(5))
	later := time.Now().Add(time.Hour)
	if err := os.Chtimes(path, later, later); err != nil {
		t.Fatal(err)
	}

	r, err := store.Open(ctx, "raster.tif")
	if err != nil {
		t.Fatal(err)
	}
	if r.Values[0] != 5 {
		t.Errorf("Expected the rewritten value 5, got %v", r.Values[0])
	}
}

func TestStoreMissing(t *testing.T) {
	store, _ := NewStore(t.TempDir(), 4)
	_, err := store.Open(context.Background(), "nothing.tif")
	if !errors.Is(err, ErrMissing) {
		t.Errorf("Expected ErrMissing, got %v", err)
	}
}

func TestStoreCorruptFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "bad.tif"), []byte("not a tiff at all"), 0644); err != nil {
		t.Fatal(err)
	}
	store, _ := NewStore(dir, 4)
	_, err := store.Open(context.Background(), "bad.tif")
	if err == nil || errors.Is(err, ErrMissing) {
		t.Errorf("Expected a decode error, got %v", err)
	}
}

func TestStorePathStaysBelowRoot(t *testing.T) {
	store, _ := NewStore("/srv/rasters", 1)
	for _, name := range []string{"../../etc/passwd", "/etc/passwd", "a/../../b.tif"} {
		if p := store.Path(name); !strings.HasPrefix(p, "/srv/rasters/") {
			t.Errorf("Expected %s to resolve below the root, got %s", name, p)
		}
	}
}

func TestStoreConcurrentOpen(t *testing.T) {
	dir := t.TempDir()
	rastertest.WriteFile(t, dir, "raster.tif", testOptions(4))
	store, _ := NewStore(dir, 4)

	var wg sync.WaitGroup
	results := make([]*Raster, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r, err := store.Open(context.Background(), "raster.tif")
			if err != nil {
				t.Errorf("Expected raster to open, got error: %v", err)
				return
			}
			results[i] = r
		}(i)
	}
	wg.Wait()
	for _, r := range results {
		if r == nil || r.Values[0] != 4 {
			t.Fatal("Expected every goroutine to get the raster")
		}
	}
}
