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
	"fmt"
	"io"
	"os"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Seed is a catalog fixture document
type Seed struct {
	Legends []SeedLegend `yaml:"legends"`
	Layers  []SeedLayer  `yaml:"layers"`
}

// SeedLegend describes a legend in a seed document
type SeedLegend struct {
	Title       string      `yaml:"title"`
	Description string      `yaml:"description"`
	Entries     []SeedEntry `yaml:"entries"`
}

// SeedEntry describes a legend entry; Name is the semantics label
type SeedEntry struct {
	Expression  string `yaml:"expression"`
	Color       string `yaml:"color"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Keyword     string `yaml:"keyword"`
}

// SeedLayer describes a raster layer; Legend refers to a legend title
type SeedLayer struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Datatype    string `yaml:"datatype"`
	Srid        int    `yaml:"srid"`
	Nodata      string `yaml:"nodata"`
	RasterFile  string `yaml:"rasterfile"`
	Legend      string `yaml:"legend"`
}

// LoadSeed reads a seed document from a YAML file
func LoadSeed(filename string) (*Seed, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("opening seed file: %w", err)
	}
	defer f.Close()
	return ReadSeed(f)
}

// ReadSeed decodes a seed document
func ReadSeed(r io.Reader) (*Seed, error) {
	var seed Seed
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&seed); err != nil {
		if errors.Is(err, io.EOF) {
			return &seed, nil
		}
		return nil, fmt.Errorf("decoding seed: %w", err)
	}
	return &seed, nil
}

// ImportSeed stores the seeded legends and layers in the catalog.
// Legends and layers that already exist under the same title or name are replaced.
func ImportSeed(ctx context.Context, cat Catalog, seed *Seed) error {
	for _, sl := range seed.Legends {
		if sl.Title == "" {
			return fmt.Errorf("seed legend without title")
		}
		lgd := &Legend{
			Title:       sl.Title,
			Description: sl.Description,
		}
		if existing, err := cat.LegendByTitle(ctx, sl.Title); err == nil {
			lgd.ID = existing.ID
		} else if !errors.Is(err, ErrNotFound) {
			return err
		}
		for _, se := range sl.Entries {
			e := &LegendEntry{
				Expression: se.Expression,
				Color:      se.Color,
			}
			if se.Name != "" {
				e.Semantics = &LegendSemantics{
					Name:        se.Name,
					Description: se.Description,
					Keyword:     se.Keyword,
				}
			}
			lgd.Entries = append(lgd.Entries, e)
		}
		if err := cat.PutLegend(ctx, lgd); err != nil {
			return fmt.Errorf("seeding legend %q: %w", sl.Title, err)
		}
		log.Debugf("Seeded legend %q (%d entries)", lgd.Title, len(lgd.Entries))
	}

	for _, sl := range seed.Layers {
		if sl.Name == "" || sl.RasterFile == "" {
			return fmt.Errorf("seed layer %q requires name and rasterfile", sl.Name)
		}
		lyr := &RasterLayer{
			Name:        sl.Name,
			Description: sl.Description,
			Datatype:    sl.Datatype,
			Srid:        sl.Srid,
			Nodata:      sl.Nodata,
			RasterFile:  sl.RasterFile,
		}
		if sl.Legend != "" {
			lgd, err := cat.LegendByTitle(ctx, sl.Legend)
			if err != nil {
				return fmt.Errorf("seeding layer %q: %w", sl.Name, err)
			}
			lyr.LegendID = &lgd.ID
		}
		// exact names only, a raster file name match is a different layer
		if existing, err := cat.LayerByName(ctx, sl.Name); err == nil && existing.Name == sl.Name {
			lyr.ID = existing.ID
		} else if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
		if err := cat.PutLayer(ctx, lyr); err != nil {
			return fmt.Errorf("seeding layer %q: %w", sl.Name, err)
		}
		log.Debugf("Seeded layer %q (%s)", lyr.Name, lyr.RasterFile)
	}
	log.Infof("Seeded catalog with %d legends and %d layers", len(seed.Legends), len(seed.Layers))
	return nil
}
