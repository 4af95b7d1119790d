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
	"fmt"
	"sort"
	"sync"
)

// CatalogMemory keeps layers and legends in process memory.
// Values are copied on the way in and out.
type CatalogMemory struct {
	mu        sync.RWMutex
	layers    map[int64]*RasterLayer
	legends   map[int64]*Legend
	semantics map[string]*LegendSemantics
	nextID    int64
}

var instanceMem *CatalogMemory

// CatMemoryInstance returns the shared in-memory catalog
func CatMemoryInstance() Catalog {
	if instanceMem == nil {
		instanceMem = NewCatalogMemory()
	}
	return instanceMem
}

// NewCatalogMemory creates an empty in-memory catalog
func NewCatalogMemory() *CatalogMemory {
	return &CatalogMemory{
		layers:    make(map[int64]*RasterLayer),
		legends:   make(map[int64]*Legend),
		semantics: make(map[string]*LegendSemantics),
	}
}

func (cat *CatalogMemory) newID() int64 {
	cat.nextID++
	return cat.nextID
}

func (cat *CatalogMemory) Layers(ctx context.Context) ([]*RasterLayer, error) {
	cat.mu.RLock()
	defer cat.mu.RUnlock()

	layers := make([]*RasterLayer, 0, len(cat.layers))
	for _, lyr := range cat.layers {
		layers = append(layers, lyr.clone())
	}
	sort.SliceStable(layers, func(i, j int) bool {
		return layers[i].Name < layers[j].Name
	})
	return layers, nil
}

func (cat *CatalogMemory) LayerByName(ctx context.Context, name string) (*RasterLayer, error) {
	cat.mu.RLock()
	defer cat.mu.RUnlock()

	// exact names take precedence over raster file names
	for _, lyr := range cat.layers {
		if lyr.Name == name {
			return lyr.clone(), nil
		}
	}
	layers := make([]*RasterLayer, 0, len(cat.layers))
	for _, lyr := range cat.layers {
		layers = append(layers, lyr)
	}
	if lyr := matchByFile(layers, name); lyr != nil {
		return lyr.clone(), nil
	}
	return nil, fmt.Errorf("layer %q: %w", name, ErrNotFound)
}

func (cat *CatalogMemory) LegendByID(ctx context.Context, id int64) (*Legend, error) {
	cat.mu.RLock()
	defer cat.mu.RUnlock()

	lgd, ok := cat.legends[id]
	if !ok {
		return nil, fmt.Errorf("legend id %d: %w", id, ErrNotFound)
	}
	return lgd.Clone(), nil
}

func (cat *CatalogMemory) LegendByTitle(ctx context.Context, title string) (*Legend, error) {
	cat.mu.RLock()
	defer cat.mu.RUnlock()

	for _, lgd := range cat.legends {
		if sameTitle(lgd.Title, title) {
			return lgd.Clone(), nil
		}
	}
	return nil, fmt.Errorf("legend %q: %w", title, ErrNotFound)
}

func (cat *CatalogMemory) PutLegend(ctx context.Context, lgd *Legend) error {
	cat.mu.Lock()
	defer cat.mu.Unlock()

	for id, other := range cat.legends {
		if id != lgd.ID && sameTitle(other.Title, lgd.Title) {
			return fmt.Errorf("legend title %q already in use by legend %d", lgd.Title, id)
		}
	}
	if lgd.ID == 0 {
		lgd.ID = cat.newID()
	}
	for _, e := range lgd.Entries {
		if e.ID == 0 {
			e.ID = cat.newID()
		}
		if e.Semantics != nil {
			e.Semantics = cat.putSemantics(e.Semantics)
		}
	}
	cat.legends[lgd.ID] = lgd.Clone()
	return nil
}

// putSemantics reuses a stored label of the same name
func (cat *CatalogMemory) putSemantics(sem *LegendSemantics) *LegendSemantics {
	if stored, ok := cat.semantics[sem.Name]; ok {
		c := *stored
		return &c
	}
	c := *sem
	if c.ID == 0 {
		c.ID = cat.newID()
	}
	stored := c
	cat.semantics[c.Name] = &stored
	return &c
}

func (cat *CatalogMemory) PutLayer(ctx context.Context, lyr *RasterLayer) error {
	cat.mu.Lock()
	defer cat.mu.Unlock()

	for id, other := range cat.layers {
		if id != lyr.ID && other.Name == lyr.Name {
			return fmt.Errorf("layer name %q already in use by layer %d", lyr.Name, id)
		}
	}
	if lyr.Datatype == "" {
		lyr.Datatype = DefaultLayerDatatype
	}
	if lyr.ID == 0 {
		lyr.ID = cat.newID()
	}
	cat.layers[lyr.ID] = lyr.clone()
	return nil
}

func (cat *CatalogMemory) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (cat *CatalogMemory) Close() error {
	return nil
}
