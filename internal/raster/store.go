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
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// ErrMissing is returned when a layer's raster file does not exist
var ErrMissing = errors.New("raster file missing")

// Store opens raster files below a root directory and keeps
// recently used decoded rasters in memory
type Store struct {
	root     string
	cache    *lru.Cache[string, *Raster]
	inflight singleflight.Group
}

// NewStore creates a store for rasters below root holding up to size decoded rasters
func NewStore(root string, size int) (*Store, error) {
	if size <= 0 {
		size = 1
	}
	if root == "" {
		root = "."
	}
	cache, err := lru.New[string, *Raster](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create raster cache: %w", err)
	}
	log.Infof("Raster store initialized: root=%s, cache size=%d", root, size)
	return &Store{root: root, cache: cache}, nil
}

// Path resolves a raster file name below the store root
func (s *Store) Path(file string) string {
	// names never escape the root
	return filepath.Join(s.root, filepath.Clean(string(filepath.Separator)+file))
}

// Open returns the decoded raster for a file name.
// A file changed on disk is decoded again.
func (s *Store) Open(ctx context.Context, file string) (*Raster, error) {
	path := s.Path(file)
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", file, ErrMissing)
	}
	if err != nil {
		return nil, fmt.Errorf("stat raster %s: %w", file, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("raster %s is a directory", file)
	}

	key := fmt.Sprintf("%s@%d:%d", path, info.ModTime().UnixNano(), info.Size())
	if r, ok := s.cache.Get(key); ok {
		return r, nil
	}

	ch := s.inflight.DoChan(key, func() (interface{}, error) {
		start := time.Now()
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading raster %s: %w", file, err)
		}
		r, err := Decode(b)
		if err != nil {
			return nil, fmt.Errorf("decoding raster %s: %w", file, err)
		}
		s.cache.Add(key, r)
		log.Debugf("Loaded raster %s (%dx%d) in %v", file, r.Width, r.Height, time.Since(start))
		return r, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Raster), nil
	}
}

// Len returns the number of decoded rasters held
func (s *Store) Len() int {
	return s.cache.Len()
}

// Purge drops all decoded rasters
func (s *Store) Purge() {
	s.cache.Purge()
}
