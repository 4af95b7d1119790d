package cache

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
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Key builds the cache key of a tile. Requests with a legend override
// or an entries filter get a hashed variant suffix; the order of entries
// does not matter.
func Key(layer string, z, x, y int, legend string, entries []string) string {
	key := fmt.Sprintf("%s%d:%d:%d", LayerPrefix(layer), z, x, y)

	legend = strings.ToLower(strings.TrimSpace(legend))
	if legend == "" && len(entries) == 0 {
		return key
	}
	sorted := make([]string, 0, len(entries))
	for _, e := range entries {
		sorted = append(sorted, strings.TrimSpace(e))
	}
	sort.Strings(sorted)

	variant := legend + "\x00" + strings.Join(sorted, "\x00")
	return fmt.Sprintf("%s:v=%016x", key, xxhash.Sum64String(variant))
}

// LayerPrefix is the key prefix shared by all tiles of a layer
func LayerPrefix(layer string) string {
	return strings.TrimSpace(layer) + ":"
}
