package legend

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
	"image/color"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/tobilg/raster-tileserver/internal/data"
)

// Rule is a compiled legend entry
type Rule struct {
	Expression string
	Color      color.NRGBA
	Match      Matcher
}

// Resolved is the legend that applies to one tile request.
// Legend is nil when no legend applies.
type Resolved struct {
	Legend *data.Legend
	Rules  []Rule
}

// HasLegend reports whether a legend applies, even an empty one
func (res *Resolved) HasLegend() bool {
	return res != nil && res.Legend != nil
}

// Color returns the color of the first rule matching v
func (res *Resolved) Color(v float64) (color.NRGBA, bool) {
	for i := range res.Rules {
		if res.Rules[i].Match(v) {
			return res.Rules[i].Color, true
		}
	}
	return color.NRGBA{}, false
}

// Resolve picks the legend for a layer: the override when given
// (a legend title, or the legend of the layer with that name), otherwise
// the layer's own legend. entries restricts the rules to those expressions.
func Resolve(ctx context.Context, cat data.Catalog, lyr *data.RasterLayer, override string, entries []string) (*Resolved, error) {
	lgd, err := selectLegend(ctx, cat, lyr, override)
	if err != nil {
		return nil, err
	}
	res := &Resolved{Legend: lgd}
	if lgd == nil {
		return res, nil
	}

	filter := entrySet(entries)
	for _, e := range lgd.Entries {
		expr := normalize(e.Expression)
		if filter != nil && !filter[expr] {
			continue
		}
		match, err := Compile(expr)
		if err != nil {
			log.Warnf("Skipping entry of legend %q: %v", lgd.Title, err)
			continue
		}
		c, err := ParseColor(e.Color)
		if err != nil {
			log.Warnf("Skipping entry %q of legend %q: %v", expr, lgd.Title, err)
			continue
		}
		res.Rules = append(res.Rules, Rule{Expression: expr, Color: c, Match: match})
	}
	log.Debugf("Resolved legend %q for layer %s: %d of %d rules", lgd.Title, lyr.Name, len(res.Rules), len(lgd.Entries))
	return res, nil
}

func selectLegend(ctx context.Context, cat data.Catalog, lyr *data.RasterLayer, override string) (*data.Legend, error) {
	override = strings.TrimSpace(override)
	if override != "" {
		return overrideLegend(ctx, cat, override)
	}
	if lyr.LegendID == nil {
		return nil, nil
	}
	lgd, err := cat.LegendByID(ctx, *lyr.LegendID)
	if errors.Is(err, data.ErrNotFound) {
		log.Warnf("Layer %s references missing legend %d", lyr.Name, *lyr.LegendID)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return lgd, nil
}

func overrideLegend(ctx context.Context, cat data.Catalog, name string) (*data.Legend, error) {
	lgd, err := cat.LegendByTitle(ctx, name)
	if err == nil {
		return lgd, nil
	}
	if !errors.Is(err, data.ErrNotFound) {
		return nil, err
	}

	other, err := cat.LayerByName(ctx, name)
	if err != nil {
		if errors.Is(err, data.ErrNotFound) {
			return nil, fmt.Errorf("legend %q: %w", name, data.ErrNotFound)
		}
		return nil, err
	}
	if other.LegendID == nil {
		return nil, fmt.Errorf("layer %q has no legend: %w", name, data.ErrNotFound)
	}
	return cat.LegendByID(ctx, *other.LegendID)
}

// ParseEntries splits comma separated entries values into expressions
func ParseEntries(values []string) []string {
	var entries []string
	for _, v := range values {
		for _, e := range strings.Split(v, ",") {
			if e = normalize(e); e != "" {
				entries = append(entries, e)
			}
		}
	}
	return entries
}

func entrySet(entries []string) map[string]bool {
	if len(entries) == 0 {
		return nil
	}
	set := make(map[string]bool, len(entries))
	for _, e := range entries {
		set[normalize(e)] = true
	}
	return set
}
