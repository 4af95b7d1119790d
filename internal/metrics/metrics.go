package metrics

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
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Render results
const (
	ResultRendered = "rendered"
	ResultBlank    = "blank"
	ResultNotFound = "not_found"
	ResultError    = "error"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rasterts_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rasterts_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
		},
		[]string{"method", "route", "status"},
	)

	tileRendersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rasterts_tile_renders_total",
			Help: "Tile renders by result.",
		},
		[]string{"result"},
	)

	tileRenderDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rasterts_tile_render_duration_seconds",
			Help:    "Duration of tile renders in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
	)

	cacheResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rasterts_cache_results_total",
			Help: "Tile cache lookups by outcome.",
		},
		[]string{"outcome"},
	)

	buildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "rasterts_build_info",
			Help: "Build information for the binary.",
		},
		[]string{"version"},
	)
)

// ObserveHTTP records one served request
func ObserveHTTP(method, route string, status int, durationSeconds float64) {
	st := strconv.Itoa(status)
	httpRequestsTotal.WithLabelValues(method, route, st).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route, st).Observe(durationSeconds)
}

// ObserveRender records one tile render
func ObserveRender(result string, durationSeconds float64) {
	tileRendersTotal.WithLabelValues(result).Inc()
	tileRenderDurationSeconds.Observe(durationSeconds)
}

func IncCacheHit() {
	cacheResults.WithLabelValues("hit").Inc()
}

func IncCacheMiss() {
	cacheResults.WithLabelValues("miss").Inc()
}

func ExposeBuildInfo(version string) {
	if version == "" {
		version = "dev"
	}
	buildInfo.WithLabelValues(version).Set(1)
}

// Handler serves the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}
