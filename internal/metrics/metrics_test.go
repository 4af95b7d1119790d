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
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHandler(t *testing.T) {
	ExposeBuildInfo("test")
	ObserveHTTP("GET", "/tms/{layer}/{z}/{x}/{y}{format}", 200, 0.002)
	ObserveRender(ResultRendered, 0.01)
	IncCacheHit()
	IncCacheMiss()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}
	body := rr.Body.String()
	for _, name := range []string{
		"rasterts_build_info",
		"rasterts_http_requests_total",
		"rasterts_tile_renders_total",
		"rasterts_tile_render_duration_seconds",
		"rasterts_cache_results_total",
	} {
		if !strings.Contains(body, name) {
			t.Errorf("Expected metric %s in the payload", name)
		}
	}
}
